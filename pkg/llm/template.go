package llm

import "strings"

// Fill substitutes {name} placeholders in template with vars in a single
// pass, so substituted text is never expanded again. Unknown placeholders
// are left as they are.
func Fill(template string, vars map[string]string) string {
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(template)
}

// HasPlaceholder reports whether template contains {name}.
func HasPlaceholder(template, name string) bool {
	return strings.Contains(template, "{"+name+"}")
}
