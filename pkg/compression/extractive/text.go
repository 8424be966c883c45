package extractive

import (
	"math"
	"regexp"
	"sort"
	"strings"
)

var (
	sentencePattern = regexp.MustCompile(`(?s)[^.!?\n]+(?:[.!?]+|\n|$)`)
	tokenPattern    = regexp.MustCompile(`[\p{L}\p{N}]+(?:['’][\p{L}]+)*`)
)

var stopwords = func() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at", "by",
		"with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "this", "that", "these", "those",
		"from", "up", "down", "over", "under", "again", "further", "than", "so", "such", "into", "about",
		"between", "through", "during", "before", "after", "above", "below", "out", "off", "own", "same", "too",
		"very", "can", "will", "just", "don", "should", "now", "what", "which", "who", "how", "why", "when",
		"do", "does", "did", "you", "your", "i", "me", "my", "we", "our", "they", "their", "he", "she", "his",
		"her", "its", "not", "no", "any", "all",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}()

func sentences(text string) []string {
	var out []string
	for _, s := range sentencePattern.FindAllString(text, -1) {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func tokens(text string) []string {
	return tokenPattern.FindAllString(strings.ToLower(text), -1)
}

func contentTokens(text string) []string {
	all := tokens(text)
	out := all[:0]
	for _, t := range all {
		if _, stop := stopwords[t]; !stop {
			out = append(out, t)
		}
	}
	return out
}

// rankByFrequency orders sentence indexes by normalised content-word
// frequency, highest first, ties by position.
func rankByFrequency(sents []string) []int {
	freq := map[string]float64{}
	for _, s := range sents {
		for _, t := range contentTokens(s) {
			freq[t]++
		}
	}
	var maxF float64
	for _, v := range freq {
		maxF = max(maxF, v)
	}

	scores := make([]float64, len(sents))
	for i, s := range sents {
		toks := contentTokens(s)
		if maxF == 0 {
			continue
		}
		for _, t := range toks {
			scores[i] += freq[t] / maxF
		}
		if l := len(tokens(s)); l > 0 {
			scores[i] /= math.Sqrt(float64(l))
		}
	}
	return rank(scores)
}

// rankByOverlap orders sentence indexes by how many distinct query content
// words they contain, weighted by rarity in the memory. The scores are
// returned alongside so callers can drop sentences with no overlap.
func rankByOverlap(sents []string, query string) ([]int, []float64) {
	df := map[string]float64{}
	sets := make([]map[string]struct{}, len(sents))
	for i, s := range sents {
		sets[i] = map[string]struct{}{}
		for _, t := range contentTokens(s) {
			if _, seen := sets[i][t]; !seen {
				sets[i][t] = struct{}{}
				df[t]++
			}
		}
	}

	q := map[string]struct{}{}
	for _, t := range contentTokens(query) {
		q[t] = struct{}{}
	}

	n := float64(len(sents))
	scores := make([]float64, len(sents))
	for i := range sents {
		for t := range q {
			if _, ok := sets[i][t]; ok {
				scores[i] += math.Log(1 + n/df[t])
			}
		}
	}
	return rank(scores), scores
}

func rank(scores []float64) []int {
	idx := make([]int, len(scores))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return scores[idx[a]] > scores[idx[b]]
	})
	return idx
}
