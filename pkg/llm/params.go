// Package llm holds the provider-neutral generation types shared by the
// compression and generation capability services.
package llm

import (
	"fmt"
	"strconv"
	"strings"
)

// DefaultMaxTokens is the generation budget used when none is configured.
const DefaultMaxTokens = 4096

// Params are the generation parameters attached to a query. Optional
// sampling knobs are pointers so providers can tell "unset" from zero.
type Params struct {
	MaxTokens   int      `json:"max_tokens,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
	TopP        *float64 `json:"top_p,omitempty"`
	TopK        *int     `json:"top_k,omitempty"`
	Seed        *int     `json:"seed,omitempty"`
	Stop        []string `json:"stop,omitempty"`

	// DoSample enables stochastic decoding. When false providers are asked
	// for greedy decoding (temperature 0).
	DoSample bool `json:"do_sample,omitempty"`
}

// DefaultParams returns greedy decoding with the default token budget.
func DefaultParams() Params {
	return Params{MaxTokens: DefaultMaxTokens}
}

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }

// Int returns a pointer to v.
func Int(v int) *int { return &v }

// Deterministic reports whether two calls with these parameters are expected
// to produce the same text.
func (p Params) Deterministic() bool {
	if !p.DoSample {
		return true
	}
	return p.Temperature != nil && *p.Temperature == 0
}

// EffectiveTemperature is the temperature a provider should be sent.
func (p Params) EffectiveTemperature() float64 {
	if !p.DoSample {
		return 0
	}
	if p.Temperature == nil {
		return 1
	}
	return *p.Temperature
}

// Tokens returns MaxTokens or the default.
func (p Params) Tokens() int {
	if p.MaxTokens <= 0 {
		return DefaultMaxTokens
	}
	return p.MaxTokens
}

// Validate rejects out-of-range parameters.
func (p Params) Validate() error {
	if p.MaxTokens < 0 {
		return fmt.Errorf("max tokens must be >= 0, got %d", p.MaxTokens)
	}
	if p.Temperature != nil && *p.Temperature < 0 {
		return fmt.Errorf("temperature must be >= 0, got %g", *p.Temperature)
	}
	if p.TopP != nil && (*p.TopP <= 0 || *p.TopP > 1) {
		return fmt.Errorf("top_p must be in (0, 1], got %g", *p.TopP)
	}
	return nil
}

// Key is a canonical encoding of the parameters, used in cache keys.
func (p Params) Key() string {
	var b strings.Builder
	b.WriteString("max=")
	b.WriteString(strconv.Itoa(p.Tokens()))
	b.WriteString(";temp=")
	b.WriteString(strconv.FormatFloat(p.EffectiveTemperature(), 'g', -1, 64))
	if p.TopP != nil {
		b.WriteString(";top_p=")
		b.WriteString(strconv.FormatFloat(*p.TopP, 'g', -1, 64))
	}
	if p.TopK != nil {
		b.WriteString(";top_k=")
		b.WriteString(strconv.Itoa(*p.TopK))
	}
	if p.Seed != nil {
		b.WriteString(";seed=")
		b.WriteString(strconv.Itoa(*p.Seed))
	}
	if len(p.Stop) > 0 {
		b.WriteString(";stop=")
		b.WriteString(strconv.Quote(strings.Join(p.Stop, "\x00")))
	}
	return b.String()
}
