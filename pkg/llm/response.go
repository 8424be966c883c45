package llm

// Response is the text produced by a capability service call.
type Response struct {
	// Model that produced the text
	Model string `json:"model"`

	Text string `json:"text"`

	// Stop reason reported by the provider (e.g. "stop", "length")
	StopReason string `json:"stop_reason,omitempty"`

	Usage *Usage `json:"usage,omitempty"`
}

// Usage contains token counts reported by the provider.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens,omitempty"`
	CompletionTokens int `json:"completion_tokens,omitempty"`
	TotalTokens      int `json:"total_tokens,omitempty"`
}

// ErrorResponse is the JSON body returned by the HTTP API on failure.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}
