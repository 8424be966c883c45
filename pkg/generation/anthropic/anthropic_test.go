package anthropic_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/memorag/pkg/generation/anthropic"
	"github.com/papercomputeco/memorag/pkg/llm"
)

func TestAnthropicGeneration(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Anthropic Generation Suite")
}

var _ = Describe("Generator", func() {
	It("concatenates text blocks and reports usage", func() {
		var gotReq map[string]any
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer GinkgoRecover()
			Expect(r.URL.Path).To(Equal("/v1/messages"))
			Expect(json.NewDecoder(r.Body).Decode(&gotReq)).To(Succeed())
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{
				"id": "msg_1",
				"type": "message",
				"role": "assistant",
				"model": "claude-sonnet-4-5",
				"stop_reason": "end_turn",
				"content": [{"type": "text", "text": "Doc A "}, {"type": "text", "text": "is short."}],
				"usage": {"input_tokens": 7, "output_tokens": 3}
			}`))
		}))
		defer server.Close()

		g := anthropic.NewGenerator(anthropic.Config{APIKey: "test", BaseURL: server.URL, System: "sys", MaxRetries: 1})
		resp, err := g.Generate(context.Background(), "Summarize Doc A", llm.Params{MaxTokens: 32})
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.Text).To(Equal("Doc A is short."))
		Expect(resp.StopReason).To(Equal("end_turn"))
		Expect(resp.Usage.TotalTokens).To(Equal(10))
		Expect(gotReq).To(HaveKeyWithValue("max_tokens", BeNumerically("==", 32)))
		Expect(gotReq).To(HaveKey("system"))
	})
})
