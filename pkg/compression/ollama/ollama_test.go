package ollama_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/memorag/pkg/compression"
	"github.com/papercomputeco/memorag/pkg/compression/ollama"
	"github.com/papercomputeco/memorag/pkg/errdefs"
	"github.com/papercomputeco/memorag/pkg/llm"
)

func TestOllamaCompression(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Ollama Compression Suite")
}

var _ = Describe("Model", func() {
	var (
		server   *httptest.Server
		mu       sync.Mutex
		requests []map[string]any
		reply    func(req map[string]any) map[string]any
	)

	BeforeEach(func() {
		requests = nil
		reply = func(map[string]any) map[string]any {
			return map[string]any{"response": strings.Repeat("x", 50), "done": true, "context": []int{4, 5, 6}}
		}
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer GinkgoRecover()
			Expect(r.URL.Path).To(Equal("/api/generate"))
			var req map[string]any
			Expect(json.NewDecoder(r.Body).Decode(&req)).To(Succeed())
			mu.Lock()
			requests = append(requests, req)
			mu.Unlock()
			json.NewEncoder(w).Encode(reply(req))
		}))
	})

	AfterEach(func() {
		server.Close()
	})

	It("compresses window by window and clamps to the budget", func() {
		m := ollama.New(ollama.Config{BaseURL: server.URL, WindowChars: 100})
		text := strings.Repeat(strings.Repeat("a", 60)+"\n\n", 4)

		payload, err := m.Compress(context.Background(), text, 4)
		Expect(err).NotTo(HaveOccurred())
		Expect(len(payload)).To(BeNumerically("<=", compression.Budget(len(text), 4)))
		Expect(len(requests)).To(BeNumerically(">", 1))
		Expect(requests[0]["options"]).To(HaveKeyWithValue("temperature", BeNumerically("==", 0)))
	})

	It("returns the text unchanged at ratio one", func() {
		m := ollama.New(ollama.Config{BaseURL: server.URL})
		payload, err := m.Compress(context.Background(), "short text", 1)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(payload)).To(Equal("short text"))
		Expect(requests).To(BeEmpty())
	})

	It("wraps server failures in ErrCompression", func() {
		reply = func(map[string]any) map[string]any {
			return map[string]any{"error": "input exceeds context"}
		}
		m := ollama.New(ollama.Config{BaseURL: server.URL})
		_, err := m.Compress(context.Background(), strings.Repeat("word ", 100), 4)
		Expect(errors.Is(err, errdefs.ErrCompression)).To(BeTrue())
	})

	It("rejects input over capacity without calling the server", func() {
		m := ollama.New(ollama.Config{BaseURL: server.URL, MaxInputChars: 5})
		_, err := m.Compress(context.Background(), "too long for it", 2)
		Expect(errors.Is(err, errdefs.ErrCompression)).To(BeTrue())
		Expect(requests).To(BeEmpty())
	})

	It("reuses the prefill context for answers", func() {
		m := ollama.New(ollama.Config{BaseURL: server.URL})
		prefix, err := m.Prefill(context.Background(), []byte("memory"))
		Expect(err).NotTo(HaveOccurred())
		Expect(prefix.Context).To(Equal([]int{4, 5, 6}))

		reply = func(map[string]any) map[string]any {
			return map[string]any{"response": "answer", "done": true}
		}
		resp, err := m.Generate(context.Background(), prefix, "question", llm.DefaultParams())
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.Text).To(Equal("answer"))

		last := requests[len(requests)-1]
		Expect(last).To(HaveKeyWithValue("prompt", "question"))
		Expect(last["context"]).To(HaveLen(3))
	})

	It("resends the memory when the server returned no context", func() {
		m := ollama.New(ollama.Config{BaseURL: server.URL})
		resp, err := m.Generate(context.Background(), &compression.Prefix{Text: "the memory"}, "question", llm.DefaultParams())
		Expect(err).NotTo(HaveOccurred())
		Expect(resp).NotTo(BeNil())
		Expect(requests[0]["prompt"]).To(ContainSubstring("the memory"))
		Expect(requests[0]["prompt"]).To(HaveSuffix("question"))
	})
})
