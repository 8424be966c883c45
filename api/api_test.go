package api_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/memorag/api"
	"github.com/papercomputeco/memorag/pkg/corpus"
	"github.com/papercomputeco/memorag/pkg/eventstream"
	"github.com/papercomputeco/memorag/pkg/llm"
	"github.com/papercomputeco/memorag/pkg/logger"
	"github.com/papercomputeco/memorag/pkg/pipeline"
	"github.com/papercomputeco/memorag/pkg/recorder"
	"github.com/papercomputeco/memorag/pkg/retrieval"
	"github.com/papercomputeco/memorag/pkg/storage"
	"github.com/papercomputeco/memorag/pkg/storage/inmemory"
	testutils "github.com/papercomputeco/memorag/pkg/utils/test"
)

func TestAPI(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "API Suite")
}

const (
	docA     = "Doc A: revenue grew 12% in 2023."
	docB     = "Doc B: the CEO is Jane Doe."
	ceoQuery = "Who is the CEO?"
)

var _ = Describe("Server", func() {
	var (
		ctx       context.Context
		dir       string
		services  *testutils.MockServices
		handle    *pipeline.Handle
		answers   *inmemory.Driver
		publisher *testutils.MockPublisher
		server    *api.Server
	)

	memorize := func(records ...string) {
		_, err := pipeline.Memorize(ctx, corpus.New(records, corpus.DefaultChunkOptions()), dir, pipeline.MemorizeOptions{
			Ratio:     4,
			Factories: services.Factories(),
			Logger:    logger.Nop(),
		})
		Expect(err).NotTo(HaveOccurred())
	}

	do := func(method, target, body string) (int, []byte) {
		var r io.Reader
		if body != "" {
			r = strings.NewReader(body)
		}
		req := httptest.NewRequest(method, target, r)
		if body != "" {
			req.Header.Set("Content-Type", "application/json")
		}
		resp, err := server.App().Test(req, -1)
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()
		data, err := io.ReadAll(resp.Body)
		Expect(err).NotTo(HaveOccurred())
		return resp.StatusCode, data
	}

	decodeError := func(data []byte) llm.ErrorResponse {
		var e llm.ErrorResponse
		Expect(json.Unmarshal(data, &e)).To(Succeed())
		return e
	}

	BeforeEach(func() {
		ctx = context.Background()
		dir = GinkgoT().TempDir()
		services = testutils.NewMockServices()
		services.Embedder.Dims = 3
		services.Embedder.Embeddings[docA] = []float32{1, 0, 0}
		services.Embedder.Embeddings[docB] = []float32{0, 1, 0}
		services.Embedder.Embeddings[ceoQuery] = []float32{0.1, 0.9, 0}
		services.Embedder.Embeddings[pipeline.SummaryQuery] = []float32{0.5, 0.5, 0}
		memorize(docA, docB)

		var err error
		handle, err = pipeline.NewHandle(ctx, func(ctx context.Context) (*pipeline.Pipeline, error) {
			return pipeline.Open(ctx, pipeline.Options{
				Dir:       dir,
				Mode:      pipeline.ModeRetrievalOnly,
				TopK:      1,
				Policy:    retrieval.SkipAndReport,
				Factories: services.Factories(),
				Logger:    logger.Nop(),
			})
		}, logger.Nop())
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(handle.Close)

		answers = inmemory.NewDriver()
		publisher = testutils.NewMockPublisher()
		rec, err := recorder.New(recorder.Config{
			Driver:    answers,
			Publisher: publisher,
			Source:    eventstream.EventSource{MemoryDir: dir},
			Logger:    logger.Nop(),
		})
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(rec.Close)

		server, err = api.NewServer(api.Config{ListenAddr: ":0"}, handle, answers, rec, logger.Nop())
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("NewServer", func() {
		It("requires a handle, a storage driver and a logger", func() {
			_, err := api.NewServer(api.Config{}, nil, answers, nil, logger.Nop())
			Expect(err).To(HaveOccurred())
			_, err = api.NewServer(api.Config{}, handle, nil, nil, logger.Nop())
			Expect(err).To(HaveOccurred())
			_, err = api.NewServer(api.Config{}, handle, answers, nil, nil)
			Expect(err).To(HaveOccurred())
		})
	})

	It("answers ping", func() {
		status, body := do(http.MethodGet, "/ping", "")
		Expect(status).To(Equal(http.StatusOK))
		Expect(string(body)).To(Equal(`"pong"`))
	})

	Describe("POST /v1/query", func() {
		It("answers and logs the answer", func() {
			status, body := do(http.MethodPost, "/v1/query", `{"query":"Who is the CEO?"}`)
			Expect(status).To(Equal(http.StatusOK))

			var resp struct {
				ID       string           `json:"id"`
				Mode     string           `json:"mode"`
				Text     string           `json:"text"`
				Passages []map[string]any `json:"passages"`
			}
			Expect(json.Unmarshal(body, &resp)).To(Succeed())
			Expect(resp.ID).NotTo(BeEmpty())
			Expect(resp.Mode).To(Equal(string(pipeline.ModeRetrievalOnly)))
			Expect(resp.Text).To(ContainSubstring(docB))
			Expect(resp.Passages).To(HaveLen(1))
			Expect(resp.Passages[0]).To(HaveKeyWithValue("text", docB))
			Expect(resp.Passages[0]).NotTo(HaveKey("Embedding"))

			Eventually(func() error {
				_, err := answers.Get(ctx, resp.ID)
				return err
			}, time.Second, 10*time.Millisecond).Should(Succeed())
			Eventually(publisher.Events, time.Second).Should(HaveLen(1))
			Expect(publisher.Events()[0].Source.Surface).To(Equal(api.Surface))
		})

		It("rejects a malformed body", func() {
			status, body := do(http.MethodPost, "/v1/query", `{"query":`)
			Expect(status).To(Equal(http.StatusBadRequest))
			Expect(decodeError(body).Kind).To(Equal("invalid_argument"))
		})

		It("rejects an unknown mode", func() {
			status, body := do(http.MethodPost, "/v1/query", `{"query":"Who is the CEO?","mode":"bogus"}`)
			Expect(status).To(Equal(http.StatusBadRequest))
			Expect(decodeError(body).Kind).To(Equal("unsupported_mode"))
		})

		It("maps model failures to bad gateway", func() {
			services.Generator.FailContaining = "CEO"
			status, body := do(http.MethodPost, "/v1/query", `{"query":"Who is the CEO?"}`)
			Expect(status).To(Equal(http.StatusBadGateway))
			Expect(decodeError(body).Kind).To(Equal("model_failure"))

			Eventually(func() int {
				st, _ := answers.Stats(ctx)
				return st.Failed
			}, time.Second, 10*time.Millisecond).Should(Equal(1))
		})
	})

	Describe("POST /v1/batch", func() {
		It("returns results aligned with the queries under skip-and-report", func() {
			services.Generator.FailContaining = "broken"
			status, body := do(http.MethodPost, "/v1/batch", `{"queries":["Who is the CEO?","broken query"]}`)
			Expect(status).To(Equal(http.StatusOK))

			var resp api.BatchResponse
			Expect(json.Unmarshal(body, &resp)).To(Succeed())
			Expect(resp.Results).To(HaveLen(2))
			Expect(resp.Results[0].Query).To(Equal(ceoQuery))
			Expect(resp.Results[0].Error).To(BeEmpty())
			Expect(resp.Results[1].Index).To(Equal(1))
			Expect(resp.Results[1].Error).NotTo(BeEmpty())
			Expect(resp.Failed).To(Equal(1))
		})

		It("rejects an empty batch", func() {
			status, _ := do(http.MethodPost, "/v1/batch", `{"queries":[]}`)
			Expect(status).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("GET /v1/search", func() {
		It("returns passages without generating", func() {
			status, body := do(http.MethodGet, "/v1/search?q=Who+is+the+CEO%3F&k=2", "")
			Expect(status).To(Equal(http.StatusOK))

			var resp struct {
				Count   int `json:"count"`
				Results []struct {
					Text  string  `json:"text"`
					Score float32 `json:"score"`
				} `json:"results"`
			}
			Expect(json.Unmarshal(body, &resp)).To(Succeed())
			Expect(resp.Count).To(Equal(2))
			Expect(resp.Results[0].Text).To(Equal(docB))
			Expect(services.Generator.Calls()).To(BeZero())
		})

		It("rejects a missing query", func() {
			status, _ := do(http.MethodGet, "/v1/search", "")
			Expect(status).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("memory and reload", func() {
		It("describes the loaded artifacts", func() {
			status, body := do(http.MethodGet, "/v1/memory", "")
			Expect(status).To(Equal(http.StatusOK))

			var resp api.MemoryResponse
			Expect(json.Unmarshal(body, &resp)).To(Succeed())
			Expect(resp.CorpusDigest).To(Equal(corpus.DigestText(docA + corpus.Separator + docB)))
			Expect(resp.Index).NotTo(BeNil())
			Expect(resp.Index.Entries).To(Equal(2))
			Expect(resp.Memory.Ratio).To(Equal(4))
		})

		It("reloads rewritten artifacts", func() {
			memorize(docA)
			status, body := do(http.MethodPost, "/v1/reload", "")
			Expect(status).To(Equal(http.StatusOK))

			var resp api.MemoryResponse
			Expect(json.Unmarshal(body, &resp)).To(Succeed())
			Expect(resp.CorpusDigest).To(Equal(corpus.DigestText(docA)))
			Expect(resp.Index.Entries).To(Equal(1))
		})
	})

	Describe("answer log", func() {
		BeforeEach(func() {
			for _, q := range []string{"first", "second", "third"} {
				rec := storage.NewRecord(q, pipeline.ModeMemoryOnly, nil, "abc", nil)
				rec.Fill()
				Expect(answers.Put(ctx, rec)).To(Succeed())
			}
		})

		It("lists answers with a limit", func() {
			status, body := do(http.MethodGet, "/v1/answers?limit=2", "")
			Expect(status).To(Equal(http.StatusOK))

			var resp struct {
				Count   int               `json:"count"`
				Answers []*storage.Record `json:"answers"`
			}
			Expect(json.Unmarshal(body, &resp)).To(Succeed())
			Expect(resp.Count).To(Equal(2))
		})

		It("rejects a malformed since", func() {
			status, _ := do(http.MethodGet, "/v1/answers?since=yesterday", "")
			Expect(status).To(Equal(http.StatusBadRequest))
		})

		It("gets one answer and 404s on unknown ids", func() {
			records, err := answers.List(ctx, storage.ListOptions{Limit: 1})
			Expect(err).NotTo(HaveOccurred())

			status, body := do(http.MethodGet, "/v1/answers/"+records[0].ID, "")
			Expect(status).To(Equal(http.StatusOK))
			var got storage.Record
			Expect(json.Unmarshal(body, &got)).To(Succeed())
			Expect(got.ID).To(Equal(records[0].ID))

			status, body = do(http.MethodGet, "/v1/answers/missing", "")
			Expect(status).To(Equal(http.StatusNotFound))
			Expect(decodeError(body).Kind).To(Equal("not_found"))
		})

		It("reports stats", func() {
			status, body := do(http.MethodGet, "/v1/stats", "")
			Expect(status).To(Equal(http.StatusOK))

			var st storage.Stats
			Expect(json.Unmarshal(body, &st)).To(Succeed())
			Expect(st.Total).To(Equal(3))
			Expect(st.ByMode).To(HaveKeyWithValue(string(pipeline.ModeMemoryOnly), 3))
		})
	})

	It("renders unknown routes in the error shape", func() {
		status, body := do(http.MethodGet, "/v1/nope", "")
		Expect(status).To(Equal(http.StatusNotFound))
		Expect(decodeError(body).Error).NotTo(BeEmpty())
	})
})
