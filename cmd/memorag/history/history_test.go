package historycmder_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	historycmder "github.com/papercomputeco/memorag/cmd/memorag/history"
	"github.com/papercomputeco/memorag/pkg/pipeline"
	"github.com/papercomputeco/memorag/pkg/storage"
	"github.com/papercomputeco/memorag/pkg/storage/sqlite"
)

func TestHistoryCmd(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "History Command Suite")
}

var _ = Describe("FetchAnswers", func() {
	It("passes the list options and decodes the answers", func() {
		var got *http.Request
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got = r
			_ = json.NewEncoder(w).Encode(map[string]any{
				"answers": []*storage.Record{{ID: "a1", Query: "q", Mode: "memory-only", Answer: "yes"}},
			})
		}))
		defer server.Close()

		since := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
		records, err := historycmder.FetchAnswers(context.Background(), server.URL, storage.ListOptions{
			Limit: 5,
			Mode:  "memory-only",
			Since: since,
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(records).To(HaveLen(1))
		Expect(records[0].Answer).To(Equal("yes"))

		Expect(got.URL.Path).To(Equal("/v1/answers"))
		Expect(got.URL.Query().Get("limit")).To(Equal("5"))
		Expect(got.URL.Query().Get("mode")).To(Equal("memory-only"))
		Expect(got.URL.Query().Get("since")).To(Equal("2026-01-02T03:04:05Z"))
	})

	It("defaults the limit", func() {
		var limit string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			limit = r.URL.Query().Get("limit")
			_, _ = w.Write([]byte(`{"answers":[]}`))
		}))
		defer server.Close()

		_, err := historycmder.FetchAnswers(context.Background(), server.URL, storage.ListOptions{})
		Expect(err).NotTo(HaveOccurred())
		Expect(limit).To(Equal("50"))
	})

	It("surfaces server errors", func() {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, `{"error":"boom"}`, http.StatusInternalServerError)
		}))
		defer server.Close()

		_, err := historycmder.FetchAnswers(context.Background(), server.URL, storage.ListOptions{})
		Expect(err).To(MatchError(ContainSubstring("HTTP 500")))
	})
})

var _ = Describe("history command", func() {
	var dbPath string

	BeforeEach(func() {
		dbPath = filepath.Join(GinkgoT().TempDir(), "answers.db")

		driver, err := sqlite.NewSQLiteDriver(dbPath)
		Expect(err).NotTo(HaveOccurred())
		ctx := context.Background()
		Expect(driver.Put(ctx, storage.NewRecord("Who is the CEO?", pipeline.ModeMemoRAG,
			&pipeline.Answer{Text: "Alice", Path: pipeline.PathRetrieval}, "digest", nil))).To(Succeed())
		Expect(driver.Put(ctx, storage.NewRecord("Why?", pipeline.ModeMemoryOnly, nil, "digest",
			errors.New("generation failure")))).To(Succeed())
		Expect(driver.Close()).To(Succeed())
	})

	run := func(args ...string) (string, error) {
		out := &bytes.Buffer{}
		cmd := historycmder.NewHistoryCmd()
		cmd.PersistentFlags().Bool("debug", false, "")
		cmd.SetOut(out)
		cmd.SetArgs(args)
		err := cmd.Execute()
		return out.String(), err
	}

	It("lists answers from the sqlite log", func() {
		out, err := run("--sqlite", dbPath)
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring("Who is the CEO?"))
		Expect(out).To(ContainSubstring("generation failure"))
	})

	It("filters by mode as JSON", func() {
		out, err := run("--sqlite", dbPath, "--filter-mode", "memory-only", "--json")
		Expect(err).NotTo(HaveOccurred())

		var records []*storage.Record
		Expect(json.Unmarshal([]byte(out), &records)).To(Succeed())
		Expect(records).To(HaveLen(1))
		Expect(records[0].Query).To(Equal("Why?"))
	})

	It("clears the log", func() {
		_, err := run("--sqlite", dbPath, "--clear")
		Expect(err).NotTo(HaveOccurred())

		out, err := run("--sqlite", dbPath)
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring("No answers logged."))
	})
})
