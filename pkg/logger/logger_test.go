package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/memorag/pkg/logger"
)

func decode(buf *bytes.Buffer) map[string]any {
	var parsed map[string]any
	ExpectWithOffset(1, json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &parsed)).To(Succeed())
	return parsed
}

type failingHandler struct{ slog.Handler }

func (failingHandler) Enabled(context.Context, slog.Level) bool { return true }
func (failingHandler) Handle(context.Context, slog.Record) error {
	return errors.New("disk full")
}

var _ = Describe("New", func() {
	It("writes info records as text by default", func() {
		var buf bytes.Buffer
		logger.New(logger.WithWriter(&buf)).Info("index loaded", "chunks", 12)

		Expect(buf.String()).To(ContainSubstring("index loaded"))
		Expect(buf.String()).To(ContainSubstring("chunks=12"))
	})

	It("drops debug records unless debug is on", func() {
		var quiet, loud bytes.Buffer
		logger.New(logger.WithWriter(&quiet)).Debug("prefill cached")
		logger.New(logger.WithWriter(&loud), logger.WithDebug(true)).Debug("prefill cached")

		Expect(quiet.String()).To(BeEmpty())
		Expect(loud.String()).To(ContainSubstring("prefill cached"))
	})

	It("writes JSON when asked, even with pretty set", func() {
		var buf bytes.Buffer
		l := logger.New(logger.WithWriter(&buf), logger.WithPretty(true), logger.WithJSON(true))
		l.Info("answered", "mode", "memory-only")

		parsed := decode(&buf)
		Expect(parsed["msg"]).To(Equal("answered"))
		Expect(parsed["mode"]).To(Equal("memory-only"))
	})

	It("stamps the component", func() {
		var buf bytes.Buffer
		logger.New(logger.WithWriter(&buf), logger.WithJSON(true), logger.WithComponent("retrieval")).Info("built")

		Expect(decode(&buf)["component"]).To(Equal("retrieval"))
	})

	Describe("redaction", func() {
		It("masks default keys in JSON output", func() {
			var buf bytes.Buffer
			l := logger.New(logger.WithWriter(&buf), logger.WithJSON(true))
			l.Info("connecting", "dsn", "postgres://u:secret@db/memorag", "API_KEY", "sk-123", "model", "qwen3:8b")

			parsed := decode(&buf)
			Expect(parsed["dsn"]).To(Equal(logger.Redacted))
			Expect(parsed["API_KEY"]).To(Equal(logger.Redacted))
			Expect(parsed["model"]).To(Equal("qwen3:8b"))
		})

		It("masks extra keys and attributes bound with With", func() {
			var buf bytes.Buffer
			l := logger.New(logger.WithWriter(&buf), logger.WithRedact("bucket_secret"))
			l.With("token", "abc").Info("sync", "bucket_secret", "xyz")

			out := buf.String()
			Expect(out).NotTo(ContainSubstring("abc"))
			Expect(out).NotTo(ContainSubstring("xyz"))
			Expect(strings.Count(out, logger.Redacted)).To(Equal(2))
		})

		It("masks pretty output", func() {
			var buf bytes.Buffer
			l := logger.New(logger.WithWriter(&buf), logger.WithPretty(true))
			l.With("password", "hunter2").Info("opened answer log", "api_key", "sk-123")

			out := buf.String()
			Expect(out).To(ContainSubstring("opened answer log"))
			Expect(out).NotTo(ContainSubstring("hunter2"))
			Expect(out).NotTo(ContainSubstring("sk-123"))
		})
	})
})

var _ = Describe("Nop", func() {
	It("is disabled at every level", func() {
		l := logger.Nop()
		Expect(l.Handler().Enabled(context.Background(), slog.LevelError)).To(BeFalse())
		Expect(func() {
			l.With("k", "v").WithGroup("g").Error("ignored")
		}).NotTo(Panic())
	})
})

var _ = Describe("Multi", func() {
	It("sends each record to every logger", func() {
		var console, file bytes.Buffer
		multi := logger.Multi(
			logger.New(logger.WithWriter(&console)),
			logger.New(logger.WithWriter(&file), logger.WithJSON(true)),
		)
		multi.Info("reloaded", "dir", "/data")

		Expect(console.String()).To(ContainSubstring("reloaded"))
		Expect(decode(&file)["dir"]).To(Equal("/data"))
	})

	It("respects each logger's level", func() {
		var info, debug bytes.Buffer
		multi := logger.Multi(
			logger.New(logger.WithWriter(&info)),
			logger.New(logger.WithWriter(&debug), logger.WithDebug(true)),
		)
		multi.Debug("cache hit")

		Expect(info.String()).To(BeEmpty())
		Expect(debug.String()).To(ContainSubstring("cache hit"))
	})

	It("carries attributes and groups to every child", func() {
		var buf bytes.Buffer
		multi := logger.Multi(logger.New(logger.WithWriter(&buf), logger.WithJSON(true)))
		multi.With("surface", "api").WithGroup("query").Info("done", "path", "retrieval")

		parsed := decode(&buf)
		Expect(parsed["surface"]).To(Equal("api"))
		Expect(parsed["query"]).To(HaveKeyWithValue("path", "retrieval"))
	})

	It("keeps writing when one handler fails", func() {
		var buf bytes.Buffer
		multi := logger.Multi(
			slog.New(failingHandler{}),
			logger.New(logger.WithWriter(&buf)),
		)

		rec := slog.NewRecord(time.Now(), slog.LevelInfo, "still here", 0)
		err := multi.Handler().Handle(context.Background(), rec)

		Expect(err).To(MatchError(ContainSubstring("disk full")))
		Expect(buf.String()).To(ContainSubstring("still here"))
	})
})

var _ = Describe("OpenFile", func() {
	It("creates the directory and appends", func() {
		path := filepath.Join(GinkgoT().TempDir(), "logs", "serve.jsonl")

		for _, msg := range []string{"first", "second"} {
			f, err := logger.OpenFile(path)
			Expect(err).NotTo(HaveOccurred())
			logger.New(logger.WithWriter(f), logger.WithJSON(true)).Info(msg)
			Expect(f.Close()).To(Succeed())
		}

		data, err := os.ReadFile(path)
		Expect(err).NotTo(HaveOccurred())
		lines := strings.Split(strings.TrimSpace(string(data)), "\n")
		Expect(lines).To(HaveLen(2))
		Expect(lines[1]).To(ContainSubstring("second"))
	})
})
