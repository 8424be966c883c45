package api

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/memorag/pkg/errdefs"
	"github.com/papercomputeco/memorag/pkg/llm"
	"github.com/papercomputeco/memorag/pkg/memory"
	"github.com/papercomputeco/memorag/pkg/pipeline"
	"github.com/papercomputeco/memorag/pkg/storage"
	"github.com/papercomputeco/memorag/pkg/vector"
)

// QueryRequest is the body of POST /v1/query.
type QueryRequest struct {
	Query    string      `json:"query"`
	Mode     string      `json:"mode,omitempty"`
	TopK     int         `json:"top_k,omitempty"`
	Template string      `json:"template,omitempty"`
	Params   *llm.Params `json:"params,omitempty"`
}

// QueryResponse is an answer plus the ID it was logged under.
type QueryResponse struct {
	ID string `json:"id,omitempty"`
	*pipeline.Answer
}

// BatchRequest is the body of POST /v1/batch.
type BatchRequest struct {
	Queries []string `json:"queries"`
}

// BatchItem is one aligned batch result.
type BatchItem struct {
	Index  int              `json:"index"`
	Query  string           `json:"query"`
	Answer *pipeline.Answer `json:"answer,omitempty"`
	Error  string           `json:"error,omitempty"`
}

// BatchResponse is the body returned by POST /v1/batch.
type BatchResponse struct {
	Results []BatchItem `json:"results"`
	Failed  int         `json:"failed"`
}

// SearchResponse is the body returned by GET /v1/search.
type SearchResponse struct {
	Query   string               `json:"query"`
	Results []vector.QueryResult `json:"results"`
	Count   int                  `json:"count"`
}

// MemoryResponse describes the loaded artifacts.
type MemoryResponse struct {
	Mode         pipeline.Mode `json:"mode"`
	CorpusDigest string        `json:"corpus_digest"`
	Model        string        `json:"model"`
	CreatedAt    time.Time     `json:"created_at"`
	LoadedAt     time.Time     `json:"loaded_at"`
	Memory       memory.Stats  `json:"memory"`
	Index        *IndexInfo    `json:"index,omitempty"`
}

// IndexInfo summarises a loaded index.
type IndexInfo struct {
	Model      string `json:"model"`
	Dimensions int    `json:"dimensions"`
	Entries    int    `json:"entries"`
	Skipped    int    `json:"skipped"`
}

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

func (s *Server) handleQuery(c *fiber.Ctx) error {
	var req QueryRequest
	if err := c.BodyParser(&req); err != nil {
		return s.fail(c, errdefs.InvalidArgument("invalid request body: %v", err))
	}

	q := pipeline.Query{
		Text:     req.Query,
		Mode:     pipeline.Mode(req.Mode),
		TopK:     req.TopK,
		Template: req.Template,
		Params:   req.Params,
	}

	var (
		ans    *pipeline.Answer
		digest string
	)
	err := s.handle.With(func(p *pipeline.Pipeline) error {
		digest = p.State().CorpusDigest
		if q.Mode == "" {
			q.Mode = p.Mode()
		}
		var err error
		ans, err = p.Answer(c.Context(), q)
		return err
	})

	id := s.record(req.Query, q.Mode, ans, digest, err)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(QueryResponse{ID: id, Answer: ans})
}

func (s *Server) handleBatch(c *fiber.Ctx) error {
	var req BatchRequest
	if err := c.BodyParser(&req); err != nil {
		return s.fail(c, errdefs.InvalidArgument("invalid request body: %v", err))
	}
	if len(req.Queries) == 0 {
		return s.fail(c, errdefs.InvalidArgument("queries must not be empty"))
	}

	var (
		results []pipeline.Result
		mode    pipeline.Mode
		digest  string
	)
	err := s.handle.With(func(p *pipeline.Pipeline) error {
		mode = p.Mode()
		digest = p.State().CorpusDigest
		var err error
		results, err = p.Batch(c.Context(), req.Queries, nil)
		return err
	})
	if err != nil {
		return s.fail(c, err)
	}

	resp := BatchResponse{Results: make([]BatchItem, len(results))}
	for i, r := range results {
		item := BatchItem{Index: r.Index, Query: r.Query, Answer: r.Answer}
		if r.Err != nil {
			item.Error = r.Err.Error()
			resp.Failed++
		}
		resp.Results[i] = item
		s.record(r.Query, mode, r.Answer, digest, r.Err)
	}
	return c.JSON(resp)
}

func (s *Server) handleSearch(c *fiber.Ctx) error {
	query := strings.Clone(c.Query("q"))
	k := c.QueryInt("k", 0)
	if k < 0 {
		return s.fail(c, errdefs.InvalidArgument("k must be >= 1, got %d", k))
	}

	var results []vector.QueryResult
	err := s.handle.With(func(p *pipeline.Pipeline) error {
		var err error
		results, err = p.Search(c.Context(), query, k)
		return err
	})
	if err != nil {
		return s.fail(c, err)
	}

	return c.JSON(SearchResponse{Query: query, Results: results, Count: len(results)})
}

func (s *Server) handleMemory(c *fiber.Ctx) error {
	var resp MemoryResponse
	_ = s.handle.With(func(p *pipeline.Pipeline) error {
		st := p.State()
		resp = MemoryResponse{
			Mode:         p.Mode(),
			CorpusDigest: st.CorpusDigest,
			Model:        st.Model,
			CreatedAt:    st.CreatedAt,
			Memory:       st.Stats(),
		}
		if ix := p.Index(); ix != nil {
			resp.Index = &IndexInfo{
				Model:      ix.Model,
				Dimensions: ix.Dimensions,
				Entries:    ix.Len(),
				Skipped:    len(ix.Skipped),
			}
		}
		return nil
	})
	resp.LoadedAt = s.handle.LoadedAt()
	return c.JSON(resp)
}

func (s *Server) handleReload(c *fiber.Ctx) error {
	if err := s.handle.Reload(c.Context()); err != nil {
		return s.fail(c, err)
	}
	return s.handleMemory(c)
}

func (s *Server) handleListAnswers(c *fiber.Ctx) error {
	opts := storage.ListOptions{
		Limit: c.QueryInt("limit", storage.DefaultListLimit),
		Mode:  strings.Clone(c.Query("mode")),
	}
	if since := c.Query("since"); since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			return s.fail(c, errdefs.InvalidArgument("since must be RFC3339: %v", err))
		}
		opts.Since = t
	}

	records, err := s.answers.List(c.Context(), opts)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(map[string]any{
		"count":   len(records),
		"answers": records,
	})
}

func (s *Server) handleGetAnswer(c *fiber.Ctx) error {
	rec, err := s.answers.Get(c.Context(), c.Params("id"))
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(rec)
}

func (s *Server) handleStats(c *fiber.Ctx) error {
	st, err := s.answers.Stats(c.Context())
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(st)
}

// record logs one answered (or failed) query and returns its ID. Validation
// failures are not logged.
func (s *Server) record(query string, mode pipeline.Mode, ans *pipeline.Answer, digest string, err error) string {
	if err != nil && errdefs.IsValidation(err) {
		return ""
	}
	rec := storage.NewRecord(query, mode, ans, digest, err)
	if s.recorder == nil {
		return rec.ID
	}
	if !s.recorder.Record(Surface, rec) {
		return ""
	}
	return rec.ID
}
