// Package recorder logs answers to the answer store and publishes an event
// for each, off the caller's path on a worker pool.
package recorder

import (
	"context"
	"errors"
	"log/slog"

	"github.com/papercomputeco/memorag/pkg/eventstream"
	"github.com/papercomputeco/memorag/pkg/eventstream/nop"
	"github.com/papercomputeco/memorag/pkg/storage"
	"github.com/papercomputeco/memorag/pkg/worker"
)

// Config configures a Recorder.
type Config struct {
	// Driver stores answer records. Required.
	Driver storage.Driver

	// Publisher receives an event per stored record. Defaults to a no-op.
	Publisher eventstream.Publisher

	// Source is stamped on every event. Record overrides its surface and
	// corpus digest per record.
	Source eventstream.EventSource

	// Workers and QueueSize size the background pool.
	Workers   uint
	QueueSize uint

	Logger *slog.Logger
}

type job struct {
	surface string
	rec     *storage.Record
}

// Recorder persists answer records asynchronously.
type Recorder struct {
	cfg    Config
	pool   *worker.Pool[job]
	logger *slog.Logger
}

// New starts a recorder.
func New(cfg Config) (*Recorder, error) {
	if cfg.Driver == nil {
		return nil, errors.New("recorder requires a storage driver")
	}
	if cfg.Publisher == nil {
		cfg.Publisher = nop.NewPublisher()
	}
	if cfg.Workers == 0 {
		cfg.Workers = 1
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	r := &Recorder{cfg: cfg, logger: cfg.Logger}
	pool, err := worker.NewPool(context.Background(), &worker.Config[job]{
		Handler:    r.handle,
		NumWorkers: cfg.Workers,
		QueueSize:  cfg.QueueSize,
		Name:       "recorder",
		Logger:     cfg.Logger,
	})
	if err != nil {
		return nil, err
	}
	r.pool = pool
	return r, nil
}

// Record queues rec as answered through surface ("api", "mcp", "cli"). It
// reports false when the queue is full and the record was dropped.
func (r *Recorder) Record(surface string, rec *storage.Record) bool {
	if rec == nil {
		return false
	}
	rec.Fill()
	if !r.pool.Enqueue(job{surface: surface, rec: rec}) {
		r.logger.Warn("answer record dropped, queue full", "answer_id", rec.ID)
		return false
	}
	return true
}

// Driver returns the answer store.
func (r *Recorder) Driver() storage.Driver {
	return r.cfg.Driver
}

// Close drains queued records, then closes the publisher. The storage
// driver is left open for its owner.
func (r *Recorder) Close() error {
	r.pool.Close()
	return r.cfg.Publisher.Close()
}

func (r *Recorder) handle(ctx context.Context, j job) error {
	rec := j.rec
	if err := r.cfg.Driver.Put(ctx, rec); err != nil {
		r.logger.Error("storing answer record failed", "answer_id", rec.ID, "error", err)
		return err
	}

	source := r.cfg.Source
	if j.surface != "" {
		source.Surface = j.surface
	}
	if rec.CorpusDigest != "" {
		source.CorpusDigest = rec.CorpusDigest
	}
	event := eventstream.NewAnswerRecordedEvent(source, rec)
	if err := r.cfg.Publisher.PublishAnswer(ctx, event); err != nil {
		r.logger.Warn("publishing answer event failed", "answer_id", rec.ID, "error", err)
		return err
	}
	return nil
}
