// Package entdriver implements storage.Driver over database/sql with ent's
// dialect-aware SQL builder, so one implementation serves SQLite and
// PostgreSQL.
package entdriver

import (
	"context"
	stdsql "database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"

	"github.com/papercomputeco/memorag/pkg/storage"
)

// Table is the answer log table name.
const Table = "memorag_answers"

var columns = []string{
	"id", "query", "mode", "path", "answer", "clue", "passages",
	"corpus_digest", "duration_ms", "error", "created_at",
}

// EntDriver provides storage operations on an ent SQL driver.
// It is database-agnostic and can be embedded by specific drivers.
type EntDriver struct {
	drv     *entsql.Driver
	dialect string
}

// New wraps db for dialect and creates the answer table when missing.
func New(ctx context.Context, name string, db *stdsql.DB) (*EntDriver, error) {
	ed := &EntDriver{
		drv:     entsql.OpenDB(name, db),
		dialect: name,
	}
	if err := ed.migrate(ctx); err != nil {
		ed.drv.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return ed, nil
}

func (ed *EntDriver) builder() *entsql.DialectBuilder {
	return entsql.Dialect(ed.dialect)
}

func (ed *EntDriver) migrate(ctx context.Context) error {
	b := ed.builder()
	timeType := "datetime"
	if ed.dialect == dialect.Postgres {
		timeType = "timestamp with time zone"
	}

	create := b.CreateTable(Table).IfNotExists().
		Columns(
			b.Column("id").Type("varchar(64)").Attr("NOT NULL"),
			b.Column("query").Type("text").Attr("NOT NULL"),
			b.Column("mode").Type("varchar(32)").Attr("NOT NULL"),
			b.Column("path").Type("varchar(32)").Attr("NOT NULL DEFAULT ''"),
			b.Column("answer").Type("text").Attr("NOT NULL DEFAULT ''"),
			b.Column("clue").Type("text").Attr("NOT NULL DEFAULT ''"),
			b.Column("passages").Type("text").Attr("NOT NULL DEFAULT '[]'"),
			b.Column("corpus_digest").Type("varchar(64)").Attr("NOT NULL DEFAULT ''"),
			b.Column("duration_ms").Type("bigint").Attr("NOT NULL DEFAULT 0"),
			b.Column("error").Type("text").Attr("NOT NULL DEFAULT ''"),
			b.Column("created_at").Type(timeType).Attr("NOT NULL"),
		).
		PrimaryKey("id")

	query, args := create.Query()
	if err := ed.drv.Exec(ctx, query, args, nil); err != nil {
		return err
	}

	index := b.CreateIndex(Table + "_created_at").IfNotExists().Table(Table).Columns("created_at")
	query, args = index.Query()
	return ed.drv.Exec(ctx, query, args, nil)
}

// Put stores a record, replacing any with the same ID.
func (ed *EntDriver) Put(ctx context.Context, rec *storage.Record) error {
	if rec == nil {
		return errors.New("cannot store nil record")
	}
	rec.Fill()

	passages, err := json.Marshal(orEmpty(rec.Passages))
	if err != nil {
		return fmt.Errorf("failed to marshal passages: %w", err)
	}

	insert := ed.builder().Insert(Table).
		Columns(columns...).
		Values(
			rec.ID, rec.Query, rec.Mode, rec.Path, rec.Answer, rec.Clue, string(passages),
			rec.CorpusDigest, rec.DurationMs, rec.Error, rec.CreatedAt.UTC(),
		).
		OnConflict(
			entsql.ConflictColumns("id"),
			entsql.ResolveWithNewValues(),
		)

	query, args := insert.Query()
	if err := ed.drv.Exec(ctx, query, args, nil); err != nil {
		return fmt.Errorf("could not execute record insert: %w", err)
	}
	return nil
}

// Get retrieves a record by ID.
func (ed *EntDriver) Get(ctx context.Context, id string) (*storage.Record, error) {
	b := ed.builder()
	sel := b.Select(columns...).From(b.Table(Table)).Where(entsql.EQ("id", id)).Limit(1)

	recs, err := ed.query(ctx, sel)
	if err != nil {
		return nil, fmt.Errorf("failed to get record: %w", err)
	}
	if len(recs) == 0 {
		return nil, storage.NotFoundError{ID: id}
	}
	return recs[0], nil
}

// List returns matching records newest first.
func (ed *EntDriver) List(ctx context.Context, opts storage.ListOptions) ([]*storage.Record, error) {
	b := ed.builder()
	sel := b.Select(columns...).From(b.Table(Table))

	var preds []*entsql.Predicate
	if opts.Mode != "" {
		preds = append(preds, entsql.EQ("mode", opts.Mode))
	}
	if !opts.Since.IsZero() {
		preds = append(preds, entsql.GTE("created_at", opts.Since.UTC()))
	}
	if len(preds) > 0 {
		sel.Where(entsql.And(preds...))
	}
	sel.OrderExpr(entsql.Expr("created_at DESC, id ASC")).Limit(opts.EffectiveLimit())

	recs, err := ed.query(ctx, sel)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	return recs, nil
}

// Stats counts records by mode and failure.
func (ed *EntDriver) Stats(ctx context.Context) (*storage.Stats, error) {
	b := ed.builder()
	st := &storage.Stats{ByMode: make(map[string]int)}

	byMode := b.Select("mode", entsql.Count("*")).From(b.Table(Table)).GroupBy("mode")
	query, args := byMode.Query()
	rows := &entsql.Rows{}
	if err := ed.drv.Query(ctx, query, args, rows); err != nil {
		return nil, fmt.Errorf("failed to count records: %w", err)
	}
	for rows.Next() {
		var (
			mode string
			n    int
		)
		if err := rows.Scan(&mode, &n); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan count: %w", err)
		}
		st.ByMode[mode] = n
		st.Total += n
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}

	failed := b.Select(entsql.Count("*")).From(b.Table(Table)).Where(entsql.NEQ("error", ""))
	query, args = failed.Query()
	rows = &entsql.Rows{}
	if err := ed.drv.Query(ctx, query, args, rows); err != nil {
		return nil, fmt.Errorf("failed to count failures: %w", err)
	}
	defer rows.Close()
	if rows.Next() {
		if err := rows.Scan(&st.Failed); err != nil {
			return nil, fmt.Errorf("failed to scan count: %w", err)
		}
	}
	return st, rows.Err()
}

// Clear removes every record.
func (ed *EntDriver) Clear(ctx context.Context) error {
	query, args := ed.builder().Delete(Table).Query()
	if err := ed.drv.Exec(ctx, query, args, nil); err != nil {
		return fmt.Errorf("failed to clear records: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (ed *EntDriver) Close() error {
	return ed.drv.Close()
}

func (ed *EntDriver) query(ctx context.Context, sel *entsql.Selector) ([]*storage.Record, error) {
	query, args := sel.Query()
	rows := &entsql.Rows{}
	if err := ed.drv.Query(ctx, query, args, rows); err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*storage.Record
	for rows.Next() {
		var (
			rec      storage.Record
			passages string
		)
		if err := rows.Scan(
			&rec.ID, &rec.Query, &rec.Mode, &rec.Path, &rec.Answer, &rec.Clue, &passages,
			&rec.CorpusDigest, &rec.DurationMs, &rec.Error, &rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		if err := json.Unmarshal([]byte(passages), &rec.Passages); err != nil {
			return nil, fmt.Errorf("record %s: failed to unmarshal passages: %w", rec.ID, err)
		}
		if len(rec.Passages) == 0 {
			rec.Passages = nil
		}
		rec.CreatedAt = rec.CreatedAt.UTC()
		out = append(out, &rec)
	}
	return out, rows.Err()
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

var _ storage.Driver = (*EntDriver)(nil)
