// Package flat provides an exact, in-process vector driver. It scans every
// stored vector on each query, which keeps results exact and reproducible;
// corpora handled by a single memory state are small enough for that.
package flat

import (
	"context"
	"fmt"
	"sync"

	"github.com/papercomputeco/memorag/pkg/vector"
)

type entry struct {
	doc  vector.Document
	norm float64
}

// Driver implements vector.Driver over an in-memory slice.
type Driver struct {
	mu      sync.RWMutex
	fixed   int
	dims    int
	entries []entry
	byID    map[string]int
}

// NewDriver creates an empty flat driver. A dims of 0 adopts the dimension
// of the first added document.
func NewDriver(dims int) *Driver {
	return &Driver{
		fixed: dims,
		dims:  dims,
		byID:  make(map[string]int),
	}
}

// Add stores documents, replacing any with the same ID in place.
func (d *Driver) Add(_ context.Context, docs []vector.Document) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, doc := range docs {
		if d.dims == 0 {
			d.dims = len(doc.Embedding)
		}
		if len(doc.Embedding) != d.dims {
			return fmt.Errorf("%w: document %s has %d dimensions, store has %d",
				vector.ErrDimension, doc.ID, len(doc.Embedding), d.dims)
		}

		e := entry{doc: doc, norm: vector.Norm(doc.Embedding)}
		if i, ok := d.byID[doc.ID]; ok {
			d.entries[i] = e
			continue
		}
		d.byID[doc.ID] = len(d.entries)
		d.entries = append(d.entries, e)
	}
	return nil
}

// Query scores every document and returns the topK best.
func (d *Driver) Query(_ context.Context, embedding []float32, topK int) ([]vector.QueryResult, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if len(d.entries) > 0 && len(embedding) != d.dims {
		return nil, fmt.Errorf("%w: query has %d dimensions, store has %d", vector.ErrDimension, len(embedding), d.dims)
	}

	qNorm := vector.Norm(embedding)
	results := make([]vector.QueryResult, len(d.entries))
	for i, e := range d.entries {
		doc := e.doc
		doc.Embedding = nil
		results[i] = vector.QueryResult{
			Document: doc,
			Score:    vector.Cosine(embedding, e.doc.Embedding, qNorm, e.norm),
		}
	}

	return vector.TopK(results, topK), nil
}

// Get retrieves documents by ID, in the order requested. Unknown IDs are skipped.
func (d *Driver) Get(_ context.Context, ids []string) ([]vector.Document, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	docs := make([]vector.Document, 0, len(ids))
	for _, id := range ids {
		if i, ok := d.byID[id]; ok {
			docs = append(docs, d.entries[i].doc)
		}
	}
	return docs, nil
}

// All returns every stored document in insertion order.
func (d *Driver) All() []vector.Document {
	d.mu.RLock()
	defer d.mu.RUnlock()

	docs := make([]vector.Document, len(d.entries))
	for i, e := range d.entries {
		docs[i] = e.doc
	}
	return docs
}

// Dimensions returns the store's vector dimension, or 0 while empty.
func (d *Driver) Dimensions() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.dims
}

// Count returns the number of stored documents.
func (d *Driver) Count(_ context.Context) (int, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.entries), nil
}

// Reset removes every document. A dimension adopted from the first document
// is forgotten; one passed to NewDriver is kept.
func (d *Driver) Reset(_ context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dims = d.fixed
	d.entries = nil
	d.byID = make(map[string]int)
	return nil
}

// Close is a no-op.
func (d *Driver) Close() error {
	return nil
}

var _ vector.Driver = (*Driver)(nil)
