// Package vector provides the nearest-neighbour search backends used by the
// retriever. Every backend scores by cosine similarity and returns results
// ordered by descending score with ties broken by insertion ordinal.
package vector

import (
	"context"
	"sort"
)

// Document represents a stored passage with its embedding.
type Document struct {
	// ID is the chunk identifier the document corresponds to.
	ID string `json:"id"`

	// Ordinal is the chunk's insertion position; it breaks score ties.
	Ordinal int `json:"ordinal"`

	// Text is the passage content returned with search results.
	Text string `json:"text"`

	// Embedding is the vector representation of the document content.
	Embedding []float32 `json:"-"`
}

// QueryResult represents a search result with similarity score.
type QueryResult struct {
	Document

	// Score represents the similarity score (higher = more similar).
	Score float32 `json:"score"`
}

// Driver handles storage and retrieval of vector embeddings.
type Driver interface {
	// Add stores documents with their embeddings.
	// If a document with the same ID already exists, implementers should update
	// the document.
	Add(ctx context.Context, docs []Document) error

	// Query finds the topK most similar documents to the given embedding.
	Query(ctx context.Context, embedding []float32, topK int) ([]QueryResult, error)

	// Get retrieves documents by their IDs.
	Get(ctx context.Context, ids []string) ([]Document, error)

	// Count returns the number of stored documents.
	Count(ctx context.Context) (int, error)

	// Reset removes every stored document.
	Reset(ctx context.Context) error

	// Close releases any resources held by the driver.
	Close() error
}

// SortResults orders results by descending score, breaking ties by
// ascending ordinal and then by ID.
func SortResults(results []QueryResult) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		if results[i].Ordinal != results[j].Ordinal {
			return results[i].Ordinal < results[j].Ordinal
		}
		return results[i].ID < results[j].ID
	})
}

// TopK sorts results and truncates them to k.
func TopK(results []QueryResult, k int) []QueryResult {
	SortResults(results)
	if k > 0 && len(results) > k {
		results = results[:k]
	}
	return results
}
