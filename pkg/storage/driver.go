// Package storage persists the answer log: one record per answered query,
// so served answers can be listed, inspected and counted later.
package storage

import (
	"context"
	"time"
)

// Driver defines the interface for persisting and retrieving answer records.
type Driver interface {
	// Put stores a record. A record without an ID or CreatedAt gets one.
	Put(ctx context.Context, rec *Record) error

	// Get retrieves a record by ID.
	Get(ctx context.Context, id string) (*Record, error)

	// List returns records newest first.
	List(ctx context.Context, opts ListOptions) ([]*Record, error)

	// Stats counts the stored records.
	Stats(ctx context.Context) (*Stats, error)

	// Clear removes every record.
	Clear(ctx context.Context) error

	// Close closes the store and releases any resources.
	Close() error
}

// ListOptions filters List.
type ListOptions struct {
	// Limit caps the number of records. Zero means DefaultListLimit.
	Limit int

	// Mode keeps only records answered in this mode.
	Mode string

	// Since keeps only records created at or after this time.
	Since time.Time
}

// DefaultListLimit bounds List when no limit is given.
const DefaultListLimit = 50

// Stats summarises the answer log.
type Stats struct {
	Total  int            `json:"total"`
	Failed int            `json:"failed"`
	ByMode map[string]int `json:"by_mode"`
}
