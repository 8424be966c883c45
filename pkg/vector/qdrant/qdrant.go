// Package qdrant provides a Qdrant vector driver over the gRPC client.
package qdrant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	qc "github.com/qdrant/go-client/qdrant"

	"github.com/papercomputeco/memorag/pkg/vector"
)

const (
	// DefaultCollectionName is the collection memorag passages are stored in.
	DefaultCollectionName = "memorag"

	// DefaultPort is Qdrant's gRPC port.
	DefaultPort = 6334

	payloadID      = "chunk_id"
	payloadOrdinal = "ordinal"
	payloadText    = "text"
)

// Config holds configuration for the Qdrant driver.
type Config struct {
	Host           string
	Port           int
	APIKey         string
	UseTLS         bool
	CollectionName string
	Dimensions     uint
}

// Driver implements vector.Driver on a Qdrant collection with cosine distance.
type Driver struct {
	client     *qc.Client
	collection string
	dimensions uint
	logger     *slog.Logger
}

// NewDriver connects to Qdrant and creates the collection when missing.
func NewDriver(ctx context.Context, c Config, logger *slog.Logger) (*Driver, error) {
	if c.Host == "" {
		return nil, errors.New("qdrant host is required")
	}
	if c.Dimensions == 0 {
		return nil, errors.New("qdrant embedding dimensions cannot be 0, must be configured")
	}
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.CollectionName == "" {
		c.CollectionName = DefaultCollectionName
	}

	client, err := qc.NewClient(&qc.Config{
		Host:   c.Host,
		Port:   c.Port,
		APIKey: c.APIKey,
		UseTLS: c.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", vector.ErrConnection, err)
	}

	d := &Driver{
		client:     client,
		collection: c.CollectionName,
		dimensions: c.Dimensions,
		logger:     logger,
	}
	if err := d.ensureCollection(ctx); err != nil {
		client.Close()
		return nil, err
	}

	logger.Info("connected to qdrant",
		"host", c.Host,
		"port", c.Port,
		"collection", c.CollectionName,
	)

	return d, nil
}

func (d *Driver) ensureCollection(ctx context.Context) error {
	exists, err := d.client.CollectionExists(ctx, d.collection)
	if err != nil {
		return fmt.Errorf("%w: checking collection %q: %v", vector.ErrConnection, d.collection, err)
	}
	if exists {
		return nil
	}
	err = d.client.CreateCollection(ctx, &qc.CreateCollection{
		CollectionName: d.collection,
		VectorsConfig: qc.NewVectorsConfig(&qc.VectorParams{
			Size:     uint64(d.dimensions),
			Distance: qc.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("creating collection %q: %w", d.collection, err)
	}
	return nil
}

// pointID maps a chunk id onto the UUID point ids Qdrant accepts.
func pointID(id string) *qc.PointId {
	return qc.NewID(uuid.NewSHA1(uuid.NameSpaceURL, []byte("memorag:"+id)).String())
}

// Add upserts documents.
func (d *Driver) Add(ctx context.Context, docs []vector.Document) error {
	if len(docs) == 0 {
		return nil
	}

	points := make([]*qc.PointStruct, len(docs))
	for i, doc := range docs {
		if uint(len(doc.Embedding)) != d.dimensions {
			return fmt.Errorf("%w: document %s has %d dimensions, store has %d",
				vector.ErrDimension, doc.ID, len(doc.Embedding), d.dimensions)
		}
		points[i] = &qc.PointStruct{
			Id:      pointID(doc.ID),
			Vectors: qc.NewVectors(doc.Embedding...),
			Payload: qc.NewValueMap(map[string]any{
				payloadID:      doc.ID,
				payloadOrdinal: int64(doc.Ordinal),
				payloadText:    doc.Text,
			}),
		}
	}

	wait := true
	if _, err := d.client.Upsert(ctx, &qc.UpsertPoints{
		CollectionName: d.collection,
		Wait:           &wait,
		Points:         points,
	}); err != nil {
		return fmt.Errorf("upserting points: %w", err)
	}

	d.logger.Debug("added documents to qdrant", "count", len(docs))
	return nil
}

// Query finds the topK most similar documents to the given embedding.
func (d *Driver) Query(ctx context.Context, embedding []float32, topK int) ([]vector.QueryResult, error) {
	if uint(len(embedding)) != d.dimensions {
		return nil, fmt.Errorf("%w: query has %d dimensions, store has %d", vector.ErrDimension, len(embedding), d.dimensions)
	}
	if topK <= 0 {
		n, err := d.Count(ctx)
		if err != nil {
			return nil, err
		}
		topK = n
	}
	if topK == 0 {
		return nil, nil
	}

	limit := uint64(topK)
	points, err := d.client.Query(ctx, &qc.QueryPoints{
		CollectionName: d.collection,
		Query:          qc.NewQuery(embedding...),
		Limit:          &limit,
		WithPayload:    qc.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("querying points: %w", err)
	}

	results := make([]vector.QueryResult, 0, len(points))
	for _, p := range points {
		results = append(results, vector.QueryResult{
			Document: documentFromPayload(p.GetPayload()),
			Score:    p.GetScore(),
		})
	}

	d.logger.Debug("queried qdrant", "results", len(results))

	return vector.TopK(results, topK), nil
}

// Get retrieves documents by their IDs.
func (d *Driver) Get(ctx context.Context, ids []string) ([]vector.Document, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	pids := make([]*qc.PointId, len(ids))
	for i, id := range ids {
		pids[i] = pointID(id)
	}

	points, err := d.client.Get(ctx, &qc.GetPoints{
		CollectionName: d.collection,
		Ids:            pids,
		WithPayload:    qc.NewWithPayload(true),
		WithVectors:    qc.NewWithVectors(true),
	})
	if err != nil {
		return nil, fmt.Errorf("getting points: %w", err)
	}

	docs := make([]vector.Document, 0, len(points))
	for _, p := range points {
		doc := documentFromPayload(p.GetPayload())
		doc.Embedding = p.GetVectors().GetVector().GetData()
		docs = append(docs, doc)
	}
	return docs, nil
}

// Count returns the exact number of stored points.
func (d *Driver) Count(ctx context.Context) (int, error) {
	exact := true
	n, err := d.client.Count(ctx, &qc.CountPoints{
		CollectionName: d.collection,
		Exact:          &exact,
	})
	if err != nil {
		return 0, fmt.Errorf("counting points: %w", err)
	}
	return int(n), nil
}

// Reset drops and recreates the collection.
func (d *Driver) Reset(ctx context.Context) error {
	if err := d.client.DeleteCollection(ctx, d.collection); err != nil {
		return fmt.Errorf("deleting collection %q: %w", d.collection, err)
	}
	return d.ensureCollection(ctx)
}

// Close releases the gRPC connection.
func (d *Driver) Close() error {
	return d.client.Close()
}

func documentFromPayload(payload map[string]*qc.Value) vector.Document {
	return vector.Document{
		ID:      payload[payloadID].GetStringValue(),
		Ordinal: int(payload[payloadOrdinal].GetIntegerValue()),
		Text:    payload[payloadText].GetStringValue(),
	}
}

var _ vector.Driver = (*Driver)(nil)
