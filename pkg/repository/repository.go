// Package repository persists memory records and serves similarity search.
// A collection is a named partition of records; within it, record ids are
// the string form of a contiguous sequence starting at 0.
package repository

import (
	"context"

	"github.com/m-mizutani/ermine/pkg/model"
)

// MemoryStore defines the interface for memory record persistence
type MemoryStore interface {
	// PutRecord saves a record into the collection
	PutRecord(ctx context.Context, collection string, record *model.MemoryRecord) error

	// GetRecord retrieves a record by id. Returns an error wrapping
	// model.ErrRecordNotFound for unknown ids.
	GetRecord(ctx context.Context, collection, id string) (*model.MemoryRecord, error)

	// SearchRecords performs vector similarity search, returning up to
	// limit hits with score >= minScore, ordered by descending score.
	SearchRecords(ctx context.Context, collection string, embedding []float32, limit int, minScore float64) ([]*model.SearchHit, error)
}
