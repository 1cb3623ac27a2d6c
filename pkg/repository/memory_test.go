package repository_test

import (
	"context"
	"errors"
	"strconv"
	"testing"

	"github.com/m-mizutani/ermine/pkg/model"
	"github.com/m-mizutani/ermine/pkg/repository"
	"github.com/m-mizutani/gt"
)

func putRecord(t *testing.T, repo *repository.Memory, collection string, id int, text string, embedding []float32) {
	t.Helper()
	err := repo.PutRecord(context.Background(), collection, &model.MemoryRecord{
		ID:          strconv.Itoa(id),
		Embedding:   embedding,
		Text:        text,
		Description: text,
	})
	gt.NoError(t, err)
}

func TestMemoryPutGet(t *testing.T) {
	repo := repository.NewMemory()
	ctx := context.Background()

	putRecord(t, repo, "c", 0, "Sales rose.", []float32{1, 0, 0})

	record, err := repo.GetRecord(ctx, "c", "0")
	gt.NoError(t, err)
	gt.Equal(t, record.Text, "Sales rose.")
	gt.Equal(t, record.Description, "Sales rose.")
	gt.Equal(t, record.Collection, "c")
}

func TestMemoryGetNotFound(t *testing.T) {
	repo := repository.NewMemory()
	ctx := context.Background()

	putRecord(t, repo, "c", 0, "Sales rose.", []float32{1, 0, 0})

	_, err := repo.GetRecord(ctx, "c", "1")
	gt.Error(t, err)
	gt.True(t, errors.Is(err, model.ErrRecordNotFound))

	// Collections are isolated
	_, err = repo.GetRecord(ctx, "other", "0")
	gt.Error(t, err)
	gt.True(t, errors.Is(err, model.ErrRecordNotFound))
}

func TestMemorySearchOrdering(t *testing.T) {
	repo := repository.NewMemory()
	ctx := context.Background()

	// Scores against query [1,0,0]: 1.0, ~0.94, ~0.71
	putRecord(t, repo, "c", 0, "far", []float32{0.71, 0.71, 0})
	putRecord(t, repo, "c", 1, "exact", []float32{1, 0, 0})
	putRecord(t, repo, "c", 2, "near", []float32{0.94, 0.34, 0})

	hits, err := repo.SearchRecords(ctx, "c", []float32{1, 0, 0}, 10, 0)
	gt.NoError(t, err)
	gt.Equal(t, len(hits), 3)
	gt.Equal(t, hits[0].ID, "1")
	gt.Equal(t, hits[1].ID, "2")
	gt.Equal(t, hits[2].ID, "0")
}

func TestMemorySearchTieBreaksByID(t *testing.T) {
	repo := repository.NewMemory()
	ctx := context.Background()

	putRecord(t, repo, "c", 7, "seven", []float32{1, 0})
	putRecord(t, repo, "c", 2, "two", []float32{1, 0})
	putRecord(t, repo, "c", 11, "eleven", []float32{1, 0})

	hits, err := repo.SearchRecords(ctx, "c", []float32{1, 0}, 10, 0)
	gt.NoError(t, err)
	gt.Equal(t, len(hits), 3)
	gt.Equal(t, hits[0].ID, "2")
	gt.Equal(t, hits[1].ID, "7")
	gt.Equal(t, hits[2].ID, "11")
}

func TestMemorySearchMinScoreAndLimit(t *testing.T) {
	repo := repository.NewMemory()
	ctx := context.Background()

	putRecord(t, repo, "c", 0, "exact", []float32{1, 0, 0})
	putRecord(t, repo, "c", 1, "orthogonal", []float32{0, 1, 0})
	putRecord(t, repo, "c", 2, "close", []float32{0.9, 0.44, 0})

	hits, err := repo.SearchRecords(ctx, "c", []float32{1, 0, 0}, 10, 0.77)
	gt.NoError(t, err)
	gt.Equal(t, len(hits), 2)
	gt.Equal(t, hits[0].ID, "0")
	gt.Equal(t, hits[1].ID, "2")

	hits, err = repo.SearchRecords(ctx, "c", []float32{1, 0, 0}, 1, 0)
	gt.NoError(t, err)
	gt.Equal(t, len(hits), 1)
	gt.Equal(t, hits[0].ID, "0")
}

func TestMemorySearchFloorAboveAllScores(t *testing.T) {
	repo := repository.NewMemory()
	ctx := context.Background()

	putRecord(t, repo, "c", 0, "a", []float32{0.5, 0.87})

	hits, err := repo.SearchRecords(ctx, "c", []float32{1, 0}, 10, 0.99)
	gt.NoError(t, err)
	gt.Equal(t, len(hits), 0)
}
