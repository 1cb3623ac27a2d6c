package repository_test

import (
	"context"
	"errors"
	"os"
	"strconv"
	"testing"

	"github.com/m-mizutani/ermine/pkg/model"
	"github.com/m-mizutani/ermine/pkg/repository"
	"github.com/m-mizutani/gt"
)

func setupQdrant(t *testing.T) *repository.Qdrant {
	host := os.Getenv("TEST_QDRANT_HOST")
	if host == "" {
		t.Skip("TEST_QDRANT_HOST is not set")
	}
	port := 6334
	if p := os.Getenv("TEST_QDRANT_PORT"); p != "" {
		n, err := strconv.Atoi(p)
		gt.NoError(t, err)
		port = n
	}

	repo, err := repository.NewQdrant(repository.QdrantConfig{Host: host, Port: port})
	gt.NoError(t, err)
	t.Cleanup(func() {
		gt.NoError(t, repo.Close())
	})

	return repo
}

func TestQdrantPutGetSearch(t *testing.T) {
	repo := setupQdrant(t)
	ctx := context.Background()
	collection := testCollection("qdrant")

	texts := []string{"Sales rose.", "Costs fell.", "Profit grew."}
	for i, text := range texts {
		err := repo.PutRecord(ctx, collection, &model.MemoryRecord{
			ID:          strconv.Itoa(i),
			Embedding:   testVector(float32(i)),
			Text:        text,
			Description: text,
		})
		gt.NoError(t, err)
	}

	record, err := repo.GetRecord(ctx, collection, "1")
	gt.NoError(t, err)
	gt.Equal(t, record.Text, "Costs fell.")

	_, err = repo.GetRecord(ctx, collection, "9")
	gt.Error(t, err)
	gt.True(t, errors.Is(err, model.ErrRecordNotFound))

	hits, err := repo.SearchRecords(ctx, collection, testVector(2), 3, 0.9)
	gt.NoError(t, err)
	gt.True(t, len(hits) >= 1)
	gt.Equal(t, hits[0].ID, "2")
}
