// Package ingest converts raw documents into sequentially-identified
// memory records: segment, embed, persist.
package ingest

import (
	"context"
	"strconv"

	"github.com/m-mizutani/ermine/pkg/adapter"
	"github.com/m-mizutani/ermine/pkg/model"
	"github.com/m-mizutani/ermine/pkg/repository"
	"github.com/m-mizutani/ermine/pkg/segment"
	"github.com/m-mizutani/ermine/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

const progressInterval = 25

// Document is one ingestion input: an identifier for logging plus the raw
// text to segment.
type Document struct {
	SourceID string
	Text     string
}

type UseCase struct {
	segmenter *segment.Segmenter
	embedder  adapter.Embedder
	store     repository.MemoryStore
}

func New(embedder adapter.Embedder, store repository.MemoryStore) *UseCase {
	return &UseCase{
		segmenter: segment.New(),
		embedder:  embedder,
		store:     store,
	}
}

// Ingest writes one memory record per sentence of every document, in
// document-then-sentence order, and returns the number of records written.
//
// A single id counter spans the whole batch, so ids in a fresh collection
// are exactly 0..K-1 and adjacent ids hold adjacent sentences — including
// across the seam between two consecutively supplied documents. The counter
// restarts on every call, so a second Ingest into the same collection
// overwrites ids 0..K-1 in place; use a fresh collection per corpus.
//
// A document that is not valid UTF-8 is skipped with a warning and the
// batch continues. An embedding or storage failure halts the batch: records
// written so far stay in place, and the returned error is tagged
// ErrTagPartialIngestion and carries "last_id" for resuming or auditing.
func (u *UseCase) Ingest(ctx context.Context, collection string, documents []Document) (int, error) {
	logger := logging.From(ctx)
	nextID := 0

	for _, doc := range documents {
		sentences, err := u.segmenter.Segment(doc.Text)
		if err != nil {
			if goerr.HasTag(err, model.ErrTagDecoding) {
				logger.Warn("skipping undecodable document",
					"source", doc.SourceID, "error", err)
				continue
			}
			return nextID, goerr.Wrap(err, "failed to segment document",
				goerr.V("source", doc.SourceID))
		}

		for _, sentence := range sentences {
			embedding, err := u.embedder.Embed(ctx, sentence)
			if err != nil {
				return nextID, goerr.Wrap(err, "failed to embed sentence",
					goerr.T(model.ErrTagPartialIngestion),
					goerr.V("source", doc.SourceID),
					goerr.V("last_id", nextID-1))
			}

			record := &model.MemoryRecord{
				Collection:  collection,
				ID:          strconv.Itoa(nextID),
				Embedding:   embedding,
				Text:        sentence,
				Description: sentence,
			}
			if err := u.store.PutRecord(ctx, collection, record); err != nil {
				return nextID, goerr.Wrap(err, "failed to save record",
					goerr.T(model.ErrTagPartialIngestion),
					goerr.V("source", doc.SourceID),
					goerr.V("last_id", nextID-1))
			}

			nextID++
			if nextID%progressInterval == 0 {
				logger.Info("ingestion progress", "records", nextID, "collection", collection)
			}
		}
	}

	logger.Info("ingestion finished", "records", nextID, "collection", collection)
	return nextID, nil
}
