package repository

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/ermine/pkg/model"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Firestore implements MemoryStore on Cloud Firestore. Each memory
// collection maps to one Firestore collection; the record id is the
// document id. Similarity search uses FindNearest over the embedding
// field with cosine distance.
type Firestore struct {
	client *firestore.Client
}

const distanceField = "vector_distance"

type firestoreRecord struct {
	ID          string             `firestore:"id"`
	Text        string             `firestore:"text"`
	Description string             `firestore:"description"`
	Embedding   firestore.Vector32 `firestore:"embedding"`
	CreatedAt   time.Time          `firestore:"created_at"`
}

// NewFirestore creates a Firestore-backed memory store
func NewFirestore(ctx context.Context, projectID, databaseID string) (*Firestore, error) {
	client, err := firestore.NewClientWithDatabase(ctx, projectID, databaseID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create firestore client",
			goerr.V("project", projectID), goerr.V("database", databaseID))
	}
	return &Firestore{client: client}, nil
}

func (r *Firestore) Close() error {
	return r.client.Close()
}

func (r *Firestore) PutRecord(ctx context.Context, collection string, record *model.MemoryRecord) error {
	doc := firestoreRecord{
		ID:          record.ID,
		Text:        record.Text,
		Description: record.Description,
		Embedding:   firestore.Vector32(record.Embedding),
		CreatedAt:   time.Now(),
	}
	if _, err := r.client.Collection(collection).Doc(record.ID).Set(ctx, doc); err != nil {
		return goerr.Wrap(err, "failed to put record", goerr.T(model.ErrTagStorage),
			goerr.V("collection", collection), goerr.V("id", record.ID))
	}
	return nil
}

func (r *Firestore) GetRecord(ctx context.Context, collection, id string) (*model.MemoryRecord, error) {
	snap, err := r.client.Collection(collection).Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(model.ErrRecordNotFound, "no such document",
				goerr.V("collection", collection), goerr.V("id", id))
		}
		return nil, goerr.Wrap(err, "failed to get record", goerr.T(model.ErrTagStorage),
			goerr.V("collection", collection), goerr.V("id", id))
	}

	var rec firestoreRecord
	if err := snap.DataTo(&rec); err != nil {
		return nil, goerr.Wrap(err, "failed to decode record", goerr.V("id", id))
	}

	return &model.MemoryRecord{
		Collection:  collection,
		ID:          rec.ID,
		Embedding:   []float32(rec.Embedding),
		Text:        rec.Text,
		Description: rec.Description,
	}, nil
}

func (r *Firestore) SearchRecords(ctx context.Context, collection string, embedding []float32, limit int, minScore float64) ([]*model.SearchHit, error) {
	query := r.client.Collection(collection).FindNearest(
		"embedding",
		firestore.Vector32(embedding),
		limit,
		firestore.DistanceMeasureCosine,
		&firestore.FindNearestOptions{
			DistanceResultField: distanceField,
		},
	)

	iter := query.Documents(ctx)
	defer iter.Stop()

	var hits []*model.SearchHit
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to search records", goerr.T(model.ErrTagStorage),
				goerr.V("collection", collection))
		}

		dist, ok := snap.Data()[distanceField].(float64)
		if !ok {
			continue
		}
		// Cosine distance to similarity
		score := 1.0 - dist
		if score < minScore {
			continue
		}

		var rec firestoreRecord
		if err := snap.DataTo(&rec); err != nil {
			return nil, goerr.Wrap(err, "failed to decode search hit")
		}
		hits = append(hits, &model.SearchHit{ID: rec.ID, Score: score})
	}

	return hits, nil
}
