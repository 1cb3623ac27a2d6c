package repository

import (
	"context"
	"strconv"
	"sync"

	"github.com/m-mizutani/ermine/pkg/model"
	"github.com/m-mizutani/goerr/v2"
	"github.com/qdrant/go-client/qdrant"
)

// Qdrant implements MemoryStore on a Qdrant server. One memory collection
// maps to one Qdrant collection; the numeric record id becomes the point
// id, and text/description live in the payload. Qdrant reports cosine
// similarity directly, so scores pass through unchanged.
type Qdrant struct {
	client *qdrant.Client

	mu    sync.Mutex
	known map[string]bool // collections verified to exist
}

type QdrantConfig struct {
	Host   string
	Port   int
	APIKey string
	UseTLS bool
}

// NewQdrant creates a Qdrant-backed memory store
func NewQdrant(cfg QdrantConfig) (*Qdrant, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create qdrant client", goerr.V("host", cfg.Host))
	}
	return &Qdrant{
		client: client,
		known:  make(map[string]bool),
	}, nil
}

func (r *Qdrant) Close() error {
	return r.client.Close()
}

// ensureCollection creates the collection on first use, sized to the
// vectors being written.
func (r *Qdrant) ensureCollection(ctx context.Context, collection string, dimension int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.known[collection] {
		return nil
	}

	exists, err := r.client.CollectionExists(ctx, collection)
	if err != nil {
		return goerr.Wrap(err, "failed to check collection", goerr.V("collection", collection))
	}
	if !exists {
		err := r.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(dimension),
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil {
			return goerr.Wrap(err, "failed to create collection", goerr.V("collection", collection))
		}
	}
	r.known[collection] = true
	return nil
}

func pointID(id string) (uint64, error) {
	n, err := strconv.ParseUint(id, 10, 64)
	if err != nil {
		return 0, goerr.Wrap(err, "record id is not a sequence number", goerr.V("id", id))
	}
	return n, nil
}

func (r *Qdrant) PutRecord(ctx context.Context, collection string, record *model.MemoryRecord) error {
	if err := r.ensureCollection(ctx, collection, len(record.Embedding)); err != nil {
		return goerr.Wrap(err, "failed to prepare collection", goerr.T(model.ErrTagStorage))
	}

	num, err := pointID(record.ID)
	if err != nil {
		return err
	}

	_, err = r.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collection,
		Wait:           qdrant.PtrOf(true),
		Points: []*qdrant.PointStruct{
			{
				Id:      qdrant.NewIDNum(num),
				Vectors: qdrant.NewVectors(record.Embedding...),
				Payload: qdrant.NewValueMap(map[string]any{
					"text":        record.Text,
					"description": record.Description,
				}),
			},
		},
	})
	if err != nil {
		return goerr.Wrap(err, "failed to upsert point", goerr.T(model.ErrTagStorage),
			goerr.V("collection", collection), goerr.V("id", record.ID))
	}
	return nil
}

func (r *Qdrant) GetRecord(ctx context.Context, collection, id string) (*model.MemoryRecord, error) {
	num, err := pointID(id)
	if err != nil {
		return nil, err
	}

	points, err := r.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: collection,
		Ids:            []*qdrant.PointId{qdrant.NewIDNum(num)},
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(false),
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get point", goerr.T(model.ErrTagStorage),
			goerr.V("collection", collection), goerr.V("id", id))
	}
	if len(points) == 0 {
		return nil, goerr.Wrap(model.ErrRecordNotFound, "no such point",
			goerr.V("collection", collection), goerr.V("id", id))
	}

	payload := points[0].Payload
	return &model.MemoryRecord{
		Collection:  collection,
		ID:          id,
		Text:        payload["text"].GetStringValue(),
		Description: payload["description"].GetStringValue(),
	}, nil
}

func (r *Qdrant) SearchRecords(ctx context.Context, collection string, embedding []float32, limit int, minScore float64) ([]*model.SearchHit, error) {
	points, err := r.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: collection,
		Query:          qdrant.NewQuery(embedding...),
		Limit:          qdrant.PtrOf(uint64(limit)),
		ScoreThreshold: qdrant.PtrOf(float32(minScore)),
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query points", goerr.T(model.ErrTagStorage),
			goerr.V("collection", collection))
	}

	hits := make([]*model.SearchHit, 0, len(points))
	for _, p := range points {
		hits = append(hits, &model.SearchHit{
			ID:    strconv.FormatUint(p.Id.GetNum(), 10),
			Score: float64(p.Score),
		})
	}
	return hits, nil
}
