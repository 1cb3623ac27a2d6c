package repository

import (
	"context"
	"math"
	"sort"
	"strconv"
	"sync"

	"github.com/m-mizutani/ermine/pkg/model"
	"github.com/m-mizutani/goerr/v2"
)

// Memory is an in-process MemoryStore using brute-force cosine similarity.
// It backs tests and local runs that have no external vector store.
type Memory struct {
	mu          sync.RWMutex
	collections map[string]map[string]*model.MemoryRecord
}

func NewMemory() *Memory {
	return &Memory{
		collections: make(map[string]map[string]*model.MemoryRecord),
	}
}

func (r *Memory) PutRecord(ctx context.Context, collection string, record *model.MemoryRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	records, ok := r.collections[collection]
	if !ok {
		records = make(map[string]*model.MemoryRecord)
		r.collections[collection] = records
	}
	clone := *record
	clone.Collection = collection
	records[record.ID] = &clone
	return nil
}

func (r *Memory) GetRecord(ctx context.Context, collection, id string) (*model.MemoryRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	record, ok := r.collections[collection][id]
	if !ok {
		return nil, goerr.Wrap(model.ErrRecordNotFound, "no such record",
			goerr.V("collection", collection), goerr.V("id", id))
	}
	clone := *record
	return &clone, nil
}

func (r *Memory) SearchRecords(ctx context.Context, collection string, embedding []float32, limit int, minScore float64) ([]*model.SearchHit, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var hits []*model.SearchHit
	for id, record := range r.collections[collection] {
		score := cosineSimilarity(embedding, record.Embedding)
		if score < minScore {
			continue
		}
		hits = append(hits, &model.SearchHit{ID: id, Score: score})
	}

	// Descending score, ascending sequence number on ties for determinism
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return seqOf(hits[i].ID) < seqOf(hits[j].ID)
	})
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func seqOf(id string) int {
	n, err := strconv.Atoi(id)
	if err != nil {
		return math.MaxInt
	}
	return n
}

func cosineSimilarity(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
