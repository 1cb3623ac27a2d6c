package chat

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"strings"

	"github.com/m-mizutani/ermine/pkg/adapter"
	"github.com/m-mizutani/ermine/pkg/model"
	"github.com/m-mizutani/ermine/pkg/repository"
	"github.com/m-mizutani/goerr/v2"
	"golang.org/x/sync/errgroup"
)

const (
	contextStartMarker = "--- Begin retrieved context ---"
	contextEndMarker   = "--- End retrieved context ---"

	// Independent point lookups may run concurrently
	maxNeighborFetches = 8
)

// RetrieverConfig tunes context assembly.
type RetrieverConfig struct {
	// Limit is the maximum number of similarity hits per query.
	Limit int
	// MinRelevance is the score floor below which hits are discarded.
	MinRelevance float64
	// Window is the neighbor radius: a hit at id N pulls in ids
	// N-Window..N+Window.
	Window int
}

// DefaultRetrieverConfig returns the standard retrieval tuning.
func DefaultRetrieverConfig() RetrieverConfig {
	return RetrieverConfig{
		Limit:        3,
		MinRelevance: 0.77,
		Window:       2,
	}
}

// Retriever turns a user query into a context block: relevant records plus
// their id-adjacent neighborhood, de-duplicated and ordered.
type Retriever struct {
	embedder adapter.Embedder
	store    repository.MemoryStore
	config   RetrieverConfig
}

func NewRetriever(embedder adapter.Embedder, store repository.MemoryStore, config RetrieverConfig) *Retriever {
	if config.Limit < 1 {
		config.Limit = 1
	}
	if config.Window < 0 {
		config.Window = 0
	}
	return &Retriever{
		embedder: embedder,
		store:    store,
		config:   config,
	}
}

// run is a contiguous id range to include in the context, tagged with the
// rank of its most relevant originating hit.
type run struct {
	start, end int
	rank       int
}

// BuildContext assembles the context block for query against collection.
// The block is the retrieved texts wrapped in fixed markers, followed by
// the verbatim query on its own line. With no surviving hits the body is
// empty but the block is still returned; collaborator failures surface as
// retrieval-tagged errors, which callers recover from by sending the raw
// query instead.
func (r *Retriever) BuildContext(ctx context.Context, collection, query string) (string, error) {
	embedding, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return "", goerr.Wrap(err, "failed to embed query", goerr.T(model.ErrTagRetrieval))
	}

	hits, err := r.store.SearchRecords(ctx, collection, embedding, r.config.Limit, r.config.MinRelevance)
	if err != nil {
		return "", goerr.Wrap(err, "failed to search records", goerr.T(model.ErrTagRetrieval),
			goerr.V("collection", collection))
	}

	runs := r.expandHits(hits)
	texts, err := r.fetchRuns(ctx, collection, runs)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString(contextStartMarker)
	sb.WriteString("\n")
	for _, text := range texts {
		sb.WriteString(text)
		sb.WriteString("\n")
	}
	sb.WriteString(contextEndMarker)
	sb.WriteString("\n")
	sb.WriteString(query)
	return sb.String(), nil
}

// expandHits widens each hit into its neighbor range and merges ranges
// that overlap or touch. Returned runs are ordered by the relevance of
// their best originating hit.
func (r *Retriever) expandHits(hits []*model.SearchHit) []run {
	// Deterministic hit order: score descending, sequence ascending
	sorted := make([]*model.SearchHit, 0, len(hits))
	for _, h := range hits {
		if h.Seq() >= 0 {
			sorted = append(sorted, h)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Score != sorted[j].Score {
			return sorted[i].Score > sorted[j].Score
		}
		return sorted[i].Seq() < sorted[j].Seq()
	})

	runs := make([]run, 0, len(sorted))
	for rank, h := range sorted {
		start := h.Seq() - r.config.Window
		if start < 0 {
			start = 0
		}
		runs = append(runs, run{
			start: start,
			end:   h.Seq() + r.config.Window,
			rank:  rank,
		})
	}

	// Merge ranges that share or border on ids so no text repeats
	sort.Slice(runs, func(i, j int) bool { return runs[i].start < runs[j].start })
	merged := make([]run, 0, len(runs))
	for _, cur := range runs {
		if n := len(merged); n > 0 && cur.start <= merged[n-1].end+1 {
			if cur.end > merged[n-1].end {
				merged[n-1].end = cur.end
			}
			if cur.rank < merged[n-1].rank {
				merged[n-1].rank = cur.rank
			}
			continue
		}
		merged = append(merged, cur)
	}

	sort.Slice(merged, func(i, j int) bool { return merged[i].rank < merged[j].rank })
	return merged
}

// fetchRuns looks up every id of every run and returns the surviving texts
// in run order, ascending id within a run. Ids past the end of the
// collection are simply absent, not errors. Lookups are independent and
// issued in parallel.
func (r *Retriever) fetchRuns(ctx context.Context, collection string, runs []run) ([]string, error) {
	type slot struct {
		text string
		ok   bool
	}
	slots := make([][]slot, len(runs))

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(maxNeighborFetches)
	for i, rn := range runs {
		slots[i] = make([]slot, rn.end-rn.start+1)
		for id := rn.start; id <= rn.end; id++ {
			eg.Go(func() error {
				record, err := r.store.GetRecord(ctx, collection, strconv.Itoa(id))
				if err != nil {
					if errors.Is(err, model.ErrRecordNotFound) {
						return nil // missing neighbor, omit
					}
					return goerr.Wrap(err, "failed to fetch neighbor", goerr.T(model.ErrTagRetrieval),
						goerr.V("collection", collection), goerr.V("id", id))
				}
				slots[i][id-rn.start] = slot{text: record.Text, ok: true}
				return nil
			})
		}
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	var texts []string
	for _, row := range slots {
		for _, s := range row {
			if s.ok {
				texts = append(texts, s.text)
			}
		}
	}
	return texts, nil
}
