package model

import "strconv"

// MemoryRecord is one unit of ingested knowledge: a single segmented
// sentence with its embedding. Records are created once by the ingestor and
// never mutated. The id is the string form of a non-negative integer,
// assigned in strictly increasing order within a collection, so id N and
// id N+1 hold adjacent sentences in ingestion order.
type MemoryRecord struct {
	Collection  string    `json:"collection"`
	ID          string    `json:"id"`
	Embedding   []float32 `json:"embedding"`
	Text        string    `json:"text"`
	Description string    `json:"description"`
}

// SearchHit is a transient similarity result: a record id and its
// relevance score. Scores are cosine similarity; stores that report
// distances convert before returning.
type SearchHit struct {
	ID    string
	Score float64
}

// Seq returns the numeric position of the hit within its collection.
// Returns -1 for ids that are not sequence numbers.
func (h *SearchHit) Seq() int {
	n, err := strconv.Atoi(h.ID)
	if err != nil || n < 0 {
		return -1
	}
	return n
}
