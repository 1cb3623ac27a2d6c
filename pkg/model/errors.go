package model

import "github.com/m-mizutani/goerr/v2"

// Error tags classify failures so that callers can decide whether to
// degrade, resume, or surface the error. See goerr.HasTag.
var (
	// ErrTagDecoding marks input text that is not valid UTF-8. Fatal to the
	// document, recoverable for the batch.
	ErrTagDecoding = goerr.NewTag("decoding")

	// ErrTagPartialIngestion marks an ingestion that stopped partway. The
	// error carries "last_id", the last record written successfully.
	ErrTagPartialIngestion = goerr.NewTag("partial_ingestion")

	// ErrTagRetrieval marks embedding or store failures during a query.
	// Callers fall back to the un-augmented query instead of aborting.
	ErrTagRetrieval = goerr.NewTag("retrieval")

	// ErrTagCompletion marks model call failures. The turn is left
	// consistent and can be retried.
	ErrTagCompletion = goerr.NewTag("completion")

	// ErrTagStorage marks failures bubbled up from the memory store.
	ErrTagStorage = goerr.NewTag("storage")
)

// ErrRecordNotFound is returned by MemoryStore point lookups for ids that
// were never written. A missing neighbor during window expansion is normal
// and not an error condition for the retriever.
var ErrRecordNotFound = goerr.New("memory record not found", goerr.T(ErrTagStorage))
