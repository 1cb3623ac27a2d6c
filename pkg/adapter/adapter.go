// Package adapter holds thin clients for the external collaborators: the
// embedding/completion models and the blob storage used for history
// snapshots. Everything behind these interfaces is opaque to the core.
package adapter

import (
	"context"

	"github.com/m-mizutani/ermine/pkg/model"
)

// Embedder maps text to a fixed-dimensionality vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Completer maps an ordered message history to a reply. The first message
// is the system instruction; implementations translate roles to whatever
// their API expects.
type Completer interface {
	Complete(ctx context.Context, messages []*model.Message) (string, error)
}
