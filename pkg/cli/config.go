package cli

import (
	"context"
	"os"

	"github.com/m-mizutani/ermine/pkg/adapter"
	"github.com/m-mizutani/ermine/pkg/repository"
	"github.com/m-mizutani/ermine/pkg/usecase/chat"
	"github.com/m-mizutani/ermine/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

// config holds configuration values
type config struct {
	logLevel string

	// Memory store
	store             string
	firestoreProject  string
	firestoreDatabase string
	qdrantHost        string
	qdrantPort        int64
	qdrantAPIKey      string
	qdrantTLS         bool

	// Adapters
	geminiProject   string
	geminiLocation  string
	completer       string
	anthropicAPIKey string
	bucket          string

	// Retrieval
	collection   string
	limit        int64
	minRelevance float64
	window       int64
}

// globalFlags returns common flags used across commands with destination config
func globalFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "Log level (debug, info, warn, error)",
			Value:       "info",
			Sources:     cli.EnvVars("ERMINE_LOG_LEVEL"),
			Destination: &cfg.logLevel,
		},
		&cli.StringFlag{
			Name:        "collection",
			Aliases:     []string{"c"},
			Usage:       "Memory collection name",
			Sources:     cli.EnvVars("ERMINE_COLLECTION"),
			Destination: &cfg.collection,
		},
		&cli.StringFlag{
			Name:        "store",
			Usage:       "Memory store backend (firestore, qdrant, memory)",
			Value:       "firestore",
			Sources:     cli.EnvVars("ERMINE_STORE"),
			Destination: &cfg.store,
		},
		&cli.StringFlag{
			Name:        "firestore-project",
			Usage:       "Google Cloud project ID for Firestore",
			Sources:     cli.EnvVars("GOOGLE_CLOUD_PROJECT"),
			Destination: &cfg.firestoreProject,
		},
		&cli.StringFlag{
			Name:        "firestore-database",
			Usage:       "Firestore database ID",
			Value:       "(default)",
			Sources:     cli.EnvVars("FIRESTORE_DATABASE_ID"),
			Destination: &cfg.firestoreDatabase,
		},
		&cli.StringFlag{
			Name:        "qdrant-host",
			Usage:       "Qdrant server host",
			Value:       "localhost",
			Sources:     cli.EnvVars("QDRANT_HOST"),
			Destination: &cfg.qdrantHost,
		},
		&cli.IntFlag{
			Name:        "qdrant-port",
			Usage:       "Qdrant gRPC port",
			Value:       6334,
			Sources:     cli.EnvVars("QDRANT_PORT"),
			Destination: &cfg.qdrantPort,
		},
		&cli.StringFlag{
			Name:        "qdrant-api-key",
			Usage:       "Qdrant API key",
			Sources:     cli.EnvVars("QDRANT_API_KEY"),
			Destination: &cfg.qdrantAPIKey,
		},
		&cli.BoolFlag{
			Name:        "qdrant-tls",
			Usage:       "Use TLS for Qdrant connection",
			Sources:     cli.EnvVars("QDRANT_TLS"),
			Destination: &cfg.qdrantTLS,
		},
		&cli.StringFlag{
			Name:        "gemini-project",
			Usage:       "Google Cloud project ID for Gemini",
			Sources:     cli.EnvVars("GEMINI_PROJECT_ID"),
			Destination: &cfg.geminiProject,
		},
		&cli.StringFlag{
			Name:        "gemini-location",
			Usage:       "Google Cloud location for Gemini",
			Value:       "us-central1",
			Sources:     cli.EnvVars("GEMINI_LOCATION"),
			Destination: &cfg.geminiLocation,
		},
	}
}

// retrievalFlags returns flags tuning context retrieval
func retrievalFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:        "limit",
			Usage:       "Maximum similarity hits per query",
			Value:       3,
			Destination: &cfg.limit,
		},
		&cli.FloatFlag{
			Name:        "min-relevance",
			Usage:       "Relevance score floor for similarity hits",
			Value:       0.77,
			Destination: &cfg.minRelevance,
		},
		&cli.IntFlag{
			Name:        "window",
			Usage:       "Neighbor radius around each hit",
			Value:       2,
			Destination: &cfg.window,
		},
	}
}

// completionFlags returns flags for the reply-generation backend
func completionFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "completer",
			Usage:       "Completion backend (gemini, claude)",
			Value:       "gemini",
			Sources:     cli.EnvVars("ERMINE_COMPLETER"),
			Destination: &cfg.completer,
		},
		&cli.StringFlag{
			Name:        "anthropic-api-key",
			Usage:       "Anthropic API key",
			Sources:     cli.EnvVars("ANTHROPIC_API_KEY"),
			Destination: &cfg.anthropicAPIKey,
		},
		&cli.StringFlag{
			Name:        "bucket",
			Usage:       "Cloud Storage bucket for history snapshots (optional)",
			Sources:     cli.EnvVars("ERMINE_HISTORY_BUCKET"),
			Destination: &cfg.bucket,
		},
	}
}

// setupLogging installs the process logger per the log-level flag
func (cfg *config) setupLogging() {
	logging.SetDefault(logging.New(cfg.logLevel, os.Stderr))
}

// newMemoryStore creates the configured memory store backend
func (cfg *config) newMemoryStore(ctx context.Context) (repository.MemoryStore, error) {
	switch cfg.store {
	case "firestore":
		if cfg.firestoreProject == "" {
			return nil, goerr.New("firestore-project is required")
		}
		return repository.NewFirestore(ctx, cfg.firestoreProject, cfg.firestoreDatabase)
	case "qdrant":
		return repository.NewQdrant(repository.QdrantConfig{
			Host:   cfg.qdrantHost,
			Port:   int(cfg.qdrantPort),
			APIKey: cfg.qdrantAPIKey,
			UseTLS: cfg.qdrantTLS,
		})
	case "memory":
		return repository.NewMemory(), nil
	default:
		return nil, goerr.New("unknown store backend", goerr.V("store", cfg.store))
	}
}

// newGemini creates the Gemini adapter used for embeddings (and, by
// default, completions)
func (cfg *config) newGemini(ctx context.Context) (*adapter.GeminiClient, error) {
	if cfg.geminiProject == "" {
		return nil, goerr.New("gemini-project is required")
	}
	if cfg.geminiLocation == "" {
		return nil, goerr.New("gemini-location is required")
	}
	return adapter.NewGemini(ctx, cfg.geminiProject, cfg.geminiLocation)
}

// newCompleter selects the completion backend
func (cfg *config) newCompleter(gemini *adapter.GeminiClient) (adapter.Completer, error) {
	switch cfg.completer {
	case "gemini":
		return gemini, nil
	case "claude":
		if cfg.anthropicAPIKey == "" {
			return nil, goerr.New("anthropic-api-key is required for the claude completer")
		}
		return adapter.NewClaude(cfg.anthropicAPIKey), nil
	default:
		return nil, goerr.New("unknown completer", goerr.V("completer", cfg.completer))
	}
}

// newStorage creates the optional history snapshot storage
func (cfg *config) newStorage(ctx context.Context) (adapter.Storage, error) {
	if cfg.bucket == "" {
		return nil, nil
	}
	storage, err := adapter.NewStorage(ctx, cfg.bucket)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create storage")
	}
	return storage, nil
}

// retrieverConfig maps the retrieval flags
func (cfg *config) retrieverConfig() chat.RetrieverConfig {
	return chat.RetrieverConfig{
		Limit:        int(cfg.limit),
		MinRelevance: cfg.minRelevance,
		Window:       int(cfg.window),
	}
}
