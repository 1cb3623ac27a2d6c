package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/m-mizutani/ermine/pkg/usecase/ingest"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

// manifest lists the documents of a corpus in ingestion order.
type manifest struct {
	Collection string `yaml:"collection"`
	Documents  []struct {
		Path string `yaml:"path"`
	} `yaml:"documents"`
}

func ingestCommand() *cli.Command {
	var (
		cfg          config
		manifestPath string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "manifest",
			Aliases:     []string{"m"},
			Usage:       "Path to a YAML corpus manifest",
			Destination: &manifestPath,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)

	return &cli.Command{
		Name:      "ingest",
		Usage:     "Ingest text documents into a memory collection",
		ArgsUsage: "[file...]",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg.setupLogging()

			paths, err := collectPaths(manifestPath, c.Args().Slice(), &cfg)
			if err != nil {
				return err
			}
			if len(paths) == 0 {
				return goerr.New("no input documents; pass file paths or --manifest")
			}
			if cfg.collection == "" {
				return goerr.New("collection is required (flag or manifest)")
			}

			documents := make([]ingest.Document, 0, len(paths))
			for _, p := range paths {
				data, err := os.ReadFile(p)
				if err != nil {
					return goerr.Wrap(err, "failed to read document", goerr.V("path", p))
				}
				documents = append(documents, ingest.Document{
					SourceID: p,
					Text:     string(data),
				})
			}

			store, err := cfg.newMemoryStore(ctx)
			if err != nil {
				return err
			}

			gemini, err := cfg.newGemini(ctx)
			if err != nil {
				return err
			}

			uc := ingest.New(gemini, store)
			count, err := uc.Ingest(ctx, cfg.collection, documents)
			if err != nil {
				return goerr.Wrap(err, "ingestion failed", goerr.V("written", count))
			}

			fmt.Fprintf(c.Root().Writer, "Ingested %d records into collection %q\n", count, cfg.collection)
			return nil
		},
	}
}

// collectPaths resolves the manifest and positional globs into an ordered
// document path list. Manifest documents come first, in manifest order.
func collectPaths(manifestPath string, args []string, cfg *config) ([]string, error) {
	var paths []string

	if manifestPath != "" {
		data, err := os.ReadFile(manifestPath)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to read manifest", goerr.V("path", manifestPath))
		}
		var m manifest
		if err := yaml.Unmarshal(data, &m); err != nil {
			return nil, goerr.Wrap(err, "failed to parse manifest", goerr.V("path", manifestPath))
		}
		if m.Collection != "" {
			cfg.collection = m.Collection
		}
		base := filepath.Dir(manifestPath)
		for _, doc := range m.Documents {
			p := doc.Path
			if !filepath.IsAbs(p) {
				p = filepath.Join(base, p)
			}
			paths = append(paths, p)
		}
	}

	for _, arg := range args {
		matches, err := filepath.Glob(arg)
		if err != nil {
			return nil, goerr.Wrap(err, "invalid glob pattern", goerr.V("pattern", arg))
		}
		if matches == nil {
			matches = []string{arg}
		}
		paths = append(paths, matches...)
	}

	return paths, nil
}
