package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/chzyer/readline"
	"github.com/m-mizutani/ermine/pkg/model"
	"github.com/m-mizutani/ermine/pkg/usecase/chat"
	"github.com/m-mizutani/ermine/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func chatCommand() *cli.Command {
	var (
		cfg       config
		historyID string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "history-id",
			Usage:       "Resume a previous conversation (requires --bucket)",
			Destination: &historyID,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, retrievalFlags(&cfg)...)
	flags = append(flags, completionFlags(&cfg)...)

	return &cli.Command{
		Name:  "chat",
		Usage: "Interactive chat over an ingested memory collection",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg.setupLogging()
			if cfg.collection == "" {
				return goerr.New("collection is required")
			}

			store, err := cfg.newMemoryStore(ctx)
			if err != nil {
				return err
			}

			gemini, err := cfg.newGemini(ctx)
			if err != nil {
				return err
			}

			completer, err := cfg.newCompleter(gemini)
			if err != nil {
				return err
			}

			storage, err := cfg.newStorage(ctx)
			if err != nil {
				return err
			}

			input := chat.NewInput{
				Retriever:  chat.NewRetriever(gemini, store, cfg.retrieverConfig()),
				Completer:  completer,
				Storage:    storage,
				Collection: cfg.collection,
			}
			if historyID != "" {
				id := model.HistoryID(historyID)
				input.HistoryID = &id
			}

			session, err := chat.New(ctx, input)
			if err != nil {
				return goerr.Wrap(err, "failed to create chat session")
			}

			w := c.Root().Writer
			fmt.Fprintf(w, "Chat session started over collection %q. Type 'exit' to quit.\n", cfg.collection)
			if storage != nil {
				fmt.Fprintf(w, "History ID: %s\n", session.HistoryID())
			}

			rl, err := readline.New("> ")
			if err != nil {
				return goerr.Wrap(err, "failed to initialize prompt")
			}
			defer rl.Close()

			logger := logging.From(ctx)
			for {
				line, err := rl.Readline()
				if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
					break
				}
				if err != nil {
					return goerr.Wrap(err, "failed to read input")
				}

				message := strings.TrimSpace(line)
				if message == "" {
					continue
				}
				if message == "exit" {
					break
				}

				sp := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
				sp.Suffix = " thinking..."
				sp.Start()
				reply, err := session.Send(ctx, message)
				sp.Stop()

				if err != nil {
					// Completion failures are retriable; keep the session open
					logger.Error("turn failed", "error", err)
					continue
				}

				fmt.Fprintln(w, reply)
			}

			return nil
		},
	}
}
