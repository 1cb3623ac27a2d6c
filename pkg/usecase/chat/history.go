package chat

import (
	"context"
	"encoding/json"
	"io"

	"github.com/m-mizutani/ermine/pkg/adapter"
	"github.com/m-mizutani/ermine/pkg/model"
	"github.com/m-mizutani/goerr/v2"
)

func historyKey(id model.HistoryID) string {
	return "histories/" + string(id) + ".json"
}

// loadHistory restores a conversation snapshot from storage
func loadHistory(ctx context.Context, storage adapter.Storage, id model.HistoryID) (*model.History, error) {
	reader, err := storage.Get(ctx, historyKey(id))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get history from storage", goerr.V("history_id", id))
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read history data")
	}

	var history model.History
	if err := json.Unmarshal(data, &history); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal history")
	}
	if len(history.Messages) == 0 {
		return nil, goerr.New("history snapshot is empty", goerr.V("history_id", id))
	}

	return &history, nil
}

// saveHistory writes the full conversation snapshot to storage
func saveHistory(ctx context.Context, storage adapter.Storage, history *model.History) error {
	writer, err := storage.Put(ctx, historyKey(history.ID))
	if err != nil {
		return goerr.Wrap(err, "failed to create storage writer")
	}

	data, err := json.Marshal(history)
	if err != nil {
		return goerr.Wrap(err, "failed to marshal history")
	}

	if _, err := writer.Write(data); err != nil {
		return goerr.Wrap(err, "failed to write history to storage")
	}

	if err := writer.Close(); err != nil {
		return goerr.Wrap(err, "failed to close storage writer")
	}

	return nil
}
