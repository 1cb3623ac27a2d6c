// Package chat implements the conversation core: retrieval-augmented
// context assembly and the per-turn session state machine.
package chat

import (
	"context"
	"sync"

	"github.com/m-mizutani/ermine/pkg/adapter"
	"github.com/m-mizutani/ermine/pkg/model"
	"github.com/m-mizutani/ermine/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

const defaultSystemPrompt = "You are a helpful assistant. " +
	"Answer the user's questions using the retrieved context when it is provided. " +
	"If the context does not contain the answer, say so instead of guessing."

// Session owns one conversation. All turns against the same session are
// serialized: the mutex is held from the user-entry append until the
// assistant-entry append (or failure), so concurrent callers can never
// interleave their appends or send each other's partial history to the
// model. Create one Session per independent conversation.
type Session struct {
	mu sync.Mutex

	retriever *Retriever
	completer adapter.Completer
	storage   adapter.Storage // optional history snapshots

	collection string
	history    *model.History
}

// NewInput contains parameters for creating a chat session
type NewInput struct {
	Retriever  *Retriever
	Completer  adapter.Completer
	Storage    adapter.Storage // optional: snapshot history after each turn
	Collection string
	System     string           // optional: override the system instruction
	HistoryID  *model.HistoryID // optional: resume an existing conversation
}

func New(ctx context.Context, input NewInput) (*Session, error) {
	if input.Retriever == nil || input.Completer == nil {
		return nil, goerr.New("retriever and completer are required")
	}

	system := input.System
	if system == "" {
		system = defaultSystemPrompt
	}

	history := model.NewHistory(system)
	if input.HistoryID != nil {
		if input.Storage == nil {
			return nil, goerr.New("storage is required to resume a conversation")
		}
		loaded, err := loadHistory(ctx, input.Storage, *input.HistoryID)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to resume conversation")
		}
		history = loaded
	}

	return &Session{
		retriever:  input.Retriever,
		completer:  input.Completer,
		storage:    input.Storage,
		collection: input.Collection,
		history:    history,
	}, nil
}

// Send runs one turn: augment the message with retrieved context, append
// it as the user entry, complete against the full history, append the
// reply, and return it.
//
// A retrieval failure downgrades the turn to the raw message; it never
// aborts the turn. A completion failure leaves the user entry in place and
// returns a completion-tagged error; retrying resends the same history
// plus any new message.
func (s *Session) Send(ctx context.Context, message string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	logger := logging.From(ctx)

	content, err := s.retriever.BuildContext(ctx, s.collection, message)
	if err != nil {
		logger.Warn("context retrieval failed, sending raw query",
			"collection", s.collection, "error", err)
		content = message
	}

	s.history.Append(model.RoleUser, content)

	reply, err := s.completer.Complete(ctx, s.history.Messages)
	if err != nil {
		return "", goerr.Wrap(err, "failed to complete turn", goerr.T(model.ErrTagCompletion),
			goerr.V("history_id", s.history.ID))
	}

	s.history.Append(model.RoleAssistant, reply)

	if s.storage != nil {
		// Snapshots are advisory; a failed save must not fail the turn
		if err := saveHistory(ctx, s.storage, s.history); err != nil {
			logger.Warn("failed to snapshot history", "history_id", s.history.ID, "error", err)
		}
	}

	return reply, nil
}

// HistoryID identifies this conversation for later resumption.
func (s *Session) HistoryID() model.HistoryID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.ID
}

// History returns a snapshot copy of the transcript.
func (s *Session) History() *model.History {
	s.mu.Lock()
	defer s.mu.Unlock()

	clone := *s.history
	clone.Messages = make([]*model.Message, len(s.history.Messages))
	for i, msg := range s.history.Messages {
		m := *msg
		clone.Messages[i] = &m
	}
	return &clone
}
