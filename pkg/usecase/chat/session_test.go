package chat_test

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/m-mizutani/ermine/pkg/model"
	"github.com/m-mizutani/ermine/pkg/repository"
	"github.com/m-mizutani/ermine/pkg/usecase/chat"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
)

// mockCompleter records the history snapshot of each call and replies with
// a canned string
type mockCompleter struct {
	mu        sync.Mutex
	snapshots [][]*model.Message
	reply     string
	fail      bool
}

func (m *mockCompleter) Complete(ctx context.Context, messages []*model.Message) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return "", goerr.New("model unavailable")
	}
	snapshot := make([]*model.Message, len(messages))
	copy(snapshot, messages)
	m.snapshots = append(m.snapshots, snapshot)
	if m.reply != "" {
		return m.reply, nil
	}
	return "reply-" + messages[len(messages)-1].Content, nil
}

// mockStorage keeps snapshots in a map
type mockStorage struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMockStorage() *mockStorage {
	return &mockStorage{data: make(map[string][]byte)}
}

type mockWriteCloser struct {
	*bytes.Buffer
	storage *mockStorage
	key     string
}

func (m *mockWriteCloser) Close() error {
	m.storage.mu.Lock()
	defer m.storage.mu.Unlock()
	m.storage.data[m.key] = m.Buffer.Bytes()
	return nil
}

func (m *mockStorage) Put(ctx context.Context, key string) (io.WriteCloser, error) {
	return &mockWriteCloser{Buffer: &bytes.Buffer{}, storage: m, key: key}, nil
}

func (m *mockStorage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.data[key]
	if !ok {
		return nil, goerr.New("data not found", goerr.V("key", key))
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// newTestSession builds a session over the in-memory store with one
// seeded record so retrieval succeeds
func newTestSession(t *testing.T, completer *mockCompleter, storage *mockStorage) *chat.Session {
	t.Helper()
	store := repository.NewMemory()
	seedCollection(t, store, "c", []string{"Sales rose."}, [][]float32{{1, 0, 0}})

	embedder := &mapEmbedder{vectors: map[string][]float32{
		"what happened?": {1, 0, 0},
		"and then?":      {1, 0, 0},
	}}

	input := chat.NewInput{
		Retriever:  chat.NewRetriever(embedder, store, chat.DefaultRetrieverConfig()),
		Completer:  completer,
		Collection: "c",
	}
	if storage != nil {
		input.Storage = storage
	}

	session, err := chat.New(context.Background(), input)
	gt.NoError(t, err)
	return session
}

func TestSessionTurnAugmentsAndAppends(t *testing.T) {
	completer := &mockCompleter{reply: "it went well"}
	session := newTestSession(t, completer, nil)

	reply, err := session.Send(context.Background(), "what happened?")
	gt.NoError(t, err)
	gt.Equal(t, reply, "it went well")

	history := session.History()
	gt.Equal(t, len(history.Messages), 3)
	gt.Equal(t, history.Messages[0].Role, model.RoleSystem)
	gt.Equal(t, history.Messages[1].Role, model.RoleUser)
	gt.Equal(t, history.Messages[2].Role, model.RoleAssistant)

	// The user entry carries the augmented content and ends with the
	// verbatim message
	gt.True(t, strings.Contains(history.Messages[1].Content, "Sales rose."))
	gt.True(t, strings.HasSuffix(history.Messages[1].Content, "what happened?"))
	gt.Equal(t, history.Messages[2].Content, "it went well")
}

func TestSessionRetrievalFailureFallsBackToRawQuery(t *testing.T) {
	completer := &mockCompleter{reply: "best effort"}
	store := repository.NewMemory()

	session, err := chat.New(context.Background(), chat.NewInput{
		Retriever:  chat.NewRetriever(&failEmbedder{}, store, chat.DefaultRetrieverConfig()),
		Completer:  completer,
		Collection: "c",
	})
	gt.NoError(t, err)

	reply, err := session.Send(context.Background(), "what happened?")
	gt.NoError(t, err)
	gt.Equal(t, reply, "best effort")

	// The turn proceeded with the unmodified message
	history := session.History()
	gt.Equal(t, len(history.Messages), 3)
	gt.Equal(t, history.Messages[1].Content, "what happened?")
}

func TestSessionCompletionFailureKeepsUserEntry(t *testing.T) {
	completer := &mockCompleter{fail: true}
	session := newTestSession(t, completer, nil)

	_, err := session.Send(context.Background(), "what happened?")
	gt.Error(t, err)
	gt.True(t, goerr.HasTag(err, model.ErrTagCompletion))

	// User entry remains, no assistant entry; the session stays usable
	history := session.History()
	gt.Equal(t, len(history.Messages), 2)
	gt.Equal(t, history.Messages[1].Role, model.RoleUser)

	completer.fail = false
	completer.reply = "recovered"
	reply, err := session.Send(context.Background(), "and then?")
	gt.NoError(t, err)
	gt.Equal(t, reply, "recovered")

	history = session.History()
	gt.Equal(t, len(history.Messages), 4)
	gt.Equal(t, history.Messages[3].Role, model.RoleAssistant)
}

func TestSessionConcurrentTurnsDoNotInterleave(t *testing.T) {
	completer := &mockCompleter{}
	session := newTestSession(t, completer, nil)

	var wg sync.WaitGroup
	for range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := session.Send(context.Background(), "what happened?")
			gt.NoError(t, err)
		}()
	}
	wg.Wait()

	// Exactly 4 new entries, strictly alternating user/assistant
	history := session.History()
	gt.Equal(t, len(history.Messages), 5)
	for i := 1; i < len(history.Messages); i++ {
		want := model.RoleUser
		if i%2 == 0 {
			want = model.RoleAssistant
		}
		gt.Equal(t, history.Messages[i].Role, want)
	}

	// Each completion call saw a snapshot ending in its own user entry,
	// never the other turn's partial state
	gt.Equal(t, len(completer.snapshots), 2)
	gt.Equal(t, len(completer.snapshots[0]), 2)
	gt.Equal(t, len(completer.snapshots[1]), 4)
}

func TestSessionSnapshotAndResume(t *testing.T) {
	storage := newMockStorage()
	completer := &mockCompleter{reply: "first answer"}
	session := newTestSession(t, completer, storage)

	_, err := session.Send(context.Background(), "what happened?")
	gt.NoError(t, err)

	id := session.HistoryID()
	gt.Equal(t, len(storage.data), 1)

	// Resume from the snapshot into a fresh session
	store := repository.NewMemory()
	seedCollection(t, store, "c", []string{"Sales rose."}, [][]float32{{1, 0, 0}})
	embedder := &mapEmbedder{vectors: map[string][]float32{"and then?": {1, 0, 0}}}

	resumedCompleter := &mockCompleter{reply: "second answer"}
	resumed, err := chat.New(context.Background(), chat.NewInput{
		Retriever:  chat.NewRetriever(embedder, store, chat.DefaultRetrieverConfig()),
		Completer:  resumedCompleter,
		Storage:    storage,
		Collection: "c",
		HistoryID:  &id,
	})
	gt.NoError(t, err)
	gt.Equal(t, resumed.HistoryID(), id)

	reply, err := resumed.Send(context.Background(), "and then?")
	gt.NoError(t, err)
	gt.Equal(t, reply, "second answer")

	// Resumed history carries the prior exchange
	history := resumed.History()
	gt.Equal(t, len(history.Messages), 5)
	gt.Equal(t, history.Messages[2].Content, "first answer")
}

func TestSessionResumeRequiresStorage(t *testing.T) {
	id := model.NewHistoryID()
	_, err := chat.New(context.Background(), chat.NewInput{
		Retriever:  chat.NewRetriever(&failEmbedder{}, repository.NewMemory(), chat.DefaultRetrieverConfig()),
		Completer:  &mockCompleter{},
		Collection: "c",
		HistoryID:  &id,
	})
	gt.Error(t, err)
}
