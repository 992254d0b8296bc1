package session

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"coach/internal/corpus"
	"coach/internal/domain"
	"coach/internal/embedding/tfidf"
	"coach/internal/store"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// scriptedBackend records calls and replies with a canned string.
type scriptedBackend struct {
	reply       string
	err         error
	calls       int
	lastSystem  string
	lastMessage string
	lastHistory []domain.Turn
}

func (b *scriptedBackend) Name() string { return "scripted" }

func (b *scriptedBackend) Generate(_ context.Context, systemPrompt, userMessage string, history []domain.Turn) (string, error) {
	b.calls++
	b.lastSystem = systemPrompt
	b.lastMessage = userMessage
	b.lastHistory = history
	if b.err != nil {
		return "", b.err
	}
	return b.reply, nil
}

// brokenEmbedder satisfies Prepare but fails every Embed call, so indexing
// cannot complete and retrieval degrades.
type brokenEmbedder struct{}

func (brokenEmbedder) Name() string { return "broken" }

func (brokenEmbedder) Prepare(context.Context, []string) error { return nil }

func (brokenEmbedder) Dimension() int { return 0 }

func (brokenEmbedder) Embed(context.Context, string) ([]float64, error) {
	return nil, errors.New("embedder down")
}

const faqDoc = `# Cancel broadband service

To cancel broadband the customer must give 30 days notice.

# Billing dispute

Raise a billing dispute ticket for incorrect charges.
`

func readySession(t *testing.T, backend domain.GenerationBackend, cfg Config) *Session {
	t.Helper()
	corp := corpus.NewIndexer(nil).Parse(faqDoc)
	require.Len(t, corp, 2)
	st := store.New(tfidf.NewEmbedder(), nil)
	require.NoError(t, st.Ensure(context.Background(), corp))
	return New(corp, st, backend, cfg, nil)
}

func TestAskFullTurn(t *testing.T) {
	backend := &scriptedBackend{reply: "Advise the customer about the notice period."}
	s := readySession(t, backend, DefaultConfig())
	require.Equal(t, StateAwaitingInput, s.State())

	turn, err := s.Ask(context.Background(), "customer wants to cancel broadband")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAssistant, turn.Role)
	assert.Equal(t, backend.reply, turn.Text)
	assert.Equal(t, StateAwaitingInput, s.State())

	// The backend saw the grounded context, not the bare question.
	assert.Contains(t, backend.lastMessage, "Docs context:")
	assert.Contains(t, backend.lastMessage, "Cancel broadband service")
	assert.Contains(t, backend.lastMessage, "customer wants to cancel broadband")
	assert.NotEmpty(t, backend.lastSystem)

	turns := s.Turns()
	require.Len(t, turns, 2)
	assert.Equal(t, domain.RoleUser, turns[0].Role)
	assert.Equal(t, domain.RoleAssistant, turns[1].Role)
}

func TestAskPassesBoundedHistory(t *testing.T) {
	backend := &scriptedBackend{reply: "ok"}
	cfg := DefaultConfig()
	cfg.MaxHistoryTurns = 4
	s := readySession(t, backend, cfg)

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_, err := s.Ask(ctx, "billing dispute question")
		require.NoError(t, err)
	}

	// The in-flight user turn is excluded; only the bounded tail of prior
	// turns reaches the backend.
	assert.Len(t, backend.lastHistory, 4)
	assert.Equal(t, domain.RoleUser, backend.lastHistory[0].Role)
	assert.Equal(t, domain.RoleAssistant, backend.lastHistory[3].Role)
	assert.Len(t, s.Turns(), 10)
}

func TestAskGenerationFailureDegrades(t *testing.T) {
	backend := &scriptedBackend{err: errors.New("backend exploded")}
	s := readySession(t, backend, DefaultConfig())

	turn, err := s.Ask(context.Background(), "cancel broadband")
	require.NoError(t, err)
	assert.Equal(t, generationDegradedReply, turn.Text)
	assert.Equal(t, StateAwaitingInput, s.State())

	// The session stays usable after degrading.
	backend.err = nil
	backend.reply = "recovered"
	turn, err = s.Ask(context.Background(), "cancel broadband")
	require.NoError(t, err)
	assert.Equal(t, "recovered", turn.Text)
}

func TestAskRetrievalFailureDegrades(t *testing.T) {
	backend := &scriptedBackend{reply: "never reached"}
	corp := corpus.NewIndexer(nil).Parse(faqDoc)
	st := store.New(brokenEmbedder{}, nil)
	// Ensure fails, leaving the index not ready.
	require.Error(t, st.Ensure(context.Background(), corp))
	s := New(corp, st, backend, DefaultConfig(), nil)

	turn, err := s.Ask(context.Background(), "cancel broadband")
	require.NoError(t, err)
	assert.Equal(t, retrievalDegradedReply, turn.Text)
	assert.Zero(t, backend.calls)
	assert.Equal(t, StateAwaitingInput, s.State())
}

func TestAskAfterTerminate(t *testing.T) {
	backend := &scriptedBackend{reply: "ok"}
	s := readySession(t, backend, DefaultConfig())

	s.Terminate()
	assert.Equal(t, StateTerminated, s.State())

	_, err := s.Ask(context.Background(), "anything")
	assert.ErrorIs(t, err, ErrTerminated)
	assert.Equal(t, StateTerminated, s.State())
	assert.Empty(t, s.Turns())

	// Terminate is idempotent.
	s.Terminate()
	assert.Equal(t, StateTerminated, s.State())
}

func TestDebugSinkReceivesEvents(t *testing.T) {
	backend := &scriptedBackend{reply: "ok"}
	cfg := DefaultConfig()
	cfg.Debug = true
	cfg.PreviewChars = 20
	s := readySession(t, backend, cfg)

	var events []DebugEvent
	s.SetDebugSink(func(ev DebugEvent) { events = append(events, ev) })

	_, err := s.Ask(context.Background(), "cancel broadband")
	require.NoError(t, err)

	require.Len(t, events, 1)
	assert.Equal(t, "cancel broadband", events[0].Question)
	assert.Contains(t, events[0].Titles, "Cancel broadband service")
	assert.LessOrEqual(t, len(events[0].ContextPreview), 20)
}

func TestDebugSinkSilentWhenDisabled(t *testing.T) {
	backend := &scriptedBackend{reply: "ok"}
	s := readySession(t, backend, DefaultConfig())

	var events []DebugEvent
	s.SetDebugSink(func(ev DebugEvent) { events = append(events, ev) })

	_, err := s.Ask(context.Background(), "cancel broadband")
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestSessionIDsUnique(t *testing.T) {
	a := readySession(t, &scriptedBackend{reply: "ok"}, DefaultConfig())
	b := readySession(t, &scriptedBackend{reply: "ok"}, DefaultConfig())
	assert.NotEqual(t, a.ID(), b.ID())
	assert.NotEmpty(t, a.ID())
}
