// Package session drives the per-conversation turn state machine: it owns
// the turn history and orchestrates retrieval, prompt assembly, and
// generation so that every user input yields exactly one assistant turn.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"coach/internal/domain"
	"coach/internal/prompt"
	"coach/internal/retrieval"
	"coach/internal/store"
)

// State is the turn-loop state of a session.
type State int

const (
	StateAwaitingInput State = iota
	StateRetrieving
	StateAssembling
	StateAwaitingGeneration
	StateResponded
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateAwaitingInput:
		return "awaiting_input"
	case StateRetrieving:
		return "retrieving"
	case StateAssembling:
		return "assembling"
	case StateAwaitingGeneration:
		return "awaiting_generation"
	case StateResponded:
		return "responded"
	case StateTerminated:
		return "terminated"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ErrTerminated is returned by Ask after the session has been terminated.
var ErrTerminated = errors.New("session terminated")

// Degraded replies appended as assistant turns when a backend fails. The
// session always produces some reply per turn.
const (
	retrievalDegradedReply  = "I can't reach the support documentation right now, so I can't give grounded guidance. Please escalate to a supervisor or try again in a moment."
	generationDegradedReply = "Sorry, I'm having trouble generating guidance right now. Please escalate to a supervisor if the customer needs an immediate answer."
)

// DebugEvent is the observable side channel emitted per turn when debug is
// enabled. It is for operator inspection only and never reaches the backend.
type DebugEvent struct {
	Question       string
	Titles         []string
	ContextPreview string
}

// DebugSink receives debug events.
type DebugSink func(DebugEvent)

// Config bounds a session's retrieval and history behavior.
type Config struct {
	TopK            int // sections retrieved per turn
	MaxContextChars int // character budget for the docs context
	MaxHistoryTurns int // recent turns passed to the backend
	PreviewChars    int // bound on the debug context preview
	SystemPrompt    string
	Debug           bool
}

// DefaultConfig returns the session defaults.
func DefaultConfig() Config {
	return Config{
		TopK:            3,
		MaxContextChars: 2000,
		MaxHistoryTurns: 10,
		PreviewChars:    400,
		SystemPrompt:    prompt.SystemPrompt,
	}
}

// Session is a single conversation: an ordered turn history plus the
// components needed to answer the next input. Exactly one turn is in flight
// at a time; the corpus and store may be shared with other sessions.
type Session struct {
	id      string
	cfg     Config
	corpus  domain.Corpus
	store   *store.Store
	backend domain.GenerationBackend
	logger  *slog.Logger
	sink    DebugSink

	turnMu sync.Mutex // serializes Ask

	mu         sync.Mutex // guards the fields below
	turns      []domain.Turn
	state      State
	terminated bool
	cancel     context.CancelFunc // in-flight turn, nil otherwise
}

// New creates a session over a shared corpus and embedding store.
// A nil logger uses slog.Default().
func New(corpus domain.Corpus, st *store.Store, backend domain.GenerationBackend, cfg Config, logger *slog.Logger) *Session {
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultConfig().TopK
	}
	if cfg.MaxHistoryTurns <= 0 {
		cfg.MaxHistoryTurns = DefaultConfig().MaxHistoryTurns
	}
	if cfg.PreviewChars <= 0 {
		cfg.PreviewChars = DefaultConfig().PreviewChars
	}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = prompt.SystemPrompt
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		id:      uuid.New().String(),
		cfg:     cfg,
		corpus:  corpus,
		store:   st,
		backend: backend,
		logger:  logger,
		state:   StateAwaitingInput,
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// State returns the current turn-loop state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SetDebugSink installs the observable side channel for debug events.
func (s *Session) SetDebugSink(sink DebugSink) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sink = sink
}

// Turns returns a copy of the turn history.
func (s *Session) Turns() []domain.Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Turn, len(s.turns))
	copy(out, s.turns)
	return out
}

// Ask processes one user input and always returns the resulting assistant
// turn: grounded guidance, an explicit gap disclosure, or a degraded
// backend-unavailable message. It returns an error only when the session is
// already terminated.
func (s *Session) Ask(ctx context.Context, input string) (domain.Turn, error) {
	s.turnMu.Lock()
	defer s.turnMu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.mu.Lock()
	if s.terminated {
		s.mu.Unlock()
		return domain.Turn{}, ErrTerminated
	}
	s.cancel = cancel
	s.turns = append(s.turns, domain.Turn{Role: domain.RoleUser, Text: input, Timestamp: time.Now().UTC()})
	s.state = StateRetrieving
	s.mu.Unlock()

	res, err := retrieval.Retrieve(ctx, input, s.cfg.TopK, s.store, s.corpus)
	if err != nil {
		if s.cfg.Debug {
			s.logger.Warn("retrieval failed, degrading turn", "session", s.id, "error", err)
		}
		return s.respond(retrievalDegradedReply), nil
	}

	s.setState(StateAssembling)
	pctx := prompt.Assemble(input, res, s.cfg.MaxContextChars)
	s.emitDebug(input, pctx)

	history := s.recentHistory()
	s.setState(StateAwaitingGeneration)
	reply, err := s.backend.Generate(ctx, s.cfg.SystemPrompt, pctx.Text, history)
	if err != nil {
		if s.cfg.Debug {
			s.logger.Warn("generation failed, degrading turn", "session", s.id, "backend", s.backend.Name(), "error", err)
		}
		return s.respond(generationDegradedReply), nil
	}
	return s.respond(reply), nil
}

// Terminate moves the session to its absorbing terminal state from any state
// and abandons any in-flight backend call.
func (s *Session) Terminate() {
	s.mu.Lock()
	s.terminated = true
	s.state = StateTerminated
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// respond appends the assistant turn and loops back to awaiting input.
func (s *Session) respond(text string) domain.Turn {
	turn := domain.Turn{Role: domain.RoleAssistant, Text: text, Timestamp: time.Now().UTC()}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = append(s.turns, turn)
	s.cancel = nil
	if !s.terminated {
		// Responded re-arms immediately; awaiting input is the resting state.
		s.state = StateAwaitingInput
	}
	return turn
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.terminated {
		s.state = st
	}
}

// recentHistory returns the bounded tail of turns preceding the current
// user input.
func (s *Session) recentHistory() []domain.Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.turns) == 0 {
		return nil
	}
	prior := s.turns[:len(s.turns)-1] // exclude the in-flight user turn
	if len(prior) > s.cfg.MaxHistoryTurns {
		prior = prior[len(prior)-s.cfg.MaxHistoryTurns:]
	}
	out := make([]domain.Turn, len(prior))
	copy(out, prior)
	return out
}

func (s *Session) emitDebug(question string, pctx prompt.Context) {
	if !s.cfg.Debug {
		return
	}
	preview := pctx.Docs
	if len(preview) > s.cfg.PreviewChars {
		preview = preview[:s.cfg.PreviewChars]
	}
	ev := DebugEvent{Question: question, Titles: pctx.UsedTitles, ContextPreview: preview}

	s.mu.Lock()
	sink := s.sink
	s.mu.Unlock()
	if sink != nil {
		sink(ev)
	}
	s.logger.Debug("retrieved guidance",
		"session", s.id,
		"question", question,
		"titles", pctx.UsedTitles,
		"truncated", pctx.Truncated)
}
