// Package conversation runs one conversational step: look up knowledge for
// the new utterance, replay the session, ask the model for a reply and record
// the exchange.
package conversation

import (
	"context"
	"time"

	"github.com/RichardoC/insurance-assistant/internal/models"
	"go.uber.org/zap"
)

// Retriever returns context for an utterance. It must never fail; no match
// is an empty string.
type Retriever interface {
	Lookup(query string) string
}

// Log is the append-only session history.
type Log interface {
	Replay(ctx context.Context, sessionID string) ([]models.Message, error)
	// AppendTurn records the user message and the reply together: both or
	// neither.
	AppendTurn(ctx context.Context, sessionID, userText, reply string) error
}

type Generator interface {
	Generate(ctx context.Context, system string, messages []models.Message) (string, error)
}

type Engine struct {
	kb      Retriever
	log     Log
	gen     Generator
	logger  *zap.Logger
	locks   *sessionLocks
	timeout time.Duration
	budget  int
	counter TokenCounter
}

type Option func(*Engine)

func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithGenerationTimeout bounds each model call. Zero leaves the caller's
// deadline as the only bound.
func WithGenerationTimeout(d time.Duration) Option {
	return func(e *Engine) { e.timeout = d }
}

// WithHistoryBudget caps the replayed history sent to the model at roughly
// tokens tokens, dropping the oldest messages first.
func WithHistoryBudget(tokens int, counter TokenCounter) Option {
	return func(e *Engine) {
		e.budget = tokens
		e.counter = counter
	}
}

func New(kb Retriever, log Log, gen Generator, opts ...Option) *Engine {
	e := &Engine{
		kb:     kb,
		log:    log,
		gen:    gen,
		logger: zap.NewNop(),
		locks:  newSessionLocks(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Step answers userText within sessionID and records the exchange. Steps
// for the same session run one at a time; different sessions run
// concurrently. Nothing is recorded unless a reply was generated.
func (e *Engine) Step(ctx context.Context, sessionID, userText string) (string, error) {
	if sessionID == "" {
		return "", ErrMissingSession
	}

	release, err := e.locks.acquire(ctx, sessionID)
	if err != nil {
		return "", err
	}
	defer release()

	start := time.Now()
	logger := e.logger.With(zap.String("session_id", sessionID))

	snippet := e.kb.Lookup(userText)

	history, err := e.log.Replay(ctx, sessionID)
	if err != nil {
		logger.Error("Failed to replay session", zap.String("dependency", DependencyStorage), zap.Error(err))
		return "", storageError(sessionID, err)
	}

	prompt := window(history, e.budget, e.counter)
	if dropped := len(history) - len(prompt); dropped > 0 {
		logger.Debug("Trimmed history to token budget",
			zap.Int("dropped", dropped),
			zap.Int("kept", len(prompt)))
	}
	messages := make([]models.Message, 0, len(prompt)+1)
	messages = append(messages, prompt...)
	messages = append(messages, models.Message{
		SessionID: sessionID,
		Role:      models.RoleUser,
		Content:   userText,
	})

	genCtx := ctx
	if e.timeout > 0 {
		var cancel context.CancelFunc
		genCtx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	reply, err := e.gen.Generate(genCtx, systemInstruction(snippet), messages)
	if err != nil {
		logger.Error("Failed to generate reply",
			zap.String("dependency", DependencyGeneration),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err))
		return "", generationError(sessionID, err)
	}

	// The reply exists, so record the turn even if the caller has gone away.
	if err := e.log.AppendTurn(context.WithoutCancel(ctx), sessionID, userText, reply); err != nil {
		logger.Error("Failed to record turn", zap.String("dependency", DependencyStorage), zap.Error(err))
		return "", storageError(sessionID, err)
	}

	logger.Info("Step completed",
		zap.Bool("knowledge", snippet != ""),
		zap.Int("history", len(prompt)),
		zap.Duration("duration", time.Since(start)))
	return reply, nil
}

// History replays the session's recorded messages.
func (e *Engine) History(ctx context.Context, sessionID string) ([]models.Message, error) {
	history, err := e.log.Replay(ctx, sessionID)
	if err != nil {
		return nil, storageError(sessionID, err)
	}
	return history, nil
}
