// Package app wires configuration into the components shared by the server
// and the terminal client.
package app

import (
	"github.com/RichardoC/insurance-assistant/internal/config"
	"github.com/RichardoC/insurance-assistant/internal/conversation"
	"github.com/RichardoC/insurance-assistant/internal/db"
	"github.com/RichardoC/insurance-assistant/internal/knowledge"
	"github.com/RichardoC/insurance-assistant/internal/llm"
	"github.com/RichardoC/insurance-assistant/internal/speech"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

type App struct {
	DB        *db.Database
	Knowledge *knowledge.Base
	Engine    *conversation.Engine
	Whisper   *speech.Whisper
}

// NewLogger returns a production logger, or a development one in debug
// mode.
func NewLogger(cfg config.Config) (*zap.Logger, error) {
	if cfg.Debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// LoadKnowledge returns the configured table. A table that cannot be read is
// replaced by an empty one so the assistant still answers, just without
// context.
func LoadKnowledge(path string, logger *zap.Logger) *knowledge.Base {
	if path == "" {
		return knowledge.Default()
	}
	kb, err := knowledge.Load(path)
	if err != nil {
		logger.Warn("Failed to load knowledge base, continuing without it",
			zap.String("path", path),
			zap.Error(err))
		return &knowledge.Base{}
	}
	return kb
}

func New(cfg config.Config, logger *zap.Logger) (*App, error) {
	database, err := db.New(cfg.DBPath)
	if err != nil {
		logger.Error("Failed to initialize database",
			zap.Error(err),
			zap.String("dbPath", cfg.DBPath))
		return nil, err
	}

	generator, err := llm.New(llm.Options{
		BaseURL:     cfg.BaseURL,
		Token:       cfg.APIKey,
		Model:       cfg.Model,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
	})
	if err != nil {
		return nil, multierr.Append(err, database.Close())
	}

	var counter conversation.TokenCounter
	if cfg.HistoryTokenBudget > 0 {
		tc, err := llm.NewTiktokenCounter(cfg.Model)
		if err != nil {
			logger.Warn("Failed to load tokenizer, estimating token counts", zap.Error(err))
			counter = llm.ApproxCounter{}
		} else {
			counter = tc
		}
	}

	kb := LoadKnowledge(cfg.KnowledgePath, logger)
	engine := conversation.New(kb, database, generator,
		conversation.WithLogger(logger),
		conversation.WithGenerationTimeout(cfg.GenerationTimeout),
		conversation.WithHistoryBudget(cfg.HistoryTokenBudget, counter),
	)

	return &App{
		DB:        database,
		Knowledge: kb,
		Engine:    engine,
		Whisper:   speech.NewWhisper(cfg.BaseURL, cfg.APIKey, cfg.TranscriptionModel, cfg.TranscriptionLanguage),
	}, nil
}

func (a *App) Close() error {
	return a.DB.Close()
}
