package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/RichardoC/insurance-assistant/internal/models"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

var ErrEmptyCompletion = errors.New("model returned no content")

// Service produces assistant replies through any langchaingo chat model.
// Replies are kept short and close to deterministic; latency matters more
// than completeness here.
type Service struct {
	llm         llms.Model
	temperature float64
	maxTokens   int
}

type Options struct {
	BaseURL     string
	Token       string
	Model       string
	Temperature float64
	MaxTokens   int
}

func New(opts Options) (*Service, error) {
	// Local OpenAI-compatible servers ignore the key, but the client still
	// wants one.
	if opts.Token == "" && opts.BaseURL != "" {
		opts.Token = "fake"
	}
	clientOpts := []openai.Option{
		openai.WithToken(opts.Token),
		openai.WithModel(opts.Model),
	}
	if opts.BaseURL != "" {
		clientOpts = append(clientOpts, openai.WithBaseURL(opts.BaseURL))
	}

	llm, err := openai.New(clientOpts...)
	if err != nil {
		return nil, err
	}
	return NewWithModel(llm, opts.Temperature, opts.MaxTokens), nil
}

// NewWithModel wraps an already constructed model.
func NewWithModel(model llms.Model, temperature float64, maxTokens int) *Service {
	return &Service{llm: model, temperature: temperature, maxTokens: maxTokens}
}

// Generate sends the system instruction followed by the ordered history and
// returns the text of the first choice.
func (s *Service) Generate(ctx context.Context, system string, messages []models.Message) (string, error) {
	content := make([]llms.MessageContent, 0, len(messages)+1)
	if system != "" {
		content = append(content, llms.TextParts(llms.ChatMessageTypeSystem, system))
	}
	for _, msg := range messages {
		content = append(content, llms.TextParts(messageType(msg.Role), msg.Content))
	}

	callOpts := []llms.CallOption{llms.WithTemperature(s.temperature)}
	if s.maxTokens > 0 {
		callOpts = append(callOpts, llms.WithMaxTokens(s.maxTokens))
	}

	resp, err := s.llm.GenerateContent(ctx, content, callOpts...)
	if err != nil {
		return "", fmt.Errorf("failed to generate completion: %w", err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", ErrEmptyCompletion
	}

	reply := strings.TrimSpace(resp.Choices[0].Content)
	if reply == "" {
		return "", ErrEmptyCompletion
	}
	return reply, nil
}

func messageType(role models.Role) llms.ChatMessageType {
	switch role {
	case models.RoleAssistant:
		return llms.ChatMessageTypeAI
	case models.RoleSystem:
		return llms.ChatMessageTypeSystem
	default:
		return llms.ChatMessageTypeHuman
	}
}
