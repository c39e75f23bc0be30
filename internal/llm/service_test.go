package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/RichardoC/insurance-assistant/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

type fakeModel struct {
	resp     *llms.ContentResponse
	err      error
	messages []llms.MessageContent
	opts     llms.CallOptions
}

func (f *fakeModel) GenerateContent(_ context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	f.messages = messages
	for _, opt := range options {
		opt(&f.opts)
	}
	return f.resp, f.err
}

func (f *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, f, prompt, options...)
}

func reply(text string) *llms.ContentResponse {
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: text}}}
}

func TestGenerateBuildsOrderedMessages(t *testing.T) {
	model := &fakeModel{resp: reply("  Term life covers a fixed period.  ")}
	svc := NewWithModel(model, 0, 150)

	history := []models.Message{
		{Role: models.RoleUser, Content: "hi"},
		{Role: models.RoleAssistant, Content: "hello"},
		{Role: models.RoleUser, Content: "what is term life?"},
	}
	got, err := svc.Generate(context.Background(), "be brief", history)
	require.NoError(t, err)
	assert.Equal(t, "Term life covers a fixed period.", got)

	require.Len(t, model.messages, 4)
	wantRoles := []llms.ChatMessageType{
		llms.ChatMessageTypeSystem,
		llms.ChatMessageTypeHuman,
		llms.ChatMessageTypeAI,
		llms.ChatMessageTypeHuman,
	}
	wantText := []string{"be brief", "hi", "hello", "what is term life?"}
	for i, msg := range model.messages {
		assert.Equal(t, wantRoles[i], msg.Role)
		require.Len(t, msg.Parts, 1)
		assert.Equal(t, llms.TextContent{Text: wantText[i]}, msg.Parts[0])
	}

	assert.Equal(t, 0.0, model.opts.Temperature)
	assert.Equal(t, 150, model.opts.MaxTokens)
}

func TestGenerateErrors(t *testing.T) {
	tests := []struct {
		name    string
		model   *fakeModel
		wantErr error
		errText string
	}{
		{name: "provider failure", model: &fakeModel{err: errors.New("rate limited")}, errText: "failed to generate completion: rate limited"},
		{name: "no choices", model: &fakeModel{resp: &llms.ContentResponse{}}, wantErr: ErrEmptyCompletion},
		{name: "nil response", model: &fakeModel{}, wantErr: ErrEmptyCompletion},
		{name: "blank content", model: &fakeModel{resp: reply("   ")}, wantErr: ErrEmptyCompletion},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewWithModel(tt.model, 0, 0)
			_, err := svc.Generate(context.Background(), "sys", []models.Message{{Role: models.RoleUser, Content: "q"}})
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			if tt.errText != "" {
				assert.EqualError(t, err, tt.errText)
			}
		})
	}
}

func TestGenerateWithoutSystemOrMaxTokens(t *testing.T) {
	model := &fakeModel{resp: reply("ok")}
	svc := NewWithModel(model, 0.2, 0)

	_, err := svc.Generate(context.Background(), "", []models.Message{{Role: models.RoleUser, Content: "q"}})
	require.NoError(t, err)
	require.Len(t, model.messages, 1)
	assert.Equal(t, llms.ChatMessageTypeHuman, model.messages[0].Role)
	assert.Equal(t, 0, model.opts.MaxTokens)
	assert.Equal(t, 0.2, model.opts.Temperature)
}

func TestApproxCounter(t *testing.T) {
	var c ApproxCounter
	assert.Equal(t, 0, c.Count(""))
	assert.Equal(t, 1, c.Count("abc"))
	assert.Equal(t, 1, c.Count("abcd"))
	assert.Equal(t, 2, c.Count("abcde"))
	assert.Equal(t, 1, c.Count("éé"))
}

func TestNewAgainstOpenAICompatibleServer(t *testing.T) {
	type chatMessage struct {
		Role    string          `json:"role"`
		Content json.RawMessage `json:"content"`
	}
	var got struct {
		Model    string        `json:"model"`
		Messages []chatMessage `json:"messages"`
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1,
			"model": "llama3.1:8b",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "Whole life lasts for life."}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 10, "completion_tokens": 6, "total_tokens": 16}
		}`))
	}))
	defer srv.Close()

	svc, err := New(Options{BaseURL: srv.URL, Model: "llama3.1:8b", MaxTokens: 150})
	require.NoError(t, err)

	reply, err := svc.Generate(context.Background(), "be brief", []models.Message{
		{Role: models.RoleUser, Content: "what is whole life?"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Whole life lasts for life.", reply)

	assert.Equal(t, "llama3.1:8b", got.Model)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "be brief", textOf(t, got.Messages[0].Content))
	assert.Equal(t, "user", got.Messages[1].Role)
	assert.Equal(t, "what is whole life?", textOf(t, got.Messages[1].Content))
}

// textOf accepts both the plain string and the content-parts encodings of a
// chat message.
func textOf(t *testing.T, raw json.RawMessage) string {
	t.Helper()
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var parts []struct {
		Text string `json:"text"`
	}
	require.NoError(t, json.Unmarshal(raw, &parts))
	for _, p := range parts {
		s += p.Text
	}
	return s
}
