package conversation

import (
	"testing"

	"github.com/RichardoC/insurance-assistant/internal/llm"
	"github.com/RichardoC/insurance-assistant/internal/models"
	"github.com/stretchr/testify/assert"
)

func msgs(pairs ...string) []models.Message {
	out := make([]models.Message, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, models.Message{Role: models.Role(pairs[i]), Content: pairs[i+1]})
	}
	return out
}

func TestWindow(t *testing.T) {
	history := msgs(
		"user", "aaaa",
		"assistant", "bbbb",
		"user", "cccc",
		"assistant", "dddddddd",
	)

	tests := []struct {
		name   string
		budget int
		want   []string
	}{
		{name: "unbounded", budget: 0, want: []string{"aaaa", "bbbb", "cccc", "dddddddd"}},
		{name: "fits exactly", budget: 5, want: []string{"aaaa", "bbbb", "cccc", "dddddddd"}},
		{name: "drops oldest", budget: 4, want: []string{"cccc", "dddddddd"}},
		{name: "never opens on a reply", budget: 2, want: []string{}},
		{name: "nothing fits", budget: 1, want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := window(history, tt.budget, llm.ApproxCounter{})
			contents := make([]string, 0, len(got))
			for _, m := range got {
				contents = append(contents, m.Content)
			}
			assert.Equal(t, tt.want, contents)
		})
	}
}

func TestWindowWithoutCounter(t *testing.T) {
	history := msgs("user", "a", "assistant", "b")
	assert.Equal(t, history, window(history, 1, nil))
}

func TestSystemInstruction(t *testing.T) {
	assert.Equal(t, SystemPrompt, systemInstruction(""))
	assert.Equal(t, SystemPrompt+" Context: Call 1800...", systemInstruction("Call 1800..."))
}
