package conversation

import "github.com/RichardoC/insurance-assistant/internal/models"

// SystemPrompt keeps replies to one or two spoken sentences so the whole
// round trip stays fast enough for voice.
const SystemPrompt = "You are a lightning-fast life insurance assistant. " +
	"Answer in exactly 1 or 2 short sentences. " +
	"Do not use lists or bullet points. " +
	"Be direct and conversational."

func systemInstruction(snippet string) string {
	if snippet == "" {
		return SystemPrompt
	}
	return SystemPrompt + " Context: " + snippet
}

// TokenCounter measures text in model tokens.
type TokenCounter interface {
	Count(text string) int
}

// window keeps the newest messages whose combined size fits within budget.
// The window never opens on an assistant reply. A budget of zero or less
// keeps everything.
func window(history []models.Message, budget int, counter TokenCounter) []models.Message {
	if budget <= 0 || counter == nil {
		return history
	}

	start := len(history)
	used := 0
	for i := len(history) - 1; i >= 0; i-- {
		used += counter.Count(history[i].Content)
		if used > budget {
			break
		}
		start = i
	}
	for start < len(history) && history[start].Role == models.RoleAssistant {
		start++
	}
	return history[start:]
}
