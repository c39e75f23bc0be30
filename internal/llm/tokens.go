package llm

import (
	"fmt"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

// TiktokenCounter counts tokens with the BPE encoding of the configured
// model, falling back to cl100k_base for models tiktoken does not know.
type TiktokenCounter struct {
	enc *tiktoken.Tiktoken
}

func NewTiktokenCounter(model string) (*TiktokenCounter, error) {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, fmt.Errorf("failed to load token encoding: %w", err)
		}
	}
	return &TiktokenCounter{enc: enc}, nil
}

func (c *TiktokenCounter) Count(text string) int {
	return len(c.enc.Encode(text, nil, nil))
}

// ApproxCounter estimates roughly four characters per token. Used when no
// encoding can be loaded.
type ApproxCounter struct{}

func (ApproxCounter) Count(text string) int {
	n := utf8.RuneCountInString(text)
	return (n + 3) / 4
}
