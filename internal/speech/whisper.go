// Package speech turns recorded audio into text before it reaches the
// conversation engine.
package speech

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

var ErrEmptyAudio = errors.New("no audio data")

// Whisper transcribes audio with an OpenAI-compatible transcription
// endpoint.
type Whisper struct {
	client   *openai.Client
	model    string
	language string
}

func NewWhisper(baseURL, token, model, language string) *Whisper {
	cfg := openai.DefaultConfig(token)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimSuffix(baseURL, "/")
	}
	if model == "" {
		model = openai.Whisper1
	}
	return &Whisper{
		client:   openai.NewClientWithConfig(cfg),
		model:    model,
		language: language,
	}
}

// Transcribe sends audio to the model. filename only tells the service
// which container format to expect (e.g. "audio.webm").
func (w *Whisper) Transcribe(ctx context.Context, audio io.Reader, filename string) (string, error) {
	resp, err := w.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    w.model,
		Reader:   audio,
		FilePath: filename,
		Language: w.language,
	})
	if err != nil {
		return "", fmt.Errorf("failed to transcribe audio: %w", err)
	}
	return strings.TrimSpace(resp.Text), nil
}

// DecodeAudio decodes base64 audio as sent by the browser, accepting either
// raw base64 or a data URL ("data:audio/webm;base64,...").
func DecodeAudio(encoded string) ([]byte, error) {
	if i := strings.IndexByte(encoded, ','); i >= 0 {
		encoded = encoded[i+1:]
	}
	encoded = strings.TrimSpace(encoded)
	if encoded == "" {
		return nil, ErrEmptyAudio
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode audio: %w", err)
	}
	if len(data) == 0 {
		return nil, ErrEmptyAudio
	}
	return data, nil
}

// NewAudioReader wraps decoded audio for Transcribe.
func NewAudioReader(data []byte) io.Reader {
	return bytes.NewReader(data)
}
