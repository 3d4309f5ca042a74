package recognizer

import (
	"context"
	"strings"

	"github.com/MimeLyc/voice-translator/pkg/log"
	openai "github.com/sashabaranov/go-openai"
)

// OpenAI transcribes through the Whisper transcription endpoint.
type OpenAI struct {
	client *openai.Client
	model  string
}

func NewOpenAI(apiKey, baseURL, model string) *OpenAI {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	if model == "" {
		model = openai.Whisper1
	}
	return &OpenAI{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

func (o *OpenAI) Recognize(ctx context.Context, wavPath string) (string, error) {
	if err := checkSource(wavPath); err != nil {
		return "", err
	}

	resp, err := o.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    o.model,
		FilePath: wavPath,
		Format:   openai.AudioResponseFormatJSON,
	})
	if err != nil {
		log.Error("Whisper transcription failed: %v", err)
		return "", unavailable(err)
	}

	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return "", ErrUnintelligible
	}
	return text, nil
}
