package translator

import (
	"context"
	"fmt"
	"strings"

	"github.com/MimeLyc/voice-translator/internal/config"
	openai "github.com/sashabaranov/go-openai"
)

// OpenAI translates with a chat completion model.
type OpenAI struct {
	client *openai.Client
	model  string
	langs  config.LanguageTable
}

func NewOpenAI(apiKey, baseURL, model string, langs config.LanguageTable) *OpenAI {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	if model == "" {
		model = openai.GPT4oMini
	}
	return &OpenAI{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
		langs:  langs,
	}
}

func (t *OpenAI) Translate(ctx context.Context, text, source, target string) (string, error) {
	resp, err := t.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       t.model,
		Temperature: 0,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: t.systemPrompt(source, target)},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyTranslation
	}

	out := strings.TrimSpace(resp.Choices[0].Message.Content)
	if out == "" {
		return "", ErrEmptyTranslation
	}
	return out, nil
}

func (t *OpenAI) systemPrompt(source, target string) string {
	from := "the detected source language"
	if source != "" && source != AutoDetect {
		from = t.langs.Name(source)
	}
	return fmt.Sprintf(
		"You are a translation engine. Translate the user's text from %s into %s. "+
			"Reply with the translation only, without quotes, notes or explanations.",
		from, t.langs.Name(target))
}
