package translator

import (
	"context"
	"errors"
	"fmt"

	"github.com/MimeLyc/voice-translator/internal/config"
)

// ErrEmptyTranslation is returned when a service answers with no text.
var ErrEmptyTranslation = errors.New("translation service returned empty text")

// Translator translates text from source (or "auto") into target.
type Translator interface {
	Translate(ctx context.Context, text, source, target string) (string, error)
}

// New builds the translator selected by cfg.Provider.
func New(cfg config.TranslationConfig, langs config.LanguageTable) (Translator, error) {
	switch cfg.Provider {
	case config.ProviderLibreTranslate:
		return NewLibreTranslate(cfg.LibreTranslateURL, cfg.LibreTranslateAPIKey, nil), nil
	case config.ProviderOpenAI:
		return NewOpenAI(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.Model, langs), nil
	default:
		return nil, fmt.Errorf("unknown translator %q", cfg.Provider)
	}
}
