// Package recognizer wraps speech-to-text services behind one interface and
// maps their failures onto a small set of sentinel errors.
package recognizer

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/MimeLyc/voice-translator/internal/config"
)

var (
	// ErrUnintelligible means the service returned no speech.
	ErrUnintelligible = errors.New("speech could not be understood")
	// ErrServiceUnavailable covers network, API and timeout failures.
	ErrServiceUnavailable = errors.New("speech recognition service unavailable")
	ErrSourceMissing      = errors.New("audio file missing")
)

// Recognizer transcribes a canonical WAV file.
type Recognizer interface {
	Recognize(ctx context.Context, wavPath string) (string, error)
}

// New builds the recognizer selected by cfg.Provider.
func New(cfg config.RecognitionConfig) (Recognizer, error) {
	switch cfg.Provider {
	case config.ProviderOpenAI:
		return NewOpenAI(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.Model), nil
	case config.ProviderDeepgram:
		return NewDeepgram(cfg.DeepgramAPIKey, cfg.DeepgramURL, nil), nil
	default:
		return nil, fmt.Errorf("unknown recognizer %q", cfg.Provider)
	}
}

func checkSource(path string) error {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return fmt.Errorf("%w: %s", ErrSourceMissing, path)
	}
	return nil
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
}
