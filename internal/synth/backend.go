package synth

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/MimeLyc/voice-translator/internal/audio"
	"github.com/MimeLyc/voice-translator/internal/config"
	"github.com/MimeLyc/voice-translator/pkg/log"
)

// Artifact is a synthesized audio file ready for download.
type Artifact struct {
	Path    string      `json:"path"`
	Ext     string      `json:"ext"`
	Backend BackendKind `json:"backend"`
}

// Backend synthesizes with whatever the Selector settled on.
type Backend struct {
	selector   *Selector
	fallback   Fallback
	langs      config.LanguageTable
	outputDir  string
	sampleRate int
}

func NewBackend(selector *Selector, fallback Fallback, langs config.LanguageTable, outputDir string, sampleRate int) *Backend {
	if sampleRate <= 0 {
		sampleRate = 24000
	}
	return &Backend{
		selector:   selector,
		fallback:   fallback,
		langs:      langs,
		outputDir:  outputDir,
		sampleRate: sampleRate,
	}
}

// Selection exposes the settled backend choice.
func (b *Backend) Selection() Selection {
	return b.selector.Select()
}

// Synthesize writes text as speech to <outputDir>/<name>.<ext>. The file only
// appears under its final name once fully written.
func (b *Backend) Synthesize(ctx context.Context, name, text, lang string) (*Artifact, error) {
	if err := os.MkdirAll(b.outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	sel := b.selector.Select()
	ext := "mp3"
	if sel.Backend == BackendNeural {
		ext = "wav"
	}

	tmp, err := os.CreateTemp(b.outputDir, "."+name+"-*.part")
	if err != nil {
		return nil, err
	}
	tmpPath := tmp.Name()

	switch sel.Backend {
	case BackendNeural:
		err = b.neural(ctx, tmp, text, lang)
	default:
		if b.fallback == nil {
			err = errors.New("no fallback synthesizer configured")
		} else {
			err = b.fallback.Synthesize(ctx, text, lang, tmp)
		}
	}
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmpPath)
		return nil, err
	}

	final := filepath.Join(b.outputDir, name+"."+ext)
	if err := os.Rename(tmpPath, final); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("finalize artifact: %w", err)
	}
	log.Info("Synthesized %s with %s backend", filepath.Base(final), sel.Backend)
	return &Artifact{Path: final, Ext: ext, Backend: sel.Backend}, nil
}

func (b *Backend) neural(ctx context.Context, f *os.File, text, lang string) error {
	engine := b.selector.Engine()
	if engine == nil {
		return errors.New("neural engine not available")
	}
	clip, err := engine.Synthesize(ctx, text, b.langs.Speaker(lang), lang)
	if err != nil {
		return err
	}
	samples := audio.Resample(clip.Samples, clip.SampleRate, b.sampleRate)
	return audio.WriteWAV(f, samples, b.sampleRate)
}
