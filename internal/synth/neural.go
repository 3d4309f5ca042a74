package synth

import (
	"context"
	"fmt"
	"os"

	"github.com/MimeLyc/voice-translator/internal/audio"
	"github.com/MimeLyc/voice-translator/pkg/log"
	"github.com/MimeLyc/voice-translator/pkg/proc"
)

// Engine is a neural text-to-speech model. lang is the target language code;
// multilingual models need it alongside the speaker.
type Engine interface {
	Synthesize(ctx context.Context, text, speaker, lang string) (*audio.Clip, error)
}

// coqui drives the Coqui `tts` command line with a local acoustic model and
// vocoder.
type coqui struct {
	cmd    string
	runner proc.Runner
	assets Assets
	device string
	tmpDir string
}

// CoquiFactory returns an EngineFactory for the Coqui CLI. Construction fails
// when cmd is not on PATH.
func CoquiFactory(cmd string, runner proc.Runner, tmpDir string) EngineFactory {
	if cmd == "" {
		cmd = "tts"
	}
	if runner == nil {
		runner = proc.ExecRunner{}
	}
	return func(assets Assets, device string) (Engine, error) {
		if !proc.Available(cmd) {
			return nil, fmt.Errorf("%s not found on PATH", cmd)
		}
		return newCoqui(cmd, runner, assets, device, tmpDir), nil
	}
}

func newCoqui(cmd string, runner proc.Runner, assets Assets, device, tmpDir string) *coqui {
	return &coqui{
		cmd:    cmd,
		runner: runner,
		assets: assets,
		device: device,
		tmpDir: tmpDir,
	}
}

func (c *coqui) Synthesize(ctx context.Context, text, speaker, lang string) (*audio.Clip, error) {
	tmp, err := os.CreateTemp(c.tmpDir, "neural-*.wav")
	if err != nil {
		return nil, err
	}
	out := tmp.Name()
	tmp.Close()
	defer os.Remove(out)

	res, err := c.runner.Run(ctx, c.cmd, c.args(text, speaker, lang, out)...)
	if err != nil {
		return nil, fmt.Errorf("neural synthesis: %s", proc.Describe(c.cmd, res, err))
	}

	clip, err := audio.ReadWAV(out)
	if err != nil {
		return nil, fmt.Errorf("read neural output: %w", err)
	}
	log.Debug("Neural synthesis produced %s at %d Hz", clip.Duration(), clip.SampleRate)
	return clip, nil
}

func (c *coqui) args(text, speaker, lang, out string) []string {
	args := []string{
		"--text", text,
		"--model_path", c.assets.ModelPath,
		"--config_path", c.assets.ConfigPath,
		"--vocoder_path", c.assets.VocoderPath,
		"--speaker_idx", speaker,
	}
	if lang != "" {
		args = append(args, "--language_idx", lang)
	}
	args = append(args, "--out_path", out)
	if c.device == "cuda" {
		args = append(args, "--use_cuda", "true")
	}
	return args
}
