package media

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/MimeLyc/voice-translator/internal/audio"
	"github.com/MimeLyc/voice-translator/pkg/file"
	"github.com/MimeLyc/voice-translator/pkg/log"
	"github.com/MimeLyc/voice-translator/pkg/proc"
)

var (
	ErrFileMissing      = errors.New("source audio file missing")
	ErrConversionFailed = errors.New("audio conversion failed")
)

// Recognition input format.
const (
	TargetSampleRate = 16000
	TargetChannels   = 1
)

type ffmpeg struct {
	ffmpegCmd string
	runner    proc.Runner
}

// NewFfmpeg returns a Normalizer backed by the ffmpeg binary.
func NewFfmpeg(cmd string, runner proc.Runner) *ffmpeg {
	if cmd == "" {
		cmd = "ffmpeg"
	}
	if runner == nil {
		runner = proc.ExecRunner{}
	}
	return &ffmpeg{
		ffmpegCmd: cmd,
		runner:    runner,
	}
}

// Normalize returns a WAV path for src. A valid .wav is returned unchanged;
// anything else is transcoded next to the source. On failure no output file
// is left behind.
func (ff *ffmpeg) Normalize(ctx context.Context, src string) (string, error) {
	info, err := os.Stat(src)
	if err != nil || info.IsDir() {
		return "", fmt.Errorf("%w: %s", ErrFileMissing, src)
	}

	if file.Ext(src) == "wav" {
		ok, err := audio.IsValidWAV(src)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrFileMissing, err)
		}
		if ok {
			return src, nil
		}
		return "", fmt.Errorf("%w: %s is not a valid wav file", ErrConversionFailed, filepath.Base(src))
	}

	output := file.ReplaceExt(src, ".wav")
	log.Debug("Normalizing %s -> %s", src, output)

	res, err := ff.runner.Run(ctx, ff.ffmpegCmd, ff.convertArgs(src, output)...)
	if err != nil {
		removePartial(output)
		return "", fmt.Errorf("%w: %s", ErrConversionFailed, proc.Describe(ff.ffmpegCmd, res, err))
	}

	ok, err := audio.IsValidWAV(output)
	if err != nil || !ok {
		removePartial(output)
		return "", fmt.Errorf("%w: ffmpeg produced no readable wav", ErrConversionFailed)
	}
	return output, nil
}

func (ff *ffmpeg) convertArgs(src, dst string) []string {
	return []string{
		"-hide_banner",
		"-nostdin",
		"-y",
		"-i", src,
		"-vn",
		"-ac", fmt.Sprint(TargetChannels),
		"-ar", fmt.Sprint(TargetSampleRate),
		"-c:a", "pcm_s16le",
		dst,
	}
}

func removePartial(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn("Failed to remove partial output %s: %v", path, err)
	}
}
