package service

import (
	"context"
	"errors"

	"github.com/MimeLyc/voice-translator/internal/jobs"
	"github.com/MimeLyc/voice-translator/internal/media"
	"github.com/MimeLyc/voice-translator/internal/recognizer"
)

// transcribe normalizes the upload and recognizes speech in it. Cancellation
// is checked on entry and again once normalization is done.
func (o *Orchestrator) transcribe(ctx context.Context, state *jobs.State, audioPath string) (string, *PipelineError) {
	if state.Cancelled() {
		return "", cancelled(StageTranscribe)
	}

	wavPath, err := o.deps.Normalizer.Normalize(ctx, audioPath)
	if err != nil {
		if state.Cancelled() {
			return "", cancelled(StageNormalize)
		}
		if errors.Is(err, media.ErrFileMissing) {
			return "", WrapError(err, ErrSourceMissing, StageNormalize, "source audio missing")
		}
		return "", WrapError(err, ErrConversionFailed, StageNormalize, "audio conversion failed").
			WithContext("file", audioPath)
	}
	state.Advance(jobs.CheckpointNormalize)

	if state.Cancelled() {
		return "", cancelled(StageTranscribe)
	}
	state.Advance(jobs.CheckpointTranscriptionStart)

	rctx, cancel := context.WithTimeout(ctx, o.opts.RecognitionTimeout)
	defer cancel()
	text, err := o.deps.Recognizer.Recognize(rctx, wavPath)
	if err != nil {
		if state.Cancelled() {
			return "", cancelled(StageTranscribe)
		}
		switch {
		case errors.Is(err, recognizer.ErrUnintelligible):
			return "", WrapError(err, ErrUnintelligible, StageTranscribe, "no speech recognized")
		case errors.Is(err, recognizer.ErrSourceMissing):
			return "", WrapError(err, ErrSourceMissing, StageTranscribe, "normalized audio missing")
		default:
			return "", WrapError(err, ErrServiceUnavailable, StageTranscribe, "recognition service failed")
		}
	}
	if text == "" {
		return "", NewError(ErrUnintelligible, StageTranscribe, "no speech recognized")
	}

	state.Advance(jobs.CheckpointTranscriptionDone)
	return text, nil
}

func cancelled(stage Stage) *PipelineError {
	return NewError(ErrCancelled, stage, "cancelled")
}
