package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/MimeLyc/voice-translator/internal/jobs"
	"github.com/MimeLyc/voice-translator/internal/translator"
)

func textTooLongMessage(limit int) string {
	return fmt.Sprintf("Text exceeds %d characters!", limit)
}

// translate returns immediately on a cancelled job so no external call is
// made after cancellation has been observed.
func (o *Orchestrator) translate(ctx context.Context, state *jobs.State, text, target string) (string, *PipelineError) {
	if state.Cancelled() {
		return "", cancelled(StageTranslate)
	}

	source := translator.DetectSource(text)

	tctx, cancel := context.WithTimeout(ctx, o.opts.TranslationTimeout)
	defer cancel()
	out, err := o.deps.Translator.Translate(tctx, text, source, target)
	if err != nil {
		if state.Cancelled() {
			return "", cancelled(StageTranslate)
		}
		return "", WrapError(err, ErrTranslationFailed, StageTranslate, "translation failed").
			WithContext("source", source).
			WithContext("target", target)
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", NewError(ErrTranslationFailed, StageTranslate, "empty translation").
			WithContext("target", target)
	}

	state.Advance(jobs.CheckpointTranslation)
	return out, nil
}
