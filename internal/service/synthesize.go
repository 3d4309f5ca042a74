package service

import (
	"context"
	"os"

	"github.com/MimeLyc/voice-translator/internal/jobs"
	"github.com/MimeLyc/voice-translator/internal/synth"
	"github.com/MimeLyc/voice-translator/pkg/log"
)

// synthesize produces the artifact. An artifact finished after the job was
// cancelled is discarded rather than exposed.
func (o *Orchestrator) synthesize(ctx context.Context, state *jobs.State, name, text, lang string) (*synth.Artifact, *PipelineError) {
	if state.Cancelled() {
		return nil, cancelled(StageSynthesize)
	}

	sctx, cancel := context.WithTimeout(ctx, o.opts.SynthesisTimeout)
	defer cancel()
	artifact, err := o.deps.Synthesizer.Synthesize(sctx, name, text, lang)
	if err != nil {
		if state.Cancelled() {
			return nil, cancelled(StageSynthesize)
		}
		return nil, WrapError(err, ErrSynthesisFailed, StageSynthesize, "speech synthesis failed").
			WithContext("language", lang)
	}

	if state.Cancelled() {
		discardArtifact(artifact.Path)
		return nil, cancelled(StageSynthesize)
	}

	state.Advance(jobs.CheckpointSynthesis)
	return artifact, nil
}

func discardArtifact(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		log.Warn("Failed to discard artifact %s: %v", path, err)
	}
}
