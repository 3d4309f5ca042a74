package service

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/MimeLyc/voice-translator/internal/config"
	"github.com/MimeLyc/voice-translator/internal/jobs"
	"github.com/MimeLyc/voice-translator/internal/media"
	"github.com/MimeLyc/voice-translator/internal/recognizer"
	"github.com/MimeLyc/voice-translator/internal/translator"
	"github.com/MimeLyc/voice-translator/pkg/file"
	"github.com/MimeLyc/voice-translator/pkg/log"
	"golang.org/x/sync/semaphore"
)

// Dependencies are the collaborators a pipeline run calls into.
type Dependencies struct {
	Normalizer  media.Normalizer
	Recognizer  recognizer.Recognizer
	Translator  translator.Translator
	Synthesizer Synthesizer
	Publisher   Publisher
	Registry    *jobs.Registry
	Languages   config.LanguageTable
}

// Orchestrator sequences normalize, transcribe, translate and synthesize for
// one request. Each job owns its State; a weighted semaphore bounds how many
// pipelines run at once.
type Orchestrator struct {
	deps Dependencies
	opts Options
	sem  *semaphore.Weighted
}

func New(deps Dependencies, opts Options) *Orchestrator {
	opts = opts.withDefaults()
	if deps.Registry == nil {
		deps.Registry = jobs.NewRegistry(nil)
	}
	return &Orchestrator{
		deps: deps,
		opts: opts,
		sem:  semaphore.NewWeighted(int64(opts.MaxConcurrent)),
	}
}

func (o *Orchestrator) Registry() *jobs.Registry {
	return o.deps.Registry
}

// Start registers a job with freshly reset state. The state's context is
// derived from ctx, so cancelling ctx also aborts the job.
func (o *Orchestrator) Start(ctx context.Context, req Request) (*jobs.Job, *jobs.State) {
	return o.deps.Registry.Create(ctx, jobs.CreateRequest{
		InputKind:      req.InputKind,
		TargetLanguage: req.TargetLanguage,
		SourceFile:     req.AudioPath,
	})
}

// Process is Start followed by Run.
func (o *Orchestrator) Process(ctx context.Context, req Request) (*Result, error) {
	job, state := o.Start(ctx, req)
	return o.Run(job.ID, state, req)
}

// Run executes the pipeline for a started job and records its outcome. The
// first failure or observed cancellation stops the run.
func (o *Orchestrator) Run(jobID string, state *jobs.State, req Request) (*Result, error) {
	result, err := o.run(jobID, state, req)
	o.finish(jobID, state, result, err)
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (o *Orchestrator) run(jobID string, state *jobs.State, req Request) (result *Result, err error) {
	if perr := o.validate(req); perr != nil {
		return nil, perr.WithContext("job_id", jobID)
	}

	ctx := state.Context()
	if err := o.sem.Acquire(ctx, 1); err != nil {
		return nil, WrapError(err, ErrCancelled, StageQueue, "cancelled while waiting for a free slot")
	}
	defer o.sem.Release(1)

	o.deps.Registry.MarkRunning(jobID)
	log.Info("Job %s: %s input -> %s", jobID, req.InputKind, req.TargetLanguage)

	stage := StageValidate
	err = SafeExecute(func() error {
		var perr *PipelineError
		result, perr = o.execute(ctx, jobID, state, req, &stage)
		if perr != nil {
			return perr
		}
		return nil
	})
	if err != nil {
		if _, ok := AsPipelineError(err); !ok {
			err = WrapError(err, failureTypeFor(stage), stage, "unexpected failure")
		}
		return nil, err
	}
	return result, nil
}

func (o *Orchestrator) execute(ctx context.Context, jobID string, state *jobs.State, req Request, stage *Stage) (*Result, *PipelineError) {
	result := &Result{JobID: jobID}
	text := req.Text

	if req.InputKind == jobs.InputAudio {
		*stage = StageTranscribe
		transcript, perr := o.transcribe(ctx, state, req.AudioPath)
		if perr != nil {
			return nil, perr
		}
		result.Transcript = transcript
		text = transcript
	} else {
		result.Transcript = text
	}

	*stage = StageTranslate
	translated, perr := o.translate(ctx, state, text, req.TargetLanguage)
	if perr != nil {
		return nil, perr
	}
	result.TranslatedText = translated

	*stage = StageSynthesize
	artifact, perr := o.synthesize(ctx, state, artifactName(jobID), translated, req.TargetLanguage)
	if perr != nil {
		return nil, perr
	}
	result.AudioOutputPath = artifact.Path
	result.Ext = artifact.Ext
	result.Backend = artifact.Backend
	result.ArtifactURL = o.publish(ctx, jobID, artifact.Path)
	if state.Cancelled() {
		discardArtifact(artifact.Path)
		return nil, cancelled(StageSynthesize)
	}
	return result, nil
}

// validate rejects bad requests before any stage runs.
func (o *Orchestrator) validate(req Request) *PipelineError {
	switch req.InputKind {
	case jobs.InputAudio:
		if strings.TrimSpace(req.AudioPath) == "" {
			return NewError(ErrInvalidInput, StageValidate, "No audio file uploaded!")
		}
		if !file.HasExt(req.AudioPath, o.opts.AllowedExtensions) {
			return NewError(ErrInvalidInput, StageValidate, "Invalid file format!").
				WithContext("file", req.AudioPath)
		}
	case jobs.InputText:
		if strings.TrimSpace(req.Text) == "" {
			return NewError(ErrInvalidInput, StageValidate, "No text entered!")
		}
		if n := utf8.RuneCountInString(req.Text); n > o.opts.MaxTextLength {
			return NewError(ErrTextTooLong, StageValidate, textTooLongMessage(o.opts.MaxTextLength)).
				WithContext("length", n)
		}
	default:
		return NewError(ErrInvalidInput, StageValidate, "Invalid input type!")
	}

	if !o.deps.Languages.Has(req.TargetLanguage) {
		return NewError(ErrInvalidInput, StageValidate, "Unsupported target language!").
			WithContext("language", req.TargetLanguage)
	}
	return nil
}

func (o *Orchestrator) publish(ctx context.Context, jobID, path string) string {
	if o.deps.Publisher == nil {
		return ""
	}
	pctx, cancel := context.WithTimeout(ctx, o.opts.PublishTimeout)
	defer cancel()
	url, err := o.deps.Publisher.Publish(pctx, path)
	if err != nil {
		log.Warn("Job %s: artifact mirror failed: %v", jobID, err)
		return ""
	}
	return url
}

func (o *Orchestrator) finish(jobID string, state *jobs.State, result *Result, err error) {
	if err == nil {
		o.deps.Registry.Finish(jobID, jobs.Outcome{
			Status:         jobs.StatusSuccess,
			Transcript:     result.Transcript,
			TranslatedText: result.TranslatedText,
			ArtifactPath:   result.AudioOutputPath,
			ArtifactURL:    result.ArtifactURL,
			Backend:        string(result.Backend),
		})
		log.Info("Job %s: done (%s)", jobID, result.Backend)
		return
	}

	out := jobs.Outcome{Status: jobs.StatusFailed, Error: err.Error()}
	if perr, ok := AsPipelineError(err); ok {
		out.ErrorType = perr.Type.String()
		out.Error = perr.UserMessage()
		if perr.Type == ErrCancelled {
			out.Status = jobs.StatusCancelled
			state.Cancel()
		}
	}
	o.deps.Registry.Finish(jobID, out)

	if out.Status == jobs.StatusCancelled {
		log.Info("Job %s: cancelled", jobID)
	} else {
		log.Error("Job %s: %v", jobID, err)
	}
}

func failureTypeFor(stage Stage) ErrorType {
	switch stage {
	case StageNormalize:
		return ErrConversionFailed
	case StageTranscribe:
		return ErrServiceUnavailable
	case StageTranslate:
		return ErrTranslationFailed
	case StageSynthesize:
		return ErrSynthesisFailed
	default:
		return ErrInvalidInput
	}
}

func artifactName(jobID string) string {
	return "translated_" + jobID
}
