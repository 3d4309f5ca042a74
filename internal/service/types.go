package service

import (
	"context"
	"time"

	"github.com/MimeLyc/voice-translator/internal/jobs"
	"github.com/MimeLyc/voice-translator/internal/synth"
)

// Stage names a step of the pipeline.
type Stage string

const (
	StageValidate   Stage = "validate"
	StageQueue      Stage = "queue"
	StageNormalize  Stage = "normalize"
	StageTranscribe Stage = "transcribe"
	StageTranslate  Stage = "translate"
	StageSynthesize Stage = "synthesize"
)

// Request is one translation request.
type Request struct {
	InputKind      jobs.InputKind
	AudioPath      string
	Text           string
	TargetLanguage string
}

// Result is what a successful run returns.
type Result struct {
	JobID           string            `json:"job_id"`
	Transcript      string            `json:"transcript"`
	TranslatedText  string            `json:"translated_text"`
	AudioOutputPath string            `json:"audio_output_path"`
	Ext             string            `json:"ext"`
	Backend         synth.BackendKind `json:"backend"`
	ArtifactURL     string            `json:"artifact_url,omitempty"`
}

// Synthesizer writes translated speech to an artifact named after name.
type Synthesizer interface {
	Synthesize(ctx context.Context, name, text, lang string) (*synth.Artifact, error)
}

// Publisher mirrors a finished artifact somewhere else and returns its URL.
type Publisher interface {
	Publish(ctx context.Context, path string) (string, error)
}

// Options bounds a run.
type Options struct {
	MaxTextLength      int
	AllowedExtensions  []string
	MaxConcurrent      int
	RecognitionTimeout time.Duration
	TranslationTimeout time.Duration
	SynthesisTimeout   time.Duration
	PublishTimeout     time.Duration
}

func (o Options) withDefaults() Options {
	if o.MaxTextLength <= 0 {
		o.MaxTextLength = 5000
	}
	if len(o.AllowedExtensions) == 0 {
		o.AllowedExtensions = []string{"mp3", "wav", "ogg", "flac", "m4a"}
	}
	if o.MaxConcurrent <= 0 {
		o.MaxConcurrent = 1
	}
	if o.RecognitionTimeout <= 0 {
		o.RecognitionTimeout = 60 * time.Second
	}
	if o.TranslationTimeout <= 0 {
		o.TranslationTimeout = 30 * time.Second
	}
	if o.SynthesisTimeout <= 0 {
		o.SynthesisTimeout = 120 * time.Second
	}
	if o.PublishTimeout <= 0 {
		o.PublishTimeout = 60 * time.Second
	}
	return o
}
