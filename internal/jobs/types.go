package jobs

import "time"

type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusSuccess   Status = "success"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether no further transition is expected.
func (s Status) Terminal() bool {
	return s == StatusSuccess || s == StatusFailed || s == StatusCancelled
}

type InputKind string

const (
	InputAudio InputKind = "audio"
	InputText  InputKind = "text"
)

// Pipeline checkpoints, in the order a full audio run reaches them.
const (
	CheckpointNormalize          = 20
	CheckpointTranscriptionStart = 40
	CheckpointTranscriptionDone  = 60
	CheckpointTranslation        = 75
	CheckpointSynthesis          = 100
)

type CreateRequest struct {
	InputKind      InputKind
	TargetLanguage string
	SourceFile     string
}

// Job is the persisted record of one pipeline run.
type Job struct {
	ID             string    `json:"id"`
	InputKind      InputKind `json:"input_kind"`
	TargetLanguage string    `json:"target_language"`
	SourceFile     string    `json:"source_file,omitempty"`
	Status         Status    `json:"status"`
	Progress       int       `json:"progress"`
	Transcript     string    `json:"transcript,omitempty"`
	TranslatedText string    `json:"translated_text,omitempty"`
	ArtifactPath   string    `json:"audio_output_path,omitempty"`
	ArtifactURL    string    `json:"artifact_url,omitempty"`
	Backend        string    `json:"backend,omitempty"`
	ErrorType      string    `json:"error_type,omitempty"`
	Error          string    `json:"error,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Outcome is what a finished pipeline reports back to the registry.
type Outcome struct {
	Status         Status
	Transcript     string
	TranslatedText string
	ArtifactPath   string
	ArtifactURL    string
	Backend        string
	ErrorType      string
	Error          string
}
