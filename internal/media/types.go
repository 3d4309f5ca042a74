package media

import "context"

// Normalizer turns an uploaded audio file into a WAV the recognizer accepts.
type Normalizer interface {
	Normalize(ctx context.Context, src string) (string, error)
}

func NewNormalizer() Normalizer {
	return NewFfmpeg("ffmpeg", nil)
}
