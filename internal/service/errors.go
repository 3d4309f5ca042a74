package service

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

type ErrorType int

const (
	ErrInvalidInput ErrorType = iota
	ErrTextTooLong
	ErrSourceMissing
	ErrConversionFailed
	ErrUnintelligible
	ErrServiceUnavailable
	ErrTranslationFailed
	ErrSynthesisFailed
	ErrCancelled
)

// PipelineError is the single failure a pipeline run reports.
type PipelineError struct {
	Type    ErrorType
	Stage   Stage
	Message string
	Context map[string]any
	Cause   error
}

func NewError(errorType ErrorType, stage Stage, message string) *PipelineError {
	return &PipelineError{
		Type:    errorType,
		Stage:   stage,
		Message: message,
		Context: make(map[string]any),
	}
}

func WrapError(err error, errorType ErrorType, stage Stage, message string) *PipelineError {
	e := NewError(errorType, stage, message)
	e.Cause = err
	return e
}

func (e *PipelineError) Error() string {
	var parts []string
	parts = append(parts, fmt.Sprintf("[%s/%s] %s", e.Stage, e.Type, e.Message))

	if len(e.Context) > 0 {
		keys := make([]string, 0, len(e.Context))
		for k := range e.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		ctxParts := make([]string, 0, len(keys))
		for _, k := range keys {
			ctxParts = append(ctxParts, fmt.Sprintf("%s=%v", k, e.Context[k]))
		}
		parts = append(parts, fmt.Sprintf("context: %s", strings.Join(ctxParts, ", ")))
	}

	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("cause: %v", e.Cause))
	}

	return strings.Join(parts, " | ")
}

func (e *PipelineError) Unwrap() error {
	return e.Cause
}

func (e *PipelineError) WithContext(key string, value any) *PipelineError {
	e.Context[key] = value
	return e
}

// UserMessage is the text shown to the end user for this failure.
func (e *PipelineError) UserMessage() string {
	switch e.Type {
	case ErrInvalidInput:
		if e.Message != "" {
			return e.Message
		}
		return "Invalid input!"
	case ErrTextTooLong:
		return e.Message
	case ErrSourceMissing:
		return "No audio file uploaded!"
	case ErrConversionFailed:
		return "Audio conversion failed!"
	case ErrUnintelligible, ErrServiceUnavailable:
		return "Speech recognition failed!"
	case ErrTranslationFailed:
		return "Translation failed!"
	case ErrSynthesisFailed:
		return "Text-to-Speech conversion failed!"
	case ErrCancelled:
		return "Translation cancelled."
	default:
		return "Unexpected error!"
	}
}

// IsInput reports whether the failure was caused by the request itself.
func (t ErrorType) IsInput() bool {
	return t == ErrInvalidInput || t == ErrTextTooLong
}

func (t ErrorType) String() string {
	switch t {
	case ErrInvalidInput:
		return "InvalidInput"
	case ErrTextTooLong:
		return "TextTooLong"
	case ErrSourceMissing:
		return "SourceMissing"
	case ErrConversionFailed:
		return "ConversionFailed"
	case ErrUnintelligible:
		return "Unintelligible"
	case ErrServiceUnavailable:
		return "ServiceUnavailable"
	case ErrTranslationFailed:
		return "TranslationFailed"
	case ErrSynthesisFailed:
		return "SynthesisFailed"
	case ErrCancelled:
		return "Cancelled"
	default:
		return "Unknown"
	}
}

func IsErrorType(err error, errorType ErrorType) bool {
	var pErr *PipelineError
	if errors.As(err, &pErr) {
		return pErr.Type == errorType
	}
	return false
}

// AsPipelineError extracts the PipelineError from err, if any.
func AsPipelineError(err error) (*PipelineError, bool) {
	var pErr *PipelineError
	if errors.As(err, &pErr) {
		return pErr, true
	}
	return nil, false
}

// SafeExecute turns a panic inside a collaborator into an error.
func SafeExecute(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("runtime error: %v", r)
		}
	}()

	return fn()
}
