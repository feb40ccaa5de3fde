package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrPrecondition  = errors.New("precondition not met")
	ErrExternalTool  = errors.New("external tool error")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	ErrTimeout       = errors.New("timeout")
	ErrTransient     = errors.New("transient failure")
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Category is a user-facing failure class. Raw provider errors stay in the logs.
type Category string

const (
	CategoryNone         Category = ""
	CategoryPrecondition Category = "precondition"
	CategoryTimeout      Category = "timeout"
	CategoryProvider     Category = "provider"
	CategoryInternal     Category = "internal"
)

// Classify maps an error onto the failure taxonomy.
func Classify(err error) Category {
	switch {
	case err == nil:
		return CategoryNone
	case errors.Is(err, ErrPrecondition), errors.Is(err, ErrValidation), errors.Is(err, ErrNotFound):
		return CategoryPrecondition
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return CategoryTimeout
	case errors.Is(err, ErrExternalTool), errors.Is(err, ErrTransient):
		return CategoryProvider
	default:
		return CategoryInternal
	}
}

// UserMessage returns the categorized message shown to clients for a failed
// job of the given kind ("transcription" or "summary").
func UserMessage(kind string, err error) string {
	if Classify(err) == CategoryTimeout {
		if kind == "summary" {
			return "Summary operation timed out"
		}
		return "Transcription operation timed out"
	}
	if kind == "summary" {
		return "Failed to process transcript and generate summary"
	}
	return "Failed to get transcription result"
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
