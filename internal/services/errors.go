package services

import (
	"errors"
	"fmt"
	"strings"
)

// Pipeline failure markers. Each maps to one report kind.
var (
	ErrUnsupportedFormat       = errors.New("unsupported format")
	ErrDecodeFailure           = errors.New("decode failure")
	ErrIdentificationFailure   = errors.New("identification failure")
	ErrTagWriteFailure         = errors.New("tag write failure")
	ErrDestinationWriteFailure = errors.New("destination write failure")
	ErrMemoryQueryUnavailable  = errors.New("memory query unavailable")
)

// Ambient markers shared by integrations.
var (
	ErrExternalTool  = errors.New("external tool error")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	ErrTimeout       = errors.New("timeout")
	ErrTransient     = errors.New("transient failure")
)

// FailureKind is the report classification of a recorded failure.
type FailureKind string

const (
	KindUnsupportedFormat       FailureKind = "unsupported_format"
	KindDecodeFailure           FailureKind = "decode_failure"
	KindIdentificationFailure   FailureKind = "identification_failure"
	KindTagWriteFailure         FailureKind = "tag_write_failure"
	KindDestinationWriteFailure FailureKind = "destination_write_failure"
	KindTimeout                 FailureKind = "timeout"
	KindInternal                FailureKind = "internal"
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
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

// KindOf maps an error to the failure kind recorded in run reports.
// Pipeline markers take precedence over ambient ones.
func KindOf(err error) FailureKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrDestinationWriteFailure):
		return KindDestinationWriteFailure
	case errors.Is(err, ErrUnsupportedFormat):
		return KindUnsupportedFormat
	case errors.Is(err, ErrDecodeFailure):
		return KindDecodeFailure
	case errors.Is(err, ErrIdentificationFailure):
		return KindIdentificationFailure
	case errors.Is(err, ErrTagWriteFailure):
		return KindTagWriteFailure
	case errors.Is(err, ErrTimeout):
		return KindTimeout
	default:
		return KindInternal
	}
}

// IsFatal reports whether err must halt scheduling of further batches.
func IsFatal(err error) bool {
	return errors.Is(err, ErrDestinationWriteFailure)
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
