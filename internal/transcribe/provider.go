package transcribe

import (
	"context"
	"io"

	"meetrecap/internal/models"
)

// Result is the output of transcribing one audio unit. Segments may be
// empty when the provider does not report timestamps.
type Result struct {
	Provider string
	Text     string
	Segments []models.TranscriptSegment
}

// Provider is one transcription vendor. Implementations must read the full
// audio from r; the engine re-opens the source per retry attempt.
type Provider interface {
	Name() string
	Transcribe(ctx context.Context, audio io.Reader, filename string) (*Result, error)
}

// TranscriptionError reports that every configured provider failed for an
// audio unit. Cause is the last provider's error, unmodified.
type TranscriptionError struct {
	Cause error
}

func (e *TranscriptionError) Error() string {
	return "transcription failed across all providers: " + e.Cause.Error()
}

func (e *TranscriptionError) Unwrap() error { return e.Cause }
