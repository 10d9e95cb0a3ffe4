package llm

import (
	"context"
	"errors"
	"fmt"
)

// Client abstracts LLM providers for financial document analysis. The raw
// response text is returned as-is; cleaning and schema validation belong to
// the caller.
type Client interface {
	GenerateAnalysis(ctx context.Context, req Request) (string, error)
	ModelName() string
}

// Request carries the prompt and document payloads for a single call.
type Request struct {
	Prompt    string
	Documents []Document
}

// Document is one uploaded statement handed to the provider. PDF content is
// sent inline as binary (Data); CSV/TXT content is sent as Text.
type Document struct {
	Name     string
	MimeType string
	Data     []byte
	Text     string
}

// Kind classifies transport-level failures so callers can branch on cause
// without matching provider-specific messages.
type Kind string

const (
	KindTimeout            Kind = "timeout"
	KindRateLimited        Kind = "rate_limited"
	KindUnauthorized       Kind = "unauthorized"
	KindForbidden          Kind = "forbidden"
	KindServiceUnavailable Kind = "service_unavailable"
	KindBadResponse        Kind = "bad_response"
)

// Error is a classified provider failure.
type Error struct {
	Kind    Kind
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("llm %s: %s", e.Kind, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("llm %s: %v", e.Kind, e.Err)
	}
	return "llm " + string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the classified kind of err, or "" when err carries none.
func KindOf(err error) Kind {
	var le *Error
	if errors.As(err, &le) {
		return le.Kind
	}
	return ""
}

// IsRateLimited reports whether err is a classified rate-limit failure.
func IsRateLimited(err error) bool {
	return KindOf(err) == KindRateLimited
}

// ErrNotConfigured is returned when no provider credentials are present.
var ErrNotConfigured = errors.New("llm provider not configured")
