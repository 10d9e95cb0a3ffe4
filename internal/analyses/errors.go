package analyses

import (
	"errors"
	"fmt"
	"strings"

	"statement-backend/internal/llm"
)

var (
	ErrNotFound     = errors.New("analysis not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrAccessDenied = errors.New("access denied")
)

// Error codes persisted in failed-job payloads and mapped to HTTP statuses.
const (
	ErrorCodeValidation      = "VALIDATION_ERROR"
	ErrorCodeLLMTimeout      = "LLM_TIMEOUT"
	ErrorCodeLLMRateLimited  = "LLM_RATE_LIMITED"
	ErrorCodeLLMUnauthorized = "LLM_UNAUTHORIZED"
	ErrorCodeLLMForbidden    = "LLM_FORBIDDEN"
	ErrorCodeLLMUnavailable  = "LLM_UNAVAILABLE"
	ErrorCodeLLMMalformed    = "LLM_MALFORMED_RESPONSE"
	ErrorCodeLLMSchema       = "LLM_SCHEMA_MISMATCH"
	ErrorCodeStorage         = "STORAGE_ERROR"
	ErrorCodeInternal        = "INTERNAL_ERROR"
)

// SchemaError reports required result fields the model failed to supply.
type SchemaError struct {
	MissingFields []string
}

func (e *SchemaError) Error() string {
	return "missing required fields in AI response: " + strings.Join(e.MissingFields, ", ")
}

// MalformedResponseError reports response text that could not be parsed as JSON.
type MalformedResponseError struct {
	Err error
}

func (e *MalformedResponseError) Error() string {
	if e.Err == nil {
		return "malformed AI response"
	}
	return fmt.Sprintf("malformed AI response: %v", e.Err)
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }

// classifyFailure maps an error to the stored code. Kept in one place so the
// failed-job payload and the HTTP mapping never disagree.
func classifyFailure(err error) string {
	if err == nil {
		return ErrorCodeInternal
	}
	var schemaErr *SchemaError
	if errors.As(err, &schemaErr) {
		return ErrorCodeLLMSchema
	}
	var malformedErr *MalformedResponseError
	if errors.As(err, &malformedErr) {
		return ErrorCodeLLMMalformed
	}
	switch llm.KindOf(err) {
	case llm.KindTimeout:
		return ErrorCodeLLMTimeout
	case llm.KindRateLimited:
		return ErrorCodeLLMRateLimited
	case llm.KindUnauthorized:
		return ErrorCodeLLMUnauthorized
	case llm.KindForbidden:
		return ErrorCodeLLMForbidden
	case llm.KindServiceUnavailable:
		return ErrorCodeLLMUnavailable
	case llm.KindBadResponse:
		return ErrorCodeLLMMalformed
	}
	if errors.Is(err, ErrInvalidInput) {
		return ErrorCodeValidation
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "storage") || strings.Contains(msg, "document") || strings.Contains(msg, "load") {
		return ErrorCodeStorage
	}
	return ErrorCodeInternal
}

func sanitizeError(err error) string {
	if err == nil {
		return ""
	}
	msg := strings.ReplaceAll(err.Error(), "\n", " ")
	msg = strings.ReplaceAll(msg, "\r", " ")
	msg = strings.TrimSpace(msg)
	const maxLen = 500
	if len(msg) > maxLen {
		msg = msg[:maxLen]
	}
	return msg
}
