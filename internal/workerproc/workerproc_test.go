package workerproc

import (
	"context"
	"errors"
	"testing"

	"statement-backend/internal/queue"
)

type fakeProcessor struct {
	calls []string
	err   error
}

func (f *fakeProcessor) ProcessAnalysis(ctx context.Context, jobID string) error {
	f.calls = append(f.calls, jobID)
	return f.err
}

func encode(t *testing.T, msg queue.Message) string {
	t.Helper()
	payload, err := queue.EncodeMessage(msg)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	return string(payload)
}

func TestParseMessageEmptyBody(t *testing.T) {
	_, _, err := ParseMessage("   ")
	var emptyErr ErrEmptyBody
	if !errors.As(err, &emptyErr) {
		t.Fatalf("expected ErrEmptyBody, got %v", err)
	}
}

func TestParseMessageGarbage(t *testing.T) {
	_, meta, err := ParseMessage("{broken")
	var decodeErr ErrDecode
	if !errors.As(err, &decodeErr) {
		t.Fatalf("expected ErrDecode, got %v", err)
	}
	if meta.BodyLen != len("{broken") || meta.BodySHA == "" {
		t.Fatalf("meta not populated: %+v", meta)
	}
}

func TestParseMessageMissingAnalysisID(t *testing.T) {
	body := encode(t, queue.Message{RequestID: "req-1", Version: 1})
	_, _, err := ParseMessage(body)
	var missingErr ErrMissingAnalysisID
	if !errors.As(err, &missingErr) {
		t.Fatalf("expected ErrMissingAnalysisID, got %v", err)
	}
	if missingErr.RequestID != "req-1" {
		t.Fatalf("request id = %q", missingErr.RequestID)
	}
}

func TestHandleMessageDispatches(t *testing.T) {
	processor := &fakeProcessor{}
	body := encode(t, queue.Message{AnalysisID: "job-1", RequestID: "req-1", Version: 1})

	if err := HandleMessage(context.Background(), processor, body); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if len(processor.calls) != 1 || processor.calls[0] != "job-1" {
		t.Fatalf("calls = %v", processor.calls)
	}
}

func TestHandleMessageWrapsProcessError(t *testing.T) {
	cause := errors.New("boom")
	processor := &fakeProcessor{err: cause}
	body := encode(t, queue.Message{AnalysisID: "job-1", RequestID: "req-1", Version: 1})

	err := HandleMessage(context.Background(), processor, body)
	var procErr ErrProcess
	if !errors.As(err, &procErr) {
		t.Fatalf("expected ErrProcess, got %v", err)
	}
	if procErr.AnalysisID != "job-1" || !errors.Is(err, cause) {
		t.Fatalf("wrapped error lost details: %+v", procErr)
	}
}

func TestHandleMessageNilProcessor(t *testing.T) {
	body := encode(t, queue.Message{AnalysisID: "job-1"})
	if err := HandleMessage(context.Background(), nil, body); err == nil {
		t.Fatal("expected error for nil processor")
	}
}
