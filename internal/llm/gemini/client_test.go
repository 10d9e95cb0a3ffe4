package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"statement-backend/internal/llm"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient("test-key", "test-model")
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	client.baseURL = server.URL
	return client
}

func TestNewClientRequiresAPIKey(t *testing.T) {
	_, err := NewClient("", "")
	if !errors.Is(err, llm.ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestNewClientDefaultsModel(t *testing.T) {
	client, err := NewClient("key", "")
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if client.ModelName() != defaultModel {
		t.Fatalf("model = %s, want %s", client.ModelName(), defaultModel)
	}
}

func TestGenerateAnalysisConcatenatesParts(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("x-goog-api-key"); got != "test-key" {
			t.Errorf("api key header = %q", got)
		}
		var req generateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if len(req.Contents) != 1 || len(req.Contents[0].Parts) != 3 {
			t.Errorf("unexpected request shape: %+v", req)
		}
		if req.Contents[0].Parts[1].InlineData == nil {
			t.Error("pdf document should be sent inline")
		}
		json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{{
				"content": map[string]any{
					"parts": []map[string]string{{"text": `{"a":`}, {"text": ` 1}`}},
				},
			}},
		})
	})

	text, err := client.GenerateAnalysis(context.Background(), llm.Request{
		Prompt: "analyze",
		Documents: []llm.Document{
			{Name: "a.pdf", MimeType: "application/pdf", Data: []byte("%PDF-")},
			{Name: "b.csv", MimeType: "text/csv", Text: "date,amount"},
		},
	})
	if err != nil {
		t.Fatalf("GenerateAnalysis: %v", err)
	}
	if text != `{"a": 1}` {
		t.Fatalf("text = %q", text)
	}
}

func TestGenerateAnalysisEmptyCandidates(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"candidates": []any{}})
	})

	_, err := client.GenerateAnalysis(context.Background(), llm.Request{Prompt: "p"})
	if llm.KindOf(err) != llm.KindBadResponse {
		t.Fatalf("expected bad_response, got %v", err)
	}
}

func TestGenerateAnalysisStatusClassification(t *testing.T) {
	tests := []struct {
		status int
		want   llm.Kind
	}{
		{http.StatusTooManyRequests, llm.KindRateLimited},
		{http.StatusUnauthorized, llm.KindUnauthorized},
		{http.StatusForbidden, llm.KindForbidden},
		{http.StatusServiceUnavailable, llm.KindServiceUnavailable},
		{http.StatusBadRequest, llm.KindBadResponse},
	}
	for _, tt := range tests {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
			w.Write([]byte(`{"error": {"message": "nope", "status": "TEST"}}`))
		})
		_, err := client.GenerateAnalysis(context.Background(), llm.Request{Prompt: "p"})
		if llm.KindOf(err) != tt.want {
			t.Fatalf("status %d classified as %v, want %s", tt.status, err, tt.want)
		}
		var le *llm.Error
		if !errors.As(err, &le) || le.Message == "" {
			t.Fatalf("status %d should carry the api error message, got %v", tt.status, err)
		}
	}
}

func TestClassifyStatusMessageFallback(t *testing.T) {
	got := classifyStatus(500, []byte("plain text error"))
	if got.Kind != llm.KindServiceUnavailable {
		t.Fatalf("kind = %s", got.Kind)
	}
	if got.Message != "plain text error" {
		t.Fatalf("message = %q", got.Message)
	}
}
