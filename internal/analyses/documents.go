package analyses

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"statement-backend/internal/extract"
	"statement-backend/internal/llm"
	"statement-backend/internal/shared/storage/object"
)

// DocumentMode selects how PDF statements are handed to the provider.
type DocumentMode string

const (
	// ModeNative sends PDFs inline as binary for the provider's own document
	// understanding.
	ModeNative DocumentMode = "native"
	// ModeText extracts PDF text locally and sends plain text.
	ModeText DocumentMode = "text"
)

// ParseDocumentMode normalizes a mode string, defaulting to native.
func ParseDocumentMode(raw string) DocumentMode {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case string(ModeText):
		return ModeText
	default:
		return ModeNative
	}
}

// loadDocuments resolves document refs (object-store keys) into provider
// payloads. Unsupported file types are skipped with a log entry rather than
// failing the whole batch; an all-unsupported batch surfaces as InvalidInput.
func loadDocuments(ctx context.Context, store object.ObjectStore, refs []string, mode DocumentMode) ([]llm.Document, error) {
	docs := make([]llm.Document, 0, len(refs))
	for _, ref := range refs {
		body, err := store.Open(ctx, ref)
		if err != nil {
			return nil, fmt.Errorf("load document %s: %w", ref, err)
		}
		data, err := io.ReadAll(body)
		body.Close()
		if err != nil {
			return nil, fmt.Errorf("load document %s: read: %w", ref, err)
		}

		name := path.Base(ref)
		switch strings.ToLower(path.Ext(ref)) {
		case ".pdf":
			if mode == ModeText {
				text, err := extract.TextFromPDF(data)
				if err != nil {
					return nil, fmt.Errorf("load document %s: extract text: %w", ref, err)
				}
				docs = append(docs, llm.Document{Name: name, MimeType: "text/plain", Text: text})
				continue
			}
			docs = append(docs, llm.Document{Name: name, MimeType: "application/pdf", Data: data})
		case ".csv":
			docs = append(docs, llm.Document{Name: name, MimeType: "text/csv", Text: string(data)})
		case ".txt":
			docs = append(docs, llm.Document{Name: name, MimeType: "text/plain", Text: string(data)})
		default:
			// Upload validation should have rejected these already.
			continue
		}
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("%w: no supported documents in batch", ErrInvalidInput)
	}
	return docs, nil
}
