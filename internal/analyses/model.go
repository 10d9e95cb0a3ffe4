package analyses

import "time"

const (
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// AnalysisJob represents one statement-analysis job. OwnerID is an untyped
// string: new records carry the opaque account id, legacy records may still
// carry the owner's email address.
type AnalysisJob struct {
	ID                  string         `json:"id"`
	OwnerID             string         `json:"ownerId"`
	UploadID            string         `json:"uploadId,omitempty"`
	Title               string         `json:"title"`
	DocumentRefs        []string       `json:"documentRefs,omitempty"`
	SourceDocumentCount int            `json:"sourceDocumentCount"`
	Status              string         `json:"status"`
	Progress            int            `json:"progress"`
	Result              map[string]any `json:"result,omitempty"`
	CreatedAt           time.Time      `json:"createdAt"`
	UpdatedAt           time.Time      `json:"updatedAt"`
	CompletedAt         *time.Time     `json:"completedAt,omitempty"`
}

// Terminal reports whether the job reached a final state.
func (j AnalysisJob) Terminal() bool {
	return j.Status == StatusCompleted || j.Status == StatusFailed
}
