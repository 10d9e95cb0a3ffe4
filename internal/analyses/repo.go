package analyses

import (
	"context"
	"errors"
	"time"
)

// ErrTerminal is returned on writes against a completed or failed job.
// Terminal jobs are immutable except for explicit deletion.
var ErrTerminal = errors.New("analysis already in terminal state")

// Repo defines persistence operations for analysis jobs. Implementations
// must preserve last-writer-wins per job id and refuse status/progress/result
// writes once a job is terminal.
type Repo interface {
	Create(ctx context.Context, job AnalysisJob) error
	GetByID(ctx context.Context, jobID string) (AnalysisJob, error)
	UpdateProgress(ctx context.Context, jobID string, progress int) error
	Complete(ctx context.Context, jobID string, result map[string]any, completedAt time.Time) error
	Fail(ctx context.Context, jobID string, result map[string]any, completedAt time.Time) error
	ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]AnalysisJob, error)
	Delete(ctx context.Context, jobID string) (bool, error)
}
