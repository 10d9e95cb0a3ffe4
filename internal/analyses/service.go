package analyses

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"statement-backend/internal/queue"
	"statement-backend/internal/shared/metrics"
	"statement-backend/internal/shared/storage/object"
	"statement-backend/internal/shared/telemetry"
	"statement-backend/internal/users"
)

// Progress milestones. Coarse by design: the reference UI only needs
// "started", "thinking", "saving", "done".
const (
	progressProcessing = 20
	progressSaving     = 80
)

// StartOptions carries optional job parameters.
type StartOptions struct {
	Title string
}

// Service owns the lifecycle of analysis jobs end to end. Job records are
// mutated exclusively here; every other component reads them through Repo.
type Service struct {
	Repo         Repo
	Users        users.Repo
	Store        object.ObjectStore
	Analyzer     *Analyzer
	Runner       Runner
	JobQueue     queue.Client
	DocumentMode DocumentMode
}

// StartAnalysis validates the request, creates the job record, and detaches
// execution. The returned job is in processing state with progress 0; clients
// poll GetStatus until it turns terminal.
func (s *Service) StartAnalysis(ctx context.Context, uploadID string, documentRefs []string, ownerID string, opts StartOptions) (AnalysisJob, error) {
	if len(documentRefs) == 0 {
		return AnalysisJob{}, fmt.Errorf("%w: no document references provided for analysis", ErrInvalidInput)
	}
	if strings.TrimSpace(ownerID) == "" {
		return AnalysisJob{}, fmt.Errorf("%w: owner id is required for analysis", ErrInvalidInput)
	}

	title := strings.TrimSpace(opts.Title)
	if title == "" {
		title = "Financial Analysis - " + time.Now().UTC().Format("2006-01-02")
	}

	now := time.Now().UTC()
	job := AnalysisJob{
		ID:                  uuid.NewString(),
		OwnerID:             ownerID,
		UploadID:            uploadID,
		Title:               title,
		DocumentRefs:        documentRefs,
		SourceDocumentCount: len(documentRefs),
		Status:              StatusProcessing,
		Progress:            0,
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	if err := s.Repo.Create(ctx, job); err != nil {
		return AnalysisJob{}, fmt.Errorf("create analysis job: %w", err)
	}

	requestID := requestIDFromContext(ctx)
	if s.JobQueue != nil {
		if err := s.JobQueue.Send(ctx, queue.Message{
			AnalysisID: job.ID,
			RequestID:  requestID,
			EnqueuedAt: now.Format(time.RFC3339),
			Version:    1,
		}); err == nil {
			return job, nil
		} else {
			telemetry.Error("analysis.enqueue_failed", map[string]any{
				"analysis_id": job.ID,
				"request_id":  requestID,
				"error":       sanitizeError(err),
			})
			// Fall through to in-process execution rather than stranding the job.
		}
	}

	runner := s.Runner
	if runner == nil {
		runner = GoRunner{}
	}
	detached := backgroundWithRequestID(ctx)
	runner.Go(func() {
		_ = s.ProcessAnalysis(detached, job.ID)
	})
	return job, nil
}

// ProcessAnalysis drives one job to a terminal state. It is the worker entry
// point as well as the target of the in-process runner. The original
// classified error is always re-raised to the caller; the terminal-state
// write on failure is best-effort.
func (s *Service) ProcessAnalysis(ctx context.Context, jobID string) error {
	startedAt := time.Now().UTC()

	job, err := s.Repo.GetByID(ctx, jobID)
	if err != nil {
		return fmt.Errorf("analysis lookup id=%s: %w", jobID, err)
	}
	if job.Terminal() {
		// Queue redelivery after completion; nothing to do.
		return nil
	}

	metrics.IncAnalysisStarted()
	s.logStatus(ctx, job, StatusProcessing, "created->processing", 0)

	result, procErr := s.runAnalysis(ctx, job)
	if procErr != nil {
		s.failJob(ctx, job, procErr, startedAt)
		return procErr
	}

	s.updateProgress(ctx, job.ID, progressSaving)

	completedAt := time.Now().UTC()
	merged := mergeMetadata(result, startedAt, completedAt, job.SourceDocumentCount, s.analyzer().ModelName())
	if err := s.Repo.Complete(ctx, job.ID, ResultMap(merged), completedAt); err != nil {
		err = fmt.Errorf("save analysis results: %w", err)
		s.failJob(ctx, job, err, startedAt)
		return err
	}

	metrics.IncAnalysisCompleted()
	metrics.ObserveAnalysisDurationMs(durationMs(startedAt, completedAt))
	s.logStatus(ctx, job, StatusCompleted, "processing->completed", durationMs(startedAt, completedAt))
	return nil
}

func (s *Service) runAnalysis(ctx context.Context, job AnalysisJob) (AnalysisResult, error) {
	s.updateProgress(ctx, job.ID, progressProcessing)

	if s.Store == nil {
		return AnalysisResult{}, errors.New("missing document store dependency")
	}
	docs, err := loadDocuments(ctx, s.Store, job.DocumentRefs, s.DocumentMode)
	if err != nil {
		return AnalysisResult{}, err
	}
	return s.analyzer().Analyze(ctx, docs)
}

func (s *Service) analyzer() *Analyzer {
	if s.Analyzer != nil {
		return s.Analyzer
	}
	return &Analyzer{}
}

// updateProgress persists a checkpoint. Failures are logged and swallowed:
// a missed checkpoint must never fail the job.
func (s *Service) updateProgress(ctx context.Context, jobID string, progress int) {
	if err := s.Repo.UpdateProgress(ctx, jobID, progress); err != nil {
		telemetry.Error("analysis.progress_update_failed", map[string]any{
			"analysis_id": jobID,
			"progress":    progress,
			"error":       sanitizeError(err),
		})
	}
}

// failJob records the terminal failure payload. Best-effort: if this write
// fails too, it is logged and the original error still reaches the caller.
func (s *Service) failJob(ctx context.Context, job AnalysisJob, procErr error, startedAt time.Time) {
	code := classifyFailure(procErr)
	completedAt := time.Now().UTC()
	payload := map[string]any{
		"error":     sanitizeError(procErr),
		"errorCode": code,
		"failedAt":  completedAt.Format(time.RFC3339),
	}
	var schemaErr *SchemaError
	if errors.As(procErr, &schemaErr) {
		payload["missingFields"] = schemaErr.MissingFields
	}
	if err := s.Repo.Fail(context.Background(), job.ID, payload, completedAt); err != nil {
		telemetry.Error("analysis.fail_update_failed", map[string]any{
			"analysis_id": job.ID,
			"error":       sanitizeError(err),
			"original":    sanitizeError(procErr),
		})
	}
	metrics.IncAnalysisFailed()
	metrics.ObserveAnalysisDurationMs(durationMs(startedAt, completedAt))
	s.logStatus(ctx, job, StatusFailed, "processing->failed", durationMs(startedAt, completedAt))
}

// GetStatus returns the job after an ownership check. The check tolerates the
// two coexisting owner formats: exact string match first, then one resolution
// in each direction through the users repo. Transitional compatibility code;
// new jobs always store the canonical account id.
func (s *Service) GetStatus(ctx context.Context, jobID, ownerID string) (AnalysisJob, error) {
	if strings.TrimSpace(jobID) == "" {
		return AnalysisJob{}, fmt.Errorf("%w: analysis id is required", ErrInvalidInput)
	}
	job, err := s.Repo.GetByID(ctx, jobID)
	if err != nil {
		return AnalysisJob{}, err
	}
	if !s.ownerMatches(ctx, job.OwnerID, ownerID) {
		return AnalysisJob{}, ErrAccessDenied
	}
	return job, nil
}

func (s *Service) ownerMatches(ctx context.Context, jobOwner, requester string) bool {
	if jobOwner == "" || requester == "" {
		return false
	}
	if jobOwner == requester {
		return true
	}
	if s.Users == nil {
		return false
	}
	if strings.Contains(jobOwner, "@") {
		// Legacy record stores the email; resolve it to the account id.
		user, err := s.Users.GetByEmail(ctx, jobOwner)
		if err == nil && user.ID == requester {
			telemetry.Info("analysis.owner_migration_match", map[string]any{
				"direction": "email->id",
			})
			return true
		}
		return false
	}
	// Record stores an id; the requester may be identified by the email of
	// that same account.
	user, err := s.Users.GetByID(ctx, requester)
	if err == nil && user.Email != "" && user.Email == jobOwner {
		telemetry.Info("analysis.owner_migration_match", map[string]any{
			"direction": "id->email",
		})
		return true
	}
	return false
}

// List returns the owner's jobs, newest first.
func (s *Service) List(ctx context.Context, ownerID string, limit, offset int) ([]AnalysisJob, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, fmt.Errorf("%w: owner id is required", ErrInvalidInput)
	}
	return s.Repo.ListByOwner(ctx, ownerID, limit, offset)
}

// Delete removes a job after the same access check as GetStatus. Idempotent:
// a missing job or a denied access both report false, not an error.
func (s *Service) Delete(ctx context.Context, jobID, ownerID string) (bool, error) {
	_, err := s.GetStatus(ctx, jobID, ownerID)
	if err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrAccessDenied) {
			return false, nil
		}
		return false, err
	}
	return s.Repo.Delete(ctx, jobID)
}

func mergeMetadata(result AnalysisResult, startedAt, completedAt time.Time, filesProcessed int, model string) AnalysisResult {
	meta := ResultMetadata{
		ProcessingTimeMs:  durationMs(startedAt, completedAt),
		FilesProcessed:    filesProcessed,
		AnalysisTimestamp: completedAt.Format(time.RFC3339),
		ModelUsed:         model,
	}
	if result.Metadata != nil {
		meta.IsPlaceholderData = result.Metadata.IsPlaceholderData
	}
	result.Metadata = &meta
	return result
}

func (s *Service) logStatus(ctx context.Context, job AnalysisJob, status, transition string, duration float64) {
	telemetry.Info("analysis.status", map[string]any{
		"request_id":        requestIDFromContext(ctx),
		"owner_id":          job.OwnerID,
		"upload_id":         job.UploadID,
		"analysis_id":       job.ID,
		"status":            status,
		"status_transition": transition,
		"duration_ms":       duration,
	})
}

func durationMs(startedAt, completedAt time.Time) float64 {
	return float64(completedAt.Sub(startedAt).Microseconds()) / 1000.0
}
