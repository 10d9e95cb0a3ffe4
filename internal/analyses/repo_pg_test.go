package analyses

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestPGRepoCreate(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGRepo{DB: db}
	now := time.Now().UTC()
	job := AnalysisJob{
		ID:                  "job-1",
		OwnerID:             "user-1",
		UploadID:            "upload-1",
		Title:               "Financial Analysis - 2026-08-30",
		DocumentRefs:        []string{"k1.pdf", "k2.csv"},
		SourceDocumentCount: 2,
		Status:              StatusProcessing,
		Progress:            0,
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	mock.ExpectExec("INSERT INTO analysis_jobs").
		WithArgs(
			job.ID,
			job.OwnerID,
			job.UploadID,
			job.Title,
			`["k1.pdf","k2.csv"]`,
			job.SourceDocumentCount,
			job.Status,
			job.Progress,
			nil,
			job.CreatedAt,
			job.UpdatedAt,
		).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := repo.Create(context.Background(), job); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoUpdateProgressUsesGreatestAndProcessingGuard(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGRepo{DB: db}

	mock.ExpectExec("UPDATE analysis_jobs\nSET progress = GREATEST\\(progress, \\$2\\), updated_at = NOW\\(\\)\nWHERE id = \\$1 AND status = 'processing'").
		WithArgs("job-1", 20).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.UpdateProgress(context.Background(), "job-1", 20); err != nil {
		t.Fatalf("UpdateProgress: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoUpdateProgressTerminalJob(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGRepo{DB: db}

	mock.ExpectExec("UPDATE analysis_jobs").
		WithArgs("job-1", 80).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT status FROM analysis_jobs").
		WithArgs("job-1").
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow(StatusCompleted))

	err = repo.UpdateProgress(context.Background(), "job-1", 80)
	if !errors.Is(err, ErrTerminal) {
		t.Fatalf("expected ErrTerminal, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoUpdateProgressMissingJob(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGRepo{DB: db}

	mock.ExpectExec("UPDATE analysis_jobs").
		WithArgs("nope", 20).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT status FROM analysis_jobs").
		WithArgs("nope").
		WillReturnRows(sqlmock.NewRows([]string{"status"}))

	err = repo.UpdateProgress(context.Background(), "nope", 20)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPGRepoCompleteGuardedUpdate(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGRepo{DB: db}
	completedAt := time.Now().UTC()

	mock.ExpectExec("UPDATE analysis_jobs\nSET status = 'completed', progress = 100").
		WithArgs("job-1", sqlmock.AnyArg(), completedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Complete(context.Background(), "job-1", map[string]any{"summary": "s"}, completedAt); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoGetByIDScansRefsAndResult(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGRepo{DB: db}
	now := time.Now().UTC()

	rows := sqlmock.NewRows([]string{
		"id", "owner_id", "upload_id", "title", "document_refs", "source_document_count",
		"status", "progress", "result", "created_at", "updated_at", "completed_at",
	}).AddRow(
		"job-1", "user-1", "upload-1", "title", `["a.pdf"]`, 1,
		StatusCompleted, 100, `{"summary":"s","totalIncome":10}`, now, now, now,
	)
	mock.ExpectQuery("SELECT id, owner_id, upload_id").
		WithArgs("job-1").
		WillReturnRows(rows)

	job, err := repo.GetByID(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if len(job.DocumentRefs) != 1 || job.DocumentRefs[0] != "a.pdf" {
		t.Fatalf("documentRefs = %v", job.DocumentRefs)
	}
	if job.Result["summary"] != "s" {
		t.Fatalf("result = %v", job.Result)
	}
	if job.CompletedAt == nil {
		t.Fatal("completedAt not scanned")
	}
}

func TestPGRepoDeleteReportsExistence(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGRepo{DB: db}

	mock.ExpectExec("DELETE FROM analysis_jobs").
		WithArgs("job-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM analysis_jobs").
		WithArgs("job-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	deleted, err := repo.Delete(context.Background(), "job-1")
	if err != nil || !deleted {
		t.Fatalf("first delete = (%v, %v)", deleted, err)
	}
	deleted, err = repo.Delete(context.Background(), "job-1")
	if err != nil || deleted {
		t.Fatalf("second delete = (%v, %v)", deleted, err)
	}
}
