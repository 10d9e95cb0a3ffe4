package health

import (
	"context"
	"database/sql"
	"time"
)

// Service encapsulates health-related checks.
type Service struct {
	db *sql.DB
}

// NewService constructs a health service with no database check.
func NewService() *Service {
	return &Service{}
}

// NewServiceWithDB constructs a health service that also pings the database.
func NewServiceWithDB(db *sql.DB) *Service {
	return &Service{db: db}
}

// Status returns the health payload. The database check is advisory; a failed
// ping is reported, not fatal.
func (s *Service) Status(ctx context.Context) map[string]any {
	status := map[string]any{"ok": true}
	if s.db != nil {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := s.db.PingContext(pingCtx); err != nil {
			status["database"] = "unreachable"
		} else {
			status["database"] = "ok"
		}
	}
	return status
}
