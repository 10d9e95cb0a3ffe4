package users

import "time"

// User is an authenticated account. ID is the canonical owner identifier for
// all new records; Email is kept for legacy records that predate opaque ids.
type User struct {
	ID        string
	Email     string
	Name      string
	Picture   string
	CreatedAt time.Time
	UpdatedAt time.Time
}
