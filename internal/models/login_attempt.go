package models

import "time"

// LoginAttempt is an append-only audit record of a single login attempt.
// The lockout counter itself lives on the account row; these rows exist
// for auditing and are pruned after ExpiresAt.
type LoginAttempt struct {
	ID            string
	Email         string
	IPAddress     string
	UserAgent     string
	AttemptTime   time.Time
	Success       bool
	FailureReason *string
	ExpiresAt     time.Time
}
