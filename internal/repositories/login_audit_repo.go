package repositories

import (
	"context"
	"time"

	"github.com/calebmoran/roster/internal/database"
	"github.com/calebmoran/roster/internal/models"
)

// LoginAuditRepository stores login attempt audit rows.
type LoginAuditRepository struct {
	db *database.DB
}

func NewLoginAuditRepository(db *database.DB) *LoginAuditRepository {
	return &LoginAuditRepository{db: db}
}

// Record appends a login attempt audit row.
func (r *LoginAuditRepository) Record(ctx context.Context, attempt *models.LoginAttempt) error {
	query := `
		INSERT INTO login_audit (email, ip_address, user_agent, attempt_time, success, failure_reason, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.Pool.Exec(ctx, query,
		attempt.Email,
		attempt.IPAddress,
		attempt.UserAgent,
		attempt.AttemptTime,
		attempt.Success,
		attempt.FailureReason,
		attempt.ExpiresAt,
	)
	return err
}

// RecentFailureCount returns failed attempts for an email since the given time.
func (r *LoginAuditRepository) RecentFailureCount(ctx context.Context, email string, since time.Time) (int, error) {
	query := `
		SELECT COUNT(*) FROM login_audit
		WHERE lower(email) = lower($1) AND success = false AND attempt_time >= $2
	`

	var count int
	err := r.db.Pool.QueryRow(ctx, query, email, since).Scan(&count)
	return count, err
}

// DeleteExpired removes audit rows past their retention window.
func (r *LoginAuditRepository) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := r.db.Pool.Exec(ctx, `DELETE FROM login_audit WHERE expires_at <= CURRENT_TIMESTAMP`)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}
