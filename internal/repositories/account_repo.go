package repositories

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/calebmoran/roster/internal/database"
	"github.com/calebmoran/roster/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const accountColumns = `id, email, nickname, hashed_password, first_name, last_name, bio,
	linkedin_url, github_url, is_professional, role, email_verified, verification_token,
	is_locked, failed_login_attempts, last_login_at, created_at, updated_at`

type AccountRepository struct {
	pool *pgxpool.Pool
}

func NewAccountRepository(db *database.DB) *AccountRepository {
	return &AccountRepository{pool: db.Pool}
}

// rowScanner covers both pgx.Row and pgx.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAccountRow(scanner rowScanner) (*models.Account, error) {
	var acct models.Account

	err := scanner.Scan(
		&acct.ID, &acct.Email, &acct.Nickname, &acct.HashedPassword,
		&acct.FirstName, &acct.LastName, &acct.Bio,
		&acct.LinkedInURL, &acct.GitHubURL, &acct.IsProfessional,
		&acct.Role, &acct.EmailVerified, &acct.VerificationToken,
		&acct.IsLocked, &acct.FailedLoginAttempts, &acct.LastLoginAt,
		&acct.CreatedAt, &acct.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &acct, nil
}

func scanAccountRows(rows pgx.Rows) ([]*models.Account, error) {
	defer rows.Close()

	accounts := make([]*models.Account, 0)

	for rows.Next() {
		acct, err := scanAccountRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, acct)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return accounts, nil
}

func (r *AccountRepository) GetByID(ctx context.Context, id string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	return scanAccountRow(r.pool.QueryRow(ctx, query, id))
}

// GetByEmail matches case-insensitively; email uniqueness is enforced the
// same way, so at most one row can match.
func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE lower(email) = lower($1)`
	return scanAccountRow(r.pool.QueryRow(ctx, query, email))
}

func (r *AccountRepository) GetByNickname(ctx context.Context, nickname string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE lower(nickname) = lower($1)`
	return scanAccountRow(r.pool.QueryRow(ctx, query, nickname))
}

func (r *AccountRepository) List(ctx context.Context, limit, offset int) ([]*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts ORDER BY created_at DESC LIMIT $1 OFFSET $2`

	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts: %w", err)
	}

	return scanAccountRows(rows)
}

// Search applies AND-combined optional filters and windows the result set.
func (r *AccountRepository) Search(ctx context.Context, filters models.SearchFilters, limit, offset int) ([]*models.Account, error) {
	var conditions []string
	var args []interface{}

	addFilter := func(condition string, value interface{}) {
		args = append(args, value)
		conditions = append(conditions, fmt.Sprintf(condition, len(args)))
	}

	if filters.Nickname != "" {
		addFilter("lower(nickname) = lower($%d)", filters.Nickname)
	}
	if filters.Email != "" {
		addFilter("lower(email) = lower($%d)", filters.Email)
	}
	if filters.FirstName != "" {
		addFilter("lower(first_name) = lower($%d)", filters.FirstName)
	}
	if filters.LastName != "" {
		addFilter("lower(last_name) = lower($%d)", filters.LastName)
	}
	if filters.Role != "" {
		addFilter("role = $%d", filters.Role)
	}
	if filters.AccountStatus != "" {
		addFilter("is_locked = $%d", strings.EqualFold(filters.AccountStatus, models.AccountStatusLocked))
	}
	if filters.CreatedFrom != nil {
		addFilter("created_at >= $%d", *filters.CreatedFrom)
	}
	if filters.CreatedTo != nil {
		addFilter("created_at <= $%d", *filters.CreatedTo)
	}

	query := `SELECT ` + accountColumns + ` FROM accounts`
	if len(conditions) > 0 {
		query += ` WHERE ` + strings.Join(conditions, " AND ")
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search accounts: %w", err)
	}

	return scanAccountRows(rows)
}

func (r *AccountRepository) Create(ctx context.Context, acct *models.Account) (*models.Account, error) {
	acct.ID = uuid.New().String()

	now := time.Now()
	acct.CreatedAt = now
	acct.UpdatedAt = now

	if acct.Role == "" {
		acct.Role = models.RoleAnonymous
	}

	query := `
		INSERT INTO accounts (id, email, nickname, hashed_password, first_name, last_name, bio,
			linkedin_url, github_url, is_professional, role, email_verified, verification_token,
			is_locked, failed_login_attempts, last_login_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		RETURNING ` + accountColumns

	return scanAccountRow(r.pool.QueryRow(ctx, query,
		acct.ID, acct.Email, acct.Nickname, acct.HashedPassword,
		acct.FirstName, acct.LastName, acct.Bio,
		acct.LinkedInURL, acct.GitHubURL, acct.IsProfessional,
		acct.Role, acct.EmailVerified, acct.VerificationToken,
		acct.IsLocked, acct.FailedLoginAttempts, acct.LastLoginAt,
		acct.CreatedAt, acct.UpdatedAt,
	))
}

// Update persists every mutable column; the service layer owns the
// read-modify-write cycle.
func (r *AccountRepository) Update(ctx context.Context, id string, acct *models.Account) (*models.Account, error) {
	acct.UpdatedAt = time.Now()

	query := `
		UPDATE accounts SET email = $1, nickname = $2, hashed_password = $3, first_name = $4,
			last_name = $5, bio = $6, linkedin_url = $7, github_url = $8, is_professional = $9,
			role = $10, email_verified = $11, verification_token = $12, is_locked = $13,
			failed_login_attempts = $14, last_login_at = $15, updated_at = $16
		WHERE id = $17
		RETURNING ` + accountColumns

	return scanAccountRow(r.pool.QueryRow(ctx, query,
		acct.Email, acct.Nickname, acct.HashedPassword, acct.FirstName,
		acct.LastName, acct.Bio, acct.LinkedInURL, acct.GitHubURL, acct.IsProfessional,
		acct.Role, acct.EmailVerified, acct.VerificationToken, acct.IsLocked,
		acct.FailedLoginAttempts, acct.LastLoginAt, acct.UpdatedAt, id,
	))
}

func (r *AccountRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM accounts WHERE id = $1`

	result, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return database.MapPostgresError(err)
	}

	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}

	return nil
}

func (r *AccountRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM accounts`).Scan(&count)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return count, nil
}
