package services

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/calebmoran/roster/internal/models"
	pkgauth "github.com/calebmoran/roster/pkg/auth"
	pkglogger "github.com/calebmoran/roster/pkg/logger"
	"github.com/calebmoran/roster/pkg/nickname"
	"github.com/go-playground/validator/v10"
)

// AccountRepository defines the interface for account data access
type AccountRepository interface {
	GetByID(ctx context.Context, id string) (*models.Account, error)
	GetByEmail(ctx context.Context, email string) (*models.Account, error)
	GetByNickname(ctx context.Context, nickname string) (*models.Account, error)
	List(ctx context.Context, limit, offset int) ([]*models.Account, error)
	Search(ctx context.Context, filters models.SearchFilters, limit, offset int) ([]*models.Account, error)
	Create(ctx context.Context, acct *models.Account) (*models.Account, error)
	Update(ctx context.Context, id string, acct *models.Account) (*models.Account, error)
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int64, error)
}

// LoginAuditRecorder appends login attempt audit rows.
type LoginAuditRecorder interface {
	Record(ctx context.Context, attempt *models.LoginAttempt) error
}

// CreateAccountRequest is the validated input for account creation.
type CreateAccountRequest struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required"`
	Nickname  string `json:"nickname" validate:"omitempty,min=3,max=50"`
	FirstName string `json:"first_name" validate:"omitempty,max=100"`
	LastName  string `json:"last_name" validate:"omitempty,max=100"`
	Role      string `json:"role" validate:"omitempty,oneof=ANONYMOUS AUTHENTICATED MANAGER ADMIN"`
}

// UpdateAccountRequest is a partial patch; nil fields are left untouched.
type UpdateAccountRequest struct {
	Email          *string `json:"email" validate:"omitempty,email"`
	Nickname       *string `json:"nickname" validate:"omitempty,min=3,max=50"`
	Password       *string `json:"password" validate:"omitempty"`
	FirstName      *string `json:"first_name" validate:"omitempty,max=100"`
	LastName       *string `json:"last_name" validate:"omitempty,max=100"`
	Bio            *string `json:"bio" validate:"omitempty,max=500"`
	LinkedInURL    *string `json:"linkedin_url" validate:"omitempty,url"`
	GitHubURL      *string `json:"github_url" validate:"omitempty,url"`
	IsProfessional *bool   `json:"is_professional"`
	Role           *string `json:"role" validate:"omitempty,oneof=ANONYMOUS AUTHENTICATED MANAGER ADMIN"`
}

// LoginMetadata carries request context recorded in the login audit trail.
type LoginMetadata struct {
	IPAddress string
	UserAgent string
}

// AccountServiceConfig holds the tunables the service needs; passed in
// explicitly so there is no global settings object.
type AccountServiceConfig struct {
	MaxLoginAttempts    int
	LoginAuditRetention time.Duration
}

// AccountService owns the account lifecycle: creation, profile updates,
// authentication with lockout, email verification, search, and deletion.
type AccountService struct {
	repo       AccountRepository
	loginAudit LoginAuditRecorder
	email      EmailService
	logger     *slog.Logger
	audit      *pkglogger.AuditLogger
	validate   *validator.Validate
	cfg        AccountServiceConfig
}

func NewAccountService(
	repo AccountRepository,
	loginAudit LoginAuditRecorder,
	email EmailService,
	logger *slog.Logger,
	audit *pkglogger.AuditLogger,
	cfg AccountServiceConfig,
) *AccountService {
	return &AccountService{
		repo:       repo,
		loginAudit: loginAudit,
		email:      email,
		logger:     logger,
		audit:      audit,
		validate:   validator.New(),
		cfg:        cfg,
	}
}

// GetByID retrieves an account by its id.
func (s *AccountService) GetByID(ctx context.Context, id string) (*models.Account, error) {
	acct, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		s.logger.Error("failed to get account", slog.String("account_id", id), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	return acct, nil
}

// GetByEmail retrieves an account by email (case-insensitive).
func (s *AccountService) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	acct, err := s.repo.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		s.logger.Error("failed to get account by email", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	return acct, nil
}

// GetByNickname retrieves an account by nickname (case-insensitive).
func (s *AccountService) GetByNickname(ctx context.Context, nick string) (*models.Account, error) {
	acct, err := s.repo.GetByNickname(ctx, strings.TrimSpace(nick))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		s.logger.Error("failed to get account by nickname", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	return acct, nil
}

// Create validates and persists a new account, then queues a verification
// email. The email dispatch is best-effort: a send failure is logged but
// does not undo the creation.
func (s *AccountService) Create(ctx context.Context, req CreateAccountRequest) (*models.Account, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %s", models.ErrValidation, err.Error())
	}

	if err := pkgauth.ValidatePassword(req.Password); err != nil {
		return nil, fmt.Errorf("%w: %s", models.ErrValidation, err.Error())
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))

	nick := strings.TrimSpace(req.Nickname)
	if nick == "" {
		generated, err := s.generateUniqueNickname(ctx)
		if err != nil {
			return nil, err
		}
		nick = generated
	}

	// Pre-checks give friendly conflict reporting; the unique indexes on
	// lower(email) and lower(nickname) remain the authoritative guard
	// against concurrent creation races.
	if _, err := s.repo.GetByEmail(ctx, email); err == nil {
		s.logger.Info("account creation failed: email already registered",
			slog.String("email", pkglogger.SanitizedEmail(email)))
		return nil, models.ErrConflict
	} else if !errors.Is(err, models.ErrNotFound) {
		s.logger.Error("failed to check email uniqueness", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if _, err := s.repo.GetByNickname(ctx, nick); err == nil {
		s.logger.Info("account creation failed: nickname already taken", slog.String("nickname", nick))
		return nil, models.ErrConflict
	} else if !errors.Is(err, models.ErrNotFound) {
		s.logger.Error("failed to check nickname uniqueness", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	hashedPassword, err := pkgauth.HashPassword(req.Password)
	if err != nil {
		s.logger.Error("failed to hash password", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	token, err := pkgauth.GenerateVerificationToken()
	if err != nil {
		s.logger.Error("failed to generate verification token", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	acct := &models.Account{
		Email:             email,
		Nickname:          nick,
		HashedPassword:    hashedPassword,
		Role:              req.Role,
		VerificationToken: &token,
	}
	if req.FirstName != "" {
		acct.FirstName = &req.FirstName
	}
	if req.LastName != "" {
		acct.LastName = &req.LastName
	}

	created, err := s.repo.Create(ctx, acct)
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			s.logger.Info("account creation lost uniqueness race")
			return nil, models.ErrConflict
		}
		s.logger.Error("failed to create account", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if err := s.email.SendVerificationEmail(ctx, created.Email, token); err != nil {
		s.logger.Error("failed to send verification email",
			slog.String("account_id", created.ID),
			slog.Any("error", err))
	}

	s.logger.Info("account created", slog.String("account_id", created.ID))
	s.audit.LogAccountAction("account_created", created.ID)
	return created, nil
}

// Update applies a partial patch. Fields absent from the patch are untouched.
func (s *AccountService) Update(ctx context.Context, id string, req UpdateAccountRequest) (*models.Account, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %s", models.ErrValidation, err.Error())
	}

	existing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		s.logger.Error("failed to get account", slog.String("account_id", id), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if req.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*req.Email))
		if !strings.EqualFold(email, existing.Email) {
			other, err := s.repo.GetByEmail(ctx, email)
			if err == nil && other.ID != id {
				return nil, models.ErrConflict
			}
			if err != nil && !errors.Is(err, models.ErrNotFound) {
				s.logger.Error("failed to check email uniqueness", slog.Any("error", err))
				return nil, models.ErrInternalServer
			}
		}
		existing.Email = email
	}

	if req.Nickname != nil {
		nick := strings.TrimSpace(*req.Nickname)
		if !strings.EqualFold(nick, existing.Nickname) {
			other, err := s.repo.GetByNickname(ctx, nick)
			if err == nil && other.ID != id {
				return nil, models.ErrConflict
			}
			if err != nil && !errors.Is(err, models.ErrNotFound) {
				s.logger.Error("failed to check nickname uniqueness", slog.Any("error", err))
				return nil, models.ErrInternalServer
			}
		}
		existing.Nickname = nick
	}

	if req.Password != nil {
		if err := pkgauth.ValidatePassword(*req.Password); err != nil {
			return nil, fmt.Errorf("%w: %s", models.ErrValidation, err.Error())
		}
		hashed, err := pkgauth.HashPassword(*req.Password)
		if err != nil {
			s.logger.Error("failed to hash password", slog.Any("error", err))
			return nil, models.ErrInternalServer
		}
		existing.HashedPassword = hashed
	}

	if req.FirstName != nil {
		existing.FirstName = req.FirstName
	}
	if req.LastName != nil {
		existing.LastName = req.LastName
	}
	if req.Bio != nil {
		existing.Bio = req.Bio
	}
	if req.LinkedInURL != nil {
		existing.LinkedInURL = req.LinkedInURL
	}
	if req.GitHubURL != nil {
		existing.GitHubURL = req.GitHubURL
	}
	if req.IsProfessional != nil {
		existing.IsProfessional = *req.IsProfessional
	}
	if req.Role != nil {
		existing.Role = *req.Role
	}

	updated, err := s.repo.Update(ctx, id, existing)
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			return nil, models.ErrConflict
		}
		s.logger.Error("failed to update account", slog.String("account_id", id), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("account updated", slog.String("account_id", id))
	return updated, nil
}

// Delete physically removes an account.
func (s *AccountService) Delete(ctx context.Context, id string) error {
	err := s.repo.Delete(ctx, id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.logger.Info("account not found for deletion", slog.String("account_id", id))
			return models.ErrNotFound
		}
		s.logger.Error("failed to delete account", slog.String("account_id", id), slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.logger.Info("account deleted", slog.String("account_id", id))
	s.audit.LogAccountAction("account_deleted", id)
	return nil
}

// List returns accounts windowed by offset/limit, newest first.
func (s *AccountService) List(ctx context.Context, limit, offset int) ([]*models.Account, error) {
	accounts, err := s.repo.List(ctx, limit, offset)
	if err != nil {
		s.logger.Error("failed to list accounts", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	return accounts, nil
}

// Search applies AND-combined filters and returns display-shaped results;
// the password hash never leaves this method.
func (s *AccountService) Search(ctx context.Context, filters models.SearchFilters, limit, offset int) ([]*models.AccountSummary, error) {
	accounts, err := s.repo.Search(ctx, filters, limit, offset)
	if err != nil {
		s.logger.Error("failed to search accounts", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	summaries := make([]*models.AccountSummary, len(accounts))
	for i, acct := range accounts {
		summaries[i] = acct.Summary()
	}
	return summaries, nil
}

// Login authenticates an account. Every failure mode — unknown email,
// unverified, locked, wrong password — reports the same ErrUnauthorized so
// the result is not an account-existence oracle. The audit trail and logs
// keep the distinction.
func (s *AccountService) Login(ctx context.Context, email, password string, meta LoginMetadata) (*models.Account, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, models.ErrUnauthorized
	}

	acct, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.logger.Info("login failed: invalid credentials")
			s.recordLoginAttempt(ctx, email, meta, false, "unknown_email")
			return nil, models.ErrUnauthorized
		}
		s.logger.Error("failed to get account by email", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if !acct.EmailVerified {
		s.logger.Info("login blocked: email not verified", slog.String("account_id", acct.ID))
		s.recordLoginAttempt(ctx, email, meta, false, "email_not_verified")
		return nil, models.ErrUnauthorized
	}

	if acct.IsLocked {
		s.logger.Info("login blocked: account locked", slog.String("account_id", acct.ID))
		s.recordLoginAttempt(ctx, email, meta, false, "account_locked")
		return nil, models.ErrUnauthorized
	}

	if err := pkgauth.ComparePassword(acct.HashedPassword, password); err != nil {
		acct.FailedLoginAttempts++
		if acct.FailedLoginAttempts >= s.cfg.MaxLoginAttempts {
			acct.IsLocked = true
			s.logger.Warn("account locked after repeated failures",
				slog.String("account_id", acct.ID),
				slog.Int("attempts", acct.FailedLoginAttempts))
			s.audit.LogAccountAction("account_locked", acct.ID)
		}
		if _, err := s.repo.Update(ctx, acct.ID, acct); err != nil {
			s.logger.Error("failed to persist failed login attempt",
				slog.String("account_id", acct.ID), slog.Any("error", err))
		}
		s.recordLoginAttempt(ctx, email, meta, false, "invalid_credentials")
		return nil, models.ErrUnauthorized
	}

	now := time.Now()
	acct.FailedLoginAttempts = 0
	acct.LastLoginAt = &now

	updated, err := s.repo.Update(ctx, acct.ID, acct)
	if err != nil {
		s.logger.Error("failed to persist login", slog.String("account_id", acct.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("login succeeded", slog.String("account_id", updated.ID))
	s.recordLoginAttempt(ctx, email, meta, true, "")
	return updated, nil
}

// IsAccountLocked reports the lock flag; a nonexistent account reads as not
// locked. Callers needing an existence check should use GetByEmail.
func (s *AccountService) IsAccountLocked(ctx context.Context, email string) (bool, error) {
	acct, err := s.repo.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return false, nil
		}
		s.logger.Error("failed to check lock status", slog.Any("error", err))
		return false, models.ErrInternalServer
	}
	return acct.IsLocked, nil
}

// ResetPassword replaces the credential and clears lockout state
// unconditionally.
func (s *AccountService) ResetPassword(ctx context.Context, id, newPassword string) error {
	if err := pkgauth.ValidatePassword(newPassword); err != nil {
		return fmt.Errorf("%w: %s", models.ErrValidation, err.Error())
	}

	acct, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrNotFound
		}
		s.logger.Error("failed to get account", slog.String("account_id", id), slog.Any("error", err))
		return models.ErrInternalServer
	}

	hashed, err := pkgauth.HashPassword(newPassword)
	if err != nil {
		s.logger.Error("failed to hash password", slog.Any("error", err))
		return models.ErrInternalServer
	}

	acct.HashedPassword = hashed
	acct.FailedLoginAttempts = 0
	acct.IsLocked = false

	if _, err := s.repo.Update(ctx, id, acct); err != nil {
		s.logger.Error("failed to persist password reset", slog.String("account_id", id), slog.Any("error", err))
		s.audit.LogPasswordChange(id, false)
		return models.ErrInternalServer
	}

	s.audit.LogPasswordChange(id, true)
	return nil
}

// VerifyEmail consumes the verification token: at most one call succeeds.
// On success the token is cleared and an ANONYMOUS account is promoted to
// AUTHENTICATED; other roles are left as they are.
func (s *AccountService) VerifyEmail(ctx context.Context, id, token string) error {
	acct, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrNotFound
		}
		s.logger.Error("failed to get account", slog.String("account_id", id), slog.Any("error", err))
		return models.ErrInternalServer
	}

	if acct.EmailVerified {
		s.logger.Info("verification rejected: already verified", slog.String("account_id", id))
		return models.ErrAlreadyVerified
	}

	if acct.VerificationToken == nil ||
		subtle.ConstantTimeCompare([]byte(*acct.VerificationToken), []byte(token)) != 1 {
		s.logger.Info("verification rejected: token mismatch", slog.String("account_id", id))
		return models.ErrUnauthorized
	}

	acct.EmailVerified = true
	acct.VerificationToken = nil
	if acct.Role == models.RoleAnonymous {
		acct.Role = models.RoleAuthenticated
	}

	if _, err := s.repo.Update(ctx, id, acct); err != nil {
		s.logger.Error("failed to persist email verification", slog.String("account_id", id), slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.logger.Info("email verified", slog.String("account_id", id))
	s.audit.LogAccountAction("email_verified", id)
	return nil
}

// UnlockAccount clears the lock and failure counter. It fails when the
// account does not exist or is not currently locked.
func (s *AccountService) UnlockAccount(ctx context.Context, id string) error {
	acct, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrNotFound
		}
		s.logger.Error("failed to get account", slog.String("account_id", id), slog.Any("error", err))
		return models.ErrInternalServer
	}

	if !acct.IsLocked {
		return models.ErrAccountNotLocked
	}

	acct.IsLocked = false
	acct.FailedLoginAttempts = 0

	if _, err := s.repo.Update(ctx, id, acct); err != nil {
		s.logger.Error("failed to persist unlock", slog.String("account_id", id), slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.logger.Info("account unlocked", slog.String("account_id", id))
	s.audit.LogAccountAction("account_unlocked", id)
	return nil
}

// Count returns the total number of accounts.
func (s *AccountService) Count(ctx context.Context) (int64, error) {
	count, err := s.repo.Count(ctx)
	if err != nil {
		s.logger.Error("failed to count accounts", slog.Any("error", err))
		return 0, models.ErrInternalServer
	}
	return count, nil
}

func (s *AccountService) generateUniqueNickname(ctx context.Context) (string, error) {
	for i := 0; i < 5; i++ {
		nick, err := nickname.Generate()
		if err != nil {
			s.logger.Error("failed to generate nickname", slog.Any("error", err))
			return "", models.ErrInternalServer
		}

		_, err = s.repo.GetByNickname(ctx, nick)
		if errors.Is(err, models.ErrNotFound) {
			return nick, nil
		}
		if err != nil && !errors.Is(err, models.ErrNotFound) {
			s.logger.Error("failed to check generated nickname", slog.Any("error", err))
			return "", models.ErrInternalServer
		}
	}
	return "", models.ErrConflict
}

// recordLoginAttempt is best-effort; audit failures never affect the login
// outcome.
func (s *AccountService) recordLoginAttempt(ctx context.Context, email string, meta LoginMetadata, success bool, reason string) {
	s.audit.LogAuthAttempt(pkglogger.AuditEvent{
		EventType:     "login",
		IPAddress:     meta.IPAddress,
		UserAgent:     meta.UserAgent,
		Success:       success,
		FailureReason: reason,
	})

	if s.loginAudit == nil {
		return
	}

	attempt := &models.LoginAttempt{
		Email:       email,
		IPAddress:   meta.IPAddress,
		UserAgent:   meta.UserAgent,
		AttemptTime: time.Now(),
		Success:     success,
		ExpiresAt:   time.Now().Add(s.cfg.LoginAuditRetention),
	}
	if reason != "" {
		attempt.FailureReason = &reason
	}

	if err := s.loginAudit.Record(ctx, attempt); err != nil {
		s.logger.Error("failed to record login attempt", slog.Any("error", err))
	}
}
