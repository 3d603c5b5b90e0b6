package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/calebmoran/roster/internal/models"
	pkglogger "github.com/calebmoran/roster/pkg/logger"
)

// MockAccountRepository implements AccountRepository for testing
type MockAccountRepository struct {
	GetByIDFunc       func(ctx context.Context, id string) (*models.Account, error)
	GetByEmailFunc    func(ctx context.Context, email string) (*models.Account, error)
	GetByNicknameFunc func(ctx context.Context, nickname string) (*models.Account, error)
	ListFunc          func(ctx context.Context, limit, offset int) ([]*models.Account, error)
	SearchFunc        func(ctx context.Context, filters models.SearchFilters, limit, offset int) ([]*models.Account, error)
	CreateFunc        func(ctx context.Context, acct *models.Account) (*models.Account, error)
	UpdateFunc        func(ctx context.Context, id string, acct *models.Account) (*models.Account, error)
	DeleteFunc        func(ctx context.Context, id string) error
	CountFunc         func(ctx context.Context) (int64, error)
}

func (m *MockAccountRepository) GetByID(ctx context.Context, id string) (*models.Account, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockAccountRepository) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	if m.GetByEmailFunc != nil {
		return m.GetByEmailFunc(ctx, email)
	}
	return nil, models.ErrNotFound
}

func (m *MockAccountRepository) GetByNickname(ctx context.Context, nickname string) (*models.Account, error) {
	if m.GetByNicknameFunc != nil {
		return m.GetByNicknameFunc(ctx, nickname)
	}
	return nil, models.ErrNotFound
}

func (m *MockAccountRepository) List(ctx context.Context, limit, offset int) ([]*models.Account, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, limit, offset)
	}
	return []*models.Account{}, nil
}

func (m *MockAccountRepository) Search(ctx context.Context, filters models.SearchFilters, limit, offset int) ([]*models.Account, error) {
	if m.SearchFunc != nil {
		return m.SearchFunc(ctx, filters, limit, offset)
	}
	return []*models.Account{}, nil
}

func (m *MockAccountRepository) Create(ctx context.Context, acct *models.Account) (*models.Account, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, acct)
	}
	return nil, models.ErrInternalServer
}

func (m *MockAccountRepository) Update(ctx context.Context, id string, acct *models.Account) (*models.Account, error) {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, id, acct)
	}
	return nil, models.ErrInternalServer
}

func (m *MockAccountRepository) Delete(ctx context.Context, id string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, id)
	}
	return nil
}

func (m *MockAccountRepository) Count(ctx context.Context) (int64, error) {
	if m.CountFunc != nil {
		return m.CountFunc(ctx)
	}
	return 0, nil
}

// MockEmailService implements EmailService for testing
type MockEmailService struct {
	SendVerificationEmailFunc func(ctx context.Context, email, token string) error
	SentTo                    []string
}

func (m *MockEmailService) SendVerificationEmail(ctx context.Context, email, token string) error {
	m.SentTo = append(m.SentTo, email)
	if m.SendVerificationEmailFunc != nil {
		return m.SendVerificationEmailFunc(ctx, email, token)
	}
	return nil
}

// MockLoginAuditRecorder implements LoginAuditRecorder for testing
type MockLoginAuditRecorder struct {
	RecordFunc func(ctx context.Context, attempt *models.LoginAttempt) error
	Recorded   []*models.LoginAttempt
}

func (m *MockLoginAuditRecorder) Record(ctx context.Context, attempt *models.LoginAttempt) error {
	m.Recorded = append(m.Recorded, attempt)
	if m.RecordFunc != nil {
		return m.RecordFunc(ctx, attempt)
	}
	return nil
}

// NewTestAccount creates a verified, unlocked account for tests
func NewTestAccount(id, email, nick string) *models.Account {
	now := time.Now()
	return &models.Account{
		ID:             id,
		Email:          email,
		Nickname:       nick,
		HashedPassword: "$2a$12$notarealhashnotarealhashnotarealhashnotarea",
		Role:           models.RoleAuthenticated,
		EmailVerified:  true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// newTestAccountService wires an AccountService with mocks and test config
func newTestAccountService(repo *MockAccountRepository, audit *MockLoginAuditRecorder, email *MockEmailService) *AccountService {
	logger := slog.Default()
	return NewAccountService(
		repo,
		audit,
		email,
		logger,
		pkglogger.NewAuditLogger(logger),
		AccountServiceConfig{
			MaxLoginAttempts:    3,
			LoginAuditRetention: time.Hour,
		},
	)
}
