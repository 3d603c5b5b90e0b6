package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/calebmoran/roster/internal/auth"
	"github.com/calebmoran/roster/internal/models"
	"github.com/calebmoran/roster/internal/services"
)

// MockAccountService implements AccountServiceInterface and
// AuthAccountService for handler tests
type MockAccountService struct {
	GetByIDFunc         func(ctx context.Context, id string) (*models.Account, error)
	CreateFunc          func(ctx context.Context, req services.CreateAccountRequest) (*models.Account, error)
	UpdateFunc          func(ctx context.Context, id string, req services.UpdateAccountRequest) (*models.Account, error)
	DeleteFunc          func(ctx context.Context, id string) error
	ListFunc            func(ctx context.Context, limit, offset int) ([]*models.Account, error)
	SearchFunc          func(ctx context.Context, filters models.SearchFilters, limit, offset int) ([]*models.AccountSummary, error)
	CountFunc           func(ctx context.Context) (int64, error)
	LoginFunc           func(ctx context.Context, email, password string, meta services.LoginMetadata) (*models.Account, error)
	VerifyEmailFunc     func(ctx context.Context, id, token string) error
	ResetPasswordFunc   func(ctx context.Context, id, newPassword string) error
	UnlockAccountFunc   func(ctx context.Context, id string) error
	IsAccountLockedFunc func(ctx context.Context, email string) (bool, error)
}

func (m *MockAccountService) GetByID(ctx context.Context, id string) (*models.Account, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockAccountService) Create(ctx context.Context, req services.CreateAccountRequest) (*models.Account, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, req)
	}
	return nil, models.ErrInternalServer
}

func (m *MockAccountService) Update(ctx context.Context, id string, req services.UpdateAccountRequest) (*models.Account, error) {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, id, req)
	}
	return nil, models.ErrInternalServer
}

func (m *MockAccountService) Delete(ctx context.Context, id string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, id)
	}
	return nil
}

func (m *MockAccountService) List(ctx context.Context, limit, offset int) ([]*models.Account, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, limit, offset)
	}
	return []*models.Account{}, nil
}

func (m *MockAccountService) Search(ctx context.Context, filters models.SearchFilters, limit, offset int) ([]*models.AccountSummary, error) {
	if m.SearchFunc != nil {
		return m.SearchFunc(ctx, filters, limit, offset)
	}
	return []*models.AccountSummary{}, nil
}

func (m *MockAccountService) Count(ctx context.Context) (int64, error) {
	if m.CountFunc != nil {
		return m.CountFunc(ctx)
	}
	return 0, nil
}

func (m *MockAccountService) Login(ctx context.Context, email, password string, meta services.LoginMetadata) (*models.Account, error) {
	if m.LoginFunc != nil {
		return m.LoginFunc(ctx, email, password, meta)
	}
	return nil, models.ErrUnauthorized
}

func (m *MockAccountService) VerifyEmail(ctx context.Context, id, token string) error {
	if m.VerifyEmailFunc != nil {
		return m.VerifyEmailFunc(ctx, id, token)
	}
	return models.ErrNotFound
}

func (m *MockAccountService) ResetPassword(ctx context.Context, id, newPassword string) error {
	if m.ResetPasswordFunc != nil {
		return m.ResetPasswordFunc(ctx, id, newPassword)
	}
	return models.ErrNotFound
}

func (m *MockAccountService) UnlockAccount(ctx context.Context, id string) error {
	if m.UnlockAccountFunc != nil {
		return m.UnlockAccountFunc(ctx, id)
	}
	return models.ErrNotFound
}

func (m *MockAccountService) IsAccountLocked(ctx context.Context, email string) (bool, error) {
	if m.IsAccountLockedFunc != nil {
		return m.IsAccountLockedFunc(ctx, email)
	}
	return false, nil
}

// newTestAccount creates a verified account for handler tests
func newTestAccount(id, email, nick, role string) *models.Account {
	now := time.Now()
	return &models.Account{
		ID:             id,
		Email:          email,
		Nickname:       nick,
		HashedPassword: "$2a$12$notarealhashnotarealhashnotarealhashnotarea",
		Role:           role,
		EmailVerified:  true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// withClaims attaches token claims to the request context the way the auth
// middleware would
func withClaims(req *http.Request, accountID, role string) *http.Request {
	claims := &models.TokenClaims{
		Type:   "access",
		UserID: accountID,
		Email:  accountID + "@example.com",
		Role:   role,
	}
	ctx := context.WithValue(req.Context(), auth.ClaimsContextKey, claims)
	return req.WithContext(ctx)
}

// doRequest runs a request through a handler and captures the response
func doRequest(handler http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}
