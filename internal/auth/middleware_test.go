package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/calebmoran/roster/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubAccountFetcher struct {
	account *models.Account
	err     error
}

func (s *stubAccountFetcher) GetByID(ctx context.Context, id string) (*models.Account, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.account, nil
}

func passthroughHandler(called *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*called = true
		w.WriteHeader(http.StatusOK)
	})
}

func TestMiddleware_ValidAccessToken(t *testing.T) {
	tm := newTestTokenManager()
	token, err := tm.GenerateAccessToken("acct_1", "user@example.com", models.RoleAuthenticated)
	require.NoError(t, err)

	called := false
	var claims *models.TokenClaims
	handler := Middleware(tm)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		claims = GetClaimsFromContext(r)
	}))

	req := httptest.NewRequest(http.MethodGet, "/accounts/acct_1", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.True(t, called)
	require.NotNil(t, claims)
	assert.Equal(t, "acct_1", claims.UserID)
}

func TestMiddleware_MissingHeader(t *testing.T) {
	tm := newTestTokenManager()

	called := false
	handler := Middleware(tm)(passthroughHandler(&called))

	req := httptest.NewRequest(http.MethodGet, "/accounts/acct_1", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.False(t, called)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMiddleware_RejectsRefreshToken(t *testing.T) {
	tm := newTestTokenManager()
	token, err := tm.GenerateRefreshToken("acct_1", "user@example.com", models.RoleAuthenticated)
	require.NoError(t, err)

	called := false
	handler := Middleware(tm)(passthroughHandler(&called))

	req := httptest.NewRequest(http.MethodGet, "/accounts/acct_1", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.False(t, called)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireRole_UsesLiveRole(t *testing.T) {
	tm := newTestTokenManager()

	// Token says ADMIN but the live account was demoted
	token, err := tm.GenerateAccessToken("acct_1", "user@example.com", models.RoleAdmin)
	require.NoError(t, err)

	demoted := &models.Account{ID: "acct_1", Role: models.RoleAuthenticated}
	fetcher := &stubAccountFetcher{account: demoted}

	called := false
	handler := Middleware(tm)(RequireRole(fetcher, models.RoleAdmin)(passthroughHandler(&called)))

	req := httptest.NewRequest(http.MethodGet, "/accounts", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.False(t, called)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRequireRole_AllowsMatchingRole(t *testing.T) {
	tm := newTestTokenManager()
	token, err := tm.GenerateAccessToken("acct_1", "admin@example.com", models.RoleAdmin)
	require.NoError(t, err)

	admin := &models.Account{ID: "acct_1", Role: models.RoleAdmin}
	fetcher := &stubAccountFetcher{account: admin}

	called := false
	handler := Middleware(tm)(RequireRole(fetcher, models.RoleAdmin, models.RoleManager)(passthroughHandler(&called)))

	req := httptest.NewRequest(http.MethodGet, "/accounts", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.True(t, called)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestTimingDelay_NoDelayOnSuccess(t *testing.T) {
	td := NewTimingDelay(TimingConfig{BaseDelayMs: 200, RandomDelayMs: 100})

	start := time.Now()
	td.Wait(true)

	assert.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestTimingDelay_DelaysOnFailure(t *testing.T) {
	td := NewTimingDelay(TimingConfig{BaseDelayMs: 50, RandomDelayMs: 0})

	start := time.Now()
	td.Wait(false)

	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}
