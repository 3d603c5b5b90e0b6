package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/calebmoran/roster/internal/auth"
	"github.com/calebmoran/roster/internal/database"
	"github.com/calebmoran/roster/internal/handlers"
	"github.com/calebmoran/roster/internal/middleware"
	"github.com/calebmoran/roster/internal/routes"
	"github.com/calebmoran/roster/internal/services"
	pkglogger "github.com/calebmoran/roster/pkg/logger"
)

// SentEmail represents a captured email message
type SentEmail struct {
	To    string
	Token string
}

// CapturingEmailService records verification emails for test assertions
type CapturingEmailService struct {
	mu   sync.Mutex
	sent []SentEmail
}

func (m *CapturingEmailService) SendVerificationEmail(ctx context.Context, email, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, SentEmail{To: email, Token: token})
	return nil
}

// LastEmail returns the most recent captured email, or nil
func (m *CapturingEmailService) LastEmail() *SentEmail {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return nil
	}
	last := m.sent[len(m.sent)-1]
	return &last
}

// TestServer wires the full application stack against a test database
type TestServer struct {
	Server *httptest.Server
	Email  *CapturingEmailService
	Tokens *auth.TokenManager
}

// MaxLoginAttempts used by the test server's account service
const TestMaxLoginAttempts = 3

// NewTestServer builds the app stack with a capturing email service
func NewTestServer(db *database.DB) *TestServer {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	accountRepo, loginAuditRepo := InitializeRepositories(db)

	emailService := &CapturingEmailService{}
	auditLogger := pkglogger.NewAuditLogger(logger)

	accountService := services.NewAccountService(
		accountRepo,
		loginAuditRepo,
		emailService,
		logger,
		auditLogger,
		services.AccountServiceConfig{
			MaxLoginAttempts:    TestMaxLoginAttempts,
			LoginAuditRetention: time.Hour,
		},
	)

	tokenManager := auth.NewTokenManager("integration-test-secret-32-chars!", 15*time.Minute, 7*24*time.Hour)
	timingDelay := auth.NewTimingDelay(auth.TimingConfig{})

	accountHandler := handlers.NewAccountHandler(accountService)
	authHandler := handlers.NewAuthHandler(accountService, tokenManager, timingDelay, 15*time.Minute)

	router := chi.NewRouter()
	router.Use(chiMiddleware.RequestID)

	// Generous rate limit so lockout tests can hammer the login endpoint
	routes.RegisterRoutes(router, accountHandler, authHandler, tokenManager, accountRepo,
		middleware.RateLimitConfig{RequestsPerMinute: 1000})

	return &TestServer{
		Server: httptest.NewServer(router),
		Email:  emailService,
		Tokens: tokenManager,
	}
}

// Close shuts down the test server
func (ts *TestServer) Close() {
	ts.Server.Close()
}

// PostJSON sends a JSON request and decodes the response body
func (ts *TestServer) PostJSON(path string, body interface{}, token string) (*http.Response, []byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, nil, err
	}

	req, err := http.NewRequest(http.MethodPost, ts.Server.URL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	return ts.do(req)
}

// GetJSON sends a GET request with an optional bearer token
func (ts *TestServer) GetJSON(path, token string) (*http.Response, []byte, error) {
	req, err := http.NewRequest(http.MethodGet, ts.Server.URL+path, nil)
	if err != nil {
		return nil, nil, err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	return ts.do(req)
}

func (ts *TestServer) do(req *http.Request) (*http.Response, []byte, error) {
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return resp, data, nil
}
