package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/calebmoran/roster/internal/auth"
	"github.com/calebmoran/roster/internal/models"
	"github.com/calebmoran/roster/internal/services"
	pkghttp "github.com/calebmoran/roster/pkg/http"
	"github.com/go-chi/chi/v5"
)

// AuthAccountService defines the account operations the auth endpoints need
type AuthAccountService interface {
	GetByID(ctx context.Context, id string) (*models.Account, error)
	Create(ctx context.Context, req services.CreateAccountRequest) (*models.Account, error)
	Login(ctx context.Context, email, password string, meta services.LoginMetadata) (*models.Account, error)
	VerifyEmail(ctx context.Context, id, token string) error
	ResetPassword(ctx context.Context, id, newPassword string) error
	UnlockAccount(ctx context.Context, id string) error
	IsAccountLocked(ctx context.Context, email string) (bool, error)
}

// AuthHandler handles registration, login and account security endpoints
type AuthHandler struct {
	service      AuthAccountService
	tokens       *auth.TokenManager
	timing       *auth.TimingDelay
	accessExpiry time.Duration
}

func NewAuthHandler(service AuthAccountService, tokens *auth.TokenManager, timing *auth.TimingDelay, accessExpiry time.Duration) *AuthHandler {
	return &AuthHandler{
		service:      service,
		tokens:       tokens,
		timing:       timing,
		accessExpiry: accessExpiry,
	}
}

// Request/Response DTOs

// RegisterRequest represents the request body for self-service signup
type RegisterRequest struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required"`
	Nickname  string `json:"nickname" validate:"omitempty,min=3,max=50"`
	FirstName string `json:"first_name" validate:"omitempty,max=100"`
	LastName  string `json:"last_name" validate:"omitempty,max=100"`
}

// LoginRequest represents the request body for login
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RefreshTokenRequest represents the request body for token refresh
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// VerifyEmailRequest represents the request body for email verification
type VerifyEmailRequest struct {
	AccountID string `json:"account_id" validate:"required"`
	Token     string `json:"token" validate:"required"`
}

// ResetPasswordRequest represents the request body for a password reset
type ResetPasswordRequest struct {
	NewPassword string `json:"new_password" validate:"required"`
}

// AuthResponse carries a token pair plus the authenticated account
type AuthResponse struct {
	AccessToken  string           `json:"access_token"`
	RefreshToken string           `json:"refresh_token"`
	TokenType    string           `json:"token_type"`
	ExpiresIn    int64            `json:"expires_in"`
	Account      *AccountResponse `json:"account"`
}

// LockStatusResponse reports whether an account is currently locked
type LockStatusResponse struct {
	Email    string `json:"email"`
	IsLocked bool   `json:"is_locked"`
}

// Register handles self-service account signup. New accounts always start
// as ANONYMOUS regardless of what the request claims.
//
// @Summary Register a new account
// @Accept json
// @Param request body RegisterRequest true "Register request"
// @Produce json
// @Success 201 {object} AccountResponse
// @Failure 400 {object} pkghttp.ErrorResponse
// @Failure 409 {object} pkghttp.ErrorResponse
// @Router /auth/register [post]
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	created, err := h.service.Create(r.Context(), services.CreateAccountRequest{
		Email:     req.Email,
		Password:  req.Password,
		Nickname:  req.Nickname,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		writeAccountServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(accountModelToResponse(created))
}

// Login authenticates an account and issues a token pair. All failure
// modes return the same 401 so the endpoint is not an existence oracle.
//
// @Summary Login
// @Accept json
// @Param request body LoginRequest true "Login request"
// @Produce json
// @Success 200 {object} AuthResponse
// @Failure 401 {object} pkghttp.ErrorResponse
// @Router /auth/login [post]
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	meta := services.LoginMetadata{
		IPAddress: pkghttp.ExtractClientIP(r),
		UserAgent: r.Header.Get("User-Agent"),
	}

	acct, err := h.service.Login(r.Context(), req.Email, req.Password, meta)
	h.timing.Wait(err == nil)
	if err != nil {
		if errors.Is(err, models.ErrUnauthorized) {
			pkghttp.WriteUnauthorized(w, "Authentication failed")
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	h.writeAuthResponse(w, acct)
}

// RefreshToken exchanges a valid refresh token for a fresh token pair. The
// account is re-read so a lock applied after issuance takes effect.
//
// @Summary Refresh tokens
// @Accept json
// @Param request body RefreshTokenRequest true "Refresh request"
// @Produce json
// @Success 200 {object} AuthResponse
// @Failure 401 {object} pkghttp.ErrorResponse
// @Router /auth/refresh [post]
func (h *AuthHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	var req RefreshTokenRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	claims, err := h.tokens.ValidateToken(req.RefreshToken)
	if err != nil || claims.Type != "refresh" {
		pkghttp.WriteUnauthorized(w, "Invalid refresh token")
		return
	}

	acct, err := h.service.GetByID(r.Context(), claims.UserID)
	if err != nil {
		pkghttp.WriteUnauthorized(w, "Invalid refresh token")
		return
	}

	if acct.IsLocked {
		pkghttp.WriteUnauthorized(w, "Invalid refresh token")
		return
	}

	h.writeAuthResponse(w, acct)
}

// VerifyEmail consumes a verification token. At most one call per token
// succeeds.
//
// @Summary Verify email address
// @Accept json
// @Param request body VerifyEmailRequest true "Verify request"
// @Success 204
// @Failure 401 {object} pkghttp.ErrorResponse
// @Failure 404 {object} pkghttp.ErrorResponse
// @Failure 409 {object} pkghttp.ErrorResponse
// @Router /auth/verify-email [post]
func (h *AuthHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req VerifyEmailRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	err := h.service.VerifyEmail(r.Context(), req.AccountID, req.Token)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrNotFound):
			pkghttp.WriteNotFound(w, "Account not found")
		case errors.Is(err, models.ErrAlreadyVerified):
			pkghttp.WriteConflict(w, "Email is already verified")
		case errors.Is(err, models.ErrUnauthorized):
			pkghttp.WriteUnauthorized(w, "Invalid verification token")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ResetPassword replaces an account's password and clears any lockout.
//
// @Summary Reset an account's password
// @Param id path string true "Account ID"
// @Accept json
// @Param request body ResetPasswordRequest true "Reset request"
// @Success 204
// @Failure 400 {object} pkghttp.ErrorResponse
// @Failure 404 {object} pkghttp.ErrorResponse
// @Router /accounts/{id}/reset-password [post]
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "id")
	if accountID == "" {
		pkghttp.WriteBadRequest(w, "Account ID is required")
		return
	}

	var req ResetPasswordRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	err := h.service.ResetPassword(r.Context(), accountID, req.NewPassword)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrValidation):
			pkghttp.WriteBadRequest(w, err.Error())
		case errors.Is(err, models.ErrNotFound):
			pkghttp.WriteNotFound(w, "Account not found")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// UnlockAccount clears a lockout so the account can log in again.
//
// @Summary Unlock a locked account
// @Param id path string true "Account ID"
// @Success 204
// @Failure 404 {object} pkghttp.ErrorResponse
// @Failure 409 {object} pkghttp.ErrorResponse
// @Router /accounts/{id}/unlock [post]
func (h *AuthHandler) UnlockAccount(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "id")
	if accountID == "" {
		pkghttp.WriteBadRequest(w, "Account ID is required")
		return
	}

	err := h.service.UnlockAccount(r.Context(), accountID)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrNotFound):
			pkghttp.WriteNotFound(w, "Account not found")
		case errors.Is(err, models.ErrAccountNotLocked):
			pkghttp.WriteConflict(w, "Account is not locked")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// LockStatus reports whether the account behind an email is locked. A
// nonexistent account reads as not locked.
//
// @Summary Check lock status by email
// @Param email query string true "Account email"
// @Produce json
// @Success 200 {object} LockStatusResponse
// @Router /accounts/lock-status [get]
func (h *AuthHandler) LockStatus(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimSpace(r.URL.Query().Get("email"))
	if email == "" {
		pkghttp.WriteBadRequest(w, "email query parameter is required")
		return
	}

	locked, err := h.service.IsAccountLocked(r.Context(), email)
	if err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(&LockStatusResponse{Email: email, IsLocked: locked})
}

func (h *AuthHandler) writeAuthResponse(w http.ResponseWriter, acct *models.Account) {
	accessToken, err := h.tokens.GenerateAccessToken(acct.ID, acct.Email, acct.Role)
	if err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	refreshToken, err := h.tokens.GenerateRefreshToken(acct.ID, acct.Email, acct.Role)
	if err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(&AuthResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int64(h.accessExpiry.Seconds()),
		Account:      accountModelToResponse(acct),
	})
}
