package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/calebmoran/roster/internal/auth"
	"github.com/calebmoran/roster/internal/models"
	"github.com/calebmoran/roster/internal/services"
	pkghttp "github.com/calebmoran/roster/pkg/http"
	"github.com/go-chi/chi/v5"
)

// AccountServiceInterface defines the interface for account business logic
type AccountServiceInterface interface {
	GetByID(ctx context.Context, id string) (*models.Account, error)
	Create(ctx context.Context, req services.CreateAccountRequest) (*models.Account, error)
	Update(ctx context.Context, id string, req services.UpdateAccountRequest) (*models.Account, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, limit, offset int) ([]*models.Account, error)
	Search(ctx context.Context, filters models.SearchFilters, limit, offset int) ([]*models.AccountSummary, error)
	Count(ctx context.Context) (int64, error)
}

// AccountHandler handles account-related HTTP requests
type AccountHandler struct {
	service AccountServiceInterface
}

func NewAccountHandler(service AccountServiceInterface) *AccountHandler {
	return &AccountHandler{service: service}
}

// Response DTOs

// AccountResponse represents an account in HTTP responses. The password
// hash and verification token never appear here.
type AccountResponse struct {
	ID             string  `json:"id"`
	Email          string  `json:"email"`
	Nickname       string  `json:"nickname"`
	FirstName      *string `json:"first_name,omitempty"`
	LastName       *string `json:"last_name,omitempty"`
	Bio            *string `json:"bio,omitempty"`
	LinkedInURL    *string `json:"linkedin_url,omitempty"`
	GitHubURL      *string `json:"github_url,omitempty"`
	IsProfessional bool    `json:"is_professional"`
	Role           string  `json:"role"`
	EmailVerified  bool    `json:"email_verified"`
	IsLocked       bool    `json:"is_locked"`
	LastLoginAt    *string `json:"last_login_at,omitempty"`
	CreatedAt      string  `json:"created_at"`
	UpdatedAt      string  `json:"updated_at"`
}

// ListAccountsResponse represents a page of accounts
type ListAccountsResponse struct {
	Accounts []*AccountResponse `json:"accounts"`
	Total    int                `json:"total"`
}

// SearchAccountsResponse represents a page of search results
type SearchAccountsResponse struct {
	Results []*models.AccountSummary `json:"results"`
	Total   int                      `json:"total"`
}

// CountResponse carries the total account count
type CountResponse struct {
	Total int64 `json:"total"`
}

func accountModelToResponse(acct *models.Account) *AccountResponse {
	resp := &AccountResponse{
		ID:             acct.ID,
		Email:          acct.Email,
		Nickname:       acct.Nickname,
		FirstName:      acct.FirstName,
		LastName:       acct.LastName,
		Bio:            acct.Bio,
		LinkedInURL:    acct.LinkedInURL,
		GitHubURL:      acct.GitHubURL,
		IsProfessional: acct.IsProfessional,
		Role:           acct.Role,
		EmailVerified:  acct.EmailVerified,
		IsLocked:       acct.IsLocked,
		CreatedAt:      acct.CreatedAt.Format(time.RFC3339),
		UpdatedAt:      acct.UpdatedAt.Format(time.RFC3339),
	}
	if acct.LastLoginAt != nil {
		formatted := acct.LastLoginAt.Format(time.RFC3339)
		resp.LastLoginAt = &formatted
	}
	return resp
}

// GetAccount retrieves an account by ID
//
// @Summary Get account by ID
// @Param id path string true "Account ID"
// @Produce json
// @Success 200 {object} AccountResponse
// @Failure 403 {object} pkghttp.ErrorResponse
// @Failure 404 {object} pkghttp.ErrorResponse
// @Router /accounts/{id} [get]
func (h *AccountHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "id")
	if accountID == "" {
		pkghttp.WriteBadRequest(w, "Account ID is required")
		return
	}

	if err := h.checkAccountAccess(r, accountID); err != nil {
		pkghttp.WriteForbidden(w, "You cannot access this resource")
		return
	}

	acct, err := h.service.GetByID(r.Context(), accountID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkghttp.WriteNotFound(w, "Account not found")
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(accountModelToResponse(acct))
}

// CreateAccount creates a new account (admin endpoint; self-service signup
// goes through /auth/register)
//
// @Summary Create a new account
// @Accept json
// @Param request body services.CreateAccountRequest true "Create account request"
// @Produce json
// @Success 201 {object} AccountResponse
// @Failure 400 {object} pkghttp.ErrorResponse
// @Failure 409 {object} pkghttp.ErrorResponse
// @Router /accounts [post]
func (h *AccountHandler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req services.CreateAccountRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	created, err := h.service.Create(r.Context(), req)
	if err != nil {
		writeAccountServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(accountModelToResponse(created))
}

// UpdateAccount applies a partial update to an account
//
// @Summary Update an account
// @Param id path string true "Account ID"
// @Accept json
// @Param request body services.UpdateAccountRequest true "Update account request"
// @Produce json
// @Success 200 {object} AccountResponse
// @Failure 400 {object} pkghttp.ErrorResponse
// @Failure 403 {object} pkghttp.ErrorResponse
// @Failure 404 {object} pkghttp.ErrorResponse
// @Failure 409 {object} pkghttp.ErrorResponse
// @Router /accounts/{id} [put]
func (h *AccountHandler) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "id")
	if accountID == "" {
		pkghttp.WriteBadRequest(w, "Account ID is required")
		return
	}

	if err := h.checkAccountAccess(r, accountID); err != nil {
		pkghttp.WriteForbidden(w, "You cannot access this resource")
		return
	}

	var req services.UpdateAccountRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	// Role changes require admin rights even on your own account
	if req.Role != nil && !h.isElevated(r) {
		pkghttp.WriteForbidden(w, "Only administrators can change roles")
		return
	}

	updated, err := h.service.Update(r.Context(), accountID, req)
	if err != nil {
		writeAccountServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(accountModelToResponse(updated))
}

// DeleteAccount removes an account
//
// @Summary Delete an account
// @Param id path string true "Account ID"
// @Success 204
// @Failure 404 {object} pkghttp.ErrorResponse
// @Router /accounts/{id} [delete]
func (h *AccountHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "id")
	if accountID == "" {
		pkghttp.WriteBadRequest(w, "Account ID is required")
		return
	}

	if err := h.service.Delete(r.Context(), accountID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkghttp.WriteNotFound(w, "Account not found")
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListAccounts retrieves a page of accounts, newest first
//
// @Summary List accounts
// @Param limit query int false "Limit (default 10)"
// @Param offset query int false "Offset (default 0)"
// @Produce json
// @Success 200 {object} ListAccountsResponse
// @Router /accounts [get]
func (h *AccountHandler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := parsePagination(r)
	if err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	accounts, err := h.service.List(r.Context(), limit, offset)
	if err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	response := &ListAccountsResponse{
		Accounts: make([]*AccountResponse, len(accounts)),
		Total:    len(accounts),
	}
	for i, acct := range accounts {
		response.Accounts[i] = accountModelToResponse(acct)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// SearchAccounts filters accounts by profile fields, role, lock status and
// creation date range. All filters are optional and combine with AND.
//
// @Summary Search accounts
// @Param nickname query string false "Nickname substring (case-insensitive)"
// @Param email query string false "Email substring (case-insensitive)"
// @Param role query string false "Exact role"
// @Param account_status query string false "active or locked"
// @Param created_from query string false "RFC3339 lower bound"
// @Param created_to query string false "RFC3339 upper bound"
// @Produce json
// @Success 200 {object} SearchAccountsResponse
// @Router /accounts/search [get]
func (h *AccountHandler) SearchAccounts(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := parsePagination(r)
	if err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	q := r.URL.Query()
	filters := models.SearchFilters{
		Nickname:  strings.TrimSpace(q.Get("nickname")),
		Email:     strings.TrimSpace(q.Get("email")),
		FirstName: strings.TrimSpace(q.Get("first_name")),
		LastName:  strings.TrimSpace(q.Get("last_name")),
		Role:      strings.TrimSpace(q.Get("role")),
	}

	if status := strings.ToLower(strings.TrimSpace(q.Get("account_status"))); status != "" {
		if status != models.AccountStatusActive && status != models.AccountStatusLocked {
			pkghttp.WriteBadRequest(w, "account_status must be 'active' or 'locked'")
			return
		}
		filters.AccountStatus = status
	}

	if from := q.Get("created_from"); from != "" {
		t, err := time.Parse(time.RFC3339, from)
		if err != nil {
			pkghttp.WriteBadRequest(w, "created_from must be an RFC3339 timestamp")
			return
		}
		filters.CreatedFrom = &t
	}

	if to := q.Get("created_to"); to != "" {
		t, err := time.Parse(time.RFC3339, to)
		if err != nil {
			pkghttp.WriteBadRequest(w, "created_to must be an RFC3339 timestamp")
			return
		}
		filters.CreatedTo = &t
	}

	results, err := h.service.Search(r.Context(), filters, limit, offset)
	if err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	response := &SearchAccountsResponse{
		Results: results,
		Total:   len(results),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// CountAccounts returns the total number of accounts
//
// @Summary Count accounts
// @Produce json
// @Success 200 {object} CountResponse
// @Router /accounts/count [get]
func (h *AccountHandler) CountAccounts(w http.ResponseWriter, r *http.Request) {
	total, err := h.service.Count(r.Context())
	if err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(&CountResponse{Total: total})
}

// Helper functions

// checkAccountAccess allows a caller to touch their own account; anyone
// else needs an elevated role.
func (h *AccountHandler) checkAccountAccess(r *http.Request, requestedID string) error {
	claims := auth.GetClaimsFromContext(r)
	if claims == nil {
		return errors.New("no claims in context")
	}

	if claims.UserID == requestedID {
		return nil
	}

	if h.isElevated(r) {
		return nil
	}

	return errors.New("insufficient permissions")
}

// isElevated checks the caller's live role, so a stale token cannot retain
// admin rights after a demotion.
func (h *AccountHandler) isElevated(r *http.Request) bool {
	claims := auth.GetClaimsFromContext(r)
	if claims == nil {
		return false
	}

	acct, err := h.service.GetByID(r.Context(), claims.UserID)
	if err != nil {
		return false
	}

	return acct.Role == models.RoleAdmin || acct.Role == models.RoleManager
}

func writeAccountServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrValidation):
		pkghttp.WriteBadRequest(w, err.Error())
	case errors.Is(err, models.ErrConflict):
		pkghttp.WriteConflict(w, "Email or nickname already in use")
	case errors.Is(err, models.ErrNotFound):
		pkghttp.WriteNotFound(w, "Account not found")
	default:
		pkghttp.WriteInternalError(w, "Internal server error")
	}
}

func parsePagination(r *http.Request) (limit, offset int, err error) {
	limit = 10
	offset = 0

	if l := r.URL.Query().Get("limit"); l != "" {
		limit, err = strconv.Atoi(l)
		if err != nil || limit < 1 || limit > 100 {
			return 0, 0, errors.New("limit must be between 1 and 100")
		}
	}

	if o := r.URL.Query().Get("offset"); o != "" {
		offset, err = strconv.Atoi(o)
		if err != nil || offset < 0 {
			return 0, 0, errors.New("offset must be non-negative")
		}
	}

	return limit, offset, nil
}
