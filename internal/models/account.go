package models

import (
	"time"
)

// Account roles. New accounts start as ANONYMOUS and are promoted to
// AUTHENTICATED when their email address is verified.
const (
	RoleAnonymous     = "ANONYMOUS"
	RoleAuthenticated = "AUTHENTICATED"
	RoleManager       = "MANAGER"
	RoleAdmin         = "ADMIN"
)

// Account status values used in search filters and display output.
const (
	AccountStatusActive = "active"
	AccountStatusLocked = "locked"
)

type Account struct {
	ID                  string
	Email               string
	Nickname            string
	HashedPassword      string
	FirstName           *string
	LastName            *string
	Bio                 *string
	LinkedInURL         *string
	GitHubURL           *string
	IsProfessional      bool
	Role                string
	EmailVerified       bool
	VerificationToken   *string // present only while verification is pending
	IsLocked            bool
	FailedLoginAttempts int
	LastLoginAt         *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// AccountSummary is the display shape returned by search. It never carries
// the password hash or verification token.
type AccountSummary struct {
	ID               string    `json:"id"`
	Email            string    `json:"email"`
	Nickname         string    `json:"nickname"`
	IsProfessional   bool      `json:"is_professional"`
	Role             string    `json:"role"`
	RegistrationDate time.Time `json:"registration_date"`
	AccountStatus    string    `json:"account_status"` // "Active" or "Locked"
}

// Summary converts an account to its search display shape.
func (a *Account) Summary() *AccountSummary {
	status := "Active"
	if a.IsLocked {
		status = "Locked"
	}
	return &AccountSummary{
		ID:               a.ID,
		Email:            a.Email,
		Nickname:         a.Nickname,
		IsProfessional:   a.IsProfessional,
		Role:             a.Role,
		RegistrationDate: a.CreatedAt,
		AccountStatus:    status,
	}
}

// SearchFilters holds the independently-optional account search criteria.
// Zero values mean "not set"; filters combine with logical AND.
type SearchFilters struct {
	Nickname      string
	Email         string
	FirstName     string
	LastName      string
	Role          string
	AccountStatus string // "active" or "locked"
	CreatedFrom   *time.Time
	CreatedTo     *time.Time
}
