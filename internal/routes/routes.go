package routes

import (
	"github.com/calebmoran/roster/internal/auth"
	"github.com/calebmoran/roster/internal/handlers"
	"github.com/calebmoran/roster/internal/middleware"
	"github.com/calebmoran/roster/internal/models"
	"github.com/calebmoran/roster/internal/repositories"
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all application routes
func RegisterRoutes(
	router chi.Router,
	accountHandler *handlers.AccountHandler,
	authHandler *handlers.AuthHandler,
	tokenManager *auth.TokenManager,
	accountRepo *repositories.AccountRepository,
	rateLimitConfig middleware.RateLimitConfig,
) {
	// Public routes - no authentication required
	router.With(middleware.RateLimitByIP(rateLimitConfig)).Post("/auth/register", authHandler.Register)
	router.With(middleware.RateLimitByIP(rateLimitConfig)).Post("/auth/login", authHandler.Login)
	router.With(middleware.RateLimitByIP(rateLimitConfig)).Post("/auth/refresh", authHandler.RefreshToken)
	router.With(middleware.RateLimitByIP(rateLimitConfig)).Post("/auth/verify-email", authHandler.VerifyEmail)

	// Protected routes - authentication required
	router.Group(func(r chi.Router) {
		r.Use(auth.Middleware(tokenManager))

		// Any authenticated account (self-or-elevated checks in the handler)
		r.Get("/accounts/{id}", accountHandler.GetAccount)
		r.Put("/accounts/{id}", accountHandler.UpdateAccount)

		// Elevated routes
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireRole(accountRepo, models.RoleAdmin, models.RoleManager))
			r.Post("/accounts", accountHandler.CreateAccount)
			r.Get("/accounts", accountHandler.ListAccounts)
			r.Get("/accounts/search", accountHandler.SearchAccounts)
			r.Get("/accounts/count", accountHandler.CountAccounts)
			r.Get("/accounts/lock-status", authHandler.LockStatus)
			r.Delete("/accounts/{id}", accountHandler.DeleteAccount)
			r.Post("/accounts/{id}/reset-password", authHandler.ResetPassword)
			r.Post("/accounts/{id}/unlock", authHandler.UnlockAccount)
		})
	})
}
