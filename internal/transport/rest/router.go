package rest

import (
	"log/slog"
	"net/http"

	"github.com/frahmantamala/trading-iam/internal/auth"
	"github.com/frahmantamala/trading-iam/internal/role"
	"github.com/frahmantamala/trading-iam/internal/transport/middleware"
	"github.com/frahmantamala/trading-iam/internal/transport/swagger"
	"github.com/frahmantamala/trading-iam/internal/user"
	"github.com/go-chi/chi"
	chiMiddleware "github.com/go-chi/chi/middleware"
	"github.com/jmoiron/sqlx"
)

// Admin permission paths gating the role and grant endpoints.
const (
	permRolesManage  = "api:iam:roles:manage"
	permUsersRead    = "api:iam:users:read"
	permGrantsManage = "api:iam:grants:manage"
)

func RegisterAllRoutes(router *chi.Mux, db *sqlx.DB, authHandler *auth.Handler, authService auth.ServiceAPI, userHandler *user.Handler, roleHandler *role.Handler, logger *slog.Logger) {
	healthHandler := NewHealthHandler(db)

	// Apply global middleware
	router.Use(middleware.CORS)
	router.Use(chiMiddleware.RequestID)
	router.Use(middleware.RequestID)
	router.Use(middleware.RecoveryMiddleware(logger))
	router.Use(middleware.LoggingMiddleware(logger))

	// Serve OpenAPI spec at root (outside API prefix)
	router.Get("/openapi.yml", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, "./api/openapi3.yml")
	})
	// Swagger UI route at root
	router.Handle("/swagger/*", swagger.Handler())

	// Mount API under /api/v1 to match OpenAPI basePath
	router.Route("/api/v1", func(r chi.Router) {
		// Health check route
		r.Get("/health", healthHandler.healthCheckHandler)
		r.Get("/ping", healthHandler.pingHandler)

		// Auth routes
		if authHandler != nil {
			r.Route("/auth", func(sr chi.Router) {
				sr.Post("/register", authHandler.Register)
				sr.Post("/login", authHandler.Login)
				sr.Post("/refresh", authHandler.RefreshToken)
			})
		}

		if authHandler != nil {
			// Protected routes that require authentication
			r.Group(func(pr chi.Router) {
				pr.Use(authHandler.AuthMiddleware)

				pr.Post("/auth/logout", authHandler.Logout)
				pr.Post("/auth/logout-all", authHandler.LogoutAll)
				pr.Post("/auth/logout-others", authHandler.LogoutOthers)
				pr.Get("/auth/sessions", authHandler.ListSessions)
				pr.Delete("/auth/sessions/{id}", authHandler.RevokeSession)

				// Current user
				if userHandler != nil {
					pr.Get("/users/me", userHandler.GetCurrentUser)
				}

				// Role catalog, admin only
				if roleHandler != nil {
					pr.Route("/roles", func(rr chi.Router) {
						rr.Use(middleware.RequirePermission(authService, permRolesManage, nil))
						rr.Post("/", roleHandler.CreateRole)
						rr.Get("/", roleHandler.ListRoles)
						rr.Get("/{code}", roleHandler.GetRole)
						rr.Put("/{code}", roleHandler.UpdateRole)
						rr.Delete("/{code}", roleHandler.DeleteRole)
					})
				}

				// User administration
				if userHandler != nil {
					pr.Group(func(ur chi.Router) {
						ur.Use(middleware.RequirePermission(authService, permUsersRead, nil))
						ur.Get("/users", userHandler.ListUsers)
						ur.Get("/users/{id}", userHandler.GetUser)
					})

					pr.Group(func(gr chi.Router) {
						gr.Use(middleware.RequirePermission(authService, permGrantsManage, nil))
						gr.Get("/users/{id}/grants", userHandler.ListGrants)
						gr.Post("/users/{id}/grants", userHandler.GrantPermission)
						gr.Post("/users/{id}/grants/revoke", userHandler.RevokePermission)
					})
				}

				// Role assignment
				if roleHandler != nil {
					pr.Group(func(ar chi.Router) {
						ar.Use(middleware.RequirePermission(authService, permRolesManage, nil))
						ar.Post("/users/{id}/roles", roleHandler.AssignRole)
						ar.Delete("/users/{id}/roles/{code}", roleHandler.RevokeRole)
					})
				}
			})
		}
	})
}
