package middleware

import (
	"log/slog"
	"net/http"

	"github.com/frahmantamala/trading-iam/internal/auth"
	"github.com/go-chi/chi"
)

// ParamExtractor pulls the permission parameters for a request, e.g. mapping
// a chi URL parameter onto a directive parameter.
type ParamExtractor func(r *http.Request) map[string]string

// URLParams maps chi URL parameters onto identically named directive
// parameters.
func URLParams(names ...string) ParamExtractor {
	return func(r *http.Request) map[string]string {
		params := make(map[string]string, len(names))
		for _, name := range names {
			params[name] = chi.URLParam(r, name)
		}
		return params
	}
}

// RequirePermission gates a route on the deny-wins evaluation of the caller's
// combined directive set. Must run after the auth middleware has put the
// claims into the context.
func RequirePermission(authz auth.ServiceAPI, path string, extract ParamExtractor) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := auth.ClaimsFromContext(r.Context())
			if !ok {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			var params map[string]string
			if extract != nil {
				params = extract(r)
			}

			decision, err := authz.Authorize(r.Context(), claims, path, params)
			if err != nil {
				slog.Error("authorization check failed", "error", err, "path", path)
				http.Error(w, "Internal server error", http.StatusInternalServerError)
				return
			}

			if !decision.Allowed {
				slog.Warn("access denied",
					"subject", claims.Subject,
					"path", path,
					"params", params)
				http.Error(w, "Forbidden: insufficient permissions", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
