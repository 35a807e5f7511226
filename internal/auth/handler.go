package auth

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"

	"github.com/frahmantamala/trading-iam/internal"
	"github.com/frahmantamala/trading-iam/internal/transport"
	"github.com/frahmantamala/trading-iam/pkg/logger"
	"github.com/go-chi/chi"
)

type contextKey string

// ContextClaimsKey carries the validated access-token claims through the
// request context.
const ContextClaimsKey contextKey = "authClaims"

func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(ContextClaimsKey).(*Claims)
	return claims, ok
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(svc ServiceAPI) *Handler {
	lg := logger.LoggerWrapper()
	if lg == nil {
		lg = slog.Default()
	}
	return &Handler{
		BaseHandler: transport.NewBaseHandler(lg),
		Service:     svc,
	}
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var dto RegisterDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	tokens, err := h.Service.Register(r.Context(), dto, deviceInfo(r))
	if err != nil {
		h.Logger.Error("registration failed", "error", err)
		h.WriteDomainError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusCreated, tokens)
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var dto LoginDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	tokens, err := h.Service.Authenticate(r.Context(), dto, deviceInfo(r))
	if err != nil {
		h.Logger.Error("authentication failed", "error", err)
		h.WriteDomainError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, tokens)
}

func (h *Handler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	var dto RefreshTokenDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := dto.Validate(); err != nil {
		h.WriteDomainError(w, err)
		return
	}

	tokens, err := h.Service.RefreshTokens(r.Context(), dto.RefreshToken, deviceInfo(r))
	if err != nil {
		h.Logger.Error("token refresh failed", "error", err)
		h.WriteDomainError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, tokens)
}

// Logout revokes the session behind the presented access token.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	claims, ok := ClaimsFromContext(r.Context())
	if !ok || claims.SessionID == "" {
		h.WriteError(w, http.StatusUnauthorized, "missing authorization token")
		return
	}

	if err := h.Service.Logout(r.Context(), claims.SessionID); err != nil {
		h.Logger.Error("logout failed", "error", err, "session_id", claims.SessionID)
		h.WriteDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) LogoutAll(w http.ResponseWriter, r *http.Request) {
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "missing authorization token")
		return
	}
	userID, err := claims.UserID()
	if err != nil {
		h.WriteError(w, http.StatusUnauthorized, "invalid token")
		return
	}

	count, err := h.Service.LogoutAll(r.Context(), userID)
	if err != nil {
		h.WriteDomainError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]interface{}{"revoked": count})
}

// LogoutOthers keeps the current session and revokes the rest.
func (h *Handler) LogoutOthers(w http.ResponseWriter, r *http.Request) {
	claims, ok := ClaimsFromContext(r.Context())
	if !ok || claims.SessionID == "" {
		h.WriteError(w, http.StatusUnauthorized, "missing authorization token")
		return
	}
	userID, err := claims.UserID()
	if err != nil {
		h.WriteError(w, http.StatusUnauthorized, "invalid token")
		return
	}

	count, err := h.Service.LogoutOthers(r.Context(), userID, claims.SessionID)
	if err != nil {
		h.WriteDomainError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]interface{}{"revoked": count})
}

func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "missing authorization token")
		return
	}
	userID, err := claims.UserID()
	if err != nil {
		h.WriteError(w, http.StatusUnauthorized, "invalid token")
		return
	}

	sessions, err := h.Service.ListSessions(r.Context(), userID)
	if err != nil {
		h.WriteDomainError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]interface{}{"sessions": sessions})
}

// RevokeSession revokes one of the caller's own sessions by id.
func (h *Handler) RevokeSession(w http.ResponseWriter, r *http.Request) {
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "missing authorization token")
		return
	}
	userID, err := claims.UserID()
	if err != nil {
		h.WriteError(w, http.StatusUnauthorized, "invalid token")
		return
	}

	sessionID := chi.URLParam(r, "id")
	sessions, err := h.Service.ListSessions(r.Context(), userID)
	if err != nil {
		h.WriteDomainError(w, err)
		return
	}
	owned := false
	for _, s := range sessions {
		if s.ID == sessionID {
			owned = true
			break
		}
	}
	if !owned {
		h.WriteDomainError(w, internal.ErrSessionNotFound)
		return
	}

	if err := h.Service.Logout(r.Context(), sessionID); err != nil {
		h.WriteDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// AuthMiddleware validates the bearer token and stores its claims and the
// caller's user id in the request context.
func (h *Handler) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := h.ExtractTokenFromHeader(r)
		if token == "" {
			h.WriteError(w, http.StatusUnauthorized, "missing authorization token")
			return
		}

		claims, err := h.Service.ValidateAccessToken(token)
		if err != nil {
			h.Logger.Warn("token validation failed", "error", err)
			h.WriteError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		userID, err := claims.UserID()
		if err != nil {
			h.Logger.Warn("invalid subject claim", "error", err)
			h.WriteError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		ctx := context.WithValue(r.Context(), ContextClaimsKey, claims)
		ctx = internal.ContextWithUserID(ctx, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func deviceInfo(r *http.Request) DeviceInfo {
	ip := r.Header.Get("X-Forwarded-For")
	if ip == "" {
		if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
			ip = host
		} else {
			ip = r.RemoteAddr
		}
	}
	return DeviceInfo{
		UserAgent: r.UserAgent(),
		IPAddress: ip,
	}
}
