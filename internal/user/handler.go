package user

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/frahmantamala/trading-iam/internal"
	"github.com/frahmantamala/trading-iam/internal/transport"
	"github.com/frahmantamala/trading-iam/pkg/logger"
	"github.com/go-chi/chi"
)

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

// GetCurrentUser handles GET /users/me
func (h *Handler) GetCurrentUser(w http.ResponseWriter, r *http.Request) {
	userID := internal.UserIDFromContext(r.Context())
	if userID == 0 {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	u, err := h.Service.GetByID(r.Context(), userID)
	if err != nil {
		h.WriteDomainError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, u)
}

func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	u, err := h.Service.GetByID(r.Context(), userID)
	if err != nil {
		h.WriteDomainError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, u)
}

func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.Service.List(r.Context())
	if err != nil {
		h.WriteDomainError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]interface{}{"users": users})
}

func (h *Handler) ListGrants(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	grants, err := h.Service.ListGrants(r.Context(), userID)
	if err != nil {
		h.WriteDomainError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]interface{}{"grants": grants})
}

func (h *Handler) GrantPermission(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	var dto GrantPermissionDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	grant, err := h.Service.GrantPermission(r.Context(), userID, dto, internal.UserIDFromContext(r.Context()))
	if err != nil {
		h.Logger.Error("grant permission failed", "error", err, "user_id", userID)
		h.WriteDomainError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusCreated, grant)
}

func (h *Handler) RevokePermission(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	var dto RevokePermissionDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := dto.Validate(); err != nil {
		h.WriteDomainError(w, err)
		return
	}

	if err := h.Service.RevokePermission(r.Context(), userID, dto.Directive, internal.UserIDFromContext(r.Context())); err != nil {
		h.Logger.Error("revoke permission failed", "error", err, "user_id", userID)
		h.WriteDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
