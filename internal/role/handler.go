package role

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/frahmantamala/trading-iam/internal/transport"
	"github.com/frahmantamala/trading-iam/pkg/logger"
	"github.com/go-chi/chi"
)

type Handler struct {
	*transport.BaseHandler
	Service  ServiceAPI
	Resolver *Resolver
}

func NewHandler(svc ServiceAPI, resolver *Resolver) *Handler {
	lg := logger.LoggerWrapper()
	if lg == nil {
		lg = slog.Default()
	}
	return &Handler{
		BaseHandler: transport.NewBaseHandler(lg),
		Service:     svc,
		Resolver:    resolver,
	}
}

func (h *Handler) CreateRole(w http.ResponseWriter, r *http.Request) {
	var dto CreateRoleDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	created, err := h.Service.CreateRole(r.Context(), dto)
	if err != nil {
		h.Logger.Error("create role failed", "error", err, "code", dto.Code)
		h.WriteDomainError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusCreated, created)
}

func (h *Handler) GetRole(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	role, err := h.Service.GetRole(r.Context(), code)
	if err != nil {
		h.WriteDomainError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, role)
}

func (h *Handler) ListRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.Service.ListRoles(r.Context())
	if err != nil {
		h.WriteDomainError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]interface{}{"roles": roles})
}

func (h *Handler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	var dto UpdateRoleDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	updated, err := h.Service.UpdateRole(r.Context(), code, dto)
	if err != nil {
		h.Logger.Error("update role failed", "error", err, "code", code)
		h.WriteDomainError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, updated)
}

func (h *Handler) DeleteRole(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	if err := h.Service.DeleteRole(r.Context(), code); err != nil {
		h.Logger.Error("delete role failed", "error", err, "code", code)
		h.WriteDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) AssignRole(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	var dto AssignRoleDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := dto.Validate(); err != nil {
		h.WriteDomainError(w, err)
		return
	}

	if err := h.Resolver.AssignRole(r.Context(), userID, dto.RoleCode, dto.Params); err != nil {
		h.Logger.Error("assign role failed", "error", err, "user_id", userID, "role", dto.RoleCode)
		h.WriteDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) RevokeRole(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	code := chi.URLParam(r, "code")

	if err := h.Resolver.RevokeRole(r.Context(), userID, code); err != nil {
		h.Logger.Error("revoke role failed", "error", err, "user_id", userID, "role", code)
		h.WriteDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
