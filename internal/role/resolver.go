package role

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/frahmantamala/trading-iam/internal"
	"github.com/frahmantamala/trading-iam/internal/core/events"
	"github.com/frahmantamala/trading-iam/internal/scope"
)

// ParamRoleUserID is the builtin default parameter: when an assignment does
// not supply it, it resolves to the assignee's own user id.
const ParamRoleUserID = "roleUserId"

// ParamResolver supplies a default value for a required role parameter the
// assignment left out.
type ParamResolver func(ctx context.Context, userID int64, r *Role) (string, error)

// Resolver expands role assignments into concrete scope directives. Role
// definitions are always read live from the catalog so that editing a role
// changes authorization outcomes for already-issued tokens.
type Resolver struct {
	repo     RepositoryAPI
	eventBus *events.EventBus
	logger   *slog.Logger

	mu       sync.RWMutex
	defaults map[string]ParamResolver
}

func NewResolver(repo RepositoryAPI, eventBus *events.EventBus, logger *slog.Logger) *Resolver {
	r := &Resolver{
		repo:     repo,
		eventBus: eventBus,
		logger:   logger,
		defaults: make(map[string]ParamResolver),
	}
	r.RegisterDefaultParam(ParamRoleUserID, func(_ context.Context, userID int64, _ *Role) (string, error) {
		return formatUserID(userID), nil
	})
	return r
}

// RegisterDefaultParam registers a resolution strategy for a parameter name.
// Later registrations replace earlier ones.
func (r *Resolver) RegisterDefaultParam(name string, fn ParamResolver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defaults[name] = fn
}

func (r *Resolver) defaultFor(name string) (ParamResolver, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.defaults[name]
	return fn, ok
}

// AssignRole binds a user to a role. Every required parameter must be present
// and non-blank, either supplied directly or via the default-parameter
// registry, before anything is written. Re-assigning an identical role is a
// no-op, so concurrent duplicate assignments converge instead of failing.
func (r *Resolver) AssignRole(ctx context.Context, userID int64, roleCode string, params map[string]string) error {
	role, err := r.repo.GetByCode(ctx, NormalizeCode(roleCode))
	if err != nil {
		return err
	}

	resolved := make(map[string]string, len(params))
	for k, v := range params {
		resolved[k] = v
	}

	for _, name := range role.RequiredParameters() {
		if strings.TrimSpace(resolved[name]) != "" {
			continue
		}
		fn, ok := r.defaultFor(name)
		if !ok {
			return internal.ErrMissingRoleParameter.WithDetails(internal.ValidationErrors{
				Errors: []internal.ValidationError{{
					Field:   name,
					Message: "required parameter " + name + " is missing or blank",
					Code:    string(internal.ErrCodeMissingRoleParameter),
				}},
			})
		}
		value, err := fn(ctx, userID, role)
		if err != nil {
			return err
		}
		if strings.TrimSpace(value) == "" {
			return internal.ErrMissingRoleParameter
		}
		resolved[name] = value
	}

	assignment := &Assignment{
		UserID:   userID,
		RoleID:   role.ID,
		RoleCode: role.Code,
		Params:   resolved,
	}
	if err := r.repo.SaveAssignment(ctx, assignment); err != nil {
		r.logger.Error("failed to save role assignment", "error", err, "user_id", userID, "role", role.Code)
		return err
	}

	if r.eventBus != nil {
		r.eventBus.Publish(ctx, events.NewRoleAssignedEvent(userID, role.Code, resolved))
	}

	r.logger.Info("role assigned", "user_id", userID, "role", role.Code)
	return nil
}

// RevokeRole removes the user's assignment for exactly that role. Directives
// derived from other roles and direct grants are untouched.
func (r *Resolver) RevokeRole(ctx context.Context, userID int64, roleCode string) error {
	role, err := r.repo.GetByCode(ctx, NormalizeCode(roleCode))
	if err != nil {
		return err
	}

	if err := r.repo.DeleteAssignment(ctx, userID, role.ID); err != nil {
		return err
	}

	if r.eventBus != nil {
		r.eventBus.Publish(ctx, events.NewRoleRevokedEvent(userID, role.Code))
	}

	r.logger.Info("role revoked", "user_id", userID, "role", role.Code)
	return nil
}

// ResolveDirectives expands every assignment of the user against the current
// role definitions. Never cached: a role edit is visible on the next call.
func (r *Resolver) ResolveDirectives(ctx context.Context, userID int64) ([]scope.Directive, error) {
	assignments, err := r.repo.GetAssignments(ctx, userID)
	if err != nil {
		return nil, err
	}

	var directives []scope.Directive
	for _, a := range assignments {
		role, err := r.repo.GetByID(ctx, a.RoleID)
		if err != nil {
			// An assignment may outlive its role; skip rather than fail the
			// whole resolution.
			r.logger.Warn("assignment references missing role", "user_id", userID, "role_id", a.RoleID)
			continue
		}
		for _, t := range role.Templates {
			directives = append(directives, t.Expand(a.Params))
		}
	}
	return directives, nil
}

// RoleClaims renders the user's assignments as token role claims.
func (r *Resolver) RoleClaims(ctx context.Context, userID int64) ([]string, error) {
	assignments, err := r.repo.GetAssignments(ctx, userID)
	if err != nil {
		return nil, err
	}

	claims := make([]string, 0, len(assignments))
	for _, a := range assignments {
		claims = append(claims, a.Claim())
	}
	return claims, nil
}
