package user

import (
	"context"
	"log/slog"

	"github.com/frahmantamala/trading-iam/internal"
	"github.com/frahmantamala/trading-iam/internal/core/events"
	"github.com/frahmantamala/trading-iam/internal/scope"
)

type ServiceAPI interface {
	GetByID(ctx context.Context, userID int64) (*User, error)
	List(ctx context.Context) ([]User, error)
	ListGrants(ctx context.Context, userID int64) ([]Grant, error)
	GrantPermission(ctx context.Context, userID int64, dto GrantPermissionDTO, grantedBy int64) (*Grant, error)
	RevokePermission(ctx context.Context, userID int64, directive string, revokedBy int64) error
}

type Service struct {
	repo     RepositoryAPI
	eventBus *events.EventBus
	logger   *slog.Logger
}

func NewService(repo RepositoryAPI, eventBus *events.EventBus, logger *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		eventBus: eventBus,
		logger:   logger,
	}
}

func (s *Service) GetByID(ctx context.Context, userID int64) (*User, error) {
	return s.repo.GetByID(ctx, userID)
}

func (s *Service) List(ctx context.Context) ([]User, error) {
	return s.repo.List(ctx)
}

func (s *Service) ListGrants(ctx context.Context, userID int64) ([]Grant, error) {
	return s.repo.ListGrants(ctx, userID)
}

// GrantPermission attaches a direct directive to the user. The directive is
// parsed before any write and stored in canonical form, so equivalent inputs
// with differently ordered parameters converge to the same row. A token
// issued before the grant keeps its old scope claims until re-authentication.
func (s *Service) GrantPermission(ctx context.Context, userID int64, dto GrantPermissionDTO, grantedBy int64) (*Grant, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	directive, err := scope.ParseDirective(dto.Directive)
	if err != nil {
		return nil, internal.ErrMalformedDirective
	}

	if _, err := s.repo.GetByID(ctx, userID); err != nil {
		return nil, err
	}

	grant := &Grant{
		UserID:      userID,
		Directive:   directive.String(),
		Description: dto.Description,
	}
	if grantedBy != 0 {
		grant.GrantedBy = &grantedBy
	}

	if err := s.repo.SaveGrant(ctx, grant); err != nil {
		s.logger.Error("failed to save permission grant", "error", err, "user_id", userID)
		return nil, err
	}

	if s.eventBus != nil {
		s.eventBus.Publish(ctx, events.NewPermissionGrantedEvent(userID, grant.Directive, grantedBy))
	}

	s.logger.Info("permission granted", "user_id", userID, "directive", grant.Directive)
	return grant, nil
}

// RevokePermission removes the grant matching the canonical directive.
// Revoking a grant that does not exist is reported as not found so admin
// tooling can tell a typo from a success.
func (s *Service) RevokePermission(ctx context.Context, userID int64, rawDirective string, revokedBy int64) error {
	directive, err := scope.ParseDirective(rawDirective)
	if err != nil {
		return internal.ErrMalformedDirective
	}

	deleted, err := s.repo.DeleteGrant(ctx, userID, directive.String())
	if err != nil {
		return err
	}
	if deleted == 0 {
		return internal.ErrGrantNotFound
	}

	if s.eventBus != nil {
		s.eventBus.Publish(ctx, events.NewPermissionRevokedEvent(userID, directive.String(), revokedBy))
	}

	s.logger.Info("permission revoked", "user_id", userID, "directive", directive.String())
	return nil
}
