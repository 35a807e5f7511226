package role

import (
	"context"
	"log/slog"

	"github.com/frahmantamala/trading-iam/internal"
)

// System role codes seeded at install time. They can never be created,
// edited or deleted through the catalog API.
const (
	CodeAdmin  = "ADMIN"
	CodeTrader = "TRADER"
)

var reservedCodes = map[string]bool{
	CodeAdmin:  true,
	CodeTrader: true,
}

// Service handles role catalog business logic.
type Service struct {
	repo   RepositoryAPI
	logger *slog.Logger
}

func NewService(repo RepositoryAPI, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger,
	}
}

// CreateRole validates and stores a new role. Codes are uppercased; reserved
// and duplicate codes are conflicts; template validation happens before any
// write.
func (s *Service) CreateRole(ctx context.Context, dto CreateRoleDTO) (*Role, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	code := NormalizeCode(dto.Code)
	if reservedCodes[code] {
		return nil, internal.ErrReservedRoleCode
	}

	r := &Role{
		Code:        code,
		Name:        dto.Name,
		Description: dto.Description,
		Templates:   dto.templates(),
	}
	for _, t := range r.Templates {
		if err := t.Validate(); err != nil {
			return nil, err
		}
	}

	if err := s.repo.Create(ctx, r); err != nil {
		s.logger.Error("failed to create role", "error", err, "code", code)
		return nil, err
	}

	s.logger.Info("role created", "code", code, "templates", len(r.Templates))
	return r, nil
}

func (s *Service) GetRole(ctx context.Context, code string) (*Role, error) {
	return s.repo.GetByCode(ctx, NormalizeCode(code))
}

func (s *Service) ListRoles(ctx context.Context) ([]Role, error) {
	return s.repo.List(ctx)
}

// UpdateRole replaces a role's mutable fields and templates. System roles are
// immutable: the attempt is a domain-rule violation, not a server fault.
func (s *Service) UpdateRole(ctx context.Context, code string, dto UpdateRoleDTO) (*Role, error) {
	r, err := s.repo.GetByCode(ctx, NormalizeCode(code))
	if err != nil {
		return nil, err
	}
	if r.IsSystem {
		return nil, internal.ErrSystemRoleImmutable
	}

	if dto.Name != "" {
		r.Name = dto.Name
	}
	if dto.Description != "" {
		r.Description = dto.Description
	}
	if dto.Templates != nil {
		templates := make([]ScopeTemplate, 0, len(dto.Templates))
		for _, t := range dto.Templates {
			st := t.toTemplate()
			if err := st.Validate(); err != nil {
				return nil, err
			}
			templates = append(templates, st)
		}
		r.Templates = templates
	}

	if err := s.repo.Update(ctx, r); err != nil {
		s.logger.Error("failed to update role", "error", err, "code", r.Code)
		return nil, err
	}

	s.logger.Info("role updated", "code", r.Code)
	return r, nil
}

func (s *Service) DeleteRole(ctx context.Context, code string) error {
	r, err := s.repo.GetByCode(ctx, NormalizeCode(code))
	if err != nil {
		return err
	}
	if r.IsSystem {
		return internal.ErrSystemRoleImmutable
	}

	if err := s.repo.Delete(ctx, r.ID); err != nil {
		s.logger.Error("failed to delete role", "error", err, "code", r.Code)
		return err
	}

	s.logger.Info("role deleted", "code", r.Code)
	return nil
}
