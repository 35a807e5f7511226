package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/frahmantamala/trading-iam/internal"
	roleDatamodel "github.com/frahmantamala/trading-iam/internal/core/datamodel/role"
	"github.com/frahmantamala/trading-iam/internal/role"
	"github.com/frahmantamala/trading-iam/internal/scope"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) GetByID(ctx context.Context, id int64) (*role.Role, error) {
	var row roleDatamodel.Role
	if err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.ErrRoleNotFound
		}
		return nil, err
	}
	return r.hydrate(ctx, &row)
}

func (r *Repository) GetByCode(ctx context.Context, code string) (*role.Role, error) {
	var row roleDatamodel.Role
	if err := r.db.WithContext(ctx).First(&row, "code = ?", code).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.ErrRoleNotFound
		}
		return nil, err
	}
	return r.hydrate(ctx, &row)
}

func (r *Repository) Create(ctx context.Context, in *role.Role) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := roleDatamodel.Role{
			Code:        in.Code,
			Name:        in.Name,
			Description: in.Description,
			IsSystem:    in.IsSystem,
		}
		if err := tx.Create(&row).Error; err != nil {
			if isDuplicate(err) {
				return internal.ErrDuplicateRoleCode
			}
			return err
		}
		in.ID = row.ID
		in.CreatedAt = row.CreatedAt
		in.UpdatedAt = row.UpdatedAt

		return replaceTemplates(tx, row.ID, in.Templates)
	})
}

func (r *Repository) Update(ctx context.Context, in *role.Role) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&roleDatamodel.Role{}).
			Where("id = ?", in.ID).
			Updates(map[string]interface{}{
				"name":        in.Name,
				"description": in.Description,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return internal.ErrRoleNotFound
		}

		if err := tx.Delete(&roleDatamodel.RoleScopeTemplate{}, "role_id = ?", in.ID).Error; err != nil {
			return err
		}
		return replaceTemplates(tx, in.ID, in.Templates)
	})
}

func (r *Repository) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&roleDatamodel.RoleScopeTemplate{}, "role_id = ?", id).Error; err != nil {
			return err
		}
		if err := tx.Delete(&roleDatamodel.RoleAssignment{}, "role_id = ?", id).Error; err != nil {
			return err
		}
		result := tx.Delete(&roleDatamodel.Role{}, "id = ?", id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return internal.ErrRoleNotFound
		}
		return nil
	})
}

func (r *Repository) List(ctx context.Context) ([]role.Role, error) {
	var rows []roleDatamodel.Role
	if err := r.db.WithContext(ctx).Order("code").Find(&rows).Error; err != nil {
		return nil, err
	}

	roles := make([]role.Role, 0, len(rows))
	for i := range rows {
		hydrated, err := r.hydrate(ctx, &rows[i])
		if err != nil {
			return nil, err
		}
		roles = append(roles, *hydrated)
	}
	return roles, nil
}

func (r *Repository) GetAssignments(ctx context.Context, userID int64) ([]role.Assignment, error) {
	type assignmentRow struct {
		roleDatamodel.RoleAssignment
		Code string
	}

	var rows []assignmentRow
	err := r.db.WithContext(ctx).
		Table("role_assignments").
		Select("role_assignments.*, roles.code").
		Joins("JOIN roles ON roles.id = role_assignments.role_id").
		Where("role_assignments.user_id = ?", userID).
		Order("roles.code").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	assignments := make([]role.Assignment, 0, len(rows))
	for _, row := range rows {
		params, err := decodeParams(row.Params)
		if err != nil {
			return nil, err
		}
		assignments = append(assignments, role.Assignment{
			ID:        row.ID,
			UserID:    row.UserID,
			RoleID:    row.RoleID,
			RoleCode:  row.Code,
			Params:    params,
			CreatedAt: row.CreatedAt,
		})
	}
	return assignments, nil
}

// SaveAssignment upserts on (user_id, role_id): a concurrent identical
// assignment converges to a single row instead of erroring.
func (r *Repository) SaveAssignment(ctx context.Context, a *role.Assignment) error {
	params, err := encodeParams(a.Params)
	if err != nil {
		return err
	}

	row := roleDatamodel.RoleAssignment{
		UserID: a.UserID,
		RoleID: a.RoleID,
		Params: params,
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "role_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"params"}),
		}).
		Create(&row).Error
}

func (r *Repository) DeleteAssignment(ctx context.Context, userID, roleID int64) error {
	return r.db.WithContext(ctx).
		Delete(&roleDatamodel.RoleAssignment{}, "user_id = ? AND role_id = ?", userID, roleID).Error
}

func (r *Repository) hydrate(ctx context.Context, row *roleDatamodel.Role) (*role.Role, error) {
	var templateRows []roleDatamodel.RoleScopeTemplate
	if err := r.db.WithContext(ctx).Find(&templateRows, "role_id = ?", row.ID).Error; err != nil {
		return nil, err
	}

	templates := make([]role.ScopeTemplate, 0, len(templateRows))
	for _, t := range templateRows {
		params, err := decodeParams(t.Params)
		if err != nil {
			return nil, err
		}
		templates = append(templates, role.ScopeTemplate{
			Type:   scope.Type(t.ScopeType),
			Path:   t.Path,
			Params: params,
		})
	}

	return &role.Role{
		ID:          row.ID,
		Code:        row.Code,
		Name:        row.Name,
		Description: row.Description,
		IsSystem:    row.IsSystem,
		Templates:   templates,
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
	}, nil
}

func replaceTemplates(tx *gorm.DB, roleID int64, templates []role.ScopeTemplate) error {
	for _, t := range templates {
		params, err := encodeParams(t.Params)
		if err != nil {
			return err
		}
		row := roleDatamodel.RoleScopeTemplate{
			RoleID:    roleID,
			ScopeType: string(t.Type),
			Path:      t.Path,
			Params:    params,
		}
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
	}
	return nil
}

func encodeParams(params map[string]string) (string, error) {
	if len(params) == 0 {
		return "", nil
	}
	raw, err := json.Marshal(params)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func decodeParams(raw string) (map[string]string, error) {
	if raw == "" {
		return nil, nil
	}
	var params map[string]string
	if err := json.Unmarshal([]byte(raw), &params); err != nil {
		return nil, err
	}
	return params, nil
}

func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "UNIQUE constraint")
}
