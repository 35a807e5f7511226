package postgres

import (
	"context"
	"errors"

	"github.com/frahmantamala/trading-iam/internal"
	userDatamodel "github.com/frahmantamala/trading-iam/internal/core/datamodel/user"
	"github.com/frahmantamala/trading-iam/internal/user"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) GetByID(ctx context.Context, id int64) (*user.User, error) {
	var row userDatamodel.User
	if err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.ErrUserNotFound
		}
		return nil, err
	}
	return fromRow(&row), nil
}

func (r *Repository) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	var row userDatamodel.User
	if err := r.db.WithContext(ctx).First(&row, "email = ?", email).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.ErrUserNotFound
		}
		return nil, err
	}
	return fromRow(&row), nil
}

func (r *Repository) List(ctx context.Context) ([]user.User, error) {
	var rows []userDatamodel.User
	if err := r.db.WithContext(ctx).Order("id").Find(&rows).Error; err != nil {
		return nil, err
	}

	users := make([]user.User, 0, len(rows))
	for i := range rows {
		users = append(users, *fromRow(&rows[i]))
	}
	return users, nil
}

func (r *Repository) ListGrants(ctx context.Context, userID int64) ([]user.Grant, error) {
	var rows []userDatamodel.UserPermissionGrant
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	grants := make([]user.Grant, 0, len(rows))
	for _, row := range rows {
		grants = append(grants, user.Grant{
			ID:          row.ID,
			UserID:      row.UserID,
			Directive:   row.Directive,
			Description: row.Description,
			GrantedBy:   row.GrantedBy,
			CreatedAt:   row.CreatedAt,
		})
	}
	return grants, nil
}

// SaveGrant is an upsert keyed on (user_id, directive): granting the same
// directive twice, even concurrently, leaves a single row.
func (r *Repository) SaveGrant(ctx context.Context, grant *user.Grant) error {
	row := userDatamodel.UserPermissionGrant{
		UserID:      grant.UserID,
		Directive:   grant.Directive,
		Description: grant.Description,
		GrantedBy:   grant.GrantedBy,
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "directive"}},
			DoNothing: true,
		}).
		Create(&row).Error
	if err != nil {
		return err
	}
	grant.ID = row.ID
	grant.CreatedAt = row.CreatedAt
	return nil
}

func (r *Repository) DeleteGrant(ctx context.Context, userID int64, directive string) (int64, error) {
	result := r.db.WithContext(ctx).
		Delete(&userDatamodel.UserPermissionGrant{}, "user_id = ? AND directive = ?", userID, directive)
	return result.RowsAffected, result.Error
}

func fromRow(row *userDatamodel.User) *user.User {
	return &user.User{
		ID:               row.ID,
		Email:            row.Email,
		Name:             row.Name,
		IsActive:         row.IsActive,
		IsAnonymous:      row.IsAnonymous,
		TwoFactorEnabled: row.TwoFactorEnabled,
		CreatedAt:        row.CreatedAt,
		UpdatedAt:        row.UpdatedAt,
	}
}
