package postgres

import (
	"context"
	"errors"
	"strings"

	"github.com/frahmantamala/trading-iam/internal"
	"github.com/frahmantamala/trading-iam/internal/auth"
	userDatamodel "github.com/frahmantamala/trading-iam/internal/core/datamodel/user"
	"gorm.io/gorm"
)

// Repository implements auth.UserRepository over the users and
// user_permission_grants tables.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) GetCredentialByEmail(ctx context.Context, email string) (*auth.Credential, error) {
	var row userDatamodel.User
	if err := r.db.WithContext(ctx).First(&row, "email = ?", email).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.ErrUserNotFound
		}
		return nil, err
	}

	cred := &auth.Credential{
		UserID:           row.ID,
		Email:            row.Email,
		Name:             row.Name,
		IsActive:         row.IsActive,
		TwoFactorEnabled: row.TwoFactorEnabled,
	}
	if row.PasswordHash != nil {
		cred.PasswordHash = *row.PasswordHash
	}
	return cred, nil
}

func (r *Repository) CreateUser(ctx context.Context, email, name, passwordHash string) (int64, error) {
	row := userDatamodel.User{
		Email:        email,
		Name:         name,
		PasswordHash: &passwordHash,
		IsActive:     true,
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isDuplicate(err) {
			return 0, internal.ErrDuplicateEmail
		}
		return 0, err
	}
	return row.ID, nil
}

func (r *Repository) GetGrantDirectives(ctx context.Context, userID int64) ([]string, error) {
	var rows []userDatamodel.UserPermissionGrant
	if err := r.db.WithContext(ctx).Find(&rows, "user_id = ?", userID).Error; err != nil {
		return nil, err
	}

	directives := make([]string, 0, len(rows))
	for _, row := range rows {
		directives = append(directives, row.Directive)
	}
	return directives, nil
}

func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "UNIQUE constraint")
}
