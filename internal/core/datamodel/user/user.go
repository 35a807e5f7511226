package user

import "time"

type User struct {
	ID               int64     `gorm:"primaryKey"`
	Email            string    `gorm:"column:email;uniqueIndex;not null"`
	Name             string    `gorm:"column:name"`
	PasswordHash     *string   `gorm:"column:password_hash"`
	IsActive         bool      `gorm:"column:is_active;default:true"`
	IsAnonymous      bool      `gorm:"column:is_anonymous;default:false"`
	TwoFactorEnabled bool      `gorm:"column:two_factor_enabled;default:false"`
	CreatedAt        time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (User) TableName() string {
	return "users"
}

// UserPermissionGrant is a direct, role-independent scope directive attached
// to one user. Directive holds the canonical string form.
type UserPermissionGrant struct {
	ID          int64     `gorm:"primaryKey"`
	UserID      int64     `gorm:"column:user_id;not null;uniqueIndex:idx_user_grant_directive"`
	Directive   string    `gorm:"column:directive;not null;uniqueIndex:idx_user_grant_directive"`
	Description string    `gorm:"column:description"`
	GrantedBy   *int64    `gorm:"column:granted_by"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (UserPermissionGrant) TableName() string {
	return "user_permission_grants"
}
