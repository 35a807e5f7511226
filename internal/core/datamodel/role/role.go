package role

import "time"

type Role struct {
	ID          int64     `gorm:"primaryKey"`
	Code        string    `gorm:"column:code;uniqueIndex;not null"`
	Name        string    `gorm:"column:name;not null"`
	Description string    `gorm:"column:description"`
	IsSystem    bool      `gorm:"column:is_system;default:false"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Role) TableName() string {
	return "roles"
}

// RoleScopeTemplate is one allow/deny template owned by a role. Params is a
// JSON object whose values may contain {placeholder} tokens resolved at
// assignment time.
type RoleScopeTemplate struct {
	ID        int64  `gorm:"primaryKey"`
	RoleID    int64  `gorm:"column:role_id;not null;index"`
	ScopeType string `gorm:"column:scope_type;not null"`
	Path      string `gorm:"column:path;not null"`
	Params    string `gorm:"column:params;type:text"`
}

func (RoleScopeTemplate) TableName() string {
	return "role_scope_templates"
}

// RoleAssignment binds a user to a role with concrete parameter values
// (JSON object). The unique index makes identical concurrent assignments
// converge to a single row.
type RoleAssignment struct {
	ID        int64     `gorm:"primaryKey"`
	UserID    int64     `gorm:"column:user_id;not null;uniqueIndex:idx_role_assignment_user_role"`
	RoleID    int64     `gorm:"column:role_id;not null;uniqueIndex:idx_role_assignment_user_role"`
	Params    string    `gorm:"column:params;type:text"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (RoleAssignment) TableName() string {
	return "role_assignments"
}
