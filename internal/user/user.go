package user

import (
	"context"
	"time"
)

type User struct {
	ID               int64     `json:"id"`
	Email            string    `json:"email"`
	Name             string    `json:"name"`
	IsActive         bool      `json:"is_active"`
	IsAnonymous      bool      `json:"is_anonymous"`
	TwoFactorEnabled bool      `json:"two_factor_enabled"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Grant is a direct, role-independent permission directive attached to a
// user. Never auto-expires; removed only by an explicit revoke.
type Grant struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"user_id"`
	Directive   string    `json:"directive"`
	Description string    `json:"description,omitempty"`
	GrantedBy   *int64    `json:"granted_by,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type RepositoryAPI interface {
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	List(ctx context.Context) ([]User, error)
	ListGrants(ctx context.Context, userID int64) ([]Grant, error)
	SaveGrant(ctx context.Context, grant *Grant) error
	DeleteGrant(ctx context.Context, userID int64, directive string) (int64, error)
}
