package session

import "time"

// LoginSession backs one refresh-token lineage for one login. Only the hash
// of the refresh token is stored; the raw token never touches the database.
type LoginSession struct {
	ID               string     `gorm:"primaryKey;column:id"`
	UserID           int64      `gorm:"column:user_id;not null;index"`
	RefreshTokenHash string     `gorm:"column:refresh_token_hash;not null"`
	UserAgent        string     `gorm:"column:user_agent"`
	IPAddress        string     `gorm:"column:ip_address"`
	CreatedAt        time.Time  `gorm:"column:created_at;autoCreateTime"`
	LastUsedAt       time.Time  `gorm:"column:last_used_at"`
	ExpiresAt        time.Time  `gorm:"column:expires_at;not null;index"`
	RevokedAt        *time.Time `gorm:"column:revoked_at"`
}

func (LoginSession) TableName() string {
	return "login_sessions"
}
