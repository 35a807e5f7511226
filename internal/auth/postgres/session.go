package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/frahmantamala/trading-iam/internal"
	"github.com/frahmantamala/trading-iam/internal/auth"
	sessionDatamodel "github.com/frahmantamala/trading-iam/internal/core/datamodel/session"
	"gorm.io/gorm"
)

// SessionRepository implements auth.SessionRepositoryAPI over login_sessions.
type SessionRepository struct {
	db *gorm.DB
}

func NewSessionRepository(db *gorm.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) Create(ctx context.Context, session *auth.Session) error {
	row := toRow(session)
	return r.db.WithContext(ctx).Create(row).Error
}

func (r *SessionRepository) GetByID(ctx context.Context, id string) (*auth.Session, error) {
	var row sessionDatamodel.LoginSession
	if err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.ErrSessionNotFound
		}
		return nil, err
	}
	return fromRow(&row), nil
}

func (r *SessionRepository) Update(ctx context.Context, session *auth.Session) error {
	result := r.db.WithContext(ctx).
		Model(&sessionDatamodel.LoginSession{}).
		Where("id = ?", session.ID).
		Updates(map[string]interface{}{
			"refresh_token_hash": session.RefreshTokenHash,
			"last_used_at":       session.LastUsedAt,
			"expires_at":         session.ExpiresAt,
			"revoked_at":         session.RevokedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return internal.ErrSessionNotFound
	}
	return nil
}

func (r *SessionRepository) ListForUser(ctx context.Context, userID int64) ([]auth.Session, error) {
	var rows []sessionDatamodel.LoginSession
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	sessions := make([]auth.Session, 0, len(rows))
	for i := range rows {
		sessions = append(sessions, *fromRow(&rows[i]))
	}
	return sessions, nil
}

// RevokeAllForUser marks every live session of the user revoked in one
// statement, optionally keeping one session alive.
func (r *SessionRepository) RevokeAllForUser(ctx context.Context, userID int64, exceptID string, revokedAt time.Time) (int64, error) {
	query := r.db.WithContext(ctx).
		Model(&sessionDatamodel.LoginSession{}).
		Where("user_id = ? AND revoked_at IS NULL", userID)
	if exceptID != "" {
		query = query.Where("id <> ?", exceptID)
	}

	result := query.Update("revoked_at", revokedAt)
	return result.RowsAffected, result.Error
}

func (r *SessionRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Delete(&sessionDatamodel.LoginSession{}, "expires_at < ?", before)
	return result.RowsAffected, result.Error
}

func toRow(s *auth.Session) *sessionDatamodel.LoginSession {
	return &sessionDatamodel.LoginSession{
		ID:               s.ID,
		UserID:           s.UserID,
		RefreshTokenHash: s.RefreshTokenHash,
		UserAgent:        s.UserAgent,
		IPAddress:        s.IPAddress,
		CreatedAt:        s.CreatedAt,
		LastUsedAt:       s.LastUsedAt,
		ExpiresAt:        s.ExpiresAt,
		RevokedAt:        s.RevokedAt,
	}
}

func fromRow(row *sessionDatamodel.LoginSession) *auth.Session {
	return &auth.Session{
		ID:               row.ID,
		UserID:           row.UserID,
		RefreshTokenHash: row.RefreshTokenHash,
		UserAgent:        row.UserAgent,
		IPAddress:        row.IPAddress,
		CreatedAt:        row.CreatedAt,
		LastUsedAt:       row.LastUsedAt,
		ExpiresAt:        row.ExpiresAt,
		RevokedAt:        row.RevokedAt,
	}
}
