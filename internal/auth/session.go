package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"time"

	"github.com/frahmantamala/trading-iam/internal"
	"github.com/frahmantamala/trading-iam/internal/core/events"
	"github.com/google/uuid"
)

// Session backs one refresh-token lineage for one login. The refresh token
// itself is never stored, only its hash.
type Session struct {
	ID               string     `json:"id"`
	UserID           int64      `json:"user_id"`
	RefreshTokenHash string     `json:"-"`
	UserAgent        string     `json:"user_agent,omitempty"`
	IPAddress        string     `json:"ip_address,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	LastUsedAt       time.Time  `json:"last_used_at"`
	ExpiresAt        time.Time  `json:"expires_at"`
	RevokedAt        *time.Time `json:"revoked_at,omitempty"`
}

func (s *Session) Revoked() bool {
	return s.RevokedAt != nil
}

func (s *Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// DeviceInfo is the client metadata recorded against a session.
type DeviceInfo struct {
	UserAgent string
	IPAddress string
}

// NewSessionID returns a fresh session identifier. Generated before the
// refresh token is signed, because the token embeds the session id and the
// session stores the token's hash.
func NewSessionID() string {
	return uuid.New().String()
}

// HashRefreshToken produces the stored fingerprint of a refresh token.
// SHA-256 rather than bcrypt so the hash is deterministic and comparable
// without the plaintext being recoverable from a leaked store.
func HashRefreshToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// SessionService owns the refresh-session lifecycle: creation, rotation,
// validation, revocation, and the expiry sweep.
type SessionService struct {
	repo     SessionRepositoryAPI
	eventBus *events.EventBus
	logger   *slog.Logger
}

func NewSessionService(repo SessionRepositoryAPI, eventBus *events.EventBus, logger *slog.Logger) *SessionService {
	return &SessionService{
		repo:     repo,
		eventBus: eventBus,
		logger:   logger,
	}
}

func (s *SessionService) CreateSession(ctx context.Context, id string, userID int64, refreshToken string, expiresAt time.Time, device DeviceInfo) (*Session, error) {
	now := time.Now()
	session := &Session{
		ID:               id,
		UserID:           userID,
		RefreshTokenHash: HashRefreshToken(refreshToken),
		UserAgent:        device.UserAgent,
		IPAddress:        device.IPAddress,
		CreatedAt:        now,
		LastUsedAt:       now,
		ExpiresAt:        expiresAt,
	}
	if err := s.repo.Create(ctx, session); err != nil {
		s.logger.Error("failed to create session", "error", err, "user_id", userID)
		return nil, err
	}
	return session, nil
}

// ValidateSession returns the session only if it is live and the presented
// refresh token hashes to the stored value. A hash mismatch on a live session
// means a rotated (stolen or replayed) token was presented, so the whole
// session is revoked before the error is returned.
func (s *SessionService) ValidateSession(ctx context.Context, sessionID, presentedToken string) (*Session, error) {
	session, err := s.repo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if session.Revoked() {
		return nil, internal.ErrSessionRevoked
	}
	if session.Expired(time.Now()) {
		return nil, internal.ErrTokenExpired
	}

	if session.RefreshTokenHash != HashRefreshToken(presentedToken) {
		s.logger.Warn("refresh token hash mismatch, revoking session",
			"session_id", sessionID, "user_id", session.UserID)
		if err := s.Revoke(ctx, sessionID); err != nil {
			s.logger.Error("failed to revoke session after hash mismatch", "error", err, "session_id", sessionID)
		}
		return nil, internal.ErrSessionRevoked
	}

	return session, nil
}

// RotateRefreshToken replaces the stored hash so the previous refresh token
// becomes unusable. Called on every successful refresh.
func (s *SessionService) RotateRefreshToken(ctx context.Context, sessionID, newToken string, newExpiry time.Time) error {
	session, err := s.repo.GetByID(ctx, sessionID)
	if err != nil {
		return err
	}
	if session.Revoked() {
		return internal.ErrSessionRevoked
	}

	session.RefreshTokenHash = HashRefreshToken(newToken)
	session.ExpiresAt = newExpiry
	session.LastUsedAt = time.Now()
	return s.repo.Update(ctx, session)
}

// Revoke marks the session revoked. Revoking an already-revoked session is a
// no-op, so concurrent revocations resolve without error.
func (s *SessionService) Revoke(ctx context.Context, sessionID string) error {
	session, err := s.repo.GetByID(ctx, sessionID)
	if err != nil {
		return err
	}
	if session.Revoked() {
		return nil
	}

	now := time.Now()
	session.RevokedAt = &now
	if err := s.repo.Update(ctx, session); err != nil {
		return err
	}

	if s.eventBus != nil {
		s.eventBus.Publish(ctx, events.NewSessionRevokedEvent(session.UserID, session.ID, "revoked"))
	}
	s.logger.Info("session revoked", "session_id", sessionID, "user_id", session.UserID)
	return nil
}

func (s *SessionService) RevokeAllForUser(ctx context.Context, userID int64) (int64, error) {
	return s.revokeAll(ctx, userID, "")
}

// RevokeAllExcept revokes every session of the user except the given one,
// e.g. "log out everywhere else".
func (s *SessionService) RevokeAllExcept(ctx context.Context, userID int64, keepSessionID string) (int64, error) {
	return s.revokeAll(ctx, userID, keepSessionID)
}

func (s *SessionService) revokeAll(ctx context.Context, userID int64, exceptID string) (int64, error) {
	count, err := s.repo.RevokeAllForUser(ctx, userID, exceptID, time.Now())
	if err != nil {
		return 0, err
	}
	if count > 0 && s.eventBus != nil {
		s.eventBus.Publish(ctx, events.NewSessionRevokedEvent(userID, exceptID, "bulk_revoke"))
	}
	s.logger.Info("sessions revoked for user", "user_id", userID, "count", count)
	return count, nil
}

func (s *SessionService) ListSessions(ctx context.Context, userID int64) ([]Session, error) {
	return s.repo.ListForUser(ctx, userID)
}

// DeleteExpired removes sessions whose expiry has passed. Run periodically by
// the sweep worker.
func (s *SessionService) DeleteExpired(ctx context.Context) (int64, error) {
	count, err := s.repo.DeleteExpired(ctx, time.Now())
	if err != nil {
		s.logger.Error("session sweep failed", "error", err)
		return 0, err
	}
	if count > 0 {
		s.logger.Info("expired sessions deleted", "count", count)
	}
	return count, nil
}
