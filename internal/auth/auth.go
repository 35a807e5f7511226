package auth

import (
	"context"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// RefreshScopePath is the only permission path a refresh token carries. The
// directive is parameterized with the session id, so the token cannot be used
// to refresh any other session.
const RefreshScopePath = "api:auth:refresh"

// ParamSessionID keys the session binding inside the refresh scope directive.
const ParamSessionID = "sessionId"

// Claims is the decoded payload of an access or refresh token. Role claims
// are rendered as "CODE" or "CODE;param=value"; Scopes holds canonical
// directive strings from direct grants only (role-derived directives are
// resolved live on every request instead of being frozen here).
type Claims struct {
	Email     string   `json:"email,omitempty"`
	SessionID string   `json:"sid,omitempty"`
	Roles     []string `json:"roles,omitempty"`
	Scopes    []string `json:"scopes,omitempty"`
	jwt.RegisteredClaims
}

// UserID parses the numeric subject claim.
func (c *Claims) UserID() (int64, error) {
	return strconv.ParseInt(c.Subject, 10, 64)
}

type AuthTokens struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresAt    int64  `json:"expires_at"`
}

// TokenGenerator issues and verifies signed tokens. Access and refresh tokens
// are signed with different secrets so one can never be presented as the other.
type TokenGenerator interface {
	IssueAccessToken(userID int64, email, sessionID string, roleClaims, grantScopes []string) (string, time.Time, error)
	IssueRefreshToken(userID int64, email, sessionID string) (string, time.Time, error)
	ValidateAccessToken(tokenString string) (*Claims, error)
	ValidateRefreshToken(tokenString string) (*Claims, error)
}

// Credential is the slice of the user record authentication needs.
type Credential struct {
	UserID           int64
	Email            string
	Name             string
	PasswordHash     string
	IsActive         bool
	TwoFactorEnabled bool
}

// UserRepository is the credential store the orchestration layer reads from.
type UserRepository interface {
	GetCredentialByEmail(ctx context.Context, email string) (*Credential, error)
	CreateUser(ctx context.Context, email, name, passwordHash string) (int64, error)
	GetGrantDirectives(ctx context.Context, userID int64) ([]string, error)
}

// SessionRepositoryAPI persists login sessions.
type SessionRepositoryAPI interface {
	Create(ctx context.Context, session *Session) error
	GetByID(ctx context.Context, id string) (*Session, error)
	Update(ctx context.Context, session *Session) error
	ListForUser(ctx context.Context, userID int64) ([]Session, error)
	RevokeAllForUser(ctx context.Context, userID int64, exceptID string, revokedAt time.Time) (int64, error)
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}
