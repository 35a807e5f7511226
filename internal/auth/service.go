package auth

import (
	"context"
	"errors"
	"log/slog"

	"github.com/frahmantamala/trading-iam/internal"
	"github.com/frahmantamala/trading-iam/internal/core/events"
	"github.com/frahmantamala/trading-iam/internal/scope"
	"golang.org/x/crypto/bcrypt"
)

// RoleResolverAPI is the slice of the role resolver the orchestration needs.
type RoleResolverAPI interface {
	AssignRole(ctx context.Context, userID int64, roleCode string, params map[string]string) error
	ResolveDirectives(ctx context.Context, userID int64) ([]scope.Directive, error)
	RoleClaims(ctx context.Context, userID int64) ([]string, error)
}

type ServiceAPI interface {
	Register(ctx context.Context, dto RegisterDTO, device DeviceInfo) (AuthTokens, error)
	Authenticate(ctx context.Context, dto LoginDTO, device DeviceInfo) (AuthTokens, error)
	RefreshTokens(ctx context.Context, refreshToken string, device DeviceInfo) (AuthTokens, error)
	Logout(ctx context.Context, sessionID string) error
	LogoutAll(ctx context.Context, userID int64) (int64, error)
	LogoutOthers(ctx context.Context, userID int64, keepSessionID string) (int64, error)
	ListSessions(ctx context.Context, userID int64) ([]Session, error)
	ValidateAccessToken(tokenString string) (*Claims, error)
	Authorize(ctx context.Context, claims *Claims, path string, params map[string]string) (scope.Decision, error)
}

// Service composes the credential store, role resolver, token generator and
// session service into the registration/authentication flows.
type Service struct {
	users           UserRepository
	resolver        RoleResolverAPI
	tokens          TokenGenerator
	sessions        *SessionService
	eventBus        *events.EventBus
	logger          *slog.Logger
	bcryptCost      int
	defaultRoleCode string
}

func NewService(users UserRepository, resolver RoleResolverAPI, tokens TokenGenerator, sessions *SessionService, eventBus *events.EventBus, logger *slog.Logger, bcryptCost int, defaultRoleCode string) *Service {
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	return &Service{
		users:           users,
		resolver:        resolver,
		tokens:          tokens,
		sessions:        sessions,
		eventBus:        eventBus,
		logger:          logger,
		bcryptCost:      bcryptCost,
		defaultRoleCode: defaultRoleCode,
	}
}

// Register creates the user, binds the default base role with the new user's
// own id as roleUserId, and logs them in.
func (s *Service) Register(ctx context.Context, dto RegisterDTO, device DeviceInfo) (AuthTokens, error) {
	if err := dto.Validate(); err != nil {
		return AuthTokens{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(dto.Password), s.bcryptCost)
	if err != nil {
		return AuthTokens{}, err
	}

	userID, err := s.users.CreateUser(ctx, dto.Email, dto.Name, string(hash))
	if err != nil {
		return AuthTokens{}, err
	}

	if s.defaultRoleCode != "" {
		// The user row and the default role assignment are independent
		// writes. AssignRole is idempotent, so a crash in between is
		// recoverable by re-applying it.
		if err := s.resolver.AssignRole(ctx, userID, s.defaultRoleCode, nil); err != nil {
			s.logger.Error("failed to assign default role", "error", err, "user_id", userID)
			return AuthTokens{}, err
		}
	}

	for _, r := range dto.Roles {
		if err := s.resolver.AssignRole(ctx, userID, r.RoleCode, r.Params); err != nil {
			s.logger.Error("failed to assign requested role", "error", err, "user_id", userID, "role", r.RoleCode)
			return AuthTokens{}, err
		}
	}

	s.logger.Info("user registered", "user_id", userID, "email", dto.Email)
	return s.issueTokenPair(ctx, userID, dto.Email, device)
}

// Authenticate verifies credentials. Unknown email, inactive user and wrong
// password all surface the same generic error so callers cannot enumerate
// accounts.
func (s *Service) Authenticate(ctx context.Context, dto LoginDTO, device DeviceInfo) (AuthTokens, error) {
	if err := dto.Validate(); err != nil {
		return AuthTokens{}, err
	}

	cred, err := s.users.GetCredentialByEmail(ctx, dto.Email)
	if err != nil {
		if errors.Is(err, internal.ErrUserNotFound) {
			return AuthTokens{}, internal.ErrInvalidCredentials
		}
		return AuthTokens{}, err
	}
	if !cred.IsActive || cred.PasswordHash == "" {
		return AuthTokens{}, internal.ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(cred.PasswordHash), []byte(dto.Password)); err != nil {
		return AuthTokens{}, internal.ErrInvalidCredentials
	}

	// Short-circuit before any session exists; the caller must complete the
	// second factor through a separate flow.
	if cred.TwoFactorEnabled {
		return AuthTokens{}, internal.ErrTwoFactorRequired
	}

	tokens, err := s.issueTokenPair(ctx, cred.UserID, cred.Email, device)
	if err != nil {
		return AuthTokens{}, err
	}

	s.logger.Info("user authenticated", "user_id", cred.UserID)
	return tokens, nil
}

// RefreshTokens rotates the session's refresh token and issues a fresh pair.
// Role and grant claims are re-read, so a refreshed access token reflects the
// current direct grants.
func (s *Service) RefreshTokens(ctx context.Context, refreshToken string, device DeviceInfo) (AuthTokens, error) {
	claims, err := s.tokens.ValidateRefreshToken(refreshToken)
	if err != nil {
		return AuthTokens{}, err
	}
	if claims.SessionID == "" {
		return AuthTokens{}, internal.ErrInvalidToken
	}

	// The token must carry the refresh scope for exactly this session.
	directives, err := scope.ParseDirectives(claims.Scopes)
	if err != nil {
		return AuthTokens{}, internal.ErrInvalidToken
	}
	decision := scope.Evaluate(directives, RefreshScopePath, map[string]string{ParamSessionID: claims.SessionID})
	if !decision.Allowed {
		return AuthTokens{}, internal.ErrInvalidToken
	}

	session, err := s.sessions.ValidateSession(ctx, claims.SessionID, refreshToken)
	if err != nil {
		return AuthTokens{}, err
	}

	userID, err := claims.UserID()
	if err != nil {
		return AuthTokens{}, internal.ErrInvalidToken
	}

	newRefresh, refreshExpiry, err := s.tokens.IssueRefreshToken(userID, claims.Email, session.ID)
	if err != nil {
		return AuthTokens{}, err
	}
	if err := s.sessions.RotateRefreshToken(ctx, session.ID, newRefresh, refreshExpiry); err != nil {
		return AuthTokens{}, err
	}

	access, accessExpiry, err := s.issueAccessToken(ctx, userID, claims.Email, session.ID)
	if err != nil {
		return AuthTokens{}, err
	}

	return AuthTokens{
		AccessToken:  access,
		RefreshToken: newRefresh,
		ExpiresAt:    accessExpiry,
	}, nil
}

func (s *Service) Logout(ctx context.Context, sessionID string) error {
	return s.sessions.Revoke(ctx, sessionID)
}

func (s *Service) LogoutAll(ctx context.Context, userID int64) (int64, error) {
	return s.sessions.RevokeAllForUser(ctx, userID)
}

func (s *Service) LogoutOthers(ctx context.Context, userID int64, keepSessionID string) (int64, error) {
	return s.sessions.RevokeAllExcept(ctx, userID, keepSessionID)
}

func (s *Service) ListSessions(ctx context.Context, userID int64) ([]Session, error) {
	return s.sessions.ListSessions(ctx, userID)
}

func (s *Service) ValidateAccessToken(tokenString string) (*Claims, error) {
	return s.tokens.ValidateAccessToken(tokenString)
}

// Authorize decides a requested permission for the presented token. Role
// directives are resolved live against the current catalog; the token's scope
// claims contribute the direct grants frozen at issuance. Deny wins, and no
// match at all means forbidden.
func (s *Service) Authorize(ctx context.Context, claims *Claims, path string, params map[string]string) (scope.Decision, error) {
	userID, err := claims.UserID()
	if err != nil {
		return scope.Decision{}, internal.ErrInvalidToken
	}

	roleDirectives, err := s.resolver.ResolveDirectives(ctx, userID)
	if err != nil {
		return scope.Decision{}, err
	}

	grantDirectives, err := scope.ParseDirectives(claims.Scopes)
	if err != nil {
		return scope.Decision{}, internal.ErrInvalidToken
	}

	combined := make([]scope.Directive, 0, len(roleDirectives)+len(grantDirectives))
	combined = append(combined, roleDirectives...)
	combined = append(combined, grantDirectives...)

	decision := scope.Evaluate(combined, path, params)
	if !decision.Allowed {
		s.logger.Info("permission denied", "user_id", userID, "path", path)
	}
	return decision, nil
}

func (s *Service) issueTokenPair(ctx context.Context, userID int64, email string, device DeviceInfo) (AuthTokens, error) {
	sessionID := NewSessionID()

	refresh, refreshExpiry, err := s.tokens.IssueRefreshToken(userID, email, sessionID)
	if err != nil {
		return AuthTokens{}, err
	}
	if _, err := s.sessions.CreateSession(ctx, sessionID, userID, refresh, refreshExpiry, device); err != nil {
		return AuthTokens{}, err
	}

	access, accessExpiry, err := s.issueAccessToken(ctx, userID, email, sessionID)
	if err != nil {
		return AuthTokens{}, err
	}

	if s.eventBus != nil {
		s.eventBus.Publish(ctx, events.NewUserLoggedInEvent(userID, sessionID, device.IPAddress))
	}

	return AuthTokens{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    accessExpiry,
	}, nil
}

func (s *Service) issueAccessToken(ctx context.Context, userID int64, email, sessionID string) (string, int64, error) {
	roleClaims, err := s.resolver.RoleClaims(ctx, userID)
	if err != nil {
		return "", 0, err
	}
	grantScopes, err := s.users.GetGrantDirectives(ctx, userID)
	if err != nil {
		return "", 0, err
	}

	access, expiresAt, err := s.tokens.IssueAccessToken(userID, email, sessionID, roleClaims, grantScopes)
	if err != nil {
		return "", 0, err
	}
	return access, expiresAt.Unix(), nil
}
