package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/frahmantamala/trading-iam/internal"
	"github.com/frahmantamala/trading-iam/internal/scope"
	"github.com/golang-jwt/jwt/v5"
)

// JWTTokenGenerator signs HS256 tokens. Separate secrets for access and
// refresh tokens mean a refresh token presented at a resource endpoint fails
// signature verification outright.
type JWTTokenGenerator struct {
	AccessTokenSecret  []byte
	RefreshTokenSecret []byte
	AccessTokenTTL     time.Duration
	RefreshTokenTTL    time.Duration
}

func NewJWTTokenGenerator(cfg *internal.SecurityConfig) *JWTTokenGenerator {
	return &JWTTokenGenerator{
		AccessTokenSecret:  []byte(cfg.AccessTokenSecret),
		RefreshTokenSecret: []byte(cfg.RefreshTokenSecret),
		AccessTokenTTL:     cfg.AccessTokenDuration,
		RefreshTokenTTL:    cfg.RefreshTokenDuration,
	}
}

func (j *JWTTokenGenerator) IssueAccessToken(userID int64, email, sessionID string, roleClaims, grantScopes []string) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(j.AccessTokenTTL)

	claims := &Claims{
		Email:     email,
		SessionID: sessionID,
		Roles:     roleClaims,
		Scopes:    grantScopes,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.AccessTokenSecret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// IssueRefreshToken scopes the token to exactly one permission: refreshing
// this session. It grants nothing else.
func (j *JWTTokenGenerator) IssueRefreshToken(userID int64, email, sessionID string) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(j.RefreshTokenTTL)

	refreshScope := scope.Directive{
		Type:   scope.TypeAllow,
		Path:   RefreshScopePath,
		Params: map[string]string{ParamSessionID: sessionID},
	}

	claims := &Claims{
		Email:     email,
		SessionID: sessionID,
		Scopes:    []string{refreshScope.String()},
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.RefreshTokenSecret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

func (j *JWTTokenGenerator) ValidateAccessToken(tokenString string) (*Claims, error) {
	return validate(tokenString, j.AccessTokenSecret)
}

func (j *JWTTokenGenerator) ValidateRefreshToken(tokenString string) (*Claims, error) {
	return validate(tokenString, j.RefreshTokenSecret)
}

func validate(tokenString string, secret []byte) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, internal.ErrTokenExpired
		}
		return nil, internal.ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, internal.ErrInvalidToken
	}
	return claims, nil
}
