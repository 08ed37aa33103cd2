package services

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/giftmind/giftmind-backend/internal/config"
	"github.com/giftmind/giftmind-backend/internal/models"
)

// SessionClaims is the JWT claim set for both token classes: the session
// payload plus the registered claims (exp/iat).
type SessionClaims struct {
	models.UserPayload
	jwt.RegisteredClaims
}

// TokenService signs and verifies the two token classes with distinct
// secrets and lifetimes, and owns the refresh store and the blacklist.
type TokenService struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration

	refresh   *RefreshTokenStore
	blacklist *AccessTokenBlacklist

	now func() time.Time
}

func NewTokenService(cfg *config.Config) *TokenService {
	return &TokenService{
		accessSecret:  []byte(cfg.JWTAccessSecret),
		refreshSecret: []byte(cfg.JWTRefreshSecret),
		accessTTL:     cfg.JWTAccessTTL,
		refreshTTL:    cfg.JWTRefreshTTL,
		refresh:       NewRefreshTokenStore(),
		blacklist:     NewAccessTokenBlacklist(),
		now:           time.Now,
	}
}

// sign builds a fresh claim set from the payload alone. Registered claims
// from a previously decoded token are never carried over, so a payload
// obtained from VerifyRefreshToken can be re-signed safely.
func (s *TokenService) sign(payload models.UserPayload, secret []byte, ttl time.Duration) (string, error) {
	now := s.now()
	claims := SessionClaims{
		UserPayload: payload,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// SignAccessToken issues a short-lived access token.
func (s *TokenService) SignAccessToken(payload models.UserPayload) (string, error) {
	token, err := s.sign(payload, s.accessSecret, s.accessTTL)
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return token, nil
}

// SignRefreshToken issues a refresh token and records it as the user's only
// valid one, superseding any earlier refresh token.
func (s *TokenService) SignRefreshToken(payload models.UserPayload) (string, error) {
	token, err := s.sign(payload, s.refreshSecret, s.refreshTTL)
	if err != nil {
		return "", fmt.Errorf("sign refresh token: %w", err)
	}
	s.refresh.Set(payload.ID, token)
	return token, nil
}

func (s *TokenService) verify(tokenString string, secret []byte) (*models.UserPayload, error) {
	claims := &SessionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, jwt.ErrTokenUnverifiable
	}
	payload := claims.UserPayload
	return &payload, nil
}

// VerifyAccessToken checks signature and expiry only. Revocation is the
// request gate's concern and is checked before this is called.
func (s *TokenService) VerifyAccessToken(tokenString string) (*models.UserPayload, error) {
	return s.verify(tokenString, s.accessSecret)
}

// VerifyRefreshToken checks signature and expiry, then requires the store to
// hold exactly this token for the decoded user: a cryptographically valid
// token superseded by a later login is rejected. All failures collapse to
// ErrInvalidRefreshToken.
func (s *TokenService) VerifyRefreshToken(tokenString string) (*models.UserPayload, error) {
	payload, err := s.verify(tokenString, s.refreshSecret)
	if err != nil {
		return nil, ErrInvalidRefreshToken
	}
	stored, ok := s.refresh.Get(payload.ID)
	if !ok || stored != tokenString {
		return nil, ErrInvalidRefreshToken
	}
	return payload, nil
}

// RevokeAccessToken blacklists an access token until process exit.
func (s *TokenService) RevokeAccessToken(token string) {
	s.blacklist.Add(token)
}

// IsAccessTokenRevoked reports whether logout blacklisted the token.
func (s *TokenService) IsAccessTokenRevoked(token string) bool {
	return s.blacklist.Contains(token)
}

// DropRefreshToken removes the user's refresh store entry on logout.
func (s *TokenService) DropRefreshToken(userID int64) {
	s.refresh.Delete(userID)
}
