package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"typeduel/internal/cache"
	"typeduel/internal/model"
	"typeduel/internal/repository"
)

var ErrInvalidToken = errors.New("invalid or expired token")

// AuthService resolves bearer tokens to player identities
type AuthService struct {
	jwtSecret  []byte
	cookieName string
	users      repository.UserRepo
	cache      cache.UserCache
}

// NewAuthService creates a new auth service
func NewAuthService(secret, cookieName string, users repository.UserRepo) *AuthService {
	return &AuthService{
		jwtSecret:  []byte(secret),
		cookieName: cookieName,
		users:      users,
	}
}

// SetUserCache sets the read-through profile cache
func (s *AuthService) SetUserCache(c cache.UserCache) {
	s.cache = c
}

// IssueToken signs a session token for user. A zero ttl issues a token
// without expiry.
func (s *AuthService) IssueToken(user *model.User, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &model.UserClaims{
		Username: user.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  user.ID,
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

// ValidateToken validates a session JWT and returns its claims
func (s *AuthService) ValidateToken(tokenString string) (*model.UserClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &model.UserClaims{}, func(token *jwt.Token) (interface{}, error) {
		return s.jwtSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*model.UserClaims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// TokenFromRequest looks for a token in the Authorization header, then the
// token query parameter, then the session cookie.
func (s *AuthService) TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
			return strings.TrimSpace(h[7:])
		}
	}
	if t := r.URL.Query().Get("token"); t != "" {
		return t
	}
	if s.cookieName != "" {
		if c, err := r.Cookie(s.cookieName); err == nil {
			return c.Value
		}
	}
	return ""
}

// Authenticate resolves the request's token to an identity. It returns
// nil without error when the request carries no token at all.
func (s *AuthService) Authenticate(ctx context.Context, r *http.Request) (*model.Identity, error) {
	raw := s.TokenFromRequest(r)
	if raw == "" {
		return nil, nil
	}
	claims, err := s.ValidateToken(raw)
	if err != nil {
		return nil, err
	}
	user, err := s.User(ctx, claims.Subject)
	if err != nil {
		return nil, err
	}
	return &model.Identity{
		UserID:   user.ID,
		Username: model.DisplayName(user.Username, user.Email),
		Rating:   user.Rating,
	}, nil
}

// User loads a profile, through the cache when one is configured
func (s *AuthService) User(ctx context.Context, id string) (*model.User, error) {
	if s.cache != nil {
		cached, err := s.cache.GetUser(ctx, id)
		if err != nil {
			slog.Warn("user_cache_read_failed", slog.String("user", id), slog.Any("err", err))
		} else if cached != nil {
			return cached, nil
		}
	}

	user, err := s.users.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("%w: %s", repository.ErrUserNotFound, id)
	}

	if s.cache != nil {
		if err := s.cache.SetUser(ctx, user); err != nil {
			slog.Warn("user_cache_write_failed", slog.String("user", id), slog.Any("err", err))
		}
	}
	return user, nil
}
