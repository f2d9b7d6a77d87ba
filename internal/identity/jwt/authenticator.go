// Package jwt implements identity.Authenticator with HS256 access tokens and
// opaque refresh tokens stored server side.
package jwt

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/bissquit/status-garden/internal/domain"
	"github.com/bissquit/status-garden/internal/identity"
	gojwt "github.com/golang-jwt/jwt/v5"
)

const refreshTokenBytes = 32

// Config configures token lifetimes and the signing key.
type Config struct {
	SecretKey            string
	AccessTokenDuration  time.Duration
	RefreshTokenDuration time.Duration
}

// TokenStore persists refresh tokens and resolves their users.
type TokenStore interface {
	GetUserByID(ctx context.Context, id string) (*domain.User, error)
	SaveRefreshToken(ctx context.Context, token *domain.RefreshToken) error
	GetRefreshToken(ctx context.Context, tokenHash string) (*domain.RefreshToken, error)
	DeleteRefreshToken(ctx context.Context, tokenHash string) error
}

type claims struct {
	Role domain.Role `json:"role"`
	gojwt.RegisteredClaims
}

// Authenticator issues and validates tokens.
type Authenticator struct {
	config Config
	store  TokenStore
	now    func() time.Time
}

// NewAuthenticator creates a new JWT authenticator.
func NewAuthenticator(config Config, store TokenStore) *Authenticator {
	return &Authenticator{
		config: config,
		store:  store,
		now:    time.Now,
	}
}

// Type returns the authenticator name.
func (a *Authenticator) Type() string {
	return "jwt"
}

// GenerateTokens signs an access token and stores a new refresh token.
func (a *Authenticator) GenerateTokens(ctx context.Context, user *domain.User) (*identity.TokenPair, error) {
	now := a.now()

	access, err := gojwt.NewWithClaims(gojwt.SigningMethodHS256, claims{
		Role: user.Role,
		RegisteredClaims: gojwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  gojwt.NewNumericDate(now),
			ExpiresAt: gojwt.NewNumericDate(now.Add(a.config.AccessTokenDuration)),
		},
	}).SignedString([]byte(a.config.SecretKey))
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	raw := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return nil, fmt.Errorf("generate refresh token: %w", err)
	}
	refresh := base64.RawURLEncoding.EncodeToString(raw)

	if err := a.store.SaveRefreshToken(ctx, &domain.RefreshToken{
		UserID:    user.ID,
		TokenHash: HashToken(refresh),
		ExpiresAt: now.Add(a.config.RefreshTokenDuration),
	}); err != nil {
		return nil, fmt.Errorf("save refresh token: %w", err)
	}

	return &identity.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int(a.config.AccessTokenDuration.Seconds()),
	}, nil
}

// ValidateAccessToken checks signature, algorithm and expiry.
func (a *Authenticator) ValidateAccessToken(_ context.Context, token string) (string, domain.Role, error) {
	var c claims
	_, err := gojwt.ParseWithClaims(token, &c, func(*gojwt.Token) (interface{}, error) {
		return []byte(a.config.SecretKey), nil
	},
		gojwt.WithValidMethods([]string{gojwt.SigningMethodHS256.Alg()}),
		gojwt.WithExpirationRequired(),
		gojwt.WithTimeFunc(a.now),
	)
	if err != nil || c.Subject == "" {
		return "", "", identity.ErrInvalidToken
	}
	return c.Subject, c.Role, nil
}

// RefreshTokens rotates a refresh token: the presented one is deleted and a
// new pair is issued for the current state of the user.
func (a *Authenticator) RefreshTokens(ctx context.Context, refreshToken string) (*identity.TokenPair, error) {
	hash := HashToken(refreshToken)

	stored, err := a.store.GetRefreshToken(ctx, hash)
	if err != nil {
		if errors.Is(err, identity.ErrInvalidToken) {
			return nil, identity.ErrInvalidToken
		}
		return nil, fmt.Errorf("get refresh token: %w", err)
	}

	if err := a.store.DeleteRefreshToken(ctx, hash); err != nil {
		return nil, fmt.Errorf("delete refresh token: %w", err)
	}

	if !a.now().Before(stored.ExpiresAt) {
		return nil, identity.ErrInvalidToken
	}

	user, err := a.store.GetUserByID(ctx, stored.UserID)
	if err != nil {
		if errors.Is(err, identity.ErrUserNotFound) {
			return nil, identity.ErrInvalidToken
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	return a.GenerateTokens(ctx, user)
}

// RevokeRefreshToken deletes a refresh token. Unknown tokens are ignored.
func (a *Authenticator) RevokeRefreshToken(ctx context.Context, refreshToken string) error {
	if err := a.store.DeleteRefreshToken(ctx, HashToken(refreshToken)); err != nil && !errors.Is(err, identity.ErrInvalidToken) {
		return fmt.Errorf("delete refresh token: %w", err)
	}
	return nil
}

// HashToken returns the hex SHA-256 of an opaque token.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
