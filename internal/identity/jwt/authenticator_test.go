package jwt

import (
	"context"
	"testing"
	"time"

	"github.com/bissquit/status-garden/internal/domain"
	"github.com/bissquit/status-garden/internal/identity"
	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryStore struct {
	users  map[string]*domain.User
	tokens map[string]*domain.RefreshToken
}

func newMemoryStore(users ...*domain.User) *memoryStore {
	s := &memoryStore{users: make(map[string]*domain.User), tokens: make(map[string]*domain.RefreshToken)}
	for _, u := range users {
		s.users[u.ID] = u
	}
	return s
}

func (s *memoryStore) GetUserByID(_ context.Context, id string) (*domain.User, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, identity.ErrUserNotFound
	}
	return u, nil
}

func (s *memoryStore) SaveRefreshToken(_ context.Context, token *domain.RefreshToken) error {
	s.tokens[token.TokenHash] = token
	return nil
}

func (s *memoryStore) GetRefreshToken(_ context.Context, hash string) (*domain.RefreshToken, error) {
	t, ok := s.tokens[hash]
	if !ok {
		return nil, identity.ErrInvalidToken
	}
	return t, nil
}

func (s *memoryStore) DeleteRefreshToken(_ context.Context, hash string) error {
	if _, ok := s.tokens[hash]; !ok {
		return identity.ErrInvalidToken
	}
	delete(s.tokens, hash)
	return nil
}

var testUser = &domain.User{ID: "user-1", Email: "a@example.com", Role: domain.RoleAdmin}

func newTestAuthenticator(store TokenStore) *Authenticator {
	return NewAuthenticator(Config{
		SecretKey:            "test-secret",
		AccessTokenDuration:  15 * time.Minute,
		RefreshTokenDuration: 24 * time.Hour,
	}, store)
}

func TestGenerateAndValidate(t *testing.T) {
	store := newMemoryStore(testUser)
	auth := newTestAuthenticator(store)

	pair, err := auth.GenerateTokens(context.Background(), testUser)
	require.NoError(t, err)
	assert.Equal(t, 900, pair.ExpiresIn)
	assert.Len(t, store.tokens, 1)
	assert.Contains(t, store.tokens, HashToken(pair.RefreshToken))

	userID, role, err := auth.ValidateAccessToken(context.Background(), pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "user-1", userID)
	assert.Equal(t, domain.RoleAdmin, role)
}

func TestValidateAccessToken_Rejects(t *testing.T) {
	auth := newTestAuthenticator(newMemoryStore(testUser))
	pair, err := auth.GenerateTokens(context.Background(), testUser)
	require.NoError(t, err)

	other := newTestAuthenticator(newMemoryStore(testUser))
	other.config.SecretKey = "another-secret"

	expired := newTestAuthenticator(newMemoryStore(testUser))
	expired.now = func() time.Time { return time.Now().Add(time.Hour) }

	none, err := gojwt.NewWithClaims(gojwt.SigningMethodNone, claims{
		RegisteredClaims: gojwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: gojwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString(gojwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name  string
		auth  *Authenticator
		token string
	}{
		{name: "garbage", auth: auth, token: "not-a-token"},
		{name: "wrong key", auth: other, token: pair.AccessToken},
		{name: "expired", auth: expired, token: pair.AccessToken},
		{name: "alg none", auth: auth, token: none},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := tt.auth.ValidateAccessToken(context.Background(), tt.token)
			assert.ErrorIs(t, err, identity.ErrInvalidToken)
		})
	}
}

func TestRefreshTokens_Rotates(t *testing.T) {
	store := newMemoryStore(testUser)
	auth := newTestAuthenticator(store)

	first, err := auth.GenerateTokens(context.Background(), testUser)
	require.NoError(t, err)

	second, err := auth.RefreshTokens(context.Background(), first.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, first.RefreshToken, second.RefreshToken)
	assert.Len(t, store.tokens, 1)

	_, err = auth.RefreshTokens(context.Background(), first.RefreshToken)
	assert.ErrorIs(t, err, identity.ErrInvalidToken)
}

func TestRefreshTokens_Expired(t *testing.T) {
	store := newMemoryStore(testUser)
	auth := newTestAuthenticator(store)

	pair, err := auth.GenerateTokens(context.Background(), testUser)
	require.NoError(t, err)

	auth.now = func() time.Time { return time.Now().Add(48 * time.Hour) }
	_, err = auth.RefreshTokens(context.Background(), pair.RefreshToken)
	assert.ErrorIs(t, err, identity.ErrInvalidToken)
	assert.Empty(t, store.tokens)
}

func TestRevokeRefreshToken(t *testing.T) {
	store := newMemoryStore(testUser)
	auth := newTestAuthenticator(store)

	pair, err := auth.GenerateTokens(context.Background(), testUser)
	require.NoError(t, err)

	require.NoError(t, auth.RevokeRefreshToken(context.Background(), pair.RefreshToken))
	assert.Empty(t, store.tokens)
	require.NoError(t, auth.RevokeRefreshToken(context.Background(), "unknown"))
}
