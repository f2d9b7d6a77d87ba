package identity

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bissquit/status-garden/internal/domain"
	"github.com/bissquit/status-garden/internal/pkg/httputil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// mockRepository implements Repository for testing.
type mockRepository struct {
	users          map[string]*domain.User
	createUserErr  error
	getUserByEmail func(email string) (*domain.User, error)
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		users: make(map[string]*domain.User),
	}
}

func (m *mockRepository) CreateUser(_ context.Context, user *domain.User) error {
	if m.createUserErr != nil {
		return m.createUserErr
	}
	user.ID = "test-user-id"
	m.users[user.Email] = user
	return nil
}

func (m *mockRepository) GetUserByID(_ context.Context, id string) (*domain.User, error) {
	for _, u := range m.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, ErrUserNotFound
}

func (m *mockRepository) GetUserByEmail(_ context.Context, email string) (*domain.User, error) {
	if m.getUserByEmail != nil {
		return m.getUserByEmail(email)
	}
	if u, ok := m.users[email]; ok {
		return u, nil
	}
	return nil, ErrUserNotFound
}

func (m *mockRepository) SaveRefreshToken(_ context.Context, _ *domain.RefreshToken) error {
	return nil
}

func (m *mockRepository) GetRefreshToken(_ context.Context, _ string) (*domain.RefreshToken, error) {
	return nil, ErrInvalidToken
}

func (m *mockRepository) DeleteRefreshToken(_ context.Context, _ string) error {
	return nil
}

// mockAuthenticator implements Authenticator for testing.
type mockAuthenticator struct {
	revoked    []string
	refreshErr error
}

func (m *mockAuthenticator) GenerateTokens(_ context.Context, user *domain.User) (*TokenPair, error) {
	return &TokenPair{AccessToken: "access-" + user.ID, RefreshToken: "refresh", ExpiresIn: 900}, nil
}

func (m *mockAuthenticator) ValidateAccessToken(_ context.Context, token string) (string, domain.Role, error) {
	if token != "good" {
		return "", "", ErrInvalidToken
	}
	return "test-user-id", domain.RoleUser, nil
}

func (m *mockAuthenticator) RefreshTokens(_ context.Context, _ string) (*TokenPair, error) {
	if m.refreshErr != nil {
		return nil, m.refreshErr
	}
	return &TokenPair{AccessToken: "access-2", RefreshToken: "refresh-2", ExpiresIn: 900}, nil
}

func (m *mockAuthenticator) RevokeRefreshToken(_ context.Context, token string) error {
	m.revoked = append(m.revoked, token)
	return nil
}

func (m *mockAuthenticator) Type() string {
	return "mock"
}

func newTestService(repo *mockRepository, auth *mockAuthenticator) *Service {
	svc := NewService(repo, auth)
	svc.bcryptCost = bcrypt.MinCost
	return svc
}

func TestRegister(t *testing.T) {
	repo := newMockRepository()
	svc := newTestService(repo, &mockAuthenticator{})

	user, err := svc.Register(context.Background(), RegisterInput{
		Email:     "  Test@Example.com ",
		Password:  "password123",
		FirstName: "Ada",
	})

	require.NoError(t, err)
	assert.Equal(t, "test@example.com", user.Email)
	assert.Equal(t, domain.RoleUser, user.Role)
	assert.Equal(t, "Ada", user.FirstName)
	assert.NotEqual(t, "password123", user.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("password123")))
}

func TestRegister_Errors(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(*mockRepository)
		email   string
		wantErr error
	}{
		{
			name: "email already exists",
			setup: func(m *mockRepository) {
				m.users["existing@example.com"] = &domain.User{Email: "existing@example.com"}
			},
			email:   "EXISTING@example.com",
			wantErr: ErrEmailExists,
		},
		{
			name: "lookup fails",
			setup: func(m *mockRepository) {
				m.getUserByEmail = func(string) (*domain.User, error) { return nil, errors.New("db down") }
			},
			email: "test@example.com",
		},
		{
			name:  "create fails",
			setup: func(m *mockRepository) { m.createUserErr = errors.New("database error") },
			email: "test@example.com",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newMockRepository()
			tt.setup(repo)
			svc := newTestService(repo, &mockAuthenticator{})

			user, err := svc.Register(context.Background(), RegisterInput{
				Email:    tt.email,
				Password: "password123",
			})

			assert.Nil(t, user)
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestLogin(t *testing.T) {
	repo := newMockRepository()
	svc := newTestService(repo, &mockAuthenticator{})
	_, err := svc.Register(context.Background(), RegisterInput{Email: "user@example.com", Password: "password123"})
	require.NoError(t, err)

	tests := []struct {
		name     string
		email    string
		password string
		wantErr  error
	}{
		{name: "valid credentials", email: "USER@example.com", password: "password123"},
		{name: "wrong password", email: "user@example.com", password: "wrong-password", wantErr: ErrInvalidCredentials},
		{name: "unknown email", email: "nobody@example.com", password: "password123", wantErr: ErrInvalidCredentials},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user, tokens, err := svc.Login(context.Background(), LoginInput{Email: tt.email, Password: tt.password})
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, tokens)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "test-user-id", user.ID)
			assert.Equal(t, "access-test-user-id", tokens.AccessToken)
		})
	}
}

func TestLogoutAndValidate(t *testing.T) {
	auth := &mockAuthenticator{}
	svc := newTestService(newMockRepository(), auth)

	require.NoError(t, svc.Logout(context.Background(), "refresh"))
	assert.Equal(t, []string{"refresh"}, auth.revoked)

	userID, role, err := svc.ValidateToken(context.Background(), "good")
	require.NoError(t, err)
	assert.Equal(t, "test-user-id", userID)
	assert.Equal(t, domain.RoleUser, role)

	_, _, err = svc.ValidateToken(context.Background(), "bad")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestHandler_LoginSetsCookies(t *testing.T) {
	repo := newMockRepository()
	svc := newTestService(repo, &mockAuthenticator{})
	_, err := svc.Register(context.Background(), RegisterInput{Email: "user@example.com", Password: "password123"})
	require.NoError(t, err)
	h := NewHandler(svc, CookieSettings{})

	req := httptest.NewRequest(http.MethodPost, "/auth/login",
		strings.NewReader(`{"email":"user@example.com","password":"password123"}`))
	rec := httptest.NewRecorder()
	h.Login(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	cookies := map[string]*http.Cookie{}
	for _, c := range rec.Result().Cookies() {
		cookies[c.Name] = c
	}
	require.Contains(t, cookies, httputil.AccessTokenCookie)
	require.Contains(t, cookies, httputil.RefreshTokenCookie)
	require.Contains(t, cookies, httputil.CSRFTokenCookie)
	assert.Equal(t, refreshCookiePath, cookies[httputil.RefreshTokenCookie].Path)
	assert.True(t, cookies[httputil.AccessTokenCookie].HttpOnly)
	assert.False(t, cookies[httputil.CSRFTokenCookie].HttpOnly)
}

func TestHandler_Refresh(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		cookie     string
		refreshErr error
		wantStatus int
	}{
		{name: "token from cookie", cookie: "refresh", wantStatus: http.StatusOK},
		{name: "token from body", body: `{"refresh_token":"refresh"}`, wantStatus: http.StatusOK},
		{name: "missing token", wantStatus: http.StatusBadRequest},
		{name: "rejected token", cookie: "stale", refreshErr: ErrInvalidToken, wantStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler(newTestService(newMockRepository(), &mockAuthenticator{refreshErr: tt.refreshErr}), CookieSettings{})

			req := httptest.NewRequest(http.MethodPost, "/auth/refresh", strings.NewReader(tt.body))
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: httputil.RefreshTokenCookie, Value: tt.cookie})
			}
			rec := httptest.NewRecorder()
			h.Refresh(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestHandler_LogoutClearsCookies(t *testing.T) {
	auth := &mockAuthenticator{}
	h := NewHandler(newTestService(newMockRepository(), auth), CookieSettings{Secure: true})

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", http.NoBody)
	req.AddCookie(&http.Cookie{Name: httputil.RefreshTokenCookie, Value: "refresh"})
	rec := httptest.NewRecorder()
	h.Logout(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	cleared := rec.Result().Cookies()
	require.Len(t, cleared, len(authCookies))
	for _, c := range cleared {
		assert.Empty(t, c.Value, c.Name)
		assert.Negative(t, c.MaxAge, c.Name)
		assert.True(t, c.Secure, c.Name)
	}
}
