//go:build integration

package integration

import (
	"net/http"
	"testing"

	"github.com/bissquit/status-garden/internal/pkg/httputil"
	"github.com/bissquit/status-garden/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuth_Register_Login_Flow(t *testing.T) {
	client := newTestClient(t)
	email := testutil.RandomEmail("flow")

	resp, err := client.POST("/api/v1/auth/register", map[string]string{
		"email":    email,
		"password": testPassword,
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	var registerResult struct {
		Data struct {
			ID    string `json:"id"`
			Email string `json:"email"`
			Role  string `json:"role"`
		} `json:"data"`
	}
	testutil.DecodeJSON(t, resp, &registerResult)
	assert.Equal(t, email, registerResult.Data.Email)
	assert.Equal(t, "user", registerResult.Data.Role)
	assert.NotEmpty(t, registerResult.Data.ID)

	resp, err = client.POST("/api/v1/auth/login", map[string]string{
		"email":    email,
		"password": testPassword,
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var hasAccessToken, hasRefreshToken, hasCSRFToken bool
	for _, c := range resp.Cookies() {
		switch c.Name {
		case httputil.AccessTokenCookie:
			hasAccessToken = true
			assert.True(t, c.HttpOnly)
		case httputil.RefreshTokenCookie:
			hasRefreshToken = true
			assert.True(t, c.HttpOnly)
			assert.Equal(t, "/api/v1/auth", c.Path)
		case httputil.CSRFTokenCookie:
			hasCSRFToken = true
			assert.False(t, c.HttpOnly)
		}
	}
	assert.True(t, hasAccessToken, "access_token cookie should be set")
	assert.True(t, hasRefreshToken, "refresh_token cookie should be set")
	assert.True(t, hasCSRFToken, "csrf_token cookie should be set")

	var loginResult struct {
		Data struct {
			User struct {
				Email string `json:"email"`
			} `json:"user"`
			Tokens struct {
				AccessToken string `json:"access_token"`
			} `json:"tokens"`
		} `json:"data"`
	}
	testutil.DecodeJSON(t, resp, &loginResult)
	assert.Equal(t, email, loginResult.Data.User.Email)
	assert.NotEmpty(t, loginResult.Data.Tokens.AccessToken)
}

func TestAuth_Register_DuplicateEmail(t *testing.T) {
	email := testutil.RandomEmail("dup")
	client := newTestClient(t)
	client.Register(t, email, testPassword)

	resp, err := client.POST("/api/v1/auth/register", map[string]string{
		"email":    email,
		"password": testPassword,
	})
	requireStatus(t, resp, err, http.StatusConflict)
}

func TestAuth_Login_InvalidCredentials(t *testing.T) {
	client := newTestClient(t)
	resp, err := client.POST("/api/v1/auth/login", map[string]string{
		"email":    "nonexistent@example.com",
		"password": "wrongpassword",
	})
	requireStatus(t, resp, err, http.StatusUnauthorized)
}

func TestAuth_Me_BearerToken(t *testing.T) {
	email := testutil.RandomEmail("bearer")
	newTestClient(t).Register(t, email, testPassword)

	client := newTestClient(t)
	resp, err := client.POST("/api/v1/auth/login", map[string]string{
		"email":    email,
		"password": testPassword,
	})
	require.NoError(t, err)
	var login struct {
		Data struct {
			Tokens struct {
				AccessToken string `json:"access_token"`
			} `json:"tokens"`
		} `json:"data"`
	}
	testutil.DecodeJSON(t, resp, &login)

	api := newTestClient(t)
	api.Token = login.Data.Tokens.AccessToken
	resp, err = api.GET("/api/v1/me")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var me struct {
		Data struct {
			Email string `json:"email"`
		} `json:"data"`
	}
	testutil.DecodeJSON(t, resp, &me)
	assert.Equal(t, email, me.Data.Email)
}

func TestAuth_Me_Unauthenticated(t *testing.T) {
	resp, err := newTestClientWithoutValidation().GET("/api/v1/me")
	requireStatus(t, resp, err, http.StatusUnauthorized)
}

func TestAuth_CookieWriteRequiresCSRF(t *testing.T) {
	client, _ := newUser(t, "csrf")
	client.CSRFToken = ""

	resp, err := client.WithoutValidation().POST("/api/v1/organizations", map[string]string{"name": "No CSRF"})
	requireStatus(t, resp, err, http.StatusForbidden)
}

func TestAuth_RefreshRotatesToken(t *testing.T) {
	client, _ := newUser(t, "refresh")

	resp, err := client.POST("/api/v1/auth/refresh", nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var first struct {
		Data struct {
			RefreshToken string `json:"refresh_token"`
		} `json:"data"`
	}
	testutil.DecodeJSON(t, resp, &first)
	require.NotEmpty(t, first.Data.RefreshToken)

	resp, err = client.POST("/api/v1/auth/refresh", nil)
	requireStatus(t, resp, err, http.StatusOK)

	// The first rotated token was replaced by the second refresh.
	stale := newTestClientWithoutValidation()
	resp, err = stale.POST("/api/v1/auth/refresh", map[string]string{"refresh_token": first.Data.RefreshToken})
	requireStatus(t, resp, err, http.StatusUnauthorized)
}

func TestAuth_Logout(t *testing.T) {
	client, _ := newUser(t, "logout")

	resp, err := client.POST("/api/v1/auth/logout", nil)
	requireStatus(t, resp, err, http.StatusNoContent)

	resp, err = client.WithoutValidation().POST("/api/v1/auth/refresh", nil)
	requireStatus(t, resp, err, http.StatusBadRequest)
}
