package httputil

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bissquit/status-garden/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubValidator struct {
	userID string
	role   domain.Role
	err    error
}

func (v stubValidator) ValidateToken(_ context.Context, token string) (string, domain.Role, error) {
	if v.err != nil || token != "good" {
		return "", "", errors.New("bad token")
	}
	return v.userID, v.role, nil
}

func TestParsePage(t *testing.T) {
	tests := []struct {
		query   string
		want    Page
		wantErr bool
	}{
		{query: "", want: Page{Page: 1, Limit: 10}},
		{query: "page=3&limit=25", want: Page{Page: 3, Limit: 25}},
		{query: "limit=100", want: Page{Page: 1, Limit: 100}},
		{query: "limit=101", wantErr: true},
		{query: "limit=0", wantErr: true},
		{query: "page=0", wantErr: true},
		{query: "page=abc", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/items?"+tt.query, nil)
			got, err := ParsePage(r)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidPagination)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPaginated(t *testing.T) {
	w := httptest.NewRecorder()
	Paginated(w, []string{"a", "b"}, 21, Page{Page: 2, Limit: 10})

	var body struct {
		Data []string `json:"data"`
		Meta PageMeta `json:"meta"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, []string{"a", "b"}, body.Data)
	assert.Equal(t, PageMeta{Total: 21, Page: 2, Limit: 10, Pages: 3}, body.Meta)
}

func TestHandleError_DomainErrors(t *testing.T) {
	errNotFound := errors.New("thing not found")
	mappings := []ErrorMapping{{Error: errNotFound, Status: http.StatusNotFound}}

	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"module mapping", fmt.Errorf("get thing: %w", errNotFound), http.StatusNotFound},
		{"transition", &domain.TransitionError{Entity: "incident", From: "resolved", To: "monitoring"}, http.StatusConflict},
		{"validation", &domain.ValidationError{Field: "title", Reason: "must not be empty"}, http.StatusBadRequest},
		{"unknown", errors.New("db down"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			HandleError(context.Background(), w, tt.err, mappings)
			assert.Equal(t, tt.status, w.Code)
		})
	}
}

func TestAuthMiddleware(t *testing.T) {
	validator := stubValidator{userID: "user-1", role: domain.RoleUser}
	var gotUser string
	handler := AuthMiddleware(validator)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser = GetUserID(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name   string
		method string
		setup  func(r *http.Request)
		status int
	}{
		{"missing", http.MethodGet, func(*http.Request) {}, http.StatusUnauthorized},
		{"bearer", http.MethodPost, func(r *http.Request) { r.Header.Set("Authorization", "Bearer good") }, http.StatusOK},
		{"bad bearer", http.MethodGet, func(r *http.Request) { r.Header.Set("Authorization", "Bearer bad") }, http.StatusUnauthorized},
		{"malformed header", http.MethodGet, func(r *http.Request) { r.Header.Set("Authorization", "Token good") }, http.StatusUnauthorized},
		{"cookie read", http.MethodGet, func(r *http.Request) {
			r.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: "good"})
		}, http.StatusOK},
		{"cookie write without csrf", http.MethodPost, func(r *http.Request) {
			r.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: "good"})
		}, http.StatusForbidden},
		{"cookie write with csrf", http.MethodPost, func(r *http.Request) {
			r.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: "good"})
			r.AddCookie(&http.Cookie{Name: CSRFTokenCookie, Value: "csrf-1"})
			r.Header.Set(CSRFTokenHeader, "csrf-1")
		}, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotUser = ""
			r := httptest.NewRequest(tt.method, "/", nil)
			tt.setup(r)
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, r)

			assert.Equal(t, tt.status, w.Code)
			if tt.status == http.StatusOK {
				assert.Equal(t, "user-1", gotUser)
			}
		})
	}
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Name: "test", RequestsPerSecond: 0.001, Burst: 2, TTL: time.Minute})
	handler := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.RemoteAddr = "10.0.0.1:1234"
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.0.0.2:1234"
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)
	assert.Equal(t, http.StatusOK, w.Code)

	rl.now = func() time.Time { return time.Now().Add(time.Hour) }
	rl.Cleanup()
	assert.Empty(t, rl.visitors)
}
