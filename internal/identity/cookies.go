package identity

import (
	"crypto/rand"
	"net/http"
	"time"

	"github.com/bissquit/status-garden/internal/pkg/httputil"
)

// refreshCookiePath limits the refresh token cookie to the auth endpoints.
const refreshCookiePath = "/api/v1/auth"

// CookieSettings contains settings for authentication cookies.
type CookieSettings struct {
	Secure               bool
	Domain               string
	AccessTokenDuration  time.Duration
	RefreshTokenDuration time.Duration
}

type cookieSpec struct {
	name     string
	path     string
	httpOnly bool
	sameSite http.SameSite
	ttl      func(CookieSettings) time.Duration
}

func accessTTL(s CookieSettings) time.Duration  { return s.AccessTokenDuration }
func refreshTTL(s CookieSettings) time.Duration { return s.RefreshTokenDuration }

// authCookies are written on login and refresh and cleared on logout.
// The CSRF cookie stays readable by scripts so they can echo it in the header.
var authCookies = []cookieSpec{
	{name: httputil.AccessTokenCookie, path: "/", httpOnly: true, sameSite: http.SameSiteLaxMode, ttl: accessTTL},
	{name: httputil.RefreshTokenCookie, path: refreshCookiePath, httpOnly: true, sameSite: http.SameSiteStrictMode, ttl: refreshTTL},
	{name: httputil.CSRFTokenCookie, path: "/", httpOnly: false, sameSite: http.SameSiteLaxMode, ttl: accessTTL},
}

type cookieWriter struct {
	settings CookieSettings
}

func (c cookieWriter) set(w http.ResponseWriter, tokens *TokenPair) {
	values := map[string]string{
		httputil.AccessTokenCookie:  tokens.AccessToken,
		httputil.RefreshTokenCookie: tokens.RefreshToken,
		httputil.CSRFTokenCookie:    rand.Text(),
	}
	for _, spec := range authCookies {
		http.SetCookie(w, c.cookie(spec, values[spec.name], int(spec.ttl(c.settings).Seconds())))
	}
}

func (c cookieWriter) clear(w http.ResponseWriter) {
	for _, spec := range authCookies {
		http.SetCookie(w, c.cookie(spec, "", -1))
	}
}

func (c cookieWriter) cookie(spec cookieSpec, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     spec.name,
		Value:    value,
		Path:     spec.path,
		Domain:   c.settings.Domain,
		MaxAge:   maxAge,
		HttpOnly: spec.httpOnly,
		Secure:   c.settings.Secure,
		SameSite: spec.sameSite,
	}
}
