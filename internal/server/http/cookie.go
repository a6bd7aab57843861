package http

import (
	"net/http"
	"time"
)

// RefreshCookieName carries the refresh token between client and server.
const RefreshCookieName = "refresh_token"

type CookieConfig struct {
	Secure bool
	Domain string
}

// setRefreshCookie stores token in an HttpOnly cookie that expires together
// with the token.
func (s *Server) setRefreshCookie(w http.ResponseWriter, token string, expires time.Time) {
	maxAge := int(time.Until(expires).Seconds())
	if maxAge < 1 {
		maxAge = 1
	}
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookieName,
		Value:    token,
		Path:     "/",
		Domain:   s.cookie.Domain,
		Expires:  expires.UTC(),
		MaxAge:   maxAge,
		Secure:   s.cookie.Secure,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
}

func (s *Server) clearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookieName,
		Value:    "",
		Path:     "/",
		Domain:   s.cookie.Domain,
		Expires:  time.Unix(0, 0).UTC(),
		MaxAge:   -1,
		Secure:   s.cookie.Secure,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
}

func refreshCookie(r *http.Request) string {
	c, err := r.Cookie(RefreshCookieName)
	if err != nil {
		return ""
	}
	return c.Value
}
