package sessions

import (
	"net/http"
	"time"
)

func newCookie(value string, expires time.Time, maxAge int, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// Returns an expired cookie that makes the client drop its session id.
func ClearCookie(secure bool) *http.Cookie {
	return newCookie("", time.Unix(0, 0), -1, secure)
}
