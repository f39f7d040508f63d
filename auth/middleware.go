package auth

import (
	"errors"
	"net/http"

	"github.com/cameronmore/go-members/sessions"
)

// A middleware that only lets requests with a valid unexpired session through.
// Everyone else is redirected to the login page before the route handler runs.
func (ac *AuthContext) Authmiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		s, err := ac.Sessions.Authenticate(ctx, r)
		switch {
		case err == nil:
		case errors.Is(err, sessions.ErrSessionExpired):
			if errors.Is(err, sessions.ErrStoreUnavailable) {
				ac.Log.Warn(ctx, "removing expired session failed", "error", err)
			}
			http.SetCookie(w, ac.Sessions.ClearCookie())
			http.Redirect(w, r, loginPath, http.StatusSeeOther)
			return
		case errors.Is(err, sessions.ErrStoreUnavailable):
			ac.Log.Error(ctx, "loading session failed", "error", err)
			writeError(w, http.StatusInternalServerError, internalErrorMessage)
			return
		default:
			http.Redirect(w, r, loginPath, http.StatusSeeOther)
			return
		}

		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r.WithContext(sessions.WithSession(ctx, s)))
	})
}
