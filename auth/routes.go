package auth

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Routes returns the HTTP surface with /members and everything below it behind Authmiddleware.
func (ac *AuthContext) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get(homePath, ac.HomeHandler)
	r.Get("/signup", ac.FormHandler)
	r.Post("/signup", ac.SignupHandler)
	r.Get(loginPath, ac.FormHandler)
	r.Post(loginPath, ac.LoginHandler)
	r.Get("/logout", ac.LogoutHandler)
	r.Post("/logout", ac.LogoutHandler)

	r.Route(membersPath, func(r chi.Router) {
		r.Use(ac.Authmiddleware)
		r.Get("/", ac.MembersHandler)
		r.Get("/lookup", ac.LookupHandler)
	})

	r.NotFound(ac.NotFoundHandler)
	return r
}
