package auth

import (
	"encoding/json"
	"errors"
	"math/rand/v2"
	"mime"
	"net/http"

	"github.com/cameronmore/go-members/logging"
	"github.com/cameronmore/go-members/sessions"
	"github.com/cameronmore/go-members/validate"
)

const (
	loginPath   = "/login"
	membersPath = "/members"
	homePath    = "/"

	maxBodyBytes = 16 << 10

	invalidCredentialsMessage = "Invalid email or password"
	internalErrorMessage      = "internal error"
)

var memberImages = []string{"image1.jpeg", "image2.jpeg", "image3.jpeg"}

// An authentication manager that binds the signup, login and logout flows and the
// members area to HTTP. Handlers answer with a redirect on success and a JSON
// payload otherwise; rendering HTML is left to whatever sits in front.
type AuthContext struct {
	Service  *Service
	Sessions *sessions.Manager
	Log      logging.Logger
}

// Returns a new AuthContext.
func NewAuthContext(service *Service, manager *sessions.Manager, log logging.Logger) *AuthContext {
	return &AuthContext{
		Service:  service,
		Sessions: manager,
		Log:      log,
	}
}

type errorResponse struct {
	Error *string `json:"error"`
}

type homeResponse struct {
	Authenticated bool   `json:"authenticated"`
	Username      string `json:"username,omitempty"`
}

type membersResponse struct {
	Username string `json:"username"`
	ImageUrl string `json:"imageUrl"`
}

type lookupResponse struct {
	Users []sessions.PublicUser `json:"users"`
}

// Reports whether the visitor is logged in, without requiring it.
func (ac *AuthContext) HomeHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	s, err := ac.Sessions.Authenticate(ctx, r)
	if err != nil {
		if errors.Is(err, sessions.ErrStoreUnavailable) {
			ac.Log.Error(ctx, "loading session failed", "error", err)
		}
		writeJSON(w, http.StatusOK, homeResponse{})
		return
	}
	writeJSON(w, http.StatusOK, homeResponse{Authenticated: true, Username: s.Username})
}

// Describes an empty signup or login form.
func (ac *AuthContext) FormHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, errorResponse{})
}

// Handles the registration of new users and starts their session.
//
// The request body is either a form or a JSON object with the fields name, email and password.
func (ac *AuthContext) SignupHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	in, err := readInput(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid input")
		return
	}

	s, err := ac.Service.Signup(ctx, in)
	var verr *validate.ValidationError
	switch {
	case err == nil:
	case errors.As(err, &verr):
		ac.Log.Info(ctx, "signup rejected", "field", verr.Field)
		writeError(w, http.StatusBadRequest, verr.Reason)
		return
	case errors.Is(err, ErrDuplicateEmail):
		writeError(w, http.StatusConflict, "Email is already registered")
		return
	default:
		ac.Log.Error(ctx, "signup failed", "error", err)
		writeError(w, http.StatusInternalServerError, internalErrorMessage)
		return
	}

	ac.Log.Info(ctx, "user signed up", "user_id", s.UserId)
	http.SetCookie(w, ac.Sessions.Cookie(s))
	http.Redirect(w, r, membersPath, http.StatusSeeOther)
}

// Handles the login for users. Unknown emails, wrong passwords and malformed input all get the same answer.
func (ac *AuthContext) LoginHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	in, err := readInput(w, r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, invalidCredentialsMessage)
		return
	}

	s, err := ac.Service.Login(ctx, in)
	switch {
	case err == nil:
	case errors.Is(err, ErrInvalidCredentials):
		ac.Log.Info(ctx, "login rejected")
		writeError(w, http.StatusUnauthorized, invalidCredentialsMessage)
		return
	default:
		ac.Log.Error(ctx, "login failed", "error", err)
		writeError(w, http.StatusInternalServerError, internalErrorMessage)
		return
	}

	ac.Log.Info(ctx, "user logged in", "user_id", s.UserId)
	http.SetCookie(w, ac.Sessions.Cookie(s))
	http.Redirect(w, r, membersPath, http.StatusSeeOther)
}

// Logs out a user by deleting the session and setting an expired cookie. Logging out
// without a session is fine.
func (ac *AuthContext) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if id, ok := ac.Sessions.SessionIdFromRequest(r); ok {
		if err := ac.Service.Logout(ctx, id); err != nil {
			ac.Log.Error(ctx, "logout failed", "error", err)
			writeError(w, http.StatusInternalServerError, internalErrorMessage)
			return
		}
	}
	http.SetCookie(w, ac.Sessions.ClearCookie())
	http.Redirect(w, r, homePath, http.StatusSeeOther)
}

// Shows the members area with a random picture. Must sit behind Authmiddleware.
func (ac *AuthContext) MembersHandler(w http.ResponseWriter, r *http.Request) {
	s, ok := sessions.FromContext(r.Context())
	if !ok {
		http.Redirect(w, r, loginPath, http.StatusSeeOther)
		return
	}
	image := memberImages[rand.IntN(len(memberImages))]
	writeJSON(w, http.StatusOK, membersResponse{
		Username: s.Username,
		ImageUrl: "/images/" + image,
	})
}

// Lists members whose name equals the username query parameter.
func (ac *AuthContext) LookupHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	in := validate.FromValues(r.URL.Query())

	users, err := ac.Service.LookupMembers(ctx, in["username"])
	switch {
	case err == nil:
	case errors.Is(err, validate.ErrInvalidInput):
		ac.Log.Info(ctx, "lookup rejected")
		writeError(w, http.StatusBadRequest, "invalid input")
		return
	default:
		ac.Log.Error(ctx, "lookup failed", "error", err)
		writeError(w, http.StatusInternalServerError, internalErrorMessage)
		return
	}
	writeJSON(w, http.StatusOK, lookupResponse{Users: users})
}

func (ac *AuthContext) NotFoundHandler(w http.ResponseWriter, r *http.Request) {
	http.Error(w, "Page not found - 404", http.StatusNotFound)
}

// readInput decodes a JSON or form body without flattening its structure.
func readInput(w http.ResponseWriter, r *http.Request) (validate.Input, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		return validate.FromJSON(r.Body)
	}
	if err := r.ParseForm(); err != nil {
		return nil, err
	}
	return validate.FromValues(r.PostForm), nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: &msg})
}
