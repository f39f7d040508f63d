package sessions

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// Name of the cookie carrying the signed session id.
const CookieName = "session_id"

const signatureSeparator = "."

var signatureEncoding = base64.RawURLEncoding

func newSessionId() SessionId {
	return SessionId(uuid.NewString())
}

func sessionIdMAC(id string, secret string) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(id))
	return mac.Sum(nil)
}

// signed form is "<id>.<base64url(hmac-sha256(id))>"
func signSessionId(id SessionId, secret string) string {
	return string(id) + signatureSeparator + signatureEncoding.EncodeToString(sessionIdMAC(string(id), secret))
}

// verifies a session signature from a given signed string
func VerifySessionId(signed string, secret string) (SessionId, error) {
	id, sig, err := splitSignedSessionId(signed)
	if err != nil {
		return "", err
	}
	got, err := signatureEncoding.DecodeString(sig)
	if err != nil || !hmac.Equal(got, sessionIdMAC(id, secret)) {
		return "", ErrInvalidSessionSignature
	}
	return SessionId(id), nil
}

func splitSignedSessionId(signed string) (id string, sig string, err error) {
	id, sig, found := strings.Cut(signed, signatureSeparator)
	if !found || id == "" || sig == "" || strings.Contains(sig, signatureSeparator) {
		return "", "", ErrSignedSessionIdIncorrectLength
	}
	return id, sig, nil
}

// Returns the session id from the request cookie and whether its signature checked out.
func VerifyRequestSessionCookie(r *http.Request, secret string) (SessionId, bool) {
	c, err := r.Cookie(CookieName)
	if err != nil {
		return "", false
	}
	id, err := VerifySessionId(c.Value, secret)
	return id, err == nil
}
