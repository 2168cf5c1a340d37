package fluid

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"net/url"
)

const csrfTokenLength = 32

type csrfConfig struct {
	cookieSecure bool
}

func generateCSRFToken() string {
	bytes := make([]byte, csrfTokenLength)
	if _, err := rand.Read(bytes); err != nil {
		panic("impossible, read never returns an error")
	}
	return hex.EncodeToString(bytes)
}

func csrfCookieToken(r *http.Request) string {
	cookie, err := r.Cookie(CSRFCookieName)
	if err != nil {
		return ""
	}
	// Clients send the value percent-encoded.
	token, err := url.PathUnescape(cookie.Value)
	if err != nil {
		return ""
	}
	return token
}

func needsNewCSRFToken(r *http.Request) bool {
	return csrfCookieToken(r) == ""
}

func setCSRFCookie(w http.ResponseWriter, token string, config csrfConfig) {
	http.SetCookie(w, &http.Cookie{
		Name:     CSRFCookieName,
		Value:    url.PathEscape(token),
		Path:     "/",
		HttpOnly: false, // Must be false so the client script can read it
		Secure:   config.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func validateCSRF(r *http.Request) bool {
	cookieToken := csrfCookieToken(r)
	if cookieToken == "" {
		return false
	}

	headerToken := r.Header.Get(XCSRFToken)
	if headerToken == "" {
		return false
	}

	// Constant time comparison to prevent timing attacks
	return subtle.ConstantTimeCompare([]byte(cookieToken), []byte(headerToken)) == 1
}

// IsSafeMethod reports whether method is exempt from CSRF checks.
func IsSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return true
	}
	return false
}

// CSRFToken returns the token the client should echo for r, or "" when none
// was issued yet.
func CSRFToken(r *http.Request) string {
	if token, ok := r.Context().Value(csrfTokenKey{}).(string); ok {
		return token
	}
	return csrfCookieToken(r)
}

type csrfTokenKey struct{}
