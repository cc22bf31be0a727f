package server

import (
	"net/http"

	"github.com/google/uuid"
)

// identity returns the session key for r. In ModeShared it is always
// SharedIdentity. Otherwise it is the identity cookie, minted when absent or
// malformed; minted reports whether the caller must set the cookie.
func (s *Server) identity(r *http.Request) (id string, minted bool) {
	if s.config.Mode == ModeShared {
		return SharedIdentity, false
	}
	if c, err := r.Cookie(s.config.CookieName); err == nil {
		if _, err := uuid.Parse(c.Value); err == nil {
			return c.Value, false
		}
	}
	return uuid.NewString(), true
}

func (s *Server) identityCookie(r *http.Request, id string) *http.Cookie {
	return &http.Cookie{
		Name:     s.config.CookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   s.config.CookieSecure || r.TLS != nil,
	}
}
