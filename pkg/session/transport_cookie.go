package session

import (
	"net/http"
	"time"
)

// CookieTransport carries the session id in a cookie. The id is written
// as-is, it is already safe for cookie values.
type CookieTransport struct {
	Name   string
	MaxAge time.Duration
	Secure bool
}

// ID returns the session id from the request cookie, or "".
func (t CookieTransport) ID(r *http.Request) string {
	c, err := r.Cookie(t.Name)
	if err != nil {
		return ""
	}
	return c.Value
}

// SetID writes the session cookie carrying id.
func (t CookieTransport) SetID(w http.ResponseWriter, id string) {
	http.SetCookie(w, &http.Cookie{
		Name:     t.Name,
		Value:    id,
		Path:     "/",
		MaxAge:   int(t.MaxAge.Seconds()),
		HttpOnly: true,
		Secure:   t.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Clear expires the cookie on the client.
func (t CookieTransport) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     t.Name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   t.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}
