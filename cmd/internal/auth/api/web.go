package authapi

import (
	"net/http"
	"strings"
	"time"
)

// setSessionCookie stores the session secret in an HttpOnly cookie whose
// Max-Age is the whole seconds left until expiresAt, measured at now.
func (h *Handler) setSessionCookie(w http.ResponseWriter, value string, expiresAt, now time.Time) {
	if h == nil || w == nil {
		return
	}
	maxAge := int(expiresAt.Sub(now) / time.Second)
	if maxAge <= 0 {
		h.expireSessionCookie(w)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     h.cfg.CookieName,
		Value:    value,
		Path:     h.cfg.CookiePath,
		Domain:   h.cfg.CookieDomain,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.cfg.CookieSecure,
		SameSite: h.cfg.CookieSameSite,
	})
}

func (h *Handler) expireSessionCookie(w http.ResponseWriter) {
	if h == nil || w == nil {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     h.cfg.CookieName,
		Value:    "",
		Path:     h.cfg.CookiePath,
		Domain:   h.cfg.CookieDomain,
		Expires:  time.Unix(0, 0).UTC(),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cfg.CookieSecure,
		SameSite: h.cfg.CookieSameSite,
	})
}

// presentedToken returns the session cookie value, or the bearer token when no
// cookie is present. The first source found wins even if it is empty.
func (h *Handler) presentedToken(r *http.Request) string {
	if h == nil || r == nil {
		return ""
	}
	if c, err := r.Cookie(h.cfg.CookieName); err == nil {
		return strings.TrimSpace(c.Value)
	}
	return bearerToken(r.Header.Get("Authorization"))
}

func bearerToken(header string) string {
	scheme, tok, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(tok)
}
