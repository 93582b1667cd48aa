package httpapi

import (
	"net/http"

	"github.com/avolkov/authgate/internal/common"
	"github.com/avolkov/authgate/internal/server/services"
)

func sessionCookie(name, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	}
}

// setSessionCookies stores both tokens as HttpOnly cookies; each cookie
// expires together with the token it carries.
func setSessionCookies(w http.ResponseWriter, pair *services.TokenPair) {
	http.SetCookie(w, sessionCookie(common.AccessTokenCookieName, pair.AccessToken, int(pair.AccessExpiresIn.Seconds())))
	http.SetCookie(w, sessionCookie(common.RefreshTokenCookieName, pair.RefreshToken, int(pair.RefreshExpiresIn.Seconds())))
}

func clearSessionCookies(w http.ResponseWriter) {
	http.SetCookie(w, sessionCookie(common.AccessTokenCookieName, "", -1))
	http.SetCookie(w, sessionCookie(common.RefreshTokenCookieName, "", -1))
}

// cookieValue returns the named cookie's value, or "" when absent.
func cookieValue(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}
