package common

// Cookie names under which the transport stores the client-held credentials.
// Both cookies are cleared on logout.
const (
	AccessTokenCookieName  = "access_token"
	RefreshTokenCookieName = "refresh_token"
)
