package common

// AuthorizationHeaderName is the HTTP header carrying the access token on
// outbound requests, in "Bearer <token>" form.
const AuthorizationHeaderName = "Authorization"

// BearerPrefix precedes the access token in the Authorization header.
const BearerPrefix = "Bearer "

// Session storage keys. These are the durable, cross-handle-visible keys of
// the client session store; external mutation of any of them must be
// observable by every attached handle.
const (
	SessionKeyAccessToken  = "access_token"
	SessionKeyRefreshToken = "refresh_token"
	SessionKeyUser         = "user"
)
