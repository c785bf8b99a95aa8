package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/nexuskit/authkeeper/internal/common"
	"github.com/nexuskit/authkeeper/internal/server/auth"
)

type ctxKey string

const claimsKey ctxKey = "claims"

// requireAccessToken verifies the bearer access token and stores its claims
// in the request context. Revocation is not consulted here: access tokens
// stay valid until expiry.
func (s *Server) requireAccessToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get(common.AuthorizationHeaderName)
		if !strings.HasPrefix(header, common.BearerPrefix) {
			respondDetail(w, http.StatusUnauthorized, "authentication credentials were not provided")
			return
		}

		claims, err := s.auth.VerifyAccess(r.Context(), strings.TrimPrefix(header, common.BearerPrefix))
		if err != nil {
			respondDetail(w, http.StatusUnauthorized, "token is invalid or expired")
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), claimsKey, claims)))
	})
}

func claimsFrom(ctx context.Context) (*auth.Claims, bool) {
	claims, ok := ctx.Value(claimsKey).(*auth.Claims)
	return claims, ok
}
