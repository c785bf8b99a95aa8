package httpapi

import (
	"errors"
	"math"
	"net"
	"net/http"
	"strconv"

	"github.com/nexuskit/authkeeper/internal/common"
	"github.com/nexuskit/authkeeper/internal/server/tokens"
	"github.com/nexuskit/authkeeper/internal/shared"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Access  string               `json:"access"`
	Refresh string               `json:"refresh"`
	User    *shared.UserSnapshot `json:"user"`
}

type refreshRequest struct {
	Refresh string `json:"refresh"`
}

type refreshResponse struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh,omitempty"`
}

type logoutRequest struct {
	Refresh string `json:"refresh"`
}

type verifyRequest struct {
	Token string `json:"token"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		respondDetail(w, http.StatusBadRequest, "malformed request body")
		return
	}

	creds, err := s.auth.Authenticate(r.Context(), req.Username, req.Password, clientKey(r))
	if err != nil {
		var rateErr *tokens.RateLimitError
		switch {
		case errors.As(err, &rateErr):
			w.Header().Set("Retry-After", strconv.Itoa(ceilSeconds(rateErr.RetryAfter.Seconds())))
			respondDetail(w, http.StatusTooManyRequests, "too many login attempts")
		case errors.Is(err, common.ErrInvalidCredentials):
			respondDetail(w, http.StatusBadRequest, common.ErrInvalidCredentials.Error())
		default:
			s.logger.Error(r.Context(), "login failed", "error", err)
			respondDetail(w, http.StatusInternalServerError, common.ErrorInternal.Error())
		}
		return
	}

	respondJSON(w, http.StatusOK, loginResponse{
		Access:  creds.AccessToken,
		Refresh: creds.RefreshToken,
		User:    creds.User,
	})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeJSON(r, &req); err != nil {
		respondDetail(w, http.StatusBadRequest, "malformed request body")
		return
	}

	res, err := s.auth.Refresh(r.Context(), req.Refresh)
	if err != nil {
		switch {
		case errors.Is(err, common.ErrInvalidToken), errors.Is(err, common.ErrRevoked):
			respondDetail(w, http.StatusUnauthorized, "token is invalid or expired")
		default:
			s.logger.Error(r.Context(), "refresh failed", "error", err)
			respondDetail(w, http.StatusInternalServerError, common.ErrorInternal.Error())
		}
		return
	}

	respondJSON(w, http.StatusOK, refreshResponse{
		Access:  res.AccessToken,
		Refresh: res.RefreshToken,
	})
}

// handleLogout revokes the presented refresh token. The response is 204
// regardless of the token's state; a client signing out must never be blocked
// by an expired or garbled token.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	var req logoutRequest
	if err := decodeJSON(r, &req); err != nil {
		s.logger.Warn(r.Context(), "logout with malformed body", "error", err)
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if err := s.auth.Revoke(r.Context(), req.Refresh); err != nil {
		s.logger.Warn(r.Context(), "logout revocation failed", "error", err)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := decodeJSON(r, &req); err != nil {
		respondDetail(w, http.StatusBadRequest, "malformed request body")
		return
	}

	if _, err := s.auth.VerifyAccess(r.Context(), req.Token); err != nil {
		respondDetail(w, http.StatusUnauthorized, "token is invalid or expired")
		return
	}
	respondJSON(w, http.StatusOK, struct{}{})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFrom(r.Context())
	if !ok {
		respondDetail(w, http.StatusUnauthorized, "authentication credentials were not provided")
		return
	}

	snapshot, err := s.auth.Me(r.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, common.ErrUnauthenticated) {
			respondDetail(w, http.StatusUnauthorized, "user inactive or deleted")
			return
		}
		s.logger.Error(r.Context(), "me lookup failed", "error", err)
		respondDetail(w, http.StatusInternalServerError, common.ErrorInternal.Error())
		return
	}

	respondJSON(w, http.StatusOK, snapshot)
}

// clientKey identifies the caller for login throttling. RealIP middleware has
// already resolved proxy headers into RemoteAddr.
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func ceilSeconds(s float64) int {
	return int(math.Ceil(s))
}
