package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/nexuskit/authkeeper/internal/client/session"
	"github.com/nexuskit/authkeeper/internal/common"
	"github.com/nexuskit/authkeeper/internal/logging"
	"github.com/nexuskit/authkeeper/internal/shared"
)

const defaultRequestTimeout = 10 * time.Second

// Client talks to the authkeeper HTTP API on behalf of one session handle.
type Client struct {
	baseURL string
	http    *http.Client
	session *session.Handle
	log     logging.Logger
	gate    refreshGate
}

// NewClient builds a client for the server at baseURL. A non-positive
// timeout falls back to a finite default; requests must never hang forever,
// otherwise a stuck refresh would wedge every caller parked on the gate.
func NewClient(baseURL string, handle *session.Handle, timeout time.Duration, logger logging.Logger) *Client {
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		session: handle,
		log:     logger.With("module", "api_client"),
	}
}

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
	Refresh string `json:"refresh"`
}

type logoutRequest struct {
	Refresh string `json:"refresh"`
}

type verifyRequest struct {
	Token string `json:"token"`
}

type detailResponse struct {
	Detail string `json:"detail"`
}

// Login exchanges credentials for a token pair and snapshot. It does not
// persist anything; the coordinator decides what to do with the result.
func (c *Client) Login(ctx context.Context, username, password string) (*session.Session, error) {
	resp, err := c.send(ctx, http.MethodPost, "/auth/login", loginRequest{Username: username, Password: password}, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var out loginResponse
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return nil, fmt.Errorf("failed to decode login response: %w", err)
		}
		return &session.Session{
			AccessToken:  out.Access,
			RefreshToken: out.Refresh,
			User:         out.User,
		}, nil
	case http.StatusBadRequest:
		return nil, common.ErrInvalidCredentials
	case http.StatusTooManyRequests:
		if retry := resp.Header.Get("Retry-After"); retry != "" {
			return nil, fmt.Errorf("%w, retry after %s seconds", common.ErrRateLimited, retry)
		}
		return nil, common.ErrRateLimited
	default:
		return nil, errorFromResponse(resp)
	}
}

// Refresh renews the token pair using the stored refresh token. Concurrent
// callers share a single round trip through the gate.
func (c *Client) Refresh(ctx context.Context) error {
	return c.gate.do(ctx, func() error { return c.refresh(ctx) })
}

// refresh is the gate leader's body. It persists the new tokens through the
// session handle before returning, so by the time waiters are released the
// fresh pair is already durable.
func (c *Client) refresh(ctx context.Context) error {
	ctx = context.WithoutCancel(ctx)

	refresh, err := c.session.RefreshToken(ctx)
	if err != nil {
		return err
	}
	if refresh == "" {
		return common.ErrUnauthenticated
	}

	c.log.Debug(ctx, "refreshing access token")

	resp, err := c.send(ctx, http.MethodPost, "/auth/refresh", refreshRequest{Refresh: refresh}, "")
	if err != nil {
		// Transport trouble says nothing about the session; leave it alone.
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var out refreshResponse
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return fmt.Errorf("failed to decode refresh response: %w", err)
		}
		return c.session.SetTokens(ctx, out.Access, out.Refresh)
	case http.StatusUnauthorized:
		// The refresh token itself is dead; the session cannot be repaired.
		if err := c.session.Clear(ctx); err != nil {
			c.log.Warn(ctx, "failed to clear rejected session", "error", err)
		}
		return common.ErrUnauthenticated
	default:
		return errorFromResponse(resp)
	}
}

// Logout tells the server to revoke the stored refresh token. It does not
// touch the local session; the coordinator clears it regardless of whether
// this call succeeds.
func (c *Client) Logout(ctx context.Context) error {
	refresh, err := c.session.RefreshToken(ctx)
	if err != nil {
		return err
	}

	resp, err := c.send(ctx, http.MethodPost, "/auth/logout", logoutRequest{Refresh: refresh}, "")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		return errorFromResponse(resp)
	}
	return nil
}

// Verify asks the server whether token has a valid signature and lifetime.
// Revoked-but-unexpired tokens still verify; this mirrors the server check.
func (c *Client) Verify(ctx context.Context, token string) error {
	resp, err := c.send(ctx, http.MethodPost, "/auth/verify", verifyRequest{Token: token}, "")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusUnauthorized:
		return common.ErrInvalidToken
	default:
		return errorFromResponse(resp)
	}
}

// Me fetches a freshly computed snapshot of the authenticated user.
func (c *Client) Me(ctx context.Context) (*shared.UserSnapshot, error) {
	var snap shared.UserSnapshot
	if err := c.doAuthenticated(ctx, http.MethodGet, "/auth/me", nil, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// Get performs an authenticated GET of an arbitrary API path, decoding the
// response into out.
func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.doAuthenticated(ctx, http.MethodGet, path, nil, out)
}

// doAuthenticated sends the request with the current access token. On 401 it
// refreshes through the gate and replays once; a second 401 means the server
// rejects even a fresh token, which is terminal for this session.
func (c *Client) doAuthenticated(ctx context.Context, method, path string, body, out any) error {
	retried := false
	for {
		access, err := c.session.AccessToken(ctx)
		if err != nil {
			return err
		}
		if access == "" {
			return common.ErrUnauthenticated
		}

		resp, err := c.send(ctx, method, path, body, access)
		if err != nil {
			return err
		}

		if resp.StatusCode != http.StatusUnauthorized {
			return decodeInto(resp, out)
		}
		resp.Body.Close()

		if retried {
			return common.ErrUnauthenticated
		}

		if err := c.gate.do(ctx, func() error { return c.refresh(ctx) }); err != nil {
			return err
		}
		retried = true
	}
}

// send marshals body (when present), attaches the bearer token (when given)
// and executes the request, classifying transport failures.
func (c *Client) send(ctx context.Context, method, path string, body any, access string) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to serialize request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if access != "" {
		req.Header.Set(common.AuthorizationHeaderName, common.BearerPrefix+access)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	return resp, nil
}

// decodeInto consumes a non-401 response: 2xx decodes into out, anything
// else becomes an error built from the detail payload. 403 means the token
// was accepted but the user lacks the required permission; refreshing would
// not help, so it is surfaced as a distinct sentinel.
func decodeInto(resp *http.Response, out any) error {
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusForbidden {
		return common.ErrPermissionDenied
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return errorFromResponse(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// errorFromResponse surfaces the server's {"detail": "..."} payload.
func errorFromResponse(resp *http.Response) error {
	var d detailResponse
	if err := json.NewDecoder(resp.Body).Decode(&d); err != nil || d.Detail == "" {
		return fmt.Errorf("server returned %s", resp.Status)
	}
	return fmt.Errorf("server returned %s: %s", resp.Status, d.Detail)
}

// classifyTransportError folds the assorted timeout shapes into
// common.ErrNetworkTimeout. A timeout is not an auth failure: it must never
// trigger a refresh and never alter the stored session.
func classifyTransportError(err error) error {
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return fmt.Errorf("%w: %v", common.ErrNetworkTimeout, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", common.ErrNetworkTimeout, err)
	}
	return err
}
