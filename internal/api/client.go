// Package api implements the authenticated HTTP client: bearer injection from
// the session store, a single silent refresh-and-retry on 401, and classified
// errors for everything else.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/dearfriend/dearfriend-go/internal/errs"
	"github.com/dearfriend/dearfriend-go/internal/model"
	"github.com/dearfriend/dearfriend-go/internal/session"
)

const refreshPath = "/api/auth/refresh"

// errRefreshRejected marks a definitive refresh failure: the server answered
// and the answer was unusable (non-2xx, malformed body, missing fields). Only
// this class destroys the session; a transport failure during refresh leaves
// the stored pair intact so the call can be retried when the network is back.
var errRefreshRejected = errors.New("refresh rejected")

// Request describes one logical API call. Header entries set by the caller
// take precedence over auto-injected values, so a one-off bearer token (e.g.
// from a password-reset link) wins over the stored session.
type Request struct {
	Method string
	Path   string
	JSON   any
	Header http.Header
}

// Client performs authenticated requests against the Dear Friend API.
//
// Failure semantics: exactly one refresh-triggered retry, gated solely on a
// 401. Every other error class propagates immediately, so a logical call costs
// at most three network round-trips (original + refresh + retry).
type Client struct {
	baseURL string
	httpc   *http.Client
	store   session.Store
	log     *zap.Logger

	// refresh deduplicates concurrent refresh attempts: callers that hit 401
	// while a refresh is in flight await the shared result instead of issuing
	// their own.
	refresh singleflight.Group
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpc = h }
}

// WithLogger attaches a logger. The default is a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.log = l }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpc.Timeout = d }
}

// New constructs a Client for the given base URL and session store.
func New(baseURL string, store session.Store, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpc:   &http.Client{Timeout: 20 * time.Second},
		store:   store,
		log:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Do performs one logical request and decodes a 2xx JSON body into out (out
// may be nil; an empty body decodes to nothing).
//
// A 401 with a refresh token available triggers the refresh sub-flow once: on
// success the new pair is persisted and the request retried with the fresh
// access token; on failure the session is cleared and errs.ErrSessionExpired
// returned. A 401 that survives the retry, or arrives with no refresh token,
// also clears the session and returns errs.ErrSessionExpired.
func (c *Client) Do(ctx context.Context, req Request, out any) error {
	tokens, err := c.store.Tokens()
	if err != nil {
		return fmt.Errorf("read session: %w", err)
	}

	// Explicit caller Authorization always wins over the stored session.
	auth := req.Header.Get("Authorization")
	if auth == "" && tokens != nil {
		auth = "Bearer " + tokens.AccessToken
	}

	status, body, err := c.send(ctx, req, auth)
	if err != nil {
		return err
	}

	if status == http.StatusUnauthorized && tokens != nil && tokens.RefreshToken != "" {
		fresh, rerr := c.refreshTokens(ctx, tokens.RefreshToken)
		if rerr != nil {
			c.log.Warn("token refresh failed", zap.Error(rerr))
			if !errors.Is(rerr, errRefreshRejected) {
				// Transport or local storage failure: the pair may still be
				// valid, so keep the session and surface the error as-is.
				return rerr
			}
			if cerr := c.store.Clear(); cerr != nil {
				c.log.Warn("clear session", zap.Error(cerr))
			}
			return errs.ErrSessionExpired
		}
		status, body, err = c.send(ctx, req, "Bearer "+fresh.AccessToken)
		if err != nil {
			return err
		}
	}

	if status == http.StatusUnauthorized {
		if cerr := c.store.Clear(); cerr != nil {
			c.log.Warn("clear session", zap.Error(cerr))
		}
		return errs.ErrSessionExpired
	}
	if status < 200 || status >= 300 {
		return newError(status, body)
	}
	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// send issues one HTTP round-trip and drains the body. auth is the effective
// Authorization value for this attempt; precedence between caller-supplied and
// injected credentials is decided by the caller of send.
func (c *Client) send(ctx context.Context, req Request, auth string) (int, []byte, error) {
	var rd io.Reader
	if req.JSON != nil {
		b, err := json.Marshal(req.JSON)
		if err != nil {
			return 0, nil, fmt.Errorf("encode request body: %w", err)
		}
		rd = bytes.NewReader(b)
	}

	hr, err := http.NewRequestWithContext(ctx, req.Method, c.baseURL+req.Path, rd)
	if err != nil {
		return 0, nil, err
	}
	hr.Header.Set("Accept", "application/json")
	if req.JSON != nil {
		hr.Header.Set("Content-Type", "application/json")
	}
	for k, vs := range req.Header {
		hr.Header[http.CanonicalHeaderKey(k)] = vs
	}
	if auth != "" {
		hr.Header.Set("Authorization", auth)
	}

	resp, err := c.httpc.Do(hr)
	if err != nil {
		return 0, nil, fmt.Errorf("%s %s: %w", req.Method, req.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("%s %s: read body: %w", req.Method, req.Path, err)
	}

	c.log.Debug("api request",
		zap.String("method", req.Method),
		zap.String("path", req.Path),
		zap.Int("status", resp.StatusCode),
	)
	return resp.StatusCode, body, nil
}

// refreshTokens exchanges the refresh token for a new pair, sharing one flight
// across concurrent callers. The persisted pair is last-writer-wins; refreshes
// are idempotent in effect since the newest pair always supersedes.
func (c *Client) refreshTokens(ctx context.Context, refreshToken string) (*model.SessionTokens, error) {
	v, err, _ := c.refresh.Do("refresh", func() (any, error) {
		return c.doRefresh(ctx, refreshToken)
	})
	if err != nil {
		return nil, err
	}
	return v.(*model.SessionTokens), nil
}

func (c *Client) doRefresh(ctx context.Context, refreshToken string) (*model.SessionTokens, error) {
	c.log.Info("refreshing access token")

	status, body, err := c.send(ctx, Request{
		Method: http.MethodPost,
		Path:   refreshPath,
		JSON:   map[string]string{"refresh_token": refreshToken},
	}, "")
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		return nil, fmt.Errorf("%w: %w", errRefreshRejected, newError(status, body))
	}

	var tokens model.SessionTokens
	if err := json.Unmarshal(body, &tokens); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", errRefreshRejected, err)
	}
	if tokens.AccessToken == "" || tokens.RefreshToken == "" {
		return nil, fmt.Errorf("%w: response missing tokens", errRefreshRejected)
	}
	if err := c.store.SetTokens(tokens); err != nil {
		return nil, fmt.Errorf("persist refreshed tokens: %w", err)
	}
	return &tokens, nil
}
