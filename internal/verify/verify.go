// Package verify performs the registration callback handshake: the directory
// calls back to the registrant's own address and expects a fixed reply.
package verify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/woozymasta/beacon/internal/config"
	"github.com/woozymasta/beacon/internal/vars"
)

const (
	// Path is requested on the registrant's auth port.
	Path = "/verify"

	// Expected is the exact body a genuine game server answers with.
	Expected = "I am a northstar server!"

	// DefaultTimeout bounds a callback when none is configured.
	DefaultTimeout = 5 * time.Second
)

var (
	// ErrUnreachable covers dial failures, timeouts and broken responses.
	ErrUnreachable = errors.New("verification endpoint unreachable")

	// ErrMismatch means the endpoint answered but not with the expected string.
	ErrMismatch = errors.New("verification response mismatch")
)

// Client issues verification callbacks. It holds no per-call state.
type Client struct {
	http    *http.Client
	maxBody int64
}

// New creates a Client bounded by the configured timeout.
func New(cfg config.Verify) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	maxBody := cfg.MaxBody
	if maxBody < int64(len(Expected)) {
		maxBody = int64(len(Expected))
	}

	return &Client{
		http: &http.Client{
			Timeout: cfg.Timeout,
			// a registrant must answer itself, not hand the callback elsewhere
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
			Transport: &http.Transport{
				Proxy:                 nil,
				DialContext:           (&net.Dialer{Timeout: cfg.Timeout}).DialContext,
				ResponseHeaderTimeout: cfg.Timeout,
				DisableKeepAlives:     true,
			},
		},
		maxBody: maxBody,
	}
}

// URL returns the callback address for a registrant.
func URL(ip string, authPort int) string {
	return "http://" + net.JoinHostPort(ip, strconv.Itoa(authPort)) + Path
}

// Verify makes a single GET to ip:authPort and checks the body. It does not retry.
func (c *Client) Verify(ctx context.Context, ip string, authPort int) error {
	if authPort <= 0 || authPort > 65535 {
		return fmt.Errorf("%w: invalid auth port %d", ErrUnreachable, authPort)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, URL(ip, authPort), nil)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnreachable, err)
	}
	req.Header.Set("User-Agent", vars.UserAgent())

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnreachable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	// one byte over the limit is enough to tell an oversized reply apart
	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	if err != nil {
		return fmt.Errorf("%w: read body after %s: %w", ErrUnreachable, time.Since(start), err)
	}

	// status is not checked, only the exact body counts
	if string(body) != Expected {
		return fmt.Errorf("%w: status %d, %d bytes", ErrMismatch, resp.StatusCode, len(body))
	}

	return nil
}
