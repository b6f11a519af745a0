// Package erp talks to the vendor's token, UI-router and transaction
// endpoints. Paths come from configuration and are treated as opaque.
package erp

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"poolprobe/internal/config"
)

// maxBodyBytes caps how much of any response is kept in memory.
const maxBodyBytes = 1 << 20

// Credentials for the token exchange. ConsumerKey, when set, replaces Password.
type Credentials struct {
	Username    string
	Password    string
	ConsumerKey string
}

// Options configures a Client.
type Options struct {
	BaseURL     string
	Credentials Credentials
	TokenMode   string
	Endpoints   config.EndpointConfig
	VerifySSL   bool
	Timeout     time.Duration
	Logger      zerolog.Logger
	// HTTPClient overrides the client built from VerifySSL and Timeout.
	HTTPClient *http.Client
}

// Client is safe for concurrent use once constructed.
type Client struct {
	baseURL   string
	creds     Credentials
	tokenMode string
	endpoints config.EndpointConfig
	http      *http.Client
	newHTTP   func() *http.Client
	logger    zerolog.Logger
}

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// NewClient builds a Client.
func NewClient(opts Options) *Client {
	var newHTTP func() *http.Client
	hc := opts.HTTPClient
	if hc == nil {
		newHTTP = func() *http.Client { return NewHTTPClient(opts.VerifySSL, opts.Timeout) }
		hc = newHTTP()
	}
	mode := opts.TokenMode
	if mode == "" {
		mode = config.TokenModeV1
	}
	return &Client{
		baseURL:   opts.BaseURL,
		creds:     opts.Credentials,
		tokenMode: mode,
		endpoints: opts.Endpoints,
		http:      hc,
		newHTTP:   newHTTP,
		logger:    opts.Logger.With().Str("component", "erp").Logger(),
	}
}

// NewClientFromConfig builds a Client from loaded configuration.
func NewClientFromConfig(cfg *config.Config, logger zerolog.Logger) *Client {
	return NewClient(Options{
		BaseURL: cfg.BaseURL,
		Credentials: Credentials{
			Username:    cfg.Username,
			Password:    cfg.Password,
			ConsumerKey: cfg.ConsumerKey,
		},
		TokenMode: cfg.TokenMode,
		Endpoints: cfg.Endpoints,
		VerifySSL: cfg.VerifySSL,
		Timeout:   cfg.ClientTimeout,
		Logger:    logger,
	})
}

// NewHTTPClient returns a client on a cloned default transport with a large
// connection pool, so concurrent attempts are not serialized client-side.
func NewHTTPClient(verifySSL bool, timeout time.Duration) *http.Client {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.MaxIdleConns = 200
	t.MaxConnsPerHost = 200
	t.MaxIdleConnsPerHost = 200
	if !verifySSL {
		t.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // vendor sandboxes use self-signed certs
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: t,
	}
}

// ResetConnections drops pooled keep-alive connections so the next call
// dials fresh. A client built with Options.HTTPClient only has its idle
// connections closed. It must not be called while requests are in flight.
func (c *Client) ResetConnections() {
	old := c.http
	if c.newHTTP != nil {
		c.http = c.newHTTP()
	}
	old.CloseIdleConnections()
}

// PostTransaction submits an encoded transaction set to the session's UI server.
// A non-2xx status is not an error here; callers classify it.
func (c *Client) PostTransaction(ctx context.Context, sess *Session, body []byte) (*Response, error) {
	url := sess.UIServerURL + c.endpoints.Transaction
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build transaction request: %w", err)
	}
	setJSONHeaders(req)
	req.Header.Set("Authorization", "Bearer "+sess.Token)
	req.Header.Set("X-Request-ID", uuid.NewString())

	return c.do(req)
}

func (c *Client) do(req *http.Request) (*Response, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	// Drain the rest so the connection can be reused.
	_, _ = io.Copy(io.Discard, resp.Body)

	c.logger.Debug().
		Str("method", req.Method).
		Str("url", req.URL.Redacted()).
		Int("status", resp.StatusCode).
		Int("bytes", len(b)).
		Msg("vendor call")

	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: b}, nil
}

func setJSONHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
}

// Truncate cuts s to at most n runes.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
