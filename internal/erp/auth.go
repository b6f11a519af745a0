package erp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"poolprobe/internal/config"
	"poolprobe/internal/errors"
)

// Session is the bearer token plus the UI server it was routed to. It is not
// mutated after Authenticate returns, so attempts share it freely.
type Session struct {
	Token        string
	RefreshToken string
	ExpiresIn    time.Duration
	IssuedAt     time.Time
	UIServerURL  string
}

// TokenResponse is the token endpoint's reply.
type TokenResponse struct {
	AccessToken      string `json:"AccessToken"`
	RefreshToken     string `json:"RefreshToken,omitempty"`
	ExpiresInSeconds int    `json:"ExpiresInSeconds,omitempty"`
	TokenType        string `json:"TokenType,omitempty"`
}

// RouterResponse is the UI router's reply.
type RouterResponse struct {
	URL string `json:"Url"`
}

type tokenV2Request struct {
	Username     string `json:"username,omitempty"`
	Password     string `json:"password,omitempty"`
	ClientSecret string `json:"ClientSecret,omitempty"`
	GrantType    string `json:"GrantType,omitempty"`
}

// Authenticate exchanges credentials for a token and resolves the UI server.
// Failures wrap errors.ErrAuthentication or errors.ErrRouting. Nothing is retried.
func (c *Client) Authenticate(ctx context.Context) (*Session, error) {
	tok, err := c.RequestToken(ctx)
	if err != nil {
		return nil, err
	}
	ui, err := c.ResolveUIServer(ctx, tok.AccessToken)
	if err != nil {
		return nil, err
	}

	sess := &Session{
		Token:        tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresIn:    time.Duration(tok.ExpiresInSeconds) * time.Second,
		IssuedAt:     time.Now(),
		UIServerURL:  ui,
	}
	c.logger.Debug().Str("ui_server", ui).Dur("expires_in", sess.ExpiresIn).Msg("session established")
	return sess, nil
}

// RequestToken performs the token exchange in the configured mode.
func (c *Client) RequestToken(ctx context.Context) (*TokenResponse, error) {
	req, err := c.tokenRequest(ctx)
	if err != nil {
		return nil, errors.Mark(errors.ErrAuthentication, err)
	}

	resp, err := c.do(req)
	if err != nil {
		return nil, errors.Mark(errors.ErrAuthentication, err)
	}
	if !resp.OK() {
		return nil, errors.Mark(errors.ErrAuthentication, statusError(resp))
	}

	var tok TokenResponse
	if err := json.Unmarshal(resp.Body, &tok); err != nil {
		return nil, errors.Mark(errors.ErrAuthentication, fmt.Errorf("decode token response: %w", err))
	}
	if tok.AccessToken == "" {
		return nil, errors.Mark(errors.ErrAuthentication, fmt.Errorf("token response has no AccessToken"))
	}
	return &tok, nil
}

func (c *Client) tokenRequest(ctx context.Context) (*http.Request, error) {
	if c.tokenMode == config.TokenModeV2 {
		body := tokenV2Request{Username: c.creds.Username, Password: c.creds.Password}
		if c.creds.ConsumerKey != "" {
			body = tokenV2Request{
				Username:     c.creds.Username,
				ClientSecret: c.creds.ConsumerKey,
				GrantType:    "client_credentials",
			}
		}
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+c.endpoints.TokenV2, bytes.NewReader(b))
		if err != nil {
			return nil, err
		}
		setJSONHeaders(req)
		return req, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+c.endpoints.Token, http.NoBody)
	if err != nil {
		return nil, err
	}
	setJSONHeaders(req)
	if c.creds.ConsumerKey != "" {
		req.Header.Set("appkey", c.creds.ConsumerKey)
		if c.creds.Username != "" {
			req.Header.Set("username", c.creds.Username)
		}
	} else {
		req.Header.Set("username", c.creds.Username)
		req.Header.Set("password", c.creds.Password)
	}
	return req, nil
}

// ResolveUIServer looks up the UI server base URL for token. The trailing
// slash is stripped.
func (c *Client) ResolveUIServer(ctx context.Context, token string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+c.endpoints.Router, http.NoBody)
	if err != nil {
		return "", errors.Mark(errors.ErrRouting, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.do(req)
	if err != nil {
		return "", errors.Mark(errors.ErrRouting, err)
	}
	if !resp.OK() {
		return "", errors.Mark(errors.ErrRouting, statusError(resp))
	}

	var rr RouterResponse
	if err := json.Unmarshal(resp.Body, &rr); err != nil {
		return "", errors.Mark(errors.ErrRouting, fmt.Errorf("decode router response: %w", err))
	}
	url := strings.TrimRight(rr.URL, "/")
	if url == "" {
		return "", errors.Mark(errors.ErrRouting, fmt.Errorf("router response has no Url"))
	}
	return url, nil
}

func statusError(resp *Response) error {
	return fmt.Errorf("status %d: %s", resp.StatusCode, Truncate(string(resp.Body), 200))
}
