package erp

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"poolprobe/internal/config"
	"poolprobe/internal/dummy"
	"poolprobe/internal/errors"
)

func testEndpoints() config.EndpointConfig {
	return config.EndpointConfig{
		Token:       dummy.TokenPath,
		TokenV2:     dummy.TokenV2Path,
		Router:      dummy.RouterPath + "?urlType=external",
		Transaction: "/api/v2/transaction",
	}
}

func newTestClient(base string, creds Credentials, mode string) *Client {
	return NewClient(Options{
		BaseURL:     base,
		Credentials: creds,
		TokenMode:   mode,
		Endpoints:   testEndpoints(),
		Timeout:     5 * time.Second,
		Logger:      zerolog.Nop(),
	})
}

func TestAuthenticate_V1(t *testing.T) {
	ts := httptest.NewServer(dummy.NewServer(dummy.ServerConfig{Username: "api", Password: "pw"}).Handler())
	defer ts.Close()

	c := newTestClient(ts.URL, Credentials{Username: "api", Password: "pw"}, config.TokenModeV1)
	sess, err := c.Authenticate(context.Background())
	require.NoError(t, err)

	assert.NotEmpty(t, sess.Token)
	assert.NotEmpty(t, sess.RefreshToken)
	assert.Equal(t, time.Hour, sess.ExpiresIn)
	assert.Equal(t, ts.URL+dummy.UIServerPrefix, sess.UIServerURL, "trailing slash should be stripped")
}

func TestAuthenticate_V2AndConsumerKey(t *testing.T) {
	ts := httptest.NewServer(dummy.NewServer(dummy.ServerConfig{Username: "svc", Password: "key-1"}).Handler())
	defer ts.Close()

	for _, mode := range []string{config.TokenModeV1, config.TokenModeV2} {
		c := newTestClient(ts.URL, Credentials{Username: "svc", ConsumerKey: "key-1"}, mode)
		_, err := c.Authenticate(context.Background())
		assert.NoError(t, err, "mode %s", mode)
	}
}

func TestAuthenticate_BadCredentials(t *testing.T) {
	ts := httptest.NewServer(dummy.NewServer(dummy.ServerConfig{Username: "api", Password: "pw"}).Handler())
	defer ts.Close()

	c := newTestClient(ts.URL, Credentials{Username: "api", Password: "nope"}, config.TokenModeV1)
	_, err := c.Authenticate(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrAuthentication))
	assert.Contains(t, err.Error(), "401")
}

func TestAuthenticate_MissingAccessToken(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"TokenType":"Bearer"}`))
	}))
	defer ts.Close()

	_, err := newTestClient(ts.URL, Credentials{Username: "a", Password: "b"}, "").Authenticate(context.Background())
	assert.True(t, errors.Is(err, errors.ErrAuthentication))
}

func TestAuthenticate_RoutingFailure(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc(dummy.TokenPath, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"AccessToken":"tok"}`))
	})
	mux.HandleFunc(dummy.RouterPath, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "router down", http.StatusServiceUnavailable)
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	_, err := newTestClient(ts.URL, Credentials{Username: "a", Password: "b"}, "").Authenticate(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrRouting))
	assert.False(t, errors.Is(err, errors.ErrAuthentication))
}

func TestAuthenticate_EmptyRouterURL(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc(dummy.TokenPath, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"AccessToken":"tok"}`))
	})
	mux.HandleFunc(dummy.RouterPath, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"Url":"/"}`))
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	_, err := newTestClient(ts.URL, Credentials{Username: "a", Password: "b"}, "").Authenticate(context.Background())
	assert.True(t, errors.Is(err, errors.ErrRouting))
}

func TestAuthenticate_Unreachable(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	_, err := newTestClient(url, Credentials{Username: "a", Password: "b"}, "").Authenticate(context.Background())
	assert.True(t, errors.Is(err, errors.ErrAuthentication))
}

func TestPostTransaction_SendsBearerAndBody(t *testing.T) {
	var gotAuth, gotType string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotType = r.Header.Get("Content-Type")
		w.Header().Set("X-P21-Instance", "w1")
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"Summary":{"Succeeded":1,"Failed":0}}`))
	}))
	defer ts.Close()

	c := newTestClient(ts.URL, Credentials{}, "")
	resp, err := c.PostTransaction(context.Background(), &Session{Token: "tok", UIServerURL: ts.URL}, []byte(`{}`))
	require.NoError(t, err)

	assert.Equal(t, "Bearer tok", gotAuth)
	assert.Equal(t, "application/json", gotType)
	assert.True(t, resp.OK())
	assert.Equal(t, "w1", resp.Header.Get("X-P21-Instance"))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", Truncate("abc", 10))
	assert.Equal(t, "ab", Truncate("abc", 2))
	assert.Equal(t, "é", Truncate("é", 1), "counts runes, not bytes")
	assert.Equal(t, "hé", Truncate("héllo", 2))
	assert.Equal(t, "", Truncate("abc", 0))
}

func TestResetConnections_DialsAgain(t *testing.T) {
	var dials atomic.Int64
	ts := httptest.NewUnstartedServer(dummy.NewServer(dummy.ServerConfig{Username: "api", Password: "pw"}).Handler())
	ts.Config.ConnState = func(_ net.Conn, state http.ConnState) {
		if state == http.StateNew {
			dials.Add(1)
		}
	}
	ts.Start()
	defer ts.Close()

	c := newTestClient(ts.URL, Credentials{Username: "api", Password: "pw"}, config.TokenModeV1)
	_, err := c.Authenticate(context.Background())
	require.NoError(t, err)
	before := dials.Load()
	require.GreaterOrEqual(t, before, int64(1))

	c.ResetConnections()
	_, err = c.Authenticate(context.Background())
	require.NoError(t, err)
	assert.Greater(t, dials.Load(), before)
}
