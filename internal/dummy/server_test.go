package dummy

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func token(t *testing.T, base string) string {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, base+TokenPath, http.NoBody)
	require.NoError(t, err)
	req.Header.Set("username", "api")
	req.Header.Set("password", "pw")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct{ AccessToken string }
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body.AccessToken
}

func submit(t *testing.T, base, tok string) (int, string) {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, base+TransactionPath,
		strings.NewReader(`{"Name":"SalesPricePage","Transactions":[{}]}`))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+tok)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(b)
}

func TestServer_Healthy(t *testing.T) {
	s := NewServer(ServerConfig{Username: "api", Password: "pw"})
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	tok := token(t, ts.URL)
	code, body := submit(t, ts.URL, tok)

	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, `"Succeeded":1`)
	assert.Equal(t, uint64(1), s.Transactions())
}

func TestServer_ContaminatedAlternates(t *testing.T) {
	s := NewServer(ServerConfig{Mode: ModeContaminated})
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	tok := token(t, ts.URL)
	for i := 1; i <= 4; i++ {
		code, body := submit(t, ts.URL, tok)
		if i%2 == 0 {
			assert.Equal(t, http.StatusInternalServerError, code)
			assert.Contains(t, body, "Unexpected response window")
		} else {
			assert.Equal(t, http.StatusOK, code)
		}
	}
}

func TestServer_Reject(t *testing.T) {
	ts := httptest.NewServer(NewServer(ServerConfig{Mode: ModeReject}).Handler())
	defer ts.Close()

	code, body := submit(t, ts.URL, token(t, ts.URL))
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, `"Failed":1`)
}

func TestServer_RejectsBadCredentialsAndTokens(t *testing.T) {
	ts := httptest.NewServer(NewServer(ServerConfig{Username: "api", Password: "other"}).Handler())
	defer ts.Close()

	req, err := http.NewRequest(http.MethodPost, ts.URL+TokenPath, http.NoBody)
	require.NoError(t, err)
	req.Header.Set("username", "api")
	req.Header.Set("password", "wrong")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	code, _ := submit(t, ts.URL, "forged")
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestServer_RouterReturnsUIServer(t *testing.T) {
	ts := httptest.NewServer(NewServer(ServerConfig{}).Handler())
	defer ts.Close()

	req, err := http.NewRequest(http.MethodGet, ts.URL+RouterPath+"?urlType=external", http.NoBody)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token(t, ts.URL))

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body struct{ Url string } //nolint:revive // vendor field name
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, ts.URL+UIServerPrefix+"/", body.Url)
}
