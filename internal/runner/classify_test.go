package runner

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"poolprobe/internal/erp"
)

func response(status int, body string, headers ...string) *erp.Response {
	h := http.Header{}
	for i := 0; i+1 < len(headers); i += 2 {
		h.Set(headers[i], headers[i+1])
	}
	return &erp.Response{StatusCode: status, Header: h, Body: []byte(body)}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name        string
		resp        *erp.Response
		err         error
		wantSuccess bool
		wantStatus  int
		wantKind    ErrorKind
		wantMessage string
		wantPreview string
	}{
		{
			name:        "accepted",
			resp:        response(200, `{"Summary":{"Succeeded":1,"Failed":0},"Messages":[]}`),
			wantSuccess: true,
			wantStatus:  200,
			wantPreview: "Succeeded: 1",
		},
		{
			name:        "accepted with 201",
			resp:        response(201, `{"Summary":{"Succeeded":2,"Failed":0}}`),
			wantSuccess: true,
			wantStatus:  201,
			wantPreview: "Succeeded: 2",
		},
		{
			name:        "rejected with message",
			resp:        response(200, `{"Summary":{"Succeeded":0,"Failed":1},"Messages":["Supplier not valid","second"]}`),
			wantStatus:  200,
			wantKind:    KindValidation,
			wantMessage: "Supplier not valid",
			wantPreview: "Failed: 1, Messages: 2",
		},
		{
			name:        "nothing succeeded and no messages",
			resp:        response(200, `{"Summary":{"Succeeded":0,"Failed":0}}`),
			wantStatus:  200,
			wantKind:    KindValidation,
			wantMessage: "Unknown error",
			wantPreview: "Failed: 0, Messages: 0",
		},
		{
			name:        "partial success is a failure",
			resp:        response(200, `{"Summary":{"Succeeded":3,"Failed":1},"Messages":["row 4 bad"]}`),
			wantStatus:  200,
			wantKind:    KindValidation,
			wantMessage: "row 4 bad",
			wantPreview: "Failed: 1, Messages: 1",
		},
		{
			name:        "unexpected window wins over http error",
			resp:        response(500, `{"ErrorMessage":"Unexpected response window: Confirm"}`),
			wantStatus:  500,
			wantKind:    KindUnexpectedWindow,
			wantMessage: `{"ErrorMessage":"Unexpected response window: Confirm"}`,
			wantPreview: `{"ErrorMessage":"Unexpected response window: Confirm"}`,
		},
		{
			name:        "plain http error",
			resp:        response(503, "Service Unavailable"),
			wantStatus:  503,
			wantKind:    KindHTTP,
			wantMessage: "Service Unavailable",
			wantPreview: "Service Unavailable",
		},
		{
			name:        "transport error",
			err:         fmt.Errorf("dial tcp: connection refused"),
			wantKind:    KindTransport,
			wantMessage: "dial tcp: connection refused",
		},
		{
			name:        "timeout",
			err:         fmt.Errorf("post: %w", context.DeadlineExceeded),
			wantKind:    KindTransport,
			wantMessage: "timeout: post: context deadline exceeded",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.resp, tt.err)
			assert.Equal(t, tt.wantSuccess, got.Success)
			assert.Equal(t, tt.wantStatus, got.StatusCode)
			assert.Equal(t, tt.wantKind, got.ErrorType)
			assert.Equal(t, tt.wantMessage, got.ErrorMessage)
			assert.Equal(t, tt.wantPreview, got.Preview)
			assert.True(t, got.ErrorType.Valid())
			assert.NotNil(t, got.SessionHeaders)
		})
	}
}

func TestClassify_InvalidJSONOn200(t *testing.T) {
	got := Classify(response(200, "<html>maintenance</html>"), nil)
	assert.False(t, got.Success)
	assert.Equal(t, 200, got.StatusCode)
	assert.Equal(t, KindValidation, got.ErrorType)
	assert.NotEmpty(t, got.ErrorMessage)
}

func TestClassify_Truncation(t *testing.T) {
	body := strings.Repeat("x", 600) + UnexpectedWindowMarker
	got := Classify(response(500, body), nil)

	assert.Equal(t, KindUnexpectedWindow, got.ErrorType)
	assert.Len(t, got.ErrorMessage, 200)
	assert.Len(t, got.Preview, 100)
}

func TestSessionHeaders(t *testing.T) {
	resp := response(200, "{}",
		"X-P21-Instance", "w1",
		"X-Session-Id", "abc",
		"Server", "Kestrel",
		"X-Instance-Name", "node-2",
		"Content-Type", "application/json",
		"Date", "today",
	)

	got := SessionHeaders(resp)
	assert.Equal(t, map[string]string{
		"X-P21-Instance":  "w1",
		"X-Session-Id":    "abc",
		"Server":          "Kestrel",
		"X-Instance-Name": "node-2",
	}, got)
}
