package runner

import (
	"context"
	"fmt"
	"net"
	"strings"

	"poolprobe/internal/erp"
	"poolprobe/internal/errors"
)

// UnexpectedWindowMarker identifies a session left with an open dialog.
const UnexpectedWindowMarker = "Unexpected response window"

const (
	messageLimit = 200
	previewLimit = 100
)

var sessionHeaderMarkers = []string{"session", "x-p21", "server", "instance"}

// Classify turns a response (or the error that replaced it) into the outcome
// fields of an AttemptResult. Exactly one branch applies.
func Classify(resp *erp.Response, err error) AttemptResult {
	if err != nil {
		return classifyTransport(err)
	}

	res := AttemptResult{
		StatusCode:     resp.StatusCode,
		SessionHeaders: SessionHeaders(resp),
	}
	body := string(resp.Body)

	if !resp.OK() {
		res.ErrorType = KindHTTP
		if strings.Contains(body, UnexpectedWindowMarker) {
			res.ErrorType = KindUnexpectedWindow
		}
		res.ErrorMessage = erp.Truncate(body, messageLimit)
		res.Preview = erp.Truncate(body, previewLimit)
		return res
	}

	result, derr := erp.DecodeTransactionResult(resp.Body)
	if derr != nil {
		res.ErrorType = KindValidation
		res.ErrorMessage = erp.Truncate(derr.Error(), messageLimit)
		res.Preview = erp.Truncate(body, previewLimit)
		return res
	}

	if result.Accepted() {
		res.Success = true
		res.Preview = fmt.Sprintf("Succeeded: %d", result.Summary.Succeeded)
		return res
	}

	msg, ok := result.FirstMessage()
	if !ok {
		msg = "Unknown error"
	}
	res.ErrorType = KindValidation
	res.ErrorMessage = erp.Truncate(msg, messageLimit)
	res.Preview = fmt.Sprintf("Failed: %d, Messages: %d", result.Summary.Failed, len(result.Messages))
	return res
}

func classifyTransport(err error) AttemptResult {
	msg := err.Error()
	if isTimeout(err) {
		msg = "timeout: " + msg
	}
	return AttemptResult{
		ErrorType:      KindTransport,
		ErrorMessage:   erp.Truncate(msg, messageLimit),
		SessionHeaders: map[string]string{},
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// SessionHeaders keeps the response headers whose lowercased name mentions
// session, x-p21, server or instance. Multi-valued headers are comma-joined.
func SessionHeaders(resp *erp.Response) map[string]string {
	out := map[string]string{}
	for name, values := range resp.Header {
		lower := strings.ToLower(name)
		for _, m := range sessionHeaderMarkers {
			if strings.Contains(lower, m) {
				out[name] = strings.Join(values, ", ")
				break
			}
		}
	}
	return out
}
