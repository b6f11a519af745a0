package erp

import (
	"encoding/json"
	"strings"
)

// TransactionResult is the part of a transaction response the probe reads.
type TransactionResult struct {
	Summary  Summary           `json:"Summary"`
	Messages []json.RawMessage `json:"Messages"`
}

// Summary counts records the vendor accepted and rejected.
type Summary struct {
	Succeeded int `json:"Succeeded"`
	Failed    int `json:"Failed"`
}

// DecodeTransactionResult parses a 2xx transaction response body.
func DecodeTransactionResult(body []byte) (*TransactionResult, error) {
	var r TransactionResult
	if err := json.Unmarshal(body, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// Accepted is true when at least one record succeeded and none failed.
func (r *TransactionResult) Accepted() bool {
	return r.Summary.Succeeded > 0 && r.Summary.Failed == 0
}

// FirstMessage renders the first message as text. Strings are unquoted;
// objects are returned as compact JSON. ok is false when there are none.
func (r *TransactionResult) FirstMessage() (msg string, ok bool) {
	if len(r.Messages) == 0 {
		return "", false
	}
	raw := r.Messages[0]
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, true
	}
	return strings.TrimSpace(string(raw)), true
}
