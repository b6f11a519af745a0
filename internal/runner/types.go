package runner

import (
	"bytes"
	"encoding/json"
	"time"
)

// ErrorKind names the class of a failed attempt. The set is closed.
type ErrorKind string

// Error kinds.
const (
	KindNone             ErrorKind = ""
	KindAuthentication   ErrorKind = "AuthenticationError"
	KindRouting          ErrorKind = "RoutingError"
	KindHTTP             ErrorKind = "HTTPError"
	KindUnexpectedWindow ErrorKind = "UnexpectedWindow"
	KindValidation       ErrorKind = "ValidationError"
	KindTransport        ErrorKind = "Transport"
)

// Kinds lists every non-empty kind.
var Kinds = []ErrorKind{
	KindAuthentication,
	KindRouting,
	KindHTTP,
	KindUnexpectedWindow,
	KindValidation,
	KindTransport,
}

// Valid reports whether k is one of Kinds or KindNone.
func (k ErrorKind) Valid() bool {
	if k == KindNone {
		return true
	}
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

// AttemptResult is the outcome of one transaction submission.
type AttemptResult struct {
	Attempt        int               `json:"attempt"`
	Timestamp      time.Time         `json:"timestamp"`
	ElapsedMs      int64             `json:"elapsed_ms"`
	Success        bool              `json:"success"`
	StatusCode     int               `json:"status_code"`
	ErrorType      ErrorKind         `json:"error_type"`
	ErrorMessage   string            `json:"error_message"`
	SessionHeaders map[string]string `json:"session_headers"`
	Preview        string            `json:"-"`
}

// Status is "OK" or "FAIL".
func (r AttemptResult) Status() string {
	if r.Success {
		return "OK"
	}
	return "FAIL"
}

// PatternRun is the ordered attempts of one named pattern.
type PatternRun struct {
	Name    string          `json:"name"`
	Pattern Pattern         `json:"pattern"`
	Started time.Time       `json:"started"`
	Results []AttemptResult `json:"results"`
}

// Successes counts successful attempts.
func (p PatternRun) Successes() int {
	n := 0
	for _, r := range p.Results {
		if r.Success {
			n++
		}
	}
	return n
}

// Sweep is every pattern run of one probe, in execution order.
type Sweep struct {
	ID       string       `json:"id"`
	BaseURL  string       `json:"base_url"`
	Started  time.Time    `json:"started"`
	Finished time.Time    `json:"finished"`
	Runs     []PatternRun `json:"runs"`
}

// Attempts counts attempts across all runs.
func (s *Sweep) Attempts() int {
	n := 0
	for _, r := range s.Runs {
		n += len(r.Results)
	}
	return n
}

// ResultsByPattern renders the sweep as a JSON object keyed by pattern name.
// Keys keep sweep order, which encoding/json maps would not.
type ResultsByPattern []PatternRun

// MarshalJSON writes {"<name>": [results...], ...} in order.
func (rp ResultsByPattern) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, run := range rp {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(run.Name)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')

		results := run.Results
		if results == nil {
			results = []AttemptResult{}
		}
		val, err := json.Marshal(results)
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads the object form back, keeping key order.
func (rp *ResultsByPattern) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	if _, err := dec.Token(); err != nil {
		return err
	}
	var out ResultsByPattern
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		name, _ := tok.(string)
		var results []AttemptResult
		if err := dec.Decode(&results); err != nil {
			return err
		}
		out = append(out, PatternRun{Name: name, Results: results})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*rp = out
	return nil
}
