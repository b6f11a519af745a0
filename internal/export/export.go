// Package export writes sweep results and reports to disk.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"poolprobe/internal/analyze"
	"poolprobe/internal/runner"
)

// WriteResults overwrites path with the sweep as a JSON object keyed by
// pattern name, in sweep order.
func WriteResults(path string, sw *runner.Sweep) error {
	data, err := json.MarshalIndent(runner.ResultsByPattern(sw.Runs), "", "  ")
	if err != nil {
		return fmt.Errorf("encode results: %w", err)
	}
	return writeFile(path, data)
}

// ReadResults loads a results file written by WriteResults. Pattern modes
// are not in the file, so runs named after the default plan get theirs back.
func ReadResults(path string) (*runner.Sweep, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var runs runner.ResultsByPattern
	if err := json.Unmarshal(data, &runs); err != nil {
		return nil, fmt.Errorf("decode results %s: %w", path, err)
	}
	runner.RestorePatterns(runs, runner.DefaultPlan())
	sw := &runner.Sweep{Runs: runs}
	if len(runs) > 0 && len(runs[0].Results) > 0 {
		sw.Started = runs[0].Results[0].Timestamp
	}
	return sw, nil
}

// WriteReport writes the structured report as indented JSON.
func WriteReport(path string, rep analyze.Report) error {
	data, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return writeFile(path, data)
}

// ExportCSV writes every attempt as a JMeter-compatible CSV row. The label
// is the pattern name.
// Schema: timeStamp,elapsed,label,responseCode,responseMessage,threadName,dataType,success,failureMessage,errorType,bytes,sentBytes,grpThreads,allThreads,URL,Latency,IdleTime,Connect
func ExportCSV(path string, sw *runner.Sweep) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)

	header := []string{
		"timeStamp", "elapsed", "label", "responseCode", "responseMessage",
		"threadName", "dataType", "success", "failureMessage", "errorType", "bytes",
		"sentBytes", "grpThreads", "allThreads", "URL", "Latency", "IdleTime", "Connect",
	}
	if err := w.Write(header); err != nil {
		return err
	}

	for _, run := range sw.Runs {
		threads := "1"
		if run.Pattern.Mode == runner.ModeConcurrent {
			threads = strconv.Itoa(len(run.Results))
		}
		for _, res := range run.Results {
			elapsed := strconv.FormatInt(res.ElapsedMs, 10)
			record := []string{
				strconv.FormatInt(res.Timestamp.UnixMilli(), 10),
				elapsed,
				run.Name,
				strconv.Itoa(res.StatusCode),
				http.StatusText(res.StatusCode),
				fmt.Sprintf("%s-%d", run.Name, res.Attempt),
				"text",
				strconv.FormatBool(res.Success),
				res.ErrorMessage,
				string(res.ErrorType),
				"0",
				"0",
				threads,
				threads,
				"",
				elapsed,
				"0",
				"0",
			}
			if err := w.Write(record); err != nil {
				return err
			}
		}
	}

	w.Flush()
	return w.Error()
}

// TimeBucket counts attempts started within one wall-clock second.
type TimeBucket struct {
	Timestamp int64 `json:"timestamp"`
	Requests  int   `json:"requests"`
	Errors    int   `json:"errors"`
}

// Timeline buckets the sweep's attempts per second, oldest first.
func Timeline(sw *runner.Sweep) []TimeBucket {
	buckets := make(map[int64]*TimeBucket)
	for _, run := range sw.Runs {
		for _, res := range run.Results {
			ts := res.Timestamp.Unix()
			b, ok := buckets[ts]
			if !ok {
				b = &TimeBucket{Timestamp: ts}
				buckets[ts] = b
			}
			b.Requests++
			if !res.Success {
				b.Errors++
			}
		}
	}

	timeline := make([]TimeBucket, 0, len(buckets))
	for _, b := range buckets {
		timeline = append(timeline, *b)
	}
	sort.Slice(timeline, func(i, j int) bool {
		return timeline[i].Timestamp < timeline[j].Timestamp
	})
	return timeline
}

// WriteTimeline writes Timeline(sw) as indented JSON.
func WriteTimeline(path string, sw *runner.Sweep) error {
	data, err := json.MarshalIndent(Timeline(sw), "", "  ")
	if err != nil {
		return err
	}
	return writeFile(path, data)
}

func writeFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, append(data, '\n'), 0o644) //nolint:gosec // reports are not secret
}

// Outputs names the files written after a sweep. Empty paths are skipped.
type Outputs struct {
	Results  string
	CSV      string
	Report   string
	Timeline string
}

// Write produces every configured artifact and returns the paths written.
// It stops at the first failure.
func (o Outputs) Write(sw *runner.Sweep, rep analyze.Report) ([]string, error) {
	var written []string
	steps := []struct {
		path string
		fn   func(string) error
	}{
		{o.Results, func(p string) error { return WriteResults(p, sw) }},
		{o.CSV, func(p string) error { return ExportCSV(p, sw) }},
		{o.Report, func(p string) error { return WriteReport(p, rep) }},
		{o.Timeline, func(p string) error { return WriteTimeline(p, sw) }},
	}
	for _, s := range steps {
		if s.path == "" {
			continue
		}
		if err := s.fn(s.path); err != nil {
			return written, fmt.Errorf("write %s: %w", s.path, err)
		}
		written = append(written, s.path)
	}
	return written, nil
}
