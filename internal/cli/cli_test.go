package cli

import (
	"bytes"
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"poolprobe/internal/analyze"
	"poolprobe/internal/config"
	"poolprobe/internal/dummy"
	"poolprobe/internal/errors"
	"poolprobe/internal/export"
	"poolprobe/internal/runner"
	"poolprobe/internal/storage"
)

func fakeVendor(t *testing.T, mode dummy.Mode) *config.Config {
	t.Helper()
	ts := httptest.NewServer(dummy.NewServer(dummy.ServerConfig{Mode: mode, Username: "api", Password: "pw"}).Handler())
	t.Cleanup(ts.Close)

	cfg := config.Default()
	cfg.BaseURL = ts.URL
	cfg.Username = "api"
	cfg.Password = "pw"
	cfg.SettlePause = time.Millisecond
	require.NoError(t, cfg.Validate())
	return cfg
}

func smallPlan() []runner.Pattern {
	return []runner.Pattern{
		{Name: "rapid_fire", Title: "Rapid Fire", Mode: runner.ModeFixedDelay, Count: 4},
		{Name: "parallel", Title: "Parallel", Mode: runner.ModeConcurrent, Count: 2},
	}
}

func TestStart_ContaminatedVendor(t *testing.T) {
	cfg := fakeVendor(t, dummy.ModeContaminated)
	dir := t.TempDir()
	var out bytes.Buffer

	rep, err := Start(context.Background(), Options{
		Config:      cfg,
		Plan:        smallPlan(),
		Outputs:     export.Outputs{Results: filepath.Join(dir, "results.json"), CSV: filepath.Join(dir, "results.csv")},
		HistoryPath: filepath.Join(dir, "history.db"),
		Out:         &out,
		Logger:      zerolog.Nop(),
	})
	require.NoError(t, err)
	require.NotNil(t, rep)

	text := out.String()
	assert.Contains(t, text, "Server: "+cfg.BaseURL)
	assert.Contains(t, text, "TEST 1: Rapid Fire")
	assert.Contains(t, text, "TEST 2: Parallel")
	assert.Contains(t, text, "  [ 1] OK ")
	assert.Contains(t, text, "  [ 2] FAIL ")
	assert.Contains(t, text, "[!] ALTERNATING PATTERN DETECTED!")
	assert.Contains(t, text, "'Unexpected window' errors confirm dirty session pool")
	assert.Equal(t, analyze.LikelyContamination, rep.Health)

	assert.FileExists(t, filepath.Join(dir, "results.json"))
	assert.FileExists(t, filepath.Join(dir, "results.csv"))

	store, err := storage.Open(filepath.Join(dir, "history.db"))
	require.NoError(t, err)
	defer store.Close()
	items, err := store.List(0)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 6, items[0].Report.TotalRequests)
}

func TestStart_AuthFailureWritesNothing(t *testing.T) {
	cfg := fakeVendor(t, dummy.ModeHealthy)
	cfg.Password = "wrong"
	dir := t.TempDir()
	results := filepath.Join(dir, "results.json")

	rep, err := Start(context.Background(), Options{
		Config:  cfg,
		Plan:    smallPlan(),
		Outputs: export.Outputs{Results: results},
		Out:     &bytes.Buffer{},
		Logger:  zerolog.Nop(),
	})
	assert.Nil(t, rep)
	assert.True(t, errors.Is(err, errors.ErrAuthentication))
	_, statErr := os.Stat(results)
	assert.True(t, os.IsNotExist(statErr))
}

func TestStart_CancelledBeforeBootstrap(t *testing.T) {
	cfg := fakeVendor(t, dummy.ModeHealthy)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out bytes.Buffer
	_, err := Start(ctx, Options{Config: cfg, Plan: smallPlan(), Out: &out, Logger: zerolog.Nop()})
	require.Error(t, err)
	// Authentication itself observes the cancelled context.
	assert.ErrorIs(t, err, context.Canceled)
}

func TestConsole_AttemptLine(t *testing.T) {
	c := NewConsole(&bytes.Buffer{})

	line := c.AttemptLine(runner.AttemptResult{Attempt: 3, ElapsedMs: 42, Success: true, Preview: "Succeeded: 1"})
	assert.Equal(t, "  [ 3] OK   42ms - Succeeded: 1", line)

	long := strings.Repeat("e", 80)
	line = c.AttemptLine(runner.AttemptResult{Attempt: 12, ElapsedMs: 30001, Preview: long})
	assert.Equal(t, "  [12] FAIL 30001ms - "+strings.Repeat("e", 50), line)
}
