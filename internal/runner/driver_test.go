package runner

import (
	"context"
	"encoding/json"
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
	"poolprobe/internal/erp"
	"poolprobe/internal/errors"
)

func testPayload() config.PayloadConfig {
	return config.PayloadConfig{
		Service:           "SalesPricePage",
		DescriptionPrefix: "SESSION-TEST-",
		PricePageType:     "Supplier / Product Group",
		CompanyID:         "ACME",
		SupplierID:        10,
		ProductGroupID:    "FA5",
		PricingMethod:     "Source",
		SourcePrice:       "Supplier List Price",
		EffectiveDate:     "2025-01-01",
		ExpirationDate:    "2030-12-31",
		TotalingMethod:    "Item",
		TotalingBasis:     "Supplier List Price",
		CalculationMethod: "Multiplier",
		CalculationValue:  "0.5",
	}
}

type harness struct {
	fake   *dummy.Server
	driver *Driver
	sleeps []time.Duration
	dials  atomic.Int64 // connections accepted by the fake
}

// newHarness wires a driver to a fake vendor. Sleeps are recorded, not slept,
// unless realSleep is set.
func newHarness(t *testing.T, scfg dummy.ServerConfig, password string, realSleep bool) *harness {
	t.Helper()
	if scfg.Username == "" {
		scfg.Username, scfg.Password = "api", "pw"
	}
	h := &harness{fake: dummy.NewServer(scfg)}
	ts := httptest.NewUnstartedServer(h.fake.Handler())
	ts.Config.ConnState = func(_ net.Conn, state http.ConnState) {
		if state == http.StateNew {
			h.dials.Add(1)
		}
	}
	ts.Start()
	t.Cleanup(ts.Close)

	client := erp.NewClient(erp.Options{
		BaseURL:     ts.URL,
		Credentials: erp.Credentials{Username: "api", Password: password},
		Endpoints: config.EndpointConfig{
			Token:       dummy.TokenPath,
			TokenV2:     dummy.TokenV2Path,
			Router:      dummy.RouterPath + "?urlType=external",
			Transaction: "/api/v2/transaction",
		},
		Timeout: 10 * time.Second,
		Logger:  zerolog.Nop(),
	})

	h.driver = NewDriver(client, NewRunner(client, testPayload(), 5*time.Second, zerolog.Nop()), time.Second, zerolog.Nop())
	h.driver.Seed(1)
	if !realSleep {
		h.driver.sleep = func(ctx context.Context, d time.Duration) error {
			h.sleeps = append(h.sleeps, d)
			return ctx.Err()
		}
	}
	return h
}

func (h *harness) session(t *testing.T) *erp.Session {
	t.Helper()
	sess, err := h.driver.auth.Authenticate(context.Background())
	require.NoError(t, err)
	return sess
}

func attemptNumbers(run PatternRun) []int {
	out := make([]int, len(run.Results))
	for i, r := range run.Results {
		out[i] = r.Attempt
	}
	return out
}

func TestRunPattern_FixedDelaySequence(t *testing.T) {
	h := newHarness(t, dummy.ServerConfig{}, "pw", false)

	run, err := h.driver.RunPattern(context.Background(), h.session(t),
		Pattern{Name: "delayed", Mode: ModeFixedDelay, Count: 4, Delay: 500 * time.Millisecond})
	require.NoError(t, err)

	assert.Equal(t, []int{1, 2, 3, 4}, attemptNumbers(run))
	assert.Equal(t, 4, run.Successes())
	assert.Equal(t, []time.Duration{500 * time.Millisecond, 500 * time.Millisecond, 500 * time.Millisecond}, h.sleeps,
		"no wait after the last attempt")
	for _, r := range run.Results {
		assert.Equal(t, "Succeeded: 1", r.Preview)
		assert.Contains(t, r.SessionHeaders, "X-P21-Instance")
	}
}

func TestRunPattern_FixedDelayGaps(t *testing.T) {
	latency := 40 * time.Millisecond
	h := newHarness(t, dummy.ServerConfig{Latency: latency}, "pw", true)
	delay := 50 * time.Millisecond

	run, err := h.driver.RunPattern(context.Background(), h.session(t),
		Pattern{Name: "gaps", Mode: ModeFixedDelay, Count: 3, Delay: delay})
	require.NoError(t, err)
	require.Len(t, run.Results, 3)

	for i := 1; i < len(run.Results); i++ {
		prev := run.Results[i-1]
		require.GreaterOrEqual(t, prev.ElapsedMs, latency.Milliseconds())
		prevEnd := prev.Timestamp.Add(time.Duration(prev.ElapsedMs) * time.Millisecond)
		idle := run.Results[i].Timestamp.Sub(prevEnd)
		assert.GreaterOrEqual(t, idle, delay, "pause between the end of attempt %d and the start of attempt %d", i, i+1)
	}
}

func TestRunPattern_ConcurrentStartsTogether(t *testing.T) {
	latency := 300 * time.Millisecond
	h := newHarness(t, dummy.ServerConfig{Latency: latency}, "pw", false)

	run, err := h.driver.RunPattern(context.Background(), h.session(t),
		Pattern{Name: "parallel", Mode: ModeConcurrent, Count: 5})
	require.NoError(t, err)

	assert.Equal(t, []int{1, 2, 3, 4, 5}, attemptNumbers(run))
	assert.Empty(t, h.sleeps)

	first, last := run.Results[0].Timestamp, run.Results[0].Timestamp
	for _, r := range run.Results {
		if r.Timestamp.Before(first) {
			first = r.Timestamp
		}
		if r.Timestamp.After(last) {
			last = r.Timestamp
		}
		assert.True(t, r.Success)
		assert.GreaterOrEqual(t, r.ElapsedMs, latency.Milliseconds())
	}
	assert.Less(t, last.Sub(first), latency, "attempts should start before any completes")
}

func TestRunPattern_JitterWithinBounds(t *testing.T) {
	h := newHarness(t, dummy.ServerConfig{}, "pw", false)

	run, err := h.driver.RunPattern(context.Background(), h.session(t),
		Pattern{Name: "jitter", Mode: ModeJitter, Count: 10})
	require.NoError(t, err)
	require.Len(t, run.Results, 10)
	require.Len(t, h.sleeps, 9)

	for _, d := range h.sleeps {
		assert.GreaterOrEqual(t, d, DefaultJitterMin)
		assert.LessOrEqual(t, d, DefaultJitterMax)
	}
}

func TestRunPattern_ContaminatedAlternates(t *testing.T) {
	h := newHarness(t, dummy.ServerConfig{Mode: dummy.ModeContaminated}, "pw", false)

	run, err := h.driver.RunPattern(context.Background(), h.session(t),
		Pattern{Name: "rapid_fire", Mode: ModeFixedDelay, Count: 6})
	require.NoError(t, err)

	for i, r := range run.Results {
		if i%2 == 0 {
			assert.True(t, r.Success, "attempt %d", r.Attempt)
		} else {
			assert.False(t, r.Success, "attempt %d", r.Attempt)
			assert.Equal(t, KindUnexpectedWindow, r.ErrorType)
			assert.Equal(t, 500, r.StatusCode)
		}
	}
}

func TestRunPattern_CancelStopsIssuing(t *testing.T) {
	h := newHarness(t, dummy.ServerConfig{}, "pw", false)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h.driver.OnEvent = func(ev Event) {
		if ev.Type == EventAttempt && ev.Result.Attempt == 2 {
			cancel()
		}
	}

	run, err := h.driver.RunPattern(ctx, h.session(t),
		Pattern{Name: "rapid_fire", Mode: ModeFixedDelay, Count: 10})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []int{1, 2}, attemptNumbers(run))
	assert.Equal(t, uint64(2), h.fake.Transactions())
}

func TestSweep_RunsPlanInOrder(t *testing.T) {
	h := newHarness(t, dummy.ServerConfig{}, "pw", false)

	var starts []string
	h.driver.OnEvent = func(ev Event) {
		if ev.Type == EventPatternStart {
			starts = append(starts, ev.Pattern.Name)
		}
	}

	plan := []Pattern{
		{Name: "a", Mode: ModeFixedDelay, Count: 2},
		{Name: "b", Mode: ModeConcurrent, Count: 3},
		{Name: "c", Mode: ModeJitter, Count: 1},
	}
	sw, err := h.driver.Sweep(context.Background(), "http://vendor", plan)
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b", "c"}, starts)
	require.Len(t, sw.Runs, 3)
	assert.Equal(t, "a", sw.Runs[0].Name)
	assert.Equal(t, "c", sw.Runs[2].Name)
	assert.Equal(t, 6, sw.Attempts())
	assert.NotEmpty(t, sw.ID)
	assert.Equal(t, "http://vendor", sw.BaseURL)
	assert.Equal(t, []time.Duration{time.Second, time.Second}, h.sleeps, "settle pause between patterns only")
}

func TestSweep_DialsFreshConnectionsPerPattern(t *testing.T) {
	h := newHarness(t, dummy.ServerConfig{}, "pw", false)

	var perPattern []int64
	h.driver.OnEvent = func(ev Event) {
		if ev.Type == EventPatternDone {
			perPattern = append(perPattern, h.dials.Load())
		}
	}

	plan := []Pattern{
		{Name: "a", Mode: ModeFixedDelay, Count: 3, Delay: 500 * time.Millisecond},
		{Name: "b", Mode: ModeFixedDelay, Count: 3, Delay: 500 * time.Millisecond},
		{Name: "c", Mode: ModeFixedDelay, Count: 3, Delay: 500 * time.Millisecond},
	}
	_, err := h.driver.Sweep(context.Background(), "http://vendor", plan)
	require.NoError(t, err)

	require.Len(t, perPattern, 3)
	assert.GreaterOrEqual(t, perPattern[0], int64(1))
	for i := 1; i < len(perPattern); i++ {
		assert.Greater(t, perPattern[i], perPattern[i-1], "pattern %d reused an earlier connection", i+1)
	}
}

func TestSweep_AbortsOnAuthFailure(t *testing.T) {
	h := newHarness(t, dummy.ServerConfig{}, "wrong", false)

	sw, err := h.driver.Sweep(context.Background(), "http://vendor", DefaultPlan())
	require.Error(t, err)
	assert.Nil(t, sw)
	assert.True(t, errors.Is(err, errors.ErrAuthentication))
	assert.Contains(t, err.Error(), "rapid_fire")
	assert.Zero(t, h.fake.Transactions())
}

func TestSweep_RejectsInvalidPlan(t *testing.T) {
	h := newHarness(t, dummy.ServerConfig{}, "pw", false)

	_, err := h.driver.Sweep(context.Background(), "", []Pattern{{Name: "x", Mode: "burst", Count: 1}})
	assert.True(t, errors.Is(err, errors.ErrConfigInvalid))
}

func TestDefaultPlan(t *testing.T) {
	plan := DefaultPlan()
	require.Len(t, plan, 5)

	names := make([]string, len(plan))
	total := 0
	for i, p := range plan {
		names[i] = p.Name
		total += p.Count
		require.NoError(t, p.Validate())
	}
	assert.Equal(t, []string{"rapid_fire", "delayed_500ms", "delayed_2000ms", "parallel", "random_jitter"}, names)
	assert.Equal(t, 40, total)
}

func TestSelectPatterns(t *testing.T) {
	got, err := SelectPatterns(DefaultPlan(), []string{"parallel", " rapid_fire"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "rapid_fire", got[0].Name, "plan order wins")
	assert.Equal(t, "parallel", got[1].Name)

	_, err = SelectPatterns(DefaultPlan(), []string{"nope"})
	assert.True(t, errors.Is(err, errors.ErrUnknownPattern))
}

func TestResultsByPattern_KeepsOrder(t *testing.T) {
	runs := ResultsByPattern{
		{Name: "zeta", Results: []AttemptResult{{Attempt: 1, Success: true, SessionHeaders: map[string]string{}}}},
		{Name: "alpha"},
	}

	b, err := json.Marshal(runs)
	require.NoError(t, err)
	assert.Regexp(t, `^\{"zeta":\[\{"attempt":1,.*\],"alpha":\[\]\}$`, string(b))

	var back ResultsByPattern
	require.NoError(t, json.Unmarshal(b, &back))
	require.Len(t, back, 2)
	assert.Equal(t, "zeta", back[0].Name)
	assert.Equal(t, "alpha", back[1].Name)
	assert.True(t, back[0].Results[0].Success)
}
