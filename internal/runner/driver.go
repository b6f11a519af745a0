package runner

import (
	"context"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"poolprobe/internal/config"
	"poolprobe/internal/erp"
	"poolprobe/internal/errors"
)

// Authenticator establishes a fresh session.
type Authenticator interface {
	Authenticate(ctx context.Context) (*erp.Session, error)
}

// connResetter is implemented by authenticators that pool connections.
type connResetter interface {
	ResetConnections()
}

// EventType tags a driver Event.
type EventType int

// Event types.
const (
	EventPatternStart EventType = iota
	EventAttempt
	EventPatternDone
	EventSettle
)

// Event is pushed to the driver's OnEvent callback as the sweep progresses.
type Event struct {
	Type    EventType
	Index   int // pattern index in the plan
	Total   int // patterns in the plan
	Pattern Pattern
	Result  AttemptResult // set for EventAttempt
	Run     *PatternRun   // set for EventPatternDone
	Pause   time.Duration // set for EventSettle
}

// Driver runs patterns of attempts. It is not safe for concurrent sweeps.
type Driver struct {
	auth   Authenticator
	runner *Runner
	settle time.Duration
	logger zerolog.Logger

	// OnEvent, when set, is called synchronously from the driver goroutine.
	OnEvent func(Event)

	sleep func(ctx context.Context, d time.Duration) error
	rnd   *rand.Rand
}

// NewDriver builds a Driver. settle is the pause between patterns.
func NewDriver(auth Authenticator, r *Runner, settle time.Duration, logger zerolog.Logger) *Driver {
	return &Driver{
		auth:   auth,
		runner: r,
		settle: settle,
		logger: logger.With().Str("component", "driver").Logger(),
		sleep:  sleepCtx,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())), //nolint:gosec // jitter only
	}
}

// NewDriverFromConfig wires a client, runner and driver from configuration.
func NewDriverFromConfig(cfg *config.Config, logger zerolog.Logger) *Driver {
	client := erp.NewClientFromConfig(cfg, logger)
	r := NewRunner(client, cfg.Payload, cfg.RequestTimeout, logger)
	return NewDriver(client, r, cfg.SettlePause, logger)
}

// Seed makes jitter waits reproducible.
func (d *Driver) Seed(seed int64) {
	d.rnd = rand.New(rand.NewSource(seed)) //nolint:gosec // jitter only
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (d *Driver) emit(ev Event) {
	if d.OnEvent != nil {
		d.OnEvent(ev)
	}
}

// Sweep runs plan in order, re-authenticating on fresh connections before
// each pattern and pausing between them. An authentication or routing failure aborts the
// sweep and returns no sweep. Cancellation returns the runs completed so far
// together with the context error.
func (d *Driver) Sweep(ctx context.Context, baseURL string, plan []Pattern) (*Sweep, error) {
	for i := range plan {
		if err := plan[i].Validate(); err != nil {
			return nil, err
		}
	}

	sw := &Sweep{
		ID:      uuid.NewString(),
		BaseURL: baseURL,
		Started: time.Now(),
		Runs:    make([]PatternRun, 0, len(plan)),
	}
	log := d.logger.With().Str("sweep_id", sw.ID).Logger()

	for i, p := range plan {
		if i > 0 && d.settle > 0 {
			d.emit(Event{Type: EventSettle, Index: i, Total: len(plan), Pattern: p, Pause: d.settle})
			if err := d.sleep(ctx, d.settle); err != nil {
				sw.Finished = time.Now()
				return sw, err
			}
		}

		d.emit(Event{Type: EventPatternStart, Index: i, Total: len(plan), Pattern: p})

		// Each pattern dials its own connections so keep-alive does not pin
		// it to the backend worker the previous pattern used.
		if r, ok := d.auth.(connResetter); ok {
			r.ResetConnections()
		}
		sess, err := d.auth.Authenticate(ctx)
		if err != nil {
			log.Error().Err(err).Str("pattern", p.Name).Msg("session bootstrap failed")
			return nil, errors.Wrapf(err, "pattern %s", p.Name)
		}

		run, err := d.runPattern(ctx, sess, p, i, len(plan))
		sw.Runs = append(sw.Runs, run)
		d.emit(Event{Type: EventPatternDone, Index: i, Total: len(plan), Pattern: p, Run: &sw.Runs[len(sw.Runs)-1]})

		log.Info().
			Str("pattern", p.Name).
			Int("attempts", len(run.Results)).
			Int("succeeded", run.Successes()).
			Msg("pattern finished")

		if err != nil {
			sw.Finished = time.Now()
			return sw, err
		}
	}

	sw.Finished = time.Now()
	return sw, nil
}

// RunPattern runs p on an existing session. On cancellation it returns the
// attempts issued so far and the context error.
func (d *Driver) RunPattern(ctx context.Context, sess *erp.Session, p Pattern) (PatternRun, error) {
	if err := p.Validate(); err != nil {
		return PatternRun{Name: p.Name, Pattern: p}, err
	}
	return d.runPattern(ctx, sess, p, 0, 1)
}

func (d *Driver) runPattern(ctx context.Context, sess *erp.Session, p Pattern, idx, total int) (PatternRun, error) {
	run := PatternRun{Name: p.Name, Pattern: p, Started: time.Now()}

	if p.Mode == ModeConcurrent {
		run.Results = d.runConcurrent(ctx, sess, p.Count)
		for _, res := range run.Results {
			d.emit(Event{Type: EventAttempt, Index: idx, Total: total, Pattern: p, Result: res})
		}
		return run, ctx.Err()
	}

	run.Results = make([]AttemptResult, 0, p.Count)
	for i := 1; i <= p.Count; i++ {
		if err := ctx.Err(); err != nil {
			return run, err
		}
		res := d.runner.Execute(ctx, sess, i)
		run.Results = append(run.Results, res)
		d.emit(Event{Type: EventAttempt, Index: idx, Total: total, Pattern: p, Result: res})

		if i == p.Count {
			break
		}
		if w := d.wait(p); w > 0 {
			if err := d.sleep(ctx, w); err != nil {
				return run, err
			}
		}
	}
	return run, nil
}

// runConcurrent starts every attempt at once. Results are stored by issue
// index, so attempt numbers follow issue order rather than completion order.
func (d *Driver) runConcurrent(ctx context.Context, sess *erp.Session, n int) []AttemptResult {
	results := make([]AttemptResult, n)
	issued := 0

	var g errgroup.Group
	for i := 0; i < n; i++ {
		if ctx.Err() != nil {
			break
		}
		issued++
		g.Go(func() error {
			results[i] = d.runner.Execute(ctx, sess, i+1)
			return nil
		})
	}
	_ = g.Wait()
	return results[:issued]
}

func (d *Driver) wait(p Pattern) time.Duration {
	if p.Mode != ModeJitter {
		return p.Delay
	}
	span := p.JitterMax - p.JitterMin
	if span <= 0 {
		return p.JitterMin
	}
	return p.JitterMin + time.Duration(d.rnd.Int63n(int64(span)+1))
}
