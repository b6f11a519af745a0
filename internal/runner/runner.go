// Package runner issues probe transactions, classifies their outcomes and
// drives them through timing patterns.
package runner

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"poolprobe/internal/config"
	"poolprobe/internal/erp"
)

// Poster submits an encoded transaction set on a session.
type Poster interface {
	PostTransaction(ctx context.Context, sess *erp.Session, body []byte) (*erp.Response, error)
}

// Runner executes single attempts. It holds no per-attempt state, so one
// Runner serves concurrent attempts.
type Runner struct {
	poster  Poster
	payload config.PayloadConfig
	timeout time.Duration
	logger  zerolog.Logger
	now     func() time.Time
}

// NewRunner builds a Runner. timeout bounds each attempt; zero means
// config.DefaultRequestTimeout.
func NewRunner(p Poster, payload config.PayloadConfig, timeout time.Duration, logger zerolog.Logger) *Runner {
	if timeout <= 0 {
		timeout = config.DefaultRequestTimeout
	}
	return &Runner{
		poster:  p,
		payload: payload,
		timeout: timeout,
		logger:  logger.With().Str("component", "runner").Logger(),
		now:     time.Now,
	}
}

// Execute submits one freshly built create transaction and classifies the
// outcome. It never returns an error: every failure is recorded in the result.
func (r *Runner) Execute(ctx context.Context, sess *erp.Session, attempt int) AttemptResult {
	stamp := r.now()

	body, err := erp.NewSalesPricePage(r.payload, stamp).TransactionSet(r.payload.Service).Encode()
	if err != nil {
		res := AttemptResult{
			ErrorType:      KindValidation,
			ErrorMessage:   erp.Truncate(err.Error(), messageLimit),
			SessionHeaders: map[string]string{},
		}
		res.Attempt, res.Timestamp = attempt, stamp
		return res
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	resp, err := r.poster.PostTransaction(ctx, sess, body)
	elapsed := time.Since(start)

	res := Classify(resp, err)
	res.Attempt = attempt
	res.Timestamp = stamp
	res.ElapsedMs = elapsed.Milliseconds()

	ev := r.logger.Debug()
	if !res.Success {
		ev = r.logger.Info()
	}
	ev.Int("attempt", attempt).
		Int("status", res.StatusCode).
		Int64("elapsed_ms", res.ElapsedMs).
		Str("kind", string(res.ErrorType)).
		Msg("attempt finished")

	return res
}
