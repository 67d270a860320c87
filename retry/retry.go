// Package retry implements the bounded retry engine used for every
// Graph and database operation. A profile fixes the attempt budget,
// the exponential backoff base and the per-operation deadline; the
// caller supplies the operation and an optional abort classifier.
package retry

import (
	"context"
	"math/rand"
	"time"

	log "github.com/sirupsen/logrus"

	"mailbridge/utils"
)

// Profile names a predefined retry configuration.
type Profile int

const (
	// Fast suits interactive calls where the user is waiting.
	Fast Profile = iota
	// Standard suits regular page and folder fetches.
	Standard
	// Batch suits long-running bulk work such as persistence.
	Batch
	// Critical aliases Batch for operations that must not give up early.
	Critical
)

// Config bounds one retried operation. MaxRetries counts total
// attempts, not re-attempts: MaxRetries of 3 means at most three calls.
type Config struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxTimeout time.Duration
}

var profiles = map[Profile]Config{
	Fast:     {MaxRetries: 2, BaseDelay: 1 * time.Second, MaxTimeout: 5 * time.Second},
	Standard: {MaxRetries: 3, BaseDelay: 2 * time.Second, MaxTimeout: 30 * time.Second},
	Batch:    {MaxRetries: 5, BaseDelay: 3 * time.Second, MaxTimeout: 300 * time.Second},
	Critical: {MaxRetries: 5, BaseDelay: 3 * time.Second, MaxTimeout: 300 * time.Second},
}

// ConfigFor returns the configuration bound to a profile.
func ConfigFor(p Profile) Config { return profiles[p] }

// Service executes retried operations. The sleep function is swappable
// for tests; the default waits on a timer and honors context
// cancellation.
type Service struct {
	cfg   Config
	log   *log.Entry
	sleep func(ctx context.Context, d time.Duration) error
}

// NewService builds a retry service from a profile.
func NewService(p Profile, logger *log.Entry) *Service {
	return NewServiceWithConfig(ConfigFor(p), logger)
}

// NewServiceWithConfig builds a retry service from an explicit config.
func NewServiceWithConfig(cfg Config, logger *log.Entry) *Service {
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}
	return &Service{cfg: cfg, log: logger, sleep: sleepCtx}
}

// Config returns the service's bounds.
func (s *Service) Config() Config { return s.cfg }

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// backoff returns the wait before attempt n (zero-based), doubling the
// base each attempt with up to 10% jitter either way.
func (s *Service) backoff(attempt int) time.Duration {
	base := float64(s.cfg.BaseDelay) * float64(int64(1)<<uint(attempt))
	jitter := base * 0.1 * (2*rand.Float64() - 1)
	d := time.Duration(base + jitter)
	if d < 0 {
		d = 0
	}
	return d
}

// Context describes one retryable operation of result type T.
type Context[T any] struct {
	// Op is the operation to run. Required.
	Op func(ctx context.Context) (T, error)
	// ErrorMsg labels log lines and the final wrapped error.
	ErrorMsg string
	// Wrap converts the final error into the caller's domain error.
	// When nil the last attempt's error is returned as is.
	Wrap func(err error) error
	// OnRetry runs once per failed attempt that will be retried.
	OnRetry func()
	// OnError runs once when the operation fails terminally.
	OnError func()
	// AbortOn stops retrying immediately when it returns true.
	// Defaults to utils.IsAbortWorthy.
	AbortOn func(err error) bool
}

// Do runs rc.Op under the service's bounds. The operation deadline is
// checked before each attempt; once it has passed the failure is
// terminal even if attempts remain. Abort-worthy errors end the loop
// on the spot.
func Do[T any](ctx context.Context, s *Service, rc Context[T]) (T, error) {
	var zero T
	abortOn := rc.AbortOn
	if abortOn == nil {
		abortOn = utils.IsAbortWorthy
	}
	fail := func(err error) (T, error) {
		if rc.OnError != nil {
			rc.OnError()
		}
		if rc.Wrap != nil {
			return zero, rc.Wrap(err)
		}
		return zero, err
	}

	deadline := time.Now().Add(s.cfg.MaxTimeout)
	var lastErr error
	for attempt := 0; attempt < s.cfg.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return fail(err)
		}
		if time.Now().After(deadline) {
			s.log.WithFields(log.Fields{
				"operation": rc.ErrorMsg,
				"attempt":   attempt,
			}).Warn("retry deadline exceeded")
			return fail(context.DeadlineExceeded)
		}

		result, err := rc.Op(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if abortOn(err) {
			s.log.WithFields(log.Fields{
				"operation": rc.ErrorMsg,
				"attempt":   attempt + 1,
			}).WithError(err).Warn("non-retryable error, aborting")
			return fail(err)
		}
		if attempt == s.cfg.MaxRetries-1 {
			break
		}

		wait := s.backoff(attempt)
		s.log.WithFields(log.Fields{
			"operation": rc.ErrorMsg,
			"attempt":   attempt + 1,
			"wait":      wait.Round(time.Millisecond).String(),
		}).WithError(err).Warn("attempt failed, retrying")
		if rc.OnRetry != nil {
			rc.OnRetry()
		}
		if err := s.sleep(ctx, wait); err != nil {
			return fail(err)
		}
	}

	s.log.WithFields(log.Fields{
		"operation": rc.ErrorMsg,
		"attempts":  s.cfg.MaxRetries,
	}).WithError(lastErr).Error("all attempts exhausted")
	return fail(lastErr)
}
