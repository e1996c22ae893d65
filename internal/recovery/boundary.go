package recovery

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/akindolabs/akindo/internal/config"
	"github.com/akindolabs/akindo/internal/errors"
	"github.com/akindolabs/akindo/internal/logger"
	"github.com/akindolabs/akindo/internal/state"
)

// NodeFunc is one pipeline step: it reads the session snapshot and describes
// its effect as commands. Steps never mutate the snapshot, so a failed
// attempt can be retried against the same state.
type NodeFunc func(ctx context.Context, s *state.Session) ([]state.Command, error)

// Action tells the caller what to do with a failure the boundary could not
// absorb.
type Action int

const (
	// ActionFail surfaces the error to the user and ends the turn.
	ActionFail Action = iota
	// ActionFallback continues the turn with a degraded response.
	ActionFallback
	// ActionCompensate undoes the partial effect, then surfaces the error.
	ActionCompensate
	// ActionEscalate hands the conversation to a human operator.
	ActionEscalate
	// ActionIgnore drops the error and continues as if the step succeeded.
	ActionIgnore
)

// Boundary wraps pipeline steps with retry, circuit breaking and
// fail-fast bookkeeping. One boundary serves all sessions; counters are
// keyed per session and step.
type Boundary struct {
	retryMax         int
	backoff          Backoff
	breakers         *BreakerRegistry
	keyFn            KeyFunc
	maxNodeFailures  int
	maxGraphFailures int
	includeTechnical bool

	mu       sync.Mutex
	failures map[string]int

	sleep func(ctx context.Context, d time.Duration) error
}

func NewBoundary(cfg config.RecoveryConfig) (*Boundary, error) {
	baseDelay, err := config.DurationOrDefault(cfg.RetryBaseDelay, config.DefaultRecoveryRetryBaseDelay)
	if err != nil {
		return nil, errors.Validation("INVALID_RETRY_DELAY", "parse retry_base_delay").WithCause(err)
	}
	maxDelay, err := config.DurationOrDefault(cfg.RetryMaxDelay, config.DefaultRecoveryRetryMaxDelay)
	if err != nil {
		return nil, errors.Validation("INVALID_RETRY_DELAY", "parse retry_max_delay").WithCause(err)
	}
	resetWindow, err := config.DurationOrDefault(cfg.BreakerResetWindow, config.DefaultRecoveryBreakerResetWindow)
	if err != nil {
		return nil, errors.Validation("INVALID_BREAKER_WINDOW", "parse breaker_reset_window").WithCause(err)
	}

	retryMax := cfg.RetryMax
	if retryMax <= 0 {
		retryMax = config.DefaultRecoveryRetryMax
	}
	multiplier := cfg.RetryMultiplier
	if multiplier <= 1 {
		multiplier = config.DefaultRecoveryRetryMultiplier
	}
	threshold := cfg.BreakerThreshold
	if threshold <= 0 {
		threshold = config.DefaultRecoveryBreakerThreshold
	}
	maxNodeFailures := cfg.MaxNodeFailures
	if maxNodeFailures <= 0 {
		maxNodeFailures = config.DefaultRecoveryMaxNodeFailures
	}
	maxGraphFailures := cfg.MaxGraphFailures
	if maxGraphFailures <= 0 {
		maxGraphFailures = config.DefaultRecoveryMaxGraphFailures
	}

	keyFn := CategoryCodeKey
	if cfg.BreakerKeying == "category" {
		keyFn = CategoryKey
	}

	return &Boundary{
		retryMax:         retryMax,
		backoff:          Backoff{Base: baseDelay, Multiplier: multiplier, Max: maxDelay},
		breakers:         NewBreakerRegistry(threshold, resetWindow),
		keyFn:            keyFn,
		maxNodeFailures:  maxNodeFailures,
		maxGraphFailures: maxGraphFailures,
		includeTechnical: cfg.IncludeTechnical,
		failures:         make(map[string]int),
		sleep:            sleepCtx,
	}, nil
}

// IncludeTechnical reports whether user-facing error text may carry the
// technical detail line.
func (b *Boundary) IncludeTechnical() bool {
	return b.includeTechnical
}

func (b *Boundary) Breakers() *BreakerRegistry {
	return b.breakers
}

// WrapNode guards one pipeline step. Retryable failures are retried in place
// against the same snapshot with exponential backoff; repeated failures of
// the same step in the same session fail fast without executing.
func (b *Boundary) WrapNode(name string, fn NodeFunc) NodeFunc {
	log := logger.Component("recovery")

	return func(ctx context.Context, s *state.Session) ([]state.Command, error) {
		counterKey := s.ThreadID + "/" + name

		if b.failureCount(counterKey) >= b.maxNodeFailures {
			log.Warn("Step disabled after repeated failures", "step", name, "session", s.ThreadID)
			return nil, errors.Workflow("STEP_DISABLED", "step "+name+" disabled for this session").
				WithStrategy(errors.StrategyUserIntervention).
				WithRetryable(false)
		}

		var lastErr *errors.Error
		for attempt := 1; attempt <= b.retryMax; attempt++ {
			cmds, err := fn(ctx, s)
			if err == nil {
				if lastErr != nil {
					b.breakers.RecordSuccess(b.keyFn(lastErr))
					cmds = append(cmds, state.UpdatePerformance{
						Retries: map[string]int{name: attempt - 1},
					})
				}
				b.resetFailures(counterKey)
				return cmds, nil
			}

			e := errors.From(err)
			lastErr = e
			key := b.keyFn(e)
			b.breakers.RecordFailure(key)

			if !b.shouldRetry(e, attempt) {
				break
			}
			if !b.breakers.Allow(key) {
				log.Warn("Circuit open, not retrying", "step", name, "key", key)
				break
			}

			delay := b.backoff.Delay(attempt, e.RetryAfter)
			log.Info("Retrying step", "step", name, "attempt", attempt, "delay", delay, "code", e.Code)
			if err := b.sleep(ctx, delay); err != nil {
				return nil, errors.From(err)
			}
		}

		b.recordFailure(counterKey)
		return nil, lastErr
	}
}

func (b *Boundary) shouldRetry(e *errors.Error, attempt int) bool {
	if attempt >= b.retryMax {
		return false
	}
	if !e.Retryable {
		return false
	}
	switch e.Strategy {
	case errors.StrategyRetry, errors.StrategyRetryBackoff:
		return true
	}
	return false
}

// RunGraph guards one whole turn the way WrapNode guards one step: a session
// whose turns keep failing outright is cut off before more work is wasted on
// it. Blocked-then-recovered turns do not count; only errors surfacing out of
// the run do.
func (b *Boundary) RunGraph(name string, s *state.Session, fn func() error) error {
	counterKey := s.ThreadID + "/graph:" + name

	if b.failureCount(counterKey) >= b.maxGraphFailures {
		logger.Component("recovery").Warn("Graph disabled after repeated failures", "graph", name, "session", s.ThreadID)
		return errors.Workflow("GRAPH_DISABLED", "conversation processing disabled for this session").
			WithStrategy(errors.StrategyUserIntervention).
			WithRetryable(false)
	}

	if err := fn(); err != nil {
		b.recordFailure(counterKey)
		return err
	}
	b.resetFailures(counterKey)
	return nil
}

// Handle maps a terminal failure to the action the turn should take.
func (b *Boundary) Handle(err error) Action {
	e := errors.From(err)

	if b.breakers.Open(b.keyFn(e)) {
		return ActionFallback
	}

	switch e.Strategy {
	case errors.StrategyFallback:
		return ActionFallback
	case errors.StrategyCompensate:
		return ActionCompensate
	case errors.StrategyUserIntervention:
		return ActionEscalate
	case errors.StrategyIgnore:
		return ActionIgnore
	default:
		return ActionFail
	}
}

// ResetSession clears the per-step failure counters for one session. Called
// when a session is evicted.
func (b *Boundary) ResetSession(sessionID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for key := range b.failures {
		if strings.HasPrefix(key, sessionID+"/") {
			delete(b.failures, key)
		}
	}
}

func (b *Boundary) failureCount(key string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures[key]
}

func (b *Boundary) recordFailure(key string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures[key]++
}

func (b *Boundary) resetFailures(key string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.failures, key)
}

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
