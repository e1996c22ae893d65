package recovery

import (
	"sync"
	"time"

	"github.com/akindolabs/akindo/internal/errors"
)

type breakerState int

const (
	stateClosed breakerState = iota
	stateOpen
	stateHalfOpen
)

type breaker struct {
	state    breakerState
	failures int
	openedAt time.Time
}

// KeyFunc derives the breaker key from a failure. Keying by category and code
// trips the breaker for one failing operation without cutting off unrelated
// ones; keying by category alone is coarser.
type KeyFunc func(e *errors.Error) string

func CategoryCodeKey(e *errors.Error) string {
	return string(e.Category) + ":" + e.Code
}

func CategoryKey(e *errors.Error) string {
	return string(e.Category)
}

// BreakerRegistry holds one circuit breaker per failure key. After Threshold
// consecutive failures the breaker opens; once ResetWindow has passed a
// single trial request is let through, and its outcome closes or re-opens
// the circuit.
type BreakerRegistry struct {
	mu        sync.Mutex
	breakers  map[string]*breaker
	threshold int
	reset     time.Duration
	now       func() time.Time
}

func NewBreakerRegistry(threshold int, reset time.Duration) *BreakerRegistry {
	return &BreakerRegistry{
		breakers:  make(map[string]*breaker),
		threshold: threshold,
		reset:     reset,
		now:       time.Now,
	}
}

// Allow reports whether a request for this key may proceed.
func (r *BreakerRegistry) Allow(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	br, ok := r.breakers[key]
	if !ok {
		return true
	}

	switch br.state {
	case stateClosed:
		return true
	case stateOpen:
		if r.now().Sub(br.openedAt) >= r.reset {
			br.state = stateHalfOpen
			return true
		}
		return false
	case stateHalfOpen:
		// One trial in flight already.
		return false
	}
	return true
}

func (r *BreakerRegistry) RecordSuccess(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if br, ok := r.breakers[key]; ok {
		br.state = stateClosed
		br.failures = 0
	}
}

func (r *BreakerRegistry) RecordFailure(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	br, ok := r.breakers[key]
	if !ok {
		br = &breaker{}
		r.breakers[key] = br
	}

	if br.state == stateHalfOpen {
		br.state = stateOpen
		br.openedAt = r.now()
		return
	}

	br.failures++
	if br.failures >= r.threshold {
		br.state = stateOpen
		br.openedAt = r.now()
	}
}

// Open reports whether the key's circuit is currently open.
func (r *BreakerRegistry) Open(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	br, ok := r.breakers[key]
	return ok && br.state == stateOpen && r.now().Sub(br.openedAt) < r.reset
}

// Sweep drops breakers that have sat closed or expired for longer than age.
// The janitor calls this so the registry does not grow without bound.
func (r *BreakerRegistry) Sweep(age time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	var removed int
	for key, br := range r.breakers {
		if br.state == stateClosed && br.failures == 0 {
			delete(r.breakers, key)
			removed++
			continue
		}
		if br.state == stateOpen && r.now().Sub(br.openedAt) > age {
			delete(r.breakers, key)
			removed++
		}
	}
	return removed
}
