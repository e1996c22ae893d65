package state

import (
	"time"

	"github.com/akindolabs/akindo/internal/errors"
)

// Command is one atomic state mutation. Commands are produced by nodes and
// tool implementations and consumed synchronously by Apply before the next
// node runs; they are never persisted independently of the state they
// produce.
type Command interface {
	isCommand()
}

// AddMessage appends one message to the transcript. Messages are never
// reordered or deleted.
type AddMessage struct {
	Message Message
}

// UpdateCart replaces the cart and/or comparison snapshot. Producers stamp
// UpdatedAt so replaying the same command list stays deterministic.
type UpdateCart struct {
	Cart       *Cart
	Comparison *Comparison
}

// UpdateContext merges values into the session context bag key by key.
type UpdateContext struct {
	Values map[string]any
}

type SetMode struct {
	Mode Mode
}

// SetAvailableActions fully replaces the available-action set.
type SetAvailableActions struct {
	Actions AvailableActions
}

// UpdateSecurity merges security telemetry: history and patterns append,
// blocked attempts add, trust/threat set when present. TrustScore is clamped
// to [0,100] and never raised above its current value within a session.
type UpdateSecurity struct {
	ThreatLevel     *ThreatLevel
	TrustScore      *float64
	Records         []ValidationRecord
	Patterns        []string
	BlockedAttempts int
}

// UpdatePerformance adds telemetry: timings append per node, counters add.
type UpdatePerformance struct {
	NodeTimings    map[string][]time.Duration
	Retries        map[string]int
	ToolExecutions int
	CacheHits      int
	CacheMisses    int
}

// SetError sets the session error slot; a nil Err clears it.
type SetError struct {
	Err *errors.Error
}

func (AddMessage) isCommand()          {}
func (UpdateCart) isCommand()          {}
func (UpdateContext) isCommand()       {}
func (SetMode) isCommand()             {}
func (SetAvailableActions) isCommand() {}
func (UpdateSecurity) isCommand()      {}
func (UpdatePerformance) isCommand()   {}
func (SetError) isCommand()            {}
