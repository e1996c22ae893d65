package agent

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/akindolabs/akindo/internal/checkpoint"
	"github.com/akindolabs/akindo/internal/errors"
	"github.com/akindolabs/akindo/internal/graph"
	"github.com/akindolabs/akindo/internal/logger"
	"github.com/akindolabs/akindo/internal/recovery"
	"github.com/akindolabs/akindo/internal/security"
	"github.com/akindolabs/akindo/internal/state"
)

// ExecContext identifies and qualifies the conversation a turn belongs to.
type ExecContext struct {
	ThreadID string
	UserID   string
	Mode     state.Mode
	Locale   string
	Currency string
}

// Options tune one call; zero values mean "no timeout, reply only".
type Options struct {
	Timeout        time.Duration
	IncludeHistory bool
}

// Metadata summarizes what one turn did.
type Metadata struct {
	ExecutionTime  time.Duration `json:"execution_time"`
	ToolsInvoked   int           `json:"tools_invoked"`
	IntentDetected string        `json:"intent_detected"`
	SecurityFlags  SecurityFlags `json:"security_flags"`
}

type SecurityFlags struct {
	ThreatLevel     state.ThreatLevel `json:"threat_level"`
	TrustScore      float64           `json:"trust_score"`
	BlockedAttempts int               `json:"blocked_attempts"`
}

// Reply is the result of one executed turn.
type Reply struct {
	Text     string
	State    *state.Session
	Messages []state.Message
	Metadata Metadata
}

// thread bundles everything owned by one conversation. The mutex serializes
// turns on the same thread id; distinct threads run concurrently.
type thread struct {
	mu         sync.Mutex
	session    *state.Session
	judge      *security.Judge
	lastActive time.Time
}

// Agent is the public entry point: it owns session isolation, checkpointing
// and the per-session security judges, and delegates turn processing to the
// graph.
type Agent struct {
	graph    *graph.Graph
	boundary *recovery.Boundary
	policy   security.Policy
	store    checkpoint.Store
	log      *slog.Logger

	mu      sync.Mutex
	threads map[string]*thread
}

func New(g *graph.Graph, boundary *recovery.Boundary, policy security.Policy, store checkpoint.Store) *Agent {
	if store == nil {
		store = checkpoint.NullStore{}
	}
	return &Agent{
		graph:    g,
		boundary: boundary,
		policy:   policy,
		store:    store,
		log:      logger.Component("agent"),
		threads:  make(map[string]*thread),
	}
}

// Execute runs one conversation turn to completion.
func (a *Agent) Execute(ctx context.Context, userText string, ec ExecContext, opts Options) (*Reply, error) {
	if ec.ThreadID == "" {
		return nil, errors.Validation("MISSING_THREAD_ID", "thread id is required")
	}
	if userText == "" {
		return nil, errors.Validation("EMPTY_INPUT", "user text is required")
	}

	th := a.thread(ec.ThreadID)
	th.mu.Lock()
	defer th.mu.Unlock()

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeoutCause(ctx, opts.Timeout,
			errors.Timeout("TURN_TIMEOUT", "turn exceeded the configured timeout"))
		defer cancel()
	}

	s, err := a.hydrate(ctx, th, ec)
	if err != nil {
		return nil, err
	}

	s = state.Apply(s, []state.Command{
		state.AddMessage{Message: state.NewMessage(state.RoleUser, userText)},
	})

	ctx = logger.WithThreadID(ctx, ec.ThreadID)
	ctx = logger.WithTraceID(ctx, ulid.Make().String())

	start := time.Now()
	startMsgs := len(s.Messages) - 1
	startTools := s.Performance.ToolExecutions

	var text string
	err = a.boundary.RunGraph("turn", s, func() error {
		var runErr error
		s, text, runErr = a.graph.Run(ctx, s, th.judge)
		return runErr
	})
	if err != nil {
		return nil, err
	}

	th.session = s
	th.lastActive = time.Now()

	if err := a.store.Put(ctx, s); err != nil {
		a.log.Warn("Checkpoint write failed", "thread", s.ThreadID, "error", err)
	}

	intent, _ := s.Context["intent"].(string)
	reply := &Reply{
		Text:     text,
		State:    s,
		Messages: s.Messages[startMsgs:],
		Metadata: Metadata{
			ExecutionTime:  time.Since(start),
			ToolsInvoked:   s.Performance.ToolExecutions - startTools,
			IntentDetected: intent,
			SecurityFlags: SecurityFlags{
				ThreatLevel:     s.Security.ThreatLevel,
				TrustScore:      s.Security.TrustScore,
				BlockedAttempts: s.Security.BlockedAttempts,
			},
		},
	}
	if opts.IncludeHistory {
		reply.Messages = s.Messages
	}
	return reply, nil
}

// thread returns the bookkeeping record for a thread id, creating it on first
// use.
func (a *Agent) thread(threadID string) *thread {
	a.mu.Lock()
	defer a.mu.Unlock()

	th, ok := a.threads[threadID]
	if !ok {
		th = &thread{
			judge:      security.NewJudge(a.policy),
			lastActive: time.Now(),
		}
		a.threads[threadID] = th
	}
	return th
}

// hydrate resolves the working session for a turn: in-memory first, then the
// checkpoint store, then a fresh session. Execution-context fields are folded
// in each turn.
func (a *Agent) hydrate(ctx context.Context, th *thread, ec ExecContext) (*state.Session, error) {
	s := th.session
	if s == nil {
		restored, err := a.store.Get(ctx, ec.ThreadID)
		if err != nil {
			a.log.Warn("Checkpoint read failed, starting fresh", "thread", ec.ThreadID, "error", err)
		} else if restored != nil {
			s = restored
		}
	}
	if s == nil {
		s = state.NewSession(ec.ThreadID)
	}

	var cmds []state.Command
	values := map[string]any{}
	if ec.Locale != "" {
		values["locale"] = ec.Locale
	}
	if ec.Currency != "" {
		values["currency"] = ec.Currency
	}
	if ec.UserID != "" {
		values["customer_id"] = ec.UserID
	}
	if len(values) > 0 {
		cmds = append(cmds, state.UpdateContext{Values: values})
	}
	if ec.Mode != "" && ec.Mode != state.ModeUnknown && s.Mode == state.ModeUnknown {
		cmds = append(cmds, state.SetMode{Mode: ec.Mode})
	}
	if len(cmds) > 0 {
		s = state.Apply(s, cmds)
	}

	// A known user id counts as an authenticated session.
	if ec.UserID != "" && !s.Authenticated {
		s = s.Clone()
		s.Authenticated = true
		s.UserID = ec.UserID
	}

	return s, nil
}

// Session returns the current snapshot for a thread, or nil when the thread
// is unknown.
func (a *Agent) Session(threadID string) *state.Session {
	a.mu.Lock()
	th, ok := a.threads[threadID]
	a.mu.Unlock()
	if !ok {
		return nil
	}

	th.mu.Lock()
	defer th.mu.Unlock()
	return th.session
}

// EvictIdle drops in-memory sessions idle for longer than maxIdle and resets
// their recovery counters. Checkpointed snapshots survive, so a returning
// thread rehydrates from the store. Returns the evicted thread ids.
func (a *Agent) EvictIdle(maxIdle time.Duration) []string {
	cutoff := time.Now().Add(-maxIdle)

	a.mu.Lock()
	var evicted []string
	for id, th := range a.threads {
		if th.lastActive.Before(cutoff) {
			delete(a.threads, id)
			evicted = append(evicted, id)
		}
	}
	a.mu.Unlock()

	for _, id := range evicted {
		a.boundary.ResetSession(id)
	}
	if len(evicted) > 0 {
		a.log.Info("Evicted idle sessions", "count", len(evicted))
	}
	return evicted
}

// Breakers exposes the circuit-breaker registry for maintenance sweeps.
func (a *Agent) Breakers() *recovery.BreakerRegistry {
	return a.boundary.Breakers()
}
