package janitor

import (
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/akindolabs/akindo/internal/agent"
	"github.com/akindolabs/akindo/internal/config"
	"github.com/akindolabs/akindo/internal/errors"
	"github.com/akindolabs/akindo/internal/logger"
)

// Janitor runs the periodic hygiene sweeps: idle sessions are evicted and
// stale circuit-breaker entries aged out, so a long-running process does not
// accumulate state for conversations that ended hours ago.
type Janitor struct {
	cron       *cron.Cron
	agent      *agent.Agent
	sessionTTL time.Duration
	log        *slog.Logger
}

func New(a *agent.Agent, cfg config.JanitorConfig) (*Janitor, error) {
	ttl, err := config.DurationOrDefault(cfg.SessionTTL, config.DefaultJanitorSessionTTL)
	if err != nil {
		return nil, errors.Validation("INVALID_SESSION_TTL", "parse session_ttl").WithCause(err)
	}

	schedule := cfg.SweepSchedule
	if schedule == "" {
		schedule = config.DefaultJanitorSweepSchedule
	}

	j := &Janitor{
		cron:       cron.New(),
		agent:      a,
		sessionTTL: ttl,
		log:        logger.Component("janitor"),
	}
	if _, err := j.cron.AddFunc(schedule, j.Sweep); err != nil {
		return nil, errors.Validation("INVALID_SWEEP_SCHEDULE", "parse sweep_schedule").WithCause(err)
	}
	return j, nil
}

func (j *Janitor) Start() {
	j.log.Info("Starting sweeps", "session_ttl", j.sessionTTL)
	j.cron.Start()
}

// Stop halts scheduling and waits for an in-flight sweep to finish.
func (j *Janitor) Stop() {
	<-j.cron.Stop().Done()
}

// Sweep runs one maintenance pass. Exported so a shutdown hook or test can
// trigger it outside the schedule.
func (j *Janitor) Sweep() {
	evicted := j.agent.EvictIdle(j.sessionTTL)
	aged := j.agent.Breakers().Sweep(j.sessionTTL)

	if len(evicted) > 0 || aged > 0 {
		j.log.Info("Sweep complete", "sessions_evicted", len(evicted), "breakers_aged_out", aged)
	}
}
