package adapter

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/akindolabs/akindo/internal/config"
	"github.com/akindolabs/akindo/internal/errors"
	"github.com/akindolabs/akindo/internal/logger"
)

type ManagerOptions struct {
	IncludeCLI          bool
	RequireSlackSecrets bool
}

// Manager builds the adapter set from configuration and owns its lifecycle.
type Manager struct {
	mu      sync.RWMutex
	inputs  []InputAdapter
	outputs []OutputAdapter
	started bool
}

func NewManager(cfg config.AdaptersConfig, handler TurnHandler, opts ManagerOptions) (*Manager, error) {
	m := &Manager{}

	if opts.IncludeCLI {
		m.outputs = append(m.outputs, NewCLIAdapter())
	}

	if cfg.Slack.Enabled {
		if opts.RequireSlackSecrets {
			if strings.TrimSpace(cfg.Slack.SigningSecret) == "" && strings.TrimSpace(os.Getenv("SLACK_SIGNING_SECRET")) == "" {
				return nil, errors.Validation("SLACK_SECRET_REQUIRED",
					"adapters.slack.signing_secret is required when the slack adapter is enabled")
			}
		}
		if strings.TrimSpace(cfg.Slack.BotToken) == "" && strings.TrimSpace(os.Getenv("SLACK_BOT_TOKEN")) == "" {
			return nil, errors.Validation("SLACK_TOKEN_REQUIRED",
				"adapters.slack.bot_token is required when the slack adapter is enabled")
		}

		slackAdapter := NewSlackAdapter(cfg.Slack.Port, cfg.Slack.SigningSecret, cfg.Slack.BotToken, handler)
		m.inputs = append(m.inputs, slackAdapter)
		m.outputs = append(m.outputs, slackAdapter)
	}

	if cfg.Telegram.Enabled {
		token := strings.TrimSpace(cfg.Telegram.BotToken)
		if token == "" {
			token = strings.TrimSpace(os.Getenv("TELEGRAM_BOT_TOKEN"))
		}
		if token == "" {
			return nil, errors.Validation("TELEGRAM_TOKEN_REQUIRED",
				"adapters.telegram.bot_token is required when the telegram adapter is enabled")
		}

		telegramAdapter := NewTelegramAdapter(token, handler, cfg.Telegram.UpdateTimeout)
		m.inputs = append(m.inputs, telegramAdapter)
		m.outputs = append(m.outputs, telegramAdapter)
	}

	m.outputs = dedupeOutputs(m.outputs)
	return m, nil
}

func (m *Manager) InputAdapters() []InputAdapter {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]InputAdapter, len(m.inputs))
	copy(out, m.inputs)
	return out
}

func (m *Manager) OutputAdapters() []OutputAdapter {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]OutputAdapter, len(m.outputs))
	copy(out, m.outputs)
	return out
}

// Start launches every input adapter on its own goroutine. Cancelling ctx
// stops them all.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return
	}
	m.started = true
	inputs := make([]InputAdapter, len(m.inputs))
	copy(inputs, m.inputs)
	m.mu.Unlock()

	log := logger.Component("adapter")
	for _, input := range inputs {
		adapter := input
		go func() {
			log.Info("Starting input adapter", "adapter", adapter.Name())
			if err := adapter.Start(ctx); err != nil && ctx.Err() == nil {
				log.Error("Input adapter stopped with error", "adapter", adapter.Name(), "error", err)
			}
		}()
	}
}

func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	if !m.started {
		m.mu.Unlock()
		return nil
	}
	m.started = false
	inputs := make([]InputAdapter, len(m.inputs))
	copy(inputs, m.inputs)
	m.mu.Unlock()

	var errs []string
	for _, input := range inputs {
		if err := input.Stop(ctx); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", input.Name(), err))
		}
	}
	if len(errs) > 0 {
		return errors.Integration("ADAPTER_STOP_FAILED", strings.Join(errs, "; "))
	}
	return nil
}

func (m *Manager) Health(ctx context.Context) error {
	m.mu.RLock()
	inputs := make([]InputAdapter, len(m.inputs))
	copy(inputs, m.inputs)
	outputs := make([]OutputAdapter, len(m.outputs))
	copy(outputs, m.outputs)
	m.mu.RUnlock()

	for _, input := range inputs {
		if err := input.Health(ctx); err != nil {
			return errors.Wrap(err, fmt.Sprintf("input adapter %s unhealthy", input.Name()))
		}
	}
	for _, output := range outputs {
		if err := output.Health(ctx); err != nil {
			return errors.Wrap(err, fmt.Sprintf("output adapter %s unhealthy", output.Name()))
		}
	}
	return nil
}

// An adapter that is both input and output registers once per role; dedupe
// by name so broadcasts do not double-send.
func dedupeOutputs(adapters []OutputAdapter) []OutputAdapter {
	if len(adapters) == 0 {
		return nil
	}
	indexByName := make(map[string]int, len(adapters))
	ordered := make([]OutputAdapter, 0, len(adapters))
	for _, a := range adapters {
		if a == nil {
			continue
		}
		name := strings.TrimSpace(a.Name())
		if name == "" {
			continue
		}
		if idx, exists := indexByName[name]; exists {
			ordered[idx] = a
			continue
		}
		indexByName[name] = len(ordered)
		ordered = append(ordered, a)
	}
	return ordered
}
