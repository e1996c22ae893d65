package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/cobra"
)

type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Models     ModelsConfig     `koanf:"models"`
	Security   SecurityConfig   `koanf:"security"`
	Recovery   RecoveryConfig   `koanf:"recovery"`
	Graph      GraphConfig      `koanf:"graph"`
	Tools      ToolsConfig      `koanf:"tools"`
	Checkpoint CheckpointConfig `koanf:"checkpoint"`
	Janitor    JanitorConfig    `koanf:"janitor"`
	Adapters   AdaptersConfig   `koanf:"adapters"`
}

type ServerConfig struct {
	LogLevel        string `koanf:"log_level"`
	ShutdownTimeout string `koanf:"shutdown_timeout"`
}

type ModelsConfig struct {
	Default             string          `koanf:"default"`
	Fallback            string          `koanf:"fallback"`
	MaxFallbackAttempts int             `koanf:"max_fallback_attempts"`
	Registry            []ModelRegistry `koanf:"registry"`
}

type ModelRegistry struct {
	Name           string `koanf:"name"`
	Provider       string `koanf:"provider"`
	BaseURL        string `koanf:"base_url"`
	APIKey         string `koanf:"api_key"`
	RequestTimeout string `koanf:"request_timeout"`
}

// SecurityConfig holds the validation-policy thresholds. These are policy,
// not architecture: deployments tune them per market.
type SecurityConfig struct {
	MaxConsumerQuantity int     `koanf:"max_consumer_quantity"`
	MaxBusinessQuantity int     `koanf:"max_business_quantity"`
	MaxDiscountPercent  float64 `koanf:"max_discount_percent"`
	MinCartValue        float64 `koanf:"min_cart_value"`
	MaxCartValue        float64 `koanf:"max_cart_value"`
	RateWindow          string  `koanf:"rate_window"`
	MaxConsumerMessages int     `koanf:"max_consumer_messages"`
	MaxBusinessMessages int     `koanf:"max_business_messages"`
	EscalationThreshold int     `koanf:"escalation_threshold"`
}

type RecoveryConfig struct {
	MaxNodeFailures    int     `koanf:"max_node_failures"`
	MaxGraphFailures   int     `koanf:"max_graph_failures"`
	RetryMax           int     `koanf:"retry_max"`
	RetryBaseDelay     string  `koanf:"retry_base_delay"`
	RetryMultiplier    float64 `koanf:"retry_multiplier"`
	RetryMaxDelay      string  `koanf:"retry_max_delay"`
	BreakerThreshold   int     `koanf:"breaker_threshold"`
	BreakerResetWindow string  `koanf:"breaker_reset_window"`
	BreakerKeying      string  `koanf:"breaker_keying"`
	IncludeTechnical   bool    `koanf:"include_technical"`
}

type GraphConfig struct {
	MaxMessagesPerTurn    int     `koanf:"max_messages_per_turn"`
	IntentConfidenceFloor float64 `koanf:"intent_confidence_floor"`
	ComparisonCapacity    int     `koanf:"comparison_capacity"`
	MaxSuggestions        int     `koanf:"max_suggestions"`
}

type ToolsConfig struct {
	DefinitionPaths []string `koanf:"definition_paths"`
}

type CheckpointConfig struct {
	Enabled bool   `koanf:"enabled"`
	Path    string `koanf:"path"`
}

type JanitorConfig struct {
	Enabled       bool   `koanf:"enabled"`
	SweepSchedule string `koanf:"sweep_schedule"`
	SessionTTL    string `koanf:"session_ttl"`
}

type AdaptersConfig struct {
	Slack    SlackConfig    `koanf:"slack"`
	Telegram TelegramConfig `koanf:"telegram"`
}

type SlackConfig struct {
	Enabled       bool   `koanf:"enabled"`
	Port          int    `koanf:"port"`
	BotToken      string `koanf:"bot_token"`
	SigningSecret string `koanf:"signing_secret"`
}

type TelegramConfig struct {
	Enabled       bool   `koanf:"enabled"`
	BotToken      string `koanf:"bot_token"`
	UpdateTimeout int    `koanf:"update_timeout"`
}

const (
	DefaultServerLogLevel        = "info"
	DefaultServerShutdownTimeout = "5s"

	DefaultModelDefault             = "gpt-4o-mini"
	DefaultModelFallback            = "claude-3-5-haiku-latest"
	DefaultModelMaxFallbackAttempts = 2
	DefaultModelRequestTimeout      = "60s"

	DefaultSecurityMaxConsumerQuantity = 100
	DefaultSecurityMaxBusinessQuantity = 10000
	DefaultSecurityMaxDiscountPercent  = 50.0
	DefaultSecurityMinCartValue        = 0.0
	DefaultSecurityMaxCartValue        = 250000.0
	DefaultSecurityRateWindow          = "1m"
	DefaultSecurityMaxConsumerMessages = 20
	DefaultSecurityMaxBusinessMessages = 40
	DefaultSecurityEscalationThreshold = 6

	DefaultRecoveryMaxNodeFailures    = 3
	DefaultRecoveryMaxGraphFailures   = 2
	DefaultRecoveryRetryMax           = 3
	DefaultRecoveryRetryBaseDelay     = "100ms"
	DefaultRecoveryRetryMultiplier    = 2.0
	DefaultRecoveryRetryMaxDelay      = "5s"
	DefaultRecoveryBreakerThreshold   = 5
	DefaultRecoveryBreakerResetWindow = "30s"
	DefaultRecoveryBreakerKeying      = "category_code"

	DefaultGraphMaxMessagesPerTurn    = 12
	DefaultGraphIntentConfidenceFloor = 0.4
	DefaultGraphComparisonCapacity    = 4
	DefaultGraphMaxSuggestions        = 3

	DefaultJanitorSweepSchedule = "@every 5m"
	DefaultJanitorSessionTTL    = "30m"

	DefaultTelegramUpdateTimeout = 60
	DefaultSlackPort             = 3000
)

func Load(cmd *cobra.Command) (*Config, error) {
	k := koanf.New(".")

	defaults := map[string]interface{}{
		"server.log_level":             DefaultServerLogLevel,
		"server.shutdown_timeout":      DefaultServerShutdownTimeout,
		"models.default":               DefaultModelDefault,
		"models.fallback":              DefaultModelFallback,
		"models.max_fallback_attempts": DefaultModelMaxFallbackAttempts,
		"models.registry": []ModelRegistry{
			{Name: DefaultModelDefault, Provider: "openai"},
			{Name: DefaultModelFallback, Provider: "anthropic"},
		},
		"security.max_consumer_quantity":   DefaultSecurityMaxConsumerQuantity,
		"security.max_business_quantity":   DefaultSecurityMaxBusinessQuantity,
		"security.max_discount_percent":    DefaultSecurityMaxDiscountPercent,
		"security.min_cart_value":          DefaultSecurityMinCartValue,
		"security.max_cart_value":          DefaultSecurityMaxCartValue,
		"security.rate_window":             DefaultSecurityRateWindow,
		"security.max_consumer_messages":   DefaultSecurityMaxConsumerMessages,
		"security.max_business_messages":   DefaultSecurityMaxBusinessMessages,
		"security.escalation_threshold":    DefaultSecurityEscalationThreshold,
		"recovery.max_node_failures":       DefaultRecoveryMaxNodeFailures,
		"recovery.max_graph_failures":      DefaultRecoveryMaxGraphFailures,
		"recovery.retry_max":               DefaultRecoveryRetryMax,
		"recovery.retry_base_delay":        DefaultRecoveryRetryBaseDelay,
		"recovery.retry_multiplier":        DefaultRecoveryRetryMultiplier,
		"recovery.retry_max_delay":         DefaultRecoveryRetryMaxDelay,
		"recovery.breaker_threshold":       DefaultRecoveryBreakerThreshold,
		"recovery.breaker_reset_window":    DefaultRecoveryBreakerResetWindow,
		"recovery.breaker_keying":          DefaultRecoveryBreakerKeying,
		"graph.max_messages_per_turn":      DefaultGraphMaxMessagesPerTurn,
		"graph.intent_confidence_floor":    DefaultGraphIntentConfidenceFloor,
		"graph.comparison_capacity":        DefaultGraphComparisonCapacity,
		"graph.max_suggestions":            DefaultGraphMaxSuggestions,
		"checkpoint.enabled":               false,
		"checkpoint.path":                  filepath.Join(os.Getenv("HOME"), ".akindo", "checkpoints"),
		"janitor.enabled":                  true,
		"janitor.sweep_schedule":           DefaultJanitorSweepSchedule,
		"janitor.session_ttl":              DefaultJanitorSessionTTL,
		"adapters.slack.port":              DefaultSlackPort,
		"adapters.telegram.update_timeout": DefaultTelegramUpdateTimeout,
	}
	for key, value := range defaults {
		k.Set(key, value)
	}

	configPath := ""
	if cmd != nil {
		if flag := cmd.Flags().Lookup("config"); flag != nil {
			configPath = strings.TrimSpace(flag.Value.String())
		}
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, err
		}
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			globalPath := filepath.Join(home, ".akindo", "config.yaml")
			if err := k.Load(file.Provider(globalPath), yaml.Parser()); err != nil {
				slog.Debug("Global config not found or invalid", "path", globalPath, "error", err)
			}
		}
	}

	k.Load(env.Provider("AKINDO_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "AKINDO_")), "_", ".", -1)
	}), nil)

	if cmd != nil {
		k.Load(posflag.Provider(cmd.Flags(), ".", k), nil)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	for i, m := range cfg.Models.Registry {
		if m.Provider == "" {
			cfg.Models.Registry[i].Provider = "openai"
		}
	}

	// Inject standard env credentials when the registry omits them.
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		for i, m := range cfg.Models.Registry {
			if m.Provider == "openai" && m.APIKey == "" {
				cfg.Models.Registry[i].APIKey = key
			}
		}
	}
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		for i, m := range cfg.Models.Registry {
			if m.Provider == "anthropic" && m.APIKey == "" {
				cfg.Models.Registry[i].APIKey = key
			}
		}
	}

	return &cfg, nil
}
