package adapter

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akindolabs/akindo/internal/config"
	"github.com/akindolabs/akindo/internal/errors"
)

func echoHandler(ctx context.Context, source, threadID, userID, text string) (string, error) {
	return text, nil
}

func TestNewManager_RequiresSlackToken(t *testing.T) {
	t.Setenv("SLACK_BOT_TOKEN", "")
	t.Setenv("SLACK_SIGNING_SECRET", "")

	_, err := NewManager(config.AdaptersConfig{
		Slack: config.SlackConfig{Enabled: true},
	}, echoHandler, ManagerOptions{})

	e, _ := errors.As(err)
	require.NotNil(t, e)
	assert.Equal(t, "SLACK_TOKEN_REQUIRED", e.Code)
}

func TestNewManager_RequiresSlackSecretWhenAsked(t *testing.T) {
	t.Setenv("SLACK_BOT_TOKEN", "")
	t.Setenv("SLACK_SIGNING_SECRET", "")

	_, err := NewManager(config.AdaptersConfig{
		Slack: config.SlackConfig{Enabled: true, BotToken: "xoxb-test"},
	}, echoHandler, ManagerOptions{RequireSlackSecrets: true})

	e, _ := errors.As(err)
	require.NotNil(t, e)
	assert.Equal(t, "SLACK_SECRET_REQUIRED", e.Code)
}

func TestNewManager_RequiresTelegramToken(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "")

	_, err := NewManager(config.AdaptersConfig{
		Telegram: config.TelegramConfig{Enabled: true},
	}, echoHandler, ManagerOptions{})

	e, _ := errors.As(err)
	require.NotNil(t, e)
	assert.Equal(t, "TELEGRAM_TOKEN_REQUIRED", e.Code)
}

func TestNewManager_BuildsConfiguredAdapters(t *testing.T) {
	m, err := NewManager(config.AdaptersConfig{
		Slack:    config.SlackConfig{Enabled: true, Port: 3000, BotToken: "xoxb-test", SigningSecret: "sec"},
		Telegram: config.TelegramConfig{Enabled: true, BotToken: "12345:abc"},
	}, echoHandler, ManagerOptions{IncludeCLI: true})
	require.NoError(t, err)

	var inputNames []string
	for _, in := range m.InputAdapters() {
		inputNames = append(inputNames, in.Name())
	}
	assert.Equal(t, []string{"slack", "telegram"}, inputNames)

	// Slack and telegram serve both roles but register once per name.
	var outputNames []string
	for _, out := range m.OutputAdapters() {
		outputNames = append(outputNames, out.Name())
	}
	assert.Equal(t, []string{"cli", "slack", "telegram"}, outputNames)
}

func TestNewManager_EmptyConfigHasNoInputs(t *testing.T) {
	m, err := NewManager(config.AdaptersConfig{}, echoHandler, ManagerOptions{})
	require.NoError(t, err)

	assert.Empty(t, m.InputAdapters())
	assert.Empty(t, m.OutputAdapters())
	assert.NoError(t, m.Stop(context.Background()))
}

func TestNullAdapter(t *testing.T) {
	a := NewNullAdapter("")
	assert.Equal(t, "null", a.Name())
	assert.NoError(t, a.Send(context.Background(), "t1", "hello"))
	assert.NoError(t, a.Health(context.Background()))
}

func TestCLIAdapter_SendWritesContent(t *testing.T) {
	var buf bytes.Buffer
	a := NewCLIAdapterTo(&buf)

	require.NoError(t, a.Send(context.Background(), "t1", "Here are two laptops worth a look."))
	assert.Contains(t, buf.String(), "Here are two laptops worth a look.")
}

func TestTelegramAdapter_SendRejectsBadChatID(t *testing.T) {
	a := NewTelegramAdapter("12345:abc", echoHandler, 0)

	err := a.Send(context.Background(), "not-a-chat-id", "hi")
	e, _ := errors.As(err)
	require.NotNil(t, e)
	assert.Equal(t, "INVALID_CHAT_ID", e.Code)
}

func TestTelegramAdapter_HealthBeforeStart(t *testing.T) {
	a := NewTelegramAdapter("12345:abc", echoHandler, 0)

	err := a.Health(context.Background())
	e, _ := errors.As(err)
	require.NotNil(t, e)
	assert.Equal(t, "TELEGRAM_NOT_STARTED", e.Code)
}
