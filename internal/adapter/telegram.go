package adapter

import (
	"context"
	"log/slog"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/akindolabs/akindo/internal/config"
	"github.com/akindolabs/akindo/internal/errors"
	"github.com/akindolabs/akindo/internal/logger"
)

// TelegramAdapter long-polls the Bot API. Each chat maps to one conversation
// thread, so the chat ID doubles as the session key.
type TelegramAdapter struct {
	token         string
	updateTimeout int
	handler       TurnHandler
	bot           *tgbotapi.BotAPI
	updates       tgbotapi.UpdatesChannel
	log           *slog.Logger
}

func NewTelegramAdapter(token string, handler TurnHandler, updateTimeout int) *TelegramAdapter {
	if updateTimeout <= 0 {
		updateTimeout = config.DefaultTelegramUpdateTimeout
	}
	return &TelegramAdapter{
		token:         token,
		updateTimeout: updateTimeout,
		handler:       handler,
		log:           logger.Component("adapter.telegram"),
	}
}

func (t *TelegramAdapter) Name() string {
	return "telegram"
}

func (t *TelegramAdapter) Start(ctx context.Context) error {
	var err error
	t.bot, err = tgbotapi.NewBotAPI(t.token)
	if err != nil {
		return errors.Integration("TELEGRAM_INIT_FAILED", "init telegram bot").WithCause(err)
	}

	t.log.Info("Telegram adapter started", "user", t.bot.Self.UserName)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = t.updateTimeout

	t.updates = t.bot.GetUpdatesChan(u)

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case update := <-t.updates:
				t.handleUpdate(ctx, update)
			}
		}
	}()

	return nil
}

func (t *TelegramAdapter) Stop(ctx context.Context) error {
	if t.bot != nil {
		t.bot.StopReceivingUpdates()
	}
	return nil
}

func (t *TelegramAdapter) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	if update.Message == nil || update.Message.Text == "" {
		return
	}

	msg := update.Message
	threadID := strconv.FormatInt(msg.Chat.ID, 10)
	userID := ""
	if msg.From != nil {
		userID = strconv.FormatInt(msg.From.ID, 10)
	}

	reply, err := t.handler(ctx, "telegram", threadID, userID, msg.Text)
	if err != nil {
		t.log.Error("Turn failed", "chat_id", threadID, "error", err)
		return
	}
	if reply == "" {
		return
	}
	if err := t.Send(ctx, threadID, reply); err != nil {
		t.log.Error("Reply delivery failed", "chat_id", threadID, "error", err)
	}
}

func (t *TelegramAdapter) Send(ctx context.Context, threadID string, content string) error {
	chatID, err := strconv.ParseInt(threadID, 10, 64)
	if err != nil {
		return errors.Validation("INVALID_CHAT_ID", "telegram thread id must be a chat id").WithCause(err)
	}

	if _, err := t.bot.Send(tgbotapi.NewMessage(chatID, content)); err != nil {
		return errors.Integration("TELEGRAM_SEND_FAILED", "send telegram message").WithCause(err)
	}

	t.log.Debug("Telegram message sent", "chat_id", threadID)
	return nil
}

func (t *TelegramAdapter) Health(ctx context.Context) error {
	if t.bot == nil {
		return errors.State("TELEGRAM_NOT_STARTED", "telegram bot not initialized")
	}
	if _, err := t.bot.GetMe(); err != nil {
		return errors.Network("TELEGRAM_UNREACHABLE", "telegram getMe failed").WithCause(err)
	}
	return nil
}
