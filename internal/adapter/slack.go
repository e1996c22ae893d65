package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"

	"github.com/akindolabs/akindo/internal/errors"
	"github.com/akindolabs/akindo/internal/logger"
)

// SlackAdapter receives messages over the Events API and replies with
// chat.postMessage. Slack expects the events endpoint to acknowledge within
// three seconds, so each turn runs in its own goroutine off a base context
// captured at Start; the HTTP request context dies the moment we ack.
type SlackAdapter struct {
	signingSecret string
	handler       TurnHandler
	server        *http.Server
	port          int
	client        *slack.Client
	baseCtx       context.Context
	log           *slog.Logger
}

func NewSlackAdapter(port int, signingSecret, botToken string, handler TurnHandler) *SlackAdapter {
	if signingSecret == "" {
		signingSecret = os.Getenv("SLACK_SIGNING_SECRET")
	}
	if botToken == "" {
		botToken = os.Getenv("SLACK_BOT_TOKEN")
	}
	return &SlackAdapter{
		signingSecret: signingSecret,
		handler:       handler,
		port:          port,
		client:        slack.New(botToken),
		log:           logger.Component("adapter.slack"),
	}
}

func (s *SlackAdapter) Name() string {
	return "slack"
}

func (s *SlackAdapter) Start(ctx context.Context) error {
	s.baseCtx = ctx

	mux := http.NewServeMux()
	mux.HandleFunc("/slack/events", s.handleEvents)

	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.port),
		Handler: mux,
	}

	go func() {
		s.log.Info("Slack adapter listening", "port", s.port)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Error("Slack server failed", "error", err)
		}
	}()

	<-ctx.Done()
	return s.server.Shutdown(context.Background())
}

func (s *SlackAdapter) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *SlackAdapter) Send(ctx context.Context, threadID string, content string) error {
	// threadID maps to the Slack channel ID.
	_, _, err := s.client.PostMessageContext(ctx, threadID, slack.MsgOptionText(content, false))
	if err != nil {
		return errors.Integration("SLACK_SEND_FAILED", "post message to slack").WithCause(err)
	}
	s.log.Debug("Slack message sent", "channel", threadID)
	return nil
}

func (s *SlackAdapter) Health(ctx context.Context) error {
	if s.server == nil {
		return errors.State("SLACK_NOT_STARTED", "slack server not started")
	}
	if _, err := s.client.AuthTestContext(ctx); err != nil {
		return errors.Network("SLACK_AUTH_FAILED", "slack auth test failed").WithCause(err)
	}
	return nil
}

func (s *SlackAdapter) handleEvents(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	sv, err := slack.NewSecretsVerifier(r.Header, s.signingSecret)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if _, err := sv.Write(body); err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	if err := sv.Ensure(); err != nil {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	event, err := slackevents.ParseEvent(json.RawMessage(body), slackevents.OptionNoVerifyToken())
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	if event.Type == slackevents.URLVerification {
		var challenge slackevents.ChallengeResponse
		if err := json.Unmarshal(body, &challenge); err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte(challenge.Challenge))
		return
	}

	if event.Type == slackevents.CallbackEvent {
		switch ev := event.InnerEvent.Data.(type) {
		case *slackevents.MessageEvent:
			// Ignore our own (and any other bot's) messages.
			if ev.BotID != "" {
				break
			}
			go s.runTurn(ev.Channel, ev.User, ev.Text)
		}
	}

	w.WriteHeader(http.StatusOK)
}

func (s *SlackAdapter) runTurn(channel, user, text string) {
	ctx := s.baseCtx
	if ctx == nil {
		ctx = context.Background()
	}

	reply, err := s.handler(ctx, "slack", channel, user, text)
	if err != nil {
		s.log.Error("Turn failed", "channel", channel, "error", err)
		return
	}
	if reply == "" {
		return
	}
	if err := s.Send(ctx, channel, reply); err != nil {
		s.log.Error("Reply delivery failed", "channel", channel, "error", err)
	}
}
