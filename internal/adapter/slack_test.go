package adapter

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const slackTestSecret = "test-signing-secret"

func signedSlackRequest(t *testing.T, secret, body string) *http.Request {
	t.Helper()

	ts := strconv.FormatInt(time.Now().Unix(), 10)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte("v0:" + ts + ":" + body))

	req := httptest.NewRequest(http.MethodPost, "/slack/events", strings.NewReader(body))
	req.Header.Set("X-Slack-Request-Timestamp", ts)
	req.Header.Set("X-Slack-Signature", "v0="+hex.EncodeToString(mac.Sum(nil)))
	return req
}

func TestSlackAdapter_URLVerificationChallenge(t *testing.T) {
	a := NewSlackAdapter(0, slackTestSecret, "xoxb-test", echoHandler)

	body := `{"type":"url_verification","challenge":"chal-123"}`
	rec := httptest.NewRecorder()
	a.handleEvents(rec, signedSlackRequest(t, slackTestSecret, body))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "chal-123", rec.Body.String())
}

func TestSlackAdapter_RejectsBadSignature(t *testing.T) {
	a := NewSlackAdapter(0, slackTestSecret, "xoxb-test", echoHandler)

	body := `{"type":"url_verification","challenge":"chal-123"}`
	rec := httptest.NewRecorder()
	a.handleEvents(rec, signedSlackRequest(t, "wrong-secret", body))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSlackAdapter_MessageEventReachesHandler(t *testing.T) {
	got := make(chan [3]string, 1)
	handler := func(ctx context.Context, source, threadID, userID, text string) (string, error) {
		got <- [3]string{threadID, userID, text}
		// An empty reply suppresses the outbound post, keeping the test
		// off the network.
		return "", nil
	}
	a := NewSlackAdapter(0, slackTestSecret, "xoxb-test", handler)

	body := `{"type":"event_callback","event":{"type":"message","channel":"C042","user":"U7","text":"find me a laptop","ts":"1700000000.000100"}}`
	rec := httptest.NewRecorder()
	a.handleEvents(rec, signedSlackRequest(t, slackTestSecret, body))
	assert.Equal(t, http.StatusOK, rec.Code)

	select {
	case turn := <-got:
		assert.Equal(t, "C042", turn[0])
		assert.Equal(t, "U7", turn[1])
		assert.Equal(t, "find me a laptop", turn[2])
	case <-time.After(2 * time.Second):
		t.Fatal("handler was never invoked")
	}
}

func TestSlackAdapter_IgnoresBotMessages(t *testing.T) {
	invoked := make(chan struct{}, 1)
	handler := func(ctx context.Context, source, threadID, userID, text string) (string, error) {
		invoked <- struct{}{}
		return "", nil
	}
	a := NewSlackAdapter(0, slackTestSecret, "xoxb-test", handler)

	body := `{"type":"event_callback","event":{"type":"message","channel":"C042","bot_id":"B9","text":"echo","ts":"1700000000.000200"}}`
	rec := httptest.NewRecorder()
	a.handleEvents(rec, signedSlackRequest(t, slackTestSecret, body))
	require.Equal(t, http.StatusOK, rec.Code)

	select {
	case <-invoked:
		t.Fatal("bot messages must not start a turn")
	case <-time.After(100 * time.Millisecond):
	}
}
