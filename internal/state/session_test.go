package state

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akindolabs/akindo/internal/errors"
)

func errTimeout() *errors.Error {
	return errors.Timeout("REQUEST_TIMEOUT", "request timed out")
}

func TestClone_IsolatesMutableStructure(t *testing.T) {
	s := NewSession("t1")
	s.Messages = append(s.Messages, NewMessage(RoleUser, "hi"))
	s.Context["locale"] = "en-US"
	s.Cart.Items = []CartItem{{ProductID: "p1", Quantity: 1}}
	s.Performance.NodeTimings["n"] = []time.Duration{time.Millisecond}
	s.AvailableActions.Reasons = map[string]string{"checkout": "cart empty"}

	c := s.Clone()
	c.Messages[0].Content = "changed"
	c.Context["locale"] = "de-DE"
	c.Cart.Items[0].Quantity = 99
	c.Performance.NodeTimings["n"][0] = time.Second
	c.AvailableActions.Reasons["checkout"] = "changed"

	assert.Equal(t, "hi", s.Messages[0].Content)
	assert.Equal(t, "en-US", s.Context["locale"])
	assert.Equal(t, 1, s.Cart.Items[0].Quantity)
	assert.Equal(t, time.Millisecond, s.Performance.NodeTimings["n"][0])
	assert.Equal(t, "cart empty", s.AvailableActions.Reasons["checkout"])
}

func TestNewSession_Defaults(t *testing.T) {
	s := NewSession("thread-9")
	assert.Equal(t, "thread-9", s.ThreadID)
	assert.Equal(t, ModeUnknown, s.Mode)
	assert.Equal(t, ThreatNone, s.Security.ThreatLevel)
	assert.Equal(t, 100.0, s.Security.TrustScore)
	assert.NotNil(t, s.Context)
	assert.NotNil(t, s.Performance.NodeTimings)
}

func TestLastByRole(t *testing.T) {
	s := NewSession("t1")
	s.Messages = []Message{
		NewMessage(RoleUser, "first"),
		NewMessage(RoleAssistant, "reply"),
		NewMessage(RoleUser, "second"),
	}

	m := s.LastByRole(RoleUser)
	require.NotNil(t, m)
	assert.Equal(t, "second", m.Content)

	assert.Nil(t, s.LastByRole(RoleTool))

	last := s.LastMessage()
	require.NotNil(t, last)
	assert.Equal(t, "second", last.Content)
}

func TestThreatLevelRank(t *testing.T) {
	assert.True(t, ThreatCritical.Rank() > ThreatElevated.Rank())
	assert.True(t, ThreatElevated.Rank() > ThreatLow.Rank())
	assert.True(t, ThreatLow.Rank() > ThreatNone.Rank())
}
