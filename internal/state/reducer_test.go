package state

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApply_EmptyListIsNoOp(t *testing.T) {
	s := NewSession("t1")
	s.Context["locale"] = "en-US"

	out := Apply(s, nil)
	assert.Equal(t, s.Context, out.Context)
	assert.Equal(t, s.Mode, out.Mode)
	assert.NotSame(t, s, out)
}

func TestApply_DoesNotMutateInput(t *testing.T) {
	s := NewSession("t1")
	cmds := []Command{
		AddMessage{Message: NewMessage(RoleUser, "hello")},
		SetMode{Mode: ModeB2B},
		UpdateContext{Values: map[string]any{"currency": "EUR"}},
	}

	out := Apply(s, cmds)

	assert.Empty(t, s.Messages)
	assert.Equal(t, ModeUnknown, s.Mode)
	assert.NotContains(t, s.Context, "currency")

	assert.Len(t, out.Messages, 1)
	assert.Equal(t, ModeB2B, out.Mode)
	assert.Equal(t, "EUR", out.Context["currency"])
}

func TestApply_Deterministic(t *testing.T) {
	msg := NewMessage(RoleUser, "I need 3 laptops")
	trust := 80.0
	level := ThreatLow
	cmds := []Command{
		AddMessage{Message: msg},
		SetMode{Mode: ModeB2C},
		UpdateContext{Values: map[string]any{"intent": "search"}},
		UpdateSecurity{TrustScore: &trust, ThreatLevel: &level, Patterns: []string{"p1"}},
		UpdatePerformance{ToolExecutions: 2},
	}

	a := Apply(NewSessionAt("t1"), cmds)
	b := Apply(NewSessionAt("t1"), cmds)

	assert.Equal(t, a.Messages, b.Messages)
	assert.Equal(t, a.Context, b.Context)
	assert.Equal(t, a.Security, b.Security)
	assert.Equal(t, a.Performance, b.Performance)
}

// NewSessionAt pins CreatedAt so two sessions compare equal field by field.
func NewSessionAt(threadID string) *Session {
	s := NewSession(threadID)
	s.CreatedAt = time.Time{}
	return s
}

func TestApply_ContextMergesDisjointKeys(t *testing.T) {
	s := NewSession("t1")
	s.Context["prior"] = true

	out := Apply(s, []Command{
		UpdateContext{Values: map[string]any{"a": 1}},
		UpdateContext{Values: map[string]any{"b": 2}},
	})

	assert.Equal(t, 1, out.Context["a"])
	assert.Equal(t, 2, out.Context["b"])
	assert.Equal(t, true, out.Context["prior"])
}

func TestApply_ContextOverwritesSameKey(t *testing.T) {
	s := NewSession("t1")
	out := Apply(s, []Command{
		UpdateContext{Values: map[string]any{"intent": "search"}},
		UpdateContext{Values: map[string]any{"intent": "checkout"}},
	})
	assert.Equal(t, "checkout", out.Context["intent"])
}

func TestApply_AvailableActionsReplaced(t *testing.T) {
	s := NewSession("t1")
	s.AvailableActions = AvailableActions{
		Enabled:  []string{"search_products", "checkout"},
		Disabled: []string{"track_order"},
		Reasons:  map[string]string{"track_order": "not authenticated"},
	}

	out := Apply(s, []Command{
		SetAvailableActions{Actions: AvailableActions{Enabled: []string{"search_products"}}},
	})

	assert.Equal(t, []string{"search_products"}, out.AvailableActions.Enabled)
	assert.Empty(t, out.AvailableActions.Disabled)
	assert.Empty(t, out.AvailableActions.Reasons)
}

func TestApply_MessagesAppendOnly(t *testing.T) {
	s := NewSession("t1")
	first := NewMessage(RoleUser, "one")
	second := NewMessage(RoleAssistant, "two")

	out := Apply(s, []Command{AddMessage{Message: first}})
	out = Apply(out, []Command{AddMessage{Message: second}})

	require.Len(t, out.Messages, 2)
	assert.Equal(t, "one", out.Messages[0].Content)
	assert.Equal(t, "two", out.Messages[1].Content)
}

func TestApply_CartReplacedWithStamp(t *testing.T) {
	s := NewSession("t1")
	stamp := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	cart := &Cart{
		Items:     []CartItem{{ProductID: "p1", Name: "Laptop", Quantity: 2, UnitPrice: 999}},
		Total:     1998,
		UpdatedAt: stamp,
	}

	out := Apply(s, []Command{UpdateCart{Cart: cart}})

	require.Len(t, out.Cart.Items, 1)
	assert.Equal(t, 1998.0, out.Cart.Total)
	assert.Equal(t, stamp, out.Cart.UpdatedAt)
	// Comparison untouched when not present on the command.
	assert.Empty(t, out.Comparison.Items)
}

func TestApply_TrustScoreClampedAndMonotonic(t *testing.T) {
	s := NewSession("t1")

	lower := 60.0
	out := Apply(s, []Command{UpdateSecurity{TrustScore: &lower}})
	assert.Equal(t, 60.0, out.Security.TrustScore)

	// A higher score never raises trust within a session.
	higher := 90.0
	out = Apply(out, []Command{UpdateSecurity{TrustScore: &higher}})
	assert.Equal(t, 60.0, out.Security.TrustScore)

	negative := -20.0
	out = Apply(out, []Command{UpdateSecurity{TrustScore: &negative}})
	assert.Equal(t, 0.0, out.Security.TrustScore)
}

func TestApply_ThreatLevelNeverDowngrades(t *testing.T) {
	s := NewSession("t1")

	critical := ThreatCritical
	out := Apply(s, []Command{UpdateSecurity{ThreatLevel: &critical}})
	assert.Equal(t, ThreatCritical, out.Security.ThreatLevel)

	low := ThreatLow
	out = Apply(out, []Command{UpdateSecurity{ThreatLevel: &low}})
	assert.Equal(t, ThreatCritical, out.Security.ThreatLevel)
}

func TestApply_SecurityHistoryAppends(t *testing.T) {
	s := NewSession("t1")
	out := Apply(s, []Command{
		UpdateSecurity{Records: []ValidationRecord{{Direction: "input", Valid: true}}},
		UpdateSecurity{Records: []ValidationRecord{{Direction: "output", Valid: false}}, BlockedAttempts: 1},
		UpdateSecurity{Patterns: []string{"sql_meta", "sql_meta"}},
	})

	assert.Len(t, out.Security.ValidationHistory, 2)
	assert.Equal(t, 1, out.Security.BlockedAttempts)
	assert.Equal(t, []string{"sql_meta"}, out.Security.DetectedPatterns)
}

func TestApply_PerformanceAdditive(t *testing.T) {
	s := NewSession("t1")
	out := Apply(s, []Command{
		UpdatePerformance{
			NodeTimings:    map[string][]time.Duration{"detect_intent": {5 * time.Millisecond}},
			ToolExecutions: 1,
			CacheHits:      2,
		},
		UpdatePerformance{
			NodeTimings: map[string][]time.Duration{"detect_intent": {7 * time.Millisecond}},
			CacheMisses: 1,
		},
	})

	assert.Equal(t, []time.Duration{5 * time.Millisecond, 7 * time.Millisecond}, out.Performance.NodeTimings["detect_intent"])
	assert.Equal(t, 1, out.Performance.ToolExecutions)
	assert.Equal(t, 2, out.Performance.CacheHits)
	assert.Equal(t, 1, out.Performance.CacheMisses)
}

func TestApply_SetErrorAndClear(t *testing.T) {
	s := NewSession("t1")

	out := Apply(s, []Command{SetError{Err: errTimeout()}})
	require.NotNil(t, out.Err)

	out = Apply(out, []Command{SetError{Err: nil}})
	assert.Nil(t, out.Err)
}

func TestApply_SetModeIgnoresEmpty(t *testing.T) {
	s := NewSession("t1")
	out := Apply(s, []Command{SetMode{Mode: ModeB2B}, SetMode{Mode: ""}})
	assert.Equal(t, ModeB2B, out.Mode)
}
