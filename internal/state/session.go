package state

import (
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/akindolabs/akindo/internal/errors"
)

// Mode is the shopping context for a session. It may flip between turns as
// evidence accrues, but only ever through a SetMode command.
type Mode string

const (
	ModeUnknown Mode = "unknown"
	ModeB2C     Mode = "b2c"
	ModeB2B     Mode = "b2b"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
	RoleSystem    Role = "system"
)

// ToolCall is a structured tool-invocation request carried on an assistant
// message.
type ToolCall struct {
	ID   string         `json:"id"`
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

type Message struct {
	ID         string         `json:"id"`
	Role       Role           `json:"role"`
	Content    string         `json:"content"`
	ToolCalls  []ToolCall     `json:"tool_calls,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

func NewMessage(role Role, content string) Message {
	return Message{
		ID:        ulid.Make().String(),
		Role:      role,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
}

type CartItem struct {
	ProductID string  `json:"product_id"`
	Name      string  `json:"name"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
}

type Cart struct {
	Items     []CartItem `json:"items"`
	Total     float64    `json:"total"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func (c Cart) IsEmpty() bool { return len(c.Items) == 0 }

type ComparisonItem struct {
	ProductID string  `json:"product_id"`
	Name      string  `json:"name"`
	UnitPrice float64 `json:"unit_price"`
}

type Comparison struct {
	Items     []ComparisonItem `json:"items"`
	UpdatedAt time.Time        `json:"updated_at"`
}

type ThreatLevel string

const (
	ThreatNone     ThreatLevel = "none"
	ThreatLow      ThreatLevel = "low"
	ThreatElevated ThreatLevel = "elevated"
	ThreatCritical ThreatLevel = "critical"
)

// rank orders threat levels for monotonic escalation checks.
func (t ThreatLevel) Rank() int {
	switch t {
	case ThreatLow:
		return 1
	case ThreatElevated:
		return 2
	case ThreatCritical:
		return 3
	default:
		return 0
	}
}

type ValidationRecord struct {
	At        time.Time `json:"at"`
	Direction string    `json:"direction"`
	Valid     bool      `json:"valid"`
	Category  string    `json:"category,omitempty"`
	Severity  string    `json:"severity,omitempty"`
}

type Security struct {
	ThreatLevel       ThreatLevel        `json:"threat_level"`
	TrustScore        float64            `json:"trust_score"`
	ValidationHistory []ValidationRecord `json:"validation_history"`
	DetectedPatterns  []string           `json:"detected_patterns"`
	BlockedAttempts   int                `json:"blocked_attempts"`
}

type Performance struct {
	NodeTimings    map[string][]time.Duration `json:"node_timings"`
	Retries        map[string]int             `json:"retries,omitempty"`
	ToolExecutions int                        `json:"tool_executions"`
	CacheHits      int                        `json:"cache_hits"`
	CacheMisses    int                        `json:"cache_misses"`
}

// AvailableActions is recomputed each turn from cart/mode/permission state
// and fully replaced, never merged.
type AvailableActions struct {
	Enabled   []string          `json:"enabled"`
	Disabled  []string          `json:"disabled"`
	Suggested []string          `json:"suggested"`
	Reasons   map[string]string `json:"reasons,omitempty"`
}

// Session is the canonical record of one conversation thread. It is mutated
// only through Apply; everything else sees an immutable value.
type Session struct {
	ThreadID         string           `json:"thread_id"`
	UserID           string           `json:"user_id,omitempty"`
	Authenticated    bool             `json:"authenticated"`
	Mode             Mode             `json:"mode"`
	Messages         []Message        `json:"messages"`
	Context          map[string]any   `json:"context"`
	Cart             Cart             `json:"cart"`
	Comparison       Comparison       `json:"comparison"`
	Security         Security         `json:"security"`
	Performance      Performance      `json:"performance"`
	AvailableActions AvailableActions `json:"available_actions"`
	Err              *errors.Error    `json:"-"`
	CreatedAt        time.Time        `json:"created_at"`
}

const initialTrustScore = 100

func NewSession(threadID string) *Session {
	return &Session{
		ThreadID: threadID,
		Mode:     ModeUnknown,
		Context:  make(map[string]any),
		Security: Security{
			ThreatLevel: ThreatNone,
			TrustScore:  initialTrustScore,
		},
		Performance: Performance{
			NodeTimings: make(map[string][]time.Duration),
		},
		CreatedAt: time.Now().UTC(),
	}
}

// LastMessage returns the most recent message or nil.
func (s *Session) LastMessage() *Message {
	if len(s.Messages) == 0 {
		return nil
	}
	return &s.Messages[len(s.Messages)-1]
}

// LastByRole returns the most recent message with the given role or nil.
func (s *Session) LastByRole(role Role) *Message {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Role == role {
			return &s.Messages[i]
		}
	}
	return nil
}

// Clone deep-copies the session so reducers and snapshots never share
// mutable structure with the original.
func (s *Session) Clone() *Session {
	out := *s

	out.Messages = make([]Message, len(s.Messages))
	copy(out.Messages, s.Messages)
	for i := range out.Messages {
		out.Messages[i].ToolCalls = cloneToolCalls(s.Messages[i].ToolCalls)
		out.Messages[i].Metadata = cloneMap(s.Messages[i].Metadata)
	}

	out.Context = cloneMap(s.Context)

	out.Cart.Items = make([]CartItem, len(s.Cart.Items))
	copy(out.Cart.Items, s.Cart.Items)

	out.Comparison.Items = make([]ComparisonItem, len(s.Comparison.Items))
	copy(out.Comparison.Items, s.Comparison.Items)

	out.Security.ValidationHistory = append([]ValidationRecord(nil), s.Security.ValidationHistory...)
	out.Security.DetectedPatterns = append([]string(nil), s.Security.DetectedPatterns...)

	out.Performance.NodeTimings = make(map[string][]time.Duration, len(s.Performance.NodeTimings))
	for k, v := range s.Performance.NodeTimings {
		out.Performance.NodeTimings[k] = append([]time.Duration(nil), v...)
	}
	if s.Performance.Retries != nil {
		out.Performance.Retries = make(map[string]int, len(s.Performance.Retries))
		for k, v := range s.Performance.Retries {
			out.Performance.Retries[k] = v
		}
	}

	out.AvailableActions.Enabled = append([]string(nil), s.AvailableActions.Enabled...)
	out.AvailableActions.Disabled = append([]string(nil), s.AvailableActions.Disabled...)
	out.AvailableActions.Suggested = append([]string(nil), s.AvailableActions.Suggested...)
	out.AvailableActions.Reasons = cloneStringMap(s.AvailableActions.Reasons)

	return &out
}

func cloneToolCalls(in []ToolCall) []ToolCall {
	if in == nil {
		return nil
	}
	out := make([]ToolCall, len(in))
	copy(out, in)
	for i := range out {
		out[i].Args = cloneMap(in[i].Args)
	}
	return out
}

func cloneMap(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func cloneStringMap(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
