package security

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/akindolabs/akindo/internal/config"
	"github.com/akindolabs/akindo/internal/errors"
	"github.com/akindolabs/akindo/internal/state"
)

const (
	DirectionInput  = "input"
	DirectionOutput = "output"
)

// Result is produced for every text payload crossing the session boundary.
type Result struct {
	Valid     bool
	Category  string
	Severity  errors.Severity
	Sanitized string
	Reason    string
	Metadata  map[string]any
}

// Snapshot is the judge's session-scoped bookkeeping at a point in time.
type Snapshot struct {
	ThreatLevel     state.ThreatLevel
	TrustScore      float64
	Failures        int
	BlockedAttempts int
	Patterns        []string
}

// Policy holds the validation thresholds with durations already parsed.
type Policy struct {
	MaxConsumerQuantity int
	MaxBusinessQuantity int
	MaxDiscountPercent  float64
	MinCartValue        float64
	MaxCartValue        float64
	RateWindow          time.Duration
	MaxConsumerMessages int
	MaxBusinessMessages int
	EscalationThreshold int
}

func PolicyFrom(cfg config.SecurityConfig) (Policy, error) {
	window, err := config.DurationOrDefault(cfg.RateWindow, config.DefaultSecurityRateWindow)
	if err != nil {
		return Policy{}, err
	}

	p := Policy{
		MaxConsumerQuantity: cfg.MaxConsumerQuantity,
		MaxBusinessQuantity: cfg.MaxBusinessQuantity,
		MaxDiscountPercent:  cfg.MaxDiscountPercent,
		MinCartValue:        cfg.MinCartValue,
		MaxCartValue:        cfg.MaxCartValue,
		RateWindow:          window,
		MaxConsumerMessages: cfg.MaxConsumerMessages,
		MaxBusinessMessages: cfg.MaxBusinessMessages,
		EscalationThreshold: cfg.EscalationThreshold,
	}
	if p.MaxConsumerQuantity <= 0 {
		p.MaxConsumerQuantity = config.DefaultSecurityMaxConsumerQuantity
	}
	if p.MaxBusinessQuantity <= 0 {
		p.MaxBusinessQuantity = config.DefaultSecurityMaxBusinessQuantity
	}
	if p.MaxDiscountPercent <= 0 {
		p.MaxDiscountPercent = config.DefaultSecurityMaxDiscountPercent
	}
	if p.MaxCartValue <= 0 {
		p.MaxCartValue = config.DefaultSecurityMaxCartValue
	}
	if p.MaxConsumerMessages <= 0 {
		p.MaxConsumerMessages = config.DefaultSecurityMaxConsumerMessages
	}
	if p.MaxBusinessMessages <= 0 {
		p.MaxBusinessMessages = config.DefaultSecurityMaxBusinessMessages
	}
	if p.EscalationThreshold <= 0 {
		p.EscalationThreshold = config.DefaultSecurityEscalationThreshold
	}
	return p, nil
}

// Judge validates every inbound and outbound payload for one session and
// keeps the rolling trust score and threat level. One instance per session;
// safe for concurrent use.
type Judge struct {
	policy Policy

	mu         sync.Mutex
	threat     state.ThreatLevel
	trust      float64
	history    []state.ValidationRecord
	patterns   []string
	blocked    int
	inputTimes []time.Time

	now func() time.Time
}

func NewJudge(policy Policy) *Judge {
	return &Judge{
		policy: policy,
		threat: state.ThreatNone,
		trust:  100,
		now:    time.Now,
	}
}

var severityWeights = map[errors.Severity]float64{
	errors.SeverityLow:      2,
	errors.SeverityMedium:   5,
	errors.SeverityHigh:     10,
	errors.SeverityCritical: 25,
}

// Validate checks one payload. Precedence when multiple categories match:
// instruction override > price manipulation > data exfiltration > business
// rule > rate limit. Merely suspicious but survivable input passes with a
// sanitized copy; only hard matches fail.
func (j *Judge) Validate(text string, s *state.Session, direction string) Result {
	j.mu.Lock()
	defer j.mu.Unlock()

	res := j.detect(text, s, direction)
	res.Sanitized = Sanitize(text)

	rec := state.ValidationRecord{
		At:        j.now().UTC(),
		Direction: direction,
		Valid:     res.Valid,
		Category:  res.Category,
		Severity:  string(res.Severity),
	}
	j.history = append(j.history, rec)

	if !res.Valid {
		j.trust -= severityWeights[res.Severity]
		if j.trust < 0 {
			j.trust = 0
		}
		j.blocked++
		if res.Metadata != nil {
			if p, ok := res.Metadata["pattern"].(string); ok {
				j.patterns = append(j.patterns, p)
			}
		}
		j.escalate(res.Severity)
	}

	return res
}

func (j *Judge) detect(text string, s *state.Session, direction string) Result {
	if direction == DirectionOutput {
		return j.detectOutbound(text)
	}

	// 1. Prompt/instruction override.
	if sqlMetaPattern.re.MatchString(text) {
		return invalid(CategoryPromptInjection, errors.SeverityCritical, "SQL meta-character sequence", sqlMetaPattern.name)
	}
	for _, p := range overridePatterns {
		if p.re.MatchString(text) {
			return invalid(CategoryPromptInjection, errors.SeverityHigh, "instruction override attempt", p.name)
		}
	}

	// 2. Price/business manipulation.
	for _, p := range pricePatterns {
		if p.re.MatchString(text) {
			return invalid(CategoryPriceManipulation, errors.SeverityCritical, "price manipulation attempt", p.name)
		}
	}
	if pct, ok := extractDiscount(text); ok && pct > j.policy.MaxDiscountPercent {
		return invalid(CategoryPriceManipulation, errors.SeverityCritical, "discount above ceiling", "excessive_discount")
	}

	// 3. Data exfiltration.
	for _, p := range exfilPatterns {
		if p.re.MatchString(text) {
			return invalid(CategoryDataExfiltration, errors.SeverityCritical, "data exfiltration attempt", p.name)
		}
	}

	// 4. Business rules.
	if qty, ok := extractQuantity(text); ok {
		ceiling := j.policy.MaxConsumerQuantity
		if s != nil && s.Mode == state.ModeB2B {
			ceiling = j.policy.MaxBusinessQuantity
		}
		if qty > ceiling {
			r := invalid(CategoryBusinessRule, errors.SeverityMedium, "quantity above ceiling", "quantity_ceiling")
			r.Metadata["quantity"] = qty
			r.Metadata["ceiling"] = ceiling
			return r
		}
	}
	if s != nil && (s.Cart.Total > j.policy.MaxCartValue || (j.policy.MinCartValue > 0 && !s.Cart.IsEmpty() && s.Cart.Total < j.policy.MinCartValue)) {
		return invalid(CategoryBusinessRule, errors.SeverityMedium, "cart value outside configured range", "cart_value_bounds")
	}

	// 5. Rate limiting.
	if j.overRate(s) {
		return invalid(CategoryRateLimit, errors.SeverityMedium, "message frequency above window cap", "rate_window")
	}

	return Result{Valid: true, Metadata: map[string]any{}}
}

func (j *Judge) detectOutbound(text string) Result {
	for _, p := range leakPatterns {
		if p.re.MatchString(text) {
			return invalid(CategoryDataExfiltration, errors.SeverityCritical, "sensitive data in outbound text", p.name)
		}
	}
	return Result{Valid: true, Metadata: map[string]any{}}
}

// overRate records the call time and reports whether the rolling window cap
// for the session's mode is exceeded.
func (j *Judge) overRate(s *state.Session) bool {
	now := j.now()
	cutoff := now.Add(-j.policy.RateWindow)

	kept := j.inputTimes[:0]
	for _, t := range j.inputTimes {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	j.inputTimes = append(kept, now)

	limit := j.policy.MaxConsumerMessages
	if s != nil && s.Mode == state.ModeB2B {
		limit = j.policy.MaxBusinessMessages
	}
	return len(j.inputTimes) > limit
}

func (j *Judge) escalate(severity errors.Severity) {
	next := j.threat
	switch severity {
	case errors.SeverityCritical:
		next = state.ThreatCritical
	case errors.SeverityHigh:
		next = state.ThreatElevated
	case errors.SeverityMedium, errors.SeverityLow:
		next = state.ThreatLow
	}
	if next.Rank() > j.threat.Rank() {
		j.threat = next
	}

	// Sustained failure escalates regardless of individual severity.
	if j.failureCount() >= j.policy.EscalationThreshold {
		if j.threat.Rank() < state.ThreatElevated.Rank() {
			j.threat = state.ThreatElevated
		} else if j.threat != state.ThreatCritical {
			j.threat = state.ThreatCritical
		}
	}
}

func (j *Judge) failureCount() int {
	n := 0
	for _, rec := range j.history {
		if !rec.Valid {
			n++
		}
	}
	return n
}

// FilterOutput redacts leaked sensitive material and internal markers from
// outbound text and replaces zero prices with a placeholder.
func (j *Judge) FilterOutput(text string, s *state.Session) string {
	out := text
	for _, p := range leakPatterns {
		if p.name == "internal_marker" {
			out = p.re.ReplaceAllString(out, "")
			continue
		}
		out = p.re.ReplaceAllString(out, "[REDACTED]")
	}
	out = outboundPrice.ReplaceAllStringFunc(out, func(m string) string {
		sub := outboundPrice.FindStringSubmatch(m)
		if v, err := strconv.ParseFloat(sub[2], 64); err == nil && v == 0 {
			return "[price unavailable]"
		}
		return m
	})
	return strings.TrimSpace(multiWhitespace.ReplaceAllString(out, " "))
}

// Context returns the judge's current session bookkeeping.
func (j *Judge) Context() Snapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	return Snapshot{
		ThreatLevel:     j.threat,
		TrustScore:      j.trust,
		Failures:        j.failureCount(),
		BlockedAttempts: j.blocked,
		Patterns:        append([]string(nil), j.patterns...),
	}
}

// ShouldBlock reports whether the session has reached the top threat tier,
// independent of which single call triggered it.
func (j *Judge) ShouldBlock() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.threat == state.ThreatCritical
}

// Commands mirrors a validation result into state-update commands so the
// session record stays the canonical audit trail.
func (j *Judge) Commands(res Result, direction string) []state.Command {
	snap := j.Context()
	level := snap.ThreatLevel
	trust := snap.TrustScore

	cmd := state.UpdateSecurity{
		ThreatLevel: &level,
		TrustScore:  &trust,
		Records: []state.ValidationRecord{{
			At:        j.now().UTC(),
			Direction: direction,
			Valid:     res.Valid,
			Category:  res.Category,
			Severity:  string(res.Severity),
		}},
	}
	if !res.Valid {
		cmd.BlockedAttempts = 1
		if res.Metadata != nil {
			if p, ok := res.Metadata["pattern"].(string); ok {
				cmd.Patterns = []string{p}
			}
		}
	}
	return []state.Command{cmd}
}

// Sanitize strips script-like tags and SQL meta sequences and collapses
// whitespace. Benign input only sees whitespace normalization.
func Sanitize(text string) string {
	out := scriptTags.ReplaceAllString(text, "")
	out = sqlMetaStripper.ReplaceAllString(out, "")
	out = multiWhitespace.ReplaceAllString(out, " ")
	return strings.TrimSpace(out)
}

func invalid(category string, severity errors.Severity, reason, patternName string) Result {
	return Result{
		Valid:    false,
		Category: category,
		Severity: severity,
		Reason:   reason,
		Metadata: map[string]any{"pattern": patternName},
	}
}

func extractDiscount(text string) (float64, bool) {
	m := discountPattern.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	raw := m[1]
	if raw == "" {
		raw = m[3]
	}
	pct, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return pct, true
}

func extractQuantity(text string) (int, bool) {
	best := 0
	found := false
	for _, re := range quantityPatterns {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			raw := strings.ReplaceAll(m[1], ",", "")
			n, err := strconv.Atoi(raw)
			if err != nil {
				continue
			}
			found = true
			if n > best {
				best = n
			}
		}
	}
	return best, found
}
