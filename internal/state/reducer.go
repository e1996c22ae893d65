package state

import "time"

// Apply folds a command list into a new session value. It is pure and total:
// the input session is never mutated, no command panics, and applying the
// same list to two copies of the same session yields identical results. The
// empty list is a no-op.
func Apply(s *Session, cmds []Command) *Session {
	out := s.Clone()
	for _, cmd := range cmds {
		applyOne(out, cmd)
	}
	return out
}

func applyOne(s *Session, cmd Command) {
	switch c := cmd.(type) {
	case AddMessage:
		s.Messages = append(s.Messages, c.Message)

	case UpdateCart:
		if c.Cart != nil {
			s.Cart = *c.Cart
			s.Cart.Items = append([]CartItem(nil), c.Cart.Items...)
		}
		if c.Comparison != nil {
			s.Comparison = *c.Comparison
			s.Comparison.Items = append([]ComparisonItem(nil), c.Comparison.Items...)
		}

	case UpdateContext:
		if s.Context == nil {
			s.Context = make(map[string]any, len(c.Values))
		}
		for k, v := range c.Values {
			s.Context[k] = v
		}

	case SetMode:
		if c.Mode != "" {
			s.Mode = c.Mode
		}

	case SetAvailableActions:
		s.AvailableActions = AvailableActions{
			Enabled:   append([]string(nil), c.Actions.Enabled...),
			Disabled:  append([]string(nil), c.Actions.Disabled...),
			Suggested: append([]string(nil), c.Actions.Suggested...),
			Reasons:   cloneStringMap(c.Actions.Reasons),
		}

	case UpdateSecurity:
		s.Security.ValidationHistory = append(s.Security.ValidationHistory, c.Records...)
		s.Security.DetectedPatterns = appendUnique(s.Security.DetectedPatterns, c.Patterns)
		s.Security.BlockedAttempts += c.BlockedAttempts
		if c.ThreatLevel != nil && c.ThreatLevel.Rank() >= s.Security.ThreatLevel.Rank() {
			s.Security.ThreatLevel = *c.ThreatLevel
		}
		if c.TrustScore != nil {
			score := clamp(*c.TrustScore, 0, 100)
			// Trust only decays within a session.
			if score < s.Security.TrustScore {
				s.Security.TrustScore = score
			}
		}

	case UpdatePerformance:
		if s.Performance.NodeTimings == nil {
			s.Performance.NodeTimings = make(map[string][]time.Duration)
		}
		for node, samples := range c.NodeTimings {
			s.Performance.NodeTimings[node] = append(s.Performance.NodeTimings[node], samples...)
		}
		if len(c.Retries) > 0 && s.Performance.Retries == nil {
			s.Performance.Retries = make(map[string]int, len(c.Retries))
		}
		for node, n := range c.Retries {
			s.Performance.Retries[node] += n
		}
		s.Performance.ToolExecutions += c.ToolExecutions
		s.Performance.CacheHits += c.CacheHits
		s.Performance.CacheMisses += c.CacheMisses

	case SetError:
		s.Err = c.Err
	}
}

func appendUnique(existing []string, add []string) []string {
	seen := make(map[string]struct{}, len(existing))
	for _, p := range existing {
		seen[p] = struct{}{}
	}
	for _, p := range add {
		if _, ok := seen[p]; ok {
			continue
		}
		existing = append(existing, p)
		seen[p] = struct{}{}
	}
	return existing
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
