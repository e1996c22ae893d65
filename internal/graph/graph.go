package graph

import (
	"context"
	"time"

	"github.com/akindolabs/akindo/internal/config"
	"github.com/akindolabs/akindo/internal/errors"
	"github.com/akindolabs/akindo/internal/logger"
	"github.com/akindolabs/akindo/internal/recovery"
	"github.com/akindolabs/akindo/internal/security"
	"github.com/akindolabs/akindo/internal/state"
)

// Graph drives one conversation turn through the pipeline:
//
//	validate input -> detect_intent -> enrich_context
//	  -> select_action <-> execute_tools (bounded loop)
//	  -> format_response -> filter output
//
// Failures never crash a turn; the boundary decides whether a step is
// retried, the turn degrades, or the conversation is handed to a human.
type Graph struct {
	pipeline *Pipeline
	boundary *recovery.Boundary
	cfg      config.GraphConfig
	nodes    map[string]recovery.NodeFunc
}

func New(pipeline *Pipeline, boundary *recovery.Boundary, cfg config.GraphConfig) *Graph {
	if cfg.MaxMessagesPerTurn <= 0 {
		cfg.MaxMessagesPerTurn = config.DefaultGraphMaxMessagesPerTurn
	}
	pipeline.includeTechnical = boundary.IncludeTechnical()

	return &Graph{
		pipeline: pipeline,
		boundary: boundary,
		cfg:      cfg,
		nodes: map[string]recovery.NodeFunc{
			NodeDetectIntent:   boundary.WrapNode(NodeDetectIntent, pipeline.DetectIntent),
			NodeEnrichContext:  boundary.WrapNode(NodeEnrichContext, pipeline.EnrichContext),
			NodeSelectAction:   boundary.WrapNode(NodeSelectAction, pipeline.SelectAction),
			NodeExecuteTools:   boundary.WrapNode(NodeExecuteTools, pipeline.ExecuteTools),
			NodeFormatResponse: boundary.WrapNode(NodeFormatResponse, pipeline.FormatResponse),
		},
	}
}

// Run executes one turn. The returned session is a new value; the input
// session is never mutated. The returned reply has already passed outbound
// filtering.
func (g *Graph) Run(ctx context.Context, s *state.Session, judge *security.Judge) (*state.Session, string, error) {
	log := logger.Component("graph")
	if trace := logger.GetTraceID(ctx); trace != "" {
		log = log.With("trace_id", trace)
	}
	startCount := len(s.Messages)

	// Inbound gate.
	userMsg := s.LastByRole(state.RoleUser)
	if userMsg == nil {
		return s, "", errors.Workflow("NO_USER_INPUT", "turn started without a user message")
	}

	res := judge.Validate(userMsg.Content, s, security.DirectionInput)
	s = state.Apply(s, judge.Commands(res, security.DirectionInput))

	if !res.Valid || judge.ShouldBlock() {
		log.Warn("Input blocked", "thread", s.ThreadID, "category", res.Category, "severity", res.Severity)
		s = state.Apply(s, []state.Command{state.SetError{
			Err: errors.Authorization("THREAT_BLOCKED", "input failed security validation"),
		}})
		return g.finish(ctx, s, judge)
	}

	var proceed bool
	if s, proceed = g.step(ctx, s, NodeDetectIntent); !proceed {
		return g.finish(ctx, s, judge)
	}

	if needs, _ := s.Context["needs_clarification"].(bool); needs {
		return g.finish(ctx, s, judge)
	}

	if s, proceed = g.step(ctx, s, NodeEnrichContext); !proceed {
		return g.finish(ctx, s, judge)
	}

	// Action loop: the model may chain tool rounds while enrichment left
	// suggested next steps pending, bounded by the message ceiling so a
	// confused model cannot spin forever.
	for len(s.AvailableActions.Suggested) > 0 && len(s.Messages)-startCount < g.cfg.MaxMessagesPerTurn {
		if s, proceed = g.step(ctx, s, NodeSelectAction); !proceed {
			break
		}

		assistant := s.LastByRole(state.RoleAssistant)
		if assistant == nil || len(assistant.ToolCalls) == 0 {
			break
		}

		if s, proceed = g.step(ctx, s, NodeExecuteTools); !proceed {
			break
		}
		if s.Err != nil {
			break
		}
	}

	return g.finish(ctx, s, judge)
}

// step runs one wrapped node, applies its commands, and records its timing.
// The second return value is false when the turn should jump to the closing
// steps.
func (g *Graph) step(ctx context.Context, s *state.Session, name string) (*state.Session, bool) {
	start := time.Now()
	cmds, err := g.nodes[name](ctx, s)
	elapsed := time.Since(start)

	timing := state.UpdatePerformance{NodeTimings: map[string][]time.Duration{name: {elapsed}}}

	if err != nil {
		switch g.boundary.Handle(err) {
		case recovery.ActionIgnore:
			return state.Apply(s, []state.Command{timing}), true
		default:
			logger.Component("graph").Error("Step failed", "step", name, "thread", s.ThreadID, "error", err)
			s = state.Apply(s, []state.Command{timing, state.SetError{Err: errors.From(err)}})
			return s, false
		}
	}

	cmds = append(cmds, timing)
	return state.Apply(s, cmds), true
}

// finish always runs: every turn ends with a formatted, filtered reply no
// matter what happened before it.
func (g *Graph) finish(ctx context.Context, s *state.Session, judge *security.Judge) (*state.Session, string, error) {
	s, _ = g.step(ctx, s, NodeFormatResponse)

	reply := ""
	if msg := s.LastByRole(state.RoleAssistant); msg != nil {
		reply = msg.Content
	}

	out := judge.Validate(reply, s, security.DirectionOutput)
	s = state.Apply(s, judge.Commands(out, security.DirectionOutput))
	if !out.Valid {
		reply = "I can't share that information."
	}
	reply = judge.FilterOutput(reply, s)

	// The error slot is per-turn; it has served its purpose once the reply
	// is composed.
	if s.Err != nil {
		s = state.Apply(s, []state.Command{state.SetError{}})
	}

	return s, reply, nil
}
