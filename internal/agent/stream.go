package agent

import (
	"context"
	"encoding/json"

	"github.com/akindolabs/akindo/internal/errors"
	"github.com/akindolabs/akindo/internal/state"
)

type ChunkKind string

const (
	ChunkText      ChunkKind = "text"
	ChunkToolStart ChunkKind = "tool_start"
	ChunkToolEnd   ChunkKind = "tool_end"
	ChunkMetadata  ChunkKind = "metadata"
	ChunkError     ChunkKind = "error"
	ChunkEnd       ChunkKind = "end"
)

// Chunk is one element of a streamed turn. The stream terminates exactly
// once: with ChunkEnd on success or ChunkError on unrecoverable failure.
type Chunk struct {
	Kind     ChunkKind      `json:"kind"`
	Text     string         `json:"text,omitempty"`
	Tool     string         `json:"tool,omitempty"`
	OK       bool           `json:"ok,omitempty"`
	Err      *errors.Error  `json:"error,omitempty"`
	Metadata *Metadata      `json:"metadata,omitempty"`
	State    *state.Session `json:"state,omitempty"`
}

// ExecuteStream runs one turn and delivers it as an ordered chunk sequence:
// tool_start/tool_end per executed tool, then text, metadata and the
// terminal chunk. The channel is closed after the terminal chunk.
func (a *Agent) ExecuteStream(ctx context.Context, userText string, ec ExecContext, opts Options) (<-chan Chunk, error) {
	if ec.ThreadID == "" {
		return nil, errors.Validation("MISSING_THREAD_ID", "thread id is required")
	}
	if userText == "" {
		return nil, errors.Validation("EMPTY_INPUT", "user text is required")
	}

	// The turn delta drives the tool events; history is in the final state.
	opts.IncludeHistory = false

	ch := make(chan Chunk, 8)
	go func() {
		defer close(ch)

		send := func(c Chunk) bool {
			select {
			case ch <- c:
				return true
			case <-ctx.Done():
				return false
			}
		}

		reply, err := a.Execute(ctx, userText, ec, opts)
		if err != nil {
			send(Chunk{Kind: ChunkError, Err: errors.From(err)})
			return
		}

		for _, c := range toolChunks(reply.Messages) {
			if !send(c) {
				return
			}
		}
		if !send(Chunk{Kind: ChunkText, Text: reply.Text}) {
			return
		}
		if !send(Chunk{Kind: ChunkMetadata, Metadata: &reply.Metadata}) {
			return
		}
		send(Chunk{Kind: ChunkEnd, State: reply.State})
	}()
	return ch, nil
}

// toolChunks reconstructs the tool event sequence from the turn's messages:
// every assistant tool call yields a start, and its tool-role result message
// yields the matching end.
func toolChunks(messages []state.Message) []Chunk {
	results := map[string]state.Message{}
	for _, m := range messages {
		if m.Role == state.RoleTool && m.ToolCallID != "" {
			results[m.ToolCallID] = m
		}
	}

	var out []Chunk
	for _, m := range messages {
		if m.Role != state.RoleAssistant {
			continue
		}
		for _, call := range m.ToolCalls {
			out = append(out, Chunk{Kind: ChunkToolStart, Tool: call.Name})

			end := Chunk{Kind: ChunkToolEnd, Tool: call.Name}
			if res, ok := results[call.ID]; ok {
				var parsed struct {
					OK    bool   `json:"ok"`
					Error string `json:"error"`
				}
				if json.Unmarshal([]byte(res.Content), &parsed) == nil {
					end.OK = parsed.OK
					end.Text = parsed.Error
				}
			}
			out = append(out, end)
		}
	}
	return out
}
