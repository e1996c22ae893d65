package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akindolabs/akindo/internal/errors"
	"github.com/akindolabs/akindo/internal/model/contract"
)

func collect(t *testing.T, ch <-chan Chunk) []Chunk {
	t.Helper()
	var out []Chunk
	for c := range ch {
		out = append(out, c)
	}
	return out
}

func TestExecuteStream_ChunkSequence(t *testing.T) {
	router := &scriptedRouter{responses: []*contract.CompletionResponse{
		classifyResp("search", "b2c", 0.9),
		{ToolCalls: []*contract.ToolCall{{ID: "c1", Name: "search_products", Input: `{"query":"monitor"}`}}},
		{Content: "Two monitors stand out."},
	}}
	a := testAgent(t, router, nil)

	ch, err := a.ExecuteStream(context.Background(), "find me a monitor",
		ExecContext{ThreadID: "t-s"}, Options{})
	require.NoError(t, err)

	chunks := collect(t, ch)
	require.Len(t, chunks, 5)

	assert.Equal(t, ChunkToolStart, chunks[0].Kind)
	assert.Equal(t, "search_products", chunks[0].Tool)
	assert.Equal(t, ChunkToolEnd, chunks[1].Kind)
	assert.True(t, chunks[1].OK)
	assert.Equal(t, ChunkText, chunks[2].Kind)
	assert.Equal(t, "Two monitors stand out.", chunks[2].Text)
	assert.Equal(t, ChunkMetadata, chunks[3].Kind)
	assert.Equal(t, 1, chunks[3].Metadata.ToolsInvoked)
	assert.Equal(t, ChunkEnd, chunks[4].Kind)
	require.NotNil(t, chunks[4].State)
	assert.Equal(t, "t-s", chunks[4].State.ThreadID)
}

func TestExecuteStream_TerminatesExactlyOnce(t *testing.T) {
	router := &scriptedRouter{responses: []*contract.CompletionResponse{
		classifyResp("greeting", "b2c", 0.9),
		{Content: "Hello! What are you shopping for?"},
	}}
	a := testAgent(t, router, nil)

	ch, err := a.ExecuteStream(context.Background(), "hi there",
		ExecContext{ThreadID: "t-once"}, Options{})
	require.NoError(t, err)

	var kinds []ChunkKind
	for c := range ch {
		kinds = append(kinds, c.Kind)
	}
	require.NotEmpty(t, kinds)
	assert.Equal(t, ChunkEnd, kinds[len(kinds)-1])
	for _, k := range kinds[:len(kinds)-1] {
		assert.NotEqual(t, ChunkEnd, k)
		assert.NotEqual(t, ChunkError, k)
	}
}

func TestExecuteStream_FailedToolChunk(t *testing.T) {
	router := &scriptedRouter{responses: []*contract.CompletionResponse{
		classifyResp("checkout", "b2c", 0.9),
		{ToolCalls: []*contract.ToolCall{{ID: "c1", Name: "checkout", Input: `{}`}}},
	}}
	a := testAgent(t, router, nil)

	ch, err := a.ExecuteStream(context.Background(), "checkout and pay now",
		ExecContext{ThreadID: "t-fail"}, Options{})
	require.NoError(t, err)

	chunks := collect(t, ch)
	require.GreaterOrEqual(t, len(chunks), 4)

	assert.Equal(t, ChunkToolStart, chunks[0].Kind)
	assert.Equal(t, ChunkToolEnd, chunks[1].Kind)
	assert.False(t, chunks[1].OK)
	assert.NotEmpty(t, chunks[1].Text, "the failure reason travels with the tool_end chunk")
	assert.Equal(t, ChunkEnd, chunks[len(chunks)-1].Kind)
}

func TestExecuteStream_ValidationError(t *testing.T) {
	a := testAgent(t, &scriptedRouter{}, nil)

	_, err := a.ExecuteStream(context.Background(), "hello", ExecContext{}, Options{})
	e, _ := errors.As(err)
	require.NotNil(t, e)
	assert.Equal(t, "MISSING_THREAD_ID", e.Code)
}
