package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_AppliesCategoryDefaults(t *testing.T) {
	tests := []struct {
		category  Category
		severity  Severity
		strategy  Strategy
		retryable bool
	}{
		{CategoryValidation, SeverityLow, StrategyUserIntervention, false},
		{CategoryNetwork, SeverityMedium, StrategyRetryBackoff, true},
		{CategoryTimeout, SeverityMedium, StrategyRetryBackoff, true},
		{CategoryIntegration, SeverityHigh, StrategyCircuitBreak, true},
		{CategoryModel, SeverityHigh, StrategyFallback, false},
		{CategoryWorkflow, SeverityCritical, StrategyCompensate, false},
		{CategoryState, SeverityCritical, StrategyCompensate, false},
		{CategoryDataIntegrity, SeverityCritical, StrategyCompensate, false},
		{CategoryNotFound, SeverityLow, StrategyNone, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.category), func(t *testing.T) {
			e := New(tt.category, "CODE", "msg")
			assert.Equal(t, tt.severity, e.Severity)
			assert.Equal(t, tt.strategy, e.Strategy)
			assert.Equal(t, tt.retryable, e.Retryable)
		})
	}
}

func TestError_BuilderOverrides(t *testing.T) {
	cause := stderrors.New("boom")
	e := RateLimit("RATE_LIMITED", "slow down").
		WithCause(cause).
		WithRetryAfter(2 * time.Second).
		WithContext("tool", "search_products").
		WithSeverity(SeverityHigh)

	assert.Equal(t, 2*time.Second, e.RetryAfter)
	assert.Equal(t, SeverityHigh, e.Severity)
	assert.Equal(t, "search_products", e.Context["tool"])
	assert.True(t, stderrors.Is(e, cause))
}

func TestAs_ThroughWrapping(t *testing.T) {
	e := BusinessRule("QUANTITY_LIMIT_EXCEEDED", "too many units")
	wrapped := fmt.Errorf("execute tool: %w", e)

	got, ok := As(wrapped)
	require.True(t, ok)
	assert.Equal(t, "QUANTITY_LIMIT_EXCEEDED", got.Code)
	assert.True(t, IsCategory(wrapped, CategoryBusinessRule))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(Network("NETWORK_ERROR", "down")))
	assert.False(t, IsRetryable(Validation("INVALID_INPUT", "bad")))
	assert.False(t, IsRetryable(nil))
	assert.False(t, IsRetryable(stderrors.New("plain")))
}

func TestFrom_ClassifiesForeignErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		category Category
		code     string
	}{
		{"not found", stderrors.New("product does not exist"), CategoryNotFound, "RESOURCE_NOT_FOUND"},
		{"rate limit", stderrors.New("429 Too Many Requests"), CategoryRateLimit, "RATE_LIMITED"},
		{"network", stderrors.New("connection refused"), CategoryNetwork, "NETWORK_ERROR"},
		{"timeout", stderrors.New("request timeout"), CategoryTimeout, "REQUEST_TIMEOUT"},
		{"conflict", stderrors.New("cart already exists"), CategoryConflict, "CONFLICT"},
		{"forbidden", stderrors.New("forbidden"), CategoryAuthorization, "ACCESS_DENIED"},
		{"fallback", stderrors.New("???"), CategoryIntegration, "UPSTREAM_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := From(tt.err)
			require.NotNil(t, e)
			assert.Equal(t, tt.category, e.Category)
			assert.Equal(t, tt.code, e.Code)
		})
	}
}

func TestFrom_ContextErrors(t *testing.T) {
	e := From(context.DeadlineExceeded)
	assert.Equal(t, CategoryTimeout, e.Category)
	assert.True(t, e.Retryable)

	e = From(context.Canceled)
	assert.Equal(t, CategoryTimeout, e.Category)
	assert.False(t, e.Retryable)
}

func TestFrom_PassthroughTaggedRecord(t *testing.T) {
	orig := Workflow("LOOP_DETECTED", "bounded loop exceeded")
	wrapped := fmt.Errorf("graph: %w", orig)
	assert.Same(t, orig, From(wrapped))
}
