package errors

import (
	stderrors "errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToUserFacing_CategoryTemplate(t *testing.T) {
	msg := ToUserFacing(NotFound("RESOURCE_NOT_FOUND", "no such product"), false, false)
	assert.Contains(t, msg.Text, "couldn't find")
	assert.NotEmpty(t, msg.Suggestions)
	assert.False(t, msg.Retryable)
}

func TestToUserFacing_CodeOverrideWins(t *testing.T) {
	e := BusinessRule("QUANTITY_LIMIT_EXCEEDED", "qty 500 > 100")
	msg := ToUserFacing(e, false, false)
	assert.Contains(t, msg.Text, "above the limit")
}

func TestToUserFacing_RetryNoteOnlyWhenRetrying(t *testing.T) {
	e := Network("NETWORK_ERROR", "down")

	withRetry := ToUserFacing(e, true, false)
	assert.Contains(t, withRetry.Text, "retry automatically")

	noRetry := ToUserFacing(e, false, false)
	assert.NotContains(t, noRetry.Text, "retry automatically")

	// Non-retryable errors never carry the note even when a retry was requested.
	terminal := ToUserFacing(Validation("INVALID_INPUT", "bad"), true, false)
	assert.NotContains(t, terminal.Text, "retry automatically")
}

func TestToUserFacing_NeverLeaksTechnicalDetail(t *testing.T) {
	e := Integration("UPSTREAM_ERROR", "boom").
		WithCause(stderrors.New(`pq: connection to "inventory-db-3.internal:5432" refused`)).
		WithTechnical("inventory-db-3.internal:5432 refused")

	msg := ToUserFacing(e, false, false)
	assert.NotContains(t, msg.Text, "internal")
	assert.NotContains(t, msg.Text, "5432")
	for _, s := range msg.Suggestions {
		assert.NotContains(t, s, "5432")
	}
}

func TestToUserFacing_TechnicalReferenceGated(t *testing.T) {
	e := Integration("UPSTREAM_ERROR", "boom").WithTechnical("backend 503")

	enabled := ToUserFacing(e, false, true)
	found := false
	for _, s := range enabled.Suggestions {
		if strings.Contains(s, "UPSTREAM_ERROR") {
			found = true
		}
	}
	assert.True(t, found)

	// Low severity never attaches the reference even when enabled.
	low := ToUserFacing(Validation("INVALID_INPUT", "bad").WithTechnical("detail"), false, true)
	for _, s := range low.Suggestions {
		assert.NotContains(t, s, "INVALID_INPUT")
	}
}

func TestToUserFacing_SuggestionCap(t *testing.T) {
	for cat := range categoryTemplates {
		msg := ToUserFacing(New(cat, "X", "x"), false, false)
		assert.LessOrEqual(t, len(msg.Suggestions), maxSuggestions+1)
	}
}
