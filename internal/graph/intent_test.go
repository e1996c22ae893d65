package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify_KeywordIntents(t *testing.T) {
	cases := []struct {
		text string
		want Intent
	}{
		{"I'm looking for a lightweight laptop", IntentSearch},
		{"tell me more about the Clarity monitor specs", IntentDetails},
		{"add two keyboards to my cart", IntentCart},
		{"ok let's checkout and pay", IntentCheckout},
		{"compare the two monitors side by side", IntentCompare},
		{"where is my order? it should have shipped", IntentTrackOrder},
		{"can I get a quote for volume pricing", IntentQuote},
		{"I have a promo code", IntentCoupon},
		{"hi there, thanks", IntentGreeting},
	}

	for _, tc := range cases {
		got := classify(tc.text)
		assert.Equal(t, tc.want, got.Intent, "text: %q", tc.text)
	}
}

func TestClassify_ConfidenceTiers(t *testing.T) {
	assert.Equal(t, 0.2, classify("asdf qwerty").Confidence)
	assert.Equal(t, IntentUnknown, classify("asdf qwerty").Intent)

	one := classify("show me monitors")
	assert.Equal(t, 0.6, one.Confidence)

	multi := classify("search and find me a laptop, show me options for travel")
	assert.Equal(t, 0.9, multi.Confidence)
}

func TestClassify_PriorityBreaksTies(t *testing.T) {
	// Both "quote" and "add" match; quote is the more specific ask.
	got := classify("add a quote for 50 keyboards")
	assert.Equal(t, IntentQuote, got.Intent)
}

func TestClassify_BusinessSignals(t *testing.T) {
	assert.True(t, classify("we need wholesale pricing for our office").Business)
	assert.True(t, classify("I want 500 units of the headset").Business)
	assert.False(t, classify("I want 50 units").Business, "small quantities are not business evidence")
	assert.False(t, classify("show me a laptop").Business)
}

func TestClassify_ConsumerSignals(t *testing.T) {
	got := classify("looking for a gift for my daughter's birthday")
	assert.True(t, got.Consumer)
	assert.False(t, got.Business)
}

func TestExtractEntities(t *testing.T) {
	ents := extractEntities("quote me 500 units of the headset under $250")
	assert.Equal(t, 500, ents["quantity"])
	assert.Equal(t, 250.0, ents["max_price"])
	assert.Contains(t, ents["product_types"], "headset")

	assert.Nil(t, extractEntities("hello there"))
}
