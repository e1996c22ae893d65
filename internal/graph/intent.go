package graph

import (
	"regexp"
	"strconv"
	"strings"
)

// Intent is the coarse classification of what the shopper wants this turn.
type Intent string

const (
	IntentSearch     Intent = "search"
	IntentDetails    Intent = "product_details"
	IntentCart       Intent = "cart"
	IntentCheckout   Intent = "checkout"
	IntentCompare    Intent = "compare"
	IntentTrackOrder Intent = "track_order"
	IntentQuote      Intent = "quote"
	IntentCoupon     Intent = "coupon"
	IntentGreeting   Intent = "greeting"
	IntentUnknown    Intent = "unknown"
)

var intentKeywords = map[Intent][]string{
	IntentSearch:     {"find", "search", "looking for", "show me", "recommend", "need a", "need an", "browse", "options for"},
	IntentDetails:    {"tell me more", "details", "specs", "specifications", "more about", "describe"},
	IntentCart:       {"cart", "basket", "add", "remove", "take out", "update quantity"},
	IntentCheckout:   {"checkout", "check out", "buy now", "place the order", "place my order", "purchase", "pay"},
	IntentCompare:    {"compare", "versus", " vs ", "difference between", "side by side"},
	IntentTrackOrder: {"track", "where is my order", "order status", "delivery status", "shipped"},
	IntentQuote:      {"quote", "quotation", "volume pricing", "bulk pricing", "tiered pricing"},
	IntentCoupon:     {"coupon", "promo code", "discount code", "voucher"},
	IntentGreeting:   {"hello", "hi there", "hey", "good morning", "good afternoon", "thanks", "thank you"},
}

// Keyword hits are scored in this order so the most specific intent wins a
// tie: a message with both "quote" and "add" is a quote request.
var intentPriority = []Intent{
	IntentQuote,
	IntentTrackOrder,
	IntentCheckout,
	IntentCompare,
	IntentCoupon,
	IntentDetails,
	IntentCart,
	IntentSearch,
	IntentGreeting,
}

var businessSignals = []string{
	"wholesale", "bulk", "reseller", "purchase order", "net 30", "net-30",
	"tax exempt", "tax-exempt", "procurement", "our company", "for our office",
	"corporate", "quote",
}

var consumerSignals = []string{
	"for me", "for my", "gift", "my home", "personal", "birthday",
}

var largeQuantity = regexp.MustCompile(`\b(\d{3,})\s*(units|pcs|pieces|laptops|monitors|chairs|headsets|keyboards|docks)\b`)

var (
	quantityEntity = regexp.MustCompile(`(?i)\b(\d[\d,]{0,8})\s*(?:units?|pcs|pieces|x\b)`)
	priceCeiling   = regexp.MustCompile(`(?i)(?:under|below|less than|max(?:imum)?(?: of)?)\s*[$€£]?\s*(\d[\d,]{0,8})`)
)

var productTerms = []string{
	"laptop", "monitor", "keyboard", "dock", "chair", "headset", "desk", "phone", "tablet",
}

// extractEntities pulls quantities, price ceilings and product types out of
// free text. Returns nil when nothing was found.
func extractEntities(text string) map[string]any {
	lower := strings.ToLower(text)
	ents := map[string]any{}

	if m := quantityEntity.FindStringSubmatch(text); m != nil {
		if n, err := strconv.Atoi(strings.ReplaceAll(m[1], ",", "")); err == nil {
			ents["quantity"] = n
		}
	}
	if m := priceCeiling.FindStringSubmatch(text); m != nil {
		if v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64); err == nil {
			ents["max_price"] = v
		}
	}

	var types []string
	for _, term := range productTerms {
		if strings.Contains(lower, term) {
			types = append(types, term)
		}
	}
	if len(types) > 0 {
		ents["product_types"] = types
	}

	if len(ents) == 0 {
		return nil
	}
	return ents
}

type classification struct {
	Intent     Intent
	Confidence float64
	Business   bool
	Consumer   bool
}

// classify is deliberately rule-based: it gives the pipeline a deterministic
// signal even when no model is reachable, and the model refines behavior
// downstream through action selection.
func classify(text string) classification {
	lower := " " + strings.ToLower(strings.TrimSpace(text)) + " "

	var c classification
	bestHits := 0
	for _, intent := range intentPriority {
		hits := 0
		for _, kw := range intentKeywords[intent] {
			if strings.Contains(lower, kw) {
				hits++
			}
		}
		if hits > bestHits {
			bestHits = hits
			c.Intent = intent
		}
	}

	switch {
	case bestHits == 0:
		c.Intent = IntentUnknown
		c.Confidence = 0.2
	case bestHits == 1:
		c.Confidence = 0.6
	default:
		c.Confidence = 0.9
	}

	for _, sig := range businessSignals {
		if strings.Contains(lower, sig) {
			c.Business = true
			break
		}
	}
	if largeQuantity.MatchString(lower) {
		c.Business = true
	}
	for _, sig := range consumerSignals {
		if strings.Contains(lower, sig) {
			c.Consumer = true
			break
		}
	}

	return c
}
