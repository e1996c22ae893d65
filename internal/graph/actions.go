package graph

import (
	"github.com/akindolabs/akindo/internal/config"
	"github.com/akindolabs/akindo/internal/state"
)

// ComputeActions derives the action affordances for the next turn from the
// session. The result replaces the previous set wholesale.
func ComputeActions(s *state.Session, cfg config.GraphConfig) state.AvailableActions {
	capacity := cfg.ComparisonCapacity
	if capacity <= 0 {
		capacity = config.DefaultGraphComparisonCapacity
	}

	actions := state.AvailableActions{
		Reasons: map[string]string{},
	}
	enable := func(ids ...string) { actions.Enabled = append(actions.Enabled, ids...) }
	disable := func(id, reason string) {
		actions.Disabled = append(actions.Disabled, id)
		actions.Reasons[id] = reason
	}

	enable("search_products", "get_product_details", "add_to_cart", "view_cart")

	if s.Cart.IsEmpty() {
		disable("checkout", "cart is empty")
		disable("update_cart_item", "cart is empty")
		disable("remove_from_cart", "cart is empty")
	} else {
		enable("checkout", "update_cart_item", "remove_from_cart")
	}

	if len(s.Comparison.Items) >= capacity {
		disable("add_to_comparison", "comparison set is full")
	} else {
		enable("add_to_comparison")
	}
	if len(s.Comparison.Items) > 0 {
		enable("view_comparison")
	}

	if s.Authenticated {
		enable("save_for_later")
	} else {
		disable("save_for_later", "sign in required")
	}

	// Each mode toggles its exclusive action set: quoting for business,
	// coupons and order tracking for consumer. The quote tool itself still
	// rejects an empty cart.
	switch s.Mode {
	case state.ModeB2B:
		enable("bulk_search", "request_quote")
		if s.Authenticated {
			enable("tax_exemption")
		} else {
			disable("tax_exemption", "sign in required")
		}
	default:
		if s.Cart.IsEmpty() {
			disable("apply_coupon", "cart is empty")
		} else {
			enable("apply_coupon")
		}
		if s.Authenticated {
			enable("track_order")
		} else {
			disable("track_order", "sign in required")
		}
	}

	maxSuggestions := cfg.MaxSuggestions
	if maxSuggestions <= 0 {
		maxSuggestions = config.DefaultGraphMaxSuggestions
	}
	actions.Suggested = suggest(s, maxSuggestions)
	return actions
}

// suggest picks up to max next steps that fit where the conversation is.
func suggest(s *state.Session, max int) []string {
	var out []string

	if _, ok := s.Context["search_results"]; ok {
		out = append(out, "get_product_details")
	}
	if !s.Cart.IsEmpty() {
		if s.Mode == state.ModeB2B {
			out = append(out, "request_quote")
		} else {
			out = append(out, "checkout")
		}
	}
	if len(s.Comparison.Items) > 1 {
		out = append(out, "view_comparison")
	}
	if len(out) == 0 {
		out = append(out, "search_products")
	}
	if len(out) > max {
		out = out[:max]
	}
	return out
}
