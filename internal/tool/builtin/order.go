package builtin

import (
	"context"
	"time"

	"github.com/akindolabs/akindo/internal/commerce"
	"github.com/akindolabs/akindo/internal/errors"
	"github.com/akindolabs/akindo/internal/state"
	"github.com/akindolabs/akindo/internal/tool"
)

func (t *Tools) checkoutDef() tool.Definition {
	return tool.Definition{
		ID:          "checkout",
		Name:        "Checkout",
		Description: "Place an order for everything in the cart",
		Category:    "order",
		Params: map[string]tool.ParamSpec{
			"coupon_code": {Type: tool.TypeString, Description: "Optional coupon to apply"},
		},
		Security: &tool.SecurityConstraints{ValidateOutput: true},
	}
}

func (t *Tools) checkout(ctx context.Context, params map[string]any, s *state.Session) ([]state.Command, error) {
	if s.Cart.IsEmpty() {
		return nil, errors.Validation("CART_EMPTY", "nothing in the cart to check out")
	}

	items := make([]commerce.OrderItem, 0, len(s.Cart.Items))
	for _, it := range s.Cart.Items {
		items = append(items, commerce.OrderItem{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
		})
	}

	order, err := t.backend.CreateOrder(ctx, s.ThreadID, items, tool.String(params, "coupon_code", ""))
	if err != nil {
		return nil, err
	}

	// Order placed: empty the cart and surface the receipt.
	return []state.Command{
		state.UpdateCart{Cart: &state.Cart{Items: []state.CartItem{}, UpdatedAt: time.Now().UTC()}},
		state.UpdateContext{Values: map[string]any{
			"order": map[string]any{
				"id":       order.ID,
				"subtotal": order.Subtotal,
				"discount": order.Discount,
				"total":    order.Total,
				"status":   string(order.Status),
				"eta":      order.ETA.Format(time.RFC3339),
			},
		}},
	}, nil
}

func (t *Tools) trackOrderDef() tool.Definition {
	return tool.Definition{
		ID:          "track_order",
		Name:        "Track order",
		Description: "Look up the status and delivery estimate of an order",
		Category:    "order",
		Modes:       []state.Mode{state.ModeB2C},
		Params: map[string]tool.ParamSpec{
			"order_id": {Type: tool.TypeString, Required: true},
		},
		Security: &tool.SecurityConstraints{RequireAuth: true},
	}
}

func (t *Tools) trackOrder(ctx context.Context, params map[string]any, s *state.Session) ([]state.Command, error) {
	if !s.Authenticated {
		return nil, errors.Authentication("AUTH_REQUIRED", "sign in to track orders")
	}

	order, err := t.backend.TrackOrder(ctx, tool.String(params, "order_id", ""))
	if err != nil {
		return nil, err
	}

	return []state.Command{state.UpdateContext{Values: map[string]any{
		"tracked_order": map[string]any{
			"id":     order.ID,
			"status": string(order.Status),
			"eta":    order.ETA.Format(time.RFC3339),
		},
	}}}, nil
}

func (t *Tools) requestQuoteDef() tool.Definition {
	return tool.Definition{
		ID:          "request_quote",
		Name:        "Request quote",
		Description: "Request a volume-pricing quote for the items in the cart",
		Category:    "quote",
		Modes:       []state.Mode{state.ModeB2B},
		Params: map[string]tool.ParamSpec{
			"tax_exempt": {Type: tool.TypeBoolean, Default: false},
		},
	}
}

func (t *Tools) requestQuote(ctx context.Context, params map[string]any, s *state.Session) ([]state.Command, error) {
	if s.Cart.IsEmpty() {
		return nil, errors.Validation("CART_EMPTY", "add items to the cart before requesting a quote")
	}

	taxExempt := false
	if v, ok := params["tax_exempt"].(bool); ok {
		taxExempt = v
	}
	if exempt, ok := s.Context["tax_exempt"].(bool); ok && exempt {
		taxExempt = true
	}

	items := make([]commerce.OrderItem, 0, len(s.Cart.Items))
	for _, it := range s.Cart.Items {
		items = append(items, commerce.OrderItem{ProductID: it.ProductID, Quantity: it.Quantity})
	}

	quote, err := t.backend.CreateQuote(ctx, s.ThreadID, items, taxExempt)
	if err != nil {
		return nil, err
	}

	return []state.Command{state.UpdateContext{Values: map[string]any{
		"quote": map[string]any{
			"id":         quote.ID,
			"total":      quote.Total,
			"status":     string(quote.Status),
			"tax_exempt": quote.TaxExempt,
			"expires_at": quote.ExpiresAt.Format(time.RFC3339),
		},
	}}}, nil
}

func (t *Tools) taxExemptionDef() tool.Definition {
	return tool.Definition{
		ID:          "tax_exemption",
		Name:        "Register tax exemption",
		Description: "Record a tax exemption certificate for this business account",
		Category:    "quote",
		Modes:       []state.Mode{state.ModeB2B},
		Params: map[string]tool.ParamSpec{
			"certificate_id": {Type: tool.TypeString, Required: true},
		},
		Security: &tool.SecurityConstraints{RequireAuth: true},
	}
}

func (t *Tools) taxExemption(ctx context.Context, params map[string]any, s *state.Session) ([]state.Command, error) {
	if !s.Authenticated {
		return nil, errors.Authentication("AUTH_REQUIRED", "sign in to register a tax exemption")
	}

	cert := tool.String(params, "certificate_id", "")
	if len(cert) < 4 {
		return nil, errors.Validation("INVALID_CERTIFICATE", "certificate id looks malformed")
	}

	return []state.Command{state.UpdateContext{Values: map[string]any{
		"tax_exempt":      true,
		"tax_certificate": cert,
	}}}, nil
}
