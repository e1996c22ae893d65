package builtin

import (
	"context"
	"time"

	"github.com/akindolabs/akindo/internal/errors"
	"github.com/akindolabs/akindo/internal/state"
	"github.com/akindolabs/akindo/internal/tool"
)

func (t *Tools) addToCartDef() tool.Definition {
	return tool.Definition{
		ID:          "add_to_cart",
		Name:        "Add to cart",
		Description: "Add a quantity of one product to the cart",
		Category:    "cart",
		Params: map[string]tool.ParamSpec{
			"product_id": {Type: tool.TypeString, Required: true},
			"quantity":   {Type: tool.TypeInteger, Default: float64(1), Min: floatPtr(1)},
		},
	}
}

func (t *Tools) addToCart(ctx context.Context, params map[string]any, s *state.Session) ([]state.Command, error) {
	productID := tool.String(params, "product_id", "")
	qty := tool.Int(params, "quantity", 1)

	p, err := t.backend.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	if p.InStock < qty {
		return nil, errors.BusinessRule("INSUFFICIENT_STOCK", "not enough stock for "+p.Name)
	}

	items := append([]state.CartItem(nil), s.Cart.Items...)
	merged := false
	for i, it := range items {
		if it.ProductID == productID {
			items[i].Quantity += qty
			items[i].UnitPrice = p.UnitPriceFor(items[i].Quantity)
			merged = true
			break
		}
	}
	if !merged {
		items = append(items, state.CartItem{
			ProductID: productID,
			Name:      p.Name,
			Quantity:  qty,
			UnitPrice: p.UnitPriceFor(qty),
		})
	}

	return []state.Command{state.UpdateCart{Cart: newCart(items)}}, nil
}

func (t *Tools) updateCartItemDef() tool.Definition {
	return tool.Definition{
		ID:          "update_cart_item",
		Name:        "Update cart item",
		Description: "Set the quantity of a product already in the cart",
		Category:    "cart",
		Params: map[string]tool.ParamSpec{
			"product_id": {Type: tool.TypeString, Required: true},
			"quantity":   {Type: tool.TypeInteger, Required: true, Min: floatPtr(1)},
		},
	}
}

func (t *Tools) updateCartItem(ctx context.Context, params map[string]any, s *state.Session) ([]state.Command, error) {
	productID := tool.String(params, "product_id", "")
	qty := tool.Int(params, "quantity", 0)

	items := append([]state.CartItem(nil), s.Cart.Items...)
	for i, it := range items {
		if it.ProductID != productID {
			continue
		}
		p, err := t.backend.GetProduct(ctx, productID)
		if err != nil {
			return nil, err
		}
		if p.InStock < qty {
			return nil, errors.BusinessRule("INSUFFICIENT_STOCK", "not enough stock for "+p.Name)
		}
		items[i].Quantity = qty
		items[i].UnitPrice = p.UnitPriceFor(qty)
		return []state.Command{state.UpdateCart{Cart: newCart(items)}}, nil
	}

	return nil, errors.NotFound("CART_ITEM_NOT_FOUND", "product not in cart: "+productID)
}

func (t *Tools) removeFromCartDef() tool.Definition {
	return tool.Definition{
		ID:          "remove_from_cart",
		Name:        "Remove from cart",
		Description: "Remove a product from the cart entirely",
		Category:    "cart",
		Params: map[string]tool.ParamSpec{
			"product_id": {Type: tool.TypeString, Required: true},
		},
	}
}

func (t *Tools) removeFromCart(ctx context.Context, params map[string]any, s *state.Session) ([]state.Command, error) {
	productID := tool.String(params, "product_id", "")

	items := make([]state.CartItem, 0, len(s.Cart.Items))
	found := false
	for _, it := range s.Cart.Items {
		if it.ProductID == productID {
			found = true
			continue
		}
		items = append(items, it)
	}
	if !found {
		return nil, errors.NotFound("CART_ITEM_NOT_FOUND", "product not in cart: "+productID)
	}

	return []state.Command{state.UpdateCart{Cart: newCart(items)}}, nil
}

func (t *Tools) viewCartDef() tool.Definition {
	return tool.Definition{
		ID:          "view_cart",
		Name:        "View cart",
		Description: "Summarize the current cart contents and total",
		Category:    "cart",
		Params:      map[string]tool.ParamSpec{},
	}
}

func (t *Tools) viewCart(ctx context.Context, params map[string]any, s *state.Session) ([]state.Command, error) {
	lines := make([]map[string]any, 0, len(s.Cart.Items))
	for _, it := range s.Cart.Items {
		lines = append(lines, map[string]any{
			"product_id": it.ProductID,
			"name":       it.Name,
			"quantity":   it.Quantity,
			"unit_price": it.UnitPrice,
			"line_total": it.UnitPrice * float64(it.Quantity),
		})
	}

	return []state.Command{state.UpdateContext{Values: map[string]any{
		"cart_view": map[string]any{
			"items": lines,
			"total": s.Cart.Total,
			"empty": s.Cart.IsEmpty(),
		},
	}}}, nil
}

func (t *Tools) applyCouponDef() tool.Definition {
	return tool.Definition{
		ID:          "apply_coupon",
		Name:        "Apply coupon",
		Description: "Validate a coupon code against the current cart",
		Category:    "cart",
		Modes:       []state.Mode{state.ModeB2C},
		Params: map[string]tool.ParamSpec{
			"code": {Type: tool.TypeString, Required: true},
		},
	}
}

func (t *Tools) applyCoupon(ctx context.Context, params map[string]any, s *state.Session) ([]state.Command, error) {
	code := tool.String(params, "code", "")

	c, err := t.backend.LookupCoupon(ctx, code)
	if err != nil {
		return nil, err
	}
	if c.MinTotal > 0 && s.Cart.Total < c.MinTotal {
		return nil, errors.BusinessRule("COUPON_MINIMUM_NOT_MET", "cart total below coupon minimum")
	}

	return []state.Command{state.UpdateContext{Values: map[string]any{
		"coupon": map[string]any{
			"code":        c.Code,
			"percent_off": c.PercentOff,
		},
	}}}, nil
}

func (t *Tools) saveForLaterDef() tool.Definition {
	return tool.Definition{
		ID:          "save_for_later",
		Name:        "Save for later",
		Description: "Set a product aside on the account's saved list, removing it from the cart if present",
		Category:    "cart",
		Params: map[string]tool.ParamSpec{
			"product_id": {Type: tool.TypeString, Required: true},
		},
		Security: &tool.SecurityConstraints{RequireAuth: true},
	}
}

func (t *Tools) saveForLater(ctx context.Context, params map[string]any, s *state.Session) ([]state.Command, error) {
	if !s.Authenticated {
		return nil, errors.Authentication("AUTH_REQUIRED", "sign in to save items for later")
	}
	productID := tool.String(params, "product_id", "")

	name := ""
	items := make([]state.CartItem, 0, len(s.Cart.Items))
	removed := false
	for _, it := range s.Cart.Items {
		if it.ProductID == productID {
			removed = true
			name = it.Name
			continue
		}
		items = append(items, it)
	}
	if !removed {
		p, err := t.backend.GetProduct(ctx, productID)
		if err != nil {
			return nil, err
		}
		name = p.Name
	}

	saved := make([]map[string]any, 0, 4)
	if prev, ok := s.Context["saved_for_later"].([]map[string]any); ok {
		saved = append(saved, prev...)
	}
	for _, it := range saved {
		if it["product_id"] == productID {
			return nil, errors.Conflict("ALREADY_SAVED", name+" is already saved for later").
				WithRetryable(false)
		}
	}
	saved = append(saved, map[string]any{
		"product_id": productID,
		"name":       name,
		"saved_at":   time.Now().UTC().Format(time.RFC3339),
	})

	cmds := []state.Command{state.UpdateContext{Values: map[string]any{
		"saved_for_later": saved,
	}}}
	if removed {
		cmds = append(cmds, state.UpdateCart{Cart: newCart(items)})
	}
	return cmds, nil
}

func (t *Tools) addToComparisonDef() tool.Definition {
	return tool.Definition{
		ID:          "add_to_comparison",
		Name:        "Add to comparison",
		Description: "Add a product to the side-by-side comparison set",
		Category:    "comparison",
		Params: map[string]tool.ParamSpec{
			"product_id": {Type: tool.TypeString, Required: true},
		},
	}
}

func (t *Tools) addToComparison(ctx context.Context, params map[string]any, s *state.Session) ([]state.Command, error) {
	productID := tool.String(params, "product_id", "")

	if len(s.Comparison.Items) >= t.comparisonCap {
		return nil, errors.BusinessRule("COMPARISON_FULL", "comparison set is full; remove an item first")
	}
	for _, it := range s.Comparison.Items {
		if it.ProductID == productID {
			return nil, errors.Conflict("ALREADY_COMPARING", it.Name+" is already in the comparison").
				WithRetryable(false)
		}
	}

	p, err := t.backend.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}

	items := append([]state.ComparisonItem(nil), s.Comparison.Items...)
	items = append(items, state.ComparisonItem{ProductID: p.ID, Name: p.Name, UnitPrice: p.Price})

	return []state.Command{state.UpdateCart{Comparison: &state.Comparison{
		Items:     items,
		UpdatedAt: time.Now().UTC(),
	}}}, nil
}

func (t *Tools) viewComparisonDef() tool.Definition {
	return tool.Definition{
		ID:          "view_comparison",
		Name:        "View comparison",
		Description: "Show the products currently being compared",
		Category:    "comparison",
		Params:      map[string]tool.ParamSpec{},
	}
}

func (t *Tools) viewComparison(ctx context.Context, params map[string]any, s *state.Session) ([]state.Command, error) {
	view := make([]map[string]any, 0, len(s.Comparison.Items))
	for _, it := range s.Comparison.Items {
		view = append(view, map[string]any{
			"product_id": it.ProductID,
			"name":       it.Name,
			"unit_price": it.UnitPrice,
		})
	}

	return []state.Command{state.UpdateContext{Values: map[string]any{
		"comparison_view": view,
	}}}, nil
}
