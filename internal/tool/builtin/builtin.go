// Package builtin registers the commerce actions the agent can take. Every
// implementation reads the session snapshot, acts on the commerce backend,
// and describes its effect purely as state commands.
package builtin

import (
	"time"

	"github.com/akindolabs/akindo/internal/commerce"
	"github.com/akindolabs/akindo/internal/state"
	"github.com/akindolabs/akindo/internal/tool"
)

type Tools struct {
	backend       commerce.Backend
	comparisonCap int
}

func New(backend commerce.Backend, comparisonCap int) *Tools {
	if comparisonCap <= 0 {
		comparisonCap = 4
	}
	return &Tools{backend: backend, comparisonCap: comparisonCap}
}

// Register installs every builtin tool into the registry.
func (t *Tools) Register(r *tool.Registry) error {
	for _, reg := range []struct {
		def  tool.Definition
		impl tool.Implementation
	}{
		{t.searchProductsDef(), t.searchProducts},
		{t.getProductDetailsDef(), t.getProductDetails},
		{t.addToCartDef(), t.addToCart},
		{t.updateCartItemDef(), t.updateCartItem},
		{t.removeFromCartDef(), t.removeFromCart},
		{t.viewCartDef(), t.viewCart},
		{t.checkoutDef(), t.checkout},
		{t.applyCouponDef(), t.applyCoupon},
		{t.saveForLaterDef(), t.saveForLater},
		{t.addToComparisonDef(), t.addToComparison},
		{t.viewComparisonDef(), t.viewComparison},
		{t.trackOrderDef(), t.trackOrder},
		{t.bulkSearchDef(), t.bulkSearch},
		{t.requestQuoteDef(), t.requestQuote},
		{t.taxExemptionDef(), t.taxExemption},
	} {
		if err := r.Register(reg.def, reg.impl); err != nil {
			return err
		}
	}
	return nil
}

func floatPtr(f float64) *float64 { return &f }

func cartTotal(items []state.CartItem) float64 {
	var total float64
	for _, it := range items {
		total += it.UnitPrice * float64(it.Quantity)
	}
	return total
}

func newCart(items []state.CartItem) *state.Cart {
	return &state.Cart{
		Items:     items,
		Total:     cartTotal(items),
		UpdatedAt: time.Now().UTC(),
	}
}
