package builtin

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akindolabs/akindo/internal/commerce"
	"github.com/akindolabs/akindo/internal/errors"
	"github.com/akindolabs/akindo/internal/state"
	"github.com/akindolabs/akindo/internal/tool"
)

func testTools(t *testing.T) (*Tools, *tool.Registry) {
	t.Helper()
	backend := commerce.NewMemoryBackend()
	require.NoError(t, commerce.SeedDemo(context.Background(), backend))

	tools := New(backend, 2)
	r := tool.NewRegistry()
	require.NoError(t, tools.Register(r))
	return tools, r
}

func run(t *testing.T, r *tool.Registry, id string, params map[string]any, s *state.Session) *state.Session {
	t.Helper()
	entry, ok := r.Get(id)
	require.True(t, ok, "tool %s not registered", id)

	parsed, err := entry.Schema.Parse(params)
	require.NoError(t, err)

	cmds, err := entry.Impl(context.Background(), parsed, s)
	require.NoError(t, err)
	return state.Apply(s, cmds)
}

func runErr(t *testing.T, r *tool.Registry, id string, params map[string]any, s *state.Session) *errors.Error {
	t.Helper()
	entry, ok := r.Get(id)
	require.True(t, ok)

	parsed, err := entry.Schema.Parse(params)
	require.NoError(t, err)

	_, err = entry.Impl(context.Background(), parsed, s)
	require.Error(t, err)
	e, _ := errors.As(err)
	require.NotNil(t, e)
	return e
}

func TestRegister_AllTools(t *testing.T) {
	_, r := testTools(t)
	assert.Len(t, r.List(), 15)

	// B2B-only tools are hidden from consumer sessions.
	var b2cIDs []string
	for _, e := range r.ForMode(state.ModeB2C) {
		b2cIDs = append(b2cIDs, e.Definition.ID)
	}
	assert.NotContains(t, b2cIDs, "request_quote")
	assert.NotContains(t, b2cIDs, "bulk_search")
	assert.NotContains(t, b2cIDs, "tax_exemption")
	assert.Contains(t, b2cIDs, "add_to_cart")
	assert.Contains(t, b2cIDs, "apply_coupon")
	assert.Contains(t, b2cIDs, "track_order")

	// Coupons and order tracking are consumer-only; business sessions never
	// see them.
	var b2bIDs []string
	for _, e := range r.ForMode(state.ModeB2B) {
		b2bIDs = append(b2bIDs, e.Definition.ID)
	}
	assert.NotContains(t, b2bIDs, "apply_coupon")
	assert.NotContains(t, b2bIDs, "track_order")

	// An unclassified session browses as a consumer.
	var unknownIDs []string
	for _, e := range r.ForMode(state.ModeUnknown) {
		unknownIDs = append(unknownIDs, e.Definition.ID)
	}
	assert.Contains(t, unknownIDs, "apply_coupon")
	assert.NotContains(t, unknownIDs, "request_quote")
}

func TestSearchProducts_WritesContext(t *testing.T) {
	_, r := testTools(t)
	s := state.NewSession("t1")

	out := run(t, r, "search_products", map[string]any{"query": "laptop"}, s)
	assert.Equal(t, "laptop", out.Context["last_query"])
	results := out.Context["search_results"].([]map[string]any)
	assert.NotEmpty(t, results)
}

func TestAddToCart_MergesQuantities(t *testing.T) {
	_, r := testTools(t)
	s := state.NewSession("t1")

	s = run(t, r, "add_to_cart", map[string]any{"product_id": "p-kbd-mech", "quantity": float64(1)}, s)
	s = run(t, r, "add_to_cart", map[string]any{"product_id": "p-kbd-mech", "quantity": float64(2)}, s)

	require.Len(t, s.Cart.Items, 1)
	assert.Equal(t, 3, s.Cart.Items[0].Quantity)
	assert.Equal(t, 387.0, s.Cart.Total)
	assert.False(t, s.Cart.UpdatedAt.IsZero())
}

func TestAddToCart_VolumePriceApplies(t *testing.T) {
	_, r := testTools(t)
	s := state.NewSession("t1")
	s.Mode = state.ModeB2B

	s = run(t, r, "add_to_cart", map[string]any{"product_id": "p-headset-nc", "quantity": float64(500)}, s)
	assert.Equal(t, 219.0, s.Cart.Items[0].UnitPrice)
}

func TestAddToCart_InsufficientStock(t *testing.T) {
	_, r := testTools(t)
	e := runErr(t, r, "add_to_cart", map[string]any{"product_id": "p-laptop-pro", "quantity": float64(50)}, state.NewSession("t1"))
	assert.Equal(t, "INSUFFICIENT_STOCK", e.Code)
}

func TestUpdateAndRemoveCartItem(t *testing.T) {
	_, r := testTools(t)
	s := state.NewSession("t1")

	s = run(t, r, "add_to_cart", map[string]any{"product_id": "p-kbd-mech"}, s)
	s = run(t, r, "update_cart_item", map[string]any{"product_id": "p-kbd-mech", "quantity": float64(5)}, s)
	assert.Equal(t, 5, s.Cart.Items[0].Quantity)

	s = run(t, r, "remove_from_cart", map[string]any{"product_id": "p-kbd-mech"}, s)
	assert.True(t, s.Cart.IsEmpty())

	e := runErr(t, r, "remove_from_cart", map[string]any{"product_id": "p-kbd-mech"}, s)
	assert.Equal(t, "CART_ITEM_NOT_FOUND", e.Code)
}

func TestViewCart(t *testing.T) {
	_, r := testTools(t)
	s := state.NewSession("t1")

	s = run(t, r, "view_cart", map[string]any{}, s)
	view := s.Context["cart_view"].(map[string]any)
	assert.Equal(t, true, view["empty"])
}

func TestCheckout_EmptiesCartAndRecordsOrder(t *testing.T) {
	_, r := testTools(t)
	s := state.NewSession("t1")

	s = run(t, r, "add_to_cart", map[string]any{"product_id": "p-monitor-34"}, s)
	s = run(t, r, "checkout", map[string]any{"coupon_code": "SPRING20"}, s)

	assert.True(t, s.Cart.IsEmpty())
	order := s.Context["order"].(map[string]any)
	assert.Equal(t, 559.2, order["total"])
	assert.Equal(t, "confirmed", order["status"])
}

func TestCheckout_EmptyCart(t *testing.T) {
	_, r := testTools(t)
	e := runErr(t, r, "checkout", map[string]any{}, state.NewSession("t1"))
	assert.Equal(t, "CART_EMPTY", e.Code)
}

func TestApplyCoupon_ChecksCartMinimum(t *testing.T) {
	_, r := testTools(t)
	s := state.NewSession("t1")

	e := runErr(t, r, "apply_coupon", map[string]any{"code": "SPRING20"}, s)
	assert.Equal(t, "COUPON_MINIMUM_NOT_MET", e.Code)

	s = run(t, r, "add_to_cart", map[string]any{"product_id": "p-monitor-34"}, s)
	s = run(t, r, "apply_coupon", map[string]any{"code": "SPRING20"}, s)
	coupon := s.Context["coupon"].(map[string]any)
	assert.Equal(t, "SPRING20", coupon["code"])
}

func TestSaveForLater_RequiresAuth(t *testing.T) {
	_, r := testTools(t)
	e := runErr(t, r, "save_for_later", map[string]any{"product_id": "p-kbd-mech"}, state.NewSession("t1"))
	assert.Equal(t, "AUTH_REQUIRED", e.Code)
}

func TestSaveForLater_MovesCartItemToSavedList(t *testing.T) {
	_, r := testTools(t)
	s := state.NewSession("t1")
	s.Authenticated = true

	s = run(t, r, "add_to_cart", map[string]any{"product_id": "p-kbd-mech"}, s)
	s = run(t, r, "save_for_later", map[string]any{"product_id": "p-kbd-mech"}, s)

	assert.True(t, s.Cart.IsEmpty())
	saved := s.Context["saved_for_later"].([]map[string]any)
	require.Len(t, saved, 1)
	assert.Equal(t, "p-kbd-mech", saved[0]["product_id"])
	assert.NotEmpty(t, saved[0]["name"])

	e := runErr(t, r, "save_for_later", map[string]any{"product_id": "p-kbd-mech"}, s)
	assert.Equal(t, "ALREADY_SAVED", e.Code)
}

func TestSaveForLater_FromCatalog(t *testing.T) {
	_, r := testTools(t)
	s := state.NewSession("t1")
	s.Authenticated = true

	// Saving a product that is not in the cart looks it up in the catalog.
	s = run(t, r, "save_for_later", map[string]any{"product_id": "p-monitor-27"}, s)
	saved := s.Context["saved_for_later"].([]map[string]any)
	require.Len(t, saved, 1)

	e := runErr(t, r, "save_for_later", map[string]any{"product_id": "p-does-not-exist"}, s)
	assert.Equal(t, "PRODUCT_NOT_FOUND", e.Code)
}

func TestComparison_CapacityAndDuplicates(t *testing.T) {
	_, r := testTools(t) // capacity 2
	s := state.NewSession("t1")

	s = run(t, r, "add_to_comparison", map[string]any{"product_id": "p-monitor-27"}, s)
	s = run(t, r, "add_to_comparison", map[string]any{"product_id": "p-monitor-34"}, s)
	assert.Len(t, s.Comparison.Items, 2)

	e := runErr(t, r, "add_to_comparison", map[string]any{"product_id": "p-laptop-air"}, s)
	assert.Equal(t, "COMPARISON_FULL", e.Code)

	s.Comparison.Items = s.Comparison.Items[:1]
	e = runErr(t, r, "add_to_comparison", map[string]any{"product_id": "p-monitor-27"}, s)
	assert.Equal(t, "ALREADY_COMPARING", e.Code)

	s = run(t, r, "view_comparison", map[string]any{}, s)
	view := s.Context["comparison_view"].([]map[string]any)
	assert.Len(t, view, 1)
}

func TestTrackOrder_RequiresAuth(t *testing.T) {
	tools, r := testTools(t)
	s := state.NewSession("t1")

	e := runErr(t, r, "track_order", map[string]any{"order_id": "ord_x"}, s)
	assert.Equal(t, "AUTH_REQUIRED", e.Code)

	// Authenticated user tracking a real order.
	order, err := tools.backend.CreateOrder(context.Background(), "t1", []commerce.OrderItem{
		{ProductID: "p-dock-usb", Quantity: 1},
	}, "")
	require.NoError(t, err)

	s.Authenticated = true
	s = run(t, r, "track_order", map[string]any{"order_id": order.ID}, s)
	tracked := s.Context["tracked_order"].(map[string]any)
	assert.Equal(t, order.ID, tracked["id"])
}

func TestRequestQuote_UsesRegisteredExemption(t *testing.T) {
	_, r := testTools(t)
	s := state.NewSession("t1")
	s.Mode = state.ModeB2B
	s.Authenticated = true

	s = run(t, r, "add_to_cart", map[string]any{"product_id": "p-headset-nc", "quantity": float64(500)}, s)
	s = run(t, r, "tax_exemption", map[string]any{"certificate_id": "TX-4411"}, s)
	s = run(t, r, "request_quote", map[string]any{}, s)

	quote := s.Context["quote"].(map[string]any)
	assert.Equal(t, true, quote["tax_exempt"])
	assert.Equal(t, 109500.0, quote["total"])
}

func TestBulkSearch_FiltersByAvailability(t *testing.T) {
	_, r := testTools(t)
	s := state.NewSession("t1")
	s.Mode = state.ModeB2B

	s = run(t, r, "bulk_search", map[string]any{"query": "noise cancelling headset", "quantity": float64(5000)}, s)
	results := s.Context["bulk_results"].([]map[string]any)
	require.NotEmpty(t, results)
	for _, row := range results {
		assert.GreaterOrEqual(t, row["in_stock"].(int), 5000)
	}
	assert.Equal(t, 199.0, results[0]["unit_price"])
}
