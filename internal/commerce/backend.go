package commerce

import (
	"context"
	"time"
)

// Product is one catalog entry. B2B fields (PriceBreaks, MOQ) are zero for
// consumer-only items.
type Product struct {
	ID          string       `json:"id"`
	SKU         string       `json:"sku"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Category    string       `json:"category"`
	Price       float64      `json:"price"`
	Currency    string       `json:"currency"`
	InStock     int          `json:"in_stock"`
	Rating      float64      `json:"rating,omitempty"`
	Tags        []string     `json:"tags,omitempty"`
	PriceBreaks []PriceBreak `json:"price_breaks,omitempty"`
	MOQ         int          `json:"moq,omitempty"`
}

// PriceBreak is a volume tier: unit price for quantities at or above MinQty.
type PriceBreak struct {
	MinQty    int     `json:"min_qty"`
	UnitPrice float64 `json:"unit_price"`
}

// UnitPriceFor resolves the effective unit price for a quantity, walking the
// volume tiers. Falls back to list price when no tier applies.
func (p Product) UnitPriceFor(qty int) float64 {
	price := p.Price
	for _, br := range p.PriceBreaks {
		if qty >= br.MinQty && br.UnitPrice < price {
			price = br.UnitPrice
		}
	}
	return price
}

type SearchQuery struct {
	Text     string
	Category string
	MaxPrice float64
	Limit    int
}

type SearchResult struct {
	Product Product
	Score   float64
}

type OrderStatus string

const (
	OrderConfirmed OrderStatus = "confirmed"
	OrderPacking   OrderStatus = "packing"
	OrderShipped   OrderStatus = "shipped"
	OrderDelivered OrderStatus = "delivered"
)

type OrderItem struct {
	ProductID string  `json:"product_id"`
	Name      string  `json:"name"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
}

type Order struct {
	ID        string      `json:"id"`
	ThreadID  string      `json:"thread_id"`
	Items     []OrderItem `json:"items"`
	Subtotal  float64     `json:"subtotal"`
	Discount  float64     `json:"discount"`
	Total     float64     `json:"total"`
	Coupon    string      `json:"coupon,omitempty"`
	Status    OrderStatus `json:"status"`
	CreatedAt time.Time   `json:"created_at"`
	ETA       time.Time   `json:"eta"`
}

type QuoteStatus string

const (
	QuotePending  QuoteStatus = "pending"
	QuoteApproved QuoteStatus = "approved"
)

// Quote is a B2B volume-pricing offer, valid until ExpiresAt.
type Quote struct {
	ID        string      `json:"id"`
	ThreadID  string      `json:"thread_id"`
	Items     []OrderItem `json:"items"`
	Total     float64     `json:"total"`
	Status    QuoteStatus `json:"status"`
	TaxExempt bool        `json:"tax_exempt"`
	CreatedAt time.Time   `json:"created_at"`
	ExpiresAt time.Time   `json:"expires_at"`
}

type Coupon struct {
	Code       string  `json:"code"`
	PercentOff float64 `json:"percent_off"`
	MinTotal   float64 `json:"min_total,omitempty"`
	Expired    bool    `json:"expired,omitempty"`
}

// Backend is the commerce system of record the agent acts against. All
// mutations happen here; the conversation state only mirrors the outcome.
type Backend interface {
	SearchProducts(ctx context.Context, q SearchQuery) ([]SearchResult, error)
	GetProduct(ctx context.Context, id string) (Product, error)
	CreateOrder(ctx context.Context, threadID string, items []OrderItem, couponCode string) (Order, error)
	TrackOrder(ctx context.Context, orderID string) (Order, error)
	CreateQuote(ctx context.Context, threadID string, items []OrderItem, taxExempt bool) (Quote, error)
	LookupCoupon(ctx context.Context, code string) (Coupon, error)
}
