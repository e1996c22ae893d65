package commerce

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/philippgille/chromem-go"

	"github.com/akindolabs/akindo/internal/errors"
	"github.com/akindolabs/akindo/internal/logger"
)

const (
	catalogCollection = "catalog"
	embeddingDim      = 64
	quoteValidity     = 14 * 24 * time.Hour
	deliveryLeadTime  = 5 * 24 * time.Hour
)

// MemoryBackend is an in-process commerce backend: a chromem collection for
// semantic catalog search plus map-backed orders, quotes and coupons. Used by
// the demo catalog and by tests; production deployments swap in a real
// storefront behind the same interface.
type MemoryBackend struct {
	mu       sync.RWMutex
	db       *chromem.DB
	products map[string]Product
	orders   map[string]Order
	quotes   map[string]Quote
	coupons  map[string]Coupon
	now      func() time.Time
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		db:       chromem.NewDB(),
		products: make(map[string]Product),
		orders:   make(map[string]Order),
		quotes:   make(map[string]Quote),
		coupons:  make(map[string]Coupon),
		now:      time.Now,
	}
}

// AddProducts indexes products into the catalog collection. Embeddings are
// computed locally so the backend works offline and deterministically.
func (b *MemoryBackend) AddProducts(ctx context.Context, products ...Product) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	col, err := b.db.GetOrCreateCollection(catalogCollection, nil, nil)
	if err != nil {
		return errors.Integration("CATALOG_INIT_FAILED", "open catalog collection").WithCause(err)
	}

	docs := make([]chromem.Document, 0, len(products))
	for _, p := range products {
		b.products[p.ID] = p
		docs = append(docs, chromem.Document{
			ID:        p.ID,
			Metadata:  map[string]string{"category": p.Category, "sku": p.SKU},
			Embedding: embedText(p.Name + " " + p.Description + " " + strings.Join(p.Tags, " ")),
			Content:   p.Name,
		})
	}
	if err := col.AddDocuments(ctx, docs, 1); err != nil {
		return errors.Integration("CATALOG_INDEX_FAILED", "index products").WithCause(err)
	}
	logger.Component("commerce").Debug("Indexed products", "count", len(products))
	return nil
}

func (b *MemoryBackend) AddCoupons(coupons ...Coupon) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, c := range coupons {
		b.coupons[strings.ToUpper(c.Code)] = c
	}
}

func (b *MemoryBackend) SearchProducts(ctx context.Context, q SearchQuery) ([]SearchResult, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	limit := q.Limit
	if limit <= 0 {
		limit = 5
	}

	col := b.db.GetCollection(catalogCollection, nil)
	if col == nil || col.Count() == 0 {
		return nil, nil
	}

	// Over-fetch so post-filters on category and price still fill the page.
	n := limit * 3
	if n > col.Count() {
		n = col.Count()
	}
	docs, err := col.QueryEmbedding(ctx, embedText(q.Text), n, nil, nil)
	if err != nil {
		return nil, errors.Integration("CATALOG_SEARCH_FAILED", "query catalog").WithCause(err)
	}

	var out []SearchResult
	for _, doc := range docs {
		p, ok := b.products[doc.ID]
		if !ok {
			continue
		}
		if q.Category != "" && !strings.EqualFold(p.Category, q.Category) {
			continue
		}
		if q.MaxPrice > 0 && p.Price > q.MaxPrice {
			continue
		}
		out = append(out, SearchResult{Product: p, Score: float64(doc.Similarity)})
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (b *MemoryBackend) GetProduct(ctx context.Context, id string) (Product, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	p, ok := b.products[id]
	if !ok {
		return Product{}, errors.NotFound("PRODUCT_NOT_FOUND", "no product with id "+id)
	}
	return p, nil
}

func (b *MemoryBackend) CreateOrder(ctx context.Context, threadID string, items []OrderItem, couponCode string) (Order, error) {
	if len(items) == 0 {
		return Order{}, errors.Validation("CART_EMPTY", "cannot create an order with no items")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	var subtotal float64
	for i, it := range items {
		p, ok := b.products[it.ProductID]
		if !ok {
			return Order{}, errors.NotFound("PRODUCT_NOT_FOUND", "no product with id "+it.ProductID)
		}
		if it.Quantity > p.InStock {
			return Order{}, errors.BusinessRule("INSUFFICIENT_STOCK",
				fmt.Sprintf("only %d of %s in stock", p.InStock, p.Name))
		}
		// Server-side pricing: whatever the caller claims, the catalog wins.
		items[i].UnitPrice = p.UnitPriceFor(it.Quantity)
		items[i].Name = p.Name
		subtotal += items[i].UnitPrice * float64(it.Quantity)
	}

	var discount float64
	if couponCode != "" {
		c, err := b.lookupCouponLocked(couponCode, subtotal)
		if err != nil {
			return Order{}, err
		}
		discount = round2(subtotal * c.PercentOff / 100)
	}

	now := b.now().UTC()
	order := Order{
		ID:        "ord_" + ulid.Make().String(),
		ThreadID:  threadID,
		Items:     items,
		Subtotal:  round2(subtotal),
		Discount:  discount,
		Total:     round2(subtotal - discount),
		Coupon:    strings.ToUpper(couponCode),
		Status:    OrderConfirmed,
		CreatedAt: now,
		ETA:       now.Add(deliveryLeadTime),
	}
	if couponCode == "" {
		order.Coupon = ""
	}

	for _, it := range items {
		p := b.products[it.ProductID]
		p.InStock -= it.Quantity
		b.products[it.ProductID] = p
	}
	b.orders[order.ID] = order
	logger.Component("commerce").Info("Order created", "order", order.ID, "total", order.Total)
	return order, nil
}

func (b *MemoryBackend) TrackOrder(ctx context.Context, orderID string) (Order, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	o, ok := b.orders[orderID]
	if !ok {
		return Order{}, errors.NotFound("ORDER_NOT_FOUND", "no order with id "+orderID)
	}

	// Status advances with age so tracking a demo order feels alive.
	age := b.now().UTC().Sub(o.CreatedAt)
	switch {
	case age > 3*24*time.Hour:
		o.Status = OrderShipped
	case age > 24*time.Hour:
		o.Status = OrderPacking
	}
	return o, nil
}

func (b *MemoryBackend) CreateQuote(ctx context.Context, threadID string, items []OrderItem, taxExempt bool) (Quote, error) {
	if len(items) == 0 {
		return Quote{}, errors.Validation("CART_EMPTY", "cannot quote an empty item list")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	var total float64
	for i, it := range items {
		p, ok := b.products[it.ProductID]
		if !ok {
			return Quote{}, errors.NotFound("PRODUCT_NOT_FOUND", "no product with id "+it.ProductID)
		}
		if p.MOQ > 0 && it.Quantity < p.MOQ {
			return Quote{}, errors.BusinessRule("BELOW_MINIMUM_ORDER",
				fmt.Sprintf("%s requires a minimum order of %d units", p.Name, p.MOQ))
		}
		items[i].UnitPrice = p.UnitPriceFor(it.Quantity)
		items[i].Name = p.Name
		total += items[i].UnitPrice * float64(it.Quantity)
	}

	now := b.now().UTC()
	quote := Quote{
		ID:        "qt_" + ulid.Make().String(),
		ThreadID:  threadID,
		Items:     items,
		Total:     round2(total),
		Status:    QuotePending,
		TaxExempt: taxExempt,
		CreatedAt: now,
		ExpiresAt: now.Add(quoteValidity),
	}
	b.quotes[quote.ID] = quote
	logger.Component("commerce").Info("Quote created", "quote", quote.ID, "total", quote.Total)
	return quote, nil
}

func (b *MemoryBackend) LookupCoupon(ctx context.Context, code string) (Coupon, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lookupCouponLocked(code, 0)
}

func (b *MemoryBackend) lookupCouponLocked(code string, subtotal float64) (Coupon, error) {
	c, ok := b.coupons[strings.ToUpper(code)]
	if !ok {
		return Coupon{}, errors.NotFound("COUPON_NOT_FOUND", "unknown coupon code")
	}
	if c.Expired {
		return Coupon{}, errors.BusinessRule("COUPON_EXPIRED", "coupon "+c.Code+" has expired")
	}
	if subtotal > 0 && c.MinTotal > 0 && subtotal < c.MinTotal {
		return Coupon{}, errors.BusinessRule("COUPON_MINIMUM_NOT_MET",
			fmt.Sprintf("coupon %s requires a minimum order of %.2f", c.Code, c.MinTotal))
	}
	return c, nil
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}

// embedText hashes tokens into a fixed-size bag-of-words vector and
// normalizes it. Not a semantic embedding, but deterministic and offline:
// identical wording always lands on the same products, which is what the
// demo catalog and tests need.
func embedText(text string) []float32 {
	vec := make([]float32, embeddingDim)
	for _, tok := range strings.Fields(strings.ToLower(text)) {
		tok = strings.Trim(tok, ".,!?;:\"'()")
		if len(tok) < 2 {
			continue
		}
		h := fnv.New32a()
		h.Write([]byte(tok))
		vec[h.Sum32()%embeddingDim]++
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		vec[0] = 1
		return vec
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec
}
