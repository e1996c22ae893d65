package builtin

import (
	"context"

	"github.com/akindolabs/akindo/internal/commerce"
	"github.com/akindolabs/akindo/internal/state"
	"github.com/akindolabs/akindo/internal/tool"
)

func (t *Tools) searchProductsDef() tool.Definition {
	return tool.Definition{
		ID:          "search_products",
		Name:        "Search products",
		Description: "Search the catalog by free-text query with optional category and price filters",
		Category:    "catalog",
		Params: map[string]tool.ParamSpec{
			"query":     {Type: tool.TypeString, Required: true, Description: "What the shopper is looking for"},
			"category":  {Type: tool.TypeString, Description: "Restrict results to one category"},
			"max_price": {Type: tool.TypeNumber, Min: floatPtr(0), Description: "Upper bound on unit price"},
			"limit":     {Type: tool.TypeInteger, Default: float64(5), Min: floatPtr(1), Max: floatPtr(20)},
		},
	}
}

func (t *Tools) searchProducts(ctx context.Context, params map[string]any, s *state.Session) ([]state.Command, error) {
	query := tool.String(params, "query", "")
	results, err := t.backend.SearchProducts(ctx, commerce.SearchQuery{
		Text:     query,
		Category: tool.String(params, "category", ""),
		MaxPrice: tool.Float(params, "max_price", 0),
		Limit:    tool.Int(params, "limit", 5),
	})
	if err != nil {
		return nil, err
	}

	view := make([]map[string]any, 0, len(results))
	for _, r := range results {
		view = append(view, map[string]any{
			"id":       r.Product.ID,
			"name":     r.Product.Name,
			"price":    r.Product.Price,
			"currency": r.Product.Currency,
			"category": r.Product.Category,
			"in_stock": r.Product.InStock > 0,
		})
	}

	return []state.Command{state.UpdateContext{Values: map[string]any{
		"last_query":     query,
		"search_results": view,
	}}}, nil
}

func (t *Tools) getProductDetailsDef() tool.Definition {
	return tool.Definition{
		ID:          "get_product_details",
		Name:        "Get product details",
		Description: "Fetch full details for one product by id",
		Category:    "catalog",
		Params: map[string]tool.ParamSpec{
			"product_id": {Type: tool.TypeString, Required: true},
		},
	}
}

func (t *Tools) getProductDetails(ctx context.Context, params map[string]any, s *state.Session) ([]state.Command, error) {
	p, err := t.backend.GetProduct(ctx, tool.String(params, "product_id", ""))
	if err != nil {
		return nil, err
	}

	detail := map[string]any{
		"id":          p.ID,
		"sku":         p.SKU,
		"name":        p.Name,
		"description": p.Description,
		"category":    p.Category,
		"price":       p.Price,
		"currency":    p.Currency,
		"in_stock":    p.InStock,
		"rating":      p.Rating,
	}
	if len(p.PriceBreaks) > 0 && s.Mode == state.ModeB2B {
		tiers := make([]map[string]any, 0, len(p.PriceBreaks))
		for _, br := range p.PriceBreaks {
			tiers = append(tiers, map[string]any{"min_qty": br.MinQty, "unit_price": br.UnitPrice})
		}
		detail["price_breaks"] = tiers
		detail["moq"] = p.MOQ
	}

	return []state.Command{state.UpdateContext{Values: map[string]any{
		"product_detail": detail,
	}}}, nil
}

func (t *Tools) bulkSearchDef() tool.Definition {
	return tool.Definition{
		ID:          "bulk_search",
		Name:        "Bulk search",
		Description: "Search the catalog for products available at volume, with tiered pricing",
		Category:    "catalog",
		Modes:       []state.Mode{state.ModeB2B},
		Params: map[string]tool.ParamSpec{
			"query":    {Type: tool.TypeString, Required: true},
			"quantity": {Type: tool.TypeInteger, Required: true, Min: floatPtr(1), Description: "Units needed"},
		},
	}
}

func (t *Tools) bulkSearch(ctx context.Context, params map[string]any, s *state.Session) ([]state.Command, error) {
	qty := tool.Int(params, "quantity", 1)
	results, err := t.backend.SearchProducts(ctx, commerce.SearchQuery{
		Text:  tool.String(params, "query", ""),
		Limit: 10,
	})
	if err != nil {
		return nil, err
	}

	view := make([]map[string]any, 0, len(results))
	for _, r := range results {
		p := r.Product
		if p.InStock < qty {
			continue
		}
		view = append(view, map[string]any{
			"id":         p.ID,
			"name":       p.Name,
			"unit_price": p.UnitPriceFor(qty),
			"list_price": p.Price,
			"moq":        p.MOQ,
			"in_stock":   p.InStock,
		})
	}

	return []state.Command{state.UpdateContext{Values: map[string]any{
		"bulk_results":  view,
		"bulk_quantity": qty,
	}}}, nil
}
