package commerce

import "context"

// SeedDemo loads a small electronics catalog and a few coupons into the
// backend. The REPL and the scenario tests run against this data.
func SeedDemo(ctx context.Context, b *MemoryBackend) error {
	products := []Product{
		{
			ID: "p-laptop-air", SKU: "LT-1001", Name: "Aria 14 Laptop",
			Description: "Lightweight 14-inch laptop for everyday work and travel",
			Category:    "laptops", Price: 899, Currency: "USD", InStock: 120, Rating: 4.5,
			Tags:        []string{"portable", "ultrabook"},
			PriceBreaks: []PriceBreak{{MinQty: 50, UnitPrice: 849}, {MinQty: 200, UnitPrice: 799}},
		},
		{
			ID: "p-laptop-pro", SKU: "LT-2001", Name: "Forge 16 Workstation",
			Description: "16-inch workstation laptop for engineering and video editing",
			Category:    "laptops", Price: 2199, Currency: "USD", InStock: 40, Rating: 4.7,
			Tags: []string{"workstation", "performance"},
		},
		{
			ID: "p-monitor-27", SKU: "MN-2701", Name: "Clarity 27 Monitor",
			Description: "27-inch 4K IPS monitor with USB-C power delivery",
			Category:    "monitors", Price: 449, Currency: "USD", InStock: 200, Rating: 4.4,
			Tags:        []string{"4k", "usb-c"},
			PriceBreaks: []PriceBreak{{MinQty: 20, UnitPrice: 419}},
		},
		{
			ID: "p-monitor-34", SKU: "MN-3401", Name: "Panorama 34 Ultrawide",
			Description: "34-inch curved ultrawide monitor for multitasking",
			Category:    "monitors", Price: 699, Currency: "USD", InStock: 85, Rating: 4.6,
			Tags: []string{"ultrawide", "curved"},
		},
		{
			ID: "p-dock-usb", SKU: "AC-1101", Name: "Nexus Dock",
			Description: "USB-C docking station with dual display output",
			Category:    "accessories", Price: 179, Currency: "USD", InStock: 500, Rating: 4.2,
			Tags:        []string{"usb-c", "dock"},
			PriceBreaks: []PriceBreak{{MinQty: 100, UnitPrice: 159}},
			MOQ:         0,
		},
		{
			ID: "p-kbd-mech", SKU: "AC-1201", Name: "Tactile Pro Keyboard",
			Description: "Mechanical keyboard with low-profile switches",
			Category:    "accessories", Price: 129, Currency: "USD", InStock: 350, Rating: 4.3,
			Tags: []string{"mechanical", "keyboard"},
		},
		{
			ID: "p-chair-erg", SKU: "FN-3001", Name: "Posture One Chair",
			Description: "Ergonomic office chair with adjustable lumbar support",
			Category:    "furniture", Price: 549, Currency: "USD", InStock: 60, Rating: 4.5,
			Tags:        []string{"ergonomic", "office"},
			PriceBreaks: []PriceBreak{{MinQty: 25, UnitPrice: 499}},
			MOQ:         0,
		},
		{
			ID: "p-headset-nc", SKU: "AU-4001", Name: "Hush Headset",
			Description: "Noise cancelling headset for calls and focus work",
			Category:    "audio", Price: 249, Currency: "USD", InStock: 15000, Rating: 4.1,
			Tags:        []string{"noise-cancelling", "wireless"},
			PriceBreaks: []PriceBreak{{MinQty: 500, UnitPrice: 219}, {MinQty: 2000, UnitPrice: 199}},
			MOQ:         10,
		},
	}

	if err := b.AddProducts(ctx, products...); err != nil {
		return err
	}

	b.AddCoupons(
		Coupon{Code: "WELCOME10", PercentOff: 10},
		Coupon{Code: "SPRING20", PercentOff: 20, MinTotal: 500},
		Coupon{Code: "EXPIRED5", PercentOff: 5, Expired: true},
	)
	return nil
}
