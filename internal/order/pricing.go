package order

import "strings"

// Rates maps destination cities to shipping costs
type Rates struct {
	Cities  map[string]float64
	Default float64
}

// ShippingFor returns the configured cost for city, or the default rate.
// City matching ignores case and surrounding space.
func (r Rates) ShippingFor(city string) float64 {
	key := strings.ToLower(strings.TrimSpace(city))
	for name, cost := range r.Cities {
		if strings.ToLower(strings.TrimSpace(name)) == key {
			return cost
		}
	}
	return r.Default
}

// Totals are derived from the lines on every read and never stored
type Totals struct {
	Subtotal      float64 `json:"subtotal"`
	Shipping      float64 `json:"shipping"`
	Total         float64 `json:"total"`
	TotalQuantity int     `json:"totalQuantity"`
	Upsell        bool    `json:"upsell"`
}

// Compute derives totals for lines delivered per logistics
func Compute(lines []Line, logistics Logistics, rates Rates) Totals {
	var t Totals
	for _, l := range lines {
		t.Subtotal += l.Total()
		t.TotalQuantity += l.Quantity
	}

	if !logistics.Exchange {
		t.Shipping = rates.ShippingFor(logistics.City)
	}
	t.Total = t.Subtotal + t.Shipping
	t.Upsell = IsUpsell(lines)
	return t
}

// IsUpsell reports whether lines hold more than one unit or more than one line
func IsUpsell(lines []Line) bool {
	if len(lines) > 1 {
		return true
	}
	qty := 0
	for _, l := range lines {
		qty += l.Quantity
	}
	return qty > 1
}
