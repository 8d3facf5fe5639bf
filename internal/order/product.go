package order

// Option is one named variant dimension, e.g. Color with its allowed values
type Option struct {
	Name   string   `json:"name"`
	Values []string `json:"values"`
}

// Variant is one concrete combination of option values
type Variant struct {
	ID         int               `json:"id"`
	Attributes map[string]string `json:"attributes"`
	Price      *float64          `json:"price,omitempty"` // overrides the product base price
}

// Product is the catalog reference data a line is built from
type Product struct {
	ID        int       `json:"id"`
	Name      string    `json:"name"`
	BasePrice float64   `json:"base_price"`
	Options   []Option  `json:"options,omitempty"`
	Variants  []Variant `json:"variants,omitempty"`
}

// HasVariants reports whether the product declares variant dimensions
func (p Product) HasVariants() bool {
	for _, o := range p.Options {
		if len(o.Values) > 0 {
			return true
		}
	}
	return false
}

// findVariant returns the variant whose attributes match selection exactly
// on every declared dimension
func (p Product) findVariant(selection map[string]string) (Variant, bool) {
	for _, v := range p.Variants {
		match := true
		for _, o := range p.Options {
			if len(o.Values) == 0 {
				continue
			}
			if v.Attributes[o.Name] != selection[o.Name] {
				match = false
				break
			}
		}
		if match {
			return v, true
		}
	}
	return Variant{}, false
}
