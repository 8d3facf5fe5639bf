package order

import "strings"

// Combination is one entry of a product's variant matrix
type Combination struct {
	Attributes map[string]string `json:"attributes"`
	Label      string            `json:"label"`
}

const labelSeparator = " / "

// Combinations enumerates the Cartesian product of options in declaration
// order. Options without values are skipped; no options yields no
// combinations.
func Combinations(options []Option) []Combination {
	dims := make([]Option, 0, len(options))
	for _, o := range options {
		if len(o.Values) > 0 {
			dims = append(dims, o)
		}
	}
	if len(dims) == 0 {
		return nil
	}

	total := 1
	for _, d := range dims {
		total *= len(d.Values)
	}
	out := make([]Combination, 0, total)
	chosen := make([]string, len(dims))

	var walk func(depth int)
	walk = func(depth int) {
		if depth == len(dims) {
			attrs := make(map[string]string, len(dims))
			for i, d := range dims {
				attrs[d.Name] = chosen[i]
			}
			out = append(out, Combination{
				Attributes: attrs,
				Label:      strings.Join(chosen, labelSeparator),
			})
			return
		}
		for _, v := range dims[depth].Values {
			chosen[depth] = v
			walk(depth + 1)
		}
	}
	walk(0)

	return out
}

// Label renders a selection in option order, e.g. "Black / L"
func Label(options []Option, selection map[string]string) string {
	parts := make([]string, 0, len(options))
	for _, o := range options {
		if v, ok := selection[o.Name]; ok && v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, labelSeparator)
}
