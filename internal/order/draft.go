package order

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dennisdiepolder/monti/agentdesk/internal/types"
)

var (
	ErrVariantSelection = errors.New("variant selection incomplete")
	ErrUnknownVariant   = errors.New("no variant matches selection")
	ErrInvalidQuantity  = errors.New("quantity must be positive")
	ErrLineIndex        = errors.New("line index out of range")
)

// Line is one item of an order draft
type Line struct {
	ProductID    int               `json:"productId"`
	ProductName  string            `json:"productName"`
	VariantID    int               `json:"variantId,omitempty"`
	VariantLabel string            `json:"variantLabel,omitempty"`
	Attributes   map[string]string `json:"attributes,omitempty"`
	Quantity     int               `json:"quantity"`
	UnitPrice    float64           `json:"unitPrice"`
}

// Total is unit price times quantity
func (l Line) Total() float64 {
	return l.UnitPrice * float64(l.Quantity)
}

// Logistics holds the delivery fields of a draft
type Logistics struct {
	City     string `json:"city"`
	Address  string `json:"address"`
	Courier  string `json:"courier,omitempty"`
	Exchange bool   `json:"exchange"`
}

// Draft accumulates order lines during a call. It is not safe for concurrent
// use; the owning session serializes access.
type Draft struct {
	lines     []Line
	logistics Logistics
}

// NewDraft returns an empty draft
func NewDraft() *Draft {
	return &Draft{}
}

// AddLine prices and appends a line. When the product declares variant
// dimensions every one of them must be selected.
func (d *Draft) AddLine(p Product, selection map[string]string, quantity int) (Line, error) {
	if quantity <= 0 {
		return Line{}, ErrInvalidQuantity
	}

	line := Line{
		ProductID:   p.ID,
		ProductName: p.Name,
		Quantity:    quantity,
		UnitPrice:   p.BasePrice,
	}

	if p.HasVariants() {
		var missing []string
		for _, o := range p.Options {
			if len(o.Values) > 0 && selection[o.Name] == "" {
				missing = append(missing, o.Name)
			}
		}
		if len(missing) > 0 {
			return Line{}, fmt.Errorf("%w: missing %s", ErrVariantSelection, strings.Join(missing, ", "))
		}

		attrs := make(map[string]string, len(p.Options))
		for _, o := range p.Options {
			if len(o.Values) > 0 {
				attrs[o.Name] = selection[o.Name]
			}
		}
		line.Attributes = attrs
		line.VariantLabel = Label(p.Options, attrs)

		if len(p.Variants) > 0 {
			v, ok := p.findVariant(attrs)
			if !ok {
				return Line{}, fmt.Errorf("%w: %s", ErrUnknownVariant, line.VariantLabel)
			}
			line.VariantID = v.ID
			if v.Price != nil {
				line.UnitPrice = *v.Price
			}
		}
	}

	d.lines = append(d.lines, line)
	return line, nil
}

// RemoveLine removes the line at index
func (d *Draft) RemoveLine(index int) error {
	if index < 0 || index >= len(d.lines) {
		return ErrLineIndex
	}
	d.lines = append(d.lines[:index], d.lines[index+1:]...)
	return nil
}

// SetQuantity changes the quantity of an existing line
func (d *Draft) SetQuantity(index, quantity int) error {
	if index < 0 || index >= len(d.lines) {
		return ErrLineIndex
	}
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	d.lines[index].Quantity = quantity
	return nil
}

// SetLogistics replaces the delivery fields
func (d *Draft) SetLogistics(l Logistics) {
	l.City = strings.TrimSpace(l.City)
	l.Address = strings.TrimSpace(l.Address)
	d.logistics = l
}

// Logistics returns the delivery fields
func (d *Draft) Logistics() Logistics {
	return d.logistics
}

// Lines returns a copy of the draft lines
func (d *Draft) Lines() []Line {
	out := make([]Line, len(d.lines))
	copy(out, d.lines)
	return out
}

// Len returns the number of lines
func (d *Draft) Len() int {
	return len(d.lines)
}

// Empty reports whether the draft has no lines
func (d *Draft) Empty() bool {
	return len(d.lines) == 0
}

// Reset clears lines and logistics
func (d *Draft) Reset() {
	d.lines = nil
	d.logistics = Logistics{}
}

// Totals computes the derived pricing from the current lines
func (d *Draft) Totals(rates Rates) Totals {
	return Compute(d.lines, d.logistics, rates)
}

// Items converts the lines to the order-creation wire shape
func (d *Draft) Items() []types.OrderItem {
	return Items(d.lines)
}

// Items converts lines to the order-creation wire shape
func Items(lines []Line) []types.OrderItem {
	items := make([]types.OrderItem, 0, len(lines))
	for _, l := range lines {
		items = append(items, types.OrderItem{
			ProductID:    l.ProductID,
			ProductName:  l.ProductName,
			VariantID:    l.VariantID,
			VariantLabel: l.VariantLabel,
			Attributes:   l.Attributes,
			Quantity:     l.Quantity,
			UnitPrice:    l.UnitPrice,
			Total:        l.Total(),
		})
	}
	return items
}
