package types

import "time"

// Outcome is the terminal disposition of a call
type Outcome string

const (
	OutcomeConfirmed   Outcome = "CONFIRMED"
	OutcomeCallback    Outcome = "CALLBACK"
	OutcomeNoAnswer    Outcome = "NO_ANSWER"
	OutcomeCancelled   Outcome = "CANCELLED"
	OutcomeWrongNumber Outcome = "WRONG_NUMBER"
)

// Valid reports whether o is one of the known outcomes
func (o Outcome) Valid() bool {
	switch o {
	case OutcomeConfirmed, OutcomeCallback, OutcomeNoAnswer, OutcomeCancelled, OutcomeWrongNumber:
		return true
	}
	return false
}

// CallLog is the body of POST /api/v1/calls/log
type CallLog struct {
	LeadID             int        `json:"lead_id"`
	Outcome            Outcome    `json:"outcome"`
	Duration           int        `json:"duration"` // seconds
	Notes              string     `json:"notes"`
	CallbackDate       *time.Time `json:"callback_date,omitempty"`
	CancellationReason string     `json:"cancellation_reason,omitempty"`
}

// OrderItem is one line of an order-creation request
type OrderItem struct {
	ProductID    int               `json:"product_id"`
	ProductName  string            `json:"product_name"`
	VariantID    int               `json:"variant_id,omitempty"`
	VariantLabel string            `json:"variant_label,omitempty"`
	Attributes   map[string]string `json:"attributes,omitempty"`
	Quantity     int               `json:"quantity"`
	UnitPrice    float64           `json:"unit_price"`
	Total        float64           `json:"total"`
}

// OrderRequest is the body of POST /api/v1/orders/call-center
type OrderRequest struct {
	LeadID        int         `json:"lead_id"`
	CustomerName  string      `json:"customer_name"`
	CustomerPhone string      `json:"customer_phone"`
	City          string      `json:"city"`
	Address       string      `json:"address"`
	Courier       string      `json:"courier,omitempty"`
	Items         []OrderItem `json:"items"`
	Subtotal      float64     `json:"subtotal"`
	ShippingCost  float64     `json:"shipping_cost"`
	Total         float64     `json:"total"`
	IsExchange    bool        `json:"is_exchange"`
	IsUpsell      bool        `json:"is_upsell"`
	Notes         string      `json:"notes,omitempty"`
}

// OrderCreated is the CRM's answer to an order-creation request
type OrderCreated struct {
	ID        int    `json:"id"`
	Reference string `json:"reference,omitempty"`
}

// CallbackRequest is the body of POST /api/v1/leads/{leadId}/schedule-callback
type CallbackRequest struct {
	CallbackTime  string `json:"callback_time"` // ISO-8601
	CallbackNotes string `json:"callback_notes,omitempty"`
	Status        string `json:"status"`
}

// LeadStatusCallback is the lead status sent with a scheduling request
const LeadStatusCallback = "CALLBACK"
