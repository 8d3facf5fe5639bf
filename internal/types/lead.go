package types

import "time"

// Lead is a prospective customer record as served by the CRM
type Lead struct {
	ID            int        `json:"id"`
	Name          string     `json:"name"`
	Phone         string     `json:"phone"`
	City          string     `json:"city,omitempty"`
	Address       string     `json:"address,omitempty"`
	Status        string     `json:"status,omitempty"`
	ProductName   string     `json:"product_name,omitempty"`
	CallAttempts  int        `json:"call_attempts,omitempty"`
	CallbackAt    *time.Time `json:"callback_date,omitempty"`
	CallbackNotes string     `json:"callback_notes,omitempty"`
}

// Clone returns a deep copy so a snapshot never shares state with the caller
func (l Lead) Clone() Lead {
	out := l
	if l.CallbackAt != nil {
		at := *l.CallbackAt
		out.CallbackAt = &at
	}
	return out
}

// PendingCallback returns the callback commitment carried by the lead, if any
func (l Lead) PendingCallback() *CallbackSchedule {
	if l.CallbackAt == nil || l.CallbackAt.IsZero() {
		return nil
	}
	return &CallbackSchedule{
		LeadID:   l.ID,
		LeadName: l.Name,
		At:       *l.CallbackAt,
		Notes:    l.CallbackNotes,
	}
}

// CallbackSchedule is a future callback commitment tied to a lead
type CallbackSchedule struct {
	LeadID   int       `json:"lead_id"`
	LeadName string    `json:"lead_name,omitempty"`
	At       time.Time `json:"callback_time"`
	Notes    string    `json:"callback_notes,omitempty"`
}

// QueueSnapshot is the read-only view of the agent's work lists
type QueueSnapshot struct {
	Focus     []Lead          `json:"focus"`
	Callbacks []CallbackEntry `json:"callbacks"`
	Stats     Stats           `json:"stats"`
	FetchedAt time.Time       `json:"fetchedAt"`
}

// CallbackEntry is a callback-list row annotated with its time status
type CallbackEntry struct {
	Lead   Lead   `json:"lead"`
	Status string `json:"status"` // overdue, upcoming, scheduled
}

// Stats holds per-period agent counters as reported by the CRM
type Stats struct {
	Period           string  `json:"period"`
	TotalCalls       int     `json:"total_calls"`
	Confirmed        int     `json:"confirmed"`
	Callbacks        int     `json:"callbacks"`
	NoAnswer         int     `json:"no_answer"`
	Cancelled        int     `json:"cancelled"`
	WrongNumber      int     `json:"wrong_number"`
	ConfirmationRate float64 `json:"confirmation_rate"`
}
