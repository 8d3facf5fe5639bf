package types

import "time"

// EventType is the push-channel message discriminator
type EventType string

const (
	EventConnectionAck EventType = "CONNECTION_SUCCESS"
	EventCallbackAlert EventType = "CALLBACK_ALERT"
	EventHeartbeat     EventType = "HEARTBEAT"
)

// Urgency frames a callback alert
type Urgency string

const (
	UrgencyNormal  Urgency = "normal"
	UrgencyOverdue Urgency = "overdue"
)

// ConnState is the state of one agent's push connection
type ConnState string

const (
	ConnConnecting ConnState = "connecting"
	ConnOpen       ConnState = "open"
	ConnClosed     ConnState = "closed"
)

// PushEvent is an inbound message from the notification server
type PushEvent struct {
	Type       EventType      `json:"type"`
	AgentID    int            `json:"agentId"`
	ReceivedAt time.Time      `json:"receivedAt"`
	Callback   *CallbackAlert `json:"callback,omitempty"` // set for EventCallbackAlert only
}

// CallbackAlert is the payload of a CALLBACK_ALERT message
type CallbackAlert struct {
	LeadID    int     `json:"lead_id"`
	LeadName  string  `json:"lead_name"`
	LeadPhone string  `json:"lead_phone"`
	Urgency   Urgency `json:"urgency"`
	Notes     string  `json:"callback_notes,omitempty"`
}

// ChannelStatus is published on every connection state transition
type ChannelStatus struct {
	AgentID   int       `json:"agentId"`
	State     ConnState `json:"state"`
	Attempts  int       `json:"attempts"`
	Exhausted bool      `json:"exhausted"`
	Timestamp time.Time `json:"timestamp"`
}

// Live reports whether alerts are currently being delivered
func (s ChannelStatus) Live() bool {
	return s.State == ConnOpen
}
