package types

import "time"

// UIEvent is pushed to the browser over the local feed
type UIEvent struct {
	Type      string      `json:"type"` // toast, alert, alert_dismissed, sound, status, session, queue
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload,omitempty"`
}

// Toast is a short-lived informational message
type Toast struct {
	Level   string        `json:"level"` // info, warning, error
	Message string        `json:"message"`
	TTL     time.Duration `json:"ttl"`
}

// Alert is a persistent-until-dismissed callback alert
type Alert struct {
	ID        string    `json:"id"`
	LeadID    int       `json:"leadId"`
	LeadName  string    `json:"leadName"`
	LeadPhone string    `json:"leadPhone"`
	DialURI   string    `json:"dialUri,omitempty"`
	Urgency   Urgency   `json:"urgency"`
	Title     string    `json:"title"`
	Notes     string    `json:"notes,omitempty"`
	Action    string    `json:"action"`
	CreatedAt time.Time `json:"createdAt"`
}

// SoundKind names a notification sound the UI knows how to play
type SoundKind string

const SoundCallback SoundKind = "callback"
