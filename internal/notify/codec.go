package notify

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dennisdiepolder/monti/agentdesk/internal/types"
)

var (
	ErrMalformedEvent = errors.New("malformed push payload")
	ErrUnknownEvent   = errors.New("unknown push event type")
)

// wireMessage mirrors the JSON pushed on /ws/notifications/{agentId}
type wireMessage struct {
	Type          string  `json:"type"`
	LeadID        int     `json:"lead_id"`
	LeadName      string  `json:"lead_name"`
	LeadPhone     string  `json:"lead_phone"`
	Urgency       string  `json:"urgency"`
	CallbackNotes *string `json:"callback_notes"`
}

// ParseEvent decodes one push message into a PushEvent
func ParseEvent(data []byte, agentID int, receivedAt time.Time) (types.PushEvent, error) {
	var msg wireMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return types.PushEvent{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}

	event := types.PushEvent{
		Type:       types.EventType(msg.Type),
		AgentID:    agentID,
		ReceivedAt: receivedAt,
	}

	switch event.Type {
	case types.EventConnectionAck, types.EventHeartbeat:
		return event, nil
	case types.EventCallbackAlert:
		if msg.LeadID <= 0 {
			return types.PushEvent{}, fmt.Errorf("%w: callback alert without lead_id", ErrMalformedEvent)
		}
		alert := &types.CallbackAlert{
			LeadID:    msg.LeadID,
			LeadName:  msg.LeadName,
			LeadPhone: msg.LeadPhone,
			Urgency:   types.UrgencyNormal,
		}
		if msg.Urgency == "high" {
			alert.Urgency = types.UrgencyOverdue
		}
		if msg.CallbackNotes != nil {
			alert.Notes = *msg.CallbackNotes
		}
		event.Callback = alert
		return event, nil
	case "":
		return types.PushEvent{}, fmt.Errorf("%w: missing type", ErrMalformedEvent)
	default:
		return types.PushEvent{}, fmt.Errorf("%w: %q", ErrUnknownEvent, msg.Type)
	}
}
