package notify

import (
	"errors"
	"testing"
	"time"

	"github.com/dennisdiepolder/monti/agentdesk/internal/types"
)

func TestParseEvent(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		payload string
		wantErr error
		check   func(*testing.T, types.PushEvent)
	}{
		{
			name:    "connection ack",
			payload: `{"type":"CONNECTION_SUCCESS","message":"connected"}`,
			check: func(t *testing.T, ev types.PushEvent) {
				if ev.Type != types.EventConnectionAck {
					t.Errorf("expected ack, got %s", ev.Type)
				}
				if ev.Callback != nil {
					t.Error("ack must not carry a callback payload")
				}
			},
		},
		{
			name:    "heartbeat",
			payload: `{"type":"HEARTBEAT"}`,
			check: func(t *testing.T, ev types.PushEvent) {
				if ev.Type != types.EventHeartbeat {
					t.Errorf("expected heartbeat, got %s", ev.Type)
				}
				if !ev.ReceivedAt.Equal(now) || ev.AgentID != 3 {
					t.Errorf("unexpected envelope %+v", ev)
				}
			},
		},
		{
			name:    "overdue callback alert",
			payload: `{"type":"CALLBACK_ALERT","lead_id":12,"lead_name":"Amina","lead_phone":"0612345678","urgency":"high","callback_notes":"after 6pm"}`,
			check: func(t *testing.T, ev types.PushEvent) {
				cb := ev.Callback
				if cb == nil {
					t.Fatal("expected callback payload")
				}
				if cb.LeadID != 12 || cb.LeadName != "Amina" || cb.LeadPhone != "0612345678" {
					t.Errorf("unexpected lead fields %+v", cb)
				}
				if cb.Urgency != types.UrgencyOverdue {
					t.Errorf("expected overdue, got %s", cb.Urgency)
				}
				if cb.Notes != "after 6pm" {
					t.Errorf("expected notes, got %q", cb.Notes)
				}
			},
		},
		{
			name:    "normal urgency without notes",
			payload: `{"type":"CALLBACK_ALERT","lead_id":5,"lead_name":"Youssef","lead_phone":"0700000000","urgency":"medium"}`,
			check: func(t *testing.T, ev types.PushEvent) {
				if ev.Callback.Urgency != types.UrgencyNormal {
					t.Errorf("expected normal, got %s", ev.Callback.Urgency)
				}
				if ev.Callback.Notes != "" {
					t.Errorf("expected no notes, got %q", ev.Callback.Notes)
				}
			},
		},
		{name: "not json", payload: `hello`, wantErr: ErrMalformedEvent},
		{name: "missing type", payload: `{"lead_id":1}`, wantErr: ErrMalformedEvent},
		{name: "callback without lead", payload: `{"type":"CALLBACK_ALERT"}`, wantErr: ErrMalformedEvent},
		{name: "unknown type", payload: `{"type":"ORDER_SHIPPED"}`, wantErr: ErrUnknownEvent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := ParseEvent([]byte(tt.payload), 3, now)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			tt.check(t, ev)
		})
	}
}
