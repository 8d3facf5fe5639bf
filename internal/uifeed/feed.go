package uifeed

import (
	"errors"
	"time"

	"github.com/dennisdiepolder/monti/agentdesk/internal/session"
	"github.com/dennisdiepolder/monti/agentdesk/internal/types"
)

var ErrNoClients = errors.New("no ui client connected")

// Feed adapts the desk's notifications into hub events
type Feed struct {
	hub *Hub
}

// NewFeed wraps hub
func NewFeed(hub *Hub) *Feed {
	return &Feed{hub: hub}
}

func (f *Feed) Toast(t types.Toast) {
	f.hub.Publish(EventToast, t)
}

func (f *Feed) ShowAlert(a types.Alert) {
	f.hub.Publish(EventAlert, a)
}

func (f *Feed) DismissAlert(id string) {
	f.hub.Publish(EventAlertDismissed, map[string]string{"id": id})
}

// Play asks connected browsers to play a sound
func (f *Feed) Play(kind types.SoundKind) error {
	if f.hub.ClientCount() == 0 {
		return ErrNoClients
	}
	f.hub.Publish(EventSound, map[string]string{"sound": string(kind)})
	return nil
}

// ChannelStatus publishes the notification channel state for the status dot
func (f *Feed) ChannelStatus(s types.ChannelStatus) {
	f.hub.Publish(EventStatus, s)
}

func (f *Feed) SessionChanged(snap session.Snapshot) {
	f.hub.Publish(EventSession, snap)
}

func (f *Feed) SessionTick(leadID int, elapsed time.Duration) {
	f.hub.Publish(EventTick, map[string]int{
		"leadId":         leadID,
		"elapsedSeconds": int(elapsed.Seconds()),
	})
}

func (f *Feed) QueueUpdated(snap types.QueueSnapshot) {
	f.hub.Publish(EventQueue, snap)
}
