package alerts

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dennisdiepolder/monti/agentdesk/internal/metrics"
	"github.com/dennisdiepolder/monti/agentdesk/internal/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	ackToastTTL = 3 * time.Second

	// ActionCallNow is the single action attached to a callback alert
	ActionCallNow = "call_now"
)

var ErrAlertNotFound = errors.New("alert not found")

// Notifier surfaces toasts and alerts to the agent
type Notifier interface {
	Toast(toast types.Toast)
	ShowAlert(alert types.Alert)
	DismissAlert(id string)
}

// SoundPlayer plays a notification sound
type SoundPlayer interface {
	Play(kind types.SoundKind) error
}

// CallStarter starts a call session for a lead
type CallStarter interface {
	StartCallForLead(ctx context.Context, leadID int) error
}

// Options tunes the dispatcher
type Options struct {
	PhoneRegion      string
	SoundMinInterval time.Duration
}

// Dispatcher classifies push events and fires their local effects without
// blocking the channel's receive loop
type Dispatcher struct {
	notifier Notifier
	sound    SoundPlayer
	starter  CallStarter
	limiter  *rate.Limiter
	region   string
	logger   zerolog.Logger
	now      func() time.Time

	mu      sync.Mutex
	pending map[string]types.Alert // alertID -> alert
	byLead  map[int]string         // leadID -> alertID
	acked   bool                   // ack toast shown since the last outage

	wg sync.WaitGroup
}

// NewDispatcher creates a dispatcher; sound and starter may be nil
func NewDispatcher(notifier Notifier, sound SoundPlayer, starter CallStarter, opts Options, logger zerolog.Logger) *Dispatcher {
	limit := rate.Inf
	if opts.SoundMinInterval > 0 {
		limit = rate.Every(opts.SoundMinInterval)
	}
	return &Dispatcher{
		notifier: notifier,
		sound:    sound,
		starter:  starter,
		limiter:  rate.NewLimiter(limit, 1),
		region:   opts.PhoneRegion,
		logger:   logger.With().Str("component", "alerts").Logger(),
		now:      time.Now,
		pending:  make(map[string]types.Alert),
		byLead:   make(map[int]string),
	}
}

// SetCallStarter wires the "Call Now" action target
func (d *Dispatcher) SetCallStarter(starter CallStarter) {
	d.mu.Lock()
	d.starter = starter
	d.mu.Unlock()
}

// Run consumes events until the stream closes or ctx is done
func (d *Dispatcher) Run(ctx context.Context, events <-chan types.PushEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			d.OnEvent(ev)
		}
	}
}

// OnEvent handles one push event and returns immediately
func (d *Dispatcher) OnEvent(ev types.PushEvent) {
	switch ev.Type {
	case types.EventConnectionAck:
		d.mu.Lock()
		first := !d.acked
		d.acked = true
		d.mu.Unlock()
		if !first {
			d.logger.Debug().Msg("channel reconnected")
			return
		}
		d.async(func() {
			d.notifier.Toast(types.Toast{
				Level:   "info",
				Message: "Live callback alerts are active",
				TTL:     ackToastTTL,
			})
		})

	case types.EventCallbackAlert:
		if ev.Callback == nil {
			return
		}
		alert := d.remember(ev)
		metrics.Get().AlertsShown.Inc()
		d.async(d.playSound)
		d.async(func() { d.notifier.ShowAlert(alert) })

	case types.EventHeartbeat:
		// liveness only, tracked by the channel

	default:
		d.logger.Debug().Str("type", string(ev.Type)).Msg("ignoring event")
	}
}

// ChannelStatus observes the notification channel. After the channel gives
// up reconnecting, the next ack is announced again.
func (d *Dispatcher) ChannelStatus(s types.ChannelStatus) {
	if !s.Exhausted {
		return
	}
	d.mu.Lock()
	d.acked = false
	d.mu.Unlock()
}

// Pending returns undismissed alerts, oldest first
func (d *Dispatcher) Pending() []types.Alert {
	d.mu.Lock()
	out := make([]types.Alert, 0, len(d.pending))
	for _, a := range d.pending {
		out = append(out, a)
	}
	d.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// Invoke runs the alert's "Call Now" action. The alert is dismissed only when
// the session actually started.
func (d *Dispatcher) Invoke(ctx context.Context, alertID string) error {
	d.mu.Lock()
	alert, ok := d.pending[alertID]
	starter := d.starter
	d.mu.Unlock()

	if !ok {
		return ErrAlertNotFound
	}
	if starter == nil {
		return fmt.Errorf("no call starter configured")
	}

	if err := starter.StartCallForLead(ctx, alert.LeadID); err != nil {
		return fmt.Errorf("call lead %d: %w", alert.LeadID, err)
	}
	d.Dismiss(alertID)
	return nil
}

// Dismiss removes an alert
func (d *Dispatcher) Dismiss(alertID string) bool {
	d.mu.Lock()
	alert, ok := d.pending[alertID]
	if ok {
		delete(d.pending, alertID)
		if d.byLead[alert.LeadID] == alertID {
			delete(d.byLead, alert.LeadID)
		}
	}
	d.mu.Unlock()

	if ok {
		d.async(func() { d.notifier.DismissAlert(alertID) })
	}
	return ok
}

// Wait blocks until in-flight side effects have finished
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// remember records the alert, replacing any earlier alert for the same lead
func (d *Dispatcher) remember(ev types.PushEvent) types.Alert {
	cb := ev.Callback
	display, dial := FormatPhone(cb.LeadPhone, d.region)

	d.mu.Lock()
	defer d.mu.Unlock()

	id, exists := d.byLead[cb.LeadID]
	if !exists {
		id = uuid.New().String()
	}

	alert := types.Alert{
		ID:        id,
		LeadID:    cb.LeadID,
		LeadName:  cb.LeadName,
		LeadPhone: display,
		DialURI:   dial,
		Urgency:   cb.Urgency,
		Title:     alertTitle(cb),
		Notes:     cb.Notes,
		Action:    ActionCallNow,
		CreatedAt: d.now(),
	}
	d.pending[id] = alert
	d.byLead[cb.LeadID] = id
	return alert
}

func (d *Dispatcher) playSound() {
	if d.sound == nil {
		return
	}
	if !d.limiter.Allow() {
		d.logger.Debug().Msg("sound throttled")
		return
	}
	if err := d.sound.Play(types.SoundCallback); err != nil {
		metrics.Get().SoundErrors.Inc()
		d.logger.Debug().Err(err).Msg("notification sound failed")
	}
}

// async runs fn on its own goroutine; a panicking effect is contained
func (d *Dispatcher) async(fn func()) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				d.logger.Error().Interface("panic", r).Msg("alert side effect panicked")
			}
		}()
		fn()
	}()
}

func alertTitle(cb *types.CallbackAlert) string {
	name := cb.LeadName
	if name == "" {
		name = fmt.Sprintf("lead #%d", cb.LeadID)
	}
	if cb.Urgency == types.UrgencyOverdue {
		return fmt.Sprintf("OVERDUE callback: %s", name)
	}
	return fmt.Sprintf("Time to call %s", name)
}
