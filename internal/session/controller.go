package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dennisdiepolder/monti/agentdesk/internal/metrics"
	"github.com/dennisdiepolder/monti/agentdesk/internal/order"
	"github.com/dennisdiepolder/monti/agentdesk/internal/outcome"
	"github.com/dennisdiepolder/monti/agentdesk/internal/types"
	"github.com/rs/zerolog"
)

// State of the call session state machine
type State string

const (
	StateIdle      State = "idle"
	StateActive    State = "active"
	StateResolving State = "resolving"
)

var (
	ErrSessionActive = errors.New("a call session is already in progress")
	ErrNoSession     = errors.New("no call session in progress")
	ErrResolving     = errors.New("outcome submission already in flight")
)

// Resolver executes a call outcome
type Resolver interface {
	Resolve(ctx context.Context, req outcome.Request) (outcome.Report, error)
}

// LeadSource loads a fresh lead snapshot
type LeadSource interface {
	GetLead(ctx context.Context, leadID int) (types.Lead, error)
}

// Listener observes the session. Callbacks run on the controller's
// goroutines and must not block or call back into the controller.
type Listener interface {
	SessionChanged(snap Snapshot)
	SessionTick(leadID int, elapsed time.Duration)
}

// Resolution is the agent's terminal action for the current call
type Resolution struct {
	Outcome       types.Outcome
	Reason        string
	CallbackAt    time.Time
	CallbackNotes string
}

// Snapshot is a read-only copy of the session
type Snapshot struct {
	State           State                   `json:"state"`
	Lead            *types.Lead             `json:"lead,omitempty"`
	StartedAt       time.Time               `json:"startedAt,omitempty"`
	ElapsedSeconds  int                     `json:"elapsedSeconds"`
	Notes           string                  `json:"notes"`
	Lines           []order.Line            `json:"lines"`
	Logistics       order.Logistics         `json:"logistics"`
	Totals          order.Totals            `json:"totals"`
	PendingCallback *types.CallbackSchedule `json:"pendingCallback,omitempty"`
}

// Options configures a controller
type Options struct {
	TickInterval time.Duration
	Rates        order.Rates

	// ResolveTimeout bounds one outcome submission. The submission ignores
	// cancellation of the caller's context.
	ResolveTimeout time.Duration
}

const defaultResolveTimeout = 30 * time.Second

// Controller owns the single call session of an agent
type Controller struct {
	resolver Resolver
	leads    LeadSource
	listener Listener
	opts     Options
	logger   zerolog.Logger
	now      func() time.Time

	mu        sync.Mutex
	state     State
	lead      types.Lead
	startedAt time.Time
	notes     string
	draft     *order.Draft
	timer     *elapsedTimer
}

// NewController creates an idle controller; leads and listener may be nil
func NewController(resolver Resolver, leads LeadSource, listener Listener, opts Options, logger zerolog.Logger) *Controller {
	if opts.TickInterval <= 0 {
		opts.TickInterval = time.Second
	}
	if opts.ResolveTimeout <= 0 {
		opts.ResolveTimeout = defaultResolveTimeout
	}
	return &Controller{
		resolver: resolver,
		leads:    leads,
		listener: listener,
		opts:     opts,
		logger:   logger.With().Str("component", "session").Logger(),
		now:      time.Now,
		state:    StateIdle,
		draft:    order.NewDraft(),
	}
}

// State returns the current state
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Start opens a session for lead. Only one session may exist at a time.
func (c *Controller) Start(lead types.Lead) error {
	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		return ErrSessionActive
	}

	c.lead = lead.Clone()
	c.startedAt = c.now()
	c.notes = ""
	c.draft.Reset()
	c.state = StateActive
	c.startTimerLocked()
	snap := c.snapshotLocked()
	c.mu.Unlock()

	metrics.Get().SessionsStarted.Inc()
	c.logger.Info().Int("lead_id", lead.ID).Bool("pending_callback", lead.PendingCallback() != nil).Msg("call session started")
	c.notify(snap)
	return nil
}

// StartCallForLead fetches a fresh lead and starts a session for it
func (c *Controller) StartCallForLead(ctx context.Context, leadID int) error {
	if c.State() != StateIdle {
		return ErrSessionActive
	}
	if c.leads == nil {
		return fmt.Errorf("no lead source configured")
	}

	lead, err := c.leads.GetLead(ctx, leadID)
	if err != nil {
		return fmt.Errorf("fetch lead %d: %w", leadID, err)
	}
	return c.Start(lead)
}

// UpdateNotes replaces the call notes
func (c *Controller) UpdateNotes(text string) error {
	return c.mutate(func() error {
		c.notes = text
		return nil
	})
}

// AddLine adds a priced line to the order draft
func (c *Controller) AddLine(p order.Product, selection map[string]string, quantity int) (order.Line, error) {
	var line order.Line
	err := c.mutate(func() error {
		var err error
		line, err = c.draft.AddLine(p, selection, quantity)
		return err
	})
	return line, err
}

// RemoveLine removes a line from the order draft
func (c *Controller) RemoveLine(index int) error {
	return c.mutate(func() error {
		return c.draft.RemoveLine(index)
	})
}

// SetQuantity changes a draft line's quantity
func (c *Controller) SetQuantity(index, quantity int) error {
	return c.mutate(func() error {
		return c.draft.SetQuantity(index, quantity)
	})
}

// SetLogistics sets the draft delivery fields
func (c *Controller) SetLogistics(l order.Logistics) error {
	return c.mutate(func() error {
		c.draft.SetLogistics(l)
		return nil
	})
}

// End abandons the session without persisting anything
func (c *Controller) End() error {
	c.mu.Lock()
	switch c.state {
	case StateIdle:
		c.mu.Unlock()
		return ErrNoSession
	case StateResolving:
		c.mu.Unlock()
		return ErrResolving
	}

	leadID := c.lead.ID
	c.resetLocked()
	snap := c.snapshotLocked()
	c.mu.Unlock()

	metrics.Get().SessionsAbandoned.Inc()
	c.logger.Info().Int("lead_id", leadID).Msg("call session abandoned")
	c.notify(snap)
	return nil
}

// Resolve submits the outcome. The submission runs to completion even if ctx
// is cancelled, bounded by Options.ResolveTimeout. On success, or when the
// call was logged but the order failed, the session returns to Idle. On any
// other failure it returns to Active with notes and draft intact.
func (c *Controller) Resolve(ctx context.Context, res Resolution) (outcome.Report, error) {
	c.mu.Lock()
	switch c.state {
	case StateIdle:
		c.mu.Unlock()
		return outcome.Report{}, ErrNoSession
	case StateResolving:
		c.mu.Unlock()
		return outcome.Report{}, ErrResolving
	}

	req := outcome.Request{
		Lead:          c.lead.Clone(),
		Outcome:       res.Outcome,
		Duration:      elapsedSince(c.startedAt, c.now()),
		Notes:         c.notes,
		Reason:        res.Reason,
		CallbackAt:    res.CallbackAt,
		CallbackNotes: res.CallbackNotes,
		Lines:         c.draft.Lines(),
		Logistics:     c.draft.Logistics(),
	}
	c.state = StateResolving
	timer := c.timer
	c.timer = nil
	snap := c.snapshotLocked()
	c.mu.Unlock()

	timer.Stop()
	c.notify(snap)

	// A resolve is never cancelled mid-flight: a dropped caller must not
	// leave a logged call without its order
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.opts.ResolveTimeout)
	defer cancel()

	report, err := c.resolver.Resolve(ctx, req)

	c.mu.Lock()
	if err == nil || errors.Is(err, outcome.ErrOrderNotCreated) {
		c.resetLocked()
	} else {
		c.state = StateActive
		c.startTimerLocked()
	}
	snap = c.snapshotLocked()
	c.mu.Unlock()

	c.notify(snap)
	return report, err
}

// Snapshot returns a copy of the session with freshly computed totals
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Close stops the timer without resolving; used on shutdown
func (c *Controller) Close() {
	c.mu.Lock()
	timer := c.timer
	c.timer = nil
	c.mu.Unlock()
	timer.Stop()
}

// mutate runs fn while the session accepts edits
func (c *Controller) mutate(fn func() error) error {
	c.mu.Lock()
	if c.state == StateIdle {
		c.mu.Unlock()
		return ErrNoSession
	}
	if err := fn(); err != nil {
		c.mu.Unlock()
		return err
	}
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.notify(snap)
	return nil
}

// resetLocked returns to Idle and discards all per-call state
func (c *Controller) resetLocked() {
	timer := c.timer
	c.timer = nil
	// Stopping under the lock is safe: the tick goroutine never takes c.mu
	timer.Stop()

	c.state = StateIdle
	c.lead = types.Lead{}
	c.startedAt = time.Time{}
	c.notes = ""
	c.draft.Reset()
}

func (c *Controller) startTimerLocked() {
	leadID := c.lead.ID
	c.timer = startTimer(c.startedAt, c.opts.TickInterval, c.now, func(elapsed time.Duration) {
		if c.listener != nil {
			c.listener.SessionTick(leadID, elapsed)
		}
	})
}

func (c *Controller) snapshotLocked() Snapshot {
	snap := Snapshot{State: c.state}
	if c.state == StateIdle {
		return snap
	}

	lead := c.lead.Clone()
	snap.Lead = &lead
	snap.StartedAt = c.startedAt
	snap.ElapsedSeconds = int(elapsedSince(c.startedAt, c.now()).Seconds())
	snap.Notes = c.notes
	snap.Lines = c.draft.Lines()
	snap.Logistics = c.draft.Logistics()
	snap.Totals = c.draft.Totals(c.opts.Rates)
	snap.PendingCallback = lead.PendingCallback()
	return snap
}

func (c *Controller) notify(snap Snapshot) {
	if c.listener != nil {
		c.listener.SessionChanged(snap)
	}
}
