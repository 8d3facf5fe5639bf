package notify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/dennisdiepolder/monti/agentdesk/internal/metrics"
	"github.com/dennisdiepolder/monti/agentdesk/internal/types"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	// Handshake timeout for each dial
	handshakeTimeout = 10 * time.Second

	// Buffered push events awaiting the dispatcher
	defaultEventBuffer = 64
)

// Options configures a notification channel
type Options struct {
	// BaseURL is the push server root, e.g. "wss://crm.example.com".
	// http(s) URLs are converted to ws(s).
	BaseURL string

	// Token is sent as a bearer credential on every dial. Tokens, when set,
	// is consulted instead so a rotated credential is picked up on reconnect.
	Token  string
	Tokens interface{ Token() string }

	Backoff Backoff

	// StaleAfter force-closes the connection when no frame arrives in time.
	// Zero disables the watchdog.
	StaleAfter time.Duration

	EventBuffer int

	// OnStatus is called on every state transition. It must not block.
	OnStatus func(types.ChannelStatus)

	Dialer *websocket.Dialer
}

// Channel owns one agent's push connection and keeps it alive
type Channel struct {
	agentID int
	opts    Options
	events  chan types.PushEvent
	stop    chan struct{} // closed by Close, interrupts backoff waits
	done    chan struct{} // closed when Run returns
	logger  zerolog.Logger

	mu            sync.Mutex
	conn          *websocket.Conn
	state         types.ConnState
	attempts      int
	exhausted     bool
	closed        bool // Explicit shutdown, no reconnects
	lastHeartbeat time.Time
	lastMessage   time.Time

	closeOnce sync.Once
}

// NewChannel creates a channel for agentID; call Run to connect
func NewChannel(agentID int, opts Options, logger zerolog.Logger) *Channel {
	if opts.EventBuffer <= 0 {
		opts.EventBuffer = defaultEventBuffer
	}
	if opts.Dialer == nil {
		opts.Dialer = &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: handshakeTimeout,
		}
	}
	return &Channel{
		agentID: agentID,
		opts:    opts,
		events:  make(chan types.PushEvent, opts.EventBuffer),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
		logger:  logger.With().Str("component", "notify").Int("agent_id", agentID).Logger(),
		state:   types.ConnClosed,
	}
}

// AgentID returns the agent this channel belongs to
func (c *Channel) AgentID() int {
	return c.agentID
}

// Events returns the stream of parsed push events. It is closed when Run returns.
func (c *Channel) Events() <-chan types.PushEvent {
	return c.events
}

// Done is closed once Run has returned
func (c *Channel) Done() <-chan struct{} {
	return c.done
}

// Status returns a snapshot of the connection state
func (c *Channel) Status() types.ChannelStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statusLocked()
}

// Live reports whether the channel is open
func (c *Channel) Live() bool {
	return c.Status().Live()
}

// LastHeartbeat returns when the last HEARTBEAT arrived
func (c *Channel) LastHeartbeat() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastHeartbeat
}

// LastMessage returns when the last frame of any type arrived
func (c *Channel) LastMessage() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastMessage
}

// URL returns the endpoint this channel dials
func (c *Channel) URL() string {
	base := strings.TrimSuffix(c.opts.BaseURL, "/")
	// Convert http:// to ws:// or https:// to wss://
	if strings.HasPrefix(base, "http") {
		base = "ws" + strings.TrimPrefix(base, "http")
	}
	return fmt.Sprintf("%s/ws/notifications/%d", base, c.agentID)
}

// Run connects and keeps reconnecting with exponential backoff until Close is
// called, ctx is cancelled, or the attempt cap is reached.
func (c *Channel) Run(ctx context.Context) {
	defer close(c.done)
	defer close(c.events)

	m := metrics.Get()

	for {
		if c.isClosed() {
			c.setState(types.ConnClosed)
			return
		}

		select {
		case <-ctx.Done():
			c.Close()
			c.setState(types.ConnClosed)
			return
		default:
		}

		c.setState(types.ConnConnecting)
		dialCtx, cancelDial := c.stopContext(ctx)
		conn, err := c.dial(dialCtx)
		if err != nil {
			c.logger.Debug().Err(err).Msg("connection failed")
		} else {
			c.onOpen(conn)
			c.readLoop(ctx, conn)
			c.dropConn(conn)
		}
		cancelDial()

		c.setState(types.ConnClosed)
		if c.isClosed() || ctx.Err() != nil {
			return
		}

		c.mu.Lock()
		delay, ok := c.opts.Backoff.Next(c.attempts)
		if !ok {
			c.exhausted = true
			status := c.statusLocked()
			c.mu.Unlock()
			m.ChannelExhausted.Inc()
			c.logger.Error().Int("attempts", status.Attempts).Msg("reconnect attempts exhausted, channel offline")
			c.publish(status)
			return
		}
		c.attempts++
		attempts := c.attempts
		c.mu.Unlock()

		m.ChannelReconnects.Inc()
		c.logger.Info().Int("attempt", attempts).Dur("retry_in", delay).Msg("scheduling reconnect")

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			c.Close()
			return
		case <-c.stop:
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// Close permanently closes the connection and prevents reconnects
func (c *Channel) Close() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		conn := c.conn
		c.mu.Unlock()

		close(c.stop)
		if conn != nil {
			conn.Close()
		}
	})
}

// stopContext derives a context that Close also cancels, so a handshake in
// flight is aborted instead of running to its timeout
func (c *Channel) stopContext(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	go func() {
		select {
		case <-c.stop:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

func (c *Channel) dial(ctx context.Context) (*websocket.Conn, error) {
	header := http.Header{}
	token := c.opts.Token
	if c.opts.Tokens != nil {
		token = c.opts.Tokens.Token()
	}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}

	conn, resp, err := c.opts.Dialer.DialContext(ctx, c.URL(), header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: status %d: %w", c.URL(), resp.StatusCode, err)
		}
		return nil, fmt.Errorf("dial %s: %w", c.URL(), err)
	}
	return conn, nil
}

func (c *Channel) onOpen(conn *websocket.Conn) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		conn.Close()
		return
	}
	c.conn = conn
	c.attempts = 0
	c.exhausted = false
	c.lastMessage = time.Now()
	c.mu.Unlock()

	c.setState(types.ConnOpen)
	c.logger.Info().Msg("notification channel open")
}

// readLoop receives messages until the connection drops, the watchdog fires,
// or the channel is shut down.
func (c *Channel) readLoop(ctx context.Context, conn *websocket.Conn) {
	if c.opts.StaleAfter > 0 {
		conn.SetReadDeadline(time.Now().Add(c.opts.StaleAfter))
		conn.SetPongHandler(func(string) error {
			conn.SetReadDeadline(time.Now().Add(c.opts.StaleAfter))
			return nil
		})
	}

	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		for {
			_, message, err := conn.ReadMessage()
			if err != nil {
				var netErr interface{ Timeout() bool }
				switch {
				case errors.As(err, &netErr) && netErr.Timeout():
					c.logger.Warn().Dur("stale_after", c.opts.StaleAfter).Msg("no traffic from push server, forcing reconnect")
				case websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway):
					c.logger.Debug().Err(err).Msg("websocket read error")
				}
				return
			}
			if c.opts.StaleAfter > 0 {
				conn.SetReadDeadline(time.Now().Add(c.opts.StaleAfter))
			}
			c.handleIncoming(message)
		}
	}()

	select {
	case <-ctx.Done():
	case <-c.stop:
	case <-readDone:
	}
	conn.Close()
	<-readDone
}

// handleIncoming parses a message and queues it for the dispatcher
func (c *Channel) handleIncoming(message []byte) {
	m := metrics.Get()
	now := time.Now()

	c.mu.Lock()
	c.lastMessage = now
	c.mu.Unlock()

	event, err := ParseEvent(message, c.agentID, now)
	if err != nil {
		reason := "malformed"
		if errors.Is(err, ErrUnknownEvent) {
			reason = "unknown"
		}
		m.RecordDropped(reason)
		c.logger.Warn().Err(err).Msg("dropping push payload")
		return
	}
	m.RecordPushEvent(string(event.Type))

	if event.Type == types.EventHeartbeat {
		c.mu.Lock()
		c.lastHeartbeat = now
		c.mu.Unlock()
	}

	select {
	case c.events <- event:
	default:
		m.RecordDropped("buffer_full")
		c.logger.Warn().Str("type", string(event.Type)).Msg("event buffer full, dropping")
	}
}

func (c *Channel) dropConn(conn *websocket.Conn) {
	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
	}
	c.mu.Unlock()
	conn.Close()
}

func (c *Channel) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Channel) setState(state types.ConnState) {
	c.mu.Lock()
	if c.state == state {
		c.mu.Unlock()
		return
	}
	c.state = state
	status := c.statusLocked()
	c.mu.Unlock()

	metrics.Get().SetChannelLive(status.Live())
	c.publish(status)
}

func (c *Channel) publish(status types.ChannelStatus) {
	if c.opts.OnStatus != nil {
		c.opts.OnStatus(status)
	}
}

func (c *Channel) statusLocked() types.ChannelStatus {
	return types.ChannelStatus{
		AgentID:   c.agentID,
		State:     c.state,
		Attempts:  c.attempts,
		Exhausted: c.exhausted,
		Timestamp: time.Now(),
	}
}
