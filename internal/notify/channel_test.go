package notify

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dennisdiepolder/monti/agentdesk/internal/types"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// pushServer is a fake notification server. handle runs once per accepted
// connection; n is the 1-based connection number.
type pushServer struct {
	srv      *httptest.Server
	upgrader websocket.Upgrader
	conns    int32
	mu       sync.Mutex
	paths    []string
	auth     []string
}

func newPushServer(t *testing.T, handle func(conn *websocket.Conn, n int)) *pushServer {
	t.Helper()
	ps := &pushServer{}
	ps.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ps.mu.Lock()
		ps.paths = append(ps.paths, r.URL.Path)
		ps.auth = append(ps.auth, r.Header.Get("Authorization"))
		ps.mu.Unlock()

		conn, err := ps.upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		n := int(atomic.AddInt32(&ps.conns, 1))
		handle(conn, n)
	}))
	t.Cleanup(ps.srv.Close)
	return ps
}

func (ps *pushServer) connections() int {
	return int(atomic.LoadInt32(&ps.conns))
}

// holdOpen blocks until the client goes away
func holdOpen(conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func send(conn *websocket.Conn, payload string) {
	conn.WriteMessage(websocket.TextMessage, []byte(payload))
}

func fastBackoff(max int) Backoff {
	return Backoff{Base: time.Millisecond, Cap: 4 * time.Millisecond, MaxAttempts: max}
}

func nextEvent(t *testing.T, ch *Channel) types.PushEvent {
	t.Helper()
	select {
	case ev, ok := <-ch.Events():
		if !ok {
			t.Fatal("event stream closed")
		}
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for push event")
	}
	return types.PushEvent{}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestChannelDeliversEvents(t *testing.T) {
	ps := newPushServer(t, func(conn *websocket.Conn, n int) {
		send(conn, `{"type":"CONNECTION_SUCCESS"}`)
		send(conn, `{"type":"CALLBACK_ALERT","lead_id":12,"lead_name":"Amina","lead_phone":"0612345678","urgency":"high"}`)
		holdOpen(conn)
	})

	ch := NewChannel(7, Options{BaseURL: ps.srv.URL, Token: "secret", Backoff: fastBackoff(3)}, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go ch.Run(ctx)

	ack := nextEvent(t, ch)
	if ack.Type != types.EventConnectionAck {
		t.Fatalf("expected ack first, got %s", ack.Type)
	}
	if !ch.Live() {
		t.Error("expected channel to be live after ack")
	}

	alert := nextEvent(t, ch)
	if alert.Type != types.EventCallbackAlert || alert.Callback.LeadID != 12 {
		t.Fatalf("unexpected alert %+v", alert)
	}
	if alert.AgentID != 7 {
		t.Errorf("expected agent 7, got %d", alert.AgentID)
	}

	ps.mu.Lock()
	defer ps.mu.Unlock()
	if ps.paths[0] != "/ws/notifications/7" {
		t.Errorf("unexpected path %s", ps.paths[0])
	}
	if ps.auth[0] != "Bearer secret" {
		t.Errorf("unexpected authorization %q", ps.auth[0])
	}
}

func TestChannelDropsMalformedPayloads(t *testing.T) {
	ps := newPushServer(t, func(conn *websocket.Conn, n int) {
		send(conn, `garbage`)
		send(conn, `{"type":"ORDER_SHIPPED"}`)
		send(conn, `{"type":"CALLBACK_ALERT"}`)
		send(conn, `{"type":"HEARTBEAT"}`)
		holdOpen(conn)
	})

	ch := NewChannel(1, Options{BaseURL: ps.srv.URL, Backoff: fastBackoff(3)}, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go ch.Run(ctx)

	ev := nextEvent(t, ch)
	if ev.Type != types.EventHeartbeat {
		t.Fatalf("expected malformed payloads to be skipped, got %s", ev.Type)
	}
	if ch.LastHeartbeat().IsZero() {
		t.Error("expected heartbeat timestamp to be recorded")
	}
	if ps.connections() != 1 {
		t.Errorf("bad payloads must not drop the connection, saw %d connections", ps.connections())
	}
}

func TestChannelReconnectsAfterServerClose(t *testing.T) {
	ps := newPushServer(t, func(conn *websocket.Conn, n int) {
		if n == 1 {
			return // drop the first connection immediately
		}
		send(conn, `{"type":"CONNECTION_SUCCESS"}`)
		holdOpen(conn)
	})

	ch := NewChannel(2, Options{BaseURL: ps.srv.URL, Backoff: fastBackoff(5)}, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go ch.Run(ctx)

	ev := nextEvent(t, ch)
	if ev.Type != types.EventConnectionAck {
		t.Fatalf("expected ack after reconnect, got %s", ev.Type)
	}
	if ps.connections() != 2 {
		t.Errorf("expected 2 connections, got %d", ps.connections())
	}
	if st := ch.Status(); st.Attempts != 0 || st.State != types.ConnOpen {
		t.Errorf("expected open status with reset attempts, got %+v", st)
	}
}

func TestChannelStopsAfterMaxAttempts(t *testing.T) {
	var dials int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&dials, 1)
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	var mu sync.Mutex
	var statuses []types.ChannelStatus
	opts := Options{
		BaseURL: srv.URL,
		Backoff: fastBackoff(3),
		OnStatus: func(s types.ChannelStatus) {
			mu.Lock()
			statuses = append(statuses, s)
			mu.Unlock()
		},
	}
	ch := NewChannel(9, opts, zerolog.Nop())

	done := make(chan struct{})
	go func() {
		ch.Run(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not give up after max attempts")
	}

	if got := atomic.LoadInt32(&dials); got != 4 {
		t.Errorf("expected initial dial plus 3 reconnects, got %d dials", got)
	}

	st := ch.Status()
	if st.State != types.ConnClosed || !st.Exhausted || st.Attempts != 3 {
		t.Errorf("expected exhausted closed status, got %+v", st)
	}

	if _, ok := <-ch.Events(); ok {
		t.Error("expected event stream to be closed")
	}

	mu.Lock()
	defer mu.Unlock()
	last := statuses[len(statuses)-1]
	if !last.Exhausted || last.Live() {
		t.Errorf("expected last published status to be exhausted, got %+v", last)
	}

	// no further dials once exhausted
	time.Sleep(20 * time.Millisecond)
	if got := atomic.LoadInt32(&dials); got != 4 {
		t.Errorf("expected no dials after exhaustion, got %d", got)
	}
}

func TestChannelCloseStopsReconnecting(t *testing.T) {
	var dials int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&dials, 1)
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ch := NewChannel(4, Options{
		BaseURL: srv.URL,
		Backoff: Backoff{Base: time.Hour, Cap: time.Hour, MaxAttempts: 10},
	}, zerolog.Nop())
	go ch.Run(context.Background())

	waitFor(t, "first dial", func() bool { return atomic.LoadInt32(&dials) >= 1 })
	ch.Close()

	select {
	case <-ch.Done():
	case <-time.After(time.Second):
		t.Fatal("Close did not interrupt the backoff wait")
	}
	if ch.Status().Exhausted {
		t.Error("explicit close must not be reported as exhausted")
	}
}

func TestChannelWatchdogForcesReconnect(t *testing.T) {
	ps := newPushServer(t, func(conn *websocket.Conn, n int) {
		holdOpen(conn) // never sends anything
	})

	ch := NewChannel(3, Options{
		BaseURL:    ps.srv.URL,
		Backoff:    fastBackoff(10),
		StaleAfter: 50 * time.Millisecond,
	}, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go ch.Run(ctx)

	waitFor(t, "watchdog reconnect", func() bool { return ps.connections() >= 2 })
}

func TestChannelStopsOnContextCancel(t *testing.T) {
	ps := newPushServer(t, func(conn *websocket.Conn, n int) {
		send(conn, `{"type":"CONNECTION_SUCCESS"}`)
		holdOpen(conn)
	})

	ch := NewChannel(5, Options{BaseURL: ps.srv.URL, Backoff: fastBackoff(3)}, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	go ch.Run(ctx)
	nextEvent(t, ch)

	cancel()

	select {
	case <-ch.Done():
	case <-time.After(time.Second):
		t.Fatal("channel did not stop after context cancel")
	}
	if ch.Live() {
		t.Error("expected channel to be closed")
	}
}

func TestRegistrySupersedesPriorChannel(t *testing.T) {
	ps := newPushServer(t, func(conn *websocket.Conn, n int) {
		send(conn, `{"type":"CONNECTION_SUCCESS"}`)
		holdOpen(conn)
	})

	reg := NewRegistry(Options{BaseURL: ps.srv.URL, Backoff: fastBackoff(3)}, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	first := reg.Connect(ctx, 11)
	nextEvent(t, first)

	second := reg.Connect(ctx, 11)

	select {
	case <-first.Done():
	default:
		t.Fatal("expected first channel to be fully closed before Connect returns")
	}
	if got, _ := reg.Get(11); got != second {
		t.Error("expected registry to hold the new channel")
	}
	nextEvent(t, second)

	other := reg.Connect(ctx, 12)
	nextEvent(t, other)
	if !second.Live() {
		t.Error("a different agent must not affect the existing channel")
	}

	if !reg.Disconnect(11) {
		t.Error("expected disconnect to find the channel")
	}
	if reg.Disconnect(11) {
		t.Error("expected second disconnect to be a no-op")
	}

	reg.CloseAll()
	select {
	case <-other.Done():
	case <-time.After(time.Second):
		t.Fatal("CloseAll did not stop remaining channels")
	}
}

type rotatingToken struct {
	n int32
}

func (r *rotatingToken) Token() string {
	if atomic.AddInt32(&r.n, 1) == 1 {
		return "first"
	}
	return "second"
}

func TestChannelReadsTokenSourceOnEveryDial(t *testing.T) {
	ps := newPushServer(t, func(conn *websocket.Conn, n int) {
		if n == 1 {
			return
		}
		send(conn, `{"type":"CONNECTION_SUCCESS"}`)
		holdOpen(conn)
	})

	ch := NewChannel(6, Options{
		BaseURL: ps.srv.URL,
		Token:   "ignored",
		Tokens:  &rotatingToken{},
		Backoff: fastBackoff(5),
	}, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go ch.Run(ctx)

	nextEvent(t, ch)

	ps.mu.Lock()
	defer ps.mu.Unlock()
	if len(ps.auth) < 2 || ps.auth[0] != "Bearer first" || ps.auth[1] != "Bearer second" {
		t.Errorf("expected rotated credentials, got %v", ps.auth)
	}
}

func TestChannelCloseAbortsHandshake(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	// accept TCP but never answer the upgrade
	accepted := make(chan net.Conn, 4)
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			accepted <- conn
		}
	}()
	defer func() {
		for {
			select {
			case conn := <-accepted:
				conn.Close()
			default:
				return
			}
		}
	}()

	ch := NewChannel(10, Options{
		BaseURL: "http://" + ln.Addr().String(),
		Backoff: fastBackoff(3),
	}, zerolog.Nop())
	go ch.Run(context.Background())

	waitFor(t, "handshake in flight", func() bool { return len(accepted) > 0 })

	start := time.Now()
	ch.Close()
	select {
	case <-ch.Done():
	case <-time.After(time.Second):
		t.Fatal("Close did not abort the pending handshake")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("close took %v", elapsed)
	}
	if ch.Status().Exhausted {
		t.Error("explicit close must not be reported as exhausted")
	}
}
