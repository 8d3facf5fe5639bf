package notify

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// Registry keeps exactly one channel per agent identity
type Registry struct {
	opts     Options
	logger   zerolog.Logger
	mu       sync.Mutex
	channels map[int]*Channel
}

// NewRegistry creates a registry whose channels share opts
func NewRegistry(opts Options, logger zerolog.Logger) *Registry {
	return &Registry{
		opts:     opts,
		logger:   logger,
		channels: make(map[int]*Channel),
	}
}

// Connect opens a channel for agentID. A prior channel for the same agent is
// closed and fully drained before the new one starts dialing.
func (r *Registry) Connect(ctx context.Context, agentID int) *Channel {
	ch := NewChannel(agentID, r.opts, r.logger)

	r.mu.Lock()
	prev := r.channels[agentID]
	r.channels[agentID] = ch
	r.mu.Unlock()

	if prev != nil {
		r.logger.Info().Int("agent_id", agentID).Msg("superseding existing notification channel")
		prev.Close()
		<-prev.Done()
	}

	go ch.Run(ctx)
	return ch
}

// Get returns the current channel for agentID
func (r *Registry) Get(agentID int) (*Channel, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ch, ok := r.channels[agentID]
	return ch, ok
}

// Disconnect closes and forgets the channel for agentID (logout)
func (r *Registry) Disconnect(agentID int) bool {
	r.mu.Lock()
	ch, ok := r.channels[agentID]
	delete(r.channels, agentID)
	r.mu.Unlock()

	if !ok {
		return false
	}
	ch.Close()
	<-ch.Done()
	return true
}

// CloseAll shuts down every channel
func (r *Registry) CloseAll() {
	r.mu.Lock()
	channels := make([]*Channel, 0, len(r.channels))
	for id, ch := range r.channels {
		channels = append(channels, ch)
		delete(r.channels, id)
	}
	r.mu.Unlock()

	for _, ch := range channels {
		ch.Close()
		<-ch.Done()
	}
}
