package queue

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dennisdiepolder/monti/agentdesk/internal/schedule"
	"github.com/dennisdiepolder/monti/agentdesk/internal/types"
	"github.com/rs/zerolog"
)

// Source reads the agent's work lists from the CRM
type Source interface {
	FocusQueue(ctx context.Context) ([]types.Lead, error)
	Callbacks(ctx context.Context) ([]types.Lead, error)
	Stats(ctx context.Context, period string) (types.Stats, error)
}

// Publisher is told about every fresh snapshot
type Publisher interface {
	QueueUpdated(snap types.QueueSnapshot)
}

// Options configures the cache
type Options struct {
	Lookahead   time.Duration
	StatsPeriod string
	// Interval is the background refetch period; zero refetches on request only
	Interval time.Duration
}

// Cache holds the last fetched queue. It is read-only toward the CRM.
type Cache struct {
	source    Source
	publisher Publisher
	opts      Options
	logger    zerolog.Logger
	now       func() time.Time
	refresh   chan struct{}

	mu        sync.RWMutex
	focus     []types.Lead
	callbacks []types.Lead
	stats     types.Stats
	fetchedAt time.Time
}

// NewCache creates an empty cache; publisher may be nil
func NewCache(source Source, publisher Publisher, opts Options, logger zerolog.Logger) *Cache {
	if opts.Lookahead <= 0 {
		opts.Lookahead = schedule.DefaultLookahead
	}
	if opts.StatsPeriod == "" {
		opts.StatsPeriod = "today"
	}
	return &Cache{
		source:    source,
		publisher: publisher,
		opts:      opts,
		logger:    logger.With().Str("component", "queue").Logger(),
		now:       time.Now,
		refresh:   make(chan struct{}, 1),
	}
}

// SetPublisher wires the snapshot consumer
func (c *Cache) SetPublisher(p Publisher) {
	c.mu.Lock()
	c.publisher = p
	c.mu.Unlock()
}

// RequestRefresh schedules a refetch without blocking; requests coalesce
func (c *Cache) RequestRefresh() {
	select {
	case c.refresh <- struct{}{}:
	default:
	}
}

// Run serves refresh requests until ctx is done
func (c *Cache) Run(ctx context.Context) {
	var tick <-chan time.Time
	if c.opts.Interval > 0 {
		ticker := time.NewTicker(c.opts.Interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	c.logger.Info().Dur("interval", c.opts.Interval).Msg("queue refresher started")

	for {
		select {
		case <-ctx.Done():
			c.logger.Info().Msg("queue refresher stopped")
			return
		case <-c.refresh:
		case <-tick:
		}

		if _, err := c.Refresh(ctx); err != nil && ctx.Err() == nil {
			c.logger.Warn().Err(err).Msg("queue refresh failed, keeping previous snapshot")
		}
	}
}

// Refresh fetches all lists. On any error the previous snapshot is kept.
func (c *Cache) Refresh(ctx context.Context) (types.QueueSnapshot, error) {
	focus, err := c.source.FocusQueue(ctx)
	if err != nil {
		return types.QueueSnapshot{}, fmt.Errorf("focus queue: %w", err)
	}
	callbacks, err := c.source.Callbacks(ctx)
	if err != nil {
		return types.QueueSnapshot{}, fmt.Errorf("callbacks: %w", err)
	}
	stats, err := c.source.Stats(ctx, c.opts.StatsPeriod)
	if err != nil {
		return types.QueueSnapshot{}, fmt.Errorf("stats: %w", err)
	}

	sort.SliceStable(callbacks, func(i, j int) bool {
		return callbackTime(callbacks[i]).Before(callbackTime(callbacks[j]))
	})

	c.mu.Lock()
	c.focus = focus
	c.callbacks = callbacks
	c.stats = stats
	c.fetchedAt = c.now()
	publisher := c.publisher
	c.mu.Unlock()

	snap := c.Snapshot()
	if publisher != nil {
		publisher.QueueUpdated(snap)
	}
	c.logger.Debug().Int("focus", len(focus)).Int("callbacks", len(callbacks)).Msg("queue refreshed")
	return snap, nil
}

// Snapshot returns the cached lists with callback status computed against now
func (c *Cache) Snapshot() types.QueueSnapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	now := c.now()
	snap := types.QueueSnapshot{
		Focus:     make([]types.Lead, 0, len(c.focus)),
		Callbacks: make([]types.CallbackEntry, 0, len(c.callbacks)),
		Stats:     c.stats,
		FetchedAt: c.fetchedAt,
	}
	for _, l := range c.focus {
		snap.Focus = append(snap.Focus, l.Clone())
	}
	for _, l := range c.callbacks {
		entry := types.CallbackEntry{Lead: l.Clone()}
		if l.CallbackAt != nil {
			entry.Status = schedule.Status(now, *l.CallbackAt, c.opts.Lookahead)
		}
		snap.Callbacks = append(snap.Callbacks, entry)
	}
	return snap
}

// ClearCallback drops leadID's pending callback from the cached lists ahead
// of the next refetch, which brings the CRM's view back
func (c *Cache) ClearCallback(leadID int) {
	c.mu.Lock()
	callbacks := c.callbacks[:0:0]
	removed := false
	for _, l := range c.callbacks {
		if l.ID == leadID {
			removed = true
			continue
		}
		callbacks = append(callbacks, l)
	}
	c.callbacks = callbacks
	for i := range c.focus {
		if c.focus[i].ID == leadID && c.focus[i].CallbackAt != nil {
			c.focus[i].CallbackAt = nil
			c.focus[i].CallbackNotes = ""
			removed = true
		}
	}
	publisher := c.publisher
	c.mu.Unlock()

	if !removed {
		return
	}
	if publisher != nil {
		publisher.QueueUpdated(c.Snapshot())
	}
	c.logger.Debug().Int("lead_id", leadID).Msg("callback cleared locally")
}

// Lead finds a cached lead by ID in either list
func (c *Cache) Lead(id int) (types.Lead, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, list := range [][]types.Lead{c.focus, c.callbacks} {
		for _, l := range list {
			if l.ID == id {
				return l.Clone(), true
			}
		}
	}
	return types.Lead{}, false
}

func callbackTime(l types.Lead) time.Time {
	if l.CallbackAt == nil {
		return time.Time{}
	}
	return *l.CallbackAt
}
