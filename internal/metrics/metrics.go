package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus collectors of the agent desk
type Metrics struct {
	// Notification channel
	ChannelLive       prometheus.Gauge
	ChannelReconnects prometheus.Counter
	ChannelExhausted  prometheus.Counter
	PushEventsTotal   *prometheus.CounterVec
	PushEventsDropped *prometheus.CounterVec

	// Alerts
	AlertsShown prometheus.Counter
	SoundErrors prometheus.Counter

	// Call sessions
	SessionsStarted   prometheus.Counter
	SessionsAbandoned prometheus.Counter
	ResolutionsTotal  *prometheus.CounterVec
	CallDuration      prometheus.Histogram
}

var (
	instance *Metrics
	once     sync.Once
)

// Get returns the singleton metrics instance
func Get() *Metrics {
	once.Do(func() {
		instance = newMetrics()
	})
	return instance
}

func newMetrics() *Metrics {
	return &Metrics{
		ChannelLive: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "agentdesk_channel_live",
			Help: "1 while the notification channel is open",
		}),
		ChannelReconnects: promauto.NewCounter(prometheus.CounterOpts{
			Name: "agentdesk_channel_reconnects_total",
			Help: "Reconnect attempts scheduled by the notification channel",
		}),
		ChannelExhausted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "agentdesk_channel_exhausted_total",
			Help: "Times the channel gave up after the reconnect attempt cap",
		}),
		PushEventsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentdesk_push_events_total",
				Help: "Push events received by type",
			},
			[]string{"type"},
		),
		PushEventsDropped: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentdesk_push_events_dropped_total",
				Help: "Push payloads dropped by reason",
			},
			[]string{"reason"},
		),
		AlertsShown: promauto.NewCounter(prometheus.CounterOpts{
			Name: "agentdesk_callback_alerts_total",
			Help: "Callback alerts surfaced to the agent",
		}),
		SoundErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "agentdesk_alert_sound_errors_total",
			Help: "Notification sounds that failed to play",
		}),
		SessionsStarted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "agentdesk_sessions_started_total",
			Help: "Call sessions started",
		}),
		SessionsAbandoned: promauto.NewCounter(prometheus.CounterOpts{
			Name: "agentdesk_sessions_abandoned_total",
			Help: "Call sessions ended without an outcome",
		}),
		ResolutionsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentdesk_resolutions_total",
				Help: "Outcome resolutions by outcome and result",
			},
			[]string{"outcome", "result"},
		),
		CallDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "agentdesk_call_duration_seconds",
			Help:    "Elapsed call time at resolution",
			Buckets: []float64{15, 30, 60, 120, 180, 300, 600, 1200},
		}),
	}
}

// SetChannelLive records the live flag of the notification channel
func (m *Metrics) SetChannelLive(live bool) {
	if live {
		m.ChannelLive.Set(1)
		return
	}
	m.ChannelLive.Set(0)
}

// RecordPushEvent counts a received push event
func (m *Metrics) RecordPushEvent(eventType string) {
	m.PushEventsTotal.WithLabelValues(eventType).Inc()
}

// RecordDropped counts a dropped push payload
func (m *Metrics) RecordDropped(reason string) {
	m.PushEventsDropped.WithLabelValues(reason).Inc()
}

// RecordResolution counts one resolution attempt
func (m *Metrics) RecordResolution(outcome, result string) {
	m.ResolutionsTotal.WithLabelValues(outcome, result).Inc()
}
