// Package metrics provides Prometheus instrumentation for the chat client:
// session lifecycle, history paging, live traffic, typing signals and the
// transport connection.
package metrics

import (
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// SessionsOpened counts chat sessions opened since start.
	SessionsOpened = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chatsync_sessions_opened_total",
		Help: "Total number of chat sessions opened",
	})

	// LiveItems tracks how many messages and alerts the open session holds
	// in its live buffer.
	LiveItems = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "chatsync_live_items",
		Help: "Items in the live buffer of the open chat session",
	})

	// HistoryPages counts page fetch outcomes, labeled by result:
	// "applied", "failed" or "stale".
	HistoryPages = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chatsync_history_pages_total",
		Help: "History page fetches by outcome",
	}, []string{"result"})

	// PageLatency records history page fetch latency in seconds.
	PageLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "chatsync_history_page_latency_seconds",
		Help:    "History page fetch latency in seconds",
		Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5},
	})

	// Messages counts chat messages, labeled by direction: "sent" or "received".
	Messages = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chatsync_messages_total",
		Help: "Chat messages by direction",
	}, []string{"direction"})

	// TypingSignals counts emitted typing signals, labeled by kind.
	TypingSignals = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chatsync_typing_signals_total",
		Help: "Local typing signals emitted",
	}, []string{"kind"})

	// Reconnects counts transport reconnect attempts.
	Reconnects = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chatsync_transport_reconnects_total",
		Help: "Transport reconnect attempts",
	})

	// Connected is 1 while the transport is online.
	Connected = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "chatsync_transport_connected",
		Help: "Whether the transport connection is online",
	})
)

func init() {
	prometheus.MustRegister(
		SessionsOpened,
		LiveItems,
		HistoryPages,
		PageLatency,
		Messages,
		TypingSignals,
		Reconnects,
		Connected,
	)
}

// RegisterDropCounter exposes a bus drop counter. Registering twice is a no-op.
func RegisterDropCounter(dropped func() uint64) error {
	c := prometheus.NewCounterFunc(prometheus.CounterOpts{
		Name: "chatsync_bus_dropped_total",
		Help: "Bus deliveries skipped because a subscriber buffer was full",
	}, func() float64 { return float64(dropped()) })
	if err := prometheus.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			return nil
		}
		return err
	}
	return nil
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
