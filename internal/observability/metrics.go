package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	sessionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kbdbridge",
			Subsystem: "server",
			Name:      "sessions_total",
			Help:      "Peer sessions ended, by reason.",
		},
		[]string{"reason"},
	)
	sessionActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "kbdbridge",
			Subsystem: "server",
			Name:      "session_active",
			Help:      "1 while a peer session is live.",
		},
	)
	bytesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kbdbridge",
			Subsystem: "server",
			Name:      "bytes_total",
			Help:      "Bytes handled by the session server, by direction.",
		},
		[]string{"direction"},
	)
	linkRetries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "kbdbridge",
			Subsystem: "wifi",
			Name:      "retries_total",
			Help:      "Reconnect requests issued after a disconnect.",
		},
	)
	linkFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "kbdbridge",
			Subsystem: "wifi",
			Name:      "failures_total",
			Help:      "Times the retry limit was reached.",
		},
	)
	linkState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "kbdbridge",
			Subsystem: "wifi",
			Name:      "link_state",
			Help:      "1 for the current station link state.",
		},
		[]string{"state"},
	)
)

// Directions used with RecordBytes
const (
	DirectionForwarded = "forwarded"
	DirectionDropped   = "dropped"
	DirectionEchoed    = "echoed"
	DirectionReceived  = "received"
)

// LinkStates - states known to the link_state gauge
var LinkStates = []string{"idle", "connecting", "connected", "failed"}

// RegisterMetrics - register the collectors with the default registry, safe to call repeatedly
func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(sessionsTotal, sessionActive, bytesTotal, linkRetries, linkFailures, linkState)
	})
}

// RecordSessionOpened - a peer session went live
func RecordSessionOpened() {
	RegisterMetrics()
	sessionActive.Set(1)
}

// RecordSessionClosed - the live session ended for reason
func RecordSessionClosed(reason string) {
	RegisterMetrics()
	sessionActive.Set(0)
	sessionsTotal.WithLabelValues(reason).Inc()
}

// RecordBytes - count n bytes in direction
func RecordBytes(direction string, n int) {
	RegisterMetrics()
	bytesTotal.WithLabelValues(direction).Add(float64(n))
}

// RecordLinkRetry - a reconnect was requested
func RecordLinkRetry() {
	RegisterMetrics()
	linkRetries.Inc()
}

// RecordLinkFailure - the retry limit was reached
func RecordLinkFailure() {
	RegisterMetrics()
	linkFailures.Inc()
}

// RecordLinkState - mark state as the only current link state
func RecordLinkState(state string) {
	RegisterMetrics()
	for _, s := range LinkStates {
		v := 0.0
		if s == state {
			v = 1
		}
		linkState.WithLabelValues(s).Set(v)
	}
}
