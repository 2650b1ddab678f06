// Package metrics exposes the prometheus counters and gauges instrumenting
// the ballot protocol and the peer overlay, grounded on the teacher's
// promauto-based helpers.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace is the namespace every metric in this module is registered
// under.
const Namespace = "fba"

// NewCounter creates a Counter under the global namespace.
func NewCounter(name, subsystem, help string, labels []string) *prometheus.CounterVec {
	return promauto.NewCounterVec(prometheus.CounterOpts{Namespace: Namespace, Subsystem: subsystem, Name: name, Help: help}, labels)
}

// NewGauge creates a Gauge under the global namespace.
func NewGauge(name, subsystem, help string, labels []string) *prometheus.GaugeVec {
	return promauto.NewGaugeVec(prometheus.GaugeOpts{Namespace: Namespace, Subsystem: subsystem, Name: name, Help: help}, labels)
}

// NewHistogram creates a Histogram under the global namespace.
func NewHistogram(name, subsystem, help string, labels []string) *prometheus.HistogramVec {
	return promauto.NewHistogramVec(prometheus.HistogramOpts{Namespace: Namespace, Subsystem: subsystem, Name: name, Help: help}, labels)
}

var (
	// LoopbackBytesSent counts bytes written across every session,
	// loopback or real, to spot a saturated outbound queue.
	LoopbackBytesSent = NewCounter("bytes_sent", "overlay", "bytes written to peer sessions", nil).WithLabelValues()

	// handshakesCompleted counts sessions that reached GotHello.
	handshakesCompleted = NewCounter("handshakes_completed", "overlay", "sessions that completed the HELLO handshake", nil)
	// handshakesTimedOut counts sessions dropped for a HELLO timeout.
	handshakesTimedOut = NewCounter("handshakes_timed_out", "overlay", "sessions dropped for handshake timeout", nil)
	// sessionsDropped counts drops by reason.
	sessionsDropped = NewCounter("sessions_dropped", "overlay", "sessions dropped", []string{"reason"})

	// ballotTimerArmed counts ballot protocol timer arms per slot.
	ballotTimerArmed = NewCounter("ballot_timer_armed", "scp", "ballot protocol timer arm events", nil)
	// slotExternalized counts slots that reached Externalize.
	slotExternalized = NewCounter("slot_externalized", "scp", "slots that externalized a value", nil)

	// loopbackFaults counts loopback fault injections by kind.
	loopbackFaults = NewCounter("faults", "loopback", "loopback fault injections", []string{"kind"})
)

// ReportHandshakeCompleted increments the handshake-completed counter.
func ReportHandshakeCompleted() { handshakesCompleted.WithLabelValues().Inc() }

// ReportHandshakeTimedOut increments the handshake-timeout counter.
func ReportHandshakeTimedOut() { handshakesTimedOut.WithLabelValues().Inc() }

// ReportSessionDropped increments the session-dropped counter for reason.
func ReportSessionDropped(reason string) { sessionsDropped.WithLabelValues(reason).Inc() }

// ReportBallotTimerArmed increments the ballot-timer-armed counter.
func ReportBallotTimerArmed() { ballotTimerArmed.WithLabelValues().Inc() }

// ReportSlotExternalized increments the slot-externalized counter.
func ReportSlotExternalized() { slotExternalized.WithLabelValues().Inc() }

// ReportLoopbackFault increments the loopback fault counter for kind, one
// of "duplicate", "reorder", "damage", "drop".
func ReportLoopbackFault(kind string) { loopbackFaults.WithLabelValues(kind).Inc() }
