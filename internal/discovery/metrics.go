package discovery

import "github.com/gangulaabhinav/ARWalking/internal/metrics"

const subsystem = "discovery"

var (
	sessionsStarted = metrics.NewCounter(
		"sessions_started_total",
		subsystem,
		"Discovery sessions that reported started",
		[]string{"mode"},
	)
	sessionsTerminated = metrics.NewCounter(
		"sessions_terminated_total",
		subsystem,
		"Discovery sessions that ended, by who ended them",
		[]string{"mode", "reason"},
	)
	attachResults = metrics.NewCounter(
		"attach_total",
		subsystem,
		"Radio attach attempts by outcome",
		[]string{"outcome"},
	)
	messagesSent = metrics.NewCounter(
		"messages_sent_total",
		subsystem,
		"Send results reported by the radio",
		[]string{"mode", "outcome"},
	)
	messagesReceived = metrics.NewCounter(
		"messages_received_total",
		subsystem,
		"Messages received from peers",
		[]string{"mode"},
	)
	activeSessions = metrics.NewGauge(
		"active_sessions",
		subsystem,
		"Sessions currently held in the registry",
		[]string{"mode"},
	)
)
