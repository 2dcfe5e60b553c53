package app

import "github.com/gangulaabhinav/ARWalking/internal/metrics"

const subsystem = "node"

var (
	handshakes = metrics.NewCounter(
		"handshakes_total",
		subsystem,
		"Devices registered through the name handshake",
		[]string{"mode"},
	)
	devicesDropped = metrics.NewCounter(
		"devices_dropped_total",
		subsystem,
		"Devices forgotten, by reason",
		[]string{"reason"},
	)
	malformedMessages = metrics.NewCounter(
		"malformed_messages_total",
		subsystem,
		"Received payloads that did not decode",
		nil,
	)
	positionError = metrics.NewHistogramWithBuckets(
		"position_rms_error_mm",
		subsystem,
		"Range residual of each computed position",
		nil,
		[]float64{10, 50, 100, 250, 500, 1000, 2500, 5000},
	)
)
