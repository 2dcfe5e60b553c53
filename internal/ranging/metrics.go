package ranging

import "github.com/gangulaabhinav/ARWalking/internal/metrics"

const subsystem = "ranging"

var (
	rangingRequests = metrics.NewCounter(
		"iterations_total",
		subsystem,
		"Continuous ranging iterations, by whether a request was issued",
		[]string{"kind"},
	)
	rangingOutcomes = metrics.NewCounter(
		"outcomes_total",
		subsystem,
		"Radio answers to continuous ranging requests",
		[]string{"outcome"},
	)
)
