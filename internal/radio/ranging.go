package radio

import "time"

// Per-peer ranging status.
const (
	StatusSuccess             = 0
	StatusFail                = 1
	StatusResponderNotCapable = 2
)

// Whole-request failure codes passed to RangingCallback.OnRangingFailure.
// Radios may report other codes; callers must treat unknown codes as
// transient.
const (
	FailureCodeFail            = 1
	FailureCodeRTTNotAvailable = 2
)

// RangingRequest asks for one measurement round against Peers.
type RangingRequest struct {
	Peers []PeerHandle
}

// RangingResult is the measurement for one peer of a request.
type RangingResult struct {
	Peer       PeerHandle
	Status     int
	DistanceMm int
	// DistanceStdDevMm is the standard deviation of DistanceMm.
	DistanceStdDevMm          int
	RSSI                      int
	NumAttemptedMeasurements  int
	NumSuccessfulMeasurements int
	// RTT is the measured round trip. Radios that cannot convert it into a
	// distance set DistanceMm to -1.
	RTT       time.Duration
	Timestamp time.Time
}

// Succeeded reports whether the result carries a measurement.
func (r RangingResult) Succeeded() bool {
	return r.Status == StatusSuccess
}

// RangingCallback receives the outcome of one ranging request. Exactly one
// of the methods is called per request.
type RangingCallback interface {
	OnRangingResults(results []RangingResult)
	OnRangingFailure(code int)
}

// Ranger is the ranging radio.
type Ranger interface {
	IsAvailable() bool
	StartRanging(req RangingRequest, cb RangingCallback)
}

// RangingFuncs adapts two functions to a RangingCallback.
type RangingFuncs struct {
	Results func([]RangingResult)
	Failure func(code int)
}

// OnRangingResults implements RangingCallback.
func (f RangingFuncs) OnRangingResults(results []RangingResult) {
	if f.Results != nil {
		f.Results(results)
	}
}

// OnRangingFailure implements RangingCallback.
func (f RangingFuncs) OnRangingFailure(code int) {
	if f.Failure != nil {
		f.Failure(code)
	}
}
