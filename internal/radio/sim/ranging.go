package sim

import (
	"math"
	"time"

	"github.com/gangulaabhinav/ARWalking/internal/radio"
)

// speedOfLight in millimetres per nanosecond.
const speedOfLight = 299.792458

// measurementsPerPeer is how many exchanges one simulated burst makes.
const measurementsPerPeer = 8

// FailNextRanging makes the next ranging request fail as a whole with code.
func (r *Radio) FailNextRanging(code int) {
	r.air.mu.Lock()
	r.failRanging = code
	r.air.mu.Unlock()
}

// RangingRequests returns how many ranging requests the radio received.
func (r *Radio) RangingRequests() int {
	r.air.mu.Lock()
	defer r.air.mu.Unlock()
	return r.rangingCalls
}

// StartRanging implements radio.Ranger. Only publishers that enabled
// ranging answer; every other peer gets StatusFail. The answer is
// delivered on a new goroutine.
func (r *Radio) StartRanging(req radio.RangingRequest, cb radio.RangingCallback) {
	a := r.air
	a.mu.Lock()
	r.rangingCalls++

	failure := 0
	switch {
	case !r.available:
		failure = radio.FailureCodeRTTNotAvailable
	case r.failRanging != 0:
		failure = r.failRanging
		r.failRanging = 0
	}
	if failure != 0 {
		a.mu.Unlock()
		go cb.OnRangingFailure(failure)
		return
	}

	now := a.clock.Now()
	results := make([]radio.RangingResult, 0, len(req.Peers))
	for _, peer := range req.Peers {
		res := radio.RangingResult{
			Peer:                     peer,
			Status:                   radio.StatusFail,
			DistanceMm:               0,
			NumAttemptedMeasurements: measurementsPerPeer,
			Timestamp:                now,
		}
		remote, ok := r.byHandle[peer]
		if ok && remote.rangeable() && a.inRangeLocked(r, remote.radio) {
			d := distance(r.pos, remote.radio.pos) + a.noiseLocked()
			if d < 0 {
				d = 0
			}
			res.Status = radio.StatusSuccess
			res.DistanceMm = int(math.Round(d))
			res.DistanceStdDevMm = int(math.Round(a.noiseMm))
			res.RSSI = rssi(d)
			res.NumSuccessfulMeasurements = measurementsPerPeer
			res.RTT = time.Duration(2 * d / speedOfLight)
		}
		results = append(results, res)
	}
	a.mu.Unlock()

	go cb.OnRangingResults(results)
}

// rssi is a free-space estimate in dBm for a 5 GHz link.
func rssi(distanceMm float64) int {
	m := math.Max(distanceMm/1000, 0.1)
	return int(math.Round(-40 - 20*math.Log10(m)))
}
