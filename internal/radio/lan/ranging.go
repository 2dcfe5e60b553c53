package lan

import (
	"time"

	"go.uber.org/zap"

	"github.com/gangulaabhinav/ARWalking/internal/logging"
	"github.com/gangulaabhinav/ARWalking/internal/radio"
)

// probesPerPeer is how many ping/pong exchanges one request makes per peer.
const probesPerPeer = 3

// StartRanging implements radio.Ranger. Each peer is probed over its
// WebSocket link; the mean round trip is reported with an unknown distance.
// Publishers that did not enable ranging get StatusFail.
func (r *Radio) StartRanging(req radio.RangingRequest, cb radio.RangingCallback) {
	go func() {
		if !r.IsAvailable() {
			cb.OnRangingFailure(radio.FailureCodeRTTNotAvailable)
			return
		}
		results := make([]radio.RangingResult, 0, len(req.Peers))
		for _, peer := range req.Peers {
			results = append(results, r.measure(peer))
		}
		cb.OnRangingResults(results)
	}()
}

func (r *Radio) measure(peer radio.PeerHandle) radio.RangingResult {
	res := radio.RangingResult{
		Peer:                     peer,
		Status:                   radio.StatusFail,
		DistanceMm:               -1,
		NumAttemptedMeasurements: probesPerPeer,
		Timestamp:                time.Now(),
	}

	rem, ok := r.remote(peer)
	if !ok || (rem.endpoint != nil && !rem.endpoint.Ranging) {
		return res
	}
	c, err := r.dial(rem)
	if err != nil {
		logging.Debug("Ranging dial failed", zap.Int("peer", int(peer)), zap.Error(err))
		return res
	}

	var total time.Duration
	for i := 0; i < probesPerPeer; i++ {
		rtt, err := c.probe(r.probeTimeout)
		if err != nil {
			continue
		}
		total += rtt
		res.NumSuccessfulMeasurements++
	}
	if res.NumSuccessfulMeasurements > 0 {
		res.Status = radio.StatusSuccess
		res.RTT = total / time.Duration(res.NumSuccessfulMeasurements)
	}
	return res
}
