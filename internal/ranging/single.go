package ranging

import (
	"go.uber.org/zap"

	"github.com/gangulaabhinav/ARWalking/internal/logging"
	"github.com/gangulaabhinav/ARWalking/internal/radio"
)

// SingleRanger issues one-off ranging requests against a single peer.
type SingleRanger struct {
	ranger radio.Ranger
}

// NewSingleRanger returns a SingleRanger using r.
func NewSingleRanger(r radio.Ranger) *SingleRanger {
	return &SingleRanger{ranger: r}
}

// RangePeer ranges peer once. cb receives the results when the measurement
// succeeded, FailureCodeFail when it failed or came back empty,
// FailureCodeRTTNotAvailable when the responder cannot be ranged, and any
// failure code reported by the radio unchanged.
func (s *SingleRanger) RangePeer(peer radio.PeerHandle, cb radio.RangingCallback) {
	req := radio.RangingRequest{Peers: []radio.PeerHandle{peer}}
	s.ranger.StartRanging(req, radio.RangingFuncs{
		Results: func(results []radio.RangingResult) {
			if len(results) == 0 {
				logging.Warn("Single ranging returned no results", zap.Int("peer", int(peer)))
				cb.OnRangingFailure(radio.FailureCodeFail)
				return
			}
			switch results[0].Status {
			case radio.StatusSuccess:
				logging.Debug("Ranging successful", zap.Int("peer", int(peer)), zap.Int("distance_mm", results[0].DistanceMm))
				cb.OnRangingResults(results)
			case radio.StatusResponderNotCapable:
				logging.Warn("Peer cannot be ranged", zap.Int("peer", int(peer)))
				cb.OnRangingFailure(radio.FailureCodeRTTNotAvailable)
			default:
				logging.Warn("Ranging failed", zap.Int("peer", int(peer)))
				cb.OnRangingFailure(radio.FailureCodeFail)
			}
		},
		Failure: func(code int) {
			logging.Warn("Ranging failed", zap.Int("peer", int(peer)), zap.Int("code", code))
			cb.OnRangingFailure(code)
		},
	})
}
