package peers

import (
	"fmt"
	"time"

	"github.com/gangulaabhinav/ARWalking/internal/locate"
	"github.com/gangulaabhinav/ARWalking/internal/radio"
)

// UnknownDistance is the DistanceMm of a device that has not been ranged.
const UnknownDistance = -1

// Device is what is known about one discovered peer.
type Device struct {
	// Name is the device name the peer announced in the handshake.
	Name string

	Peer    radio.PeerHandle
	Service string

	// LastCheckIn is when the peer last proved it is alive.
	LastCheckIn time.Time

	// Position is the peer's configured anchor position, if it is an
	// anchor.
	Position locate.Point
	Anchor   bool

	// DistanceMm is the last ranged distance, UnknownDistance until the
	// first successful measurement.
	DistanceMm int
}

// String returns a human-readable string representation of the device
func (d Device) String() string {
	dist := "unranged"
	if d.DistanceMm != UnknownDistance {
		dist = fmt.Sprintf("%dmm", d.DistanceMm)
	}
	return fmt.Sprintf("%s (peer %d on %s, %s)", d.Name, d.Peer, d.Service, dist)
}

// Ranged reports whether the device has a measured distance.
func (d Device) Ranged() bool {
	return d.DistanceMm >= 0
}

// Observation returns the device as an input to trilateration. ok is false
// for devices that are not anchors.
func (d Device) Observation() (obs locate.Observation, ok bool) {
	if !d.Anchor {
		return locate.Observation{}, false
	}
	return locate.Observation{Anchor: d.Position, DistanceMm: float64(d.DistanceMm)}, true
}
