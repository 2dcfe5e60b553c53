package peers

import (
	"fmt"
	"sort"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/gangulaabhinav/ARWalking/internal/locate"
	"github.com/gangulaabhinav/ARWalking/internal/logging"
	"github.com/gangulaabhinav/ARWalking/internal/protocol"
	"github.com/gangulaabhinav/ARWalking/internal/radio"
)

// DefaultCapacity bounds the number of tracked devices.
const DefaultCapacity = 64

// Tracker keeps the devices that completed the name handshake, keyed by peer
// handle. When full, the least recently touched device is evicted.
type Tracker struct {
	clock   clockwork.Clock
	timeout time.Duration
	anchors map[string]locate.Point

	mu      sync.Mutex
	devices *lru.Cache[radio.PeerHandle, *Device]
}

// TrackerOption configures a Tracker.
type TrackerOption func(*Tracker)

// WithClock sets the clock used for check-in timestamps.
func WithClock(clock clockwork.Clock) TrackerOption {
	return func(t *Tracker) {
		t.clock = clock
	}
}

// WithTimeout sets how long a device may stay silent. The default is
// protocol.PeerTimeout.
func WithTimeout(timeout time.Duration) TrackerOption {
	return func(t *Tracker) {
		if timeout > 0 {
			t.timeout = timeout
		}
	}
}

// WithAnchors sets the known anchor positions by device name.
func WithAnchors(anchors map[string]locate.Point) TrackerOption {
	return func(t *Tracker) {
		for name, p := range anchors {
			t.anchors[name] = p
		}
	}
}

// NewTracker returns an empty tracker holding at most capacity devices.
func NewTracker(capacity int, opts ...TrackerOption) (*Tracker, error) {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	t := &Tracker{
		clock:   clockwork.NewRealClock(),
		timeout: protocol.PeerTimeout,
		anchors: make(map[string]locate.Point),
	}
	for _, opt := range opts {
		opt(t)
	}

	cache, err := lru.NewWithEvict(capacity, func(peer radio.PeerHandle, d *Device) {
		logging.Debug("Device evicted", zap.Int("peer", int(peer)), zap.String("name", d.Name))
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create device cache: %w", err)
	}
	t.devices = cache
	return t, nil
}

// Add registers a device on its first check-in. It reports false, and
// leaves the existing record alone, when the peer is already tracked.
func (t *Tracker) Add(name string, peer radio.PeerHandle, service string) (Device, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if d, ok := t.devices.Get(peer); ok {
		return *d, false
	}

	d := &Device{
		Name:        name,
		Peer:        peer,
		Service:     service,
		LastCheckIn: t.clock.Now(),
		DistanceMm:  UnknownDistance,
	}
	if p, ok := t.anchors[name]; ok {
		d.Position = p
		d.Anchor = true
	}
	t.devices.Add(peer, d)
	logging.Info("Device added", zap.Int("peer", int(peer)), zap.String("name", name), zap.Bool("anchor", d.Anchor))
	return *d, true
}

// CheckIn records that peer is alive. It reports false for unknown peers.
func (t *Tracker) CheckIn(peer radio.PeerHandle) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	d, ok := t.devices.Get(peer)
	if !ok {
		return false
	}
	d.LastCheckIn = t.clock.Now()
	return true
}

// Get returns a copy of the device tracked for peer.
func (t *Tracker) Get(peer radio.PeerHandle) (Device, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	d, ok := t.devices.Peek(peer)
	if !ok {
		return Device{}, false
	}
	return *d, true
}

// Remove forgets peer.
func (t *Tracker) Remove(peer radio.PeerHandle) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.devices.Remove(peer)
}

// SetDistance stores a ranged distance for peer.
func (t *Tracker) SetDistance(peer radio.PeerHandle, distanceMm int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	d, ok := t.devices.Peek(peer)
	if !ok {
		return false
	}
	d.DistanceMm = distanceMm
	return true
}

// Alive reports whether peer checked in within the timeout. A stale peer
// is removed.
func (t *Tracker) Alive(peer radio.PeerHandle) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	d, ok := t.devices.Peek(peer)
	if !ok {
		return false
	}
	if t.clock.Since(d.LastCheckIn) > t.timeout {
		t.devices.Remove(peer)
		logging.Info("Device timed out", zap.Int("peer", int(peer)), zap.String("name", d.Name))
		return false
	}
	return true
}

// Expire removes every stale device and returns them.
func (t *Tracker) Expire() []Device {
	t.mu.Lock()
	defer t.mu.Unlock()

	var expired []Device
	for _, peer := range t.devices.Keys() {
		d, ok := t.devices.Peek(peer)
		if ok && t.clock.Since(d.LastCheckIn) > t.timeout {
			t.devices.Remove(peer)
			expired = append(expired, *d)
		}
	}
	return expired
}

// Handles returns the tracked peers in ascending order.
func (t *Tracker) Handles() []radio.PeerHandle {
	t.mu.Lock()
	defer t.mu.Unlock()

	handles := t.devices.Keys()
	sort.Slice(handles, func(i, j int) bool { return handles[i] < handles[j] })
	return handles
}

// Devices returns copies of the tracked devices ordered by name, then peer.
func (t *Tracker) Devices() []Device {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]Device, 0, t.devices.Len())
	for _, d := range t.devices.Values() {
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].Peer < out[j].Peer
	})
	return out
}

// Observations returns the trilateration inputs of every tracked anchor.
func (t *Tracker) Observations() []locate.Observation {
	var obs []locate.Observation
	for _, d := range t.Devices() {
		if o, ok := d.Observation(); ok {
			obs = append(obs, o)
		}
	}
	return obs
}

// Clear forgets every device.
func (t *Tracker) Clear() {
	t.mu.Lock()
	t.devices.Purge()
	t.mu.Unlock()
}

// Len returns the number of tracked devices.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.devices.Len()
}
