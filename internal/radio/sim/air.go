package sim

import (
	"bytes"
	"math"
	"math/rand"
	"sort"
	"sync"

	"github.com/jonboulle/clockwork"

	"github.com/gangulaabhinav/ARWalking/internal/locate"
	"github.com/gangulaabhinav/ARWalking/internal/radio"
)

// Air is a shared medium for simulated radios. Radios placed in the same
// Air discover each other's services, exchange messages and range each
// other by their positions.
type Air struct {
	clock   clockwork.Clock
	rangeMm float64
	noiseMm float64

	mu       sync.Mutex
	rng      *rand.Rand
	radios   []*Radio
	sessions []*session
	nextID   uint64
}

// AirOption configures an Air.
type AirOption func(*Air)

// WithClock sets the clock used to timestamp ranging results.
func WithClock(clock clockwork.Clock) AirOption {
	return func(a *Air) {
		a.clock = clock
	}
}

// WithRange limits discovery, messaging and ranging to radios closer than
// rangeMm. Zero means unlimited.
func WithRange(rangeMm float64) AirOption {
	return func(a *Air) {
		a.rangeMm = rangeMm
	}
}

// WithNoise adds zero-mean gaussian noise with the given standard deviation
// to every ranged distance. seed makes the noise reproducible.
func WithNoise(stdDevMm float64, seed int64) AirOption {
	return func(a *Air) {
		a.noiseMm = stdDevMm
		a.rng = rand.New(rand.NewSource(seed))
	}
}

// NewAir returns an empty medium.
func NewAir(opts ...AirOption) *Air {
	a := &Air{
		clock: clockwork.NewRealClock(),
		rng:   rand.New(rand.NewSource(1)),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Radios returns the radios in the order they were added.
func (a *Air) Radios() []*Radio {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]*Radio(nil), a.radios...)
}

// inRangeLocked reports whether two radios can hear each other.
func (a *Air) inRangeLocked(x, y *Radio) bool {
	if !x.available || !y.available {
		return false
	}
	if a.rangeMm <= 0 {
		return true
	}
	return distance(x.pos, y.pos) <= a.rangeMm
}

func distance(p, q locate.Point) float64 {
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}

// matches reports whether subscriber sub should discover publisher pub.
// An empty subscriber filter matches everything; otherwise every non-empty
// subscriber element must equal the publisher element at the same index.
func matches(pub radio.PublishConfig, sub radio.SubscribeConfig) bool {
	if pub.ServiceName != sub.ServiceName {
		return false
	}
	for i, want := range sub.MatchFilter {
		if len(want) == 0 {
			continue
		}
		if i >= len(pub.MatchFilter) || !bytes.Equal(want, pub.MatchFilter[i]) {
			return false
		}
	}
	return true
}

// rematchLocked brings every subscriber's view of the publishers in line
// with the current sessions, configurations, positions and availability.
func (a *Air) rematchLocked() {
	var pubs, subs []*session
	for _, s := range a.sessions {
		if s.closed {
			continue
		}
		if s.mode == radio.PublishMode {
			pubs = append(pubs, s)
		} else {
			subs = append(subs, s)
		}
	}

	for _, sub := range subs {
		for _, pub := range pubs {
			visible := pub.radio != sub.radio &&
				a.inRangeLocked(pub.radio, sub.radio) &&
				matches(pub.pub, sub.sub)
			_, known := sub.discovered[pub]
			switch {
			case visible && !known:
				h := sub.radio.handleForLocked(pub)
				sub.discovered[pub] = h
				sub.box.Push(radio.PeerDiscovered{
					Peer:                h,
					ServiceSpecificInfo: cloneBytes(pub.pub.ServiceSpecificInfo),
					MatchFilter:         pub.pub.Clone().MatchFilter,
				})
			case !visible && known:
				a.loseLocked(sub, pub)
			}
		}
		// Publishers that went away entirely.
		for _, pub := range sortedSessions(sub.discovered) {
			if pub.closed {
				a.loseLocked(sub, pub)
			}
		}
	}
}

func (a *Air) loseLocked(sub, pub *session) {
	h := sub.discovered[pub]
	delete(sub.discovered, pub)
	sub.box.Push(radio.PeerLost{Peer: h})
}

// removeLocked drops closed sessions from the air.
func (a *Air) removeLocked(s *session) {
	for i, other := range a.sessions {
		if other == s {
			a.sessions = append(a.sessions[:i], a.sessions[i+1:]...)
			break
		}
	}
	a.rematchLocked()
}

func (a *Air) noiseLocked() float64 {
	if a.noiseMm <= 0 {
		return 0
	}
	return a.rng.NormFloat64() * a.noiseMm
}

func sortedSessions(m map[*session]radio.PeerHandle) []*session {
	out := make([]*session, 0, len(m))
	for s := range m {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte(nil), b...)
}
