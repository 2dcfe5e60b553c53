package radio

import (
	"fmt"
	"regexp"
)

// Mode distinguishes the two kinds of discovery session.
type Mode int

const (
	PublishMode Mode = iota
	SubscribeMode
)

// String returns a human-readable mode name
func (m Mode) String() string {
	switch m {
	case PublishMode:
		return "publish"
	case SubscribeMode:
		return "subscribe"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// PeerHandle identifies a discovered peer for the lifetime of the session
// that discovered it. Handles are issued by the radio and carry no meaning
// outside it.
type PeerHandle int

// serviceNamePattern is the set of names accepted at the publish/subscribe
// boundary. The empty name is allowed.
var serviceNamePattern = regexp.MustCompile(`^[A-Za-z0-9.-]*$`)

// ValidServiceName reports whether name may be used as a service name.
func ValidServiceName(name string) bool {
	return serviceNamePattern.MatchString(name)
}

// PublishConfig configures a publish session.
type PublishConfig struct {
	ServiceName         string
	ServiceSpecificInfo []byte
	MatchFilter         [][]byte
	RangingEnabled      bool
}

// Clone returns a deep copy of the configuration.
func (c PublishConfig) Clone() PublishConfig {
	c.ServiceSpecificInfo = cloneBytes(c.ServiceSpecificInfo)
	c.MatchFilter = cloneFilter(c.MatchFilter)
	return c
}

// SubscribeConfig configures a subscribe session.
type SubscribeConfig struct {
	ServiceName         string
	ServiceSpecificInfo []byte
	MatchFilter         [][]byte
}

// Clone returns a deep copy of the configuration.
func (c SubscribeConfig) Clone() SubscribeConfig {
	c.ServiceSpecificInfo = cloneBytes(c.ServiceSpecificInfo)
	c.MatchFilter = cloneFilter(c.MatchFilter)
	return c
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte(nil), b...)
}

func cloneFilter(f [][]byte) [][]byte {
	if f == nil {
		return nil
	}
	out := make([][]byte, len(f))
	for i, b := range f {
		out[i] = cloneBytes(b)
	}
	return out
}

// Radio is the discovery radio.
type Radio interface {
	// IsAvailable reports whether the radio is currently enabled.
	IsAvailable() bool

	// Attach asynchronously creates an attachment. done is called exactly
	// once, from any goroutine, with either an attachment or an error.
	Attach(done func(Attachment, error))

	// StateChanges delivers a value every time availability may have
	// changed. The channel is never closed while the radio is in use.
	StateChanges() <-chan struct{}
}

// Attachment is a live connection to the discovery radio. Every session is
// opened through one.
type Attachment interface {
	// Publish starts a publish session. The returned channel carries the
	// session's events in order; it is closed after Terminated or after the
	// session is closed locally.
	Publish(cfg PublishConfig) <-chan Event

	// Subscribe starts a subscribe session with the same channel contract
	// as Publish.
	Subscribe(cfg SubscribeConfig) <-chan Event

	// Close detaches from the radio.
	Close() error
}

// DiscoverySession is the handle of a started session.
type DiscoverySession interface {
	// SendMessage queues payload for peer. The outcome is reported later as
	// a SendResult event carrying id.
	SendMessage(peer PeerHandle, id int, payload []byte)

	// Close ends the session. No Terminated event follows a local close.
	Close() error
}

// PublishSession is a DiscoverySession opened by Publish.
type PublishSession interface {
	DiscoverySession
	UpdatePublish(cfg PublishConfig)
}

// SubscribeSession is a DiscoverySession opened by Subscribe.
type SubscribeSession interface {
	DiscoverySession
	UpdateSubscribe(cfg SubscribeConfig)
}
