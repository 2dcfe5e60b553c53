package radio

import "fmt"

// Event is one entry of a session's event stream. The concrete types are
// Started, PeerDiscovered, PeerLost, MessageReceived, SendResult,
// ConfigUpdated and Terminated.
type Event interface {
	isEvent()
}

// Started is the first event of a successful session. Session is a
// PublishSession or a SubscribeSession depending on how it was opened.
type Started struct {
	Session DiscoverySession
}

// PeerDiscovered reports a matching publisher. Subscribe sessions only.
type PeerDiscovered struct {
	Peer                PeerHandle
	ServiceSpecificInfo []byte
	MatchFilter         [][]byte
}

// PeerLost reports that a previously discovered publisher went away.
type PeerLost struct {
	Peer PeerHandle
}

// MessageReceived carries raw bytes from a peer. Decoding is up to the
// receiver.
type MessageReceived struct {
	Peer    PeerHandle
	Payload []byte
}

// SendResult reports the outcome of DiscoverySession.SendMessage.
type SendResult struct {
	MessageID int
	Succeeded bool
}

// ConfigUpdated acknowledges an UpdatePublish or UpdateSubscribe call.
type ConfigUpdated struct{}

// Terminated is the last event of a session ended by the radio.
type Terminated struct{}

func (Started) isEvent()         {}
func (PeerDiscovered) isEvent()  {}
func (PeerLost) isEvent()        {}
func (MessageReceived) isEvent() {}
func (SendResult) isEvent()      {}
func (ConfigUpdated) isEvent()   {}
func (Terminated) isEvent()      {}

// EventName returns a short name for logging.
func EventName(ev Event) string {
	switch e := ev.(type) {
	case Started:
		return "started"
	case PeerDiscovered:
		return "peer_discovered"
	case PeerLost:
		return "peer_lost"
	case MessageReceived:
		return "message_received"
	case SendResult:
		if e.Succeeded {
			return "send_succeeded"
		}
		return "send_failed"
	case ConfigUpdated:
		return "config_updated"
	case Terminated:
		return "terminated"
	default:
		return fmt.Sprintf("%T", ev)
	}
}
