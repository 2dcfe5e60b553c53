package app

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/gangulaabhinav/ARWalking/internal/discovery"
	"github.com/gangulaabhinav/ARWalking/internal/locate"
	"github.com/gangulaabhinav/ARWalking/internal/logging"
	"github.com/gangulaabhinav/ARWalking/internal/peers"
	"github.com/gangulaabhinav/ARWalking/internal/protocol"
	"github.com/gangulaabhinav/ARWalking/internal/radio"
	"github.com/gangulaabhinav/ARWalking/internal/ranging"
)

const (
	// maxEvents bounds the activity log kept for Snapshot.
	maxEvents = 32
	// maxChats bounds the chat history.
	maxChats = 64
)

var (
	// ErrUnknownPeer is returned by SendChat for a peer that is not tracked.
	ErrUnknownPeer = errors.New("unknown peer")

	// ErrInvalidText is returned for text that cannot travel in a message.
	ErrInvalidText = errors.New("text contains the message delimiter")
)

// Radio is what a Node needs from the device: discovery and ranging.
type Radio interface {
	radio.Radio
	radio.Ranger
}

// Config describes one node.
type Config struct {
	// DeviceName is announced to peers in every message.
	DeviceName string
	Service    string

	Publish   bool
	Subscribe bool

	// Ranging enables continuous ranging of tracked peers.
	Ranging       bool
	RangingPeriod time.Duration

	PeerCapacity int
	PeerTimeout  time.Duration
	PingInterval time.Duration

	// Anchors are the known positions of devices by name.
	Anchors map[string]locate.Point
}

// Validate checks the fields New cannot default.
func (c Config) Validate() error {
	if c.DeviceName == "" {
		return errors.New("device name is required")
	}
	if strings.Contains(c.DeviceName, protocol.Delimiter) {
		return fmt.Errorf("device name %q: %w", c.DeviceName, ErrInvalidText)
	}
	// Discovery accepts an empty name; a node always announces one.
	if c.Service == "" || !discovery.IsValidServiceName(c.Service) {
		return fmt.Errorf("invalid service name %q", c.Service)
	}
	if !c.Publish && !c.Subscribe {
		return errors.New("node must publish, subscribe or both")
	}
	return nil
}

// Chat is a chat message received from a peer.
type Chat struct {
	From string
	Peer radio.PeerHandle
	Text string
	At   time.Time
}

// Event is one line of the node's activity log.
type Event struct {
	At   time.Time
	Text string
}

// Counters summarise the node's traffic.
type Counters struct {
	Sent            int
	SendFailed      int
	Received        int
	Malformed       int
	RangingRounds   int
	RangingFailures int
}

// Snapshot is a consistent view of the node for display.
type Snapshot struct {
	DeviceName string
	Service    string
	Available  bool
	Devices    []peers.Device
	// Position is nil until enough anchors have been ranged.
	Position *locate.Result
	Counters Counters
	Events   []Event
}

// link is the liveness loop of one tracked peer.
type link struct {
	mode  radio.Mode
	timer clockwork.Timer
}

// Node is one device of the positioning network. It implements the
// discovery callbacks and the continuous ranging callback.
type Node struct {
	cfg     Config
	radio   Radio
	clock   clockwork.Clock
	client  *discovery.Client
	ranger  *ranging.ContinuousRanger
	tracker *peers.Tracker

	mu       sync.Mutex
	links    map[radio.PeerHandle]*link
	position *locate.Result
	counters Counters
	events   []Event
	chats    []Chat
	closed   bool
}

var (
	_ discovery.PublishCallback    = (*Node)(nil)
	_ discovery.SubscribeCallback  = (*Node)(nil)
	_ discovery.ServiceLostHandler = (*Node)(nil)
	_ ranging.ContinuousCallback   = (*Node)(nil)
)

// Option configures a Node.
type Option func(*Node)

// WithClock sets the clock of the liveness loops, the tracker and the
// ranger.
func WithClock(clock clockwork.Clock) Option {
	return func(n *Node) {
		n.clock = clock
	}
}

// New builds a stopped node on r.
func New(r Radio, cfg Config, opts ...Option) (*Node, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = protocol.PingInterval
	}
	if cfg.PeerTimeout <= 0 {
		cfg.PeerTimeout = protocol.PeerTimeout
	}

	n := &Node{
		cfg:   cfg,
		radio: r,
		clock: clockwork.NewRealClock(),
		links: make(map[radio.PeerHandle]*link),
	}
	for _, opt := range opts {
		opt(n)
	}

	tracker, err := peers.NewTracker(cfg.PeerCapacity,
		peers.WithClock(n.clock),
		peers.WithTimeout(cfg.PeerTimeout),
		peers.WithAnchors(cfg.Anchors),
	)
	if err != nil {
		return nil, err
	}
	n.tracker = tracker
	n.ranger = ranging.NewContinuousRanger(r, cfg.RangingPeriod, ranging.WithClock(n.clock))
	n.client = discovery.NewClient(r, n)
	return n, nil
}

// Start opens the configured sessions and, if enabled, starts ranging.
func (n *Node) Start() {
	if n.cfg.Publish {
		n.client.Publish(n.cfg.Service, n, &radio.PublishConfig{
			ServiceName:         n.cfg.Service,
			ServiceSpecificInfo: []byte(n.cfg.DeviceName),
		})
	}
	if n.cfg.Subscribe {
		n.client.Subscribe(n.cfg.Service, n, nil)
	}
	if n.cfg.Ranging {
		n.ranger.Start(n)
	}
	logging.Info("Node started",
		zap.String("device", n.cfg.DeviceName),
		zap.String("service", n.cfg.Service),
		zap.Bool("publish", n.cfg.Publish),
		zap.Bool("subscribe", n.cfg.Subscribe),
		zap.Bool("ranging", n.cfg.Ranging))
}

// Close stops ranging and the liveness loops and closes every session.
func (n *Node) Close() error {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return nil
	}
	n.closed = true
	n.stopLinksLocked()
	n.mu.Unlock()

	n.ranger.Stop()
	return n.client.Close()
}

// SendChat sends text to a tracked peer.
func (n *Node) SendChat(peer radio.PeerHandle, text string) error {
	if strings.Contains(text, protocol.Delimiter) {
		return ErrInvalidText
	}
	n.mu.Lock()
	l, ok := n.links[peer]
	n.mu.Unlock()
	if !ok {
		return fmt.Errorf("chat to peer %d: %w", peer, ErrUnknownPeer)
	}
	if !n.send(l.mode, n.cfg.Service, peer, protocol.Chat, text) {
		return fmt.Errorf("chat to peer %d: %w", peer, discovery.ErrNoSuchService)
	}
	return nil
}

// Chats returns the received chat messages, oldest first.
func (n *Node) Chats() []Chat {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Chat(nil), n.chats...)
}

// Position returns the last computed position.
func (n *Node) Position() (locate.Result, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.position == nil {
		return locate.Result{}, false
	}
	return *n.position, true
}

// Snapshot returns the node's current state.
func (n *Node) Snapshot() Snapshot {
	devices := n.tracker.Devices()
	available := n.radio.IsAvailable()

	n.mu.Lock()
	defer n.mu.Unlock()
	s := Snapshot{
		DeviceName: n.cfg.DeviceName,
		Service:    n.cfg.Service,
		Available:  available,
		Devices:    devices,
		Counters:   n.counters,
		Events:     append([]Event(nil), n.events...),
	}
	if n.position != nil {
		p := *n.position
		s.Position = &p
	}
	return s
}

// send encodes and sends one message. It must not be called with n.mu held.
func (n *Node) send(mode radio.Mode, service string, peer radio.PeerHandle, t protocol.RequestType, body string) bool {
	msg := protocol.Message{DeviceName: n.cfg.DeviceName, RequestType: t, Body: body}
	return n.client.SendMessage(mode, service, peer, protocol.NextMessageID(), msg.Encode())
}

// record appends to the activity log.
func (n *Node) record(format string, args ...any) {
	text := fmt.Sprintf(format, args...)
	logging.Debug(text, zap.String("device", n.cfg.DeviceName))

	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, Event{At: n.clock.Now(), Text: text})
	if len(n.events) > maxEvents {
		n.events = n.events[len(n.events)-maxEvents:]
	}
}

func (n *Node) stopLinksLocked() {
	for peer, l := range n.links {
		l.timer.Stop()
		delete(n.links, peer)
	}
}
