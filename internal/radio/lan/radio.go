package lan

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/gangulaabhinav/ARWalking/internal/logging"
	"github.com/gangulaabhinav/ARWalking/internal/radio"
)

// ErrUnavailable is the attach error of a disabled radio.
var ErrUnavailable = errors.New("radio unavailable")

var errNoRoute = errors.New("no route to peer")

const (
	defaultProbeTimeout = time.Second
	// lostAfter is how many browse windows a publisher may be missing from
	// before it is reported lost.
	lostAfter = 2
)

// Option configures a Radio.
type Option func(*Radio)

// WithListenAddr sets the WebSocket listen address. The default picks a
// free port on all interfaces.
func WithListenAddr(addr string) Option {
	return func(r *Radio) {
		r.listenAddr = addr
	}
}

// WithAdvertiser replaces multicast DNS registration.
func WithAdvertiser(a Advertiser) Option {
	return func(r *Radio) {
		r.advertiser = a
	}
}

// WithBrowser replaces multicast DNS browsing.
func WithBrowser(b Browser) Option {
	return func(r *Radio) {
		r.browser = b
	}
}

// WithScanTimeout sets the length of one browse window.
func WithScanTimeout(d time.Duration) Option {
	return func(r *Radio) {
		r.scanTimeout = d
	}
}

// WithProbeTimeout bounds a single ranging probe.
func WithProbeTimeout(d time.Duration) Option {
	return func(r *Radio) {
		r.probeTimeout = d
	}
}

// remote is a peer session known to this radio. endpoint is nil for
// sessions that were only heard from.
type remote struct {
	instance string
	node     string
	endpoint *Endpoint
}

// Radio is a discovery and ranging radio over the local network:
// publish sessions are advertised with mDNS, messages travel over
// WebSocket and ranging measures WebSocket round trips.
type Radio struct {
	id           string
	name         string
	listenAddr   string
	advertiser   Advertiser
	browser      Browser
	scanTimeout  time.Duration
	probeTimeout time.Duration
	states       chan struct{}
	dialer       *websocket.Dialer
	upgrader     websocket.Upgrader

	mu          sync.Mutex
	available   bool
	listener    net.Listener
	server      *http.Server
	attachments map[*attachment]struct{}
	sessions    map[string]*session
	conns       map[*conn]struct{}
	routes      map[string]*conn
	handles     map[string]radio.PeerHandle
	remotes     map[radio.PeerHandle]*remote
	nextHandle  radio.PeerHandle
}

var (
	_ radio.Radio  = (*Radio)(nil)
	_ radio.Ranger = (*Radio)(nil)
)

// New creates an available radio named name.
func New(name string, opts ...Option) *Radio {
	r := &Radio{
		id:           uuid.NewString(),
		name:         name,
		listenAddr:   ":0",
		advertiser:   Zeroconf{},
		browser:      Zeroconf{},
		scanTimeout:  DefaultScanTimeout,
		probeTimeout: defaultProbeTimeout,
		states:       make(chan struct{}, 8),
		dialer:       &websocket.Dialer{HandshakeTimeout: writeTimeout},
		available:    true,
		attachments:  make(map[*attachment]struct{}),
		sessions:     make(map[string]*session),
		conns:        make(map[*conn]struct{}),
		routes:       make(map[string]*conn),
		handles:      make(map[string]radio.PeerHandle),
		remotes:      make(map[radio.PeerHandle]*remote),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ID returns the radio's unique id.
func (r *Radio) ID() string { return r.id }

// Name returns the radio's name.
func (r *Radio) Name() string { return r.name }

// Port returns the WebSocket port, or 0 while the radio is detached.
func (r *Radio) Port() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listener == nil {
		return 0
	}
	return r.listener.Addr().(*net.TCPAddr).Port
}

// IsAvailable implements radio.Radio.
func (r *Radio) IsAvailable() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.available
}

// StateChanges implements radio.Radio.
func (r *Radio) StateChanges() <-chan struct{} { return r.states }

// SetAvailable enables or disables the radio and broadcasts the change.
// Disabling terminates every session and drops every link.
func (r *Radio) SetAvailable(available bool) {
	r.mu.Lock()
	changed := r.available != available
	r.available = available
	var cleanups []func()
	if changed && !available {
		for _, s := range r.sessions {
			cleanups = append(cleanups, s.terminateLocked())
		}
		for att := range r.attachments {
			att.closed = true
		}
		r.attachments = make(map[*attachment]struct{})
	}
	r.mu.Unlock()

	for _, cleanup := range cleanups {
		cleanup()
	}
	if changed && !available {
		if err := r.stop(); err != nil {
			logging.Warn("Failed to stop LAN radio", zap.Error(err))
		}
	}
	if changed {
		select {
		case r.states <- struct{}{}:
		default:
		}
	}
}

// Attach implements radio.Radio. The first attachment starts the WebSocket
// listener; done is called on a new goroutine.
func (r *Radio) Attach(done func(radio.Attachment, error)) {
	go func() {
		att, err := r.attach()
		if err != nil {
			done(nil, err)
			return
		}
		done(att, nil)
	}()
}

func (r *Radio) attach() (*attachment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.available {
		return nil, ErrUnavailable
	}
	if r.listener == nil {
		l, err := net.Listen("tcp", r.listenAddr)
		if err != nil {
			return nil, fmt.Errorf("failed to listen on %s: %w", r.listenAddr, err)
		}
		mux := http.NewServeMux()
		mux.HandleFunc(socketPath, r.serveWS)
		r.listener = l
		r.server = &http.Server{Handler: mux, ReadHeaderTimeout: writeTimeout}
		go func(server *http.Server) {
			if err := server.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logging.Warn("LAN radio server stopped", zap.Error(err))
			}
		}(r.server)
		logging.Info("LAN radio listening", zap.String("name", r.name), zap.Stringer("addr", l.Addr()))
	}

	att := &attachment{radio: r}
	r.attachments[att] = struct{}{}
	return att, nil
}

// stop shuts the listener down and closes every link.
func (r *Radio) stop() error {
	r.mu.Lock()
	server := r.server
	conns := r.conns
	r.server = nil
	r.listener = nil
	r.conns = make(map[*conn]struct{})
	r.routes = make(map[string]*conn)
	r.mu.Unlock()

	var err error
	if server != nil {
		err = multierr.Append(err, server.Close())
	}
	for c := range conns {
		err = multierr.Append(err, c.close())
	}
	return err
}

func (r *Radio) serveWS(w http.ResponseWriter, req *http.Request) {
	ws, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		logging.Debug("WebSocket upgrade failed", zap.Error(err))
		return
	}
	r.serve(r.track(newConn(ws)))
}

func (r *Radio) track(c *conn) *conn {
	r.mu.Lock()
	r.conns[c] = struct{}{}
	r.mu.Unlock()
	return c
}

// serve reads from c until it fails, then forgets it.
func (r *Radio) serve(c *conn) {
	c.readLoop(r.deliver)

	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.conns, c)
	for instance, route := range r.routes {
		if route == c {
			delete(r.routes, instance)
		}
	}
}

func (r *Radio) deliver(c *conn, env envelope) {
	logging.LogRawBytes("lan-recv", env.Payload)

	r.mu.Lock()
	defer r.mu.Unlock()

	r.routes[env.From] = c
	s, ok := r.sessions[env.To]
	if !ok || s.closed {
		logging.Debug("Dropping message for unknown session", zap.String("to", env.To))
		return
	}
	h := r.handleForLocked(env.From, env.Node, nil)
	s.box.Push(radio.MessageReceived{Peer: h, Payload: env.Payload})
}

// handleForLocked returns the handle of a remote session, issuing one on
// first sight. A known endpoint replaces an older one.
func (r *Radio) handleForLocked(instance, node string, ep *Endpoint) radio.PeerHandle {
	if h, ok := r.handles[instance]; ok {
		if ep != nil {
			r.remotes[h].endpoint = ep
		}
		return h
	}
	r.nextHandle++
	h := r.nextHandle
	r.handles[instance] = h
	r.remotes[h] = &remote{instance: instance, node: node, endpoint: ep}
	return h
}

func (r *Radio) remote(peer radio.PeerHandle) (remote, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rem, ok := r.remotes[peer]
	if !ok {
		return remote{}, false
	}
	return *rem, true
}

// dial returns the link to rem, opening one to its endpoint if there is
// none yet.
func (r *Radio) dial(rem remote) (*conn, error) {
	r.mu.Lock()
	if c, ok := r.routes[rem.instance]; ok && !c.isClosed() {
		r.mu.Unlock()
		return c, nil
	}
	r.mu.Unlock()

	if rem.endpoint == nil {
		return nil, errNoRoute
	}
	ws, _, err := r.dialer.Dial(rem.endpoint.URL(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", rem.endpoint, err)
	}
	c := r.track(newConn(ws))

	r.mu.Lock()
	r.routes[rem.instance] = c
	r.mu.Unlock()

	go r.serve(c)
	return c, nil
}

type attachment struct {
	radio  *Radio
	closed bool
}

func (att *attachment) Publish(cfg radio.PublishConfig) <-chan radio.Event {
	return att.radio.open(att, radio.PublishMode, cfg.Clone(), radio.SubscribeConfig{})
}

func (att *attachment) Subscribe(cfg radio.SubscribeConfig) <-chan radio.Event {
	return att.radio.open(att, radio.SubscribeMode, radio.PublishConfig{}, cfg.Clone())
}

// Close detaches. Sessions still open on the attachment are closed without
// a Terminated event; the last attachment stops the listener.
func (att *attachment) Close() error {
	r := att.radio
	r.mu.Lock()
	if att.closed {
		r.mu.Unlock()
		return nil
	}
	att.closed = true
	var cleanups []func()
	for _, s := range r.sessions {
		if s.att == att {
			cleanups = append(cleanups, s.closeLocked())
		}
	}
	delete(r.attachments, att)
	last := len(r.attachments) == 0
	r.mu.Unlock()

	for _, cleanup := range cleanups {
		cleanup()
	}
	if last {
		return r.stop()
	}
	return nil
}
