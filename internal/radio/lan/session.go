package lan

import (
	"context"
	"net"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gangulaabhinav/ARWalking/internal/logging"
	"github.com/gangulaabhinav/ARWalking/internal/radio"
)

const outboxSize = 64

type outgoing struct {
	peer    radio.PeerHandle
	id      int
	payload []byte
}

// session is a publish or subscribe session of a LAN radio. closed, pub,
// sub and shutdown are guarded by radio.mu.
type session struct {
	radio    *Radio
	att      *attachment
	instance string
	mode     radio.Mode
	box      *radio.EventQueue
	outbox   chan outgoing
	done     chan struct{}
	cancel   context.CancelFunc

	closed   bool
	pub      radio.PublishConfig
	sub      radio.SubscribeConfig
	shutdown func()
}

var (
	_ radio.PublishSession   = (*session)(nil)
	_ radio.SubscribeSession = (*session)(nil)
)

func (r *Radio) open(att *attachment, mode radio.Mode, pub radio.PublishConfig, sub radio.SubscribeConfig) <-chan radio.Event {
	ctx, cancel := context.WithCancel(context.Background())
	s := &session{
		radio:    r,
		att:      att,
		instance: uuid.NewString(),
		mode:     mode,
		box:      radio.NewEventQueue(),
		outbox:   make(chan outgoing, outboxSize),
		done:     make(chan struct{}),
		cancel:   cancel,
		pub:      pub,
		sub:      sub,
	}

	r.mu.Lock()
	if att.closed || !r.available {
		r.mu.Unlock()
		cancel()
		s.box.Push(radio.Terminated{})
		s.box.Finish()
		return s.box.Events()
	}
	r.sessions[s.instance] = s
	r.mu.Unlock()

	go s.sendLoop()
	if mode == radio.PublishMode {
		go s.advertise(true)
	} else {
		s.box.Push(radio.Started{Session: s})
		go s.browse(ctx)
	}
	logging.Debug("LAN session opened", zap.Stringer("mode", mode), zap.String("instance", s.instance))
	return s.box.Events()
}

// advertise (re)registers the publish session. The first registration
// starts the session; later ones acknowledge a configuration update.
func (s *session) advertise(first bool) {
	r := s.radio
	r.mu.Lock()
	if s.closed {
		r.mu.Unlock()
		return
	}
	old := s.shutdown
	s.shutdown = nil
	cfg := s.pub
	port := 0
	if r.listener != nil {
		port = r.listener.Addr().(*net.TCPAddr).Port
	}
	r.mu.Unlock()

	if old != nil {
		old()
	}
	txt := txtRecords(r.id, cfg.ServiceName, cfg.ServiceSpecificInfo, cfg.RangingEnabled)
	shutdown, err := r.advertiser.Register(s.instance, port, txt)

	r.mu.Lock()
	var cleanup func()
	switch {
	case s.closed:
		if err == nil {
			cleanup = shutdown
		}
	case err != nil:
		logging.Warn("Failed to advertise publish session", zap.String("service", cfg.ServiceName), zap.Error(err))
		cleanup = s.terminateLocked()
	default:
		s.shutdown = shutdown
		if first {
			s.box.Push(radio.Started{Session: s})
		} else {
			s.box.Push(radio.ConfigUpdated{})
		}
	}
	r.mu.Unlock()

	if cleanup != nil {
		cleanup()
	}
}

// browse reports publishers of the subscribed service, one browse window
// at a time, until ctx is done.
func (s *session) browse(ctx context.Context) {
	r := s.radio
	scanner := &Scanner{Browser: r.browser, Timeout: r.scanTimeout}
	known := make(map[string]radio.PeerHandle)
	missed := make(map[string]int)

	for ctx.Err() == nil {
		endpoints, err := scanner.Scan(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			logging.Warn("Browse failed", zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(r.scanTimeout):
			}
			continue
		}

		r.mu.Lock()
		service := s.sub.ServiceName
		present := make(map[string]bool)
		for _, ep := range endpoints {
			if ep.Node == r.id || ep.Service != service {
				continue
			}
			present[ep.Instance] = true
			h := r.handleForLocked(ep.Instance, ep.Node, ep)
			if _, ok := known[ep.Instance]; !ok && !s.closed {
				known[ep.Instance] = h
				s.box.Push(radio.PeerDiscovered{Peer: h, ServiceSpecificInfo: ep.ServiceSpecificInfo})
			}
		}
		for instance, h := range known {
			if present[instance] {
				delete(missed, instance)
				continue
			}
			missed[instance]++
			if missed[instance] >= lostAfter {
				delete(known, instance)
				delete(missed, instance)
				if !s.closed {
					s.box.Push(radio.PeerLost{Peer: h})
				}
			}
		}
		r.mu.Unlock()
	}
}

func (s *session) sendLoop() {
	for {
		select {
		case m := <-s.outbox:
			err := s.send(m)
			if err != nil {
				logging.Debug("LAN send failed", zap.Int("message_id", m.id), zap.Error(err))
			}
			s.radio.mu.Lock()
			if !s.closed {
				s.box.Push(radio.SendResult{MessageID: m.id, Succeeded: err == nil})
			}
			s.radio.mu.Unlock()
		case <-s.done:
			return
		}
	}
}

func (s *session) send(m outgoing) error {
	r := s.radio
	rem, ok := r.remote(m.peer)
	if !ok {
		return errNoRoute
	}
	c, err := r.dial(rem)
	if err != nil {
		return err
	}
	return c.send(envelope{
		ID:      uuid.NewString(),
		From:    s.instance,
		Node:    r.id,
		To:      rem.instance,
		Payload: m.payload,
	})
}

func (s *session) SendMessage(peer radio.PeerHandle, id int, payload []byte) {
	s.radio.mu.Lock()
	closed := s.closed
	s.radio.mu.Unlock()
	if closed {
		return
	}
	m := outgoing{peer: peer, id: id, payload: append([]byte(nil), payload...)}
	select {
	case s.outbox <- m:
	case <-s.done:
	}
}

func (s *session) UpdatePublish(cfg radio.PublishConfig) {
	r := s.radio
	r.mu.Lock()
	if s.closed || s.mode != radio.PublishMode {
		r.mu.Unlock()
		return
	}
	s.pub = cfg.Clone()
	r.mu.Unlock()
	go s.advertise(false)
}

func (s *session) UpdateSubscribe(cfg radio.SubscribeConfig) {
	r := s.radio
	r.mu.Lock()
	defer r.mu.Unlock()
	if s.closed || s.mode != radio.SubscribeMode {
		return
	}
	s.sub = cfg.Clone()
	s.box.Push(radio.ConfigUpdated{})
}

// Close ends the session without a Terminated event.
func (s *session) Close() error {
	r := s.radio
	r.mu.Lock()
	if s.closed {
		r.mu.Unlock()
		return nil
	}
	cleanup := s.closeLocked()
	r.mu.Unlock()
	cleanup()
	return nil
}

// closeLocked ends the session and returns the work that must run without
// the radio lock.
func (s *session) closeLocked() func() {
	s.box.Abandon()
	return s.endLocked()
}

// terminateLocked ends the session from the radio side: queued events are
// delivered, followed by Terminated.
func (s *session) terminateLocked() func() {
	s.box.Push(radio.Terminated{})
	s.box.Finish()
	return s.endLocked()
}

func (s *session) endLocked() func() {
	s.closed = true
	close(s.done)
	s.cancel()
	delete(s.radio.sessions, s.instance)
	shutdown := s.shutdown
	s.shutdown = nil
	return func() {
		if shutdown != nil {
			shutdown()
		}
	}
}
