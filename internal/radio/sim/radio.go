package sim

import (
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gangulaabhinav/ARWalking/internal/locate"
	"github.com/gangulaabhinav/ARWalking/internal/logging"
	"github.com/gangulaabhinav/ARWalking/internal/radio"
)

// ErrUnavailable is the attach error of a disabled radio.
var ErrUnavailable = errors.New("radio unavailable")

// ErrAttachRefused is the attach error injected by FailNextAttach.
var ErrAttachRefused = errors.New("attach refused")

// Radio is one simulated device. It implements radio.Radio and
// radio.Ranger.
type Radio struct {
	air    *Air
	id     string
	name   string
	states chan struct{}

	// Guarded by air.mu.
	pos          locate.Point
	available    bool
	failAttach   int
	failRanging  int
	attachments  []*attachment
	handles      map[*session]radio.PeerHandle
	byHandle     map[radio.PeerHandle]*session
	nextHandle   radio.PeerHandle
	rangingCalls int
}

var (
	_ radio.Radio  = (*Radio)(nil)
	_ radio.Ranger = (*Radio)(nil)
)

// NewRadio places an available radio named name at pos.
func (a *Air) NewRadio(name string, pos locate.Point) *Radio {
	r := &Radio{
		air:       a,
		id:        uuid.NewString(),
		name:      name,
		states:    make(chan struct{}, 8),
		pos:       pos,
		available: true,
		handles:   make(map[*session]radio.PeerHandle),
		byHandle:  make(map[radio.PeerHandle]*session),
	}
	a.mu.Lock()
	a.radios = append(a.radios, r)
	a.mu.Unlock()
	logging.Debug("Simulated radio added", zap.String("name", name), zap.String("id", r.id))
	return r
}

// ID returns the radio's unique id.
func (r *Radio) ID() string { return r.id }

// Name returns the radio's name.
func (r *Radio) Name() string { return r.name }

// Position returns where the radio is.
func (r *Radio) Position() locate.Point {
	r.air.mu.Lock()
	defer r.air.mu.Unlock()
	return r.pos
}

// MoveTo moves the radio. Peers that come into or go out of range are
// discovered or lost.
func (r *Radio) MoveTo(pos locate.Point) {
	r.air.mu.Lock()
	defer r.air.mu.Unlock()
	r.pos = pos
	r.air.rematchLocked()
}

// IsAvailable implements radio.Radio.
func (r *Radio) IsAvailable() bool {
	r.air.mu.Lock()
	defer r.air.mu.Unlock()
	return r.available
}

// StateChanges implements radio.Radio.
func (r *Radio) StateChanges() <-chan struct{} { return r.states }

// SetAvailable enables or disables the radio and broadcasts the change.
// Disabling terminates every session of the radio.
func (r *Radio) SetAvailable(available bool) {
	r.air.mu.Lock()
	changed := r.available != available
	r.available = available
	if changed && !available {
		for _, s := range append([]*session(nil), r.air.sessions...) {
			if s.radio == r && !s.closed {
				s.terminateLocked()
			}
		}
		r.attachments = nil
	}
	r.air.rematchLocked()
	r.air.mu.Unlock()

	if changed {
		select {
		case r.states <- struct{}{}:
		default:
		}
	}
}

// FailNextAttach makes the next n attach requests fail.
func (r *Radio) FailNextAttach(n int) {
	r.air.mu.Lock()
	r.failAttach = n
	r.air.mu.Unlock()
}

// Attach implements radio.Radio. done is always called on a new goroutine.
func (r *Radio) Attach(done func(radio.Attachment, error)) {
	r.air.mu.Lock()
	var err error
	var att *attachment
	switch {
	case !r.available:
		err = ErrUnavailable
	case r.failAttach > 0:
		r.failAttach--
		err = ErrAttachRefused
	default:
		att = &attachment{radio: r}
		r.attachments = append(r.attachments, att)
	}
	r.air.mu.Unlock()

	go func() {
		if err != nil {
			done(nil, err)
			return
		}
		done(att, nil)
	}()
}

// Attachments returns the number of attachments that are still open.
func (r *Radio) Attachments() int {
	r.air.mu.Lock()
	defer r.air.mu.Unlock()
	n := 0
	for _, att := range r.attachments {
		if !att.closed {
			n++
		}
	}
	return n
}

// handleForLocked returns the handle this radio uses for the remote
// session s, issuing one on first sight.
func (r *Radio) handleForLocked(s *session) radio.PeerHandle {
	if h, ok := r.handles[s]; ok {
		return h
	}
	r.nextHandle++
	h := r.nextHandle
	r.handles[s] = h
	r.byHandle[h] = s
	return h
}

type attachment struct {
	radio  *Radio
	closed bool
}

func (att *attachment) Publish(cfg radio.PublishConfig) <-chan radio.Event {
	return att.open(radio.PublishMode, cfg, radio.SubscribeConfig{})
}

func (att *attachment) Subscribe(cfg radio.SubscribeConfig) <-chan radio.Event {
	return att.open(radio.SubscribeMode, radio.PublishConfig{}, cfg)
}

func (att *attachment) open(mode radio.Mode, pub radio.PublishConfig, sub radio.SubscribeConfig) <-chan radio.Event {
	a := att.radio.air
	a.mu.Lock()
	defer a.mu.Unlock()

	a.nextID++
	s := &session{
		id:         a.nextID,
		radio:      att.radio,
		att:        att,
		mode:       mode,
		pub:        pub.Clone(),
		sub:        sub.Clone(),
		box:        radio.NewEventQueue(),
		discovered: make(map[*session]radio.PeerHandle),
	}

	if att.closed || !att.radio.available {
		// Session could not start.
		s.closed = true
		s.box.Push(radio.Terminated{})
		s.box.Finish()
		return s.box.Events()
	}

	a.sessions = append(a.sessions, s)
	s.box.Push(radio.Started{Session: s})
	a.rematchLocked()
	logging.Debug("Simulated session opened",
		zap.String("radio", att.radio.name), zap.Stringer("mode", mode), zap.Uint64("session", s.id))
	return s.box.Events()
}

// Close detaches. Sessions still open on the attachment are closed without
// a Terminated event.
func (att *attachment) Close() error {
	a := att.radio.air
	a.mu.Lock()
	defer a.mu.Unlock()

	if att.closed {
		return nil
	}
	att.closed = true
	for _, s := range append([]*session(nil), a.sessions...) {
		if s.att == att && !s.closed {
			s.closeLocked()
		}
	}
	return nil
}
