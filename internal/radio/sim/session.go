package sim

import (
	"github.com/gangulaabhinav/ARWalking/internal/radio"
)

// session is a simulated publish or subscribe session. All fields except
// box are guarded by air.mu.
type session struct {
	id    uint64
	radio *Radio
	att   *attachment
	mode  radio.Mode
	pub   radio.PublishConfig
	sub   radio.SubscribeConfig
	box   *radio.EventQueue

	closed bool
	// discovered maps the publishers this subscriber has reported to the
	// handles it reported them under.
	discovered map[*session]radio.PeerHandle
}

var (
	_ radio.PublishSession   = (*session)(nil)
	_ radio.SubscribeSession = (*session)(nil)
)

func (s *session) SendMessage(peer radio.PeerHandle, id int, payload []byte) {
	a := s.radio.air
	a.mu.Lock()
	defer a.mu.Unlock()

	if s.closed {
		return
	}
	remote, ok := s.radio.byHandle[peer]
	if !ok || remote.closed || !a.inRangeLocked(s.radio, remote.radio) {
		s.box.Push(radio.SendResult{MessageID: id})
		return
	}

	from := remote.radio.handleForLocked(s)
	remote.box.Push(radio.MessageReceived{Peer: from, Payload: cloneBytes(payload)})
	s.box.Push(radio.SendResult{MessageID: id, Succeeded: true})
}

func (s *session) UpdatePublish(cfg radio.PublishConfig) {
	a := s.radio.air
	a.mu.Lock()
	defer a.mu.Unlock()

	if s.closed || s.mode != radio.PublishMode {
		return
	}
	s.pub = cfg.Clone()
	s.box.Push(radio.ConfigUpdated{})
	a.rematchLocked()
}

func (s *session) UpdateSubscribe(cfg radio.SubscribeConfig) {
	a := s.radio.air
	a.mu.Lock()
	defer a.mu.Unlock()

	if s.closed || s.mode != radio.SubscribeMode {
		return
	}
	s.sub = cfg.Clone()
	s.box.Push(radio.ConfigUpdated{})
	a.rematchLocked()
}

// Close ends the session without a Terminated event.
func (s *session) Close() error {
	a := s.radio.air
	a.mu.Lock()
	defer a.mu.Unlock()

	if !s.closed {
		s.closeLocked()
	}
	return nil
}

func (s *session) closeLocked() {
	s.closed = true
	s.box.Abandon()
	s.radio.air.removeLocked(s)
}

// terminateLocked ends the session from the radio side: queued events are
// delivered, followed by Terminated.
func (s *session) terminateLocked() {
	s.closed = true
	s.box.Push(radio.Terminated{})
	s.box.Finish()
	s.radio.air.removeLocked(s)
}

// rangeable reports whether the session answers ranging requests.
func (s *session) rangeable() bool {
	return !s.closed && s.mode == radio.PublishMode && s.pub.RangingEnabled
}
