package discovery

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/gangulaabhinav/ARWalking/internal/radio"
)

// fakeRadio is a controllable discovery radio. With autoAttach set, Attach
// completes synchronously; otherwise completions wait for completeAttach or
// failAttach.
type fakeRadio struct {
	mu          sync.Mutex
	available   bool
	autoAttach  bool
	attachCalls int
	pending     []func(radio.Attachment, error)
	attachments []*fakeAttachment
	states      chan struct{}
}

func newFakeRadio() *fakeRadio {
	return &fakeRadio{available: true, autoAttach: true, states: make(chan struct{}, 4)}
}

func (r *fakeRadio) IsAvailable() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.available
}

func (r *fakeRadio) StateChanges() <-chan struct{} { return r.states }

func (r *fakeRadio) Attach(done func(radio.Attachment, error)) {
	r.mu.Lock()
	r.attachCalls++
	if !r.autoAttach {
		r.pending = append(r.pending, done)
		r.mu.Unlock()
		return
	}
	att := r.newAttachmentLocked()
	r.mu.Unlock()
	done(att, nil)
}

func (r *fakeRadio) newAttachmentLocked() *fakeAttachment {
	att := &fakeAttachment{}
	r.attachments = append(r.attachments, att)
	return att
}

func (r *fakeRadio) completeAttach() *fakeAttachment {
	r.mu.Lock()
	att := r.newAttachmentLocked()
	pending := r.pending
	r.pending = nil
	r.mu.Unlock()
	for _, done := range pending {
		done(att, nil)
	}
	return att
}

func (r *fakeRadio) failAttach() {
	r.mu.Lock()
	pending := r.pending
	r.pending = nil
	r.mu.Unlock()
	for _, done := range pending {
		done(nil, errors.New("attach refused"))
	}
}

func (r *fakeRadio) setAvailable(v bool) {
	r.mu.Lock()
	r.available = v
	r.mu.Unlock()
	r.states <- struct{}{}
}

func (r *fakeRadio) attachCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.attachCalls
}

func (r *fakeRadio) attachment(i int) *fakeAttachment {
	r.mu.Lock()
	defer r.mu.Unlock()
	if i >= len(r.attachments) {
		return nil
	}
	return r.attachments[i]
}

type fakeAttachment struct {
	mu       sync.Mutex
	closed   bool
	sessions []*fakeSession
	// holdStarted leaves Started to the test, see start.
	holdStarted bool
}

func (a *fakeAttachment) Publish(cfg radio.PublishConfig) <-chan radio.Event {
	s := newFakeSession(radio.PublishMode, cfg.ServiceName)
	s.pubCfg = cfg
	return a.open(s)
}

func (a *fakeAttachment) Subscribe(cfg radio.SubscribeConfig) <-chan radio.Event {
	s := newFakeSession(radio.SubscribeMode, cfg.ServiceName)
	return a.open(s)
}

func (a *fakeAttachment) open(s *fakeSession) <-chan radio.Event {
	a.mu.Lock()
	a.sessions = append(a.sessions, s)
	hold := a.holdStarted
	a.mu.Unlock()
	if !hold {
		s.events <- radio.Started{Session: s}
	}
	return s.events
}

func (a *fakeAttachment) holdStarts() {
	a.mu.Lock()
	a.holdStarted = true
	a.mu.Unlock()
}

// start delivers the Started event of a session opened while starts were
// held.
func (s *fakeSession) start() {
	s.emit(radio.Started{Session: s})
}

func (a *fakeAttachment) Close() error {
	a.mu.Lock()
	a.closed = true
	a.mu.Unlock()
	return nil
}

func (a *fakeAttachment) isClosed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.closed
}

func (a *fakeAttachment) sessionCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.sessions)
}

func (a *fakeAttachment) session(i int) *fakeSession {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.sessions[i]
}

type sentMessage struct {
	peer    radio.PeerHandle
	id      int
	payload string
}

type fakeSession struct {
	mode    radio.Mode
	service string
	events  chan radio.Event

	mu      sync.Mutex
	closed  bool
	pubCfg  radio.PublishConfig
	updates []radio.PublishConfig
	sent    []sentMessage
}

func newFakeSession(mode radio.Mode, service string) *fakeSession {
	return &fakeSession{mode: mode, service: service, events: make(chan radio.Event, 32)}
}

func (s *fakeSession) SendMessage(peer radio.PeerHandle, id int, payload []byte) {
	s.mu.Lock()
	s.sent = append(s.sent, sentMessage{peer, id, string(payload)})
	s.mu.Unlock()
}

func (s *fakeSession) UpdatePublish(cfg radio.PublishConfig) {
	s.mu.Lock()
	s.updates = append(s.updates, cfg)
	s.mu.Unlock()
}

func (s *fakeSession) UpdateSubscribe(radio.SubscribeConfig) {}

func (s *fakeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.events)
	}
	return nil
}

func (s *fakeSession) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *fakeSession) emit(ev radio.Event) {
	s.events <- ev
}

// recorder implements every callback interface and records calls as
// space-separated strings.
type recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *recorder) add(format string, args ...any) {
	r.mu.Lock()
	r.calls = append(r.calls, fmt.Sprintf(format, args...))
	r.mu.Unlock()
}

func (r *recorder) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func (r *recorder) has(call string) bool {
	for _, c := range r.all() {
		if c == call {
			return true
		}
	}
	return false
}

func (r *recorder) count(prefix string) int {
	n := 0
	for _, c := range r.all() {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

func (r *recorder) OnInvalidService() { r.add("invalid") }
func (r *recorder) OnAttachedFailed() { r.add("attach_failed") }
func (r *recorder) OnNanAvailable()   { r.add("available") }
func (r *recorder) OnNanUnavailable() { r.add("unavailable") }
func (r *recorder) OnSessionTerminated(mode radio.Mode, service string) {
	r.add("terminated %s %s", mode, service)
}
func (r *recorder) OnMessageReceived(mode radio.Mode, service string, peer radio.PeerHandle, payload []byte) {
	r.add("received %s %s %d %s", mode, service, peer, payload)
}
func (r *recorder) OnMessageSendSucceeded(mode radio.Mode, service string, id int) {
	r.add("send_ok %s %s %d", mode, service, id)
}
func (r *recorder) OnMessageSendFailed(mode radio.Mode, service string, id int) {
	r.add("send_failed %s %s %d", mode, service, id)
}
func (r *recorder) OnPublishStarted(service string)  { r.add("publish_started %s", service) }
func (r *recorder) OnRangingEnabled(service string)  { r.add("ranging_enabled %s", service) }
func (r *recorder) OnRangingDisabled(service string) { r.add("ranging_disabled %s", service) }
func (r *recorder) OnSubscribeStarted(service string) {
	r.add("subscribe_started %s", service)
}
func (r *recorder) OnServiceDiscovered(service string, peer radio.PeerHandle, ssi []byte, filter [][]byte) {
	r.add("discovered %s %d %s %d", service, peer, ssi, len(filter))
}
func (r *recorder) OnServiceLost(service string, peer radio.PeerHandle) {
	r.add("lost %s %d", service, peer)
}
func (r *recorder) OnConfigUpdated(mode radio.Mode, service string) {
	r.add("config_updated %s %s", mode, service)
}
