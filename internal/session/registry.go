package session

import (
	"sort"
	"sync"

	"github.com/gangulaabhinav/ARWalking/internal/radio"
)

// AttachWaiter is a caller queued behind an in-flight attach. Exactly one of
// its functions is called when the attach settles.
type AttachWaiter struct {
	Ready  func(att radio.Attachment)
	Failed func()
}

// Registry owns every active discovery session, the configuration each
// session was started with and the shared radio attachment. All state lives
// behind one mutex so that "last session removed" and "detach" are observed
// together.
//
// The zero value is not usable; call New.
type Registry struct {
	mu sync.Mutex

	sessions map[radio.Mode]map[string]radio.DiscoverySession
	pubCfg   map[string]radio.PublishConfig
	subCfg   map[string]radio.SubscribeConfig

	attachment radio.Attachment
	detached   bool
	attaching  bool
	waiters    []AttachWaiter
}

// New returns an empty registry with no attachment.
func New() *Registry {
	return &Registry{
		sessions: map[radio.Mode]map[string]radio.DiscoverySession{
			radio.PublishMode:   {},
			radio.SubscribeMode: {},
		},
		pubCfg: make(map[string]radio.PublishConfig),
		subCfg: make(map[string]radio.SubscribeConfig),
	}
}

// Put stores sess under name. A publish session replaces any existing entry;
// a subscribe session is stored only if the name is free. Put reports
// whether sess was stored.
func (r *Registry) Put(mode radio.Mode, name string, sess radio.DiscoverySession) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	m := r.sessions[mode]
	if m == nil {
		return false
	}
	if mode == radio.SubscribeMode {
		if _, exists := m[name]; exists {
			return false
		}
	}
	m[name] = sess
	return true
}

// Get returns the session stored under name.
func (r *Registry) Get(mode radio.Mode, name string) (radio.DiscoverySession, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sess, ok := r.sessions[mode][name]
	return sess, ok
}

// PublishSession returns the publish session stored under name.
func (r *Registry) PublishSession(name string) (radio.PublishSession, bool) {
	sess, ok := r.Get(radio.PublishMode, name)
	if !ok {
		return nil, false
	}
	ps, ok := sess.(radio.PublishSession)
	return ps, ok
}

// SubscribeSession returns the subscribe session stored under name.
func (r *Registry) SubscribeSession(name string) (radio.SubscribeSession, bool) {
	sess, ok := r.Get(radio.SubscribeMode, name)
	if !ok {
		return nil, false
	}
	ss, ok := sess.(radio.SubscribeSession)
	return ss, ok
}

// Remove erases the session and configuration stored under name and reports
// whether a session was present. The attachment is left alone.
func (r *Registry) Remove(mode radio.Mode, name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.removeLocked(mode, name)
}

func (r *Registry) removeLocked(mode radio.Mode, name string) bool {
	m := r.sessions[mode]
	_, ok := m[name]
	delete(m, name)
	switch mode {
	case radio.PublishMode:
		delete(r.pubCfg, name)
	case radio.SubscribeMode:
		delete(r.subCfg, name)
	}
	return ok
}

// Names returns the sorted service names of one session kind. The slice is
// a copy.
func (r *Registry) Names(mode radio.Mode) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.sessions[mode]))
	for name := range r.sessions[mode] {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsEmpty reports whether no session of the given kind is active.
func (r *Registry) IsEmpty(mode radio.Mode) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions[mode]) == 0
}

// SetPublishConfig stores the configuration used to (re)build the publish
// session for name.
func (r *Registry) SetPublishConfig(name string, cfg radio.PublishConfig) {
	r.mu.Lock()
	r.pubCfg[name] = cfg.Clone()
	r.mu.Unlock()
}

// PublishConfig returns a copy of the stored publish configuration.
func (r *Registry) PublishConfig(name string) (radio.PublishConfig, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cfg, ok := r.pubCfg[name]
	return cfg.Clone(), ok
}

// SetSubscribeConfig stores the configuration used to (re)build the
// subscribe session for name.
func (r *Registry) SetSubscribeConfig(name string, cfg radio.SubscribeConfig) {
	r.mu.Lock()
	r.subCfg[name] = cfg.Clone()
	r.mu.Unlock()
}

// SubscribeConfig returns a copy of the stored subscribe configuration.
func (r *Registry) SubscribeConfig(name string) (radio.SubscribeConfig, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cfg, ok := r.subCfg[name]
	return cfg.Clone(), ok
}

// Attachment returns the live attachment, or nil when there is none or the
// last one was detached.
func (r *Registry) Attachment() radio.Attachment {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.liveLocked()
}

func (r *Registry) liveLocked() radio.Attachment {
	if r.attachment == nil || r.detached {
		return nil
	}
	return r.attachment
}

// Detached reports whether the last known attachment handle is stale.
func (r *Registry) Detached() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.detached
}

// Attaching reports whether an attach request is in flight.
func (r *Registry) Attaching() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.attaching
}

// AcquireAttachment returns the live attachment if there is one. Otherwise
// w is queued until the next CompleteAttach or FailAttach, and start is true
// for the first waiter only: that caller must issue the attach request.
func (r *Registry) AcquireAttachment(w AttachWaiter) (att radio.Attachment, start bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if live := r.liveLocked(); live != nil {
		return live, false
	}
	r.waiters = append(r.waiters, w)
	if r.attaching {
		return nil, false
	}
	r.attaching = true
	return nil, true
}

// CompleteAttach installs att as the live attachment and hands back every
// queued waiter.
func (r *Registry) CompleteAttach(att radio.Attachment) []AttachWaiter {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.attachment = att
	r.detached = false
	return r.drainLocked()
}

// FailAttach clears the in-flight attach and hands back every queued waiter.
func (r *Registry) FailAttach() []AttachWaiter {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.drainLocked()
}

func (r *Registry) drainLocked() []AttachWaiter {
	waiters := r.waiters
	r.waiters = nil
	r.attaching = false
	return waiters
}

// Release removes one session. When both kinds are empty afterwards the
// attachment is marked stale and returned as idle; the caller closes it
// outside the registry. ok reports whether a session was removed.
func (r *Registry) Release(mode radio.Mode, name string) (sess radio.DiscoverySession, idle radio.Attachment, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok = r.sessions[mode][name]
	r.removeLocked(mode, name)
	return sess, r.detachIfIdleLocked(), ok
}

// ReleaseAll removes every session of one kind and applies the same detach
// rule as Release.
func (r *Registry) ReleaseAll(mode radio.Mode) (released map[string]radio.DiscoverySession, idle radio.Attachment) {
	r.mu.Lock()
	defer r.mu.Unlock()

	released = make(map[string]radio.DiscoverySession, len(r.sessions[mode]))
	for name, sess := range r.sessions[mode] {
		released[name] = sess
		r.removeLocked(mode, name)
	}
	return released, r.detachIfIdleLocked()
}

// detachIfIdleLocked marks a live attachment stale once no session of
// either kind remains.
func (r *Registry) detachIfIdleLocked() radio.Attachment {
	for _, m := range r.sessions {
		if len(m) > 0 {
			return nil
		}
	}
	live := r.liveLocked()
	if live != nil {
		r.detached = true
	}
	return live
}
