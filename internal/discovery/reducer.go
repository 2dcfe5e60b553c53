package discovery

import (
	"sort"

	"go.uber.org/zap"

	"github.com/gangulaabhinav/ARWalking/internal/logging"
	"github.com/gangulaabhinav/ARWalking/internal/radio"
)

// stream is the reducer's view of one session's event channel. It is only
// touched on the event goroutine.
type stream struct {
	mode     radio.Mode
	service  string
	callback Callback
	// att is the attachment the session was opened on.
	att radio.Attachment
	// session is set by Started. Events of a stream whose session is no
	// longer the registered one are dropped.
	session radio.DiscoverySession
	// ended is set once OnSessionTerminated was reported for a session
	// that never registered.
	ended bool
}

func (c *Client) run() {
	defer c.wg.Done()
	for {
		select {
		case fn := <-c.inbox:
			fn()
		case <-c.quit:
			return
		}
	}
}

// post hands fn to the event goroutine. It reports false once the Client is
// closed.
func (c *Client) post(fn func()) bool {
	select {
	case c.inbox <- fn:
		return true
	case <-c.quit:
		return false
	}
}

func (c *Client) watchAvailability() {
	defer c.wg.Done()
	changes := c.radio.StateChanges()
	for {
		select {
		case _, ok := <-changes:
			if !ok {
				return
			}
			if !c.post(c.availabilityChanged) {
				return
			}
		case <-c.quit:
			return
		}
	}
}

func (c *Client) availabilityChanged() {
	if c.radio.IsAvailable() {
		logging.Info("Radio available")
		c.callback.OnNanAvailable()
		return
	}
	logging.Warn("Radio unavailable, closing all sessions")
	if err := c.CloseAllSessions(); err != nil {
		logging.Warn("Error closing sessions", zap.Error(err))
	}
	c.callback.OnNanUnavailable()
}

// forward copies one session's events into the event goroutine, preserving
// their order.
func (c *Client) forward(st *stream, events <-chan radio.Event) {
	defer c.wg.Done()
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			if !c.post(func() { c.reduce(st, ev) }) {
				return
			}
		case <-c.quit:
			return
		}
	}
}

func (c *Client) reduce(st *stream, ev radio.Event) {
	mode, service := st.mode.String(), st.service
	logging.LogSessionEvent(mode, service, radio.EventName(ev))

	if started, ok := ev.(radio.Started); ok {
		c.started(st, started.Session)
		return
	}
	if _, ok := ev.(radio.Terminated); ok {
		c.terminated(st)
		return
	}
	if !c.current(st) {
		logging.Debug("Dropped event of a replaced session",
			zap.String("mode", mode), zap.String("service", service), zap.String("event", radio.EventName(ev)))
		return
	}

	switch e := ev.(type) {
	case radio.PeerDiscovered:
		if cb, ok := st.callback.(SubscribeCallback); ok {
			cb.OnServiceDiscovered(st.service, e.Peer, e.ServiceSpecificInfo, e.MatchFilter)
		}
	case radio.PeerLost:
		if h, ok := st.callback.(ServiceLostHandler); ok {
			h.OnServiceLost(st.service, e.Peer)
		}
	case radio.MessageReceived:
		messagesReceived.WithLabelValues(mode).Inc()
		logging.LogRawBytes("Received message", e.Payload)
		st.callback.OnMessageReceived(st.mode, st.service, e.Peer, e.Payload)
	case radio.SendResult:
		if e.Succeeded {
			messagesSent.WithLabelValues(mode, "succeeded").Inc()
			st.callback.OnMessageSendSucceeded(st.mode, st.service, e.MessageID)
		} else {
			messagesSent.WithLabelValues(mode, "failed").Inc()
			st.callback.OnMessageSendFailed(st.mode, st.service, e.MessageID)
		}
	case radio.ConfigUpdated:
		if h, ok := st.callback.(ConfigUpdatedHandler); ok {
			h.OnConfigUpdated(st.mode, st.service)
		}
	}
}

func (c *Client) started(st *stream, sess radio.DiscoverySession) {
	if sess == nil {
		logging.Error("Radio started a session without a handle",
			zap.Stringer("mode", st.mode), zap.String("service", st.service))
		return
	}
	if st.session != nil {
		logging.Debug("Duplicate started event ignored", zap.String("service", st.service))
		return
	}
	if st.ended {
		return
	}
	if live := c.registry.Attachment(); live == nil || live != st.att {
		// The attachment was detached while Started was queued; the
		// session must not outlive it.
		logging.Debug("Session started on a detached attachment",
			zap.Stringer("mode", st.mode), zap.String("service", st.service))
		_ = sess.Close()
		c.abandon(st, "detached")
		return
	}

	var replaced radio.DiscoverySession
	if st.mode == radio.PublishMode {
		if prev, ok := c.registry.Get(st.mode, st.service); ok && prev != sess {
			replaced = prev
		}
	}

	if !c.registry.Put(st.mode, st.service, sess) {
		// Subscribing to a name that is already active is a no-op.
		logging.Debug("Duplicate subscribe session closed", zap.String("service", st.service))
		_ = sess.Close()
		return
	}
	st.session = sess
	sessionsStarted.WithLabelValues(st.mode.String()).Inc()

	if replaced != nil {
		logging.Debug("Publish session replaced", zap.String("service", st.service))
		_ = replaced.Close()
	} else {
		activeSessions.WithLabelValues(st.mode.String()).Inc()
	}

	switch st.mode {
	case radio.PublishMode:
		if cb, ok := st.callback.(PublishCallback); ok {
			cb.OnPublishStarted(st.service)
		}
	case radio.SubscribeMode:
		if cb, ok := st.callback.(SubscribeCallback); ok {
			cb.OnSubscribeStarted(st.service)
		}
	}
}

// abandon reports the end of a stream whose session never registered,
// dropping the stored configuration unless another session owns the name.
func (c *Client) abandon(st *stream, reason string) {
	st.ended = true
	if _, ok := c.registry.Get(st.mode, st.service); !ok {
		c.registry.Remove(st.mode, st.service)
	}
	sessionsTerminated.WithLabelValues(st.mode.String(), reason).Inc()
	st.callback.OnSessionTerminated(st.mode, st.service)
}

func (c *Client) terminated(st *stream) {
	switch {
	case st.ended:
		return
	case st.session == nil:
		c.abandon(st, "radio")
		return
	case c.current(st):
		c.registry.Remove(st.mode, st.service)
		activeSessions.WithLabelValues(st.mode.String()).Dec()
	default:
		return
	}
	sessionsTerminated.WithLabelValues(st.mode.String(), "radio").Inc()
	st.callback.OnSessionTerminated(st.mode, st.service)
}

func (c *Client) current(st *stream) bool {
	if st.session == nil {
		return false
	}
	sess, ok := c.registry.Get(st.mode, st.service)
	return ok && sess == st.session
}

func sortedNames(m map[string]radio.DiscoverySession) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
