package discovery

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/gangulaabhinav/ARWalking/internal/logging"
	"github.com/gangulaabhinav/ARWalking/internal/radio"
	"github.com/gangulaabhinav/ARWalking/internal/session"
)

// ErrNoSuchService is returned by operations that need a live publish
// session when none is registered under the given name.
var ErrNoSuchService = errors.New("no such service")

const defaultInboxSize = 64

// Client drives publish and subscribe sessions on a discovery radio.
//
// Attach completions, session events and availability changes are all
// reduced on a single goroutine owned by the Client, so callbacks for one
// session are never invoked concurrently and arrive in radio order.
type Client struct {
	radio    radio.Radio
	callback Callback
	registry *session.Registry

	inbox chan func()
	quit  chan struct{}
	once  sync.Once
	wg    sync.WaitGroup
}

// Option configures a Client.
type Option func(*Client)

// WithRegistry makes the Client use reg instead of a fresh registry.
func WithRegistry(reg *session.Registry) Option {
	return func(c *Client) {
		c.registry = reg
	}
}

// WithInboxSize sets the buffer of the event goroutine's queue.
func WithInboxSize(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.inbox = make(chan func(), n)
		}
	}
}

// NewClient returns a Client bound to r. cb receives process-level
// notifications: availability changes and the terminations caused by
// CloseAllSessions.
func NewClient(r radio.Radio, cb Callback, opts ...Option) *Client {
	c := &Client{
		radio:    r,
		callback: cb,
		registry: session.New(),
		inbox:    make(chan func(), defaultInboxSize),
		quit:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.callback == nil {
		c.callback = BaseCallback{}
	}

	c.wg.Add(2)
	go c.run()
	go c.watchAvailability()
	return c
}

// IsValidServiceName reports whether name is accepted by Publish and
// Subscribe.
func IsValidServiceName(name string) bool {
	return radio.ValidServiceName(name)
}

// Publish starts publishing service. When cfg is nil a configuration with
// ranging disabled is used. An invalid name is reported through
// cb.OnInvalidService before anything is stored.
func (c *Client) Publish(service string, cb PublishCallback, cfg *radio.PublishConfig) {
	if !IsValidServiceName(service) {
		logging.Warn("Rejected invalid service name", zap.String("service", service))
		cb.OnInvalidService()
		return
	}

	stored := radio.PublishConfig{ServiceName: service}
	if cfg != nil {
		stored = *cfg
	}
	c.registry.SetPublishConfig(service, stored)
	c.attach(radio.PublishMode, service, cb)
}

// Subscribe starts subscribing to service. When cfg is nil a configuration
// without match filter is used.
func (c *Client) Subscribe(service string, cb SubscribeCallback, cfg *radio.SubscribeConfig) {
	if !IsValidServiceName(service) {
		logging.Warn("Rejected invalid service name", zap.String("service", service))
		cb.OnInvalidService()
		return
	}

	// A live subscription keeps the configuration it was built from; the
	// duplicate session is closed when it starts.
	if _, live := c.registry.SubscribeSession(service); !live {
		stored := radio.SubscribeConfig{ServiceName: service}
		if cfg != nil {
			stored = *cfg
		}
		c.registry.SetSubscribeConfig(service, stored)
	}
	c.attach(radio.SubscribeMode, service, cb)
}

// attach builds the session on the live attachment or queues it behind the
// attach in flight, issuing one if none is.
func (c *Client) attach(mode radio.Mode, service string, cb Callback) {
	if !c.radio.IsAvailable() {
		logging.Debug("Radio unavailable", zap.Stringer("mode", mode), zap.String("service", service))
		cb.OnNanUnavailable()
		return
	}

	waiter := session.AttachWaiter{
		Ready:  func(att radio.Attachment) { c.build(att, mode, service, cb) },
		Failed: cb.OnAttachedFailed,
	}
	att, start := c.registry.AcquireAttachment(waiter)
	if att != nil {
		c.build(att, mode, service, cb)
		return
	}
	if !start {
		logging.Debug("Queued behind attach in flight", zap.Stringer("mode", mode), zap.String("service", service))
		return
	}

	logging.Debug("Attaching to radio")
	c.radio.Attach(func(att radio.Attachment, err error) {
		// The radio may call back synchronously from the event goroutine.
		go func() {
			if !c.post(func() { c.attachDone(att, err) }) && att != nil {
				_ = att.Close()
			}
		}()
	})
}

func (c *Client) attachDone(att radio.Attachment, err error) {
	if err == nil && att == nil {
		err = errors.New("radio returned no attachment")
	}
	if err != nil {
		waiters := c.registry.FailAttach()
		attachResults.WithLabelValues("failed").Inc()
		logging.Error("Attach failed", zap.Error(err), zap.Int("waiters", len(waiters)))
		for _, w := range waiters {
			w.Failed()
		}
		return
	}

	waiters := c.registry.CompleteAttach(att)
	attachResults.WithLabelValues("succeeded").Inc()
	logging.Info("Attached to radio", zap.Int("waiters", len(waiters)))
	for _, w := range waiters {
		w.Ready(att)
	}
}

// build opens the session with the stored configuration and starts
// forwarding its events.
func (c *Client) build(att radio.Attachment, mode radio.Mode, service string, cb Callback) {
	var events <-chan radio.Event
	switch mode {
	case radio.PublishMode:
		cfg, ok := c.registry.PublishConfig(service)
		if !ok {
			cfg = radio.PublishConfig{ServiceName: service}
		}
		events = att.Publish(cfg)
	case radio.SubscribeMode:
		cfg, ok := c.registry.SubscribeConfig(service)
		if !ok {
			cfg = radio.SubscribeConfig{ServiceName: service}
		}
		events = att.Subscribe(cfg)
	default:
		return
	}
	logging.LogSessionEvent(mode.String(), service, "requested")

	st := &stream{mode: mode, service: service, callback: cb, att: att}
	c.wg.Add(1)
	go c.forward(st, events)
}

// SendMessage sends payload to peer over the named session. It reports
// false, and does nothing, when no such session is active. The outcome is
// delivered later as OnMessageSendSucceeded or OnMessageSendFailed with
// messageID.
func (c *Client) SendMessage(mode radio.Mode, service string, peer radio.PeerHandle, messageID int, payload []byte) bool {
	sess, ok := c.registry.Get(mode, service)
	if !ok {
		logging.Debug("Send dropped, no session", zap.Stringer("mode", mode), zap.String("service", service))
		return false
	}
	logging.LogRawBytes("Sending message", payload)
	sess.SendMessage(peer, messageID, payload)
	return true
}

// EnableRanging turns ranging on for a published service and reports it
// through cb.OnRangingEnabled. Without a live publish session it returns
// ErrNoSuchService and calls nothing.
func (c *Client) EnableRanging(service string, cb PublishCallback) error {
	if err := c.setRanging(service, true); err != nil {
		return err
	}
	cb.OnRangingEnabled(service)
	return nil
}

// DisableRanging is the counterpart of EnableRanging.
func (c *Client) DisableRanging(service string, cb PublishCallback) error {
	if err := c.setRanging(service, false); err != nil {
		return err
	}
	cb.OnRangingDisabled(service)
	return nil
}

func (c *Client) setRanging(service string, enabled bool) error {
	sess, ok := c.registry.PublishSession(service)
	if !ok {
		return fmt.Errorf("set ranging for %q: %w", service, ErrNoSuchService)
	}
	cfg, ok := c.registry.PublishConfig(service)
	if !ok {
		cfg = radio.PublishConfig{ServiceName: service}
	}
	cfg.RangingEnabled = enabled
	c.registry.SetPublishConfig(service, cfg)
	sess.UpdatePublish(cfg)
	logging.LogSessionEvent(radio.PublishMode.String(), service, "ranging_updated", zap.Bool("enabled", enabled))
	return nil
}

// UpdatePublishConfig replaces the configuration of a live publish session.
func (c *Client) UpdatePublishConfig(service string, cfg radio.PublishConfig) error {
	sess, ok := c.registry.PublishSession(service)
	if !ok {
		return fmt.Errorf("update publish config for %q: %w", service, ErrNoSuchService)
	}
	c.registry.SetPublishConfig(service, cfg)
	sess.UpdatePublish(cfg.Clone())
	return nil
}

// UpdateSubscribeConfig replaces the configuration of a live subscribe
// session.
func (c *Client) UpdateSubscribeConfig(service string, cfg radio.SubscribeConfig) error {
	sess, ok := c.registry.SubscribeSession(service)
	if !ok {
		return fmt.Errorf("update subscribe config for %q: %w", service, ErrNoSuchService)
	}
	c.registry.SetSubscribeConfig(service, cfg)
	sess.UpdateSubscribe(cfg.Clone())
	return nil
}

// StopSession closes the named session, if any, and reports it through
// cb.OnSessionTerminated. The attachment is detached once no session of
// either kind remains; the next Publish or Subscribe attaches again.
func (c *Client) StopSession(mode radio.Mode, service string, cb Callback) error {
	sess, idle, ok := c.registry.Release(mode, service)

	var err error
	if ok {
		err = multierr.Append(err, closeSession(sess, mode, service))
		sessionsTerminated.WithLabelValues(mode.String(), "stopped").Inc()
		activeSessions.WithLabelValues(mode.String()).Dec()
		logging.LogSessionEvent(mode.String(), service, "stopped")
		cb.OnSessionTerminated(mode, service)
	}
	return multierr.Append(err, detach(idle))
}

// CloseAllDiscoverySessions closes every session of one kind, reporting
// each through the Client's process-level callback.
func (c *Client) CloseAllDiscoverySessions(mode radio.Mode) error {
	released, idle := c.registry.ReleaseAll(mode)

	var err error
	for _, service := range sortedNames(released) {
		err = multierr.Append(err, closeSession(released[service], mode, service))
		sessionsTerminated.WithLabelValues(mode.String(), "stopped").Inc()
		activeSessions.WithLabelValues(mode.String()).Dec()
		logging.LogSessionEvent(mode.String(), service, "closed")
		c.callback.OnSessionTerminated(mode, service)
	}
	return multierr.Append(err, detach(idle))
}

// CloseAllSessions closes every publish and subscribe session.
func (c *Client) CloseAllSessions() error {
	return multierr.Combine(
		c.CloseAllDiscoverySessions(radio.PublishMode),
		c.CloseAllDiscoverySessions(radio.SubscribeMode),
	)
}

// PublishedServices returns the names of the active publish sessions.
func (c *Client) PublishedServices() []string {
	return c.registry.Names(radio.PublishMode)
}

// SubscribedServices returns the names of the active subscribe sessions.
func (c *Client) SubscribedServices() []string {
	return c.registry.Names(radio.SubscribeMode)
}

// AttachmentDetached reports whether the last attachment has been detached.
func (c *Client) AttachmentDetached() bool {
	return c.registry.Detached()
}

// Close closes every session and stops the event goroutine. Callbacks are
// not invoked after Close returns.
func (c *Client) Close() error {
	err := c.CloseAllSessions()
	c.once.Do(func() { close(c.quit) })
	c.wg.Wait()
	return err
}

func closeSession(sess radio.DiscoverySession, mode radio.Mode, service string) error {
	if err := sess.Close(); err != nil {
		return fmt.Errorf("close %s session %q: %w", mode, service, err)
	}
	return nil
}

func detach(att radio.Attachment) error {
	if att == nil {
		return nil
	}
	logging.Info("Detaching from radio, no sessions left")
	if err := att.Close(); err != nil {
		return fmt.Errorf("detach: %w", err)
	}
	return nil
}
