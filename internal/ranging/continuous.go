package ranging

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/gangulaabhinav/ARWalking/internal/logging"
	"github.com/gangulaabhinav/ARWalking/internal/radio"
)

// DefaultPeriod is the ranging period used when none is configured.
const DefaultPeriod = 200 * time.Millisecond

// ContinuousCallback supplies the peers to range and receives the outcome
// of every request.
type ContinuousCallback interface {
	// PeerHandles returns the peers to range in the next iteration. It is
	// called once per iteration and must return promptly.
	PeerHandles() []radio.PeerHandle
	OnRangingResults(results []radio.RangingResult)
	OnRangingFailure(code int)
}

// ContinuousRanger ranges a changing set of peers once per period until
// stopped.
//
// Each iteration fetches the peers, issues one request for exactly that set
// and, when the radio answers, arms a timer for the next iteration if the
// ranger is still active. An empty peer set skips the request and waits a
// full period. A stop during an in-flight request still delivers that
// request's outcome but schedules nothing after it.
type ContinuousRanger struct {
	ranger   radio.Ranger
	clock    clockwork.Clock
	wakeLock WakeLock

	mu       sync.Mutex
	period   time.Duration
	active   bool
	callback ContinuousCallback
	timer    clockwork.Timer
	// generation changes on every Start and Stop. Radio answers carry the
	// generation they were issued under and cannot re-arm a later run.
	generation uint64
}

// Option configures a ContinuousRanger.
type Option func(*ContinuousRanger)

// WithClock sets the clock used to schedule iterations.
func WithClock(clock clockwork.Clock) Option {
	return func(c *ContinuousRanger) {
		c.clock = clock
	}
}

// WithWakeLock sets the lock held while the ranger is active.
func WithWakeLock(lock WakeLock) Option {
	return func(c *ContinuousRanger) {
		c.wakeLock = lock
	}
}

// NewContinuousRanger returns a stopped ranger. A non-positive period is
// replaced by DefaultPeriod.
func NewContinuousRanger(r radio.Ranger, period time.Duration, opts ...Option) *ContinuousRanger {
	if period <= 0 {
		period = DefaultPeriod
	}
	c := &ContinuousRanger{
		ranger: r,
		period: period,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.clock == nil {
		c.clock = clockwork.NewRealClock()
	}
	if c.wakeLock == nil {
		c.wakeLock = &CountingWakeLock{}
	}
	return c
}

// Start acquires the wake lock and runs the first iteration on the calling
// goroutine. Calling Start on an active ranger does nothing.
func (c *ContinuousRanger) Start(cb ContinuousCallback) {
	c.mu.Lock()
	if c.active {
		c.mu.Unlock()
		return
	}
	c.wakeLock.Acquire()
	c.active = true
	c.callback = cb
	c.generation++
	gen := c.generation
	c.mu.Unlock()

	logging.Info("Continuous ranging started", zap.Duration("period", c.Period()))
	c.iterate(gen)
}

// SetPeriod changes the wait before the next iteration. A wait already in
// progress is not shortened or extended.
func (c *ContinuousRanger) SetPeriod(period time.Duration) {
	if period <= 0 {
		return
	}
	c.mu.Lock()
	c.period = period
	c.mu.Unlock()
}

// Period returns the current ranging period.
func (c *ContinuousRanger) Period() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.period
}

// IsActive reports whether the ranger is between Start and Stop.
func (c *ContinuousRanger) IsActive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// Stop cancels the pending iteration and releases the wake lock. It is safe
// to call more than once.
func (c *ContinuousRanger) Stop() {
	c.mu.Lock()
	wasActive := c.active
	c.active = false
	c.callback = nil
	c.generation++
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.mu.Unlock()

	if c.wakeLock.IsHeld() {
		c.wakeLock.Release()
	}
	if wasActive {
		logging.Info("Continuous ranging stopped")
	}
}

func (c *ContinuousRanger) iterate(gen uint64) {
	c.mu.Lock()
	if !c.active || gen != c.generation {
		c.mu.Unlock()
		return
	}
	c.timer = nil
	cb := c.callback
	c.mu.Unlock()

	peers := cb.PeerHandles()
	if len(peers) == 0 {
		rangingRequests.WithLabelValues("skipped").Inc()
		c.rearm(gen)
		return
	}

	req := radio.RangingRequest{Peers: append([]radio.PeerHandle(nil), peers...)}
	rangingRequests.WithLabelValues("issued").Inc()
	logging.Debug("Ranging request", zap.Int("peers", len(req.Peers)))

	c.ranger.StartRanging(req, radio.RangingFuncs{
		Results: func(results []radio.RangingResult) {
			if len(results) > 0 {
				rangingOutcomes.WithLabelValues("results").Inc()
				logging.Debug("Ranging results", zap.Int("count", len(results)), zap.Int("first_status", results[0].Status))
				cb.OnRangingResults(results)
			} else {
				rangingOutcomes.WithLabelValues("empty").Inc()
				logging.Warn("Ranging returned no results")
			}
			c.rearm(gen)
		},
		Failure: func(code int) {
			rangingOutcomes.WithLabelValues("failure").Inc()
			logging.Warn("Ranging failed", zap.Int("code", code))
			cb.OnRangingFailure(code)
			c.rearm(gen)
		},
	})
}

// rearm schedules the next iteration after the current period, unless the
// run that issued gen has been stopped.
func (c *ContinuousRanger) rearm(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.active || gen != c.generation {
		return
	}
	c.timer = c.clock.AfterFunc(c.period, func() { c.iterate(gen) })
}

// armed reports whether an iteration is scheduled.
func (c *ContinuousRanger) armed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.timer != nil
}
