package ranging

import "sync"

// WakeLock keeps the host awake while ranging is active.
type WakeLock interface {
	Acquire()
	Release()
	IsHeld() bool
}

// CountingWakeLock is an in-process WakeLock that records how often it was
// taken. Release on a lock that is not held does nothing.
type CountingWakeLock struct {
	mu       sync.Mutex
	held     bool
	acquired int
}

// Acquire implements WakeLock.
func (l *CountingWakeLock) Acquire() {
	l.mu.Lock()
	l.held = true
	l.acquired++
	l.mu.Unlock()
}

// Release implements WakeLock.
func (l *CountingWakeLock) Release() {
	l.mu.Lock()
	l.held = false
	l.mu.Unlock()
}

// IsHeld implements WakeLock.
func (l *CountingWakeLock) IsHeld() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.held
}

// Acquisitions returns how many times the lock has been acquired.
func (l *CountingWakeLock) Acquisitions() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.acquired
}
