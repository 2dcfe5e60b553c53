package radio

import "sync"

// EventQueue is an unbounded, ordered event queue feeding one session
// channel. Push never blocks, so radios can deliver while holding their own
// locks.
type EventQueue struct {
	out    chan Event
	signal chan struct{}
	done   chan struct{}

	mu        sync.Mutex
	queue     []Event
	finishing bool
	stopped   bool
}

// NewEventQueue starts a queue. Events pushed to it come out of Events in
// order.
func NewEventQueue() *EventQueue {
	q := &EventQueue{
		out:    make(chan Event),
		signal: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	go q.run()
	return q
}

// Events is the session channel. It is closed after Finish has drained the
// queue or after Abandon.
func (q *EventQueue) Events() <-chan Event { return q.out }

// Push appends ev. It is a no-op once the queue is finishing or abandoned.
func (q *EventQueue) Push(ev Event) {
	q.mu.Lock()
	if q.finishing || q.stopped {
		q.mu.Unlock()
		return
	}
	q.queue = append(q.queue, ev)
	q.mu.Unlock()
	q.wake()
}

// Finish delivers what is queued, then closes the channel.
func (q *EventQueue) Finish() {
	q.mu.Lock()
	q.finishing = true
	q.mu.Unlock()
	q.wake()
}

// Abandon drops what is queued and closes the channel.
func (q *EventQueue) Abandon() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.stopped {
		q.stopped = true
		q.queue = nil
		close(q.done)
	}
}

func (q *EventQueue) wake() {
	select {
	case q.signal <- struct{}{}:
	default:
	}
}

func (q *EventQueue) run() {
	defer close(q.out)
	for {
		q.mu.Lock()
		if len(q.queue) == 0 {
			finishing := q.finishing
			q.mu.Unlock()
			if finishing {
				return
			}
			select {
			case <-q.signal:
				continue
			case <-q.done:
				return
			}
		}
		ev := q.queue[0]
		q.queue = q.queue[1:]
		q.mu.Unlock()

		select {
		case q.out <- ev:
		case <-q.done:
			return
		}
	}
}
