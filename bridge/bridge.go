// Package bridge moves raw messages between the controller and the
// decision engine: commands in, heartbeats out. The control loop never
// blocks on the transport; commands are pulled non-blocking and heartbeat
// sends may fail without consequence beyond a counter.
package bridge

import (
	"errors"
	"sync"
)

// ErrNotConnected is returned by Send while the transport is dialing.
var ErrNotConnected = errors.New("bridge: not connected")

// Source delivers inbound command payloads at most once each.
type Source interface {
	// TryRecv returns the next raw message, or ok=false when none is
	// queued. It never blocks.
	TryRecv() (msg []byte, ok bool)
	Close() error
}

// Sink accepts outbound heartbeat payloads.
type Sink interface {
	Send(msg []byte) error
	Close() error
}

// Queue is an in-memory Source and Sink used by sim runs and tests.
// A full queue drops the oldest message first.
type Queue struct {
	mu   sync.Mutex
	msgs [][]byte
	cap  int

	sent [][]byte
}

func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 1024
	}
	return &Queue{cap: capacity}
}

// Push enqueues an inbound message for the controller to drain.
func (q *Queue) Push(msg []byte) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.msgs) >= q.cap {
		q.msgs = q.msgs[1:]
	}
	q.msgs = append(q.msgs, msg)
}

func (q *Queue) TryRecv() ([]byte, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.msgs) == 0 {
		return nil, false
	}
	msg := q.msgs[0]
	q.msgs = q.msgs[1:]
	return msg, true
}

func (q *Queue) Send(msg []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.sent = append(q.sent, msg)
	return nil
}

// Sent returns a copy of everything pushed through Send.
func (q *Queue) Sent() [][]byte {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([][]byte, len(q.sent))
	copy(out, q.sent)
	return out
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.msgs)
}

func (q *Queue) Close() error { return nil }
