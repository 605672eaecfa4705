package spt

import (
	"sync"

	"github.com/vanovost/dc09spt/dc09"
)

// queued is one message record: a monotonically-numbered, typed payload
// awaiting transmission (spec.md §3 "Message record").
type queued struct {
	msgNr   uint16
	typ     dc09.Type
	payload string
}

// queue is the at-least-once send FIFO. Failed sends reinsert at the
// head to preserve order (spec.md §3 invariants, §5 ordering).
type queue struct {
	mu    sync.Mutex
	items []queued
}

func (q *queue) pushBack(m queued) {
	q.mu.Lock()
	q.items = append(q.items, m)
	q.mu.Unlock()
}

func (q *queue) pushFront(m queued) {
	q.mu.Lock()
	q.items = append([]queued{m}, q.items...)
	q.mu.Unlock()
}

func (q *queue) popFront() (queued, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return queued{}, false
	}
	m := q.items[0]
	q.items = q.items[1:]
	return m, true
}

func (q *queue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
