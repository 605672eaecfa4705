package spt

import (
	"sync/atomic"
	"time"
)

// sendRetryDelay is the pause between dispatch passes when a message
// could not be sent on any path (spec.md §4.7).
const sendRetryDelay = 500 * time.Millisecond

// dispatcher is the send worker: created on the first SendMsg call while
// idle, it drains the queue and self-terminates once empty.
type dispatcher struct {
	spt     *SPT
	running int32
	done    chan struct{}
}

func (s *SPT) ensureDispatcherRunning() {
	s.dispatchMu.Lock()
	defer s.dispatchMu.Unlock()
	if s.dispatcher != nil && s.dispatcher.isRunning() {
		return
	}
	d := &dispatcher{spt: s, done: make(chan struct{})}
	s.dispatcher = d
	atomic.StoreInt32(&d.running, 1)
	go d.run()
}

func (d *dispatcher) isRunning() bool { return atomic.LoadInt32(&d.running) == 1 }

func (d *dispatcher) run() {
	defer close(d.done)
	defer atomic.StoreInt32(&d.running, 0)
	for d.spt.queue.len() > 0 {
		if d.spt.dispatchOne() {
			continue
		}
		time.Sleep(sendRetryDelay)
	}
}

// dispatchOne pops the head message and attempts delivery: Phase A tries
// only known-good paths in lattice order, Phase B probes every non-nil
// path regardless of ok status. A failed attempt reinserts the message
// at the queue head (spec.md §4.7).
func (s *SPT) dispatchOne() bool {
	msg, ok := s.queue.popFront()
	if !ok {
		return true
	}

	if s.trySend(msg, true) {
		s.recordSent()
		return true
	}
	if s.trySend(msg, false) {
		s.recordSent()
		return true
	}

	s.queue.pushFront(msg)
	if s.metrics != nil {
		s.metrics.QueueDepth(s.queue.len())
	}
	return false
}

// trySend scans the lattice in main/primary, main/secondary, back-up/primary,
// back-up/secondary order. When onlyKnownGood is true (Phase A) it skips
// any path whose ok status is not currently true; otherwise (Phase B) it
// attempts every configured path and marks it ok on success.
func (s *SPT) trySend(msg queued, onlyKnownGood bool) bool {
	for _, bs := range latticeOrder {
		branch, slot := Branch(bs[0]), Slot(bs[1])
		p := s.pathAt(branch, slot)
		if p == nil {
			continue
		}
		if onlyKnownGood && !p.OK() {
			continue
		}
		if s.transferMsg(msg.msgNr, msg.typ, msg.payload, p) {
			if !onlyKnownGood {
				if changed := p.setOK(true); changed && s.metrics != nil {
					s.metrics.PathOK(branch, slot, true)
				}
			}
			return true
		}
	}
	return false
}

func (s *SPT) recordSent() {
	if s.metrics != nil {
		s.metrics.MessageSent()
		s.metrics.QueueDepth(s.queue.len())
	}
}
