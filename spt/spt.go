// Package spt implements the SPT (Secured Premises Transceiver) core:
// the path lattice, message queue and counters, the send dispatcher and
// the poll/routine scheduler described in spec.md §4.5–§4.7.
package spt

import (
	"sync"

	"github.com/vanovost/dc09spt/clog"
	"github.com/vanovost/dc09spt/metrics"
)

// Callback receives poll-state-change-driven message emissions
// synchronously, mirroring the original msg_callback(type, params) hook.
type Callback func(mtype string, params EventParams)

// SPT holds the complete client-side state of a DC-09 transceiver:
// the four-slot path lattice, the at-least-once send queue, the message
// and send counters, and handles to the background dispatcher and
// scheduler workers. Construct with New.
type SPT struct {
	log     clog.Clog
	metrics *metrics.Collector

	// identity defaults, back-filled by the first SetPath call that
	// supplies them when the SPT itself was constructed without them.
	identityMu sync.Mutex
	account    string
	receiver   *int
	line       *int

	pathsMu sync.RWMutex
	paths   [2][2]*Path // [Branch][Slot]

	counterMu sync.Mutex
	msgNr     uint16
	sentCount uint64

	queue queue

	dispatchMu sync.Mutex
	dispatcher *dispatcher

	scheduleMu sync.Mutex
	scheduler  *scheduler

	callbackMu sync.Mutex
	callback   Callback
}

// New constructs an SPT for the given account. receiver and line are
// optional small integers carried in every block header unless a path
// overrides them.
func New(account string, receiver, line *int, log clog.Clog) *SPT {
	return &SPT{
		log:      log,
		account:  account,
		receiver: receiver,
		line:     line,
	}
}

// SetMetrics attaches a Prometheus collector; nil disables metrics.
func (s *SPT) SetMetrics(m *metrics.Collector) { s.metrics = m }

// SetCallback installs the function invoked synchronously whenever the
// poll scheduler emits a state-change message (spec.md §4.5 set_callback).
func (s *SPT) SetCallback(cb Callback) {
	s.callbackMu.Lock()
	s.callback = cb
	s.callbackMu.Unlock()
}

func (s *SPT) getCallback() Callback {
	s.callbackMu.Lock()
	defer s.callbackMu.Unlock()
	return s.callback
}

// SetPath replaces the lattice cell at (branch, slot), resetting its ok
// status to unknown. A path-level account/receiver/line override backs
// the SPT-level default when the SPT was constructed without one — and
// conversely the first path to supply a value seeds the SPT-level
// default for subsequent paths that omit it (spec.md §9 supplement #1).
func (s *SPT) SetPath(branch Branch, slot Slot, p *Path) {
	s.identityMu.Lock()
	if p.Account == "" {
		p.Account = s.account
	} else if s.account == "" {
		s.account = p.Account
	}
	if p.Receiver == nil {
		p.Receiver = s.receiver
	} else if s.receiver == nil {
		s.receiver = p.Receiver
	}
	if p.Line == nil {
		p.Line = s.line
	} else if s.line == nil {
		s.line = p.Line
	}
	s.identityMu.Unlock()

	p.setOK(false)

	s.pathsMu.Lock()
	s.paths[branch][slot] = p
	s.pathsMu.Unlock()
}

// DelPath removes the lattice cell at (branch, slot).
func (s *SPT) DelPath(branch Branch, slot Slot) {
	s.pathsMu.Lock()
	s.paths[branch][slot] = nil
	s.pathsMu.Unlock()
}

func (s *SPT) pathAt(branch Branch, slot Slot) *Path {
	s.pathsMu.RLock()
	defer s.pathsMu.RUnlock()
	return s.paths[branch][slot]
}

// lattice order used by the send dispatcher's two-phase scan (spec.md
// §4.7) and by IsConnected. The poll scheduler walks each branch's
// primary and secondary slots itself.
var latticeOrder = [4][2]int{
	{int(Main), int(Primary)},
	{int(Main), int(Secondary)},
	{int(Backup), int(Primary)},
	{int(Backup), int(Secondary)},
}

// IsConnected reports whether any configured path currently has ok status
// (spec.md §4.5 is_connected).
func (s *SPT) IsConnected() bool {
	s.pathsMu.RLock()
	defer s.pathsMu.RUnlock()
	for _, bs := range latticeOrder {
		p := s.paths[bs[0]][bs[1]]
		if p != nil && p.OK() {
			return true
		}
	}
	return false
}

// State returns the snapshot described in spec.md §4.5 state().
func (s *SPT) State() map[string]interface{} {
	ret := map[string]interface{}{
		"msgs queued": s.queue.len(),
		"msgs sent":   s.sentCountValue(),
	}
	s.pathsMu.RLock()
	for _, b := range []Branch{Main, Backup} {
		for _, sl := range []Slot{Primary, Secondary} {
			if p := s.paths[b][sl]; p != nil {
				ret[b.String()+" "+sl.String()+" path ok"] = p.OK()
			}
		}
	}
	s.pathsMu.RUnlock()

	s.scheduleMu.Lock()
	sched := s.scheduler
	s.scheduleMu.Unlock()
	if sched != nil {
		ret["poll active"] = sched.active()
		ret["poll count"] = sched.count()
	}

	s.dispatchMu.Lock()
	disp := s.dispatcher
	s.dispatchMu.Unlock()
	if disp != nil {
		ret["send active"] = disp.isRunning()
	}
	return ret
}

func (s *SPT) sentCountValue() uint64 {
	s.counterMu.Lock()
	defer s.counterMu.Unlock()
	return s.sentCount
}

// nextMsgNr allocates the next message number, wrapping 1..9999 and never
// issuing 0 (reserved for heartbeats). Also advances the "sent" counter
// the state() snapshot reports — renamed from the original's conflation
// of "counter" with "messages queued since start".
func (s *SPT) nextMsgNr() uint16 {
	s.counterMu.Lock()
	defer s.counterMu.Unlock()
	s.msgNr++
	s.sentCount++
	if s.msgNr > 9999 {
		s.msgNr = 1
	}
	return s.msgNr
}
