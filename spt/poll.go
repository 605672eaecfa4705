package spt

import (
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vanovost/dc09spt/dc09"
)

// RoutineConfig configures one scheduled routine message (spec.md §4.6
// "Routine messages").
type RoutineConfig struct {
	Params EventParams
	// Interval between firings; defaults to 24h when zero.
	Interval time.Duration
	// Start, when non-nil, is the second-of-day offset the first
	// occurrence is anchored to (spec.md §9 supplement #5). Nil means
	// "fire on the next scheduler cycle".
	Start *int
}

const defaultRoutineInterval = 24 * time.Hour

// Active scheduler bitmask bits (spec.md §4.6 "Active bitmask").
const (
	ActiveHeartbeat = 1
	ActiveRoutine   = 2
)

type routineState struct {
	cfg  RoutineConfig
	next time.Time
}

// scheduler is the poll worker: created on the first StartPoll or
// StartRoutine call, it interleaves main-heartbeat, back-up-heartbeat and
// routine-message duties and exits once all three are empty.
type scheduler struct {
	spt        *SPT
	retryDelay time.Duration

	mu             sync.Mutex
	mainInterval   *time.Duration
	backupInterval *time.Duration
	okMsg, failMsg *EventParams
	routines       []routineState

	// scheduler-goroutine-only state, never touched concurrently.
	mainNext   time.Time
	backupNext time.Time
	first      bool

	counter uint64
	started int32
	done    chan struct{}
}

// ensureScheduler returns the current scheduler, allocating (but not yet
// starting) one if none exists. The caller must apply its desired initial
// configuration and then call start(), so the worker never observes a
// transiently idle configuration and exits before it is configured.
func (s *SPT) ensureScheduler() *scheduler {
	s.scheduleMu.Lock()
	defer s.scheduleMu.Unlock()
	if s.scheduler == nil {
		s.scheduler = &scheduler{spt: s, retryDelay: 5 * time.Second, first: true, done: make(chan struct{})}
	}
	return s.scheduler
}

func (sch *scheduler) start() {
	if atomic.CompareAndSwapInt32(&sch.started, 0, 1) {
		go sch.run()
	}
}

// StartPoll configures (or reconfigures) heartbeat polling. mainInterval
// nil disables main-branch polling; likewise backupInterval for the
// back-up branch. retryDelay <= 0 uses the 5s default.
func (s *SPT) StartPoll(mainInterval, backupInterval *time.Duration, retryDelay time.Duration, okMsg, failMsg *EventParams) {
	sch := s.ensureScheduler()
	sch.mu.Lock()
	sch.mainInterval = mainInterval
	sch.backupInterval = backupInterval
	sch.okMsg = okMsg
	sch.failMsg = failMsg
	sch.mu.Unlock()
	if retryDelay > 0 {
		sch.retryDelay = retryDelay
	}
	sch.start()
}

// StopPoll clears heartbeat and routine scheduling; the scheduler
// goroutine observes this on its next cycle and exits.
func (s *SPT) StopPoll() {
	s.scheduleMu.Lock()
	sch := s.scheduler
	s.scheduleMu.Unlock()
	if sch == nil {
		return
	}
	sch.mu.Lock()
	sch.mainInterval = nil
	sch.backupInterval = nil
	sch.routines = nil
	sch.mu.Unlock()
	if atomic.LoadInt32(&sch.started) == 1 {
		<-sch.done
	}
	s.scheduleMu.Lock()
	if s.scheduler == sch {
		s.scheduler = nil
	}
	s.scheduleMu.Unlock()
}

// StartRoutine (re)configures the routine-message list, seeding each
// entry's next-fire time. Passing an empty list on a poll-less scheduler
// tears the scheduler down once it drains.
func (s *SPT) StartRoutine(routines []RoutineConfig) {
	if len(routines) == 0 {
		s.scheduleMu.Lock()
		sch := s.scheduler
		s.scheduleMu.Unlock()
		if sch == nil {
			return
		}
		hadOnlyRoutines := sch.active() == ActiveRoutine
		sch.mu.Lock()
		sch.routines = nil
		sch.mu.Unlock()
		if hadOnlyRoutines {
			<-sch.done
			s.scheduleMu.Lock()
			if s.scheduler == sch {
				s.scheduler = nil
			}
			s.scheduleMu.Unlock()
		}
		return
	}

	sch := s.ensureScheduler()
	now := time.Now().UTC()
	states := make([]routineState, len(routines))
	for i, r := range routines {
		interval := r.Interval
		if interval <= 0 {
			interval = defaultRoutineInterval
		}
		states[i] = routineState{cfg: r, next: nextRoutineTime(now, r.Start, interval)}
	}
	sch.mu.Lock()
	sch.routines = states
	sch.mu.Unlock()
	sch.start()
}

// nextRoutineTime resolves spec.md §9 supplement #5: with no anchor,
// fire on the next cycle; with an anchor, fire at the next occurrence of
// second-of-day `start`, never in the past relative to now.
func nextRoutineTime(now time.Time, start *int, interval time.Duration) time.Time {
	if start == nil {
		return now
	}
	intervalSec := int64(interval / time.Second)
	if intervalSec <= 0 {
		intervalSec = 86400
	}
	nowSec := now.Unix()
	target := nowSec - nowSec%86400 + int64(*start)
	if target < nowSec {
		steps := (nowSec - target + intervalSec - 1) / intervalSec
		target += steps * intervalSec
	}
	return time.Unix(target, 0).UTC()
}

// active returns the bitmask of currently scheduled duties: ActiveHeartbeat
// when either poll interval is set, ActiveRoutine when routines are
// configured (spec.md §4.6 active()).
func (sch *scheduler) active() int {
	sch.mu.Lock()
	defer sch.mu.Unlock()
	var a int
	if sch.mainInterval != nil || sch.backupInterval != nil {
		a |= ActiveHeartbeat
	}
	if len(sch.routines) > 0 {
		a |= ActiveRoutine
	}
	return a
}

func (sch *scheduler) count() uint64 { return atomic.LoadUint64(&sch.counter) }

func (sch *scheduler) idle() bool {
	sch.mu.Lock()
	defer sch.mu.Unlock()
	return sch.mainInterval == nil && sch.backupInterval == nil && len(sch.routines) == 0
}

func (sch *scheduler) run() {
	defer close(sch.done)
	for !sch.idle() {
		sch.cycle()
		time.Sleep(sch.retryDelay)
	}
}

// cycle runs one interleaved pass of main-heartbeat, back-up-heartbeat
// and routine duties (spec.md §4.6).
func (sch *scheduler) cycle() {
	now := time.Now().UTC()

	sch.mu.Lock()
	mainInterval := sch.mainInterval
	backupInterval := sch.backupInterval
	okMsg, failMsg := sch.okMsg, sch.failMsg
	sch.mu.Unlock()

	mainPolled := false
	backUpForMain := false
	backupPolled := false
	first := sch.first

	if mainInterval != nil && !sch.mainNext.After(now) {
		mainPolled = sch.pollBranch(Main, first, okMsg, failMsg)
		if !mainPolled {
			backUpForMain = true
		} else {
			sch.mainNext = now.Add(*mainInterval)
		}
	}

	if backupInterval != nil && (backUpForMain || !sch.backupNext.After(now) || first) {
		backupPolled = sch.pollBranch(Backup, first, okMsg, failMsg)
		if backupPolled {
			sch.backupNext = now.Add(*backupInterval)
		}
	}

	if (mainInterval == nil || mainPolled) && (backupInterval == nil || backupPolled) && (mainInterval != nil || backupInterval != nil) {
		sch.first = false
	}

	if (mainPolled || (backUpForMain && backupPolled)) && mainInterval != nil && sch.mainNext.Before(now) {
		sch.mainNext = now.Add(*mainInterval)
	}

	sch.doRoutines(now)
}

// pollBranch polls one branch's slots: on first pass every defined slot
// is probed; afterwards polling stops at the first success. Each slot
// transition from/to ok triggers the corresponding state-change message
// exactly once.
func (sch *scheduler) pollBranch(branch Branch, first bool, okMsg, failMsg *EventParams) bool {
	polled := false
	for _, slot := range []Slot{Primary, Secondary} {
		if !first && polled {
			break
		}
		p := sch.spt.pathAt(branch, slot)
		if p == nil {
			continue
		}
		atomic.AddUint64(&sch.counter, 1)
		if sch.spt.transferMsg(0, dc09.TypeNULL, "]", p) {
			polled = true
			if changed := p.setOK(true); changed {
				sch.emitState(okMsg, branch, true)
				if sch.spt.metrics != nil {
					sch.spt.metrics.PathOK(branch, slot, true)
				}
			}
		} else {
			if changed := p.setOK(false); changed {
				sch.emitState(failMsg, branch, false)
				if sch.spt.metrics != nil {
					sch.spt.metrics.PathOK(branch, slot, false)
				}
			}
		}
	}
	return polled
}

// emitState copies msg, sets its zone to the branch identity, infers the
// dc09.Type and CID qualifier, and both enqueues it via SendMsg and
// delivers it synchronously to the user callback (spec.md §4.6
// emit_state). A nil msg is a no-op.
func (sch *scheduler) emitState(msg *EventParams, branch Branch, ok bool) {
	if msg == nil {
		return
	}
	m := *msg
	m.Zone = strconv.Itoa(branch.zone())
	if m.Type == "" && len(m.Code) == 3 {
		if ok {
			m.Q = "1"
		} else {
			m.Q = "3"
		}
	}

	typ, okType := inferType(m)
	if !okType {
		sch.spt.log.Warn("spt: poll state-change message has no usable code or type, dropped")
		return
	}
	if err := sch.spt.SendMsg(typ, m); err != nil {
		sch.spt.log.Error("spt: poll state-change message encode failed: %v", err)
		return
	}
	if cb := sch.spt.getCallback(); cb != nil {
		cb(string(typ), m)
	}
}

// doRoutines fires any routine whose next-time has elapsed and advances
// it by its interval.
func (sch *scheduler) doRoutines(now time.Time) {
	sch.mu.Lock()
	routines := sch.routines
	sch.mu.Unlock()
	if len(routines) == 0 {
		return
	}
	for i := range routines {
		if routines[i].next.After(now) {
			continue
		}
		sch.spt.enqueueRoutine(routines[i].cfg.Params)
		interval := routines[i].cfg.Interval
		if interval <= 0 {
			interval = defaultRoutineInterval
		}
		routines[i].next = now.Add(interval)
	}
	sch.mu.Lock()
	sch.routines = routines
	sch.mu.Unlock()
}
