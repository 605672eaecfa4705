package spt

import (
	"sync"
	"sync/atomic"

	"github.com/vanovost/dc09spt/transpath"
)

// Branch is the main/back-up coordinate of the path lattice (spec.md §3).
type Branch int

// The two branches of the lattice.
const (
	Main Branch = iota
	Backup
)

func (b Branch) String() string {
	if b == Backup {
		return "back-up"
	}
	return "main"
}

// zone returns the branch's identity as used in poll state-change
// messages: 1=main, 2=back-up (spec.md §4.6 emit_state).
func (b Branch) zone() int {
	if b == Backup {
		return 2
	}
	return 1
}

// Slot is the primary/secondary coordinate of the path lattice.
type Slot int

// The two slots of each branch.
const (
	Primary Slot = iota
	Secondary
)

func (s Slot) String() string {
	if s == Secondary {
		return "secondary"
	}
	return "primary"
}

// Path is one configured destination in the 2×2 lattice: a transport
// target plus the account/key/receiver/line identity used to frame
// blocks, the learned receiver clock offset, and the tri-valued observed
// status. ok and offset are guarded by mu since the dispatcher and the
// poll scheduler may both touch the same Path concurrently.
type Path struct {
	Target   transpath.Target
	Account  string
	Key      []byte
	Receiver *int
	Line     *int

	mu     sync.Mutex
	offset int
	ok     int32 // 0 = unknown/fail, 1 = ok
}

// Offset returns the current receiver clock offset in seconds.
func (p *Path) Offset() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.offset
}

// SetOffset records a receiver clock offset learned from a successfully
// parsed acknowledgement or a NAK.
func (p *Path) SetOffset(seconds int) {
	p.mu.Lock()
	p.offset = seconds
	p.mu.Unlock()
}

// OK reports the last observed probe/send outcome for this path.
func (p *Path) OK() bool {
	return atomic.LoadInt32(&p.ok) == 1
}

func (p *Path) setOK(ok bool) (changed bool) {
	var v int32
	if ok {
		v = 1
	}
	return atomic.SwapInt32(&p.ok, v) != v
}
