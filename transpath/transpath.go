// Package transpath implements the DC-09 transport abstraction: TCP and
// UDP connect/send/receive with timeout, per spec.md §4.4. It knows
// nothing about DC-09 framing — it moves opaque byte frames.
package transpath

import (
	"fmt"
	"time"

	"github.com/vanovost/dc09spt/clog"
)

// Transport selects the socket kind a Target dials.
type Transport string

// The two transports a Path may use.
const (
	TCP Transport = "tcp"
	UDP Transport = "udp"
)

// DefaultTimeout is applied when a Target's Timeout is zero.
const DefaultTimeout = 5 * time.Second

// udpAttempts is the fixed retry count for UDP SendAndReceive (spec.md §4.4).
const udpAttempts = 5

// Conn is an open transport connection. Every operation reports failure
// by returning a nil slice / non-nil error. A send or receive error leaves
// the connection unusable — the next Connect call must reopen it — except
// a UDP receive timeout, which keeps the socket open for the next attempt.
type Conn interface {
	Send(data []byte) error
	Receive(maxLen int) ([]byte, error)
	SendAndReceive(data []byte, maxLen int) ([]byte, error)
	Disconnect()
}

// Target names a destination and how to reach it.
type Target struct {
	Host      string
	Port      int
	Transport Transport
	Timeout   time.Duration
}

func (t Target) timeout() time.Duration {
	if t.Timeout <= 0 {
		return DefaultTimeout
	}
	return t.Timeout
}

func (t Target) addr() string {
	return fmt.Sprintf("%s:%d", t.Host, t.Port)
}

// Connect opens a fresh connection to the target. A nil Conn and non-nil
// error indicate the connect attempt failed; the caller should treat the
// path as down for this attempt and retry later.
func Connect(t Target, log clog.Clog) (Conn, error) {
	switch t.Transport {
	case UDP:
		return dialUDP(t, log)
	case TCP, "":
		return dialTCP(t, log)
	default:
		return nil, fmt.Errorf("transpath: undefined transport %q", t.Transport)
	}
}
