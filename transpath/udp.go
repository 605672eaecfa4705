package transpath

import (
	"errors"
	"net"
	"time"

	"github.com/vanovost/dc09spt/clog"
)

var errDisconnected = errors.New("transpath: not connected")

// udpConn is bound on demand and replies whose source port does not match
// the destination port are discarded — a loose source check rather than a
// connected socket, matching the original's send/recvfrom behaviour.
type udpConn struct {
	conn    *net.UDPConn
	raddr   *net.UDPAddr
	timeout time.Duration
	target  Target
	log     clog.Clog
}

func dialUDP(t Target, log clog.Clog) (Conn, error) {
	raddr, err := net.ResolveUDPAddr("udp", t.addr())
	if err != nil {
		log.Error("transpath: UDP resolve %s port %d failed: %v", t.Host, t.Port, err)
		return nil, err
	}
	conn, err := net.ListenUDP("udp", nil)
	if err != nil {
		log.Error("transpath: UDP socket creation failed: %v", err)
		return nil, err
	}
	return &udpConn{conn: conn, raddr: raddr, timeout: t.timeout(), target: t, log: log}, nil
}

func (c *udpConn) Send(data []byte) error {
	if c.conn == nil {
		return errDisconnected
	}
	if _, err := c.conn.WriteToUDP(data, c.raddr); err != nil {
		c.log.Error("transpath: UDP send to %s port %d failed: %v", c.target.Host, c.target.Port, err)
		c.conn = nil
		return err
	}
	return nil
}

// Receive waits up to the configured timeout for a single datagram whose
// source port matches the destination port.
func (c *udpConn) Receive(maxLen int) ([]byte, error) {
	if c.conn == nil {
		return nil, errDisconnected
	}
	return c.receiveWithin(maxLen, c.timeout)
}

func (c *udpConn) receiveWithin(maxLen int, wait time.Duration) ([]byte, error) {
	deadline := time.Now().Add(wait)
	buf := make([]byte, maxLen)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, errTimeout
		}
		c.conn.SetReadDeadline(deadline)
		n, from, err := c.conn.ReadFromUDP(buf)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				return nil, errTimeout
			}
			c.log.Error("transpath: UDP receive from %s port %d failed: %v", c.target.Host, c.target.Port, err)
			c.conn = nil
			return nil, err
		}
		if from.Port != c.raddr.Port {
			continue // discard: source port does not match destination
		}
		return buf[:n], nil
	}
}

var errTimeout = errors.New("transpath: UDP receive timed out")

// SendAndReceive implements the 5-attempt-at-timeout/5-each UDP retry:
// each attempt resends the datagram and waits timeout/5 for a reply whose
// source port matches the destination port, retrying only on timeout.
func (c *udpConn) SendAndReceive(data []byte, maxLen int) ([]byte, error) {
	if c.conn == nil {
		return nil, errDisconnected
	}
	perAttempt := c.timeout / udpAttempts
	var lastErr error
	for i := 0; i < udpAttempts; i++ {
		if err := c.Send(data); err != nil {
			return nil, err
		}
		reply, err := c.receiveWithin(maxLen, perAttempt)
		if err == nil {
			return reply, nil
		}
		if !errors.Is(err, errTimeout) {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}

func (c *udpConn) Disconnect() {
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}
