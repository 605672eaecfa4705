package transpath

import (
	"net"
	"time"

	"github.com/vanovost/dc09spt/clog"
)

// tcpConn is a blocking TCP connection. Send and Receive are two distinct
// socket operations — the protocol layer above pairs them as needed.
type tcpConn struct {
	conn    net.Conn
	timeout time.Duration
	target  Target
	log     clog.Clog
}

func dialTCP(t Target, log clog.Clog) (Conn, error) {
	timeout := t.timeout()
	conn, err := net.DialTimeout("tcp", t.addr(), timeout)
	if err != nil {
		log.Error("transpath: TCP connect to %s port %d failed: %v", t.Host, t.Port, err)
		return nil, err
	}
	return &tcpConn{conn: conn, timeout: timeout, target: t, log: log}, nil
}

func (c *tcpConn) Send(data []byte) error {
	if c.conn == nil {
		return errDisconnected
	}
	c.conn.SetWriteDeadline(time.Now().Add(c.timeout))
	if _, err := c.conn.Write(data); err != nil {
		c.log.Error("transpath: TCP send to %s port %d failed: %v", c.target.Host, c.target.Port, err)
		c.conn = nil
		return err
	}
	return nil
}

func (c *tcpConn) Receive(maxLen int) ([]byte, error) {
	if c.conn == nil {
		return nil, errDisconnected
	}
	c.conn.SetReadDeadline(time.Now().Add(c.timeout))
	buf := make([]byte, maxLen)
	n, err := c.conn.Read(buf)
	if err != nil {
		c.log.Error("transpath: TCP receive from %s port %d failed: %v", c.target.Host, c.target.Port, err)
		c.conn = nil
		return nil, err
	}
	return buf[:n], nil
}

func (c *tcpConn) SendAndReceive(data []byte, maxLen int) ([]byte, error) {
	if err := c.Send(data); err != nil {
		return nil, err
	}
	return c.Receive(maxLen)
}

func (c *tcpConn) Disconnect() {
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}
