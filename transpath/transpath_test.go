package transpath

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vanovost/dc09spt/clog"
)

func silentLog() clog.Clog {
	l := clog.NewLogger("transpathtest")
	l.LogMode(false)
	return l
}

func TestConnectUnknownTransport(t *testing.T) {
	_, err := Connect(Target{Host: "127.0.0.1", Port: 1, Transport: "carrier-pigeon"}, silentLog())
	require.Error(t, err)
}

func TestTCPSendAndReceive(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		buf := make([]byte, 64)
		n, _ := conn.Read(buf)
		conn.Write([]byte("echo:" + string(buf[:n])))
	}()

	port := ln.Addr().(*net.TCPAddr).Port
	c, err := Connect(Target{Host: "127.0.0.1", Port: port, Transport: TCP, Timeout: time.Second}, silentLog())
	require.NoError(t, err)
	defer c.Disconnect()

	reply, err := c.SendAndReceive([]byte("hello"), 64)
	require.NoError(t, err)
	require.Equal(t, "echo:hello", string(reply))
}

func TestTCPDisconnectRequiresReconnect(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		conn.Close()
	}()

	port := ln.Addr().(*net.TCPAddr).Port
	c, err := Connect(Target{Host: "127.0.0.1", Port: port, Transport: TCP, Timeout: time.Second}, silentLog())
	require.NoError(t, err)

	c.Disconnect()
	err = c.Send([]byte("x"))
	require.ErrorIs(t, err, errDisconnected)
}

func TestUDPSendAndReceive(t *testing.T) {
	pc, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP("127.0.0.1")})
	require.NoError(t, err)
	defer pc.Close()

	go func() {
		buf := make([]byte, 64)
		n, addr, err := pc.ReadFromUDP(buf)
		if err != nil {
			return
		}
		pc.WriteToUDP([]byte("echo:"+string(buf[:n])), addr)
	}()

	port := pc.LocalAddr().(*net.UDPAddr).Port
	c, err := Connect(Target{Host: "127.0.0.1", Port: port, Transport: UDP, Timeout: time.Second}, silentLog())
	require.NoError(t, err)
	defer c.Disconnect()

	reply, err := c.SendAndReceive([]byte("hi"), 64)
	require.NoError(t, err)
	require.Equal(t, "echo:hi", string(reply))
}

func TestUDPSendAndReceiveRetriesOnTimeout(t *testing.T) {
	// No listener at all: every attempt should time out, and
	// SendAndReceive should exhaust all retries rather than aborting
	// after the first, returning a timeout-flavored error.
	pc, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP("127.0.0.1")})
	require.NoError(t, err)
	port := pc.LocalAddr().(*net.UDPAddr).Port
	pc.Close() // nobody will ever answer on this port

	c, err := Connect(Target{Host: "127.0.0.1", Port: port, Transport: UDP, Timeout: 250 * time.Millisecond}, silentLog())
	require.NoError(t, err)
	defer c.Disconnect()

	start := time.Now()
	_, err = c.SendAndReceive([]byte("hi"), 64)
	elapsed := time.Since(start)

	require.Error(t, err)
	require.ErrorIs(t, err, errTimeout)
	// five attempts at timeout/5 each should take close to the full
	// configured timeout, not bail out after the first slice.
	require.GreaterOrEqual(t, elapsed, 200*time.Millisecond)
}
