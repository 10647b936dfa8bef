package nettransport

import (
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestConnWritevGathersAllBuffers(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	c := NewConn(server)
	done := make(chan struct{})
	var n int64
	var err error
	go func() {
		n, err = c.Writev([][]byte{[]byte("hello "), []byte("world")})
		close(done)
	}()

	buf := make([]byte, 11)
	_, rerr := io.ReadFull(client, buf)
	require.NoError(t, rerr)
	<-done
	require.NoError(t, err)
	require.Equal(t, int64(11), n)
	require.Equal(t, "hello world", string(buf))
}

func TestListenAcceptRoundTrip(t *testing.T) {
	ln, err := Listen("127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	addr := ln.Addr().String()
	accepted := make(chan struct{})
	go func() {
		conn, aerr := ln.Accept()
		require.NoError(t, aerr)
		defer conn.Close()
		buf := make([]byte, 4)
		conn.Read(buf)
		close(accepted)
	}()

	client, err := net.DialTimeout("tcp", addr, time.Second)
	require.NoError(t, err)
	defer client.Close()
	_, err = client.Write([]byte("ping"))
	require.NoError(t, err)

	select {
	case <-accepted:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for accepted connection to read")
	}
}

func TestDispatcherRunsInline(t *testing.T) {
	var d Dispatcher
	var ran bool
	d.Enqueue(func() { ran = true })
	require.True(t, ran)

	var waited bool
	d.WaitForIO(nil, true, false, time.Time{}, func() { waited = true })
	require.True(t, waited)

	require.False(t, d.Shared())
}

func TestDispatcherOffloadRunsSynchronously(t *testing.T) {
	var d Dispatcher
	var ran bool
	got := d.Offload(func() { ran = true })
	require.True(t, ran)
	require.Equal(t, d, got)
}

func TestDispatcherAfterFuncFiresAndStops(t *testing.T) {
	var d Dispatcher
	fired := make(chan struct{})
	timer := d.AfterFunc(5*time.Millisecond, func() { close(fired) })
	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("timer never fired")
	}
	require.False(t, timer.Stop(), "already-fired timer reports it could not be stopped")
}
