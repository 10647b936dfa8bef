/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

// Package nettransport is the default, blocking transport.Conn/Listener/
// Dispatcher implementation over the standard library's net package —
// the concrete collaborator spec §6 leaves as an embedder-supplied seam,
// wired here so cmd/kestreld has something real to bind a socket with.
// Grounded on badu-http's tcp_keep_alive_listener.go (TCP keep-alive
// wrapping of a raw *net.TCPListener) and conn.go's blocking read/write
// model: Writev blocks until the whole vector is written or the
// connection's deadline trips, so transport.ErrWouldBlock is never
// produced here — a genuinely nonblocking transport is a separate,
// pluggable implementation of the same interfaces (spec §6's embedder
// seam), not this package's job.
package nettransport

import (
	"crypto/tls"
	"io"
	"net"
	"os"
	"time"

	"github.com/kestrel-http/engine/transport"
)

// keepAlivePeriod mirrors badu-http's tcpKeepAliveListener (3 minutes).
const keepAlivePeriod = 3 * time.Minute

// Conn wraps a net.Conn to satisfy transport.Conn (and, via SendFile,
// transport.FileSender) using only blocking standard-library I/O.
type Conn struct {
	net.Conn
	isTLS bool
}

// NewConn wraps c as a transport.Conn.
func NewConn(c net.Conn) *Conn { return &Conn{Conn: c} }

// Writev writes bufs as a single net.Buffers gather-write, blocking until
// every byte is accepted by the kernel or the connection's write
// deadline trips.
func (c *Conn) Writev(bufs [][]byte) (int64, error) {
	nb := make(net.Buffers, len(bufs))
	for i, b := range bufs {
		nb[i] = b
	}
	return nb.WriteTo(c.Conn)
}

// SetBlocking is a no-op here: every Conn this package produces is
// always used in blocking mode (spec §5's worker-offload toggle applies
// only to a nonblocking transport implementation).
func (c *Conn) SetBlocking(bool) error { return nil }

// UpgradeTLS performs a blocking server-side TLS handshake over c.
func (c *Conn) UpgradeTLS(cfg *tls.Config) (transport.Conn, error) {
	tlsConn := tls.Server(c.Conn, cfg)
	if err := tlsConn.Handshake(); err != nil {
		return nil, err
	}
	return &Conn{Conn: tlsConn, isTLS: true}, nil
}

// IsTLS reports whether this Conn is the product of a completed
// UpgradeTLS call.
func (c *Conn) IsTLS() bool { return c.isTLS }

// SendFile sends count bytes of f starting at pos over the connection.
// It is a plain io.Copy rather than a true kernel sendfile — the
// fallback path transport.FileSender's doc comment describes for a Conn
// without native zero-copy support.
func (c *Conn) SendFile(f *os.File, pos, count int64) (int64, error) {
	return io.Copy(c.Conn, io.NewSectionReader(f, pos, count))
}

// Listener wraps a *net.TCPListener, enabling TCP keep-alives on every
// accepted connection (badu-http's tcpKeepAliveListener.Accept).
type Listener struct {
	*net.TCPListener
}

// Listen binds addr and returns a keep-alive-enabled transport.Listener.
func Listen(addr string) (*Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Listener{TCPListener: ln.(*net.TCPListener)}, nil
}

func (l *Listener) Accept() (transport.Conn, error) {
	c, err := l.TCPListener.AcceptTCP()
	if err != nil {
		return nil, err
	}
	c.SetKeepAlive(true)
	c.SetKeepAlivePeriod(keepAlivePeriod)
	return NewConn(c), nil
}

// Dispatcher is the simplest transport.Dispatcher a fully blocking
// transport needs: every hook runs its callback inline, since a blocking
// Conn never produces transport.ErrWouldBlock for WaitForIO to wait on.
// A nonblocking embedder supplies a real event-loop Dispatcher instead
// (spec §5); this one exists so cmd/kestreld has a working default.
type Dispatcher struct{}

func (Dispatcher) Enqueue(fn func()) { fn() }

func (Dispatcher) WaitForIO(_ transport.Conn, _, _ bool, _ time.Time, handler transport.WaitHandler) {
	handler()
}

func (Dispatcher) AfterFunc(d time.Duration, handler transport.WaitHandler) transport.Timer {
	return stdTimer{time.AfterFunc(d, handler)}
}

func (d Dispatcher) Offload(fn func()) transport.Dispatcher {
	fn()
	return d
}

func (Dispatcher) Shared() bool { return false }

type stdTimer struct{ t *time.Timer }

func (s stdTimer) Stop() bool { return s.t.Stop() }
