/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

// Package listener implements the accept loop of spec §4.2/§6 (C10): it
// owns a transport.Listener, enforces the configured clientCount ceiling,
// and spawns one connection.Connection per accepted socket. Grounded on
// badu-http's Server.Serve (the accept-error exponential backoff loop)
// and tcp_keep_alive_listener.go (the keep-alive wrapping a raw
// *net.TCPListener needs, now pushed behind the transport.Listener seam
// instead of being specific to net.TCPListener).
package listener

import (
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kestrel-http/engine/config"
	"github.com/kestrel-http/engine/connection"
	"github.com/kestrel-http/engine/parser"
	"github.com/kestrel-http/engine/pipeline"
	"github.com/kestrel-http/engine/route"
	"github.com/kestrel-http/engine/service"
	"github.com/kestrel-http/engine/trace"
	"github.com/kestrel-http/engine/transport"
)

// minAcceptDelay/maxAcceptDelay bound the exponential backoff applied to
// a transient Accept error, mirroring badu-http's Server.Serve (5ms
// doubling up to 1s).
const (
	minAcceptDelay = 5 * time.Millisecond
	maxAcceptDelay = 1 * time.Second
)

// Listener accepts transport.Conns and drives one connection.Connection
// per socket to completion on its own goroutine, same as the
// one-goroutine-per-connection model the connection package itself
// follows (spec §5's "affined to one dispatcher" is satisfied here by
// "affined to one goroutine" — the simplest dispatcher a blocking
// transport.Conn needs).
type Listener struct {
	Transport transport.Listener
	Service   *service.Service
	Routes    *route.Table
	Dispatch  transport.Dispatcher
	Sender    transport.FileSender

	clientSem chan struct{}
	closeOnce sync.Once
	closed    chan struct{}
	wg        sync.WaitGroup
}

// New builds a Listener bound to ln, enforcing svc.Limits.ClientCount
// concurrent connections (spec §6 "clientCount") when positive.
func New(ln transport.Listener, svc *service.Service, routes *route.Table, dispatch transport.Dispatcher, sender transport.FileSender) *Listener {
	l := &Listener{
		Transport: ln,
		Service:   svc,
		Routes:    routes,
		Dispatch:  dispatch,
		Sender:    sender,
		closed:    make(chan struct{}),
	}
	if n := svc.Limits.ClientCount; n > 0 {
		l.clientSem = make(chan struct{}, n)
	}
	return l
}

// Serve accepts connections until Close is called, never returning nil
// except after Close (grounded on badu-http's Server.Serve: "Serve always
// returns a non-nil error" once the listener is live, except the
// close path).
func (l *Listener) Serve() error {
	var delay time.Duration
	for {
		conn, err := l.Transport.Accept()
		if err != nil {
			select {
			case <-l.closed:
				l.wg.Wait()
				return nil
			default:
			}
			if ne, ok := err.(net.Error); ok && ne.Temporary() {
				delay = nextDelay(delay)
				l.Service.Log.Warn("accept error, retrying", zap.Error(err), zap.Duration("delay", delay))
				time.Sleep(delay)
				continue
			}
			return err
		}
		delay = 0
		l.acquire()
		l.wg.Add(1)
		go l.serveConn(conn)
	}
}

func nextDelay(prev time.Duration) time.Duration {
	if prev == 0 {
		return minAcceptDelay
	}
	prev *= 2
	if prev > maxAcceptDelay {
		return maxAcceptDelay
	}
	return prev
}

func (l *Listener) acquire() {
	if l.clientSem != nil {
		l.clientSem <- struct{}{}
	}
}

func (l *Listener) release() {
	if l.clientSem != nil {
		<-l.clientSem
	}
}

// serveConn builds a connection.Connection around c and runs it to
// completion, releasing this listener's client-count slot and waitgroup
// slot once the socket closes.
func (l *Listener) serveConn(c transport.Conn) {
	defer l.wg.Done()
	defer l.release()

	seq := l.Service.NextConnSeq()
	id := uuid.NewString()
	log := l.Service.Log.With(zap.String("conn_id", id), zap.Uint64("conn_seq", seq))

	conn := &connection.Connection{
		Service:      l.Service,
		Routes:       l.Routes,
		Conn:         c,
		Sender:       senderFor(c, l.Sender),
		Dispatch:     l.Dispatch,
		Limits:       l.Service.Limits,
		ParserLimits: parserLimitsFrom(l.Service.Limits),
		QueueMax:     queueMaxFrom(l.Service.Limits),
		ID:           id,
		Seq:          seq,
		RemoteAddr:   c.RemoteAddr().String(),
		Log:          log,
		Trace:        trace.New(log, int64(seq), *trace.NewFilter(), *trace.NewFilter()),
	}
	conn.Serve()
}

// senderFor picks the transport.FileSender a connection's connector stage
// should zero-copy through: the accepted socket itself when it implements
// transport.FileSender (true of every transport.Conn nettransport
// produces), falling back to the listener-wide Sender otherwise. A shared
// Sender decoupled from the specific socket would send bytes out the
// wrong connection, so the per-conn case always wins when available.
func senderFor(c transport.Conn, fallback transport.FileSender) transport.FileSender {
	if fs, ok := c.(transport.FileSender); ok {
		return fs
	}
	return fallback
}

// Close stops accepting new connections and waits for in-flight ones to
// finish their current request cycle and exit.
func (l *Listener) Close() error {
	l.closeOnce.Do(func() { close(l.closed) })
	err := l.Transport.Close()
	l.wg.Wait()
	return err
}

// parserLimitsFrom narrows config.Limits down to what the parser package
// needs, falling back to parser.DefaultLimits for anything left unset.
func parserLimitsFrom(l config.Limits) parser.Limits {
	pl := parser.DefaultLimits
	if l.HeaderSize > 0 {
		pl.MaxLineLen = l.HeaderSize
		pl.MaxHeaderBytes = l.HeaderSize
	}
	if l.URISize > 0 {
		pl.MaxURILen = l.URISize
	}
	if l.HeaderCount > 0 {
		pl.MaxHeaderCount = l.HeaderCount
	}
	return pl
}

// queueMaxFrom returns the per-queue high watermark a Connection's
// pipelines are built with (spec §6 "stageBufferSize").
func queueMaxFrom(l config.Limits) int {
	if l.StageBufferSize > 0 {
		return l.StageBufferSize
	}
	return pipeline.DefaultStageBufferSize
}
