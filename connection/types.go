/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

// Package connection implements the per-socket state machine of spec §4.2
// (C6): it owns one transport.Conn for its whole life, reads and
// classifies one request at a time into an Rx, builds the matching Tx and
// per-request pipeline, drives the pipeline's scheduler to completion, and
// decides whether the socket is reused for another request or closed.
// Grounded on badu-http's conn.go (the blocking, one-goroutine-per-
// connection serve() loop this package's Serve follows) and
// types_server.go/server_handler.go for how a connection's lifecycle
// state is tracked and handed to a registered handler.
package connection

import (
	"bufio"
	"time"

	"go.uber.org/zap"

	"github.com/kestrel-http/engine/config"
	"github.com/kestrel-http/engine/hdr"
	"github.com/kestrel-http/engine/mime"
	"github.com/kestrel-http/engine/parser"
	"github.com/kestrel-http/engine/pipeline"
	"github.com/kestrel-http/engine/route"
	"github.com/kestrel-http/engine/service"
	"github.com/kestrel-http/engine/trace"
	"github.com/kestrel-http/engine/transport"
	"github.com/kestrel-http/engine/tx"
	"github.com/kestrel-http/engine/uri"
)

// State is a step of the connection lifecycle of spec §4.2. Transitions
// are monotonic within one request cycle; COMPLETE resets straight to
// BEGIN on keep-alive reuse.
type State int

const (
	StateBegin State = iota
	StateConnected
	StateFirst
	StateParsed
	StateContent
	StateRunning
	StateComplete
)

func (s State) String() string {
	switch s {
	case StateBegin:
		return "begin"
	case StateConnected:
		return "connected"
	case StateFirst:
		return "first"
	case StateParsed:
		return "parsed"
	case StateContent:
		return "content"
	case StateRunning:
		return "running"
	case StateComplete:
		return "complete"
	default:
		return "unknown"
	}
}

// Rx is the parsed inbound half of one request (spec §3 "Rx"). Recreated
// fresh for every request on a connection; never reused across keep-alive
// cycles.
type Rx struct {
	Method        string
	URI           *uri.URI
	Proto         string
	ProtoMajor    int
	ProtoMinor    int
	Header        hdr.Header
	ContentLength int64
	Chunked       bool
	BytesReceived int64
	RemoteAddr    string
}

// Connection is one accepted socket's state machine (spec §3
// "Connection"). A Listener constructs one per accepted transport.Conn
// and calls Serve on a dedicated goroutine; the connection is affined to
// that goroutine for its whole life (spec §5 "one connection is affined
// to one dispatcher").
type Connection struct {
	Service  *service.Service
	Routes   *route.Table
	Conn     transport.Conn
	Sender   transport.FileSender
	Dispatch transport.Dispatcher

	Limits       config.Limits
	ParserLimits parser.Limits
	QueueMax     int

	ID         string
	Seq        uint64
	RemoteAddr string
	Log        *zap.Logger
	Trace      *trace.Trace

	br *bufio.Reader

	State          State
	KeepAliveCount int
	RequestCount   int
	SessionID      string

	rx   *Rx
	tx   *tx.Tx
	form *mime.Form
	pipe *pipeline.Pipeline
	sc   *pipeline.Scheduler
}

// requestTimeout returns the time allowed for reading one whole request,
// or zero if unbounded (spec §6 "requestTimeout").
func (c *Connection) requestTimeout() time.Duration { return c.Limits.RequestTimeout }
