/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package connection

import (
	"github.com/kestrel-http/engine/config"
	"github.com/kestrel-http/engine/hdr"
	"github.com/kestrel-http/engine/mime"
	"github.com/kestrel-http/engine/parser"
	"github.com/kestrel-http/engine/pkt"
	"github.com/kestrel-http/engine/uri"
)

// sessionCookieName is the cookie key a session id rides in (spec §6
// "Session store" is keyed by cookie value). The name is a single fixed
// one for every route, not configurable per route.
const sessionCookieName = "KSESSION"

// Exchange is the per-request view a pipeline.Stage's PipeData exposes.
// It satisfies auth.Exchange (the narrow interface the auth filter needs)
// and additionally gives a handler or filter stage (content, upload)
// everything else it needs to read the request and produce a response,
// without depending on the connection package's internals directly.
type Exchange struct {
	c *Connection
}

func newExchange(c *Connection) *Exchange { return &Exchange{c: c} }

func (e *Exchange) Method() string           { return e.c.rx.Method }
func (e *Exchange) Path() string             { return e.c.rx.URI.Path }
func (e *Exchange) RequestHeader() hdr.Header  { return e.c.rx.Header }
func (e *Exchange) ResponseHeader() hdr.Header { return e.c.tx.Header }
func (e *Exchange) RemoteAddr() string       { return e.c.rx.RemoteAddr }

// URI returns the parsed request-target (spec §4.9, C9).
func (e *Exchange) URI() *uri.URI { return e.c.rx.URI }

// ETag binds a digest nonce (spec §4.7) to the resource being requested.
// Lacking a computed representation at auth time (credential checking
// happens in Stage.Open, before any handler runs), the request path
// itself stands in as the stable per-resource identifier the original's
// authFilter.c bound nonces to.
func (e *Exchange) ETag() string { return e.c.rx.URI.Path }

// SessionGet/SessionSet read and write named session variables, lazily
// allocating a session id and setting its cookie on first write (spec §6
// "Session store" keyed by cookie value).
func (e *Exchange) SessionGet(key string) (interface{}, bool) {
	if e.c.SessionID == "" {
		return nil, false
	}
	return e.c.Service.Session.Get(e.c.SessionID, key)
}

func (e *Exchange) SessionSet(key string, value interface{}) {
	if e.c.SessionID == "" {
		e.c.SessionID = e.c.Service.Session.New()
		e.c.tx.Header.Add(hdr.SetCookieHeader, sessionCookieName+"="+e.c.SessionID+"; Path=/; HttpOnly")
	}
	_ = e.c.Service.Session.Set(e.c.SessionID, key, value)
}

// SetStatus and SetLength let a handler stage (content) steer the response
// tx.Tx.Finalize will later render, without exposing the whole Connection.
func (e *Exchange) SetStatus(code int) { e.c.tx.Status = code }
func (e *Exchange) SetLength(n int64)  { e.c.tx.Length = n }

// UploadSize returns the configured ceiling a multipart body may buffer to
// (spec §6 uploadSize), read by the upload filter.
func (e *Exchange) UploadSize() int64 { return e.c.Limits.UploadSize }

// SetForm and Form stash the parsed multipart body (spec §4.6/C11) on the
// connection so a handler running after the upload filter can read it.
func (e *Exchange) SetForm(f *mime.Form) { e.c.form = f }
func (e *Exchange) Form() *mime.Form     { return e.c.form }

// Finalize renders and emits the response header block through the TX
// pipeline, delegating the Content-Length/chunked/close decision to
// tx.Tx.Finalize (spec §4.12, C12). preview is the first buffered chunk
// of body bytes, used for content-type sniffing and a same-call
// Content-Length short circuit when handlerDone is true.
func (e *Exchange) Finalize(preview []byte, handlerDone bool) error {
	packet := e.c.tx.Finalize(preview, handlerDone)
	if packet == nil {
		return nil
	}
	return e.c.pipe.WriteTX(packet)
}

// WriteBody hands one body (or END) packet into the TX pipeline head,
// for a handler that has already called Finalize.
func (e *Exchange) WriteBody(p *pkt.Packet) error {
	return e.c.pipe.WriteTX(p)
}

// Limits returns the connection's coarse per-route resource caps (spec
// §6), e.g. uploadSize for the upload filter.
func (e *Exchange) Limits() config.Limits { return e.c.Limits }

// ParserLimits returns the wire-parsing bounds (request-line/header/chunk
// sizes) a handler reading more of the body directly might still need.
func (e *Exchange) ParserLimits() parser.Limits { return e.c.ParserLimits }
