/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

// Package tx builds the outgoing half of a request/response exchange
// (spec §4.12, C12): status line and header finalization, the
// Content-Length-vs-chunked-vs-close decision tree, and Set-Cookie
// attachment. Grounded on badu-http's chunk_writer.go (writeHeader) for
// the decision tree itself — adapted from net/http's connection/response
// model to this engine's packet/queue model, where a Tx produces a HEADER
// pkt.Packet fed into the pipeline rather than writing straight to a
// bufio.Writer.
package tx

import (
	"bytes"
	"strconv"
	"time"

	"github.com/kestrel-http/engine/hdr"
	"github.com/kestrel-http/engine/pkt"
	"github.com/kestrel-http/engine/sniff"
)

// Tx accumulates one response's status, headers and length policy before
// being finalized into wire bytes.
type Tx struct {
	Header hdr.Header
	Status int

	// Length is the known response body length, or -1 if unknown when
	// headers must be finalized (spec §4.12).
	Length int64

	// Chunking is decided by Finalize; callers read it afterward to
	// learn whether to apply chunk framing to body packets (see the
	// chunk filter stage in the pending connector wiring).
	Chunking bool

	// CloseAfterReply is decided by Finalize per the keep-alive rules
	// of spec §4.12 (HTTP/1.0, explicit Connection: close, no known
	// length on HTTP/1.0).
	CloseAfterReply bool

	reqMethod      string
	reqProtoMajor  int
	reqProtoMinor  int
	reqWantsClose  bool
	keepAlivesOn   bool
	wroteHeader    bool
}

// New starts a response for a request with the given method and protocol
// version, e.g. New("GET", 1, 1).
func New(reqMethod string, protoMajor, protoMinor int, reqWantsClose, keepAlivesOn bool) *Tx {
	return &Tx{
		Header:        make(hdr.Header),
		Status:        200,
		Length:        -1,
		reqMethod:     reqMethod,
		reqProtoMajor: protoMajor,
		reqProtoMinor: protoMinor,
		reqWantsClose: reqWantsClose,
		keepAlivesOn:  keepAlivesOn,
	}
}

func (t *Tx) protoAtLeast(major, minor int) bool {
	return t.reqProtoMajor > major || (t.reqProtoMajor == major && t.reqProtoMinor >= minor)
}

// bodyAllowedForStatus reports whether a response with this status may
// carry an entity-body (RFC 7230 §3.3.3, spec §4.12).
func bodyAllowedForStatus(status int) bool {
	switch {
	case status >= 100 && status <= 199:
		return false
	case status == 204, status == 304:
		return false
	}
	return true
}

// suppressedHeaders lists headers that must never accompany a
// no-body status (RFC 7230 §3.3.2, spec §4.12). 304 and the other
// no-body statuses are suppressed alike: none of them carry a body,
// so none of them may claim one via these headers.
func suppressedHeaders(status int) []string {
	return []string{hdr.ContentType, hdr.ContentLength, hdr.TransferEncoding}
}

// Finalize applies the Content-Length/chunked/close decision tree
// (grounded on chunk_writer.go's writeHeader) and returns a HEADER packet
// ready to hand to the pipeline's TX head. preview is the first chunk of
// body bytes already buffered (used for content-type sniffing and for a
// short-circuit exact Content-Length when the handler is already done);
// it may be nil.
func (t *Tx) Finalize(preview []byte, handlerDone bool) *pkt.Packet {
	if t.wroteHeader {
		return nil
	}
	t.wroteHeader = true

	isHEAD := t.reqMethod == "HEAD"
	hasBody := bodyAllowedForStatus(t.Status)
	te := t.Header.Get(hdr.TransferEncoding)
	hasTE := te != ""

	if handlerDone && !hasTE && hasBody && t.Header.Get(hdr.ContentLength) == "" && (!isHEAD || len(preview) > 0) {
		t.Length = int64(len(preview))
		t.Header.Set(hdr.ContentLength, strconv.FormatInt(t.Length, 10))
	}

	hasCL := t.Length >= 0 || t.Header.Get(hdr.ContentLength) != ""

	if t.reqWantsClose || !t.protoAtLeast(1, 1) {
		t.CloseAfterReply = true
	}
	if t.Header.Get(hdr.Connection) == "close" || !t.keepAlivesOn {
		t.CloseAfterReply = true
	}

	if !hasBody {
		for _, k := range suppressedHeaders(t.Status) {
			t.Header.Del(k)
		}
	} else if _, haveType := t.Header[hdr.ContentType]; !haveType && !hasTE {
		t.Header.Set(hdr.ContentType, sniff.DetectContentType(preview))
	}

	if hasCL && hasTE {
		t.Header.Del(hdr.ContentLength)
		hasCL = false
	}

	switch {
	case isHEAD, !hasBody:
		t.Header.Del(hdr.TransferEncoding)
	case t.Status == 204:
		t.Header.Del(hdr.TransferEncoding)
	case hasCL:
		t.Header.Del(hdr.TransferEncoding)
	case t.protoAtLeast(1, 1):
		t.Chunking = true
		t.Header.Set(hdr.TransferEncoding, "chunked")
	default:
		// HTTP/1.0 with unknown length: the only way to signal EOF is
		// to close the connection after the reply.
		t.CloseAfterReply = true
		t.Header.Del(hdr.TransferEncoding)
	}

	if t.CloseAfterReply && t.protoAtLeast(1, 1) {
		t.Header.Set(hdr.Connection, "close")
	} else if !t.CloseAfterReply && !t.protoAtLeast(1, 1) && t.keepAlivesOn {
		t.Header.Set(hdr.Connection, "keep-alive")
	}

	if _, ok := t.Header[hdr.Date]; !ok {
		t.Header.Set(hdr.Date, time.Now().UTC().Format(hdr.TimeFormat))
	}

	packet := pkt.CreateHeader()
	pkt.SetPrefix(packet, t.renderHeaderBlock())
	return packet
}

func (t *Tx) renderHeaderBlock() string {
	var b bytes.Buffer
	b.WriteString("HTTP/")
	b.WriteString(strconv.Itoa(t.reqProtoMajor))
	b.WriteByte('.')
	b.WriteString(strconv.Itoa(t.reqProtoMinor))
	b.WriteByte(' ')
	b.WriteString(strconv.Itoa(t.Status))
	b.WriteByte(' ')
	b.WriteString(StatusText(t.Status))
	b.WriteString("\r\n")
	t.Header.Write(&b)
	b.WriteString("\r\n")
	return b.String()
}
