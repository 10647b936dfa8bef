/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

// Package pkt implements the Packet (spec §3/§4.1, C1): the unit of data
// flow carried through the pipeline's queues. Grounded on
// original_source/src/packet.c (httpCreatePacket/httpCreateDataPacket/
// httpCreateEndPacket/httpCreateHeaderPacket/httpGetPacket family), reworked
// from manual mark-sweep ownership (spec §9) into Go values with exclusive,
// move-on-handoff ownership: a *Packet is owned by whichever Queue currently
// holds it, and handing it downstream transfers that ownership outright.
package pkt

import (
	"bytes"
	"os"
)

// Flag is the packet kind. A packet carries exactly one primary kind, set
// at creation; it never changes kind afterward.
type Flag int

const (
	// FlagData carries request or response body bytes.
	FlagData Flag = 1 << iota
	// FlagHeader carries the serialized request/response header block.
	FlagHeader
	// FlagEnd marks end-of-stream for one direction of one request.
	FlagEnd
	// FlagRange carries a byte-range slice of a file entity (output ranges).
	FlagRange
	// FlagSolo marks a packet that must not be joined with its neighbors
	// (e.g. a chunk-framing prefix glued to file-entity content).
	FlagSolo
)

func (f Flag) String() string {
	switch {
	case f&FlagEnd != 0:
		return "END"
	case f&FlagHeader != 0:
		return "HEADER"
	case f&FlagRange != 0:
		return "RANGE"
	case f&FlagData != 0:
		return "DATA"
	default:
		return "NONE"
	}
}

// Fill is called by the connector to materialize the bytes of a virtual
// (entity) packet on demand, e.g. reading a slice of a file. It returns the
// bytes read (which may be fewer than requested at EOF).
type Fill func(pos int64, size int) ([]byte, error)

// Packet is the unit of transport inside the pipeline (spec §3). Prefix
// bytes are transport framing (chunk-size lines) and never count toward a
// queue's byte accounting; Content bytes do.
type Packet struct {
	Flags Flag

	// Prefix holds transport framing bytes (e.g. "<CRLF>1a\r\n" for a
	// chunk header). nil when the packet carries no framing.
	Prefix *bytes.Buffer

	// Content holds in-memory body bytes. nil for a pure virtual
	// (entity) packet, whose bytes live at EntityPos/EntityLen and are
	// produced on demand by Fill.
	Content *bytes.Buffer

	// EntityPos/EntityLen describe a virtual packet's source-file
	// window; EntityLen > 0 with Content == nil means "not yet read."
	EntityPos int64
	EntityLen int64
	Fill      Fill

	// EntityFile, when set, lets a connector capable of a zero-copy
	// sendfile-style transfer (transport.FileSender) bypass Fill
	// entirely and hand the OS file descriptor straight to the socket.
	// nil for entities backed by a generic byte-producing Fill (e.g. a
	// computed or piped body) rather than a real file.
	EntityFile *os.File

	// Next lets packets form a singly-linked list inside a Queue,
	// mirroring original_source/src/packet.c's packet->next.
	Next *Packet
}
