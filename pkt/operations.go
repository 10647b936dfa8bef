/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package pkt

import (
	"bytes"
	"fmt"
	"os"
)

// Create allocates a packet per the size contract of
// original_source/src/packet.c's httpCreatePacket: size < 0 makes a
// growable content buffer, size == 0 makes a header/end marker with no
// content, size > 0 makes a buffer pre-sized to size bytes of capacity.
func Create(size int) *Packet {
	p := &Packet{}
	switch {
	case size < 0:
		p.Content = &bytes.Buffer{}
	case size > 0:
		p.Content = bytes.NewBuffer(make([]byte, 0, size))
	}
	return p
}

// CreateData creates a data packet, optionally pre-seeded with b.
func CreateData(b []byte) *Packet {
	p := Create(-1)
	p.Flags = FlagData
	if len(b) > 0 {
		p.Content.Write(b)
	}
	return p
}

// CreateEnd creates the END marker packet for a direction.
func CreateEnd() *Packet {
	p := Create(0)
	p.Flags = FlagEnd
	return p
}

// CreateHeader creates the packet that will carry a serialized header
// block.
func CreateHeader() *Packet {
	p := Create(-1)
	p.Flags = FlagHeader
	return p
}

// CreateEntity creates a virtual packet representing bytes not yet read
// from a file or other byte source, fetched on demand through fill. This
// is what the connector (C7) gathers via vector I/O without ever buffering
// the whole file in memory.
func CreateEntity(pos, size int64, fill Fill) *Packet {
	p := &Packet{
		Flags:     FlagData,
		EntityPos: pos,
		EntityLen: size,
		Fill:      fill,
	}
	return p
}

// CreateEntityFile is CreateEntity backed directly by an *os.File, letting
// a connector that implements vectored sendfile (transport.FileSender)
// hand the descriptor straight to the kernel instead of reading through
// Fill.
func CreateEntityFile(f *os.File, pos, size int64) *Packet {
	p := CreateEntity(pos, size, nil)
	p.EntityFile = f
	return p
}

// Length returns the content byte count only; prefix bytes never count
// (spec §3: "Prefix bytes do NOT count toward queue size accounting").
func Length(p *Packet) int {
	if p == nil {
		return 0
	}
	if p.Content != nil {
		return p.Content.Len()
	}
	if p.EntityLen > 0 {
		return int(p.EntityLen)
	}
	return 0
}

// IsVirtual reports whether p's bytes are not yet materialized in memory.
func IsVirtual(p *Packet) bool {
	return p.Content == nil && p.EntityLen > 0
}

// Join appends b's content onto a and returns a. It fails only when a
// cannot hold more content (a virtual or header/end packet has no content
// buffer to grow). Join never touches the prefix of either packet: the
// caller is expected to have already flushed any prefix before merging,
// matching original_source/src/packet.c's httpJoinPacket contract that
// joining is a content-buffer-only operation.
func Join(a, b *Packet) (*Packet, error) {
	if a == nil {
		return b, nil
	}
	if b == nil {
		return a, nil
	}
	if a.Content == nil {
		return nil, fmt.Errorf("pkt: join target has no growable content buffer")
	}
	if b.Content != nil {
		a.Content.Write(b.Content.Bytes())
	}
	a.Next = b.Next
	return a, nil
}

// Split returns a new packet holding bytes [offset, end) of p's content,
// truncating p in place to [0, offset). Split never touches p's prefix:
// the prefix belongs only to the first fragment (spec §4.1 "Split does
// not touch the prefix").
func Split(p *Packet, offset int) *Packet {
	if p.Content == nil || offset >= p.Content.Len() {
		return nil
	}
	all := p.Content.Bytes()
	tail := make([]byte, len(all)-offset)
	copy(tail, all[offset:])

	kept := make([]byte, offset)
	copy(kept, all[:offset])
	p.Content = bytes.NewBuffer(kept)

	rest := &Packet{
		Flags:   p.Flags,
		Content: bytes.NewBuffer(tail),
		Next:    p.Next,
	}
	p.Next = rest
	return rest
}
