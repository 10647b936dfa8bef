/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package parser

import (
	"bufio"
	"bytes"
	"io"

	"github.com/kestrel-http/engine/herror"
)

// ChunkState is a step in the incoming chunked-transfer state machine of
// spec §4.3, grounded on original_source/src/chunkFilter.c's
// incomingChunkData: START reads a chunk-size line, DATA streams exactly
// that many bytes, and the cycle repeats until a zero-size chunk moves to
// EOF (trailers, then the terminating blank line).
type ChunkState int

const (
	ChunkStart ChunkState = iota
	ChunkData
	ChunkEOF
)

// ChunkDecoder turns a chunked-transfer body into a stream of content
// bytes. It is lenient on read (tolerates chunk-extensions per RFC 2616
// §3.6.1, as badu-http's removeChunkExtension does) and strict on
// malformed chunk-size lines, failing the connection with BadRequest (spec
// §4.3 edge case "non-hex or negative chunk size").
type ChunkDecoder struct {
	state     ChunkState
	remaining int64
}

// NewChunkDecoder returns a decoder positioned at the start of the first
// chunk.
func NewChunkDecoder() *ChunkDecoder { return &ChunkDecoder{state: ChunkStart} }

// Next returns the next slice of decoded body content, or io.EOF once the
// terminating chunk and trailer block have been consumed. A zero-length,
// non-EOF return never happens; callers loop until err != nil.
func (d *ChunkDecoder) Next(br *bufio.Reader, limits Limits) ([]byte, error) {
	for {
		switch d.state {
		case ChunkStart:
			size, err := d.readChunkSize(br, limits)
			if err != nil {
				return nil, err
			}
			if size == 0 {
				d.state = ChunkEOF
				continue
			}
			d.remaining = size
			d.state = ChunkData

		case ChunkData:
			n := d.remaining
			if n > 65536 {
				n = 65536
			}
			buf := make([]byte, n)
			read, err := io.ReadFull(br, buf)
			if err != nil {
				return nil, herror.Wrap(herror.CommsError, err, "reading chunk data")
			}
			d.remaining -= int64(read)
			if d.remaining == 0 {
				if err := consumeCRLF(br); err != nil {
					return nil, err
				}
				d.state = ChunkStart
			}
			return buf[:read], nil

		case ChunkEOF:
			if err := d.consumeTrailers(br, limits); err != nil {
				return nil, err
			}
			return nil, io.EOF
		}
	}
}

// readChunkSize reads one "<hex-size>[;ext...]\r\n" line (spec §4.3),
// tolerating and discarding chunk-extensions the same way
// removeChunkExtension does.
func (d *ChunkDecoder) readChunkSize(br *bufio.Reader, limits Limits) (int64, error) {
	line, err := readLimitedLine(br, limits.MaxLineLen)
	if err != nil {
		return 0, err
	}
	if semi := bytes.IndexByte(line, ';'); semi >= 0 {
		line = line[:semi]
	}
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return 0, herror.New(herror.BadRequest, "empty chunk size line")
	}
	size, err := parseHexSize(line)
	if err != nil {
		return 0, herror.New(herror.BadRequest, "bad chunk specification")
	}
	return size, nil
}

// parseHexSize parses a non-negative hex chunk size (grounded on badu-http's
// parseHexUint). More than 16 digits, or 16 digits with the top bit set
// (which would read as a negative int64), fail as too large.
func parseHexSize(v []byte) (int64, error) {
	var n int64
	for i, b := range v {
		var d byte
		switch {
		case '0' <= b && b <= '9':
			d = b - '0'
		case 'a' <= b && b <= 'f':
			d = b - 'a' + 10
		case 'A' <= b && b <= 'F':
			d = b - 'A' + 10
		default:
			return 0, herror.New(herror.BadRequest, "invalid byte in chunk length")
		}
		if i == 16 {
			return 0, herror.New(herror.BadRequest, "chunk length too large")
		}
		n <<= 4
		n |= int64(d)
	}
	if n < 0 {
		return 0, herror.New(herror.BadRequest, "chunk length too large")
	}
	return n, nil
}

func consumeCRLF(br *bufio.Reader) error {
	var crlf [2]byte
	if _, err := io.ReadFull(br, crlf[:]); err != nil {
		return herror.Wrap(herror.CommsError, err, "reading chunk terminator")
	}
	if crlf[0] != '\r' || crlf[1] != '\n' {
		return herror.New(herror.BadRequest, "missing chunk terminator")
	}
	return nil
}

// consumeTrailers reads (and discards) any trailer header lines up to and
// including the terminating blank line.
func (d *ChunkDecoder) consumeTrailers(br *bufio.Reader, limits Limits) error {
	for {
		line, err := readLimitedLine(br, limits.MaxLineLen)
		if err != nil {
			return err
		}
		if len(line) == 0 {
			return nil
		}
	}
}
