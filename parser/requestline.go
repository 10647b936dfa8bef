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

// RequestLine is the parsed first line of an HTTP/1.x request (spec §4.3).
type RequestLine struct {
	Method string
	URI    string
	Proto  string
}

// ReadRequestLine reads and parses one request line terminated by CRLF
// (spec §4.3 requires a literal CRLF, not a bare LF, on the request line
// itself — the original C parser is lenient about body lines but strict
// here). Blank lines preceding the request line (permitted by RFC 2616
// §4.1 as client leniency) are skipped.
func ReadRequestLine(br *bufio.Reader, limits Limits) (RequestLine, error) {
	for {
		line, err := readLimitedLine(br, limits.MaxLineLen)
		if err != nil {
			return RequestLine{}, err
		}
		if len(line) == 0 {
			continue
		}
		// line is a prefix of the buffered line, so the byte just past it
		// is the '\r' of a CRLF terminator or the '\n' of a bare LF.
		if line[:len(line)+1][len(line)] != '\r' {
			return RequestLine{}, herror.New(herror.BadRequest, "request line not terminated by CRLF")
		}
		return parseRequestLine(line, limits)
	}
}

func parseRequestLine(line []byte, limits Limits) (RequestLine, error) {
	sp1 := bytes.IndexByte(line, ' ')
	if sp1 < 0 {
		return RequestLine{}, herror.New(herror.BadRequest, "malformed request line")
	}
	rest := line[sp1+1:]
	sp2 := bytes.IndexByte(rest, ' ')
	if sp2 < 0 {
		return RequestLine{}, herror.New(herror.BadRequest, "malformed request line")
	}
	method := string(line[:sp1])
	uri := string(rest[:sp2])
	proto := string(rest[sp2+1:])

	if len(uri) > limits.MaxURILen {
		return RequestLine{}, errTooLong("request-target exceeds limit", 414)
	}
	if method == "" || uri == "" || proto == "" {
		return RequestLine{}, herror.New(herror.BadRequest, "malformed request line")
	}
	return RequestLine{Method: method, URI: uri, Proto: proto}, nil
}

// readLimitedLine reads one CRLF-terminated line, stripping the trailing
// CRLF (or lone LF, tolerated per RFC 2616 §19.3), and fails with
// LimitExceeded rather than growing without bound (spec §4.3).
func readLimitedLine(br *bufio.Reader, maxLen int) ([]byte, error) {
	line, err := br.ReadSlice('\n')
	if err != nil {
		if err == bufio.ErrBufferFull || len(line) > maxLen {
			return nil, errTooLong("line exceeds configured limit", 431)
		}
		if err == io.EOF {
			// A short read (even mid-line) only ever means "not enough
			// bytes buffered yet" here: callers feed a snapshot of
			// already-received bytes, never a live socket, so EOF can
			// never mean the peer closed — that is detected separately
			// by the connection driver's own Conn.Read.
			return nil, io.EOF
		}
		return nil, herror.Wrap(herror.CommsError, err, "reading line")
	}
	if len(line) > maxLen {
		return nil, errTooLong("line exceeds configured limit", 431)
	}
	return trimCRLF(line), nil
}

func trimCRLF(b []byte) []byte {
	n := len(b)
	if n > 0 && b[n-1] == '\n' {
		n--
		if n > 0 && b[n-1] == '\r' {
			n--
		}
	}
	return b[:n]
}
