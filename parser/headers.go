/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package parser

import (
	"bufio"
	"bytes"

	"golang.org/x/net/http/httpguts"

	"github.com/kestrel-http/engine/hdr"
	"github.com/kestrel-http/engine/herror"
)

// ReadHeaderBlock reads header lines up to the blank line terminating the
// header block (spec §4.3). Obsolete line-folding (a continuation line
// beginning with SP/HT) is tolerated and joined to the previous value, per
// RFC 2616 §2.2, since several of the original's clients still send it.
// Enforces limits.MaxHeaderCount and limits.MaxHeaderBytes, reporting
// LimitExceeded/431 on overrun rather than reading unboundedly.
func ReadHeaderBlock(br *bufio.Reader, limits Limits) (hdr.Header, error) {
	h := make(hdr.Header)
	count := 0
	total := 0
	var lastKey string

	for {
		line, err := readLimitedLine(br, limits.MaxLineLen)
		if err != nil {
			return nil, err
		}
		if len(line) == 0 {
			return h, nil
		}
		total += len(line)
		if total > limits.MaxHeaderBytes {
			return nil, errTooLong("header block exceeds configured limit", 431)
		}

		if isContinuation(line) && lastKey != "" {
			appendContinuation(h, lastKey, line)
			continue
		}

		count++
		if count > limits.MaxHeaderCount {
			return nil, errTooLong("too many header lines", 431)
		}

		key, value, ok := splitHeaderLine(line)
		if !ok {
			return nil, herror.New(herror.BadRequest, "malformed header line")
		}
		if !ValidateHeaderValue(value) {
			return nil, herror.New(herror.BadRequest, "invalid header field value")
		}
		h.Add(key, value)
		lastKey = key
	}
}

func isContinuation(line []byte) bool {
	return len(line) > 0 && (line[0] == ' ' || line[0] == '\t')
}

func appendContinuation(h hdr.Header, key string, line []byte) {
	trimmed := bytes.TrimLeft(line, " \t")
	vals := h[hdr.CanonicalHeaderKey(key)]
	if len(vals) == 0 {
		h.Add(key, string(trimmed))
		return
	}
	vals[len(vals)-1] = vals[len(vals)-1] + " " + string(trimmed)
}

// ValidateHeaderValue reports whether v is a legal header field value
// (RFC 7230 §3.2): no bare CR/LF/NUL, no control bytes other than
// horizontal tab. Delegates to golang.org/x/net/http/httpguts, grounded on
// badu-http/src/http/conn.go's paired ValidHeaderFieldName/
// ValidHeaderFieldValue check on every parsed header line (hdr's own
// ValidHeaderFieldName already covers the name half via splitHeaderLine
// above).
func ValidateHeaderValue(v string) bool {
	return httpguts.ValidHeaderFieldValue(v)
}

// ValidateHostHeader reports whether v is a legal Host header value (RFC
// 7230 §5.4), used when the request line carries no absolute-URI
// authority and the Host header is the only source of the target host
// (spec §6 "required response headers" implies a well-formed Host on the
// way in too). Grounded on the same badu-http/src/http/conn.go call site.
func ValidateHostHeader(v string) bool {
	return httpguts.ValidHostHeader(v)
}

func splitHeaderLine(line []byte) (key, value string, ok bool) {
	colon := bytes.IndexByte(line, ':')
	if colon <= 0 {
		return "", "", false
	}
	key = string(bytes.TrimSpace(line[:colon]))
	value = string(bytes.TrimSpace(line[colon+1:]))
	if !hdr.ValidHeaderFieldName(key) {
		return "", "", false
	}
	return key, value, true
}
