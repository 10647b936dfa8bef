/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

// Package parser implements the request-line, header-block and chunked-body
// decoding of spec §4.3 (C5 "Parser"). Grounded on badu-http's
// utils_chunks.go (readChunkLine, removeChunkExtension, parseHexUint) for
// line-reading texture and original_source/src/chunkFilter.c for the
// chunk-framing state machine itself; limit defaults come from
// original_source/src/include/http.h's "balanced" tuning profile
// (HTTP_MAX_HEADERS, HTTP_MAX_NUM_HEADERS, HTTP_MAX_CHUNK).
package parser

import "github.com/kestrel-http/engine/herror"

// Limits bounds what ReadRequestLine and ReadHeaderBlock will accept before
// failing the connection (spec §4.3 "configurable limits").
type Limits struct {
	MaxLineLen     int // longest single request/header line, incl. CRLF
	MaxURILen      int // longest request-target
	MaxHeaderBytes int // total bytes across all header lines
	MaxHeaderCount int // number of header lines
}

// DefaultLimits mirrors http.h's "balanced" profile (8KiB headers, 40
// header lines, request lines capped generously below MaxHeaderBytes).
var DefaultLimits = Limits{
	MaxLineLen:     8192,
	MaxURILen:      4096,
	MaxHeaderBytes: 8192,
	MaxHeaderCount: 40,
}

// errTooLong reports a specific limit breach under herror.LimitExceeded,
// with status carrying the precise wire code (414 request-target, 431
// header block) rather than the Kind's generic default.
func errTooLong(what string, status int) *herror.Error {
	return herror.NewStatus(herror.LimitExceeded, status, what)
}
