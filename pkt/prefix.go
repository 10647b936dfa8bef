/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package pkt

import "bytes"

// newPrefix builds a transport-framing prefix buffer, e.g. the
// "<CRLF><hex-size><CRLF>" chunk header the TX chunk filter prepends
// (spec §4.6). Exported as SetPrefix for callers outside this package.
func newPrefix(s string) *bytes.Buffer {
	b := &bytes.Buffer{}
	b.WriteString(s)
	return b
}

// SetPrefix attaches transport framing bytes to p, replacing any existing
// prefix. Prefix bytes never count toward Length.
func SetPrefix(p *Packet, s string) {
	p.Prefix = newPrefix(s)
}

// PrefixLen returns the byte count of p's prefix, used only by the
// connector's gather-write accounting, never by queue flow control.
func PrefixLen(p *Packet) int {
	if p == nil || p.Prefix == nil {
		return 0
	}
	return p.Prefix.Len()
}
