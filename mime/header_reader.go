/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package mime

import (
	"bufio"
	"bytes"

	. "github.com/kestrel-http/engine/hdr"
)

// readPartHeader reads one part's "Key: Value" header block terminated
// by a blank line, folding obsolete continuation lines the same way the
// request header block does (spec §4.3). A multipart part's own headers
// are bounded by the enclosing upload's size limit rather than a
// dedicated line-count cap, so no Limits are threaded through here.
func readPartHeader(br *bufio.Reader) (Header, error) {
	h := make(Header)
	var lastKey string
	for {
		line, err := br.ReadSlice('\n')
		if err != nil {
			return nil, err
		}
		line = trimCRLF(line)
		if len(line) == 0 {
			return h, nil
		}
		if (line[0] == ' ' || line[0] == '\t') && lastKey != "" {
			trimmed := bytes.TrimLeft(line, " \t")
			vals := h[CanonicalHeaderKey(lastKey)]
			if len(vals) == 0 {
				h.Add(lastKey, string(trimmed))
			} else {
				vals[len(vals)-1] = vals[len(vals)-1] + " " + string(trimmed)
			}
			continue
		}
		colon := bytes.IndexByte(line, ':')
		if colon <= 0 {
			return nil, errMalformedPartHeader
		}
		key := string(bytes.TrimSpace(line[:colon]))
		value := string(bytes.TrimSpace(line[colon+1:]))
		h.Add(key, value)
		lastKey = key
	}
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
