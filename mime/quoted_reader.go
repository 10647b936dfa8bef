/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package mime

import (
	"bytes"
	"io"
)

// Read decodes quoted-printable data a line at a time (RFC 2045 §6.7): a
// trailing "=" immediately before the line break is a soft line break
// (elided, no newline emitted), trailing whitespace before a line break
// is insignificant and stripped, and every other "=XX" is an encoded
// byte. Used for Content-Transfer-Encoding: quoted-printable multipart
// parts (spec §4.1's upload filter collaborator).
func (q *QuotedReader) Read(p []byte) (n int, err error) {
	for len(p) > 0 {
		if len(q.line) == 0 {
			if q.rerr != nil {
				return n, q.rerr
			}
			var raw []byte
			raw, q.rerr = q.br.ReadSlice('\n')
			if len(raw) == 0 {
				continue
			}
			q.line, err = unescapeQPLine(raw)
			if err != nil {
				q.rerr = err
			}
			continue
		}
		nn := copy(p, q.line)
		p = p[nn:]
		q.line = q.line[nn:]
		n += nn
	}
	return n, nil
}

func unescapeQPLine(line []byte) ([]byte, error) {
	hasLF := bytes.HasSuffix(line, lf)
	body := line
	if hasLF {
		body = body[:len(body)-1]
	}
	body = bytes.TrimSuffix(body, []byte("\r"))
	body = bytes.TrimRight(body, " \t")

	var out bytes.Buffer
	for i := 0; i < len(body); i++ {
		c := body[i]
		if c != '=' {
			out.WriteByte(c)
			continue
		}
		if i == len(body)-1 {
			// Soft line break: drop the trailing "=" and suppress the
			// newline this line would otherwise have carried.
			return out.Bytes(), nil
		}
		if i+2 >= len(body) {
			return nil, io.ErrUnexpectedEOF
		}
		b, err := readHexByte(body[i+1 : i+3])
		if err != nil {
			return nil, err
		}
		out.WriteByte(b)
		i += 2
	}
	if hasLF {
		out.WriteByte('\n')
	}
	return out.Bytes(), nil
}
