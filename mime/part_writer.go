/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package mime

import "errors"

// Write implements io.Writer, forwarding to the underlying MultipartWriter
// as long as this part is still the one currently being written.
func (p *part) Write(b []byte) (n int, err error) {
	if p.closed {
		return 0, errors.New("mime: Write after Close on multipart part")
	}
	if p.writer.lastpart != p {
		return 0, errors.New("mime: stale part written to")
	}
	if p.we != nil {
		return 0, p.we
	}
	n, err = p.writer.w.Write(b)
	if err != nil {
		p.we = err
	}
	return n, err
}

func (p *part) close() error {
	p.closed = true
	return p.we
}
