/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

// Package upload implements the RX upload filter named in spec §2's data
// flow ("RX pipeline ... carries body through filters (chunked, auth,
// upload) to handler") and wires it to spec §6's uploadSize limit.
// Grounded on badu-http's mime package (kept in this repo as `mime`,
// generalized off net/http's multipart reader/writer) for the actual
// multipart decode; the filter shape itself — buffering a request body
// behind a Stage's Open/Incoming callbacks until the handler needs it —
// follows auth.NewFilter's pattern of a filter whose real work happens at
// a natural request boundary rather than packet-by-packet.
package upload

import (
	"bytes"
	"strings"

	"github.com/kestrel-http/engine/hdr"
	"github.com/kestrel-http/engine/herror"
	"github.com/kestrel-http/engine/mime"
	"github.com/kestrel-http/engine/pipeline"
	"github.com/kestrel-http/engine/pkt"
)

// Exchange is the narrow view of a request the upload filter needs,
// satisfied by connection.Exchange (kept as an interface here for the
// same reason auth.Exchange is: connection depends on upload, so upload
// must not import connection).
type Exchange interface {
	RequestHeader() hdr.Header
	UploadSize() int64
	SetForm(f *mime.Form)
}

const multipartPrefix = "multipart/form-data"

// defaultMaxMemory bounds how much of a multipart form mime.ReadForm will
// keep resident rather than spooling to a temp file (badu-http's own
// net/http-derived default, kept unchanged: 32 MiB).
const defaultMaxMemory = 32 << 20

// state is the per-request buffering the filter's callbacks share,
// attached to the RX queue's PipeData by the connection package when the
// pipeline is built.
type state struct {
	ex       Exchange
	boundary string
	buf      bytes.Buffer
	limit    int64
}

// NewStage returns the single, shared upload Stage. Match declines the
// filter entirely for requests that aren't a multipart body, so a plain
// form-urlencoded or JSON POST never pays for a filter queue.
func NewStage() *pipeline.Stage {
	return &pipeline.Stage{
		Name: "uploadFilter",
		Kind: pipeline.KindFilter,
		Match: func(q *pipeline.Queue, dir pipeline.Direction) bool {
			if dir != pipeline.RX {
				return false
			}
			ex, ok := q.PipeData.(Exchange)
			if !ok {
				return false
			}
			ct := ex.RequestHeader().Get(hdr.ContentType)
			return strings.HasPrefix(ct, multipartPrefix)
		},
		Open: func(q *pipeline.Queue) error {
			ex, ok := q.PipeData.(Exchange)
			if !ok {
				return nil
			}
			ct := ex.RequestHeader().Get(hdr.ContentType)
			st := &state{ex: ex, boundary: boundaryOf(ct), limit: ex.UploadSize()}
			q.PipeData = st
			return nil
		},
		Incoming: incoming,
	}
}

// incoming buffers body bytes up to the configured upload limit, parsing
// the full multipart form once the handler's END packet arrives and
// handing it to the exchange before relaying END on to the handler (spec
// §9 "Absent callbacks default to pass packet through" — the filter still
// must deliver END so the handler's Start/Close lifecycle completes).
func incoming(q *pipeline.Queue, p *pkt.Packet) error {
	st, ok := q.PipeData.(*state)
	if !ok {
		return q.NextQ.Deliver(p)
	}
	if p.Flags&pkt.FlagEnd != 0 {
		form, err := parseForm(st)
		if err != nil {
			return err
		}
		st.ex.SetForm(form)
		return q.NextQ.Deliver(p)
	}
	if p.Content != nil {
		if st.limit > 0 && int64(st.buf.Len()+p.Content.Len()) > st.limit {
			return herror.NewStatus(herror.LimitExceeded, 413, "upload exceeds configured upload_size")
		}
		st.buf.Write(p.Content.Bytes())
	}
	return nil
}

func parseForm(st *state) (*mime.Form, error) {
	if st.boundary == "" {
		return nil, herror.New(herror.BadRequest, "multipart request missing boundary parameter")
	}
	r := mime.NewMultipartReader(bytes.NewReader(st.buf.Bytes()), st.boundary)
	form, err := r.ReadForm(defaultMaxMemory)
	if err != nil {
		return nil, herror.Wrap(herror.BadRequest, err, "malformed multipart body")
	}
	return form, nil
}

// boundaryOf extracts the boundary parameter from a Content-Type value
// via mime.MIMEParseMediaType, the same RFC 2045 media-type parser the
// mime package's own Content-Disposition handling uses.
func boundaryOf(contentType string) string {
	_, params, err := mime.MIMEParseMediaType(contentType)
	if err != nil {
		return ""
	}
	return params["boundary"]
}
