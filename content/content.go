/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package content

import (
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/kestrel-http/engine/hdr"
	"github.com/kestrel-http/engine/herror"
	"github.com/kestrel-http/engine/mime"
	"github.com/kestrel-http/engine/pipeline"
	"github.com/kestrel-http/engine/pkt"
	"github.com/kestrel-http/engine/sniff"
)

// Exchange is the narrow view of a request/response this handler needs,
// satisfied by connection.Exchange (kept as an interface so connection
// can depend on content without content importing connection back).
type Exchange interface {
	Method() string
	Path() string
	RequestHeader() hdr.Header
	ResponseHeader() hdr.Header
	SetStatus(code int)
	SetLength(n int64)
	Finalize(preview []byte, handlerDone bool) error
	WriteBody(p *pkt.Packet) error
}

// NewHandler returns the shared static-file KindHandler stage serving out
// of fs. A route selects it by name the same way it selects any other
// stage (route.Route.Handler), so multiple routes can each bind their own
// Dir without needing separate Stage values.
func NewHandler(fs FileSystem) *pipeline.Stage {
	return &pipeline.Stage{
		Name: "fileHandler",
		Kind: pipeline.KindHandler,
		Start: func(q *pipeline.Queue) error {
			ex, ok := q.PipeData.(Exchange)
			if !ok {
				return nil
			}
			return serve(ex, fs)
		},
	}
}

func serve(ex Exchange, fs FileSystem) error {
	method := ex.Method()
	if method != "GET" && method != "HEAD" {
		return writeError(ex, herror.NewStatus(herror.BadRequest, 405, "method not allowed"))
	}

	upath := ex.Path()
	if upath == "" || upath[0] != '/' {
		upath = "/" + upath
	}
	f, err := fs.Open(upath)
	if err != nil {
		if os.IsNotExist(err) {
			return writeError(ex, herror.NewStatus(herror.NotFound, 404, "not found"))
		}
		return writeError(ex, herror.Wrap(herror.Internal, err, "opening file"))
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return writeError(ex, herror.Wrap(herror.Internal, err, "stat file"))
	}
	if fi.IsDir() {
		return writeError(ex, herror.NewStatus(herror.NotFound, 404, "not found"))
	}

	osFile, isOSFile := f.(*os.File)

	if notModified(ex, fi) {
		ex.ResponseHeader().Del(hdr.ContentType)
		ex.SetStatus(304)
		return ex.Finalize(nil, true)
	}

	ctype := contentTypeFor(upath, f)
	size := fi.Size()
	ex.ResponseHeader().Set(hdr.LastModified, fi.ModTime().UTC().Format(hdr.TimeFormat))
	ex.ResponseHeader().Set(hdr.AcceptRanges, "bytes")
	ex.ResponseHeader().Set(hdr.ContentType, ctype)

	rangeHdr := ex.RequestHeader().Get(hdr.Range)
	start, length := int64(0), size
	ranged := false
	if rangeHdr != "" {
		r, rerr := parseRange(rangeHdr, size)
		switch rerr {
		case nil:
			start, length = r.start, r.length
			ranged = true
			ex.ResponseHeader().Set(hdr.ContentRange, r.contentRange(size))
			ex.SetStatus(206)
		case errNoOverlap:
			ex.ResponseHeader().Set(hdr.ContentRange, "bytes */"+strconv.FormatInt(size, 10))
			return writeError(ex, herror.NewStatus(herror.BadRequest, 416, "requested range not satisfiable"))
		default:
			// A malformed Range header is ignored per RFC 7233 §3.1,
			// falling back to the full entity.
		}
	}

	ex.SetLength(length)
	if err := ex.Finalize(nil, false); err != nil {
		return err
	}
	if method == "HEAD" || length == 0 {
		return ex.WriteBody(pkt.CreateEnd())
	}

	bodyFlag := pkt.FlagData
	if ranged {
		bodyFlag = pkt.FlagRange
	}
	var body *pkt.Packet
	if isOSFile {
		body = pkt.CreateEntityFile(osFile, start, length)
		body.Flags = bodyFlag
	} else {
		body = pkt.CreateData(nil)
		body.Flags = bodyFlag
		if _, err := f.Seek(start, io.SeekStart); err != nil {
			return writeError(ex, herror.Wrap(herror.Internal, err, "seeking file"))
		}
		if _, err := io.CopyN(body.Content, f, length); err != nil && err != io.EOF {
			return writeError(ex, herror.Wrap(herror.Internal, err, "reading file"))
		}
	}
	if err := ex.WriteBody(body); err != nil {
		return err
	}
	return ex.WriteBody(pkt.CreateEnd())
}

// notModified implements the If-None-Match / If-Modified-Since
// conditional-GET check (RFC 7232), favoring If-None-Match when both are
// present the way net/http's checkIfNoneMatch ordering does.
func notModified(ex Exchange, fi os.FileInfo) bool {
	if inm := ex.RequestHeader().Get(hdr.IfNoneMatch); inm != "" {
		return false // no ETag is computed for a plain file entity here
	}
	if ims := ex.RequestHeader().Get(hdr.IfModifiedSince); ims != "" {
		t, err := hdr.ParseTime(ims)
		if err == nil && !fi.ModTime().Truncate(time.Second).After(t) {
			return true
		}
	}
	return false
}

func contentTypeFor(upath string, f File) string {
	if ext := extOf(upath); ext != "" {
		if ct := mime.MIMETypeByExtension(ext); ct != "" {
			return ct
		}
	}
	var buf [512]byte
	n, _ := io.ReadFull(f, buf[:])
	f.Seek(0, io.SeekStart)
	return sniff.DetectContentType(buf[:n])
}

func extOf(upath string) string {
	if i := strings.LastIndexByte(upath, '.'); i >= 0 && strings.LastIndexByte(upath, '/') < i {
		return upath[i:]
	}
	return ""
}

func writeError(ex Exchange, err *herror.Error) error {
	ex.SetStatus(err.Status())
	ex.ResponseHeader().Set(hdr.ContentType, "text/html; charset=utf-8")
	body := []byte("<title>" + strconv.Itoa(err.Status()) + "</title><h1>" + err.Message + "</h1>")
	if ferr := ex.Finalize(body, true); ferr != nil {
		return ferr
	}
	if werr := ex.WriteBody(pkt.CreateData(body)); werr != nil {
		return werr
	}
	return ex.WriteBody(pkt.CreateEnd())
}
