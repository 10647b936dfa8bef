/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package content

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kestrel-http/engine/hdr"
	"github.com/kestrel-http/engine/pkt"
)

type fakeExchange struct {
	method         string
	path           string
	reqHeader      hdr.Header
	respHeader     hdr.Header
	status         int
	length         int64
	finalizeCalls  int
	finalizeDone   bool
	finalizePrev   []byte
	written        []*pkt.Packet
}

func newFakeExchange(method, path string) *fakeExchange {
	return &fakeExchange{
		method:     method,
		path:       path,
		reqHeader:  hdr.Header{},
		respHeader: hdr.Header{},
	}
}

func (f *fakeExchange) Method() string             { return f.method }
func (f *fakeExchange) Path() string                { return f.path }
func (f *fakeExchange) RequestHeader() hdr.Header   { return f.reqHeader }
func (f *fakeExchange) ResponseHeader() hdr.Header  { return f.respHeader }
func (f *fakeExchange) SetStatus(code int)          { f.status = code }
func (f *fakeExchange) SetLength(n int64)           { f.length = n }
func (f *fakeExchange) Finalize(preview []byte, handlerDone bool) error {
	f.finalizeCalls++
	f.finalizeDone = handlerDone
	f.finalizePrev = preview
	return nil
}
func (f *fakeExchange) WriteBody(p *pkt.Packet) error {
	f.written = append(f.written, p)
	return nil
}

func writeFile(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
}

func TestServeReturns200ForExistingFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "hello.txt", "hello world")

	ex := newFakeExchange("GET", "/hello.txt")
	require.NoError(t, serve(ex, Dir(dir)))

	require.Equal(t, int64(11), ex.length)
	require.Len(t, ex.written, 2) // body + end
	require.Equal(t, "text/plain; charset=utf-8", ex.respHeader.Get(hdr.ContentType))
}

func TestServeReturns404ForMissingFile(t *testing.T) {
	dir := t.TempDir()
	ex := newFakeExchange("GET", "/missing.txt")
	require.NoError(t, serve(ex, Dir(dir)))
	require.Equal(t, 404, ex.status)
}

func TestServeRejectsDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))
	ex := newFakeExchange("GET", "/sub")
	require.NoError(t, serve(ex, Dir(dir)))
	require.Equal(t, 404, ex.status)
}

func TestServeRejectsUnsupportedMethod(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "hello.txt", "hello")
	ex := newFakeExchange("POST", "/hello.txt")
	require.NoError(t, serve(ex, Dir(dir)))
	require.Equal(t, 405, ex.status)
}

func TestServeHeadOmitsBody(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "hello.txt", "hello world")
	ex := newFakeExchange("HEAD", "/hello.txt")
	require.NoError(t, serve(ex, Dir(dir)))
	require.Len(t, ex.written, 1) // end only
}

func TestServeHandlesRangeRequest(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "hello.txt", "hello world")
	ex := newFakeExchange("GET", "/hello.txt")
	ex.reqHeader.Set(hdr.Range, "bytes=0-4")
	require.NoError(t, serve(ex, Dir(dir)))

	require.Equal(t, 206, ex.status)
	require.Equal(t, int64(5), ex.length)
	require.Equal(t, "bytes 0-4/11", ex.respHeader.Get(hdr.ContentRange))
}
