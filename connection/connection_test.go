/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package connection

import (
	"bufio"
	"crypto/tls"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kestrel-http/engine/config"
	"github.com/kestrel-http/engine/connector"
	"github.com/kestrel-http/engine/content"
	"github.com/kestrel-http/engine/parser"
	"github.com/kestrel-http/engine/pipeline"
	"github.com/kestrel-http/engine/route"
	"github.com/kestrel-http/engine/service"
	"github.com/kestrel-http/engine/trace"
	"github.com/kestrel-http/engine/transport"
)

// fakeConn adapts one end of a net.Pipe to transport.Conn with blocking,
// non-TLS semantics — enough to drive Connection.Serve end to end without
// a real socket.
type fakeConn struct {
	net.Conn
}

func (f fakeConn) Writev(bufs [][]byte) (int64, error) {
	var total int64
	for _, b := range bufs {
		n, err := f.Conn.Write(b)
		total += int64(n)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func (f fakeConn) SetBlocking(bool) error { return nil }

func (f fakeConn) UpgradeTLS(*tls.Config) (transport.Conn, error) {
	return f, nil
}

func (fakeConn) IsTLS() bool { return false }

// SendFile lets fakeConn double as a transport.FileSender so the connector
// can exercise its zero-copy path against an *os.File-backed response, the
// same as nettransport.Conn does over a real socket.
func (f fakeConn) SendFile(file *os.File, pos, count int64) (int64, error) {
	return io.Copy(f.Conn, io.NewSectionReader(file, pos, count))
}

func newTestService(t *testing.T, root string) *service.Service {
	t.Helper()
	limits := config.Defaults(config.ProfileBalanced)
	svc, err := service.New(zap.NewNop(), limits, prometheus.NewRegistry())
	require.NoError(t, err)
	svc.RegisterStage(content.NewHandler(content.Dir(root)))
	svc.RegisterStage(connector.NewStage())
	return svc
}

func newTestRoutes() *route.Table {
	routes := route.NewTable()
	routes.Handle("/", route.Route{
		Pattern:   "/",
		Handler:   "fileHandler",
		Connector: "sendConnector",
		Methods:   []string{"GET", "HEAD"},
	})
	return routes
}

func TestServeAnswersStaticFileRequest(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "hello.txt"), []byte("hello world"), 0o644))

	svc := newTestService(t, dir)
	routes := newTestRoutes()

	clientSide, serverSide := net.Pipe()
	defer clientSide.Close()
	fc := fakeConn{serverSide}

	conn := &Connection{
		Service:      svc,
		Routes:       routes,
		Conn:         fc,
		Sender:       fc,
		Dispatch:     nil,
		Limits:       svc.Limits,
		ParserLimits: parser.DefaultLimits,
		QueueMax:     pipeline.DefaultStageBufferSize,
		ID:           "test",
		RemoteAddr:   "127.0.0.1:0",
		Log:          zap.NewNop(),
		Trace:        trace.New(zap.NewNop(), 1, *trace.NewFilter(), *trace.NewFilter()),
	}
	done := make(chan struct{})
	go func() {
		conn.Serve()
		close(done)
	}()

	_, err := clientSide.Write([]byte("GET /hello.txt HTTP/1.1\r\nHost: example.test\r\nConnection: close\r\n\r\n"))
	require.NoError(t, err)

	clientSide.SetReadDeadline(time.Now().Add(5 * time.Second))
	resp, err := http.ReadResponse(bufio.NewReader(clientSide), nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, 200, resp.StatusCode)

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after a close-requested response")
	}
}

func TestServeAnswers404ForMissingFile(t *testing.T) {
	dir := t.TempDir()
	svc := newTestService(t, dir)
	routes := newTestRoutes()

	clientSide, serverSide := net.Pipe()
	defer clientSide.Close()
	fc := fakeConn{serverSide}

	conn := &Connection{
		Service:      svc,
		Routes:       routes,
		Conn:         fc,
		Sender:       fc,
		Limits:       svc.Limits,
		ParserLimits: parser.DefaultLimits,
		QueueMax:     pipeline.DefaultStageBufferSize,
		ID:           "test",
		RemoteAddr:   "127.0.0.1:0",
		Log:          zap.NewNop(),
		Trace:        trace.New(zap.NewNop(), 2, *trace.NewFilter(), *trace.NewFilter()),
	}
	go conn.Serve()

	_, err := clientSide.Write([]byte("GET /nope.txt HTTP/1.1\r\nHost: example.test\r\nConnection: close\r\n\r\n"))
	require.NoError(t, err)

	clientSide.SetReadDeadline(time.Now().Add(5 * time.Second))
	resp, err := http.ReadResponse(bufio.NewReader(clientSide), nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, 404, resp.StatusCode)
}
