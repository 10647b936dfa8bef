/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package connection

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kestrel-http/engine/chunkfilter"
	"github.com/kestrel-http/engine/connector"
	"github.com/kestrel-http/engine/hdr"
	"github.com/kestrel-http/engine/herror"
	"github.com/kestrel-http/engine/parser"
	"github.com/kestrel-http/engine/pipeline"
	"github.com/kestrel-http/engine/pkt"
	"github.com/kestrel-http/engine/tx"
	"github.com/kestrel-http/engine/uri"
)

// Serve drives this connection for its whole life (spec §4.2, C6): reading
// and answering requests off Conn one at a time in the order the state
// diagram walks (BEGIN → CONNECTED → FIRST → PARSED → CONTENT → RUNNING →
// COMPLETE), reusing the socket for the next request until a close
// condition fires. Grounded on badu-http's conn.go serve() loop — one
// goroutine owns the connection for its whole life and blocks directly on
// the wire rather than polling an event loop.
func (c *Connection) Serve() {
	defer c.Conn.Close()
	if c.Service.Metrics != nil {
		c.Service.Metrics.ActiveConnections.Inc()
		defer c.Service.Metrics.ActiveConnections.Dec()
	}
	c.br = bufio.NewReaderSize(c.Conn, bufSizeFor(c.Limits.HeaderSize))

	for {
		c.State = StateBegin
		c.rx, c.tx, c.pipe, c.sc, c.form = nil, nil, nil, nil, nil

		again, err := c.serveOne()
		if err != nil {
			c.logFailure(err)
			return
		}
		if !again {
			return
		}
	}
}

func bufSizeFor(headerSize int) int {
	if headerSize <= 0 {
		return parser.DefaultLimits.MaxHeaderBytes
	}
	return headerSize
}

func (c *Connection) logFailure(err error) {
	if herr, ok := herror.As(err); ok {
		c.Log.Debug("connection closing on request error",
			zap.String("kind", herr.Kind.String()), zap.Error(err))
		return
	}
	c.Log.Debug("connection closing", zap.Error(err))
}

// serveOne runs one request/response cycle to completion, reporting
// whether the socket should be kept open for another (spec §4.12's
// keep-alive decision, folded with the keepAliveCount/requestCount
// ceilings of spec §6). A non-nil error always means the connection must
// close; a classified *herror.Error answered on the wire before returning
// is reported with a nil error instead (keep-alive then follows the
// error's disposition and the ceilings above), so a plain 4xx response is
// not treated as a connection failure.
func (c *Connection) serveOne() (bool, error) {
	c.State = StateConnected
	c.armReadDeadline(c.Limits.InactivityTimeout)

	rl, err := parser.ReadRequestLine(c.br, c.ParserLimits)
	if err != nil {
		if err == io.EOF {
			return false, nil
		}
		return false, err
	}
	c.State = StateFirst
	c.armReadDeadline(c.requestTimeout())

	header, err := parser.ReadHeaderBlock(c.br, c.ParserLimits)
	if err != nil {
		return false, err
	}

	parsedURI, err := uri.ParseRequestURI(rl.URI)
	if err != nil {
		return false, herror.Wrap(herror.BadRequest, err, "malformed request-target")
	}
	major, minor, ok := parseHTTPVersion(rl.Proto)
	if !ok {
		return false, herror.New(herror.BadRequest, "malformed protocol version")
	}

	chunked := strings.EqualFold(header.Get(hdr.TransferEncoding), "chunked")
	contentLength := int64(-1)
	if !chunked {
		if v := header.Get(hdr.ContentLength); v != "" {
			n, perr := strconv.ParseInt(v, 10, 64)
			if perr != nil || n < 0 {
				return false, herror.New(herror.BadRequest, "malformed Content-Length")
			}
			contentLength = n
		}
	}

	c.rx = &Rx{
		Method:        rl.Method,
		URI:           parsedURI,
		Proto:         rl.Proto,
		ProtoMajor:    major,
		ProtoMinor:    minor,
		Header:        header,
		ContentLength: contentLength,
		Chunked:       chunked,
		RemoteAddr:    c.RemoteAddr,
	}
	c.State = StateParsed

	wantsClose := strings.EqualFold(header.Get(hdr.Connection), "close")
	keepAlivesOn := c.Limits.KeepAliveCount <= 0 || c.KeepAliveCount+1 < c.Limits.KeepAliveCount
	c.tx = tx.New(rl.Method, major, minor, wantsClose, keepAlivesOn)

	if cerr, ok := herror.As(c.checkRequestLimits()); ok {
		return c.respondDirect(cerr)
	}

	host := parsedURI.Host
	if host == "" {
		if raw := header.Get(hdr.Host); raw != "" {
			if !parser.ValidateHostHeader(raw) {
				return false, herror.New(herror.BadRequest, "malformed Host header")
			}
			host = raw
		}
	}
	rt, found := c.Routes.Match(host, parsedURI.Path)
	if !found {
		return c.respondDirect(herror.NewStatus(herror.NotFound, 404, "no matching route"))
	}
	if !rt.Allows(rl.Method) {
		return c.respondDirect(herror.NewStatus(herror.BadRequest, 405, "method not allowed"))
	}

	handlerStage, filterStages, connectorStage, ok := rt.StageNames(c.Service.Stage)
	if !ok {
		return c.respondDirect(herror.Wrap(herror.Internal,
			fmt.Errorf("route %q names an unregistered stage", rt.Pattern), "resolving stages"))
	}

	c.sc = &pipeline.Scheduler{}
	if c.Service.Metrics != nil {
		c.sc.QueueSuspends = c.Service.Metrics.QueueSuspends
	}
	pipe, err := pipeline.Build(c.sc, handlerStage, filterStages, connectorStage, c.QueueMax)
	if err != nil {
		return false, herror.Wrap(herror.Internal, err, "building pipeline")
	}
	c.pipe = pipe
	c.wirePipeData(pipe)

	if err := pipe.Open(); err != nil {
		return false, err
	}
	c.State = StateContent
	if err := pipe.Start(); err != nil {
		return false, err
	}
	c.State = StateRunning

	if err := c.readBody(); err != nil {
		return false, err
	}
	if err := c.sc.Drain(); err != nil {
		return false, err
	}
	pipe.Close()
	c.State = StateComplete

	return c.nextRequestAllowed(), nil
}

// wirePipeData attaches the per-request collaborator each stage's queue
// needs (spec §3 "any per-request state lives on the Queue, never on the
// Stage"): the connector gets its transport.Conn/Dispatcher, the chunk
// filter gets a live read of the chunking decision tx.Finalize makes
// later, and every other stage (auth, upload, the file handler) gets the
// Exchange view of this request.
func (c *Connection) wirePipeData(pipe *pipeline.Pipeline) {
	ex := newExchange(c)
	connState := &connector.State{
		Conn:       c.Conn,
		Sender:     c.Sender,
		Dispatcher: c.Dispatch,
		Metrics:    c.Service.Metrics,
		Limit:      c.Limits.TransmissionSize,
	}
	chunkState := &chunkfilter.State{Enabled: func() bool {
		return c.tx != nil && c.tx.Chunking
	}}

	assign := func(q *pipeline.Queue) {
		switch q.Stage.Name {
		case "sendConnector":
			q.PipeData = connState
		case "chunkFilter":
			q.PipeData = chunkState
		default:
			q.PipeData = ex
		}
	}
	for q := pipe.RXHead; ; q = q.NextQ {
		assign(q)
		if q.NextQ == q || q.NextQ == pipe.RXHead {
			break
		}
	}
	for q := pipe.TXHead; ; q = q.NextQ {
		assign(q)
		if q.NextQ == q || q.NextQ == pipe.TXHead {
			break
		}
	}
}

// checkRequestLimits enforces the size ceilings of spec §6 that depend on
// the parsed Rx rather than raw wire bytes (header byte/line counts are
// already enforced inside the parser package).
func (c *Connection) checkRequestLimits() error {
	if c.Limits.ReceiveBodySize > 0 && c.rx.ContentLength > c.Limits.ReceiveBodySize {
		return herror.NewStatus(herror.LimitExceeded, 413, "request body exceeds configured receive_body_size")
	}
	if c.Limits.URISize > 0 && len(c.rx.URI.RequestURI()) > c.Limits.URISize {
		return herror.NewStatus(herror.LimitExceeded, 414, "request-target exceeds configured uri_size")
	}
	return nil
}

// readBody forwards the request body (if any) into the pipeline's RX head
// as a stream of DATA packets terminated by an END marker (spec §4.3/§4.2
// CONTENT state). A request with no body (no Content-Length, not
// chunked) still needs its END marker delivered so a terminal RX stage
// (the handler, or a filter like upload that waits for it) can act.
func (c *Connection) readBody() error {
	switch {
	case c.rx.Chunked:
		return c.readChunkedBody()
	case c.rx.ContentLength > 0:
		return c.readFixedBody(c.rx.ContentLength)
	default:
		return c.pipe.WriteRX(pkt.CreateEnd())
	}
}

func (c *Connection) readFixedBody(remaining int64) error {
	chunk := int64(c.Limits.ChunkSize)
	if chunk <= 0 {
		chunk = 8192
	}
	for remaining > 0 {
		want := chunk
		if want > remaining {
			want = remaining
		}
		buf := make([]byte, want)
		if _, err := io.ReadFull(c.br, buf); err != nil {
			return herror.Wrap(herror.CommsError, err, "reading request body")
		}
		c.rx.BytesReceived += int64(len(buf))
		if err := c.pipe.WriteRX(pkt.CreateData(buf)); err != nil {
			return err
		}
		remaining -= want
	}
	return c.pipe.WriteRX(pkt.CreateEnd())
}

func (c *Connection) readChunkedBody() error {
	dec := parser.NewChunkDecoder()
	for {
		buf, err := dec.Next(c.br, c.ParserLimits)
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		c.rx.BytesReceived += int64(len(buf))
		if c.Limits.ReceiveBodySize > 0 && c.rx.BytesReceived > c.Limits.ReceiveBodySize {
			return herror.NewStatus(herror.LimitExceeded, 413, "request body exceeds configured receive_body_size")
		}
		owned := make([]byte, len(buf))
		copy(owned, buf)
		if err := c.pipe.WriteRX(pkt.CreateData(owned)); err != nil {
			return err
		}
	}
	return c.pipe.WriteRX(pkt.CreateEnd())
}

// respondDirect answers a request that never reached pipeline
// construction (no matching route, an unregistered stage, a rejected
// method) straight over the wire using the already-built Tx, since no
// pipeline exists yet to carry HEADER/DATA packets through. The
// connection closes afterward only if err's disposition calls for it
// (spec §7); a plain 404/405 still allows keep-alive.
func (c *Connection) respondDirect(err *herror.Error) (bool, error) {
	status := err.Status()
	body := []byte("<title>" + strconv.Itoa(status) + "</title><h1>" + err.Message + "</h1>")
	c.tx.Status = status
	c.tx.Header.Set(hdr.ContentType, "text/html; charset=utf-8")
	header := c.tx.Finalize(body, true)
	if header != nil {
		if _, werr := c.Conn.Write(header.Prefix.Bytes()); werr != nil {
			return false, herror.Wrap(herror.CommsError, werr, "writing error response")
		}
	}
	if c.rx.Method != "HEAD" {
		if _, werr := c.Conn.Write(body); werr != nil {
			return false, herror.Wrap(herror.CommsError, werr, "writing error response body")
		}
	}
	c.State = StateComplete
	if err.Kind.Disposition() != herror.Continue || c.tx.CloseAfterReply {
		return false, nil
	}
	return c.nextRequestAllowed(), nil
}

// nextRequestAllowed folds tx's close decision together with the
// keepAliveCount/requestCount ceilings of spec §6, advancing both
// counters for the request just completed.
func (c *Connection) nextRequestAllowed() bool {
	if c.tx.CloseAfterReply {
		return false
	}
	c.RequestCount++
	c.KeepAliveCount++
	if c.Limits.RequestCount > 0 && c.RequestCount >= c.Limits.RequestCount {
		return false
	}
	if c.Limits.KeepAliveCount > 0 && c.KeepAliveCount >= c.Limits.KeepAliveCount {
		return false
	}
	return true
}

// armReadDeadline sets Conn's read deadline d from now, or clears it when
// d is zero (spec §6 "inactivityTimeout"/"requestTimeout").
func (c *Connection) armReadDeadline(d time.Duration) {
	if d <= 0 {
		c.Conn.SetReadDeadline(time.Time{})
		return
	}
	c.Conn.SetReadDeadline(time.Now().Add(d))
}

// parseHTTPVersion parses "HTTP/1.1"-shaped protocol strings (RFC 7230
// §2.6); unlike the rest of the wire parsing this one small piece of
// mechanical string splitting has no ecosystem library in the example
// pack worth reaching for.
func parseHTTPVersion(proto string) (major, minor int, ok bool) {
	const prefix = "HTTP/"
	if !strings.HasPrefix(proto, prefix) {
		return 0, 0, false
	}
	v := proto[len(prefix):]
	dot := strings.IndexByte(v, '.')
	if dot < 0 {
		return 0, 0, false
	}
	maj, err1 := strconv.Atoi(v[:dot])
	min, err2 := strconv.Atoi(v[dot+1:])
	if err1 != nil || err2 != nil || maj < 0 || min < 0 {
		return 0, 0, false
	}
	return maj, min, true
}
