/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package chunkfilter

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kestrel-http/engine/pipeline"
	"github.com/kestrel-http/engine/pkt"
)

func ring(enabled bool) (*pipeline.Queue, *pipeline.Queue) {
	sched := &pipeline.Scheduler{}
	sink := pipeline.NewQueue(sched, &pipeline.Stage{Name: "sendConnector", Kind: pipeline.KindConnector}, pipeline.TX, nil, 1<<20)
	q := pipeline.NewQueue(sched, NewStage(), pipeline.TX, sink, 1<<20)
	q.PipeData = &State{Enabled: func() bool { return enabled }}
	return q, sink
}

func TestOutgoingFramesDataWhenEnabled(t *testing.T) {
	q, sink := ring(true)
	require.NoError(t, q.Deliver(pkt.CreateData([]byte("hello"))))

	p := sink.First()
	require.NotNil(t, p.Prefix)
	require.Equal(t, "\r\n5\r\n", p.Prefix.String())
	require.Equal(t, "hello", p.Content.String())
}

func TestOutgoingTerminatesWithZeroChunkOnEnd(t *testing.T) {
	q, sink := ring(true)
	require.NoError(t, q.Deliver(pkt.CreateEnd()))

	p := sink.First()
	require.Equal(t, "\r\n0\r\n\r\n", p.Prefix.String())
}

func TestOutgoingPassesThroughWhenDisabled(t *testing.T) {
	q, sink := ring(false)
	require.NoError(t, q.Deliver(pkt.CreateData([]byte("hello"))))

	p := sink.First()
	require.Nil(t, p.Prefix)
	require.Equal(t, "hello", p.Content.String())
}

func TestOutgoingNeverFramesHeaderPacket(t *testing.T) {
	q, sink := ring(true)
	h := pkt.CreateHeader()
	h.Content.WriteString("HTTP/1.1 200 OK\r\n\r\n")
	require.NoError(t, q.Deliver(h))

	p := sink.First()
	require.Nil(t, p.Prefix)
}
