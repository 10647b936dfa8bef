/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package upload

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kestrel-http/engine/hdr"
	"github.com/kestrel-http/engine/herror"
	"github.com/kestrel-http/engine/mime"
	"github.com/kestrel-http/engine/pipeline"
	"github.com/kestrel-http/engine/pkt"
)

type fakeExchange struct {
	header hdr.Header
	limit  int64
	form   *mime.Form
}

func (f *fakeExchange) RequestHeader() hdr.Header { return f.header }
func (f *fakeExchange) UploadSize() int64         { return f.limit }
func (f *fakeExchange) SetForm(form *mime.Form)   { f.form = form }

const multipartBody = "--XYZ\r\n" +
	"Content-Disposition: form-data; name=\"field\"\r\n\r\n" +
	"value\r\n" +
	"--XYZ--\r\n"

func buildQueue(ex *fakeExchange) (*pipeline.Queue, *pipeline.Queue) {
	sched := &pipeline.Scheduler{}
	sink := pipeline.NewQueue(sched, &pipeline.Stage{Name: "fileHandler", Kind: pipeline.KindHandler}, pipeline.RX, nil, 1<<20)
	q := pipeline.NewQueue(sched, NewStage(), pipeline.RX, sink, 1<<20)
	q.PipeData = ex
	return q, sink
}

func TestMatchDeclinesNonMultipart(t *testing.T) {
	ex := &fakeExchange{header: hdr.Header{hdr.ContentType: []string{"application/json"}}}
	sched := &pipeline.Scheduler{}
	q := pipeline.NewQueue(sched, NewStage(), pipeline.RX, nil, 1<<20)
	q.PipeData = ex
	require.False(t, q.Stage.Match(q, pipeline.RX))
}

func TestMatchAcceptsMultipart(t *testing.T) {
	ex := &fakeExchange{header: hdr.Header{hdr.ContentType: []string{"multipart/form-data; boundary=XYZ"}}}
	sched := &pipeline.Scheduler{}
	q := pipeline.NewQueue(sched, NewStage(), pipeline.RX, nil, 1<<20)
	q.PipeData = ex
	require.True(t, q.Stage.Match(q, pipeline.RX))
}

func TestIncomingParsesFormOnEnd(t *testing.T) {
	ex := &fakeExchange{header: hdr.Header{hdr.ContentType: []string{"multipart/form-data; boundary=XYZ"}}, limit: 1 << 20}
	q, sink := buildQueue(ex)
	require.NoError(t, q.Stage.Open(q))

	require.NoError(t, q.Deliver(pkt.CreateData([]byte(multipartBody))))
	require.NoError(t, q.Deliver(pkt.CreateEnd()))

	require.NotNil(t, ex.form)
	require.Equal(t, []string{"value"}, ex.form.Value["field"])
	require.NotNil(t, sink.First())
}

func TestIncomingRejectsOversizedBody(t *testing.T) {
	ex := &fakeExchange{header: hdr.Header{hdr.ContentType: []string{"multipart/form-data; boundary=XYZ"}}, limit: 4}
	q, _ := buildQueue(ex)
	require.NoError(t, q.Stage.Open(q))

	err := q.Deliver(pkt.CreateData([]byte(multipartBody)))
	require.Error(t, err)
	herr, ok := herror.As(err)
	require.True(t, ok)
	require.Equal(t, herror.LimitExceeded, herr.Kind)
}
