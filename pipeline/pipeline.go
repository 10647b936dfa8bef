/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package pipeline

import (
	"fmt"

	"github.com/kestrel-http/engine/pkt"
)

// Pipeline is the ordered chain of RX and TX queues for one request (spec
// §3 "Pipeline"), composed from a handler, zero or more filters, and a
// terminal connector (spec §4.2/§4.5). Invariants enforced by Build: at
// most one handler, exactly one connector at the end of TX, and a filter
// may decline itself via Stage.Match without disturbing the rest of the
// chain.
type Pipeline struct {
	Scheduler *Scheduler
	RXHead    *Queue
	TXHead    *Queue
	Handler   *Queue
	Connector *Queue
}

// Build assembles a pipeline: filters (in order) feed the handler on RX and
// drain from it on TX, with connector terminal on TX. Each stage may
// decline itself per direction via Match.
func Build(sched *Scheduler, handler *Stage, filters []*Stage, connector *Stage, queueMax int) (*Pipeline, error) {
	if handler.Kind != KindHandler {
		return nil, fmt.Errorf("pipeline: %s is not a handler", handler.Name)
	}
	if connector.Kind != KindConnector {
		return nil, fmt.Errorf("pipeline: %s is not a connector", connector.Name)
	}

	p := &Pipeline{Scheduler: sched}

	var rxPrev *Queue
	for _, f := range filters {
		q := linkOrDecline(sched, f, RX, rxPrev, queueMax)
		if q == nil {
			continue
		}
		if rxPrev == nil {
			p.RXHead = q
		}
		rxPrev = q
	}
	handlerRXQ := NewQueue(sched, handler, RX, rxPrev, queueMax)
	if p.RXHead == nil {
		p.RXHead = handlerRXQ
	}
	p.Handler = handlerRXQ

	var txPrev *Queue
	handlerTXQ := NewQueue(sched, handler, TX, nil, queueMax)
	p.TXHead = handlerTXQ
	txPrev = handlerTXQ
	for i := len(filters) - 1; i >= 0; i-- {
		q := linkOrDecline(sched, filters[i], TX, txPrev, queueMax)
		if q == nil {
			continue
		}
		txPrev = q
	}
	p.Connector = NewQueue(sched, connector, TX, txPrev, queueMax)
	return p, nil
}

// linkOrDecline builds stage's queue for dir and consults Stage.Match:
// declining removes the queue from the ring again and reports no queue at
// all for this direction (spec §4.5 "declining removes it from the
// pipeline for that direction only"). A stage with no Match always
// participates.
func linkOrDecline(sched *Scheduler, stage *Stage, dir Direction, prev *Queue, queueMax int) *Queue {
	q := NewQueue(sched, stage, dir, prev, queueMax)
	if stage.Match != nil && !stage.Match(q, dir) {
		Remove(q)
		return nil
	}
	return q
}

// Open calls Stage.Open once per queue in construction order (RX then TX),
// per spec §4.5 "called once when the queue is first instantiated."
func (p *Pipeline) Open() error {
	for q := p.RXHead; ; q = q.NextQ {
		if q.Stage.Open != nil {
			if err := q.Stage.Open(q); err != nil {
				return err
			}
		}
		if q.NextQ == q || q.NextQ == p.RXHead {
			break
		}
	}
	for q := p.TXHead; ; q = q.NextQ {
		if q.Stage.Open != nil {
			if err := q.Stage.Open(q); err != nil {
				return err
			}
		}
		if q.NextQ == q || q.NextQ == p.TXHead {
			break
		}
	}
	return nil
}

// Start calls Stage.Start on every RX-side queue (the handler's included)
// once all request headers have been parsed (spec §4.5); TX-side queues
// are not visited.
func (p *Pipeline) Start() error {
	for q := p.RXHead; ; q = q.NextQ {
		if q.Stage.Start != nil {
			if err := q.Stage.Start(q); err != nil {
				return err
			}
		}
		if q.NextQ == q || q.NextQ == p.RXHead {
			break
		}
	}
	return nil
}

// Close calls Stage.Close on every queue in reverse pipeline order, once
// (spec §4.5).
func (p *Pipeline) Close() {
	queues := p.rxQueuesForward()
	for i := len(queues) - 1; i >= 0; i-- {
		if queues[i].Stage.Close != nil {
			queues[i].Stage.Close(queues[i])
		}
	}
	txQueues := p.txQueuesForward()
	for i := len(txQueues) - 1; i >= 0; i-- {
		if txQueues[i].Stage.Close != nil {
			txQueues[i].Stage.Close(txQueues[i])
		}
	}
}

func (p *Pipeline) rxQueuesForward() []*Queue {
	var out []*Queue
	for q := p.RXHead; ; q = q.NextQ {
		out = append(out, q)
		if q.NextQ == q || q.NextQ == p.RXHead {
			break
		}
	}
	return out
}

func (p *Pipeline) txQueuesForward() []*Queue {
	var out []*Queue
	for q := p.TXHead; ; q = q.NextQ {
		out = append(out, q)
		if q.NextQ == q || q.NextQ == p.TXHead {
			break
		}
	}
	return out
}

// WriteRX feeds p into the RX pipeline head, delivering to the first
// filter (or the handler, if there are none).
func (p *Pipeline) WriteRX(packet *pkt.Packet) error {
	return p.RXHead.Deliver(packet)
}

// WriteTX feeds p into the TX pipeline head (the handler's own TX queue),
// which then flows through filters to the connector.
func (p *Pipeline) WriteTX(packet *pkt.Packet) error {
	return p.TXHead.Deliver(packet)
}
