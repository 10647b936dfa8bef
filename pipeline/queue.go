/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package pipeline

import (
	"fmt"

	"github.com/kestrel-http/engine/pkt"
)

// QueueFlag mirrors the HTTP_QUEUE_* bits of original_source/src/http.h.
type QueueFlag int

const (
	FlagOpen QueueFlag = 1 << iota
	FlagSuspended
	FlagFull
	FlagServiced
	FlagEOF
	FlagStarted
	FlagReservice
)

// DefaultStageBufferSize is the default queue high watermark (spec §6
// "stageBufferSize", balanced tuning profile).
const DefaultStageBufferSize = 64 * 1024

// Queue is the packet holding area of spec §3 "Queue" / §4.4. Invariant:
// Count always equals the sum of content lengths of packets currently
// linked from first to last (never counting prefix bytes).
type Queue struct {
	Name string
	Dir  Direction
	Conn *Scheduler

	Count      int
	Max        int
	Low        int
	PacketSize int
	flags      QueueFlag

	first *pkt.Packet
	last  *pkt.Packet

	NextQ *Queue
	PrevQ *Queue

	Stage *Stage

	servicing  bool
	scheduled  bool
	PipeData   interface{}
}

// NewQueue creates a queue for stage in the given direction, linked after
// prev in its pipeline (spec §4.2 httpCreateQueue / httpAssignQueue).
func NewQueue(sched *Scheduler, stage *Stage, dir Direction, prev *Queue, max int) *Queue {
	q := &Queue{
		Name:       stage.Name,
		Dir:        dir,
		Conn:       sched,
		Max:        max,
		Low:        max * 5 / 100,
		PacketSize: max,
		Stage:      stage,
		flags:      FlagOpen,
	}
	if prev != nil {
		Append(prev, q)
	} else {
		q.NextQ = q
		q.PrevQ = q
	}
	return q
}

// Append links q immediately after prev in the pipeline ring (spec §4.2
// httpAppendQueue).
func Append(prev, q *Queue) {
	q.NextQ = prev.NextQ
	q.PrevQ = prev
	prev.NextQ.PrevQ = q
	prev.NextQ = q
}

// Remove unlinks q from its pipeline ring.
func Remove(q *Queue) {
	q.PrevQ.NextQ = q.NextQ
	q.NextQ.PrevQ = q.PrevQ
	q.PrevQ, q.NextQ = q, q
}

func (q *Queue) IsSuspended() bool { return q.flags&FlagSuspended != 0 }
func (q *Queue) IsFull() bool      { return q.flags&FlagFull != 0 }
func (q *Queue) IsEmpty() bool     { return q.first == nil }
func (q *Queue) IsEOF() bool       { return q.flags&FlagEOF != 0 }
func (q *Queue) MarkEOF()          { q.flags |= FlagEOF }

// First returns the head packet of q's chain without removing it, letting
// a connector walk the list read-only via pkt.Packet.Next to build a
// gather-write vector (spec §4.8, original_source/src/sendConnector.c's
// buildSendVec, which iterates q->first without dequeuing).
func (q *Queue) First() *pkt.Packet { return q.first }

// Suspend marks q so it will not be scheduled for service until Resume is
// called (spec §4.4 httpSuspendQueue). Counted on Conn.QueueSuspends when
// the scheduler carries one, so backpressure is observable (SPEC_FULL.md's
// domain-stack wiring of prometheus into "C2 Queue").
func (q *Queue) Suspend() {
	q.flags |= FlagSuspended
	if q.Conn != nil && q.Conn.QueueSuspends != nil {
		q.Conn.QueueSuspends.Inc()
	}
}

// Resume clears the suspension and re-schedules q (spec §4.4
// httpResumeQueue).
func (q *Queue) Resume() {
	q.flags &^= FlagSuspended
	q.Conn.Schedule(q)
}

// Schedule enqueues q onto the connection's service scheduler (spec §4.4
// scheduleQueue): inserted at the tail if not already present and not
// suspended.
func (q *Queue) Schedule() { q.Conn.Schedule(q) }

// Put appends p to q's packet chain and, unless the stage overrides Put
// behavior via Incoming/Outgoing, schedules q for service (spec §4.4
// "Default put appends to the service queue").
func (q *Queue) Put(p *pkt.Packet) {
	if q.first == nil {
		q.first = p
		q.last = p
	} else {
		q.last.Next = p
		q.last = p
	}
	q.Count += pkt.Length(p)
	q.updateFullness()
	q.Schedule()
}

func (q *Queue) updateFullness() {
	if q.Count >= q.Max {
		q.flags |= FlagFull
	}
}

// Get pops and returns the first packet, or nil if empty (spec §4.4
// httpGetPacket).
func (q *Queue) Get() *pkt.Packet {
	p := q.first
	if p == nil {
		return nil
	}
	q.first = p.Next
	if q.first == nil {
		q.last = nil
	}
	p.Next = nil
	q.Count -= pkt.Length(p)
	if q.Count < 0 {
		q.Count = 0
	}
	if q.flags&FlagFull != 0 && q.Count <= q.Low {
		q.flags &^= FlagFull
		q.reenableUpstream()
	}
	return p
}

// reenableUpstream finds the nearest upstream queue with a service
// callback and resumes it (spec §4.4 "On dequeue, if this queue was FULL
// and count now < low, find the prior non-head queue ... and re-enable").
func (q *Queue) reenableUpstream() {
	prev := q.PrevQ
	for prev != nil && prev != q && prev.Stage != nil {
		if prev.Stage.IncomingService != nil || prev.Stage.OutgoingService != nil {
			prev.Resume()
			return
		}
		prev = prev.PrevQ
	}
}

// WillAcceptSize reports whether the next queue has room for n content
// bytes without any resizing (spec §4.4 httpWillNextQueueAcceptSize).
func (q *Queue) WillAcceptSize(n int) bool {
	next := q.NextQ
	return n <= next.PacketSize && n+next.Count <= next.Max
}

// WillAcceptPacket reports whether q.NextQ can take p, splitting p down to
// NextQ.PacketSize first if needed. If even the (possibly split) head
// packet still doesn't fit, it suspends q and schedules NextQ for service
// so a drain can make room (spec §4.4 willNextQueueAcceptPacket).
func (q *Queue) WillAcceptPacket(p *pkt.Packet) bool {
	next := q.NextQ
	size := pkt.Length(p)
	if size <= next.PacketSize && size+next.Count <= next.Max {
		return true
	}
	if size > next.PacketSize {
		if tail := pkt.Split(p, next.PacketSize); tail != nil {
			p.Next = tail
		}
		size = pkt.Length(p)
	}
	if size+next.Count <= next.Max {
		return true
	}
	q.Suspend()
	next.Schedule()
	return false
}

// Join walks adjacent DATA packets from the head of q and coalesces them up
// to min(size, q.NextQ.PacketSize) (spec §4.4 join).
func (q *Queue) Join(size int) error {
	limit := size
	if q.NextQ.PacketSize < limit {
		limit = q.NextQ.PacketSize
	}
	for q.first != nil && q.first.Next != nil {
		a, b := q.first, q.first.Next
		if a.Flags&pkt.FlagData == 0 || b.Flags&pkt.FlagData == 0 {
			break
		}
		if pkt.Length(a)+pkt.Length(b) > limit {
			break
		}
		before := pkt.Length(a) + pkt.Length(b)
		joined, err := pkt.Join(a, b)
		if err != nil {
			return fmt.Errorf("pipeline: join failed on queue %s: %w", q.Name, err)
		}
		after := pkt.Length(joined)
		q.Count -= before - after
		if q.last == b {
			q.last = joined
		}
	}
	return nil
}

// Discard walks DATA and RANGE packets, either unlinking them
// (removePackets) or flushing their content while preserving HEADER/END
// markers (spec §4.4 httpDiscardQueueData). txLength, if non-nil, is
// debited by the flushed byte count when packets are merely flushed.
func (q *Queue) Discard(removePackets bool, txLength *int64) {
	var prev *pkt.Packet
	for p := q.first; p != nil; {
		next := p.Next
		if p.Flags&(pkt.FlagRange|pkt.FlagData) != 0 {
			n := pkt.Length(p)
			if removePackets {
				if prev != nil {
					prev.Next = next
				} else {
					q.first = next
				}
				if p == q.last {
					q.last = prev
				}
				q.Count -= n
				p = next
				continue
			}
			if txLength != nil {
				*txLength -= int64(n)
			}
			q.Count -= n
			if p.Content != nil {
				p.Content.Reset()
			}
		}
		prev = p
		p = next
	}
	if q.Count < 0 {
		q.Count = 0
	}
}

// Drain consumes n bytes already transmitted off the front of q, trimming
// packet prefix/content buffers in place (via bytes.Buffer.Next) and
// entity pos/len bookkeeping, removing packets once fully drained. Used
// by a connector after a partial gather-write (spec §4.8, grounded on
// original_source/src/sendConnector.c's adjustPacketData/adjustSendVec,
// collapsed here into one pass since Go slices don't need the iovec
// shuffle the original's fixed-size array required).
func (q *Queue) Drain(n int) {
	for n > 0 && q.first != nil {
		p := q.first
		if p.Prefix != nil && p.Prefix.Len() > 0 {
			take := p.Prefix.Len()
			if take > n {
				take = n
			}
			p.Prefix.Next(take)
			n -= take
			if p.Prefix.Len() == 0 {
				p.Prefix = nil
			}
			if n == 0 {
				break
			}
		}
		entityExhausted := true
		switch {
		case p.EntityLen > 0:
			take := int(p.EntityLen)
			if take > n {
				take = n
			}
			p.EntityPos += int64(take)
			p.EntityLen -= int64(take)
			n -= take
			q.Count -= take
			entityExhausted = p.EntityLen <= 0
		case p.Content != nil && p.Content.Len() > 0:
			take := p.Content.Len()
			if take > n {
				take = n
			}
			p.Content.Next(take)
			n -= take
			q.Count -= take
		}
		if !entityExhausted {
			break
		}
		if p.Content == nil || p.Content.Len() == 0 {
			q.Get()
		} else {
			break
		}
	}
	if q.Count < 0 {
		q.Count = 0
	}
	if q.flags&FlagFull != 0 && q.Count <= q.Low {
		q.flags &^= FlagFull
		q.reenableUpstream()
	}
}

// Room returns how many more content bytes q will accept before hitting
// Max (spec §4.4 httpGetQueueRoom), always >= 0.
func (q *Queue) Room() int {
	if q.Count >= q.Max {
		return 0
	}
	return q.Max - q.Count
}

// service invokes the stage's service callback for this queue's direction,
// run-to-completion, re-scheduling itself if the callback requested
// reservice (spec §4.4 httpServiceQueue).
func (q *Queue) service() error {
	if q.servicing {
		q.flags |= FlagReservice
		return nil
	}
	if q.IsSuspended() {
		return nil
	}
	q.servicing = true
	var err error
	if q.Dir == TX && q.Stage.OutgoingService != nil {
		err = q.Stage.OutgoingService(q)
	} else if q.Dir == RX && q.Stage.IncomingService != nil {
		err = q.Stage.IncomingService(q)
	}
	q.flags |= FlagServiced
	q.servicing = false
	if q.flags&FlagReservice != 0 {
		q.flags &^= FlagReservice
		q.Schedule()
	}
	return err
}

// Deliver runs p through the stage's packet entry point for this queue's
// direction (Incoming for RX, Outgoing for TX). A stage that declines to
// override its entry point either terminates here (the handler on RX, the
// connector on TX) or passes p straight on to the next queue in the ring
// (spec §9 "Absent callbacks default to pass packet through") — a plain
// filter like auth, whose only job is Open-time credential checking, must
// still relay body packets toward the handler rather than stall them.
func (q *Queue) Deliver(p *pkt.Packet) error {
	var fn func(*Queue, *pkt.Packet) error
	if q.Dir == TX {
		fn = q.Stage.Outgoing
	} else {
		fn = q.Stage.Incoming
	}
	if fn != nil {
		return fn(q, p)
	}
	if q.terminal() {
		q.Put(p)
		return nil
	}
	return q.NextQ.Deliver(p)
}

// terminal reports whether q is the last queue of its direction's chain —
// the handler for RX, the connector for TX — where a passed-through packet
// must come to rest rather than be forwarded again around the ring.
func (q *Queue) terminal() bool {
	if q.Dir == RX {
		return q.Stage.Kind == KindHandler
	}
	return q.Stage.Kind == KindConnector
}
