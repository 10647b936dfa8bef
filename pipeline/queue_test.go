package pipeline

import (
	"testing"

	"github.com/kestrel-http/engine/pkt"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func upstreamStage() *Stage  { return &Stage{Name: "up", Kind: KindFilter} }
func downstreamStage() *Stage { return &Stage{Name: "down", Kind: KindFilter} }

func TestQueueCountMatchesPacketSum(t *testing.T) {
	sched := &Scheduler{}
	q := NewQueue(sched, upstreamStage(), TX, nil, 1024)
	q.Put(pkt.CreateData([]byte("hello")))
	q.Put(pkt.CreateData([]byte(" world")))
	require.Equal(t, 11, q.Count)
	p := q.Get()
	require.Equal(t, "hello", string(p.Content.Bytes()))
	require.Equal(t, 6, q.Count)
}

func TestBackpressureSplitsAndSuspends(t *testing.T) {
	sched := &Scheduler{}
	up := NewQueue(sched, upstreamStage(), TX, nil, 64*1024)
	down := NewQueue(sched, downstreamStage(), TX, up, 16*1024)
	down.PacketSize = 8 * 1024
	down.Max = 16 * 1024

	// Each WillAcceptPacket call splits off exactly one downstream-sized
	// head and hands it to Put; the remaining tail is what the next
	// iteration offers (this mirrors a servicing loop draining one queue
	// into the next, spec §8 scenario 5).
	pending := pkt.CreateData(make([]byte, 64*1024))
	var delivered int
	for pkt.Length(pending) > 0 {
		if !up.WillAcceptPacket(pending) {
			break
		}
		head := pending
		pending = head.Next
		head.Next = nil
		down.Put(head)
		delivered += pkt.Length(head)
		if down.IsFull() {
			break
		}
	}

	require.Equal(t, 16*1024, down.Count, "exactly two 8KiB pieces accepted before FULL")
	require.True(t, down.IsFull())
	require.NotNil(t, pending, "remaining 48KiB must still be pending upstream")
	require.Equal(t, 48*1024, pkt.Length(pending))

	// Low is 5% of Max (spec §3): with both 8KiB pieces queued, draining
	// only one still leaves count above low, so FULL must stay set until
	// the queue drains below the watermark.
	down.Get()
	require.True(t, down.IsFull(), "one piece still queued, above the 5%% low watermark")
	down.Get()
	require.False(t, down.IsFull(), "queue empty, below low watermark")

	// Drain the rest and confirm total bytes delivered equals the source.
	for pkt.Length(pending) > 0 {
		if !up.WillAcceptPacket(pending) {
			down.Get()
			continue
		}
		head := pending
		pending = head.Next
		head.Next = nil
		down.Put(head)
		delivered += pkt.Length(head)
		down.Get()
	}
	require.Equal(t, 64*1024, delivered)
}

func TestWillAcceptPacketCountsSuspendOnScheduler(t *testing.T) {
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "test_queue_suspends_total"})
	sched := &Scheduler{QueueSuspends: counter}
	up := NewQueue(sched, upstreamStage(), TX, nil, 64*1024)
	down := NewQueue(sched, downstreamStage(), TX, up, 4*1024)
	down.PacketSize = 4 * 1024
	down.Max = 4 * 1024
	down.Put(pkt.CreateData(make([]byte, 4*1024)))

	require.Equal(t, 0.0, testutil.ToFloat64(counter))

	accepted := up.WillAcceptPacket(pkt.CreateData(make([]byte, 4*1024)))
	require.False(t, accepted, "downstream is already at Max, so the packet must be rejected and up suspended")
	require.True(t, up.IsSuspended())
	require.Equal(t, 1.0, testutil.ToFloat64(counter), "Suspend must count onto the scheduler's QueueSuspends")
}

func TestWillAcceptSize(t *testing.T) {
	sched := &Scheduler{}
	up := NewQueue(sched, upstreamStage(), TX, nil, 1024)
	down := NewQueue(sched, downstreamStage(), TX, up, 1024)
	down.Max = 100
	down.PacketSize = 50
	require.True(t, up.WillAcceptSize(40))
	require.False(t, up.WillAcceptSize(200))
}

func TestSchedulerDedupesAndDrainsFIFO(t *testing.T) {
	sched := &Scheduler{}
	var order []string
	a := NewQueue(sched, &Stage{Name: "a", Kind: KindFilter, OutgoingService: func(q *Queue) error {
		order = append(order, "a")
		return nil
	}}, TX, nil, 1024)
	b := NewQueue(sched, &Stage{Name: "b", Kind: KindFilter, OutgoingService: func(q *Queue) error {
		order = append(order, "b")
		return nil
	}}, TX, a, 1024)

	sched.Schedule(a)
	sched.Schedule(b)
	sched.Schedule(a) // duplicate, must not run twice
	require.NoError(t, sched.Drain())
	require.Equal(t, []string{"a", "b"}, order)
}

func TestDiscardPreservesHeaderAndEnd(t *testing.T) {
	sched := &Scheduler{}
	q := NewQueue(sched, upstreamStage(), TX, nil, 1024)
	header := pkt.CreateHeader()
	data := pkt.CreateData([]byte("body"))
	end := pkt.CreateEnd()
	q.Put(header)
	q.Put(data)
	q.Put(end)

	q.Discard(true, nil)
	require.Equal(t, header, q.first)
	require.Equal(t, end, header.Next)
}
