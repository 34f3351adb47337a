package service

import (
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/halcyon-engine/netcore/internal/conf"
	"github.com/halcyon-engine/netcore/internal/flog"
	"github.com/halcyon-engine/netcore/internal/metrics"
	"github.com/halcyon-engine/netcore/internal/node"
	"github.com/halcyon-engine/netcore/internal/packet"
)

// transmitWake bounds how long the transmitter sleeps without a signal, so a
// wake token lost to a full channel can never strand queued packets.
const transmitWake = 250 * time.Millisecond

// sqEntry is one queued outbound datagram. The target node may be nulled
// while the entry is still queued; that is how TerminateNode cancels
// in-flight traffic.
type sqEntry struct {
	next *sqEntry
	node *node.Node
	pkt  *packet.Packet

	// due delays transmission in emulation mode.
	due time.Time
}

// sendQueue is a FIFO of outbound datagrams drained by the transmitter
// goroutine. The semaphore is a buffered unit channel: every enqueue posts a
// token, every drain pass consumes one.
type sendQueue struct {
	svc *Service

	mu          sync.Mutex
	first, last *sqEntry

	waiting chan struct{}
	online  atomic.Bool

	// emu is non-nil only when network emulation is enabled in the
	// configuration; the queue is then kept sorted by due time.
	emu *conf.Emulation
}

func newSendQueue(s *Service) *sendQueue {
	q := &sendQueue{
		svc:     s,
		waiting: make(chan struct{}, inboundQueueSize),
	}
	if s.cfg.Emulation.Enabled {
		q.emu = &s.cfg.Emulation
		flog.Warnf("network emulation active: dropping %d%%, max delay %d ms",
			q.emu.DropPercent, q.emu.MaxDelayMS)
	}
	q.online.Store(true)
	return q
}

// signal posts one wake token. Dropping a token when the channel is full is
// harmless; the transmitter also wakes on a timer.
func (q *sendQueue) signal() {
	select {
	case q.waiting <- struct{}{}:
	default:
	}
}

// enqueue links an entry at the tail, or due-time sorted in emulation mode.
func (q *sendQueue) enqueue(e *sqEntry) {
	q.mu.Lock()
	if q.emu == nil {
		if q.first == nil {
			q.first, q.last = e, e
		} else {
			q.last.next = e
			q.last = e
		}
		e.next = nil
	} else {
		q.enqueueSorted(e)
	}
	q.mu.Unlock()

	metrics.SendQueueDepth.Inc()
	metrics.SendQueueBytes.Add(float64(e.pkt.Len))
}

// enqueueSorted inserts by due time. Caller holds the lock.
func (q *sendQueue) enqueueSorted(e *sqEntry) {
	if q.first == nil || e.due.Before(q.first.due) {
		e.next = q.first
		q.first = e
		if e.next == nil {
			q.last = e
		}
		return
	}
	for i := q.first; ; i = i.next {
		if i.next == nil || !i.next.due.Before(e.due) {
			e.next = i.next
			i.next = e
			if e.next == nil {
				q.last = e
			}
			return
		}
	}
}

// pop removes and returns the head, or nil.
func (q *sendQueue) pop() *sqEntry {
	q.mu.Lock()
	defer q.mu.Unlock()
	e := q.first
	if e == nil {
		return nil
	}
	q.first = e.next
	if q.first == nil {
		q.last = nil
	}
	return e
}

// cancelNode nulls the target of every queued entry aimed at n. The
// transmitter will skip the transmission but still release the packets.
func (q *sendQueue) cancelNode(n *node.Node) {
	q.mu.Lock()
	for e := q.first; e != nil; e = e.next {
		if e.node == n {
			e.node = nil
		}
	}
	q.mu.Unlock()
}

// udpSend emits one entry's datagram. An entry whose node was cancelled, or
// whose node has not joined, transmits nothing; the counters are settled
// either way.
func (q *sendQueue) udpSend(e *sqEntry) {
	if e.node != nil {
		if e.node.Joined() {
			if err := q.svc.dgram.Send(e.pkt.Data[:e.pkt.Len], e.pkt.Addr); err != nil {
				flog.Debugf("datagram send failed: %v", err)
			} else {
				metrics.DatagramsSent.Inc()
			}
		}
		e.node.DoneWaiting(e.pkt.Len)
	}

	metrics.SendQueueDepth.Dec()
	metrics.SendQueueBytes.Sub(float64(e.pkt.Len))
	q.svc.pool.Release(e.pkt)
}

// transmitterLoop drains the queue one entry per wake token until the queue
// goes offline, then clears whatever is left.
func (q *sendQueue) transmitterLoop() error {
	timer := time.NewTimer(transmitWake)
	defer timer.Stop()

	for q.online.Load() {
		// Sleep until there are messages to send; the semaphore is posted
		// on every enqueue.
		select {
		case <-q.waiting:
		case <-timer.C:
		}
		timer.Reset(transmitWake)

		e := q.pop()
		if e == nil {
			continue
		}
		q.udpSend(e)
	}

	q.clear()
	return nil
}

// emuTransmitterLoop is the emulation-mode drain: poll every couple of
// milliseconds and send everything whose due time has passed.
func (q *sendQueue) emuTransmitterLoop() error {
	for q.online.Load() {
		now := time.Now()
		for {
			q.mu.Lock()
			e := q.first
			if e == nil || e.due.After(now) {
				q.mu.Unlock()
				break
			}
			q.first = e.next
			if q.first == nil {
				q.last = nil
			}
			q.mu.Unlock()

			q.udpSend(e)
		}
		time.Sleep(2 * time.Millisecond)
	}

	q.clear()
	return nil
}

// clear releases every packet still waiting in the queue.
func (q *sendQueue) clear() {
	for {
		e := q.pop()
		if e == nil {
			return
		}
		if e.node != nil {
			e.node.DoneWaiting(e.pkt.Len)
		}
		metrics.SendQueueDepth.Dec()
		metrics.SendQueueBytes.Sub(float64(e.pkt.Len))
		q.svc.pool.Release(e.pkt)
	}
}

// stop takes the queue offline and wakes the transmitter enough times for it
// to observe the flag and run dry.
func (q *sendQueue) stop() {
	q.online.Store(false)
	for i := 0; i < 10; i++ {
		q.signal()
	}
}

// SendData queues one datagram for dst. Fails silently when the service is
// down; refuses oversized payloads loudly. The payload is copied, so the
// caller's buffer is free for reuse on return.
func (s *Service) SendData(data []byte, dst node.ID) {
	q := s.queue
	if q == nil || !q.online.Load() {
		return
	}

	n := s.nodes.Get(dst)
	if n == nil {
		flog.Errorf("send to invalid node %d", dst)
		return
	}

	if len(data) > s.mtu {
		// A caller bug: risk of fragmentation beyond the MTU.
		flog.Errorf("refusing too large packet (%d bytes, MTU %d)", len(data), s.mtu)
		return
	}

	var due time.Time
	if q.emu != nil {
		// There is a chance that the packet is dropped.
		if rand.Intn(100) < q.emu.DropPercent {
			flog.Debugf("emulation dropped packet to %d (%d bytes)", dst, len(data))
			return
		}
		due = time.Now().Add(time.Duration(rand.Intn(q.emu.MaxDelayMS+1)) * time.Millisecond)
	}

	pkt, err := s.pool.Acquire(len(data))
	if err != nil {
		flog.Errorf("send to %d: %v", dst, err)
		return
	}
	copy(pkt.Data, data)
	pkt.Len = len(data)
	pkt.Channel = -1
	pkt.Addr = n.Addr

	// Counters go up before the entry becomes poppable, so the transmitter's
	// decrement always finds them incremented.
	n.AddWaiting(len(data))

	q.enqueue(&sqEntry{node: n, pkt: pkt, due: due})

	// Signal the transmitter to start working.
	q.signal()
}

// GetSendQueueCount returns the number of messages waiting for the node.
func (s *Service) GetSendQueueCount(id node.ID) uint {
	n := s.nodes.Get(id)
	if n == nil {
		return 0
	}
	count, _ := n.Waiting()
	return count
}

// GetSendQueueSize returns the number of bytes waiting for the node.
func (s *Service) GetSendQueueSize(id node.ID) uint {
	n := s.nodes.Get(id)
	if n == nil {
		return 0
	}
	_, bytes := n.Waiting()
	return bytes
}

// FlushOutgoing blocks until all the send queues have been emptied.
func (s *Service) FlushOutgoing() {
	for s.IsAvailable() {
		allClear := true
		s.nodes.Each(func(id node.ID, n *node.Node) {
			if n.Joined() {
				if count, _ := n.Waiting(); count > 0 {
					allClear = false
				}
			}
		})
		if allClear {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
}
