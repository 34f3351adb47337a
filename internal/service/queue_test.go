package service

import (
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/halcyon-engine/netcore/internal/conf"
)

// bareQueue builds a send queue with no transmitter attached, for
// deterministic inspection of the queue mechanics.
func bareQueue(t *testing.T) (*Service, *sendQueue) {
	t.Helper()
	s := New(conf.Default("server"))
	q := newSendQueue(s)
	return s, q
}

func enqueueFor(t *testing.T, s *Service, q *sendQueue, id, size int) {
	t.Helper()
	n := s.nodes.Get(id)
	pkt, err := s.pool.Acquire(size)
	require.NoError(t, err)
	q.enqueue(&sqEntry{node: n, pkt: pkt})
	n.AddWaiting(size)
}

func TestCancelNodeNullsEntries(t *testing.T) {
	s, q := bareQueue(t)
	victim := s.nodes.Get(1)

	for i := 0; i < 5; i++ {
		enqueueFor(t, s, q, 1, 10)
	}
	for i := 0; i < 3; i++ {
		enqueueFor(t, s, q, 2, 20)
	}

	q.cancelNode(victim)

	q.mu.Lock()
	var cancelled, kept int
	for e := q.first; e != nil; e = e.next {
		switch e.node {
		case nil:
			cancelled++
		case victim:
			t.Fatal("entry still targets the cancelled node")
		default:
			kept++
		}
	}
	q.mu.Unlock()
	require.Equal(t, 5, cancelled)
	require.Equal(t, 3, kept)

	// Draining releases every packet; the survivor's counters settle.
	q.clear()
	require.Zero(t, queueLenOf(q))
	count, bytes := s.nodes.Get(2).Waiting()
	require.Zero(t, count)
	require.Zero(t, bytes)
}

func TestEmulationQueueSortedByDueTime(t *testing.T) {
	s, q := bareQueue(t)
	q.emu = &conf.Emulation{Enabled: true, DropPercent: 25, MaxDelayMS: 500}

	now := time.Now()
	for _, ms := range []int{300, 100, 500, 200, 400, 100} {
		pkt, err := s.pool.Acquire(8)
		require.NoError(t, err)
		q.enqueue(&sqEntry{node: s.nodes.Get(1), pkt: pkt, due: now.Add(time.Duration(ms) * time.Millisecond)})
	}

	q.mu.Lock()
	prev := time.Time{}
	for e := q.first; e != nil; e = e.next {
		require.False(t, e.due.Before(prev), "queue must stay sorted by due time")
		prev = e.due
	}
	q.mu.Unlock()

	q.clear()
}

func queueLenOf(q *sendQueue) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := 0
	for e := q.first; e != nil; e = e.next {
		n++
	}
	return n
}

func TestSendWhenOffline(t *testing.T) {
	s := New(conf.Default("server"))

	// None of these may touch sockets or panic before InitService.
	s.SendData([]byte("nope"), 1)
	s.SendDataReliable(nil, 1)
	require.Nil(t, s.GetPacket())
	_, ok := s.PollEvent()
	require.False(t, ok)
	s.ShutdownService()
}

func TestOversizeDatagramRefused(t *testing.T) {
	sv := startServer(t)

	sv.SendData(make([]byte, conf.DefaultMTU+1), 1)

	require.Zero(t, queueLen(sv), "no queue entry for an oversize send")
	require.Zero(t, sv.GetSendQueueCount(1))
	require.Zero(t, sv.GetSendQueueSize(1))
}

func TestTerminateMidQueue(t *testing.T) {
	sv := startServer(t)
	stopPump := pump(t, sv)

	udp, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	defer udp.Close()

	conn := dialControl(t, sv)
	_, err = fmt.Fprintf(conn, "JOIN %04x Bob\n", udp.LocalAddr().(*net.UDPAddr).Port)
	require.NoError(t, err)
	readUntil(t, conn, "\n")
	stopPump()

	ev, ok := sv.PollEvent()
	require.True(t, ok)
	require.Equal(t, ClientEntry, ev.Type)
	id := ev.ID

	for i := 0; i < 100; i++ {
		sv.SendData([]byte("burst"), id)
	}
	sv.TerminateNode(id)

	// Exactly one exit event.
	ev, ok = sv.PollEvent()
	require.True(t, ok)
	require.Equal(t, ClientExit, ev.Type)
	require.Equal(t, id, ev.ID)
	_, ok = sv.PollEvent()
	require.False(t, ok)

	// The transmitter drains and releases everything that was cancelled.
	require.Eventually(t, func() bool { return queueLen(sv) == 0 },
		3*time.Second, 5*time.Millisecond)
	require.Zero(t, sv.GetSendQueueCount(id))
	require.Zero(t, sv.GetSendQueueSize(id))
}

func TestFlushOutgoing(t *testing.T) {
	sv := startServer(t)
	stopPump := pump(t, sv)
	cl := startClient(t)
	connect(t, cl, sv)
	stopPump()

	ev, ok := sv.PollEvent()
	require.True(t, ok)
	id := ev.ID

	for i := 0; i < 20; i++ {
		sv.SendData([]byte("frame delta"), id)
	}
	sv.FlushOutgoing()

	require.Zero(t, sv.GetSendQueueCount(id))
	require.Zero(t, sv.GetSendQueueSize(id))
}

func TestEmulationDropsEverything(t *testing.T) {
	cfg := testConf(t, "server")
	cfg.Emulation = conf.Emulation{Enabled: true, DropPercent: 100, MaxDelayMS: 10}
	sv := New(cfg)
	require.NoError(t, sv.InitService(true))
	t.Cleanup(sv.ShutdownService)

	for i := 0; i < 10; i++ {
		sv.SendData([]byte("doomed"), 1)
	}
	require.Zero(t, queueLen(sv), "a full drop rate enqueues nothing")
	require.Zero(t, sv.GetSendQueueCount(1))
}

func TestReinitService(t *testing.T) {
	cfg := testConf(t, "server")
	s := New(cfg)

	require.NoError(t, s.InitService(true))
	require.True(t, s.IsAvailable())
	port := s.DataPort()

	s.ShutdownService()
	require.False(t, s.IsAvailable())

	require.NoError(t, s.InitService(true))
	require.True(t, s.IsAvailable())
	require.Equal(t, port, s.DataPort(), "the preferred data port is reused")
	s.ShutdownService()
}

func TestInitTwiceIsNoop(t *testing.T) {
	s := New(testConf(t, "server"))
	require.NoError(t, s.InitService(true))
	t.Cleanup(s.ShutdownService)
	require.NoError(t, s.InitService(true))
	require.True(t, s.IsAvailable())
}
