package node

import (
	"net"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeConn struct{ net.Conn }

func TestRegisterSkipsSlotZero(t *testing.T) {
	var tab Table
	id, ok := tab.Register(fakeConn{})
	require.True(t, ok)
	require.Equal(t, 1, id)
	require.Nil(t, tab.Get(0).Conn)
}

func TestRegisterUntilFull(t *testing.T) {
	var tab Table
	for i := 1; i < MaxNodes; i++ {
		id, ok := tab.Register(fakeConn{})
		require.True(t, ok, "slot %d", i)
		require.Equal(t, i, id)
	}
	_, ok := tab.Register(fakeConn{})
	require.False(t, ok, "table should be full")

	// Freeing one slot makes it claimable again.
	tab.Clear(7)
	id, ok := tab.Register(fakeConn{})
	require.True(t, ok)
	require.Equal(t, 7, id)
}

func TestJoinTruncatesName(t *testing.T) {
	var tab Table
	id, _ := tab.Register(fakeConn{})
	addr := &net.UDPAddr{IP: net.IPv4(10, 0, 0, 2), Port: 4242}
	tab.Join(id, addr, strings.Repeat("x", 500))

	n := tab.Get(id)
	require.True(t, n.Joined())
	require.Equal(t, addr, n.Addr)
	require.Len(t, n.Name, 127)
	require.Equal(t, 1, tab.ConnectedCount())
}

func TestClearResetsEverything(t *testing.T) {
	var tab Table
	id, _ := tab.Register(fakeConn{})
	tab.Join(id, &net.UDPAddr{Port: 1}, "Alice")
	n := tab.Get(id)
	n.AddWaiting(100)

	tab.Clear(id)
	require.Nil(t, n.Conn)
	require.Nil(t, n.Addr)
	require.Empty(t, n.Name)
	require.False(t, n.Joined())
	count, bytes := n.Waiting()
	require.Zero(t, count)
	require.Zero(t, bytes)
}

func TestCounters(t *testing.T) {
	var n Node
	n.AddWaiting(100)
	n.AddWaiting(50)
	count, bytes := n.Waiting()
	require.Equal(t, uint(2), count)
	require.Equal(t, uint(150), bytes)

	n.DoneWaiting(100)
	count, bytes = n.Waiting()
	require.Equal(t, uint(1), count)
	require.Equal(t, uint(50), bytes)
}

func TestLineBuffering(t *testing.T) {
	var n Node
	require.True(t, n.AppendLine([]byte("IN"), 80))
	_, ok := n.NextLine()
	require.False(t, ok, "no complete line yet")

	require.True(t, n.AppendLine([]byte("FO\nTIME\r\n"), 80))
	line, ok := n.NextLine()
	require.True(t, ok)
	require.Equal(t, "INFO", string(line))
	line, ok = n.NextLine()
	require.True(t, ok)
	require.Equal(t, "TIME", string(line))
	_, ok = n.NextLine()
	require.False(t, ok)
}

func TestLineLimit(t *testing.T) {
	var n Node
	require.False(t, n.AppendLine([]byte(strings.Repeat("A", 100)), 80))
}
