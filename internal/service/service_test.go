package service

import (
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/halcyon-engine/netcore/internal/conf"
)

func freeTCPPort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func freeUDPPort(t *testing.T) int {
	t.Helper()
	c, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	defer c.Close()
	return c.LocalAddr().(*net.UDPAddr).Port
}

func testConf(t *testing.T, role string) *conf.Conf {
	t.Helper()
	cfg := conf.Default(role)
	cfg.Net.ControlPort = freeTCPPort(t)
	cfg.Net.DataPort = freeUDPPort(t)
	cfg.Server.Name = "Test Arena"
	return cfg
}

// startServer opens a server-mode service on free ports.
func startServer(t *testing.T) *Service {
	t.Helper()
	s := New(testConf(t, "server"))
	require.NoError(t, s.ServerOpen())
	t.Cleanup(s.ShutdownService)
	return s
}

// startClient opens a client-mode service on free ports.
func startClient(t *testing.T) *Service {
	t.Helper()
	cfg := testConf(t, "client")
	cfg.Server.PlayerName = "Alice"
	s := New(cfg)
	require.NoError(t, s.InitService(false))
	t.Cleanup(s.ShutdownService)
	return s
}

// pump drives the service's Listen from a background goroutine, standing in
// for the engine main loop. While the pump runs, the test goroutine must not
// perform lifecycle operations on s; stop it first (stopping twice is fine).
func pump(t *testing.T, s *Service) (stop func()) {
	t.Helper()
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-done:
				return
			default:
				s.Listen()
				time.Sleep(2 * time.Millisecond)
			}
		}
	}()
	var once sync.Once
	stop = func() {
		once.Do(func() {
			close(done)
			wg.Wait()
		})
	}
	t.Cleanup(stop)
	return stop
}

func dialControl(t *testing.T, s *Service) net.Conn {
	t.Helper()
	addr := net.JoinHostPort("127.0.0.1", strconv.Itoa(s.ControlPort()))
	conn, err := net.DialTimeout("tcp", addr, 3*time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readUntil reads from conn until the data contains marker, the peer closes,
// or the deadline passes.
func readUntil(t *testing.T, conn net.Conn, marker string) string {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var data []byte
	buf := make([]byte, 256)
	for !strings.Contains(string(data), marker) {
		n, err := conn.Read(buf)
		data = append(data, buf[:n]...)
		if err != nil {
			break
		}
	}
	return string(data)
}

// queueLen counts entries in the send queue.
func queueLen(s *Service) int {
	s.queue.mu.Lock()
	defer s.queue.mu.Unlock()
	n := 0
	for e := s.queue.first; e != nil; e = e.next {
		n++
	}
	return n
}
