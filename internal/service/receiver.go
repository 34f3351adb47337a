package service

import (
	"io"
	"time"

	"github.com/halcyon-engine/netcore/internal/flog"
	"github.com/halcyon-engine/netcore/internal/metrics"
	"github.com/halcyon-engine/netcore/internal/node"
	"github.com/halcyon-engine/netcore/internal/packet"
	"github.com/halcyon-engine/netcore/internal/pkg/buffer"
)

// reliableReadTimeout bounds how long a reliable read may stall once the
// first byte of a frame has arrived.
const reliableReadTimeout = 5 * time.Second

// Message is one inbound packet handed to the game module. Data aliases the
// pooled buffer; the consumer releases it through ReturnBuffer(Handle) when
// done.
type Message struct {
	Sender node.ID
	Data   []byte
	Size   int
	Handle *packet.Packet
}

// receiverLoop waits for datagrams and places them into the inbound message
// queue. Started by InitService, stopped by ShutdownService.
func (s *Service) receiverLoop() error {
	var pkt *packet.Packet

	for !s.stopRecv.Load() {
		// Most of the time we will be sleeping here, waiting for incoming
		// packets.
		if pkt == nil {
			pkt, _ = s.pool.Acquire(s.mtu)
		}

		n, channel, addr, ok, fatal := s.dgram.Recv(pkt.Data[:s.mtu])
		if fatal {
			break
		}
		if !ok {
			continue
		}

		// If we don't know the sender, discard the packet.
		if channel < 0 {
			metrics.DatagramsDropped.Inc()
			continue
		}

		metrics.DatagramsReceived.Inc()

		pkt.Len = n
		pkt.Channel = channel
		pkt.Addr = addr

		// The message queue owns the packet from now on.
		s.postMessage(&Message{
			Sender: channel,
			Data:   pkt.Data[:n],
			Size:   n,
			Handle: pkt,
		})
		pkt = nil
	}

	if pkt != nil {
		s.pool.Release(pkt)
	}
	return nil
}

// postMessage places a message into the inbound queue. The queue is bounded;
// when the main loop has stalled long enough to fill it, the oldest traffic
// is the datagram kind and losing it is legal, so the new message is dropped.
func (s *Service) postMessage(msg *Message) {
	select {
	case s.msgs <- msg:
	default:
		flog.Warnf("inbound queue full, dropping message from node %d (%d bytes)", msg.Sender, msg.Size)
		s.pool.Release(msg.Handle)
	}
}

// GetPacket returns the next inbound message, or nil when the queue is
// empty. Never blocks; called from the main loop.
func (s *Service) GetPacket() *Message {
	if s.msgs == nil {
		return nil
	}
	select {
	case msg := <-s.msgs:
		return msg
	default:
		return nil
	}
}

// ReturnBuffer releases a message's packet back to the pool.
func (s *Service) ReturnBuffer(handle *packet.Packet) {
	if handle == nil {
		return
	}
	s.pool.Release(handle)
}

// clearMessages destroys all queued inbound messages.
func (s *Service) clearMessages() {
	if s.msgs == nil {
		return
	}
	for {
		select {
		case msg := <-s.msgs:
			s.pool.Release(msg.Handle)
		default:
			return
		}
	}
}

// recvReliable reads one length-framed message from a node's control
// connection and posts it to the inbound queue. The leading read is a
// bounded-wait probe so an idle socket costs the poller almost nothing; once
// the first byte is in hand the rest of the frame is read with a real
// deadline, since the header promised it. Returns false when the connection
// is dead or the framing is broken; the caller terminates the node.
func (s *Service) recvReliable(id node.ID) bool {
	n := s.nodes.Get(id)
	conn := n.Conn

	var hdr [2]byte
	conn.SetReadDeadline(time.Now().Add(time.Millisecond))
	got, err := conn.Read(hdr[:1])
	if got == 0 {
		conn.SetReadDeadline(time.Time{})
		if err == nil || isTimeout(err) {
			// Nothing ready this tick.
			return true
		}
		flog.Debugf("reliable read on node %d: %v", id, err)
		return false
	}

	conn.SetReadDeadline(time.Now().Add(reliableReadTimeout))
	defer conn.SetReadDeadline(time.Time{})

	if _, err := io.ReadFull(conn, hdr[1:]); err != nil {
		flog.Warnf("packet header from node %d was truncated: %v", id, err)
		return false
	}

	size := int(hdr[0])<<8 | int(hdr[1])
	if size == 0 {
		// A zero-length frame is a legal no-op.
		return true
	}

	pkt, err := s.pool.AcquireReliable(size)
	if err != nil {
		flog.Warnf("reliable message from node %d rejected: %v", id, err)
		return false
	}

	if _, err := io.ReadFull(conn, pkt.Data[:size]); err != nil {
		s.pool.Release(pkt)
		flog.Warnf("error during reliable recv from node %d: %v", id, err)
		return false
	}

	metrics.ReliableReceived.Inc()

	pkt.Len = size
	pkt.Channel = id
	s.postMessage(&Message{
		Sender: id,
		Data:   pkt.Data[:size],
		Size:   size,
		Handle: pkt,
	})
	return true
}

// SendDataReliable sends the buffer over the node's control connection,
// framed with a length prefix. Oversized buffers are a programming error.
func (s *Service) SendDataReliable(data []byte, dst node.ID) {
	n := s.nodes.Get(dst)
	if len(data) == 0 || n == nil || n.Conn == nil || !n.Joined() {
		return
	}

	if len(data) > 65535 {
		flog.Fatalf("trying to send a too large data buffer (%d bytes)", len(data))
	}

	if err := buffer.WriteFrameBuffered(n.Conn, data); err != nil {
		flog.Errorf("reliable send to node %d failed: %v", dst, err)
		return
	}
	metrics.ReliableSent.Inc()
}
