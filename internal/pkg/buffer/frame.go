package buffer

import (
	"encoding/binary"
	"io"
	"net"
	"sync"
)

// Scratch buffers for composing framed messages. Sized for the common case;
// larger messages fall back to a one-off allocation.
var scratchPool = sync.Pool{
	New: func() any {
		b := make([]byte, 4096)
		return &b
	},
}

// WriteFrame writes a message with a 2-byte length prefix. This preserves
// message boundaries over the byte-stream control channel.
// Wire format: [2-byte big-endian length][payload]
//
// Uses net.Buffers for scatter-gather I/O (writev) when available,
// avoiding data copy while minimizing syscalls.
func WriteFrame(w io.Writer, data []byte) error {
	if len(data) > 65535 {
		return io.ErrShortBuffer
	}
	var header [2]byte
	binary.BigEndian.PutUint16(header[:], uint16(len(data)))

	// net.Buffers uses writev when the writer supports it (single syscall),
	// otherwise falls back to sequential writes.
	bufs := net.Buffers{header[:], data}
	_, err := bufs.WriteTo(w)
	return err
}

// WriteFrameBuffered composes the header and payload into a pooled scratch
// buffer and issues a single Write. Some stream writers degrade badly on
// two-part writes (Nagle interaction); the game's reliable channel uses
// this variant.
func WriteFrameBuffered(w io.Writer, data []byte) error {
	if len(data) > 65535 {
		return io.ErrShortBuffer
	}

	need := len(data) + 2
	var msg []byte
	bp := scratchPool.Get().(*[]byte)
	if cap(*bp) >= need {
		msg = (*bp)[:need]
	} else {
		msg = make([]byte, need)
	}
	binary.BigEndian.PutUint16(msg[:2], uint16(len(data)))
	copy(msg[2:], data)

	_, err := w.Write(msg)
	scratchPool.Put(bp)
	return err
}

// ReadHeader reads a frame's 2-byte length prefix. Anything short of two
// bytes is a framing error for the caller to act on.
func ReadHeader(r io.Reader) (int, error) {
	var header [2]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return 0, err
	}
	return int(binary.BigEndian.Uint16(header[:])), nil
}

// ReadFrame reads a length-prefixed message from a stream into buf.
// Returns the payload size. buf must be large enough for the max expected
// message size.
func ReadFrame(r io.Reader, buf []byte) (int, error) {
	length, err := ReadHeader(r)
	if err != nil {
		return 0, err
	}
	if length > len(buf) {
		return 0, io.ErrShortBuffer
	}
	// Read exactly length bytes of payload
	return io.ReadFull(r, buf[:length])
}
