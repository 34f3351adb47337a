package service

import (
	"github.com/halcyon-engine/netcore/internal/flog"
	"github.com/halcyon-engine/netcore/internal/node"
)

// EventType classifies a lifecycle event.
type EventType int

const (
	// ClientEntry: a node completed the JOIN handshake.
	ClientEntry EventType = iota
	// ClientExit: a previously joined node was terminated.
	ClientExit
	// EndConnection: the client's link to the server was lost.
	EndConnection
)

func (t EventType) String() string {
	switch t {
	case ClientEntry:
		return "client entry"
	case ClientExit:
		return "client exit"
	case EndConnection:
		return "end of connection"
	}
	return "unknown"
}

// Event tells the game module that a node's lifecycle changed. Consumed in
// the main loop via PollEvent.
type Event struct {
	Type EventType
	ID   node.ID
}

func (s *Service) postEvent(ev Event) {
	select {
	case s.events <- ev:
	default:
		flog.Warnf("event queue full, dropping %v for node %d", ev.Type, ev.ID)
	}
}

// PollEvent returns the next pending lifecycle event. ok is false when none
// are queued.
func (s *Service) PollEvent() (Event, bool) {
	if s.events == nil {
		return Event{}, false
	}
	select {
	case ev := <-s.events:
		return ev, true
	default:
		return Event{}, false
	}
}
