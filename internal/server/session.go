package server

import (
	"sync/atomic"

	"sandforge/internal/component"
	"sandforge/internal/ecs"
	"sandforge/internal/protocol"

	"github.com/gdamore/tcell/v2"
)

// MaxMessages caps each session's message log.
const MaxMessages = 50

// OutboxSize is the buffer of replies queued for a remote peer.
const OutboxSize = 64

// Session holds all per-player state for one SSH connection or websocket peer.
type Session struct {
	Client component.ClientID
	Name   string

	// PlayerID is set by Join and cleared by Leave, both under the server lock.
	PlayerID ecs.EntityID

	// Screen is the terminal of an SSH session; nil for remote peers.
	Screen tcell.Screen
	// Outbox receives results and inventory updates for remote peers; nil
	// for terminal sessions, which read the world directly.
	Outbox chan protocol.Message

	// Messages is the session log shown in the HUD. Guarded by the server lock.
	Messages []string

	// Render trigger: ticker sends here; session's goroutine drains and renders.
	RenderCh chan struct{}

	channel *protocol.OrderedChannel
	applied uint64 // guarded by the server lock
	dropped atomic.Uint64
}

// NewSession allocates a Session for a terminal player.
func NewSession(client component.ClientID, name string, screen tcell.Screen, window int) *Session {
	return &Session{
		Client:   client,
		Name:     name,
		Screen:   screen,
		RenderCh: make(chan struct{}, 1),
		channel:  protocol.NewOrderedChannel(window),
	}
}

// NewPeer allocates a Session for a remote peer that sends its own
// sequence numbers and reads replies from Outbox.
func NewPeer(client component.ClientID, name string, window int) *Session {
	s := NewSession(client, name, nil, window)
	s.Outbox = make(chan protocol.Message, OutboxSize)
	return s
}

// Submit queues a message under the next sequence number. Terminal
// sessions use it; their messages can never arrive out of order.
func (s *Session) Submit(m protocol.Message) error {
	return s.channel.Push(m)
}

// Send queues a message under a sequence number chosen by a remote peer.
// Messages are applied in sequence order no matter the arrival order.
func (s *Session) Send(seq uint64, m protocol.Message) error {
	return s.channel.Send(seq, m)
}

// Pending counts messages held back waiting for an earlier sequence number.
func (s *Session) Pending() int { return s.channel.Held() }

// Dropped counts outbox messages discarded because the peer fell behind.
func (s *Session) Dropped() uint64 { return s.dropped.Load() }

// AddMessage appends a message to the session's log, capping at MaxMessages entries.
func (s *Session) AddMessage(msg string) {
	s.Messages = append(s.Messages, msg)
	if len(s.Messages) > MaxMessages {
		s.Messages = s.Messages[len(s.Messages)-MaxMessages:]
	}
}

// deliver queues m for a remote peer without blocking the tick.
func (s *Session) deliver(m protocol.Message) {
	if s.Outbox == nil {
		return
	}
	select {
	case s.Outbox <- m:
	default:
		s.dropped.Add(1)
	}
}

func (s *Session) signal() {
	select {
	case s.RenderCh <- struct{}{}:
	default:
	}
}
