package protocol

import (
	"sync"

	"github.com/pkg/errors"
)

var (
	// ErrDuplicate means a sequence number was already delivered.
	ErrDuplicate = errors.New("protocol: duplicate sequence number")
	// ErrWindow means a message arrived too far ahead of the next expected
	// one, or the sender already has a full window of undrained messages.
	ErrWindow = errors.New("protocol: sequence number outside window")
)

// DefaultWindow bounds how many messages a channel buffers between drains,
// in order or not.
const DefaultWindow = 256

// OrderedChannel delivers one sender's messages in sequence order, exactly
// once. Sequence numbers start at 1. A message that arrives early is held
// until every earlier one has arrived.
type OrderedChannel struct {
	mu      sync.Mutex
	next    uint64
	window  uint64
	pending map[uint64]Message
	ready   []Message
}

func NewOrderedChannel(window int) *OrderedChannel {
	if window <= 0 {
		window = DefaultWindow
	}
	return &OrderedChannel{
		next:    1,
		window:  uint64(window),
		pending: make(map[uint64]Message),
	}
}

// Send accepts message seq. A rejected message is not consumed; the sender
// may retry the same seq after the next drain.
func (c *OrderedChannel) Send(seq uint64, m Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sendLocked(seq, m)
}

// Push appends m under the next sequence number. Senders that never reorder
// use it instead of numbering messages themselves.
func (c *OrderedChannel) Push(m Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sendLocked(c.next, m)
}

func (c *OrderedChannel) sendLocked(seq uint64, m Message) error {
	switch {
	case seq < c.next:
		return errors.Wrapf(ErrDuplicate, "seq %d", seq)
	case seq >= c.next+c.window:
		return errors.Wrapf(ErrWindow, "seq %d, expecting %d", seq, c.next)
	case uint64(len(c.ready)+len(c.pending)) >= c.window:
		return errors.Wrapf(ErrWindow, "seq %d: %d messages not yet drained", seq, len(c.ready)+len(c.pending))
	}
	if _, ok := c.pending[seq]; ok {
		return errors.Wrapf(ErrDuplicate, "seq %d", seq)
	}
	c.pending[seq] = m
	for {
		m, ok := c.pending[c.next]
		if !ok {
			break
		}
		delete(c.pending, c.next)
		c.ready = append(c.ready, m)
		c.next++
	}
	return nil
}

// Drain returns every deliverable message in order and forgets them.
func (c *OrderedChannel) Drain() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.ready
	c.ready = nil
	return out
}

// Next is the sequence number the channel is waiting for.
func (c *OrderedChannel) Next() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.next
}

// Held counts messages buffered behind a gap.
func (c *OrderedChannel) Held() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}
