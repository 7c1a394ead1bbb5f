// Package mailbox holds one-shot commands for polling consumers. Each
// (owner, channel) pair owns a single slot: posting overwrites whatever is
// pending, taking returns the payload and clears the slot. Only the latest
// command matters to the consumer, so dropped intermediates are intentional.
package mailbox

import (
	"sync"
	"time"
)

type Channel string

const (
	ChannelSiren     Channel = "siren"
	ChannelPostAlarm Channel = "postalarm"
)

type slotKey struct {
	owner   string
	channel Channel
}

type slot struct {
	mu         sync.Mutex
	payload    any
	occupied   bool
	enqueuedAt time.Time
}

type Box struct {
	mu    sync.Mutex
	slots map[slotKey]*slot
}

func New() *Box {
	return &Box{slots: make(map[slotKey]*slot)}
}

func (b *Box) slotFor(owner string, channel Channel) *slot {
	b.mu.Lock()
	defer b.mu.Unlock()
	key := slotKey{owner: owner, channel: channel}
	s, ok := b.slots[key]
	if !ok {
		s = &slot{}
		b.slots[key] = s
	}
	return s
}

// Post stores payload for the given (owner, channel) pair, replacing any
// unread prior payload.
func (b *Box) Post(owner string, channel Channel, payload any) {
	s := b.slotFor(owner, channel)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payload = payload
	s.occupied = true
	s.enqueuedAt = time.Now().UTC()
}

// Take removes and returns the pending payload. The second return value is
// false when the slot is empty; an empty slot is the normal polling result,
// not an error.
func (b *Box) Take(owner string, channel Channel) (any, bool) {
	s := b.slotFor(owner, channel)
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.occupied {
		return nil, false
	}
	payload := s.payload
	s.payload = nil
	s.occupied = false
	return payload, true
}
