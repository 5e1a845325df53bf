// Package player tracks connected players and their dispatch identity.
// The pool hands out stable int32 identifiers that the command engine and
// the audit trail both key on; output flows through the event bus.
package player

import (
	"fmt"
	"strings"
	"sync"

	"github.com/ashen-labs/luamod/pkg/events"
)

// Player is one connected client. The command engine reads only the
// identifier and authority level; everything else is host bookkeeping.
type Player struct {
	id        int32
	name      string
	authority int
	suspended bool
	bus       *events.Bus
	mu        sync.Mutex
}

// ID returns the pool identifier.
func (p *Player) ID() int32 { return p.id }

// Name returns the display name the player connected with.
func (p *Player) Name() string { return p.name }

// Authority returns the current authority level.
func (p *Player) Authority() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.authority
}

// SetAuthority changes the authority level.
func (p *Player) SetAuthority(level int) {
	p.mu.Lock()
	p.authority = level
	p.mu.Unlock()
}

// Suspended reports whether dispatch is paused for this player.
func (p *Player) Suspended() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.suspended
}

// SetSuspended pauses or resumes dispatch for this player.
func (p *Player) SetSuspended(v bool) {
	p.mu.Lock()
	p.suspended = v
	p.mu.Unlock()
}

// Send delivers a line of output to the player through the event bus.
func (p *Player) Send(text string) {
	p.bus.Emit(events.Event{
		Type:   events.EvOutput,
		Player: p.id,
		Source: p.id,
		Text:   text,
	})
}

// Pool holds the connected players, capped at a fixed capacity. Slots are
// keyed by client-chosen id; reconnecting reuses the id once the old slot
// is released.
type Pool struct {
	mu       sync.RWMutex
	byID     map[int32]*Player
	capacity int
	bus      *events.Bus
}

// NewPool creates a pool that admits at most capacity players.
func NewPool(capacity int, bus *events.Bus) *Pool {
	return &Pool{
		byID:     make(map[int32]*Player),
		capacity: capacity,
		bus:      bus,
	}
}

// Connect admits a player into the pool and announces it on the bus.
// It fails when the pool is full or the id is already taken.
func (p *Pool) Connect(id int32, name string, authority int) (*Player, error) {
	p.mu.Lock()
	if p.capacity > 0 && len(p.byID) >= p.capacity {
		p.mu.Unlock()
		return nil, fmt.Errorf("player pool is full (%d)", p.capacity)
	}
	if _, taken := p.byID[id]; taken {
		p.mu.Unlock()
		return nil, fmt.Errorf("player id %d is already connected", id)
	}
	pl := &Player{id: id, name: name, authority: authority, bus: p.bus}
	p.byID[id] = pl
	p.mu.Unlock()

	p.bus.Emit(events.Event{Type: events.EvConnect, Player: id, Source: id, Text: name})
	return pl, nil
}

// Disconnect releases a player's slot and announces it on the bus. It is a
// no-op for ids that are not connected.
func (p *Pool) Disconnect(id int32) {
	p.mu.Lock()
	pl, ok := p.byID[id]
	if ok {
		delete(p.byID, id)
	}
	p.mu.Unlock()
	if ok {
		p.bus.Emit(events.Event{Type: events.EvDisconnect, Player: id, Source: id, Text: pl.name})
	}
}

// Get returns the player with the given id.
func (p *Pool) Get(id int32) (*Player, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	pl, ok := p.byID[id]
	return pl, ok
}

// ByName returns the first player whose name matches, case-insensitively.
func (p *Pool) ByName(name string) (*Player, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, pl := range p.byID {
		if strings.EqualFold(pl.name, name) {
			return pl, true
		}
	}
	return nil, false
}

// Count returns the number of connected players.
func (p *Pool) Count() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.byID)
}

// ForEach visits every connected player. The pool lock is held for the
// duration; fn must not call back into the pool.
func (p *Pool) ForEach(fn func(*Player)) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, pl := range p.byID {
		fn(pl)
	}
}
