package player

import (
	"sync"
	"testing"

	"github.com/ashen-labs/luamod/pkg/events"
)

// captureSub records events delivered through the bus.
type captureSub struct {
	mu     sync.Mutex
	events []events.Event
}

func (c *captureSub) Receive(ev events.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
}

func (c *captureSub) Closed() bool { return false }

func (c *captureSub) Events() []events.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := make([]events.Event, len(c.events))
	copy(cp, c.events)
	return cp
}

func TestPoolConnectDisconnect(t *testing.T) {
	bus := events.NewBus()
	sub := &captureSub{}
	bus.SubscribeGlobal(sub)

	pool := NewPool(4, bus)
	pl, err := pool.Connect(7, "alice", 3)
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	if pl.ID() != 7 || pl.Name() != "alice" || pl.Authority() != 3 {
		t.Errorf("player = %d/%q/%d", pl.ID(), pl.Name(), pl.Authority())
	}
	if pool.Count() != 1 {
		t.Errorf("Count = %d, want 1", pool.Count())
	}

	pool.Disconnect(7)
	if pool.Count() != 0 {
		t.Errorf("Count = %d after disconnect", pool.Count())
	}
	if _, ok := pool.Get(7); ok {
		t.Error("Get found a disconnected player")
	}

	evs := sub.Events()
	if len(evs) != 2 {
		t.Fatalf("expected connect+disconnect events, got %d", len(evs))
	}
	if evs[0].Type != events.EvConnect || evs[1].Type != events.EvDisconnect {
		t.Errorf("event types = %v, %v", evs[0].Type, evs[1].Type)
	}
}

func TestPoolDuplicateID(t *testing.T) {
	pool := NewPool(4, events.NewBus())
	if _, err := pool.Connect(1, "alice", 0); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	if _, err := pool.Connect(1, "bob", 0); err == nil {
		t.Error("duplicate id was admitted")
	}
}

func TestPoolCapacity(t *testing.T) {
	pool := NewPool(2, events.NewBus())
	for id := int32(1); id <= 2; id++ {
		if _, err := pool.Connect(id, "p", 0); err != nil {
			t.Fatalf("Connect(%d) failed: %v", id, err)
		}
	}
	if _, err := pool.Connect(3, "p", 0); err == nil {
		t.Error("pool admitted a player past capacity")
	}
	// Releasing a slot makes room again.
	pool.Disconnect(1)
	if _, err := pool.Connect(3, "p", 0); err != nil {
		t.Errorf("Connect after release failed: %v", err)
	}
}

func TestPoolByName(t *testing.T) {
	pool := NewPool(4, events.NewBus())
	pool.Connect(1, "Alice", 0)
	pl, ok := pool.ByName("alice")
	if !ok || pl.ID() != 1 {
		t.Errorf("ByName(alice) = %v, %v", pl, ok)
	}
	if _, ok := pool.ByName("carol"); ok {
		t.Error("ByName found an unknown player")
	}
}

func TestPlayerSendRoutesThroughBus(t *testing.T) {
	bus := events.NewBus()
	sub := &captureSub{}
	bus.Subscribe(9, sub)

	pool := NewPool(4, bus)
	pl, err := pool.Connect(9, "alice", 0)
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	pl.Send("you see nothing special")

	evs := sub.Events()
	if len(evs) != 2 { // connect + output
		t.Fatalf("expected 2 events, got %d", len(evs))
	}
	out := evs[1]
	if out.Type != events.EvOutput || out.Text != "you see nothing special" {
		t.Errorf("output event = %v %q", out.Type, out.Text)
	}
}

func TestPlayerSuspend(t *testing.T) {
	pool := NewPool(4, events.NewBus())
	pl, _ := pool.Connect(1, "alice", 0)
	if pl.Suspended() {
		t.Error("new player starts suspended")
	}
	pl.SetSuspended(true)
	if !pl.Suspended() {
		t.Error("SetSuspended(true) did not stick")
	}
}
