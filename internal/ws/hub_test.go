package ws

import (
	"sync"
	"testing"

	"github.com/chair-kursi/blitz-monad-miniapp-template/internal/models"
)

type memPeer struct {
	id     string
	mu     sync.Mutex
	events []Event
}

func (p *memPeer) ID() string { return p.id }

func (p *memPeer) Send(ev Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *memPeer) Close() error { return nil }

func (p *memPeer) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

func TestBroadcastExcludesSender(t *testing.T) {
	hub := NewHub()
	a := &memPeer{id: "a"}
	b := &memPeer{id: "b"}
	hub.Join("s1", a)
	hub.Join("s1", b)

	hub.Broadcast("s1", Event{Type: "ping"}, a)

	if a.count() != 0 {
		t.Fatalf("sender received its own broadcast")
	}
	if b.count() != 1 {
		t.Fatalf("peer got %d events, want 1", b.count())
	}

	hub.Broadcast("s1", Event{Type: "ping"}, nil)
	if a.count() != 1 || b.count() != 2 {
		t.Fatalf("broadcast without exclusion should reach everyone, a=%d b=%d", a.count(), b.count())
	}
}

func TestBroadcastScopedToSession(t *testing.T) {
	hub := NewHub()
	a := &memPeer{id: "a"}
	b := &memPeer{id: "b"}
	hub.Join("s1", a)
	hub.Join("s2", b)

	hub.Broadcast("s1", Event{Type: "ping"}, nil)

	if b.count() != 0 {
		t.Fatal("broadcast leaked into another session")
	}
}

func TestLeaveAndDrop(t *testing.T) {
	hub := NewHub()
	a := &memPeer{id: "a"}
	b := &memPeer{id: "b"}
	hub.Join("s1", a)
	hub.Join("s1", b)

	hub.Leave("s1", a)
	if hub.Count("s1") != 1 {
		t.Fatalf("count = %d after leave, want 1", hub.Count("s1"))
	}

	hub.Drop("s1")
	if hub.Count("s1") != 0 {
		t.Fatalf("count = %d after drop, want 0", hub.Count("s1"))
	}
	hub.Broadcast("s1", Event{Type: "ping"}, nil)
	if b.count() != 0 {
		t.Fatal("dropped session should not receive broadcasts")
	}
}

func TestRegistryLifecycle(t *testing.T) {
	reg := NewRegistry()
	p := &memPeer{id: "p"}
	ident := models.Identity{ID: 1, Username: "alice", Address: "0xabc"}

	if _, ok := reg.Identity(p); ok {
		t.Fatal("unbound peer should have no identity")
	}

	reg.Bind(p, ident)
	got, ok := reg.Identity(p)
	if !ok || got.Address != "0xabc" {
		t.Fatalf("identity = %+v, ok = %v", got, ok)
	}

	reg.SetSession(p, "s1")
	if sid, ok := reg.Session(p); !ok || sid != "s1" {
		t.Fatalf("session = %q, ok = %v", sid, ok)
	}

	reg.ClearSession(p)
	if _, ok := reg.Session(p); ok {
		t.Fatal("cleared session still reported")
	}
	if _, ok := reg.Identity(p); !ok {
		t.Fatal("clearing the session must not unbind the identity")
	}

	reg.Unbind(p)
	if _, ok := reg.Identity(p); ok {
		t.Fatal("unbound peer still has identity")
	}
}
