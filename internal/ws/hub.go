package ws

import (
	"log"
	"sync"
)

// Hub routes events to every connection attached to a session.
type Hub struct {
	mu       sync.RWMutex
	sessions map[string]map[Peer]bool
}

func NewHub() *Hub {
	return &Hub{
		sessions: make(map[string]map[Peer]bool),
	}
}

func (h *Hub) Join(sessionID string, p Peer) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.sessions[sessionID] == nil {
		h.sessions[sessionID] = make(map[Peer]bool)
	}
	h.sessions[sessionID][p] = true
	log.Printf("ws: peer %s joined session %s (total: %d)", p.ID(), sessionID, len(h.sessions[sessionID]))
}

func (h *Hub) Leave(sessionID string, p Peer) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if peers, ok := h.sessions[sessionID]; ok {
		delete(peers, p)
		if len(peers) == 0 {
			delete(h.sessions, sessionID)
		}
		log.Printf("ws: peer %s left session %s", p.ID(), sessionID)
	}
}

// Drop detaches every connection from the session without closing them; the
// players stay connected and can queue for another match.
func (h *Hub) Drop(sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.sessions, sessionID)
}

func (h *Hub) Peers(sessionID string) []Peer {
	h.mu.RLock()
	defer h.mu.RUnlock()
	peers := make([]Peer, 0, len(h.sessions[sessionID]))
	for p := range h.sessions[sessionID] {
		peers = append(peers, p)
	}
	return peers
}

func (h *Hub) Count(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions[sessionID])
}

// Broadcast delivers the event to every peer in the session, optionally
// excluding one (the sender of the event being echoed).
func (h *Hub) Broadcast(sessionID string, ev Event, exclude Peer) {
	h.mu.RLock()
	peers := make([]Peer, 0, len(h.sessions[sessionID]))
	for p := range h.sessions[sessionID] {
		if p == exclude {
			continue
		}
		peers = append(peers, p)
	}
	h.mu.RUnlock()

	for _, p := range peers {
		if err := p.Send(ev); err != nil {
			log.Printf("ws: write error to %s: %v", p.ID(), err)
		}
	}
}
