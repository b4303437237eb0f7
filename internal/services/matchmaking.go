package services

import (
	"log"
	"sync"
	"time"

	"github.com/chair-kursi/blitz-monad-miniapp-template/internal/models"
	"github.com/chair-kursi/blitz-monad-miniapp-template/internal/ws"
)

// WaitingEntry is one player parked in the queue until an opponent shows up.
type WaitingEntry struct {
	Identity models.Identity
	Peer     ws.Peer
	JoinedAt time.Time
}

// MatchStrategy picks an opponent among the waiting entries, excluding the
// requester's own address. Returning nil means no compatible opponent.
type MatchStrategy func(waiting map[string]*WaitingEntry, excludeAddress string) *WaitingEntry

// OldestFirst matches the entry that has waited longest.
func OldestFirst(waiting map[string]*WaitingEntry, excludeAddress string) *WaitingEntry {
	var oldest *WaitingEntry
	for addr, entry := range waiting {
		if addr == excludeAddress {
			continue
		}
		if oldest == nil || entry.JoinedAt.Before(oldest.JoinedAt) {
			oldest = entry
		}
	}
	return oldest
}

// Matchmaking holds players awaiting an opponent. Entries expire after the
// configured TTL and are swept both lazily on access and by a background
// ticker.
type Matchmaking struct {
	mu       sync.Mutex
	waiting  map[string]*WaitingEntry
	ttl      time.Duration
	strategy MatchStrategy
	stop     chan struct{}
	stopOnce sync.Once
}

func NewMatchmaking(ttl time.Duration) *Matchmaking {
	return &Matchmaking{
		waiting:  make(map[string]*WaitingEntry),
		ttl:      ttl,
		strategy: OldestFirst,
		stop:     make(chan struct{}),
	}
}

// Match removes and returns the chosen waiting opponent. If none exists the
// requester is queued (replacing any stale entry of their own) and nil is
// returned.
func (m *Matchmaking) Match(ident models.Identity, peer ws.Peer) *WaitingEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.evictLocked(time.Now())

	if opponent := m.strategy(m.waiting, ident.Address); opponent != nil {
		delete(m.waiting, opponent.Identity.Address)
		return opponent
	}

	m.waiting[ident.Address] = &WaitingEntry{
		Identity: ident,
		Peer:     peer,
		JoinedAt: time.Now(),
	}
	log.Printf("matchmaking: %s queued (size: %d)", ident.Username, len(m.waiting))
	return nil
}

// Cancel removes the player's entry. Absent entries are not an error.
func (m *Matchmaking) Cancel(address string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.waiting, address)
}

func (m *Matchmaking) Size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.evictLocked(time.Now())
	return len(m.waiting)
}

func (m *Matchmaking) evictLocked(now time.Time) {
	for addr, entry := range m.waiting {
		if now.Sub(entry.JoinedAt) > m.ttl {
			delete(m.waiting, addr)
			log.Printf("matchmaking: evicted %s after TTL", entry.Identity.Username)
		}
	}
}

// Start runs the background eviction sweep until Stop is called.
func (m *Matchmaking) Start(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.mu.Lock()
				m.evictLocked(time.Now())
				m.mu.Unlock()
			case <-m.stop:
				return
			}
		}
	}()
}

func (m *Matchmaking) Stop() {
	m.stopOnce.Do(func() { close(m.stop) })
}
