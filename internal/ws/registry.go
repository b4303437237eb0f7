package ws

import (
	"sync"

	"github.com/chair-kursi/blitz-monad-miniapp-template/internal/models"
)

// Registry maps live connections to their authenticated identity and to the
// session they currently belong to.
type Registry struct {
	mu         sync.RWMutex
	identities map[Peer]models.Identity
	sessions   map[Peer]string
}

func NewRegistry() *Registry {
	return &Registry{
		identities: make(map[Peer]models.Identity),
		sessions:   make(map[Peer]string),
	}
}

func (r *Registry) Bind(p Peer, ident models.Identity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.identities[p] = ident
}

func (r *Registry) Identity(p Peer) (models.Identity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ident, ok := r.identities[p]
	return ident, ok
}

func (r *Registry) SetSession(p Peer, sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[p] = sessionID
}

func (r *Registry) Session(p Peer) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.sessions[p]
	return id, ok && id != ""
}

func (r *Registry) ClearSession(p Peer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, p)
}

// Unbind removes every trace of the connection.
func (r *Registry) Unbind(p Peer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.identities, p)
	delete(r.sessions, p)
}
