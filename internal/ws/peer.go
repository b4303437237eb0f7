package ws

import (
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Peer is one live client connection. The engine and hub only ever talk to
// this interface; tests substitute an in-memory implementation.
type Peer interface {
	ID() string
	Send(ev Event) error
	Close() error
}

type wsPeer struct {
	id   string
	mu   sync.Mutex
	conn *websocket.Conn
}

// NewPeer wraps a websocket connection with a unique id and a write lock.
// Gorilla connections do not allow concurrent writers.
func NewPeer(conn *websocket.Conn) Peer {
	return &wsPeer{id: uuid.NewString(), conn: conn}
}

func (p *wsPeer) ID() string { return p.id }

func (p *wsPeer) Send(ev Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.conn.WriteJSON(ev)
}

func (p *wsPeer) Close() error {
	return p.conn.Close()
}
