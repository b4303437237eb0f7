package handlers

import (
	"log"
	"net/http"

	"github.com/chair-kursi/blitz-monad-miniapp-template/internal/engine"
	"github.com/chair-kursi/blitz-monad-miniapp-template/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

type WSHandler struct {
	engine *engine.Engine
}

func NewWSHandler(e *engine.Engine) *WSHandler {
	return &WSHandler{engine: e}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// HandleWebSocket upgrades the connection and pumps inbound frames into the
// engine until the client goes away.
func (h *WSHandler) HandleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("ws: upgrade error: %v", err)
		return
	}

	peer := ws.NewPeer(conn)
	log.Printf("ws: client connected: %s", peer.ID())
	defer func() {
		h.engine.Disconnect(peer)
		peer.Close()
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			break
		}
		h.engine.Dispatch(peer, raw)
	}
}
