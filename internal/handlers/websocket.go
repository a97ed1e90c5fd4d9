package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const maxRPCMessageSize = 1 << 20 // 1 MB, uploads go over HTTP

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// wsConnect upgrades a dashboard connection, registers it with the hub,
// and serves JSON-RPC requests until the client goes away. Responses and
// notifications share the session's write queue.
func (h *Handler) wsConnect(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Errorw("ws_upgrade_failed", "err", err)
		return
	}

	sess := h.hub.Register(conn)
	defer h.hub.Unregister(sess)

	conn.SetReadLimit(maxRPCMessageSize)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var req rpcRequest
		if err := json.Unmarshal(data, &req); err != nil {
			h.log.Debugw("rpc_malformed_request", "err", err)
			continue
		}
		sess.Send(h.dispatch(c.Request.Context(), sess, &req))
	}
}
