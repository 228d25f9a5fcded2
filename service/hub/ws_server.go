package hub

import (
	"encoding/json"
	"net/http"

	"callbridge/logger"
	midsec "callbridge/middleware/security"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// PresenceSink is what the websocket endpoint needs from the presence
// registry. Connection teardown is only a hint: presence stays
// heartbeat-driven, so a page navigation does not flap the user offline.
type PresenceSink interface {
	MarkOnline(userID int64, username string)
	Heartbeat(userID int64)
}

// clientFrame is the only inbound message shape the push channel accepts.
// The channel is for server->client events; clients signal liveness here
// and do everything else over the REST API.
type clientFrame struct {
	Type string `json:"type"`
}

// HandleWS upgrades an authenticated request to the user's push channel.
// Registered behind the auth middleware; identity comes from the token.
func (h *Hub) HandleWS(presence PresenceSink) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := midsec.UserID(c)
		username := midsec.Username(c)

		ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Infof("[ws] upgrade failed user=%d err=%v", userID, err)
			return
		}

		presence.MarkOnline(userID, username)
		ch := h.Attach(userID, ws)
		defer h.Detach(userID, ch)

		ws.SetPongHandler(func(string) error {
			presence.Heartbeat(userID)
			return nil
		})

		logger.Infof("[ws] channel up user=%d", userID)
		for {
			mt, data, rerr := ws.ReadMessage()
			if rerr != nil {
				if websocket.IsCloseError(rerr,
					websocket.CloseNormalClosure,
					websocket.CloseGoingAway,
					websocket.CloseNoStatusReceived,
				) {
					logger.Infof("[ws] peer closed user=%d", userID)
				} else {
					logger.Infof("[ws] read err user=%d err=%v", userID, rerr)
				}
				return
			}
			if mt != websocket.TextMessage {
				continue
			}
			var f clientFrame
			if err := json.Unmarshal(data, &f); err != nil {
				continue
			}
			if f.Type == "heartbeat" {
				presence.Heartbeat(userID)
			}
		}
	}
}
