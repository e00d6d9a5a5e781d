package events

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // the UI is served from another origin in development
	},
}

// WSHandler upgrades the request and streams hub events until the client
// goes away. Incoming messages are ignored.
func WSHandler(hub *Hub, logger zerolog.Logger) gin.HandlerFunc {
	log := logger.With().Str("component", "ws").Logger()

	return func(c *gin.Context) {
		ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Debug().Err(err).Msg("upgrade failed")
			return
		}

		// The hub becomes the only writer once the conn is added, so the
		// welcome goes out first.
		if err := ws.WriteMessage(
			websocket.TextMessage,
			[]byte(`{"type":"welcome","transport":"websocket"}`+"\n"),
		); err != nil {
			_ = ws.Close()
			return
		}
		hub.AddWS(ws)
		log.Debug().Str("remote", c.ClientIP()).Msg("client connected")

		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				break
			}
		}

		hub.RemoveWS(ws)
		log.Debug().Str("remote", c.ClientIP()).Msg("client disconnected")
	}
}
