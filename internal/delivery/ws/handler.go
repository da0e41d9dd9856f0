package ws

import (
	"net/http"

	"github.com/gorilla/websocket"
)

// WSHandler subscribes the caller to upload events for roomID (default
// "default") and holds the connection until the client goes away.
func WSHandler(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := Upgrader.Upgrade(w, r, nil)
		if err != nil {
			hub.log.Warnw("[WS] upgrade failed", "err", err)
			return
		}

		roomID := r.URL.Query().Get("roomID")
		if roomID == "" {
			roomID = "default"
		}

		if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"status":"subscribed"}`)); err != nil {
			conn.Close()
			return
		}

		hub.Register(roomID, conn)
		defer hub.Unregister(roomID, conn)

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				hub.log.Debugw("[WS] disconnect", "room", roomID)
				return
			}
		}
	}
}
