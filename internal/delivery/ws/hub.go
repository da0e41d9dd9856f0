package ws

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/Vovarama1992/featured-media/internal/ports"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const writeWait = 5 * time.Second

// Hub fans upload events out to websocket subscribers grouped in rooms.
type Hub struct {
	mu    sync.Mutex
	rooms map[string]map[*websocket.Conn]bool
	log   *zap.SugaredLogger
}

func NewHub(log *zap.SugaredLogger) *Hub {
	log.Infow("[hub] init")
	return &Hub{
		rooms: make(map[string]map[*websocket.Conn]bool),
		log:   log,
	}
}

func (h *Hub) Register(roomID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.rooms[roomID]; !ok {
		h.rooms[roomID] = make(map[*websocket.Conn]bool)
		h.log.Debugw("[hub] create room", "room", roomID)
	}

	h.rooms[roomID][conn] = true
	h.log.Infow("[hub] register", "room", roomID, "conns", len(h.rooms[roomID]))
}

func (h *Hub) Unregister(roomID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	conns, ok := h.rooms[roomID]
	if !ok {
		return
	}

	if _, ok := conns[conn]; ok {
		delete(conns, conn)
		conn.Close()
		h.log.Infow("[hub] unregister", "room", roomID, "conns", len(conns))
	}

	if len(conns) == 0 {
		delete(h.rooms, roomID)
	}
}

// Count returns the number of open connections across all rooms.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	n := 0
	for _, conns := range h.rooms {
		n += len(conns)
	}
	return n
}

func (h *Hub) SendToRoom(roomID string, msg []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	conns, ok := h.rooms[roomID]
	if !ok || len(conns) == 0 {
		h.log.Debugw("[hub][SEND-SKIP] no active connections", "room", roomID)
		return
	}
	h.write(roomID, conns, msg)
}

// Broadcast writes msg to every room. Writes hold the hub lock since a
// websocket connection allows only one concurrent writer.
func (h *Hub) Broadcast(msg []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for roomID, conns := range h.rooms {
		h.write(roomID, conns, msg)
	}
}

func (h *Hub) write(roomID string, conns map[*websocket.Conn]bool, msg []byte) {
	for conn := range conns {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			h.log.Warnw("[hub][SEND-ERR]", "room", roomID, "err", err)
		}
	}
}

type uploadMsg struct {
	Status    string `json:"status"`
	AssetID   int    `json:"assetId"`
	SourceURL string `json:"sourceUrl"`
	URL       string `json:"url"`
	MimeType  string `json:"mimeType,omitempty"`
}

// Pump delivers every event until the channel closes or done fires. Events
// tagged with a room go to that room only, the rest to everyone.
func (h *Hub) Pump(done <-chan struct{}, events <-chan ports.UploadEvent) {
	for {
		select {
		case <-done:
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			payload, err := json.Marshal(uploadMsg{
				Status:    "uploaded",
				AssetID:   ev.AssetID,
				SourceURL: ev.SourceURL,
				URL:       ev.URL,
				MimeType:  ev.MimeType,
			})
			if err != nil {
				h.log.Errorw("[SEND][ERR] json marshal failed", "err", err)
				continue
			}
			h.log.Debugw("[SEND] upload event", "id", ev.AssetID, "url", ev.URL, "room", ev.RoomID)
			if ev.RoomID != "" {
				h.SendToRoom(ev.RoomID, payload)
				continue
			}
			h.Broadcast(payload)
		}
	}
}

var Upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}
