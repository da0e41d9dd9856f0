package delivery

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/Vovarama1992/featured-media/internal/models"
	"github.com/Vovarama1992/featured-media/internal/ports"
	"github.com/Vovarama1992/go-utils/logger"
	"github.com/go-chi/chi/v5"
)

type MediaHandler struct {
	resolver ports.AttachmentResolver
	store    ports.MediaStore
	log      *logger.ZapLogger
}

func NewMediaHandler(resolver ports.AttachmentResolver, store ports.MediaStore, log *logger.ZapLogger) *MediaHandler {
	return &MediaHandler{
		resolver: resolver,
		store:    store,
		log:      log,
	}
}

// featuredImage accepts a JSON string (URL or numeric id) or a JSON number.
type featuredImage struct {
	ref models.MediaRef
}

func (f *featuredImage) UnmarshalJSON(b []byte) error {
	var n int
	if err := json.Unmarshal(b, &n); err == nil {
		f.ref = models.RefFromID(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	f.ref = models.ParseMediaRef(s)
	return nil
}

// POST /api/media/resolve
func (h *MediaHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FeaturedImage featuredImage `json:"featured_image"`
		// RoomID limits the upload event to one websocket room.
		RoomID string `json:"roomID"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json: "+err.Error(), http.StatusBadRequest)
		return
	}

	ref := req.FeaturedImage.ref
	id, ok := h.resolver.Resolve(ports.WithRoom(r.Context(), req.RoomID), ref)

	h.log.Log(logger.LogEntry{
		Level:   "info",
		Message: "featured image resolved",
		Fields: map[string]any{
			"kind":     ref.Kind().String(),
			"ref":      ref.String(),
			"resolved": ok,
			"id":       id,
			"room":     req.RoomID,
		},
	})

	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not resolved"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"id": id})
}

// POST /api/media/reset
func (h *MediaHandler) Reset(w http.ResponseWriter, r *http.Request) {
	h.resolver.Reset()

	h.log.Log(logger.LogEntry{
		Level:   "info",
		Message: "resolver cache reset",
	})

	w.WriteHeader(http.StatusNoContent)
}

// GET /api/media/stats
func (h *MediaHandler) Stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.resolver.Stats())
}

// GET /api/media/{id}
func (h *MediaHandler) GetAsset(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id <= 0 {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	post, err := h.store.GetAsset(r.Context(), id)
	if err != nil {
		h.log.Log(logger.LogEntry{
			Level:   "error",
			Message: "get asset failed",
			Fields:  map[string]any{"id": id},
			Error:   err,
		})
		http.Error(w, "failed get asset", http.StatusInternalServerError)
		return
	}
	if !post.IsAttachment() {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}

	writeJSON(w, http.StatusOK, post)
}
