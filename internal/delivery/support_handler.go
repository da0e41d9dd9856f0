package delivery

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Vovarama1992/featured-media/internal/domain"
	"github.com/Vovarama1992/featured-media/internal/ports"
	"github.com/Vovarama1992/go-utils/logger"
	"github.com/go-chi/chi/v5"
)

type SupportHandler struct {
	support ports.SupportService
	log     *logger.ZapLogger
}

func NewSupportHandler(support ports.SupportService, log *logger.ZapLogger) *SupportHandler {
	return &SupportHandler{
		support: support,
		log:     log,
	}
}

// GET /api/support/{key}/sysinfo
func (h *SupportHandler) SysInfo(w http.ResponseWriter, r *http.Request) {
	info, err := h.support.SysInfo(r.Context(), chi.URLParam(r, "key"))
	switch {
	case errors.Is(err, domain.ErrNotOptedIn):
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "Invalid Opt-in Key"})
		return
	case errors.Is(err, domain.ErrInvalidKey):
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "Invalid System Info Key"})
		return
	case err != nil:
		h.log.Log(logger.LogEntry{
			Level:   "error",
			Message: "sysinfo failed",
			Error:   err,
		})
		http.Error(w, "failed sysinfo", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, info)
}

// GET /api/support/stats
func (h *SupportHandler) Stats(w http.ResponseWriter, r *http.Request) {
	info, err := h.support.Stats(r.Context())
	if err != nil {
		h.log.Log(logger.LogEntry{
			Level:   "error",
			Message: "support stats failed",
			Error:   err,
		})
		http.Error(w, "failed stats", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// POST /api/support/optin {"optin": true}
func (h *SupportHandler) OptIn(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OptIn bool `json:"optin"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json: "+err.Error(), http.StatusBadRequest)
		return
	}

	key, err := h.support.OptIn(r.Context(), req.OptIn)
	if err != nil {
		h.log.Log(logger.LogEntry{
			Level:   "error",
			Message: "optin failed",
			Error:   err,
		})
		http.Error(w, "failed optin", http.StatusInternalServerError)
		return
	}

	h.log.Log(logger.LogEntry{
		Level:   "info",
		Message: "sysinfo optin changed",
		Fields:  map[string]any{"optin": req.OptIn},
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"optin": req.OptIn,
		"key":   key,
	})
}
