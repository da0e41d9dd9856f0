package delivery

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/Vovarama1992/featured-media/internal/domain/jsonld"
	"github.com/Vovarama1992/go-utils/logger"
	"github.com/go-chi/chi/v5"
)

type JSONLDHandler struct {
	registry *jsonld.Registry
	log      *logger.ZapLogger
}

func NewJSONLDHandler(registry *jsonld.Registry, log *logger.ZapLogger) *JSONLDHandler {
	return &JSONLDHandler{
		registry: registry,
		log:      log,
	}
}

// GET /api/jsonld/{type}?ids=1,2&skip_duplicates=false
func (h *JSONLDHandler) Get(w http.ResponseWriter, r *http.Request) {
	typ := chi.URLParam(r, "type")
	gen, ok := h.registry.Get(typ)
	if !ok {
		http.Error(w, "unknown type", http.StatusNotFound)
		return
	}

	ids, err := parseIDs(r.URL.Query().Get("ids"))
	if err != nil || len(ids) == 0 {
		http.Error(w, "invalid ids", http.StatusBadRequest)
		return
	}

	args := jsonld.Args{SkipDuplicates: true}
	if v := r.URL.Query().Get("skip_duplicates"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			args.SkipDuplicates = b
		}
	}

	seen := jsonld.NewTracker()
	things, err := gen.Data(r.Context(), ids, args, seen)
	if err != nil {
		h.log.Log(logger.LogEntry{
			Level:   "error",
			Message: "jsonld failed",
			Fields:  map[string]any{"type": typ, "ids": ids},
			Error:   err,
		})
		http.Error(w, "failed jsonld", http.StatusInternalServerError)
		return
	}

	h.log.Log(logger.LogEntry{
		Level:   "info",
		Message: "jsonld rendered",
		Fields:  map[string]any{"type": typ, "rendered": seen.IDs()},
	})

	w.Header().Set("Content-Type", "application/ld+json")
	_ = json.NewEncoder(w).Encode(things)
}

func parseIDs(raw string) ([]int, error) {
	var ids []int
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.Atoi(part)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
