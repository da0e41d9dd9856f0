package delivery

import (
	"github.com/go-chi/chi/v5"
)

type Handlers struct {
	Auth    *AuthHandler
	Media   *MediaHandler
	Support *SupportHandler
	JSONLD  *JSONLDHandler
}

func RegisterRoutes(r chi.Router, h Handlers) {

	// login
	r.Post("/api/login", h.Auth.Login)

	// featured image resolver
	r.Post("/api/media/resolve", h.Media.Resolve)
	r.Post("/api/media/reset", h.Media.Reset)
	r.Get("/api/media/stats", h.Media.Stats)
	r.Get("/api/media/{id}", h.Media.GetAsset)

	// structured data
	r.Get("/api/jsonld/{type}", h.JSONLD.Get)

	// support
	r.Get("/api/support/stats", h.Support.Stats)
	r.Post("/api/support/optin", h.Support.OptIn)
	r.Get("/api/support/{key}/sysinfo", h.Support.SysInfo)
}
