// Package api exposes the listing service and the configuration provider
// over HTTP.
package api

import (
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/koustreak/bucketlens/internal/logger"
)

// NewRouter wires the routes. When staticDir names an existing directory it
// is served at "/".
func NewRouter(h *Handler, log *logger.Logger, staticDir string) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestID(log))
	r.Use(middleware.RealIP)
	r.Use(RequestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", h.Health)

	r.Route("/api", func(r chi.Router) {
		r.Get("/files", h.ListFiles)
		r.Get("/file/*", h.GetFile)
		r.Get("/config", h.GetConfig)
		r.Get("/types", h.Types)
		r.Post("/save-env", h.SaveEnv)
		r.Post("/set-bucket", h.SetBucket)
	})

	if staticDir != "" {
		if info, err := os.Stat(staticDir); err == nil && info.IsDir() {
			r.Handle("/*", http.FileServer(http.Dir(staticDir)))
		} else {
			log.Warn("static directory " + staticDir + " not found, UI disabled")
		}
	}

	return r
}
