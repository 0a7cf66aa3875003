package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tabcoach/tabcoach/internal/provider"
)

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)
	s.router.Get("/providers", s.handleProviders)

	s.router.Get("/settings", s.handleGetSettings)
	s.router.Patch("/settings", s.handlePatchSettings)

	s.router.Route("/tab/{tabID}", func(r chi.Router) {
		r.Get("/state", s.handleGetTabState)
		r.Post("/context", s.handlePostContext)
		r.Post("/snapshot", s.handlePostSnapshot)
		r.Get("/history", s.handleGetHistory)
		r.Delete("/history", s.handleClearHistory)
		r.Post("/rescan", s.handleRescan)
		r.Delete("/", s.handleCloseTab)
	})

	s.router.Get("/event", s.handleEvents)
	s.router.Get("/channel", s.handleChannel)
	s.router.Get("/observer", s.handleObserver)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeOK(w, map[string]any{"status": "ok"})
}

func (s *Server) handleProviders(w http.ResponseWriter, r *http.Request) {
	writeOK(w, map[string]any{"providers": provider.Catalog()})
}
