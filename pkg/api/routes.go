package api

import (
	"net/http"
)

func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/search", s.HandleSearch)
	mux.HandleFunc("GET /api/locations/resolve", s.HandleResolve)
	mux.HandleFunc("GET /api/locations/search", s.HandleLocationSearch)
	mux.HandleFunc("POST /api/locations/sync", s.HandleSync)
	mux.HandleFunc("GET /api/cache/stats", s.HandleCacheStats)
	mux.HandleFunc("GET /health", s.HandleHealth)
	mux.Handle("GET /metrics", s.svc.Metrics.Handler())
}
