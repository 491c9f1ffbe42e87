// Package api serves the vendor search and location endpoints over HTTP.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rubiojr/vendorscout/pkg/cachestats"
	"github.com/rubiojr/vendorscout/pkg/locations"
	"github.com/rubiojr/vendorscout/pkg/locsync"
	"github.com/rubiojr/vendorscout/pkg/log"
	"github.com/rubiojr/vendorscout/pkg/metrics"
	"github.com/rubiojr/vendorscout/pkg/search"
)

type Searcher interface {
	Search(ctx context.Context, req search.Request) (*search.Response, error)
}

type LocationIndex interface {
	Search(ctx context.Context, query string, limit int) ([]locations.Record, error)
	Count(ctx context.Context) (int, error)
}

type Syncer interface {
	Sync(ctx context.Context, scope locsync.Scope, force bool) (*locsync.Result, error)
}

type StatsReader interface {
	Stats(ctx context.Context, now time.Time) (cachestats.CacheStats, error)
}

// Services are the components behind the endpoints. Nil services make their
// endpoints answer 503.
type Services struct {
	Search    Searcher
	Resolver  search.LocationResolver
	Locations LocationIndex
	Sync      Syncer
	Stats     StatsReader
	Metrics   *metrics.Metrics
	// OnSynced runs after every sync that wrote records.
	OnSynced func(*locsync.Result)
}

type Server struct {
	svc    Services
	logger *log.Logger
}

func NewServer(svc Services) *Server {
	return &Server{svc: svc, logger: log.ForService("api")}
}

// Handler returns the routed mux wrapped in the CORS and metrics middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return CorsMiddleware(s.svc.Metrics.Middleware(mux))
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Errorf("encoding JSON response: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, error, message string) {
	s.writeJSON(w, status, ErrorResponse{Error: error, Message: message})
}

func (s *Server) unavailable(w http.ResponseWriter, what string) {
	s.writeError(w, http.StatusServiceUnavailable, "Service unavailable", what+" is not configured")
}

func CorsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "authorization, x-client-info, apikey, content-type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
