package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rubiojr/vendorscout/pkg/locations"
	"github.com/rubiojr/vendorscout/pkg/locsync"
	"github.com/rubiojr/vendorscout/pkg/search"
	"github.com/rubiojr/vendorscout/pkg/sources"
	"github.com/rubiojr/vendorscout/pkg/version"
)

const (
	defaultLocationLimit = 10
	maxLocationLimit     = 50
	maxBodyBytes         = 1 << 20
)

func (s *Server) searchError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, SearchErrorResponse{Error: msg, Results: []sources.Result{}})
}

func (s *Server) HandleSearch(w http.ResponseWriter, r *http.Request) {
	if s.svc.Search == nil {
		s.searchError(w, http.StatusServiceUnavailable, "search is not configured")
		return
	}

	var req search.Request
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		s.searchError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	resp, err := s.svc.Search.Search(r.Context(), req)
	switch {
	case errors.Is(err, search.ErrValidation):
		s.searchError(w, http.StatusBadRequest, "Keyword and location are required")
		return
	case err != nil:
		s.logger.Errorf("search failed: %v", err)
		s.searchError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, SearchResponse{Response: resp, Source: "database"})
}

func (s *Server) HandleResolve(w http.ResponseWriter, r *http.Request) {
	if s.svc.Resolver == nil {
		s.unavailable(w, "location resolver")
		return
	}

	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		s.writeError(w, http.StatusBadRequest, "Missing query parameter", "Query parameter 'q' is required")
		return
	}

	s.writeJSON(w, http.StatusOK, ResolveResponse{Query: q, Resolved: s.svc.Resolver.Resolve(r.Context(), q)})
}

func (s *Server) HandleLocationSearch(w http.ResponseWriter, r *http.Request) {
	if s.svc.Locations == nil {
		s.unavailable(w, "location index")
		return
	}

	q := strings.TrimSpace(r.URL.Query().Get("q"))
	limit := defaultLocationLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			s.writeError(w, http.StatusBadRequest, "Invalid limit", "limit must be a positive integer")
			return
		}
		limit = min(parsed, maxLocationLimit)
	}

	records, err := s.svc.Locations.Search(r.Context(), q, limit)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "Location search failed", err.Error())
		return
	}
	if records == nil {
		records = []locations.Record{}
	}

	s.writeJSON(w, http.StatusOK, LocationSearchResponse{Query: q, Locations: records, Count: len(records)})
}

func (s *Server) HandleSync(w http.ResponseWriter, r *http.Request) {
	if s.svc.Sync == nil {
		s.unavailable(w, "location sync")
		return
	}

	var req SyncRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		s.writeError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}
	scope, err := locsync.ParseScope(req.Scope)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid scope", err.Error())
		return
	}

	res, err := s.svc.Sync.Sync(r.Context(), scope, req.ForceRefresh)
	switch {
	case errors.Is(err, locsync.ErrFetch):
		s.writeError(w, http.StatusBadGateway, "Location provider failed", err.Error())
		return
	case err != nil:
		s.writeError(w, http.StatusInternalServerError, "Location sync failed", err.Error())
		return
	}

	if !res.Skipped && res.Processed > 0 && s.svc.OnSynced != nil {
		s.svc.OnSynced(res)
	}
	s.writeJSON(w, http.StatusOK, SyncResponse{Success: true, Message: res.Message(), Result: res})
}

func (s *Server) HandleCacheStats(w http.ResponseWriter, r *http.Request) {
	if s.svc.Stats == nil {
		s.unavailable(w, "cache statistics")
		return
	}

	stats, err := s.svc.Stats.Stats(r.Context(), time.Now())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "Failed to get stats", err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, CacheStatsResponse{Stats: stats})
}

func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	health := HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC(),
		Version:   version.APIVersion(),
	}
	if s.svc.Locations != nil {
		n, err := s.svc.Locations.Count(r.Context())
		if err != nil {
			health.Status = "degraded"
		}
		health.Locations = n
	}

	s.writeJSON(w, http.StatusOK, health)
}
