package api

import (
	"time"

	"github.com/rubiojr/vendorscout/pkg/cachestats"
	"github.com/rubiojr/vendorscout/pkg/locations"
	"github.com/rubiojr/vendorscout/pkg/locsync"
	"github.com/rubiojr/vendorscout/pkg/resolver"
	"github.com/rubiojr/vendorscout/pkg/search"
	"github.com/rubiojr/vendorscout/pkg/sources"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// SearchErrorResponse keeps the success shape so clients can always read
// results.
type SearchErrorResponse struct {
	Error        string           `json:"error"`
	Results      []sources.Result `json:"results"`
	TotalResults int              `json:"totalResults"`
}

type SearchResponse struct {
	*search.Response
	Source string `json:"source"`
}

type ResolveResponse struct {
	Query string `json:"query"`
	resolver.Resolved
}

type LocationSearchResponse struct {
	Query     string             `json:"query"`
	Locations []locations.Record `json:"locations"`
	Count     int                `json:"count"`
}

type SyncRequest struct {
	Scope        string `json:"scope"`
	ForceRefresh bool   `json:"forceRefresh"`
}

type SyncResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	*locsync.Result
}

type CacheStatsResponse struct {
	Stats cachestats.CacheStats `json:"stats"`
}

type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
	Locations int       `json:"locations"`
}
