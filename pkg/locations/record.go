// Package locations holds the country/state/city taxonomy used to turn
// free-text locations into provider location codes.
//
// Records are written only by the synchronizer (see pkg/locsync) and read by
// the resolver through the Lookup interface. A small static Fallback table
// implements the same interface for the first run, before any sync.
package locations

import (
	"context"
	"errors"
	"time"
)

// Type is the level of a location in the hierarchy.
type Type string

const (
	TypeCountry Type = "country"
	TypeState   Type = "state"
	TypeCity    Type = "city"
)

// ErrNotFound is returned by lookups that match nothing.
var ErrNotFound = errors.New("location not found")

// Record is one node of the taxonomy. Code is the provider-assigned location
// code and the primary key.
type Record struct {
	Code          int       `json:"locationCode"`
	Name          string    `json:"name"`
	CanonicalName string    `json:"canonicalName,omitempty"`
	Type          Type      `json:"type"`
	ParentCode    *int      `json:"parentLocationCode"`
	CountryCode   string    `json:"countryCode"`
	StateCode     *string   `json:"stateCode"`
	StateName     *string   `json:"stateName"`
	Latitude      *float64  `json:"latitude"`
	Longitude     *float64  `json:"longitude"`
	OriginalType  string    `json:"originalType,omitempty"`
	LastUpdated   time.Time `json:"lastUpdated"`
}

// Lookup is the read side used by the resolver.
type Lookup interface {
	// StateByName matches a state by name or two-letter code,
	// case-insensitively.
	StateByName(ctx context.Context, name string) (*Record, error)
	// CityInState matches a city by name among the children of stateCode.
	CityInState(ctx context.Context, stateCode int, name string) (*Record, error)
}

// Freshness describes whether stored locations are recent enough to skip a
// provider refresh. It is derived from the oldest last_updated timestamp.
type Freshness int

const (
	FreshnessUnknown Freshness = iota
	Fresh
	Stale
)

func (f Freshness) String() string {
	switch f {
	case Fresh:
		return "fresh"
	case Stale:
		return "stale"
	default:
		return "unknown"
	}
}

func (f Freshness) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

func (f *Freshness) UnmarshalText(text []byte) error {
	switch string(text) {
	case "fresh":
		*f = Fresh
	case "stale":
		*f = Stale
	default:
		*f = FreshnessUnknown
	}
	return nil
}

// FreshnessAt classifies the age of oldest relative to now. A zero oldest
// means the store is empty.
func FreshnessAt(oldest, now time.Time, threshold time.Duration) Freshness {
	if oldest.IsZero() {
		return FreshnessUnknown
	}
	if now.Sub(oldest) < threshold {
		return Fresh
	}
	return Stale
}

func ptr[T any](v T) *T { return &v }
