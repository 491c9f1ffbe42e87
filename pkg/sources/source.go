// Package sources defines the vendor repositories a search fans out to.
//
// Each repository has its own schema. An Adapter hides that schema behind
// one query shape (Query) and one result shape (Result). Adapter
// implementations live in subpackages and register a factory from init();
// the binary imports them for their side effect.
package sources

import (
	"context"
	"encoding/json"
	"strings"
)

// Query is what every adapter receives. Empty strings mean "not set".
type Query struct {
	// Category is the classified category; when empty adapters match
	// Keyword as free text instead.
	Category    string
	Keyword     string
	Subcategory string
	City        string
	State       string
}

type Rating struct {
	Value float64 `json:"value"`
	Count int     `json:"count"`
}

// Result is one vendor in the shape shared by all sources. Every field is
// always serialized; optional values are null.
type Result struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Rating      *Rating  `json:"rating"`
	Phone       *string  `json:"phone"`
	Address     *string  `json:"address"`
	URL         *string  `json:"url"`
	ExternalID  string   `json:"externalId"`
	Images      []string `json:"images"`
	Latitude    *float64 `json:"latitude"`
	Longitude   *float64 `json:"longitude"`
	Category    string   `json:"category"`
	Subcategory *string  `json:"subcategory"`
	City        string   `json:"city"`
	State       string   `json:"state"`
	SourceTag   string   `json:"sourceTag"`
}

// Adapter queries one repository. Search returns either results or an error;
// the aggregator turns errors into an empty contribution.
type Adapter interface {
	// Name is the configured instance name.
	Name() string
	// Tag identifies the repository kind in results.
	Tag() string
	Search(ctx context.Context, q Query) ([]Result, error)
}

// StringPtr returns nil for blank strings.
func StringPtr(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// DecodeImages parses a JSON array column. It never returns nil so results
// always serialize images as an array.
func DecodeImages(raw string) []string {
	images := []string{}
	if strings.TrimSpace(raw) == "" {
		return images
	}
	var parsed []string
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return images
	}
	for _, img := range parsed {
		if img != "" {
			images = append(images, img)
		}
	}
	return images
}

// JoinPlace formats "City, State", skipping empty parts.
func JoinPlace(city, state string) string {
	var parts []string
	for _, p := range []string{city, state} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}
