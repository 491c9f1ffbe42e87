// Package integration_tests exercises the full stack: config file,
// migrations, a location sync from a provider dump, and vendor search over
// the HTTP API.
package integration_tests

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"

	"github.com/rubiojr/vendorscout/pkg/config"
	"github.com/rubiojr/vendorscout/pkg/geodata"
	"github.com/rubiojr/vendorscout/pkg/sources/sourcetest"
)

const (
	usCode      = 2840
	texasCode   = 1003560
	austinCode  = 1026339
	dallasCode  = 1026201
	ontarioCode = 9000001
)

func ip(v int) *int { return &v }

// ProviderEntries is a small provider dump with one foreign record.
func ProviderEntries() []geodata.Entry {
	return []geodata.Entry{
		{Code: usCode, Name: "United States", Type: "Country", CountryISO: "US"},
		{Code: texasCode, Name: "Texas,United States", Type: "State", ParentCode: ip(usCode), CountryISO: "US"},
		{Code: austinCode, Name: "Austin,Texas,United States", Type: "City", ParentCode: ip(texasCode), CountryISO: "US",
			Geo: &geodata.Geo{Lat: 30.27, Lon: -97.74}},
		{Code: dallasCode, Name: "Dallas,Texas,United States", Type: "City", ParentCode: ip(texasCode), CountryISO: "US"},
		{Code: ontarioCode, Name: "Ontario,Canada", Type: "Province", CountryISO: "CA"},
	}
}

// WriteLocationsFile writes entries as a gzip-compressed provider envelope.
func WriteLocationsFile(t *testing.T, path string, entries []geodata.Entry) {
	t.Helper()

	env := map[string]any{
		"status_code":    geodata.StatusOK,
		"status_message": "Ok.",
		"tasks": []map[string]any{
			{"status_code": geodata.StatusOK, "result": entries},
		},
	}

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Failed to create locations file: %v", err)
	}
	defer f.Close()

	gz := gzip.NewWriter(f)
	if err := json.NewEncoder(gz).Encode(env); err != nil {
		t.Fatalf("Failed to encode locations: %v", err)
	}
	if err := gz.Close(); err != nil {
		t.Fatalf("Failed to flush locations file: %v", err)
	}
}

// CreateTestConfig writes a config whose provider reads a local dump.
func CreateTestConfig(t *testing.T, tempDir string) (string, *config.Config) {
	t.Helper()

	cfg, err := config.GetDefaultConfig()
	if err != nil {
		t.Fatal(err)
	}
	cfg.StorageDir = tempDir
	cfg.Provider.LocationsFile = filepath.Join(tempDir, "locations.json.gz")
	cfg.Search.RecordCalls = true
	cfg.Sources[1].Cost = 0.003

	WriteLocationsFile(t, cfg.Provider.LocationsFile, ProviderEntries())

	path := filepath.Join(tempDir, "config.toml")
	if err := cfg.SaveConfig(path); err != nil {
		t.Fatalf("Failed to save config: %v", err)
	}
	return path, cfg
}

// SeedVendors fills every vendor repository with a few Texas vendors.
func SeedVendors(t *testing.T, ctx context.Context, db *sql.DB) {
	t.Helper()

	lat, lng := 30.26, -97.75
	steps := []func() (int64, error){
		func() (int64, error) {
			return sourcetest.InsertListing(ctx, db, sourcetest.Listing{
				Name: "Hill Country Photo", Category: "photographers", City: "Austin", State: "Texas",
				Rating: 4.7, Reviews: 18, Images: []string{"https://img.example/hcp.jpg"},
			})
		},
		func() (int64, error) {
			return sourcetest.InsertListing(ctx, db, sourcetest.Listing{
				Name: "Bluebonnet Blooms", Category: "florists", City: "Austin", State: "Texas",
			})
		},
		func() (int64, error) {
			return sourcetest.InsertBusiness(ctx, db, sourcetest.Business{
				Name: "Congress Ave Studio", Category: "photographers", PlaceID: "ChIJaustin",
				Latitude: &lat, Longitude: &lng, City: "Austin", State: "Texas",
			})
		},
		func() (int64, error) {
			return sourcetest.InsertBusiness(ctx, db, sourcetest.Business{
				Name: "Deep Ellum Shots", Category: "photographers", City: "Dallas", State: "Texas",
			})
		},
		func() (int64, error) {
			return sourcetest.InsertSocial(ctx, db, sourcetest.Social{
				Handle: "atxweddingphoto", Category: "photographers", Followers: 12000,
				City: "Austin", State: "Texas",
			})
		},
	}
	for _, step := range steps {
		if _, err := step(); err != nil {
			t.Fatalf("Failed to seed vendors: %v", err)
		}
	}
}
