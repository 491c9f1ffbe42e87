package locsync

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"reflect"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rubiojr/vendorscout/pkg/geodata"
	"github.com/rubiojr/vendorscout/pkg/locations"
	"github.com/rubiojr/vendorscout/pkg/storage"
)

type fakeSource struct {
	entries []geodata.Entry
	err     error
	calls   atomic.Int32
}

func (f *fakeSource) ListLocations(context.Context) ([]geodata.Entry, error) {
	f.calls.Add(1)
	return f.entries, f.err
}

// failingStore fails the upsert calls whose 1-based index is in failOn.
type failingStore struct {
	*locations.Store
	failOn map[int]bool
	n      int
}

func (f *failingStore) UpsertBatch(ctx context.Context, records []locations.Record) error {
	f.n++
	if f.failOn[f.n] {
		return fmt.Errorf("disk full")
	}
	return f.Store.UpsertBatch(ctx, records)
}

var clockTime = time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)

func fixedClock() time.Time { return clockTime }

func intp(v int) *int { return &v }

func providerEntries() []geodata.Entry {
	return []geodata.Entry{
		{Code: 2840, Name: "United States", Type: "Country"},
		{Code: 1003560, Name: "Texas,United States", Type: "State", ParentCode: intp(2840), CountryISO: "US"},
		{Code: 1003550, Name: "Austin,Texas,United States", Type: "City", ParentCode: intp(1003560), CountryISO: "US",
			Geo: &geodata.Geo{Lat: 30.27, Lon: -97.74}},
		{Code: 1003735, Name: "Dallas,Texas,United States", Type: "City", ParentCode: intp(1003560), CountryISO: "US"},
		{Code: 1009999, Name: "Deep Ellum,Dallas,Texas,United States", Type: "Neighborhood", ParentCode: intp(1003560), CountryISO: "US"},
		{Code: 2124, Name: "Canada", Type: "Country", CountryISO: "CA"},
		{Code: 20113, Name: "Ontario,Canada", Type: "State", ParentCode: intp(2124), CountryISO: "CA"},
	}
}

func newStore(t *testing.T) *locations.Store {
	t.Helper()
	conn, err := storage.OpenAndMigrate(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return locations.NewStore(conn, "US")
}

func TestSyncEmptyStoreFetches(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	src := &fakeSource{entries: providerEntries()}

	res, err := New(store, src, WithClock(fixedClock)).Sync(ctx, ScopeCountry, false)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if src.calls.Load() != 1 {
		t.Fatalf("provider calls = %d, want 1", src.calls.Load())
	}
	if res.Skipped || res.Freshness != locations.FreshnessUnknown {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.Received != 7 || res.Filtered != 5 || res.Processed != 5 || res.Errors != 0 || res.TotalInStore != 5 {
		t.Fatalf("unexpected counts: %+v", res)
	}

	if _, err := store.Get(ctx, 20113); !errors.Is(err, locations.ErrNotFound) {
		t.Fatal("country scope must drop foreign entries")
	}

	country, err := store.Get(ctx, 2840)
	if err != nil {
		t.Fatal("country node must be kept even without an ISO code")
	}
	if country.CountryCode != "US" {
		t.Fatalf("country code should default to US, got %q", country.CountryCode)
	}

	texas, err := store.Get(ctx, 1003560)
	if err != nil {
		t.Fatal(err)
	}
	if texas.Name != "Texas" || texas.CanonicalName != "Texas,United States" || texas.Type != locations.TypeState {
		t.Fatalf("state not mapped: %+v", texas)
	}
	if texas.StateCode == nil || *texas.StateCode != "TX" {
		t.Fatal("state code not derived")
	}

	austin, err := store.Get(ctx, 1003550)
	if err != nil {
		t.Fatal(err)
	}
	if austin.StateCode == nil || *austin.StateCode != "TX" || *austin.StateName != "Texas" {
		t.Fatalf("city not back-filled: %+v", austin)
	}
	if austin.Latitude == nil || *austin.Latitude != 30.27 {
		t.Fatal("coordinates lost")
	}
	if res.Backfilled != 3 {
		t.Fatalf("backfilled = %d, want 3", res.Backfilled)
	}

	hood, err := store.Get(ctx, 1009999)
	if err != nil {
		t.Fatal(err)
	}
	if hood.Type != locations.TypeCity || hood.OriginalType != "Neighborhood" {
		t.Fatalf("neighborhood mapping: %+v", hood)
	}
}

func TestSyncFreshnessGate(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	yesterday := clockTime.Add(-24 * time.Hour)
	seed := []locations.Record{{Code: 1, Name: "Texas", Type: locations.TypeState, CountryCode: "US", LastUpdated: yesterday}}
	if err := store.UpsertBatch(ctx, seed); err != nil {
		t.Fatal(err)
	}

	src := &fakeSource{entries: providerEntries()}
	s := New(store, src, WithClock(fixedClock))

	res, err := s.Sync(ctx, ScopeCountry, false)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Skipped || res.Freshness != locations.Fresh || res.TotalInStore != 1 {
		t.Fatalf("expected skipped fresh result, got %+v", res)
	}
	if src.calls.Load() != 0 {
		t.Fatalf("fresh store triggered %d provider calls", src.calls.Load())
	}

	res, err = s.Sync(ctx, ScopeCountry, true)
	if err != nil {
		t.Fatal(err)
	}
	if res.Skipped || src.calls.Load() != 1 {
		t.Fatalf("forced sync did not call the provider: %+v", res)
	}
}

func TestSyncStaleStoreFetches(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	old := clockTime.Add(-31 * 24 * time.Hour)
	if err := store.UpsertBatch(ctx, []locations.Record{{Code: 1, Name: "X", Type: locations.TypeCity, CountryCode: "US", LastUpdated: old}}); err != nil {
		t.Fatal(err)
	}

	src := &fakeSource{entries: providerEntries()}
	res, err := New(store, src, WithClock(fixedClock)).Sync(ctx, ScopeAll, false)
	if err != nil {
		t.Fatal(err)
	}
	if res.Freshness != locations.Stale || src.calls.Load() != 1 {
		t.Fatalf("stale store not refreshed: %+v", res)
	}
	if res.Filtered != 7 || res.TotalInStore != 8 {
		t.Fatalf("all scope counts: %+v", res)
	}
}

func TestSyncProviderFailure(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	if err := store.UpsertBatch(ctx, []locations.Record{{Code: 1, Name: "Texas", Type: locations.TypeState, CountryCode: "US", LastUpdated: clockTime}}); err != nil {
		t.Fatal(err)
	}

	src := &fakeSource{err: fmt.Errorf("%w: HTTP 503", geodata.ErrProviderStatus)}
	res, err := New(store, src, WithClock(fixedClock)).Sync(ctx, ScopeCountry, true)
	if err == nil || res != nil {
		t.Fatalf("expected failure, got %+v, %v", res, err)
	}
	if !errors.Is(err, geodata.ErrProviderStatus) || !errors.Is(err, ErrFetch) {
		t.Fatalf("error should wrap the provider status: %v", err)
	}

	n, _ := store.Count(ctx)
	if n != 1 {
		t.Fatalf("stored data changed after a failed sync: %d rows", n)
	}
}

func TestSyncBatchFailureContinues(t *testing.T) {
	ctx := context.Background()
	store := &failingStore{Store: newStore(t), failOn: map[int]bool{2: true}}
	src := &fakeSource{entries: providerEntries()}

	res, err := New(store, src, WithClock(fixedClock), WithBatchSize(2)).Sync(ctx, ScopeAll, true)
	if err != nil {
		t.Fatalf("batch failures must not fail the run: %v", err)
	}
	// 7 entries in batches of 2: [0,1] ok, [2,3] fail, [4,5] ok, [6] ok.
	if res.Processed != 5 || res.Errors != 2 || len(res.BatchErrors) != 1 {
		t.Fatalf("unexpected tallies: %+v", res)
	}
	if res.TotalInStore != 5 {
		t.Fatalf("total = %d, want 5", res.TotalInStore)
	}
	if _, err := store.Get(ctx, 1003550); !errors.Is(err, locations.ErrNotFound) {
		t.Fatal("rows from the failed batch should be absent")
	}
	if store.n != 4 {
		t.Fatalf("failed batch was retried or skipped: %d upsert calls", store.n)
	}
}

func TestSyncIdempotent(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	src := &fakeSource{entries: providerEntries()}
	s := New(store, src, WithClock(fixedClock))

	dump := func() []locations.Record {
		var out []locations.Record
		for _, e := range providerEntries() {
			r, err := store.Get(ctx, e.Code)
			if errors.Is(err, locations.ErrNotFound) {
				continue
			}
			if err != nil {
				t.Fatal(err)
			}
			out = append(out, *r)
		}
		return out
	}

	if _, err := s.Sync(ctx, ScopeAll, true); err != nil {
		t.Fatal(err)
	}
	first := dump()

	if _, err := s.Sync(ctx, ScopeAll, true); err != nil {
		t.Fatal(err)
	}
	second := dump()

	if !reflect.DeepEqual(first, second) {
		t.Fatalf("store changed between identical syncs:\n%+v\n%+v", first, second)
	}
	if n, _ := store.Count(ctx); n != len(providerEntries()) {
		t.Fatalf("count = %d, want %d", n, len(providerEntries()))
	}
}

func TestMapType(t *testing.T) {
	tests := map[string]locations.Type{
		"Country":      locations.TypeCountry,
		"State":        locations.TypeState,
		"City":         locations.TypeCity,
		"Neighborhood": locations.TypeCity,
		"Borough":      locations.TypeCity,
		"District":     locations.TypeCity,
		"Airport":      locations.TypeCity,
	}
	for in, want := range tests {
		if got := MapType(in); got != want {
			t.Errorf("MapType(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParseScope(t *testing.T) {
	tests := map[string]Scope{"all": ScopeAll, "ALL": ScopeAll, "country": ScopeCountry, "us_only": ScopeCountry, "": ScopeCountry}
	for in, want := range tests {
		got, err := ParseScope(in)
		if err != nil || got != want {
			t.Errorf("ParseScope(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseScope("galaxy"); err == nil {
		t.Error("expected error for unknown scope")
	}
}
