// Package locsync refreshes the location taxonomy from the geo-data
// provider.
//
// A run is gated on freshness: when the oldest stored record is younger than
// the threshold, nothing is fetched. Otherwise the provider is called once,
// the entries are filtered and mapped, and they are upserted in fixed-size
// batches. A failed batch is counted and skipped; the run goes on.
package locsync

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rubiojr/vendorscout/pkg/geodata"
	"github.com/rubiojr/vendorscout/pkg/locations"
	"github.com/rubiojr/vendorscout/pkg/log"
	"github.com/rubiojr/vendorscout/pkg/metrics"
)

// ErrFetch wraps provider failures. Stored locations are untouched when it
// is returned.
var ErrFetch = errors.New("fetching locations")

// DefaultBatchSize is the number of records written per transaction.
const DefaultBatchSize = 100

// Scope selects which provider entries are kept.
type Scope string

const (
	ScopeAll     Scope = "all"
	ScopeCountry Scope = "country"
)

// ParseScope accepts "all" and "country" (also "us_only" and "countryOnly").
func ParseScope(s string) (Scope, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "all":
		return ScopeAll, nil
	case "", "country", "countryonly", "us_only":
		return ScopeCountry, nil
	}
	return "", fmt.Errorf("unknown sync scope %q", s)
}

// Store is the write side of the taxonomy.
type Store interface {
	UpsertBatch(ctx context.Context, records []locations.Record) error
	BackfillStateCodes(ctx context.Context, states []locations.Record) (int64, error)
	Count(ctx context.Context) (int, error)
	Freshness(ctx context.Context, now time.Time, threshold time.Duration) (locations.Freshness, error)
}

// Result summarizes one run.
type Result struct {
	RunID        string              `json:"runId"`
	Skipped      bool                `json:"skipped"`
	Freshness    locations.Freshness `json:"freshness"`
	Received     int                 `json:"totalReceived"`
	Filtered     int                 `json:"filtered"`
	Processed    int                 `json:"processed"`
	Errors       int                 `json:"errors"`
	Backfilled   int64               `json:"backfilled"`
	TotalInStore int                 `json:"totalInStore"`
	BatchErrors  []string            `json:"batchErrors,omitempty"`
	ElapsedMs    int64               `json:"elapsedMs"`
}

// Message is a one-line human summary.
func (r *Result) Message() string {
	if r.Skipped {
		return fmt.Sprintf("locations are up to date (%d stored)", r.TotalInStore)
	}
	return fmt.Sprintf("synced %d of %d locations (%d errors, %d stored)", r.Processed, r.Filtered, r.Errors, r.TotalInStore)
}

// Synchronizer owns all writes to the taxonomy store.
type Synchronizer struct {
	store     Store
	source    geodata.Source
	country   string
	rootCode  int
	threshold time.Duration
	batchSize int
	now       func() time.Time
	metrics   *metrics.Metrics
	logger    *log.Logger
}

type Option func(*Synchronizer)

// WithCountry sets the ISO country kept by ScopeCountry and used as the
// default country code, plus the provider code of the country node itself.
func WithCountry(iso string, code int) Option {
	return func(s *Synchronizer) {
		s.country = strings.ToUpper(iso)
		s.rootCode = code
	}
}

// WithFreshnessThreshold sets the age after which data is stale.
func WithFreshnessThreshold(d time.Duration) Option {
	return func(s *Synchronizer) { s.threshold = d }
}

func WithBatchSize(n int) Option {
	return func(s *Synchronizer) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Synchronizer) { s.now = now }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Synchronizer) { s.metrics = m }
}

func New(store Store, source geodata.Source, opts ...Option) *Synchronizer {
	s := &Synchronizer{
		store:     store,
		source:    source,
		country:   "US",
		rootCode:  locations.USCountryCode,
		threshold: 30 * 24 * time.Hour,
		batchSize: DefaultBatchSize,
		now:       time.Now,
		logger:    log.ForService("locsync"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sync runs one synchronization. Unless force is set, a Fresh store makes
// it return immediately without calling the provider. A provider failure
// aborts the run and leaves stored data untouched.
func (s *Synchronizer) Sync(ctx context.Context, scope Scope, force bool) (*Result, error) {
	start := s.now()
	res := &Result{RunID: uuid.NewString()}
	l := s.logger.WithRequest(res.RunID[:8])
	l.Infof("sync requested (scope=%s, force=%v)", scope, force)

	freshness, err := s.store.Freshness(ctx, start, s.threshold)
	if err != nil {
		s.metrics.SyncCompleted("failed", 0, 0, 0)
		return nil, fmt.Errorf("checking freshness: %w", err)
	}
	res.Freshness = freshness

	if !force && freshness == locations.Fresh {
		if res.TotalInStore, err = s.store.Count(ctx); err != nil {
			return nil, err
		}
		res.Skipped = true
		l.Infof("locations are fresh, skipping provider call")
		s.metrics.SyncCompleted("skipped", 0, 0, res.TotalInStore)
		return res, nil
	}

	entries, err := s.source.ListLocations(ctx)
	if err != nil {
		l.Errorf("provider fetch failed: %v", err)
		s.metrics.SyncCompleted("failed", 0, 0, 0)
		return nil, fmt.Errorf("%w: %w", ErrFetch, err)
	}
	res.Received = len(entries)

	records := s.mapEntries(s.filter(entries, scope), start)
	res.Filtered = len(records)
	l.Infof("received %d locations, %d after %s filter", res.Received, res.Filtered, scope)

	var synced []locations.Record
	for i := 0; i < len(records); i += s.batchSize {
		batch := records[i:min(i+s.batchSize, len(records))]
		if err := s.store.UpsertBatch(ctx, batch); err != nil {
			res.Errors += len(batch)
			msg := fmt.Sprintf("batch %d-%d: %v", i, i+len(batch)-1, err)
			res.BatchErrors = append(res.BatchErrors, msg)
			l.Errorf("%s", msg)
			continue
		}
		res.Processed += len(batch)
		for _, r := range batch {
			if r.Type == locations.TypeState {
				synced = append(synced, r)
			}
		}
		if done := i + len(batch); done%500 == 0 {
			l.Debugf("progress: %d/%d", done, len(records))
		}
	}

	if len(synced) > 0 {
		n, err := s.store.BackfillStateCodes(ctx, synced)
		if err != nil {
			l.Warnf("state backfill failed: %v", err)
			res.BatchErrors = append(res.BatchErrors, "backfill: "+err.Error())
		}
		res.Backfilled = n
	}

	if res.TotalInStore, err = s.store.Count(ctx); err != nil {
		l.Warnf("counting locations: %v", err)
	}
	res.ElapsedMs = s.now().Sub(start).Milliseconds()

	l.Infof("%s", res.Message())
	s.metrics.SyncCompleted("ok", res.Processed, res.Errors, res.TotalInStore)
	return res, nil
}

func (s *Synchronizer) filter(entries []geodata.Entry, scope Scope) []geodata.Entry {
	if scope == ScopeAll {
		return entries
	}
	out := make([]geodata.Entry, 0, len(entries))
	for _, e := range entries {
		if strings.EqualFold(e.CountryISO, s.country) || e.Code == s.rootCode {
			out = append(out, e)
		}
	}
	return out
}

func (s *Synchronizer) mapEntries(entries []geodata.Entry, now time.Time) []locations.Record {
	records := make([]locations.Record, 0, len(entries))
	for _, e := range entries {
		records = append(records, s.mapEntry(e, now))
	}
	return records
}

func (s *Synchronizer) mapEntry(e geodata.Entry, now time.Time) locations.Record {
	r := locations.Record{
		Code:          e.Code,
		Name:          displayName(e.Name),
		CanonicalName: e.Name,
		Type:          MapType(e.Type),
		ParentCode:    e.ParentCode,
		CountryCode:   strings.ToUpper(e.CountryISO),
		OriginalType:  e.Type,
		LastUpdated:   now,
	}
	if r.CountryCode == "" {
		r.CountryCode = s.country
	}
	if e.Geo != nil {
		lat, lon := e.Geo.Lat, e.Geo.Lon
		r.Latitude, r.Longitude = &lat, &lon
	}
	if r.Type == locations.TypeState && r.CountryCode == "US" {
		if code, ok := locations.StateCode(r.Name); ok {
			name := r.Name
			r.StateCode, r.StateName = &code, &name
		}
	}
	return r
}

// MapType translates the provider's location type vocabulary. Unknown types
// map to city.
func MapType(providerType string) locations.Type {
	switch providerType {
	case "Country":
		return locations.TypeCountry
	case "State":
		return locations.TypeState
	default:
		return locations.TypeCity
	}
}

// displayName keeps the first segment of names like
// "Austin,Texas,United States".
func displayName(name string) string {
	first, _, _ := strings.Cut(name, ",")
	return strings.TrimSpace(first)
}
