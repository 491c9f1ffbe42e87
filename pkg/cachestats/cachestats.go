// Package cachestats records aggregated search calls in the search_cache
// table and reports statistics over them.
package cachestats

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rubiojr/vendorscout/pkg/locations"
	"github.com/rubiojr/vendorscout/pkg/log"
)

// DefaultTTL is how long a recorded call counts as live.
const DefaultTTL = 7 * 24 * time.Hour

// Call describes one completed search.
type Call struct {
	Keyword      string
	Location     string
	Subcategory  string
	Category     string
	LocationCode int
	City         string
	State        string
	ResultCount  int
	Cost         float64
}

// CacheStats summarizes the search_cache table.
type CacheStats struct {
	TotalEntries      int     `json:"totalEntries"`
	ExpiredEntries    int     `json:"expiredEntries"`
	TotalAPICost      float64 `json:"totalApiCost"`
	AvgResultCount    float64 `json:"avgResultCount"`
	CacheHitPotential float64 `json:"cacheHitPotential"`
}

// Key builds the search key: keyword|location[|subcategory], lower-cased.
func Key(keyword, location, subcategory string) string {
	parts := []string{
		strings.ToLower(strings.TrimSpace(keyword)),
		strings.ToLower(strings.TrimSpace(location)),
	}
	if s := strings.ToLower(strings.TrimSpace(subcategory)); s != "" {
		parts = append(parts, s)
	}
	return strings.Join(parts, "|")
}

type Store struct {
	db     *sql.DB
	ttl    time.Duration
	logger *log.Logger
}

func NewStore(db *sql.DB, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{db: db, ttl: ttl, logger: log.ForService("cachestats")}
}

func stamp(t time.Time) string {
	return t.UTC().Format(locations.TimeLayout)
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// Record upserts the call. Repeated keys bump hit_count, accumulate cost and
// extend the expiry.
func (s *Store) Record(ctx context.Context, c Call, now time.Time) error {
	key := Key(c.Keyword, c.Location, c.Subcategory)
	if key == "|" {
		return fmt.Errorf("recording search call: empty key")
	}

	var code any
	if c.LocationCode != 0 {
		code = c.LocationCode
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO search_cache (search_key, keyword, location, subcategory, category, location_code,
			city, state, result_count, api_cost, hit_count, created_at, last_seen_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?, ?)
		ON CONFLICT(search_key) DO UPDATE SET
			category = excluded.category,
			location_code = excluded.location_code,
			city = excluded.city,
			state = excluded.state,
			result_count = excluded.result_count,
			api_cost = search_cache.api_cost + excluded.api_cost,
			hit_count = search_cache.hit_count + 1,
			last_seen_at = excluded.last_seen_at,
			expires_at = excluded.expires_at`,
		key, strings.TrimSpace(c.Keyword), strings.TrimSpace(c.Location), nullString(c.Subcategory),
		nullString(c.Category), code, nullString(c.City), nullString(c.State),
		c.ResultCount, c.Cost, stamp(now), stamp(now), stamp(now.Add(s.ttl)))
	if err != nil {
		return fmt.Errorf("recording search call %q: %w", key, err)
	}
	return nil
}

// Stats reports totals over every recorded key. Hit potential is the share
// of recorded calls that repeated a key already seen, as a percentage.
func (s *Store) Stats(ctx context.Context, now time.Time) (CacheStats, error) {
	var (
		st              CacheStats
		hits, repeats   int64
		avgResults, sum sql.NullFloat64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN expires_at <= ? THEN 1 ELSE 0 END), 0),
			SUM(api_cost),
			AVG(result_count),
			COALESCE(SUM(hit_count), 0),
			COALESCE(SUM(hit_count - 1), 0)
		FROM search_cache`, stamp(now)).
		Scan(&st.TotalEntries, &st.ExpiredEntries, &sum, &avgResults, &hits, &repeats)
	if err != nil {
		return CacheStats{}, fmt.Errorf("reading cache stats: %w", err)
	}

	st.TotalAPICost = sum.Float64
	st.AvgResultCount = avgResults.Float64
	if hits > 0 {
		st.CacheHitPotential = float64(repeats) / float64(hits) * 100
	}
	return st, nil
}

// PruneExpired deletes rows whose expiry is at or before now.
func (s *Store) PruneExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM search_cache WHERE expires_at <= ?`, stamp(now))
	if err != nil {
		return 0, fmt.Errorf("pruning search calls: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Infof("pruned %d expired search calls", n)
	}
	return n, nil
}
