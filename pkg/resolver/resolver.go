// Package resolver turns free-text locations such as "Dallas, Texas" into
// provider location codes.
//
// Lookups go city+state, then state, then a fixed country default, and never
// fail. Results are cached in an injected TTL cache keyed by the normalized
// input. The resolver only reads stored locations; while the store is empty
// it answers from the built-in fallback table.
package resolver

import (
	"context"
	"errors"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/rubiojr/vendorscout/pkg/cache"
	"github.com/rubiojr/vendorscout/pkg/locations"
	"github.com/rubiojr/vendorscout/pkg/log"
	"github.com/rubiojr/vendorscout/pkg/metrics"
)

// Level is the hierarchy level a resolution matched at.
type Level string

const (
	LevelCity    Level = "city"
	LevelState   Level = "state"
	LevelDefault Level = "country-default"
)

// Resolved is a resolution result and the cached value.
type Resolved struct {
	Code  int   `json:"locationCode"`
	Level Level `json:"matchedLevel"`
}

// Store is the stored taxonomy as seen by the resolver.
type Store interface {
	locations.Lookup
	Count(ctx context.Context) (int, error)
}

// Cache holds resolutions by normalized key.
type Cache = cache.TTL[string, Resolved]

// NewCache returns a resolution cache with the given entry lifetime.
func NewCache(ttl time.Duration) *Cache {
	return cache.NewTTL[string, Resolved](ttl)
}

type Resolver struct {
	store       Store
	fallback    locations.Lookup
	cache       *Cache
	defaultCode int
	metrics     *metrics.Metrics
	logger      *log.Logger
}

type Option func(*Resolver)

// WithDefaultCode sets the code returned when nothing matches.
func WithDefaultCode(code int) Option {
	return func(r *Resolver) { r.defaultCode = code }
}

// WithFallback replaces the built-in fallback table.
func WithFallback(l locations.Lookup) Option {
	return func(r *Resolver) { r.fallback = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Resolver) { r.metrics = m }
}

// New returns a Resolver reading store and caching in c. The resolver owns c;
// nothing else should write to it.
func New(store Store, c *Cache, opts ...Option) *Resolver {
	r := &Resolver{
		store:       store,
		fallback:    locations.Fallback(),
		cache:       c,
		defaultCode: locations.USCountryCode,
		logger:      log.ForService("resolver"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Normalize returns the cache key for text and its city and state parts.
// "Dallas ,  TEXAS" becomes ("dallas, texas", "dallas", "texas"); a bare
// token has an empty city. Segments after the second comma are ignored.
func Normalize(text string) (key, city, state string) {
	lower := cases.Lower(language.Und)
	parts := strings.Split(text, ",")
	clean := func(s string) string {
		return strings.Join(strings.Fields(lower.String(s)), " ")
	}

	if len(parts) == 1 {
		state = clean(parts[0])
		return state, "", state
	}
	city, state = clean(parts[0]), clean(parts[1])
	switch {
	case city == "":
		return state, "", state
	case state == "":
		return city, "", city
	}
	return city + ", " + state, city, state
}

// Resolve returns the location code for text. It never fails: misses and
// lookup errors degrade to the default code.
func (r *Resolver) Resolve(ctx context.Context, text string) Resolved {
	key, city, state := Normalize(text)
	if key == "" {
		return r.fallbackResult()
	}

	if v, ok := r.cache.Get(key); ok {
		r.metrics.LocationCache(true)
		return v
	}
	r.metrics.LocationCache(false)

	res, err := r.compute(ctx, city, state)
	if err != nil {
		// Degraded answers are not cached so the next call retries.
		r.logger.Warnf("resolving %q: %v", text, err)
	} else {
		r.cache.Set(key, res)
	}
	r.metrics.Resolved(string(res.Level))
	r.logger.Debugf("resolved %q to %d (%s)", key, res.Code, res.Level)
	return res
}

// Purge drops every cached resolution. Call it after a sync.
func (r *Resolver) Purge() {
	r.cache.Purge()
}

func (r *Resolver) fallbackResult() Resolved {
	return Resolved{Code: r.defaultCode, Level: LevelDefault}
}

func (r *Resolver) lookup(ctx context.Context) locations.Lookup {
	n, err := r.store.Count(ctx)
	if err != nil {
		r.logger.Warnf("counting stored locations: %v", err)
		return r.store
	}
	if n == 0 {
		return r.fallback
	}
	return r.store
}

func (r *Resolver) compute(ctx context.Context, city, state string) (Resolved, error) {
	l := r.lookup(ctx)

	st, err := l.StateByName(ctx, state)
	if errors.Is(err, locations.ErrNotFound) {
		return r.fallbackResult(), nil
	}
	if err != nil {
		return r.fallbackResult(), err
	}

	if city != "" {
		c, err := l.CityInState(ctx, st.Code, city)
		switch {
		case err == nil:
			return Resolved{Code: c.Code, Level: LevelCity}, nil
		case !errors.Is(err, locations.ErrNotFound):
			return Resolved{Code: st.Code, Level: LevelState}, err
		}
	}
	return Resolved{Code: st.Code, Level: LevelState}, nil
}
