package search

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/rubiojr/vendorscout/pkg/cachestats"
	"github.com/rubiojr/vendorscout/pkg/log"
	"github.com/rubiojr/vendorscout/pkg/metrics"
	"github.com/rubiojr/vendorscout/pkg/resolver"
	"github.com/rubiojr/vendorscout/pkg/sources"
)

// DefaultAdapterTimeout bounds each adapter call.
const DefaultAdapterTimeout = 3 * time.Second

// ErrValidation marks requests rejected before any source is queried.
var ErrValidation = errors.New("invalid search request")

// Classifier maps a keyword to a canonical category.
type Classifier interface {
	Classify(keyword string) (string, bool)
}

// LocationResolver maps free-text locations to provider codes.
type LocationResolver interface {
	Resolve(ctx context.Context, text string) resolver.Resolved
}

// Recorder stores completed calls for cache statistics.
type Recorder interface {
	Record(ctx context.Context, c cachestats.Call, now time.Time) error
}

type Request struct {
	Keyword     string `json:"keyword"`
	Location    string `json:"location"`
	Subcategory string `json:"subcategory,omitempty"`
}

// SourceReport is the outcome of one adapter for one request.
type SourceReport struct {
	Name      string `json:"name"`
	Tag       string `json:"tag"`
	Count     int    `json:"count"`
	Error     string `json:"error,omitempty"`
	ElapsedMs int64  `json:"elapsedMs"`
}

type Response struct {
	RequestID    string           `json:"requestId"`
	Results      []sources.Result `json:"results"`
	Total        int              `json:"totalResults"`
	PerSource    []SourceReport   `json:"perSource"`
	Category     string           `json:"category,omitempty"`
	City         string           `json:"city,omitempty"`
	State        string           `json:"state,omitempty"`
	LocationCode int              `json:"locationCode"`
	MatchedLevel resolver.Level   `json:"matchedLevel,omitempty"`
	ElapsedMs    int64            `json:"queryTime"`
}

// PerSourceCounts returns result counts keyed by source name.
func (r *Response) PerSourceCounts() map[string]int {
	counts := make(map[string]int, len(r.PerSource))
	for _, s := range r.PerSource {
		counts[s.Name] = s.Count
	}
	return counts
}

type Option func(*Aggregator)

func WithClassifier(c Classifier) Option {
	return func(a *Aggregator) { a.classifier = c }
}

func WithResolver(r LocationResolver) Option {
	return func(a *Aggregator) { a.resolver = r }
}

func WithRecorder(r Recorder) Option {
	return func(a *Aggregator) { a.recorder = r }
}

// WithCosts sets the per-call cost of each source, keyed by adapter name.
func WithCosts(costs map[string]float64) Option {
	return func(a *Aggregator) { a.costs = costs }
}

func WithAdapterTimeout(d time.Duration) Option {
	return func(a *Aggregator) {
		if d > 0 {
			a.timeout = d
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(a *Aggregator) { a.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) { a.now = now }
}

// Aggregator fans a request out to its adapters and merges the results.
type Aggregator struct {
	adapters   []sources.Adapter
	classifier Classifier
	resolver   LocationResolver
	recorder   Recorder
	costs      map[string]float64
	timeout    time.Duration
	metrics    *metrics.Metrics
	now        func() time.Time
	logger     *log.Logger
}

// New returns an aggregator over adapters, queried and merged in the given
// order.
func New(adapters []sources.Adapter, opts ...Option) *Aggregator {
	a := &Aggregator{
		adapters: adapters,
		timeout:  DefaultAdapterTimeout,
		now:      time.Now,
		logger:   log.ForService("search"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Sources lists the adapters in merge order.
func (a *Aggregator) Sources() []sources.Adapter {
	out := make([]sources.Adapter, len(a.adapters))
	copy(out, a.adapters)
	return out
}

// SplitLocation splits "City, State[, ...]" on commas. Place filters need
// both parts: a bare token or a half-empty pair yields two empty strings so
// the search is not narrowed by place.
func SplitLocation(text string) (city, state string) {
	before, after, ok := strings.Cut(text, ",")
	if !ok {
		return "", ""
	}
	state, _, _ = strings.Cut(after, ",")
	city, state = strings.TrimSpace(before), strings.TrimSpace(state)
	if city == "" || state == "" {
		return "", ""
	}
	return city, state
}

type slot struct {
	results []sources.Result
	err     error
	elapsed time.Duration
}

// Search runs req against every adapter. The only error returned is
// ErrValidation; source failures are reported in Response.PerSource.
func (a *Aggregator) Search(ctx context.Context, req Request) (*Response, error) {
	keyword := strings.TrimSpace(req.Keyword)
	location := strings.TrimSpace(req.Location)
	switch {
	case keyword == "":
		a.metrics.SearchCompleted("invalid", 0, 0)
		return nil, fmt.Errorf("%w: keyword is required", ErrValidation)
	case location == "":
		a.metrics.SearchCompleted("invalid", 0, 0)
		return nil, fmt.Errorf("%w: location is required", ErrValidation)
	}

	start := a.now()
	resp := &Response{RequestID: uuid.NewString()}
	logger := a.logger.WithRequest(resp.RequestID)

	q := sources.Query{
		Keyword:     keyword,
		Subcategory: strings.TrimSpace(req.Subcategory),
	}
	q.City, q.State = SplitLocation(location)
	if a.classifier != nil {
		if cat, ok := a.classifier.Classify(keyword); ok {
			q.Category = cat
		}
	}
	if a.resolver != nil {
		loc := a.resolver.Resolve(ctx, location)
		resp.LocationCode, resp.MatchedLevel = loc.Code, loc.Level
	}
	resp.Category, resp.City, resp.State = q.Category, q.City, q.State

	logger.Infof("searching %q in %q (category=%q city=%q state=%q code=%d)",
		keyword, location, q.Category, q.City, q.State, resp.LocationCode)

	slots := make([]slot, len(a.adapters))
	var g errgroup.Group
	for i, ad := range a.adapters {
		g.Go(func() error {
			slots[i] = a.run(ctx, ad, q)
			return nil
		})
	}
	_ = g.Wait()

	resp.Results = []sources.Result{}
	resp.PerSource = make([]SourceReport, len(a.adapters))
	var cost float64
	for i, ad := range a.adapters {
		s := slots[i]
		report := SourceReport{Name: ad.Name(), Tag: ad.Tag(), ElapsedMs: s.elapsed.Milliseconds()}
		if s.err != nil {
			report.Error = s.err.Error()
			logger.Errorf("source %s failed: %v", ad.Name(), s.err)
		} else {
			report.Count = len(s.results)
			resp.Results = append(resp.Results, s.results...)
			cost += a.costs[ad.Name()]
		}
		a.metrics.SourceCompleted(ad.Name(), report.Count, s.err != nil, s.elapsed)
		resp.PerSource[i] = report
	}
	resp.Total = len(resp.Results)

	elapsed := a.now().Sub(start)
	resp.ElapsedMs = elapsed.Milliseconds()
	a.metrics.SearchCompleted("ok", resp.Total, elapsed)
	logger.Infof("found %d results from %d sources in %dms", resp.Total, len(a.adapters), resp.ElapsedMs)

	if a.recorder != nil {
		call := cachestats.Call{
			Keyword:      keyword,
			Location:     location,
			Subcategory:  q.Subcategory,
			Category:     q.Category,
			LocationCode: resp.LocationCode,
			City:         q.City,
			State:        q.State,
			ResultCount:  resp.Total,
			Cost:         cost,
		}
		if err := a.recorder.Record(ctx, call, a.now()); err != nil {
			logger.Warnf("recording search call: %v", err)
		}
	}
	return resp, nil
}

// run queries one adapter. Panics and timeouts become errors.
func (a *Aggregator) run(ctx context.Context, ad sources.Adapter, q sources.Query) slot {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	start := time.Now()
	done := make(chan slot, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				a.logger.Debugf("source %s panic stack:\n%s", ad.Name(), debug.Stack())
				done <- slot{err: fmt.Errorf("source panicked: %v", r)}
			}
		}()
		results, err := ad.Search(ctx, q)
		done <- slot{results: results, err: err}
	}()

	var s slot
	select {
	case s = <-done:
	case <-ctx.Done():
		s = slot{err: fmt.Errorf("source timed out after %s: %w", a.timeout, ctx.Err())}
	}
	if s.err == nil && s.results == nil {
		s.results = []sources.Result{}
	}
	s.elapsed = time.Since(start)
	return s
}
