package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rubiojr/vendorscout/pkg/cachestats"
	"github.com/rubiojr/vendorscout/pkg/category"
	"github.com/rubiojr/vendorscout/pkg/config"
	"github.com/rubiojr/vendorscout/pkg/db"
	"github.com/rubiojr/vendorscout/pkg/geodata"
	"github.com/rubiojr/vendorscout/pkg/locations"
	"github.com/rubiojr/vendorscout/pkg/locsync"
	"github.com/rubiojr/vendorscout/pkg/log"
	"github.com/rubiojr/vendorscout/pkg/metrics"
	"github.com/rubiojr/vendorscout/pkg/resolver"
	"github.com/rubiojr/vendorscout/pkg/search"
	"github.com/rubiojr/vendorscout/pkg/sources"
	"github.com/rubiojr/vendorscout/pkg/storage"
)

// app holds every component built from one config file.
type app struct {
	cfg       *config.Config
	db        *sql.DB
	metrics   *metrics.Metrics
	locations *locations.Store
	resolver  *resolver.Resolver
	stats     *cachestats.Store
	syncer    *locsync.Synchronizer
	sources   *sources.Registry
	search    *search.Aggregator
}

// openApp loads the config, opens the database and wires the components.
// Pending migrations are an error; run `vendorscout migrate` first.
func openApp(ctx context.Context, configPath string) (*app, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	conn, err := storage.Open(cfg.DBPath())
	if err != nil {
		return nil, err
	}
	if err := checkPendingMigrations(ctx, conn); err != nil {
		_ = conn.Close()
		return nil, err
	}

	a, err := newApp(cfg, conn)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	return a, nil
}

func newApp(cfg *config.Config, conn *sql.DB) (*app, error) {
	a := &app{
		cfg:       cfg,
		db:        conn,
		metrics:   metrics.New(),
		locations: locations.NewStore(conn, cfg.Locations.Country),
		stats:     cachestats.NewStore(conn, cfg.Search.CallTTL.Duration),
		sources:   sources.NewRegistry(),
	}

	a.resolver = resolver.New(a.locations, resolver.NewCache(cfg.Locations.CacheTTL.Duration),
		resolver.WithDefaultCode(cfg.Locations.DefaultCode),
		resolver.WithMetrics(a.metrics),
	)

	a.syncer = locsync.New(a.locations, providerSource(cfg),
		locsync.WithCountry(cfg.Locations.Country, cfg.Locations.DefaultCode),
		locsync.WithFreshnessThreshold(freshnessThreshold(cfg)),
		locsync.WithMetrics(a.metrics),
	)

	if err := createSourcesFromConfig(a.sources, cfg, conn); err != nil {
		return nil, err
	}

	opts := []search.Option{
		search.WithClassifier(category.New(category.WithStripPrefix(cfg.Category.Prefix()))),
		search.WithResolver(a.resolver),
		search.WithAdapterTimeout(cfg.Search.AdapterTimeout.Duration),
		search.WithCosts(cfg.SourceCosts()),
		search.WithMetrics(a.metrics),
	}
	if cfg.Search.RecordCalls {
		opts = append(opts, search.WithRecorder(a.stats))
	}
	a.search = search.New(a.sources.Adapters(), opts...)
	return a, nil
}

func (a *app) Close() error {
	return a.db.Close()
}

// afterSync drops cached resolutions so new taxonomy data is used at once.
func (a *app) afterSync(res *locsync.Result) {
	log.ForService("sync").Infof("purging location cache after sync %s", res.RunID)
	a.resolver.Purge()
}

func freshnessThreshold(cfg *config.Config) time.Duration {
	return time.Duration(cfg.Locations.FreshnessDays) * 24 * time.Hour
}

// providerSource reads the locations file when configured, the provider
// endpoint otherwise.
func providerSource(cfg *config.Config) geodata.Source {
	if cfg.Provider.LocationsFile != "" {
		return &geodata.FileSource{Path: cfg.Provider.LocationsFile}
	}
	return geodata.NewClient(cfg.Provider.Endpoint, cfg.Provider.Login, cfg.Provider.Password,
		geodata.WithTimeout(cfg.Provider.Timeout.Duration))
}

// createSourcesFromConfig instantiates the configured adapters in order.
func createSourcesFromConfig(reg *sources.Registry, cfg *config.Config, conn *sql.DB) error {
	for _, s := range cfg.Sources {
		if err := reg.Create(s.Name, s.Type, conn, s.Limit); err != nil {
			return fmt.Errorf("creating source %s: %w", s.Name, err)
		}
	}
	return nil
}

func checkPendingMigrations(ctx context.Context, conn *sql.DB) error {
	pending, err := db.NewMigrationManager(conn).Pending(ctx)
	if err != nil {
		return fmt.Errorf("checking pending migrations: %w", err)
	}
	if len(pending) > 0 {
		return fmt.Errorf("database has %d pending migrations. Run 'vendorscout migrate' first", len(pending))
	}
	return nil
}
