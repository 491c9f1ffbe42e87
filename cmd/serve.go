package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rubiojr/vendorscout/pkg/api"
	"github.com/rubiojr/vendorscout/pkg/locsync"
	"github.com/rubiojr/vendorscout/pkg/log"
	"github.com/rubiojr/vendorscout/pkg/scheduler"
	"github.com/urfave/cli/v3"
)

// ServeCommand creates the serve command
func ServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the HTTP API and the background scheduler",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "listen",
				Usage: "Listen address (overrides the config file)",
			},
			&cli.BoolFlag{
				Name:  "no-scheduler",
				Usage: "Serve the API without background jobs",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			return serve(ctx, c.String("config"), c.String("listen"), !c.Bool("no-scheduler"))
		},
	}
}

func serve(ctx context.Context, configPath, listen string, withScheduler bool) error {
	logger := log.ForService("serve")

	a, err := openApp(ctx, configPath)
	if err != nil {
		return err
	}
	if listen == "" {
		listen = a.cfg.Listen
	}

	sched := scheduler.New()
	sched.AddCloser(a)
	defer func() {
		if err := sched.Close(); err != nil {
			logger.Warnf("closing scheduler: %v", err)
		}
	}()

	scope, err := locsync.ParseScope(a.cfg.Locations.SyncScope)
	if err != nil {
		return err
	}
	jobs := []struct {
		name     string
		interval time.Duration
		fn       scheduler.JobFunc
	}{
		{"location-sync", a.cfg.Locations.SyncInterval.Duration, scheduler.SyncJob(a.syncer, scope, a.afterSync)},
		{"optimize", time.Hour, scheduler.OptimizeJob(a.db)},
		{"prune-search-calls", a.cfg.Search.PruneInterval.Duration, scheduler.PruneJob(a.stats, time.Now)},
	}
	for _, j := range jobs {
		if err := sched.AddJob(j.name, j.interval, j.fn); err != nil {
			return err
		}
	}

	schedCtx, schedCancel := context.WithCancel(ctx)
	defer schedCancel()
	if withScheduler {
		if err := sched.Start(schedCtx); err != nil {
			return fmt.Errorf("starting scheduler: %w", err)
		}
	}

	server := api.NewServer(api.Services{
		Search:    a.search,
		Resolver:  a.resolver,
		Locations: a.locations,
		Sync:      a.syncer,
		Stats:     a.stats,
		Metrics:   a.metrics,
		OnSynced:  a.afterSync,
	})
	httpServer := &http.Server{
		Addr:              listen,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("listening on http://%s", listen)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigCh)

	watcher := watchLocationsFile(a.cfg.Provider.LocationsFile)
	var events <-chan fsnotify.Event
	var watchErrs <-chan error
	if watcher != nil {
		defer watcher.Close()
		events, watchErrs = watcher.Events, watcher.Errors
	}

	reloader := &fileReloader{
		settle: 200 * time.Millisecond,
		logger: logger,
		sync: func(ctx context.Context) error {
			res, err := a.syncer.Sync(ctx, scope, true)
			if err != nil {
				return err
			}
			a.afterSync(res)
			return nil
		},
	}

	shutdown := func() error {
		fmt.Println("\nShutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		schedCancel()
		reloader.Wait()
		sched.Stop()
		return httpServer.Shutdown(shutdownCtx)
	}

	for {
		select {
		case <-ctx.Done():
			return shutdown()
		case err := <-errCh:
			return fmt.Errorf("http server: %w", err)
		case sig := <-sigCh:
			if sig == syscall.SIGHUP {
				logger.Infof("received SIGHUP, running maintenance jobs")
				go func() {
					if err := sched.RunOnce(schedCtx); err != nil {
						logger.Errorf("maintenance run: %v", err)
					}
				}()
				continue
			}
			return shutdown()
		case event, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if filepath.Clean(event.Name) != filepath.Clean(a.cfg.Provider.LocationsFile) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			logger.Infof("locations file changed (%s), forcing a sync", event.Op)
			reloader.Trigger(schedCtx)
		case err, ok := <-watchErrs:
			if !ok {
				watchErrs = nil
				continue
			}
			logger.Warnf("locations file watcher error: %v", err)
		}
	}
}

// fileReloader runs the forced syncs triggered by locations file changes
// off the serve loop, one at a time. Changes seen while a sync runs are
// folded into a single follow-up run.
type fileReloader struct {
	settle time.Duration
	sync   func(ctx context.Context) error
	logger *log.Logger

	mu      sync.Mutex
	running bool
	pending bool
	wg      sync.WaitGroup
}

// Trigger schedules a sync and returns immediately.
func (r *fileReloader) Trigger(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		r.pending = true
		return
	}
	r.running = true
	r.wg.Add(1)
	go r.run(ctx)
}

func (r *fileReloader) run(ctx context.Context) {
	defer r.wg.Done()
	for {
		// Editors write in several steps.
		select {
		case <-ctx.Done():
		case <-time.After(r.settle):
			if err := r.sync(ctx); err != nil {
				r.logger.Errorf("sync after file change failed: %v", err)
			}
		}

		r.mu.Lock()
		if !r.pending || ctx.Err() != nil {
			r.running, r.pending = false, false
			r.mu.Unlock()
			return
		}
		r.pending = false
		r.mu.Unlock()
	}
}

// Wait blocks until the running sync, if any, returns.
func (r *fileReloader) Wait() {
	r.wg.Wait()
}

// watchLocationsFile watches the directory holding path so atomic
// replacements are seen. It returns nil when there is nothing to watch.
func watchLocationsFile(path string) *fsnotify.Watcher {
	if path == "" {
		return nil
	}
	logger := log.ForService("serve")

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Warnf("failed to create locations file watcher: %v", err)
		return nil
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		logger.Warnf("failed to watch %s: %v", path, err)
		_ = watcher.Close()
		return nil
	}
	logger.Infof("watching locations file for changes: %s", path)
	return watcher
}
