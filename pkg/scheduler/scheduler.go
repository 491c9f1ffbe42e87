// Package scheduler runs the background maintenance jobs: the periodic
// location sync, SQLite optimization and pruning of expired search calls.
package scheduler

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rubiojr/vendorscout/pkg/locsync"
	"github.com/rubiojr/vendorscout/pkg/log"
	"github.com/rubiojr/vendorscout/pkg/storage"
)

// JobFunc is one run of a job.
type JobFunc func(ctx context.Context) error

type job struct {
	name     string
	interval time.Duration
	run      JobFunc
}

type Scheduler struct {
	jobs      []job
	tickers   map[string]*time.Ticker
	closers   []io.Closer
	stopCh    chan struct{}
	ctx       context.Context
	ctxCancel context.CancelFunc
	mu        sync.RWMutex
	wg        sync.WaitGroup
	running   bool
	logger    *log.Logger
}

func New() *Scheduler {
	return &Scheduler{
		tickers: make(map[string]*time.Ticker),
		stopCh:  make(chan struct{}),
		logger:  log.ForService("scheduler"),
	}
}

// AddJob registers fn to run every interval. An interval of 0 registers a
// job that only runs through RunOnce.
func (s *Scheduler) AddJob(name string, interval time.Duration, fn JobFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if fn == nil {
		return fmt.Errorf("job %s has no function", name)
	}
	if interval < 0 {
		return fmt.Errorf("job %s: negative interval %v", name, interval)
	}
	for _, j := range s.jobs {
		if j.name == name {
			return fmt.Errorf("job %s already registered", name)
		}
	}

	j := job{name: name, interval: interval, run: fn}
	s.jobs = append(s.jobs, j)

	if s.running && interval > 0 {
		s.startTicker(j)
		s.logger.Infof("started job %s with interval %v", name, interval)
	}
	return nil
}

// AddCloser registers c to be closed by Close.
func (s *Scheduler) AddCloser(c io.Closer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closers = append(s.closers, c)
}

// Jobs lists registered job names in registration order.
func (s *Scheduler) Jobs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, len(s.jobs))
	for i, j := range s.jobs {
		names[i] = j.name
	}
	return names
}

// Start launches one ticker per periodic job and an initial run of every job
// in the background.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler is already running")
	}
	if len(s.jobs) == 0 {
		return fmt.Errorf("no jobs configured")
	}

	s.ctx, s.ctxCancel = context.WithCancel(ctx)
	s.running = true

	for _, j := range s.jobs {
		if j.interval == 0 {
			s.logger.Infof("  - %s: manual only", j.name)
			continue
		}
		s.startTicker(j)
		s.logger.Infof("  - %s: every %v", j.name, j.interval)
	}

	jobs := append([]job(nil), s.jobs...)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.runAll(s.ctx, jobs); err != nil {
			s.logger.Warnf("initial run: %v", err)
		}
	}()

	s.logger.Infof("scheduler started with %d jobs", len(s.jobs))
	return nil
}

// startTicker must be called with s.mu held.
func (s *Scheduler) startTicker(j job) {
	ticker := time.NewTicker(j.interval)
	s.tickers[j.name] = ticker
	s.wg.Add(1)
	go s.loop(s.ctx, j, ticker)
}

func (s *Scheduler) loop(ctx context.Context, j job, ticker *time.Ticker) {
	defer s.wg.Done()
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.logger.Debugf("running scheduled job %s", j.name)
			if err := s.runJob(ctx, j); err != nil {
				s.logger.Errorf("job %s failed: %v", j.name, err)
			}
		}
	}
}

func (s *Scheduler) runJob(ctx context.Context, j job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %s panicked: %v", j.name, r)
		}
	}()
	return j.run(ctx)
}

func (s *Scheduler) runAll(ctx context.Context, jobs []job) error {
	var errs []error
	for _, j := range jobs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.runJob(ctx, j); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", j.name, err))
		}
	}
	return errors.Join(errs...)
}

// RunOnce runs every registered job once, in registration order. A failing
// job does not stop the others.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	s.mu.RLock()
	jobs := append([]job(nil), s.jobs...)
	s.mu.RUnlock()

	if len(jobs) == 0 {
		return fmt.Errorf("no jobs configured")
	}
	return s.runAll(ctx, jobs)
}

func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}

	s.logger.Infof("stopping scheduler...")
	s.ctxCancel()
	close(s.stopCh)
	for name, ticker := range s.tickers {
		ticker.Stop()
		delete(s.tickers, name)
	}
	s.running = false
	s.mu.Unlock()

	s.wg.Wait()
	s.mu.Lock()
	s.stopCh = make(chan struct{})
	s.mu.Unlock()
	s.logger.Infof("scheduler stopped")
}

func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Close stops the scheduler and closes every registered closer.
func (s *Scheduler) Close() error {
	s.Stop()

	s.mu.Lock()
	closers := s.closers
	s.closers = nil
	s.mu.Unlock()

	var errs []error
	for _, c := range closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Syncer is the synchronizer as seen by the sync job.
type Syncer interface {
	Sync(ctx context.Context, scope locsync.Scope, force bool) (*locsync.Result, error)
}

// SyncJob runs a non-forced sync; the freshness gate makes most runs no-ops.
// onSynced runs after a sync that wrote records.
func SyncJob(s Syncer, scope locsync.Scope, onSynced func(*locsync.Result)) JobFunc {
	return func(ctx context.Context) error {
		res, err := s.Sync(ctx, scope, false)
		if err != nil {
			return err
		}
		if !res.Skipped && res.Processed > 0 && onSynced != nil {
			onSynced(res)
		}
		return nil
	}
}

func OptimizeJob(db *sql.DB) JobFunc {
	return func(ctx context.Context) error {
		return storage.Optimize(ctx, db)
	}
}

// Pruner deletes expired search-call rows.
type Pruner interface {
	PruneExpired(ctx context.Context, now time.Time) (int64, error)
}

func PruneJob(p Pruner, now func() time.Time) JobFunc {
	if now == nil {
		now = time.Now
	}
	return func(ctx context.Context) error {
		_, err := p.PruneExpired(ctx, now())
		return err
	}
}
