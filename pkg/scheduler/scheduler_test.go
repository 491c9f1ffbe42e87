package scheduler

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rubiojr/vendorscout/pkg/cachestats"
	"github.com/rubiojr/vendorscout/pkg/locsync"
	"github.com/rubiojr/vendorscout/pkg/storage"
)

type counter struct{ n atomic.Int32 }

func (c *counter) job(err error) JobFunc {
	return func(context.Context) error {
		c.n.Add(1)
		return err
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestAddJobValidation(t *testing.T) {
	s := New()
	var c counter
	if err := s.AddJob("a", time.Minute, c.job(nil)); err != nil {
		t.Fatal(err)
	}
	if err := s.AddJob("a", time.Minute, c.job(nil)); err == nil {
		t.Error("expected duplicate job error")
	}
	if err := s.AddJob("b", -time.Second, c.job(nil)); err == nil {
		t.Error("expected negative interval error")
	}
	if err := s.AddJob("c", time.Second, nil); err == nil {
		t.Error("expected nil function error")
	}
	if got := s.Jobs(); len(got) != 1 || got[0] != "a" {
		t.Errorf("jobs = %v", got)
	}
}

func TestStartWithoutJobs(t *testing.T) {
	if err := New().Start(context.Background()); err == nil {
		t.Fatal("expected error starting an empty scheduler")
	}
}

func TestRunOnceContinuesAfterFailure(t *testing.T) {
	s := New()
	var first, second, third counter
	_ = s.AddJob("first", time.Hour, first.job(nil))
	_ = s.AddJob("second", 0, second.job(errors.New("boom")))
	_ = s.AddJob("third", time.Hour, third.job(nil))

	err := s.RunOnce(context.Background())
	if err == nil {
		t.Fatal("expected the failing job to be reported")
	}
	if first.n.Load() != 1 || second.n.Load() != 1 || third.n.Load() != 1 {
		t.Fatalf("runs = %d/%d/%d", first.n.Load(), second.n.Load(), third.n.Load())
	}
}

func TestRunOnceRecoversPanics(t *testing.T) {
	s := New()
	var after counter
	_ = s.AddJob("bad", 0, func(context.Context) error { panic("nope") })
	_ = s.AddJob("after", 0, after.job(nil))

	if err := s.RunOnce(context.Background()); err == nil {
		t.Fatal("expected panic to surface as an error")
	}
	if after.n.Load() != 1 {
		t.Fatal("job after the panic did not run")
	}
}

func TestStartStop(t *testing.T) {
	s := New()
	var ticking, manual counter
	_ = s.AddJob("ticking", 10*time.Millisecond, ticking.job(nil))
	_ = s.AddJob("manual", 0, manual.job(nil))

	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := s.Start(context.Background()); err == nil {
		t.Error("expected error on double start")
	}
	if !s.IsRunning() {
		t.Fatal("scheduler should be running")
	}

	// Initial run plus at least two ticks.
	waitFor(t, func() bool { return ticking.n.Load() >= 3 && manual.n.Load() == 1 })
	time.Sleep(30 * time.Millisecond)
	if manual.n.Load() != 1 {
		t.Errorf("manual job should only run in the initial pass, ran %d times", manual.n.Load())
	}

	s.Stop()
	if s.IsRunning() {
		t.Fatal("scheduler should be stopped")
	}
	stopped := ticking.n.Load()
	time.Sleep(40 * time.Millisecond)
	if ticking.n.Load() != stopped {
		t.Error("job ran after Stop")
	}
	s.Stop()
}

func TestAddJobWhileRunning(t *testing.T) {
	s := New()
	var base, late counter
	_ = s.AddJob("base", time.Hour, base.job(nil))
	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer s.Stop()

	if err := s.AddJob("late", 10*time.Millisecond, late.job(nil)); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return late.n.Load() >= 1 })
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func TestClose(t *testing.T) {
	s := New()
	var c counter
	_ = s.AddJob("job", time.Hour, c.job(nil))
	closed := 0
	s.AddCloser(closerFunc(func() error { closed++; return nil }))
	s.AddCloser(closerFunc(func() error { closed++; return errors.New("close failed") }))

	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err == nil {
		t.Error("expected close error")
	}
	if closed != 2 || s.IsRunning() {
		t.Errorf("closed = %d, running = %v", closed, s.IsRunning())
	}
}

type stubSyncer struct {
	res    *locsync.Result
	forced []bool
}

func (s *stubSyncer) Sync(_ context.Context, _ locsync.Scope, force bool) (*locsync.Result, error) {
	s.forced = append(s.forced, force)
	return s.res, nil
}

func TestSyncJob(t *testing.T) {
	ctx := context.Background()
	hooks := 0
	onSynced := func(*locsync.Result) { hooks++ }

	fresh := &stubSyncer{res: &locsync.Result{Skipped: true}}
	if err := SyncJob(fresh, locsync.ScopeCountry, onSynced)(ctx); err != nil {
		t.Fatal(err)
	}
	stale := &stubSyncer{res: &locsync.Result{Processed: 12}}
	if err := SyncJob(stale, locsync.ScopeCountry, onSynced)(ctx); err != nil {
		t.Fatal(err)
	}

	if hooks != 1 {
		t.Errorf("hook ran %d times, want 1", hooks)
	}
	if len(fresh.forced) != 1 || fresh.forced[0] {
		t.Error("scheduled syncs must not force a refresh")
	}
}

func TestMaintenanceJobs(t *testing.T) {
	ctx := context.Background()
	db, err := storage.OpenAndMigrate(ctx, filepath.Join(t.TempDir(), "jobs.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	stats := cachestats.NewStore(db, time.Hour)
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	if err := stats.Record(ctx, cachestats.Call{Keyword: "dj", Location: "Austin"}, start); err != nil {
		t.Fatal(err)
	}

	s := New()
	_ = s.AddJob("optimize", time.Hour, OptimizeJob(db))
	_ = s.AddJob("prune", time.Hour, PruneJob(stats, func() time.Time { return start.Add(2 * time.Hour) }))
	if err := s.RunOnce(ctx); err != nil {
		t.Fatal(err)
	}

	st, err := stats.Stats(ctx, start)
	if err != nil {
		t.Fatal(err)
	}
	if st.TotalEntries != 0 {
		t.Fatalf("expired call not pruned: %+v", st)
	}
}
