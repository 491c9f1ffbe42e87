package cmd

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rubiojr/vendorscout/pkg/log"
)

func TestFileReloaderRunsInBackground(t *testing.T) {
	var calls atomic.Int32
	started := make(chan struct{}, 4)
	release := make(chan struct{})

	r := &fileReloader{
		settle: time.Millisecond,
		logger: log.ForService("serve"),
		sync: func(context.Context) error {
			calls.Add(1)
			started <- struct{}{}
			<-release
			return nil
		},
	}

	ctx := context.Background()
	done := make(chan struct{})
	go func() {
		r.Trigger(ctx)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Trigger blocked on the sync")
	}

	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("sync did not start")
	}

	// Changes during a running sync collapse into one follow-up run.
	r.Trigger(ctx)
	r.Trigger(ctx)
	close(release)
	r.Wait()

	if n := calls.Load(); n != 2 {
		t.Fatalf("sync ran %d times, want 2", n)
	}

	// Idle again: the next change starts a fresh run.
	r.Trigger(ctx)
	r.Wait()
	if n := calls.Load(); n != 3 {
		t.Fatalf("sync ran %d times, want 3", n)
	}
}

func TestFileReloaderStopsOnCancel(t *testing.T) {
	var calls atomic.Int32
	r := &fileReloader{
		settle: time.Hour,
		logger: log.ForService("serve"),
		sync: func(context.Context) error {
			calls.Add(1)
			return nil
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	r.Trigger(ctx)
	r.Trigger(ctx)
	cancel()

	waited := make(chan struct{})
	go func() {
		r.Wait()
		close(waited)
	}()
	select {
	case <-waited:
	case <-time.After(time.Second):
		t.Fatal("reloader did not stop after cancel")
	}
	if n := calls.Load(); n != 0 {
		t.Fatalf("sync ran %d times after cancel", n)
	}
}
