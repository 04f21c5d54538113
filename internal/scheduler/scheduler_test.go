package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/lorveOne/MinisterioRips/internal/pipeline"
)

type fakeRunner struct {
	mu   sync.Mutex
	runs int
	err  error
}

func (f *fakeRunner) Run(ctx context.Context) (*pipeline.RunSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs++
	if f.err != nil {
		return nil, f.err
	}
	return &pipeline.RunSummary{Submitted: 1, Accepted: 1}, nil
}

func (f *fakeRunner) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.runs
}

func TestRunOnce(t *testing.T) {
	r := &fakeRunner{}
	s := New(r, zerolog.Nop())

	if err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	stats := s.Stats()
	if stats.TotalRuns != 1 || stats.Succeeded != 1 || stats.Failed != 0 {
		t.Fatalf("stats = %+v", stats)
	}
	if stats.LastRun.IsZero() {
		t.Error("LastRun not recorded")
	}
}

func TestRunOnce_FailureCounted(t *testing.T) {
	r := &fakeRunner{err: errors.New("login failed")}
	s := New(r, zerolog.Nop())

	if err := s.RunOnce(context.Background()); err == nil {
		t.Fatal("RunOnce swallowed the failure")
	}
	stats := s.Stats()
	if stats.TotalRuns != 1 || stats.Failed != 1 || stats.Succeeded != 0 {
		t.Fatalf("stats = %+v", stats)
	}
}

// A dropped trigger is a skip, not a run.
func TestRunOnce_InProgressSkipped(t *testing.T) {
	r := &fakeRunner{err: pipeline.ErrRunInProgress}
	s := New(r, zerolog.Nop())

	if err := s.RunOnce(context.Background()); !errors.Is(err, pipeline.ErrRunInProgress) {
		t.Fatalf("err = %v", err)
	}
	stats := s.Stats()
	if stats.Skipped != 1 || stats.TotalRuns != 0 {
		t.Fatalf("stats = %+v", stats)
	}
}

func TestStartInterval(t *testing.T) {
	r := &fakeRunner{}
	s := New(r, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.StartInterval(ctx, 10*time.Millisecond)
	}()

	// The immediate run plus at least one tick.
	deadline := time.After(2 * time.Second)
	for r.count() < 2 {
		select {
		case <-deadline:
			t.Fatalf("runs = %d after deadline", r.count())
		case <-time.After(time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("StartInterval did not return after cancel")
	}
}

func TestStop_HaltsInterval(t *testing.T) {
	r := &fakeRunner{}
	s := New(r, zerolog.Nop())

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.StartInterval(context.Background(), time.Hour)
	}()

	for r.count() < 1 {
		time.Sleep(time.Millisecond)
	}
	s.Stop()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("StartInterval did not return after Stop")
	}
}

func TestStartCron_BadSpec(t *testing.T) {
	s := New(&fakeRunner{}, zerolog.Nop())
	if err := s.StartCron("not a cron spec", ""); err == nil {
		t.Fatal("StartCron accepted a bad expression")
	}
}

func TestStartCron_Fires(t *testing.T) {
	r := &fakeRunner{}
	s := New(r, zerolog.Nop())

	// Every second, UTC to keep the test independent of tzdata for the
	// reporting zone.
	if err := s.StartCron("* * * * * *", "UTC"); err != nil {
		t.Fatalf("StartCron: %v", err)
	}
	defer s.Stop()

	deadline := time.After(5 * time.Second)
	for r.count() < 1 {
		select {
		case <-deadline:
			t.Fatal("cron never fired")
		case <-time.After(10 * time.Millisecond):
		}
	}
}
