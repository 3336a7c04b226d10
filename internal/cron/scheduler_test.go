package cron

import (
	"context"
	"errors"
	"testing"
)

type fakeSweeper struct {
	calls int
	err   error
}

func (f *fakeSweeper) Sweep(ctx context.Context) (int, error) {
	f.calls++
	return 3, f.err
}

type fakePruner struct{ calls int }

func (f *fakePruner) Prune() int {
	f.calls++
	return 1
}

// runJob fires a job synchronously through the scheduler's chain, so
// Recover and SkipIfStillRunning apply as they would on a tick.
func runJob(t *testing.T, s *Scheduler, name string) {
	t.Helper()
	s.mu.RLock()
	j, ok := s.jobs[name]
	s.mu.RUnlock()
	if !ok {
		t.Fatalf("job %s not scheduled", name)
	}
	entry := s.cron.Entry(j.entry)
	if entry.WrappedJob == nil {
		t.Fatalf("job %s has no wrapped job", name)
	}
	entry.WrappedJob.Run()
}

func TestAddJobRejectsInvalidExpression(t *testing.T) {
	s := NewScheduler()

	tests := []string{"", "not a cron", "* * *", "61 * * * * *"}
	for _, expr := range tests {
		if err := s.AddJob("bad", expr, func(context.Context) error { return nil }); err == nil {
			t.Errorf("AddJob(%q) should fail", expr)
		}
	}
	if len(s.Jobs()) != 0 {
		t.Errorf("Jobs() = %v, want none", s.Jobs())
	}
}

func TestAddJobReplacesByName(t *testing.T) {
	s := NewScheduler()
	noop := func(context.Context) error { return nil }

	if err := s.AddJob("sweep", "0 0 */6 * * *", noop); err != nil {
		t.Fatal(err)
	}
	if err := s.AddJob("sweep", "@every 1h", noop); err != nil {
		t.Fatal(err)
	}
	if err := s.AddJob("another", "@every 1m", noop); err != nil {
		t.Fatal(err)
	}

	jobs := s.Jobs()
	if len(jobs) != 2 {
		t.Fatalf("Jobs() = %v, want 2", jobs)
	}
	if jobs[0].Name != "another" || jobs[1].Name != "sweep" || jobs[1].Expression != "@every 1h" {
		t.Errorf("Jobs() = %+v", jobs)
	}
	if len(s.cron.Entries()) != 2 {
		t.Errorf("cron entries = %d, want 2", len(s.cron.Entries()))
	}
}

func TestRemoveJob(t *testing.T) {
	s := NewScheduler()
	s.AddJob("sweep", "@every 1h", func(context.Context) error { return nil })

	if !s.RemoveJob("sweep") {
		t.Error("RemoveJob() = false, want true")
	}
	if s.RemoveJob("sweep") {
		t.Error("second RemoveJob() = true, want false")
	}
	if _, err := s.GetNextRun("sweep"); err == nil {
		t.Error("GetNextRun() should fail for a removed job")
	}
}

func TestNextRunAfterStart(t *testing.T) {
	s := NewScheduler()
	s.AddJob("sweep", "@every 1h", func(context.Context) error { return nil })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := s.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer s.Stop()

	next, err := s.GetNextRun("sweep")
	if err != nil {
		t.Fatal(err)
	}
	if next.IsZero() {
		t.Error("next run should be set once the scheduler runs")
	}
}

func TestRegisterMaintenance(t *testing.T) {
	s := NewScheduler()
	sweeper := &fakeSweeper{}
	pruner := &fakePruner{}

	if err := RegisterMaintenance(s, "0 0 */6 * * *", sweeper, pruner); err != nil {
		t.Fatal(err)
	}

	runJob(t, s, JobSweep)
	runJob(t, s, JobSudoPrune)
	if sweeper.calls != 1 || pruner.calls != 1 {
		t.Errorf("sweep calls = %d, prune calls = %d", sweeper.calls, pruner.calls)
	}

	sweeper.err = errors.New("store closed")
	runJob(t, s, JobSweep)
	if sweeper.calls != 2 {
		t.Errorf("sweep calls = %d, want 2", sweeper.calls)
	}

	if err := RegisterMaintenance(s, "every day", sweeper, pruner); err == nil {
		t.Error("invalid sweep schedule should be rejected")
	}
}

func TestPanickingJobIsRecovered(t *testing.T) {
	s := NewScheduler()
	if err := s.AddJob("boom", "@every 1h", func(context.Context) error { panic("boom") }); err != nil {
		t.Fatalf("AddJob() error = %v", err)
	}

	runJob(t, s, "boom")
	// A recovered panic must not wedge SkipIfStillRunning.
	runJob(t, s, "boom")
}
