package cron

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"mod-gobot/internal/logger"
)

// jobTimeout bounds a single run of a maintenance job
const jobTimeout = 5 * time.Minute

// Task is the work a job performs when it fires
type Task func(ctx context.Context) error

// JobInfo describes a scheduled job
type JobInfo struct {
	Name       string    `json:"name"`
	Expression string    `json:"expression"`
	Next       time.Time `json:"next"`
}

type job struct {
	expression string
	entry      cron.EntryID
}

// parser accepts six-field expressions and descriptors such as "@every 1m"
var parser = cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ValidateExpression reports whether expr is a schedule AddJob accepts
func ValidateExpression(expr string) error {
	if _, err := parser.Parse(expr); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	return nil
}

// printfLogger feeds robfig/cron's own messages into the bot log
type printfLogger struct{}

func (printfLogger) Printf(format string, args ...interface{}) {
	logger.Warnf("cron: "+format, args...)
}

// Scheduler runs named maintenance jobs
type Scheduler struct {
	cron    *cron.Cron
	ctx     context.Context
	jobs    map[string]job
	mu      sync.RWMutex
	running bool
}

// NewScheduler creates a new cron scheduler
func NewScheduler() *Scheduler {
	l := cron.PrintfLogger(printfLogger{})
	return &Scheduler{
		cron: cron.New(
			cron.WithParser(parser),
			cron.WithChain(cron.Recover(l), cron.SkipIfStillRunning(l)),
		),
		ctx:  context.Background(),
		jobs: make(map[string]job),
	}
}

// Start begins the scheduler. Jobs stop being scheduled once ctx is done.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	s.ctx = ctx
	s.mu.Unlock()

	s.cron.Start()

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	logger.Infof("Cron scheduler started with %d jobs", len(s.Jobs()))
	return nil
}

// Stop halts the scheduler and waits for running jobs
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	// Running jobs read s.ctx, so wait without holding the lock.
	ctx := s.cron.Stop()
	<-ctx.Done()
	logger.Infof("Cron scheduler stopped")
}

// AddJob schedules task under name, replacing any job with the same name
func (s *Scheduler) AddJob(name, expression string, task Task) error {
	if err := ValidateExpression(expression); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.jobs[name]; ok {
		s.cron.Remove(existing.entry)
	}

	entry, err := s.cron.AddFunc(expression, func() {
		s.mu.RLock()
		parent := s.ctx
		s.mu.RUnlock()

		ctx, cancel := context.WithTimeout(parent, jobTimeout)
		defer cancel()

		start := time.Now()
		if err := task(ctx); err != nil {
			logger.Warnf("Cron job %s failed: %v", name, err)
			return
		}
		logger.Debugf("Cron job %s finished in %s", name, time.Since(start).Round(time.Millisecond))
	})
	if err != nil {
		return fmt.Errorf("schedule %s: %w", name, err)
	}

	s.jobs[name] = job{expression: expression, entry: entry}
	return nil
}

// RemoveJob unschedules a job and reports whether it existed
func (s *Scheduler) RemoveJob(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[name]
	if !ok {
		return false
	}
	s.cron.Remove(j.entry)
	delete(s.jobs, name)
	return true
}

// Jobs lists scheduled jobs sorted by name
func (s *Scheduler) Jobs() []JobInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]JobInfo, 0, len(s.jobs))
	for name, j := range s.jobs {
		out = append(out, JobInfo{
			Name:       name,
			Expression: j.expression,
			Next:       s.cron.Entry(j.entry).Next,
		})
	}
	sort.Slice(out, func(i, k int) bool { return out[i].Name < out[k].Name })
	return out
}

// GetNextRun returns the next run time for a job
func (s *Scheduler) GetNextRun(name string) (time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	j, ok := s.jobs[name]
	if !ok {
		return time.Time{}, fmt.Errorf("job %s not found", name)
	}
	return s.cron.Entry(j.entry).Next, nil
}
