// Package scheduler runs recurring background jobs, such as playlist
// refreshes, on cron schedules.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/jmylchreest/tvplay/internal/config"
)

// Scheduler errors.
var (
	ErrAlreadyStarted = errors.New("scheduler already started")
	ErrJobExists      = errors.New("job already registered")
	ErrJobNotFound    = errors.New("job not found")
)

// JobFunc is the body of a scheduled job.
type JobFunc func(ctx context.Context) error

// JobStatus describes a registered job.
type JobStatus struct {
	Name      string    `json:"name" doc:"Job name"`
	Schedule  string    `json:"schedule" doc:"Cron expression"`
	NextRun   time.Time `json:"next_run,omitempty" doc:"Next scheduled run"`
	LastRun   time.Time `json:"last_run,omitempty" doc:"Start of the most recent run"`
	LastError string    `json:"last_error,omitempty" doc:"Error of the most recent run"`
	Runs      int       `json:"runs" doc:"Completed runs"`
}

type job struct {
	name     string
	schedule string
	fn       JobFunc
	entry    cron.EntryID

	// Serializes runs of this job; a tick that finds it busy is skipped.
	running sync.Mutex

	mu      sync.Mutex
	lastRun time.Time
	lastErr error
	runs    int
}

// Scheduler manages cron-scheduled jobs.
type Scheduler struct {
	mu sync.RWMutex

	cron   *cron.Cron
	jobs   map[string]*job
	logger *slog.Logger

	// JobTimeout bounds a single run. Zero means no limit.
	jobTimeout time.Duration

	// Running state
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// SchedulerConfig holds configuration for the scheduler.
type SchedulerConfig struct {
	// JobTimeout is the maximum duration for a single job execution.
	// Default: 5 minutes
	JobTimeout time.Duration
}

// DefaultSchedulerConfig returns the default scheduler configuration.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{JobTimeout: 5 * time.Minute}
}

// NewScheduler creates a new scheduler.
func NewScheduler() *Scheduler {
	s := &Scheduler{
		jobs:       make(map[string]*job),
		logger:     slog.Default(),
		jobTimeout: DefaultSchedulerConfig().JobTimeout,
	}
	s.cron = cron.New(cron.WithParser(config.CronParser), cron.WithLogger(cronLogger{s}))
	return s
}

// WithLogger sets a custom logger.
func (s *Scheduler) WithLogger(logger *slog.Logger) *Scheduler {
	s.logger = logger
	return s
}

// WithConfig applies configuration to the scheduler.
func (s *Scheduler) WithConfig(cfg SchedulerConfig) *Scheduler {
	if cfg.JobTimeout > 0 {
		s.jobTimeout = cfg.JobTimeout
	}
	return s
}

// AddJob registers fn to run on the cron schedule expr.
func (s *Scheduler) AddJob(name, expr string, fn JobFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[name]; ok {
		return fmt.Errorf("%w: %s", ErrJobExists, name)
	}
	j := &job{name: name, schedule: expr, fn: fn}
	id, err := s.cron.AddFunc(expr, func() { s.run(j) })
	if err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}
	j.entry = id
	s.jobs[name] = j

	s.logger.Debug("job registered",
		slog.String("job", name),
		slog.String("schedule", expr))
	return nil
}

// Start begins dispatching jobs.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ctx != nil {
		return ErrAlreadyStarted
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.cron.Start()

	s.logger.Info("scheduler started", slog.Int("jobs", len(s.jobs)))
	return nil
}

// Stop stops dispatching and waits for running jobs to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()

	<-s.cron.Stop().Done()
	s.wg.Wait()

	s.mu.Lock()
	s.ctx = nil
	s.cancel = nil
	s.mu.Unlock()

	s.logger.Info("scheduler stopped")
}

// Trigger runs a job now, outside its schedule, and returns its error.
func (s *Scheduler) Trigger(ctx context.Context, name string) error {
	s.mu.RLock()
	j, ok := s.jobs[name]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}
	return s.execute(ctx, j)
}

// Jobs returns the status of every registered job.
func (s *Scheduler) Jobs() []JobStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]JobStatus, 0, len(s.jobs))
	for _, j := range s.jobs {
		st := JobStatus{
			Name:     j.name,
			Schedule: j.schedule,
			NextRun:  s.cron.Entry(j.entry).Next,
		}
		j.mu.Lock()
		st.LastRun = j.lastRun
		st.Runs = j.runs
		if j.lastErr != nil {
			st.LastError = j.lastErr.Error()
		}
		j.mu.Unlock()
		out = append(out, st)
	}
	return out
}

// run is the cron callback.
func (s *Scheduler) run(j *job) {
	s.mu.RLock()
	ctx := s.ctx
	s.mu.RUnlock()
	if ctx == nil || ctx.Err() != nil {
		return
	}

	s.wg.Add(1)
	defer s.wg.Done()
	if !j.running.TryLock() {
		s.logger.Warn("skipping job run, previous run still active", slog.String("job", j.name))
		return
	}
	defer j.running.Unlock()
	_ = s.runLocked(ctx, j)
}

func (s *Scheduler) execute(ctx context.Context, j *job) error {
	j.running.Lock()
	defer j.running.Unlock()
	return s.runLocked(ctx, j)
}

func (s *Scheduler) runLocked(ctx context.Context, j *job) error {
	if s.jobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.jobTimeout)
		defer cancel()
	}

	start := time.Now()
	err := j.fn(ctx)

	j.mu.Lock()
	j.lastRun = start
	j.lastErr = err
	j.runs++
	j.mu.Unlock()

	if err != nil {
		s.logger.Error("scheduled job failed",
			slog.String("job", j.name),
			slog.Duration("duration", time.Since(start)),
			slog.String("error", err.Error()))
		return err
	}
	s.logger.Info("scheduled job completed",
		slog.String("job", j.name),
		slog.Duration("duration", time.Since(start)))
	return nil
}

// ParseCron validates a cron expression and returns the next run time.
func ParseCron(expr string) (time.Time, error) {
	schedule, err := config.CronParser.Parse(expr)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid cron expression: %w", err)
	}
	return schedule.Next(time.Now()), nil
}

// cronLogger routes cron's own logging into slog.
type cronLogger struct{ s *Scheduler }

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.s.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.s.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
