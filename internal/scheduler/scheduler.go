// Package scheduler triggers recurring scans from a watched targets file and
// purges runs past their retention window.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/raysh454/a11yscan/internal/app"
	"github.com/raysh454/a11yscan/internal/logging"
	"github.com/raysh454/a11yscan/internal/model"
	"github.com/robfig/cron/v3"
)

const (
	DefaultPurgeSchedule = "0 */6 * * *"
	DefaultRetention     = 30 * 24 * time.Hour

	reloadDebounce = 300 * time.Millisecond
)

// ErrStillRunning is returned by Trigger when the previous scan of the
// target has not finished yet.
var ErrStillRunning = errors.New("previous scan of target still running")

// Runner is the part of the orchestrator the scheduler drives.
type Runner interface {
	StartScan(ctx context.Context, req model.ScanRequest) (string, error)
	GetRunStatus(ctx context.Context, id string) (*app.RunStatus, error)
	PurgeOlderThan(ctx context.Context, age time.Duration) (int, error)
}

type Config struct {
	// TargetsPath is the YAML file of recurring scans. Empty disables
	// recurring scans; purging still runs.
	TargetsPath string

	PurgeSchedule string
	Retention     time.Duration
}

// DefaultConfig returns the purge cadence and retention used in production.
func DefaultConfig() Config {
	return Config{
		PurgeSchedule: DefaultPurgeSchedule,
		Retention:     DefaultRetention,
	}
}

// Scheduler owns the cron entries of every target plus the purge job.
type Scheduler struct {
	cfg    Config
	runner Runner
	logger logging.Logger
	cron   *cron.Cron

	mu      sync.Mutex
	targets []Target
	entries []cron.EntryID

	// triggerMu serialises Trigger so the overlap check and the start
	// happen together. lastRun maps a target name to its latest run id.
	triggerMu sync.Mutex
	lastRun   map[string]string

	watcher *fsnotify.Watcher
	stop    chan struct{}
	wg      sync.WaitGroup
}

// New validates cfg and prepares a scheduler; nothing runs until Start.
func New(cfg Config, runner Runner, logger logging.Logger) (*Scheduler, error) {
	if runner == nil {
		return nil, errors.New("scheduler: runner is nil")
	}
	if logger == nil {
		logger = logging.NopLogger{}
	}
	if cfg.PurgeSchedule == "" {
		cfg.PurgeSchedule = DefaultPurgeSchedule
	}
	if cfg.Retention <= 0 {
		cfg.Retention = DefaultRetention
	}
	if _, err := cron.ParseStandard(cfg.PurgeSchedule); err != nil {
		return nil, fmt.Errorf("invalid purge schedule %q: %w", cfg.PurgeSchedule, err)
	}

	logger = logger.With(logging.Field{Key: "component", Value: "scheduler"})
	cl := cronLogger{logger}
	return &Scheduler{
		cfg:     cfg,
		runner:  runner,
		logger:  logger,
		cron:    cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl))),
		stop:    make(chan struct{}),
		lastRun: make(map[string]string),
	}, nil
}

// Start loads the targets, registers every job and starts watching the
// targets file for changes.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.cfg.PurgeSchedule, func() { _, _ = s.Purge(context.Background()) }); err != nil {
		return fmt.Errorf("add purge job: %w", err)
	}

	if s.cfg.TargetsPath != "" {
		if err := s.Reload(); err != nil {
			return err
		}
		if err := s.watch(); err != nil {
			return err
		}
	}

	s.cron.Start()
	s.logger.Info("scheduler started",
		logging.Field{Key: "targets", Value: len(s.Targets())},
		logging.Field{Key: "purge_schedule", Value: s.cfg.PurgeSchedule})
	return nil
}

// Stop halts the watcher and waits for running jobs to return.
func (s *Scheduler) Stop() {
	close(s.stop)
	if s.watcher != nil {
		_ = s.watcher.Close()
	}
	s.wg.Wait()
	<-s.cron.Stop().Done()
}

// Targets returns the targets currently scheduled.
func (s *Scheduler) Targets() []Target {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Target(nil), s.targets...)
}

// Reload re-reads the targets file and swaps the scheduled set. An invalid
// file leaves the previous set in place.
func (s *Scheduler) Reload() error {
	targets, err := LoadTargets(s.cfg.TargetsPath)
	if err != nil {
		s.logger.Warn("targets file rejected, keeping previous schedule", logging.Err(err))
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	var entries []cron.EntryID
	for _, t := range targets {
		t := t
		id, err := s.cron.AddFunc(t.Schedule, func() { _, _ = s.Trigger(context.Background(), t) })
		if err != nil {
			for _, e := range entries {
				s.cron.Remove(e)
			}
			return fmt.Errorf("schedule target %q: %w", t.Name, err)
		}
		entries = append(entries, id)
	}
	for _, e := range s.entries {
		s.cron.Remove(e)
	}
	s.targets, s.entries = targets, entries
	s.logger.Info("targets loaded", logging.Field{Key: "count", Value: len(targets)})
	return nil
}

// Trigger starts the scan of one target now. While the target's previous
// run is still queued or running, it returns that run's id with
// ErrStillRunning instead of starting another.
func (s *Scheduler) Trigger(ctx context.Context, t Target) (string, error) {
	s.triggerMu.Lock()
	defer s.triggerMu.Unlock()

	if prev, ok := s.lastRun[t.Name]; ok {
		st, err := s.runner.GetRunStatus(ctx, prev)
		switch {
		case err != nil:
			s.logger.Debug("previous run status unavailable",
				logging.Field{Key: "target", Value: t.Name},
				logging.Field{Key: "run_id", Value: prev},
				logging.Err(err))
		case !st.Status.Terminal():
			s.logger.Info("scheduled scan skipped, previous run still active",
				logging.Field{Key: "target", Value: t.Name},
				logging.Field{Key: "run_id", Value: prev},
				logging.Field{Key: "status", Value: string(st.Status)})
			return prev, ErrStillRunning
		}
	}

	id, err := s.runner.StartScan(ctx, t.Request())
	if err != nil {
		s.logger.Error("scheduled scan not started",
			logging.Field{Key: "target", Value: t.Name},
			logging.Err(err))
		return "", err
	}
	s.lastRun[t.Name] = id
	s.logger.Info("scheduled scan started",
		logging.Field{Key: "target", Value: t.Name},
		logging.Field{Key: "run_id", Value: id})
	return id, nil
}

// Purge deletes finished runs older than the retention window.
func (s *Scheduler) Purge(ctx context.Context) (int, error) {
	n, err := s.runner.PurgeOlderThan(ctx, s.cfg.Retention)
	if err != nil {
		s.logger.Error("purge failed", logging.Err(err))
		return 0, err
	}
	return n, nil
}

// watch reloads the targets file after writes settle. The directory is
// watched because editors often replace the file instead of writing it.
func (s *Scheduler) watch() error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch init failed: %w", err)
	}
	path := filepath.Clean(s.cfg.TargetsPath)
	if err := w.Add(filepath.Dir(path)); err != nil {
		_ = w.Close()
		return fmt.Errorf("watch %s: %w", filepath.Dir(path), err)
	}
	s.watcher = w

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		var timer *time.Timer
		defer func() {
			if timer != nil {
				timer.Stop()
			}
		}()
		for {
			select {
			case <-s.stop:
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != path || ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				if timer != nil {
					timer.Stop()
				}
				timer = time.AfterFunc(reloadDebounce, func() { _ = s.Reload() })
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				s.logger.Warn("targets watch error", logging.Err(err))
			}
		}
	}()
	return nil
}

// cronLogger adapts logging.Logger to cron's logger.
type cronLogger struct{ l logging.Logger }

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug("cron: "+msg, kvFields(keysAndValues)...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error("cron: "+msg, append(kvFields(keysAndValues), logging.Err(err))...)
}

func kvFields(kv []interface{}) []logging.Field {
	fields := make([]logging.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		fields = append(fields, logging.Field{Key: fmt.Sprint(kv[i]), Value: kv[i+1]})
	}
	return fields
}
