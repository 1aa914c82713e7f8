package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"jarvis/internal/logging"
	"jarvis/internal/schedule"
)

// DueChecker is satisfied by schedule.FileRepository.
type DueChecker interface {
	CheckDue(now time.Time) ([]schedule.Reminder, error)
}

// Cleaner is satisfied by memory.Gateway.
type Cleaner interface {
	Cleanup(ctx context.Context, olderThanDays int) (int, error)
}

// NotifyFunc receives each reminder that came due.
type NotifyFunc func(ctx context.Context, r schedule.Reminder)

type Options struct {
	CheckInterval   time.Duration
	CleanupInterval time.Duration
	RetentionDays   int
	Location        *time.Location
	Logger          *zap.Logger
}

// Scheduler runs the periodic jobs: due-reminder delivery and memory retention.
type Scheduler struct {
	cron   *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc
	opts   Options
	logger *zap.Logger
	now    func() time.Time

	mu       sync.Mutex
	reminder DueChecker
	notify   []NotifyFunc
	cleaner  Cleaner
	running  bool
}

func New(opts Options) *Scheduler {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.CheckInterval <= 0 {
		opts.CheckInterval = 60 * time.Second
	}
	if opts.CleanupInterval <= 0 {
		opts.CleanupInterval = 24 * time.Hour
	}
	if opts.RetentionDays <= 0 {
		opts.RetentionDays = 30
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:   cron.New(cron.WithLocation(opts.Location)),
		ctx:    ctx,
		cancel: cancel,
		opts:   opts,
		logger: logging.OrNop(opts.Logger),
		now:    time.Now,
	}
}

// SetReminders enables the due-reminder job.
func (s *Scheduler) SetReminders(repo DueChecker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reminder = repo
}

// OnDue registers a callback for due reminders. Several may be registered.
func (s *Scheduler) OnDue(f NotifyFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notify = append(s.notify, f)
}

// SetCleaner enables the memory retention job.
func (s *Scheduler) SetCleaner(c Cleaner) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cleaner = c
}

func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}

	if s.reminder != nil {
		spec := every(s.opts.CheckInterval)
		if _, err := s.cron.AddFunc(spec, s.checkReminders); err != nil {
			return fmt.Errorf("add reminder job: %w", err)
		}
		s.logger.Info("reminder job scheduled", zap.String("spec", spec))
	}
	if s.cleaner != nil {
		spec := every(s.opts.CleanupInterval)
		if _, err := s.cron.AddFunc(spec, s.cleanupMemory); err != nil {
			return fmt.Errorf("add cleanup job: %w", err)
		}
		s.logger.Info("memory cleanup job scheduled", zap.String("spec", spec), zap.Int("retention_days", s.opts.RetentionDays))
	}
	if len(s.cron.Entries()) == 0 {
		s.logger.Warn("no jobs configured, scheduler idle")
		return nil
	}

	s.cron.Start()
	s.running = true
	s.logger.Info("scheduler started")
	return nil
}

func (s *Scheduler) Stop() {
	s.mu.Lock()
	running := s.running
	s.running = false
	s.mu.Unlock()

	if running {
		ctx := s.cron.Stop()
		<-ctx.Done()
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running && len(s.cron.Entries()) > 0
}

// RunOnce runs every configured job immediately.
func (s *Scheduler) RunOnce() {
	s.checkReminders()
	s.cleanupMemory()
}

func (s *Scheduler) checkReminders() {
	s.mu.Lock()
	repo := s.reminder
	notify := append([]NotifyFunc(nil), s.notify...)
	s.mu.Unlock()
	if repo == nil {
		return
	}

	due, err := repo.CheckDue(s.now().In(s.opts.Location))
	if err != nil {
		s.logger.Error("failed to check due reminders", zap.Error(err))
		return
	}
	for _, r := range due {
		s.logger.Info("reminder due", zap.String("id", r.ID), zap.String("message", r.Message))
		for _, f := range notify {
			s.deliver(f, r)
		}
	}
}

func (s *Scheduler) deliver(f NotifyFunc, r schedule.Reminder) {
	defer func() {
		if p := recover(); p != nil {
			s.logger.Error("reminder callback panicked", zap.String("id", r.ID), zap.Any("panic", p))
		}
	}()
	f(s.ctx, r)
}

func (s *Scheduler) cleanupMemory() {
	s.mu.Lock()
	c := s.cleaner
	s.mu.Unlock()
	if c == nil {
		return
	}
	n, err := c.Cleanup(s.ctx, s.opts.RetentionDays)
	if err != nil {
		s.logger.Error("memory cleanup failed", zap.Error(err))
		return
	}
	s.logger.Info("memory cleanup finished", zap.Int("deleted", n))
}

func every(d time.Duration) string {
	return "@every " + d.String()
}
