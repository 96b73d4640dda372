package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Job is one unit of scheduled work.
type Job interface {
	Execute(ctx context.Context) error
	Description() string
}

// ScheduleTime represents a specific time of day when the scheduler should run.
type ScheduleTime struct {
	Hour   int
	Minute int
}

// String returns the time in HH:MM format.
func (st ScheduleTime) String() string {
	return fmt.Sprintf("%02d:%02d", st.Hour, st.Minute)
}

// ParseScheduleTime parses a time string in HH:MM format.
func ParseScheduleTime(s string) (ScheduleTime, error) {
	var hour, minute int
	_, err := fmt.Sscanf(s, "%d:%d", &hour, &minute)
	if err != nil {
		return ScheduleTime{}, fmt.Errorf("invalid time format (expected HH:MM): %w", err)
	}

	if hour < 0 || hour > 23 {
		return ScheduleTime{}, fmt.Errorf("invalid hour: %d (must be 0-23)", hour)
	}
	if minute < 0 || minute > 59 {
		return ScheduleTime{}, fmt.Errorf("invalid minute: %d (must be 0-59)", minute)
	}

	return ScheduleTime{Hour: hour, Minute: minute}, nil
}

// Scheduler runs its jobs at fixed times of day. Jobs execute sequentially,
// in order, never concurrently with each other: two sync batches touching
// the same products at once are not deconflicted anywhere else.
type Scheduler struct {
	scheduleTimes []ScheduleTime
	runOnStartup  bool
	jobs          []Job

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running sync.Mutex

	lastRunKey string
	mu         sync.Mutex
}

// Config holds scheduler configuration.
type Config struct {
	ScheduleTimes []string
	RunOnStartup  bool
	Jobs          []Job
}

// New creates a scheduler from the given configuration.
func New(config Config) (*Scheduler, error) {
	scheduleTimes := make([]ScheduleTime, 0, len(config.ScheduleTimes))
	for _, timeStr := range config.ScheduleTimes {
		st, err := ParseScheduleTime(timeStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse schedule time %q: %w", timeStr, err)
		}
		scheduleTimes = append(scheduleTimes, st)
	}

	if len(scheduleTimes) == 0 {
		return nil, fmt.Errorf("at least one schedule time is required")
	}

	ctx, cancel := context.WithCancel(context.Background())

	logrus.WithFields(logrus.Fields{
		"times": config.ScheduleTimes,
		"jobs":  len(config.Jobs),
	}).Info("scheduler initialized")

	return &Scheduler{
		scheduleTimes: scheduleTimes,
		runOnStartup:  config.RunOnStartup,
		jobs:          config.Jobs,
		ctx:           ctx,
		cancel:        cancel,
	}, nil
}

// Start launches the scheduling loop.
func (s *Scheduler) Start() {
	if s.runOnStartup {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.runJobs()
		}()
	}

	s.wg.Add(1)
	go s.scheduleLoop()

	logrus.Info("scheduler started")
}

func (s *Scheduler) scheduleLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return

		case now := <-ticker.C:
			if s.shouldRun(now) {
				logrus.WithField("time", now.Format("15:04")).Info("scheduler triggered")
				s.runJobs()
			}
		}
	}
}

// shouldRun checks if the current time matches any scheduled time. The
// per-minute key guards against a double fire within the same minute.
func (s *Scheduler) shouldRun(now time.Time) bool {
	currentKey := now.Format("2006-01-02-15:04")

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lastRunKey == currentKey {
		return false
	}

	for _, st := range s.scheduleTimes {
		if now.Hour() == st.Hour && now.Minute() == st.Minute {
			s.lastRunKey = currentKey
			return true
		}
	}

	return false
}

// runJobs executes every job in order. The running mutex makes a manual
// trigger during a scheduled run wait instead of overlapping it.
func (s *Scheduler) runJobs() {
	s.running.Lock()
	defer s.running.Unlock()

	ctx, cancel := context.WithTimeout(s.ctx, 15*time.Minute)
	defer cancel()

	for _, job := range s.jobs {
		if ctx.Err() != nil {
			logrus.Warn("scheduler run cancelled before completing all jobs")
			return
		}

		start := time.Now()
		if err := job.Execute(ctx); err != nil {
			logrus.WithError(err).WithField("job", job.Description()).Error("scheduled job failed")
			continue
		}
		logrus.WithFields(logrus.Fields{
			"job":      job.Description(),
			"duration": time.Since(start).String(),
		}).Info("scheduled job finished")
	}
}

// Shutdown stops the scheduling loop, waiting up to timeout for an
// in-flight run to finish.
func (s *Scheduler) Shutdown(timeout time.Duration) {
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logrus.Info("scheduler stopped")
	case <-time.After(timeout):
		logrus.Warn("timeout waiting for scheduler to stop")
	}
}

// TriggerNow runs the job list immediately, off the schedule.
func (s *Scheduler) TriggerNow() {
	go s.runJobs()
}

// NextScheduledTime returns the next scheduled run time.
func (s *Scheduler) NextScheduledTime() time.Time {
	now := time.Now()

	for _, st := range s.scheduleTimes {
		scheduled := time.Date(now.Year(), now.Month(), now.Day(), st.Hour, st.Minute, 0, 0, now.Location())
		if scheduled.After(now) {
			return scheduled
		}
	}

	st := s.scheduleTimes[0]
	tomorrow := now.AddDate(0, 0, 1)
	return time.Date(tomorrow.Year(), tomorrow.Month(), tomorrow.Day(), st.Hour, st.Minute, 0, 0, now.Location())
}
