package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Task is one unit of periodic work. Each run gets its own deadline.
type Task struct {
	Name     string
	Interval time.Duration
	// Timeout bounds a single run; zero means the interval.
	Timeout time.Duration
	Run     func(ctx context.Context) error
}

// Scheduler runs a Task immediately on Start and then on every tick until stopped.
type Scheduler struct {
	logger *zap.Logger
	task   Task

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewScheduler(logger *zap.Logger, task Task) (*Scheduler, error) {
	if task.Interval <= 0 {
		return nil, ErrInvalidInterval
	}
	if task.Timeout <= 0 || task.Timeout > task.Interval {
		task.Timeout = task.Interval
	}

	return &Scheduler{
		logger: logger.With(zap.String("task", task.Name)),
		task:   task,
	}, nil
}

// Start launches the loop. The loop also ends when ctx is canceled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrAlreadyRunning
	}

	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})

	go s.loop(ctx, s.stopCh, s.doneCh)

	s.logger.Info("Scheduler started", zap.Duration("interval", s.task.Interval))
	return nil
}

// Stop signals the loop and waits for an in-flight run to finish.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return ErrNotRunning
	}
	stopCh, doneCh := s.stopCh, s.doneCh
	s.running = false
	s.mu.Unlock()

	close(stopCh)
	<-doneCh

	s.logger.Info("Scheduler stopped")
	return nil
}

func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Scheduler) loop(ctx context.Context, stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	s.runOnce(ctx)

	ticker := time.NewTicker(s.task.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.mu.Lock()
			if s.stopCh == stopCh {
				s.running = false
			}
			s.mu.Unlock()
			s.logger.Info("Scheduler context canceled")
			return
		case <-stopCh:
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	runCtx, cancel := context.WithTimeout(ctx, s.task.Timeout)
	defer cancel()

	if err := s.task.Run(runCtx); err != nil {
		s.logger.Warn("Scheduled task failed", zap.Error(err))
		return
	}
	s.logger.Debug("Scheduled task completed")
}
