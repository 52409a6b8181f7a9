package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	loanapp "github.com/vsla/backend/internal/application/loan"
)

// Sweeper advances time-driven loan transitions. Satisfied by the loan
// application service.
type Sweeper interface {
	SweepOverdue(ctx context.Context, asOf time.Time) (*loanapp.SweepResult, error)
}

// SweepSchedulerConfig holds configuration for the periodic overdue sweep
type SweepSchedulerConfig struct {
	// Enabled indicates if the periodic sweep is enabled
	Enabled bool
	// Interval is the time between sweep runs
	Interval time.Duration
	// Timeout is the maximum time a single sweep run may take
	Timeout time.Duration
}

// DefaultSweepSchedulerConfig returns default sweep scheduler configuration
func DefaultSweepSchedulerConfig() SweepSchedulerConfig {
	return SweepSchedulerConfig{
		Enabled:  true,
		Interval: time.Hour,
		Timeout:  5 * time.Minute,
	}
}

// Validate checks the configuration for obviously broken values
func (c SweepSchedulerConfig) Validate() error {
	if c.Interval <= 0 || c.Timeout <= 0 {
		return ErrInvalidConfig
	}
	return nil
}

// SweepScheduler runs the overdue loan sweep on a fixed interval. A loan
// past its due date moves to overdue, and past the grace period to
// defaulted; the sweep is idempotent, so overlapping manual runs via the
// admin endpoint are harmless.
type SweepScheduler struct {
	config  SweepSchedulerConfig
	sweeper Sweeper
	logger  *zap.Logger

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
	sweeping  bool
}

// NewSweepScheduler creates a new sweep scheduler instance
func NewSweepScheduler(config SweepSchedulerConfig, sweeper Sweeper, logger *zap.Logger) *SweepScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SweepScheduler{
		config:  config,
		sweeper: sweeper,
		logger:  logger,
	}
}

// Start begins the periodic sweep loop. The first run fires after one
// full interval, not immediately, so a crash-looping process does not
// hammer the loan book.
func (s *SweepScheduler) Start(ctx context.Context) error {
	if err := s.config.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go s.run(ctx)

	s.logger.Info("Overdue sweep scheduler started",
		zap.Duration("interval", s.config.Interval),
		zap.Duration("timeout", s.config.Timeout),
	)
	return nil
}

// Stop gracefully stops the scheduler, waiting for an in-flight sweep
// to finish or the passed context to expire.
func (s *SweepScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Overdue sweep scheduler stopped gracefully")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Overdue sweep scheduler stop timed out")
		return ctx.Err()
	}
}

// RunNow triggers a single sweep outside the interval loop. Returns
// ErrSweepAlreadyInProgress when a run is still in flight.
func (s *SweepScheduler) RunNow(ctx context.Context) (*loanapp.SweepResult, error) {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil, ErrSchedulerNotRunning
	}
	if s.sweeping {
		s.mu.Unlock()
		return nil, ErrSweepAlreadyInProgress
	}
	s.sweeping = true
	s.mu.Unlock()
	defer s.clearSweeping()

	return s.sweep(ctx)
}

func (s *SweepScheduler) run(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.mu.Lock()
			if s.sweeping {
				s.mu.Unlock()
				s.logger.Warn("Skipping sweep tick, previous run still in flight")
				continue
			}
			s.sweeping = true
			s.mu.Unlock()

			if _, err := s.sweep(ctx); err != nil && ctx.Err() == nil {
				s.logger.Error("Overdue sweep failed", zap.Error(err))
			}
			s.clearSweeping()
		}
	}
}

func (s *SweepScheduler) sweep(ctx context.Context) (*loanapp.SweepResult, error) {
	sweepCtx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	start := time.Now()
	result, err := s.sweeper.SweepOverdue(sweepCtx, start)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Overdue sweep completed",
		zap.Int("scanned", result.Scanned),
		zap.Int("marked_overdue", len(result.MarkedOverdue)),
		zap.Int("defaulted", len(result.Defaulted)),
		zap.Duration("took", time.Since(start)),
	)
	return result, nil
}

func (s *SweepScheduler) clearSweeping() {
	s.mu.Lock()
	s.sweeping = false
	s.mu.Unlock()
}
