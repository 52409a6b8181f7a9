// Package telemetry provides OpenTelemetry integration for metrics collection.
package telemetry

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// LedgerMetrics provides business metrics for the ledger and loan book.
// It tracks transaction recording, append conflicts, and loan book health.
type LedgerMetrics struct {
	meter  metric.Meter
	logger *zap.Logger

	// Counter metrics (monotonically increasing)
	transactionRecordedTotal *Counter
	transactionAmountTotal   *Counter
	appendConflictTotal      *Counter

	// Gauge metrics (point-in-time values)
	openLoanCount    *Gauge
	overdueLoanCount *Gauge

	// Periodic collector
	stopChan    chan struct{}
	stopOnce    sync.Once
	collectOnce sync.Once

	loanBookProvider LoanBookProvider
}

// LoanBookProvider provides loan book data for periodic metrics collection.
// This interface lets the telemetry layer query loan state without
// depending on the loan domain directly.
type LoanBookProvider interface {
	// GetOpenLoanCounts returns the number of open loans per group
	GetOpenLoanCounts(ctx context.Context) (map[uuid.UUID]int64, error)

	// GetOverdueLoanCounts returns the number of overdue loans per group
	GetOverdueLoanCounts(ctx context.Context) (map[uuid.UUID]int64, error)
}

// LedgerMetricsConfig holds configuration for ledger metrics.
type LedgerMetricsConfig struct {
	Meter            metric.Meter
	Logger           *zap.Logger
	CollectInterval  time.Duration // Default: 5 minutes
	LoanBookProvider LoanBookProvider
}

// NewLedgerMetrics creates a new LedgerMetrics instance.
func NewLedgerMetrics(cfg LedgerMetricsConfig) (*LedgerMetrics, error) {
	if cfg.Meter == nil {
		return nil, ErrMeterNil
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	lm := &LedgerMetrics{
		meter:            cfg.Meter,
		logger:           logger,
		stopChan:         make(chan struct{}),
		loanBookProvider: cfg.LoanBookProvider,
	}

	var err error

	lm.transactionRecordedTotal, err = NewCounter(
		cfg.Meter,
		"vsla_ledger_transaction_recorded_total",
		"Total number of ledger transactions recorded",
		"{transactions}",
	)
	if err != nil {
		return nil, err
	}

	lm.transactionAmountTotal, err = NewCounter(
		cfg.Meter,
		"vsla_ledger_transaction_amount_total",
		"Total transaction amount in cents",
		"{cents}",
	)
	if err != nil {
		return nil, err
	}

	lm.appendConflictTotal, err = NewCounter(
		cfg.Meter,
		"vsla_ledger_append_conflict_total",
		"Total number of ledger appends lost to a concurrent writer",
		"{conflicts}",
	)
	if err != nil {
		return nil, err
	}

	lm.openLoanCount, err = NewGauge(
		cfg.Meter,
		"vsla_loan_open_count",
		"Current number of open loans",
		"{loans}",
	)
	if err != nil {
		return nil, err
	}

	lm.overdueLoanCount, err = NewGauge(
		cfg.Meter,
		"vsla_loan_overdue_count",
		"Current number of overdue loans",
		"{loans}",
	)
	if err != nil {
		return nil, err
	}

	return lm, nil
}

// RecordTransaction records a committed ledger transaction.
// This should be called from the application layer after the append commits.
func (lm *LedgerMetrics) RecordTransaction(ctx context.Context, groupID uuid.UUID, kind string, amount decimal.Decimal) {
	lm.transactionRecordedTotal.Inc(ctx,
		AttrGroupID.String(groupID.String()),
		AttrTransactionKind.String(kind),
	)

	amountCents := amount.Mul(decimal.NewFromInt(100)).IntPart()
	lm.transactionAmountTotal.Add(ctx, amountCents,
		AttrGroupID.String(groupID.String()),
		AttrTransactionKind.String(kind),
	)
}

// RecordAppendConflict records an append that lost the sequence race and
// was retried.
func (lm *LedgerMetrics) RecordAppendConflict(ctx context.Context, groupID uuid.UUID) {
	lm.appendConflictTotal.Inc(ctx,
		AttrGroupID.String(groupID.String()),
	)
}

// RecordOpenLoanCount records the current number of open loans for a group.
// This is a gauge metric that should be updated periodically.
func (lm *LedgerMetrics) RecordOpenLoanCount(ctx context.Context, groupID uuid.UUID, count int64) {
	lm.openLoanCount.Record(ctx, count,
		AttrGroupID.String(groupID.String()),
	)
}

// RecordOverdueLoanCount records the current number of overdue loans for a group.
func (lm *LedgerMetrics) RecordOverdueLoanCount(ctx context.Context, groupID uuid.UUID, count int64) {
	lm.overdueLoanCount.Record(ctx, count,
		AttrGroupID.String(groupID.String()),
	)
}

// StartPeriodicCollection starts periodic collection of loan book gauges.
// This is non-blocking - use Stop() to stop collection.
func (lm *LedgerMetrics) StartPeriodicCollection(ctx context.Context, interval time.Duration) {
	lm.collectOnce.Do(func() {
		if interval <= 0 {
			interval = 5 * time.Minute
		}

		go lm.runPeriodicCollection(ctx, interval)
	})
}

// runPeriodicCollection runs the periodic collection loop.
func (lm *LedgerMetrics) runPeriodicCollection(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Collect immediately on start
	lm.collectLoanBookMetrics(ctx)

	for {
		select {
		case <-lm.stopChan:
			lm.logger.Info("Stopping periodic ledger metrics collection")
			return
		case <-ctx.Done():
			lm.logger.Info("Context cancelled, stopping periodic ledger metrics collection")
			return
		case <-ticker.C:
			lm.collectLoanBookMetrics(ctx)
		}
	}
}

// collectLoanBookMetrics collects loan book gauges for every group.
func (lm *LedgerMetrics) collectLoanBookMetrics(ctx context.Context) {
	if lm.loanBookProvider == nil {
		lm.logger.Debug("No loan book provider configured, skipping loan metrics collection")
		return
	}

	openCounts, err := lm.loanBookProvider.GetOpenLoanCounts(ctx)
	if err != nil {
		lm.logger.Warn("Failed to get open loan counts", zap.Error(err))
	} else {
		for groupID, count := range openCounts {
			lm.RecordOpenLoanCount(ctx, groupID, count)
		}
	}

	overdueCounts, err := lm.loanBookProvider.GetOverdueLoanCounts(ctx)
	if err != nil {
		lm.logger.Warn("Failed to get overdue loan counts", zap.Error(err))
	} else {
		for groupID, count := range overdueCounts {
			lm.RecordOverdueLoanCount(ctx, groupID, count)
		}
	}
}

// Stop stops the periodic collection.
func (lm *LedgerMetrics) Stop() {
	lm.stopOnce.Do(func() {
		close(lm.stopChan)
	})
}

// ErrMeterNil is returned when meter is nil.
var ErrMeterNil = &MetricsError{Op: "NewLedgerMetrics", Err: "meter cannot be nil"}

// MetricsError represents a metrics-related error.
type MetricsError struct {
	Op  string
	Err string
}

func (e *MetricsError) Error() string {
	return e.Op + ": " + e.Err
}
