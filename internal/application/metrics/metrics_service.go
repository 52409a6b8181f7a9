package metrics

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vsla/backend/internal/domain/governance"
	"github.com/vsla/backend/internal/domain/group"
	"github.com/vsla/backend/internal/domain/ledger"
	"github.com/vsla/backend/internal/domain/loan"
	"github.com/vsla/backend/internal/domain/metrics"
)

// Config holds the health scoring policy
type Config struct {
	Weights           metrics.Weights
	SavingsWindowDays int
}

// MetricsService computes group health reports. Every indicator derives
// from the transaction log, the loan book, and the officer roster; nothing
// is stored, so a report is always current as of the request.
type MetricsService struct {
	txRepo         ledger.TransactionRepository
	loanRepo       loan.Repository
	assignmentRepo governance.Repository
	groupRepo      group.Repository
	logger         *zap.Logger
	cfg            Config
}

// NewMetricsService creates a new MetricsService
func NewMetricsService(
	txRepo ledger.TransactionRepository,
	loanRepo loan.Repository,
	assignmentRepo governance.Repository,
	groupRepo group.Repository,
	logger *zap.Logger,
	cfg Config,
) *MetricsService {
	if cfg.Weights == (metrics.Weights{}) {
		cfg.Weights = metrics.DefaultWeights()
	}
	if cfg.SavingsWindowDays <= 0 {
		cfg.SavingsWindowDays = 30
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MetricsService{
		txRepo:         txRepo,
		loanRepo:       loanRepo,
		assignmentRepo: assignmentRepo,
		groupRepo:      groupRepo,
		logger:         logger,
		cfg:            cfg,
	}
}

// ReportResponse is a group health report in API responses
type ReportResponse struct {
	GroupID             uuid.UUID `json:"group_id"`
	RepaymentRate       float64   `json:"repayment_rate"`
	DefaultRate         float64   `json:"default_rate"`
	SavingsGrowth       float64   `json:"savings_growth"`
	OfficerCompleteness float64   `json:"officer_completeness"`
	HealthScore         float64   `json:"health_score"`
	ComputedAt          time.Time `json:"computed_at"`
}

// Report computes the group's health indicators and weighted score as of
// now.
func (s *MetricsService) Report(ctx context.Context, groupID uuid.UUID) (*ReportResponse, error) {
	if _, err := s.groupRepo.FindByID(ctx, groupID); err != nil {
		return nil, err
	}

	now := time.Now()
	loans, err := s.loanRepo.ListByGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	txs, err := s.txRepo.ListByGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	open, err := s.assignmentRepo.FindOpenByGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}

	report := metrics.Report{
		RepaymentRate:       metrics.RepaymentRate(loans, now),
		DefaultRate:         metrics.DefaultRate(loans),
		SavingsGrowth:       metrics.SavingsGrowth(txs, now, s.cfg.SavingsWindowDays),
		OfficerCompleteness: metrics.OfficerCompleteness(governance.ActiveRoster(open)),
	}
	report.HealthScore = metrics.HealthScore(report, s.cfg.Weights)

	return &ReportResponse{
		GroupID:             groupID,
		RepaymentRate:       report.RepaymentRate,
		DefaultRate:         report.DefaultRate,
		SavingsGrowth:       report.SavingsGrowth,
		OfficerCompleteness: report.OfficerCompleteness,
		HealthScore:         report.HealthScore,
		ComputedAt:          now,
	}, nil
}
