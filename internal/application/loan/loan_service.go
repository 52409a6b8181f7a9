package loan

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vsla/backend/internal/domain/ledger"
	"github.com/vsla/backend/internal/domain/loan"
	"github.com/vsla/backend/internal/domain/shared"
)

// Coordinator serializes writes per group. Satisfied by
// coordination.GroupCoordinator.
type Coordinator interface {
	WithGroup(ctx context.Context, groupID uuid.UUID, fn func(ctx context.Context) error) error
}

// Config holds loan lifecycle policy
type Config struct {
	InterestMethod  loan.InterestMethod
	GracePeriodDays int
}

// LoanService serves the loan book and runs the overdue sweep. Loans are
// opened and repaid through the ledger write path; this service only reads
// them and advances time-driven transitions.
type LoanService struct {
	loanRepo       loan.Repository
	txRepo         ledger.TransactionRepository
	coordinator    Coordinator
	eventPublisher shared.EventPublisher
	logger         *zap.Logger
	cfg            Config
}

// NewLoanService creates a new LoanService
func NewLoanService(loanRepo loan.Repository, txRepo ledger.TransactionRepository, coordinator Coordinator, logger *zap.Logger, cfg Config) *LoanService {
	if cfg.GracePeriodDays <= 0 {
		cfg.GracePeriodDays = 14
	}
	if !cfg.InterestMethod.IsValid() {
		cfg.InterestMethod = loan.InterestSimple
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LoanService{
		loanRepo:    loanRepo,
		txRepo:      txRepo,
		coordinator: coordinator,
		logger:      logger,
		cfg:         cfg,
	}
}

// SetEventPublisher sets the event publisher for publishing domain events
func (s *LoanService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

func (s *LoanService) publishDomainEvents(ctx context.Context, l *loan.Loan) {
	if s.eventPublisher == nil {
		l.ClearDomainEvents()
		return
	}
	events := l.GetDomainEvents()
	if len(events) > 0 {
		_ = s.eventPublisher.Publish(ctx, events...)
	}
	l.ClearDomainEvents()
}

// GetByID retrieves a loan with balances computed as of now
func (s *LoanService) GetByID(ctx context.Context, groupID, loanID uuid.UUID) (*LoanResponse, error) {
	l, err := s.loanRepo.FindByID(ctx, loanID)
	if err != nil {
		return nil, err
	}
	if l.GroupID != groupID {
		return nil, shared.ErrNoSuchLoan.WithDetails("loan %s belongs to another group", loanID)
	}
	response := ToLoanResponse(l, time.Now())
	return &response, nil
}

// ListByGroup returns the group's loan book
func (s *LoanService) ListByGroup(ctx context.Context, groupID uuid.UUID) ([]LoanResponse, error) {
	loans, err := s.loanRepo.ListByGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	items := make([]LoanResponse, 0, len(loans))
	for i := range loans {
		items = append(items, ToLoanResponse(&loans[i], now))
	}
	return items, nil
}

// SweepOverdue advances time-driven loan transitions across all groups:
// open loans past due become overdue, overdue loans past the grace period
// default. Each loan's write runs under its group's exclusive section.
func (s *LoanService) SweepOverdue(ctx context.Context, asOf time.Time) (*SweepResult, error) {
	open, err := s.loanRepo.ListOpen(ctx)
	if err != nil {
		return nil, err
	}

	result := &SweepResult{Scanned: len(open)}
	for i := range open {
		l := &open[i]
		var transitioned bool

		err := s.coordinator.WithGroup(ctx, l.GroupID, func(ctx context.Context) error {
			// Re-read under the lock; a repayment may have closed the
			// loan since the listing.
			current, err := s.loanRepo.FindByID(ctx, l.ID)
			if err != nil {
				return err
			}

			switch current.State {
			case loan.StateDisbursed, loan.StatePartiallyRepaid:
				if !current.IsOverdue(asOf) {
					return nil
				}
				if err := current.MarkOverdue(asOf); err != nil {
					return err
				}
				result.MarkedOverdue = append(result.MarkedOverdue, current.ID)
			case loan.StateOverdue:
				deadline := current.DueDate.AddDate(0, 0, s.cfg.GracePeriodDays)
				if !asOf.After(deadline) {
					return nil
				}
				if err := current.MarkDefaulted(asOf, s.cfg.GracePeriodDays); err != nil {
					return err
				}
				result.Defaulted = append(result.Defaulted, current.ID)
			default:
				return nil
			}

			if err := s.loanRepo.Save(ctx, current); err != nil {
				return err
			}
			transitioned = true
			s.publishDomainEvents(ctx, current)
			return nil
		})
		if err != nil {
			s.logger.Warn("overdue sweep skipped loan",
				zap.String("loan_id", l.ID.String()),
				zap.Error(err))
			continue
		}
		if transitioned {
			s.logger.Info("loan transitioned by sweep",
				zap.String("loan_id", l.ID.String()),
				zap.String("group_id", l.GroupID.String()))
		}
	}
	return result, nil
}

// RebuildGroup drops the group's cached loan aggregates and rebuilds them
// by replaying the transaction log. Repair path for a corrupted loan book;
// no events fire, the ledger already holds the facts.
func (s *LoanService) RebuildGroup(ctx context.Context, groupID uuid.UUID) (*RebuildResult, error) {
	result := &RebuildResult{GroupID: groupID}

	err := s.coordinator.WithGroup(ctx, groupID, func(ctx context.Context) error {
		txs, err := s.txRepo.ListByGroup(ctx, groupID)
		if err != nil {
			return err
		}
		if err := s.loanRepo.DeleteByGroup(ctx, groupID); err != nil {
			return err
		}

		rebuilt := make(map[uuid.UUID]*loan.Loan)
		for i := range txs {
			tx := &txs[i]
			switch tx.Kind {
			case ledger.KindLoanDisbursement:
				terms, err := termsFromMetadata(tx)
				if err != nil {
					return err
				}
				l, err := loan.NewLoanFromDisbursement(tx, terms, s.cfg.InterestMethod)
				if err != nil {
					return err
				}
				l.ClearDomainEvents()
				rebuilt[l.ID] = l

			case ledger.KindLoanRepayment:
				l, ok := rebuilt[*tx.LoanReference]
				if !ok {
					return shared.ErrNoSuchLoan.WithDetails(
						"repayment %s references loan %s absent from the log", tx.ID, *tx.LoanReference)
				}
				if err := l.ApplyRepayment(tx); err != nil {
					return err
				}
				l.ClearDomainEvents()
			}
		}

		for _, l := range rebuilt {
			if err := s.loanRepo.Create(ctx, l); err != nil {
				return err
			}
			result.LoansRebuilt++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("loan book rebuilt",
		zap.String("group_id", groupID.String()),
		zap.Int("loans", result.LoansRebuilt))
	return result, nil
}

// GetOpenLoanCounts returns the number of open loans per group.
// Feeds the periodic telemetry collection.
func (s *LoanService) GetOpenLoanCounts(ctx context.Context) (map[uuid.UUID]int64, error) {
	open, err := s.loanRepo.ListOpen(ctx)
	if err != nil {
		return nil, err
	}
	counts := make(map[uuid.UUID]int64)
	for i := range open {
		counts[open[i].GroupID]++
	}
	return counts, nil
}

// GetOverdueLoanCounts returns the number of overdue loans per group
func (s *LoanService) GetOverdueLoanCounts(ctx context.Context) (map[uuid.UUID]int64, error) {
	open, err := s.loanRepo.ListOpen(ctx)
	if err != nil {
		return nil, err
	}
	counts := make(map[uuid.UUID]int64)
	for i := range open {
		if open[i].State == loan.StateOverdue {
			counts[open[i].GroupID]++
		}
	}
	return counts, nil
}

// termsFromMetadata recovers the loan terms a disbursement was recorded
// with. The ledger write path stamps them into transaction metadata so the
// loan book stays rebuildable from the log alone.
func termsFromMetadata(tx *ledger.Transaction) (ledger.LoanTerms, error) {
	rateStr, okRate := tx.Metadata[ledger.MetadataKeyInterestRate]
	dueStr, okDue := tx.Metadata[ledger.MetadataKeyDueDate]
	if !okRate || !okDue {
		return ledger.LoanTerms{}, shared.ErrInvalidState.WithDetails(
			"disbursement %s carries no loan terms", tx.ID)
	}
	rate, err := decimal.NewFromString(rateStr)
	if err != nil {
		return ledger.LoanTerms{}, shared.ErrInvalidState.WithDetails(
			"disbursement %s has malformed interest rate %q", tx.ID, rateStr)
	}
	due, err := time.Parse(time.RFC3339, dueStr)
	if err != nil {
		return ledger.LoanTerms{}, shared.ErrInvalidState.WithDetails(
			"disbursement %s has malformed due date %q", tx.ID, dueStr)
	}
	return ledger.LoanTerms{MonthlyInterestRate: rate, DueDate: due}, nil
}
