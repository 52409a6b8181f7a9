package ledger

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vsla/backend/internal/domain/group"
	"github.com/vsla/backend/internal/domain/ledger"
	"github.com/vsla/backend/internal/domain/loan"
	"github.com/vsla/backend/internal/domain/shared"
	"github.com/vsla/backend/internal/domain/shared/valueobject"
)

// Coordinator serializes writes per group. Satisfied by
// coordination.GroupCoordinator.
type Coordinator interface {
	WithGroup(ctx context.Context, groupID uuid.UUID, fn func(ctx context.Context) error) error
}

// UnitOfWork runs a function inside a single storage transaction so the
// ledger append and its loan mutation commit or roll back together.
// Satisfied by persistence.GormUnitOfWork; nil runs the function on the
// repositories' own connections.
type UnitOfWork interface {
	Do(ctx context.Context, fn func(ctx context.Context) error) error
}

// AppendMetrics receives ledger write telemetry. Satisfied by
// telemetry.LedgerMetrics; a nil implementation is allowed.
type AppendMetrics interface {
	RecordTransaction(ctx context.Context, groupID uuid.UUID, kind string, amount decimal.Decimal)
	RecordAppendConflict(ctx context.Context, groupID uuid.UUID)
}

// Config holds the ledger service policy knobs
type Config struct {
	InterestMethod   loan.InterestMethod
	RepaymentSource  ledger.RepaymentSourcePolicy
	MaxAppendRetries int
}

// LedgerService is the single write path into group ledgers. Every append
// runs inside the group's exclusive section: validate, project the current
// balance, commit the transaction, and update the loan book, all while no
// other writer can touch the group.
type LedgerService struct {
	groupRepo      group.Repository
	memberRepo     group.MemberRepository
	txRepo         ledger.TransactionRepository
	loanRepo       loan.Repository
	projector      *ledger.Projector
	cache          ledger.ProjectionCache
	coordinator    Coordinator
	uow            UnitOfWork
	eventPublisher shared.EventPublisher
	metrics        AppendMetrics
	logger         *zap.Logger
	cfg            Config
}

// NewLedgerService creates a new LedgerService
func NewLedgerService(
	groupRepo group.Repository,
	memberRepo group.MemberRepository,
	txRepo ledger.TransactionRepository,
	loanRepo loan.Repository,
	cache ledger.ProjectionCache,
	coordinator Coordinator,
	uow UnitOfWork,
	logger *zap.Logger,
	cfg Config,
) *LedgerService {
	if cfg.MaxAppendRetries < 1 {
		cfg.MaxAppendRetries = 3
	}
	if !cfg.InterestMethod.IsValid() {
		cfg.InterestMethod = loan.InterestSimple
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LedgerService{
		groupRepo:   groupRepo,
		memberRepo:  memberRepo,
		txRepo:      txRepo,
		loanRepo:    loanRepo,
		projector:   ledger.NewProjector(cfg.RepaymentSource),
		cache:       cache,
		coordinator: coordinator,
		uow:         uow,
		logger:      logger,
		cfg:         cfg,
	}
}

// SetEventPublisher sets the event publisher for publishing domain events
func (s *LedgerService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// SetMetrics sets the telemetry sink for ledger writes
func (s *LedgerService) SetMetrics(m AppendMetrics) {
	s.metrics = m
}

// RecordTransaction validates and appends a transaction to the group's
// ledger. Disbursements open a loan; repayments advance one. Events and
// telemetry fire only after the write has committed.
func (s *LedgerService) RecordTransaction(ctx context.Context, groupID uuid.UUID, req RecordTransactionRequest) (*TransactionResponse, error) {
	g, err := s.groupRepo.FindByID(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if !g.IsActive() {
		return nil, shared.ErrInvalidState.WithDetails("group %s is dissolved and rejects ledger writes", groupID)
	}

	intent, err := s.buildIntent(g, req)
	if err != nil {
		return nil, err
	}
	tx, err := ledger.NewTransaction(groupID, intent)
	if err != nil {
		return nil, err
	}

	if err := s.checkMember(ctx, groupID, tx); err != nil {
		return nil, err
	}

	var events []shared.DomainEvent
	err = s.coordinator.WithGroup(ctx, groupID, func(ctx context.Context) error {
		var repaying *loan.Loan
		if tx.Kind == ledger.KindLoanRepayment {
			repaying, err = s.loadRepayableLoan(ctx, groupID, *tx.LoanReference)
			if err != nil {
				return err
			}
		}

		if err := s.checkFunds(ctx, g, tx); err != nil {
			return err
		}

		// The append and the loan mutation share one storage
		// transaction: a disbursement can never commit without its
		// loan row, a repayment never without the loan update.
		if err := s.atomically(ctx, func(ctx context.Context) error {
			if err := s.append(ctx, tx); err != nil {
				return err
			}

			switch tx.Kind {
			case ledger.KindLoanDisbursement:
				opened, err := loan.NewLoanFromDisbursement(tx, *intent.LoanTerms, s.cfg.InterestMethod)
				if err != nil {
					return err
				}
				if err := s.loanRepo.Create(ctx, opened); err != nil {
					return err
				}
				events = append(events, opened.GetDomainEvents()...)
				opened.ClearDomainEvents()

			case ledger.KindLoanRepayment:
				if err := repaying.ApplyRepayment(tx); err != nil {
					return err
				}
				if err := s.loanRepo.Save(ctx, repaying); err != nil {
					return err
				}
				events = append(events, repaying.GetDomainEvents()...)
				repaying.ClearDomainEvents()
			}
			return nil
		}); err != nil {
			return err
		}

		if s.cache != nil {
			if err := s.cache.Invalidate(ctx, groupID); err != nil {
				s.logger.Warn("projection cache invalidation failed",
					zap.String("group_id", groupID.String()),
					zap.Error(err))
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	events = append(events, ledger.NewTransactionRecordedEvent(tx))
	if s.eventPublisher != nil {
		_ = s.eventPublisher.Publish(ctx, events...)
	}
	if s.metrics != nil {
		s.metrics.RecordTransaction(ctx, groupID, string(tx.Kind), tx.Amount.Amount())
	}
	s.logger.Info("transaction recorded",
		zap.String("group_id", groupID.String()),
		zap.String("kind", string(tx.Kind)),
		zap.Int64("sequence", tx.Sequence))

	response := ToTransactionResponse(tx)
	return &response, nil
}

// GetBalance returns the group's projected balance sheet. The committed
// sequence number keys the cache; a miss triggers full replay.
func (s *LedgerService) GetBalance(ctx context.Context, groupID uuid.UUID) (*BalanceResponse, error) {
	g, err := s.groupRepo.FindByID(ctx, groupID)
	if err != nil {
		return nil, err
	}

	maxSeq, err := s.txRepo.MaxSequence(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if sheet, ok, err := s.cache.Get(ctx, groupID, maxSeq); err == nil && ok {
			response := ToBalanceResponse(sheet)
			return &response, nil
		}
	}

	sheet, err := s.project(ctx, g)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.Put(ctx, sheet); err != nil {
			s.logger.Warn("projection cache write failed",
				zap.String("group_id", groupID.String()),
				zap.Error(err))
		}
	}

	response := ToBalanceResponse(sheet)
	return &response, nil
}

// Reconcile replays the group's full log and re-checks the conservation
// identity: the projected group total must equal seed capital plus the
// signed sum of every committed amount. A stored projection whose total
// diverges from the replay is evicted and reported as an error.
func (s *LedgerService) Reconcile(ctx context.Context, groupID uuid.UUID) error {
	g, err := s.groupRepo.FindByID(ctx, groupID)
	if err != nil {
		return err
	}
	txs, err := s.txRepo.ListByGroup(ctx, groupID)
	if err != nil {
		return err
	}
	sheet, err := s.projector.Project(groupID, g.SeedCapital, txs)
	if err != nil {
		return err
	}

	expected := g.SeedCapital
	for i := range txs {
		if txs[i].Kind.IncreasesGroupTotal() {
			expected, err = expected.Add(txs[i].Amount)
		} else {
			expected, err = expected.Subtract(txs[i].Amount)
		}
		if err != nil {
			return err
		}
	}
	if !sheet.GroupTotal.Equals(expected) {
		return shared.ErrInvalidState.WithDetails(
			"group %s total %s violates conservation, expected %s",
			groupID, sheet.GroupTotal.StringFixed(2), expected.StringFixed(2))
	}

	if s.cache != nil {
		cached, ok, err := s.cache.Get(ctx, groupID, sheet.Sequence)
		if err == nil && ok && !cached.GroupTotal.Equals(sheet.GroupTotal) {
			if err := s.cache.Invalidate(ctx, groupID); err != nil {
				s.logger.Warn("projection cache eviction failed",
					zap.String("group_id", groupID.String()),
					zap.Error(err))
			}
			return shared.ErrInvalidState.WithDetails(
				"group %s stored total %s diverges from replayed total %s",
				groupID, cached.GroupTotal.StringFixed(2), sheet.GroupTotal.StringFixed(2))
		}
	}
	return nil
}

// GetTransaction loads a single committed transaction
func (s *LedgerService) GetTransaction(ctx context.Context, groupID, txID uuid.UUID) (*TransactionResponse, error) {
	tx, err := s.txRepo.FindByID(ctx, txID)
	if err != nil {
		return nil, err
	}
	if tx.GroupID != groupID {
		return nil, shared.ErrNotFound.WithDetails("transaction %s not found in group %s", txID, groupID)
	}
	response := ToTransactionResponse(tx)
	return &response, nil
}

// ListTransactions returns a page of the group's ledger, newest first
func (s *LedgerService) ListTransactions(ctx context.Context, groupID uuid.UUID, filter TransactionListFilter) (*shared.Paginated[TransactionResponse], error) {
	if _, err := s.groupRepo.FindByID(ctx, groupID); err != nil {
		return nil, err
	}

	f := shared.DefaultFilter()
	if filter.Page > 0 {
		f.Page = filter.Page
	}
	if filter.PageSize > 0 {
		f.PageSize = filter.PageSize
	}

	txs, total, err := s.txRepo.ListByGroupPaged(ctx, groupID, f)
	if err != nil {
		return nil, err
	}
	items := make([]TransactionResponse, 0, len(txs))
	for i := range txs {
		items = append(items, ToTransactionResponse(&txs[i]))
	}
	page := shared.NewPaginated(items, total, f.Page, f.PageSize)
	return &page, nil
}

func (s *LedgerService) buildIntent(g *group.Group, req RecordTransactionRequest) (ledger.Intent, error) {
	if req.CreatedBy == uuid.Nil {
		return ledger.Intent{}, shared.ErrInvalidInput.WithDetails("created_by is required")
	}

	currency := g.SeedCapital.Currency()
	amount, err := valueobject.NewMoneyFromString(req.Amount, currency)
	if err != nil {
		return ledger.Intent{}, shared.ErrInvalidAmount.WithDetails("amount: %v", err)
	}

	intent := ledger.Intent{
		Kind:          ledger.TransactionKind(req.Kind),
		MemberID:      req.MemberID,
		Amount:        amount,
		LoanReference: req.LoanReference,
		Metadata:      req.Metadata,
		CreatedBy:     req.CreatedBy,
	}

	if intent.Kind.RequiresLoanTerms() {
		rate := decimal.Zero
		if req.MonthlyInterestRate != "" {
			rate, err = decimal.NewFromString(req.MonthlyInterestRate)
			if err != nil {
				return ledger.Intent{}, shared.ErrInvalidInput.WithDetails("monthly interest rate: %v", err)
			}
		}
		terms := ledger.LoanTerms{MonthlyInterestRate: rate}
		if req.DueDate != nil {
			terms.DueDate = *req.DueDate
		}
		intent.LoanTerms = &terms
	}
	return intent, nil
}

// checkMember ensures member-scoped transactions reference an active
// member of the group.
func (s *LedgerService) checkMember(ctx context.Context, groupID uuid.UUID, tx *ledger.Transaction) error {
	if !tx.Kind.RequiresMember() {
		return nil
	}
	m, err := s.memberRepo.FindByID(ctx, *tx.MemberID)
	if err != nil {
		var domainErr *shared.DomainError
		if errors.As(err, &domainErr) && domainErr.Code == shared.ErrNotFound.Code {
			return shared.ErrUnknownMember.WithDetails("member %s is not registered", *tx.MemberID)
		}
		return err
	}
	if !m.BelongsTo(groupID) {
		return shared.ErrUnknownMember.WithDetails("member %s does not belong to group %s", m.ID, groupID)
	}
	if !m.IsActive() {
		return shared.ErrUnknownMember.WithDetails("member %s has exited the group", m.ID)
	}
	return nil
}

// checkFunds projects the current balance and rejects transactions the
// group cannot cover: withdrawals beyond the member's savings and outflows
// beyond the cash in the box.
func (s *LedgerService) checkFunds(ctx context.Context, g *group.Group, tx *ledger.Transaction) error {
	switch tx.Kind {
	case ledger.KindSavingsWithdrawal, ledger.KindLoanDisbursement,
		ledger.KindStipendPayment, ledger.KindMaintenanceExpense:
	default:
		return nil
	}

	sheet, err := s.project(ctx, g)
	if err != nil {
		return err
	}

	if tx.Kind == ledger.KindSavingsWithdrawal {
		balance := sheet.MemberBalance(*tx.MemberID)
		if insufficient, err := balance.LessThan(tx.Amount); err != nil {
			return err
		} else if insufficient {
			return shared.ErrInsufficientBalance.WithDetails(
				"member balance %s is less than withdrawal %s",
				balance.StringFixed(2), tx.Amount.StringFixed(2))
		}
		return nil
	}

	if insufficient, err := sheet.GroupTotal.LessThan(tx.Amount); err != nil {
		return err
	} else if insufficient {
		return shared.ErrInsufficientBalance.WithDetails(
			"group balance %s cannot cover %s of %s",
			sheet.GroupTotal.StringFixed(2), string(tx.Kind), tx.Amount.StringFixed(2))
	}
	return nil
}

func (s *LedgerService) project(ctx context.Context, g *group.Group) (*ledger.BalanceSheet, error) {
	txs, err := s.txRepo.ListByGroup(ctx, g.ID)
	if err != nil {
		return nil, err
	}
	return s.projector.Project(g.ID, g.SeedCapital, txs)
}

// append commits the transaction, retrying sequence collisions. The
// coordinator serializes writers within this process; collisions can still
// come from other instances sharing the database.
func (s *LedgerService) append(ctx context.Context, tx *ledger.Transaction) error {
	var err error
	for attempt := 1; attempt <= s.cfg.MaxAppendRetries; attempt++ {
		err = s.txRepo.Append(ctx, tx)
		if err == nil {
			return nil
		}
		var domainErr *shared.DomainError
		if !errors.As(err, &domainErr) || domainErr.Code != shared.ErrConcurrentModification.Code {
			return err
		}
		if s.metrics != nil {
			s.metrics.RecordAppendConflict(ctx, tx.GroupID)
		}
		s.logger.Warn("sequence collision on append, retrying",
			zap.String("group_id", tx.GroupID.String()),
			zap.Int("attempt", attempt))
	}
	return err
}

func (s *LedgerService) atomically(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.uow == nil {
		return fn(ctx)
	}
	return s.uow.Do(ctx, fn)
}

// loadRepayableLoan resolves the referenced loan and checks it belongs to
// the group and still accepts repayments.
func (s *LedgerService) loadRepayableLoan(ctx context.Context, groupID, loanID uuid.UUID) (*loan.Loan, error) {
	l, err := s.loanRepo.FindByID(ctx, loanID)
	if err != nil {
		return nil, err
	}
	if l.GroupID != groupID {
		return nil, shared.ErrNoSuchLoan.WithDetails("loan %s belongs to another group", loanID)
	}
	if l.State.IsTerminal() {
		return nil, shared.ErrLoanAlreadyClosed.WithDetails("loan %s is %s", loanID, l.State)
	}
	return l, nil
}
