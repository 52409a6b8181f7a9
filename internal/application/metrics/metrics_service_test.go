package metrics

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vsla/backend/internal/domain/governance"
	"github.com/vsla/backend/internal/domain/group"
	"github.com/vsla/backend/internal/domain/ledger"
	"github.com/vsla/backend/internal/domain/loan"
	"github.com/vsla/backend/internal/domain/metrics"
	"github.com/vsla/backend/internal/domain/shared"
	"github.com/vsla/backend/internal/domain/shared/valueobject"
)

// fakeTxRepo serves a fixed log
type fakeTxRepo struct {
	txs []ledger.Transaction
}

func (r *fakeTxRepo) Append(ctx context.Context, tx *ledger.Transaction) error { return nil }

func (r *fakeTxRepo) FindByID(ctx context.Context, id uuid.UUID) (*ledger.Transaction, error) {
	return nil, shared.ErrNotFound
}

func (r *fakeTxRepo) ListByGroup(ctx context.Context, groupID uuid.UUID) ([]ledger.Transaction, error) {
	return r.txs, nil
}

func (r *fakeTxRepo) ListByGroupPaged(ctx context.Context, groupID uuid.UUID, filter shared.Filter) ([]ledger.Transaction, int64, error) {
	return r.txs, int64(len(r.txs)), nil
}

func (r *fakeTxRepo) MaxSequence(ctx context.Context, groupID uuid.UUID) (int64, error) {
	return int64(len(r.txs)), nil
}

// fakeLoanRepo serves a fixed loan book
type fakeLoanRepo struct {
	loans []loan.Loan
}

func (r *fakeLoanRepo) Create(ctx context.Context, l *loan.Loan) error { return nil }
func (r *fakeLoanRepo) Save(ctx context.Context, l *loan.Loan) error   { return nil }

func (r *fakeLoanRepo) FindByID(ctx context.Context, id uuid.UUID) (*loan.Loan, error) {
	return nil, shared.ErrNoSuchLoan
}

func (r *fakeLoanRepo) ListByGroup(ctx context.Context, groupID uuid.UUID) ([]loan.Loan, error) {
	return r.loans, nil
}

func (r *fakeLoanRepo) ListOpen(ctx context.Context) ([]loan.Loan, error) { return nil, nil }

func (r *fakeLoanRepo) DeleteByGroup(ctx context.Context, groupID uuid.UUID) error { return nil }

// fakeAssignmentRepo serves fixed open assignments
type fakeAssignmentRepo struct {
	open []governance.OfficerAssignment
}

func (r *fakeAssignmentRepo) Rotate(ctx context.Context, change *governance.RotationChange) error {
	return nil
}

func (r *fakeAssignmentRepo) FindOpenByGroup(ctx context.Context, groupID uuid.UUID) ([]governance.OfficerAssignment, error) {
	return r.open, nil
}

func (r *fakeAssignmentRepo) History(ctx context.Context, groupID uuid.UUID) ([]governance.OfficerAssignment, error) {
	return r.open, nil
}

// fakeGroupRepo holds one group
type fakeGroupRepo struct {
	mu    sync.Mutex
	group *group.Group
}

func (r *fakeGroupRepo) Create(ctx context.Context, g *group.Group) error { return nil }

func (r *fakeGroupRepo) FindByID(ctx context.Context, id uuid.UUID) (*group.Group, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.group == nil || r.group.ID != id {
		return nil, shared.ErrNotFound.WithDetails("group %s", id)
	}
	clone := *r.group
	return &clone, nil
}

func (r *fakeGroupRepo) FindAll(ctx context.Context, filter shared.Filter) ([]group.Group, int64, error) {
	return nil, 0, nil
}

func (r *fakeGroupRepo) Save(ctx context.Context, g *group.Group) error { return nil }

func repaidLoan(t *testing.T, groupID uuid.UUID, disbursedAt, due, closedAt time.Time) loan.Loan {
	t.Helper()
	memberID := uuid.New()
	amount, _ := valueobject.NewMoneyUGXFromString("10000")
	tx, err := ledger.NewTransaction(groupID, ledger.Intent{
		Kind:     ledger.KindLoanDisbursement,
		MemberID: &memberID,
		Amount:   amount,
		LoanTerms: &ledger.LoanTerms{
			MonthlyInterestRate: decimal.Zero,
			DueDate:             due,
		},
		CreatedBy: uuid.New(),
	})
	require.NoError(t, err)
	tx.CreatedAt = disbursedAt

	l, err := loan.NewLoanFromDisbursement(tx, ledger.LoanTerms{MonthlyInterestRate: decimal.Zero, DueDate: due}, loan.InterestSimple)
	require.NoError(t, err)
	l.ClearDomainEvents()

	repayment, err := ledger.NewTransaction(groupID, ledger.Intent{
		Kind:          ledger.KindLoanRepayment,
		MemberID:      &memberID,
		Amount:        amount,
		LoanReference: &l.ID,
		CreatedBy:     uuid.New(),
	})
	require.NoError(t, err)
	repayment.CreatedAt = closedAt
	require.NoError(t, l.ApplyRepayment(repayment))
	l.ClearDomainEvents()
	return *l
}

func deposit(t *testing.T, groupID uuid.UUID, amount string, at time.Time, seq int64) ledger.Transaction {
	t.Helper()
	memberID := uuid.New()
	money, err := valueobject.NewMoneyUGXFromString(amount)
	require.NoError(t, err)
	tx, err := ledger.NewTransaction(groupID, ledger.Intent{
		Kind:      ledger.KindSavingsDeposit,
		MemberID:  &memberID,
		Amount:    money,
		CreatedBy: uuid.New(),
	})
	require.NoError(t, err)
	tx.CreatedAt = at
	tx.Sequence = seq
	return *tx
}

func openAssignment(t *testing.T, groupID uuid.UUID, role governance.OfficerRole) governance.OfficerAssignment {
	t.Helper()
	a, err := governance.NewOfficerAssignment(groupID, uuid.New(), role)
	require.NoError(t, err)
	return *a
}

func TestReport_HealthyGroupScoresHigh(t *testing.T) {
	g, err := group.NewGroup("Ntinda Stars", nil, valueobject.ZeroUGX())
	require.NoError(t, err)
	g.ClearDomainEvents()
	now := time.Now()

	// One loan repaid on time, growing savings, full roster
	loans := &fakeLoanRepo{loans: []loan.Loan{
		repaidLoan(t, g.ID, now.AddDate(0, -2, 0), now.AddDate(0, 0, -10), now.AddDate(0, 0, -15)),
	}}
	txs := &fakeTxRepo{txs: []ledger.Transaction{
		deposit(t, g.ID, "5000", now.AddDate(0, 0, -45), 1),
		deposit(t, g.ID, "12000", now.AddDate(0, 0, -10), 2),
	}}
	roster := &fakeAssignmentRepo{open: []governance.OfficerAssignment{
		openAssignment(t, g.ID, governance.RoleChair),
		openAssignment(t, g.ID, governance.RoleTreasurer),
		openAssignment(t, g.ID, governance.RoleSecretary),
	}}

	svc := NewMetricsService(txs, loans, roster, &fakeGroupRepo{group: g}, nil, Config{})
	report, err := svc.Report(context.Background(), g.ID)
	require.NoError(t, err)

	assert.Equal(t, 1.0, report.RepaymentRate)
	assert.Equal(t, 0.0, report.DefaultRate)
	assert.Equal(t, 1.0, report.OfficerCompleteness)
	assert.Greater(t, report.SavingsGrowth, 0.5)
	assert.Greater(t, report.HealthScore, 0.9)
}

func TestReport_NoActivityUsesNeutralDefaults(t *testing.T) {
	g, err := group.NewGroup("Fresh Group", nil, valueobject.ZeroUGX())
	require.NoError(t, err)
	g.ClearDomainEvents()

	svc := NewMetricsService(&fakeTxRepo{}, &fakeLoanRepo{}, &fakeAssignmentRepo{}, &fakeGroupRepo{group: g}, nil, Config{})
	report, err := svc.Report(context.Background(), g.ID)
	require.NoError(t, err)

	// No due loans means no evidence of missed repayment
	assert.Equal(t, 1.0, report.RepaymentRate)
	assert.Equal(t, 0.0, report.DefaultRate)
	assert.Equal(t, 0.5, report.SavingsGrowth)
	assert.Equal(t, 0.0, report.OfficerCompleteness)
}

func TestReport_CustomWeights(t *testing.T) {
	g, err := group.NewGroup("Weighted Group", nil, valueobject.ZeroUGX())
	require.NoError(t, err)
	g.ClearDomainEvents()

	svc := NewMetricsService(&fakeTxRepo{}, &fakeLoanRepo{}, &fakeAssignmentRepo{open: []governance.OfficerAssignment{
		openAssignment(t, g.ID, governance.RoleChair),
		openAssignment(t, g.ID, governance.RoleTreasurer),
		openAssignment(t, g.ID, governance.RoleSecretary),
	}}, &fakeGroupRepo{group: g}, nil, Config{
		Weights: metricsWeights(0, 0, 0, 1),
	})

	report, err := svc.Report(context.Background(), g.ID)
	require.NoError(t, err)
	assert.Equal(t, 1.0, report.HealthScore)
}

func metricsWeights(repayment, defaulted, growth, officers float64) metrics.Weights {
	return metrics.Weights{
		Repayment:           repayment,
		Default:             defaulted,
		SavingsGrowth:       growth,
		OfficerCompleteness: officers,
	}
}

func TestReport_UnknownGroup(t *testing.T) {
	svc := NewMetricsService(&fakeTxRepo{}, &fakeLoanRepo{}, &fakeAssignmentRepo{}, &fakeGroupRepo{}, nil, Config{})

	_, err := svc.Report(context.Background(), uuid.New())
	var domainErr *shared.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, shared.ErrNotFound.Code, domainErr.Code)
}
