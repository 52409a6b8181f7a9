package ledger

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vsla/backend/internal/domain/shared/valueobject"
)

func sequencedTx(t *testing.T, groupID uuid.UUID, seq int64, kind TransactionKind, memberID *uuid.UUID, amount string, loanRef *uuid.UUID) Transaction {
	t.Helper()
	intent := Intent{Kind: kind, MemberID: memberID, Amount: ugx(amount), LoanReference: loanRef}
	if kind == KindLoanDisbursement {
		intent.LoanTerms = &LoanTerms{DueDate: time.Now().Add(30 * 24 * time.Hour)}
	}
	tx, err := NewTransaction(groupID, intent)
	require.NoError(t, err)
	return *tx.WithSequence(seq)
}

func TestProjectorConservation(t *testing.T) {
	groupID := uuid.New()
	alice := uuid.New()
	bob := uuid.New()
	loanRef := uuid.New()
	seed := ugx("300000")

	log := []Transaction{
		sequencedTx(t, groupID, 1, KindSavingsDeposit, &alice, "10000", nil),
		sequencedTx(t, groupID, 2, KindSavingsDeposit, &bob, "20000", nil),
		sequencedTx(t, groupID, 3, KindLoanDisbursement, &alice, "50000", nil),
		sequencedTx(t, groupID, 4, KindSavingsWithdrawal, &bob, "5000", nil),
		sequencedTx(t, groupID, 5, KindLoanRepayment, &alice, "52000", &loanRef),
		sequencedTx(t, groupID, 6, KindMaintenanceExpense, nil, "2000", nil),
		sequencedTx(t, groupID, 7, KindStipendPayment, &bob, "1000", nil),
	}

	projector := NewProjector(RepaymentSourceExternal)

	// The conservation identity must hold for every prefix of the log.
	for prefix := 0; prefix <= len(log); prefix++ {
		sheet, err := projector.Project(groupID, seed, log[:prefix])
		require.NoError(t, err, "prefix %d", prefix)

		expected := seed
		for _, tx := range log[:prefix] {
			if tx.Kind.IncreasesGroupTotal() {
				expected = expected.MustAdd(tx.Amount)
			} else {
				expected = expected.MustSubtract(tx.Amount)
			}
		}
		assert.True(t, sheet.GroupTotal.Equals(expected), "prefix %d: got %s want %s", prefix, sheet.GroupTotal, expected)
	}

	sheet, err := projector.Project(groupID, seed, log)
	require.NoError(t, err)

	// 300000 + 10000 + 20000 - 50000 - 5000 + 52000 - 2000 - 1000
	assert.Equal(t, "324000.00", sheet.GroupTotal.StringFixed(2))
	assert.Equal(t, "10000.00", sheet.MemberBalance(alice).StringFixed(2))
	assert.Equal(t, "15000.00", sheet.MemberBalance(bob).StringFixed(2))
	assert.Equal(t, int64(7), sheet.Sequence)
}

func TestProjectorIdempotentReplay(t *testing.T) {
	groupID := uuid.New()
	member := uuid.New()
	seed := ugx("100000")

	log := []Transaction{
		sequencedTx(t, groupID, 1, KindSavingsDeposit, &member, "7000", nil),
		sequencedTx(t, groupID, 2, KindSavingsWithdrawal, &member, "2500", nil),
		sequencedTx(t, groupID, 3, KindSavingsDeposit, &member, "100.25", nil),
	}

	projector := NewProjector(RepaymentSourceExternal)

	first, err := projector.Project(groupID, seed, log)
	require.NoError(t, err)
	second, err := projector.Project(groupID, seed, log)
	require.NoError(t, err)

	assert.True(t, first.GroupTotal.Equals(second.GroupTotal))
	assert.Equal(t, len(first.PerMember), len(second.PerMember))
	for id, bal := range first.PerMember {
		assert.True(t, bal.Equals(second.PerMember[id]))
	}
}

func TestProjectorRepaymentSourcePolicy(t *testing.T) {
	groupID := uuid.New()
	member := uuid.New()
	loanRef := uuid.New()
	seed := ugx("300000")

	log := []Transaction{
		sequencedTx(t, groupID, 1, KindSavingsDeposit, &member, "60000", nil),
		sequencedTx(t, groupID, 2, KindLoanDisbursement, &member, "50000", nil),
		sequencedTx(t, groupID, 3, KindLoanRepayment, &member, "52000", &loanRef),
	}

	t.Run("external source leaves savings untouched", func(t *testing.T) {
		sheet, err := NewProjector(RepaymentSourceExternal).Project(groupID, seed, log)
		require.NoError(t, err)
		assert.Equal(t, "60000.00", sheet.MemberBalance(member).StringFixed(2))
		assert.Equal(t, "362000.00", sheet.GroupTotal.StringFixed(2))
	})

	t.Run("savings source debits the member", func(t *testing.T) {
		sheet, err := NewProjector(RepaymentSourceSavings).Project(groupID, seed, log)
		require.NoError(t, err)
		assert.Equal(t, "8000.00", sheet.MemberBalance(member).StringFixed(2))
		assert.Equal(t, "362000.00", sheet.GroupTotal.StringFixed(2))
	})
}

func TestProjectorRejectsCorruptLog(t *testing.T) {
	groupID := uuid.New()
	member := uuid.New()
	seed := ugx("1000")
	projector := NewProjector(RepaymentSourceExternal)

	t.Run("out of order sequences", func(t *testing.T) {
		log := []Transaction{
			sequencedTx(t, groupID, 2, KindSavingsDeposit, &member, "100", nil),
			sequencedTx(t, groupID, 1, KindSavingsDeposit, &member, "100", nil),
		}
		_, err := projector.Project(groupID, seed, log)
		assert.Error(t, err)
	})

	t.Run("duplicate sequences", func(t *testing.T) {
		log := []Transaction{
			sequencedTx(t, groupID, 1, KindSavingsDeposit, &member, "100", nil),
			sequencedTx(t, groupID, 1, KindSavingsDeposit, &member, "100", nil),
		}
		_, err := projector.Project(groupID, seed, log)
		assert.Error(t, err)
	})

	t.Run("foreign group transaction", func(t *testing.T) {
		log := []Transaction{
			sequencedTx(t, uuid.New(), 1, KindSavingsDeposit, &member, "100", nil),
		}
		_, err := projector.Project(groupID, seed, log)
		assert.Error(t, err)
	})
}

func TestProjectorEmptyLog(t *testing.T) {
	groupID := uuid.New()
	seed := ugx("300000")

	sheet, err := NewProjector(RepaymentSourceExternal).Project(groupID, seed, nil)
	require.NoError(t, err)
	assert.True(t, sheet.GroupTotal.Equals(seed))
	assert.Empty(t, sheet.PerMember)
	assert.Equal(t, int64(0), sheet.Sequence)
	assert.True(t, sheet.MemberBalance(uuid.New()).IsZero())
}

func TestBalanceSheetMemberBalanceCurrency(t *testing.T) {
	sheet := &BalanceSheet{
		PerMember:  map[uuid.UUID]valueobject.Money{},
		GroupTotal: ugx("500"),
	}
	assert.Equal(t, valueobject.UGX, sheet.MemberBalance(uuid.New()).Currency())
}
