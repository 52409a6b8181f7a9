package ledger

import (
	"time"

	"github.com/google/uuid"

	"github.com/vsla/backend/internal/domain/shared"
	"github.com/vsla/backend/internal/domain/shared/valueobject"
)

// RepaymentSourcePolicy fixes where loan repayment cash comes from.
// Under "external" the member brings cash from outside the box and their
// savings are untouched. Under "savings" the repayment is debited from the
// member's savings balance.
type RepaymentSourcePolicy string

const (
	RepaymentSourceExternal RepaymentSourcePolicy = "external"
	RepaymentSourceSavings  RepaymentSourcePolicy = "savings"
)

// IsValid checks if the policy is a known value
func (p RepaymentSourcePolicy) IsValid() bool {
	return p == RepaymentSourceExternal || p == RepaymentSourceSavings
}

// BalanceSheet is the projected state of a group ledger at a sequence point
type BalanceSheet struct {
	GroupID     uuid.UUID                       `json:"group_id"`
	PerMember   map[uuid.UUID]valueobject.Money `json:"per_member"`
	GroupTotal  valueobject.Money               `json:"group_total"`
	Sequence    int64                           `json:"sequence"`
	ProjectedAt time.Time                       `json:"projected_at"`
}

// MemberBalance returns the projected balance for a member, zero if the
// member has no ledger activity
func (b *BalanceSheet) MemberBalance(memberID uuid.UUID) valueobject.Money {
	if bal, ok := b.PerMember[memberID]; ok {
		return bal
	}
	return valueobject.Zero(b.GroupTotal.Currency())
}

// Projector folds a transaction log into balances. The fold is pure and
// deterministic: replaying the same log from the same seed always yields
// the same sheet, which makes the sequence number a valid cache key and
// full replay a valid recovery path.
type Projector struct {
	repaymentSource RepaymentSourcePolicy
}

// NewProjector creates a projector with the given repayment source policy
func NewProjector(policy RepaymentSourcePolicy) *Projector {
	if !policy.IsValid() {
		policy = RepaymentSourceExternal
	}
	return &Projector{repaymentSource: policy}
}

// Project folds transactions in sequence order starting from the seed
// capital. Transactions must be sorted by sequence ascending; a gap or
// inversion means the caller read a corrupt log.
func (p *Projector) Project(groupID uuid.UUID, seedCapital valueobject.Money, txs []Transaction) (*BalanceSheet, error) {
	currency := seedCapital.Currency()
	sheet := &BalanceSheet{
		GroupID:     groupID,
		PerMember:   make(map[uuid.UUID]valueobject.Money),
		GroupTotal:  seedCapital,
		ProjectedAt: time.Now(),
	}

	lastSeq := int64(0)
	for i := range txs {
		tx := &txs[i]
		if tx.GroupID != groupID {
			return nil, shared.ErrInvalidInput.WithDetails("transaction %s belongs to another group", tx.ID)
		}
		if tx.Sequence <= lastSeq {
			return nil, shared.ErrInvalidState.WithDetails("transaction log out of order at sequence %d", tx.Sequence)
		}
		lastSeq = tx.Sequence

		if err := p.apply(sheet, tx, currency); err != nil {
			return nil, err
		}
		sheet.Sequence = tx.Sequence
	}

	return sheet, nil
}

func (p *Projector) apply(sheet *BalanceSheet, tx *Transaction, currency valueobject.Currency) error {
	var err error

	switch tx.Kind {
	case KindSavingsDeposit:
		sheet.GroupTotal, err = sheet.GroupTotal.Add(tx.Amount)
		if err != nil {
			return err
		}
		return p.adjustMember(sheet, tx, tx.Amount, currency)

	case KindSavingsWithdrawal:
		sheet.GroupTotal, err = sheet.GroupTotal.Subtract(tx.Amount)
		if err != nil {
			return err
		}
		return p.adjustMember(sheet, tx, tx.Amount.Negate(), currency)

	case KindLoanDisbursement:
		// Cash leaves the box; the member's savings are untouched.
		sheet.GroupTotal, err = sheet.GroupTotal.Subtract(tx.Amount)
		return err

	case KindLoanRepayment:
		sheet.GroupTotal, err = sheet.GroupTotal.Add(tx.Amount)
		if err != nil {
			return err
		}
		if p.repaymentSource == RepaymentSourceSavings {
			return p.adjustMember(sheet, tx, tx.Amount.Negate(), currency)
		}
		return nil

	case KindStipendPayment, KindMaintenanceExpense:
		sheet.GroupTotal, err = sheet.GroupTotal.Subtract(tx.Amount)
		return err

	default:
		return shared.ErrInvalidInput.WithDetails("unknown transaction kind %q", tx.Kind)
	}
}

func (p *Projector) adjustMember(sheet *BalanceSheet, tx *Transaction, delta valueobject.Money, currency valueobject.Currency) error {
	if tx.MemberID == nil {
		return shared.ErrInvalidState.WithDetails("%s transaction %s has no member", tx.Kind, tx.ID)
	}
	current, ok := sheet.PerMember[*tx.MemberID]
	if !ok {
		current = valueobject.Zero(currency)
	}
	next, err := current.Add(delta)
	if err != nil {
		return err
	}
	sheet.PerMember[*tx.MemberID] = next
	return nil
}
