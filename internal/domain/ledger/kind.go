package ledger

// TransactionKind is the closed set of ledger entry types. Each kind fixes
// which fields an intent must carry, so validation happens at the boundary
// instead of ad hoc downstream.
type TransactionKind string

const (
	KindSavingsDeposit     TransactionKind = "savings_deposit"
	KindSavingsWithdrawal  TransactionKind = "savings_withdrawal"
	KindLoanDisbursement   TransactionKind = "loan_disbursement"
	KindLoanRepayment      TransactionKind = "loan_repayment"
	KindStipendPayment     TransactionKind = "stipend_payment"
	KindMaintenanceExpense TransactionKind = "maintenance_expense"
)

// AllKinds lists every valid transaction kind
var AllKinds = []TransactionKind{
	KindSavingsDeposit,
	KindSavingsWithdrawal,
	KindLoanDisbursement,
	KindLoanRepayment,
	KindStipendPayment,
	KindMaintenanceExpense,
}

// IsValid checks if the kind is a known value
func (k TransactionKind) IsValid() bool {
	switch k {
	case KindSavingsDeposit, KindSavingsWithdrawal, KindLoanDisbursement,
		KindLoanRepayment, KindStipendPayment, KindMaintenanceExpense:
		return true
	}
	return false
}

// RequiresMember reports whether the kind must reference a group member.
// Maintenance expenses are group-level and carry no member.
func (k TransactionKind) RequiresMember() bool {
	return k != KindMaintenanceExpense
}

// RequiresLoanReference reports whether the kind must reference a loan
func (k TransactionKind) RequiresLoanReference() bool {
	return k == KindLoanRepayment
}

// RequiresLoanTerms reports whether the kind must carry due date and
// interest rate
func (k TransactionKind) RequiresLoanTerms() bool {
	return k == KindLoanDisbursement
}

// IncreasesGroupTotal reports the sign of the kind's effect on the group
// total: seed + deposits - withdrawals - disbursements + repayments -
// expenses - stipends.
func (k TransactionKind) IncreasesGroupTotal() bool {
	return k == KindSavingsDeposit || k == KindLoanRepayment
}
