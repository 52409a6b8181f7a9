package metrics

import (
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vsla/backend/internal/domain/governance"
	"github.com/vsla/backend/internal/domain/ledger"
	"github.com/vsla/backend/internal/domain/loan"
	"github.com/vsla/backend/internal/domain/shared"
)

// Weights are the policy knobs of the health score. They live in
// configuration, not in code. Operations decides them, engineering only
// validates that they sum to one.
type Weights struct {
	Repayment           float64 `mapstructure:"repayment"`
	Default             float64 `mapstructure:"default"`
	SavingsGrowth       float64 `mapstructure:"savings_growth"`
	OfficerCompleteness float64 `mapstructure:"officer_completeness"`
}

// DefaultWeights returns the standard weighting
func DefaultWeights() Weights {
	return Weights{
		Repayment:           0.40,
		Default:             0.25,
		SavingsGrowth:       0.20,
		OfficerCompleteness: 0.15,
	}
}

// Validate checks the weights are non-negative and sum to one
func (w Weights) Validate() error {
	for _, v := range []float64{w.Repayment, w.Default, w.SavingsGrowth, w.OfficerCompleteness} {
		if v < 0 {
			return shared.ErrInvalidInput.WithDetails("health score weights cannot be negative")
		}
	}
	sum := w.Repayment + w.Default + w.SavingsGrowth + w.OfficerCompleteness
	if math.Abs(sum-1.0) > 1e-9 {
		return shared.ErrInvalidInput.WithDetails("health score weights must sum to 1, got %.4f", sum)
	}
	return nil
}

// Report is the derived health picture of one group
type Report struct {
	RepaymentRate       float64 `json:"repayment_rate"`
	DefaultRate         float64 `json:"default_rate"`
	SavingsGrowth       float64 `json:"savings_growth"`
	OfficerCompleteness float64 `json:"officer_completeness"`
	HealthScore         float64 `json:"health_score"`
}

// RepaymentRate is the share of loans repaid in full on or before their
// due date, out of loans that have come due or closed. Loans with nothing
// due yet are excluded; with no qualifying loans the rate is 1.0, since
// there is no evidence of missed repayment.
func RepaymentRate(loans []loan.Loan, asOf time.Time) float64 {
	due := 0
	onTime := 0
	for i := range loans {
		l := &loans[i]
		if !l.DueBy(asOf) && !l.State.IsTerminal() {
			continue
		}
		due++
		if l.RepaidOnTime() {
			onTime++
		}
	}
	if due == 0 {
		return 1.0
	}
	return float64(onTime) / float64(due)
}

// DefaultRate is the share of defaulted loans among closed loans.
// No closed loans means no defaults observed, rate 0.
func DefaultRate(loans []loan.Loan) float64 {
	closed := 0
	defaulted := 0
	for i := range loans {
		switch loans[i].State {
		case loan.StateRepaid:
			closed++
		case loan.StateDefaulted:
			closed++
			defaulted++
		}
	}
	if closed == 0 {
		return 0
	}
	return float64(defaulted) / float64(closed)
}

// SavingsGrowth compares net savings (deposits minus withdrawals) in the
// trailing window against the window before it, normalized to [0,1].
// Flat savings score 0.5, doubling scores 1.0, collapse scores 0. Both
// windows fold directly over the transaction log; no snapshot history is
// kept.
func SavingsGrowth(txs []ledger.Transaction, asOf time.Time, windowDays int) float64 {
	if windowDays <= 0 {
		windowDays = 30
	}
	windowStart := asOf.AddDate(0, 0, -windowDays)
	previousStart := windowStart.AddDate(0, 0, -windowDays)

	current := decimal.Zero
	previous := decimal.Zero
	for i := range txs {
		tx := &txs[i]
		var delta decimal.Decimal
		switch tx.Kind {
		case ledger.KindSavingsDeposit:
			delta = tx.Amount.Amount()
		case ledger.KindSavingsWithdrawal:
			delta = tx.Amount.Amount().Neg()
		default:
			continue
		}
		switch {
		case tx.CreatedAt.After(windowStart) && !tx.CreatedAt.After(asOf):
			current = current.Add(delta)
		case tx.CreatedAt.After(previousStart) && !tx.CreatedAt.After(windowStart):
			previous = previous.Add(delta)
		}
	}

	if !previous.IsPositive() {
		switch {
		case current.IsPositive():
			return 1.0
		case current.IsNegative():
			return 0.0
		default:
			return 0.5
		}
	}

	ratio, _ := current.Div(previous).Float64()
	score := 0.5 + (ratio-1.0)/2.0
	return clamp01(score)
}

// OfficerCompleteness is the share of governance roles currently filled
func OfficerCompleteness(roster map[governance.OfficerRole]uuid.UUID) float64 {
	filled := 0
	for _, role := range governance.AllRoles {
		if _, ok := roster[role]; ok {
			filled++
		}
	}
	return float64(filled) / float64(len(governance.AllRoles))
}

// HealthScore combines the four indicators with the configured weights.
// The default rate is inverted: fewer defaults score higher.
func HealthScore(r Report, w Weights) float64 {
	score := w.Repayment*r.RepaymentRate +
		w.Default*(1.0-r.DefaultRate) +
		w.SavingsGrowth*r.SavingsGrowth +
		w.OfficerCompleteness*r.OfficerCompleteness
	return clamp01(score)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
