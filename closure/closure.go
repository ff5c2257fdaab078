/*
Package closure reconciles a physical cash-drawer count against expected
system takings.

PURPOSE:
  At end of day the cashier counts the drawer by denomination and keys in
  cash and card totals. The system knows what it expected. A closure
  surfaces both sides and the variance between them, plus any expenses
  paid out of the drawer.

FORMULAS:
  countedCash      = Σ count × face
  countDiscrepancy = cashEntered − countedCash   (informational)
  difference       = (cashEntered + ccEntered) − (cashSystem + ccSystem)
  totalExpenses    = Σ expense.amount

  Expenses are reported next to difference, never netted into it.
  difference < 0 means the drawer is short.

SEE ALSO:
  - service.go: persisted closures
  - store/sqlite/sqlite.go: cash_closures table
*/
package closure

import (
	"github.com/shopspring/decimal"
	"github.com/warp/backoffice-engine/money"
)

// =============================================================================
// INPUT
// =============================================================================

type DenominationCount struct {
	Face  decimal.Decimal
	Count int
}

type Expense struct {
	Amount      decimal.Decimal
	Description string
}

// Input is everything entered on a cash-count form. Nil slices are empty.
type Input struct {
	Counts         []DenominationCount
	OpeningBalance decimal.Decimal
	CashSystem     decimal.Decimal
	CCSystem       decimal.Decimal
	CashEntered    decimal.Decimal
	CCEntered      decimal.Decimal
	Expenses       []Expense
}

// DefaultDenominations are the Turkish lira notes and coins offered on the
// count form, largest first.
var DefaultDenominations = []decimal.Decimal{
	decimal.NewFromInt(200),
	decimal.NewFromInt(100),
	decimal.NewFromInt(50),
	decimal.NewFromInt(20),
	decimal.NewFromInt(10),
	decimal.NewFromInt(5),
	decimal.NewFromInt(1),
	decimal.RequireFromString("0.50"),
	decimal.RequireFromString("0.25"),
	decimal.RequireFromString("0.10"),
	decimal.RequireFromString("0.05"),
}

// =============================================================================
// SUMMARY
// =============================================================================

type Status string

const (
	StatusShort    Status = "short"
	StatusBalanced Status = "balanced"
	StatusOver     Status = "over"
)

type Summary struct {
	CountedCash          decimal.Decimal
	CountDiscrepancy     decimal.Decimal
	EnteredTotal         decimal.Decimal
	SystemTotal          decimal.Decimal
	Difference           decimal.Decimal
	Status               Status
	TotalExpenses        decimal.Decimal
	NetCashAfterExpenses decimal.Decimal
	ExpectedDrawer       decimal.Decimal
}

// Reconcile computes the closure summary. It never fails.
func Reconcile(in Input) Summary {
	counted := decimal.Zero
	for _, c := range in.Counts {
		counted = counted.Add(c.Face.Mul(decimal.NewFromInt(int64(c.Count))))
	}

	expenses := decimal.Zero
	for _, e := range in.Expenses {
		expenses = expenses.Add(e.Amount)
	}

	entered := money.Sum(in.CashEntered, in.CCEntered)
	system := money.Sum(in.CashSystem, in.CCSystem)
	diff := entered.Sub(system)

	return Summary{
		CountedCash:          counted,
		CountDiscrepancy:     money.Sum(in.CashEntered).Sub(counted),
		EnteredTotal:         entered,
		SystemTotal:          system,
		Difference:           diff,
		Status:               StatusOf(diff),
		TotalExpenses:        expenses,
		NetCashAfterExpenses: money.Sum(in.CashEntered).Sub(expenses),
		ExpectedDrawer:       money.Sum(in.OpeningBalance, in.CashSystem).Sub(expenses),
	}
}

// StatusOf classifies a difference.
func StatusOf(diff decimal.Decimal) Status {
	switch diff.Sign() {
	case -1:
		return StatusShort
	case 1:
		return StatusOver
	default:
		return StatusBalanced
	}
}

// AddExpense returns a copy of in with e appended and its new summary.
// The input's expense slice is not shared with the result.
func AddExpense(in Input, e Expense) (Input, Summary) {
	out := in
	out.Expenses = make([]Expense, 0, len(in.Expenses)+1)
	out.Expenses = append(out.Expenses, in.Expenses...)
	out.Expenses = append(out.Expenses, e)
	return out, Reconcile(out)
}
