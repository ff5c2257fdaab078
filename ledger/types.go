/*
Package ledger maintains running, signed balances for supplier accounts.

PURPOSE:
  A supplier (counterparty) account is an ordered sequence of transactions.
  Each one moves the balance by a signed delta that depends on its kind.
  The balance stored on a transaction is the authoritative prior balance of
  the next one, so the ledger is auditable by replay.

KEY CONCEPTS IN THIS FILE (types.go):
  - Kind: purchase_invoice, payment, waybill_in, waybill_out
  - Transaction: one ledger row with PriorBalance and computed Balance
  - Entry: the result of applying one transaction (delta, new balance)

SIGN TABLE:
  purchase_invoice  +gross   (we owe more)
  waybill_in        +gross   (goods received)
  payment           -gross   (we paid)
  waybill_out       -gross   (goods returned)

ORDERING:
  Balances are computed chronologically ascending by Date, ties broken by
  Seq (insertion order). Display is Date descending (DisplayOrder).
  Inserting or deleting a historical row requires recomputing every row
  after it, not just the final total: see RecomputeFrom.

SEE ALSO:
  - calculator.go: pure fold functions
  - service.go: SupplierLedger over a Store
  - memory/memory.go: in-memory Store
  - store/sqlite/sqlite.go: SQLite Store
*/
package ledger

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// KIND
// =============================================================================

type Kind string

const (
	KindPurchaseInvoice Kind = "purchase_invoice"
	KindPayment         Kind = "payment"
	KindWaybillIn       Kind = "waybill_in"
	KindWaybillOut      Kind = "waybill_out"
)

// Kinds lists every known kind.
var Kinds = []Kind{KindPurchaseInvoice, KindPayment, KindWaybillIn, KindWaybillOut}

// =============================================================================
// TRANSACTION
// =============================================================================

type Transaction struct {
	ID             string
	SupplierID     string
	Date           time.Time
	Seq            int64 // insertion order, tie-breaker for equal dates
	Kind           Kind
	GrossAmount    decimal.Decimal
	PriorBalance   decimal.Decimal
	Balance        decimal.Decimal
	Description    string
	IdempotencyKey string
	CreatedAt      time.Time
}

// Entry is the outcome of applying one transaction.
type Entry struct {
	Delta      decimal.Decimal
	NewBalance decimal.Decimal
}

// Summary aggregates a ledger by kind.
type Summary struct {
	SupplierID  string
	Purchases   decimal.Decimal
	WaybillsIn  decimal.Decimal
	Payments    decimal.Decimal
	WaybillsOut decimal.Decimal
	Balance     decimal.Decimal
	Count       int
}

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrTransactionNotFound is returned when removing an unknown id.
	ErrTransactionNotFound = errors.New("transaction not found")

	// ErrDuplicateIdempotencyKey is returned when a key was already recorded.
	ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")

	// ErrDuplicateTransactionID is returned when a caller-supplied id is taken.
	ErrDuplicateTransactionID = errors.New("duplicate transaction id")

	// ErrIndexOutOfRange is returned by RecomputeFrom for n > len(txs).
	ErrIndexOutOfRange = errors.New("recompute index out of range")

	// ErrBalanceDrift is the root of BalanceDriftError.
	ErrBalanceDrift = errors.New("stored balance does not match replay")
)

// BalanceDriftError reports the first row whose stored balances disagree
// with a replay from zero.
type BalanceDriftError struct {
	Index         int
	TransactionID string
	Stored        decimal.Decimal
	Expected      decimal.Decimal
}

func (e *BalanceDriftError) Error() string {
	return fmt.Sprintf("balance drift at index %d (tx %s): stored %s, expected %s",
		e.Index, e.TransactionID, e.Stored, e.Expected)
}

func (e *BalanceDriftError) Unwrap() error {
	return ErrBalanceDrift
}
