package ledger

import (
	"sort"

	"github.com/shopspring/decimal"
	"github.com/warp/backoffice-engine/core"
)

// =============================================================================
// SINGLE TRANSACTION
// =============================================================================

// Delta returns the signed balance change for a transaction.
// An empty or unknown kind is a core.ValidationError.
func Delta(kind Kind, gross decimal.Decimal) (decimal.Decimal, error) {
	switch kind {
	case KindPurchaseInvoice, KindWaybillIn:
		return gross, nil
	case KindPayment, KindWaybillOut:
		return gross.Neg(), nil
	case "":
		return decimal.Zero, core.Missing("kind", "")
	default:
		return decimal.Zero, core.Unknown("kind", "", string(kind))
	}
}

// Apply computes the delta and new balance for one transaction.
func Apply(prior decimal.Decimal, kind Kind, gross decimal.Decimal) (Entry, error) {
	delta, err := Delta(kind, gross)
	if err != nil {
		return Entry{}, err
	}
	return Entry{Delta: delta, NewBalance: prior.Add(delta)}, nil
}

// =============================================================================
// FOLDS
// =============================================================================

// SortChronological returns a copy sorted by Date, then Seq. The sort is
// stable, so rows with equal Date and Seq keep their input order.
func SortChronological(txs []Transaction) []Transaction {
	out := make([]Transaction, len(txs))
	copy(out, txs)
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].Seq < out[j].Seq
	})
	return out
}

// Replay sorts txs chronologically and folds them from initial, filling
// PriorBalance and Balance on every row. The input is not modified.
func Replay(initial decimal.Decimal, txs []Transaction) ([]Transaction, error) {
	out := SortChronological(txs)
	if err := fold(initial, out); err != nil {
		return nil, err
	}
	return out, nil
}

// RecomputeFrom refolds txs[n:] starting from the stored balance of
// txs[n-1] (zero when n == 0). txs must already be chronological.
// Rows before n are copied untouched.
func RecomputeFrom(txs []Transaction, n int) ([]Transaction, error) {
	if n < 0 {
		n = 0
	}
	if n > len(txs) {
		return nil, ErrIndexOutOfRange
	}
	out := make([]Transaction, len(txs))
	copy(out, txs)

	prior := decimal.Zero
	if n > 0 {
		prior = out[n-1].Balance
	}
	if err := fold(prior, out[n:]); err != nil {
		return nil, err
	}
	return out, nil
}

func fold(prior decimal.Decimal, txs []Transaction) error {
	for i := range txs {
		entry, err := Apply(prior, txs[i].Kind, txs[i].GrossAmount)
		if err != nil {
			return withSubject(err, txs[i].ID)
		}
		txs[i].PriorBalance = prior
		txs[i].Balance = entry.NewBalance
		prior = entry.NewBalance
	}
	return nil
}

func withSubject(err error, id string) error {
	if verr, ok := err.(*core.ValidationError); ok && verr.Subject == "" {
		cp := *verr
		cp.Subject = id
		return &cp
	}
	return err
}

// =============================================================================
// HISTORICAL EDITS
// =============================================================================

// Insert places tx after every row dated on or before tx.Date and
// recomputes balances from that position. txs must be chronological.
// tx.Seq is always overwritten with one past the highest Seq in txs, so the
// returned order is the one SortChronological would produce.
func Insert(txs []Transaction, tx Transaction) ([]Transaction, int, error) {
	if _, err := Delta(tx.Kind, tx.GrossAmount); err != nil {
		return nil, 0, withSubject(err, tx.ID)
	}
	tx.Seq = nextSeq(txs)

	pos := sort.Search(len(txs), func(i int) bool {
		return txs[i].Date.After(tx.Date)
	})

	merged := make([]Transaction, 0, len(txs)+1)
	merged = append(merged, txs[:pos]...)
	merged = append(merged, tx)
	merged = append(merged, txs[pos:]...)

	out, err := RecomputeFrom(merged, pos)
	if err != nil {
		return nil, 0, err
	}
	return out, pos, nil
}

// Remove deletes the row with the given id and recomputes the rows after it.
func Remove(txs []Transaction, id string) ([]Transaction, error) {
	idx := -1
	for i, tx := range txs {
		if tx.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, ErrTransactionNotFound
	}

	rest := make([]Transaction, 0, len(txs)-1)
	rest = append(rest, txs[:idx]...)
	rest = append(rest, txs[idx+1:]...)
	return RecomputeFrom(rest, idx)
}

func nextSeq(txs []Transaction) int64 {
	var max int64
	for _, tx := range txs {
		if tx.Seq > max {
			max = tx.Seq
		}
	}
	return max + 1
}

// =============================================================================
// AUDIT
// =============================================================================

// Verify replays txs (assumed chronological) from zero and returns a
// *BalanceDriftError for the first row whose stored prior balance or
// balance disagrees.
func Verify(txs []Transaction) error {
	prior := decimal.Zero
	for i, tx := range txs {
		entry, err := Apply(prior, tx.Kind, tx.GrossAmount)
		if err != nil {
			return withSubject(err, tx.ID)
		}
		if !tx.PriorBalance.Equal(prior) {
			return &BalanceDriftError{Index: i, TransactionID: tx.ID, Stored: tx.PriorBalance, Expected: prior}
		}
		if !tx.Balance.Equal(entry.NewBalance) {
			return &BalanceDriftError{Index: i, TransactionID: tx.ID, Stored: tx.Balance, Expected: entry.NewBalance}
		}
		prior = entry.NewBalance
	}
	return nil
}

// Summarize totals a chronological ledger by kind. Balance is the last
// row's stored balance.
func Summarize(supplierID string, txs []Transaction) Summary {
	s := Summary{
		SupplierID:  supplierID,
		Purchases:   decimal.Zero,
		WaybillsIn:  decimal.Zero,
		Payments:    decimal.Zero,
		WaybillsOut: decimal.Zero,
		Balance:     decimal.Zero,
		Count:       len(txs),
	}
	for _, tx := range txs {
		switch tx.Kind {
		case KindPurchaseInvoice:
			s.Purchases = s.Purchases.Add(tx.GrossAmount)
		case KindWaybillIn:
			s.WaybillsIn = s.WaybillsIn.Add(tx.GrossAmount)
		case KindPayment:
			s.Payments = s.Payments.Add(tx.GrossAmount)
		case KindWaybillOut:
			s.WaybillsOut = s.WaybillsOut.Add(tx.GrossAmount)
		}
	}
	if len(txs) > 0 {
		s.Balance = txs[len(txs)-1].Balance
	}
	return s
}

// DisplayOrder returns a copy ordered newest first.
func DisplayOrder(txs []Transaction) []Transaction {
	out := SortChronological(txs)
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}
