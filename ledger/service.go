package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/warp/backoffice-engine/core"
)

// =============================================================================
// STORE - persistence contract
// =============================================================================

// Store persists supplier ledgers. Implementations: memory.Store, sqlite.Store.
type Store interface {
	// Load returns a supplier's transactions ordered by Date, then Seq.
	Load(ctx context.Context, supplierID string) ([]Transaction, error)

	// Append persists one transaction at the tail of its supplier's ledger.
	// Returns ErrDuplicateIdempotencyKey if the key already exists.
	Append(ctx context.Context, tx Transaction) error

	// Rewrite atomically replaces a supplier's ledger. Used after a
	// historical insert, delete or recompute.
	Rewrite(ctx context.Context, supplierID string, txs []Transaction) error

	// Exists checks if an idempotency key was already recorded.
	Exists(ctx context.Context, idempotencyKey string) (bool, error)
}

// =============================================================================
// SUPPLIER LEDGER - service over a Store
// =============================================================================

// SupplierLedger records transactions and keeps every stored balance
// consistent with a replay. Writes are serialized.
type SupplierLedger struct {
	store Store
	now   func() time.Time
	mu    sync.Mutex
}

func NewSupplierLedger(store Store) *SupplierLedger {
	return &SupplierLedger{store: store, now: time.Now}
}

// Record validates tx, assigns ID/Seq/CreatedAt when missing, computes its
// balances and persists it. A tail append is a single Append; a backdated
// transaction triggers a Rewrite from its insertion point.
func (l *SupplierLedger) Record(ctx context.Context, tx Transaction) (Transaction, error) {
	if tx.SupplierID == "" {
		return Transaction{}, core.Missing("supplier_id", tx.ID)
	}
	if _, err := Delta(tx.Kind, tx.GrossAmount); err != nil {
		return Transaction{}, withSubject(err, tx.ID)
	}
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = l.now()
	}
	if tx.Date.IsZero() {
		tx.Date = tx.CreatedAt
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if tx.IdempotencyKey != "" {
		exists, err := l.store.Exists(ctx, tx.IdempotencyKey)
		if err != nil {
			return Transaction{}, fmt.Errorf("check idempotency: %w", err)
		}
		if exists {
			return Transaction{}, ErrDuplicateIdempotencyKey
		}
	}

	txs, err := l.store.Load(ctx, tx.SupplierID)
	if err != nil {
		return Transaction{}, fmt.Errorf("load ledger: %w", err)
	}

	// Tail append: nothing after it needs recomputing.
	if len(txs) == 0 || !tx.Date.Before(txs[len(txs)-1].Date) {
		prior := decimal.Zero
		if len(txs) > 0 {
			prior = txs[len(txs)-1].Balance
		}
		entry, err := Apply(prior, tx.Kind, tx.GrossAmount)
		if err != nil {
			return Transaction{}, err
		}
		tx.Seq = nextSeq(txs)
		tx.PriorBalance = prior
		tx.Balance = entry.NewBalance
		if err := l.store.Append(ctx, tx); err != nil {
			return Transaction{}, err
		}
		return tx, nil
	}

	tx.Seq = nextSeq(txs)
	updated, pos, err := Insert(txs, tx)
	if err != nil {
		return Transaction{}, err
	}
	if err := l.store.Rewrite(ctx, tx.SupplierID, updated); err != nil {
		return Transaction{}, fmt.Errorf("rewrite ledger: %w", err)
	}
	return updated[pos], nil
}

// Delete removes a transaction and recomputes every row after it.
func (l *SupplierLedger) Delete(ctx context.Context, supplierID, txID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	txs, err := l.store.Load(ctx, supplierID)
	if err != nil {
		return fmt.Errorf("load ledger: %w", err)
	}
	updated, err := Remove(txs, txID)
	if err != nil {
		return err
	}
	return l.store.Rewrite(ctx, supplierID, updated)
}

// Recompute refolds the ledger from index n and persists the result.
func (l *SupplierLedger) Recompute(ctx context.Context, supplierID string, n int) ([]Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	txs, err := l.store.Load(ctx, supplierID)
	if err != nil {
		return nil, fmt.Errorf("load ledger: %w", err)
	}
	updated, err := RecomputeFrom(txs, n)
	if err != nil {
		return nil, err
	}
	if err := l.store.Rewrite(ctx, supplierID, updated); err != nil {
		return nil, fmt.Errorf("rewrite ledger: %w", err)
	}
	return updated, nil
}

// Transactions returns the ledger in chronological order.
func (l *SupplierLedger) Transactions(ctx context.Context, supplierID string) ([]Transaction, error) {
	return l.store.Load(ctx, supplierID)
}

// Balance returns the stored balance of the latest transaction.
func (l *SupplierLedger) Balance(ctx context.Context, supplierID string) (decimal.Decimal, error) {
	txs, err := l.store.Load(ctx, supplierID)
	if err != nil {
		return decimal.Zero, err
	}
	if len(txs) == 0 {
		return decimal.Zero, nil
	}
	return txs[len(txs)-1].Balance, nil
}

// Verify checks stored balances against a replay.
func (l *SupplierLedger) Verify(ctx context.Context, supplierID string) error {
	txs, err := l.store.Load(ctx, supplierID)
	if err != nil {
		return err
	}
	return Verify(txs)
}

// Summary totals the ledger by kind.
func (l *SupplierLedger) Summary(ctx context.Context, supplierID string) (Summary, error) {
	txs, err := l.store.Load(ctx, supplierID)
	if err != nil {
		return Summary{}, err
	}
	return Summarize(supplierID, txs), nil
}
