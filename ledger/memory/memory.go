// Package memory provides an in-memory ledger.Store for tests and dev.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/backoffice-engine/ledger"
)

type Store struct {
	mu          sync.RWMutex
	ledgers     map[string][]ledger.Transaction
	idempotency map[string]string // key -> supplier id
}

func New() *Store {
	return &Store{
		ledgers:     make(map[string][]ledger.Transaction),
		idempotency: make(map[string]string),
	}
}

// Append inserts tx at its chronological position.
func (s *Store) Append(_ context.Context, tx ledger.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if tx.IdempotencyKey != "" {
		if _, ok := s.idempotency[tx.IdempotencyKey]; ok {
			return ledger.ErrDuplicateIdempotencyKey
		}
	}
	if s.owner(tx.ID) != "" {
		return ledger.ErrDuplicateTransactionID
	}

	txs := s.ledgers[tx.SupplierID]
	i := sort.Search(len(txs), func(i int) bool {
		if txs[i].Date.Equal(tx.Date) {
			return txs[i].Seq > tx.Seq
		}
		return txs[i].Date.After(tx.Date)
	})
	txs = append(txs, ledger.Transaction{})
	copy(txs[i+1:], txs[i:])
	txs[i] = tx
	s.ledgers[tx.SupplierID] = txs

	if tx.IdempotencyKey != "" {
		s.idempotency[tx.IdempotencyKey] = tx.SupplierID
	}
	return nil
}

// Rewrite replaces a supplier's ledger. Idempotency keys of removed rows
// are released.
func (s *Store) Rewrite(_ context.Context, supplierID string, txs []ledger.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make(map[string]bool, len(txs))
	for _, tx := range txs {
		if owner := s.owner(tx.ID); (owner != "" && owner != supplierID) || ids[tx.ID] {
			return ledger.ErrDuplicateTransactionID
		}
		ids[tx.ID] = true
	}

	seen := make(map[string]bool, len(txs))
	for _, tx := range txs {
		if tx.IdempotencyKey == "" {
			continue
		}
		if owner, ok := s.idempotency[tx.IdempotencyKey]; (ok && owner != supplierID) || seen[tx.IdempotencyKey] {
			return ledger.ErrDuplicateIdempotencyKey
		}
		seen[tx.IdempotencyKey] = true
	}

	for _, old := range s.ledgers[supplierID] {
		if old.IdempotencyKey != "" {
			delete(s.idempotency, old.IdempotencyKey)
		}
	}
	for k := range seen {
		s.idempotency[k] = supplierID
	}
	s.ledgers[supplierID] = ledger.SortChronological(txs)
	return nil
}

func (s *Store) Load(_ context.Context, supplierID string) ([]ledger.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]ledger.Transaction, len(s.ledgers[supplierID]))
	copy(result, s.ledgers[supplierID])
	return result, nil
}

func (s *Store) Exists(_ context.Context, idempotencyKey string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.idempotency[idempotencyKey]
	return ok, nil
}

// owner returns the supplier holding a row with this id, or "".
func (s *Store) owner(id string) string {
	for supplierID, txs := range s.ledgers {
		for _, tx := range txs {
			if tx.ID == id {
				return supplierID
			}
		}
	}
	return ""
}
