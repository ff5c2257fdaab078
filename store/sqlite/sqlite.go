/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Persists everything the back office keeps between requests: supplier
  ledgers, happy-hour rule definitions and cash closures. The engine
  packages stay pure; this package is the only one that does I/O.

INTERFACES IMPLEMENTED:
  ledger.Store:   supplier transaction persistence
  closure.Store:  cash closure persistence
  api.RuleStore:  happy-hour rules (JSON documents, see factory.RuleJSON)

KEY TABLES:
  supplier_transactions: one row per ledger transaction, with stored
                         prior_balance and balance
  happy_hour_rules:      rule JSON in evaluation order (position)
  cash_closures:         closure input and computed summary as JSON

MONEY:
  Amounts are stored as decimal strings, never REAL, so a replay
  reproduces stored balances exactly.

DATES:
  Stored in UTC with a fixed-width layout so text ordering is
  chronological. Ledger rows order by (tx_date, seq).

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. SQLite is opened in WAL mode.

USAGE:
  store, err := sqlite.New("./data/backoffice.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  suppliers := ledger.NewSupplierLedger(store)
  closures := closure.NewService(store)

SEE ALSO:
  - ledger/service.go: ledger.Store contract
  - ledger/memory/memory.go: in-memory ledger.Store
  - closure/service.go: closure.Store contract
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/backoffice-engine/closure"
	"github.com/warp/backoffice-engine/factory"
	"github.com/warp/backoffice-engine/ledger"
	"github.com/warp/backoffice-engine/pricing"
)

// timeLayout is fixed width so that lexical order equals time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Store implements all storage interfaces using SQLite.
type Store struct {
	db    *sql.DB
	mu    sync.RWMutex
	rules *factory.RuleFactory
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Every connection to ":memory:" is a separate database.
	db.SetMaxOpenConns(1)

	store := &Store{db: db, rules: factory.NewRuleFactory()}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Supplier ledger
	CREATE TABLE IF NOT EXISTS supplier_transactions (
		id TEXT PRIMARY KEY,
		supplier_id TEXT NOT NULL,
		tx_date TEXT NOT NULL,
		seq INTEGER NOT NULL,
		kind TEXT NOT NULL,
		gross_amount TEXT NOT NULL,
		prior_balance TEXT NOT NULL,
		balance TEXT NOT NULL,
		description TEXT,
		idempotency_key TEXT UNIQUE,
		created_at TEXT NOT NULL
	);

	-- Balance replay (hot path)
	CREATE INDEX IF NOT EXISTS idx_supplier_transactions_supplier_date
		ON supplier_transactions(supplier_id, tx_date, seq);

	-- Happy-hour rules, evaluated in position order
	CREATE TABLE IF NOT EXISTS happy_hour_rules (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		position INTEGER NOT NULL,
		config_json TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_happy_hour_rules_position
		ON happy_hour_rules(position);

	-- Cash closures
	CREATE TABLE IF NOT EXISTS cash_closures (
		id TEXT PRIMARY KEY,
		business_date TEXT NOT NULL,
		note TEXT,
		input_json TEXT NOT NULL,
		summary_json TEXT NOT NULL,
		difference TEXT NOT NULL,
		status TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_cash_closures_business_date
		ON cash_closures(business_date);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// LEDGER STORE (ledger.Store interface)
// =============================================================================

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Append adds a transaction to a supplier ledger.
func (s *Store) Append(ctx context.Context, tx ledger.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.insertTx(ctx, s.db, tx)
}

func (s *Store) insertTx(ctx context.Context, db execer, tx ledger.Transaction) error {
	query := `
		INSERT INTO supplier_transactions
		(id, supplier_id, tx_date, seq, kind, gross_amount, prior_balance, balance,
		 description, idempotency_key, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	createdAt := tx.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := db.ExecContext(ctx, query,
		tx.ID,
		tx.SupplierID,
		formatTime(tx.Date),
		tx.Seq,
		string(tx.Kind),
		tx.GrossAmount.String(),
		tx.PriorBalance.String(),
		tx.Balance.String(),
		nullString(tx.Description),
		nullString(tx.IdempotencyKey),
		formatTime(createdAt),
	)
	if err != nil {
		switch {
		case isConstraintError(err, sqlite3.ErrConstraintPrimaryKey):
			return fmt.Errorf("%w: %s", ledger.ErrDuplicateTransactionID, tx.ID)
		case isConstraintError(err, sqlite3.ErrConstraintUnique):
			return ledger.ErrDuplicateIdempotencyKey
		}
		return fmt.Errorf("failed to append transaction: %w", err)
	}
	return nil
}

// Rewrite replaces a supplier's ledger inside one database transaction.
func (s *Store) Rewrite(ctx context.Context, supplierID string, txs []ledger.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.withTx(ctx, func(sqlTx *sql.Tx) error {
		if _, err := sqlTx.ExecContext(ctx,
			"DELETE FROM supplier_transactions WHERE supplier_id = ?", supplierID,
		); err != nil {
			return fmt.Errorf("failed to clear ledger: %w", err)
		}
		for _, tx := range txs {
			tx.SupplierID = supplierID
			if err := s.insertTx(ctx, sqlTx, tx); err != nil {
				return err
			}
		}
		return nil
	})
}

// Load returns a supplier's transactions in chronological order.
func (s *Store) Load(ctx context.Context, supplierID string) ([]ledger.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, supplier_id, tx_date, seq, kind, gross_amount, prior_balance, balance,
		       description, idempotency_key, created_at
		FROM supplier_transactions
		WHERE supplier_id = ?
		ORDER BY tx_date ASC, seq ASC
	`

	rows, err := s.db.QueryContext(ctx, query, supplierID)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	txs := []ledger.Transaction{}
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}

// Exists checks if an idempotency key exists.
func (s *Store) Exists(ctx context.Context, idempotencyKey string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM supplier_transactions WHERE idempotency_key = ?",
		idempotencyKey,
	).Scan(&count)

	return count > 0, err
}

// Suppliers lists every supplier id with at least one transaction.
func (s *Store) Suppliers(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT DISTINCT supplier_id FROM supplier_transactions ORDER BY supplier_id",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func scanTransaction(rows *sql.Rows) (ledger.Transaction, error) {
	var (
		tx             ledger.Transaction
		txDate         string
		kind           string
		gross          string
		prior          string
		balance        string
		description    sql.NullString
		idempotencyKey sql.NullString
		createdAt      string
	)

	err := rows.Scan(
		&tx.ID, &tx.SupplierID, &txDate, &tx.Seq, &kind,
		&gross, &prior, &balance, &description, &idempotencyKey, &createdAt,
	)
	if err != nil {
		return tx, fmt.Errorf("failed to scan transaction: %w", err)
	}

	tx.Kind = ledger.Kind(kind)
	tx.Date = parseTime(txDate)
	tx.CreatedAt = parseTime(createdAt)
	tx.Description = description.String
	tx.IdempotencyKey = idempotencyKey.String
	if tx.GrossAmount, err = decimal.NewFromString(gross); err != nil {
		return tx, fmt.Errorf("transaction %s: bad gross_amount %q: %w", tx.ID, gross, err)
	}
	if tx.PriorBalance, err = decimal.NewFromString(prior); err != nil {
		return tx, fmt.Errorf("transaction %s: bad prior_balance %q: %w", tx.ID, prior, err)
	}
	if tx.Balance, err = decimal.NewFromString(balance); err != nil {
		return tx, fmt.Errorf("transaction %s: bad balance %q: %w", tx.ID, balance, err)
	}
	return tx, nil
}

// =============================================================================
// HAPPY-HOUR RULE STORE
// =============================================================================

// SaveRule inserts or updates a rule. New rules are appended after the
// existing ones; updates keep their position.
func (s *Store) SaveRule(ctx context.Context, rule pricing.Rule) error {
	configJSON, err := json.Marshal(s.rules.ToJSON(rule))
	if err != nil {
		return fmt.Errorf("failed to encode rule: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO happy_hour_rules (id, name, position, config_json, created_at, updated_at)
		VALUES (?, ?, (SELECT COALESCE(MAX(position), 0) + 1 FROM happy_hour_rules), ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			config_json = excluded.config_json,
			updated_at = excluded.updated_at
	`

	now := formatTime(time.Now())
	_, err = s.db.ExecContext(ctx, query, rule.ID, rule.Name, string(configJSON), now, now)
	return err
}

// ListRules returns every stored rule in evaluation order.
func (s *Store) ListRules(ctx context.Context) ([]pricing.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, config_json FROM happy_hour_rules ORDER BY position ASC",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	rules := []pricing.Rule{}
	for rows.Next() {
		var id, configJSON string
		if err := rows.Scan(&id, &configJSON); err != nil {
			return nil, err
		}
		rule, err := s.rules.ParseRule(configJSON)
		if err != nil {
			return nil, fmt.Errorf("stored rule %s: %w", id, err)
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

// DeleteRule removes a rule. Unknown ids are not an error.
func (s *Store) DeleteRule(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, "DELETE FROM happy_hour_rules WHERE id = ?", id)
	return err
}

// =============================================================================
// CLOSURE STORE (closure.Store interface)
// =============================================================================

func (s *Store) CreateClosure(ctx context.Context, c closure.Closure) error {
	inputJSON, summaryJSON, err := encodeClosure(c)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO cash_closures
		(id, business_date, note, input_json, summary_json, difference, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, formatTime(c.BusinessDate), nullString(c.Note), inputJSON, summaryJSON,
		c.Summary.Difference.String(), string(c.Summary.Status),
		formatTime(c.CreatedAt), formatTime(c.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert closure: %w", err)
	}
	return nil
}

func (s *Store) UpdateClosure(ctx context.Context, c closure.Closure) error {
	inputJSON, summaryJSON, err := encodeClosure(c)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE cash_closures
		SET note = ?, input_json = ?, summary_json = ?, difference = ?, status = ?, updated_at = ?
		WHERE id = ?`,
		nullString(c.Note), inputJSON, summaryJSON,
		c.Summary.Difference.String(), string(c.Summary.Status), formatTime(c.UpdatedAt),
		c.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update closure: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return closure.ErrClosureNotFound
	}
	return nil
}

func (s *Store) GetClosure(ctx context.Context, id string) (closure.Closure, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, business_date, note, input_json, summary_json, created_at, updated_at
		FROM cash_closures WHERE id = ?`, id,
	)
	c, err := scanClosure(row)
	if errors.Is(err, sql.ErrNoRows) {
		return closure.Closure{}, closure.ErrClosureNotFound
	}
	return c, err
}

// ListClosures returns every closure, latest business date first.
func (s *Store) ListClosures(ctx context.Context) ([]closure.Closure, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, business_date, note, input_json, summary_json, created_at, updated_at
		FROM cash_closures ORDER BY business_date DESC, created_at DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var closures []closure.Closure
	for rows.Next() {
		c, err := scanClosure(rows)
		if err != nil {
			return nil, err
		}
		closures = append(closures, c)
	}
	return closures, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanClosure(row rowScanner) (closure.Closure, error) {
	var (
		c                      closure.Closure
		businessDate           string
		note                   sql.NullString
		inputJSON, summaryJSON string
		createdAt, updatedAt   string
	)
	if err := row.Scan(&c.ID, &businessDate, &note, &inputJSON, &summaryJSON, &createdAt, &updatedAt); err != nil {
		return closure.Closure{}, err
	}

	if err := json.Unmarshal([]byte(inputJSON), &c.Input); err != nil {
		return closure.Closure{}, fmt.Errorf("closure %s: bad input_json: %w", c.ID, err)
	}
	if err := json.Unmarshal([]byte(summaryJSON), &c.Summary); err != nil {
		return closure.Closure{}, fmt.Errorf("closure %s: bad summary_json: %w", c.ID, err)
	}
	c.BusinessDate = parseTime(businessDate)
	c.Note = note.String
	c.CreatedAt = parseTime(createdAt)
	c.UpdatedAt = parseTime(updatedAt)
	return c, nil
}

func encodeClosure(c closure.Closure) (string, string, error) {
	in, err := json.Marshal(c.Input)
	if err != nil {
		return "", "", fmt.Errorf("failed to encode closure input: %w", err)
	}
	sum, err := json.Marshal(c.Summary)
	if err != nil {
		return "", "", fmt.Errorf("failed to encode closure summary: %w", err)
	}
	return string(in), string(sum), nil
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// withTx runs fn in a database transaction. Callers hold s.mu.
func (s *Store) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(sqlTx); err != nil {
		return err
	}
	return sqlTx.Commit()
}

// Reset deletes all data. Used by tests and demo resets.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.withTx(ctx, func(sqlTx *sql.Tx) error {
		for _, table := range []string{"supplier_transactions", "happy_hour_rules", "cash_closures"} {
			if _, err := sqlTx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
				return err
			}
		}
		return nil
	})
}

// Helper functions

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		t, _ = time.Parse(time.RFC3339Nano, s)
	}
	return t
}

func isConstraintError(err error, code sqlite3.ErrNoExtended) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == code
	}
	return false
}
