/*
scheduler.go - Periodic supplier ledger audit

PURPOSE:
  Periodically replays every supplier ledger from zero and compares the
  result with the stored running balances. Drift means a row was edited
  outside the ledger service or a recompute was interrupted.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Verifies each supplier independently; one failure does not stop the run
  - With Repair set, recomputes from the first drifting index
  - RunOnce is exported so the same pass can be triggered from tests or ops

CONFIGURATION:
  - CheckInterval: How often to check (AUDIT_INTERVAL, default: 1 hour)
  - Enabled: Whether scheduler is active (AUDIT_ENABLED, default: true)
  - Repair: Recompute drifting ledgers (AUDIT_REPAIR, default: false)

USAGE:
  auditor := NewLedgerAuditor(store, handler.Suppliers)
  auditor.Start()
  // ... later
  auditor.Stop()

SEE ALSO:
  - handlers.go: VerifySupplier / RecomputeSupplier (manual equivalents)
  - ledger/calculator.go: Verify, RecomputeFrom
*/
package api

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/warp/backoffice-engine/ledger"
)

// SupplierLister enumerates suppliers that have ledger rows.
type SupplierLister interface {
	Suppliers(ctx context.Context) ([]string, error)
}

// AuditReport summarizes one audit pass.
type AuditReport struct {
	Checked  int
	Drifted  []string
	Repaired []string
	Failed   []string
}

// LedgerAuditor verifies supplier ledgers on a ticker.
type LedgerAuditor struct {
	Lister        SupplierLister
	Ledger        *ledger.SupplierLedger
	CheckInterval time.Duration
	Enabled       bool
	Repair        bool

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewLedgerAuditor creates an enabled, non-repairing auditor with an hourly interval.
func NewLedgerAuditor(lister SupplierLister, l *ledger.SupplierLedger) *LedgerAuditor {
	return &LedgerAuditor{
		Lister:        lister,
		Ledger:        l,
		CheckInterval: 1 * time.Hour,
		Enabled:       true,
	}
}

// Start begins the scheduler. Calling Start twice is a no-op.
func (a *LedgerAuditor) Start() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.Enabled {
		log.Println("[Audit] Disabled, not starting")
		return
	}
	if a.ticker != nil {
		return
	}
	if a.CheckInterval <= 0 {
		a.CheckInterval = time.Hour
	}

	a.ticker = time.NewTicker(a.CheckInterval)
	a.stop = make(chan struct{})
	a.wg.Add(1)

	go a.run()

	log.Printf("[Audit] Started with check interval: %v (repair=%v)", a.CheckInterval, a.Repair)
}

// Stop stops the scheduler and waits for an in-flight pass.
func (a *LedgerAuditor) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.ticker == nil {
		return
	}
	a.ticker.Stop()
	close(a.stop)
	a.wg.Wait()
	a.ticker = nil
	log.Println("[Audit] Stopped")
}

func (a *LedgerAuditor) run() {
	defer a.wg.Done()

	// Run immediately on start
	a.RunOnce(context.Background())

	for {
		select {
		case <-a.ticker.C:
			a.RunOnce(context.Background())
		case <-a.stop:
			return
		}
	}
}

// RunOnce verifies every supplier ledger once.
func (a *LedgerAuditor) RunOnce(ctx context.Context) AuditReport {
	var report AuditReport

	suppliers, err := a.Lister.Suppliers(ctx)
	if err != nil {
		log.Printf("[Audit] Error listing suppliers: %v", err)
		return report
	}

	for _, supplierID := range suppliers {
		report.Checked++

		err := a.Ledger.Verify(ctx, supplierID)
		if err == nil {
			continue
		}

		var drift *ledger.BalanceDriftError
		if !errors.As(err, &drift) {
			log.Printf("[Audit] Error verifying supplier %s: %v", supplierID, err)
			report.Failed = append(report.Failed, supplierID)
			continue
		}

		report.Drifted = append(report.Drifted, supplierID)
		log.Printf("[Audit] Supplier %s: %v", supplierID, drift)

		if !a.Repair {
			continue
		}
		if _, err := a.Ledger.Recompute(ctx, supplierID, drift.Index); err != nil {
			log.Printf("[Audit] Error repairing supplier %s: %v", supplierID, err)
			report.Failed = append(report.Failed, supplierID)
			continue
		}
		report.Repaired = append(report.Repaired, supplierID)
		log.Printf("[Audit] Supplier %s recomputed from index %d", supplierID, drift.Index)
	}

	log.Printf("[Audit] Checked %d suppliers: %d drifted, %d repaired",
		report.Checked, len(report.Drifted), len(report.Repaired))
	return report
}
