package api

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/backoffice-engine/ledger"
	"github.com/warp/backoffice-engine/ledger/memory"
)

type staticLister []string

func (l staticLister) Suppliers(context.Context) ([]string, error) { return l, nil }

type failingLister struct{}

func (failingLister) Suppliers(context.Context) ([]string, error) {
	return nil, errors.New("db down")
}

func seedMemoryLedger(t *testing.T, svc *ledger.SupplierLedger, supplierID string) {
	t.Helper()
	ctx := context.Background()
	for i, tx := range []ledger.Transaction{
		{Kind: ledger.KindPurchaseInvoice, GrossAmount: dec("100")},
		{Kind: ledger.KindPayment, GrossAmount: dec("40")},
		{Kind: ledger.KindWaybillIn, GrossAmount: dec("10")},
	} {
		tx.SupplierID = supplierID
		tx.Date = time.Date(2025, time.March, i+1, 0, 0, 0, 0, time.UTC)
		_, err := svc.Record(ctx, tx)
		require.NoError(t, err)
	}
}

func tamper(t *testing.T, store *memory.Store, supplierID string, index int) {
	t.Helper()
	ctx := context.Background()
	txs, err := store.Load(ctx, supplierID)
	require.NoError(t, err)
	txs[index].Balance = dec("12345")
	require.NoError(t, store.Rewrite(ctx, supplierID, txs))
}

func TestLedgerAuditor_ReportsDrift(t *testing.T) {
	// GIVEN: Two suppliers, one with a tampered balance
	store := memory.New()
	svc := ledger.NewSupplierLedger(store)
	seedMemoryLedger(t, svc, "clean")
	seedMemoryLedger(t, svc, "dirty")
	tamper(t, store, "dirty", 2)

	// WHEN: Running one audit pass without repair
	auditor := NewLedgerAuditor(staticLister{"clean", "dirty"}, svc)
	report := auditor.RunOnce(context.Background())

	// THEN: Only the tampered ledger is flagged and nothing is changed
	assert.Equal(t, 2, report.Checked)
	assert.Equal(t, []string{"dirty"}, report.Drifted)
	assert.Empty(t, report.Repaired)
	assert.ErrorIs(t, svc.Verify(context.Background(), "dirty"), ledger.ErrBalanceDrift)
}

func TestLedgerAuditor_Repairs(t *testing.T) {
	store := memory.New()
	svc := ledger.NewSupplierLedger(store)
	seedMemoryLedger(t, svc, "dirty")
	tamper(t, store, "dirty", 1)

	auditor := NewLedgerAuditor(staticLister{"dirty"}, svc)
	auditor.Repair = true
	report := auditor.RunOnce(context.Background())

	assert.Equal(t, []string{"dirty"}, report.Repaired)
	require.NoError(t, svc.Verify(context.Background(), "dirty"))
	bal, err := svc.Balance(context.Background(), "dirty")
	require.NoError(t, err)
	assert.Equal(t, "70", bal.String())
}

func TestLedgerAuditor_ListerFailure(t *testing.T) {
	auditor := NewLedgerAuditor(failingLister{}, ledger.NewSupplierLedger(memory.New()))

	report := auditor.RunOnce(context.Background())

	assert.Zero(t, report.Checked)
}

func TestLedgerAuditor_StartStop(t *testing.T) {
	store := memory.New()
	svc := ledger.NewSupplierLedger(store)
	seedMemoryLedger(t, svc, "dirty")
	tamper(t, store, "dirty", 0)

	auditor := NewLedgerAuditor(staticLister{"dirty"}, svc)
	auditor.Repair = true
	auditor.CheckInterval = time.Hour
	auditor.Start()
	auditor.Start()

	// The first pass runs immediately on start.
	require.Eventually(t, func() bool {
		return svc.Verify(context.Background(), "dirty") == nil
	}, 2*time.Second, 10*time.Millisecond)

	auditor.Stop()
	auditor.Stop()
}

func TestLedgerAuditor_Disabled(t *testing.T) {
	auditor := NewLedgerAuditor(staticLister{}, ledger.NewSupplierLedger(memory.New()))
	auditor.Enabled = false

	auditor.Start()
	auditor.Stop()

	assert.Nil(t, auditor.ticker)
}
