package ledger_test

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/backoffice-engine/core"
	"github.com/warp/backoffice-engine/ledger"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func day(d int) time.Time { return time.Date(2025, time.March, d, 12, 0, 0, 0, time.UTC) }

func tx(id string, date time.Time, kind ledger.Kind, gross string) ledger.Transaction {
	return ledger.Transaction{ID: id, SupplierID: "sup-1", Date: date, Kind: kind, GrossAmount: dec(gross)}
}

func balances(txs []ledger.Transaction) []string {
	out := make([]string, len(txs))
	for i, t := range txs {
		out[i] = t.Balance.String()
	}
	return out
}

func ids(txs []ledger.Transaction) []string {
	out := make([]string, len(txs))
	for i, t := range txs {
		out[i] = t.ID
	}
	return out
}

func sample() []ledger.Transaction {
	return []ledger.Transaction{
		tx("inv", day(1), ledger.KindPurchaseInvoice, "100"),
		tx("pay", day(2), ledger.KindPayment, "40"),
		tx("wb", day(3), ledger.KindWaybillIn, "10"),
	}
}

// =============================================================================
// DELTA / APPLY
// =============================================================================

func TestDelta_SignTable(t *testing.T) {
	cases := map[ledger.Kind]string{
		ledger.KindPurchaseInvoice: "25",
		ledger.KindWaybillIn:       "25",
		ledger.KindPayment:         "-25",
		ledger.KindWaybillOut:      "-25",
	}
	for kind, want := range cases {
		got, err := ledger.Delta(kind, dec("25"))
		require.NoError(t, err, kind)
		assert.Equal(t, want, got.String(), kind)
	}
}

func TestDelta_MissingOrUnknownKind(t *testing.T) {
	_, err := ledger.Delta("", dec("1"))
	assert.True(t, core.IsValidation(err))

	_, err = ledger.Delta("refund", dec("1"))
	var verr *core.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "kind", verr.Field)
}

func TestApply(t *testing.T) {
	e, err := ledger.Apply(dec("100"), ledger.KindPayment, dec("40"))
	require.NoError(t, err)
	assert.Equal(t, "-40", e.Delta.String())
	assert.Equal(t, "60", e.NewBalance.String())
}

// =============================================================================
// REPLAY
// =============================================================================

func TestReplay_RunningBalances(t *testing.T) {
	// GIVEN: purchase 100, payment 40, waybill_in 10 in date order
	// WHEN: Replaying from zero
	// THEN: Balances are 100, 60, 70 and each prior is the previous balance
	out, err := ledger.Replay(decimal.Zero, sample())
	require.NoError(t, err)

	assert.Equal(t, []string{"100", "60", "70"}, balances(out))
	assert.Equal(t, "0", out[0].PriorBalance.String())
	for i := 1; i < len(out); i++ {
		assert.True(t, out[i].PriorBalance.Equal(out[i-1].Balance))
	}
}

func TestReplay_IsIdempotentAndSorts(t *testing.T) {
	in := sample()
	shuffled := []ledger.Transaction{in[2], in[0], in[1]}

	first, err := ledger.Replay(decimal.Zero, shuffled)
	require.NoError(t, err)
	assert.Equal(t, []string{"inv", "pay", "wb"}, ids(first))

	second, err := ledger.Replay(decimal.Zero, first)
	require.NoError(t, err)
	assert.Equal(t, balances(first), balances(second))

	assert.True(t, shuffled[0].Balance.IsZero(), "input untouched")
}

func TestReplay_EqualDatesUseSeq(t *testing.T) {
	a := tx("a", day(5), ledger.KindPurchaseInvoice, "10")
	a.Seq = 2
	b := tx("b", day(5), ledger.KindPayment, "30")
	b.Seq = 1

	out, err := ledger.Replay(decimal.Zero, []ledger.Transaction{a, b})
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, ids(out))
	assert.Equal(t, []string{"-30", "-20"}, balances(out))
}

func TestReplay_InitialBalance(t *testing.T) {
	out, err := ledger.Replay(dec("5"), sample())
	require.NoError(t, err)
	assert.Equal(t, "75", out[2].Balance.String())
}

func TestReplay_BadKindNamesTransaction(t *testing.T) {
	txs := sample()
	txs[1].Kind = ""
	_, err := ledger.Replay(decimal.Zero, txs)

	var verr *core.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "pay", verr.Subject)
}

// =============================================================================
// HISTORICAL EDITS
// =============================================================================

func TestInsert_BackdatedRecomputesTail(t *testing.T) {
	// GIVEN: purchase 100 (day 1), payment 40 (day 3)
	// WHEN: A waybill_out of 20 is inserted on day 2
	// THEN: It lands in the middle and the payment's balance moves with it
	base, err := ledger.Replay(decimal.Zero, []ledger.Transaction{
		tx("inv", day(1), ledger.KindPurchaseInvoice, "100"),
		tx("pay", day(3), ledger.KindPayment, "40"),
	})
	require.NoError(t, err)

	out, pos, err := ledger.Insert(base, tx("ret", day(2), ledger.KindWaybillOut, "20"))
	require.NoError(t, err)
	assert.Equal(t, 1, pos)
	assert.Equal(t, []string{"inv", "ret", "pay"}, ids(out))
	assert.Equal(t, []string{"100", "80", "40"}, balances(out))
	assert.Equal(t, "80", out[2].PriorBalance.String())
	assert.NoError(t, ledger.Verify(out))
}

func TestInsert_EqualDateGoesAfter(t *testing.T) {
	base, err := ledger.Replay(decimal.Zero, sample())
	require.NoError(t, err)

	out, pos, err := ledger.Insert(base, tx("late", day(2), ledger.KindPurchaseInvoice, "5"))
	require.NoError(t, err)
	assert.Equal(t, 2, pos)
	assert.Equal(t, []string{"inv", "pay", "late", "wb"}, ids(out))
	assert.Equal(t, int64(1), out[2].Seq, "seq assigned past existing max")
}

func TestInsert_CallerSeqIsReplaced(t *testing.T) {
	// GIVEN: Two rows on the same date with Seq 5 and 6
	base, err := ledger.Replay(decimal.Zero, []ledger.Transaction{
		{ID: "a", Date: day(2), Seq: 5, Kind: ledger.KindPurchaseInvoice, GrossAmount: dec("100")},
		{ID: "b", Date: day(2), Seq: 6, Kind: ledger.KindPayment, GrossAmount: dec("30")},
	})
	require.NoError(t, err)

	// WHEN: Inserting a same-day row that carries a stale, lower Seq
	stale := tx("c", day(2), ledger.KindWaybillOut, "10")
	stale.Seq = 1
	out, pos, err := ledger.Insert(base, stale)
	require.NoError(t, err)

	// THEN: It lands last with a fresh Seq, and a replay keeps that order
	assert.Equal(t, 2, pos)
	assert.Equal(t, int64(7), out[2].Seq)
	assert.Equal(t, []string{"a", "b", "c"}, ids(out))

	replayed, err := ledger.Replay(decimal.Zero, out)
	require.NoError(t, err)
	assert.Equal(t, ids(out), ids(replayed))
	assert.Equal(t, balances(out), balances(replayed))
	assert.NoError(t, ledger.Verify(out))
}

func TestRemove_RecomputesAfterDeletedRow(t *testing.T) {
	base, err := ledger.Replay(decimal.Zero, sample())
	require.NoError(t, err)

	out, err := ledger.Remove(base, "pay")
	require.NoError(t, err)
	assert.Equal(t, []string{"inv", "wb"}, ids(out))
	assert.Equal(t, []string{"100", "110"}, balances(out))
	assert.Len(t, base, 3, "input untouched")

	_, err = ledger.Remove(base, "missing")
	assert.ErrorIs(t, err, ledger.ErrTransactionNotFound)
}

func TestRecomputeFrom(t *testing.T) {
	base, err := ledger.Replay(decimal.Zero, sample())
	require.NoError(t, err)
	base[2].Balance = dec("999")

	out, err := ledger.RecomputeFrom(base, 2)
	require.NoError(t, err)
	assert.Equal(t, "70", out[2].Balance.String())

	same, err := ledger.RecomputeFrom(base, 3)
	require.NoError(t, err)
	assert.Equal(t, "999", same[2].Balance.String())

	_, err = ledger.RecomputeFrom(base, 4)
	assert.ErrorIs(t, err, ledger.ErrIndexOutOfRange)
}

// =============================================================================
// AUDIT
// =============================================================================

func TestVerify_DetectsDrift(t *testing.T) {
	base, err := ledger.Replay(decimal.Zero, sample())
	require.NoError(t, err)
	require.NoError(t, ledger.Verify(base))

	base[1].Balance = dec("61")
	err = ledger.Verify(base)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ledger.ErrBalanceDrift))

	var drift *ledger.BalanceDriftError
	require.ErrorAs(t, err, &drift)
	assert.Equal(t, 1, drift.Index)
	assert.Equal(t, "pay", drift.TransactionID)
	assert.Equal(t, "60", drift.Expected.String())
}

func TestSummarize(t *testing.T) {
	base, err := ledger.Replay(decimal.Zero, append(sample(), tx("ret", day(4), ledger.KindWaybillOut, "15")))
	require.NoError(t, err)

	s := ledger.Summarize("sup-1", base)
	assert.Equal(t, 4, s.Count)
	assert.Equal(t, "100", s.Purchases.String())
	assert.Equal(t, "40", s.Payments.String())
	assert.Equal(t, "10", s.WaybillsIn.String())
	assert.Equal(t, "15", s.WaybillsOut.String())
	assert.Equal(t, "55", s.Balance.String())

	empty := ledger.Summarize("none", nil)
	assert.True(t, empty.Balance.IsZero())
}

func TestDisplayOrder_NewestFirst(t *testing.T) {
	out := ledger.DisplayOrder(sample())
	assert.Equal(t, []string{"wb", "pay", "inv"}, ids(out))
}
