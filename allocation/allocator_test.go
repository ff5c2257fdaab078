package allocation_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/backoffice-engine/allocation"
	"github.com/warp/backoffice-engine/core"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

var tolerance = dec("0.000001")

func product(id, session string, price string, qty int, mods ...string) allocation.ProductLine {
	p := allocation.ProductLine{
		ID: id, SessionKey: session, ProductID: "prod-" + id, Name: id,
		CategoryID: "cat-1", Quantity: qty, UnitPrice: dec(price), Status: allocation.StatusPaid,
	}
	for _, m := range mods {
		p.Modifiers = append(p.Modifiers, allocation.Modifier{Name: "extra", Price: dec(m)})
	}
	return p
}

func discount(id, session, amount string) allocation.DiscountLine {
	return allocation.DiscountLine{ID: id, SessionKey: session, Amount: dec(amount)}
}

func byID(lines []allocation.ProductLine) map[string]allocation.ProductLine {
	out := make(map[string]allocation.ProductLine, len(lines))
	for _, l := range lines {
		out[l.ID] = l
	}
	return out
}

func sessionTotal(lines []allocation.ProductLine, session string) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		if l.SessionKey == session {
			total = total.Add(l.Total())
		}
	}
	return total
}

// =============================================================================
// REDISTRIBUTION
// =============================================================================

func TestAllocate_ProportionalExample(t *testing.T) {
	// GIVEN: Products at 50 and 30 (gross 80) and a -8 discount line
	// WHEN: Allocating
	// THEN: factor 0.9, prices 45 and 27, discount line consumed
	res := allocation.Allocate([]allocation.Line{
		product("a", "pay-1", "50", 1),
		discount("d", "pay-1", "-8"),
		product("b", "pay-1", "30", 1),
	})

	require.Len(t, res.Lines, 2)
	got := byID(res.Lines)
	assert.True(t, dec("45").Equal(got["a"].UnitPrice), got["a"].UnitPrice.String())
	assert.True(t, dec("27").Equal(got["b"].UnitPrice), got["b"].UnitPrice.String())
	assert.True(t, dec("-5").Equal(got["a"].AllocatedDiscount))
	assert.True(t, dec("-3").Equal(got["b"].AllocatedDiscount))

	require.Len(t, res.Sessions, 1)
	s := res.Sessions[0]
	assert.True(t, s.Redistributed)
	assert.True(t, dec("0.9").Equal(s.Factor))
	assert.True(t, dec("72").Equal(s.Net))
	assert.Equal(t, 2, s.ProductCount)
	assert.Equal(t, 1, s.DiscountCount)
	assert.Empty(t, res.Warnings)
}

func TestAllocate_QuantitiesAndModifiersAreFolded(t *testing.T) {
	// GIVEN: 2 × (20 + 5 modifier) and 1 × 30, gross 80, discount -8
	// WHEN: Allocating
	// THEN: Unit prices scale by 0.9 and modifiers are cleared
	in := product("a", "pay-1", "20", 2, "5")
	res := allocation.Allocate([]allocation.Line{in, product("b", "pay-1", "30", 1), discount("d", "pay-1", "-8")})

	got := byID(res.Lines)
	assert.True(t, dec("22.5").Equal(got["a"].UnitPrice))
	assert.Empty(t, got["a"].Modifiers)
	assert.Equal(t, 2, got["a"].Quantity)
	assert.True(t, dec("72").Equal(sessionTotal(res.Lines, "pay-1")))

	require.Len(t, in.Modifiers, 1, "input line untouched")
	assert.True(t, dec("20").Equal(in.UnitPrice))
}

func TestAllocate_ConservationWithAwkwardNumbers(t *testing.T) {
	lines := []allocation.Line{
		product("a", "s", "33.33", 1),
		product("b", "s", "12.10", 3, "0.35"),
		product("c", "s", "7.77", 7, "0.5", "1.25"),
		discount("d1", "s", "-10.01"),
		discount("d2", "s", "-3.333"),
	}
	gross := dec("33.33").Add(dec("12.45").Mul(dec("3"))).Add(dec("9.52").Mul(dec("7")))
	expected := gross.Add(dec("-13.343"))

	res := allocation.Allocate(lines)
	require.Len(t, res.Lines, 3)

	total := sessionTotal(res.Lines, "s")
	assert.True(t, total.Sub(expected).Abs().LessThan(tolerance), "got %s want %s", total, expected)

	allocated := decimal.Zero
	for _, l := range res.Lines {
		allocated = allocated.Add(l.AllocatedDiscount)
	}
	assert.True(t, allocated.Sub(dec("-13.343")).Abs().LessThan(tolerance))
}

func TestAllocate_SignIsTakenAsGiven(t *testing.T) {
	res := allocation.Allocate([]allocation.Line{
		product("a", "s", "50", 1), product("b", "s", "30", 1), discount("d", "s", "8"),
	})
	got := byID(res.Lines)
	assert.True(t, dec("55").Equal(got["a"].UnitPrice))
	assert.True(t, dec("33").Equal(got["b"].UnitPrice))
}

// =============================================================================
// PASSTHROUGH AND GUARDS
// =============================================================================

func TestAllocate_NoDiscountPassthroughIsExact(t *testing.T) {
	in := product("a", "s", "19.99", 3, "0.01")
	res := allocation.Allocate([]allocation.Line{in, product("b", "t", "7.10", 1)})

	require.Len(t, res.Lines, 2)
	got := byID(res.Lines)
	assert.Equal(t, "19.99", got["a"].UnitPrice.String())
	require.Len(t, got["a"].Modifiers, 1, "modifiers kept when nothing is redistributed")
	assert.True(t, got["a"].AllocatedDiscount.IsZero())
	assert.False(t, res.Sessions[0].Redistributed)

	got["a"].Modifiers[0].Price = dec("99")
	assert.Equal(t, "0.01", in.Modifiers[0].Price.String(), "output does not alias input")
}

func TestAllocate_ZeroGrossGuard(t *testing.T) {
	// GIVEN: A session with only a discount, and one whose products are free
	// WHEN: Allocating
	// THEN: Nothing panics, products pass through, a warning per session
	res := allocation.Allocate([]allocation.Line{
		discount("d1", "only-discount", "-5"),
		product("free", "free-session", "0", 2),
		discount("d2", "free-session", "-3"),
	})

	require.Len(t, res.Lines, 1)
	assert.True(t, res.Lines[0].UnitPrice.IsZero())
	require.Len(t, res.Warnings, 2)
	for _, w := range res.Warnings {
		assert.Equal(t, core.WarnZeroGrossWithDiscount, w.Code)
	}
	assert.Equal(t, "only-discount", res.Warnings[0].Subject)
}

func TestAllocate_EmptyInput(t *testing.T) {
	res := allocation.Allocate(nil)
	assert.Empty(t, res.Lines)
	assert.Empty(t, res.Sessions)
	assert.Nil(t, res.Warnings)
}

func TestAllocate_SessionsAreIndependent(t *testing.T) {
	res := allocation.Allocate([]allocation.Line{
		product("a", "pay-1", "100", 1),
		product("b", "table_7", "40", 1),
		discount("d", "pay-1", "-10"),
	})

	got := byID(res.Lines)
	assert.True(t, dec("90").Equal(got["a"].UnitPrice))
	assert.True(t, dec("40").Equal(got["b"].UnitPrice))
	require.Len(t, res.Sessions, 2)
	assert.Equal(t, "pay-1", res.Sessions[0].Key)
	assert.Equal(t, "table_7", res.Sessions[1].Key)
}

func TestAllocate_NonPositiveQuantityWarns(t *testing.T) {
	res := allocation.Allocate([]allocation.Line{product("a", "s", "10", 0), product("b", "s", "10", 1)})
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, core.WarnNonPositiveQuantity, res.Warnings[0].Code)
	assert.Len(t, res.Lines, 2)
}

// =============================================================================
// CLASSIFICATION
// =============================================================================

func TestClassify_SessionKeysAndVariants(t *testing.T) {
	lines, warnings, err := allocation.Classify([]allocation.Record{
		{ID: "1", PaymentID: "pay-9", TableID: "4", UnitPrice: dec("50"), Quantity: 1},
		{ID: "2", TableID: "4", UnitPrice: dec("30"), Quantity: 1, Status: allocation.StatusGift},
		{ID: "3", TableID: "4", UnitPrice: dec("-4"), Quantity: 2, IsDiscountLine: true},
	})
	require.NoError(t, err)
	assert.Empty(t, warnings)
	require.Len(t, lines, 3)

	p1, ok := lines[0].(allocation.ProductLine)
	require.True(t, ok)
	assert.Equal(t, "pay-9", p1.SessionKey)
	assert.Equal(t, allocation.StatusPaid, p1.Status)

	p2 := lines[1].(allocation.ProductLine)
	assert.Equal(t, "table_4", p2.Session())
	assert.Equal(t, allocation.StatusGift, p2.Status)

	d, ok := lines[2].(allocation.DiscountLine)
	require.True(t, ok)
	assert.True(t, dec("-8").Equal(d.Amount))
}

func TestClassify_MissingSessionBasisFails(t *testing.T) {
	_, _, err := allocation.Classify([]allocation.Record{{ID: "orphan", UnitPrice: dec("1"), Quantity: 1}})
	require.Error(t, err)
	assert.True(t, core.IsValidation(err))

	var verr *core.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "session_key", verr.Field)
	assert.Equal(t, "orphan", verr.Subject)
}

func TestClassify_UnknownStatusSkipsRow(t *testing.T) {
	// GIVEN: A paid row and a row with a status the engine does not know
	records := []allocation.Record{
		{ID: "a", PaymentID: "p1", UnitPrice: dec("50"), Quantity: 1, Status: allocation.StatusPaid},
		{ID: "b", PaymentID: "p2", UnitPrice: dec("30"), Quantity: 1, Status: "refunded"},
	}

	// WHEN: Classifying
	lines, warnings, err := allocation.Classify(records)

	// THEN: The batch survives, the bad row is dropped and reported
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, "a", lines[0].(allocation.ProductLine).ID)
	require.Len(t, warnings, 1)
	assert.Equal(t, core.WarnUnknownStatus, warnings[0].Code)
	assert.Equal(t, "b", warnings[0].Subject)
	assert.Contains(t, warnings[0].Message, "refunded")
}

func TestAllocateRecords_UnknownStatusKeepsOtherSessions(t *testing.T) {
	// GIVEN: Session p1 is valid; session p2 holds one unknown-status row
	// next to a valid one
	records := []allocation.Record{
		{ID: "a", PaymentID: "p1", UnitPrice: dec("50"), Quantity: 1},
		{ID: "b", PaymentID: "p2", UnitPrice: dec("30"), Quantity: 1, Status: "refunded"},
		{ID: "c", PaymentID: "p2", UnitPrice: dec("20"), Quantity: 1, Status: allocation.StatusPaid},
	}

	// WHEN: Allocating
	res, err := allocation.AllocateRecords(records)

	// THEN: Both sessions allocate without the skipped row and the warning is surfaced
	require.NoError(t, err)
	require.Len(t, res.Lines, 2)
	assert.True(t, dec("50").Equal(sessionTotal(res.Lines, "p1")))
	assert.True(t, dec("20").Equal(sessionTotal(res.Lines, "p2")))
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, core.WarnUnknownStatus, res.Warnings[0].Code)
}

func TestAllocateRecords(t *testing.T) {
	res, err := allocation.AllocateRecords([]allocation.Record{
		{ID: "a", PaymentID: "p", UnitPrice: dec("50"), Quantity: 1},
		{ID: "b", PaymentID: "p", UnitPrice: dec("30"), Quantity: 1},
		{ID: "d", PaymentID: "p", UnitPrice: dec("-8"), Quantity: 1, IsDiscountLine: true},
	})
	require.NoError(t, err)
	assert.True(t, dec("72").Equal(sessionTotal(res.Lines, "p")))
}
