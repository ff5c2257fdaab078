/*
Package allocation redistributes session-level discounts onto line items.

PURPOSE:
  Point-of-sale systems record a checkout discount as a separate line tied to
  a payment or table, not to the products that earned it. Category and
  product revenue reports need per-item net prices, so the discount is
  spread back over the session's product lines proportionally.

KEY CONCEPTS IN THIS FILE (line.go):
  - Record: the flat upstream row, with an IsDiscountLine flag
  - Line: tagged variant, either a ProductLine or a DiscountLine
  - Session key: payment id, or "table_" + table id when unpaid

SESSION KEY:
  paymentID when present, otherwise "table_" + tableID. A record with
  neither is malformed upstream data and fails Classify with a
  core.ValidationError.

IMMUTABILITY:
  Lines are values. Allocate returns derived copies and never touches its
  input, modifier slices included.

SEE ALSO:
  - allocator.go: the redistribution algorithm
  - report.go: per-category and per-product aggregation
*/
package allocation

import (
	"slices"

	"github.com/shopspring/decimal"
	"github.com/warp/backoffice-engine/core"
	"github.com/warp/backoffice-engine/money"
)

// =============================================================================
// STATUS
// =============================================================================

type Status string

const (
	StatusPaid  Status = "paid"
	StatusSent  Status = "sent"
	StatusGift  Status = "gift"
	StatusWaste Status = "waste"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPaid, StatusSent, StatusGift, StatusWaste:
		return true
	}
	return false
}

// Billable reports whether lines with this status produce revenue.
func (s Status) Billable() bool {
	return s == StatusPaid || s == StatusSent
}

// =============================================================================
// LINES - tagged variant
// =============================================================================

// Line is either a ProductLine or a DiscountLine.
type Line interface {
	Session() string
	isLine()
}

// Modifier is a priced add-on to a product line (extra shot, large size).
type Modifier struct {
	Name  string
	Price decimal.Decimal
}

// ProductLine is a sold, gifted or wasted group of identical units.
type ProductLine struct {
	ID             string
	SessionKey     string
	ProductID      string
	Name           string
	CategoryID     string
	Quantity       int
	UnitPrice      decimal.Decimal
	Modifiers      []Modifier
	Status         Status
	VATRatePercent decimal.Decimal

	// AllocatedDiscount is the signed change in line total produced by
	// allocation. Zero for lines that were passed through.
	AllocatedDiscount decimal.Decimal
}

func (p ProductLine) Session() string { return p.SessionKey }
func (ProductLine) isLine()            {}

// ModifierTotal sums the modifier prices.
func (p ProductLine) ModifierTotal() decimal.Decimal {
	total := decimal.Zero
	for _, m := range p.Modifiers {
		total = total.Add(m.Price)
	}
	return total
}

// EffectiveUnitPrice is UnitPrice plus all modifiers.
func (p ProductLine) EffectiveUnitPrice() decimal.Decimal {
	return p.UnitPrice.Add(p.ModifierTotal())
}

// Total is EffectiveUnitPrice × Quantity.
func (p ProductLine) Total() decimal.Decimal {
	return p.EffectiveUnitPrice().Mul(decimal.NewFromInt(int64(p.Quantity)))
}

func (p ProductLine) clone() ProductLine {
	p.Modifiers = slices.Clone(p.Modifiers)
	return p
}

// DiscountLine is a session-level deduction. Amount keeps the upstream
// sign; the allocator never assumes whether it is stored negative.
type DiscountLine struct {
	ID         string
	SessionKey string
	Name       string
	Amount     decimal.Decimal
}

func (d DiscountLine) Session() string { return d.SessionKey }
func (DiscountLine) isLine()            {}

// =============================================================================
// RECORD - flat upstream row
// =============================================================================

// Record is a line as fetched from the store.
type Record struct {
	ID             string
	PaymentID      string
	TableID        string
	ProductID      string
	Name           string
	CategoryID     string
	Quantity       int
	UnitPrice      decimal.Decimal
	Modifiers      []Modifier
	Status         Status
	IsDiscountLine bool
	VATRatePercent decimal.Decimal
}

// SessionKeyOf derives the session key. ok is false when both ids are empty.
func SessionKeyOf(paymentID, tableID string) (key string, ok bool) {
	if paymentID != "" {
		return paymentID, true
	}
	if tableID != "" {
		return "table_" + tableID, true
	}
	return "", false
}

// Classify converts records into tagged lines.
// An empty status defaults to paid. A row with an unknown status is left out
// with a warning so the rest of the batch still allocates. Only a missing
// session basis is a ValidationError.
func Classify(records []Record) ([]Line, []core.DegenerateInputWarning, error) {
	var ws core.Warnings
	lines := make([]Line, 0, len(records))
	for _, r := range records {
		key, ok := SessionKeyOf(r.PaymentID, r.TableID)
		if !ok {
			return nil, nil, core.Missing("session_key", r.ID)
		}

		if r.IsDiscountLine {
			gross := r.UnitPrice
			for _, m := range r.Modifiers {
				gross = gross.Add(m.Price)
			}
			qty := r.Quantity
			if qty == 0 {
				qty = 1
			}
			lines = append(lines, DiscountLine{
				ID:         r.ID,
				SessionKey: key,
				Name:       r.Name,
				Amount:     gross.Mul(money.FromInt(int64(qty))),
			})
			continue
		}

		status := r.Status
		if status == "" {
			status = StatusPaid
		}
		if !status.Valid() {
			ws.Add(core.WarnUnknownStatus, r.ID, "unknown status %q, row skipped", status)
			continue
		}

		lines = append(lines, ProductLine{
			ID:             r.ID,
			SessionKey:     key,
			ProductID:      r.ProductID,
			Name:           r.Name,
			CategoryID:     r.CategoryID,
			Quantity:       r.Quantity,
			UnitPrice:      r.UnitPrice,
			Modifiers:      slices.Clone(r.Modifiers),
			Status:         status,
			VATRatePercent: r.VATRatePercent,
		})
	}
	return lines, ws.List(), nil
}
