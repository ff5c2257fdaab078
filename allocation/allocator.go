package allocation

import (
	"github.com/shopspring/decimal"
	"github.com/warp/backoffice-engine/core"
)

// =============================================================================
// ALLOCATOR
// =============================================================================
//
// Per session:
//   totalDiscount = Σ discount.Amount
//   grossProducts = Σ (unitPrice + Σmodifiers) × quantity
//
//   totalDiscount == 0 or grossProducts <= 0  -> products pass through
//   otherwise factor = (grossProducts + totalDiscount) / grossProducts and
//   every product's unit price becomes (unitPrice + Σmodifiers) × factor,
//   with modifiers cleared because they are folded into the price.
//
// CONSERVATION:
//   Σ price × quantity over a redistributed session equals
//   grossProducts + totalDiscount. The discount is moved, never dropped
//   or duplicated.
//
// ORDER:
//   Output is grouped by session in first-seen order, products keep their
//   relative input order inside a session. Callers should match on ID.

// SessionSummary describes what happened to one session.
type SessionSummary struct {
	Key           string
	GrossProducts decimal.Decimal
	TotalDiscount decimal.Decimal
	Net           decimal.Decimal
	Factor        decimal.Decimal
	Redistributed bool
	ProductCount  int
	DiscountCount int
}

// Result is the output of Allocate.
type Result struct {
	Lines    []ProductLine
	Sessions []SessionSummary
	Warnings []core.DegenerateInputWarning
}

type session struct {
	key       string
	products  []ProductLine
	discounts []DiscountLine
}

// Allocate redistributes discount lines onto product lines, session by
// session. Discount lines are consumed; one ProductLine is returned for
// every ProductLine in the input.
func Allocate(lines []Line) Result {
	sessions := groupSessions(lines)

	var ws core.Warnings
	res := Result{
		Lines:    make([]ProductLine, 0, len(lines)),
		Sessions: make([]SessionSummary, 0, len(sessions)),
	}

	for _, s := range sessions {
		summary := allocateSession(s, &res.Lines, &ws)
		res.Sessions = append(res.Sessions, summary)
	}
	res.Warnings = ws.List()
	return res
}

// AllocateRecords classifies raw records and allocates them. Rows dropped
// during classification are reported ahead of allocation warnings.
func AllocateRecords(records []Record) (Result, error) {
	lines, skipped, err := Classify(records)
	if err != nil {
		return Result{}, err
	}
	res := Allocate(lines)
	if len(skipped) > 0 {
		var ws core.Warnings
		ws.Append(skipped...)
		ws.Append(res.Warnings...)
		res.Warnings = ws.List()
	}
	return res, nil
}

func groupSessions(lines []Line) []*session {
	index := make(map[string]*session)
	var order []*session

	get := func(key string) *session {
		s, ok := index[key]
		if !ok {
			s = &session{key: key}
			index[key] = s
			order = append(order, s)
		}
		return s
	}

	for _, l := range lines {
		switch v := l.(type) {
		case ProductLine:
			s := get(v.SessionKey)
			s.products = append(s.products, v)
		case DiscountLine:
			s := get(v.SessionKey)
			s.discounts = append(s.discounts, v)
		}
	}
	return order
}

func allocateSession(s *session, out *[]ProductLine, ws *core.Warnings) SessionSummary {
	totalDiscount := decimal.Zero
	for _, d := range s.discounts {
		totalDiscount = totalDiscount.Add(d.Amount)
	}

	gross := decimal.Zero
	for _, p := range s.products {
		if p.Quantity <= 0 {
			ws.Add(core.WarnNonPositiveQuantity, p.ID, "quantity %d in session %s", p.Quantity, s.key)
		}
		gross = gross.Add(p.Total())
	}

	summary := SessionSummary{
		Key:           s.key,
		GrossProducts: gross,
		TotalDiscount: totalDiscount,
		Net:           gross,
		Factor:        decimal.NewFromInt(1),
		ProductCount:  len(s.products),
		DiscountCount: len(s.discounts),
	}

	if totalDiscount.IsZero() || !gross.IsPositive() {
		if !totalDiscount.IsZero() {
			ws.Add(core.WarnZeroGrossWithDiscount, s.key,
				"discount %s not redistributed: gross product total is %s", totalDiscount, gross)
		}
		for _, p := range s.products {
			*out = append(*out, p.clone())
		}
		return summary
	}

	net := gross.Add(totalDiscount)
	factor := net.Div(gross)

	for _, p := range s.products {
		before := p.Total()
		np := p
		// Per-unit price stays per-unit: (unit + modifiers) * factor, with no
		// division by quantity, so Total() = qty * price keeps the session sum at net.
		np.UnitPrice = p.EffectiveUnitPrice().Mul(factor)
		np.Modifiers = nil
		np.AllocatedDiscount = np.Total().Sub(before)
		*out = append(*out, np)
	}

	summary.Net = net
	summary.Factor = factor
	summary.Redistributed = true
	return summary
}
