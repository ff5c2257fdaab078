package pricing

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/backoffice-engine/core"
	"github.com/warp/backoffice-engine/money"
	"github.com/warp/backoffice-engine/timewindow"
)

// =============================================================================
// INPUT / OUTPUT
// =============================================================================

// Product is the item being priced.
type Product struct {
	ID         string
	CategoryID string
	Name       string
	Price      decimal.Decimal
}

// Price is the resolved price of a product at an instant.
// DiscountedPrice equals OriginalPrice when HasDiscount is false.
type Price struct {
	ProductID       string
	OriginalPrice   decimal.Decimal
	DiscountedPrice decimal.Decimal
	HasDiscount     bool
	DiscountLabel   string
	RuleID          string
}

// =============================================================================
// RESOLVER
// =============================================================================

// Resolver picks the first active rule for a product.
type Resolver struct {
	Windows *timewindow.Resolver
}

// NewResolver creates a resolver evaluating schedules in loc.
func NewResolver(loc *time.Location) *Resolver {
	return &Resolver{Windows: timewindow.NewResolver(loc)}
}

// ResolvePrice computes the effective price of product at now.
func (r *Resolver) ResolvePrice(product Product, rules []Rule, now time.Time) (Price, []core.DegenerateInputWarning, error) {
	if err := ValidateRules(rules); err != nil {
		return Price{}, nil, err
	}
	var ws core.Warnings
	p := r.resolve(product, rules, now, &ws, nil)
	return p, ws.List(), nil
}

// ResolveAll prices every product against the same rule set.
// Each degenerate rule is reported once, however many products it touches.
func (r *Resolver) ResolveAll(products []Product, rules []Rule, now time.Time) ([]Price, []core.DegenerateInputWarning, error) {
	if err := ValidateRules(rules); err != nil {
		return nil, nil, err
	}
	var ws core.Warnings
	seen := make(map[string]bool)
	out := make([]Price, 0, len(products))
	for _, p := range products {
		out = append(out, r.resolve(p, rules, now, &ws, seen))
	}
	return out, ws.List(), nil
}

func (r *Resolver) resolve(product Product, rules []Rule, now time.Time, ws *core.Warnings, seen map[string]bool) Price {
	original := product.Price
	result := Price{
		ProductID:       product.ID,
		OriginalPrice:   original,
		DiscountedPrice: original,
	}

	for _, rule := range rules {
		if !rule.Targets(product.ID, product.CategoryID) {
			continue
		}
		if !rule.Schedule.BoundsValid() {
			warnOnce(ws, seen, core.WarnInvalidDateBounds, rule.ID, "start date is after end date")
			continue
		}
		active, err := r.windows().IsActive(rule.Schedule, now)
		if err != nil {
			// IsActive only fails on malformed clocks.
			warnOnce(ws, seen, core.WarnUnparsableTime, rule.ID, err.Error())
			continue
		}
		if !active {
			continue
		}

		result.DiscountedPrice = Apply(original, rule.DiscountType, rule.DiscountAmount)
		result.HasDiscount = true
		result.DiscountLabel = Label(rule.DiscountType, rule.DiscountAmount)
		result.RuleID = rule.ID
		return result
	}
	return result
}

func (r *Resolver) windows() *timewindow.Resolver {
	if r == nil || r.Windows == nil {
		return timewindow.NewResolver(nil)
	}
	return r.Windows
}

func warnOnce(ws *core.Warnings, seen map[string]bool, code core.WarningCode, ruleID, msg string) {
	key := string(code) + "|" + ruleID
	if seen != nil {
		if seen[key] {
			return
		}
		seen[key] = true
	}
	ws.Add(code, ruleID, "rule skipped: %s", msg)
}

// =============================================================================
// DISCOUNT ARITHMETIC
// =============================================================================

// Apply returns the discounted price, floored at zero and rounded.
func Apply(original decimal.Decimal, kind DiscountType, amount decimal.Decimal) decimal.Decimal {
	var discounted decimal.Decimal
	switch kind {
	case DiscountPercentage:
		factor := decimal.NewFromInt(1).Sub(amount.Div(money.Hundred))
		discounted = original.Mul(factor)
	default:
		discounted = original.Sub(amount)
	}
	return money.Round(money.ClampZero(discounted))
}

// Label renders a short human-readable description of the discount.
func Label(kind DiscountType, amount decimal.Decimal) string {
	if kind == DiscountPercentage {
		return fmt.Sprintf("-%s%%", amount.String())
	}
	return fmt.Sprintf("-%s", amount.StringFixed(money.Scale))
}
