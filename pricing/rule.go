/*
Package pricing resolves happy-hour (time-windowed promotional) prices.

KEY CONCEPTS:
  - Rule: a promotion targeting products or categories, with a percentage
    or fixed discount and a weekly schedule (timewindow.Schedule)
  - Product: what is being priced (id, category, list price)
  - Price: the outcome (original, discounted, flag, label, rule id)

SELECTION:
  First match wins, in input order. A later rule with a bigger discount
  does NOT override an earlier active one.

  A rule matches a product when its TargetIDs contain the product id, or
  when it targets categories and TargetIDs contain the product's category,
  AND its schedule is active at the evaluation instant.

DISCOUNT:
  percentage: price × (1 − amount/100)
  fixed:      price − amount
  Clamped at zero and rounded to the currency minor unit.

FAILURES:
  - Missing or unknown target_type / target_ids / discount_type:
    core.ValidationError, the whole call fails.
  - Unparsable schedule clocks or reversed date bounds:
    core.DegenerateInputWarning, the rule is skipped.

SEE ALSO:
  - timewindow/timewindow.go: schedule activity
  - factory/rule.go: JSON rule definitions
*/
package pricing

import (
	"slices"

	"github.com/shopspring/decimal"
	"github.com/warp/backoffice-engine/core"
	"github.com/warp/backoffice-engine/timewindow"
)

// =============================================================================
// RULE
// =============================================================================

type TargetType string

const (
	TargetProduct  TargetType = "product"
	TargetCategory TargetType = "category"
)

type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

// Rule is a happy-hour promotion.
// TargetIDs is a set; nil means the field was absent upstream.
type Rule struct {
	ID             string
	Name           string
	TargetType     TargetType
	TargetIDs      []string
	DiscountType   DiscountType
	DiscountAmount decimal.Decimal
	Schedule       timewindow.Schedule
}

// Targets reports whether the rule is aimed at the given product.
// A matching product id is enough for either target type.
func (r Rule) Targets(productID, categoryID string) bool {
	if slices.Contains(r.TargetIDs, productID) {
		return true
	}
	return r.TargetType == TargetCategory && categoryID != "" && slices.Contains(r.TargetIDs, categoryID)
}

// Validate checks the rule's discriminators.
func (r Rule) Validate() error {
	switch r.TargetType {
	case TargetProduct, TargetCategory:
	case "":
		return core.Missing("target_type", r.ID)
	default:
		return core.Unknown("target_type", r.ID, string(r.TargetType))
	}
	if r.TargetIDs == nil {
		return core.Missing("target_ids", r.ID)
	}
	switch r.DiscountType {
	case DiscountPercentage, DiscountFixed:
	case "":
		return core.Missing("discount_type", r.ID)
	default:
		return core.Unknown("discount_type", r.ID, string(r.DiscountType))
	}
	return nil
}

// ValidateRules validates every rule, returning the first failure.
func ValidateRules(rules []Rule) error {
	for _, r := range rules {
		if err := r.Validate(); err != nil {
			return err
		}
	}
	return nil
}
