/*
Package factory provides JSON to Go happy-hour rule conversion.

PURPOSE:
  Converts JSON rule definitions, as stored by the back office and posted
  by the admin UI, into pricing.Rule values. Managers edit promotions
  without code changes; the factory produces the Go structs the resolver
  consumes.

JSON SCHEMA:
  {
    "id": "hh-beer",
    "name": "Beer happy hour",
    "target_type": "category",
    "target_ids": ["beer", "cider"],
    "discount_type": "percentage",
    "discount_amount": 25,
    "start_date": "2025-03-01",
    "end_date": "2025-03-31",
    "days_config": {
      "monday": {"active": true, "start": "17:00", "end": "19:00"},
      "friday": {"active": true, "start": "22:00", "end": "02:00"}
    }
  }

KEY FEATURES:
  - discount_amount accepts numbers, numeric strings and "12,5"
  - start_date / end_date accept YYYY-MM-DD or RFC 3339
  - days_config keys accept English names, 3-letter abbreviations or 0-6
  - target_ids absent stays nil so validation can tell absent from empty

USAGE:
  f := NewRuleFactory()
  rule, err := f.ParseRule(jsonString)
  rules, err := f.ParseRules(jsonArray)

SEE ALSO:
  - pricing/rule.go: Rule type definition
  - store/sqlite/sqlite.go: happy_hour_rules stores RuleJSON documents
*/
package factory

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/warp/backoffice-engine/money"
	"github.com/warp/backoffice-engine/pricing"
	"github.com/warp/backoffice-engine/timewindow"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// RuleJSON is the JSON representation of a happy-hour rule.
type RuleJSON struct {
	ID             string             `json:"id"`
	Name           string             `json:"name,omitempty"`
	TargetType     string             `json:"target_type"`
	TargetIDs      []string           `json:"target_ids"`
	DiscountType   string             `json:"discount_type"`
	DiscountAmount money.Lenient      `json:"discount_amount"`
	StartDate      string             `json:"start_date,omitempty"`
	EndDate        string             `json:"end_date,omitempty"`
	DaysConfig     map[string]DayJSON `json:"days_config,omitempty"`
}

// DayJSON is one weekday's window.
type DayJSON struct {
	Active bool   `json:"active"`
	Start  string `json:"start"`
	End    string `json:"end"`
}

const dateLayout = "2006-01-02"

// =============================================================================
// RULE FACTORY
// =============================================================================

// RuleFactory converts JSON rules to pricing.Rule.
type RuleFactory struct{}

func NewRuleFactory() *RuleFactory {
	return &RuleFactory{}
}

// ParseRule parses a JSON object into a validated Rule.
func (f *RuleFactory) ParseRule(jsonStr string) (pricing.Rule, error) {
	var rj RuleJSON
	if err := json.Unmarshal([]byte(jsonStr), &rj); err != nil {
		return pricing.Rule{}, fmt.Errorf("failed to parse rule JSON: %w", err)
	}
	return f.FromJSON(rj)
}

// ParseRules parses a JSON array of rules, preserving order.
func (f *RuleFactory) ParseRules(jsonStr string) ([]pricing.Rule, error) {
	var rjs []RuleJSON
	if err := json.Unmarshal([]byte(jsonStr), &rjs); err != nil {
		return nil, fmt.Errorf("failed to parse rules JSON: %w", err)
	}
	return f.FromJSONList(rjs)
}

// FromJSONList converts a list, stopping at the first invalid rule.
func (f *RuleFactory) FromJSONList(rjs []RuleJSON) ([]pricing.Rule, error) {
	rules := make([]pricing.Rule, 0, len(rjs))
	for _, rj := range rjs {
		rule, err := f.FromJSON(rj)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

// FromJSON converts RuleJSON to pricing.Rule and validates its discriminators.
func (f *RuleFactory) FromJSON(rj RuleJSON) (pricing.Rule, error) {
	rule := pricing.Rule{
		ID:             rj.ID,
		Name:           rj.Name,
		TargetType:     pricing.TargetType(strings.ToLower(strings.TrimSpace(rj.TargetType))),
		TargetIDs:      rj.TargetIDs,
		DiscountType:   pricing.DiscountType(strings.ToLower(strings.TrimSpace(rj.DiscountType))),
		DiscountAmount: rj.DiscountAmount.Decimal,
	}

	var err error
	if rule.Schedule.StartDate, err = parseDate(rj.StartDate); err != nil {
		return pricing.Rule{}, fmt.Errorf("rule %s: invalid start_date: %w", rj.ID, err)
	}
	if rule.Schedule.EndDate, err = parseDate(rj.EndDate); err != nil {
		return pricing.Rule{}, fmt.Errorf("rule %s: invalid end_date: %w", rj.ID, err)
	}

	if len(rj.DaysConfig) > 0 {
		rule.Schedule.Days = make(map[time.Weekday]timewindow.DaySchedule, len(rj.DaysConfig))
		for name, d := range rj.DaysConfig {
			wd, ok := timewindow.ParseWeekday(name)
			if !ok {
				return pricing.Rule{}, fmt.Errorf("rule %s: unknown weekday %q", rj.ID, name)
			}
			rule.Schedule.Days[wd] = timewindow.DaySchedule{Active: d.Active, Start: d.Start, End: d.End}
		}
	}

	if err := rule.Validate(); err != nil {
		return pricing.Rule{}, err
	}
	return rule, nil
}

// ToJSON converts a Rule back to RuleJSON. Weekday keys are lower-case
// English names.
func (f *RuleFactory) ToJSON(rule pricing.Rule) RuleJSON {
	rj := RuleJSON{
		ID:             rule.ID,
		Name:           rule.Name,
		TargetType:     string(rule.TargetType),
		TargetIDs:      rule.TargetIDs,
		DiscountType:   string(rule.DiscountType),
		DiscountAmount: money.L(rule.DiscountAmount),
	}
	if rule.Schedule.StartDate != nil {
		rj.StartDate = rule.Schedule.StartDate.Format(dateLayout)
	}
	if rule.Schedule.EndDate != nil {
		rj.EndDate = rule.Schedule.EndDate.Format(dateLayout)
	}
	if len(rule.Schedule.Days) > 0 {
		rj.DaysConfig = make(map[string]DayJSON, len(rule.Schedule.Days))
		for wd, d := range rule.Schedule.Days {
			rj.DaysConfig[strings.ToLower(wd.String())] = DayJSON{Active: d.Active, Start: d.Start, End: d.End}
		}
	}
	return rj
}

// ToJSONList converts rules in order.
func (f *RuleFactory) ToJSONList(rules []pricing.Rule) []RuleJSON {
	out := make([]RuleJSON, 0, len(rules))
	for _, r := range rules {
		out = append(out, f.ToJSON(r))
	}
	return out
}

// =============================================================================
// PARSING HELPERS
// =============================================================================

func parseDate(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if t, err := time.Parse(dateLayout, s); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ActiveDays lists the weekdays with an active window, Sunday first.
func ActiveDays(rule pricing.Rule) []time.Weekday {
	var days []time.Weekday
	for wd, d := range rule.Schedule.Days {
		if d.Active {
			days = append(days, wd)
		}
	}
	sort.Slice(days, func(i, j int) bool { return days[i] < days[j] })
	return days
}
