package factory

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/backoffice-engine/core"
	"github.com/warp/backoffice-engine/pricing"
)

const beerHour = `{
	"id": "hh-beer",
	"name": "Beer happy hour",
	"target_type": "category",
	"target_ids": ["beer", "cider"],
	"discount_type": "percentage",
	"discount_amount": "25,5",
	"start_date": "2025-03-01",
	"end_date": "2025-03-31",
	"days_config": {
		"monday": {"active": true, "start": "17:00", "end": "19:00"},
		"Fri": {"active": true, "start": "22:00", "end": "02:00"},
		"0": {"active": false, "start": "", "end": ""}
	}
}`

func TestParseRule_FullDefinition(t *testing.T) {
	// GIVEN: A complete JSON rule with mixed weekday keys and a comma amount
	// WHEN: Parsing
	// THEN: All fields land on the pricing.Rule
	rule, err := NewRuleFactory().ParseRule(beerHour)
	require.NoError(t, err)

	assert.Equal(t, "hh-beer", rule.ID)
	assert.Equal(t, pricing.TargetCategory, rule.TargetType)
	assert.Equal(t, []string{"beer", "cider"}, rule.TargetIDs)
	assert.Equal(t, pricing.DiscountPercentage, rule.DiscountType)
	assert.Equal(t, "25.5", rule.DiscountAmount.String())

	require.NotNil(t, rule.Schedule.StartDate)
	assert.Equal(t, time.March, rule.Schedule.StartDate.Month())
	assert.Equal(t, 31, rule.Schedule.EndDate.Day())

	require.Len(t, rule.Schedule.Days, 3)
	assert.Equal(t, "22:00", rule.Schedule.Days[time.Friday].Start)
	assert.False(t, rule.Schedule.Days[time.Sunday].Active)
	assert.Equal(t, []time.Weekday{time.Monday, time.Friday}, ActiveDays(rule))
}

func TestParseRule_AbsentTargetIDsFailsValidation(t *testing.T) {
	_, err := NewRuleFactory().ParseRule(`{"id":"x","target_type":"product","discount_type":"fixed","discount_amount":5}`)
	require.Error(t, err)

	var verr *core.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "target_ids", verr.Field)
	assert.Equal(t, "x", verr.Subject)
}

func TestParseRule_EmptyTargetIDsIsValid(t *testing.T) {
	rule, err := NewRuleFactory().ParseRule(`{"id":"x","target_type":"product","target_ids":[],"discount_type":"fixed","discount_amount":5}`)
	require.NoError(t, err)
	assert.NotNil(t, rule.TargetIDs)
	assert.Empty(t, rule.TargetIDs)
}

func TestParseRule_Errors(t *testing.T) {
	f := NewRuleFactory()

	_, err := f.ParseRule(`{not json`)
	assert.Error(t, err)

	_, err = f.ParseRule(`{"id":"x","target_type":"product","target_ids":["p"],"discount_type":"fixed","start_date":"01/03/2025"}`)
	assert.ErrorContains(t, err, "start_date")

	_, err = f.ParseRule(`{"id":"x","target_type":"product","target_ids":["p"],"discount_type":"fixed","days_config":{"someday":{"active":true}}}`)
	assert.ErrorContains(t, err, "someday")

	_, err = f.ParseRule(`{"id":"x","target_type":"table","target_ids":["p"],"discount_type":"fixed"}`)
	assert.True(t, core.IsValidation(err))
}

func TestParseRules_PreservesOrder(t *testing.T) {
	rules, err := NewRuleFactory().ParseRules(`[
		{"id":"first","target_type":"product","target_ids":["p"],"discount_type":"fixed","discount_amount":1},
		{"id":"second","target_type":"product","target_ids":["p"],"discount_type":"percentage","discount_amount":50}
	]`)
	require.NoError(t, err)
	require.Len(t, rules, 2)
	assert.Equal(t, "first", rules[0].ID)
	assert.Equal(t, "second", rules[1].ID)
}

func TestToJSON_RoundTrip(t *testing.T) {
	f := NewRuleFactory()
	rule, err := f.ParseRule(beerHour)
	require.NoError(t, err)

	raw, err := json.Marshal(f.ToJSON(rule))
	require.NoError(t, err)

	again, err := f.ParseRule(string(raw))
	require.NoError(t, err)
	assert.Equal(t, rule.TargetIDs, again.TargetIDs)
	assert.True(t, rule.DiscountAmount.Equal(again.DiscountAmount))
	assert.Equal(t, rule.Schedule.Days, again.Schedule.Days)
	assert.True(t, rule.Schedule.EndDate.Equal(*again.Schedule.EndDate))
}
