package core_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/backoffice-engine/core"
)

func TestValidationError_WrapsSentinel(t *testing.T) {
	err := fmt.Errorf("loading ledger: %w", core.Missing("kind", "tx-9"))

	assert.True(t, core.IsValidation(err))
	assert.ErrorIs(t, err, core.ErrValidation)

	var verr *core.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "kind", verr.Field)
	assert.Equal(t, "tx-9", verr.Subject)
	assert.Contains(t, err.Error(), "kind (tx-9)")
}

func TestValidationError_Unknown(t *testing.T) {
	err := core.Unknown("target_type", "", "menu")
	assert.Equal(t, `validation failed: target_type: unknown value "menu"`, err.Error())
	assert.False(t, core.IsValidation(errors.New("other")))
}

func TestWarnings_Collect(t *testing.T) {
	var ws core.Warnings
	assert.Nil(t, ws.List())

	ws.Add(core.WarnUnparsableTime, "rule-1", "bad start %q", "25:00")
	ws.Append(core.DegenerateInputWarning{Code: core.WarnZeroGrossWithDiscount, Subject: "table_4"})

	list := ws.List()
	require.Len(t, list, 2)
	assert.Equal(t, 2, ws.Len())
	assert.Equal(t, `bad start "25:00"`, list[0].Message)
	assert.Equal(t, `unparsable_time [rule-1]: bad start "25:00"`, list[0].Error())

	list[0].Subject = "mutated"
	assert.Equal(t, "rule-1", ws.List()[0].Subject, "List returns a copy")
}
