package money

import (
	"bytes"
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Lenient is a decimal that never fails to decode.
// Accepts 12.5, "12.5", "12,5" and null; anything else decodes to zero.
type Lenient struct {
	decimal.Decimal
}

// L wraps a decimal as a Lenient value.
func L(d decimal.Decimal) Lenient { return Lenient{Decimal: d} }

func (l *Lenient) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		l.Decimal = decimal.Zero
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			l.Decimal = decimal.Zero
			return nil
		}
		l.Decimal = Parse(s)
		return nil
	}
	l.Decimal = Parse(string(data))
	return nil
}

func (l Lenient) MarshalJSON() ([]byte, error) {
	return l.Decimal.MarshalJSON()
}
