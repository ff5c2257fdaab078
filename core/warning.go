package core

import "fmt"

// WarningCode classifies a non-fatal input problem.
type WarningCode string

const (
	WarnZeroGrossWithDiscount WarningCode = "zero_gross_with_discount"
	WarnUnparsableTime        WarningCode = "unparsable_time"
	WarnInvalidDateBounds     WarningCode = "invalid_date_bounds"
	WarnNonPositiveQuantity   WarningCode = "non_positive_quantity"
	WarnUnknownStatus         WarningCode = "unknown_status"
)

// DegenerateInputWarning describes an item that was skipped or passed
// through unchanged. It satisfies error so it can be logged or wrapped,
// but engines return it as a value and keep going.
type DegenerateInputWarning struct {
	Code    WarningCode `json:"code"`
	Subject string      `json:"subject"`
	Message string      `json:"message"`
}

func (w DegenerateInputWarning) Error() string {
	return fmt.Sprintf("%s [%s]: %s", w.Code, w.Subject, w.Message)
}

// Warnings accumulates DegenerateInputWarnings during a batch.
// The zero value is ready to use.
type Warnings struct {
	list []DegenerateInputWarning
}

// Add records a warning.
func (ws *Warnings) Add(code WarningCode, subject, format string, args ...any) {
	ws.list = append(ws.list, DegenerateInputWarning{
		Code:    code,
		Subject: subject,
		Message: fmt.Sprintf(format, args...),
	})
}

// Append merges warnings produced elsewhere.
func (ws *Warnings) Append(others ...DegenerateInputWarning) {
	ws.list = append(ws.list, others...)
}

// List returns the collected warnings, or nil when there are none.
func (ws *Warnings) List() []DegenerateInputWarning {
	if len(ws.list) == 0 {
		return nil
	}
	out := make([]DegenerateInputWarning, len(ws.list))
	copy(out, ws.list)
	return out
}

func (ws *Warnings) Len() int { return len(ws.list) }
