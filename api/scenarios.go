/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with realistic
	back-office data. Each scenario goes through the same services the
	HTTP handlers use, so loaded data is consistent (running balances,
	closure summaries, validated rules).

AVAILABLE SCENARIOS:

	happy-hours:     Overnight cocktail window + weekday beer hour
	supplier-ledger: Invoices, payments, waybills, one backdated invoice
	cash-closure:    A short drawer with two expenses
	full-day:        All of the above

HOW SCENARIOS WORK:
 1. Reset database (clear all data)
 2. Store happy-hour rules via the factory
 3. Record supplier transactions via SupplierLedger
 4. Open a closure via the closure service

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "supplier-ledger"}

NOTE:

	Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: the services scenarios write through
  - factory/rule.go: Rule JSON definitions
*/
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/warp/backoffice-engine/closure"
	"github.com/warp/backoffice-engine/factory"
	"github.com/warp/backoffice-engine/ledger"
	"github.com/warp/backoffice-engine/money"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "happy-hours",
		Name:        "Happy Hours",
		Description: "Overnight 20% cocktail window and a fixed-discount weekday beer hour",
		Category:    "pricing",
	},
	{
		ID:          "supplier-ledger",
		Name:        "Supplier Ledger",
		Description: "Dairy supplier with invoices, a payment, waybills and a backdated invoice",
		Category:    "ledger",
	},
	{
		ID:          "cash-closure",
		Name:        "Cash Closure",
		Description: "End-of-day count that comes up short, plus petty-cash expenses",
		Category:    "closure",
	},
	{
		ID:          "full-day",
		Name:        "Full Day",
		Description: "Happy hours, supplier ledger and cash closure together",
		Category:    "all",
	},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.scenarioMu.Lock()
	current := h.currentScenario
	h.scenarioMu.Unlock()

	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, nil)
}

// LoadScenario resets the database and loads a scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := decodeJSON(r, &req, false); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if err := h.loadScenario(r.Context(), req.ScenarioID); err != nil {
		if errors.Is(err, errUnknownScenario) {
			writeError(w, http.StatusBadRequest, "Unknown scenario", fmt.Errorf("%q", req.ScenarioID))
			return
		}
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

// ResetDatabase clears all data.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if h.Resetter == nil {
		writeError(w, http.StatusInternalServerError, "Reset not supported", nil)
		return
	}
	if err := h.Resetter.Reset(r.Context()); err != nil {
		writeDomainError(w, r, err)
		return
	}
	h.setScenario("")
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

var errUnknownScenario = errors.New("unknown scenario")

func (h *Handler) loadScenario(ctx context.Context, id string) error {
	loaders := map[string][]func(context.Context) error{
		"happy-hours":     {h.loadHappyHoursScenario},
		"supplier-ledger": {h.loadSupplierLedgerScenario},
		"cash-closure":    {h.loadCashClosureScenario},
		"full-day":        {h.loadHappyHoursScenario, h.loadSupplierLedgerScenario, h.loadCashClosureScenario},
	}
	steps, ok := loaders[id]
	if !ok {
		return errUnknownScenario
	}

	if h.Resetter != nil {
		if err := h.Resetter.Reset(ctx); err != nil {
			return fmt.Errorf("reset: %w", err)
		}
	}
	for _, step := range steps {
		if err := step(ctx); err != nil {
			return err
		}
	}
	h.setScenario(id)
	return nil
}

func (h *Handler) setScenario(id string) {
	h.scenarioMu.Lock()
	h.currentScenario = id
	h.scenarioMu.Unlock()
}

// =============================================================================
// LOADERS
// =============================================================================

func (h *Handler) loadHappyHoursScenario(ctx context.Context) error {
	weekday := factory.DayJSON{Active: true, Start: "17:00", End: "19:00"}
	late := factory.DayJSON{Active: true, Start: "22:00", End: "02:00"}

	rules := []factory.RuleJSON{
		{
			ID:             "hh-cocktails",
			Name:           "Late Night Cocktails",
			TargetType:     "category",
			TargetIDs:      []string{"cocktails"},
			DiscountType:   "percentage",
			DiscountAmount: money.L(money.Parse("20")),
			DaysConfig: map[string]factory.DayJSON{
				"thursday": late,
				"friday":   late,
				"saturday": late,
			},
		},
		{
			ID:             "hh-draft-beer",
			Name:           "Beer O'Clock",
			TargetType:     "product",
			TargetIDs:      []string{"beer-draft-50cl"},
			DiscountType:   "fixed",
			DiscountAmount: money.L(money.Parse("15")),
			DaysConfig: map[string]factory.DayJSON{
				"monday":    weekday,
				"tuesday":   weekday,
				"wednesday": weekday,
				"thursday":  weekday,
				"friday":    weekday,
			},
		},
	}

	for _, rj := range rules {
		rule, err := h.RuleFactory.FromJSON(rj)
		if err != nil {
			return fmt.Errorf("rule %s: %w", rj.ID, err)
		}
		if err := h.Rules.SaveRule(ctx, rule); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) loadSupplierLedgerScenario(ctx context.Context) error {
	start := h.today().AddDate(0, 0, -10)
	on := func(days int) time.Time { return start.AddDate(0, 0, days) }

	// Recorded in arrival order; the day-3 invoice is entered late and
	// lands between the day-1 invoice and the day-5 payment.
	txs := []ledger.Transaction{
		{Date: on(1), Kind: ledger.KindPurchaseInvoice, GrossAmount: money.Parse("1200"), Description: "Weekly dairy order"},
		{Date: on(5), Kind: ledger.KindPayment, GrossAmount: money.Parse("500"), Description: "Bank transfer"},
		{Date: on(7), Kind: ledger.KindWaybillIn, GrossAmount: money.Parse("150.75"), Description: "Cream delivery, invoice to follow"},
		{Date: on(3), Kind: ledger.KindPurchaseInvoice, GrossAmount: money.Parse("300"), Description: "Cheese, backdated"},
		{Date: on(8), Kind: ledger.KindWaybillOut, GrossAmount: money.Parse("80"), Description: "Returned spoiled yoghurt"},
	}
	for i, tx := range txs {
		tx.SupplierID = "sup-dairy"
		tx.IdempotencyKey = fmt.Sprintf("scenario-dairy-%d", i+1)
		if _, err := h.Suppliers.Record(ctx, tx); err != nil {
			return fmt.Errorf("supplier transaction %d: %w", i+1, err)
		}
	}
	return nil
}

func (h *Handler) loadCashClosureScenario(ctx context.Context) error {
	in := closure.Input{
		Counts: []closure.DenominationCount{
			{Face: money.Parse("200"), Count: 4},
			{Face: money.Parse("100"), Count: 3},
			{Face: money.Parse("50"), Count: 5},
			{Face: money.Parse("20"), Count: 7},
			{Face: money.Parse("5"), Count: 4},
			{Face: money.Parse("1"), Count: 10},
		},
		OpeningBalance: money.Parse("500"),
		CashSystem:     money.Parse("1550"),
		CCSystem:       money.Parse("3200"),
		CashEntered:    money.Parse("1520"),
		CCEntered:      money.Parse("3200"),
	}

	c, err := h.Closures.Open(ctx, h.today(), "Demo closure", in)
	if err != nil {
		return err
	}
	for _, e := range []closure.Expense{
		{Amount: money.Parse("45"), Description: "Ice"},
		{Amount: money.Parse("120.50"), Description: "Cleaning supplies"},
	} {
		if _, err := h.Closures.AddExpense(ctx, c.ID, e); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) today() time.Time {
	now := h.Now().In(h.Location)
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, h.Location)
}
