/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the engine packages from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

MONEY:
  Request amounts are money.Lenient: 12.5, "12.5", "12,5" and null are all
  accepted. Response amounts are decimal strings ("12.50" stays exact).

TYPES:
  Allocation:  RecordDTO, AllocateRequest, AllocationResponse
  Reports:     SalesReportResponse
  Pricing:     factory.RuleJSON, ResolvePricesRequest, ResolvePricesResponse
  Suppliers:   TransactionDTO, RecordTransactionRequest, LedgerSummaryDTO
  Closures:    ClosureInputDTO, ClosureSummaryDTO, ClosureDTO

SEE ALSO:
  - handlers.go: Uses these types
  - factory/rule.go: RuleJSON type
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/backoffice-engine/allocation"
	"github.com/warp/backoffice-engine/closure"
	"github.com/warp/backoffice-engine/core"
	"github.com/warp/backoffice-engine/factory"
	"github.com/warp/backoffice-engine/ledger"
	"github.com/warp/backoffice-engine/money"
	"github.com/warp/backoffice-engine/pricing"
)

// =============================================================================
// ALLOCATION
// =============================================================================

type ModifierDTO struct {
	Name  string        `json:"name"`
	Price money.Lenient `json:"price"`
}

// RecordDTO is one order line as exported by the POS.
type RecordDTO struct {
	ID             string        `json:"id"`
	PaymentID      string        `json:"payment_id,omitempty"`
	TableID        string        `json:"table_id,omitempty"`
	ProductID      string        `json:"product_id,omitempty"`
	Name           string        `json:"name"`
	CategoryID     string        `json:"category_id,omitempty"`
	Quantity       int           `json:"quantity"`
	UnitPrice      money.Lenient `json:"unit_price"`
	Modifiers      []ModifierDTO `json:"modifiers,omitempty"`
	Status         string        `json:"status,omitempty"`
	IsDiscountLine bool          `json:"is_discount_line,omitempty"`
	VATRate        money.Lenient `json:"vat_rate"`
}

type AllocateRequest struct {
	Lines []RecordDTO `json:"lines"`
}

type ProductLineDTO struct {
	ID                string          `json:"id"`
	SessionKey        string          `json:"session_key"`
	ProductID         string          `json:"product_id,omitempty"`
	Name              string          `json:"name"`
	CategoryID        string          `json:"category_id,omitempty"`
	Quantity          int             `json:"quantity"`
	UnitPrice         decimal.Decimal `json:"unit_price"`
	LineTotal         decimal.Decimal `json:"line_total"`
	AllocatedDiscount decimal.Decimal `json:"allocated_discount"`
	Status            string          `json:"status"`
	Modifiers         []ModifierDTO   `json:"modifiers,omitempty"`
}

type SessionDTO struct {
	Key           string          `json:"key"`
	GrossProducts decimal.Decimal `json:"gross_products"`
	TotalDiscount decimal.Decimal `json:"total_discount"`
	Net           decimal.Decimal `json:"net"`
	Factor        decimal.Decimal `json:"factor"`
	Redistributed bool            `json:"redistributed"`
	ProductCount  int             `json:"product_count"`
	DiscountCount int             `json:"discount_count"`
}

type AllocationResponse struct {
	Lines    []ProductLineDTO              `json:"lines"`
	Sessions []SessionDTO                  `json:"sessions"`
	Warnings []core.DegenerateInputWarning `json:"warnings"`
}

// =============================================================================
// SALES REPORT
// =============================================================================

type CategoryRowDTO struct {
	CategoryID string          `json:"category_id"`
	Quantity   int             `json:"quantity"`
	Revenue    decimal.Decimal `json:"revenue"`
}

type ProductRowDTO struct {
	ProductID     string          `json:"product_id,omitempty"`
	Name          string          `json:"name"`
	CategoryID    string          `json:"category_id,omitempty"`
	SoldQuantity  int             `json:"sold_quantity"`
	GiftQuantity  int             `json:"gift_quantity"`
	WasteQuantity int             `json:"waste_quantity"`
	Revenue       decimal.Decimal `json:"revenue"`
	NetOfVAT      decimal.Decimal `json:"net_of_vat"`
	VAT           decimal.Decimal `json:"vat"`
}

type TotalsDTO struct {
	Revenue       decimal.Decimal `json:"revenue"`
	NetOfVAT      decimal.Decimal `json:"net_of_vat"`
	VAT           decimal.Decimal `json:"vat"`
	SoldQuantity  int             `json:"sold_quantity"`
	GiftQuantity  int             `json:"gift_quantity"`
	WasteQuantity int             `json:"waste_quantity"`
}

type SalesReportResponse struct {
	Categories []CategoryRowDTO              `json:"categories"`
	Products   []ProductRowDTO               `json:"products"`
	Totals     TotalsDTO                     `json:"totals"`
	Sessions   []SessionDTO                  `json:"sessions"`
	Warnings   []core.DegenerateInputWarning `json:"warnings"`
}

// =============================================================================
// PRICING
// =============================================================================

type ProductDTO struct {
	ID         string        `json:"id"`
	CategoryID string        `json:"category_id,omitempty"`
	Name       string        `json:"name,omitempty"`
	Price      money.Lenient `json:"price"`
}

// ResolvePricesRequest prices products at At (RFC 3339, default now).
// When Rules is absent the stored happy-hour rules are used.
type ResolvePricesRequest struct {
	Products []ProductDTO       `json:"products"`
	Rules    []factory.RuleJSON `json:"rules,omitempty"`
	At       string             `json:"at,omitempty"`
}

type PriceDTO struct {
	ProductID       string          `json:"product_id"`
	OriginalPrice   decimal.Decimal `json:"original_price"`
	DiscountedPrice decimal.Decimal `json:"discounted_price"`
	HasDiscount     bool            `json:"has_discount"`
	DiscountLabel   string          `json:"discount_label,omitempty"`
	RuleID          string          `json:"rule_id,omitempty"`
}

type ResolvePricesResponse struct {
	At       string                        `json:"at"`
	Timezone string                        `json:"timezone"`
	Prices   []PriceDTO                    `json:"prices"`
	Warnings []core.DegenerateInputWarning `json:"warnings"`
}

// =============================================================================
// SUPPLIER LEDGER
// =============================================================================

type TransactionDTO struct {
	ID             string          `json:"id"`
	SupplierID     string          `json:"supplier_id"`
	Date           string          `json:"date"`
	Timestamp      string          `json:"timestamp"`
	Seq            int64           `json:"seq"`
	Kind           string          `json:"kind"`
	GrossAmount    decimal.Decimal `json:"gross_amount"`
	PriorBalance   decimal.Decimal `json:"prior_balance"`
	Balance        decimal.Decimal `json:"balance"`
	Description    string          `json:"description,omitempty"`
	IdempotencyKey string          `json:"idempotency_key,omitempty"`
	CreatedAt      string          `json:"created_at,omitempty"`
}

// RecordTransactionRequest records a supplier transaction. Date accepts
// YYYY-MM-DD (business timezone) or RFC 3339; empty means now.
type RecordTransactionRequest struct {
	ID             string        `json:"id,omitempty"`
	Date           string        `json:"date,omitempty"`
	Kind           string        `json:"kind"`
	GrossAmount    money.Lenient `json:"gross_amount"`
	Description    string        `json:"description,omitempty"`
	IdempotencyKey string        `json:"idempotency_key,omitempty"`
}

type RecomputeRequest struct {
	From int `json:"from"`
}

type LedgerSummaryDTO struct {
	SupplierID  string          `json:"supplier_id"`
	Purchases   decimal.Decimal `json:"purchases"`
	WaybillsIn  decimal.Decimal `json:"waybills_in"`
	Payments    decimal.Decimal `json:"payments"`
	WaybillsOut decimal.Decimal `json:"waybills_out"`
	Balance     decimal.Decimal `json:"balance"`
	Count       int             `json:"count"`
}

type DriftDTO struct {
	Index         int             `json:"index"`
	TransactionID string          `json:"transaction_id"`
	Stored        decimal.Decimal `json:"stored"`
	Expected      decimal.Decimal `json:"expected"`
}

type VerifyResponse struct {
	SupplierID string    `json:"supplier_id"`
	OK         bool      `json:"ok"`
	Drift      *DriftDTO `json:"drift,omitempty"`
}

// =============================================================================
// CASH CLOSURES
// =============================================================================

type DenominationDTO struct {
	Face  money.Lenient `json:"face"`
	Count int           `json:"count"`
}

type ExpenseDTO struct {
	Amount      money.Lenient `json:"amount"`
	Description string        `json:"description"`
}

type ClosureInputDTO struct {
	Counts         []DenominationDTO `json:"counts"`
	OpeningBalance money.Lenient     `json:"opening_balance"`
	CashSystem     money.Lenient     `json:"cash_system"`
	CCSystem       money.Lenient     `json:"cc_system"`
	CashEntered    money.Lenient     `json:"cash_entered"`
	CCEntered      money.Lenient     `json:"cc_entered"`
	Expenses       []ExpenseDTO      `json:"expenses"`
}

type ClosureSummaryDTO struct {
	CountedCash          decimal.Decimal `json:"counted_cash"`
	CountDiscrepancy     decimal.Decimal `json:"count_discrepancy"`
	EnteredTotal         decimal.Decimal `json:"entered_total"`
	SystemTotal          decimal.Decimal `json:"system_total"`
	Difference           decimal.Decimal `json:"difference"`
	Status               string          `json:"status"`
	TotalExpenses        decimal.Decimal `json:"total_expenses"`
	NetCashAfterExpenses decimal.Decimal `json:"net_cash_after_expenses"`
	ExpectedDrawer       decimal.Decimal `json:"expected_drawer"`
}

// CreateClosureRequest is a closure input plus its business date and note.
type CreateClosureRequest struct {
	BusinessDate string `json:"business_date,omitempty"`
	Note         string `json:"note,omitempty"`
	ClosureInputDTO
}

type ClosureDTO struct {
	ID           string            `json:"id"`
	BusinessDate string            `json:"business_date"`
	Note         string            `json:"note,omitempty"`
	Input        ClosureInputDTO   `json:"input"`
	Summary      ClosureSummaryDTO `json:"summary"`
	CreatedAt    string            `json:"created_at"`
	UpdatedAt    string            `json:"updated_at"`
}

// =============================================================================
// MISC
// =============================================================================

type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

type HealthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Time     string `json:"time"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toRecords(dtos []RecordDTO) []allocation.Record {
	records := make([]allocation.Record, 0, len(dtos))
	for _, d := range dtos {
		rec := allocation.Record{
			ID:             d.ID,
			PaymentID:      d.PaymentID,
			TableID:        d.TableID,
			ProductID:      d.ProductID,
			Name:           d.Name,
			CategoryID:     d.CategoryID,
			Quantity:       d.Quantity,
			UnitPrice:      d.UnitPrice.Decimal,
			Status:         allocation.Status(d.Status),
			IsDiscountLine: d.IsDiscountLine,
			VATRatePercent: d.VATRate.Decimal,
		}
		for _, m := range d.Modifiers {
			rec.Modifiers = append(rec.Modifiers, allocation.Modifier{Name: m.Name, Price: m.Price.Decimal})
		}
		records = append(records, rec)
	}
	return records
}

func toProductLineDTOs(lines []allocation.ProductLine) []ProductLineDTO {
	out := make([]ProductLineDTO, 0, len(lines))
	for _, l := range lines {
		dto := ProductLineDTO{
			ID:                l.ID,
			SessionKey:        l.SessionKey,
			ProductID:         l.ProductID,
			Name:              l.Name,
			CategoryID:        l.CategoryID,
			Quantity:          l.Quantity,
			UnitPrice:         l.UnitPrice,
			LineTotal:         l.Total(),
			AllocatedDiscount: l.AllocatedDiscount,
			Status:            string(l.Status),
		}
		for _, m := range l.Modifiers {
			dto.Modifiers = append(dto.Modifiers, ModifierDTO{Name: m.Name, Price: money.L(m.Price)})
		}
		out = append(out, dto)
	}
	return out
}

func toSessionDTOs(sessions []allocation.SessionSummary) []SessionDTO {
	out := make([]SessionDTO, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, SessionDTO{
			Key:           s.Key,
			GrossProducts: s.GrossProducts,
			TotalDiscount: s.TotalDiscount,
			Net:           s.Net,
			Factor:        s.Factor,
			Redistributed: s.Redistributed,
			ProductCount:  s.ProductCount,
			DiscountCount: s.DiscountCount,
		})
	}
	return out
}

func toSalesReportResponse(report allocation.Report, res allocation.Result) SalesReportResponse {
	resp := SalesReportResponse{
		Categories: make([]CategoryRowDTO, 0, len(report.Categories)),
		Products:   make([]ProductRowDTO, 0, len(report.Products)),
		Totals: TotalsDTO{
			Revenue:       report.Totals.Revenue,
			NetOfVAT:      report.Totals.NetOfVAT,
			VAT:           report.Totals.VAT,
			SoldQuantity:  report.Totals.SoldQuantity,
			GiftQuantity:  report.Totals.GiftQuantity,
			WasteQuantity: report.Totals.WasteQuantity,
		},
		Sessions: toSessionDTOs(res.Sessions),
		Warnings: warningsOrEmpty(res.Warnings),
	}
	for _, c := range report.Categories {
		resp.Categories = append(resp.Categories, CategoryRowDTO{CategoryID: c.CategoryID, Quantity: c.Quantity, Revenue: c.Revenue})
	}
	for _, p := range report.Products {
		resp.Products = append(resp.Products, ProductRowDTO{
			ProductID:     p.ProductID,
			Name:          p.Name,
			CategoryID:    p.CategoryID,
			SoldQuantity:  p.SoldQuantity,
			GiftQuantity:  p.GiftQuantity,
			WasteQuantity: p.WasteQuantity,
			Revenue:       p.Revenue,
			NetOfVAT:      p.NetOfVAT,
			VAT:           p.VAT,
		})
	}
	return resp
}

func toProducts(dtos []ProductDTO) []pricing.Product {
	out := make([]pricing.Product, 0, len(dtos))
	for _, d := range dtos {
		out = append(out, pricing.Product{ID: d.ID, CategoryID: d.CategoryID, Name: d.Name, Price: d.Price.Decimal})
	}
	return out
}

func toPriceDTOs(prices []pricing.Price) []PriceDTO {
	out := make([]PriceDTO, 0, len(prices))
	for _, p := range prices {
		out = append(out, PriceDTO{
			ProductID:       p.ProductID,
			OriginalPrice:   p.OriginalPrice,
			DiscountedPrice: p.DiscountedPrice,
			HasDiscount:     p.HasDiscount,
			DiscountLabel:   p.DiscountLabel,
			RuleID:          p.RuleID,
		})
	}
	return out
}

// toTransactionDTO renders Date as YYYY-MM-DD in the business timezone, the
// same shape RecordTransactionRequest accepts and ClosureDTO.BusinessDate
// uses. Timestamp carries the full instant for rows recorded with a time.
func toTransactionDTO(tx ledger.Transaction, loc *time.Location) TransactionDTO {
	local := tx.Date.In(loc)
	dto := TransactionDTO{
		ID:             tx.ID,
		SupplierID:     tx.SupplierID,
		Date:           local.Format("2006-01-02"),
		Timestamp:      local.Format(time.RFC3339),
		Seq:            tx.Seq,
		Kind:           string(tx.Kind),
		GrossAmount:    tx.GrossAmount,
		PriorBalance:   tx.PriorBalance,
		Balance:        tx.Balance,
		Description:    tx.Description,
		IdempotencyKey: tx.IdempotencyKey,
	}
	if !tx.CreatedAt.IsZero() {
		dto.CreatedAt = tx.CreatedAt.Format(time.RFC3339)
	}
	return dto
}

func toTransactionDTOs(txs []ledger.Transaction, loc *time.Location) []TransactionDTO {
	out := make([]TransactionDTO, 0, len(txs))
	for _, tx := range txs {
		out = append(out, toTransactionDTO(tx, loc))
	}
	return out
}

func toLedgerSummaryDTO(s ledger.Summary) LedgerSummaryDTO {
	return LedgerSummaryDTO{
		SupplierID:  s.SupplierID,
		Purchases:   s.Purchases,
		WaybillsIn:  s.WaybillsIn,
		Payments:    s.Payments,
		WaybillsOut: s.WaybillsOut,
		Balance:     s.Balance,
		Count:       s.Count,
	}
}

func (d ClosureInputDTO) toInput() closure.Input {
	in := closure.Input{
		OpeningBalance: d.OpeningBalance.Decimal,
		CashSystem:     d.CashSystem.Decimal,
		CCSystem:       d.CCSystem.Decimal,
		CashEntered:    d.CashEntered.Decimal,
		CCEntered:      d.CCEntered.Decimal,
	}
	for _, c := range d.Counts {
		in.Counts = append(in.Counts, closure.DenominationCount{Face: c.Face.Decimal, Count: c.Count})
	}
	for _, e := range d.Expenses {
		in.Expenses = append(in.Expenses, closure.Expense{Amount: e.Amount.Decimal, Description: e.Description})
	}
	return in
}

func toClosureInputDTO(in closure.Input) ClosureInputDTO {
	dto := ClosureInputDTO{
		Counts:         make([]DenominationDTO, 0, len(in.Counts)),
		OpeningBalance: money.L(in.OpeningBalance),
		CashSystem:     money.L(in.CashSystem),
		CCSystem:       money.L(in.CCSystem),
		CashEntered:    money.L(in.CashEntered),
		CCEntered:      money.L(in.CCEntered),
		Expenses:       make([]ExpenseDTO, 0, len(in.Expenses)),
	}
	for _, c := range in.Counts {
		dto.Counts = append(dto.Counts, DenominationDTO{Face: money.L(c.Face), Count: c.Count})
	}
	for _, e := range in.Expenses {
		dto.Expenses = append(dto.Expenses, ExpenseDTO{Amount: money.L(e.Amount), Description: e.Description})
	}
	return dto
}

func toClosureSummaryDTO(s closure.Summary) ClosureSummaryDTO {
	return ClosureSummaryDTO{
		CountedCash:          s.CountedCash,
		CountDiscrepancy:     s.CountDiscrepancy,
		EnteredTotal:         s.EnteredTotal,
		SystemTotal:          s.SystemTotal,
		Difference:           s.Difference,
		Status:               string(s.Status),
		TotalExpenses:        s.TotalExpenses,
		NetCashAfterExpenses: s.NetCashAfterExpenses,
		ExpectedDrawer:       s.ExpectedDrawer,
	}
}

// toClosureDTO renders the business date as a calendar day in loc.
func toClosureDTO(c closure.Closure, loc *time.Location) ClosureDTO {
	return ClosureDTO{
		ID:           c.ID,
		BusinessDate: c.BusinessDate.In(loc).Format("2006-01-02"),
		Note:         c.Note,
		Input:        toClosureInputDTO(c.Input),
		Summary:      toClosureSummaryDTO(c.Summary),
		CreatedAt:    c.CreatedAt.Format(time.RFC3339),
		UpdatedAt:    c.UpdatedAt.Format(time.RFC3339),
	}
}

func warningsOrEmpty(ws []core.DegenerateInputWarning) []core.DegenerateInputWarning {
	if ws == nil {
		return []core.DegenerateInputWarning{}
	}
	return ws
}
