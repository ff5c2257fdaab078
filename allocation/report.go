package allocation

import (
	"sort"

	"github.com/shopspring/decimal"
	"github.com/warp/backoffice-engine/money"
)

// =============================================================================
// SALES REPORT - aggregation of allocated lines
// =============================================================================

// CategoryRow is one row of the per-category report.
type CategoryRow struct {
	CategoryID string
	Quantity   int // billable units
	Revenue    decimal.Decimal
}

// ProductRow is one row of the per-product report.
type ProductRow struct {
	ProductID     string
	Name          string
	CategoryID    string
	SoldQuantity  int
	GiftQuantity  int
	WasteQuantity int
	Revenue       decimal.Decimal // VAT inclusive
	NetOfVAT      decimal.Decimal
	VAT           decimal.Decimal
}

// Totals sums the product rows.
type Totals struct {
	Revenue       decimal.Decimal
	NetOfVAT      decimal.Decimal
	VAT           decimal.Decimal
	SoldQuantity  int
	GiftQuantity  int
	WasteQuantity int
}

// Report is the aggregated view renderers and exporters consume.
type Report struct {
	Categories []CategoryRow
	Products   []ProductRow
	Totals     Totals
}

type productAcc struct {
	row     ProductRow
	revenue decimal.Decimal
	net     decimal.Decimal
}

// BuildReport aggregates product lines, normally the output of Allocate.
//
// Revenue counts paid and sent lines at Total(). Gift and waste lines
// only add to their quantity columns. VAT is extracted from the VAT
// inclusive revenue, line by line, at each line's own rate.
func BuildReport(lines []ProductLine) Report {
	products := make(map[string]*productAcc)
	categories := make(map[string]*CategoryRow)
	var productOrder []string

	for _, l := range lines {
		key := l.ProductID
		if key == "" {
			key = l.Name
		}
		acc, ok := products[key]
		if !ok {
			acc = &productAcc{
				row:     ProductRow{ProductID: l.ProductID, Name: l.Name, CategoryID: l.CategoryID},
				revenue: decimal.Zero,
				net:     decimal.Zero,
			}
			products[key] = acc
			productOrder = append(productOrder, key)
		}

		switch l.Status {
		case StatusGift:
			acc.row.GiftQuantity += l.Quantity
			continue
		case StatusWaste:
			acc.row.WasteQuantity += l.Quantity
			continue
		}
		if !l.Status.Billable() {
			continue
		}

		total := l.Total()
		acc.row.SoldQuantity += l.Quantity
		acc.revenue = acc.revenue.Add(total)
		acc.net = acc.net.Add(NetOfVAT(total, l.VATRatePercent))

		cat, ok := categories[l.CategoryID]
		if !ok {
			cat = &CategoryRow{CategoryID: l.CategoryID, Revenue: decimal.Zero}
			categories[l.CategoryID] = cat
		}
		cat.Quantity += l.Quantity
		cat.Revenue = cat.Revenue.Add(total)
	}

	report := Report{Totals: Totals{Revenue: decimal.Zero, NetOfVAT: decimal.Zero, VAT: decimal.Zero}}

	for _, key := range productOrder {
		acc := products[key]
		row := acc.row
		row.Revenue = money.Round(acc.revenue)
		row.NetOfVAT = money.Round(acc.net)
		row.VAT = row.Revenue.Sub(row.NetOfVAT)
		report.Products = append(report.Products, row)

		report.Totals.Revenue = report.Totals.Revenue.Add(row.Revenue)
		report.Totals.NetOfVAT = report.Totals.NetOfVAT.Add(row.NetOfVAT)
		report.Totals.VAT = report.Totals.VAT.Add(row.VAT)
		report.Totals.SoldQuantity += row.SoldQuantity
		report.Totals.GiftQuantity += row.GiftQuantity
		report.Totals.WasteQuantity += row.WasteQuantity
	}
	sort.SliceStable(report.Products, func(i, j int) bool {
		a, b := report.Products[i], report.Products[j]
		if !a.Revenue.Equal(b.Revenue) {
			return a.Revenue.GreaterThan(b.Revenue)
		}
		return a.Name < b.Name
	})

	for _, c := range categories {
		row := *c
		row.Revenue = money.Round(row.Revenue)
		report.Categories = append(report.Categories, row)
	}
	sort.Slice(report.Categories, func(i, j int) bool {
		a, b := report.Categories[i], report.Categories[j]
		if !a.Revenue.Equal(b.Revenue) {
			return a.Revenue.GreaterThan(b.Revenue)
		}
		return a.CategoryID < b.CategoryID
	})

	return report
}

// NetOfVAT strips VAT from a VAT-inclusive amount: amount / (1 + rate/100).
func NetOfVAT(amount, ratePercent decimal.Decimal) decimal.Decimal {
	if ratePercent.IsZero() {
		return amount
	}
	divisor := decimal.NewFromInt(1).Add(ratePercent.Div(money.Hundred))
	if divisor.IsZero() {
		return amount
	}
	return amount.Div(divisor)
}
