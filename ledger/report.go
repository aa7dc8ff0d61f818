/*
report.go - Per-department income/expenditure aggregation

PURPOSE:
  For a date or month window:
    income      = sum of bar/kitchen/front_desk record financial amounts
    expenditure = sum of storekeeper issued quantity x unit price
    net         = income - expenditure
  Income lands on the submitting department's collection (front_desk ->
  Rooms, bar -> Bar, kitchen -> Restaurant). Expenditure is attributed per
  item through the configuration graph, defaulting to Provisions.
*/
package ledger

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/lodgekeeper/ops-engine/catalog"
	"github.com/lodgekeeper/ops-engine/record"
)

// DepartmentReport aggregates a window by business collection.
type DepartmentReport struct {
	From record.Date
	To   record.Date

	Income      map[string]decimal.Decimal
	Expenditure map[string]decimal.Decimal

	TotalIncome      decimal.Decimal
	TotalExpenditure decimal.Decimal
	Net              decimal.Decimal
}

type Reporter struct {
	Store   record.Store
	Catalog *catalog.Loader
}

func NewReporter(store record.Store, loader *catalog.Loader) *Reporter {
	return &Reporter{Store: store, Catalog: loader}
}

// Window builds the report for [from, to] inclusive.
func (r *Reporter) Window(ctx context.Context, from, to record.Date) (DepartmentReport, error) {
	report := DepartmentReport{
		From:        from,
		To:          to,
		Income:      make(map[string]decimal.Decimal),
		Expenditure: make(map[string]decimal.Decimal),
	}

	graph, err := r.Catalog.Graph(ctx)
	if err != nil {
		return DepartmentReport{}, err
	}

	// The whole history is queried and resolved first; filtering before
	// resolution could let a superseded in-window version count when its
	// replacement landed outside the window.
	records, err := r.Store.Query(ctx, record.Query{Order: record.OrderByVersion})
	if err != nil {
		return DepartmentReport{}, err
	}

	for _, rec := range record.Projectable(record.ResolveLatest(records)) {
		switch rec.EntityType {
		case record.RoleBar, record.RoleKitchen, record.RoleFrontDesk:
			if rec.FinancialAmount.IsZero() {
				continue
			}
			day := record.DateOf(rec.CreatedAt)
			if day.Before(from) || day.After(to) {
				continue
			}
			collection, _ := catalog.CollectionForRole(rec.EntityType)
			report.Income[collection] = report.Income[collection].Add(rec.FinancialAmount)
			report.TotalIncome = report.TotalIncome.Add(rec.FinancialAmount)

		case record.RoleStorekeeper:
			payload, err := record.DecodePayload(rec)
			if err != nil {
				return DepartmentReport{}, err
			}
			issued, ok := payload.(*record.StockIssued)
			if !ok {
				continue
			}
			if issued.Date.Before(from) || issued.Date.After(to) {
				continue
			}
			cost := issued.Quantity.Mul(graph.UnitPrice(issued.ItemName))
			collection := graph.Collection(issued.ItemName)
			report.Expenditure[collection] = report.Expenditure[collection].Add(cost)
			report.TotalExpenditure = report.TotalExpenditure.Add(cost)
		}
	}

	report.Net = report.TotalIncome.Sub(report.TotalExpenditure)
	return report, nil
}

// Month builds the report for a calendar month.
func (r *Reporter) Month(ctx context.Context, month record.Date) (DepartmentReport, error) {
	return r.Window(ctx, month.MonthStart(), month.MonthEnd())
}
