/*
engine.go - Daily and monthly stock projections

PURPOSE:
  Combines baseline + movement aggregates from an AggregationSource into the
  projections the rest of the system consumes: opening/closing stock per day,
  the editable daily sheet, and the monthly summary.

DAILY SHEET:
  Re-opening a day's sheet for editing must never double-count what is
  already in the log. DailySheet therefore exposes the already-submitted
  quantities separately, and ProjectClosing applies only the NEW deltas on
  top of them.
*/
package stock

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/lodgekeeper/ops-engine/record"
)

type Engine struct {
	Source AggregationSource
}

func NewEngine(source AggregationSource) *Engine {
	return &Engine{Source: source}
}

// Clamp floors negative computed quantities at zero. The reference behavior:
// a negative result means the log disagrees with physical reality, and the
// clamp can mask the data-entry error that caused it. Kept because changing
// it changes user-visible totals.
func Clamp(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// OpeningStock is the on-hand quantity at the start of a day: the latest
// approved baseline at or before the date, plus movements from the baseline
// date (inclusive) up to the date (exclusive). Defaults to 0 without a
// baseline.
func (e *Engine) OpeningStock(ctx context.Context, itemName string, date record.Date) (decimal.Decimal, error) {
	baseline, err := e.Source.BaselineAt(ctx, itemName, date)
	if err != nil {
		return decimal.Zero, err
	}

	from := baseline.Date // zero Date when no baseline: open-ended window
	moves, err := e.Source.MovementsBefore(ctx, itemName, from, date)
	if err != nil {
		return decimal.Zero, err
	}
	return Clamp(baseline.Quantity.Add(moves.Restock).Sub(moves.Issued)), nil
}

// ClosingStock is the end-of-day quantity: opening plus the day's movements.
func (e *Engine) ClosingStock(ctx context.Context, itemName string, date record.Date) (decimal.Decimal, error) {
	sheet, err := e.DailySheet(ctx, itemName, date)
	if err != nil {
		return decimal.Zero, err
	}
	return sheet.Closing, nil
}

// Available implements record.StockChecker: the quantity issuable on a date
// without driving closing stock negative.
func (e *Engine) Available(ctx context.Context, itemName string, date record.Date) (decimal.Decimal, error) {
	return e.ClosingStock(ctx, itemName, date)
}

// =============================================================================
// DAILY SHEET
// =============================================================================

// DailySheet is one item's row for one day: the projected opening, the
// quantities ALREADY persisted for the day, and the resulting closing.
type DailySheet struct {
	ItemName string
	Date     record.Date

	Opening decimal.Decimal

	// SubmittedRestock/SubmittedIssued are what the log already holds for
	// this day. New pending input is never mixed into these.
	SubmittedRestock decimal.Decimal
	SubmittedIssued  decimal.Decimal

	Closing decimal.Decimal
}

// ProjectClosing previews the closing quantity with new, not-yet-persisted
// deltas applied on top of what is already submitted.
func (s DailySheet) ProjectClosing(newRestock, newIssued decimal.Decimal) decimal.Decimal {
	return Clamp(s.Closing.Add(newRestock).Sub(newIssued))
}

func (e *Engine) DailySheet(ctx context.Context, itemName string, date record.Date) (DailySheet, error) {
	opening, err := e.OpeningStock(ctx, itemName, date)
	if err != nil {
		return DailySheet{}, err
	}
	day, err := e.Source.MovementsOn(ctx, itemName, date)
	if err != nil {
		return DailySheet{}, err
	}
	return DailySheet{
		ItemName:         itemName,
		Date:             date,
		Opening:          opening,
		SubmittedRestock: day.Restock,
		SubmittedIssued:  day.Issued,
		Closing:          Clamp(opening.Add(day.Restock).Sub(day.Issued)),
	}, nil
}

// =============================================================================
// MONTHLY SUMMARY
// =============================================================================

// MonthlySummary partitions the replay into pre-month and in-month deltas
// relative to the baseline:
//
//	openingMonthStart = baseline + preMonthRestock - preMonthIssued
//	closingMonthEnd   = openingMonthStart + inMonthRestock - inMonthIssued
type MonthlySummary struct {
	ItemName string
	Month    record.Date // first day of the month

	OpeningMonthStart decimal.Decimal
	InMonthRestock    decimal.Decimal
	InMonthIssued     decimal.Decimal
	ClosingMonthEnd   decimal.Decimal
}

func (e *Engine) MonthlySummary(ctx context.Context, itemName string, month record.Date) (MonthlySummary, error) {
	monthStart := month.MonthStart()
	monthEnd := month.MonthEnd()

	opening, err := e.OpeningStock(ctx, itemName, monthStart)
	if err != nil {
		return MonthlySummary{}, err
	}

	// In-month window is [monthStart, monthEnd] inclusive, i.e. before the
	// first day of the next month.
	inMonth, err := e.Source.MovementsBefore(ctx, itemName, monthStart, monthEnd.AddDays(1))
	if err != nil {
		return MonthlySummary{}, err
	}

	return MonthlySummary{
		ItemName:          itemName,
		Month:             monthStart,
		OpeningMonthStart: opening,
		InMonthRestock:    inMonth.Restock,
		InMonthIssued:     inMonth.Issued,
		ClosingMonthEnd:   Clamp(opening.Add(inMonth.Restock).Sub(inMonth.Issued)),
	}, nil
}

// MonthlySummaries computes summaries for several items. Items are
// independent, so this is safely parallelizable; the implementation runs
// sequentially, matching the reference execution order.
func (e *Engine) MonthlySummaries(ctx context.Context, itemNames []string, month record.Date) ([]MonthlySummary, error) {
	out := make([]MonthlySummary, 0, len(itemNames))
	for _, name := range itemNames {
		summary, err := e.MonthlySummary(ctx, name, month)
		if err != nil {
			return nil, err
		}
		out = append(out, summary)
	}
	return out, nil
}
