/*
Package stock projects per-item inventory from the operational log.

PURPOSE:
  Opening and closing stock are never stored as authoritative state; they are
  recomputed from the latest approved opening_stock baseline plus a replay of
  restock/issue movements. The movable baseline keeps replays short: a new
  approved snapshot becomes the starting point for every later date.

FORMULAS:
  opening(item, d) = baseline(item, d)
                   + restock(item, [baseline.date, d))
                   - issued(item, [baseline.date, d))
  closing(item, d) = opening(item, d) + restock(item, d) - issued(item, d)

  Negative computed quantities are clamped to zero. This mirrors the
  reference system and can mask data-entry errors; see the note on Clamp.

SOURCES:
  The arithmetic lives in Engine; the aggregates it consumes come from an
  AggregationSource. LocalReplay recomputes them from raw record queries and
  always exists. RemoteAggregation (remote.go) uses pre-aggregated store
  procedures when available and must produce identical results.

KEY FILES:
  - source.go: AggregationSource interface + LocalReplay
  - remote.go:  RemoteAggregation with probe + local fallback
  - engine.go:  daily/monthly projections, daily sheet
*/
package stock

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/lodgekeeper/ops-engine/record"
)

// =============================================================================
// AGGREGATION SOURCE
// =============================================================================

// Baseline is the replay starting point for an item as of a date.
type Baseline struct {
	Quantity decimal.Decimal
	Date     record.Date
	Found    bool
}

// Movements are summed restock and issue quantities over a window.
type Movements struct {
	Restock decimal.Decimal
	Issued  decimal.Decimal
}

// AggregationSource supplies the raw aggregates the engine combines. The two
// implementations (LocalReplay, RemoteAggregation) are interchangeable and
// must agree on every input.
type AggregationSource interface {
	// BaselineAt returns the latest approved opening_stock snapshot at or
	// before date. Found is false when no snapshot exists.
	BaselineAt(ctx context.Context, itemName string, date record.Date) (Baseline, error)

	// MovementsBefore sums movements in [from, before) - from inclusive,
	// before exclusive. A zero from means "since the beginning of the log".
	MovementsBefore(ctx context.Context, itemName string, from, before record.Date) (Movements, error)

	// MovementsOn sums movements on a single day.
	MovementsOn(ctx context.Context, itemName string, date record.Date) (Movements, error)
}

// =============================================================================
// LOCAL REPLAY - Mandatory fallback, recomputes from raw records
// =============================================================================

type LocalReplay struct {
	Store record.Store
}

func NewLocalReplay(store record.Store) *LocalReplay {
	return &LocalReplay{Store: store}
}

func (l *LocalReplay) BaselineAt(ctx context.Context, itemName string, date record.Date) (Baseline, error) {
	snapshots, err := l.payloadsFor(ctx, record.TagOpeningStock)
	if err != nil {
		return Baseline{}, err
	}

	var best Baseline
	var bestRec record.OperationalRecord
	for _, entry := range snapshots {
		p, ok := entry.payload.(*record.OpeningStock)
		if !ok || p.ItemName != itemName || p.Date.After(date) {
			continue
		}
		// Latest snapshot date wins; among snapshots for the same date the
		// newest record wins (the resolver already collapsed versions, so
		// this only arbitrates distinct logical snapshots).
		if !best.Found || p.Date.After(best.Date) ||
			(p.Date.Equal(best.Date) && newerRecord(entry.rec, bestRec)) {
			best = Baseline{Quantity: p.Quantity, Date: p.Date, Found: true}
			bestRec = entry.rec
		}
	}
	return best, nil
}

func (l *LocalReplay) MovementsBefore(ctx context.Context, itemName string, from, before record.Date) (Movements, error) {
	return l.sumMovements(ctx, itemName, func(d record.Date) bool {
		if !from.IsZero() && d.Before(from) {
			return false
		}
		return d.Before(before)
	})
}

func (l *LocalReplay) MovementsOn(ctx context.Context, itemName string, date record.Date) (Movements, error) {
	return l.sumMovements(ctx, itemName, date.Equal)
}

func (l *LocalReplay) sumMovements(ctx context.Context, itemName string, inWindow func(record.Date) bool) (Movements, error) {
	var m Movements

	restocks, err := l.payloadsFor(ctx, record.TagStockRestock)
	if err != nil {
		return Movements{}, err
	}
	for _, entry := range restocks {
		if p, ok := entry.payload.(*record.StockRestock); ok && p.ItemName == itemName && inWindow(p.Date) {
			m.Restock = m.Restock.Add(p.Quantity)
		}
	}

	issues, err := l.payloadsFor(ctx, record.TagStockIssued)
	if err != nil {
		return Movements{}, err
	}
	for _, entry := range issues {
		if p, ok := entry.payload.(*record.StockIssued); ok && p.ItemName == itemName && inWindow(p.Date) {
			m.Issued = m.Issued.Add(p.Quantity)
		}
	}
	return m, nil
}

type resolvedPayload struct {
	rec     record.OperationalRecord
	payload record.Payload
}

// payloadsFor queries one payload tag, resolves versions, and keeps the
// approved survivors. Edited or soft-deleted movements drop out here, which
// is what makes replay authoritative under corrections.
func (l *LocalReplay) payloadsFor(ctx context.Context, tag record.Tag) ([]resolvedPayload, error) {
	records, err := l.Store.Query(ctx, record.Query{Tag: &tag, Order: record.OrderByVersion})
	if err != nil {
		return nil, err
	}

	var out []resolvedPayload
	for _, rec := range record.Projectable(record.ResolveLatest(records)) {
		payload, err := record.DecodePayload(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, resolvedPayload{rec: rec, payload: payload})
	}
	return out, nil
}

func newerRecord(a, b record.OperationalRecord) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID > b.ID
}
