/*
remote.go - Pre-aggregated remote procedures with local fallback

PURPOSE:
  Some stores expose pre-aggregated procedures ("expected opening stock
  batch", "daily report details") that avoid replaying raw records on every
  read. They are an optimization only: the contract is that they return
  exactly what LocalReplay computes, and every call falls back to local
  replay when the procedure is absent or errors.

SELECTION:
  One availability probe picks the source for a session. There is no
  scattered try-remote-else-local control flow in the engines; they hold a
  single AggregationSource and never know which one they got.
*/
package stock

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/lodgekeeper/ops-engine/record"
)

// ProcedureCaller is the narrow interface to the store's optional
// pre-aggregated procedures.
type ProcedureCaller interface {
	// Available probes whether the procedures can be called at all.
	Available(ctx context.Context) bool

	// ExpectedOpeningStock returns baseline snapshots for items as of a date.
	// Items with no snapshot are absent from the map.
	ExpectedOpeningStock(ctx context.Context, itemNames []string, date record.Date) (map[string]Baseline, error)

	// MovementTotals sums restock/issued for an item over [from, to], both
	// inclusive. A zero from is open-ended.
	MovementTotals(ctx context.Context, itemName string, from, to record.Date) (Movements, error)
}

// RemoteAggregation consumes the procedures and falls back to LocalReplay on
// any error, keeping the two paths bit-identical from the caller's view.
type RemoteAggregation struct {
	Caller   ProcedureCaller
	Fallback AggregationSource
	Log      *logrus.Logger
}

// SelectSource runs the availability probe once and returns the source the
// engines should use.
func SelectSource(ctx context.Context, caller ProcedureCaller, local *LocalReplay, log *logrus.Logger) AggregationSource {
	if caller != nil && caller.Available(ctx) {
		return &RemoteAggregation{Caller: caller, Fallback: local, Log: log}
	}
	return local
}

func (r *RemoteAggregation) BaselineAt(ctx context.Context, itemName string, date record.Date) (Baseline, error) {
	batch, err := r.Caller.ExpectedOpeningStock(ctx, []string{itemName}, date)
	if err != nil {
		r.logFallback("BaselineAt", err)
		return r.Fallback.BaselineAt(ctx, itemName, date)
	}
	return batch[itemName], nil
}

func (r *RemoteAggregation) MovementsBefore(ctx context.Context, itemName string, from, before record.Date) (Movements, error) {
	// Procedure windows are inclusive; the replay window excludes the end.
	to := before.AddDays(-1)
	if !from.IsZero() && to.Before(from) {
		return Movements{}, nil
	}
	m, err := r.Caller.MovementTotals(ctx, itemName, from, to)
	if err != nil {
		r.logFallback("MovementsBefore", err)
		return r.Fallback.MovementsBefore(ctx, itemName, from, before)
	}
	return m, nil
}

func (r *RemoteAggregation) MovementsOn(ctx context.Context, itemName string, date record.Date) (Movements, error) {
	m, err := r.Caller.MovementTotals(ctx, itemName, date, date)
	if err != nil {
		r.logFallback("MovementsOn", err)
		return r.Fallback.MovementsOn(ctx, itemName, date)
	}
	return m, nil
}

func (r *RemoteAggregation) logFallback(funcName string, err error) {
	if r.Log == nil {
		return
	}
	r.Log.WithFields(logrus.Fields{
		"module":   "stock",
		"funcName": funcName,
	}).Warnf("remote aggregation failed, falling back to local replay: %v", err)
}
