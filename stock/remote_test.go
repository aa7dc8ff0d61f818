package stock_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/lodgekeeper/ops-engine/record"
	"github.com/lodgekeeper/ops-engine/stock"
)

// =============================================================================
// TEST DOUBLES
// =============================================================================

// replayBackedCaller exposes the pre-aggregated procedure surface computed
// from the same log the local replay reads, converting the inclusive
// procedure windows to the replay's exclusive end.
type replayBackedCaller struct {
	local *stock.LocalReplay
	up    bool
}

func (c *replayBackedCaller) Available(context.Context) bool { return c.up }

func (c *replayBackedCaller) ExpectedOpeningStock(ctx context.Context, items []string, date record.Date) (map[string]stock.Baseline, error) {
	out := make(map[string]stock.Baseline, len(items))
	for _, item := range items {
		b, err := c.local.BaselineAt(ctx, item, date)
		if err != nil {
			return nil, err
		}
		if b.Found {
			out[item] = b
		}
	}
	return out, nil
}

func (c *replayBackedCaller) MovementTotals(ctx context.Context, item string, from, to record.Date) (stock.Movements, error) {
	return c.local.MovementsBefore(ctx, item, from, to.AddDays(1))
}

// brokenCaller probes as available but fails every procedure call.
type brokenCaller struct{}

func (brokenCaller) Available(context.Context) bool { return true }

func (brokenCaller) ExpectedOpeningStock(context.Context, []string, record.Date) (map[string]stock.Baseline, error) {
	return nil, errors.New("procedure missing")
}

func (brokenCaller) MovementTotals(context.Context, string, record.Date, record.Date) (stock.Movements, error) {
	return stock.Movements{}, errors.New("procedure missing")
}

func quietLog() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

// =============================================================================
// SOURCE SELECTION
// =============================================================================

func TestSelectSource_ProbePicksRemote(t *testing.T) {
	s := newSeeder(t)
	local := stock.NewLocalReplay(s.store)

	source := stock.SelectSource(context.Background(), &replayBackedCaller{local: local, up: true}, local, quietLog())
	if _, ok := source.(*stock.RemoteAggregation); !ok {
		t.Error("available procedures should select the remote source")
	}

	source = stock.SelectSource(context.Background(), &replayBackedCaller{local: local, up: false}, local, quietLog())
	if source != stock.AggregationSource(local) {
		t.Error("unavailable procedures should select local replay")
	}

	source = stock.SelectSource(context.Background(), nil, local, quietLog())
	if source != stock.AggregationSource(local) {
		t.Error("nil caller should select local replay")
	}
}

// =============================================================================
// REMOTE / LOCAL EQUIVALENCE
// =============================================================================

func TestRemoteAndLocal_IdenticalProjections(t *testing.T) {
	// GIVEN: the same log behind both aggregation sources
	// THEN: every projection the engine exposes is identical through either

	s := newSeeder(t)
	s.baseline("Rice", jan(1), 50)
	s.restock("Rice", jan(5), 20)
	s.issue("Rice", jan(6), 10)
	s.issue("Rice", jan(6), 3)
	s.restock("Rice", jan(20), 7)

	local := stock.NewLocalReplay(s.store)
	remote := &stock.RemoteAggregation{
		Caller:   &replayBackedCaller{local: local, up: true},
		Fallback: local,
		Log:      quietLog(),
	}

	localEngine := stock.NewEngine(local)
	remoteEngine := stock.NewEngine(remote)
	ctx := context.Background()

	for day := 1; day <= 25; day++ {
		wantOpen, err := localEngine.OpeningStock(ctx, "Rice", jan(day))
		if err != nil {
			t.Fatalf("local opening day %d: %v", day, err)
		}
		gotOpen, err := remoteEngine.OpeningStock(ctx, "Rice", jan(day))
		if err != nil {
			t.Fatalf("remote opening day %d: %v", day, err)
		}
		if !gotOpen.Equal(wantOpen) {
			t.Errorf("day %d opening: local %s, remote %s", day, wantOpen, gotOpen)
		}
	}

	wantMonth, err := localEngine.MonthlySummary(ctx, "Rice", jan(1))
	if err != nil {
		t.Fatalf("local monthly: %v", err)
	}
	gotMonth, err := remoteEngine.MonthlySummary(ctx, "Rice", jan(1))
	if err != nil {
		t.Fatalf("remote monthly: %v", err)
	}
	if !gotMonth.ClosingMonthEnd.Equal(wantMonth.ClosingMonthEnd) ||
		!gotMonth.OpeningMonthStart.Equal(wantMonth.OpeningMonthStart) {
		t.Errorf("monthly summaries diverge: local %+v, remote %+v", wantMonth, gotMonth)
	}
}

func TestRemoteAggregation_FallsBackOnProcedureError(t *testing.T) {
	// GIVEN: procedures that probe as available but fail when called
	// THEN: every read silently falls back to local replay

	s := newSeeder(t)
	s.baseline("Rice", jan(1), 50)
	s.restock("Rice", jan(5), 20)

	local := stock.NewLocalReplay(s.store)
	remote := &stock.RemoteAggregation{Caller: brokenCaller{}, Fallback: local, Log: quietLog()}

	opening, err := stock.NewEngine(remote).OpeningStock(context.Background(), "Rice", jan(10))
	if err != nil {
		t.Fatalf("opening via fallback: %v", err)
	}
	if !opening.Equal(decimal.NewFromInt(70)) {
		t.Errorf("expected 70 via fallback, got %s", opening)
	}
}
