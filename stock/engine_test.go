package stock_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/lodgekeeper/ops-engine/record"
	memstore "github.com/lodgekeeper/ops-engine/record/store"
	"github.com/lodgekeeper/ops-engine/stock"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func jan(day int) record.Date {
	return record.NewDate(2024, time.January, day)
}

func dec(n int64) decimal.Decimal {
	return decimal.NewFromInt(n)
}

type seeder struct {
	t     *testing.T
	store *memstore.Memory
}

func newSeeder(t *testing.T) *seeder {
	return &seeder{t: t, store: memstore.NewMemory()}
}

func (s *seeder) add(p record.Payload) record.OperationalRecord {
	s.t.Helper()
	rec, err := record.New(record.RoleStorekeeper, "keeper", record.RoleSupervisor, p)
	if err != nil {
		s.t.Fatalf("build record: %v", err)
	}
	if err := s.store.Insert(context.Background(), []record.OperationalRecord{rec}); err != nil {
		s.t.Fatalf("insert: %v", err)
	}
	return rec
}

func (s *seeder) baseline(item string, date record.Date, qty int64) record.OperationalRecord {
	return s.add(&record.OpeningStock{ItemName: item, Date: date, Quantity: dec(qty)})
}

func (s *seeder) restock(item string, date record.Date, qty int64) record.OperationalRecord {
	return s.add(&record.StockRestock{ItemName: item, Date: date, Quantity: dec(qty)})
}

func (s *seeder) issue(item string, date record.Date, qty int64) record.OperationalRecord {
	return s.add(&record.StockIssued{ItemName: item, Date: date, Quantity: dec(qty)})
}

func (s *seeder) engine() *stock.Engine {
	return stock.NewEngine(stock.NewLocalReplay(s.store))
}

func mustEqual(t *testing.T, got, want decimal.Decimal, label string) {
	t.Helper()
	if !got.Equal(want) {
		t.Errorf("%s: expected %s, got %s", label, want, got)
	}
}

// =============================================================================
// OPENING / CLOSING PROJECTION
// =============================================================================

func TestOpeningStock_BaselinePlusMovements(t *testing.T) {
	// GIVEN: Rice baseline 50 on Jan 1, +20 restocked Jan 5, -10 issued Jan 6
	// WHEN: projecting the opening for Jan 7
	// THEN: 50 + 20 - 10 = 60

	s := newSeeder(t)
	s.baseline("Rice", jan(1), 50)
	s.restock("Rice", jan(5), 20)
	s.issue("Rice", jan(6), 10)

	opening, err := s.engine().OpeningStock(context.Background(), "Rice", jan(7))
	if err != nil {
		t.Fatalf("opening: %v", err)
	}
	mustEqual(t, opening, dec(60), "opening Jan 7")
}

func TestOpeningStock_MovementsOnTargetDayExcluded(t *testing.T) {
	// Movements dated on the target day belong to that day's sheet, not to
	// its opening.

	s := newSeeder(t)
	s.baseline("Rice", jan(1), 50)
	s.restock("Rice", jan(7), 100)

	opening, err := s.engine().OpeningStock(context.Background(), "Rice", jan(7))
	if err != nil {
		t.Fatalf("opening: %v", err)
	}
	mustEqual(t, opening, dec(50), "opening Jan 7")
}

func TestOpeningStock_NoBaselineDefaultsToMovementsOnly(t *testing.T) {
	// GIVEN: no baseline at all
	// THEN: replay starts from zero over the whole log

	s := newSeeder(t)
	s.restock("Rice", jan(2), 30)
	s.issue("Rice", jan(3), 12)

	opening, err := s.engine().OpeningStock(context.Background(), "Rice", jan(5))
	if err != nil {
		t.Fatalf("opening: %v", err)
	}
	mustEqual(t, opening, dec(18), "opening Jan 5")
}

func TestOpeningStock_NewerBaselineSupersedes(t *testing.T) {
	// GIVEN: baselines on Jan 1 and Jan 10, plus a restock in between
	// THEN: the Jan 10 snapshot is authoritative; pre-snapshot movements are
	//       not replayed on top of it

	s := newSeeder(t)
	s.baseline("Rice", jan(1), 50)
	s.restock("Rice", jan(5), 20)
	s.baseline("Rice", jan(10), 80)

	opening, err := s.engine().OpeningStock(context.Background(), "Rice", jan(15))
	if err != nil {
		t.Fatalf("opening: %v", err)
	}
	mustEqual(t, opening, dec(80), "opening Jan 15")
}

func TestClosingStock_EqualsNextOpening(t *testing.T) {
	// Invariant: closing(d) == opening(d+1) when no baseline lands between.

	s := newSeeder(t)
	s.baseline("Rice", jan(1), 50)
	s.restock("Rice", jan(3), 20)
	s.issue("Rice", jan(3), 5)
	s.issue("Rice", jan(4), 10)

	e := s.engine()
	ctx := context.Background()
	for day := 1; day <= 6; day++ {
		closing, err := e.ClosingStock(ctx, "Rice", jan(day))
		if err != nil {
			t.Fatalf("closing day %d: %v", day, err)
		}
		nextOpening, err := e.OpeningStock(ctx, "Rice", jan(day+1))
		if err != nil {
			t.Fatalf("opening day %d: %v", day+1, err)
		}
		mustEqual(t, nextOpening, closing, "continuity at day boundary")
	}
}

func TestProjection_ReflectsCorrections(t *testing.T) {
	// GIVEN: an issue of 10, later corrected to 4
	// THEN: replay uses the correction, not the original

	s := newSeeder(t)
	s.baseline("Rice", jan(1), 50)
	issued := s.issue("Rice", jan(2), 10)

	corrected, err := record.NewVersion(issued, "keeper", record.RoleSupervisor, &record.StockIssued{
		ItemName: "Rice", Date: jan(2), Quantity: dec(4),
	})
	if err != nil {
		t.Fatalf("build correction: %v", err)
	}
	if err := s.store.Insert(context.Background(), []record.OperationalRecord{corrected}); err != nil {
		t.Fatalf("insert correction: %v", err)
	}

	closing, err := s.engine().ClosingStock(context.Background(), "Rice", jan(2))
	if err != nil {
		t.Fatalf("closing: %v", err)
	}
	mustEqual(t, closing, dec(46), "closing after correction")
}

func TestClamp_NegativeProjectionFloorsAtZero(t *testing.T) {
	// GIVEN: more issued than ever existed
	// THEN: the projection clamps at zero instead of going negative

	s := newSeeder(t)
	s.baseline("Rice", jan(1), 5)
	s.issue("Rice", jan(2), 40)

	closing, err := s.engine().ClosingStock(context.Background(), "Rice", jan(2))
	if err != nil {
		t.Fatalf("closing: %v", err)
	}
	mustEqual(t, closing, decimal.Zero, "clamped closing")
}

// =============================================================================
// DAILY SHEET
// =============================================================================

func TestDailySheet_SeparatesSubmittedFromNewInput(t *testing.T) {
	// GIVEN: a day with submitted movements
	// WHEN: re-opening the sheet and previewing new deltas
	// THEN: submitted quantities are not double-counted

	s := newSeeder(t)
	s.baseline("Rice", jan(1), 50)
	s.restock("Rice", jan(2), 20)
	s.issue("Rice", jan(2), 5)

	sheet, err := s.engine().DailySheet(context.Background(), "Rice", jan(2))
	if err != nil {
		t.Fatalf("sheet: %v", err)
	}
	mustEqual(t, sheet.Opening, dec(50), "opening")
	mustEqual(t, sheet.SubmittedRestock, dec(20), "submitted restock")
	mustEqual(t, sheet.SubmittedIssued, dec(5), "submitted issued")
	mustEqual(t, sheet.Closing, dec(65), "closing")

	// Preview issuing 3 more: only the delta moves the projection.
	mustEqual(t, sheet.ProjectClosing(decimal.Zero, dec(3)), dec(62), "projected closing")
}

// =============================================================================
// MONTHLY SUMMARY
// =============================================================================

func TestMonthlySummary_Identity(t *testing.T) {
	// Invariant: closingMonthEnd == openingMonthStart + inMonth deltas.

	s := newSeeder(t)
	s.baseline("Rice", record.NewDate(2023, time.December, 20), 100)
	s.restock("Rice", record.NewDate(2023, time.December, 28), 10) // pre-month
	s.restock("Rice", jan(10), 40)
	s.issue("Rice", jan(20), 25)
	s.issue("Rice", record.NewDate(2024, time.February, 1), 99) // next month

	summary, err := s.engine().MonthlySummary(context.Background(), "Rice", jan(15))
	if err != nil {
		t.Fatalf("summary: %v", err)
	}

	mustEqual(t, summary.OpeningMonthStart, dec(110), "opening month start")
	mustEqual(t, summary.InMonthRestock, dec(40), "in-month restock")
	mustEqual(t, summary.InMonthIssued, dec(25), "in-month issued")
	mustEqual(t, summary.ClosingMonthEnd, dec(125), "closing month end")

	expected := summary.OpeningMonthStart.Add(summary.InMonthRestock).Sub(summary.InMonthIssued)
	mustEqual(t, summary.ClosingMonthEnd, expected, "monthly identity")
}

func TestMonthlySummaries_PerItemIndependence(t *testing.T) {
	s := newSeeder(t)
	s.baseline("Rice", jan(1), 50)
	s.baseline("Lager", jan(1), 120)
	s.issue("Lager", jan(5), 20)

	summaries, err := s.engine().MonthlySummaries(context.Background(), []string{"Rice", "Lager"}, jan(1))
	if err != nil {
		t.Fatalf("summaries: %v", err)
	}
	if len(summaries) != 2 {
		t.Fatalf("expected 2 summaries, got %d", len(summaries))
	}
	mustEqual(t, summaries[0].ClosingMonthEnd, dec(50), "Rice untouched")
	mustEqual(t, summaries[1].ClosingMonthEnd, dec(100), "Lager issued")
}
