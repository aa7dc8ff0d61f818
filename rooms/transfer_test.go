package rooms_test

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/lodgekeeper/ops-engine/record"
	"github.com/lodgekeeper/ops-engine/rooms"
)

func (f *fixture) orchestrator() *rooms.TransferOrchestrator {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return rooms.NewTransferOrchestrator(f.store, f.writer, log)
}

func (f *fixture) segmentsFor(bookingID string) []*record.RoomBooking {
	f.t.Helper()
	tag := record.TagRoomBooking
	recs, err := f.store.Query(context.Background(), record.Query{Tag: &tag, Order: record.OrderByVersion})
	if err != nil {
		f.t.Fatalf("query segments: %v", err)
	}
	var out []*record.RoomBooking
	for _, rec := range record.Projectable(record.ResolveLatest(recs)) {
		booking, err := record.DecodeAs[*record.RoomBooking](rec)
		if err != nil {
			f.t.Fatalf("decode segment: %v", err)
		}
		if booking.BookingID == bookingID {
			out = append(out, booking)
		}
	}
	return out
}

func TestTransfer_RecordingDoesNotMoveBooking(t *testing.T) {
	// GIVEN: a checked-in booking on 101 and a recorded transfer to 205
	// WHEN: no housekeeping report has cleared 101 yet
	// THEN: the booking still has exactly one segment, on 101

	f := newFixture(t)
	f.booking("BK-1", "101", mar(8), mar(12), record.StayCheckedIn, 10000, 0)

	_, err := f.orchestrator().Record(context.Background(), "tok", record.RoomTransfer{
		BookingID:      "BK-1",
		PreviousRoomID: "101",
		NewRoomID:      "205",
		NewRoomRate:    dec(12000),
		TransferDate:   mar(10),
	}, "desk", record.RoleSupervisor)
	if err != nil {
		t.Fatalf("record transfer: %v", err)
	}

	segments := f.segmentsFor("BK-1")
	if len(segments) != 1 {
		t.Fatalf("expected 1 segment before clearance, got %d", len(segments))
	}
	if segments[0].Stay.RoomID != "101" {
		t.Errorf("booking must stay on 101, found %s", segments[0].Stay.RoomID)
	}
}

func TestTransfer_CompletedByCleanedReport(t *testing.T) {
	// GIVEN: a pending transfer on 101
	// WHEN: a cleaned housekeeping report lands for 101
	// THEN: a successor segment opens on 205 priced for the remaining nights

	f := newFixture(t)
	f.booking("BK-1", "101", mar(8), mar(12), record.StayCheckedIn, 10000, 0)
	orch := f.orchestrator()

	_, err := orch.Record(context.Background(), "tok", record.RoomTransfer{
		BookingID:      "BK-1",
		PreviousRoomID: "101",
		NewRoomID:      "205",
		NewRoomRate:    dec(12000),
		TransferDate:   mar(10),
	}, "desk", record.RoleSupervisor)
	if err != nil {
		t.Fatalf("record transfer: %v", err)
	}

	created, err := orch.OnHousekeepingReport(context.Background(), "tok", record.HousekeepingReport{
		RoomID: "101", Date: mar(10), State: record.HousekeepingCleaned,
	}, "housekeeper")
	if err != nil {
		t.Fatalf("on report: %v", err)
	}
	if len(created) != 1 {
		t.Fatalf("expected 1 successor segment, got %d", len(created))
	}

	var successor *record.RoomBooking
	for _, seg := range f.segmentsFor("BK-1") {
		if seg.Stay.RoomID == "205" {
			successor = seg
		}
	}
	if successor == nil {
		t.Fatal("successor segment on 205 not found")
	}
	// Remaining nights: Mar 10 -> Mar 12 = 2 at the new rate.
	if successor.Pricing.Nights != 2 {
		t.Errorf("expected 2 nights, got %d", successor.Pricing.Nights)
	}
	if !successor.Pricing.TotalRoomCost.Equal(dec(24000)) {
		t.Errorf("expected 24000 cost, got %s", successor.Pricing.TotalRoomCost)
	}
	if successor.Guest.Name != "Guest BK-1" {
		t.Errorf("guest identity must carry over, got %q", successor.Guest.Name)
	}
	if !successor.Stay.CheckOut.Equal(mar(12)) {
		t.Errorf("original checkout must carry over, got %s", successor.Stay.CheckOut)
	}
}

func TestTransfer_CompletionFreesOldRoom(t *testing.T) {
	// GIVEN: a transfer from 101 to 205 completed by a cleaned report
	// THEN: the old segment closes as transferred, 101 leaves occupancy, and
	//       205 carries the guest

	f := newFixture(t)
	f.booking("BK-1", "101", mar(8), mar(12), record.StayCheckedIn, 10000, 0)
	orch := f.orchestrator()

	_, err := orch.Record(context.Background(), "tok", record.RoomTransfer{
		BookingID:      "BK-1",
		PreviousRoomID: "101",
		NewRoomID:      "205",
		NewRoomRate:    dec(12000),
		TransferDate:   mar(10),
	}, "desk", record.RoleSupervisor)
	if err != nil {
		t.Fatalf("record transfer: %v", err)
	}

	f.housekeeping("101", mar(10), record.HousekeepingCleaned)
	_, err = orch.OnHousekeepingReport(context.Background(), "tok", record.HousekeepingReport{
		RoomID: "101", Date: mar(10), State: record.HousekeepingCleaned,
	}, "housekeeper")
	if err != nil {
		t.Fatalf("on report: %v", err)
	}

	for _, seg := range f.segmentsFor("BK-1") {
		if seg.Stay.RoomID == "101" && seg.Stay.Status != record.StayTransferred {
			t.Errorf("old segment must close as transferred, got %s", seg.Stay.Status)
		}
	}

	old := f.room("101", mar(11))
	if old.Status != rooms.StateAvailable {
		t.Errorf("old room must be freed after clearance, got %s", old.Status)
	}
	moved := f.room("205", mar(11))
	if moved.Status != rooms.StateOccupied {
		t.Errorf("new room must be occupied, got %s", moved.Status)
	}
	if moved.CurrentGuest != "Guest BK-1" {
		t.Errorf("guest must follow the transfer, got %q", moved.CurrentGuest)
	}
}

func TestTransfer_SecondReportIsNoOp(t *testing.T) {
	// GIVEN: a completed transfer
	// WHEN: another clearing report arrives for the old room
	// THEN: no second segment and no second marker are created

	f := newFixture(t)
	f.booking("BK-1", "101", mar(8), mar(12), record.StayCheckedIn, 10000, 0)
	orch := f.orchestrator()

	_, err := orch.Record(context.Background(), "tok", record.RoomTransfer{
		BookingID:      "BK-1",
		PreviousRoomID: "101",
		NewRoomID:      "205",
		NewRoomRate:    dec(12000),
		TransferDate:   mar(10),
	}, "desk", record.RoleSupervisor)
	if err != nil {
		t.Fatalf("record transfer: %v", err)
	}

	ctx := context.Background()
	report := record.HousekeepingReport{RoomID: "101", Date: mar(10), State: record.HousekeepingCleaned}

	first, err := orch.OnHousekeepingReport(ctx, "tok", report, "housekeeper")
	if err != nil {
		t.Fatalf("first report: %v", err)
	}
	second, err := orch.OnHousekeepingReport(ctx, "tok", report, "housekeeper")
	if err != nil {
		t.Fatalf("second report: %v", err)
	}

	if len(first) != 1 || len(second) != 0 {
		t.Errorf("expected completion exactly once, got %d then %d", len(first), len(second))
	}
	if got := len(f.segmentsFor("BK-1")); got != 2 {
		t.Errorf("expected original + successor segments, got %d", got)
	}

	tag := record.TagTransferCompletion
	markers, _ := f.store.Query(ctx, record.Query{Tag: &tag})
	if len(markers) != 1 {
		t.Errorf("expected exactly 1 completion marker, got %d", len(markers))
	}
}

func TestTransfer_DirtyReportDoesNotTrigger(t *testing.T) {
	// A dirty report never completes a transfer; only cleaned or inspected
	// clear the old room.

	f := newFixture(t)
	f.booking("BK-1", "101", mar(8), mar(12), record.StayCheckedIn, 10000, 0)
	orch := f.orchestrator()

	_, err := orch.Record(context.Background(), "tok", record.RoomTransfer{
		BookingID:      "BK-1",
		PreviousRoomID: "101",
		NewRoomID:      "205",
		NewRoomRate:    dec(12000),
		TransferDate:   mar(10),
	}, "desk", record.RoleSupervisor)
	if err != nil {
		t.Fatalf("record transfer: %v", err)
	}

	created, err := orch.OnHousekeepingReport(context.Background(), "tok", record.HousekeepingReport{
		RoomID: "101", Date: mar(10), State: record.HousekeepingDirty,
	}, "housekeeper")
	if err != nil {
		t.Fatalf("on report: %v", err)
	}
	if len(created) != 0 {
		t.Errorf("dirty report must not complete transfers, created %d", len(created))
	}
}
