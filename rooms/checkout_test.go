package rooms_test

import (
	"context"
	"errors"
	"testing"

	"github.com/lodgekeeper/ops-engine/ledger"
	"github.com/lodgekeeper/ops-engine/record"
	"github.com/lodgekeeper/ops-engine/rooms"
)

// =============================================================================
// STANDARD CHECKOUT
// =============================================================================

func TestCheckout_RejectedWhileRoomDirty(t *testing.T) {
	// GIVEN: a checked-in booking whose room was reported dirty
	// WHEN: attempting a standard checkout
	// THEN: it is rejected, and nothing is written

	f := newFixture(t)
	f.booking("BK-1", "101", mar(7), mar(10), record.StayCheckedIn, 10000, 10000)
	f.housekeeping("101", mar(10), record.HousekeepingDirty)

	before, _ := f.store.Query(context.Background(), record.Query{})

	_, err := f.checkoutService().Checkout(context.Background(), "tok", "BK-1", "desk", mar(10))
	if !errors.Is(err, rooms.ErrHousekeepingNotCleared) {
		t.Fatalf("expected housekeeping gate rejection, got %v", err)
	}

	after, _ := f.store.Query(context.Background(), record.Query{})
	if len(after) != len(before) {
		t.Errorf("rejected checkout must write nothing: %d -> %d records", len(before), len(after))
	}
}

func TestCheckout_SettlesBalanceToZero(t *testing.T) {
	// GIVEN: a 30000 booking with 10000 paid, room cleaned
	// WHEN: checking out
	// THEN: a 20000 settlement payment is recorded, the ledger balances to
	//       zero, and the segment closes

	f := newFixture(t)
	f.booking("BK-1", "101", mar(7), mar(10), record.StayCheckedIn, 10000, 10000)
	f.housekeeping("101", mar(10), record.HousekeepingCleaned)

	result, err := f.checkoutService().Checkout(context.Background(), "tok", "BK-1", "desk", mar(10))
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	if !result.FinalPayment.Equal(dec(20000)) {
		t.Errorf("expected 20000 settled, got %s", result.FinalPayment)
	}

	_, summary, err := ledger.NewService(f.store).ForBooking(context.Background(), "BK-1")
	if err != nil {
		t.Fatalf("ledger: %v", err)
	}
	if !summary.Balance.IsZero() {
		t.Errorf("expected zero balance after checkout, got %s", summary.Balance)
	}

	// The settlement is a payment_record; the checkout marker itself must
	// carry no amount or the ledger would double-count.
	tag := record.TagCheckoutRecord
	checkouts, _ := f.store.Query(context.Background(), record.Query{Tag: &tag})
	if len(checkouts) != 1 {
		t.Fatalf("expected 1 checkout record, got %d", len(checkouts))
	}
	payload, err := record.DecodeAs[*record.CheckoutRecord](checkouts[0])
	if err != nil {
		t.Fatalf("decode checkout: %v", err)
	}
	if !payload.FinalPayment.IsZero() {
		t.Errorf("checkout marker must carry zero, got %s", payload.FinalPayment)
	}
}

func TestCheckout_InspectedRoomAlsoClears(t *testing.T) {
	f := newFixture(t)
	f.booking("BK-1", "101", mar(7), mar(10), record.StayCheckedIn, 10000, 30000)
	f.housekeeping("101", mar(10), record.HousekeepingInspected)

	result, err := f.checkoutService().Checkout(context.Background(), "tok", "BK-1", "desk", mar(10))
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	// Fully paid up front: nothing to settle.
	if !result.FinalPayment.IsZero() {
		t.Errorf("expected no settlement, got %s", result.FinalPayment)
	}
}

func TestCheckout_UnknownBooking(t *testing.T) {
	f := newFixture(t)
	_, err := f.checkoutService().Checkout(context.Background(), "tok", "BK-ghost", "desk", mar(10))
	if !errors.Is(err, rooms.ErrBookingNotFound) {
		t.Errorf("expected booking-not-found, got %v", err)
	}
}

// =============================================================================
// INTERRUPTED CHECKOUT
// =============================================================================

func TestInterrupt_BanksUnusedNightsAsCredit(t *testing.T) {
	// GIVEN: a 3-night stay at 10000/night, 25000 paid, interrupted after
	//        2 nights
	// THEN: usedDays=2, usedCost=20000, credit=5000, and the interruption
	//       bypasses the housekeeping gate

	f := newFixture(t)
	f.booking("BK-1", "101", mar(8), mar(11), record.StayCheckedIn, 10000, 25000)
	f.housekeeping("101", mar(10), record.HousekeepingDirty) // gate must not apply

	result, err := f.checkoutService().Interrupt(context.Background(), "tok", "BK-1", "desk", mar(10))
	if err != nil {
		t.Fatalf("interrupt: %v", err)
	}
	if result.UsedDays != 2 {
		t.Errorf("expected 2 used days, got %d", result.UsedDays)
	}
	if !result.UsedCost.Equal(dec(20000)) {
		t.Errorf("expected used cost 20000, got %s", result.UsedCost)
	}
	if !result.CreditRemaining.Equal(dec(5000)) {
		t.Errorf("expected credit 5000, got %s", result.CreditRemaining)
	}

	// The credit is persisted as a resumable record.
	tag := record.TagInterruptedStayCredit
	credits, _ := f.store.Query(context.Background(), record.Query{Tag: &tag})
	if len(credits) != 1 {
		t.Fatalf("expected 1 credit record, got %d", len(credits))
	}
	credit, err := record.DecodeAs[*record.InterruptedStayCredit](credits[0])
	if err != nil {
		t.Fatalf("decode credit: %v", err)
	}
	if !credit.Credit.Equal(dec(5000)) {
		t.Errorf("persisted credit mismatch: %s", credit.Credit)
	}
}

func TestInterrupt_OverusedStayLeavesNoCredit(t *testing.T) {
	// GIVEN: only 10000 paid but two nights already used
	// THEN: the credit floors at zero, never negative

	f := newFixture(t)
	f.booking("BK-1", "101", mar(8), mar(11), record.StayCheckedIn, 10000, 10000)

	result, err := f.checkoutService().Interrupt(context.Background(), "tok", "BK-1", "desk", mar(10))
	if err != nil {
		t.Fatalf("interrupt: %v", err)
	}
	if !result.CreditRemaining.IsZero() {
		t.Errorf("expected zero credit, got %s", result.CreditRemaining)
	}
}

func TestInterrupt_SameDayUsesZeroDays(t *testing.T) {
	// Interrupting on the check-in day uses zero nights and refunds the full
	// payment as credit.

	f := newFixture(t)
	f.booking("BK-1", "101", mar(10), mar(13), record.StayCheckedIn, 10000, 15000)

	result, err := f.checkoutService().Interrupt(context.Background(), "tok", "BK-1", "desk", mar(10))
	if err != nil {
		t.Fatalf("interrupt: %v", err)
	}
	if result.UsedDays != 0 {
		t.Errorf("expected 0 used days, got %d", result.UsedDays)
	}
	if !result.CreditRemaining.Equal(dec(15000)) {
		t.Errorf("expected full 15000 credit, got %s", result.CreditRemaining)
	}
}
