package ledger_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lodgekeeper/ops-engine/ledger"
	"github.com/lodgekeeper/ops-engine/record"
	memstore "github.com/lodgekeeper/ops-engine/record/store"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func mar(day int) record.Date {
	return record.NewDate(2024, time.March, day)
}

func dec(n int64) decimal.Decimal {
	return decimal.NewFromInt(n)
}

func standardBooking() record.RoomBooking {
	return record.RoomBooking{
		BookingID: "BK-1001",
		Guest:     record.Guest{Name: "A. Okafor"},
		Stay: record.Stay{
			RoomID: "101", CheckIn: mar(1), CheckOut: mar(4),
			Status: record.StayCheckedIn,
		},
		Pricing: record.Pricing{RoomRate: dec(10000), Nights: 3, TotalRoomCost: dec(30000)},
		Payment: record.BookingPayment{PaidAmount: dec(10000), Method: "card"},
	}
}

func approved(t *testing.T, entityType record.Role, amount decimal.Decimal, p record.Payload) record.OperationalRecord {
	t.Helper()
	rec, err := record.New(entityType, "desk", record.RoleSupervisor, p)
	require.NoError(t, err)
	rec.FinancialAmount = amount
	return rec
}

// =============================================================================
// LEDGER DERIVATION
// =============================================================================

func TestBuildLedger_ChargesPaymentsBalance(t *testing.T) {
	// GIVEN: a 30000 booking with 10000 paid up front and a 2000 penalty
	// THEN: charges 32000, payments 10000, balance 22000

	penalty := approved(t, record.RoleFrontDesk, dec(2000), &record.PenaltyFee{
		BookingID: "BK-1001", Date: mar(2), Amount: dec(2000), Reason: "Broken lamp",
	})

	entries, err := ledger.BuildLedger(standardBooking(), []record.OperationalRecord{penalty})
	require.NoError(t, err)

	summary := ledger.Summarize(entries)
	assert.True(t, summary.TotalCharges.Equal(dec(32000)), "charges: %s", summary.TotalCharges)
	assert.True(t, summary.TotalPayments.Equal(dec(10000)), "payments: %s", summary.TotalPayments)
	assert.True(t, summary.Balance.Equal(dec(22000)), "balance: %s", summary.Balance)
}

func TestBuildLedger_PermutationInvariant(t *testing.T) {
	// GIVEN: related records in two different orders
	// THEN: entries and summary are identical

	related := []record.OperationalRecord{
		approved(t, record.RoleFrontDesk, dec(2000), &record.PenaltyFee{
			BookingID: "BK-1001", Date: mar(2), Amount: dec(2000),
		}),
		approved(t, record.RoleFrontDesk, dec(5000), &record.PaymentRecord{
			BookingID: "BK-1001", Date: mar(3), Amount: dec(5000),
		}),
		approved(t, record.RoleFrontDesk, dec(1000), &record.DiscountApplied{
			BookingID: "BK-1001", Date: mar(3), Amount: dec(1000), Reason: "Loyalty",
		}),
	}
	reversed := []record.OperationalRecord{related[2], related[1], related[0]}

	forward, err := ledger.BuildLedger(standardBooking(), related)
	require.NoError(t, err)
	backward, err := ledger.BuildLedger(standardBooking(), reversed)
	require.NoError(t, err)

	require.Equal(t, len(forward), len(backward))
	for i := range forward {
		assert.Equal(t, forward[i], backward[i], "entry %d differs by input order", i)
	}
	assert.Equal(t, ledger.Summarize(forward), ledger.Summarize(backward))
}

func TestBuildLedger_DeterministicEntryIDs(t *testing.T) {
	// Rebuilding the ledger must yield byte-identical entries, so IDs derive
	// from source records rather than fresh UUIDs.

	entries1, err := ledger.BuildLedger(standardBooking(), nil)
	require.NoError(t, err)
	entries2, err := ledger.BuildLedger(standardBooking(), nil)
	require.NoError(t, err)
	assert.Equal(t, entries1, entries2)
}

func TestBuildLedger_EntryRules(t *testing.T) {
	// Each related payload kind maps to its documented entry type/category.

	related := []record.OperationalRecord{
		approved(t, record.RoleFrontDesk, dec(500), &record.RefundRecord{
			BookingID: "BK-1001", Date: mar(3), Amount: dec(500), Reason: "Overcharge",
		}),
		approved(t, record.RoleFrontDesk, dec(0), &record.StayExtension{
			BookingID: "BK-1001", Date: mar(3), NewCheckOut: mar(6), AdditionalCost: dec(20000),
		}),
		approved(t, record.RoleFrontDesk, dec(0), &record.CheckoutRecord{
			BookingID: "BK-1001", RoomID: "101", Date: mar(4), FinalPayment: decimal.Zero,
		}),
	}

	entries, err := ledger.BuildLedger(standardBooking(), related)
	require.NoError(t, err)

	byCategory := map[ledger.Category]int{}
	for _, e := range entries {
		byCategory[e.Category]++
	}
	assert.Equal(t, 2, byCategory[ledger.CategoryRoomCharge], "base charge + extension")
	assert.Equal(t, 1, byCategory[ledger.CategoryPayment], "initial payment only, checkout carried zero")
	assert.Equal(t, 1, byCategory[ledger.CategoryRefund])
}

// =============================================================================
// SERVICE READS
// =============================================================================

func TestForBooking_TransferSegmentDebitsSecondCharge(t *testing.T) {
	// GIVEN: a booking with a transfer successor segment on another room
	// THEN: both segments debit room charges on the same ledger

	ctx := context.Background()
	store := memstore.NewMemory()

	primaryPayload := standardBooking()
	primary := approved(t, record.RoleFrontDesk, dec(30000), &primaryPayload)
	successorPayload := record.RoomBooking{
		BookingID: "BK-1001",
		Guest:     record.Guest{Name: "A. Okafor"},
		Stay: record.Stay{
			RoomID: "205", CheckIn: mar(3), CheckOut: mar(4),
			Status: record.StayCheckedIn,
		},
		Pricing: record.Pricing{RoomRate: dec(12000), Nights: 1, TotalRoomCost: dec(12000)},
	}
	successor := approved(t, record.RoleFrontDesk, dec(12000), &successorPayload)
	successor.CreatedAt = primary.CreatedAt.Add(time.Hour)

	other := approved(t, record.RoleFrontDesk, dec(9999), &record.RoomBooking{
		BookingID: "BK-2002",
		Guest:     record.Guest{Name: "Someone Else"},
		Stay:      record.Stay{RoomID: "301", CheckIn: mar(1), CheckOut: mar(2), Status: record.StayCheckedIn},
		Pricing:   record.Pricing{RoomRate: dec(9999), Nights: 1, TotalRoomCost: dec(9999)},
	})

	require.NoError(t, store.Insert(ctx, []record.OperationalRecord{successor, other, primary}))

	entries, summary, err := ledger.NewService(store).ForBooking(ctx, "BK-1001")
	require.NoError(t, err)

	assert.True(t, summary.TotalCharges.Equal(dec(42000)), "charges: %s", summary.TotalCharges)
	assert.True(t, summary.TotalPayments.Equal(dec(10000)), "payments: %s", summary.TotalPayments)

	var roomCharges int
	for _, e := range entries {
		if e.Category == ledger.CategoryRoomCharge {
			roomCharges++
		}
	}
	assert.Equal(t, 2, roomCharges, "one charge per segment")
}

func TestForBooking_UnknownBooking(t *testing.T) {
	_, _, err := ledger.NewService(memstore.NewMemory()).ForBooking(context.Background(), "BK-ghost")
	assert.True(t, record.IsNotFound(err), "expected not-found, got %v", err)
}
