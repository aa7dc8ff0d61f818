/*
checkout.go - Standard and interrupted checkout

PURPOSE:
  Standard checkout is gated on housekeeping clearance and settles the
  booking balance to zero. Interrupted checkout bypasses settlement, prices
  the nights actually used, and banks the remainder as a resumable credit.

CHECKOUT GATE:
  A standard checkout is REJECTED - not silently bypassed - unless the
  room's latest housekeeping state is cleaned or inspected. Callers surface
  ErrHousekeepingNotCleared to the desk and retry after a report is filed.
*/
package rooms

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/lodgekeeper/ops-engine/ledger"
	"github.com/lodgekeeper/ops-engine/record"
)

var (
	// ErrHousekeepingNotCleared rejects a standard checkout while the room
	// has not been cleaned or inspected.
	ErrHousekeepingNotCleared = errors.New("checkout rejected: housekeeping clearance required")

	// ErrBookingNotFound is returned when no current approved segment exists
	// for the booking.
	ErrBookingNotFound = errors.New("booking not found")
)

type CheckoutService struct {
	Store  record.Store
	Writer *record.Writer
	Ledger *ledger.Service
	Board  *Board
}

func NewCheckoutService(store record.Store, writer *record.Writer, ledgerSvc *ledger.Service) *CheckoutService {
	return &CheckoutService{
		Store:  store,
		Writer: writer,
		Ledger: ledgerSvc,
		Board:  NewBoard(store),
	}
}

// CheckoutResult reports what the checkout settled.
type CheckoutResult struct {
	BookingID    string
	RoomID       string
	FinalPayment decimal.Decimal
	Records      record.BatchResult
}

// Checkout performs a standard checkout for a booking.
func (s *CheckoutService) Checkout(ctx context.Context, sessionToken string, bookingID string, actor string, today record.Date) (*CheckoutResult, error) {
	segment, segmentRec, err := s.currentSegment(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	// Housekeeping gate: reject, never bypass.
	view, err := s.Board.Room(ctx, segment.Stay.RoomID, today)
	if err != nil {
		return nil, err
	}
	if view.Housekeeping != record.HousekeepingCleaned && view.Housekeeping != record.HousekeepingInspected {
		return nil, fmt.Errorf("%w: room %s is %s", ErrHousekeepingNotCleared, segment.Stay.RoomID, view.Housekeeping)
	}

	// Settle the ledger to zero: any outstanding balance becomes a payment
	// taken at the desk.
	_, summary, err := s.Ledger.ForBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	var batch []record.OperationalRecord

	if summary.Balance.IsPositive() {
		payment, err := record.NewEffect(record.RoleFrontDesk, actor, &record.PaymentRecord{
			BookingID: bookingID,
			Date:      today,
			Amount:    summary.Balance,
			Method:    "checkout_settlement",
		})
		if err != nil {
			return nil, err
		}
		batch = append(batch, payment)
	}

	checkout, err := record.NewEffect(record.RoleFrontDesk, actor, &record.CheckoutRecord{
		BookingID: bookingID,
		RoomID:    segment.Stay.RoomID,
		Date:      today,
		// Settlement is recorded as a payment_record above; the checkout
		// marker itself carries no amount to avoid double-counting.
		FinalPayment: decimal.Zero,
	})
	if err != nil {
		return nil, err
	}
	batch = append(batch, checkout)

	// Close the segment with a new version rather than mutating it.
	closedStay := *segment
	closedStay.Stay.Status = record.StayCheckedOut
	closedVersion, err := record.NewVersion(segmentRec, actor, record.RoleAdmin, &closedStay)
	if err != nil {
		return nil, err
	}
	closedVersion.Status = record.StatusApproved
	batch = append(batch, closedVersion)

	result := s.Writer.Submit(ctx, sessionToken, batch)
	if result.Err != nil {
		return nil, result.Err
	}
	return &CheckoutResult{
		BookingID:    bookingID,
		RoomID:       segment.Stay.RoomID,
		FinalPayment: summary.Balance,
		Records:      result,
	}, nil
}

// InterruptionResult reports the credit banked by an interrupted checkout.
type InterruptionResult struct {
	BookingID       string
	UsedDays        int
	UsedCost        decimal.Decimal
	CreditRemaining decimal.Decimal
	Records         record.BatchResult
}

// Interrupt closes a stay early without full settlement:
//
//	usedDays        = max(0, today - check_in)
//	usedCost        = room_rate * usedDays
//	creditRemaining = max(0, totalPaid - usedCost)
//
// and records a resumable interrupted_stay_credit plus the stay_interruption
// segment-close marker.
func (s *CheckoutService) Interrupt(ctx context.Context, sessionToken string, bookingID string, actor string, today record.Date) (*InterruptionResult, error) {
	segment, _, err := s.currentSegment(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	usedDays := segment.Stay.CheckIn.DaysUntil(today)
	if usedDays < 0 {
		usedDays = 0
	}
	usedCost := segment.Pricing.RoomRate.Mul(decimal.NewFromInt(int64(usedDays)))

	_, summary, err := s.Ledger.ForBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	credit := summary.TotalPayments.Sub(usedCost)
	if credit.IsNegative() {
		credit = decimal.Zero
	}

	creditRec, err := record.NewEffect(record.RoleFrontDesk, actor, &record.InterruptedStayCredit{
		BookingID: bookingID,
		Guest:     segment.Guest,
		UsedDays:  usedDays,
		UsedCost:  usedCost,
		Credit:    credit,
		Date:      today,
	})
	if err != nil {
		return nil, err
	}
	marker, err := record.NewEffect(record.RoleFrontDesk, actor, &record.StayInterruption{
		BookingID: bookingID,
		RoomID:    segment.Stay.RoomID,
		Date:      today,
	})
	if err != nil {
		return nil, err
	}

	result := s.Writer.Submit(ctx, sessionToken, []record.OperationalRecord{creditRec, marker})
	if result.Err != nil {
		return nil, result.Err
	}
	return &InterruptionResult{
		BookingID:       bookingID,
		UsedDays:        usedDays,
		UsedCost:        usedCost,
		CreditRemaining: credit,
		Records:         result,
	}, nil
}

// currentSegment resolves the booking's current open segment: the
// latest-created approved room_booking for the booking ID.
func (s *CheckoutService) currentSegment(ctx context.Context, bookingID string) (*record.RoomBooking, record.OperationalRecord, error) {
	tag := record.TagRoomBooking
	records, err := s.Store.Query(ctx, record.Query{Tag: &tag, Order: record.OrderByVersion})
	if err != nil {
		return nil, record.OperationalRecord{}, err
	}

	var segment *record.RoomBooking
	var segmentRec record.OperationalRecord
	for _, rec := range record.Projectable(record.ResolveLatest(records)) {
		booking, err := record.DecodeAs[*record.RoomBooking](rec)
		if err != nil {
			return nil, record.OperationalRecord{}, err
		}
		if booking.BookingID != bookingID {
			continue
		}
		if segment == nil || rec.CreatedAt.After(segmentRec.CreatedAt) {
			segment, segmentRec = booking, rec
		}
	}
	if segment == nil {
		return nil, record.OperationalRecord{}, fmt.Errorf("%w: %s", ErrBookingNotFound, bookingID)
	}
	return segment, segmentRec, nil
}
