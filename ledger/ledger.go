/*
Package ledger derives per-booking financial ledgers from the log.

PURPOSE:
  A booking's ledger is never persisted; it is rebuilt on every read from the
  booking segment and its related records (penalties, payments, discounts,
  refunds, extensions, checkout, transfer segments). The summary is a pure
  aggregation: reordering the related records cannot change it.

ENTRY RULES:
  booking pricing            -> debit  room_charge (total_room_cost)
  initial paid_amount > 0    -> credit payment
  penalty_fee                -> debit  penalty
  payment_record             -> credit payment
  discount_applied           -> credit discount
  refund_record              -> credit refund
  checkout final_payment > 0 -> credit payment
  stay_extension cost > 0    -> debit  room_charge
  transfer segment cost > 0  -> debit  room_charge

SEE ALSO:
  - report.go: department-level income/expenditure aggregation
*/
package ledger

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/lodgekeeper/ops-engine/record"
)

// =============================================================================
// ENTRIES
// =============================================================================

type EntryType string

const (
	Debit  EntryType = "debit"
	Credit EntryType = "credit"
)

type Category string

const (
	CategoryRoomCharge Category = "room_charge"
	CategoryPayment    Category = "payment"
	CategoryPenalty    Category = "penalty"
	CategoryDiscount   Category = "discount"
	CategoryRefund     Category = "refund"
)

// Entry is one derived ledger line. IDs are derived from the source record
// so rebuilding the ledger yields identical entries.
type Entry struct {
	ID          string
	Date        record.Date
	Type        EntryType
	Category    Category
	Amount      decimal.Decimal
	Description string
}

type Summary struct {
	TotalCharges  decimal.Decimal
	TotalPayments decimal.Decimal
	Balance       decimal.Decimal
}

// =============================================================================
// LEDGER CONSTRUCTION
// =============================================================================

// BuildLedger derives the ledger for a booking from its primary segment and
// related records, sorted by date ascending. The related slice may arrive in
// any order; output and summary are identical for any permutation.
func BuildLedger(booking record.RoomBooking, related []record.OperationalRecord) ([]Entry, error) {
	var entries []Entry

	if booking.Pricing.TotalRoomCost.IsPositive() {
		entries = append(entries, Entry{
			ID:          booking.BookingID + ":room_charge",
			Date:        booking.Stay.CheckIn,
			Type:        Debit,
			Category:    CategoryRoomCharge,
			Amount:      booking.Pricing.TotalRoomCost,
			Description: fmt.Sprintf("Room charge %s (%d nights)", booking.Stay.RoomID, booking.Pricing.Nights),
		})
	}
	if booking.Payment.PaidAmount.IsPositive() {
		entries = append(entries, Entry{
			ID:          booking.BookingID + ":initial_payment",
			Date:        booking.Stay.CheckIn,
			Type:        Credit,
			Category:    CategoryPayment,
			Amount:      booking.Payment.PaidAmount,
			Description: "Payment on booking",
		})
	}

	for _, rec := range related {
		entry, ok, err := entryFor(booking, rec)
		if err != nil {
			return nil, err
		}
		if ok {
			entries = append(entries, entry)
		}
	}

	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].Date.Equal(entries[j].Date) {
			return entries[i].Date.Before(entries[j].Date)
		}
		return entries[i].ID < entries[j].ID
	})
	return entries, nil
}

func entryFor(booking record.RoomBooking, rec record.OperationalRecord) (Entry, bool, error) {
	payload, err := record.DecodePayload(rec)
	if err != nil {
		return Entry{}, false, err
	}

	switch p := payload.(type) {
	case *record.PenaltyFee:
		return Entry{
			ID: rec.ID + ":penalty", Date: p.Date, Type: Debit,
			Category: CategoryPenalty, Amount: p.Amount, Description: p.Reason,
		}, true, nil
	case *record.PaymentRecord:
		return Entry{
			ID: rec.ID + ":payment", Date: p.Date, Type: Credit,
			Category: CategoryPayment, Amount: p.Amount, Description: "Payment received",
		}, true, nil
	case *record.DiscountApplied:
		return Entry{
			ID: rec.ID + ":discount", Date: p.Date, Type: Credit,
			Category: CategoryDiscount, Amount: p.Amount, Description: p.Reason,
		}, true, nil
	case *record.RefundRecord:
		return Entry{
			ID: rec.ID + ":refund", Date: p.Date, Type: Credit,
			Category: CategoryRefund, Amount: p.Amount, Description: p.Reason,
		}, true, nil
	case *record.CheckoutRecord:
		if p.FinalPayment.IsPositive() {
			return Entry{
				ID: rec.ID + ":final_payment", Date: p.Date, Type: Credit,
				Category: CategoryPayment, Amount: p.FinalPayment, Description: "Payment at checkout",
			}, true, nil
		}
	case *record.StayExtension:
		if p.AdditionalCost.IsPositive() {
			return Entry{
				ID: rec.ID + ":extension", Date: p.Date, Type: Debit,
				Category: CategoryRoomCharge, Amount: p.AdditionalCost, Description: "Stay extension",
			}, true, nil
		}
	case *record.RoomBooking:
		// A linked transfer segment: same booking, different segment record.
		if p.BookingID == booking.BookingID && p.Pricing.TotalRoomCost.IsPositive() {
			return Entry{
				ID: rec.ID + ":room_charge", Date: p.Stay.CheckIn, Type: Debit,
				Category: CategoryRoomCharge, Amount: p.Pricing.TotalRoomCost,
				Description: fmt.Sprintf("Room charge %s (%d nights)", p.Stay.RoomID, p.Pricing.Nights),
			}, true, nil
		}
	}
	return Entry{}, false, nil
}

// Summarize aggregates a ledger. Pure: no positional dependence, so any
// permutation of the input yields the same summary.
func Summarize(entries []Entry) Summary {
	var s Summary
	for _, e := range entries {
		switch e.Type {
		case Debit:
			s.TotalCharges = s.TotalCharges.Add(e.Amount)
		case Credit:
			s.TotalPayments = s.TotalPayments.Add(e.Amount)
		}
	}
	s.Balance = s.TotalCharges.Sub(s.TotalPayments)
	return s
}

// =============================================================================
// SERVICE - Ledger reads against the store
// =============================================================================

type Service struct {
	Store record.Store
}

func NewService(store record.Store) *Service {
	return &Service{Store: store}
}

// relatedTags are the payload kinds that can contribute ledger entries.
var relatedTags = []record.Tag{
	record.TagPenaltyFee, record.TagPaymentRecord, record.TagDiscountApplied,
	record.TagRefundRecord, record.TagCheckoutRecord, record.TagStayExtension,
	record.TagRoomBooking,
}

// ForBooking rebuilds the ledger and summary for one booking. The primary
// segment is the earliest-created segment; later segments (transfers) feed
// in as related records.
func (s *Service) ForBooking(ctx context.Context, bookingID string) ([]Entry, Summary, error) {
	records, err := s.Store.Query(ctx, record.Query{Tags: relatedTags, Order: record.OrderByVersion})
	if err != nil {
		return nil, Summary{}, err
	}

	var primary *record.RoomBooking
	var primaryRec record.OperationalRecord
	var related []record.OperationalRecord

	for _, rec := range record.Projectable(record.ResolveLatest(records)) {
		payload, err := record.DecodePayload(rec)
		if err != nil {
			return nil, Summary{}, err
		}

		if booking, ok := payload.(*record.RoomBooking); ok {
			if booking.BookingID != bookingID {
				continue
			}
			if primary == nil || rec.CreatedAt.Before(primaryRec.CreatedAt) {
				if primary != nil {
					related = append(related, primaryRec)
				}
				primary, primaryRec = booking, rec
				continue
			}
			related = append(related, rec)
			continue
		}

		if refersToBooking(payload, bookingID) {
			related = append(related, rec)
		}
	}

	if primary == nil {
		return nil, Summary{}, record.ErrRecordNotFound
	}

	entries, err := BuildLedger(*primary, related)
	if err != nil {
		return nil, Summary{}, err
	}
	return entries, Summarize(entries), nil
}

func refersToBooking(payload record.Payload, bookingID string) bool {
	switch p := payload.(type) {
	case *record.PenaltyFee:
		return p.BookingID == bookingID
	case *record.PaymentRecord:
		return p.BookingID == bookingID
	case *record.DiscountApplied:
		return p.BookingID == bookingID
	case *record.RefundRecord:
		return p.BookingID == bookingID
	case *record.CheckoutRecord:
		return p.BookingID == bookingID
	case *record.StayExtension:
		return p.BookingID == bookingID
	}
	return false
}
