/*
Package rooms derives room and booking state from the operational log.

PURPOSE:
  Room status is a projection: bookings, checkouts, transfers, interruptions,
  and housekeeping reports replay into one row per room. Nothing here is
  persisted; the board is recomputed on every read.

STATES:
  Room:         available, occupied, reserved, cleaning, maintenance, pending
  Housekeeping: clean, dirty, inspected, not_reported

  Occupancy and housekeeping move independently: a housekeeping report never
  checks a guest out, and a checkout never marks a room clean. The two meet
  only at the checkout gate (checkout.go) and the transfer trigger
  (transfer.go).

DERIVATION (per room, in precedence order):
  1. latest housekeeping report = maintenance  -> maintenance
  2. active checked-in segment today           -> occupied
  3. ended segment awaiting cleaning           -> cleaning
  4. future or reserved segment                -> reserved
  5. otherwise                                 -> available

  Rooms enter the board as soon as any record references them; a freshly
  referenced room with no history is available. Rooms cycle indefinitely -
  no terminal state.
*/
package rooms

import (
	"context"
	"sort"

	"github.com/lodgekeeper/ops-engine/record"
)

// =============================================================================
// ROOM STATUS
// =============================================================================

type RoomState string

const (
	StateAvailable   RoomState = "available"
	StateOccupied    RoomState = "occupied"
	StateReserved    RoomState = "reserved"
	StateCleaning    RoomState = "cleaning"
	StateMaintenance RoomState = "maintenance"
	StatePending     RoomState = "pending"
)

// RoomView is one derived board row.
type RoomView struct {
	RoomID       string
	Status       RoomState
	Housekeeping record.HousekeepingState

	CurrentGuest string
	CheckOut     record.Date

	UpcomingReservation string
	UpcomingCheckIn     record.Date
}

// =============================================================================
// BOARD
// =============================================================================

type Board struct {
	Store record.Store
}

func NewBoard(store record.Store) *Board {
	return &Board{Store: store}
}

// roomFacts is everything the replay gathered about one room.
type roomFacts struct {
	hkState record.HousekeepingState
	hkDate  record.Date
	hkSet   bool

	active   *record.RoomBooking // checked-in segment covering asOf
	upcoming *record.RoomBooking // earliest future/reserved segment

	// needsCleaning marks an ended segment (checkout, transfer away,
	// interruption) not yet followed by a cleaned/inspected report.
	needsCleaning bool
	lastVacatedOn record.Date
}

// Statuses derives the full board as of a date.
func (b *Board) Statuses(ctx context.Context, asOf record.Date) ([]RoomView, error) {
	records, err := b.Store.Query(ctx, record.Query{
		Tags: []record.Tag{
			record.TagRoomBooking, record.TagCheckoutRecord, record.TagRoomTransfer,
			record.TagStayInterruption, record.TagHousekeepingReport,
		},
		Order: record.OrderByVersion,
	})
	if err != nil {
		return nil, err
	}

	projectable := record.Projectable(record.ResolveLatest(records))

	// First pass: closed bookings, so segment classification below can tell
	// "checked in" from "checked out but segment not yet versioned".
	closed := make(map[string]record.Date) // bookingID -> vacate date
	for _, rec := range projectable {
		payload, err := record.DecodePayload(rec)
		if err != nil {
			return nil, err
		}
		switch p := payload.(type) {
		case *record.CheckoutRecord:
			closed[p.BookingID] = p.Date
		case *record.StayInterruption:
			closed[p.BookingID] = p.Date
		}
	}

	facts := make(map[string]*roomFacts)
	factsFor := func(roomID string) *roomFacts {
		if f, ok := facts[roomID]; ok {
			return f
		}
		f := &roomFacts{hkState: record.HousekeepingNotReported}
		facts[roomID] = f
		return f
	}

	for _, rec := range projectable {
		payload, err := record.DecodePayload(rec)
		if err != nil {
			return nil, err
		}
		switch p := payload.(type) {
		case *record.HousekeepingReport:
			f := factsFor(p.RoomID)
			if !f.hkSet || p.Date.AfterOrEqual(f.hkDate) {
				f.hkState, f.hkDate, f.hkSet = p.State, p.Date, true
			}
		case *record.RoomTransfer:
			f := factsFor(p.PreviousRoomID)
			f.needsCleaning = true
			if p.TransferDate.After(f.lastVacatedOn) {
				f.lastVacatedOn = p.TransferDate
			}
			factsFor(p.NewRoomID)
		case *record.RoomBooking:
			b.applySegment(factsFor(p.Stay.RoomID), p, closed, asOf)
		}
	}

	views := make([]RoomView, 0, len(facts))
	for roomID, f := range facts {
		views = append(views, deriveView(roomID, f))
	}
	sort.Slice(views, func(i, j int) bool { return views[i].RoomID < views[j].RoomID })
	return views, nil
}

// Room derives a single room's view.
func (b *Board) Room(ctx context.Context, roomID string, asOf record.Date) (RoomView, error) {
	views, err := b.Statuses(ctx, asOf)
	if err != nil {
		return RoomView{}, err
	}
	for _, v := range views {
		if v.RoomID == roomID {
			return v, nil
		}
	}
	return RoomView{RoomID: roomID, Status: StateAvailable, Housekeeping: record.HousekeepingNotReported}, nil
}

func (b *Board) applySegment(f *roomFacts, p *record.RoomBooking, closed map[string]record.Date, asOf record.Date) {
	if p.Stay.Status == record.StayTransferred {
		// The room_transfer record carries the vacate date for this room;
		// the segment's CheckOut still names the original, later date.
		f.needsCleaning = true
		return
	}

	if vacatedOn, isClosed := closed[p.BookingID]; isClosed ||
		p.Stay.Status == record.StayCheckedOut ||
		p.Stay.Status == record.StayInterrupted {
		f.needsCleaning = true
		if isClosed && vacatedOn.After(f.lastVacatedOn) {
			f.lastVacatedOn = vacatedOn
		} else if p.Stay.CheckOut.After(f.lastVacatedOn) {
			f.lastVacatedOn = p.Stay.CheckOut
		}
		return
	}

	switch {
	case p.Stay.Status == record.StayCheckedIn &&
		p.Stay.CheckIn.BeforeOrEqual(asOf) && asOf.BeforeOrEqual(p.Stay.CheckOut):
		f.active = p
	case p.Stay.CheckIn.After(asOf) || p.Stay.Status == record.StayReserved:
		if f.upcoming == nil || p.Stay.CheckIn.Before(f.upcoming.Stay.CheckIn) {
			f.upcoming = p
		}
	default:
		// A checked-in segment whose window already ended without a
		// checkout record: the room was vacated but never cleared.
		f.needsCleaning = true
		if p.Stay.CheckOut.After(f.lastVacatedOn) {
			f.lastVacatedOn = p.Stay.CheckOut
		}
	}
}

func deriveView(roomID string, f *roomFacts) RoomView {
	view := RoomView{
		RoomID:       roomID,
		Housekeeping: f.hkState,
	}

	cleaned := f.hkSet && f.hkDate.AfterOrEqual(f.lastVacatedOn) &&
		(f.hkState == record.HousekeepingCleaned || f.hkState == record.HousekeepingInspected)

	switch {
	case f.hkState == record.HousekeepingMaintenance:
		view.Status = StateMaintenance
	case f.active != nil:
		view.Status = StateOccupied
		view.CurrentGuest = f.active.Guest.Name
		view.CheckOut = f.active.Stay.CheckOut
	case f.needsCleaning && !cleaned:
		view.Status = StateCleaning
	case f.hkState == record.HousekeepingDirty:
		view.Status = StateCleaning
	case f.upcoming != nil:
		view.Status = StateReserved
		view.UpcomingReservation = f.upcoming.Guest.Name
		view.UpcomingCheckIn = f.upcoming.Stay.CheckIn
	default:
		view.Status = StateAvailable
	}

	if f.upcoming != nil && view.UpcomingReservation == "" {
		view.UpcomingReservation = f.upcoming.Guest.Name
		view.UpcomingCheckIn = f.upcoming.Stay.CheckIn
	}
	return view
}
