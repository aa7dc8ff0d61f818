/*
transfer.go - Room transfer protocol

PURPOSE:
  Recording a room_transfer does NOT move the booking. It only flags the old
  room for post-cleaning follow-up. The move happens when a cleaned or
  inspected housekeeping report is filed for the old room: the orchestrator
  then creates the successor segment on the new room, closes the old segment
  with a transferred version, and writes the transfer_completion marker.

IDEMPOTENCY:
  The marker is checked before any effect. Re-running the same housekeeping
  report is a no-op, and a crash between the trigger and the effect is
  tolerated: the next report re-checks the marker (effectively-once via
  marker-gated retry, at-least-once at the storage layer). No transaction
  spans trigger and effect.

SUCCESSOR SEGMENT:
  Carries over guest identity and the original check-out date:
    nights = ceil(checkout - transferDate), floored at 0
    cost   = newRoomRate * nights
*/
package rooms

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/lodgekeeper/ops-engine/record"
)

type TransferOrchestrator struct {
	Store  record.Store
	Writer *record.Writer
	Log    *logrus.Logger
}

func NewTransferOrchestrator(store record.Store, writer *record.Writer, log *logrus.Logger) *TransferOrchestrator {
	return &TransferOrchestrator{Store: store, Writer: writer, Log: log}
}

// Record flags a transfer. The booking stays on the old room until the old
// room is cleared by housekeeping.
func (t *TransferOrchestrator) Record(ctx context.Context, sessionToken string, transfer record.RoomTransfer, actor string, actorRole record.Role) (record.BatchResult, error) {
	rec, err := record.New(record.RoleFrontDesk, actor, actorRole, &transfer)
	if err != nil {
		return record.BatchResult{}, err
	}
	result := t.Writer.Submit(ctx, sessionToken, []record.OperationalRecord{rec})
	return result, result.Err
}

// OnHousekeepingReport completes any transfer waiting on the reported room.
// Called after a housekeeping report lands; does nothing unless the report
// clears the room (cleaned/inspected). Returns the IDs of segments created.
func (t *TransferOrchestrator) OnHousekeepingReport(ctx context.Context, sessionToken string, report record.HousekeepingReport, actor string) ([]string, error) {
	if report.State != record.HousekeepingCleaned && report.State != record.HousekeepingInspected {
		return nil, nil
	}

	transfers, err := t.pendingTransfers(ctx, report.RoomID)
	if err != nil {
		return nil, err
	}

	var created []string
	for _, transfer := range transfers {
		segmentID, err := t.complete(ctx, sessionToken, transfer, actor)
		if err != nil {
			return created, err
		}
		if segmentID != "" {
			created = append(created, segmentID)
		}
	}
	return created, nil
}

// complete applies one transfer, gated by its completion marker. Returns the
// new segment ID, or "" when the marker already exists.
func (t *TransferOrchestrator) complete(ctx context.Context, sessionToken string, transfer record.RoomTransfer, actor string) (string, error) {
	done, err := t.alreadyCompleted(ctx, transfer.BookingID)
	if err != nil {
		return "", err
	}
	if done {
		return "", nil
	}

	segment, openRec, err := (&CheckoutService{Store: t.Store}).currentSegment(ctx, transfer.BookingID)
	if err != nil {
		return "", err
	}

	nights := transfer.TransferDate.DaysUntil(segment.Stay.CheckOut)
	if nights < 0 {
		nights = 0
	}
	cost := transfer.NewRoomRate.Mul(decimal.NewFromInt(int64(nights)))

	successor := record.RoomBooking{
		BookingID: transfer.BookingID,
		Guest:     segment.Guest,
		Stay: record.Stay{
			RoomID:   transfer.NewRoomID,
			CheckIn:  transfer.TransferDate,
			CheckOut: segment.Stay.CheckOut,
			Adults:   segment.Stay.Adults,
			Children: segment.Stay.Children,
			Status:   record.StayCheckedIn,
		},
		Pricing: record.Pricing{
			RoomRate:      transfer.NewRoomRate,
			Nights:        nights,
			TotalRoomCost: cost,
		},
	}

	segmentRec, err := record.NewEffect(record.RoleFrontDesk, actor, &successor)
	if err != nil {
		return "", err
	}

	// Close the old segment with a new version, as checkout does; otherwise
	// the board keeps deriving the old room as occupied.
	closedStay := *segment
	closedStay.Stay.Status = record.StayTransferred
	closedVersion, err := record.NewVersion(openRec, actor, record.RoleAdmin, &closedStay)
	if err != nil {
		return "", err
	}
	closedVersion.Status = record.StatusApproved

	marker, err := record.NewEffect(record.RoleFrontDesk, actor, &record.TransferCompletion{
		BookingID: transfer.BookingID,
		NewRoomID: transfer.NewRoomID,
		SegmentID: segmentRec.ID,
		Date:      transfer.TransferDate,
	})
	if err != nil {
		return "", err
	}
	// Marker ID derives from the booking so a concurrent double-completion
	// collides on insert instead of producing two markers.
	marker.ID = "transfer-completion-" + transfer.BookingID
	marker.OriginalID = marker.ID

	result := t.Writer.Submit(ctx, sessionToken, []record.OperationalRecord{segmentRec, closedVersion, marker})
	if result.Err != nil {
		return "", result.Err
	}

	if t.Log != nil {
		t.Log.WithFields(logrus.Fields{
			"module":    "rooms",
			"funcName":  "complete",
			"bookingID": transfer.BookingID,
			"newRoomID": transfer.NewRoomID,
			"segmentID": segmentRec.ID,
		}).Info("transfer completed")
	}
	return segmentRec.ID, nil
}

// pendingTransfers returns current transfers flagged on a room.
func (t *TransferOrchestrator) pendingTransfers(ctx context.Context, roomID string) ([]record.RoomTransfer, error) {
	tag := record.TagRoomTransfer
	records, err := t.Store.Query(ctx, record.Query{Tag: &tag, Order: record.OrderByVersion})
	if err != nil {
		return nil, err
	}

	var out []record.RoomTransfer
	for _, rec := range record.Projectable(record.ResolveLatest(records)) {
		transfer, err := record.DecodeAs[*record.RoomTransfer](rec)
		if err != nil {
			return nil, err
		}
		if transfer.PreviousRoomID == roomID {
			out = append(out, *transfer)
		}
	}
	return out, nil
}

// alreadyCompleted checks the idempotency marker for a booking.
func (t *TransferOrchestrator) alreadyCompleted(ctx context.Context, bookingID string) (bool, error) {
	tag := record.TagTransferCompletion
	records, err := t.Store.Query(ctx, record.Query{Tag: &tag, Order: record.OrderByVersion})
	if err != nil {
		return false, err
	}
	for _, rec := range record.Projectable(record.ResolveLatest(records)) {
		marker, err := record.DecodeAs[*record.TransferCompletion](rec)
		if err != nil {
			return false, err
		}
		if marker.BookingID == bookingID {
			return true, nil
		}
	}
	return false, nil
}
