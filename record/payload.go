/*
payload.go - Tagged-union record payloads

PURPOSE:
  The Data column of an OperationalRecord is a JSON object carrying a "type"
  discriminator. This file defines the closed set of payload kinds, one
  concrete struct per tag, and the explicit encode/decode step between them.

CLOSED SUM TYPE:
  The tag set is fixed. Decoding an unknown tag is an error, never a
  pass-through map. Engines switch on the concrete type returned by
  DecodePayload and never reach into raw JSON.

VALIDATION:
  Struct tags carry validator/v10 rules for the shape-level checks (required
  identifiers, non-negative quantities). Cross-field stock arithmetic checks
  live in writer.go where the opening balance is known.

SEE ALSO:
  - types.go: OperationalRecord envelope
  - writer.go: pre-write validation using these structs
*/
package record

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// TAGS
// =============================================================================

type Tag string

const (
	TagConfigItem            Tag = "config_item"
	TagConfigCategory        Tag = "config_category"
	TagConfigCollection      Tag = "config_collection"
	TagOpeningStock          Tag = "opening_stock"
	TagStockRestock          Tag = "stock_restock"
	TagStockIssued           Tag = "stock_issued"
	TagDailyClosingStock     Tag = "daily_closing_stock"
	TagRoomBooking           Tag = "room_booking"
	TagCheckoutRecord        Tag = "checkout_record"
	TagPenaltyFee            Tag = "penalty_fee"
	TagPaymentRecord         Tag = "payment_record"
	TagDiscountApplied       Tag = "discount_applied"
	TagRefundRecord          Tag = "refund_record"
	TagStayExtension         Tag = "stay_extension"
	TagRoomTransfer          Tag = "room_transfer"
	TagStayInterruption      Tag = "stay_interruption"
	TagTransferCompletion    Tag = "transfer_completion"
	TagHousekeepingReport    Tag = "housekeeping_report"
	TagInterruptedStayCredit Tag = "interrupted_stay_credit"
)

// Payload is implemented by every concrete payload struct.
type Payload interface {
	PayloadTag() Tag
}

// =============================================================================
// CONFIGURATION PAYLOADS
// =============================================================================

// Assignment is the set of roles a category is assigned to. Two JSON shapes
// exist in the log - an array of role names and a role->bool map - and both
// normalize to the same predicate. See UnmarshalJSON.
type Assignment map[Role]bool

func NewAssignment(roles ...Role) Assignment {
	a := make(Assignment, len(roles))
	for _, r := range roles {
		a[r] = true
	}
	return a
}

// Includes reports whether the assignment covers the role.
func (a Assignment) Includes(role Role) bool { return a[role] }

// IsEmpty reports whether no role is assigned. A map of all-false values
// counts as empty, matching the array shape with no entries.
func (a Assignment) IsEmpty() bool {
	for _, on := range a {
		if on {
			return false
		}
	}
	return true
}

func (a *Assignment) UnmarshalJSON(b []byte) error {
	// Array shape: ["bar","kitchen"]
	var roles []Role
	if err := json.Unmarshal(b, &roles); err == nil {
		*a = NewAssignment(roles...)
		return nil
	}
	// Map shape: {"bar":true,"kitchen":true}
	var m map[Role]bool
	if err := json.Unmarshal(b, &m); err != nil {
		return fmt.Errorf("assignment: expected role array or role map: %w", err)
	}
	*a = Assignment(m)
	return nil
}

func (a Assignment) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[Role]bool(a))
}

type ConfigItem struct {
	ItemName   string          `json:"item_name" validate:"required"`
	Category   string          `json:"category" validate:"required"`
	Collection string          `json:"collection"`
	Unit       string          `json:"unit"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	Active     bool            `json:"active"`
}

func (ConfigItem) PayloadTag() Tag { return TagConfigItem }

type ConfigCategory struct {
	Name       string     `json:"name" validate:"required"`
	AssignedTo Assignment `json:"assigned_to"`
	Active     bool       `json:"active"`
}

func (ConfigCategory) PayloadTag() Tag { return TagConfigCategory }

type ConfigCollection struct {
	Name   string `json:"name" validate:"required"`
	Active bool   `json:"active"`
}

func (ConfigCollection) PayloadTag() Tag { return TagConfigCollection }

// =============================================================================
// STOCK PAYLOADS
// =============================================================================

// OpeningStock is a baseline snapshot: the authoritative on-hand quantity for
// an item on a date. Replay starts from the latest approved baseline.
type OpeningStock struct {
	ItemName string          `json:"item_name" validate:"required"`
	Date     Date            `json:"date" validate:"required"`
	Quantity decimal.Decimal `json:"quantity"`
}

func (OpeningStock) PayloadTag() Tag { return TagOpeningStock }

type StockRestock struct {
	ItemName string          `json:"item_name" validate:"required"`
	Date     Date            `json:"date" validate:"required"`
	Quantity decimal.Decimal `json:"quantity"`
	Supplier string          `json:"supplier,omitempty"`
}

func (StockRestock) PayloadTag() Tag { return TagStockRestock }

type StockIssued struct {
	ItemName string          `json:"item_name" validate:"required"`
	Date     Date            `json:"date" validate:"required"`
	Quantity decimal.Decimal `json:"quantity"`
	IssuedTo Role            `json:"issued_to,omitempty"`
}

func (StockIssued) PayloadTag() Tag { return TagStockIssued }

// DailyClosingStock is the persisted end-of-day sheet row. It is a record of
// what was submitted, not an input to projection arithmetic - closing stock
// is always recomputed from the baseline and movements.
type DailyClosingStock struct {
	ItemName string          `json:"item_name" validate:"required"`
	Date     Date            `json:"date" validate:"required"`
	Opening  decimal.Decimal `json:"opening"`
	Restock  decimal.Decimal `json:"restock"`
	Issued   decimal.Decimal `json:"issued"`
	Closing  decimal.Decimal `json:"closing"`
}

func (DailyClosingStock) PayloadTag() Tag { return TagDailyClosingStock }

// =============================================================================
// BOOKING PAYLOADS
// =============================================================================

type StayStatus string

const (
	StayReserved    StayStatus = "reserved"
	StayCheckedIn   StayStatus = "checked_in"
	StayCheckedOut  StayStatus = "checked_out"
	StayInterrupted StayStatus = "interrupted"
	StayTransferred StayStatus = "transferred"
)

type Guest struct {
	Name  string `json:"name" validate:"required"`
	Phone string `json:"phone,omitempty"`
}

type Stay struct {
	RoomID   string     `json:"room_id" validate:"required"`
	CheckIn  Date       `json:"check_in" validate:"required"`
	CheckOut Date       `json:"check_out" validate:"required"`
	Adults   int        `json:"adults"`
	Children int        `json:"children"`
	Status   StayStatus `json:"status"`
}

type Pricing struct {
	RoomRate      decimal.Decimal `json:"room_rate"`
	Nights        int             `json:"nights"`
	TotalRoomCost decimal.Decimal `json:"total_room_cost"`
}

type BookingPayment struct {
	PaidAmount decimal.Decimal `json:"paid_amount"`
	Method     string          `json:"method,omitempty"`
	Balance    decimal.Decimal `json:"balance"`
}

// RoomBooking is one stay segment. A room transfer closes the old segment and
// opens a successor segment under a new record; both reference the booking
// via BookingID.
type RoomBooking struct {
	BookingID string         `json:"booking_id" validate:"required"`
	Guest     Guest          `json:"guest"`
	Stay      Stay           `json:"stay"`
	Pricing   Pricing        `json:"pricing"`
	Payment   BookingPayment `json:"payment"`
}

func (RoomBooking) PayloadTag() Tag { return TagRoomBooking }

type CheckoutRecord struct {
	BookingID    string          `json:"booking_id" validate:"required"`
	RoomID       string          `json:"room_id"`
	Date         Date            `json:"date"`
	FinalPayment decimal.Decimal `json:"final_payment"`
}

func (CheckoutRecord) PayloadTag() Tag { return TagCheckoutRecord }

type PenaltyFee struct {
	BookingID string          `json:"booking_id" validate:"required"`
	Date      Date            `json:"date"`
	Amount    decimal.Decimal `json:"amount"`
	Reason    string          `json:"reason,omitempty"`
}

func (PenaltyFee) PayloadTag() Tag { return TagPenaltyFee }

type PaymentRecord struct {
	BookingID string          `json:"booking_id" validate:"required"`
	Date      Date            `json:"date"`
	Amount    decimal.Decimal `json:"amount"`
	Method    string          `json:"method,omitempty"`
}

func (PaymentRecord) PayloadTag() Tag { return TagPaymentRecord }

type DiscountApplied struct {
	BookingID string          `json:"booking_id" validate:"required"`
	Date      Date            `json:"date"`
	Amount    decimal.Decimal `json:"amount"`
	Reason    string          `json:"reason,omitempty"`
}

func (DiscountApplied) PayloadTag() Tag { return TagDiscountApplied }

type RefundRecord struct {
	BookingID string          `json:"booking_id" validate:"required"`
	Date      Date            `json:"date"`
	Amount    decimal.Decimal `json:"amount"`
	Reason    string          `json:"reason,omitempty"`
}

func (RefundRecord) PayloadTag() Tag { return TagRefundRecord }

type StayExtension struct {
	BookingID      string          `json:"booking_id" validate:"required"`
	Date           Date            `json:"date"`
	NewCheckOut    Date            `json:"new_check_out"`
	AdditionalCost decimal.Decimal `json:"additional_cost"`
}

func (StayExtension) PayloadTag() Tag { return TagStayExtension }

// =============================================================================
// TRANSFER / INTERRUPTION PAYLOADS
// =============================================================================

// RoomTransfer flags the old room for post-cleaning follow-up. It does not
// itself move the booking; see rooms/transfer.go.
type RoomTransfer struct {
	BookingID      string          `json:"booking_id" validate:"required"`
	PreviousRoomID string          `json:"previous_room_id" validate:"required"`
	NewRoomID      string          `json:"new_room_id" validate:"required"`
	NewRoomRate    decimal.Decimal `json:"new_room_rate"`
	TransferDate   Date            `json:"transfer_date"`
}

func (RoomTransfer) PayloadTag() Tag { return TagRoomTransfer }

// TransferCompletion is the idempotency marker: once written for a booking,
// the successor segment exists and the transfer is never re-applied.
type TransferCompletion struct {
	BookingID string `json:"booking_id" validate:"required"`
	NewRoomID string `json:"new_room_id"`
	SegmentID string `json:"segment_id"`
	Date      Date   `json:"date"`
}

func (TransferCompletion) PayloadTag() Tag { return TagTransferCompletion }

// StayInterruption closes a stay segment early without full settlement.
type StayInterruption struct {
	BookingID string `json:"booking_id" validate:"required"`
	RoomID    string `json:"room_id"`
	Date      Date   `json:"date"`
}

func (StayInterruption) PayloadTag() Tag { return TagStayInterruption }

// InterruptedStayCredit is the resumable credit left over when a stay is
// interrupted before its paid-for nights are used up.
type InterruptedStayCredit struct {
	BookingID string          `json:"booking_id" validate:"required"`
	Guest     Guest           `json:"guest"`
	UsedDays  int             `json:"used_days"`
	UsedCost  decimal.Decimal `json:"used_cost"`
	Credit    decimal.Decimal `json:"credit"`
	Date      Date            `json:"date"`
}

func (InterruptedStayCredit) PayloadTag() Tag { return TagInterruptedStayCredit }

// =============================================================================
// HOUSEKEEPING PAYLOAD
// =============================================================================

type HousekeepingState string

const (
	HousekeepingDirty       HousekeepingState = "dirty"
	HousekeepingCleaned     HousekeepingState = "cleaned"
	HousekeepingInspected   HousekeepingState = "inspected"
	HousekeepingMaintenance HousekeepingState = "maintenance"
	HousekeepingNotReported HousekeepingState = "not_reported"
)

type HousekeepingReport struct {
	RoomID string            `json:"room_id" validate:"required"`
	Date   Date              `json:"date"`
	State  HousekeepingState `json:"state" validate:"required"`
	Notes  string            `json:"notes,omitempty"`
}

func (HousekeepingReport) PayloadTag() Tag { return TagHousekeepingReport }

// =============================================================================
// ENCODE / DECODE
// =============================================================================

type taggedEnvelope struct {
	Type Tag `json:"type"`
}

// EncodePayload marshals a payload with its "type" discriminator injected.
func EncodePayload(p Payload) (json.RawMessage, error) {
	body, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode payload %s: %w", p.PayloadTag(), err)
	}
	// Inject the discriminator without defining a parallel tagged struct per
	// payload kind.
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, fmt.Errorf("encode payload %s: %w", p.PayloadTag(), err)
	}
	tag, _ := json.Marshal(p.PayloadTag())
	fields["type"] = tag
	return json.Marshal(fields)
}

// PeekTag extracts the discriminator without decoding the full payload.
func PeekTag(data json.RawMessage) (Tag, error) {
	var env taggedEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return "", fmt.Errorf("peek payload tag: %w", err)
	}
	if env.Type == "" {
		return "", ErrMissingPayloadTag
	}
	return env.Type, nil
}

// DecodePayload decodes the record's Data into its concrete payload struct.
// Unknown tags are an error: the payload set is closed.
func DecodePayload(r OperationalRecord) (Payload, error) {
	tag, err := PeekTag(r.Data)
	if err != nil {
		return nil, err
	}

	var p Payload
	switch tag {
	case TagConfigItem:
		p = &ConfigItem{}
	case TagConfigCategory:
		p = &ConfigCategory{}
	case TagConfigCollection:
		p = &ConfigCollection{}
	case TagOpeningStock:
		p = &OpeningStock{}
	case TagStockRestock:
		p = &StockRestock{}
	case TagStockIssued:
		p = &StockIssued{}
	case TagDailyClosingStock:
		p = &DailyClosingStock{}
	case TagRoomBooking:
		p = &RoomBooking{}
	case TagCheckoutRecord:
		p = &CheckoutRecord{}
	case TagPenaltyFee:
		p = &PenaltyFee{}
	case TagPaymentRecord:
		p = &PaymentRecord{}
	case TagDiscountApplied:
		p = &DiscountApplied{}
	case TagRefundRecord:
		p = &RefundRecord{}
	case TagStayExtension:
		p = &StayExtension{}
	case TagRoomTransfer:
		p = &RoomTransfer{}
	case TagStayInterruption:
		p = &StayInterruption{}
	case TagTransferCompletion:
		p = &TransferCompletion{}
	case TagHousekeepingReport:
		p = &HousekeepingReport{}
	case TagInterruptedStayCredit:
		p = &InterruptedStayCredit{}
	default:
		return nil, &UnknownTagError{Tag: tag}
	}

	if err := json.Unmarshal(r.Data, p); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", tag, err)
	}
	return p, nil
}

// DecodeAs decodes a record payload into a specific struct, failing when the
// tag does not match. Engines use this when the tag is already known from a
// query filter.
func DecodeAs[T Payload](r OperationalRecord) (T, error) {
	var zero T
	p, err := DecodePayload(r)
	if err != nil {
		return zero, err
	}
	typed, ok := p.(T)
	if !ok {
		return zero, fmt.Errorf("payload tag %s: %w", p.PayloadTag(), ErrPayloadTagMismatch)
	}
	return typed, nil
}
