/*
dto.go - Request/response shapes and JSON helpers

PURPOSE:
  Wire-level structs for the HTTP API plus the shared respond/error helpers.
  Handlers never build ad-hoc maps for success responses; every response body
  has a struct here.

ERROR MAPPING:
  Domain errors map to status codes in one place (writeError):
    not found            -> 404
    invalid transition   -> 409
    housekeeping gate    -> 409
    session expired      -> 401
    other client errors  -> 400
    everything else      -> 500
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/lodgekeeper/ops-engine/record"
	"github.com/lodgekeeper/ops-engine/rooms"
)

// =============================================================================
// REQUESTS
// =============================================================================

// SubmitRequest is a batch of new records. Payloads are raw tagged JSON; the
// handler decodes them through the closed payload registry before anything is
// written.
type SubmitRequest struct {
	SubmittedBy string        `json:"submitted_by"`
	Role        record.Role   `json:"role"`
	Records     []RecordInput `json:"records"`
}

type RecordInput struct {
	// EntityType defaults to the submitter role when empty.
	EntityType record.Role `json:"entity_type,omitempty"`

	// FinancialAmount is the monetary value of the action, when any.
	FinancialAmount decimal.Decimal `json:"financial_amount"`

	Payload json.RawMessage `json:"payload"`
}

// VersionRequest submits a correction for an existing record.
type VersionRequest struct {
	SubmittedBy string          `json:"submitted_by"`
	Role        record.Role     `json:"role"`
	Payload     json.RawMessage `json:"payload"`
}

// DeleteRequest appends a tombstone version.
type DeleteRequest struct {
	SubmittedBy string      `json:"submitted_by"`
	Role        record.Role `json:"role"`
}

// CheckoutRequest drives standard and interrupted checkout.
type CheckoutRequest struct {
	Actor string      `json:"actor"`
	Date  record.Date `json:"date"`
}

// TransferRequest flags a room transfer.
type TransferRequest struct {
	Actor    string              `json:"actor"`
	Role     record.Role         `json:"role"`
	Transfer record.RoomTransfer `json:"transfer"`
}

// HousekeepingRequest files a housekeeping report. The transfer orchestrator
// runs after the report is persisted.
type HousekeepingRequest struct {
	Actor  string                    `json:"actor"`
	Role   record.Role               `json:"role"`
	Report record.HousekeepingReport `json:"report"`
}

// =============================================================================
// RESPONSES
// =============================================================================

type SubmitResponse struct {
	InsertedIDs []string `json:"inserted_ids"`
	FailedIDs   []string `json:"failed_ids,omitempty"`
	Error       string   `json:"error,omitempty"`
}

// RecordResponse is the wire form of one operational record.
type RecordResponse struct {
	ID              string          `json:"id"`
	OriginalID      string          `json:"original_id"`
	VersionNo       int             `json:"version_no"`
	EntityType      record.Role     `json:"entity_type"`
	Payload         json.RawMessage `json:"payload"`
	FinancialAmount decimal.Decimal `json:"financial_amount"`
	Status          record.Status   `json:"status"`
	SubmittedBy     string          `json:"submitted_by,omitempty"`
	CreatedAt       string          `json:"created_at"`
	Deleted         bool            `json:"deleted"`
}

func toRecordResponse(rec record.OperationalRecord) RecordResponse {
	return RecordResponse{
		ID:              rec.ID,
		OriginalID:      rec.OriginalID,
		VersionNo:       rec.VersionNo,
		EntityType:      rec.EntityType,
		Payload:         rec.Data,
		FinancialAmount: rec.FinancialAmount,
		Status:          rec.Status,
		SubmittedBy:     rec.SubmittedBy,
		CreatedAt:       rec.CreatedAt.UTC().Format(time.RFC3339),
		Deleted:         rec.IsDeleted(),
	}
}

func toRecordResponses(recs []record.OperationalRecord) []RecordResponse {
	out := make([]RecordResponse, 0, len(recs))
	for _, rec := range recs {
		out = append(out, toRecordResponse(rec))
	}
	return out
}

// LedgerEntryResponse is one derived ledger line.
type LedgerEntryResponse struct {
	ID          string          `json:"id"`
	Date        record.Date     `json:"date"`
	Type        string          `json:"type"`
	Category    string          `json:"category"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description,omitempty"`
}

type LedgerSummaryResponse struct {
	TotalCharges  decimal.Decimal `json:"total_charges"`
	TotalPayments decimal.Decimal `json:"total_payments"`
	Balance       decimal.Decimal `json:"balance"`
}

type LedgerResponse struct {
	BookingID string                `json:"booking_id"`
	Entries   []LedgerEntryResponse `json:"entries"`
	Summary   LedgerSummaryResponse `json:"summary"`
}

// SheetResponse is one item's daily stock sheet.
type SheetResponse struct {
	ItemName         string          `json:"item_name"`
	Date             record.Date     `json:"date"`
	Opening          decimal.Decimal `json:"opening"`
	SubmittedRestock decimal.Decimal `json:"submitted_restock"`
	SubmittedIssued  decimal.Decimal `json:"submitted_issued"`
	Closing          decimal.Decimal `json:"closing"`
}

// MonthlyStockResponse is one item's monthly stock summary.
type MonthlyStockResponse struct {
	ItemName          string          `json:"item_name"`
	Month             record.Date     `json:"month"`
	OpeningMonthStart decimal.Decimal `json:"opening_month_start"`
	InMonthRestock    decimal.Decimal `json:"in_month_restock"`
	InMonthIssued     decimal.Decimal `json:"in_month_issued"`
	ClosingMonthEnd   decimal.Decimal `json:"closing_month_end"`
}

// ReportResponse is the per-collection income/expenditure report.
type ReportResponse struct {
	From             record.Date                `json:"from"`
	To               record.Date                `json:"to"`
	Income           map[string]decimal.Decimal `json:"income"`
	Expenditure      map[string]decimal.Decimal `json:"expenditure"`
	TotalIncome      decimal.Decimal            `json:"total_income"`
	TotalExpenditure decimal.Decimal            `json:"total_expenditure"`
	Net              decimal.Decimal            `json:"net"`
}

// RoomViewResponse is one derived board row.
type RoomViewResponse struct {
	RoomID              string                   `json:"room_id"`
	Status              rooms.RoomState          `json:"status"`
	Housekeeping        record.HousekeepingState `json:"housekeeping"`
	CurrentGuest        string                   `json:"current_guest,omitempty"`
	CheckOut            record.Date              `json:"check_out,omitempty"`
	UpcomingReservation string                   `json:"upcoming_reservation,omitempty"`
	UpcomingCheckIn     record.Date              `json:"upcoming_check_in,omitempty"`
}

func toRoomViewResponse(v rooms.RoomView) RoomViewResponse {
	return RoomViewResponse{
		RoomID:              v.RoomID,
		Status:              v.Status,
		Housekeeping:        v.Housekeeping,
		CurrentGuest:        v.CurrentGuest,
		CheckOut:            v.CheckOut,
		UpcomingReservation: v.UpcomingReservation,
		UpcomingCheckIn:     v.UpcomingCheckIn,
	}
}

type CheckoutResponse struct {
	BookingID    string          `json:"booking_id"`
	RoomID       string          `json:"room_id"`
	FinalPayment decimal.Decimal `json:"final_payment"`
	RecordIDs    []string        `json:"record_ids"`
}

type InterruptionResponse struct {
	BookingID       string          `json:"booking_id"`
	UsedDays        int             `json:"used_days"`
	UsedCost        decimal.Decimal `json:"used_cost"`
	CreditRemaining decimal.Decimal `json:"credit_remaining"`
	RecordIDs       []string        `json:"record_ids"`
}

type TransferResponse struct {
	RecordIDs []string `json:"record_ids"`
}

type HousekeepingResponse struct {
	RecordIDs         []string `json:"record_ids"`
	CompletedSegments []string `json:"completed_segments,omitempty"`
}

type HealthResponse struct {
	Status string `json:"status"`
	Source string `json:"source"`
}

// =============================================================================
// JSON HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func readJSON(r *http.Request, target any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(target)
}

type errorBody struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError

	var validationErrs validator.ValidationErrors
	switch {
	case record.IsNotFound(err) || errors.Is(err, rooms.ErrBookingNotFound):
		status = http.StatusNotFound
	case errors.Is(err, record.ErrSessionExpired):
		status = http.StatusUnauthorized
	case errors.Is(err, record.ErrInvalidTransition),
		errors.Is(err, rooms.ErrHousekeepingNotCleared):
		status = http.StatusConflict
	case record.IsClientError(err), errors.As(err, &validationErrs):
		status = http.StatusBadRequest
	}
	writeJSON(w, status, errorBody{Error: err.Error()})
}
