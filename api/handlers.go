/*
handlers.go - HTTP handlers for the operations engine

PURPOSE:
  Exposes the record log, approval workflow, stock and ledger projections,
  the room board, and the checkout/transfer operations over REST. Handlers
  translate wire input into engine calls and never contain domain logic.

SESSION:
  The session token arrives in the X-Session-Token header. Validation happens
  inside the record writer, once per write burst.

SEE ALSO:
  - server.go: route wiring
  - dto.go: request/response shapes and error mapping
*/
package api

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/lodgekeeper/ops-engine/catalog"
	"github.com/lodgekeeper/ops-engine/ledger"
	"github.com/lodgekeeper/ops-engine/record"
	"github.com/lodgekeeper/ops-engine/rooms"
	"github.com/lodgekeeper/ops-engine/stock"
)

const sessionHeader = "X-Session-Token"

// Handler holds the engine dependencies for all routes.
type Handler struct {
	Store    record.Store
	Writer   *record.Writer
	Workflow *record.Workflow
	Catalog  *catalog.Loader
	Stock    *stock.Engine
	Ledger   *ledger.Service
	Reporter *ledger.Reporter
	Board    *rooms.Board
	Checkout *rooms.CheckoutService
	Transfer *rooms.TransferOrchestrator

	// SourceName names the aggregation source the stock engine ended up with
	// ("remote" or "local"); surfaced on /api/health.
	SourceName string

	Log *logrus.Logger
}

// NewHandler wires the engines over one store and writer.
func NewHandler(store record.Store, writer *record.Writer, stockEngine *stock.Engine, sourceName string, log *logrus.Logger) *Handler {
	loader := catalog.NewLoader(store)
	ledgerSvc := ledger.NewService(store)
	return &Handler{
		Store:      store,
		Writer:     writer,
		Workflow:   record.NewWorkflow(store),
		Catalog:    loader,
		Stock:      stockEngine,
		Ledger:     ledgerSvc,
		Reporter:   ledger.NewReporter(store, loader),
		Board:      rooms.NewBoard(store),
		Checkout:   rooms.NewCheckoutService(store, writer, ledgerSvc),
		Transfer:   rooms.NewTransferOrchestrator(store, writer, log),
		SourceName: sourceName,
		Log:        log,
	}
}

// =============================================================================
// RECORD LOG
// =============================================================================

// SubmitRecords accepts a batch of new records.
func (h *Handler) SubmitRecords(w http.ResponseWriter, r *http.Request) {
	var req SubmitRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, fmt.Errorf("invalid request body: %w", err))
		return
	}
	if !req.Role.Valid() {
		writeError(w, fmt.Errorf("%w: %q", record.ErrInvalidRole, req.Role))
		return
	}

	batch := make([]record.OperationalRecord, 0, len(req.Records))
	for _, input := range req.Records {
		payload, err := record.DecodePayload(record.OperationalRecord{Data: input.Payload})
		if err != nil {
			writeError(w, err)
			return
		}
		entityType := input.EntityType
		if entityType == "" {
			entityType = req.Role
		}
		rec, err := record.New(entityType, req.SubmittedBy, req.Role, payload)
		if err != nil {
			writeError(w, err)
			return
		}
		rec.FinancialAmount = input.FinancialAmount
		batch = append(batch, rec)
	}

	h.writeBatch(w, r, batch)
}

func (h *Handler) writeBatch(w http.ResponseWriter, r *http.Request, batch []record.OperationalRecord) {
	result := h.Writer.Submit(r.Context(), r.Header.Get(sessionHeader), batch)
	if result.Err != nil && len(result.InsertedIDs) == 0 {
		writeError(w, result.Err)
		return
	}

	resp := SubmitResponse{InsertedIDs: result.InsertedIDs, FailedIDs: result.FailedIDs}
	if result.Err != nil {
		// Partial success is terminal: report what landed and what did not.
		resp.Error = result.Err.Error()
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (h *Handler) GetRecord(w http.ResponseWriter, r *http.Request) {
	rec, err := h.Store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRecordResponse(rec))
}

// GetHistory returns every version of the record's logical entity.
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	rec, err := h.Store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	versions, err := h.Store.Query(r.Context(), record.Query{
		OriginalID: rec.OriginalID,
		Order:      record.OrderByVersion,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRecordResponses(versions))
}

// SubmitVersion appends a correction version for an existing record.
func (h *Handler) SubmitVersion(w http.ResponseWriter, r *http.Request) {
	var req VersionRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, fmt.Errorf("invalid request body: %w", err))
		return
	}

	prev, err := h.latestVersionOf(r, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	payload, err := record.DecodePayload(record.OperationalRecord{Data: req.Payload})
	if err != nil {
		writeError(w, err)
		return
	}
	rec, err := record.NewVersion(prev, req.SubmittedBy, req.Role, payload)
	if err != nil {
		writeError(w, err)
		return
	}
	h.writeBatch(w, r, []record.OperationalRecord{rec})
}

// DeleteRecord appends a tombstone version. Nothing is removed from the log.
func (h *Handler) DeleteRecord(w http.ResponseWriter, r *http.Request) {
	var req DeleteRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, fmt.Errorf("invalid request body: %w", err))
		return
	}

	prev, err := h.latestVersionOf(r, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	h.writeBatch(w, r, []record.OperationalRecord{
		record.NewDeletion(prev, req.SubmittedBy, req.Role),
	})
}

// latestVersionOf resolves the current version of the entity the given record
// belongs to, so corrections chain off the right VersionNo.
func (h *Handler) latestVersionOf(r *http.Request, id string) (record.OperationalRecord, error) {
	rec, err := h.Store.Get(r.Context(), id)
	if err != nil {
		return record.OperationalRecord{}, err
	}
	versions, err := h.Store.Query(r.Context(), record.Query{
		OriginalID: rec.OriginalID,
		Order:      record.OrderByVersion,
	})
	if err != nil {
		return record.OperationalRecord{}, err
	}
	current, err := record.ResolveCurrent(versions, rec.OriginalID)
	if record.IsNotFound(err) {
		// Entity is tombstoned; chain off the stored record.
		return rec, nil
	}
	return current, err
}

// =============================================================================
// APPROVAL WORKFLOW
// =============================================================================

func (h *Handler) ListPending(w http.ResponseWriter, r *http.Request) {
	entityType := record.Role(r.URL.Query().Get("entity_type"))
	pending, err := h.Workflow.Pending(r.Context(), entityType)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRecordResponses(pending))
}

func (h *Handler) ApproveRecord(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.Workflow.Approve)
}

func (h *Handler) RejectRecord(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.Workflow.Reject)
}

func (h *Handler) ArchiveRecord(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.Workflow.Archive)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, apply func(context.Context, string) error) {
	id := chi.URLParam(r, "id")
	if err := apply(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	rec, err := h.Store.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRecordResponse(rec))
}

// =============================================================================
// CATALOG
// =============================================================================

func (h *Handler) ListItems(w http.ResponseWriter, r *http.Request) {
	graph, err := h.Catalog.Graph(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	items := graph.Items()
	sort.Slice(items, func(i, j int) bool { return items[i].ItemName < items[j].ItemName })
	writeJSON(w, http.StatusOK, items)
}

// =============================================================================
// STOCK PROJECTIONS
// =============================================================================

func (h *Handler) StockSheet(w http.ResponseWriter, r *http.Request) {
	item := r.URL.Query().Get("item")
	date, err := dateParam(r, "date")
	if err != nil {
		writeError(w, err)
		return
	}
	sheet, err := h.Stock.DailySheet(r.Context(), item, date)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SheetResponse{
		ItemName:         sheet.ItemName,
		Date:             sheet.Date,
		Opening:          sheet.Opening,
		SubmittedRestock: sheet.SubmittedRestock,
		SubmittedIssued:  sheet.SubmittedIssued,
		Closing:          sheet.Closing,
	})
}

func (h *Handler) StockMonthly(w http.ResponseWriter, r *http.Request) {
	month, err := monthParam(r)
	if err != nil {
		writeError(w, err)
		return
	}

	items := splitParam(r.URL.Query().Get("items"))
	if len(items) == 0 {
		// Default to every catalog item.
		graph, err := h.Catalog.Graph(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		for _, item := range graph.Items() {
			items = append(items, item.ItemName)
		}
		sort.Strings(items)
	}

	summaries, err := h.Stock.MonthlySummaries(r.Context(), items, month)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]MonthlyStockResponse, 0, len(summaries))
	for _, s := range summaries {
		out = append(out, MonthlyStockResponse{
			ItemName:          s.ItemName,
			Month:             s.Month,
			OpeningMonthStart: s.OpeningMonthStart,
			InMonthRestock:    s.InMonthRestock,
			InMonthIssued:     s.InMonthIssued,
			ClosingMonthEnd:   s.ClosingMonthEnd,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// =============================================================================
// LEDGER AND REPORTS
// =============================================================================

func (h *Handler) BookingLedger(w http.ResponseWriter, r *http.Request) {
	bookingID := chi.URLParam(r, "bookingID")
	entries, summary, err := h.Ledger.ForBooking(r.Context(), bookingID)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := LedgerResponse{
		BookingID: bookingID,
		Entries:   make([]LedgerEntryResponse, 0, len(entries)),
		Summary: LedgerSummaryResponse{
			TotalCharges:  summary.TotalCharges,
			TotalPayments: summary.TotalPayments,
			Balance:       summary.Balance,
		},
	}
	for _, e := range entries {
		resp.Entries = append(resp.Entries, LedgerEntryResponse{
			ID:          e.ID,
			Date:        e.Date,
			Type:        string(e.Type),
			Category:    string(e.Category),
			Amount:      e.Amount,
			Description: e.Description,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// DepartmentReport aggregates income/expenditure by collection for either an
// explicit from/to window or a month parameter.
func (h *Handler) DepartmentReport(w http.ResponseWriter, r *http.Request) {
	var report ledger.DepartmentReport
	var err error

	if monthStr := r.URL.Query().Get("month"); monthStr != "" {
		var month record.Date
		month, err = parseMonth(monthStr)
		if err != nil {
			writeError(w, err)
			return
		}
		report, err = h.Reporter.Month(r.Context(), month)
	} else {
		var from, to record.Date
		from, err = dateParam(r, "from")
		if err == nil {
			to, err = dateParam(r, "to")
		}
		if err != nil {
			writeError(w, err)
			return
		}
		report, err = h.Reporter.Window(r.Context(), from, to)
	}
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, ReportResponse{
		From:             report.From,
		To:               report.To,
		Income:           report.Income,
		Expenditure:      report.Expenditure,
		TotalIncome:      report.TotalIncome,
		TotalExpenditure: report.TotalExpenditure,
		Net:              report.Net,
	})
}

// =============================================================================
// ROOM BOARD AND OPERATIONS
// =============================================================================

func (h *Handler) RoomBoard(w http.ResponseWriter, r *http.Request) {
	asOf, err := dateParam(r, "date")
	if err != nil {
		writeError(w, err)
		return
	}
	views, err := h.Board.Statuses(r.Context(), asOf)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]RoomViewResponse, 0, len(views))
	for _, v := range views {
		out = append(out, toRoomViewResponse(v))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) RoomStatus(w http.ResponseWriter, r *http.Request) {
	asOf, err := dateParam(r, "date")
	if err != nil {
		writeError(w, err)
		return
	}
	view, err := h.Board.Room(r.Context(), chi.URLParam(r, "roomID"), asOf)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRoomViewResponse(view))
}

func (h *Handler) CheckoutBooking(w http.ResponseWriter, r *http.Request) {
	var req CheckoutRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, fmt.Errorf("invalid request body: %w", err))
		return
	}
	if req.Date.IsZero() {
		req.Date = record.Today()
	}

	result, err := h.Checkout.Checkout(r.Context(), r.Header.Get(sessionHeader),
		chi.URLParam(r, "bookingID"), req.Actor, req.Date)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, CheckoutResponse{
		BookingID:    result.BookingID,
		RoomID:       result.RoomID,
		FinalPayment: result.FinalPayment,
		RecordIDs:    result.Records.InsertedIDs,
	})
}

func (h *Handler) InterruptBooking(w http.ResponseWriter, r *http.Request) {
	var req CheckoutRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, fmt.Errorf("invalid request body: %w", err))
		return
	}
	if req.Date.IsZero() {
		req.Date = record.Today()
	}

	result, err := h.Checkout.Interrupt(r.Context(), r.Header.Get(sessionHeader),
		chi.URLParam(r, "bookingID"), req.Actor, req.Date)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, InterruptionResponse{
		BookingID:       result.BookingID,
		UsedDays:        result.UsedDays,
		UsedCost:        result.UsedCost,
		CreditRemaining: result.CreditRemaining,
		RecordIDs:       result.Records.InsertedIDs,
	})
}

func (h *Handler) RecordTransfer(w http.ResponseWriter, r *http.Request) {
	var req TransferRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, fmt.Errorf("invalid request body: %w", err))
		return
	}

	result, err := h.Transfer.Record(r.Context(), r.Header.Get(sessionHeader),
		req.Transfer, req.Actor, req.Role)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, TransferResponse{RecordIDs: result.InsertedIDs})
}

// FileHousekeeping persists the report and then runs the transfer
// orchestrator, which may complete a pending transfer for the room.
func (h *Handler) FileHousekeeping(w http.ResponseWriter, r *http.Request) {
	var req HousekeepingRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, fmt.Errorf("invalid request body: %w", err))
		return
	}

	rec, err := record.New(req.Role, req.Actor, req.Role, &req.Report)
	if err != nil {
		writeError(w, err)
		return
	}
	token := r.Header.Get(sessionHeader)
	result := h.Writer.Submit(r.Context(), token, []record.OperationalRecord{rec})
	if result.Err != nil {
		writeError(w, result.Err)
		return
	}

	// A pending report must not trigger approved side effects; the
	// orchestrator runs once the report itself projects.
	var completed []string
	if rec.Status == record.StatusApproved {
		completed, err = h.Transfer.OnHousekeepingReport(r.Context(), token, req.Report, req.Actor)
		if err != nil {
			writeError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusCreated, HousekeepingResponse{
		RecordIDs:         result.InsertedIDs,
		CompletedSegments: completed,
	})
}

// =============================================================================
// HEALTH
// =============================================================================

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", Source: h.SourceName})
}

// =============================================================================
// PARAM PARSING
// =============================================================================

// dateParam parses a YYYY-MM-DD query parameter, defaulting to today.
func dateParam(r *http.Request, name string) (record.Date, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return record.Today(), nil
	}
	date, err := record.ParseDate(raw)
	if err != nil {
		return record.Date{}, fmt.Errorf("invalid %s parameter %q: %w", name, raw, err)
	}
	return date, nil
}

func monthParam(r *http.Request) (record.Date, error) {
	raw := r.URL.Query().Get("month")
	if raw == "" {
		return record.Today().MonthStart(), nil
	}
	return parseMonth(raw)
}

// parseMonth accepts YYYY-MM or any date within the month.
func parseMonth(raw string) (record.Date, error) {
	if len(raw) == len("2006-01") {
		raw += "-01"
	}
	date, err := record.ParseDate(raw)
	if err != nil {
		return record.Date{}, fmt.Errorf("invalid month parameter %q: %w", raw, err)
	}
	return date.MonthStart(), nil
}

func splitParam(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
