/*
writer.go - Validated, batched insert path

PURPOSE:
  All writes enter the log through the Writer. It checks the session once up
  front (fail-fast, no partial batch on a dead session), validates every
  record before any insert, then inserts in bounded chunks with per-chunk
  retry.

NON-ATOMIC BY DESIGN:
  On persistent chunk failure, already-inserted chunks are NOT rolled back.
  The log is at-least-once at the storage layer; side-effects derived from it
  are gated by idempotency markers, not transactions. Callers treat partial
  success as a valid terminal outcome and read it off the BatchResult.

VALIDATION:
  Shape-level rules come from validator/v10 struct tags on the payload
  structs. Stock arithmetic (over-issue, negative closing) needs the current
  projected quantity, supplied through the StockChecker interface so this
  package stays independent of the stock engine.
*/
package record

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/lodgekeeper/ops-engine/config"
)

const (
	defaultChunkSize  = 25
	defaultMaxRetries = 3
)

// StockChecker exposes the single projection the writer needs: how much of
// an item is available to issue on a date (opening + restocked - already
// issued). Implemented by stock.Engine.
type StockChecker interface {
	Available(ctx context.Context, itemName string, date Date) (decimal.Decimal, error)
}

// BatchResult reports the terminal outcome of a batch submission. Partial
// success is terminal, not retryable: Inserted records stay in the log.
type BatchResult struct {
	InsertedIDs []string
	FailedIDs   []string
	Err         error
}

func (r BatchResult) AllInserted() bool { return r.Err == nil && len(r.FailedIDs) == 0 }

type Writer struct {
	Store    Store
	Sessions SessionValidator
	Stock    StockChecker // optional; stock checks skipped when nil
	Log      *logrus.Logger

	ChunkSize  int
	MaxRetries int

	validate *validator.Validate
}

func NewWriter(store Store, sessions SessionValidator, log *logrus.Logger) *Writer {
	return &Writer{
		Store:      store,
		Sessions:   sessions,
		Log:        log,
		ChunkSize:  defaultChunkSize,
		MaxRetries: defaultMaxRetries,
		validate:   validator.New(),
	}
}

// Submit validates and inserts a batch of records.
func (w *Writer) Submit(ctx context.Context, sessionToken string, records []OperationalRecord) BatchResult {
	if len(records) == 0 {
		return BatchResult{Err: ErrEmptyBatch}
	}

	// 1. Session check, once, before anything touches the store.
	if err := w.Sessions.Validate(ctx, sessionToken); err != nil {
		return BatchResult{Err: fmt.Errorf("%w: %v", ErrSessionExpired, err)}
	}

	// 2. Validate every record before the first insert.
	for _, rec := range records {
		if err := w.validateRecord(ctx, rec); err != nil {
			return BatchResult{Err: err}
		}
	}

	// 3. Insert in chunks with bounded retry. No rollback of earlier chunks.
	chunkSize := w.ChunkSize
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}

	var result BatchResult
	for start := 0; start < len(records); start += chunkSize {
		end := start + chunkSize
		if end > len(records) {
			end = len(records)
		}
		chunk := records[start:end]

		if err := w.insertChunk(ctx, chunk); err != nil {
			for _, rec := range records[start:] {
				result.FailedIDs = append(result.FailedIDs, rec.ID)
			}
			result.Err = err
			if w.Log != nil {
				config.LogError(w.Log, "record", "Submit",
					fmt.Sprintf("inserted=%d failed=%d", len(result.InsertedIDs), len(result.FailedIDs)), err)
			}
			return result
		}
		for _, rec := range chunk {
			result.InsertedIDs = append(result.InsertedIDs, rec.ID)
		}
	}
	return result
}

func (w *Writer) insertChunk(ctx context.Context, chunk []OperationalRecord) error {
	maxRetries := w.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		lastErr = w.Store.Insert(ctx, chunk)
		if lastErr == nil {
			return nil
		}
		// Client-side errors (duplicates, bad payloads) will not heal on
		// retry.
		if IsClientError(lastErr) {
			return lastErr
		}
	}
	return fmt.Errorf("chunk insert failed after %d attempts: %w", maxRetries, lastErr)
}

// validateRecord runs shape and domain checks for one record.
func (w *Writer) validateRecord(ctx context.Context, rec OperationalRecord) error {
	if !rec.EntityType.Valid() {
		return fmt.Errorf("record %s: %w: entity type %q", rec.ID, ErrInvalidRole, rec.EntityType)
	}
	if rec.ID == "" || rec.OriginalID == "" {
		return fmt.Errorf("record missing identifiers (id=%q original_id=%q)", rec.ID, rec.OriginalID)
	}

	payload, err := DecodePayload(rec)
	if err != nil {
		return err
	}
	if err := w.validate.Struct(payload); err != nil {
		return fmt.Errorf("payload %s: %w", payload.PayloadTag(), err)
	}

	switch p := payload.(type) {
	case *OpeningStock:
		return w.checkQuantity(p.ItemName, p.Quantity)
	case *StockRestock:
		return w.checkQuantity(p.ItemName, p.Quantity)
	case *StockIssued:
		if err := w.checkQuantity(p.ItemName, p.Quantity); err != nil {
			return err
		}
		return w.checkIssue(ctx, p)
	case *DailyClosingStock:
		if p.Closing.IsNegative() {
			return &StockValidationError{ItemName: p.ItemName, Code: "negative_closing", Quantity: p.Closing}
		}
	}
	return nil
}

func (w *Writer) checkQuantity(itemName string, qty decimal.Decimal) error {
	if qty.IsNegative() {
		return &StockValidationError{ItemName: itemName, Code: "negative_quantity", Quantity: qty}
	}
	return nil
}

// checkIssue rejects issues that exceed what the projection says is on hand.
func (w *Writer) checkIssue(ctx context.Context, p *StockIssued) error {
	if w.Stock == nil {
		return nil
	}
	available, err := w.Stock.Available(ctx, p.ItemName, p.Date)
	if err != nil {
		return fmt.Errorf("check available stock for %s: %w", p.ItemName, err)
	}
	if p.Quantity.GreaterThan(available) {
		return &StockValidationError{
			ItemName: p.ItemName,
			Code:     "over_issue",
			Quantity: p.Quantity,
			Limit:    available,
		}
	}
	return nil
}
