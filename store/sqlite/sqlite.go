/*
Package sqlite provides the SQLite-backed record store.

PURPOSE:
  Implements record.Store over a single append-only records table. The same
  patterns apply to PostgreSQL - only minor SQL dialect differences.

APPEND-ONLY ENFORCEMENT:
  - No DELETE statements exist.
  - The only UPDATE touches the status column (approval workflow).
  - Corrections and removals are new versions, written through Insert.

PAYLOAD TAG COLUMN:
  The "type" discriminator is extracted into its own column at insert time so
  tag-filtered queries do not parse JSON per row. The JSON blob stays the
  source of truth; the column is derived.

PRE-AGGREGATED PROCEDURES:
  The store also implements stock.ProcedureCaller: version resolution is
  pushed into SQL (an anti-join picks each entity's winning version) and only
  the surviving rows are summed in Go with decimal arithmetic, so results
  match local replay exactly.

CONCURRENCY:
  WAL mode plus a sync.RWMutex. Multiple readers don't block; a single
  in-process writer at a time keeps SQLite's busy errors away.

USAGE:
  store, err := sqlite.New("./data/ops.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - record/store.go: interface definitions
  - record/store/memory.go: in-memory implementation for tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/lodgekeeper/ops-engine/record"
	"github.com/lodgekeeper/ops-engine/stock"
)

// Store implements record.Store and stock.ProcedureCaller using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a SQLite store. Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	-- Operational records (append-only log)
	CREATE TABLE IF NOT EXISTS records (
		id TEXT PRIMARY KEY,
		original_id TEXT NOT NULL,
		version_no INTEGER NOT NULL,
		entity_type TEXT NOT NULL,
		data TEXT NOT NULL,
		payload_tag TEXT NOT NULL,
		financial_amount TEXT NOT NULL DEFAULT '0',
		status TEXT NOT NULL,
		submitted_by TEXT,
		created_at TEXT NOT NULL,
		deleted_at TEXT
	);

	-- Version resolution (hot path): all versions of an entity together
	CREATE INDEX IF NOT EXISTS idx_records_original_version
		ON records(original_id, version_no DESC, created_at DESC);

	-- Tag-filtered replay queries
	CREATE INDEX IF NOT EXISTS idx_records_tag
		ON records(payload_tag);

	-- Approval queue and department scans
	CREATE INDEX IF NOT EXISTS idx_records_entity_status
		ON records(entity_type, status);

	CREATE INDEX IF NOT EXISTS idx_records_created_at
		ON records(created_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// RECORD STORE (record.Store interface)
// =============================================================================

// Insert appends records. The batch runs in one SQL transaction so a
// duplicate ID rejects the whole call - chunk-level atomicity, nothing more.
func (s *Store) Insert(ctx context.Context, records []record.OperationalRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	for _, rec := range records {
		if err := insertRecord(ctx, sqlTx, rec); err != nil {
			return err
		}
	}
	return sqlTx.Commit()
}

func insertRecord(ctx context.Context, tx *sql.Tx, rec record.OperationalRecord) error {
	tag, err := record.PeekTag(rec.Data)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO records
		(id, original_id, version_no, entity_type, data, payload_tag,
		 financial_amount, status, submitted_by, created_at, deleted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = tx.ExecContext(ctx, query,
		rec.ID,
		rec.OriginalID,
		rec.VersionNo,
		string(rec.EntityType),
		string(rec.Data),
		string(tag),
		rec.FinancialAmount.String(),
		string(rec.Status),
		rec.SubmittedBy,
		rec.CreatedAt.UTC().Format(time.RFC3339Nano),
		nullTime(rec.DeletedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			// Translate the raw constraint violation into the domain error.
			return record.ErrDuplicateRecord
		}
		return fmt.Errorf("failed to insert record: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (record.OperationalRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, selectColumns+" FROM records WHERE id = ?", id)
	if err != nil {
		return record.OperationalRecord{}, fmt.Errorf("failed to query record: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return record.OperationalRecord{}, err
		}
		return record.OperationalRecord{}, record.ErrRecordNotFound
	}
	return scanRecord(rows)
}

// Query returns records matching the filters, ordered per q.Order.
func (s *Store) Query(ctx context.Context, q record.Query) ([]record.OperationalRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		where []string
		args  []any
	)
	if q.EntityType != nil {
		where = append(where, "entity_type = ?")
		args = append(args, string(*q.EntityType))
	}
	if q.Status != nil {
		where = append(where, "status = ?")
		args = append(args, string(*q.Status))
	}
	if q.OriginalID != "" {
		where = append(where, "original_id = ?")
		args = append(args, q.OriginalID)
	}
	if q.Tag != nil {
		where = append(where, "payload_tag = ?")
		args = append(args, string(*q.Tag))
	}
	if len(q.Tags) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(q.Tags)), ",")
		where = append(where, "payload_tag IN ("+placeholders+")")
		for _, tag := range q.Tags {
			args = append(args, string(tag))
		}
	}
	if !q.From.IsZero() {
		where = append(where, "created_at >= ?")
		args = append(args, q.From.UTC().Format(time.RFC3339Nano))
	}
	if !q.To.IsZero() {
		where = append(where, "created_at <= ?")
		args = append(args, q.To.UTC().Format(time.RFC3339Nano))
	}

	query := selectColumns + " FROM records"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	switch q.Order {
	case record.OrderByVersion:
		query += " ORDER BY original_id ASC, version_no ASC, created_at ASC"
	default:
		query += " ORDER BY created_at ASC, id ASC"
	}

	return s.queryRecords(ctx, query, args...)
}

// UpdateStatus is the single sanctioned mutation: the approval gate.
func (s *Store) UpdateStatus(ctx context.Context, id string, status record.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.ExecContext(ctx,
		"UPDATE records SET status = ? WHERE id = ?",
		string(status), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return record.ErrRecordNotFound
	}
	return nil
}

// =============================================================================
// PRE-AGGREGATED PROCEDURES (stock.ProcedureCaller interface)
// =============================================================================

// currentApprovedCTE selects each entity's winning version (the anti-join
// mirrors record.ResolveLatest, tombstones included). Callers still filter
// for approved, non-deleted survivors - that matches record.Projectable.
const currentApprovedCTE = `
	WITH current AS (
		SELECT r.* FROM records r
		WHERE NOT EXISTS (
			SELECT 1 FROM records o
			WHERE o.original_id = r.original_id AND (
				o.version_no > r.version_no
				OR (o.version_no = r.version_no AND o.created_at > r.created_at)
				OR (o.version_no = r.version_no AND o.created_at = r.created_at AND o.id > r.id)
			)
		)
	)
`

// Available probes the JSON1 functions the procedures depend on.
func (s *Store) Available(ctx context.Context) bool {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT json_extract('{"a":1}', '$.a')`).Scan(&one)
	return err == nil && one == 1
}

// ExpectedOpeningStock returns the latest baseline snapshot per item at or
// before a date. Items without a snapshot are absent from the result.
func (s *Store) ExpectedOpeningStock(ctx context.Context, itemNames []string, date record.Date) (map[string]stock.Baseline, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]stock.Baseline, len(itemNames))
	query := currentApprovedCTE + `
		SELECT json_extract(data, '$.quantity'), json_extract(data, '$.date')
		FROM current
		WHERE payload_tag = 'opening_stock'
		  AND status = 'approved' AND deleted_at IS NULL
		  AND json_extract(data, '$.item_name') = ?
		  AND json_extract(data, '$.date') <= ?
		ORDER BY json_extract(data, '$.date') DESC, created_at DESC, id DESC
		LIMIT 1
	`
	for _, name := range itemNames {
		var quantity, dateStr string
		err := s.db.QueryRowContext(ctx, query, name, date.String()).Scan(&quantity, &dateStr)
		if err == sql.ErrNoRows {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("expected opening stock for %s: %w", name, err)
		}
		qty, err := decimal.NewFromString(quantity)
		if err != nil {
			return nil, fmt.Errorf("expected opening stock for %s: %w", name, err)
		}
		snapDate, err := record.ParseDate(dateStr)
		if err != nil {
			return nil, fmt.Errorf("expected opening stock for %s: %w", name, err)
		}
		out[name] = stock.Baseline{Quantity: qty, Date: snapDate, Found: true}
	}
	return out, nil
}

// MovementTotals sums restock and issued quantities for an item over
// [from, to] inclusive; a zero from leaves the window open on the left.
// Rows are filtered in SQL; the sum runs in Go with decimal so totals are
// identical to local replay.
func (s *Store) MovementTotals(ctx context.Context, itemName string, from, to record.Date) (stock.Movements, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := currentApprovedCTE + `
		SELECT payload_tag, json_extract(data, '$.quantity')
		FROM current
		WHERE payload_tag IN ('stock_restock', 'stock_issued')
		  AND status = 'approved' AND deleted_at IS NULL
		  AND json_extract(data, '$.item_name') = ?
		  AND json_extract(data, '$.date') <= ?
	`
	args := []any{itemName, to.String()}
	if !from.IsZero() {
		query += ` AND json_extract(data, '$.date') >= ?`
		args = append(args, from.String())
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return stock.Movements{}, fmt.Errorf("movement totals for %s: %w", itemName, err)
	}
	defer rows.Close()

	var m stock.Movements
	for rows.Next() {
		var tag, quantity string
		if err := rows.Scan(&tag, &quantity); err != nil {
			return stock.Movements{}, err
		}
		qty, err := decimal.NewFromString(quantity)
		if err != nil {
			return stock.Movements{}, fmt.Errorf("movement totals for %s: %w", itemName, err)
		}
		if tag == string(record.TagStockRestock) {
			m.Restock = m.Restock.Add(qty)
		} else {
			m.Issued = m.Issued.Add(qty)
		}
	}
	return m, rows.Err()
}

// =============================================================================
// SCANNING / HELPERS
// =============================================================================

const selectColumns = `
	SELECT id, original_id, version_no, entity_type, data,
	       financial_amount, status, submitted_by, created_at, deleted_at
`

func (s *Store) queryRecords(ctx context.Context, query string, args ...any) ([]record.OperationalRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	var records []record.OperationalRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func scanRecord(rows *sql.Rows) (record.OperationalRecord, error) {
	var (
		rec             record.OperationalRecord
		entityType      string
		data            string
		financialAmount string
		status          string
		submittedBy     sql.NullString
		createdAt       string
		deletedAt       sql.NullString
	)

	err := rows.Scan(
		&rec.ID, &rec.OriginalID, &rec.VersionNo, &entityType, &data,
		&financialAmount, &status, &submittedBy, &createdAt, &deletedAt,
	)
	if err != nil {
		return rec, fmt.Errorf("failed to scan record: %w", err)
	}

	rec.EntityType = record.Role(entityType)
	rec.Data = []byte(data)
	rec.Status = record.Status(status)
	rec.SubmittedBy = submittedBy.String

	rec.FinancialAmount, err = decimal.NewFromString(financialAmount)
	if err != nil {
		return rec, fmt.Errorf("failed to scan record amount: %w", err)
	}
	rec.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return rec, fmt.Errorf("failed to scan record timestamp: %w", err)
	}
	if deletedAt.Valid && deletedAt.String != "" {
		t, err := time.Parse(time.RFC3339Nano, deletedAt.String)
		if err != nil {
			return rec, fmt.Errorf("failed to scan record tombstone: %w", err)
		}
		rec.DeletedAt = &t
	}
	return rec, nil
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339Nano), Valid: true}
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
