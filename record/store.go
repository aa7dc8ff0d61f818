/*
store.go - Persistence interface for the operational log

PURPOSE:
  Defines the narrow interface between the engines and the database. Records
  are append-only: Insert is the only way data enters the log, UpdateStatus
  is the single sanctioned mutation (the approval gate), and there is no
  delete - tombstone versions handle removal.

QUERY MODEL:
  Engines issue filtered range queries (entity type, status, payload tag,
  date window) and aggregate in memory. Queries are read-only and safe to
  run concurrently; the store holds no projection state.

IMPLEMENTATIONS:
  - store/sqlite: production store
  - record/store: in-memory store for tests and dev

SEE ALSO:
  - resolver.go: collapses query results into current versions
  - writer.go: batched, validated insert path
*/
package record

import (
	"context"
	"time"
)

// =============================================================================
// QUERY - Filtered range read
// =============================================================================

type Order string

const (
	// OrderByVersion orders by (original_id, version_no, created_at), the
	// shape the version resolver consumes.
	OrderByVersion Order = "version"

	// OrderByCreatedAt orders chronologically.
	OrderByCreatedAt Order = "created_at"
)

// Query filters the log. Nil fields match everything.
type Query struct {
	EntityType *Role
	Status     *Status
	Tag        *Tag
	Tags       []Tag

	// Date window on CreatedAt, inclusive on both ends. Zero values are
	// open-ended.
	From time.Time
	To   time.Time

	// OriginalID restricts to one logical entity's version history.
	OriginalID string

	Order Order
}

// Matches reports whether a record passes the query filters. Store
// implementations that filter in Go (memory) and in SQL (sqlite) must agree
// with this predicate.
func (q Query) Matches(rec OperationalRecord) bool {
	if q.EntityType != nil && rec.EntityType != *q.EntityType {
		return false
	}
	if q.Status != nil && rec.Status != *q.Status {
		return false
	}
	if q.OriginalID != "" && rec.OriginalID != q.OriginalID {
		return false
	}
	if !q.From.IsZero() && rec.CreatedAt.Before(q.From) {
		return false
	}
	if !q.To.IsZero() && rec.CreatedAt.After(q.To) {
		return false
	}
	if q.Tag != nil || len(q.Tags) > 0 {
		tag, err := PeekTag(rec.Data)
		if err != nil {
			return false
		}
		if q.Tag != nil && tag != *q.Tag {
			return false
		}
		if len(q.Tags) > 0 {
			found := false
			for _, t := range q.Tags {
				if t == tag {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
	}
	return true
}

// =============================================================================
// STORE - Append-only persistence
// =============================================================================

type Store interface {
	// Insert appends records to the log. Fails with ErrDuplicateRecord when
	// an ID already exists. No update-in-place path exists.
	Insert(ctx context.Context, records []OperationalRecord) error

	// Get returns one record by ID, or ErrRecordNotFound.
	Get(ctx context.Context, id string) (OperationalRecord, error)

	// Query returns records matching the filters, ordered per Query.Order.
	Query(ctx context.Context, q Query) ([]OperationalRecord, error)

	// UpdateStatus moves a record through the approval workflow. This is the
	// only mutation the store permits.
	UpdateStatus(ctx context.Context, id string, status Status) error
}

// =============================================================================
// SESSION - Narrow interface to the external auth layer
// =============================================================================

// SessionValidator is the engine's only view of session handling. Validity
// is checked once before a write burst; an invalid session aborts the whole
// batch before any insert.
type SessionValidator interface {
	Validate(ctx context.Context, token string) error
}

// AllowAll is the dev/test validator.
type AllowAll struct{}

func (AllowAll) Validate(context.Context, string) error { return nil }
