/*
Package record defines the append-only operational log.

PURPOSE:
  Every staff action (bookings, stock movements, approvals, housekeeping
  reports) is one immutable OperationalRecord. All current state is derived
  by replaying this log - there is no separately maintained "current" table
  that can drift out of sync.

KEY CONCEPTS IN THIS FILE (types.go):
  - OperationalRecord: one immutable, versioned log entry
  - Role: the closed set of department/submitter identifiers
  - Status: the approval workflow state of a record version
  - Date: a day-granularity time point used for replay windows

VERSIONING MODEL:
  Records are never mutated in place. A correction is a new record with the
  same OriginalID and a higher VersionNo; a deletion is a new version with
  DeletedAt set. Among all versions sharing an OriginalID, exactly one is
  "current": the non-deleted one maximizing (VersionNo, CreatedAt).

SEE ALSO:
  - payload.go: the tagged-union Data payloads
  - resolver.go: collapsing versions into current records
  - approval.go: the pending/approved/rejected/archived gate
*/
package record

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// ROLES - Closed enumeration of departments / submitter roles
// =============================================================================

type Role string

const (
	RoleFrontDesk   Role = "front_desk"
	RoleSupervisor  Role = "supervisor"
	RoleManager     Role = "manager"
	RoleAdmin       Role = "admin"
	RoleKitchen     Role = "kitchen"
	RoleBar         Role = "bar"
	RoleStorekeeper Role = "storekeeper"
)

// Roles lists every valid role. The set is closed: role identifiers arrive
// from the session layer and are never free-form.
func Roles() []Role {
	return []Role{
		RoleFrontDesk, RoleSupervisor, RoleManager, RoleAdmin,
		RoleKitchen, RoleBar, RoleStorekeeper,
	}
}

func (r Role) Valid() bool {
	switch r {
	case RoleFrontDesk, RoleSupervisor, RoleManager, RoleAdmin,
		RoleKitchen, RoleBar, RoleStorekeeper:
		return true
	}
	return false
}

// =============================================================================
// STATUS - Approval workflow state
// =============================================================================

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusArchived Status = "archived"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusArchived:
		return true
	}
	return false
}

// =============================================================================
// OPERATIONAL RECORD - One immutable log entry
// =============================================================================

type OperationalRecord struct {
	ID         string
	OriginalID string
	VersionNo  int

	// EntityType is the department the record belongs to. It drives both
	// query scoping and financial attribution.
	EntityType Role

	// Data is the tagged-union payload. The "type" discriminator inside the
	// JSON selects the concrete payload struct; see payload.go. Callers must
	// go through DecodePayload - Data is never treated as an open dictionary.
	Data json.RawMessage

	// FinancialAmount is the monetary value of the action, when it has one
	// (bar/kitchen sales, front desk payments). Zero otherwise.
	FinancialAmount decimal.Decimal

	Status      Status
	SubmittedBy string
	CreatedAt   time.Time
	DeletedAt   *time.Time
}

func (r OperationalRecord) IsDeleted() bool { return r.DeletedAt != nil }

// New builds a first-version record for a payload. The initial status depends
// on the submitter role: supervisors and above write pre-approved records,
// everyone else goes through the approval queue.
func New(entityType Role, submittedBy string, submitterRole Role, p Payload) (OperationalRecord, error) {
	data, err := EncodePayload(p)
	if err != nil {
		return OperationalRecord{}, err
	}
	id := uuid.NewString()
	return OperationalRecord{
		ID:          id,
		OriginalID:  id,
		VersionNo:   1,
		EntityType:  entityType,
		Data:        data,
		Status:      InitialStatus(submitterRole),
		SubmittedBy: submittedBy,
		CreatedAt:   time.Now().UTC(),
	}, nil
}

// NewEffect builds an approved record for an engine-derived side effect
// (settlement payments, transfer markers, successor segments). Effects are
// consequences of already-approved records and never re-enter the approval
// queue.
func NewEffect(entityType Role, actor string, p Payload) (OperationalRecord, error) {
	rec, err := New(entityType, actor, RoleAdmin, p)
	if err != nil {
		return OperationalRecord{}, err
	}
	rec.Status = StatusApproved
	return rec, nil
}

// NewVersion builds a correction for an existing logical entity: same
// OriginalID, incremented VersionNo, fresh ID.
func NewVersion(prev OperationalRecord, submittedBy string, submitterRole Role, p Payload) (OperationalRecord, error) {
	rec, err := New(prev.EntityType, submittedBy, submitterRole, p)
	if err != nil {
		return OperationalRecord{}, err
	}
	rec.OriginalID = prev.OriginalID
	rec.VersionNo = prev.VersionNo + 1
	return rec, nil
}

// NewDeletion builds a tombstone version. The payload is carried over
// unchanged so the version history stays self-describing.
func NewDeletion(prev OperationalRecord, submittedBy string, submitterRole Role) OperationalRecord {
	id := uuid.NewString()
	now := time.Now().UTC()
	return OperationalRecord{
		ID:          id,
		OriginalID:  prev.OriginalID,
		VersionNo:   prev.VersionNo + 1,
		EntityType:  prev.EntityType,
		Data:        prev.Data,
		Status:      InitialStatus(submitterRole),
		SubmittedBy: submittedBy,
		CreatedAt:   now,
		DeletedAt:   &now,
	}
}

// =============================================================================
// DATE - Day-granularity time point
// =============================================================================

// Date is a calendar day in UTC. Replay windows, baselines, and room
// transitions all operate at day granularity.
type Date struct {
	t time.Time
}

const dateLayout = "2006-01-02"

func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

func DateOf(t time.Time) Date {
	t = t.UTC()
	return NewDate(t.Year(), t.Month(), t.Day())
}

func Today() Date { return DateOf(time.Now()) }

func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, err
	}
	return DateOf(t), nil
}

// Comparison
func (d Date) Before(o Date) bool        { return d.t.Before(o.t) }
func (d Date) After(o Date) bool         { return d.t.After(o.t) }
func (d Date) Equal(o Date) bool         { return d.t.Equal(o.t) }
func (d Date) BeforeOrEqual(o Date) bool { return !d.After(o) }
func (d Date) AfterOrEqual(o Date) bool  { return !d.Before(o) }
func (d Date) IsZero() bool              { return d.t.IsZero() }

// Arithmetic
func (d Date) AddDays(n int) Date   { return Date{t: d.t.AddDate(0, 0, n)} }
func (d Date) AddMonths(n int) Date { return Date{t: d.t.AddDate(0, n, 0)} }

// DaysUntil returns the whole number of days from d to o (negative if o is
// earlier).
func (d Date) DaysUntil(o Date) int { return int(o.t.Sub(d.t).Hours() / 24) }

// Properties
func (d Date) Year() int         { return d.t.Year() }
func (d Date) Month() time.Month { return d.t.Month() }
func (d Date) Day() int          { return d.t.Day() }
func (d Date) Time() time.Time   { return d.t }

func (d Date) MonthStart() Date { return NewDate(d.Year(), d.Month(), 1) }
func (d Date) MonthEnd() Date   { return d.MonthStart().AddMonths(1).AddDays(-1) }

func (d Date) String() string { return d.t.Format(dateLayout) }

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
