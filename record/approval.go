/*
approval.go - Status gate controlling projection visibility

PURPOSE:
  Record versions move through pending -> approved|rejected, and approved ->
  archived. Only approved, non-deleted versions feed the stock, ledger, and
  room engines. Rejected is terminal: a correction is a new version under the
  same OriginalID, never a resurrection of the rejected one.

PRE-APPROVAL:
  Supervisors, managers, and admins write records that are approved on
  submission. Other roles enter the queue as pending.
*/
package record

import "context"

// InitialStatus returns the status a fresh record gets for a submitter role.
func InitialStatus(submitterRole Role) Status {
	switch submitterRole {
	case RoleSupervisor, RoleManager, RoleAdmin:
		return StatusApproved
	default:
		return StatusPending
	}
}

// CanTransition reports whether a status change is allowed.
//
//	pending  -> approved, rejected
//	approved -> archived
//	rejected, archived -> (terminal)
func CanTransition(from, to Status) bool {
	switch from {
	case StatusPending:
		return to == StatusApproved || to == StatusRejected
	case StatusApproved:
		return to == StatusArchived
	default:
		return false
	}
}

// Workflow applies approval transitions against the store.
type Workflow struct {
	Store Store
}

func NewWorkflow(store Store) *Workflow {
	return &Workflow{Store: store}
}

func (w *Workflow) Approve(ctx context.Context, id string) error {
	return w.transition(ctx, id, StatusApproved)
}

func (w *Workflow) Reject(ctx context.Context, id string) error {
	return w.transition(ctx, id, StatusRejected)
}

func (w *Workflow) Archive(ctx context.Context, id string) error {
	return w.transition(ctx, id, StatusArchived)
}

func (w *Workflow) transition(ctx context.Context, id string, to Status) error {
	rec, err := w.Store.Get(ctx, id)
	if err != nil {
		return err
	}
	if !CanTransition(rec.Status, to) {
		return &TransitionError{RecordID: id, From: rec.Status, To: to}
	}
	return w.Store.UpdateStatus(ctx, id, to)
}

// Pending returns the approval queue for an entity type, oldest first.
func (w *Workflow) Pending(ctx context.Context, entityType Role) ([]OperationalRecord, error) {
	status := StatusPending
	q := Query{Status: &status, Order: OrderByCreatedAt}
	if entityType != "" {
		q.EntityType = &entityType
	}
	return w.Store.Query(ctx, q)
}
