/*
resolver.go - Version resolution over the append-only log

PURPOSE:
  Collapses the full version history of logical entities into their single
  current record. All projections (stock, ledger, rooms) read the log through
  this resolver so that edits and soft-deletes never leak stale versions.

RESOLUTION RULE:
  Per OriginalID, the current record is the one maximizing
  (VersionNo, CreatedAt) among versions with DeletedAt unset. An exact tie on
  both fields is broken by lexical record ID order - a fixed rule so the
  result is deterministic and independent of input order.

  An entity whose winning version is a tombstone has no current record at
  all: a soft-delete hides the whole entity, not just one version.
*/
package record

// ResolveLatest returns the current record per OriginalID. Input order is
// irrelevant; the same set of records always resolves identically.
func ResolveLatest(records []OperationalRecord) map[string]OperationalRecord {
	winners := make(map[string]OperationalRecord)
	tombstoned := make(map[string]OperationalRecord)

	for _, rec := range records {
		if rec.IsDeleted() {
			// Track tombstones separately: a tombstone that outranks every
			// live version removes the entity from the result.
			if prev, ok := tombstoned[rec.OriginalID]; !ok || outranks(rec, prev) {
				tombstoned[rec.OriginalID] = rec
			}
			continue
		}
		if prev, ok := winners[rec.OriginalID]; !ok || outranks(rec, prev) {
			winners[rec.OriginalID] = rec
		}
	}

	for originalID, tomb := range tombstoned {
		live, ok := winners[originalID]
		if ok && outranks(tomb, live) {
			delete(winners, originalID)
		}
	}
	return winners
}

// ResolveCurrent resolves the single current record for one logical entity.
// Returns ErrRecordNotFound when every version is deleted or the set is empty.
func ResolveCurrent(records []OperationalRecord, originalID string) (OperationalRecord, error) {
	var matching []OperationalRecord
	for _, rec := range records {
		if rec.OriginalID == originalID {
			matching = append(matching, rec)
		}
	}
	current, ok := ResolveLatest(matching)[originalID]
	if !ok {
		return OperationalRecord{}, ErrRecordNotFound
	}
	return current, nil
}

// outranks reports whether a wins over b under (VersionNo, CreatedAt),
// falling back to lexical ID on an exact tie.
func outranks(a, b OperationalRecord) bool {
	if a.VersionNo != b.VersionNo {
		return a.VersionNo > b.VersionNo
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID > b.ID
}

// Projectable filters resolved records down to the ones visible to the
// projection engines: approved and not deleted. Pending, rejected, and
// archived versions never feed a projection.
func Projectable(resolved map[string]OperationalRecord) []OperationalRecord {
	out := make([]OperationalRecord, 0, len(resolved))
	for _, rec := range resolved {
		if rec.Status == StatusApproved && !rec.IsDeleted() {
			out = append(out, rec)
		}
	}
	return out
}
