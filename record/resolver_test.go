package record_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/lodgekeeper/ops-engine/record"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func payloadJSON(t *testing.T, p record.Payload) json.RawMessage {
	t.Helper()
	data, err := record.EncodePayload(p)
	if err != nil {
		t.Fatalf("encode payload: %v", err)
	}
	return data
}

func at(day int, hour int) time.Time {
	return time.Date(2024, time.March, day, hour, 0, 0, 0, time.UTC)
}

// version builds one log entry with explicit identity and timestamp so tests
// control resolution order precisely.
func version(t *testing.T, id, originalID string, versionNo int, createdAt time.Time, status record.Status) record.OperationalRecord {
	t.Helper()
	return record.OperationalRecord{
		ID:         id,
		OriginalID: originalID,
		VersionNo:  versionNo,
		EntityType: record.RoleStorekeeper,
		Data: payloadJSON(t, &record.StockRestock{
			ItemName: "Rice",
			Date:     record.NewDate(2024, time.March, 1),
		}),
		Status:    status,
		CreatedAt: createdAt,
	}
}

func tombstone(rec record.OperationalRecord) record.OperationalRecord {
	deletedAt := rec.CreatedAt
	rec.DeletedAt = &deletedAt
	return rec
}

// =============================================================================
// VERSION RESOLUTION
// =============================================================================

func TestResolveLatest_HighestVersionWins(t *testing.T) {
	// GIVEN: three versions of one entity, inserted out of order
	// WHEN: resolving
	// THEN: the highest VersionNo is current regardless of input order

	records := []record.OperationalRecord{
		version(t, "v2", "orig", 2, at(2, 10), record.StatusApproved),
		version(t, "v3", "orig", 3, at(1, 10), record.StatusApproved),
		version(t, "v1", "orig", 1, at(3, 10), record.StatusApproved),
	}

	resolved := record.ResolveLatest(records)
	current, ok := resolved["orig"]
	if !ok {
		t.Fatal("expected a current record")
	}
	if current.ID != "v3" {
		t.Errorf("expected v3 to win, got %s", current.ID)
	}
}

func TestResolveLatest_CreatedAtBreaksVersionTie(t *testing.T) {
	// GIVEN: two records claiming the same VersionNo
	// THEN: the later CreatedAt wins

	records := []record.OperationalRecord{
		version(t, "early", "orig", 2, at(1, 9), record.StatusApproved),
		version(t, "late", "orig", 2, at(1, 17), record.StatusApproved),
	}

	current := record.ResolveLatest(records)["orig"]
	if current.ID != "late" {
		t.Errorf("expected later CreatedAt to win, got %s", current.ID)
	}
}

func TestResolveLatest_LexicalIDBreaksExactTie(t *testing.T) {
	// GIVEN: identical (VersionNo, CreatedAt) on two records
	// THEN: the lexically greater ID wins, deterministically

	records := []record.OperationalRecord{
		version(t, "aaa", "orig", 1, at(1, 12), record.StatusApproved),
		version(t, "zzz", "orig", 1, at(1, 12), record.StatusApproved),
	}

	for i := 0; i < 3; i++ {
		current := record.ResolveLatest(records)["orig"]
		if current.ID != "zzz" {
			t.Fatalf("expected zzz to win the exact tie, got %s", current.ID)
		}
		records[0], records[1] = records[1], records[0]
	}
}

func TestResolveLatest_TombstoneHidesEntity(t *testing.T) {
	// GIVEN: a live v1 and a tombstone v2
	// THEN: the entity has no current record at all

	records := []record.OperationalRecord{
		version(t, "v1", "orig", 1, at(1, 10), record.StatusApproved),
		tombstone(version(t, "v2", "orig", 2, at(2, 10), record.StatusApproved)),
	}

	resolved := record.ResolveLatest(records)
	if _, ok := resolved["orig"]; ok {
		t.Error("tombstoned entity should have no current record")
	}
}

func TestResolveLatest_OutrankedTombstoneDoesNotHide(t *testing.T) {
	// GIVEN: a tombstone at v2 followed by a live correction at v3
	// THEN: the entity is visible again with the v3 content

	records := []record.OperationalRecord{
		version(t, "v1", "orig", 1, at(1, 10), record.StatusApproved),
		tombstone(version(t, "v2", "orig", 2, at(2, 10), record.StatusApproved)),
		version(t, "v3", "orig", 3, at(3, 10), record.StatusApproved),
	}

	current, ok := record.ResolveLatest(records)["orig"]
	if !ok {
		t.Fatal("entity restored by v3 should be visible")
	}
	if current.ID != "v3" {
		t.Errorf("expected v3, got %s", current.ID)
	}
}

func TestResolveCurrent_MissingEntity(t *testing.T) {
	_, err := record.ResolveCurrent(nil, "ghost")
	if !record.IsNotFound(err) {
		t.Errorf("expected not-found, got %v", err)
	}
}

// =============================================================================
// PROJECTION VISIBILITY
// =============================================================================

func TestProjectable_OnlyApprovedNonDeleted(t *testing.T) {
	// GIVEN: entities whose current versions are pending, rejected, archived,
	//        and approved
	// THEN: only the approved one feeds projections

	records := []record.OperationalRecord{
		version(t, "p1", "pending-entity", 1, at(1, 10), record.StatusPending),
		version(t, "r1", "rejected-entity", 1, at(1, 10), record.StatusRejected),
		version(t, "a1", "archived-entity", 1, at(1, 10), record.StatusArchived),
		version(t, "ok1", "approved-entity", 1, at(1, 10), record.StatusApproved),
	}

	visible := record.Projectable(record.ResolveLatest(records))
	if len(visible) != 1 {
		t.Fatalf("expected 1 projectable record, got %d", len(visible))
	}
	if visible[0].ID != "ok1" {
		t.Errorf("expected ok1, got %s", visible[0].ID)
	}
}

func TestProjectable_PendingCorrectionHidesEntity(t *testing.T) {
	// GIVEN: an approved v1 and a pending v2 correction
	// WHEN: projecting
	// THEN: the entity is invisible - the pending version IS current, and a
	//       non-approved current version never falls back to an older one

	records := []record.OperationalRecord{
		version(t, "v1", "orig", 1, at(1, 10), record.StatusApproved),
		version(t, "v2", "orig", 2, at(2, 10), record.StatusPending),
	}

	visible := record.Projectable(record.ResolveLatest(records))
	if len(visible) != 0 {
		t.Errorf("entity with a pending current version should be invisible, got %d records", len(visible))
	}
}
