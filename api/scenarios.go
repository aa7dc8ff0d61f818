/*
scenarios.go - Demo scenario and seed-file loading

PURPOSE:
  Ships a couple of built-in scenarios that populate the log with a coherent
  slice of hotel life (catalog, stock movements, bookings) so the projections
  have something to show on a fresh database. Also loads an operator-supplied
  JSON seed file on startup.

  Scenarios write through the ordinary Writer path - same validation, same
  chunking - so loading one exercises exactly the production write path.
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"github.com/shopspring/decimal"

	"github.com/lodgekeeper/ops-engine/record"
)

// =============================================================================
// BUILT-IN SCENARIOS
// =============================================================================

type Scenario struct {
	Name        string `json:"name"`
	Description string `json:"description"`

	build func(today record.Date) []seedEntry
}

type seedEntry struct {
	entityType record.Role
	amount     decimal.Decimal
	payload    record.Payload
}

// Scenarios lists the built-in demo scenarios.
func Scenarios() []Scenario {
	return []Scenario{
		{
			Name:        "provisioning-week",
			Description: "Catalog plus a week of stock baselines and movements",
			build:       provisioningWeek,
		},
		{
			Name:        "front-desk-day",
			Description: "Bookings with payments, a penalty, and housekeeping reports",
			build:       frontDeskDay,
		},
	}
}

func provisioningWeek(today record.Date) []seedEntry {
	weekAgo := today.AddDays(-7)
	dec := decimal.NewFromInt

	return []seedEntry{
		{entityType: record.RoleAdmin, payload: &record.ConfigCollection{Name: "Bar", Active: true}},
		{entityType: record.RoleAdmin, payload: &record.ConfigCollection{Name: "Restaurant", Active: true}},
		{entityType: record.RoleAdmin, payload: &record.ConfigCategory{
			Name: "Beverages", AssignedTo: record.NewAssignment(record.RoleBar), Active: true,
		}},
		{entityType: record.RoleAdmin, payload: &record.ConfigCategory{
			Name: "Dry Goods", AssignedTo: record.NewAssignment(record.RoleKitchen), Active: true,
		}},
		{entityType: record.RoleAdmin, payload: &record.ConfigItem{
			ItemName: "Lager", Category: "Beverages", Unit: "bottle",
			UnitPrice: dec(5), Active: true,
		}},
		{entityType: record.RoleAdmin, payload: &record.ConfigItem{
			ItemName: "Rice", Category: "Dry Goods", Unit: "kg",
			UnitPrice: dec(2), Active: true,
		}},

		{entityType: record.RoleStorekeeper, payload: &record.OpeningStock{
			ItemName: "Lager", Date: weekAgo, Quantity: dec(120),
		}},
		{entityType: record.RoleStorekeeper, payload: &record.OpeningStock{
			ItemName: "Rice", Date: weekAgo, Quantity: dec(50),
		}},
		{entityType: record.RoleStorekeeper, payload: &record.StockRestock{
			ItemName: "Lager", Date: weekAgo.AddDays(2), Quantity: dec(48), Supplier: "Brew & Co",
		}},
		{entityType: record.RoleStorekeeper, payload: &record.StockIssued{
			ItemName: "Lager", Date: weekAgo.AddDays(3), Quantity: dec(60), IssuedTo: record.RoleBar,
		}},
		{entityType: record.RoleStorekeeper, payload: &record.StockIssued{
			ItemName: "Rice", Date: weekAgo.AddDays(4), Quantity: dec(10), IssuedTo: record.RoleKitchen,
		}},
	}
}

func frontDeskDay(today record.Date) []seedEntry {
	dec := decimal.NewFromInt

	return []seedEntry{
		{entityType: record.RoleFrontDesk, amount: dec(10000), payload: &record.RoomBooking{
			BookingID: "BK-1001",
			Guest:     record.Guest{Name: "A. Okafor", Phone: "0801-555-0101"},
			Stay: record.Stay{
				RoomID: "101", CheckIn: today.AddDays(-2), CheckOut: today.AddDays(1),
				Adults: 2, Status: record.StayCheckedIn,
			},
			Pricing: record.Pricing{RoomRate: dec(10000), Nights: 3, TotalRoomCost: dec(30000)},
			Payment: record.BookingPayment{PaidAmount: dec(10000), Method: "card", Balance: dec(20000)},
		}},
		{entityType: record.RoleFrontDesk, payload: &record.RoomBooking{
			BookingID: "BK-1002",
			Guest:     record.Guest{Name: "M. Diallo"},
			Stay: record.Stay{
				RoomID: "102", CheckIn: today.AddDays(2), CheckOut: today.AddDays(5),
				Adults: 1, Status: record.StayReserved,
			},
			Pricing: record.Pricing{RoomRate: dec(12000), Nights: 3, TotalRoomCost: dec(36000)},
		}},
		{entityType: record.RoleFrontDesk, amount: dec(2000), payload: &record.PenaltyFee{
			BookingID: "BK-1001", Date: today.AddDays(-1), Amount: dec(2000), Reason: "Late checkout request",
		}},
		{entityType: record.RoleFrontDesk, amount: dec(5000), payload: &record.PaymentRecord{
			BookingID: "BK-1001", Date: today.AddDays(-1), Amount: dec(5000), Method: "cash",
		}},
		{entityType: record.RoleFrontDesk, payload: &record.HousekeepingReport{
			RoomID: "102", Date: today, State: record.HousekeepingCleaned,
		}},
		{entityType: record.RoleFrontDesk, payload: &record.HousekeepingReport{
			RoomID: "103", Date: today, State: record.HousekeepingDirty,
		}},
	}
}

// =============================================================================
// HANDLERS
// =============================================================================

func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, Scenarios())
}

type loadScenarioRequest struct {
	Name string `json:"name"`
}

// LoadScenario seeds the log with a built-in scenario. Records are submitted
// as a supervisor so they land approved and feed the projections immediately.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req loadScenarioRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, fmt.Errorf("invalid request body: %w", err))
		return
	}

	var scenario *Scenario
	for _, s := range Scenarios() {
		if s.Name == req.Name {
			scenario = &s
			break
		}
	}
	if scenario == nil {
		writeError(w, fmt.Errorf("%w: scenario %q", record.ErrRecordNotFound, req.Name))
		return
	}

	batch, err := buildSeedBatch(scenario.build(record.Today()))
	if err != nil {
		writeError(w, err)
		return
	}
	h.writeBatch(w, r, batch)
}

func buildSeedBatch(entries []seedEntry) ([]record.OperationalRecord, error) {
	batch := make([]record.OperationalRecord, 0, len(entries))
	for _, e := range entries {
		rec, err := record.New(e.entityType, "scenario", record.RoleSupervisor, e.payload)
		if err != nil {
			return nil, err
		}
		rec.FinancialAmount = e.amount
		batch = append(batch, rec)
	}
	return batch, nil
}

// =============================================================================
// SEED FILE
// =============================================================================

// seedFileEntry is one record in an operator-supplied seed file.
type seedFileEntry struct {
	EntityType      record.Role     `json:"entity_type"`
	SubmittedBy     string          `json:"submitted_by"`
	Role            record.Role     `json:"role"`
	FinancialAmount decimal.Decimal `json:"financial_amount"`
	Payload         json.RawMessage `json:"payload"`
}

// LoadSeedFile reads a JSON seed file and submits its records through the
// writer. Used at startup when SEED_FILE is set.
func LoadSeedFile(ctx context.Context, writer *record.Writer, path string) (record.BatchResult, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return record.BatchResult{}, fmt.Errorf("read seed file: %w", err)
	}
	var entries []seedFileEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return record.BatchResult{}, fmt.Errorf("parse seed file: %w", err)
	}

	batch := make([]record.OperationalRecord, 0, len(entries))
	for i, e := range entries {
		payload, err := record.DecodePayload(record.OperationalRecord{Data: e.Payload})
		if err != nil {
			return record.BatchResult{}, fmt.Errorf("seed entry %d: %w", i, err)
		}
		role := e.Role
		if role == "" {
			role = record.RoleSupervisor
		}
		entityType := e.EntityType
		if entityType == "" {
			entityType = role
		}
		rec, err := record.New(entityType, e.SubmittedBy, role, payload)
		if err != nil {
			return record.BatchResult{}, fmt.Errorf("seed entry %d: %w", i, err)
		}
		rec.FinancialAmount = e.FinancialAmount
		batch = append(batch, rec)
	}

	result := writer.Submit(ctx, "seed", batch)
	return result, result.Err
}
