/*
Package catalog is the configuration graph: item -> category -> department.

PURPOSE:
  Low-level stock and sales events name items; financial reports aggregate by
  business collection (Rooms, Bar, Restaurant, Provisions). The catalog walks
  an item to its category and the category's role assignment to decide which
  collection an event belongs to.

SOURCE-AGNOSTIC READS:
  Items, categories, and collections are themselves operational records
  (config_item / config_category / config_collection payloads) and go through
  the same version resolver as everything else. Callers only see the built
  Graph and never care where a category came from.

ASSIGNMENT SHAPES:
  Historical data carries role assignments as either an array of role names
  or a role->bool map. record.Assignment normalizes both; the predicate here
  is the only way assignment is consulted.

SEE ALSO:
  - loader.go: read-through, version-stamped cache over the record store
*/
package catalog

import (
	"github.com/shopspring/decimal"

	"github.com/lodgekeeper/ops-engine/record"
)

// =============================================================================
// COLLECTIONS - Business groupings for financial attribution
// =============================================================================

const (
	CollectionRooms      = "Rooms"
	CollectionBar        = "Bar"
	CollectionRestaurant = "Restaurant"
	CollectionProvisions = "Provisions"
)

// CollectionForRole maps an income-generating department to its collection.
// Storekeeper has no direct collection: its expenditure is attributed per
// item through the graph.
func CollectionForRole(role record.Role) (string, bool) {
	switch role {
	case record.RoleFrontDesk:
		return CollectionRooms, true
	case record.RoleBar:
		return CollectionBar, true
	case record.RoleKitchen:
		return CollectionRestaurant, true
	}
	return "", false
}

// IsAssignedToRole is the normalized assignment predicate. Array and map
// representations answer identically.
func IsAssignedToRole(assigned record.Assignment, role record.Role) bool {
	return assigned.Includes(role)
}

// =============================================================================
// GRAPH - Resolved configuration snapshot
// =============================================================================

type Graph struct {
	items       map[string]record.ConfigItem
	categories  map[string]record.ConfigCategory
	collections map[string]record.ConfigCollection

	// version stamps the set of config records the graph was built from.
	version string
}

// BuildGraph resolves config records into a graph. Inactive items and
// categories are kept (historical events still reference them) but flagged
// via Active.
func BuildGraph(records []record.OperationalRecord) (*Graph, error) {
	g := &Graph{
		items:       make(map[string]record.ConfigItem),
		categories:  make(map[string]record.ConfigCategory),
		collections: make(map[string]record.ConfigCollection),
	}

	for _, rec := range record.Projectable(record.ResolveLatest(records)) {
		payload, err := record.DecodePayload(rec)
		if err != nil {
			return nil, err
		}
		switch p := payload.(type) {
		case *record.ConfigItem:
			g.items[p.ItemName] = *p
		case *record.ConfigCategory:
			g.categories[p.Name] = *p
		case *record.ConfigCollection:
			g.collections[p.Name] = *p
		}
	}
	g.version = stampRecords(records)
	return g, nil
}

// Version is the stamp of the underlying config records; the loader compares
// it to decide whether a cached graph is current.
func (g *Graph) Version() string { return g.version }

// Classify returns the category for an item name.
func (g *Graph) Classify(itemName string) (string, bool) {
	item, ok := g.items[itemName]
	if !ok {
		return "", false
	}
	return item.Category, true
}

// Item returns the resolved config for an item name.
func (g *Graph) Item(itemName string) (record.ConfigItem, bool) {
	item, ok := g.items[itemName]
	return item, ok
}

// Items returns all known items. Order is unspecified.
func (g *Graph) Items() []record.ConfigItem {
	out := make([]record.ConfigItem, 0, len(g.items))
	for _, item := range g.items {
		out = append(out, item)
	}
	return out
}

// UnitPrice returns an item's unit price, zero when unknown.
func (g *Graph) UnitPrice(itemName string) decimal.Decimal {
	return g.items[itemName].UnitPrice
}

// Collection attributes an item to a business collection: item -> category
// -> assigned department -> collection. Items with no category, categories
// with no assignment, and assignments outside the income departments all
// fall back to Provisions.
//
// When a category is assigned to several departments, the first match in
// fixed role order wins, keeping attribution deterministic.
func (g *Graph) Collection(itemName string) string {
	item, ok := g.items[itemName]
	if !ok {
		return CollectionProvisions
	}
	category, ok := g.categories[item.Category]
	if !ok || category.AssignedTo.IsEmpty() {
		return CollectionProvisions
	}
	for _, role := range record.Roles() {
		if IsAssignedToRole(category.AssignedTo, role) {
			if collection, ok := CollectionForRole(role); ok {
				return collection
			}
		}
	}
	return CollectionProvisions
}
