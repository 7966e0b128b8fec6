// Package refdata manages the reference lists the inspection workflow is
// built from: leaders, teams, routes, machines, and the ordered checklist
// sections.
package refdata

import (
	dErrors "routeaudit/pkg/domain-errors"
)

// Category names one reference list. The set is closed: categories are part
// of the data model, not user-defined.
type Category string

const (
	CategoryLeader  Category = "leaders"
	CategoryTeam    Category = "teams"
	CategoryRoute   Category = "routes"
	CategoryMachine Category = "machines"
	CategorySection Category = "sections"
)

// Categories returns all categories in display order.
func Categories() []Category {
	return []Category{CategoryLeader, CategoryTeam, CategoryRoute, CategoryMachine, CategorySection}
}

// ParseCategory validates a category name from the transport layer.
func ParseCategory(name string) (Category, error) {
	switch Category(name) {
	case CategoryLeader, CategoryTeam, CategoryRoute, CategoryMachine, CategorySection:
		return Category(name), nil
	}
	return "", dErrors.Newf(dErrors.CodeValidation, "unknown reference category %q", name)
}

// SectionDefinition is one checklist section. IDs are stable for the life of
// the section: removing another section never renumbers survivors, so
// historical audit records stay resolvable.
type SectionDefinition struct {
	ID    int    `json:"id"`
	Title string `json:"title"`
}
