package backup

import (
	"fmt"
	"regexp"
	"sort"
)

// DefaultTables is the full-database table list, in backup order.
var DefaultTables = []string{
	"leads",
	"contacts",
	"accounts",
	"deals",
	"action_items",
	"deal_action_items",
	"lead_action_items",
	"notifications",
	"notification_preferences",
	"page_permissions",
	"profiles",
	"user_preferences",
	"user_roles",
	"saved_filters",
	"column_preferences",
	"dashboard_preferences",
	"yearly_revenue_targets",
}

// DefaultModules maps module names to their table subsets.
var DefaultModules = map[string][]string{
	"contacts":      {"contacts"},
	"accounts":      {"accounts"},
	"deals":         {"deals", "deal_action_items", "leads", "lead_action_items"},
	"action_items":  {"action_items"},
	"notifications": {"notifications", "notification_preferences"},
}

// DefaultFrequencies maps frequency labels to day intervals.
var DefaultFrequencies = map[Frequency]int{
	FrequencyDaily:      1,
	FrequencyEvery2Days: 2,
	FrequencyWeekly:     7,
}

// DefaultIntervalDays applies to frequencies missing from the catalog.
const DefaultIntervalDays = 2

var tableNamePattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// Catalog is the immutable lookup of tables, modules and frequencies.
// It is built once at start-up and shared read-only.
type Catalog struct {
	tables      []string
	modules     map[string][]string
	frequencies map[Frequency]int
}

// NewCatalog copies and validates its inputs
func NewCatalog(tables []string, modules map[string][]string, frequencies map[Frequency]int) (*Catalog, error) {
	var errs ValidationErrors

	if len(tables) == 0 {
		errs.Add("tables", "at least one table is required", nil)
	}
	for _, t := range tables {
		if !tableNamePattern.MatchString(t) {
			errs.Add("tables", "invalid table name", t)
		}
	}
	for name, list := range modules {
		if len(list) == 0 {
			errs.Add("modules."+name, "module must list at least one table", nil)
		}
		for _, t := range list {
			if !tableNamePattern.MatchString(t) {
				errs.Add("modules."+name, "invalid table name", t)
			}
		}
	}
	for f, days := range frequencies {
		if days < 1 {
			errs.Add("frequencies."+string(f), "interval must be at least one day", days)
		}
	}
	if errs.HasErrors() {
		return nil, errs
	}

	c := &Catalog{
		tables:      append([]string(nil), tables...),
		modules:     make(map[string][]string, len(modules)),
		frequencies: make(map[Frequency]int, len(frequencies)),
	}
	for name, list := range modules {
		c.modules[name] = append([]string(nil), list...)
	}
	for f, days := range frequencies {
		c.frequencies[f] = days
	}
	return c, nil
}

// DefaultCatalog returns the built-in catalog
func DefaultCatalog() *Catalog {
	c, err := NewCatalog(DefaultTables, DefaultModules, DefaultFrequencies)
	if err != nil {
		panic(fmt.Sprintf("default catalog is invalid: %v", err))
	}
	return c
}

// Resolve returns the tables to back up for a scope.
// A module scope naming an unknown or empty module falls back to the full list.
func (c *Catalog) Resolve(scope Scope, module string) []string {
	if scope == ScopeModule && module != "" {
		if list, ok := c.modules[module]; ok {
			return append([]string(nil), list...)
		}
	}
	return append([]string(nil), c.tables...)
}

// IsKnownModule reports whether module has its own table list
func (c *Catalog) IsKnownModule(module string) bool {
	_, ok := c.modules[module]
	return ok
}

// IntervalDays returns the day interval for a frequency, or DefaultIntervalDays.
func (c *Catalog) IntervalDays(f Frequency) int {
	if days, ok := c.frequencies[f]; ok {
		return days
	}
	return DefaultIntervalDays
}

// Tables returns a copy of the global table list
func (c *Catalog) Tables() []string {
	return append([]string(nil), c.tables...)
}

// Modules returns the module names in sorted order
func (c *Catalog) Modules() []string {
	names := make([]string, 0, len(c.modules))
	for name := range c.modules {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
