// Package catalog is the static category reference data, partitioned by
// transaction type, plus the date-range and colour enumerations used by the
// dashboard and reports.
package catalog

import (
	"context"

	"expenso/internal/core"
)

type Category struct {
	ID   string               `json:"id"`
	Name string               `json:"name"`
	Icon string               `json:"icon"`
	Type core.TransactionType `json:"type"`
}

// Fallback values for ids that are not in the catalog.
const (
	FallbackName = "Other"
	FallbackIcon = "📦"
)

var incomeCategories = []Category{
	{ID: "salary", Name: "Salary", Icon: "💼"},
	{ID: "freelance", Name: "Freelance", Icon: "💻"},
	{ID: "investment", Name: "Investment", Icon: "📈"},
	{ID: "business", Name: "Business", Icon: "🏢"},
	{ID: "gift", Name: "Gift", Icon: "🎁"},
	{ID: "other_income", Name: "Other Income", Icon: "💰"},
}

var expenseCategories = []Category{
	{ID: "food", Name: "Food & Dining", Icon: "🍔"},
	{ID: "transport", Name: "Transportation", Icon: "🚗"},
	{ID: "shopping", Name: "Shopping", Icon: "🛍️"},
	{ID: "entertainment", Name: "Entertainment", Icon: "🎬"},
	{ID: "bills", Name: "Bills & Utilities", Icon: "📄"},
	{ID: "healthcare", Name: "Healthcare", Icon: "🏥"},
	{ID: "education", Name: "Education", Icon: "📚"},
	{ID: "travel", Name: "Travel", Icon: "✈️"},
	{ID: "housing", Name: "Housing", Icon: "🏠"},
	{ID: "other_expense", Name: "Other Expense", Icon: "📦"},
}

// Catalog is immutable once built; it is safe for concurrent use.
type Catalog struct {
	byType map[core.TransactionType][]Category
	byID   map[string]Category
}

// Default is the built-in catalog.
var Default = New(incomeCategories, expenseCategories)

// New builds a catalog. Type fields are overwritten from the partition each
// category is passed in. An id present in both sets resolves to the income entry.
func New(income, expense []Category) *Catalog {
	c := &Catalog{
		byType: map[core.TransactionType][]Category{},
		byID:   map[string]Category{},
	}
	add := func(t core.TransactionType, list []Category) {
		out := make([]Category, 0, len(list))
		for _, cat := range list {
			cat.Type = t
			out = append(out, cat)
			if _, dup := c.byID[cat.ID]; !dup {
				c.byID[cat.ID] = cat
			}
		}
		c.byType[t] = out
	}
	add(core.Income, income)
	add(core.Expense, expense)
	return c
}

// ForType returns a copy of the set for t; unknown types get nil.
func (c *Catalog) ForType(t core.TransactionType) []Category {
	list := c.byType[t]
	if list == nil {
		return nil
	}
	out := make([]Category, len(list))
	copy(out, list)
	return out
}

// All returns income categories followed by expense categories.
func (c *Catalog) All() []Category {
	return append(c.ForType(core.Income), c.ForType(core.Expense)...)
}

// Lookup never fails: unknown ids resolve to a neutral "Other" entry.
func (c *Catalog) Lookup(id string) Category {
	if cat, ok := c.byID[id]; ok {
		return cat
	}
	return Category{ID: id, Name: FallbackName, Icon: FallbackIcon}
}

func (c *Catalog) Icon(id string) string { return c.Lookup(id).Icon }
func (c *Catalog) Name(id string) string { return c.Lookup(id).Name }

// Valid reports whether id belongs to the set for t.
func (c *Catalog) Valid(t core.TransactionType, id string) bool {
	for _, cat := range c.byType[t] {
		if cat.ID == id {
			return true
		}
	}
	return false
}

// SwitchType keeps current when it is valid for the new type and clears it otherwise.
func (c *Catalog) SwitchType(t core.TransactionType, current string) string {
	if c.Valid(t, current) {
		return current
	}
	return ""
}

func ForType(t core.TransactionType) []Category { return Default.ForType(t) }
func Lookup(id string) Category { return Default.Lookup(id) }
func Icon(id string) string { return Default.Icon(id) }
func Name(id string) string { return Default.Name(id) }
func Valid(t core.TransactionType, id string) bool {
	return Default.Valid(t, id)
}
func SwitchType(t core.TransactionType, current string) string {
	return Default.SwitchType(t, current)
}

// Catalog lets a fixed catalog stand in wherever a catalog source is expected.
func (c *Catalog) Catalog(context.Context) *Catalog { return c }
