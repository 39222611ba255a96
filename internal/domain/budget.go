// Package domain defines the core models for the budget API. These types are
// used by GORM for schema mapping and are shared across the repository,
// service and transport layers.
package domain

import (
	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
)

func init() {
	// Amounts go over the wire as bare JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true
}

// Budget is a named spending limit within a category.
//
// NameKey holds the case-folded name and carries the uniqueness constraint,
// so "Groceries" and "GROCERIES" collide while Name keeps the caller's casing.
type Budget struct {
	ID       int64           `json:"id" gorm:"primaryKey;autoIncrement" example:"1"`
	Name     string          `json:"name" gorm:"type:TEXT NOT NULL" example:"Monthly Budget"`
	NameKey  string          `json:"-" gorm:"type:TEXT NOT NULL;uniqueIndex:ux_budgets_name_key"`
	Amount   decimal.Decimal `json:"amount" gorm:"type:DECIMAL(20,8) NOT NULL" swaggertype:"number" example:"5000"`
	Category string          `json:"category" gorm:"type:TEXT NOT NULL" example:"general"`
}

// TableName implements the GORM tabler interface.
func (Budget) TableName() string { return "budgets" }

// NewBudget carries the validated fields of a budget that has no id yet.
type NewBudget struct {
	Name     string
	Amount   decimal.Decimal
	Category string
}

// BudgetPatch is a partial update. A nil field was absent from the request
// and leaves the stored value untouched.
type BudgetPatch struct {
	Name     *string
	Amount   *decimal.Decimal
	Category *string
}

// Empty reports whether the patch changes nothing.
func (p BudgetPatch) Empty() bool {
	return p.Name == nil && p.Amount == nil && p.Category == nil
}

// Apply merges the present fields of p into b.
func (p BudgetPatch) Apply(b *Budget) {
	if p.Name != nil {
		b.Name = *p.Name
		b.NameKey = NameKey(*p.Name)
	}
	if p.Amount != nil {
		b.Amount = *p.Amount
	}
	if p.Category != nil {
		b.Category = *p.Category
	}
}

// NameKey returns the case-insensitive comparison key for a budget name.
// A Caser is stateful, so each call builds its own.
func NameKey(name string) string {
	return cases.Fold().String(name)
}

// SeedBudgets returns the budgets a fresh store starts with.
func SeedBudgets() []NewBudget {
	return []NewBudget{
		{Name: "Monthly Budget", Amount: decimal.NewFromInt(5000), Category: "general"},
		{Name: "Groceries", Amount: decimal.NewFromInt(500), Category: "food"},
	}
}
