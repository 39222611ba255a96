// Package repo implements persistence for budgets and idempotency records.
//
// Two backends share the same error semantics:
//   - the GORM functions in this file, taking a *gorm.DB (SQLite in practice);
//   - MemoryBudgets / MemoryIdempotency, process-local and mutex guarded.
//
// A missing budget is reported as ErrNotFound. A case-insensitive name clash
// is reported as ErrDuplicateName, which carries the unique-violation SQLSTATE
// so the error funnel maps it like any backend constraint failure.
package repo

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/tbourn/go-budget-api/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = gorm.ErrRecordNotFound

// ErrDuplicateName is returned when a budget name collides with another
// budget's name, ignoring case.
var ErrDuplicateName error = duplicateError{}

type duplicateError struct{}

func (duplicateError) Error() string    { return "budget name already exists" }
func (duplicateError) SQLState() string { return "23505" }

// ListBudgets returns all budgets ordered by id.
func ListBudgets(ctx context.Context, db *gorm.DB) ([]domain.Budget, error) {
	out := []domain.Budget{}
	err := db.WithContext(ctx).Order("id asc").Find(&out).Error
	return out, err
}

// GetBudget fetches a budget by id, or ErrNotFound.
func GetBudget(ctx context.Context, db *gorm.DB, id int64) (*domain.Budget, error) {
	var b domain.Budget
	if err := db.WithContext(ctx).First(&b, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &b, nil
}

// CreateBudget inserts a budget and returns it with its assigned id. The
// AUTOINCREMENT primary key keeps ids from being reused after deletes.
func CreateBudget(ctx context.Context, db *gorm.DB, nb domain.NewBudget) (*domain.Budget, error) {
	b := &domain.Budget{
		Name:     nb.Name,
		NameKey:  domain.NameKey(nb.Name),
		Amount:   nb.Amount,
		Category: nb.Category,
	}
	if err := db.WithContext(ctx).Create(b).Error; err != nil {
		return nil, translate(err)
	}
	return b, nil
}

// UpdateBudget applies a patch to the budget with the given id inside a
// transaction and returns the merged result.
func UpdateBudget(ctx context.Context, db *gorm.DB, id int64, p domain.BudgetPatch) (*domain.Budget, error) {
	var out domain.Budget
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&out, "id = ?", id).Error; err != nil {
			return err
		}
		if p.Empty() {
			return nil
		}
		p.Apply(&out)
		return tx.Save(&out).Error
	})
	if err != nil {
		return nil, translate(err)
	}
	return &out, nil
}

// DeleteBudget removes the budget with the given id, or returns ErrNotFound.
func DeleteBudget(ctx context.Context, db *gorm.DB, id int64) error {
	res := db.WithContext(ctx).Delete(&domain.Budget{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// CountBudgets returns the number of stored budgets.
func CountBudgets(ctx context.Context, db *gorm.DB) (int64, error) {
	var n int64
	err := db.WithContext(ctx).Model(&domain.Budget{}).Count(&n).Error
	return n, err
}

// SeedBudgets inserts the given budgets when the table is empty.
func SeedBudgets(ctx context.Context, db *gorm.DB, seed []domain.NewBudget) error {
	n, err := CountBudgets(ctx, db)
	if err != nil || n > 0 {
		return err
	}
	for _, nb := range seed {
		if _, err := CreateBudget(ctx, db, nb); err != nil {
			return err
		}
	}
	return nil
}

// translate maps unique violations on the budgets table to ErrDuplicateName.
func translate(err error) error {
	if err == nil || errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	// glebarez/sqlite often returns plain-text errors for UNIQUE violations.
	low := strings.ToLower(err.Error())
	if errors.Is(err, gorm.ErrDuplicatedKey) ||
		strings.Contains(low, "unique constraint failed") ||
		strings.Contains(low, "constraint failed: unique") {
		return ErrDuplicateName
	}
	return err
}
