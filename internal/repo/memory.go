package repo

import (
	"context"
	"sync"

	"golang.org/x/exp/slices"

	"github.com/tbourn/go-budget-api/internal/domain"
)

// MemoryBudgets is a process-local budget store. Reads share a read lock;
// every mutation, including the name check that precedes it, runs under the
// write lock. Ids come from a counter that only grows.
//
// It is safe for concurrent use.
type MemoryBudgets struct {
	mu     sync.RWMutex
	items  []domain.Budget
	nextID int64
}

// NewMemoryBudgets returns a store holding the given budgets, ids from 1.
func NewMemoryBudgets(seed ...domain.NewBudget) *MemoryBudgets {
	m := &MemoryBudgets{nextID: 1}
	for _, nb := range seed {
		_, _ = m.insert(nb)
	}
	return m
}

// ListBudgets returns a snapshot of all budgets in insertion order.
func (m *MemoryBudgets) ListBudgets(ctx context.Context) ([]domain.Budget, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := slices.Clone(m.items)
	if out == nil {
		out = []domain.Budget{}
	}
	return out, nil
}

// GetBudget returns a copy of the budget with the given id, or ErrNotFound.
func (m *MemoryBudgets) GetBudget(ctx context.Context, id int64) (*domain.Budget, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	i := m.indexOf(id)
	if i < 0 {
		return nil, ErrNotFound
	}
	b := m.items[i]
	return &b, nil
}

// CreateBudget inserts a budget, or returns ErrDuplicateName.
func (m *MemoryBudgets) CreateBudget(ctx context.Context, nb domain.NewBudget) (*domain.Budget, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return m.insert(nb)
}

// UpdateBudget merges a patch into the budget with the given id. A renamed
// budget must not collide with another budget's name.
func (m *MemoryBudgets) UpdateBudget(ctx context.Context, id int64, p domain.BudgetPatch) (*domain.Budget, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.indexOf(id)
	if i < 0 {
		return nil, ErrNotFound
	}
	b := m.items[i]
	p.Apply(&b)
	if p.Name != nil && m.nameTaken(b.NameKey, id) {
		return nil, ErrDuplicateName
	}
	m.items[i] = b
	return &b, nil
}

// DeleteBudget removes the budget with the given id, or returns ErrNotFound.
func (m *MemoryBudgets) DeleteBudget(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.indexOf(id)
	if i < 0 {
		return ErrNotFound
	}
	m.items = slices.Delete(m.items, i, i+1)
	return nil
}

func (m *MemoryBudgets) insert(nb domain.NewBudget) (*domain.Budget, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := domain.NameKey(nb.Name)
	if m.nameTaken(key, 0) {
		return nil, ErrDuplicateName
	}
	b := domain.Budget{
		ID:       m.nextID,
		Name:     nb.Name,
		NameKey:  key,
		Amount:   nb.Amount,
		Category: nb.Category,
	}
	m.nextID++
	m.items = append(m.items, b)
	return &b, nil
}

// indexOf must be called with mu held.
func (m *MemoryBudgets) indexOf(id int64) int {
	return slices.IndexFunc(m.items, func(b domain.Budget) bool { return b.ID == id })
}

// nameTaken must be called with mu held. The budget with id except is ignored.
func (m *MemoryBudgets) nameTaken(key string, except int64) bool {
	return slices.ContainsFunc(m.items, func(b domain.Budget) bool {
		return b.NameKey == key && b.ID != except
	})
}
