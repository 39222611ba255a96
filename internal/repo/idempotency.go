package repo

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-budget-api/internal/domain"
)

// ErrDuplicate indicates that an idempotency record already exists for the key.
var ErrDuplicate = errors.New("duplicate")

// GetIdempotency returns a non-expired record or ErrNotFound.
func GetIdempotency(ctx context.Context, db *gorm.DB, key string, now time.Time) (*domain.Idempotency, error) {
	if strings.TrimSpace(key) == "" {
		return nil, ErrNotFound
	}
	var rec domain.Idempotency
	err := db.WithContext(ctx).
		Where("key = ? AND expires_at > ?", key, now).
		First(&rec).Error
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// CreateIdempotency inserts a record and returns ErrDuplicate on unique violation.
// A stale record under the same key is replaced.
func CreateIdempotency(ctx context.Context, db *gorm.DB, key string, budgetID int64, status int, body string, ttl time.Duration) (*domain.Idempotency, error) {
	now := time.Now().UTC()
	rec := &domain.Idempotency{
		Key:       key,
		BudgetID:  budgetID,
		Status:    status,
		Body:      body,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("key = ? AND expires_at <= ?", key, now).Delete(&domain.Idempotency{}).Error; err != nil {
			return err
		}
		return tx.Create(rec).Error
	})
	if err != nil {
		if translate(err) == ErrDuplicateName {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return rec, nil
}

// MemoryIdempotency keeps idempotency records in process memory. Expired
// records are dropped when they are next looked up or overwritten.
type MemoryIdempotency struct {
	mu   sync.Mutex
	recs map[string]domain.Idempotency
}

// NewMemoryIdempotency returns an empty record store.
func NewMemoryIdempotency() *MemoryIdempotency {
	return &MemoryIdempotency{recs: make(map[string]domain.Idempotency)}
}

// GetIdempotency returns a non-expired record or ErrNotFound.
func (m *MemoryIdempotency) GetIdempotency(ctx context.Context, key string, now time.Time) (*domain.Idempotency, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.recs[key]
	if !ok {
		return nil, ErrNotFound
	}
	if rec.Expired(now) {
		delete(m.recs, key)
		return nil, ErrNotFound
	}
	return &rec, nil
}

// CreateIdempotency stores a record, or returns ErrDuplicate while a live one exists.
func (m *MemoryIdempotency) CreateIdempotency(ctx context.Context, key string, budgetID int64, status int, body string, ttl time.Duration) (*domain.Idempotency, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec, ok := m.recs[key]; ok && !rec.Expired(now) {
		return nil, ErrDuplicate
	}
	rec := domain.Idempotency{
		Key:       key,
		BudgetID:  budgetID,
		Status:    status,
		Body:      body,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	m.recs[key] = rec
	return &rec, nil
}
