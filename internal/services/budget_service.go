// Package services – BudgetService
//
// This file implements the BudgetService, which owns the budget use cases:
// listing with optional glob filters, lookup, creation (optionally keyed by an
// idempotency key), partial update and deletion. It runs the field rules from
// package validation, talks to the store through the BudgetRepo interface and
// returns classified errors (package apperr) so the HTTP layer never has to
// interpret storage errors itself.
//
// Observability: all public methods are OpenTelemetry-instrumented.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/ryanuber/go-glob"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-budget-api/internal/apperr"
	"github.com/tbourn/go-budget-api/internal/domain"
	"github.com/tbourn/go-budget-api/internal/repo"
	"github.com/tbourn/go-budget-api/internal/validation"
)

// BudgetRepo defines the storage contract required by BudgetService.
// Implementations report a missing budget as repo.ErrNotFound and a name
// clash as repo.ErrDuplicateName.
type BudgetRepo interface {
	// ListBudgets returns all budgets in id order.
	ListBudgets(ctx context.Context) ([]domain.Budget, error)
	// GetBudget returns one budget by id.
	GetBudget(ctx context.Context, id int64) (*domain.Budget, error)
	// CreateBudget inserts a budget and assigns its id.
	CreateBudget(ctx context.Context, nb domain.NewBudget) (*domain.Budget, error)
	// UpdateBudget merges a patch into an existing budget.
	UpdateBudget(ctx context.Context, id int64, p domain.BudgetPatch) (*domain.Budget, error)
	// DeleteBudget removes a budget.
	DeleteBudget(ctx context.Context, id int64) error
}

// IdempotencyRepo stores the responses of keyed create requests.
type IdempotencyRepo interface {
	GetIdempotency(ctx context.Context, key string, now time.Time) (*domain.Idempotency, error)
	CreateIdempotency(ctx context.Context, key string, budgetID int64, status int, body string, ttl time.Duration) (*domain.Idempotency, error)
}

// ListFilter narrows a listing. Empty patterns match everything; patterns
// use * wildcards and ignore case.
type ListFilter struct {
	Name     string
	Category string
}

// BudgetService provides the budget use cases.
type BudgetService struct {
	Repo BudgetRepo
	// Idem is optional; without it idempotency keys are ignored.
	Idem IdempotencyRepo
	// IdempotencyTTL is how long a keyed create can be replayed.
	IdempotencyTTL time.Duration
}

// NewBudgetService constructs a BudgetService.
func NewBudgetService(r BudgetRepo, idem IdempotencyRepo, ttl time.Duration) *BudgetService {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &BudgetService{Repo: r, Idem: idem, IdempotencyTTL: ttl}
}

// List returns the budgets matching f.
func (s *BudgetService) List(ctx context.Context, f ListFilter) ([]domain.Budget, error) {
	tr := otel.Tracer("services/BudgetService")
	ctx, span := tr.Start(ctx, "List",
		trace.WithAttributes(
			attribute.String("filter.name", f.Name),
			attribute.String("filter.category", f.Category),
		),
	)
	defer span.End()

	all, err := s.Repo.ListBudgets(ctx)
	if err != nil {
		return nil, storeErr("Failed to list budgets", err)
	}
	if f.Name == "" && f.Category == "" {
		return all, nil
	}

	out := make([]domain.Budget, 0, len(all))
	for _, b := range all {
		if matches(f.Name, b.Name) && matches(f.Category, b.Category) {
			out = append(out, b)
		}
	}
	return out, nil
}

// Get returns the budget identified by the raw path id.
func (s *BudgetService) Get(ctx context.Context, rawID string) (*domain.Budget, error) {
	tr := otel.Tracer("services/BudgetService")
	ctx, span := tr.Start(ctx, "Get", trace.WithAttributes(attribute.String("budget.id", rawID)))
	defer span.End()

	id, err := validation.ParseID(rawID)
	if err != nil {
		return nil, err
	}
	b, err := s.Repo.GetBudget(ctx, id)
	if err != nil {
		return nil, lookupErr(rawID, "Failed to load budget", err)
	}
	return b, nil
}

// Create validates a creation body and inserts the budget. When key is not
// empty the response is recorded for replay.
func (s *BudgetService) Create(ctx context.Context, f validation.Fields, key string) (*domain.Budget, error) {
	tr := otel.Tracer("services/BudgetService")
	ctx, span := tr.Start(ctx, "Create", trace.WithAttributes(attribute.Bool("idempotent", key != "")))
	defer span.End()

	nb, err := validation.Create(f)
	if err != nil {
		return nil, err
	}

	b, err := s.Repo.CreateBudget(ctx, nb)
	if errors.Is(err, repo.ErrDuplicateName) {
		return nil, apperr.Validation(validation.MsgNameExists)
	}
	if err != nil {
		return nil, storeErr("Failed to create budget", err)
	}
	span.SetAttributes(attribute.Int64("budget.id", b.ID))

	if key != "" && s.Idem != nil {
		s.remember(ctx, key, b)
	}
	return b, nil
}

// Replay returns the budget recorded under an idempotency key, or
// repo.ErrNotFound when no live record exists.
func (s *BudgetService) Replay(ctx context.Context, key string) (*domain.Budget, error) {
	if s.Idem == nil || key == "" {
		return nil, repo.ErrNotFound
	}
	rec, err := s.Idem.GetIdempotency(ctx, key, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	var b domain.Budget
	if err := json.Unmarshal([]byte(rec.Body), &b); err != nil {
		return nil, err
	}
	return &b, nil
}

// Update applies the provided fields of an update body to an existing budget.
// The id is checked first, then existence, then the body.
func (s *BudgetService) Update(ctx context.Context, rawID string, f validation.Fields) (*domain.Budget, error) {
	tr := otel.Tracer("services/BudgetService")
	ctx, span := tr.Start(ctx, "Update", trace.WithAttributes(attribute.String("budget.id", rawID)))
	defer span.End()

	id, err := validation.ParseID(rawID)
	if err != nil {
		return nil, err
	}
	if _, err := s.Repo.GetBudget(ctx, id); err != nil {
		return nil, lookupErr(rawID, "Failed to load budget", err)
	}
	patch, err := validation.Update(f)
	if err != nil {
		return nil, err
	}
	b, err := s.Repo.UpdateBudget(ctx, id, patch)
	if err != nil {
		return nil, lookupErr(rawID, "Failed to update budget", err)
	}
	return b, nil
}

// Delete removes the budget identified by the raw path id.
func (s *BudgetService) Delete(ctx context.Context, rawID string) error {
	tr := otel.Tracer("services/BudgetService")
	ctx, span := tr.Start(ctx, "Delete", trace.WithAttributes(attribute.String("budget.id", rawID)))
	defer span.End()

	id, err := validation.ParseID(rawID)
	if err != nil {
		return err
	}
	if err := s.Repo.DeleteBudget(ctx, id); err != nil {
		return lookupErr(rawID, "Failed to delete budget", err)
	}
	return nil
}

// remember records a keyed create. Losing the race to a concurrent request
// with the same key is not an error for this request.
func (s *BudgetService) remember(ctx context.Context, key string, b *domain.Budget) {
	body, err := json.Marshal(b)
	if err == nil {
		_, err = s.Idem.CreateIdempotency(ctx, key, b.ID, http.StatusCreated, string(body), s.IdempotencyTTL)
	}
	if err != nil && !errors.Is(err, repo.ErrDuplicate) {
		zerolog.Ctx(ctx).Warn().Err(err).Str("idempotency_key", key).Msg("idempotency record not saved")
	}
}

func matches(pattern, value string) bool {
	if pattern == "" {
		return true
	}
	return glob.Glob(strings.ToLower(pattern), strings.ToLower(value))
}

func lookupErr(rawID, msg string, err error) error {
	if errors.Is(err, repo.ErrNotFound) {
		return apperr.NotFound(validation.NotFoundMessage(rawID))
	}
	return storeErr(msg, err)
}

// storeErr classifies a storage failure. Cancellation is not a backend fault.
func storeErr(msg string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return apperr.Wrap(err)
	}
	return apperr.Database(msg, err)
}
