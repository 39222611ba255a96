// Budget HTTP handlers.
//
// This file exposes the REST endpoints for budgets:
//   - GET    /health
//   - GET    /budgets                (list, optional name/category globs)
//   - GET    /budgets/{id}
//   - POST   /budgets                (create, Idempotency-Key aware)
//   - PUT    /budgets/{id}           (partial update)
//   - DELETE /budgets/{id}
//   - GET    /budgets/error/database (always fails, database kind)
//   - GET    /budgets/error/server   (always fails, unclassified)
//
// Handlers are transport-thin: they read input, call the budget service and
// write a success envelope, or raise the error for the funnel.
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-budget-api/internal/apperr"
	"github.com/tbourn/go-budget-api/internal/domain"
	"github.com/tbourn/go-budget-api/internal/http/middleware"
	"github.com/tbourn/go-budget-api/internal/services"
	"github.com/tbourn/go-budget-api/internal/validation"
)

// Messages of the failure simulation endpoints.
const (
	MsgSimulatedDatabase = "Failed to connect to database"
	MsgSimulatedServer   = "Unexpected server error occurred"
)

// BudgetService defines the budget operations consumed by HTTP handlers.
//
// Implementations must be safe for concurrent use and return classified
// errors (package apperr).
type BudgetService interface {
	List(ctx context.Context, f services.ListFilter) ([]domain.Budget, error)
	Get(ctx context.Context, rawID string) (*domain.Budget, error)
	Create(ctx context.Context, f validation.Fields, key string) (*domain.Budget, error)
	// Replay returns the budget created earlier under key.
	Replay(ctx context.Context, key string) (*domain.Budget, error)
	Update(ctx context.Context, rawID string, f validation.Fields) (*domain.Budget, error)
	Delete(ctx context.Context, rawID string) error
}

// CreateBudgetRequest documents the creation body. Bodies are read field by
// field (validation.Fields) so presence and JSON types can be checked.
type CreateBudgetRequest struct {
	Name     string  `json:"name" example:"Travel"`
	Amount   float64 `json:"amount" example:"250.5"`
	Category string  `json:"category" example:"leisure"`
}

// UpdateBudgetRequest documents the update body. Absent or null fields are
// left unchanged.
type UpdateBudgetRequest struct {
	Name     *string  `json:"name,omitempty" example:"Weekly Groceries"`
	Amount   *float64 `json:"amount,omitempty" example:"650"`
	Category *string  `json:"category,omitempty" example:"food"`
}

// Handlers groups the HTTP endpoints.
type Handlers struct {
	svc BudgetService
	now func() time.Time
}

// New constructs Handlers bound to svc.
func New(svc BudgetService) *Handlers {
	return &Handlers{svc: svc, now: time.Now}
}

// readFields decodes the request body into Fields.
func readFields(c *gin.Context) (validation.Fields, error) {
	raw, err := c.GetRawData()
	if err != nil {
		return nil, apperr.Classify(err)
	}
	return validation.DecodeBody(raw)
}

// Health is the liveness endpoint. It is mounted outside the API base path
// and left out of the OpenAPI document.
func (h *Handlers) Health(c *gin.Context) {
	ok(c, http.StatusOK, HealthResponse{
		Success:   true,
		Message:   "Server is running",
		Timestamp: h.now().UTC().Format("2006-01-02T15:04:05.000Z07:00"),
	})
}

// ListBudgets godoc
// @ID          listBudgets
// @Summary     List budgets
// @Description Returns all budgets in id order. name and category take case-insensitive * globs.
// @Tags        Budgets
// @Produce     json
// @Param       name      query  string  false  "Name glob"      example(month*)
// @Param       category  query  string  false  "Category glob"  example(food)
// @Success     200  {object}  handlers.BudgetListResponse
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /budgets [get]
func (h *Handlers) ListBudgets(c *gin.Context) {
	items, err := h.svc.List(c.Request.Context(), services.ListFilter{
		Name:     c.Query("name"),
		Category: c.Query("category"),
	})
	if err != nil {
		raise(c, err)
		return
	}
	ok(c, http.StatusOK, BudgetListResponse{Success: true, Count: len(items), Data: items})
}

// GetBudget godoc
// @ID          getBudget
// @Summary     Get a budget
// @Tags        Budgets
// @Produce     json
// @Param       id   path  integer  true  "Budget ID"  example(1)
// @Success     200  {object}  handlers.BudgetResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Budget ID must be a number"
// @Failure     404  {object}  handlers.ErrorResponse  "Budget not found"
// @Router      /budgets/{id} [get]
func (h *Handlers) GetBudget(c *gin.Context) {
	b, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		raise(c, err)
		return
	}
	ok(c, http.StatusOK, BudgetResponse{Success: true, Data: *b})
}

// CreateBudget godoc
// @ID          createBudget
// @Summary     Create a budget
// @Description Creates a budget. With an Idempotency-Key, a retry within the TTL returns the
// @Description originally created budget with the Idempotent-Replayed header set.
// @Tags        Budgets
// @Accept      json
// @Produce     json
// @Param       Idempotency-Key  header  string                        false  "Idempotency key"  example(create-rent-2024-05)
// @Param       body             body    handlers.CreateBudgetRequest  true   "Budget to create"
// @Success     201  {object}  handlers.BudgetResponse
// @Header      201  {string}  Idempotent-Replayed  "true when served from a stored result"
// @Failure     400  {object}  handlers.ErrorResponse  "Validation failed or invalid JSON"
// @Failure     413  {object}  handlers.ErrorResponse  "Request body too large"
// @Failure     429  {object}  handlers.ErrorResponse  "Rate limited"
// @Router      /budgets [post]
func (h *Handlers) CreateBudget(c *gin.Context) {
	ctx := c.Request.Context()
	key, _ := middleware.GetIdempotencyKey(c)

	if key != "" && middleware.IsReplay(c) {
		if b, err := h.svc.Replay(ctx, key); err == nil {
			c.Header(middleware.HeaderIdempotentReplay, "true")
			ok(c, http.StatusCreated, BudgetResponse{Success: true, Data: *b})
			return
		}
		// The record expired between lookup and replay; create normally.
	}

	f, err := readFields(c)
	if err != nil {
		raise(c, err)
		return
	}
	b, err := h.svc.Create(ctx, f, key)
	if err != nil {
		raise(c, err)
		return
	}
	ok(c, http.StatusCreated, BudgetResponse{Success: true, Data: *b})
}

// UpdateBudget godoc
// @ID          updateBudget
// @Summary     Update a budget
// @Description Applies the fields present in the body. Absent or null fields are left unchanged.
// @Tags        Budgets
// @Accept      json
// @Produce     json
// @Param       id    path  integer                       true  "Budget ID"  example(1)
// @Param       body  body  handlers.UpdateBudgetRequest  true  "Fields to change"
// @Success     200  {object}  handlers.BudgetResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Validation failed or invalid JSON"
// @Failure     404  {object}  handlers.ErrorResponse  "Budget not found"
// @Failure     409  {object}  handlers.ErrorResponse  "Duplicate name"
// @Router      /budgets/{id} [put]
func (h *Handlers) UpdateBudget(c *gin.Context) {
	f, err := readFields(c)
	if err != nil {
		raise(c, err)
		return
	}
	b, err := h.svc.Update(c.Request.Context(), c.Param("id"), f)
	if err != nil {
		raise(c, err)
		return
	}
	ok(c, http.StatusOK, BudgetResponse{Success: true, Data: *b})
}

// DeleteBudget godoc
// @ID          deleteBudget
// @Summary     Delete a budget
// @Tags        Budgets
// @Produce     json
// @Param       id   path  integer  true  "Budget ID"  example(1)
// @Success     200  {object}  handlers.EmptyResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Budget ID must be a number"
// @Failure     404  {object}  handlers.ErrorResponse  "Budget not found"
// @Router      /budgets/{id} [delete]
func (h *Handlers) DeleteBudget(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		raise(c, err)
		return
	}
	ok(c, http.StatusOK, EmptyResponse{Success: true})
}

// SimulateDatabaseError godoc
// @ID          simulateDatabaseError
// @Summary     Raise a database error
// @Tags        Diagnostics
// @Produce     json
// @Failure     500  {object}  handlers.ErrorResponse  "Failed to connect to database"
// @Router      /budgets/error/database [get]
func (h *Handlers) SimulateDatabaseError(c *gin.Context) {
	raise(c, apperr.Database(MsgSimulatedDatabase, nil))
}

// SimulateServerError godoc
// @ID          simulateServerError
// @Summary     Raise an unclassified error
// @Tags        Diagnostics
// @Produce     json
// @Failure     500  {object}  handlers.ErrorResponse  "Internal server error"
// @Router      /budgets/error/server [get]
func (h *Handlers) SimulateServerError(c *gin.Context) {
	raise(c, apperr.New(apperr.KindUnclassified, http.StatusInternalServerError, MsgSimulatedServer))
}
