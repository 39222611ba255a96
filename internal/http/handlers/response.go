// Package handlers provides HTTP handler implementations for the public API.
//
// This file defines the response envelopes and the two helpers every handler
// uses: ok writes a success envelope, raise hands a failure to the error
// funnel (middleware.ErrorHandler). Handlers never write failure responses.
//
// Example success response:
//
//	HTTP/1.1 200 OK
//	{ "success": true, "data": { "id": 1, "name": "Monthly Budget", "amount": 5000, "category": "general" } }
//
// Example failure response (written by the funnel):
//
//	HTTP/1.1 404 Not Found
//	{ "success": false, "error": { "message": "Budget with ID 7 not found", "statusCode": 404, "requestId": "…" } }
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-budget-api/internal/domain"
	"github.com/tbourn/go-budget-api/internal/http/middleware"
)

// ErrorResponse is the failure envelope, documented here for Swagger.
type ErrorResponse = middleware.ErrorEnvelope

// BudgetResponse wraps a single budget.
type BudgetResponse struct {
	Success bool          `json:"success" example:"true"`
	Data    domain.Budget `json:"data"`
}

// BudgetListResponse wraps a list of budgets and its length.
type BudgetListResponse struct {
	Success bool            `json:"success" example:"true"`
	Count   int             `json:"count" example:"2"`
	Data    []domain.Budget `json:"data"`
}

// EmptyResponse is returned by deletes.
type EmptyResponse struct {
	Success bool     `json:"success" example:"true"`
	Data    struct{} `json:"data"`
}

// HealthResponse is the liveness payload.
type HealthResponse struct {
	Success   bool   `json:"success" example:"true"`
	Message   string `json:"message" example:"Server is running"`
	Timestamp string `json:"timestamp" example:"2024-05-01T12:00:00.000Z"`
}

// ok writes a success JSON response.
func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}

// raise attaches err for the error funnel and stops the chain.
func raise(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

// Raise is the exported variant of raise, for router-level fallbacks.
func Raise(c *gin.Context, err error) { raise(c, err) }
