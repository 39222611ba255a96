// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements ErrorHandler, the single place where failure responses
// are written. Handlers and other middleware never render errors themselves:
// they attach an error with c.Error and abort, and ErrorHandler turns the last
// attached error into a status code and a JSON envelope.
package middleware

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-budget-api/internal/apperr"
)

const msgInternal = "Internal server error"

// ErrorEnvelope is the body of every failure response.
type ErrorEnvelope struct {
	Success bool      `json:"success" example:"false"`
	Error   ErrorBody `json:"error"`
}

// ErrorBody describes one failure.
type ErrorBody struct {
	Message    string `json:"message" example:"Budget with ID 7 not found"`
	StatusCode int    `json:"statusCode" example:"404"`
	RequestID  string `json:"requestId,omitempty" example:"0b6f3c1e-2a77-4d0e-9f5a-8d1a4f3f2a10"`
	// Stack and Details are only sent in development.
	Stack   string        `json:"stack,omitempty"`
	Details *ErrorDetails `json:"details,omitempty"`
}

// ErrorDetails is the classification behind a failure.
type ErrorDetails struct {
	Kind  string `json:"kind"`
	Code  string `json:"code,omitempty"`
	Cause string `json:"cause,omitempty"`
	Type  string `json:"type,omitempty"`
}

// ErrorOptions configures ErrorHandler.
type ErrorOptions struct {
	// Development exposes stacks, details and the messages of unclassified
	// server errors.
	Development bool
}

// ErrorHandler maps the last error raised on the context to a response.
//
// Mapping, applied in order:
//  1. apperr.Classify; start from its message and status (500 if none).
//  2. A recognized constraint code overrides status and message.
//  3. A body parse failure answered with 400 reads "Invalid JSON".
//  4. Validation errors are always 400.
//  5. Outside development, unclassified 5xx messages are replaced by a
//     generic one.
//
// The failure is logged before responding (error level for 5xx, warn
// otherwise) and counted in http_errors_total. If the handler already wrote
// a response, only the log and the counter remain.
func ErrorHandler(opts ErrorOptions) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		ae := apperr.Classify(c.Errors.Last().Err)

		status := ae.StatusCode()
		msg := ae.Message
		if ct, ok := apperr.LookupConstraint(ae.Code); ok {
			status, msg = ct.Status, ct.Message
		}
		if ae.BodyParse && status == http.StatusBadRequest {
			msg = "Invalid JSON"
		}
		if ae.Kind == apperr.KindValidation {
			status = http.StatusBadRequest
		}
		if !opts.Development && status >= http.StatusInternalServerError && ae.Kind == apperr.KindUnclassified {
			msg = msgInternal
		}

		rid := GetRequestID(c)
		logError(ae, status, c, rid)
		httpErrors.WithLabelValues(ae.Kind.String(), strconv.Itoa(status)).Inc()

		if c.Writer.Written() {
			return
		}

		body := ErrorBody{Message: msg, StatusCode: status, RequestID: rid}
		if opts.Development {
			body.Stack = ae.Stack()
			body.Details = details(ae)
		}
		c.AbortWithStatusJSON(status, ErrorEnvelope{Success: false, Error: body})
	}
}

func logError(ae *apperr.Error, status int, c *gin.Context, rid string) {
	ev := log.Warn()
	if status >= http.StatusInternalServerError {
		ev = log.Error()
	}
	ev.Str("error_message", ae.Error()).
		Str("stack", ae.Stack()).
		Int("statusCode", status).
		Str("path", c.Request.URL.Path).
		Str("method", c.Request.Method).
		Str("kind", ae.Kind.String()).
		Str("code", ae.Code).
		Str("request_id", rid).
		Msg("request failed")
}

func details(ae *apperr.Error) *ErrorDetails {
	d := &ErrorDetails{Kind: ae.Kind.String(), Code: ae.Code}
	if ae.Cause != nil {
		d.Cause = ae.Cause.Error()
		d.Type = fmt.Sprintf("%T", ae.Cause)
	}
	return d
}
