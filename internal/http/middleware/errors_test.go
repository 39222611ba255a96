package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbourn/go-budget-api/internal/apperr"
)

// newFunnelRouter returns an engine with the request id and error funnel
// installed, ready for more middleware and routes.
func newFunnelRouter(opts ErrorOptions) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID())
	r.Use(ErrorHandler(opts))
	r.Use(Recovery())
	return r
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) ErrorEnvelope {
	t.Helper()
	var env ErrorEnvelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("invalid error envelope %q: %v", w.Body.String(), err)
	}
	return env
}

type sqlStateErr string

func (e sqlStateErr) Error() string    { return "constraint violated" }
func (e sqlStateErr) SQLState() string { return string(e) }

func raise(err error) gin.HandlerFunc {
	return func(c *gin.Context) {
		_ = c.Error(err)
		c.Abort()
	}
}

func TestErrorHandler_Mapping(t *testing.T) {
	var syntaxErr error
	{
		var v map[string]any
		syntaxErr = json.Unmarshal([]byte(`{"name": "Rent",}`), &v)
	}

	cases := []struct {
		name       string
		dev        bool
		err        error
		wantStatus int
		wantMsg    string
	}{
		{"validation", false, apperr.Validation("Amount must be a positive number"), 400, "Amount must be a positive number"},
		{"validation status forced", false, apperr.New(apperr.KindValidation, http.StatusUnprocessableEntity, "bad"), 400, "bad"},
		{"not found", false, apperr.NotFound("Budget with ID 9 not found"), 404, "Budget with ID 9 not found"},
		{"database keeps message", false, apperr.Database("Failed to connect to database", nil), 500, "Failed to connect to database"},
		{"unclassified hidden in production", false, errors.New("secret detail"), 500, "Internal server error"},
		{"unclassified shown in development", true, errors.New("secret detail"), 500, "secret detail"},
		{"unique constraint", false, apperr.Database("Failed to update budget", sqlStateErr(apperr.CodeUniqueViolation)), 409, "Duplicate field value entered"},
		{"foreign key constraint", false, sqlStateErr(apperr.CodeForeignKeyViolation), 400, "Foreign key constraint violation"},
		{"invalid text constraint", false, sqlStateErr(apperr.CodeInvalidTextRep), 400, "Invalid input syntax"},
		{"unknown code keeps status", false, apperr.Database("Failed to list budgets", sqlStateErr("40001")), 500, "Failed to list budgets"},
		{"body parse", false, syntaxErr, 400, "Invalid JSON"},
		{"body parse raised", true, apperr.BodyParse(syntaxErr), 400, "Invalid JSON"},
		{"body too large", false, &http.MaxBytesError{Limit: 1}, 413, "Request body too large"},
		{"unclassified client status", false, apperr.New(apperr.KindUnclassified, http.StatusTooManyRequests, "slow down"), 429, "slow down"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := newFunnelRouter(ErrorOptions{Development: tc.dev})
			r.GET("/x", raise(tc.err))

			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/x", nil)
			req.Header.Set(requestIDHeader, "rid-42")
			r.ServeHTTP(w, req)

			env := decodeEnvelope(t, w)
			assert.Equal(t, tc.wantStatus, w.Code)
			assert.False(t, env.Success)
			assert.Equal(t, tc.wantMsg, env.Error.Message)
			assert.Equal(t, tc.wantStatus, env.Error.StatusCode)
			assert.Equal(t, "rid-42", env.Error.RequestID)
			if !tc.dev {
				assert.Empty(t, env.Error.Stack)
				assert.Nil(t, env.Error.Details)
			}
		})
	}
}

func TestErrorHandler_DevelopmentDetails(t *testing.T) {
	r := newFunnelRouter(ErrorOptions{Development: true})
	r.GET("/x", raise(apperr.Database("Failed to update budget", sqlStateErr(apperr.CodeUniqueViolation))))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))

	env := decodeEnvelope(t, w)
	require.NotNil(t, env.Error.Details)
	assert.Equal(t, "database", env.Error.Details.Kind)
	assert.Equal(t, apperr.CodeUniqueViolation, env.Error.Details.Code)
	assert.Equal(t, "constraint violated", env.Error.Details.Cause)
	assert.Equal(t, "middleware.sqlStateErr", env.Error.Details.Type)
	assert.NotEmpty(t, env.Error.Stack)
}

func TestErrorHandler_PanicBecomesEnvelope(t *testing.T) {
	for _, dev := range []bool{false, true} {
		r := newFunnelRouter(ErrorOptions{Development: dev})
		r.GET("/panic", func(c *gin.Context) { panic("kaboom") })

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))

		env := decodeEnvelope(t, w)
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		want := "Internal server error"
		if dev {
			want = "kaboom"
		}
		assert.Equal(t, want, env.Error.Message)
	}
}

func TestErrorHandler_LastErrorWins(t *testing.T) {
	r := newFunnelRouter(ErrorOptions{})
	r.GET("/x", func(c *gin.Context) {
		_ = c.Error(apperr.Validation("first"))
		_ = c.Error(apperr.NotFound("second"))
		c.Abort()
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "second", decodeEnvelope(t, w).Error.Message)
}

func TestErrorHandler_PassThroughAndAlreadyWritten(t *testing.T) {
	r := newFunnelRouter(ErrorOptions{})
	r.GET("/ok", func(c *gin.Context) { c.String(http.StatusOK, "fine") })
	r.GET("/late", func(c *gin.Context) {
		c.String(http.StatusOK, "partial-body")
		_ = c.Error(errors.New("after write"))
	})
	r.GET("/late-panic", func(c *gin.Context) {
		c.String(http.StatusOK, "partial-body")
		panic("late kaboom")
	})

	for path, want := range map[string]string{"/ok": "fine", "/late": "partial-body", "/late-panic": "partial-body"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, w.Code, path)
		assert.Equal(t, want, w.Body.String(), path)
	}
}

func TestErrorHandler_LogsAndCounts(t *testing.T) {
	buf := captureLogger(t)

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID())
	r.Use(Logger(LogOptions{}))
	r.Use(ErrorHandler(ErrorOptions{}))
	r.GET("/missing", raise(apperr.NotFound("Budget with ID 5 not found")))
	r.GET("/db", raise(apperr.Database("Failed to connect to database", nil)))

	notFound := httpErrors.WithLabelValues("not_found", "404")
	database := httpErrors.WithLabelValues("database", "500")
	baseNF, baseDB := testutil.ToFloat64(notFound), testutil.ToFloat64(database)

	for _, p := range []string{"/missing", "/db"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, p, nil))
	}

	assert.Equal(t, baseNF+1, testutil.ToFloat64(notFound))
	assert.Equal(t, baseDB+1, testutil.ToFloat64(database))

	var warn, errLine string
	for _, line := range strings.Split(buf.String(), "\n") {
		if !strings.Contains(line, `"message":"request failed"`) {
			continue
		}
		switch {
		case strings.Contains(line, `"level":"warn"`):
			warn = line
		case strings.Contains(line, `"level":"error"`):
			errLine = line
		}
	}
	require.NotEmpty(t, warn, buf.String())
	require.NotEmpty(t, errLine, buf.String())
	assert.Contains(t, warn, `"statusCode":404`)
	assert.Contains(t, warn, `"kind":"not_found"`)
	assert.Contains(t, warn, `"path":"/missing"`)
	assert.Contains(t, warn, `"method":"GET"`)
	assert.Contains(t, warn, `"stack":"`)
	assert.Contains(t, errLine, `"statusCode":500`)
	assert.Contains(t, errLine, `"error_message":"Failed to connect to database"`)
}
