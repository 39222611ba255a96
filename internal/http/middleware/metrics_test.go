package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_Counters_InflightAndPathFallback(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(Metrics())

	r.GET("/api/budgets/:id", func(c *gin.Context) {
		c.String(http.StatusOK, "hello")
	})
	// status only: size stays -1 and is not observed
	r.DELETE("/api/budgets/:id", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	baseOK := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/api/budgets/:id", "200"))
	base404 := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/metrics-missing", "404"))
	base204 := testutil.ToFloat64(httpReqs.WithLabelValues("DELETE", "/api/budgets/:id", "204"))

	for _, tc := range []struct {
		method, path string
		want         int
	}{
		{http.MethodGet, "/api/budgets/1", http.StatusOK},
		{http.MethodGet, "/metrics-missing", http.StatusNotFound},
		{http.MethodDelete, "/api/budgets/1", http.StatusNoContent},
	} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(tc.method, tc.path, nil))
		if w.Code != tc.want {
			t.Fatalf("%s %s -> %d; want %d", tc.method, tc.path, w.Code, tc.want)
		}
	}

	// route template, not the raw path
	if got := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/api/budgets/:id", "200")); got != baseOK+1 {
		t.Fatalf("counter GET 200 = %v; want %v", got, baseOK+1)
	}
	// unmatched routes fall back to the raw path
	if got := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/metrics-missing", "404")); got != base404+1 {
		t.Fatalf("counter 404 fallback = %v; want %v", got, base404+1)
	}
	if got := testutil.ToFloat64(httpReqs.WithLabelValues("DELETE", "/api/budgets/:id", "204")); got != base204+1 {
		t.Fatalf("counter DELETE 204 = %v; want %v", got, base204+1)
	}
	if inFlight := testutil.ToFloat64(httpInflight); inFlight != 0 {
		t.Fatalf("httpInflight = %v; want 0", inFlight)
	}
}
