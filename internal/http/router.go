// Package httpapi wires the HTTP transport (Gin) to the budget service,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, error mapping, panic
// recovery, metrics, CORS, security headers, idempotency, and rate limiting.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/tbourn/go-budget-api/docs"
	"github.com/tbourn/go-budget-api/internal/apperr"
	"github.com/tbourn/go-budget-api/internal/config"
	"github.com/tbourn/go-budget-api/internal/domain"
	"github.com/tbourn/go-budget-api/internal/http/handlers"
	"github.com/tbourn/go-budget-api/internal/http/middleware"
	"github.com/tbourn/go-budget-api/internal/repo"
	"github.com/tbourn/go-budget-api/internal/services"
)

const (
	maxBodyBytes = 1 << 20
	swaggerPath  = "/swagger"
	pprofPath    = "/debug/pprof"
)

// Stores are the persistence backends behind the API.
type Stores struct {
	Budgets services.BudgetRepo
	Idem    services.IdempotencyRepo
}

// MemoryStores returns process-local stores, optionally holding the initial
// budgets.
func MemoryStores(seed bool) Stores {
	var initial []domain.NewBudget
	if seed {
		initial = domain.SeedBudgets()
	}
	return Stores{
		Budgets: repo.NewMemoryBudgets(initial...),
		Idem:    repo.NewMemoryIdempotency(),
	}
}

// SQLStores returns stores backed by db. The schema must already exist.
func SQLStores(db *gorm.DB) Stores {
	return Stores{
		Budgets: budgetRepoShim{db: db},
		Idem:    idemShim{db: db},
	}
}

// budgetRepoShim adapts the repository free functions to the
// services.BudgetRepo interface.
type budgetRepoShim struct{ db *gorm.DB }

// ListBudgets proxies repo.ListBudgets.
func (s budgetRepoShim) ListBudgets(ctx context.Context) ([]domain.Budget, error) {
	return repo.ListBudgets(ctx, s.db)
}

// GetBudget proxies repo.GetBudget.
func (s budgetRepoShim) GetBudget(ctx context.Context, id int64) (*domain.Budget, error) {
	return repo.GetBudget(ctx, s.db, id)
}

// CreateBudget proxies repo.CreateBudget.
func (s budgetRepoShim) CreateBudget(ctx context.Context, nb domain.NewBudget) (*domain.Budget, error) {
	return repo.CreateBudget(ctx, s.db, nb)
}

// UpdateBudget proxies repo.UpdateBudget.
func (s budgetRepoShim) UpdateBudget(ctx context.Context, id int64, p domain.BudgetPatch) (*domain.Budget, error) {
	return repo.UpdateBudget(ctx, s.db, id, p)
}

// DeleteBudget proxies repo.DeleteBudget.
func (s budgetRepoShim) DeleteBudget(ctx context.Context, id int64) error {
	return repo.DeleteBudget(ctx, s.db, id)
}

// idemShim adapts the idempotency free functions to services.IdempotencyRepo.
type idemShim struct{ db *gorm.DB }

func (s idemShim) GetIdempotency(ctx context.Context, key string, now time.Time) (*domain.Idempotency, error) {
	return repo.GetIdempotency(ctx, s.db, key, now)
}

func (s idemShim) CreateIdempotency(ctx context.Context, key string, budgetID int64, status int, body string, ttl time.Duration) (*domain.Idempotency, error) {
	return repo.CreateIdempotency(ctx, s.db, key, budgetID, status, body, ttl)
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. Logger: one access line per request, with redaction
//  4. Metrics: sees the final status, including mapped failures
//  5. gzip: wraps the writer before anything is written
//  6. ErrorHandler: the only writer of failure responses
//  7. Recovery: panics become errors for the funnel
//  8. CORS and security headers, so failures carry them too
//  9. Body size limit
//  10. Idempotency validator (before rate limiter to allow bypass on replay)
//  11. Rate limiter (per IP, bypass on replay)
func RegisterRoutes(r *gin.Engine, st Stores, cfg config.Config) {
	// Unmatched methods and near-miss paths are unmatched routes; gin must not
	// answer them with a bare 405 or redirect.
	r.HandleMethodNotAllowed = false
	r.RedirectTrailingSlash = false
	r.RedirectFixedPath = false

	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(middleware.LogOptions{
		MaskHeaders: []string{"X-API-Key"},
	}))
	r.Use(middleware.Metrics())
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics", pprofPath})))
	r.Use(middleware.ErrorHandler(middleware.ErrorOptions{Development: cfg.IsDevelopment()}))
	r.Use(middleware.Recovery())
	r.Use(corsMiddleware(cfg.CORS)...)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      false,
		EnablePolicy: true,
		HTMLPrefixes: []string{swaggerPath, pprofPath},
	}))
	r.Use(limitBody(maxBodyBytes))
	r.Use(middleware.IdempotencyValidator(
		middleware.IdempotencyOptions{MaxLen: 200},
		lookupIdempotency(st.Idem),
	))
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByClientIP())
	r.Use(rl.Handler())

	r.NoRoute(func(c *gin.Context) {
		handlers.Raise(c, apperr.NotFound("Route "+c.Request.RequestURI+" not found"))
	})

	svc := services.NewBudgetService(st.Budgets, st.Idem, cfg.IdempotencyTTL)
	h := handlers.New(svc)

	r.GET("/health", h.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if cfg.SwaggerEnabled {
		docs.SwaggerInfo.BasePath = cfg.APIBasePath
		r.GET(swaggerPath+"/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}
	if cfg.PprofEnabled {
		pprof.Register(r, pprofPath)
	}

	api := groupWithPrefix(r, cfg.APIBasePath)
	{
		api.GET("/budgets", h.ListBudgets)
		api.POST("/budgets", h.CreateBudget)

		// static segments win over :id
		api.GET("/budgets/error/database", h.SimulateDatabaseError)
		api.GET("/budgets/error/server", h.SimulateServerError)

		api.GET("/budgets/:id", h.GetBudget)
		api.PUT("/budgets/:id", h.UpdateBudget)
		api.DELETE("/budgets/:id", h.DeleteBudget)
	}
}

// lookupIdempotency reports whether a live record exists for a key.
func lookupIdempotency(idem services.IdempotencyRepo) middleware.IdempotencyLookup {
	if idem == nil {
		return nil
	}
	return func(ctx context.Context, key string, now time.Time) (bool, error) {
		_, err := idem.GetIdempotency(ctx, key, now)
		switch {
		case err == nil:
			return true, nil
		case errors.Is(err, repo.ErrNotFound):
			return false, nil
		default:
			return false, err
		}
	}
}

// corsMiddleware returns the CORS posture: allow all origins when none are
// configured, otherwise echo allowlisted origins.
func corsMiddleware(cfg config.CORSConfig) []gin.HandlerFunc {
	methods := []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	headers := []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.HeaderIdempotencyKey}
	expose := []string{"X-Request-ID", "Content-Length", middleware.HeaderIdempotentReplay}

	if len(cfg.AllowedOrigins) == 0 {
		return []gin.HandlerFunc{
			// Force ACAO: * even for requests without an Origin header.
			func(c *gin.Context) {
				c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
				c.Next()
			},
			cors.New(cors.Config{
				AllowAllOrigins:  true,
				AllowMethods:     methods,
				AllowHeaders:     headers,
				ExposeHeaders:    expose,
				AllowCredentials: false, // must remain false with AllowAllOrigins
				MaxAge:           12 * time.Hour,
			}),
		}
	}

	allowed := make(map[string]struct{}, len(cfg.AllowedOrigins))
	for _, o := range cfg.AllowedOrigins {
		allowed[o] = struct{}{}
	}
	return []gin.HandlerFunc{
		func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		},
		cors.New(cors.Config{
			AllowOrigins:     cfg.AllowedOrigins,
			AllowMethods:     methods,
			AllowHeaders:     headers,
			ExposeHeaders:    expose,
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}),
	}
}

// limitBody caps the request body at maxBytes. Reading past the cap fails
// with *http.MaxBytesError, which the funnel answers with 413.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
