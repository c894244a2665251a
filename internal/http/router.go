// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, fault translation, metrics,
// compression, CORS, security headers, idempotency, and rate limiting.
//
// Two route trees with separate fault handling are mounted:
//
//	{apiBase}/...   JSON API, failures rendered by faults.API as envelopes
//	/, /test/...    HTML pages, failures rendered by faults.View as error pages
//
// Everything outside both trees (unknown routes, wrong methods, oversized
// bodies, panics) is handled by the pre-routing stage, which picks JSON or
// HTML from the Accept header.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/tbourn/go-documind-backend/docs"
	"github.com/tbourn/go-documind-backend/internal/config"
	"github.com/tbourn/go-documind-backend/internal/http/bind"
	"github.com/tbourn/go-documind-backend/internal/http/faults"
	"github.com/tbourn/go-documind-backend/internal/http/handlers"
	"github.com/tbourn/go-documind-backend/internal/http/middleware"
	"github.com/tbourn/go-documind-backend/internal/http/views"
	"github.com/tbourn/go-documind-backend/internal/observability"
	"github.com/tbourn/go-documind-backend/internal/repo"
)

// DemoPath is where the fault demonstration endpoints live, below apiBase for
// the JSON twin and at the root for the page twin.
const DemoPath = "/test/exception"

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything, then copy span ids into diag
//  2. RequestID, Identity: correlation id and caller
//  3. Logger: structured logs with PII scrubbing, seeds the diag context
//  4. Recovery: panics after logger, so the 500 is logged with request fields
//  5. Body size limiter (413 before the handler reads anything)
//  6. Metrics
//  7. gzip, CORS and security headers
//
// On the API group: fault handler, no-store, then idempotency validation,
// then the rate limiter (so replays bypass it).
func RegisterRoutes(r *gin.Engine, db *gorm.DB, svc handlers.DocumentService, cfg config.Config) {
	r.HandleMethodNotAllowed = true
	views.Install(r)
	bind.Setup()

	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))
	r.Use(observability.TraceContext())

	r.Use(middleware.RequestID())
	r.Use(middleware.Identity())
	r.Use(middleware.Logger(middleware.LogOptions{
		MaskHeaders: []string{"X-API-Key"},
	}))

	r.Use(faults.Recovery())
	r.Use(faults.LimitBody(cfg.MaxUploadBytes))

	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Downloads stream with their own Content-Length; leave them uncompressed.
	r.Use(gzip.Gzip(gzip.DefaultCompression,
		gzip.WithExcludedPaths([]string{"/metrics"}),
		gzip.WithExcludedPathsRegexs([]string{`/content$`}),
	))

	useCORS(r, cfg.CORS)

	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:            cfg.Security.EnableHSTS,
		HSTSMaxAge:            cfg.Security.HSTSMaxAge,
		EnablePolicy:          true,
		ContentSecurityPolicy: middleware.PageCSP,
	}))

	r.NoRoute(faults.NoRoute())
	r.NoMethod(faults.NoMethod())

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	if cfg.SwaggerEnabled {
		docs.SwaggerInfo.BasePath = cfg.APIBasePath
		r.GET("/swagger/*any", swaggerCSP, ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	h := handlers.New(svc, cfg.APIBasePath)

	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP())
	api := r.Group(cfg.APIBasePath,
		faults.API(),
		middleware.NoStore(),
		middleware.IdempotencyValidator(middleware.IdempotencyOptions{MaxLen: 200}, idempotencyLookup(db)),
		rl.Handler(),
	)
	{
		d := api.Group("/documents", middleware.RequireUser())
		d.POST("", h.UploadDocument)
		d.GET("", h.ListDocuments)
		d.GET("/:id", h.GetDocument)
		d.GET("/:id/content", h.DownloadDocument)
		d.DELETE("/:id", h.DeleteDocument)

		h.RegisterFaultDemoAPI(api.Group(DemoPath))
	}

	pages := r.Group("", faults.View())
	{
		pages.GET("/", h.Home)
		h.RegisterFaultDemoView(pages.Group(DemoPath))
	}
}

// swaggerCSP loosens PageCSP for the Swagger UI, which boots from inline
// scripts and data: images.
func swaggerCSP(c *gin.Context) {
	c.Header("Content-Security-Policy", "default-src 'self'; script-src 'self' 'unsafe-inline'; style-src 'self' 'unsafe-inline'; img-src 'self' data:")
	c.Next()
}

// idempotencyLookup resolves (user, key) to the document it produced. A
// missing or expired record is a miss, not an error.
func idempotencyLookup(db *gorm.DB) middleware.IdempotencyLookup {
	return func(ctx context.Context, userID, key string, now time.Time) (string, bool, error) {
		rec, err := repo.GetIdempotency(ctx, db, userID, key, now)
		switch {
		case repo.IsNotFound(err):
			return "", false, nil
		case err != nil:
			return "", false, err
		}
		return rec.DocumentID, true, nil
	}
}

// useCORS applies gin-contrib/cors. With no allowlist every origin is
// allowed (ACAO "*" even without an Origin header); otherwise allowed
// origins are echoed with Vary: Origin.
func useCORS(r *gin.Engine, opts config.CORSConfig) {
	base := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.UserIDHeader, middleware.HeaderIdempotencyKey},
		ExposeHeaders:    []string{middleware.RequestIDHeader, "Content-Length", "Location", handlers.HeaderReplay},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}

	if len(opts.AllowedOrigins) == 0 {
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		base.AllowAllOrigins = true
		r.Use(cors.New(base))
		return
	}

	allowed := make(map[string]struct{}, len(opts.AllowedOrigins))
	for _, o := range opts.AllowedOrigins {
		allowed[o] = struct{}{}
	}
	r.Use(func(c *gin.Context) {
		if origin := c.GetHeader("Origin"); origin != "" {
			if _, ok := allowed[origin]; ok {
				h := c.Writer.Header()
				h.Set("Access-Control-Allow-Origin", origin)
				h.Add("Vary", "Origin")
			}
		}
		c.Next()
	})
	base.AllowOrigins = opts.AllowedOrigins
	r.Use(cors.New(base))
}
