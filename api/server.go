/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. RealIP:     Client address behind proxies (rate limit key)
  3. Logger:     slog request logging
  4. Recoverer:  Panic recovery (500 instead of crash)
  5. Secure:     Security headers, SSL redirect in production
  6. CORS:       Cross-origin requests for the frontend
  7. Rate limit: Requests per minute per IP
  8. Metrics:    Request count and latency per route

ROUTE GROUPS:
  /healthz              Liveness (no identity)
  /metrics              Prometheus scrape (no identity)
  /api/*                Everything else, behind the Identity middleware

SEE ALSO:
  - handlers.go: Handler implementations
  - identity.go: Actor extraction
  - cmd/server/main.go: Server startup
*/
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/unrolled/secure"

	"github.com/warp/benefit-engine/observability"
)

// RouterOptions configures the middleware stack.
type RouterOptions struct {
	Logger             *slog.Logger
	Metrics            *observability.Metrics
	CORSOrigins        []string
	RateLimitPerMinute int
	Production         bool
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if len(opts.CORSOrigins) == 0 {
		opts.CORSOrigins = []string{"*"}
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(opts.Logger))
	r.Use(middleware.Recoverer)
	r.Use(secure.New(secure.Options{
		FrameDeny:          true,
		ContentTypeNosniff: true,
		BrowserXssFilter:   true,
		ReferrerPolicy:     "strict-origin-when-cross-origin",
		SSLRedirect:        opts.Production,
		SSLProxyHeaders:    map[string]string{"X-Forwarded-Proto": "https"},
		IsDevelopment:      !opts.Production,
	}).Handler)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", HeaderActorID, HeaderActorRoles},
		MaxAge:         300,
	}))
	if opts.RateLimitPerMinute > 0 {
		r.Use(httprate.Limit(opts.RateLimitPerMinute, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP)))
	}
	r.Use(opts.Metrics.Middleware)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", opts.Metrics.Handler())

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Use(Identity)

		// Claim routes
		r.Route("/claims", func(r chi.Router) {
			r.Get("/", h.ListClaims)
			r.Post("/", h.SubmitClaim)
			r.Post("/approve", h.ApproveClaims)
			r.Post("/reject", h.RejectClaims)
			r.Get("/{id}", h.GetClaim)
			r.Patch("/{id}", h.EditClaim)
			r.Post("/{id}/review", h.StartReview)
			r.Post("/{id}/approve", h.ApproveClaim)
			r.Post("/{id}/reject", h.RejectClaim)
			r.Get("/{id}/audit", h.ClaimAudit)
		})

		// Employee routes
		r.Route("/employees", func(r chi.Router) {
			r.Get("/", h.ListEmployees)
			r.Post("/", h.SaveEmployee)
			r.Get("/{id}", h.GetEmployee)
			r.Get("/{id}/periods/{pid}/ledger", h.GetLedger)
			r.Get("/{id}/periods/{pid}/eligibility", h.GetEligibility)
		})

		// Period routes
		r.Route("/periods", func(r chi.Router) {
			r.Get("/", h.ListPeriods)
			r.Post("/", h.SavePeriod)
			r.Get("/{pid}", h.GetPeriod)
			r.Post("/{pid}/close", h.ClosePeriod)
			r.Get("/{pid}/taxable-conversion", h.TaxableConversion)
		})

		// Expense type routes
		r.Route("/expense-types", func(r chi.Router) {
			r.Get("/", h.ListExpenseTypes)
			r.Post("/", h.SaveExpenseType)
			r.Get("/{id}", h.GetExpenseType)
		})
	})

	return r
}

// requestLogger logs one line per request with the chi request id.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Info("http request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.Status()),
				slog.Int("bytes", ww.BytesWritten()),
				slog.Duration("duration", time.Since(start)),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}
