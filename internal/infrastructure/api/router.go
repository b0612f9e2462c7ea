package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"
)

// RouterOptions configures the public routes around the handlers
type RouterOptions struct {
	AllowedOrigins []string
	Gatherer       prometheus.Gatherer // Serves /metrics when set
	SwaggerFile    string              // Path to swagger.json; docs disabled when empty
	Health         func() map[string]interface{}
}

// NewRouter mounts every endpoint on a chi router
func NewRouter(h *Handlers, opts RouterOptions) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		body := map[string]interface{}{"status": "ok"}
		if opts.Health != nil {
			for k, v := range opts.Health() {
				body[k] = v
			}
		}
		writeJSON(w, http.StatusOK, body)
	})

	if opts.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}

	if opts.SwaggerFile != "" {
		r.Get("/swagger/doc.json", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			http.ServeFile(w, r, opts.SwaggerFile)
		})
		r.Get("/swagger/*", httpSwagger.Handler(
			httpSwagger.URL("/swagger/doc.json"),
		))
	}

	r.Route("/api", func(r chi.Router) {
		r.Post("/ingest", h.Ingest)
		r.Post("/webhooks", h.Webhook)

		r.Route("/insights", func(r chi.Router) {
			r.Get("/totals", h.Totals)
			r.Get("/top-customers", h.TopCustomers)
			r.Get("/orders-by-date", h.OrdersByDate)
			r.Get("/revenue-by-category", h.RevenueByCategory)
			r.Get("/funnel", h.Funnel)
		})
	})

	return r
}
