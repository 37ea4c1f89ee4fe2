package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/viralforge/mesh/services/marketing/campaign-service/internal/application"
	"github.com/viralforge/mesh/services/marketing/campaign-service/internal/telemetry"
	"golang.org/x/time/rate"
)

// ReadinessProbe reports the names of unreachable dependencies.
type ReadinessProbe interface {
	Probe(ctx context.Context) []string
}

type Options struct {
	Readiness ReadinessProbe
	// ConvertRate caps html-to-markdown calls per second for the process.
	ConvertRate  float64
	ConvertBurst int
}

// Handler is the REST adapter over the campaign service.
type Handler struct {
	service   *application.Service
	readiness ReadinessProbe
	limiter   *rate.Limiter
}

func NewHandler(service *application.Service, opts Options) *Handler {
	limit := rate.Inf
	if opts.ConvertRate > 0 {
		limit = rate.Limit(opts.ConvertRate)
	}
	burst := opts.ConvertBurst
	if burst <= 0 {
		burst = 1
	}
	return &Handler{
		service:   service,
		readiness: opts.Readiness,
		limiter:   rate.NewLimiter(limit, burst),
	}
}

// NewRouter registers the REST routes. Requests outside /api, /swagger and
// the probes fall through to ui when it is set.
func NewRouter(handler *Handler, ui http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(telemetry.Middleware)
	r.Use(requestIDMiddleware)
	r.Use(recoverMiddleware)
	r.Use(loggingMiddleware)

	r.Get("/healthz", handler.healthz)
	r.Get("/readyz", handler.readyz)
	r.Get("/swagger", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/swagger/", http.StatusMovedPermanently)
	})
	r.Get("/swagger/", handler.swaggerUI)
	r.Get("/swagger/openapi.yaml", handler.swaggerSpec)

	r.Route("/api", func(r chi.Router) {
		r.Use(handler.authMiddleware)
		r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
			writeError(w, http.StatusNotFound, "Not found")
		})

		r.Get("/campaigns", handler.listCampaigns)
		r.Post("/campaigns", handler.createCampaign)
		r.Get("/campaigns/stats", handler.campaignStats)
		r.Get("/campaigns/{id}", handler.getCampaign)
		r.Put("/campaigns/{id}", handler.updateCampaign)
		r.Delete("/campaigns/{id}", handler.deleteCampaign)
		r.Patch("/campaigns/{id}/status", handler.updateCampaignStatus)

		r.Post("/1/html-to-markdown", handler.htmlToMarkdown)
		r.Get("/1/documents", handler.listDocuments)
	})

	if ui != nil {
		r.Mount("/", ui)
	} else {
		r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
			writeError(w, http.StatusNotFound, "Not found")
		})
	}
	return r
}
