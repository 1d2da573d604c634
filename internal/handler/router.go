package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yachaflex/pairing/internal/handler/relay"
	middlewarePkg "github.com/yachaflex/pairing/internal/middleware"
	relayService "github.com/yachaflex/pairing/internal/service/relay"
	"github.com/yachaflex/pairing/pkg/utils"
)

// NewRouter wires HTTP routes to the relay service. gatherer backs /metrics;
// nil uses the default prometheus gatherer.
func NewRouter(relaySvc *relayService.Service, gatherer prometheus.Gatherer) http.Handler {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Route("/api", func(api chi.Router) {
		relay.New(relaySvc).RegisterRoutes(api)
	})

	return r
}
