package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/LastCoderBoy/SIMS-Microservice-sub001/internal/inventory"
	"github.com/LastCoderBoy/SIMS-Microservice-sub001/internal/masterdata/products"
	"github.com/LastCoderBoy/SIMS-Microservice-sub001/internal/masterdata/suppliers"
	"github.com/LastCoderBoy/SIMS-Microservice-sub001/internal/movements"
	"github.com/LastCoderBoy/SIMS-Microservice-sub001/internal/observability"
	"github.com/LastCoderBoy/SIMS-Microservice-sub001/internal/orderquery"
	"github.com/LastCoderBoy/SIMS-Microservice-sub001/internal/procurement"
	"github.com/LastCoderBoy/SIMS-Microservice-sub001/internal/sales"
	"github.com/LastCoderBoy/SIMS-Microservice-sub001/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger             *slog.Logger
	Config             *Config
	InventoryHandler   *inventory.Handler
	MovementsHandler   *movements.Handler
	ProductsHandler    *products.Handler
	SuppliersHandler   *suppliers.Handler
	ProcurementHandler *procurement.Handler
	SalesHandler       *sales.Handler
	QueryHandler       *orderquery.Handler
	JobHandler         *jobs.Handler
	Metrics            *observability.Metrics
}

// NewRouter constructs the chi.Router with SIMS defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if params.Metrics != nil {
		r.Get("/metrics", params.Metrics.Handler().ServeHTTP)
	}

	r.Route("/api", func(api chi.Router) {
		params.InventoryHandler.MountRoutes(api)
		params.MovementsHandler.MountRoutes(api)
		params.ProductsHandler.MountRoutes(api)
		params.SuppliersHandler.MountRoutes(api)
		params.ProcurementHandler.MountRoutes(api)
		params.SalesHandler.MountRoutes(api)
		params.QueryHandler.MountRoutes(api)
		if params.JobHandler != nil {
			api.Route("/jobs", params.JobHandler.MountRoutes)
		}
	})

	return r
}
