package server

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"scentledger/internal/handlers"
	applog "scentledger/internal/log"
)

type route struct {
	pattern string
	handler http.HandlerFunc
}

var apiRoutes = []route{
	{"GET /api/materials", handlers.ListMaterials},
	{"POST /api/materials", handlers.CreateMaterial},
	{"PUT /api/materials/{id}", handlers.UpdateMaterial},
	{"DELETE /api/materials/{id}", handlers.DeleteMaterial},
	{"POST /api/materials/{id}/instances", handlers.AddInstance},

	{"GET /api/inventory", handlers.ListInventory},
	{"GET /api/inventory/{id}", handlers.ShowInventory},
	{"DELETE /api/inventory/{id}", handlers.DeleteInstance},
	{"POST /api/dilutions", handlers.CreateDilution},
	{"DELETE /api/dilutions/{id}", handlers.UndoDilution},
	{"GET /api/history/{target}", handlers.ListHistory},

	{"GET /api/formulas", handlers.ListFormulas},
	{"POST /api/formulas", handlers.CreateFormula},
	{"GET /api/formulas/{id}", handlers.ShowFormula},
	{"DELETE /api/formulas/{id}", handlers.DeleteFormula},
	{"POST /api/formulas/{id}/undo", handlers.UndoFormula},
	{"POST /api/formulas/{id}/promote", handlers.PromoteFormula},
	{"POST /api/formulas/{id}/notes", handlers.AddFormulaNote},
	{"PUT /api/formulas/{id}/notes/{note}", handlers.EditFormulaNote},
	{"DELETE /api/formulas/{id}/notes/{note}", handlers.DeleteFormulaNote},

	{"GET /api/trials", handlers.ListTrials},
	{"POST /api/trials", handlers.CreateTrial},
	{"GET /api/trials/{id}", handlers.ShowTrial},
	{"DELETE /api/trials/{id}", handlers.DeleteTrial},
	{"POST /api/trials/{id}/notes", handlers.AddTrialNote},
	{"PUT /api/trials/{id}/notes/{note}", handlers.EditTrialNote},
	{"DELETE /api/trials/{id}/notes/{note}", handlers.DeleteTrialNote},

	{"GET /api/events", handlers.Events},
	{"GET /api/reports/inventory.xlsx", handlers.InventoryReport},
}

func newRouter(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	applog.Debug(context.Background(), "registering http routes")
	mux.HandleFunc("/healthz", handlers.Health)
	applog.Debug(context.Background(), "route registered", "path", "/healthz")
	mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	applog.Debug(context.Background(), "route registered", "path", "/metrics")
	for _, r := range apiRoutes {
		mux.HandleFunc(r.pattern, r.handler)
	}
	applog.Debug(context.Background(), "api routes registered", "count", len(apiRoutes))
	return mux
}
