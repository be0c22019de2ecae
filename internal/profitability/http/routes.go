package profitabilityhttp

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/odyssey-erp/explotacion/internal/platform/httpx"
)

// ExportLimit caps export and PDF requests per client and minute.
const ExportLimit = 10

// MountRoutes registers the profitability API onto the router.
func (h *Handler) MountRoutes(r chi.Router) {
	if h == nil {
		return
	}
	limiter := httprate.Limit(ExportLimit, time.Minute,
		httprate.WithKeyFuncs(rateLimitKey),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			httpx.Problem(w, http.StatusTooManyRequests, "Too Many Requests", "export limit reached, retry later")
		}),
	)

	r.Route("/api", func(r chi.Router) {
		r.Get("/profitability", h.handleReport)
		r.Group(func(gr chi.Router) {
			gr.Use(limiter)
			gr.Get("/profitability/export.csv", h.handleExportCSV)
			gr.Get("/profitability/export.xlsx", h.handleExportXLSX)
		})

		r.Route("/service-orders/{id}", func(r chi.Router) {
			r.Get("/", h.handleOrder)
			r.Get("/statement", h.handleStatement)
			r.With(limiter).Get("/statement.pdf", h.handleStatementPDF)
			r.Get("/variance", h.handleVariance)
			r.Put("/template", h.handleAssignTemplate)
			r.Put("/actual-costs", h.handleSetActualCosts)
			r.Get("/adjustments", h.handleListAdjustments)
			r.Post("/adjustments", h.handleAddAdjustment)
			r.Get("/billing-adjustments", h.handleListBillingAdjustments)
			r.Post("/billing-adjustments", h.handleAddBillingAdjustment)
		})

		r.Get("/budget-templates", h.handleListTemplates)
		r.Post("/budget-templates", h.handleCreateTemplate)
		r.Put("/budget-templates/{id}", h.handleUpdateTemplate)

		r.Route("/cpr", func(r chi.Router) {
			r.Get("/statement", h.handleCPRStatement)
			r.Get("/year", h.handleCPRYear)
			r.Get("/fixed-costs", h.handleListFixedCosts)
			r.Put("/fixed-costs", h.handleReplaceFixedCosts)
			r.Put("/targets/{month}", h.handleSetTarget)
		})

		r.Get("/snapshots", h.handleListSnapshots)
		r.Post("/snapshots", h.handleTriggerSnapshot)
		r.Get("/snapshots/{id}", h.handleGetSnapshot)
	})
}

func rateLimitKey(r *http.Request) (string, error) {
	key, err := httprate.KeyByIP(r)
	if err != nil {
		return "", err
	}
	return "ip:" + key, nil
}
