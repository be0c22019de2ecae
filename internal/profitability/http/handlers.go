package profitabilityhttp

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/explotacion/internal/budget"
	"github.com/odyssey-erp/explotacion/internal/cpr"
	"github.com/odyssey-erp/explotacion/internal/platform/httpx"
	"github.com/odyssey-erp/explotacion/internal/profitability"
	"github.com/odyssey-erp/explotacion/internal/profitability/export"
	"github.com/odyssey-erp/explotacion/internal/shared"
	"github.com/odyssey-erp/explotacion/internal/snapshots"
)

const requestTimeout = 20 * time.Second

// ReportService defines the profitability contract used by the handler.
type ReportService interface {
	Report(ctx context.Context, q profitability.Query) (profitability.Result, error)
	Evaluate(ctx context.Context, orderID string) (profitability.ServiceOrder, profitability.OrderResult, error)
	Adjustments(ctx context.Context, orderID string) ([]profitability.Adjustment, error)
	AddAdjustment(ctx context.Context, orderID, concept string, amount float64) (profitability.Adjustment, error)
	BillingAdjustments(ctx context.Context, orderID string) ([]profitability.BillingAdjustment, error)
	AddBillingAdjustment(ctx context.Context, orderID, concept string, amount float64) (profitability.BillingAdjustment, error)
}

// BudgetService manages templates and per-order statements.
type BudgetService interface {
	ListTemplates(ctx context.Context) ([]budget.Template, error)
	CreateTemplate(ctx context.Context, input budget.TemplateInput) (budget.Template, bool, error)
	UpdateTemplate(ctx context.Context, id string, input budget.TemplateInput) (budget.Template, bool, error)
	AssignTemplate(ctx context.Context, orderID, templateID string) error
	OrderStatement(ctx context.Context, orderID string) (budget.Statement, error)
	SetActualCosts(ctx context.Context, orderID string, costs profitability.CategoryAmounts) (budget.Statement, error)
	OrderVariance(ctx context.Context, orderID string) ([]budget.Row, error)
}

// CPRService serves the production centre account.
type CPRService interface {
	Statement(ctx context.Context, r profitability.DateRange) (cpr.StatementView, error)
	Year(ctx context.Context, year int) ([]cpr.MonthRow, error)
	FixedCosts(ctx context.Context) ([]cpr.FixedCost, error)
	ReplaceFixedCosts(ctx context.Context, costs []cpr.FixedCost) ([]cpr.FixedCost, error)
	SetTarget(ctx context.Context, month string, target cpr.MonthlyTarget) (cpr.MonthlyTarget, error)
}

// SnapshotService triggers and reads month snapshots.
type SnapshotService interface {
	Trigger(ctx context.Context, req snapshots.Request) (snapshots.Snapshot, error)
	List(ctx context.Context, filters snapshots.ListFilters) ([]snapshots.Snapshot, shared.Pagination, error)
	Get(ctx context.Context, id string) (snapshots.Snapshot, error)
}

// StatementPrinter renders a statement to PDF bytes.
type StatementPrinter interface {
	PDF(ctx context.Context, st budget.Statement) ([]byte, error)
}

// IdempotencyGuard claims Idempotency-Key headers of write requests.
type IdempotencyGuard interface {
	Claim(ctx context.Context, scope, key string) error
	Release(ctx context.Context, scope, key string) error
}

// Deps bundles the handler collaborators. PDF and Idempotency may be nil.
type Deps struct {
	Reports     ReportService
	Budget      BudgetService
	CPR         CPRService
	Snapshots   SnapshotService
	PDF         StatementPrinter
	Idempotency IdempotencyGuard
	Location    *time.Location
	Logger      *slog.Logger
}

// Handler serves the profitability JSON API.
type Handler struct {
	logger    *slog.Logger
	reports   ReportService
	budget    BudgetService
	cpr       CPRService
	snapshots SnapshotService
	pdf       StatementPrinter
	idem      IdempotencyGuard
	loc       *time.Location
	validate  *validator.Validate
	bufPool   sync.Pool
	now       func() time.Time
}

// NewHandler constructs the handler.
func NewHandler(deps Deps) *Handler {
	h := &Handler{
		logger:    deps.Logger,
		reports:   deps.Reports,
		budget:    deps.Budget,
		cpr:       deps.CPR,
		snapshots: deps.Snapshots,
		pdf:       deps.PDF,
		idem:      deps.Idempotency,
		loc:       deps.Location,
		validate:  validator.New(),
		now:       time.Now,
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	if h.loc == nil {
		h.loc = time.UTC
	}
	h.bufPool.New = func() any { return new(bytes.Buffer) }
	return h
}

// WithNow overrides the handler clock for testing.
func (h *Handler) WithNow(fn func() time.Time) {
	if fn != nil {
		h.now = fn
	}
}

func (h *Handler) handleReport(w http.ResponseWriter, r *http.Request) {
	q, err := h.parseQuery(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	res, err := h.reports.Report(ctx, q)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, res)
}

func (h *Handler) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	res, q, ok := h.exportResult(w, r)
	if !ok {
		return
	}
	buf := h.bufPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer h.bufPool.Put(buf)

	var err error
	if q.GroupBy != "" {
		err = export.WriteGroupsCSV(buf, res.Groups)
	} else {
		err = export.WriteReportCSV(buf, res)
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s.csv", exportName(q)))
	_, _ = w.Write(buf.Bytes())
}

func (h *Handler) handleExportXLSX(w http.ResponseWriter, r *http.Request) {
	res, q, ok := h.exportResult(w, r)
	if !ok {
		return
	}
	buf := h.bufPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer h.bufPool.Put(buf)

	if err := export.WriteReportXLSX(buf, res, exportTitle(q)); err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s.xlsx", exportName(q)))
	_, _ = w.Write(buf.Bytes())
}

func (h *Handler) exportResult(w http.ResponseWriter, r *http.Request) (profitability.Result, profitability.Query, bool) {
	q, err := h.parseQuery(r)
	if err != nil {
		h.fail(w, r, err)
		return profitability.Result{}, q, false
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	res, err := h.reports.Report(ctx, q)
	if err != nil {
		h.fail(w, r, err)
		return profitability.Result{}, q, false
	}
	return res, q, true
}

func (h *Handler) handleOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := h.orderID(w, r)
	if !ok {
		return
	}
	order, row, err := h.reports.Evaluate(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"order": order, "result": row})
}

func (h *Handler) handleStatement(w http.ResponseWriter, r *http.Request) {
	id, ok := h.orderID(w, r)
	if !ok {
		return
	}
	st, err := h.budget.OrderStatement(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, st)
}

func (h *Handler) handleStatementPDF(w http.ResponseWriter, r *http.Request) {
	id, ok := h.orderID(w, r)
	if !ok {
		return
	}
	if h.pdf == nil {
		httpx.Problem(w, http.StatusServiceUnavailable, "PDF Unavailable", "pdf rendering is not configured")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	st, err := h.budget.OrderStatement(ctx, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	pdf, err := h.pdf.PDF(ctx, st)
	if err != nil {
		h.logger.Error("render statement pdf", slog.String("order_id", id), slog.Any("error", err))
		h.fail(w, r, httpx.Classify(httpx.ErrUpstream, err))
		return
	}
	name := st.Number
	if name == "" {
		name = st.OrderID
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=cuenta-%s.pdf", name))
	_, _ = w.Write(pdf)
}

type actualCostsRequest struct {
	Costs map[string]float64 `json:"costs" validate:"required,dive,gte=0"`
}

func (h *Handler) handleSetActualCosts(w http.ResponseWriter, r *http.Request) {
	id, ok := h.orderID(w, r)
	if !ok {
		return
	}
	var req actualCostsRequest
	if !h.decode(w, r, &req) {
		return
	}
	costs := make(profitability.CategoryAmounts, len(req.Costs))
	for k, v := range req.Costs {
		costs[profitability.Category(strings.ToLower(strings.TrimSpace(k)))] = v
	}
	st, err := h.budget.SetActualCosts(r.Context(), id, costs)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, st)
}

func (h *Handler) handleVariance(w http.ResponseWriter, r *http.Request) {
	id, ok := h.orderID(w, r)
	if !ok {
		return
	}
	rows, err := h.budget.OrderVariance(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, rows)
}

type assignTemplateRequest struct {
	TemplateID string `json:"template_id" validate:"required,uuid"`
}

func (h *Handler) handleAssignTemplate(w http.ResponseWriter, r *http.Request) {
	id, ok := h.orderID(w, r)
	if !ok {
		return
	}
	var req assignTemplateRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.budget.AssignTemplate(r.Context(), id, req.TemplateID); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleListAdjustments(w http.ResponseWriter, r *http.Request) {
	id, ok := h.orderID(w, r)
	if !ok {
		return
	}
	items, err := h.reports.Adjustments(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if items == nil {
		items = []profitability.Adjustment{}
	}
	httpx.JSON(w, http.StatusOK, items)
}

type adjustmentRequest struct {
	Concept string  `json:"concept" validate:"required,max=200"`
	Amount  float64 `json:"amount" validate:"required"`
}

func (h *Handler) handleAddAdjustment(w http.ResponseWriter, r *http.Request) {
	id, ok := h.orderID(w, r)
	if !ok {
		return
	}
	var req adjustmentRequest
	if !h.decode(w, r, &req) {
		return
	}
	release, ok := h.claim(w, r, "adjustments:"+id)
	if !ok {
		return
	}
	adj, err := h.reports.AddAdjustment(r.Context(), id, req.Concept, req.Amount)
	if err != nil {
		release()
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, adj)
}

func (h *Handler) handleListBillingAdjustments(w http.ResponseWriter, r *http.Request) {
	id, ok := h.orderID(w, r)
	if !ok {
		return
	}
	items, err := h.reports.BillingAdjustments(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if items == nil {
		items = []profitability.BillingAdjustment{}
	}
	httpx.JSON(w, http.StatusOK, items)
}

func (h *Handler) handleAddBillingAdjustment(w http.ResponseWriter, r *http.Request) {
	id, ok := h.orderID(w, r)
	if !ok {
		return
	}
	var req adjustmentRequest
	if !h.decode(w, r, &req) {
		return
	}
	release, ok := h.claim(w, r, "billing-adjustments:"+id)
	if !ok {
		return
	}
	adj, err := h.reports.AddBillingAdjustment(r.Context(), id, req.Concept, req.Amount)
	if err != nil {
		release()
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, adj)
}

type templateResponse struct {
	budget.Template
	Balanced bool   `json:"balanced"`
	Warning  string `json:"warning,omitempty"`
}

func newTemplateResponse(tmpl budget.Template, unbalanced bool) templateResponse {
	resp := templateResponse{Template: tmpl, Balanced: !unbalanced}
	if unbalanced {
		resp.Warning = fmt.Sprintf("target percentages add up to %.2f%%, not 100%%", tmpl.Sum())
	}
	return resp
}

func (h *Handler) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	items, err := h.budget.ListTemplates(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out := make([]templateResponse, 0, len(items))
	for _, tmpl := range items {
		out = append(out, newTemplateResponse(tmpl, !tmpl.Balanced()))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) handleCreateTemplate(w http.ResponseWriter, r *http.Request) {
	var input budget.TemplateInput
	if !h.decode(w, r, &input) {
		return
	}
	tmpl, unbalanced, err := h.budget.CreateTemplate(r.Context(), input)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, newTemplateResponse(tmpl, unbalanced))
}

func (h *Handler) handleUpdateTemplate(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathUUID(w, r, "id")
	if !ok {
		return
	}
	var input budget.TemplateInput
	if !h.decode(w, r, &input) {
		return
	}
	tmpl, unbalanced, err := h.budget.UpdateTemplate(r.Context(), id, input)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, newTemplateResponse(tmpl, unbalanced))
}

func (h *Handler) handleCPRStatement(w http.ResponseWriter, r *http.Request) {
	rng, err := h.parseRange(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	view, err := h.cpr.Statement(r.Context(), rng)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, view)
}

func (h *Handler) handleCPRYear(w http.ResponseWriter, r *http.Request) {
	year := h.now().In(h.loc).Year()
	if raw := r.URL.Query().Get("year"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 2000 || parsed > 2100 {
			httpx.ValidationProblem(w, map[string]string{"year": "must be a four digit year"})
			return
		}
		year = parsed
	}
	rows, err := h.cpr.Year(r.Context(), year)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"year": year, "months": rows})
}

func (h *Handler) handleListFixedCosts(w http.ResponseWriter, r *http.Request) {
	items, err := h.cpr.FixedCosts(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if items == nil {
		items = []cpr.FixedCost{}
	}
	httpx.JSON(w, http.StatusOK, items)
}

type fixedCostsRequest struct {
	Items []cpr.FixedCost `json:"items" validate:"dive"`
}

func (h *Handler) handleReplaceFixedCosts(w http.ResponseWriter, r *http.Request) {
	var req fixedCostsRequest
	if !h.decode(w, r, &req) {
		return
	}
	items, err := h.cpr.ReplaceFixedCosts(r.Context(), req.Items)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, items)
}

func (h *Handler) handleSetTarget(w http.ResponseWriter, r *http.Request) {
	month := chi.URLParam(r, "month")
	var target cpr.MonthlyTarget
	if !h.decode(w, r, &target) {
		return
	}
	saved, err := h.cpr.SetTarget(r.Context(), month, target)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, saved)
}

func (h *Handler) handleListSnapshots(w http.ResponseWriter, r *http.Request) {
	filters := snapshots.ListFilters{
		Page:  atoiDefault(r.URL.Query().Get("page"), 1),
		Limit: atoiDefault(r.URL.Query().Get("limit"), 20),
	}
	items, page, err := h.snapshots.List(r.Context(), filters)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if items == nil {
		items = []snapshots.Snapshot{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": items, "pagination": page})
}

func (h *Handler) handleTriggerSnapshot(w http.ResponseWriter, r *http.Request) {
	var req snapshots.Request
	if !h.decode(w, r, &req) {
		return
	}
	release, ok := h.claim(w, r, "snapshots")
	if !ok {
		return
	}
	snap, err := h.snapshots.Trigger(r.Context(), req)
	if err != nil && snap.ID == "" {
		release()
		h.fail(w, r, err)
		return
	}
	if err != nil {
		// stored but not queued, it stays PENDING
		h.logger.Warn("snapshot stored without enqueue", slog.String("snapshot_id", snap.ID), slog.Any("error", err))
	}
	httpx.JSON(w, http.StatusAccepted, snap)
}

func (h *Handler) handleGetSnapshot(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathUUID(w, r, "id")
	if !ok {
		return
	}
	snap, err := h.snapshots.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, snap)
}
