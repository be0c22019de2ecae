package profitabilityhttp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/odyssey-erp/explotacion/internal/budget"
	"github.com/odyssey-erp/explotacion/internal/cpr"
	"github.com/odyssey-erp/explotacion/internal/platform/httpx"
	"github.com/odyssey-erp/explotacion/internal/profitability"
	"github.com/odyssey-erp/explotacion/internal/shared"
	"github.com/odyssey-erp/explotacion/internal/snapshots"
	"github.com/odyssey-erp/explotacion/report"
)

const (
	dateLayout        = "2006-01-02"
	idempotencyHeader = "Idempotency-Key"
)

var errBadParam = errors.New("invalid query parameter")

// parseRange reads month=YYYY-MM or from/to=YYYY-MM-DD. Without either the
// current month is used.
func (h *Handler) parseRange(r *http.Request) (profitability.DateRange, error) {
	query := r.URL.Query()
	if month := strings.TrimSpace(query.Get("month")); month != "" {
		rng, err := profitability.ParseMonth(month, h.loc)
		if err != nil {
			return profitability.DateRange{}, fmt.Errorf("%w: month", errBadParam)
		}
		return rng, nil
	}
	rawFrom, rawTo := strings.TrimSpace(query.Get("from")), strings.TrimSpace(query.Get("to"))
	if rawFrom == "" && rawTo == "" {
		return profitability.MonthRange(h.now().In(h.loc)), nil
	}
	from, err := time.ParseInLocation(dateLayout, rawFrom, h.loc)
	if err != nil {
		return profitability.DateRange{}, fmt.Errorf("%w: from", errBadParam)
	}
	to := from
	if rawTo != "" {
		if to, err = time.ParseInLocation(dateLayout, rawTo, h.loc); err != nil {
			return profitability.DateRange{}, fmt.Errorf("%w: to", errBadParam)
		}
	}
	return profitability.NewDateRange(from, to)
}

func (h *Handler) parseQuery(r *http.Request) (profitability.Query, error) {
	rng, err := h.parseRange(r)
	if err != nil {
		return profitability.Query{}, err
	}
	query := r.URL.Query()
	q := profitability.Query{
		Filter: profitability.Filter{
			Range:       rng,
			Space:       strings.TrimSpace(query.Get("space")),
			Salesperson: strings.TrimSpace(query.Get("salesperson")),
			Client:      strings.TrimSpace(query.Get("client")),
		},
		GroupBy: strings.ToLower(strings.TrimSpace(query.Get("group"))),
	}
	if v := strings.ToUpper(strings.TrimSpace(query.Get("vertical"))); v != "" {
		switch profitability.Vertical(v) {
		case profitability.VerticalCatering, profitability.VerticalDeliveries:
			q.Filter.Vertical = profitability.Vertical(v)
		default:
			return profitability.Query{}, fmt.Errorf("%w: vertical", errBadParam)
		}
	}
	if t := strings.ToUpper(strings.TrimSpace(query.Get("tariff"))); t != "" {
		switch profitability.Tariff(t) {
		case profitability.TariffStandard, profitability.TariffIFEMA:
			q.Filter.Tariff = profitability.Tariff(t)
		default:
			return profitability.Query{}, fmt.Errorf("%w: tariff", errBadParam)
		}
	}
	if s := strings.ToUpper(strings.TrimSpace(query.Get("status"))); s != "" {
		switch profitability.Status(s) {
		case profitability.StatusDraft, profitability.StatusPending, profitability.StatusConfirmed,
			profitability.StatusExecuted, profitability.StatusCancelled:
			q.Filter.Status = profitability.Status(s)
		default:
			return profitability.Query{}, fmt.Errorf("%w: status", errBadParam)
		}
	}
	if raw := query.Get("rank"); raw != "" {
		rank, err := strconv.ParseBool(raw)
		if err != nil {
			return profitability.Query{}, fmt.Errorf("%w: rank", errBadParam)
		}
		q.Rank = rank
	}
	return q, nil
}

func (h *Handler) orderID(w http.ResponseWriter, r *http.Request) (string, bool) {
	return h.pathUUID(w, r, "id")
}

func (h *Handler) pathUUID(w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	raw := chi.URLParam(r, name)
	id, err := uuid.Parse(raw)
	if err != nil {
		httpx.ValidationProblem(w, map[string]string{name: "must be a UUID"})
		return "", false
	}
	return id.String(), true
}

// decode reads a JSON body and runs the struct validations. It writes the
// problem response itself and reports whether the caller may continue.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := httpx.DecodeJSON(w, r, dst); err != nil {
		httpx.RespondError(w, err)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			httpx.RespondError(w, httpx.Classify(httpx.ErrValidation, err))
			return false
		}
		fields := make(map[string]string, len(fieldErrs))
		for _, fe := range fieldErrs {
			fields[fe.Field()] = fe.Tag()
		}
		httpx.ValidationProblem(w, fields)
		return false
	}
	return true
}

// claim reserves the Idempotency-Key of a write request within scope. Requests
// without the header pass through. The returned func gives the key back and
// must be called when the write fails.
func (h *Handler) claim(w http.ResponseWriter, r *http.Request, scope string) (func(), bool) {
	key := strings.TrimSpace(r.Header.Get(idempotencyHeader))
	if key == "" || h.idem == nil {
		return func() {}, true
	}
	if len(key) > 200 {
		httpx.ValidationProblem(w, map[string]string{idempotencyHeader: "must be at most 200 characters"})
		return nil, false
	}
	if err := h.idem.Claim(r.Context(), scope, key); err != nil {
		h.fail(w, r, err)
		return nil, false
	}
	return func() {
		if err := h.idem.Release(context.WithoutCancel(r.Context()), scope, key); err != nil {
			h.logger.Warn("release idempotency key", slog.String("scope", scope), slog.Any("error", err))
		}
	}, true
}

// fail maps domain errors onto problem responses.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	err = classify(err)
	if !isClassified(err) {
		h.logger.Error("profitability request failed",
			slog.String("path", r.URL.Path),
			slog.String("request_id", middleware.GetReqID(r.Context())),
			slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func classify(err error) error {
	switch {
	case errors.Is(err, profitability.ErrOrderNotFound),
		errors.Is(err, budget.ErrTemplateNotFound),
		errors.Is(err, snapshots.ErrSnapshotNotFound):
		return httpx.Classify(httpx.ErrNotFound, err)
	case errors.Is(err, errBadParam),
		errors.Is(err, profitability.ErrInvalidRange),
		errors.Is(err, profitability.ErrUnknownGroup),
		errors.Is(err, profitability.ErrInvalidAdjustment),
		errors.Is(err, budget.ErrInvalidTemplate),
		errors.Is(err, budget.ErrInvalidActualCost),
		errors.Is(err, cpr.ErrInvalidMonth),
		errors.Is(err, cpr.ErrInvalidFixedCost),
		errors.Is(err, snapshots.ErrInvalidMonth):
		return httpx.Classify(httpx.ErrValidation, err)
	case errors.Is(err, shared.ErrIdempotencyConflict):
		return httpx.Classify(httpx.ErrConflict, err)
	case errors.Is(err, report.ErrDisabled):
		return httpx.Classify(httpx.ErrUpstream, err)
	}
	return err
}

func isClassified(err error) bool {
	return errors.Is(err, httpx.ErrNotFound) || errors.Is(err, httpx.ErrValidation) ||
		errors.Is(err, httpx.ErrConflict) || errors.Is(err, httpx.ErrUpstream)
}

func exportName(q profitability.Query) string {
	name := "rentabilidad-" + q.Filter.Range.From.Format(dateLayout) + "_" + q.Filter.Range.To.Format(dateLayout)
	if q.GroupBy != "" {
		name += "-" + q.GroupBy
	}
	return name
}

func exportTitle(q profitability.Query) string {
	title := fmt.Sprintf("Rentabilidad %s a %s", q.Filter.Range.From.Format("02/01/2006"), q.Filter.Range.To.Format("02/01/2006"))
	if q.GroupBy != "" {
		title += " por " + q.GroupBy
	}
	return title
}

func atoiDefault(raw string, def int) int {
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return def
	}
	return v
}
