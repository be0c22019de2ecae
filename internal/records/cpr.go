package records

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/explotacion/internal/cpr"
	"github.com/odyssey-erp/explotacion/internal/platform/db"
	"github.com/odyssey-erp/explotacion/internal/profitability"
)

// CPRStore adapts Store to the production centre repository.
type CPRStore struct {
	*Store
}

// NewCPRStore wraps a store.
func NewCPRStore(s *Store) *CPRStore {
	return &CPRStore{Store: s}
}

// LoadInputs reads every CPR input touching r.
func (c *CPRStore) LoadInputs(ctx context.Context, r profitability.DateRange) (cpr.Inputs, error) {
	var in cpr.Inputs
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		in.Orders, err = c.serviceOrders(ctx, rangeScope(r))
		return wrap("service_orders", err)
	})
	g.Go(func() (err error) {
		in.Sales, err = c.recipeSales(ctx, r)
		return wrap("gastronomy_order_items", err)
	})
	g.Go(func() (err error) {
		in.Cessions, err = c.cessions(ctx, r)
		return wrap("staff_cessions", err)
	})
	g.Go(func() (err error) {
		in.Requests, err = c.staffRequests(ctx, r)
		return wrap("cpr_staff_requests", err)
	})
	g.Go(func() (err error) {
		in.FixedCosts, err = c.ListFixedCosts(ctx)
		return err
	})
	g.Go(func() (err error) {
		in.Targets, err = c.targets(ctx, r.Months())
		return wrap("cpr_monthly_targets", err)
	})
	if err := g.Wait(); err != nil {
		return cpr.Inputs{}, err
	}
	return in, nil
}

func (c *CPRStore) recipeSales(ctx context.Context, r profitability.DateRange) ([]cpr.RecipeSale, error) {
	rows, err := c.pool.Query(ctx, `
		SELECT g.order_id::text, g.recipe_id, g.quantity, rc.sale_price, rc.raw_material_cost
		FROM gastronomy_order_items g
		JOIN recipes rc ON rc.id = g.recipe_id
		JOIN service_orders o ON o.id = g.order_id
		WHERE o.start_date BETWEEN $1 AND $2`, r.From, r.To)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []cpr.RecipeSale
	for rows.Next() {
		var (
			sale        cpr.RecipeSale
			price, cost *float64
		)
		if err := rows.Scan(&sale.OrderID, &sale.RecipeID, &sale.Quantity, &price, &cost); err != nil {
			return nil, err
		}
		sale.SalePrice = num(price)
		sale.RawMaterialCost = num(cost)
		out = append(out, sale)
	}
	return out, rows.Err()
}

func (c *CPRStore) cessions(ctx context.Context, r profitability.DateRange) ([]cpr.StaffCession, error) {
	rows, err := c.pool.Query(ctx, `
		SELECT id::text, cession_date, employee, home_department, cost_center,
		       planned_start, planned_end, actual_start, actual_end, hourly_rate
		FROM staff_cessions
		WHERE cession_date BETWEEN $1::date AND $2::date`, r.From, r.To)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []cpr.StaffCession
	for rows.Next() {
		var (
			cs                       cpr.StaffCession
			plannedStart, plannedEnd *string
			actualStart, actualEnd   *string
			rate                     *float64
		)
		if err := rows.Scan(&cs.ID, &cs.Date, &cs.Employee, &cs.HomeDepartment, &cs.CostCenter,
			&plannedStart, &plannedEnd, &actualStart, &actualEnd, &rate); err != nil {
			return nil, err
		}
		cs.Date = dateIn(cs.Date, r.From.Location())
		cs.Planned = span(plannedStart, plannedEnd)
		cs.Actual = span(actualStart, actualEnd)
		cs.HourlyRate = num(rate)
		out = append(out, cs)
	}
	return out, rows.Err()
}

func (c *CPRStore) staffRequests(ctx context.Context, r profitability.DateRange) ([]cpr.StaffRequest, error) {
	rows, err := c.pool.Query(ctx, `
		SELECT q.id::text, q.service_date, q.status, q.planned_start, q.planned_end, q.quantity, q.hourly_rate,
		       a.actual_start, a.actual_end
		FROM cpr_staff_requests q
		LEFT JOIN cpr_staff_assignments a ON a.request_id = q.id
		WHERE q.service_date BETWEEN $1::date AND $2::date
		ORDER BY q.service_date, q.id, a.id`, r.From, r.To)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byID := make(map[string]int)
	var out []cpr.StaffRequest
	for rows.Next() {
		var (
			req                      cpr.StaffRequest
			plannedStart, plannedEnd *string
			actualStart, actualEnd   *string
			rate                     *float64
		)
		if err := rows.Scan(&req.ID, &req.ServiceDate, &req.Status, &plannedStart, &plannedEnd,
			&req.Quantity, &rate, &actualStart, &actualEnd); err != nil {
			return nil, err
		}
		idx, ok := byID[req.ID]
		if !ok {
			req.ServiceDate = dateIn(req.ServiceDate, r.From.Location())
			req.Planned = span(plannedStart, plannedEnd)
			req.HourlyRate = num(rate)
			idx = len(out)
			byID[req.ID] = idx
			out = append(out, req)
		}
		if actualStart != nil || actualEnd != nil {
			out[idx].Assigned = append(out[idx].Assigned, span(actualStart, actualEnd))
		}
	}
	return out, rows.Err()
}

func (c *CPRStore) targets(ctx context.Context, months []string) (map[string]cpr.MonthlyTarget, error) {
	rows, err := c.pool.Query(ctx, `
		SELECT month, sales, staff_cession_income, raw_material, staff_cession_expense, staff_requests, other
		FROM cpr_monthly_targets
		WHERE month = ANY($1)`, months)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]cpr.MonthlyTarget)
	for rows.Next() {
		var t cpr.MonthlyTarget
		if err := rows.Scan(&t.Month, &t.Sales, &t.StaffCessionIncome, &t.RawMaterial,
			&t.StaffCessionExpense, &t.StaffRequests, &t.Other); err != nil {
			return nil, err
		}
		out[t.Month] = t
	}
	return out, rows.Err()
}

// ListFixedCosts returns the structural costs by concept.
func (c *CPRStore) ListFixedCosts(ctx context.Context) ([]cpr.FixedCost, error) {
	rows, err := c.pool.Query(ctx, `SELECT id::text, concept, monthly_amount FROM cpr_fixed_costs ORDER BY concept, id`)
	if err != nil {
		return nil, wrap("cpr_fixed_costs", err)
	}
	defer rows.Close()

	var out []cpr.FixedCost
	for rows.Next() {
		var f cpr.FixedCost
		if err := rows.Scan(&f.ID, &f.Concept, &f.MonthlyAmount); err != nil {
			return nil, wrap("cpr_fixed_costs", err)
		}
		out = append(out, f)
	}
	return out, wrap("cpr_fixed_costs", rows.Err())
}

// ReplaceFixedCosts swaps the full list in one transaction.
func (c *CPRStore) ReplaceFixedCosts(ctx context.Context, costs []cpr.FixedCost) error {
	return db.WithTx(ctx, c.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM cpr_fixed_costs`); err != nil {
			return fmt.Errorf("records: clear fixed costs: %w", err)
		}
		batch := &pgx.Batch{}
		for _, f := range costs {
			batch.Queue(`INSERT INTO cpr_fixed_costs (id, concept, monthly_amount) VALUES ($1, $2, $3)`,
				f.ID, f.Concept, f.MonthlyAmount)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("records: insert fixed costs: %w", err)
		}
		return nil
	})
}

// UpsertTarget stores the budget of one month.
func (c *CPRStore) UpsertTarget(ctx context.Context, t cpr.MonthlyTarget) error {
	_, err := c.pool.Exec(ctx, `
		INSERT INTO cpr_monthly_targets (month, sales, staff_cession_income, raw_material,
		                                 staff_cession_expense, staff_requests, other)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (month) DO UPDATE SET
			sales = EXCLUDED.sales,
			staff_cession_income = EXCLUDED.staff_cession_income,
			raw_material = EXCLUDED.raw_material,
			staff_cession_expense = EXCLUDED.staff_cession_expense,
			staff_requests = EXCLUDED.staff_requests,
			other = EXCLUDED.other`,
		t.Month, t.Sales, t.StaffCessionIncome, t.RawMaterial, t.StaffCessionExpense, t.StaffRequests, t.Other)
	if err != nil {
		return fmt.Errorf("records: upsert target: %w", err)
	}
	return nil
}
