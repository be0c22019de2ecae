package records

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/explotacion/internal/profitability"
)

// Store is the Postgres backed record store.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewStore constructs a store.
func NewStore(pool *pgxpool.Pool, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{pool: pool, logger: logger}
}

// scope restricts child queries to the orders of one pass.
type scope struct {
	where string
	args  []any
}

func rangeScope(r profitability.DateRange) scope {
	return scope{where: "o.start_date BETWEEN $1 AND $2", args: []any{r.From, r.To}}
}

func orderScope(id string) scope {
	return scope{where: "o.id::text = $1", args: []any{id}}
}

// LoadSnapshot reads every service order starting in r together with its
// child records. Child tables are read concurrently.
func (s *Store) LoadSnapshot(ctx context.Context, r profitability.DateRange) (profitability.Snapshot, error) {
	return s.load(ctx, rangeScope(r))
}

// LoadOrderSnapshot reads a single order and its child records.
func (s *Store) LoadOrderSnapshot(ctx context.Context, orderID string) (profitability.Snapshot, error) {
	snap, err := s.load(ctx, orderScope(orderID))
	if err != nil {
		return profitability.Snapshot{}, err
	}
	if len(snap.Orders) == 0 {
		return profitability.Snapshot{}, profitability.ErrOrderNotFound
	}
	return snap, nil
}

func (s *Store) load(ctx context.Context, sc scope) (profitability.Snapshot, error) {
	started := time.Now()
	var (
		snap   profitability.Snapshot
		flat   []profitability.CostOrder
		shifts []profitability.CostOrder
		trials []profitability.CostOrder
		adjust []profitability.CostOrder
		losses []profitability.CostOrder
	)
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		snap.Orders, err = s.serviceOrders(ctx, sc)
		return wrap("service_orders", err)
	})
	g.Go(func() (err error) {
		flat, err = s.flatCosts(ctx, sc)
		return wrap("cost_orders", err)
	})
	g.Go(func() (err error) {
		shifts, err = s.staffShifts(ctx, sc)
		return wrap("staff_shifts", err)
	})
	g.Go(func() (err error) {
		trials, err = s.menuTrials(ctx, sc)
		return wrap("menu_trials", err)
	})
	g.Go(func() (err error) {
		adjust, err = s.adjustmentRows(ctx, sc)
		return wrap("staff_adjustments", err)
	})
	g.Go(func() (err error) {
		losses, err = s.materialReturns(ctx, sc)
		return wrap("material_returns", err)
	})
	g.Go(func() (err error) {
		snap.BillingAdjustments, err = s.billingAdjustments(ctx, sc)
		return wrap("billing_adjustments", err)
	})
	g.Go(func() (err error) {
		snap.Briefings, err = s.briefings(ctx, sc)
		return wrap("briefing_items", err)
	})
	g.Go(func() (err error) {
		snap.Milestones, err = s.milestones(ctx, sc)
		return wrap("delivery_milestones", err)
	})
	if err := g.Wait(); err != nil {
		return profitability.Snapshot{}, err
	}

	snap.CostOrders = make([]profitability.CostOrder, 0, len(flat)+len(shifts)+len(trials)+len(adjust)+len(losses))
	snap.CostOrders = append(snap.CostOrders, flat...)
	snap.CostOrders = append(snap.CostOrders, shifts...)
	snap.CostOrders = append(snap.CostOrders, trials...)
	snap.CostOrders = append(snap.CostOrders, adjust...)
	snap.CostOrders = append(snap.CostOrders, losses...)

	s.logger.Debug("snapshot loaded",
		slog.Int("orders", len(snap.Orders)),
		slog.Int("cost_orders", len(snap.CostOrders)),
		slog.Duration("elapsed", time.Since(started)))
	return snap, nil
}

func wrap(table string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("records: load %s: %w", table, err)
}

func (s *Store) serviceOrders(ctx context.Context, sc scope) ([]profitability.ServiceOrder, error) {
	query := `
		SELECT o.id::text, o.number, o.start_date, o.end_date, o.client, o.space, o.salesperson,
		       o.maitre, o.status, o.vertical, o.tariff, o.attendees, o.gross_billing,
		       o.agency_pct, o.venue_pct, o.agency_commission, o.venue_commission,
		       o.budget_template_id::text
		FROM service_orders o
		WHERE ` + sc.where + `
		ORDER BY o.start_date, o.id`
	rows, err := s.pool.Query(ctx, query, sc.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []profitability.ServiceOrder
	for rows.Next() {
		var (
			o                          profitability.ServiceOrder
			end                        *time.Time
			gross, agencyPct, venuePct *float64
			agencyFixed, venueFixed    *float64
			templateID                 *string
		)
		if err := rows.Scan(
			&o.ID, &o.Number, &o.StartDate, &end, &o.Client, &o.Space, &o.Salesperson,
			&o.Maitre, &o.Status, &o.Vertical, &o.Tariff, &o.Attendees, &gross,
			&agencyPct, &venuePct, &agencyFixed, &venueFixed, &templateID,
		); err != nil {
			return nil, err
		}
		if end != nil {
			o.EndDate = *end
		}
		o.GrossBilling = num(gross)
		o.AgencyPct = num(agencyPct)
		o.VenuePct = num(venuePct)
		o.AgencyCommission = num(agencyFixed)
		o.VenueCommission = num(venueFixed)
		o.BudgetTemplateID = str(templateID)
		out = append(out, o)
	}
	return out, rows.Err()
}

func (s *Store) flatCosts(ctx context.Context, sc scope) ([]profitability.CostOrder, error) {
	query := `
		SELECT c.id::text, c.order_id::text, c.department, c.material_type, c.concept, c.total, c.price
		FROM cost_orders c
		JOIN service_orders o ON o.id = c.order_id
		WHERE ` + sc.where
	rows, err := s.pool.Query(ctx, query, sc.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []profitability.CostOrder
	for rows.Next() {
		var (
			id, orderID, department, concept string
			materialType                     *string
			total, price                     *float64
		)
		if err := rows.Scan(&id, &orderID, &department, &materialType, &concept, &total, &price); err != nil {
			return nil, err
		}
		cat, ok := DepartmentCategory(department, materialType)
		if !ok {
			s.logger.Warn("cost order with unknown department skipped",
				slog.String("id", id), slog.String("department", department), slog.String("material_type", str(materialType)))
			continue
		}
		out = append(out, profitability.FlatCost{ID: id, Order: orderID, Cat: cat, Total: FlatAmount(total, price), Concept: concept})
	}
	return out, rows.Err()
}

func (s *Store) staffShifts(ctx context.Context, sc scope) ([]profitability.CostOrder, error) {
	query := `
		SELECT sh.id::text, sh.order_id::text, sh.external, sh.planned_start, sh.planned_end,
		       sh.actual_start, sh.actual_end, sh.hourly_rate, sh.quantity
		FROM staff_shifts sh
		JOIN service_orders o ON o.id = sh.order_id
		WHERE ` + sc.where
	rows, err := s.pool.Query(ctx, query, sc.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []profitability.CostOrder
	for rows.Next() {
		var (
			shift                    profitability.StaffShift
			plannedStart, plannedEnd *string
			actualStart, actualEnd   *string
			rate                     *float64
		)
		if err := rows.Scan(&shift.ID, &shift.Order, &shift.External, &plannedStart, &plannedEnd,
			&actualStart, &actualEnd, &rate, &shift.Quantity); err != nil {
			return nil, err
		}
		shift.Planned = span(plannedStart, plannedEnd)
		shift.Actual = span(actualStart, actualEnd)
		shift.HourlyRate = num(rate)
		out = append(out, shift)
	}
	return out, rows.Err()
}

func (s *Store) menuTrials(ctx context.Context, sc scope) ([]profitability.CostOrder, error) {
	query := `
		SELECT m.order_id::text, m.cost
		FROM menu_trials m
		JOIN service_orders o ON o.id = m.order_id
		WHERE ` + sc.where
	rows, err := s.pool.Query(ctx, query, sc.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []profitability.CostOrder
	for rows.Next() {
		var (
			orderID string
			cost    *float64
		)
		if err := rows.Scan(&orderID, &cost); err != nil {
			return nil, err
		}
		out = append(out, profitability.MenuTrial{Order: orderID, Cost: num(cost)})
	}
	return out, rows.Err()
}

func (s *Store) adjustmentRows(ctx context.Context, sc scope) ([]profitability.CostOrder, error) {
	query := `
		SELECT a.id::text, a.order_id::text, a.concept, a.amount
		FROM staff_adjustments a
		JOIN service_orders o ON o.id = a.order_id
		WHERE ` + sc.where + `
		ORDER BY a.created_at, a.id`
	rows, err := s.pool.Query(ctx, query, sc.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []profitability.CostOrder
	for rows.Next() {
		var a profitability.Adjustment
		if err := rows.Scan(&a.ID, &a.Order, &a.Concept, &a.Delta); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// materialReturns reads the return sheet lines. Only lines with missing units
// are kept; material types outside the four material categories are skipped.
func (s *Store) materialReturns(ctx context.Context, sc scope) ([]profitability.CostOrder, error) {
	query := `
		SELECT r.order_id::text, r.item_code, r.material_type, r.sent_quantity, r.returned_quantity, r.price
		FROM material_returns r
		JOIN service_orders o ON o.id = r.order_id
		WHERE ` + sc.where + `
		ORDER BY r.order_id, r.item_code`
	rows, err := s.pool.Query(ctx, query, sc.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []profitability.CostOrder
	for rows.Next() {
		var (
			line                  profitability.MaterialReturn
			materialType          string
			sent, returned, price *float64
		)
		if err := rows.Scan(&line.Order, &line.ItemCode, &materialType, &sent, &returned, &price); err != nil {
			return nil, err
		}
		cat, ok := profitability.MaterialCategory(materialType)
		if !ok {
			s.logger.Warn("material return with unknown type skipped",
				slog.String("order_id", line.Order), slog.String("item_code", line.ItemCode), slog.String("material_type", materialType))
			continue
		}
		line.Cat = cat
		line.Sent = num(sent)
		line.Returned = num(returned)
		line.Price = num(price)
		if line.Loss() == 0 {
			continue
		}
		out = append(out, line)
	}
	return out, rows.Err()
}

func (s *Store) billingAdjustments(ctx context.Context, sc scope) ([]profitability.BillingAdjustment, error) {
	query := `
		SELECT a.id::text, a.order_id::text, a.concept, a.amount
		FROM billing_adjustments a
		JOIN service_orders o ON o.id = a.order_id
		WHERE ` + sc.where + `
		ORDER BY a.created_at, a.id`
	rows, err := s.pool.Query(ctx, query, sc.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []profitability.BillingAdjustment
	for rows.Next() {
		var a profitability.BillingAdjustment
		if err := rows.Scan(&a.ID, &a.Order, &a.Concept, &a.Amount); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) briefings(ctx context.Context, sc scope) ([]profitability.Briefing, error) {
	query := `
		SELECT b.order_id::text, b.id::text, b.description, b.attendees, b.unit_price, b.fixed_amount
		FROM briefing_items b
		JOIN service_orders o ON o.id = b.order_id
		WHERE ` + sc.where + `
		ORDER BY b.order_id, b.id`
	rows, err := s.pool.Query(ctx, query, sc.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byOrder := make(map[string]int)
	var out []profitability.Briefing
	for rows.Next() {
		var (
			orderID           string
			item              profitability.BriefingItem
			unitPrice, amount *float64
		)
		if err := rows.Scan(&orderID, &item.ID, &item.Description, &item.Attendees, &unitPrice, &amount); err != nil {
			return nil, err
		}
		item.UnitPrice = num(unitPrice)
		item.FixedAmount = num(amount)
		idx, ok := byOrder[orderID]
		if !ok {
			idx = len(out)
			byOrder[orderID] = idx
			out = append(out, profitability.Briefing{OrderID: orderID})
		}
		out[idx].Items = append(out[idx].Items, item)
	}
	return out, rows.Err()
}

func (s *Store) milestones(ctx context.Context, sc scope) ([]profitability.Milestone, error) {
	query := `
		SELECT m.id::text, m.order_id::text, m.milestone_at, m.porters, m.waiter_hours,
		       i.product_id, i.name, i.category, i.quantity, i.unit_price, i.unit_price_ifema, i.unit_cost
		FROM delivery_milestones m
		JOIN service_orders o ON o.id = m.order_id
		LEFT JOIN milestone_items i ON i.milestone_id = m.id
		WHERE ` + sc.where + `
		ORDER BY m.milestone_at, m.id, i.id`
	rows, err := s.pool.Query(ctx, query, sc.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byID := make(map[string]int)
	var out []profitability.Milestone
	for rows.Next() {
		var (
			m                         profitability.Milestone
			productID, name, category *string
			qty, price, priceIFEMA    *float64
			cost                      *float64
		)
		if err := rows.Scan(&m.ID, &m.OrderID, &m.Date, &m.Porters, &m.WaiterHours,
			&productID, &name, &category, &qty, &price, &priceIFEMA, &cost); err != nil {
			return nil, err
		}
		idx, ok := byID[m.ID]
		if !ok {
			idx = len(out)
			byID[m.ID] = idx
			out = append(out, m)
		}
		if productID == nil {
			continue
		}
		out[idx].Items = append(out[idx].Items, profitability.MilestoneItem{
			ProductID:      *productID,
			Name:           str(name),
			Category:       str(category),
			Quantity:       num(qty),
			UnitPrice:      num(price),
			UnitPriceIFEMA: num(priceIFEMA),
			UnitCost:       num(cost),
		})
	}
	return out, rows.Err()
}

// ListAdjustments returns the adjustments of one order in entry order.
func (s *Store) ListAdjustments(ctx context.Context, orderID string) ([]profitability.Adjustment, error) {
	rows, err := s.adjustmentRows(ctx, orderScope(orderID))
	if err != nil {
		return nil, wrap("staff_adjustments", err)
	}
	out := make([]profitability.Adjustment, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.(profitability.Adjustment))
	}
	return out, nil
}

// InsertAdjustment stores an adjustment. The foreign key rejects unknown orders.
func (s *Store) InsertAdjustment(ctx context.Context, adj profitability.Adjustment) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO staff_adjustments (id, order_id, concept, amount) VALUES ($1, $2, $3, $4)`,
		adj.ID, adj.Order, adj.Concept, adj.Delta)
	if err != nil {
		if isForeignKeyViolation(err) {
			return profitability.ErrOrderNotFound
		}
		return fmt.Errorf("records: insert adjustment: %w", err)
	}
	return nil
}

// ListBillingAdjustments returns the billing corrections of one order in entry order.
func (s *Store) ListBillingAdjustments(ctx context.Context, orderID string) ([]profitability.BillingAdjustment, error) {
	out, err := s.billingAdjustments(ctx, orderScope(orderID))
	if err != nil {
		return nil, wrap("billing_adjustments", err)
	}
	if out == nil {
		out = []profitability.BillingAdjustment{}
	}
	return out, nil
}

// InsertBillingAdjustment stores a billing correction. The foreign key rejects unknown orders.
func (s *Store) InsertBillingAdjustment(ctx context.Context, adj profitability.BillingAdjustment) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO billing_adjustments (id, order_id, concept, amount) VALUES ($1, $2, $3, $4)`,
		adj.ID, adj.Order, adj.Concept, adj.Amount)
	if err != nil {
		if isForeignKeyViolation(err) {
			return profitability.ErrOrderNotFound
		}
		return fmt.Errorf("records: insert billing adjustment: %w", err)
	}
	return nil
}

func notFound(err error, sentinel error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return sentinel
	}
	return err
}
