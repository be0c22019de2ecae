package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/odyssey-erp/explotacion/internal/app"
	"github.com/odyssey-erp/explotacion/internal/platform/db"
)

// Seeds one month of demo data: two catering events, one MICE delivery and
// the production centre figures of the same month.
func main() {
	ctx := context.Background()
	cfg, err := app.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	loc, _ := cfg.Location()

	pool, err := db.New(ctx, cfg.PGDSN, db.Options{TimeZone: cfg.TimeZone})
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	if len(os.Args) > 1 && os.Args[1] == "--migrate" {
		fmt.Println("→ Applying schema...")
		schema, err := os.ReadFile("migrations/0001_init.sql")
		if err != nil {
			log.Fatalf("read schema: %v", err)
		}
		if _, err := pool.Exec(ctx, string(schema)); err != nil {
			log.Fatalf("apply schema: %v", err)
		}
	}

	now := time.Now().In(loc)
	month := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, loc)

	err = db.WithTx(ctx, pool, func(tx pgx.Tx) error {
		fmt.Println("→ Seeding budget templates...")
		banquet, err := seedTemplates(ctx, tx)
		if err != nil {
			return fmt.Errorf("templates: %w", err)
		}
		fmt.Println("→ Seeding catering orders...")
		if err := seedCatering(ctx, tx, month, banquet); err != nil {
			return fmt.Errorf("catering: %w", err)
		}
		fmt.Println("→ Seeding deliveries...")
		if err := seedDeliveries(ctx, tx, month); err != nil {
			return fmt.Errorf("deliveries: %w", err)
		}
		fmt.Println("→ Seeding production centre...")
		if err := seedCPR(ctx, tx, month); err != nil {
			return fmt.Errorf("cpr: %w", err)
		}
		return nil
	})
	if err != nil {
		log.Fatalf("seed: %v", err)
	}
	fmt.Println("✓ Seed complete at", time.Now().Format(time.RFC3339))
}

func seedTemplates(ctx context.Context, tx pgx.Tx) (string, error) {
	templates := []struct {
		name      string
		isDefault bool
		targets   map[string]float64
	}{
		{"Estándar", true, map[string]float64{
			"gastronomy": 28, "cellar": 6, "consumables": 2, "ice": 1, "warehouse": 3, "rental": 4,
			"transport": 3, "decor": 2, "atypical": 1, "internal_staff": 10, "external_staff": 12, "menu_trial": 0,
		}},
		{"Banquete", false, map[string]float64{
			"gastronomy": 32, "cellar": 8, "consumables": 2, "ice": 1, "warehouse": 2, "rental": 5,
			"transport": 2, "decor": 3, "atypical": 0, "internal_staff": 8, "external_staff": 15, "menu_trial": 1,
		}},
	}
	var banquet string
	for _, t := range templates {
		id := uuid.NewString()
		targets, err := json.Marshal(t.targets)
		if err != nil {
			return "", err
		}
		if t.isDefault {
			if _, err := tx.Exec(ctx, `UPDATE budget_templates SET is_default = FALSE WHERE is_default`); err != nil {
				return "", err
			}
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO budget_templates (id, name, is_default, targets)
			VALUES ($1, $2, $3, $4)`, id, t.name, t.isDefault, targets); err != nil {
			return "", err
		}
		if !t.isDefault {
			banquet = id
		}
	}
	return banquet, nil
}

type costRow struct {
	department   string
	materialType *string
	concept      string
	total        float64
}

func strPtr(v string) *string { return &v }

func seedCatering(ctx context.Context, tx pgx.Tx, month time.Time, banquetTemplate string) error {
	events := []struct {
		number, client, space, salesperson, maitre string
		day, attendees                             int
		agencyPct, venuePct                        float64
		templateID                                 *string
		briefing                                   [][2]float64
		costs                                      []costRow
		trial                                      float64
	}{
		{
			number: "OS-" + month.Format("0601") + "-001", client: "Laboratorios Norte", space: "Palacio de Cibeles",
			salesperson: "Marta", maitre: "Julián", day: 4, attendees: 180, agencyPct: 5, venuePct: 10,
			briefing: [][2]float64{{180, 55}, {180, 12}},
			costs: []costRow{
				{"GASTRONOMIA", nil, "Cóctel largo", 3400},
				{"MATERIAL", strPtr("Bodega"), "Vinos y cavas", 820},
				{"MATERIAL", strPtr("Alquiler"), "Mobiliario", 640},
				{"TRANSPORTE", nil, "Furgonetas", 310},
				{"HIELO", nil, "Hielo en cubitos", 90},
			},
		},
		{
			number: "OS-" + month.Format("0601") + "-002", client: "Banco Meridional", space: "Finca El Olivar",
			salesperson: "Andrés", maitre: "Lucía", day: 12, attendees: 260, agencyPct: 0, venuePct: 12,
			templateID: &banquetTemplate,
			briefing:   [][2]float64{{260, 95}},
			costs: []costRow{
				{"GASTRONOMIA", nil, "Menú banquete", 8900},
				{"MATERIAL", strPtr("Bodega"), "Bodega banquete", 2100},
				{"MATERIAL", strPtr("Almacén"), "Menaje", 700},
				{"DECORACION", nil, "Centros de mesa", 950},
				{"ATIPICO", nil, "Generador", 400},
			},
			trial: 260,
		},
	}

	if _, err := tx.Exec(ctx, `INSERT INTO recipes (id, name, sale_price, raw_material_cost) VALUES
		('REC-CROQ', 'Croqueta de jamón', 1.8, 0.45),
		('REC-SALM', 'Salmón marinado', 3.2, 1.1)
		ON CONFLICT (id) DO NOTHING`); err != nil {
		return err
	}
	for _, ev := range events {
		start := month.AddDate(0, 0, ev.day-1).Add(19 * time.Hour)
		orderID, err := insertOrder(ctx, tx, `
			INSERT INTO service_orders (id, number, start_date, end_date, client, space, salesperson, maitre,
				status, vertical, tariff, attendees, agency_pct, venue_pct, budget_template_id)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 'CONFIRMADO', 'CATERING', 'EMPRESA', $9, $10, $11, $12)
			ON CONFLICT (number) DO NOTHING
			RETURNING id::text`,
			uuid.NewString(), ev.number, start, start.Add(6*time.Hour), ev.client, ev.space, ev.salesperson, ev.maitre,
			ev.attendees, ev.agencyPct, ev.venuePct, ev.templateID)
		if err != nil {
			return err
		}
		if orderID == "" {
			fmt.Println("  skip", ev.number, "(already seeded)")
			continue
		}
		batch := &pgx.Batch{}
		batch.Queue(`INSERT INTO gastronomy_order_items (id, order_id, recipe_id, quantity) VALUES ($1, $2, 'REC-CROQ', $3), ($4, $2, 'REC-SALM', $5)`,
			uuid.NewString(), orderID, ev.attendees*3, uuid.NewString(), ev.attendees)
		for _, b := range ev.briefing {
			batch.Queue(`INSERT INTO briefing_items (id, order_id, description, attendees, unit_price) VALUES ($1, $2, 'Servicio', $3, $4)`,
				uuid.NewString(), orderID, int(b[0]), b[1])
		}
		for _, c := range ev.costs {
			batch.Queue(`INSERT INTO cost_orders (id, order_id, department, material_type, concept, total) VALUES ($1, $2, $3, $4, $5, $6)`,
				uuid.NewString(), orderID, c.department, c.materialType, c.concept, c.total)
		}
		batch.Queue(`INSERT INTO staff_shifts (id, order_id, external, planned_start, planned_end, actual_start, actual_end, hourly_rate, quantity)
			VALUES ($1, $2, FALSE, '17:00', '01:00', '17:00', '01:30', 16.5, 4)`, uuid.NewString(), orderID)
		batch.Queue(`INSERT INTO staff_shifts (id, order_id, external, planned_start, planned_end, hourly_rate, quantity)
			VALUES ($1, $2, TRUE, '18:00', '00:00', 17.5, 10)`, uuid.NewString(), orderID)
		batch.Queue(`INSERT INTO staff_adjustments (id, order_id, concept, amount) VALUES ($1, $2, 'Horas extra montaje', 120)`,
			uuid.NewString(), orderID)
		batch.Queue(`INSERT INTO billing_adjustments (id, order_id, concept, amount) VALUES ($1, $2, 'Barra libre adicional', 450)`,
			uuid.NewString(), orderID)
		batch.Queue(`INSERT INTO material_returns (order_id, item_code, material_type, sent_quantity, returned_quantity, price)
			VALUES ($1, 'COPA-VINO', 'Almacen', 240, 228, 1.2), ($1, 'MANTEL-R', 'Alquiler', 30, 30, 6)`, orderID)
		if ev.trial > 0 {
			batch.Queue(`INSERT INTO menu_trials (order_id, cost) VALUES ($1, $2)`, orderID, ev.trial)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return err
		}
	}
	return nil
}

func seedDeliveries(ctx context.Context, tx pgx.Tx, month time.Time) error {
	start := month.AddDate(0, 0, 8).Add(8 * time.Hour)
	orderID, err := insertOrder(ctx, tx, `
		INSERT INTO service_orders (id, number, start_date, end_date, client, space, salesperson, status, vertical, tariff, attendees)
		VALUES ($1, $2, $3, $4, 'Congresos Ibéricos', 'IFEMA Pabellón 9', 'Marta', 'CONFIRMADO', 'ENTREGAS', 'IFEMA', 400)
		ON CONFLICT (number) DO NOTHING
		RETURNING id::text`,
		uuid.NewString(), "EN-"+month.Format("0601")+"-001", start, start.AddDate(0, 0, 2))
	if err != nil || orderID == "" {
		return err
	}
	for day := 0; day < 3; day++ {
		milestoneID := uuid.NewString()
		if _, err := tx.Exec(ctx, `
			INSERT INTO delivery_milestones (id, order_id, milestone_at, porters, waiter_hours)
			VALUES ($1, $2, $3, 1, $4)`, milestoneID, orderID, start.AddDate(0, 0, day), float64(2+day)); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO milestone_items (id, milestone_id, product_id, name, category, quantity, unit_price, unit_price_ifema, unit_cost)
			VALUES ($1, $2, 'CAF-01', 'Coffee break', 'Cafetería', 400, 6.5, 7.2, 2.1),
			       ($3, $2, 'AGU-05', 'Agua 50cl', 'Bebidas', 600, 1.2, NULL, 0.35)`,
			uuid.NewString(), milestoneID, uuid.NewString()); err != nil {
			return err
		}
	}
	return nil
}

func seedCPR(ctx context.Context, tx pgx.Tx, month time.Time) error {
	batch := &pgx.Batch{}
	batch.Queue(`INSERT INTO staff_cessions (id, cession_date, employee, home_department, cost_center, planned_start, planned_end, actual_start, actual_end, hourly_rate)
		VALUES ($1, $2, 'Rosa', 'CPR', 'CATERING', '08:00', '16:00', '08:00', '17:00', 15),
		       ($3, $2, 'Iván', 'SALA', 'CPR', '07:00', '12:00', NULL, NULL, 14)`,
		uuid.NewString(), month.AddDate(0, 0, 3), uuid.NewString())
	requestID := uuid.NewString()
	batch.Queue(`INSERT INTO cpr_staff_requests (id, service_date, status, planned_start, planned_end, quantity, hourly_rate)
		VALUES ($1, $2, 'Cerrado', '06:00', '14:00', 2, 13.5)`, requestID, month.AddDate(0, 0, 10))
	batch.Queue(`INSERT INTO cpr_staff_assignments (id, request_id, actual_start, actual_end) VALUES ($1, $2, '06:00', '15:00'), ($3, $2, '06:30', '14:00')`,
		uuid.NewString(), requestID, uuid.NewString())
	batch.Queue(`INSERT INTO cpr_fixed_costs (id, concept, monthly_amount) VALUES ($1, 'Alquiler cocina central', 4200), ($2, 'Mantenimiento cámaras', 650)`,
		uuid.NewString(), uuid.NewString())
	batch.Queue(`INSERT INTO cpr_monthly_targets (month, sales, staff_cession_income, raw_material, staff_cession_expense, staff_requests, other)
		VALUES ($1, 70, 30, 32, 8, 12, 15)
		ON CONFLICT (month) DO NOTHING`, month.Format("2006-01"))
	return tx.SendBatch(ctx, batch).Close()
}

// insertOrder runs an INSERT ... ON CONFLICT DO NOTHING RETURNING id and
// reports an empty id when the order already exists.
func insertOrder(ctx context.Context, tx pgx.Tx, query string, args ...any) (string, error) {
	var id string
	err := tx.QueryRow(ctx, query, args...).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	return id, err
}
