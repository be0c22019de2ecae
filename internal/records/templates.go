package records

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/odyssey-erp/explotacion/internal/budget"
	"github.com/odyssey-erp/explotacion/internal/platform/db"
	"github.com/odyssey-erp/explotacion/internal/profitability"
)

// ListTemplates returns templates in creation order.
func (s *Store) ListTemplates(ctx context.Context) ([]budget.Template, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id::text, name, is_default, targets
		FROM budget_templates
		ORDER BY created_at, id`)
	if err != nil {
		return nil, wrap("budget_templates", err)
	}
	defer rows.Close()

	var out []budget.Template
	for rows.Next() {
		tmpl, err := scanTemplate(rows)
		if err != nil {
			return nil, wrap("budget_templates", err)
		}
		out = append(out, tmpl)
	}
	return out, wrap("budget_templates", rows.Err())
}

// GetTemplate loads a template by id.
func (s *Store) GetTemplate(ctx context.Context, id string) (budget.Template, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id::text, name, is_default, targets
		FROM budget_templates
		WHERE id::text = $1`, id)
	tmpl, err := scanTemplate(row)
	if err != nil {
		return budget.Template{}, notFound(err, budget.ErrTemplateNotFound)
	}
	return tmpl, nil
}

// InsertTemplate stores a template, clearing any previous default flag when needed.
func (s *Store) InsertTemplate(ctx context.Context, tmpl budget.Template) error {
	targets, err := json.Marshal(tmpl.Targets)
	if err != nil {
		return err
	}
	return db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		if err := clearDefault(ctx, tx, tmpl); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO budget_templates (id, name, is_default, targets)
			VALUES ($1, $2, $3, $4)`, tmpl.ID, tmpl.Name, tmpl.IsDefault, targets)
		if err != nil {
			return fmt.Errorf("records: insert template: %w", err)
		}
		return nil
	})
}

// UpdateTemplate rewrites a template.
func (s *Store) UpdateTemplate(ctx context.Context, tmpl budget.Template) error {
	targets, err := json.Marshal(tmpl.Targets)
	if err != nil {
		return err
	}
	return db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		if err := clearDefault(ctx, tx, tmpl); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `
			UPDATE budget_templates
			SET name = $2, is_default = $3, targets = $4, updated_at = NOW()
			WHERE id::text = $1`, tmpl.ID, tmpl.Name, tmpl.IsDefault, targets)
		if err != nil {
			return fmt.Errorf("records: update template: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return budget.ErrTemplateNotFound
		}
		return nil
	})
}

func clearDefault(ctx context.Context, tx pgx.Tx, tmpl budget.Template) error {
	if !tmpl.IsDefault {
		return nil
	}
	_, err := tx.Exec(ctx, `UPDATE budget_templates SET is_default = FALSE WHERE is_default AND id::text <> $1`, tmpl.ID)
	if err != nil {
		return fmt.Errorf("records: clear default template: %w", err)
	}
	return nil
}

// AssignTemplate links a template to a service order.
func (s *Store) AssignTemplate(ctx context.Context, orderID, templateID string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE service_orders SET budget_template_id = $2::uuid WHERE id::text = $1`, orderID, templateID)
	if err != nil {
		return fmt.Errorf("records: assign template: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return profitability.ErrOrderNotFound
	}
	return nil
}

func scanTemplate(row pgx.Row) (budget.Template, error) {
	var (
		tmpl    budget.Template
		targets []byte
	)
	if err := row.Scan(&tmpl.ID, &tmpl.Name, &tmpl.IsDefault, &targets); err != nil {
		return budget.Template{}, err
	}
	tmpl.Targets = make(map[profitability.Category]float64)
	if len(targets) > 0 {
		if err := json.Unmarshal(targets, &tmpl.Targets); err != nil {
			return budget.Template{}, err
		}
	}
	return tmpl, nil
}

// ActualCosts returns the actual cost overrides of one order. Categories
// without an override are absent from the map.
func (s *Store) ActualCosts(ctx context.Context, orderID string) (profitability.CategoryAmounts, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT category, amount
		FROM order_actual_costs
		WHERE order_id::text = $1`, orderID)
	if err != nil {
		return nil, wrap("order_actual_costs", err)
	}
	defer rows.Close()

	out := make(profitability.CategoryAmounts)
	for rows.Next() {
		var (
			cat    string
			amount float64
		)
		if err := rows.Scan(&cat, &amount); err != nil {
			return nil, wrap("order_actual_costs", err)
		}
		out[profitability.Category(cat)] = amount
	}
	return out, wrap("order_actual_costs", rows.Err())
}

// ReplaceActualCosts swaps the overrides of one order for costs in a single transaction.
func (s *Store) ReplaceActualCosts(ctx context.Context, orderID string, costs profitability.CategoryAmounts) error {
	return db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM order_actual_costs WHERE order_id::text = $1`, orderID); err != nil {
			return fmt.Errorf("records: clear actual costs: %w", err)
		}
		for _, cat := range profitability.Categories {
			amount, ok := costs[cat]
			if !ok {
				continue
			}
			_, err := tx.Exec(ctx, `
				INSERT INTO order_actual_costs (order_id, category, amount)
				VALUES ($1::uuid, $2, $3)`, orderID, string(cat), amount)
			if err != nil {
				if isForeignKeyViolation(err) {
					return profitability.ErrOrderNotFound
				}
				return fmt.Errorf("records: insert actual cost: %w", err)
			}
		}
		return nil
	})
}
