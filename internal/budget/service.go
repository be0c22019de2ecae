package budget

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/odyssey-erp/explotacion/internal/profitability"
)

// Repository persists budget templates and their assignment to orders.
type Repository interface {
	ListTemplates(ctx context.Context) ([]Template, error)
	GetTemplate(ctx context.Context, id string) (Template, error)
	InsertTemplate(ctx context.Context, tmpl Template) error
	UpdateTemplate(ctx context.Context, tmpl Template) error
	AssignTemplate(ctx context.Context, orderID, templateID string) error
	ActualCosts(ctx context.Context, orderID string) (profitability.CategoryAmounts, error)
	ReplaceActualCosts(ctx context.Context, orderID string, costs profitability.CategoryAmounts) error
}

// Evaluator computes the profitability row of one order.
type Evaluator interface {
	Evaluate(ctx context.Context, orderID string) (profitability.ServiceOrder, profitability.OrderResult, error)
}

// Service coordinates templates and per-order statements.
type Service struct {
	repo      Repository
	evaluator Evaluator
	policy    DefaultTemplatePolicy
	logger    *slog.Logger
}

// NewService builds the service with the default template policy.
func NewService(repo Repository, evaluator Evaluator, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, evaluator: evaluator, policy: ResolveTemplate, logger: logger}
}

// ListTemplates returns every stored template.
func (s *Service) ListTemplates(ctx context.Context) ([]Template, error) {
	return s.repo.ListTemplates(ctx)
}

// CreateTemplate stores a new template. The returned flag is true when its
// percentages do not add up to 100.
func (s *Service) CreateTemplate(ctx context.Context, input TemplateInput) (Template, bool, error) {
	if err := input.Validate(); err != nil {
		return Template{}, false, err
	}
	tmpl := Template{
		ID:        uuid.NewString(),
		Name:      strings.TrimSpace(input.Name),
		IsDefault: input.IsDefault,
		Targets:   input.Targets,
	}
	if err := s.repo.InsertTemplate(ctx, tmpl); err != nil {
		return Template{}, false, err
	}
	return tmpl, s.warnUnbalanced(tmpl), nil
}

// UpdateTemplate replaces the name, default flag and targets of a template.
func (s *Service) UpdateTemplate(ctx context.Context, id string, input TemplateInput) (Template, bool, error) {
	if err := input.Validate(); err != nil {
		return Template{}, false, err
	}
	tmpl, err := s.repo.GetTemplate(ctx, id)
	if err != nil {
		return Template{}, false, err
	}
	tmpl.Name = strings.TrimSpace(input.Name)
	tmpl.IsDefault = input.IsDefault
	tmpl.Targets = input.Targets
	if err := s.repo.UpdateTemplate(ctx, tmpl); err != nil {
		return Template{}, false, err
	}
	return tmpl, s.warnUnbalanced(tmpl), nil
}

func (s *Service) warnUnbalanced(tmpl Template) bool {
	if tmpl.Balanced() {
		return false
	}
	s.logger.Warn("budget template does not sum to 100",
		slog.String("template_id", tmpl.ID),
		slog.Float64("sum", tmpl.Sum()))
	return true
}

// AssignTemplate links a template to a service order.
func (s *Service) AssignTemplate(ctx context.Context, orderID, templateID string) error {
	if _, err := s.repo.GetTemplate(ctx, templateID); err != nil {
		return err
	}
	return s.repo.AssignTemplate(ctx, orderID, templateID)
}

// OrderStatement builds the operating account of one order, applying the
// stored actual cost overrides.
func (s *Service) OrderStatement(ctx context.Context, orderID string) (Statement, error) {
	order, row, err := s.evaluator.Evaluate(ctx, orderID)
	if err != nil {
		return Statement{}, err
	}
	actual, err := s.repo.ActualCosts(ctx, orderID)
	if err != nil {
		return Statement{}, err
	}
	templates, err := s.repo.ListTemplates(ctx)
	if err != nil {
		return Statement{}, err
	}
	tmpl := s.policy(templates, order.BudgetTemplateID)
	return BuildStatement(StatementInput{
		Order:     order,
		Revenue:   row.Revenue,
		Attendees: row.Attendees,
		Planned:   row.PlannedByCategory,
		Closing:   row.CostsByCategory,
		Actual:    actual,
		Template:  tmpl,
	}), nil
}

// SetActualCosts replaces the actual cost overrides of an order and returns
// the refreshed statement. Categories left out fall back to the closing figure.
func (s *Service) SetActualCosts(ctx context.Context, orderID string, costs profitability.CategoryAmounts) (Statement, error) {
	for cat, v := range costs {
		if !cat.Valid() {
			return Statement{}, fmt.Errorf("%w: unknown category %s", ErrInvalidActualCost, cat)
		}
		if v < 0 {
			return Statement{}, fmt.Errorf("%w: negative amount for %s", ErrInvalidActualCost, cat)
		}
	}
	if _, _, err := s.evaluator.Evaluate(ctx, orderID); err != nil {
		return Statement{}, err
	}
	if err := s.repo.ReplaceActualCosts(ctx, orderID, costs); err != nil {
		return Statement{}, err
	}
	s.logger.Info("actual costs updated", slog.String("order_id", orderID), slog.Int("categories", len(costs)))
	return s.OrderStatement(ctx, orderID)
}

// OrderVariance compares the closing costs of one order with its template.
func (s *Service) OrderVariance(ctx context.Context, orderID string) ([]Row, error) {
	order, row, err := s.evaluator.Evaluate(ctx, orderID)
	if err != nil {
		return nil, err
	}
	templates, err := s.repo.ListTemplates(ctx)
	if err != nil {
		return nil, err
	}
	return Compare(row.CostsByCategory, s.policy(templates, order.BudgetTemplateID), row.Revenue), nil
}
