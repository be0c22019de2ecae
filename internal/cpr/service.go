package cpr

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/explotacion/internal/budget"
	"github.com/odyssey-erp/explotacion/internal/profitability"
)

// Repository reads the CPR inputs and stores its master data.
type Repository interface {
	LoadInputs(ctx context.Context, r profitability.DateRange) (Inputs, error)
	ListFixedCosts(ctx context.Context) ([]FixedCost, error)
	ReplaceFixedCosts(ctx context.Context, costs []FixedCost) error
	UpsertTarget(ctx context.Context, target MonthlyTarget) error
}

// Service exposes the CPR account.
type Service struct {
	repo Repository
	loc  *time.Location
}

// NewService builds the service. Month boundaries use loc.
func NewService(repo Repository, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{repo: repo, loc: loc}
}

// StatementView bundles the account and its budget comparison.
type StatementView struct {
	Statement Statement     `json:"statement"`
	Target    MonthlyTarget `json:"target"`
	Rows      []budget.Row  `json:"rows"`
}

// Statement computes the account for r, compared with the target of the month
// r starts in.
func (s *Service) Statement(ctx context.Context, r profitability.DateRange) (StatementView, error) {
	in, err := s.repo.LoadInputs(ctx, r)
	if err != nil {
		return StatementView{}, fmt.Errorf("cpr: load inputs: %w", err)
	}
	st := BuildStatement(in, r)
	month := profitability.MonthKey(r.From)
	target := in.Targets[month]
	target.Month = month
	return StatementView{Statement: st, Target: target, Rows: Compare(st, target)}, nil
}

// Year returns the twelve monthly rows of year.
func (s *Service) Year(ctx context.Context, year int) ([]MonthRow, error) {
	r := profitability.DateRange{
		From: time.Date(year, time.January, 1, 0, 0, 0, 0, s.loc),
		To:   profitability.EndOfDay(time.Date(year, time.December, 31, 0, 0, 0, 0, s.loc)),
	}
	in, err := s.repo.LoadInputs(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("cpr: load inputs: %w", err)
	}
	return Year(year, s.loc, in), nil
}

// FixedCosts lists the structural costs.
func (s *Service) FixedCosts(ctx context.Context) ([]FixedCost, error) {
	return s.repo.ListFixedCosts(ctx)
}

// ReplaceFixedCosts swaps the whole list, assigning ids to new entries.
func (s *Service) ReplaceFixedCosts(ctx context.Context, costs []FixedCost) ([]FixedCost, error) {
	out := make([]FixedCost, 0, len(costs))
	for _, c := range costs {
		c.Concept = strings.TrimSpace(c.Concept)
		if c.Concept == "" || c.MonthlyAmount < 0 {
			return nil, ErrInvalidFixedCost
		}
		if c.ID == "" {
			c.ID = uuid.NewString()
		}
		out = append(out, c)
	}
	if err := s.repo.ReplaceFixedCosts(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

// SetTarget stores the budget of one month.
func (s *Service) SetTarget(ctx context.Context, month string, target MonthlyTarget) (MonthlyTarget, error) {
	if !ValidMonth(month) {
		return MonthlyTarget{}, ErrInvalidMonth
	}
	target.Month = month
	if err := s.repo.UpsertTarget(ctx, target); err != nil {
		return MonthlyTarget{}, err
	}
	return target, nil
}
