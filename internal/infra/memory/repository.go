// Package memory holds an in-process ExpenseRepository, used by the CLI
// and as the test double for the HTTP handlers.
package memory

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/dvloznov/expense-classifier/internal/infra/bigquery"
	"github.com/dvloznov/expense-classifier/internal/pipeline"
)

const defaultListLimit = 100

// Repository stores expenses in a map guarded by a mutex.
type Repository struct {
	mu       sync.RWMutex
	expenses map[string]pipeline.Expense
	order    []string
}

// NewRepository returns an empty repository.
func NewRepository() *Repository {
	return &Repository{expenses: make(map[string]pipeline.Expense)}
}

func (r *Repository) InsertExpenses(ctx context.Context, expenses []pipeline.Expense) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range expenses {
		if _, ok := r.expenses[e.ID]; !ok {
			r.order = append(r.order, e.ID)
		}
		r.expenses[e.ID] = e
	}
	return nil
}

func (r *Repository) ListExpenses(ctx context.Context, filter pipeline.ExpenseFilter) ([]pipeline.Expense, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var all []pipeline.Expense
	for _, id := range r.order {
		e := r.expenses[id]
		if filter.Category != "" && e.Category != filter.Category {
			continue
		}
		if !filter.From.IsZero() && e.Date.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && e.Date.After(filter.To) {
			continue
		}
		all = append(all, e)
	}

	// Newest first, matching the BigQuery ordering.
	sort.SliceStable(all, func(i, j int) bool {
		if !all[i].Date.Equal(all[j].Date) {
			return all[i].Date.After(all[j].Date)
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	if filter.Skip > 0 {
		if filter.Skip >= len(all) {
			return nil, nil
		}
		all = all[filter.Skip:]
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (r *Repository) GetExpense(ctx context.Context, id string) (*pipeline.Expense, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.expenses[id]
	if !ok {
		return nil, bigquery.ErrNotFound
	}
	return &e, nil
}

func (r *Repository) UpdateExpenseCategory(ctx context.Context, id, category, subcategory string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.expenses[id]
	if !ok {
		return bigquery.ErrNotFound
	}
	e.Category = category
	e.Subcategory = subcategory
	e.IsCorrected = true
	r.expenses[id] = e
	return nil
}

func (r *Repository) DeleteExpense(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.expenses[id]; !ok {
		return bigquery.ErrNotFound
	}
	delete(r.expenses, id)
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

// KPIs aggregates spending as positive magnitudes, counting only
// negative amounts, rounded to cents.
func (r *Repository) KPIs(ctx context.Context, from, to time.Time) (*pipeline.KPIReport, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	report := &pipeline.KPIReport{
		ByCategory: make(map[string]float64),
		ByMonth:    make(map[string]float64),
	}
	for _, e := range r.expenses {
		if e.Amount >= 0 {
			continue
		}
		if !from.IsZero() && e.Date.Before(from) {
			continue
		}
		if !to.IsZero() && e.Date.After(to) {
			continue
		}
		spent := -e.Amount
		report.Total += spent
		report.Count++
		report.ByCategory[e.Category] += spent
		report.ByMonth[e.Date.Format("2006-01")] += spent
	}
	report.Total = roundCents(report.Total)
	for k, v := range report.ByCategory {
		report.ByCategory[k] = roundCents(v)
	}
	for k, v := range report.ByMonth {
		report.ByMonth[k] = roundCents(v)
	}
	return report, nil
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}

var _ pipeline.ExpenseRepository = (*Repository)(nil)
