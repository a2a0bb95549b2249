package analytics

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/moneylens/moneylens/core"
	"github.com/moneylens/moneylens/ledger"
)

// recentLookbackDays is the ledger window consulted for recent-transaction
// queries.
const recentLookbackDays = 90

// SpendingByCategory aggregates expense totals per category over the named
// lookback period. The optional category filter is applied before
// aggregation.
func (e *Engine) SpendingByCategory(ctx context.Context, userID, period, category string) ([]CategorySpend, error) {
	start, end, err := e.lookback(period)
	if err != nil {
		return nil, err
	}

	txns, err := e.src.Transactions(ctx, userID, start, end)
	if err != nil {
		return nil, fmt.Errorf("spending by category: %w", err)
	}

	totals := make(map[string]float64)
	for _, tx := range txns {
		if !tx.IsExpense() || !tx.MatchesCategory(category) {
			continue
		}
		totals[tx.Category] += tx.ExpenseAmount()
	}

	out := make([]CategorySpend, 0, len(totals))
	for cat, amount := range totals {
		out = append(out, CategorySpend{Category: cat, Amount: amount})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Amount != out[j].Amount {
			return out[i].Amount > out[j].Amount
		}
		return out[i].Category < out[j].Category
	})
	return out, nil
}

// RecentTransactions returns the newest transactions matching all set
// filters, sorted by date descending and truncated to limit.
func (e *Engine) RecentTransactions(ctx context.Context, userID string, limit int, filters TransactionFilters) ([]ledger.Transaction, error) {
	if limit <= 0 {
		limit = 10
	}

	end := e.now()
	txns, err := e.src.Transactions(ctx, userID, end.AddDate(0, 0, -recentLookbackDays), end)
	if err != nil {
		return nil, fmt.Errorf("recent transactions: %w", err)
	}

	matched := make([]ledger.Transaction, 0, len(txns))
	for _, tx := range txns {
		if !matchesFilters(tx, filters) {
			continue
		}
		matched = append(matched, tx)
	}

	sort.Slice(matched, func(i, j int) bool { return matched[i].Date.After(matched[j].Date) })
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func matchesFilters(tx ledger.Transaction, f TransactionFilters) bool {
	if !tx.MatchesCategory(f.Category) || !tx.MatchesMerchant(f.Merchant) {
		return false
	}
	magnitude := abs(tx.Amount)
	if f.AmountMin != nil && magnitude < *f.AmountMin {
		return false
	}
	if f.AmountMax != nil && magnitude > *f.AmountMax {
		return false
	}
	return true
}

// SearchByMerchant finds transactions whose merchant matches the query
// within the named period. TotalSpent sums only expense matches;
// TotalTransactions counts every match even past the truncation limit.
func (e *Engine) SearchByMerchant(ctx context.Context, userID, merchant, period string, limit int) (*MerchantSearch, error) {
	if merchant == "" {
		return nil, &core.ValidationError{Field: "merchant", Detail: "must not be empty"}
	}
	if period == "" {
		period = "month"
	}
	if limit <= 0 {
		limit = 50
	}

	start, end, err := e.lookback(period)
	if err != nil {
		return nil, err
	}

	txns, err := e.src.Transactions(ctx, userID, start, end)
	if err != nil {
		return nil, fmt.Errorf("merchant search: %w", err)
	}

	var matched []ledger.Transaction
	totalSpent := 0.0
	for _, tx := range txns {
		if !tx.MatchesMerchant(merchant) {
			continue
		}
		matched = append(matched, tx)
		totalSpent += tx.ExpenseAmount()
	}

	totalCount := len(matched)
	sort.Slice(matched, func(i, j int) bool { return matched[i].Date.After(matched[j].Date) })
	if len(matched) > limit {
		matched = matched[:limit]
	}
	if matched == nil {
		matched = []ledger.Transaction{}
	}

	return &MerchantSearch{
		Transactions:      matched,
		TotalSpent:        totalSpent,
		TotalTransactions: totalCount,
	}, nil
}

// MonthlySummary aggregates income, expenses, and savings for one calendar
// month (YYYY-MM), defaulting to the current month.
func (e *Engine) MonthlySummary(ctx context.Context, userID, month string) (*MonthlySummary, error) {
	now := e.now()
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	if month != "" {
		parsed, err := time.Parse("2006-01", month)
		if err != nil {
			return nil, &core.ValidationError{Field: "month", Detail: "must be formatted YYYY-MM"}
		}
		first = parsed
	}
	last := first.AddDate(0, 1, 0).Add(-time.Nanosecond)

	txns, err := e.src.Transactions(ctx, userID, first, last)
	if err != nil {
		return nil, fmt.Errorf("monthly summary: %w", err)
	}

	var income, expenses float64
	for _, tx := range txns {
		if tx.IsExpense() {
			expenses += tx.ExpenseAmount()
		} else {
			income += tx.Amount
		}
	}

	return &MonthlySummary{
		Month:    monthKey(first),
		Income:   income,
		Expenses: expenses,
		Savings:  income - expenses,
	}, nil
}
