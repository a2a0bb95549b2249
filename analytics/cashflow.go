package analytics

import (
	"context"
	"fmt"
)

// CashFlowAnalysis builds trailing monthly buckets, derives growth and
// volatility trends, and projects forward assuming the observed growth
// continues at a monthly rate.
func (e *Engine) CashFlowAnalysis(ctx context.Context, userID string, months, projectionMonths int) (*CashFlow, error) {
	if months <= 0 {
		months = 6
	}
	if projectionMonths <= 0 {
		projectionMonths = 3
	}

	buckets, err := e.monthlyBuckets(ctx, userID, months)
	if err != nil {
		return nil, fmt.Errorf("cash flow analysis: %w", err)
	}

	trends := deriveTrends(buckets)
	projected := project(buckets, trends, projectionMonths, e.monthKeysAhead(projectionMonths))

	return &CashFlow{
		Historical:      buckets,
		Projected:       projected,
		Trends:          trends,
		Recommendations: cashFlowRecommendations(buckets, trends),
	}, nil
}

// monthlyBuckets aggregates transactions into one bucket per calendar
// month over the trailing window, oldest first. Months with no
// transactions still appear, zero-valued.
func (e *Engine) monthlyBuckets(ctx context.Context, userID string, back int) ([]MonthlyBucket, error) {
	start, end := e.monthWindow(back)
	txns, err := e.src.Transactions(ctx, userID, start, end)
	if err != nil {
		return nil, err
	}

	keys := e.monthKeys(back)
	index := make(map[string]int, len(keys))
	buckets := make([]MonthlyBucket, len(keys))
	for i, key := range keys {
		index[key] = i
		buckets[i] = MonthlyBucket{MonthKey: key}
	}

	for _, tx := range txns {
		i, ok := index[monthKey(tx.Date)]
		if !ok {
			continue
		}
		if tx.IsExpense() {
			buckets[i].Expenses += tx.ExpenseAmount()
		} else {
			buckets[i].Income += tx.Amount
		}
	}
	for i := range buckets {
		buckets[i].NetFlow = buckets[i].Income - buckets[i].Expenses
	}
	return buckets, nil
}

// monthKeysAhead lists the YYYY-MM keys of the n months after the current
// one.
func (e *Engine) monthKeysAhead(n int) []string {
	now := e.now()
	first := now.AddDate(0, 0, -(now.Day() - 1))
	keys := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		keys = append(keys, monthKey(first.AddDate(0, i, 0)))
	}
	return keys
}

func deriveTrends(buckets []MonthlyBucket) CashFlowTrends {
	if len(buckets) == 0 {
		return CashFlowTrends{}
	}
	incomes := make([]float64, len(buckets))
	for i, b := range buckets {
		incomes[i] = b.Income
	}
	first, last := buckets[0], buckets[len(buckets)-1]
	return CashFlowTrends{
		IncomeGrowth:  percentChange(first.Income, last.Income),
		ExpenseGrowth: percentChange(first.Expenses, last.Expenses),
		Volatility:    coefficientOfVariation(incomes),
	}
}

// project extrapolates each future month from the historical averages,
// compounding the observed annualized growth at a flat monthly rate.
func project(buckets []MonthlyBucket, trends CashFlowTrends, n int, keys []string) []MonthlyBucket {
	var avgIncome, avgExpenses float64
	if len(buckets) > 0 {
		for _, b := range buckets {
			avgIncome += b.Income
			avgExpenses += b.Expenses
		}
		avgIncome /= float64(len(buckets))
		avgExpenses /= float64(len(buckets))
	}

	projected := make([]MonthlyBucket, 0, n)
	for i := 0; i < n; i++ {
		income := avgIncome * (1 + trends.IncomeGrowth/100/12)
		expenses := avgExpenses * (1 + trends.ExpenseGrowth/100/12)
		projected = append(projected, MonthlyBucket{
			MonthKey: keys[i],
			Income:   income,
			Expenses: expenses,
			NetFlow:  income - expenses,
		})
	}
	return projected
}

// cashFlowRecommendations applies four independent rules; any subset may
// fire.
func cashFlowRecommendations(buckets []MonthlyBucket, trends CashFlowTrends) []string {
	recs := []string{}
	if trends.IncomeGrowth < 0 {
		recs = append(recs, "Your income is declining. Consider diversifying your income sources.")
	}
	if trends.ExpenseGrowth > trends.IncomeGrowth {
		recs = append(recs, "Your expenses are growing faster than your income. Review your spending to keep the gap from widening.")
	}
	if trends.Volatility > 20 {
		recs = append(recs, "Your income is volatile. Build a larger emergency fund to smooth out the swings.")
	}
	var netFlows []float64
	for _, b := range buckets {
		netFlows = append(netFlows, b.NetFlow)
	}
	if mean(netFlows) < 0 {
		recs = append(recs, "You are spending more than you earn on average. Look for expenses to reduce.")
	}
	return recs
}
