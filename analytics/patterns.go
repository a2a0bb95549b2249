package analytics

import (
	"context"
	"fmt"
	"sort"

	"github.com/moneylens/moneylens/core"
	"github.com/moneylens/moneylens/ledger"
)

// SpendingPatternAnalysis derives per-category trends, transaction-level
// anomalies, savings opportunities, and per-month seasonal breakdowns over
// a named analysis period (3_months, 6_months, 1_year).
func (e *Engine) SpendingPatternAnalysis(ctx context.Context, userID, period string) (*SpendingPatterns, error) {
	back, ok := analysisMonths[period]
	if !ok {
		return nil, &core.ValidationError{Field: "analysis_period", Detail: "must be one of 3_months, 6_months, 1_year"}
	}

	start, end := e.monthWindow(back)
	txns, err := e.src.Transactions(ctx, userID, start, end)
	if err != nil {
		return nil, fmt.Errorf("spending pattern analysis: %w", err)
	}

	keys := e.monthKeys(back)
	expenses := make([]ledger.Transaction, 0, len(txns))
	for _, tx := range txns {
		if tx.IsExpense() {
			expenses = append(expenses, tx)
		}
	}

	trends := categoryTrends(expenses, keys)
	return &SpendingPatterns{
		CategoryTrends:   trends,
		Anomalies:        detectAnomalies(expenses),
		Opportunities:    findOpportunities(trends),
		SeasonalPatterns: seasonalPatterns(expenses, keys),
	}, nil
}

// categoryTrends builds a zero-filled monthly series per category and
// derives its trend and volatility.
func categoryTrends(expenses []ledger.Transaction, keys []string) []CategoryTrend {
	index := make(map[string]int, len(keys))
	for i, key := range keys {
		index[key] = i
	}

	series := make(map[string][]float64)
	for _, tx := range expenses {
		i, ok := index[monthKey(tx.Date)]
		if !ok {
			continue
		}
		if _, seen := series[tx.Category]; !seen {
			series[tx.Category] = make([]float64, len(keys))
		}
		series[tx.Category][i] += tx.ExpenseAmount()
	}

	trends := make([]CategoryTrend, 0, len(series))
	for category, monthly := range series {
		trend := 0.0
		if len(monthly) >= 2 {
			trend = percentChange(monthly[0], monthly[len(monthly)-1])
		}
		trends = append(trends, CategoryTrend{
			Category:          category,
			TrendPercent:      trend,
			AvgMonthly:        mean(monthly),
			VolatilityPercent: coefficientOfVariation(monthly),
		})
	}
	sort.Slice(trends, func(i, j int) bool {
		if trends[i].AvgMonthly != trends[j].AvgMonthly {
			return trends[i].AvgMonthly > trends[j].AvgMonthly
		}
		return trends[i].Category < trends[j].Category
	})
	return trends
}

// detectAnomalies flags transactions more than two standard deviations
// above their category mean. The statistics run over individual
// transaction amounts, not monthly buckets. Output is capped to the ten
// largest.
func detectAnomalies(expenses []ledger.Transaction) []Anomaly {
	byCategory := make(map[string][]ledger.Transaction)
	for _, tx := range expenses {
		byCategory[tx.Category] = append(byCategory[tx.Category], tx)
	}

	anomalies := []Anomaly{}
	for category, txns := range byCategory {
		amounts := make([]float64, len(txns))
		for i, tx := range txns {
			amounts[i] = tx.ExpenseAmount()
		}
		threshold := mean(amounts) + 2*popStdDev(amounts)
		for _, tx := range txns {
			if tx.ExpenseAmount() > threshold {
				anomalies = append(anomalies, Anomaly{
					Date:        tx.Date.Format("2006-01-02"),
					Amount:      tx.ExpenseAmount(),
					Category:    category,
					Description: fmt.Sprintf("Unusually large %s purchase at %s", category, tx.MerchantName),
				})
			}
		}
	}

	sort.Slice(anomalies, func(i, j int) bool { return anomalies[i].Amount > anomalies[j].Amount })
	if len(anomalies) > 10 {
		anomalies = anomalies[:10]
	}
	return anomalies
}

// findOpportunities flags categories whose spending is either climbing or
// erratic enough to be reducible. A category can yield both entries.
func findOpportunities(trends []CategoryTrend) []Opportunity {
	opportunities := []Opportunity{}
	for _, tr := range trends {
		if tr.TrendPercent > 10 && tr.AvgMonthly > 100 {
			opportunities = append(opportunities, Opportunity{
				Category:         tr.Category,
				Reason:           fmt.Sprintf("Spending is up %.1f%% over the period", tr.TrendPercent),
				PotentialSavings: tr.AvgMonthly * 0.15,
			})
		}
		if tr.VolatilityPercent > 50 && tr.AvgMonthly > 200 {
			opportunities = append(opportunities, Opportunity{
				Category:         tr.Category,
				Reason:           fmt.Sprintf("Spending varies %.0f%% month to month", tr.VolatilityPercent),
				PotentialSavings: tr.AvgMonthly * 0.10,
			})
		}
	}
	sort.Slice(opportunities, func(i, j int) bool {
		return opportunities[i].PotentialSavings > opportunities[j].PotentialSavings
	})
	return opportunities
}

// seasonalPatterns reports one entry per month in the window with its
// total spend and category breakdown, oldest first.
func seasonalPatterns(expenses []ledger.Transaction, keys []string) []SeasonalPattern {
	index := make(map[string]int, len(keys))
	patterns := make([]SeasonalPattern, len(keys))
	for i, key := range keys {
		index[key] = i
		patterns[i] = SeasonalPattern{MonthKey: key, ByCategory: make(map[string]float64)}
	}

	for _, tx := range expenses {
		i, ok := index[monthKey(tx.Date)]
		if !ok {
			continue
		}
		patterns[i].TotalSpend += tx.ExpenseAmount()
		patterns[i].ByCategory[tx.Category] += tx.ExpenseAmount()
	}
	return patterns
}
