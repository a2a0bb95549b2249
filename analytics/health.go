package analytics

import (
	"context"
	"fmt"
	"math"
)

// Component weights of the health score. They sum to 1.0.
const (
	weightEmergencyFund   = 0.25
	weightDebtToIncome    = 0.25
	weightSavingsRate     = 0.25
	weightNetWorthGrowth  = 0.15
	weightBudgetAdherence = 0.10
)

// FinancialHealthScore composes the other analytics into a single weighted
// 0-100 assessment with per-component recommendations.
func (e *Engine) FinancialHealthScore(ctx context.Context, userID string) (*HealthScore, error) {
	emergency, err := e.EmergencyFundStatus(ctx, userID, 6)
	if err != nil {
		return nil, fmt.Errorf("health score: %w", err)
	}
	debt, err := e.DebtToIncomeRatio(ctx, userID, 0)
	if err != nil {
		return nil, fmt.Errorf("health score: %w", err)
	}
	cashFlow, err := e.CashFlowAnalysis(ctx, userID, 3, 1)
	if err != nil {
		return nil, fmt.Errorf("health score: %w", err)
	}
	patterns, err := e.SpendingPatternAnalysis(ctx, userID, "3_months")
	if err != nil {
		return nil, fmt.Errorf("health score: %w", err)
	}
	netWorth, err := e.NetWorth(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("health score: %w", err)
	}

	efScore := math.Min(100, emergency.MonthsCovered/6*100)
	debtScore := math.Max(0, 100-debt.Ratio*2)
	savingsScore := savingsRateScore(cashFlow.Historical)

	// Sign split on current net worth, not a real growth rate.
	nwScore := 25.0
	if netWorth.NetWorth > 0 {
		nwScore = 75.0
	}

	var volatilities []float64
	for _, tr := range patterns.CategoryTrends {
		volatilities = append(volatilities, tr.VolatilityPercent)
	}
	budgetScore := math.Max(0, 100-mean(volatilities))

	overall := efScore*weightEmergencyFund +
		debtScore*weightDebtToIncome +
		savingsScore*weightSavingsRate +
		nwScore*weightNetWorthGrowth +
		budgetScore*weightBudgetAdherence

	recs := []string{}
	if efScore < 50 {
		recs = append(recs, "Grow your emergency fund toward six months of expenses.")
	}
	if debtScore < 60 {
		recs = append(recs, "Pay down debt to bring your debt-to-income ratio under control.")
	}
	if savingsScore < 40 {
		recs = append(recs, "Increase your savings rate by widening the gap between income and spending.")
	}
	if budgetScore < 60 {
		recs = append(recs, "Your spending varies a lot month to month. A budget would make it more predictable.")
	}

	var risk string
	switch {
	case overall < 40:
		risk = "high"
	case overall < 70:
		risk = "medium"
	default:
		risk = "low"
	}

	return &HealthScore{
		OverallScore: overall,
		Breakdown: HealthBreakdown{
			EmergencyFund:   ScoreComponent{Score: efScore, Weight: weightEmergencyFund},
			DebtToIncome:    ScoreComponent{Score: debtScore, Weight: weightDebtToIncome},
			SavingsRate:     ScoreComponent{Score: savingsScore, Weight: weightSavingsRate},
			NetWorthGrowth:  ScoreComponent{Score: nwScore, Weight: weightNetWorthGrowth},
			BudgetAdherence: ScoreComponent{Score: budgetScore, Weight: weightBudgetAdherence},
		},
		Recommendations: recs,
		RiskLevel:       risk,
	}, nil
}

// savingsRateScore averages the per-bucket savings rate (net flow as a
// percent of income), scales it by five, and clamps to [0,100].
func savingsRateScore(buckets []MonthlyBucket) float64 {
	rates := make([]float64, 0, len(buckets))
	for _, b := range buckets {
		rate := 0.0
		if b.Income > 0 {
			rate = b.NetFlow / b.Income * 100
		}
		rates = append(rates, rate)
	}
	return clamp(mean(rates)*5, 0, 100)
}
