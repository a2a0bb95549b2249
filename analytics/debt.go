package analytics

import (
	"context"
	"fmt"
)

// minimumPaymentRate is the proxy used for monthly debt service: 3% of
// each liability balance. It is a simplification, not an amortization
// model.
const minimumPaymentRate = 0.03

// DebtToIncomeRatio estimates the monthly debt-service ratio. When
// annualIncome is zero or negative the monthly income is estimated from
// the trailing three months of inflows.
func (e *Engine) DebtToIncomeRatio(ctx context.Context, userID string, annualIncome float64) (*DebtToIncome, error) {
	accounts, err := e.src.Accounts(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("debt to income: %w", err)
	}

	var monthlyDebt float64
	for _, acct := range accounts {
		if acct.IsLiability() {
			monthlyDebt += abs(acct.Balance) * minimumPaymentRate
		}
	}

	var monthlyIncome float64
	if annualIncome > 0 {
		monthlyIncome = annualIncome / 12
	} else {
		monthlyIncome, err = e.trailingMonthlyIncome(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("debt to income: %w", err)
		}
	}

	var ratio float64
	if monthlyIncome > 0 {
		ratio = monthlyDebt / monthlyIncome * 100
	}

	var recommendation, risk string
	switch {
	case ratio <= 20:
		recommendation = "Your debt load is well within a healthy range. Keep payments on schedule."
		risk = "low"
	case ratio <= 36:
		recommendation = "Your debt load is manageable but worth watching. Avoid taking on new debt."
		risk = "medium"
	default:
		recommendation = "Your debt payments take up a large share of your income. Prioritize paying down high-interest balances."
		risk = "high"
	}

	return &DebtToIncome{
		Ratio:               ratio,
		MonthlyDebtPayments: monthlyDebt,
		MonthlyIncome:       monthlyIncome,
		Recommendation:      recommendation,
		RiskLevel:           risk,
	}, nil
}

// trailingMonthlyIncome averages inflows over the trailing 90 days.
func (e *Engine) trailingMonthlyIncome(ctx context.Context, userID string) (float64, error) {
	end := e.now()
	txns, err := e.src.Transactions(ctx, userID, end.AddDate(0, 0, -90), end)
	if err != nil {
		return 0, err
	}
	var total float64
	for _, tx := range txns {
		if !tx.IsExpense() {
			total += tx.Amount
		}
	}
	return total / 3, nil
}
