package analytics

import (
	"context"
	"fmt"
	"math"

	"github.com/moneylens/moneylens/ledger"
)

// EmergencyFundStatus measures savings-account balances against a
// months-of-expenses target. Monthly expenses are estimated from the
// trailing 90 days of spending.
func (e *Engine) EmergencyFundStatus(ctx context.Context, userID string, targetMonths float64) (*EmergencyFund, error) {
	if targetMonths <= 0 {
		targetMonths = 6
	}

	accounts, err := e.src.Accounts(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("emergency fund: %w", err)
	}

	var fund float64
	for _, acct := range accounts {
		if acct.Type == ledger.TypeSavings {
			fund += acct.Balance
		}
	}

	end := e.now()
	txns, err := e.src.Transactions(ctx, userID, end.AddDate(0, 0, -90), end)
	if err != nil {
		return nil, fmt.Errorf("emergency fund: %w", err)
	}
	var spent float64
	for _, tx := range txns {
		spent += tx.ExpenseAmount()
	}
	monthlyExpenses := spent / 3

	var monthsCovered float64
	if monthlyExpenses > 0 {
		monthsCovered = fund / monthlyExpenses
	}
	target := monthlyExpenses * targetMonths

	var recommendation, risk string
	switch {
	case monthsCovered >= targetMonths:
		recommendation = fmt.Sprintf("Your emergency fund covers %.1f months of expenses. You have met your target.", monthsCovered)
		risk = "low"
	case monthsCovered >= 3:
		recommendation = fmt.Sprintf("Your emergency fund covers %.1f months of expenses. Keep contributing until you reach %.0f months.", monthsCovered, targetMonths)
		risk = "medium"
	default:
		recommendation = fmt.Sprintf("Your emergency fund covers only %.1f months of expenses. Build it up as a priority.", monthsCovered)
		risk = "high"
	}

	return &EmergencyFund{
		CurrentFund:     fund,
		MonthlyExpenses: monthlyExpenses,
		MonthsCovered:   monthsCovered,
		TargetAmount:    target,
		Shortfall:       math.Max(0, target-fund),
		Recommendation:  recommendation,
		RiskLevel:       risk,
	}, nil
}
