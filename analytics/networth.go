package analytics

import (
	"context"
	"fmt"
)

// NetWorth sums assets (liquid + investment + real holdings) and
// liabilities across all of the user's accounts.
func (e *Engine) NetWorth(ctx context.Context, userID string) (*NetWorth, error) {
	accounts, err := e.src.Accounts(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("net worth: %w", err)
	}

	var assets, liabilities float64
	for _, acct := range accounts {
		switch {
		case acct.IsLiability():
			liabilities += abs(acct.Balance)
		case acct.IsLiquid(), acct.IsInvestment(), acct.IsReal():
			assets += acct.Balance
		}
	}

	return &NetWorth{
		NetWorth:    assets - liabilities,
		Assets:      assets,
		Liabilities: liabilities,
	}, nil
}

// AccountBalances flattens every account into a balance row. No
// aggregation is applied.
func (e *Engine) AccountBalances(ctx context.Context, userID string) ([]AccountBalance, error) {
	accounts, err := e.src.Accounts(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("account balances: %w", err)
	}

	balances := make([]AccountBalance, 0, len(accounts))
	for _, acct := range accounts {
		balances = append(balances, AccountBalance{
			Name:    acct.Name,
			Balance: acct.Balance,
			Type:    string(acct.Type),
		})
	}
	return balances, nil
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
