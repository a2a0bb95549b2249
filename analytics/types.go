package analytics

import "github.com/moneylens/moneylens/ledger"

// NetWorth is the asset/liability summary. NetWorth is always
// Assets - Liabilities.
type NetWorth struct {
	NetWorth    float64 `json:"net_worth"`
	Assets      float64 `json:"assets"`
	Liabilities float64 `json:"liabilities"`
}

// AccountBalance is one account's flattened balance row.
type AccountBalance struct {
	Name    string  `json:"name"`
	Balance float64 `json:"balance"`
	Type    string  `json:"type"`
}

// CategorySpend is the aggregated expense total for one category.
type CategorySpend struct {
	Category string  `json:"category"`
	Amount   float64 `json:"amount"`
}

// TransactionFilters narrow a recent-transactions query. All set filters
// are applied conjunctively.
type TransactionFilters struct {
	Category  string   `json:"category,omitempty"`
	Merchant  string   `json:"merchant,omitempty"`
	AmountMin *float64 `json:"amount_min,omitempty"`
	AmountMax *float64 `json:"amount_max,omitempty"`
}

// MerchantSearch is the result of a merchant search. Transactions holds the
// sorted, truncated subset; TotalTransactions counts every match.
type MerchantSearch struct {
	Transactions      []ledger.Transaction `json:"transactions"`
	TotalSpent        float64              `json:"total_spent"`
	TotalTransactions int                  `json:"total_transactions"`
}

// MonthlySummary is income/expense/savings for one calendar month.
type MonthlySummary struct {
	Month    string  `json:"month"`
	Income   float64 `json:"income"`
	Expenses float64 `json:"expenses"`
	Savings  float64 `json:"savings"`
}

// DebtToIncome is the estimated debt-service ratio with an advisory.
type DebtToIncome struct {
	Ratio               float64 `json:"ratio"`
	MonthlyDebtPayments float64 `json:"monthly_debt_payments"`
	MonthlyIncome       float64 `json:"monthly_income"`
	Recommendation      string  `json:"recommendation"`
	RiskLevel           string  `json:"risk_level"`
}

// MonthlyBucket is one calendar month of aggregated flows. NetFlow is
// always Income - Expenses.
type MonthlyBucket struct {
	MonthKey string  `json:"month"` // YYYY-MM
	Income   float64 `json:"income"`
	Expenses float64 `json:"expenses"`
	NetFlow  float64 `json:"net_flow"`
}

// CashFlowTrends summarizes growth and dispersion over the bucket window.
type CashFlowTrends struct {
	IncomeGrowth  float64 `json:"income_growth"`
	ExpenseGrowth float64 `json:"expense_growth"`
	Volatility    float64 `json:"volatility"`
}

// CashFlow is historical buckets plus a simple forward projection.
type CashFlow struct {
	Historical      []MonthlyBucket `json:"historical"`
	Projected       []MonthlyBucket `json:"projected"`
	Trends          CashFlowTrends  `json:"trends"`
	Recommendations []string        `json:"recommendations"`
}

// CategoryTrend describes one category's movement over the analysis window.
// TrendPercent compares the first and last monthly buckets; Volatility is
// the coefficient of variation of the monthly amounts.
type CategoryTrend struct {
	Category          string  `json:"category"`
	TrendPercent      float64 `json:"trend_percent"`
	AvgMonthly        float64 `json:"avg_monthly"`
	VolatilityPercent float64 `json:"volatility_percent"`
}

// Anomaly flags a single transaction whose amount exceeds two standard
// deviations above its category mean within the analysis window.
type Anomaly struct {
	Date        string  `json:"date"`
	Amount      float64 `json:"amount"`
	Category    string  `json:"category"`
	Description string  `json:"description"`
}

// Opportunity is a category flagged as reducible spending.
type Opportunity struct {
	Category         string  `json:"category"`
	Reason           string  `json:"reason"`
	PotentialSavings float64 `json:"potential_savings"`
}

// SeasonalPattern is one month's total spend with its category breakdown.
type SeasonalPattern struct {
	MonthKey   string             `json:"month"`
	TotalSpend float64            `json:"total_spend"`
	ByCategory map[string]float64 `json:"by_category"`
}

// SpendingPatterns is the full pattern-analysis result.
type SpendingPatterns struct {
	CategoryTrends   []CategoryTrend   `json:"category_trends"`
	Anomalies        []Anomaly         `json:"anomalies"`
	Opportunities    []Opportunity     `json:"opportunities"`
	SeasonalPatterns []SeasonalPattern `json:"seasonal_patterns"`
}

// EmergencyFund reports coverage against a months-of-expenses target.
type EmergencyFund struct {
	CurrentFund     float64 `json:"current_fund"`
	MonthlyExpenses float64 `json:"monthly_expenses"`
	MonthsCovered   float64 `json:"months_covered"`
	TargetAmount    float64 `json:"target_amount"`
	Shortfall       float64 `json:"shortfall"`
	Recommendation  string  `json:"recommendation"`
	RiskLevel       string  `json:"risk_level"`
}

// ScoreComponent is one weighted factor of the health score.
type ScoreComponent struct {
	Score  float64 `json:"score"`
	Weight float64 `json:"weight"`
}

// HealthBreakdown holds the five weighted components. Weights sum to 1.0.
type HealthBreakdown struct {
	EmergencyFund   ScoreComponent `json:"emergency_fund"`
	DebtToIncome    ScoreComponent `json:"debt_to_income"`
	SavingsRate     ScoreComponent `json:"savings_rate"`
	NetWorthGrowth  ScoreComponent `json:"net_worth_growth"`
	BudgetAdherence ScoreComponent `json:"budget_adherence"`
}

// HealthScore is the composite financial-health assessment.
type HealthScore struct {
	OverallScore    float64         `json:"overall_score"`
	Breakdown       HealthBreakdown `json:"breakdown"`
	Recommendations []string        `json:"recommendations"`
	RiskLevel       string          `json:"risk_level"`
}
