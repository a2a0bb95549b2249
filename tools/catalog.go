package tools

import (
	"github.com/moneylens/moneylens/core"
)

// Catalog returns the definitions for all financial tools. The list is
// fixed and ordered; it is sent verbatim to the model on every round.
func Catalog() []core.ToolDefinition {
	return []core.ToolDefinition{
		// Account and balance reads
		{
			Name:        "get_net_worth",
			Description: "Get the user's total net worth: assets, liabilities, and the difference.",
			InputSchema: ObjectSchema(map[string]interface{}{}),
		},
		{
			Name:        "get_account_balances",
			Description: "Get the balance of every account the user holds, manual and linked.",
			InputSchema: ObjectSchema(map[string]interface{}{}),
		},

		// Transaction queries
		{
			Name:        "get_spending_by_category",
			Description: "Get total spending grouped by category over a time period.",
			InputSchema: ObjectSchema(map[string]interface{}{
				"period":   StringEnumProperty("Lookback period", "week", "month", "quarter", "year"),
				"category": StringProperty("Optional: filter to categories containing this text"),
			}, "period"),
		},
		{
			Name:        "get_recent_transactions",
			Description: "Get the user's most recent transactions, optionally filtered.",
			InputSchema: ObjectSchema(map[string]interface{}{
				"limit":      IntegerProperty("Number of transactions to return (default: 10)"),
				"category":   StringProperty("Optional: filter to categories containing this text"),
				"merchant":   StringProperty("Optional: filter to merchants containing this text"),
				"amount_min": NumberProperty("Optional: minimum transaction amount"),
				"amount_max": NumberProperty("Optional: maximum transaction amount"),
			}),
		},
		{
			Name:        "search_transactions_by_merchant",
			Description: "Search the user's transactions by merchant name and total what was spent there.",
			InputSchema: ObjectSchema(map[string]interface{}{
				"merchant": StringProperty("Merchant name to search for (e.g., 'Starbucks')"),
				"period":   StringEnumProperty("Lookback period (default: month)", "week", "month", "quarter", "year"),
				"limit":    IntegerProperty("Maximum transactions to return (default: 50)"),
			}, "merchant"),
		},
		{
			Name:        "get_monthly_summary",
			Description: "Get income, expenses, and savings for one calendar month.",
			InputSchema: ObjectSchema(map[string]interface{}{
				"month": StringProperty("Month in YYYY-MM format (default: current month)"),
			}),
		},

		// Derived analytics
		{
			Name:        "get_debt_to_income_ratio",
			Description: "Calculate the user's debt-to-income ratio with a risk assessment.",
			InputSchema: ObjectSchema(map[string]interface{}{
				"annual_income": NumberProperty("Optional: annual income; estimated from recent inflows when omitted"),
			}),
		},
		{
			Name:        "analyze_cash_flow",
			Description: "Analyze historical cash flow and project it forward with recommendations.",
			InputSchema: ObjectSchema(map[string]interface{}{
				"months":            IntegerProperty("Months of history to analyze (default: 6)"),
				"projection_months": IntegerProperty("Months to project forward (default: 3)"),
			}),
		},
		{
			Name:        "analyze_spending_patterns",
			Description: "Analyze spending for category trends, anomalies, savings opportunities, and seasonal patterns.",
			InputSchema: ObjectSchema(map[string]interface{}{
				"analysis_period": StringEnumProperty("Analysis window", "3_months", "6_months", "1_year"),
			}, "analysis_period"),
		},
		{
			Name:        "get_emergency_fund_status",
			Description: "Check how many months of expenses the user's savings would cover.",
			InputSchema: ObjectSchema(map[string]interface{}{
				"target_months": NumberProperty("Months of expenses to target (default: 6)"),
			}),
		},
		{
			Name:        "calculate_financial_health",
			Description: "Calculate a composite 0-100 financial health score with a weighted breakdown.",
			InputSchema: ObjectSchema(map[string]interface{}{}),
		},

		// Documents
		{
			Name:        "search_documents",
			Description: "Search the user's uploaded documents (statements, receipts, tax forms) by name.",
			InputSchema: ObjectSchema(map[string]interface{}{
				"query": StringProperty("Text to match against document names"),
			}, "query"),
		},
	}
}
