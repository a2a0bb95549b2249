// Package executor dispatches model tool calls to the analytics engine
// and the document searcher. Handler failures never propagate; they come
// back as structured error payloads so an orchestration round can finish
// with partial results.
package executor

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/moneylens/moneylens/analytics"
	"github.com/moneylens/moneylens/core"
	"github.com/moneylens/moneylens/docs"
	"github.com/moneylens/moneylens/tools"
)

// handler runs one tool call. The returned vision target is non-nil only
// when the result should trigger a vision follow-up turn.
type handler func(ctx context.Context, userID string, input json.RawMessage) (interface{}, *core.VisionTarget, error)

// Executor maps catalog tool names to typed handlers. The mapping is
// validated at construction and fixed afterwards.
type Executor struct {
	handlers map[string]handler
	log      zerolog.Logger
}

// New builds an executor over the analytics engine and document searcher.
// It fails if the tool catalog and the registered handler set diverge, so
// a catalog entry without an implementation is caught at startup rather
// than on first call.
func New(engine *analytics.Engine, searcher docs.Searcher, log zerolog.Logger) (*Executor, error) {
	e := &Executor{
		handlers: make(map[string]handler),
		log:      log,
	}
	e.register(engine, searcher)

	catalog := tools.Catalog()
	if len(catalog) != len(e.handlers) {
		return nil, fmt.Errorf("tool catalog has %d entries but %d handlers are registered", len(catalog), len(e.handlers))
	}
	for _, def := range catalog {
		if _, ok := e.handlers[def.Name]; !ok {
			return nil, fmt.Errorf("tool %q has no registered handler", def.Name)
		}
	}
	return e, nil
}

// Execute runs one tool call and returns exactly one result, matched to
// the call by id. Panics and errors are absorbed into the result.
func (e *Executor) Execute(ctx context.Context, userID string, call core.ToolCall) (result core.ToolResult) {
	result = core.ToolResult{ToolCallID: call.ID}

	defer func() {
		if r := recover(); r != nil {
			e.log.Error().Str("user_id", userID).Str("tool", call.Name).Interface("panic", r).Msg("tool handler panicked")
			result = core.ToolResult{ToolCallID: call.ID, Error: "Failed to execute function"}
		}
	}()

	h, ok := e.handlers[call.Name]
	if !ok {
		e.log.Warn().Str("user_id", userID).Str("tool", call.Name).Msg("unknown tool requested")
		result.Error = fmt.Sprintf("Unknown function: %s", call.Name)
		return result
	}

	payload, vision, err := h(ctx, userID, call.Input)
	if err != nil {
		e.log.Error().Err(err).Str("user_id", userID).Str("tool", call.Name).Msg("tool execution failed")
		result.Error = "Failed to execute function"
		return result
	}

	data, err := json.Marshal(payload)
	if err != nil {
		e.log.Error().Err(err).Str("user_id", userID).Str("tool", call.Name).Msg("tool result not serializable")
		result.Error = "Failed to execute function"
		return result
	}

	result.Data = data
	result.Vision = vision
	return result
}

func (e *Executor) register(engine *analytics.Engine, searcher docs.Searcher) {
	e.handlers["get_net_worth"] = func(ctx context.Context, userID string, _ json.RawMessage) (interface{}, *core.VisionTarget, error) {
		out, err := engine.NetWorth(ctx, userID)
		return out, nil, err
	}

	e.handlers["get_account_balances"] = func(ctx context.Context, userID string, _ json.RawMessage) (interface{}, *core.VisionTarget, error) {
		out, err := engine.AccountBalances(ctx, userID)
		return out, nil, err
	}

	e.handlers["get_spending_by_category"] = func(ctx context.Context, userID string, input json.RawMessage) (interface{}, *core.VisionTarget, error) {
		var args struct {
			Period   string `json:"period"`
			Category string `json:"category"`
		}
		if err := unmarshalArgs(input, &args); err != nil {
			return nil, nil, err
		}
		if args.Period == "" {
			args.Period = "month"
		}
		out, err := engine.SpendingByCategory(ctx, userID, args.Period, args.Category)
		return out, nil, err
	}

	e.handlers["get_recent_transactions"] = func(ctx context.Context, userID string, input json.RawMessage) (interface{}, *core.VisionTarget, error) {
		var args struct {
			Limit     int      `json:"limit"`
			Category  string   `json:"category"`
			Merchant  string   `json:"merchant"`
			AmountMin *float64 `json:"amount_min"`
			AmountMax *float64 `json:"amount_max"`
		}
		if err := unmarshalArgs(input, &args); err != nil {
			return nil, nil, err
		}
		out, err := engine.RecentTransactions(ctx, userID, args.Limit, analytics.TransactionFilters{
			Category:  args.Category,
			Merchant:  args.Merchant,
			AmountMin: args.AmountMin,
			AmountMax: args.AmountMax,
		})
		return out, nil, err
	}

	e.handlers["search_transactions_by_merchant"] = func(ctx context.Context, userID string, input json.RawMessage) (interface{}, *core.VisionTarget, error) {
		var args struct {
			Merchant string `json:"merchant"`
			Period   string `json:"period"`
			Limit    int    `json:"limit"`
		}
		if err := unmarshalArgs(input, &args); err != nil {
			return nil, nil, err
		}
		out, err := engine.SearchByMerchant(ctx, userID, args.Merchant, args.Period, args.Limit)
		return out, nil, err
	}

	e.handlers["get_monthly_summary"] = func(ctx context.Context, userID string, input json.RawMessage) (interface{}, *core.VisionTarget, error) {
		var args struct {
			Month string `json:"month"`
		}
		if err := unmarshalArgs(input, &args); err != nil {
			return nil, nil, err
		}
		out, err := engine.MonthlySummary(ctx, userID, args.Month)
		return out, nil, err
	}

	e.handlers["get_debt_to_income_ratio"] = func(ctx context.Context, userID string, input json.RawMessage) (interface{}, *core.VisionTarget, error) {
		var args struct {
			AnnualIncome float64 `json:"annual_income"`
		}
		if err := unmarshalArgs(input, &args); err != nil {
			return nil, nil, err
		}
		out, err := engine.DebtToIncomeRatio(ctx, userID, args.AnnualIncome)
		return out, nil, err
	}

	e.handlers["analyze_cash_flow"] = func(ctx context.Context, userID string, input json.RawMessage) (interface{}, *core.VisionTarget, error) {
		var args struct {
			Months           int `json:"months"`
			ProjectionMonths int `json:"projection_months"`
		}
		if err := unmarshalArgs(input, &args); err != nil {
			return nil, nil, err
		}
		out, err := engine.CashFlowAnalysis(ctx, userID, args.Months, args.ProjectionMonths)
		return out, nil, err
	}

	e.handlers["analyze_spending_patterns"] = func(ctx context.Context, userID string, input json.RawMessage) (interface{}, *core.VisionTarget, error) {
		var args struct {
			AnalysisPeriod string `json:"analysis_period"`
		}
		if err := unmarshalArgs(input, &args); err != nil {
			return nil, nil, err
		}
		if args.AnalysisPeriod == "" {
			args.AnalysisPeriod = "6_months"
		}
		out, err := engine.SpendingPatternAnalysis(ctx, userID, args.AnalysisPeriod)
		return out, nil, err
	}

	e.handlers["get_emergency_fund_status"] = func(ctx context.Context, userID string, input json.RawMessage) (interface{}, *core.VisionTarget, error) {
		var args struct {
			TargetMonths float64 `json:"target_months"`
		}
		if err := unmarshalArgs(input, &args); err != nil {
			return nil, nil, err
		}
		out, err := engine.EmergencyFundStatus(ctx, userID, args.TargetMonths)
		return out, nil, err
	}

	e.handlers["calculate_financial_health"] = func(ctx context.Context, userID string, _ json.RawMessage) (interface{}, *core.VisionTarget, error) {
		out, err := engine.FinancialHealthScore(ctx, userID)
		return out, nil, err
	}

	e.handlers["search_documents"] = func(ctx context.Context, userID string, input json.RawMessage) (interface{}, *core.VisionTarget, error) {
		var args struct {
			Query string `json:"query"`
		}
		if err := unmarshalArgs(input, &args); err != nil {
			return nil, nil, err
		}

		matches, err := searcher.Search(ctx, userID, args.Query)
		if err != nil {
			return nil, nil, err
		}

		payload := map[string]interface{}{"documents": matches}
		if len(matches) == 0 {
			return payload, nil, nil
		}

		// The first match is handed back to the model on a vision turn.
		first := matches[0]
		payload["next_step"] = "vision_read"
		payload["url"] = first.URL
		return payload, &core.VisionTarget{URL: first.URL, FileType: first.FileType}, nil
	}
}

// unmarshalArgs decodes tool-call input, treating absent input as empty
// arguments.
func unmarshalArgs(input json.RawMessage, into interface{}) error {
	if len(input) == 0 {
		return nil
	}
	return json.Unmarshal(input, into)
}
