// Package analytics computes derived financial metrics from the ledger:
// net worth, category aggregation, cash-flow projection, spending-pattern
// analysis with anomaly detection, debt and emergency-fund ratios, and the
// composite health score. All computations are stateless; every call reads
// a fresh ledger slice and nothing is cached here.
package analytics

import (
	"context"
	"time"

	"github.com/moneylens/moneylens/core"
	"github.com/moneylens/moneylens/ledger"
)

// Source provides the ledger slice the engine computes over.
type Source interface {
	Accounts(ctx context.Context, userID string) ([]ledger.Account, error)
	Transactions(ctx context.Context, userID string, start, end time.Time) ([]ledger.Transaction, error)
}

// Engine computes derived metrics. It holds no per-request state.
type Engine struct {
	src Source
	now func() time.Time
}

// New creates an analytics engine over a ledger source.
func New(src Source) *Engine {
	return &Engine{src: src, now: time.Now}
}

// WithClock overrides the engine's notion of "now". Tests use this to pin
// analysis windows.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// periodDays maps a named lookback period to days.
var periodDays = map[string]int{
	"week":    7,
	"month":   30,
	"quarter": 90,
	"year":    365,
}

// analysisMonths maps a named analysis period to calendar months.
var analysisMonths = map[string]int{
	"3_months": 3,
	"6_months": 6,
	"1_year":   12,
}

// lookback resolves a named period to a [start, now] window.
func (e *Engine) lookback(period string) (time.Time, time.Time, error) {
	days, ok := periodDays[period]
	if !ok {
		return time.Time{}, time.Time{}, &core.ValidationError{Field: "period", Detail: "must be one of week, month, quarter, year"}
	}
	end := e.now()
	return end.AddDate(0, 0, -days), end, nil
}

// monthKey formats a time as the YYYY-MM bucket key.
func monthKey(t time.Time) string {
	return t.Format("2006-01")
}

// monthWindow returns the first instant of the month `back` months before
// now and the exclusive end of the current month.
func (e *Engine) monthWindow(back int) (time.Time, time.Time) {
	now := e.now()
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	start := first.AddDate(0, -(back - 1), 0)
	end := first.AddDate(0, 1, 0)
	return start, end
}

// monthKeys lists the YYYY-MM keys of the window, oldest first.
func (e *Engine) monthKeys(back int) []string {
	start, _ := e.monthWindow(back)
	keys := make([]string, 0, back)
	for i := 0; i < back; i++ {
		keys = append(keys, monthKey(start.AddDate(0, i, 0)))
	}
	return keys
}
