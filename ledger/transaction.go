// Package ledger reads normalized transaction and balance data for a user
// from the bank gateway and the account store. It owns the sign convention:
// everything downstream sees income as positive and expenses as negative.
package ledger

import (
	"strings"
	"time"
)

// Transaction is a single ledger entry after normalization. Immutable once
// read; analytics never mutates these.
type Transaction struct {
	ID               string    `json:"id"`
	Date             time.Time `json:"date"`
	Amount           float64   `json:"amount"` // positive = inflow, negative = expense
	Category         string    `json:"category"`
	MerchantName     string    `json:"merchant_name"`
	RawCategoryHints []string  `json:"raw_category_hints,omitempty"`
}

// IsExpense reports whether the transaction is an outflow.
func (t Transaction) IsExpense() bool {
	return t.Amount < 0
}

// ExpenseAmount returns the positive magnitude of an expense, 0 for inflows.
func (t Transaction) ExpenseAmount() float64 {
	if t.Amount < 0 {
		return -t.Amount
	}
	return 0
}

// MatchesCategory is a case-insensitive substring match on the category.
func (t Transaction) MatchesCategory(filter string) bool {
	if filter == "" {
		return true
	}
	return strings.Contains(strings.ToLower(t.Category), strings.ToLower(filter))
}

// MatchesMerchant is a case-insensitive substring match on the merchant name.
func (t Transaction) MatchesMerchant(filter string) bool {
	if filter == "" {
		return true
	}
	return strings.Contains(strings.ToLower(t.MerchantName), strings.ToLower(filter))
}

// gatewayTransaction is the wire shape the bank gateway returns. The
// gateway encodes expenses as positive and income as negative amounts.
type gatewayTransaction struct {
	TransactionID string   `json:"transaction_id"`
	Date          string   `json:"date"` // YYYY-MM-DD
	Amount        float64  `json:"amount"`
	MerchantName  string   `json:"merchant_name"`
	Name          string   `json:"name"`
	Category      []string `json:"category"`
}

// normalize converts a gateway transaction to the canonical internal form,
// inverting the amount sign exactly once at ingestion.
func normalize(g gatewayTransaction) Transaction {
	date, _ := time.Parse("2006-01-02", g.Date)

	category := "Uncategorized"
	if len(g.Category) > 0 && g.Category[0] != "" {
		category = g.Category[0]
	}

	merchant := g.MerchantName
	if merchant == "" {
		merchant = g.Name
	}

	return Transaction{
		ID:               g.TransactionID,
		Date:             date,
		Amount:           -g.Amount,
		Category:         category,
		MerchantName:     merchant,
		RawCategoryHints: g.Category,
	}
}
