package ledger

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moneylens/moneylens/core"
)

func TestNormalizeInvertsSign(t *testing.T) {
	// The gateway encodes expenses positive, income negative.
	expense := normalize(gatewayTransaction{
		TransactionID: "t1",
		Date:          "2025-06-01",
		Amount:        42.50,
		MerchantName:  "Grocer",
		Category:      []string{"Food and Drink", "Groceries"},
	})
	assert.InDelta(t, -42.50, expense.Amount, 0.001)
	assert.True(t, expense.IsExpense())
	assert.InDelta(t, 42.50, expense.ExpenseAmount(), 0.001)
	assert.Equal(t, "Food and Drink", expense.Category)
	assert.Equal(t, []string{"Food and Drink", "Groceries"}, expense.RawCategoryHints)

	income := normalize(gatewayTransaction{TransactionID: "t2", Date: "2025-06-02", Amount: -3000})
	assert.InDelta(t, 3000, income.Amount, 0.001)
	assert.False(t, income.IsExpense())
	assert.Zero(t, income.ExpenseAmount())
}

func TestNormalizeFallbacks(t *testing.T) {
	tx := normalize(gatewayTransaction{TransactionID: "t1", Date: "2025-06-01", Amount: 10, Name: "POS DEBIT 4417"})
	assert.Equal(t, "Uncategorized", tx.Category)
	assert.Equal(t, "POS DEBIT 4417", tx.MerchantName, "merchant falls back to the raw name")
}

// fakeProvider fails per access token.
type fakeProvider struct {
	txns     map[string][]Transaction
	balances map[string][]BalanceSnapshot
	broken   map[string]bool
	calls    int
}

func (p *fakeProvider) GetTransactions(_ context.Context, token string, _, _ time.Time) ([]Transaction, error) {
	p.calls++
	if p.broken[token] {
		return nil, errors.New("gateway timeout")
	}
	return p.txns[token], nil
}

func (p *fakeProvider) GetBalances(_ context.Context, token string) ([]BalanceSnapshot, error) {
	if p.broken[token] {
		return nil, errors.New("gateway timeout")
	}
	return p.balances[token], nil
}

func newTestReader(t *testing.T, accounts AccountStore, provider Provider) *Reader {
	t.Helper()
	r, err := NewReader(accounts, provider, zerolog.Nop())
	require.NoError(t, err)
	return r
}

func linkedAccounts() *MemoryAccounts {
	accounts := NewMemoryAccounts()
	accounts.Add("u1", Account{ID: "a1", Name: "Bank A", Type: TypeChecking, AccessToken: "tok-a"})
	accounts.Add("u1", Account{ID: "a2", Name: "Bank B", Type: TypeChecking, AccessToken: "tok-b"})
	return accounts
}

func TestTransactionsFoldsOnlySuccesses(t *testing.T) {
	provider := &fakeProvider{
		txns: map[string][]Transaction{
			"tok-a": {{ID: "t1", Date: time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC), Amount: -50}},
			"tok-b": {{ID: "t2", Date: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), Amount: -20}},
		},
		broken: map[string]bool{"tok-b": true},
	}
	r := newTestReader(t, linkedAccounts(), provider)

	txns, err := r.Transactions(context.Background(), "u1", time.Time{}, time.Now())
	require.NoError(t, err, "one failing account must not abort the read")
	require.Len(t, txns, 1)
	assert.Equal(t, "t1", txns[0].ID)
}

func TestTransactionsAllSourcesFail(t *testing.T) {
	provider := &fakeProvider{broken: map[string]bool{"tok-a": true, "tok-b": true}}
	r := newTestReader(t, linkedAccounts(), provider)

	_, err := r.Transactions(context.Background(), "u1", time.Time{}, time.Now())
	assert.ErrorIs(t, err, core.ErrDataUnavailable)
}

func TestTransactionsSortedAscending(t *testing.T) {
	provider := &fakeProvider{
		txns: map[string][]Transaction{
			"tok-a": {{ID: "newer", Date: time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)}},
			"tok-b": {{ID: "older", Date: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)}},
		},
	}
	r := newTestReader(t, linkedAccounts(), provider)

	txns, err := r.Transactions(context.Background(), "u1", time.Time{}, time.Now())
	require.NoError(t, err)
	require.Len(t, txns, 2)
	assert.Equal(t, "older", txns[0].ID)
	assert.Equal(t, "newer", txns[1].ID)
}

func TestTransactionsNoLinkedAccounts(t *testing.T) {
	accounts := NewMemoryAccounts()
	accounts.Add("u1", Account{ID: "m1", Name: "Cash", Type: TypeCash, Balance: 100, Manual: true})
	r := newTestReader(t, accounts, &fakeProvider{})

	txns, err := r.Transactions(context.Background(), "u1", time.Time{}, time.Now())
	require.NoError(t, err, "no sources at all is empty, not unavailable")
	assert.Empty(t, txns)
}

func TestAccountsMergesManualAndLinked(t *testing.T) {
	accounts := NewMemoryAccounts()
	accounts.Add("u1", Account{ID: "m1", Name: "House", Type: TypeRealEstate, Balance: 300000, Manual: true})
	accounts.Add("u1", Account{ID: "a1", Name: "Bank A", Type: TypeChecking, AccessToken: "tok-a"})

	provider := &fakeProvider{balances: map[string][]BalanceSnapshot{
		"tok-a": {
			{Name: "Everyday Checking", Type: "checking", Balance: 1500},
			{Name: "Linked Savings", Type: "savings", Balance: 9000},
		},
	}}
	r := newTestReader(t, accounts, provider)

	got, err := r.Accounts(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, got, 3, "manual account plus both linked balances")
	assert.Equal(t, "House", got[0].Name)
	assert.Equal(t, TypeSavings, got[2].Type)
}

func TestAccountsAllLinkedFail(t *testing.T) {
	accounts := NewMemoryAccounts()
	accounts.Add("u1", Account{ID: "a1", Name: "Bank A", Type: TypeChecking, AccessToken: "tok-a"})
	provider := &fakeProvider{broken: map[string]bool{"tok-a": true}}
	r := newTestReader(t, accounts, provider)

	_, err := r.Accounts(context.Background(), "u1")
	assert.ErrorIs(t, err, core.ErrDataUnavailable)
}

func TestGatewayClientRetriesServerErrors(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"transactions": [{"transaction_id": "t1", "date": "2025-06-01", "amount": 25.0, "merchant_name": "Cafe", "category": ["Food"]}]}`))
	}))
	defer srv.Close()

	client := NewGatewayClient(GatewayConfig{BaseURL: srv.URL, Timeout: time.Second})
	txns, err := client.GetTransactions(context.Background(), "tok", time.Now().AddDate(0, -1, 0), time.Now())
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	require.Len(t, txns, 1)
	assert.InDelta(t, -25.0, txns[0].Amount, 0.001, "gateway sign is inverted on the way in")
}

func TestGatewayClientDoesNotRetryClientErrors(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := NewGatewayClient(GatewayConfig{BaseURL: srv.URL, Timeout: time.Second})
	_, err := client.GetBalances(context.Background(), "tok")
	require.Error(t, err)
	assert.Equal(t, 1, attempts, "4xx is permanent")
}
