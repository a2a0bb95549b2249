package ledger

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/dgraph-io/ristretto"
	"github.com/rs/zerolog"

	"github.com/moneylens/moneylens/core"
)

const cacheTTL = 2 * time.Minute

// fetchResult is the outcome of one linked-account fetch. Failures stay in
// the list so the aggregation step can fold only the successes; a failing
// account contributes nothing rather than aborting the read.
type fetchResult struct {
	account Account
	txns    []Transaction
	err     error
}

// Reader aggregates ledger data across all of a user's accounts. Linked
// accounts are fetched one at a time from the gateway; manual accounts are
// served from the account store.
type Reader struct {
	accounts AccountStore
	provider Provider
	cache    *ristretto.Cache
	log      zerolog.Logger
}

// NewReader creates a Reader with a short-TTL read cache in front of the
// gateway.
func NewReader(accounts AccountStore, provider Provider, log zerolog.Logger) (*Reader, error) {
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 10_000,
		MaxCost:     32 << 20,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("create ledger cache: %w", err)
	}

	return &Reader{
		accounts: accounts,
		provider: provider,
		cache:    cache,
		log:      log,
	}, nil
}

// Accounts returns all of a user's accounts with current balances. Linked
// accounts whose balance fetch fails are dropped from the result.
func (r *Reader) Accounts(ctx context.Context, userID string) ([]Account, error) {
	registered, err := r.accounts.Accounts(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}

	var out []Account
	failures := 0
	linked := 0
	for _, acct := range registered {
		if acct.Manual {
			out = append(out, acct)
			continue
		}
		linked++

		snapshots, err := r.balances(ctx, acct.AccessToken)
		if err != nil {
			failures++
			r.log.Warn().Err(err).
				Str("user_id", userID).
				Str("account", acct.Name).
				Msg("balance fetch failed, skipping account")
			continue
		}
		for _, snap := range snapshots {
			out = append(out, Account{
				ID:      acct.ID,
				Name:    snap.Name,
				Type:    AccountType(snap.Type),
				Balance: snap.Balance,
			})
		}
	}

	if len(out) == 0 && linked > 0 && failures == linked {
		return nil, core.ErrDataUnavailable
	}
	return out, nil
}

// Transactions returns all transactions for a user within [start, end],
// sorted by date ascending. Accounts that fail to fetch contribute nothing;
// only when every linked account fails is the read reported as unavailable.
func (r *Reader) Transactions(ctx context.Context, userID string, start, end time.Time) ([]Transaction, error) {
	registered, err := r.accounts.Accounts(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}

	results := r.fanOut(ctx, userID, registered, start, end)

	var txns []Transaction
	fetched, failed := 0, 0
	for _, res := range results {
		if res.err != nil {
			failed++
			r.log.Warn().Err(res.err).
				Str("user_id", userID).
				Str("account", res.account.Name).
				Msg("transaction fetch failed, continuing without account")
			continue
		}
		fetched++
		txns = append(txns, res.txns...)
	}

	if fetched == 0 && failed > 0 {
		return nil, core.ErrDataUnavailable
	}

	sort.Slice(txns, func(i, j int) bool { return txns[i].Date.Before(txns[j].Date) })
	return txns, nil
}

// fanOut fetches each linked account sequentially and records the per-account
// outcome. The fold over successes happens in the caller.
func (r *Reader) fanOut(ctx context.Context, userID string, accounts []Account, start, end time.Time) []fetchResult {
	var results []fetchResult
	for _, acct := range accounts {
		if acct.Manual || acct.AccessToken == "" {
			continue
		}

		key := fmt.Sprintf("txns:%s:%s:%s", acct.AccessToken, start.Format("2006-01-02"), end.Format("2006-01-02"))
		if cached, ok := r.cache.Get(key); ok {
			results = append(results, fetchResult{account: acct, txns: cached.([]Transaction)})
			continue
		}

		txns, err := r.provider.GetTransactions(ctx, acct.AccessToken, start, end)
		if err != nil {
			results = append(results, fetchResult{account: acct, err: err})
			continue
		}
		r.cache.SetWithTTL(key, txns, int64(len(txns)+1), cacheTTL)
		results = append(results, fetchResult{account: acct, txns: txns})
	}
	return results
}

func (r *Reader) balances(ctx context.Context, accessToken string) ([]BalanceSnapshot, error) {
	key := "bal:" + accessToken
	if cached, ok := r.cache.Get(key); ok {
		return cached.([]BalanceSnapshot), nil
	}

	snapshots, err := r.provider.GetBalances(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	r.cache.SetWithTTL(key, snapshots, int64(len(snapshots)+1), cacheTTL)
	return snapshots, nil
}
