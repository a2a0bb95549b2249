package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// BalanceSnapshot is a gateway-reported balance for one linked account.
type BalanceSnapshot struct {
	Name    string  `json:"name"`
	Type    string  `json:"type"`
	Balance float64 `json:"balance"`
}

// Provider fetches raw ledger data for one linked account, identified by
// its access token.
type Provider interface {
	GetTransactions(ctx context.Context, accessToken string, start, end time.Time) ([]Transaction, error)
	GetBalances(ctx context.Context, accessToken string) ([]BalanceSnapshot, error)
}

// GatewayClient implements Provider against the bank aggregation gateway
// over HTTP. Transient failures (network errors, 5xx) are retried with
// exponential backoff; 4xx responses are not.
type GatewayClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	maxRetries uint64
}

// GatewayConfig configures the gateway client.
type GatewayConfig struct {
	// BaseURL is the gateway URL (e.g., "https://gateway.moneylens.dev").
	BaseURL string

	// APIKey authenticates this service to the gateway.
	APIKey string

	// Timeout is the per-request HTTP timeout.
	Timeout time.Duration

	// MaxRetries bounds retry attempts per call. Defaults to 3.
	MaxRetries uint64
}

// NewGatewayClient creates a new gateway-backed provider.
func NewGatewayClient(cfg GatewayConfig) *GatewayClient {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	retries := cfg.MaxRetries
	if retries == 0 {
		retries = 3
	}

	return &GatewayClient{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
		maxRetries: retries,
	}
}

// GetTransactions fetches raw transactions for a date range and normalizes
// them to the canonical sign convention.
func (c *GatewayClient) GetTransactions(ctx context.Context, accessToken string, start, end time.Time) ([]Transaction, error) {
	req := map[string]string{
		"access_token": accessToken,
		"start_date":   start.Format("2006-01-02"),
		"end_date":     end.Format("2006-01-02"),
	}

	var resp struct {
		Transactions []gatewayTransaction `json:"transactions"`
	}
	if err := c.doRequest(ctx, "/v1/transactions/get", req, &resp); err != nil {
		return nil, fmt.Errorf("fetch transactions: %w", err)
	}

	txns := make([]Transaction, 0, len(resp.Transactions))
	for _, g := range resp.Transactions {
		txns = append(txns, normalize(g))
	}
	return txns, nil
}

// GetBalances fetches current balances for all accounts behind one token.
func (c *GatewayClient) GetBalances(ctx context.Context, accessToken string) ([]BalanceSnapshot, error) {
	req := map[string]string{"access_token": accessToken}

	var resp struct {
		Accounts []BalanceSnapshot `json:"accounts"`
	}
	if err := c.doRequest(ctx, "/v1/accounts/balance/get", req, &resp); err != nil {
		return nil, fmt.Errorf("fetch balances: %w", err)
	}
	return resp.Accounts, nil
}

func (c *GatewayClient) doRequest(ctx context.Context, endpoint string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(payload))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-API-Key", c.apiKey)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}

		if resp.StatusCode >= 500 {
			return fmt.Errorf("gateway returned %d: %s", resp.StatusCode, string(respBody))
		}
		if resp.StatusCode >= 400 {
			return backoff.Permanent(fmt.Errorf("gateway returned %d: %s", resp.StatusCode, string(respBody)))
		}

		if err := json.Unmarshal(respBody, out); err != nil {
			return backoff.Permanent(fmt.Errorf("decode response: %w", err))
		}
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), c.maxRetries), ctx)
	return backoff.Retry(operation, policy)
}
