// moneylens serves the personal-finance chat API: the analytics engine
// over the user's ledger, exposed to a Claude model as tools.
package main

import (
	"net/http"
	"os"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/joho/godotenv"

	"github.com/moneylens/moneylens/analytics"
	"github.com/moneylens/moneylens/docs"
	"github.com/moneylens/moneylens/engine"
	"github.com/moneylens/moneylens/executor"
	"github.com/moneylens/moneylens/ledger"
	"github.com/moneylens/moneylens/logger"
	"github.com/moneylens/moneylens/server"
	"github.com/moneylens/moneylens/store"
	"github.com/moneylens/moneylens/tools"
)

func main() {
	_ = godotenv.Load()
	log := logger.New()

	anthropicKey := os.Getenv("ANTHROPIC_API_KEY")
	if anthropicKey == "" {
		log.Fatal().Msg("ANTHROPIC_API_KEY environment variable is required")
	}

	gatewayURL := os.Getenv("BANK_GATEWAY_URL")
	if gatewayURL == "" {
		gatewayURL = "https://sandbox.bankgateway.example"
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// The model client is constructed once here and injected; nothing
	// else reads the API key.
	client := anthropic.NewClient(option.WithAPIKey(anthropicKey))

	accounts := ledger.NewMemoryAccounts()
	seedDemoAccounts(accounts)

	provider := ledger.NewGatewayClient(ledger.GatewayConfig{
		BaseURL: gatewayURL,
		APIKey:  os.Getenv("BANK_GATEWAY_API_KEY"),
		Timeout: 30 * time.Second,
	})

	reader, err := ledger.NewReader(accounts, provider, logger.Component(log, "ledger"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize ledger reader")
	}

	searcher := docs.NewMemorySearcher()

	eng := analytics.New(reader)
	exec, err := executor.New(eng, searcher, logger.Component(log, "executor"))
	if err != nil {
		log.Fatal().Err(err).Msg("tool catalog and handlers diverge")
	}

	registry := engine.NewToolRegistry()
	registry.RegisterAll(tools.Catalog()...)

	dbPath := os.Getenv("CHAT_DB_PATH")
	if dbPath == "" {
		dbPath = "chat_history.db"
	}
	var conversations store.Conversations
	sqlStore, err := store.NewSQLiteConversations(dbPath)
	if err != nil {
		log.Warn().Err(err).Msg("sqlite unavailable, conversations will not survive restarts")
		conversations = store.NewMemoryConversations()
	} else {
		defer sqlStore.Close()
		conversations = sqlStore
	}

	orchestrator := engine.New(&client.Messages, exec, registry, conversations, engine.Config{
		Model:     anthropic.Model(os.Getenv("ANTHROPIC_MODEL")),
		MaxTokens: 2048,
	}, logger.Component(log, "engine"))

	srv := server.New(orchestrator, conversations, server.Config{
		AuthFunc: bearerAuth(os.Getenv("API_TOKEN")),
	}, logger.Component(log, "server"))

	if err := srv.Run(":" + port); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

// bearerAuth returns an AuthFunc checking a static bearer token. With no
// token configured every request maps to the demo user.
func bearerAuth(token string) func(r *http.Request) (string, error) {
	if token == "" {
		return nil
	}
	return func(r *http.Request) (string, error) {
		if r.Header.Get("Authorization") != "Bearer "+token {
			return "", errUnauthorized
		}
		return "default-user", nil
	}
}

var errUnauthorized = &authError{}

type authError struct{}

func (*authError) Error() string { return "invalid bearer token" }

// seedDemoAccounts registers a demo portfolio so the assistant has data to
// talk about before real accounts are linked.
func seedDemoAccounts(accounts *ledger.MemoryAccounts) {
	const userID = "default-user"
	accounts.Add(userID, ledger.Account{ID: "acc-checking", Name: "Everyday Checking", Type: ledger.TypeChecking, Balance: 4250.33, Manual: true})
	accounts.Add(userID, ledger.Account{ID: "acc-savings", Name: "Rainy Day Savings", Type: ledger.TypeSavings, Balance: 12800, Manual: true})
	accounts.Add(userID, ledger.Account{ID: "acc-401k", Name: "401(k)", Type: ledger.TypeRetirement, Balance: 38500, Manual: true})
	accounts.Add(userID, ledger.Account{ID: "acc-card", Name: "Travel Card", Type: ledger.TypeCredit, Balance: -1830.45, Manual: true})
}
