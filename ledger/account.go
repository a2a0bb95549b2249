package ledger

import "context"

// AccountType classifies an account for net-worth bucketing.
type AccountType string

const (
	TypeChecking   AccountType = "checking"
	TypeSavings    AccountType = "savings"
	TypeCash       AccountType = "cash"
	TypeInvestment AccountType = "investment"
	TypeRetirement AccountType = "retirement"
	TypeRealEstate AccountType = "real_estate"
	TypeVehicle    AccountType = "vehicle"
	TypeCredit     AccountType = "credit"
	TypeLoan       AccountType = "loan"
	TypeMortgage   AccountType = "mortgage"
)

// Account is a manual or linked account. Linked accounts carry the access
// token used to query the bank gateway; manual accounts carry a
// user-maintained balance.
type Account struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Type        AccountType `json:"type"`
	Balance     float64     `json:"balance"`
	AccessToken string      `json:"-"`
	Manual      bool        `json:"manual"`
}

// IsLiquid reports whether the balance counts as liquid holdings.
func (a Account) IsLiquid() bool {
	return a.Type == TypeChecking || a.Type == TypeSavings || a.Type == TypeCash
}

// IsInvestment reports whether the balance counts as investment holdings.
func (a Account) IsInvestment() bool {
	return a.Type == TypeInvestment || a.Type == TypeRetirement
}

// IsReal reports whether the balance counts as real (physical) holdings.
func (a Account) IsReal() bool {
	return a.Type == TypeRealEstate || a.Type == TypeVehicle
}

// IsLiability reports whether the balance is owed rather than owned.
func (a Account) IsLiability() bool {
	return a.Type == TypeCredit || a.Type == TypeLoan || a.Type == TypeMortgage
}

// AccountStore provides the accounts registered for a user. Credential
// storage and linking flows live behind this interface.
type AccountStore interface {
	Accounts(ctx context.Context, userID string) ([]Account, error)
}

// MemoryAccounts is an in-memory AccountStore, used for tests and local
// development.
type MemoryAccounts struct {
	byUser map[string][]Account
}

// NewMemoryAccounts creates an empty in-memory account store.
func NewMemoryAccounts() *MemoryAccounts {
	return &MemoryAccounts{byUser: make(map[string][]Account)}
}

// Add registers an account for a user.
func (m *MemoryAccounts) Add(userID string, acct Account) {
	m.byUser[userID] = append(m.byUser[userID], acct)
}

// Accounts returns the accounts registered for a user.
func (m *MemoryAccounts) Accounts(_ context.Context, userID string) ([]Account, error) {
	return m.byUser[userID], nil
}
