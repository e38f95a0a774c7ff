package models

import "time"

// AccountType is the broad category of an account.
type AccountType string

const (
	AccountTypeBank       AccountType = "bank"
	AccountTypeInvestment AccountType = "investment"
	AccountTypeOther      AccountType = "other"
)

// AccountSubtype refines an AccountType. The allowed subtypes depend on the
// type, but storage does not enforce the pairing.
type AccountSubtype string

const (
	AccountSubtypeSavings  AccountSubtype = "savings"
	AccountSubtypeChequing AccountSubtype = "chequing"
	AccountSubtypeNonReg   AccountSubtype = "non-reg"
	AccountSubtypeTFSA     AccountSubtype = "TFSA"
	AccountSubtypeRRSP     AccountSubtype = "RRSP"
	AccountSubtypeOther    AccountSubtype = "other"
)

// TransactionType is the kind of movement a transaction records.
type TransactionType string

const (
	TransactionTypePurchase   TransactionType = "purchase"
	TransactionTypeSale       TransactionType = "sale"
	TransactionTypeWithdrawal TransactionType = "withdrawal"
	TransactionTypeDeposit    TransactionType = "deposit"
	TransactionTypeDividend   TransactionType = "dividend"
	TransactionTypeInterest   TransactionType = "interest"
)

const (
	// AssetCash marks a pure cash movement.
	AssetCash = "_CASH"
	// AssetMixed marks a basket of several assets.
	AssetMixed = "_MIXED"
)

// Owner is the snapshot of the identity taken when the profile was created.
// It is not resynced afterwards.
type Owner struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	PhotoURL string `json:"photoURL,omitempty"`
}

// Profile is the root record of a signed-in user.
//
// Accounts is populated by a separate fetch. A nil map and an empty map mean
// the same thing to every consumer.
type Profile struct {
	ID       string              `json:"id"`
	Created  time.Time           `json:"created"`
	Updated  time.Time           `json:"updated"`
	Owner    Owner               `json:"owner"`
	Accounts map[string]*Account `json:"accounts,omitempty"`
}

// Account belongs to exactly one profile and owns its transactions, which are
// stored inline in the account document.
type Account struct {
	ID           string         `json:"id"`
	Created      time.Time      `json:"created"`
	Updated      time.Time      `json:"updated"`
	Name         string         `json:"name"`
	Institution  string         `json:"institution"`
	Type         AccountType    `json:"type"`
	Subtype      AccountSubtype `json:"subtype"`
	Currency     string         `json:"currency"`
	Transactions []*Transaction `json:"transactions"`
}

// Transaction is embedded in an account and is never addressed on its own.
type Transaction struct {
	Timestamp     time.Time       `json:"timestamp"`
	Updated       time.Time       `json:"updated"`
	Type          TransactionType `json:"type"`
	Amount        float64         `json:"amount"`
	Currency      string          `json:"currency"`
	AssetName     string          `json:"assetName"`
	AssetQuantity float64         `json:"assetQuantity"`
	Note          string          `json:"note,omitempty"`
}

// AccountCount returns the number of loaded accounts.
func (p *Profile) AccountCount() int {
	if p == nil {
		return 0
	}
	return len(p.Accounts)
}
