package models

import "sort"

// Option pairs a stored value with its display name.
type Option[T ~string] struct {
	Name  string `json:"name"`
	Value T      `json:"value"`
}

// AccountTypeOptions lists the selectable account types in display order.
func AccountTypeOptions() []Option[AccountType] {
	return []Option[AccountType]{
		{Name: "Bank", Value: AccountTypeBank},
		{Name: "Investment", Value: AccountTypeInvestment},
		{Name: "Other", Value: AccountTypeOther},
	}
}

// AccountSubtypeOptions lists the subtypes an editor offers for the given
// account type. The first entry is the default.
func AccountSubtypeOptions(t AccountType) []Option[AccountSubtype] {
	other := Option[AccountSubtype]{Name: "Other", Value: AccountSubtypeOther}
	switch t {
	case AccountTypeOther:
		return []Option[AccountSubtype]{other}
	case AccountTypeBank:
		return []Option[AccountSubtype]{
			{Name: "Chequing", Value: AccountSubtypeChequing},
			{Name: "Savings", Value: AccountSubtypeSavings},
			other,
		}
	}
	return []Option[AccountSubtype]{
		{Name: "Non-Registered", Value: AccountSubtypeNonReg},
		{Name: "TFSA", Value: AccountSubtypeTFSA},
		{Name: "RRSP", Value: AccountSubtypeRRSP},
		other,
	}
}

// DefaultSubtype is the subtype selected when an account switches to type t.
func DefaultSubtype(t AccountType) AccountSubtype {
	return AccountSubtypeOptions(t)[0].Value
}

// IsValidAccountType reports whether t is one of the known account types.
func IsValidAccountType(t AccountType) bool {
	switch t {
	case AccountTypeBank, AccountTypeInvestment, AccountTypeOther:
		return true
	}
	return false
}

// IsSubtypeAllowed reports whether the editor would offer subtype s for type t.
func IsSubtypeAllowed(t AccountType, s AccountSubtype) bool {
	if !IsValidAccountType(t) {
		return false
	}
	for _, opt := range AccountSubtypeOptions(t) {
		if opt.Value == s {
			return true
		}
	}
	return false
}

// TransactionTypesFor lists the transaction types that can be recorded
// against an account of type t.
func TransactionTypesFor(t AccountType) []TransactionType {
	if t == AccountTypeInvestment {
		return []TransactionType{
			TransactionTypePurchase,
			TransactionTypeSale,
			TransactionTypeDividend,
			TransactionTypeDeposit,
			TransactionTypeWithdrawal,
		}
	}
	return []TransactionType{
		TransactionTypePurchase,
		TransactionTypeInterest,
		TransactionTypeDeposit,
		TransactionTypeWithdrawal,
	}
}

// IsValidTransactionType reports whether t is one of the known transaction types.
func IsValidTransactionType(t TransactionType) bool {
	switch t {
	case TransactionTypePurchase, TransactionTypeSale, TransactionTypeWithdrawal,
		TransactionTypeDeposit, TransactionTypeDividend, TransactionTypeInterest:
		return true
	}
	return false
}

// IsTransactionTypeAllowed reports whether tt can be recorded against an
// account of type at.
func IsTransactionTypeAllowed(at AccountType, tt TransactionType) bool {
	for _, allowed := range TransactionTypesFor(at) {
		if allowed == tt {
			return true
		}
	}
	return false
}

// IsCashType reports whether transactions of type t only move cash.
func IsCashType(t TransactionType) bool {
	return t == TransactionTypeDeposit || t == TransactionTypeWithdrawal || t == TransactionTypeInterest
}

// SortAccountsByUpdated returns the profile's accounts, most recently updated
// first. Ties are ordered by ID so the result is deterministic.
func SortAccountsByUpdated(p *Profile) []*Account {
	if p == nil {
		return nil
	}
	accounts := make([]*Account, 0, len(p.Accounts))
	for _, a := range p.Accounts {
		accounts = append(accounts, a)
	}
	sort.Slice(accounts, func(i, j int) bool {
		if !accounts[i].Updated.Equal(accounts[j].Updated) {
			return accounts[i].Updated.After(accounts[j].Updated)
		}
		return accounts[i].ID < accounts[j].ID
	})
	return accounts
}
