package models

import "time"

// Document field names. They match the documents written by earlier versions
// of the app, so they must not change.
const (
	FieldID            = "id"
	FieldCreated       = "created"
	FieldUpdated       = "updated"
	FieldOwner         = "owner"
	FieldName          = "name"
	FieldEmail         = "email"
	FieldPhotoURL      = "photoURL"
	FieldInstitution   = "institution"
	FieldType          = "type"
	FieldSubtype       = "subtype"
	FieldCurrency      = "currency"
	FieldTransactions  = "transactions"
	FieldTimestamp     = "timestamp"
	FieldAmount        = "amount"
	FieldAssetName     = "assetName"
	FieldAssetQuantity = "assetQuantity"
	FieldNote          = "note"
)

// ProfileFromData maps a profile document onto a Profile. Timestamps must
// already be normalized. Accounts are left nil.
func ProfileFromData(data map[string]any) *Profile {
	p := &Profile{
		ID:      stringField(data, FieldID),
		Created: timeField(data, FieldCreated),
		Updated: timeField(data, FieldUpdated),
	}
	if owner, ok := data[FieldOwner].(map[string]any); ok {
		p.Owner = Owner{
			Name:     stringField(owner, FieldName),
			Email:    stringField(owner, FieldEmail),
			PhotoURL: stringField(owner, FieldPhotoURL),
		}
	}
	return p
}

// OwnerData is the document form of the profile owner. photoURL is only
// present when the identity had one.
func (p *Profile) OwnerData() map[string]any {
	owner := map[string]any{
		FieldName:  p.Owner.Name,
		FieldEmail: p.Owner.Email,
	}
	if p.Owner.PhotoURL != "" {
		owner[FieldPhotoURL] = p.Owner.PhotoURL
	}
	return owner
}

// AccountFromData maps an account document onto an Account with the given
// document ID. Timestamps must already be normalized.
func AccountFromData(id string, data map[string]any) *Account {
	a := &Account{
		ID:           id,
		Created:      timeField(data, FieldCreated),
		Updated:      timeField(data, FieldUpdated),
		Name:         stringField(data, FieldName),
		Institution:  stringField(data, FieldInstitution),
		Type:         AccountType(stringField(data, FieldType)),
		Subtype:      AccountSubtype(stringField(data, FieldSubtype)),
		Currency:     stringField(data, FieldCurrency),
		Transactions: []*Transaction{},
	}
	switch list := data[FieldTransactions].(type) {
	case []any:
		for _, item := range list {
			if m, ok := item.(map[string]any); ok {
				a.Transactions = append(a.Transactions, TransactionFromData(m))
			}
		}
	case []map[string]any:
		for _, m := range list {
			a.Transactions = append(a.Transactions, TransactionFromData(m))
		}
	}
	return a
}

// TransactionFromData maps one element of an account's transaction list.
func TransactionFromData(data map[string]any) *Transaction {
	return &Transaction{
		Timestamp:     timeField(data, FieldTimestamp),
		Updated:       timeField(data, FieldUpdated),
		Type:          TransactionType(stringField(data, FieldType)),
		Amount:        floatField(data, FieldAmount),
		Currency:      stringField(data, FieldCurrency),
		AssetName:     stringField(data, FieldAssetName),
		AssetQuantity: floatField(data, FieldAssetQuantity),
		Note:          stringField(data, FieldNote),
	}
}

// InfoData holds the fields an account-info update may touch. It never
// includes transactions or the creation marker.
func (a *Account) InfoData() map[string]any {
	return map[string]any{
		FieldName:        a.Name,
		FieldType:        string(a.Type),
		FieldSubtype:     string(a.Subtype),
		FieldInstitution: a.Institution,
		FieldCurrency:    a.Currency,
	}
}

// Data is the full document form of the account, without its ID.
func (a *Account) Data() map[string]any {
	data := a.InfoData()
	data[FieldCreated] = a.Created
	data[FieldUpdated] = a.Updated
	data[FieldTransactions] = TransactionsData(a.Transactions)
	return data
}

// Data is the document form of a single transaction.
func (t *Transaction) Data() map[string]any {
	data := map[string]any{
		FieldTimestamp:     t.Timestamp,
		FieldUpdated:       t.Updated,
		FieldType:          string(t.Type),
		FieldAmount:        t.Amount,
		FieldCurrency:      t.Currency,
		FieldAssetName:     t.AssetName,
		FieldAssetQuantity: t.AssetQuantity,
	}
	if t.Note != "" {
		data[FieldNote] = t.Note
	}
	return data
}

// TransactionsData converts a transaction list into its stored form,
// preserving order.
func TransactionsData(transactions []*Transaction) []any {
	out := make([]any, 0, len(transactions))
	for _, t := range transactions {
		if t == nil {
			continue
		}
		out = append(out, t.Data())
	}
	return out
}

func stringField(m map[string]any, key string) string {
	if s, ok := m[key].(string); ok {
		return s
	}
	return ""
}

func timeField(m map[string]any, key string) time.Time {
	switch v := m[key].(type) {
	case time.Time:
		return v
	case *time.Time:
		if v != nil {
			return *v
		}
	}
	return time.Time{}
}

func floatField(m map[string]any, key string) float64 {
	switch v := m[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int64:
		return float64(v)
	case int:
		return float64(v)
	case int32:
		return float64(v)
	}
	return 0
}
