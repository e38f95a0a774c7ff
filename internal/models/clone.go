package models

import "sort"

// SortTransactions puts transactions into canonical order, in place: newest
// timestamp first, ties broken by the most recent update. The slice is also
// returned for chaining.
func SortTransactions(transactions []*Transaction) []*Transaction {
	sort.SliceStable(transactions, func(i, j int) bool {
		a, b := transactions[i], transactions[j]
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.After(b.Timestamp)
		}
		return a.Updated.After(b.Updated)
	})
	return transactions
}

// CloneTransaction returns an equal copy that shares no memory with t.
func CloneTransaction(t *Transaction) *Transaction {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

// CloneAccount returns a deep copy of a. Editors work on the clone so unsaved
// changes can be thrown away.
func CloneAccount(a *Account) *Account {
	if a == nil {
		return nil
	}
	c := *a
	if a.Transactions != nil {
		c.Transactions = make([]*Transaction, len(a.Transactions))
		for i, t := range a.Transactions {
			c.Transactions[i] = CloneTransaction(t)
		}
	}
	return &c
}
