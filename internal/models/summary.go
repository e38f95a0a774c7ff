package models

import (
	"sort"
	"strings"
)

// TypeCount is the number of transactions of one type.
type TypeCount struct {
	Category string `json:"category"`
	Value    int    `json:"value"`
}

// Summary describes the transactions of one account.
type Summary struct {
	Total  int         `json:"total"`
	ByType []TypeCount `json:"byType"`
}

// TransactionFilter selects transactions for a summary. index is the
// position of t in the account's transaction list.
type TransactionFilter func(t *Transaction, a *Account, index int) bool

// Summarize counts the account's transactions by type. Categories are the
// upper-cased type names, largest count first. A nil filter keeps everything.
func Summarize(a *Account, filter TransactionFilter) Summary {
	var s Summary
	if a == nil {
		return s
	}

	counts := make(map[TransactionType]int)
	for i, t := range a.Transactions {
		if filter != nil && !filter(t, a, i) {
			continue
		}
		counts[t.Type]++
		s.Total++
	}

	for typ, n := range counts {
		s.ByType = append(s.ByType, TypeCount{Category: strings.ToUpper(string(typ)), Value: n})
	}
	sort.Slice(s.ByType, func(i, j int) bool {
		if s.ByType[i].Value != s.ByType[j].Value {
			return s.ByType[i].Value > s.ByType[j].Value
		}
		return s.ByType[i].Category < s.ByType[j].Category
	})
	return s
}
