package handlers

import (
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
)

func TestNewValidatorRejectsBrokenRule(t *testing.T) {
	_, err := newValidator([]fieldRule{
		{"account_type", validateAccountType},
		{"", validateDateChoice},
	})
	if err == nil {
		t.Fatal("newValidator() with an empty tag should fail")
	}
	if !strings.Contains(err.Error(), "NewValidator: registering") {
		t.Errorf("error = %q, want the failing registration named", err)
	}
}

func TestNewValidatorRules(t *testing.T) {
	v := NewValidator()

	tests := []struct {
		name    string
		req     any
		wantTag string
	}{
		{"valid account", accountRequest{Name: "Savings", Type: "bank", Subtype: "chequing", Currency: "CAD"}, ""},
		{"unknown type", accountRequest{Type: "crypto"}, "account_type"},
		{"unknown subtype", accountRequest{Subtype: "hsa"}, "account_subtype"},
		{"subtype not offered for type", accountRequest{Type: "bank", Subtype: "RRSP"}, "subtype_for_type"},
		{"valid transaction", transactionRequest{Date: "other", OtherDate: "2023-01-17", Type: "deposit"}, ""},
		{"unknown transaction type", transactionRequest{Type: "refund"}, "transaction_type"},
		{"unknown date choice", transactionRequest{Date: "tomorrow", Type: "deposit"}, "date_choice"},
		{"other date required", transactionRequest{Date: "other", Type: "deposit"}, "required_if"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Struct(tt.req)
			if tt.wantTag == "" {
				if err != nil {
					t.Fatalf("Struct() error = %v, want nil", err)
				}
				return
			}
			verrs, ok := err.(validator.ValidationErrors)
			if !ok || len(verrs) == 0 {
				t.Fatalf("Struct() error = %v, want validation errors", err)
			}
			if verrs[0].Tag() != tt.wantTag {
				t.Errorf("failed tag = %q, want %q", verrs[0].Tag(), tt.wantTag)
			}
		})
	}
}
