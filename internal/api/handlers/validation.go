package handlers

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/dvloznov/asset-tracker/internal/app"
	"github.com/dvloznov/asset-tracker/internal/models"
)

type fieldRule struct {
	tag string
	fn  validator.Func
}

var fieldRules = []fieldRule{
	{"account_type", validateAccountType},
	{"account_subtype", validateAccountSubtype},
	{"transaction_type", validateTransactionType},
	{"date_choice", validateDateChoice},
}

// NewValidator returns a validator with the account and transaction rules
// registered. Field names in errors are the JSON names. It panics if a rule
// cannot be registered, which only happens when the rule table is broken.
func NewValidator() *validator.Validate {
	v, err := newValidator(fieldRules)
	if err != nil {
		panic(err)
	}
	return v
}

func newValidator(rules []fieldRule) (*validator.Validate, error) {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	for _, r := range rules {
		if err := v.RegisterValidation(r.tag, r.fn); err != nil {
			return nil, fmt.Errorf("NewValidator: registering %q: %w", r.tag, err)
		}
	}
	v.RegisterStructValidation(validateAccountRequest, accountRequest{})
	return v, nil
}

func validateAccountType(fl validator.FieldLevel) bool {
	return models.IsValidAccountType(models.AccountType(fl.Field().String()))
}

func validateAccountSubtype(fl validator.FieldLevel) bool {
	s := models.AccountSubtype(fl.Field().String())
	for _, t := range models.AccountTypeOptions() {
		if models.IsSubtypeAllowed(t.Value, s) {
			return true
		}
	}
	return false
}

func validateTransactionType(fl validator.FieldLevel) bool {
	return models.IsValidTransactionType(models.TransactionType(fl.Field().String()))
}

func validateDateChoice(fl validator.FieldLevel) bool {
	switch app.DateChoice(fl.Field().String()) {
	case app.DateToday, app.DateYesterday, app.DateOther:
		return true
	}
	return false
}

// validateAccountRequest checks that the subtype is offered for the type.
func validateAccountRequest(sl validator.StructLevel) {
	req := sl.Current().Interface().(accountRequest)
	if req.Type == "" || req.Subtype == "" {
		return
	}
	if !models.IsSubtypeAllowed(models.AccountType(req.Type), models.AccountSubtype(req.Subtype)) {
		sl.ReportError(req.Subtype, "subtype", "Subtype", "subtype_for_type", req.Type)
	}
}
