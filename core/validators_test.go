package core

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type moneyForm struct {
	Code   string          `json:"code" validate:"required,alphanum_"`
	Amount decimal.Decimal `json:"amount" validate:"gt=0"`
}

func TestInitValidators(t *testing.T) {
	validate := validator.New()
	translator := NewTranslator()
	InitValidators(validate, translator)

	tests := []struct {
		name    string
		form    moneyForm
		wantErr map[string]string
	}{
		{name: "valid", form: moneyForm{Code: "tuition_fee", Amount: decimal.RequireFromString("10.50")}},
		{
			name:    "missing code",
			form:    moneyForm{Amount: decimal.NewFromInt(1)},
			wantErr: map[string]string{"code": "this field is required"},
		},
		{
			name:    "bad code",
			form:    moneyForm{Code: "tuition-fee", Amount: decimal.NewFromInt(1)},
			wantErr: map[string]string{"code": "only alphanumeric characters and underscores are allowed"},
		},
		{
			name:    "zero amount",
			form:    moneyForm{Code: "fee"},
			wantErr: map[string]string{"amount": "must be greater than 0"},
		},
		{
			name:    "negative amount",
			form:    moneyForm{Code: "fee", Amount: decimal.NewFromInt(-3)},
			wantErr: map[string]string{"amount": "must be greater than 0"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validate.Struct(tt.form)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			var vErrs validator.ValidationErrors
			require.ErrorAs(t, err, &vErrs)
			assert.Equal(t, tt.wantErr, TranslateValidationErrors(vErrs, translator))
		})
	}
}

func TestPhoneValidation(t *testing.T) {
	validate := validator.New()
	translator := NewTranslator()
	InitValidators(validate, translator)

	type contactForm struct {
		Phone string `json:"phone" validate:"required,phone"`
	}
	for _, phone := range []string{"9876543210", "+919876543210", CleanPhone(" +91 98765-43210 ")} {
		assert.NoError(t, validate.Struct(contactForm{Phone: phone}), phone)
	}
	for _, phone := range []string{"12345", "98765 43210", "+91-98765", "call me"} {
		err := validate.Struct(contactForm{Phone: phone})
		var vErrs validator.ValidationErrors
		require.ErrorAs(t, err, &vErrs, phone)
		assert.Equal(t, map[string]string{"phone": "must be a valid phone number"}, TranslateValidationErrors(vErrs, translator))
	}
}

func TestErrorKinds(t *testing.T) {
	assert.True(t, IsNotFound(NewNotFoundError("ledger", "42")))
	assert.EqualError(t, NewNotFoundError("ledger", "42"), `ledger "42" not found`)
	assert.True(t, IsConflict(NewConflictError("dup")))
	assert.True(t, IsTransaction(NewTransactionError(nil)))
	assert.True(t, IsValidation(NewValidationError(nil, FieldError{Field: "amount", Error: "too big"})))
	assert.EqualError(t, NewValidationError(nil, FieldError{Field: "amount", Error: "too big"}), "amount: too big")
	assert.False(t, IsNotFound(NewConflictError("dup")))
	assert.True(t, IsShutdown(NewShutdownError("bye")))
}
