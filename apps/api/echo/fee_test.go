package echoapi_test

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/feeledger/core/fee"
	"github.com/trezcool/feeledger/core/school"
	testutil "github.com/trezcool/feeledger/tests"
)

func Test_feeApi_createTemplate(t *testing.T) {
	app := setup(t)
	class, err := app.schools.CreateClass(context.Background(), school.ClassLevel{Name: "Grade 2", Order: 2})
	require.NoError(t, err)

	body := func(classID string, amount string) []byte {
		return []byte(fmt.Sprintf(`{
			"name": "Grade 2 fees",
			"academic_year_id": %q,
			"class_id": %q,
			"components": [{"name": "Tuition", "amount": %s, "frequency": "MONTHLY", "due_day": 10}]
		}`, app.year.ID, classID, amount))
	}
	adminToken := app.token(t, bursar)

	tests := []httpTest{
		{
			name: "Admin required", method: http.MethodPost, path: "/v1/fees/structures", body: body(class.ID, "2000"),
			token: app.token(t, cashier), wantCode: http.StatusForbidden, wantData: marshallObj(t, errForbidden),
		},
		{
			name: "Invalid amount", method: http.MethodPost, path: "/v1/fees/structures", body: body(class.ID, "20.001"),
			token: adminToken, wantCode: http.StatusBadRequest,
			wantData: []byte(`{"components[0].amount": "at most 2 decimal places are allowed"}`),
		},
		{
			name: "Unknown class", method: http.MethodPost, path: "/v1/fees/structures", body: body("nope", "2000"),
			token: adminToken, wantCode: http.StatusNotFound,
		},
		{
			name: "Created", method: http.MethodPost, path: "/v1/fees/structures", body: body(class.ID, "2000"),
			token: adminToken, wantCode: http.StatusCreated,
		},
		{
			name: "Already exists", method: http.MethodPost, path: "/v1/fees/structures", body: body(class.ID, "2000"),
			token: adminToken, wantCode: http.StatusConflict, wantData: marshallObj(t, httpErr{Error: fee.ErrTemplateExists.Error()}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkCodeAndData(t, tt, app.do(t, tt))
		})
	}

	rec := app.do(t, httpTest{path: "/v1/fees/structures?class_id=" + class.ID, token: adminToken})
	var templates []fee.Template
	decode(t, rec, &templates)
	require.Len(t, templates, 1)
	assert.True(t, templates[0].TotalYearlyAmount.Equal(testutil.Amount("24000")))
}

func Test_feeApi_pay(t *testing.T) {
	app := setup(t)
	ledgerID := app.adm.Ledger.ID
	token := app.token(t, cashier)

	body := func(ledgerID, amount, mode string) []byte {
		return []byte(fmt.Sprintf(`{"ledger_id": %q, "amount_paid": %s, "payment_mode": %q}`, ledgerID, amount, mode))
	}
	withKey := func(key string) map[string]string { return map[string]string{"Idempotency-Key": key} }

	tests := []httpTest{
		{
			name: "Auth required", method: http.MethodPost, path: "/v1/fees/pay", body: body(ledgerID, "100", "CASH"),
			wantCode: http.StatusUnauthorized, wantData: marshallObj(t, errMissingToken),
		},
		{
			name: "Zero amount", method: http.MethodPost, path: "/v1/fees/pay", body: body(ledgerID, "0", "CASH"),
			token: token, wantCode: http.StatusBadRequest, wantData: []byte(`{"amount_paid": "must be greater than 0"}`),
		},
		{
			name: "Bad mode", method: http.MethodPost, path: "/v1/fees/pay", body: body(ledgerID, "100", "BITCOIN"),
			token: token, wantCode: http.StatusBadRequest,
			wantData: []byte(`{"payment_mode": "must be one of CASH, UPI, CHEQUE, BANK_TRANSFER"}`),
		},
		{
			name: "Exceeds due", method: http.MethodPost, path: "/v1/fees/pay", body: body(ledgerID, "41000.01", "CASH"),
			token: token, wantCode: http.StatusBadRequest,
			wantData: []byte(`{"amount_paid": "must not exceed the due amount (41000.00)"}`),
		},
		{
			name: "Unknown ledger", method: http.MethodPost, path: "/v1/fees/pay", body: body("nope", "100", "CASH"),
			token: token, wantCode: http.StatusNotFound,
		},
		{
			name: "Paid", method: http.MethodPost, path: "/v1/fees/pay", body: body(ledgerID, "6000", "UPI"),
			token: token, headers: withKey("k-1"), wantCode: http.StatusCreated,
		},
		{
			name: "Replayed", method: http.MethodPost, path: "/v1/fees/pay", body: body(ledgerID, "6000", "UPI"),
			token: token, headers: withKey("k-1"), wantCode: http.StatusCreated,
		},
		{
			name: "Key reused", method: http.MethodPost, path: "/v1/fees/pay", body: body(ledgerID, "500", "UPI"),
			token: token, headers: withKey("k-1"), wantCode: http.StatusConflict,
			wantData: marshallObj(t, httpErr{Error: fee.ErrIdempotencyMismatch.Error()}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkCodeAndData(t, tt, app.do(t, tt))
		})
	}

	// a single payment went through
	rec := app.do(t, httpTest{path: "/v1/fees/history/" + app.adm.Student.ID, token: token})
	require.Equal(t, http.StatusOK, rec.Code)
	var history []fee.Receipt
	decode(t, rec, &history)
	require.Len(t, history, 1)
	receipt := history[0]
	assert.Regexp(t, regexp.MustCompile(`^REC-\d+$`), receipt.ReceiptNo)
	assert.Equal(t, "cashier", receipt.CollectedBy)

	rec = app.do(t, httpTest{path: "/v1/fees/receipts/" + receipt.ReceiptNo, token: token})
	require.Equal(t, http.StatusOK, rec.Code)
	var got fee.Receipt
	decode(t, rec, &got)
	assert.Equal(t, "six thousand only", got.AmountInWords)
	assert.True(t, got.AmountPaid.Equal(testutil.Amount("6000")))

	rec = app.do(t, httpTest{path: "/v1/fees/receipts/REC-NOPE", token: token})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func Test_feeApi_ledger(t *testing.T) {
	app := setup(t)
	token := app.token(t, cashier)

	rec := app.do(t, httpTest{path: "/v1/fees/ledger/" + app.adm.Student.ID, token: token})
	require.Equal(t, http.StatusOK, rec.Code)
	var ledger fee.Ledger
	decode(t, rec, &ledger)
	assert.Equal(t, app.adm.Ledger.ID, ledger.ID)
	assert.Len(t, ledger.Installments, 13)
	assert.Equal(t, fee.StatusPending, ledger.Status)

	rec = app.do(t, httpTest{path: "/v1/fees/ledger/" + app.adm.Student.ID + "?year_id=" + app.year.ID, token: token})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = app.do(t, httpTest{path: "/v1/fees/ledger/nope", token: token})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = app.do(t, httpTest{path: "/v1/fees/history/nope", token: token})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func Test_feeApi_concession(t *testing.T) {
	app := setup(t)
	path := "/v1/fees/ledger/concession/" + app.adm.Ledger.ID
	body := func(amount, reason string) []byte {
		return []byte(fmt.Sprintf(`{"concession_amount": %s, "reason": %q}`, amount, reason))
	}
	token := app.token(t, bursar)

	tests := []httpTest{
		{
			name: "Admin required", method: http.MethodPost, path: path, body: body("1000", "sibling"),
			token: app.token(t, cashier), wantCode: http.StatusForbidden, wantData: marshallObj(t, errForbidden),
		},
		{
			name: "Reason required", method: http.MethodPost, path: path, body: body("1000", " "),
			token: token, wantCode: http.StatusBadRequest, wantData: []byte(`{"reason": "this field is required"}`),
		},
		{
			name: "Too large", method: http.MethodPost, path: path, body: body("41000.01", "sibling"),
			token: token, wantCode: http.StatusBadRequest,
		},
		{
			name: "Unknown ledger", method: http.MethodPost, path: "/v1/fees/ledger/concession/nope", body: body("1000", "sibling"),
			token: token, wantCode: http.StatusNotFound,
		},
		{name: "Applied", method: http.MethodPost, path: path, body: body("1000", "sibling"), token: token, wantCode: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkCodeAndData(t, tt, app.do(t, tt))
		})
	}

	ledger, err := app.fees.GetLedgerByID(context.Background(), app.adm.Ledger.ID)
	require.NoError(t, err)
	assert.True(t, ledger.ConcessionAmount.Equal(testutil.Amount("1000")))
	assert.True(t, ledger.DueAmount.Equal(testutil.Amount("40000")))
	require.Len(t, ledger.Concessions, 1)
	assert.Equal(t, "bursar", ledger.Concessions[0].AppliedBy)
}
