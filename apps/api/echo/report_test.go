package echoapi_test

import (
	"bytes"
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/trezcool/feeledger/core/fee"
	testutil "github.com/trezcool/feeledger/tests"
)

func Test_reportApi_access(t *testing.T) {
	app := setup(t)

	tests := []httpTest{
		{name: "Auth required", path: "/v1/fees/reports/dashboard", wantCode: http.StatusUnauthorized, wantData: marshallObj(t, errMissingToken)},
		{name: "Operator denied", path: "/v1/fees/reports/dashboard", token: app.token(t, cashier), wantCode: http.StatusForbidden},
		{name: "Principal: dashboard", path: "/v1/fees/reports/dashboard", token: app.token(t, princ), wantCode: http.StatusOK},
		{name: "Principal: defaulters", path: "/v1/fees/reports/defaulters", token: app.token(t, princ), wantCode: http.StatusForbidden},
		{name: "Owner: defaulters", path: "/v1/fees/reports/defaulters", token: app.token(t, owner), wantCode: http.StatusOK},
		{name: "Accounts: defaulters", path: "/v1/fees/reports/defaulters", token: app.token(t, bursar), wantCode: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkCodeAndData(t, tt, app.do(t, tt))
		})
	}
}

func Test_reportApi_collection(t *testing.T) {
	app := setup(t)
	ctx := context.Background()
	token := app.token(t, bursar)

	for _, p := range []struct{ amount, mode string }{{"1000", "CASH"}, {"2500.50", "UPI"}, {"500", "CASH"}} {
		_, err := app.fees.CollectPayment(ctx, fee.NewPayment{
			LedgerID: app.adm.Ledger.ID,
			Amount:   testutil.Amount(p.amount),
			Mode:     fee.PaymentMode(p.mode),
		}, cashier)
		require.NoError(t, err)
	}

	today := time.Now().UTC().Format("2006-01-02")
	rec := app.do(t, httpTest{path: "/v1/fees/reports/collection?date=" + today, token: token})
	require.Equal(t, http.StatusOK, rec.Code)
	var report fee.CollectionReport
	decode(t, rec, &report)
	assert.True(t, report.Total.Equal(testutil.Amount("4000.50")), report.Total.String())
	assert.Equal(t, 3, report.Count)
	require.Len(t, report.ByMode, 2)

	rec = app.do(t, httpTest{path: "/v1/fees/reports/collection?from=2020-01-01&to=2020-01-31", token: token})
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &report)
	assert.True(t, report.Total.IsZero())
	assert.Empty(t, report.ByMode)

	rec = app.do(t, httpTest{path: "/v1/fees/reports/dashboard?year_id=" + app.year.ID, token: token})
	require.Equal(t, http.StatusOK, rec.Code)
	var dash fee.Dashboard
	decode(t, rec, &dash)
	assert.True(t, dash.TodayCollection.Equal(testutil.Amount("4000.50")))
	assert.True(t, dash.TotalPending.Equal(testutil.Amount("36999.50")))
	assert.Equal(t, 1, dash.DefaulterCount)
}

func Test_reportApi_defaulters(t *testing.T) {
	app := setup(t)
	token := app.token(t, bursar)

	rec := app.do(t, httpTest{path: "/v1/fees/reports/defaulters?year_id=" + app.year.ID + "&ordering=-due_amount", token: token})
	require.Equal(t, http.StatusOK, rec.Code)
	var defaulters []fee.Defaulter
	decode(t, rec, &defaulters)
	require.Len(t, defaulters, 1)
	assert.Equal(t, app.adm.Student.AdmissionNo, defaulters[0].AdmissionNo)
	assert.True(t, defaulters[0].DueAmount.Equal(testutil.Amount("41000")))

	rec = app.do(t, httpTest{path: "/v1/fees/reports/defaulters?format=xlsx", token: token})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "defaulters.xlsx")

	f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(f.GetSheetName(0))
	require.NoError(t, err)
	assert.Len(t, rows, 2, "header + one defaulter")
}
