package student_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/feeledger/core"
	"github.com/trezcool/feeledger/core/fee"
	"github.com/trezcool/feeledger/core/school"
	"github.com/trezcool/feeledger/core/student"
	"github.com/trezcool/feeledger/core/user"
	appfs "github.com/trezcool/feeledger/fs"
	cachesvc "github.com/trezcool/feeledger/services/cache"
	emailsvc "github.com/trezcool/feeledger/services/email"
	logsvc "github.com/trezcool/feeledger/services/logger"
	testutil "github.com/trezcool/feeledger/tests"
)

func TestReceiptMailer(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	conf := core.NewTestConfig()
	logger := logsvc.NewNopLogger()

	templates, err := core.ParseEmailTemplates(appfs.FS, appfs.EmailTemplatesDir)
	require.NoError(t, err)
	outbox := emailsvc.NewConsoleServiceMock(conf, templates)
	mailer := student.NewReceiptMailer(env.repo, outbox, logger, conf)

	fees, err := fee.NewService(env.db, env.feeRepo, school.NewService(env.schoolRepo), cachesvc.NewMemoryCache(), logger, conf,
		fee.WithReceiptNotifier(mailer))
	require.NoError(t, err)
	admissions := student.NewService(env.db, env.repo, school.NewService(env.schoolRepo), fees, logger, conf)

	testutil.CreateTemplate(t, env.feeRepo, env.year.ID, env.class.ID,
		fee.Component{Name: "Tuition", Amount: testutil.Amount("1500"), Frequency: fee.FrequencyMonthly},
	)
	cashier := user.User{ID: "u-1", Username: "cashier", Roles: []string{user.RoleOperator}}
	pay := func(ledgerID string, key string) fee.Receipt {
		r, err := fees.CollectPayment(ctx, fee.NewPayment{
			LedgerID: ledgerID, Amount: testutil.Amount("1500"), Mode: fee.PaymentModeCash, IdempotencyKey: key,
		}, cashier)
		require.NoError(t, err)
		return r
	}

	ns := env.newStudent("Grace")
	ns.Parent = &student.NewParent{PrimaryPhone: "9876543210", FatherName: "Joseph Mutombo", MotherName: "Marie Mutombo",
		Email: "parents@example.com", Relation: "MOTHER"}
	grace, err := admissions.Admit(ctx, ns)
	require.NoError(t, err)

	receipt := pay(grace.Ledger.ID, "k1")
	sent := outbox.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "Fee receipt "+receipt.ReceiptNo, sent[0].Subject)
	assert.Equal(t, "Marie Mutombo", sent[0].To[0].Name)
	assert.Equal(t, "parents@example.com", sent[0].To[0].Address)
	assert.Contains(t, sent[0].TextContent, "We have received 1500.00 (one thousand five hundred only) towards the fees of Grace Mutombo (ADM25001).")

	pay(grace.Ledger.ID, "k1")
	assert.Len(t, outbox.Sent(), 1, "a replayed payment is not emailed again")

	_, err = fees.CollectPayment(ctx, fee.NewPayment{LedgerID: grace.Ledger.ID, Amount: testutil.Amount("1000000"), Mode: fee.PaymentModeCash}, cashier)
	require.True(t, core.IsValidation(err), "got %v", err)
	assert.Len(t, outbox.Sent(), 1, "nothing is emailed for a rejected payment")

	noEmail := env.newStudent("Esther")
	noEmail.Parent = &student.NewParent{PrimaryPhone: "9876500000", FatherName: "Paul Mutombo"}
	esther, err := admissions.Admit(ctx, noEmail)
	require.NoError(t, err)
	pay(esther.Ledger.ID, "")

	orphan, err := admissions.Admit(ctx, env.newStudent("Ruth"))
	require.NoError(t, err)
	pay(orphan.Ledger.ID, "")

	assert.Len(t, outbox.Sent(), 1, "only parents with an email address are emailed")
}
