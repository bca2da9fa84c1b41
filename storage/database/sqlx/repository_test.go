package sqlxrepos_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/feeledger/core"
	"github.com/trezcool/feeledger/core/fee"
	"github.com/trezcool/feeledger/core/school"
	"github.com/trezcool/feeledger/core/student"
	"github.com/trezcool/feeledger/core/user"
	cachesvc "github.com/trezcool/feeledger/services/cache"
	logsvc "github.com/trezcool/feeledger/services/logger"
	sqlxrepos "github.com/trezcool/feeledger/storage/database/sqlx"
	testutil "github.com/trezcool/feeledger/tests"
)

var cashier = user.User{ID: "u-1", Username: "cashier", Roles: []string{user.RoleOperator}}

type pgEnv struct {
	fees     *fee.Service
	reports  *fee.Reports
	students *student.Service
	schools  school.Repository
	feeRepo  fee.Repository
	stuRepo  student.Repository
	year     school.AcademicYear
	class    school.ClassLevel
}

func setup(t *testing.T) *pgEnv {
	t.Helper()
	db := testutil.PrepareDB(t)
	conf := core.NewTestConfig()
	logger := logsvc.NewNopLogger()
	cache := cachesvc.NewMemoryCache()
	tx := sqlxrepos.NewTransactor(db)

	env := &pgEnv{
		schools: sqlxrepos.NewSchoolRepository(db),
		feeRepo: sqlxrepos.NewFeeRepository(db),
		stuRepo: sqlxrepos.NewStudentRepository(db),
	}
	schools := school.NewService(env.schools)

	var err error
	env.fees, err = fee.NewService(tx, env.feeRepo, schools, cache, logger, conf)
	require.NoError(t, err)
	env.reports = fee.NewReports(sqlxrepos.NewFeeRepository(db), cache, logger, conf)
	env.students = student.NewService(tx, env.stuRepo, schools, env.fees, logger, conf)

	env.year = testutil.CreateAcademicYear(t, env.schools, "2025-2026", testutil.Date(2025, time.April, 1), true)
	env.class = testutil.CreateClass(t, env.schools, "Grade 1", 1)
	testutil.CreateTemplate(t, env.feeRepo, env.year.ID, env.class.ID,
		fee.Component{Name: "Admission", Amount: testutil.Amount("5000"), Frequency: fee.FrequencyOneTime, DueDay: 5},
		fee.Component{Name: "Tuition", Amount: testutil.Amount("3000"), Frequency: fee.FrequencyMonthly, DueDay: 10},
	)
	return env
}

func (env *pgEnv) admit(t *testing.T, first, last string) student.Admission {
	t.Helper()
	adm, err := env.students.Admit(context.Background(), student.NewStudent{
		FirstName:      first,
		LastName:       last,
		AcademicYearID: env.year.ID,
		ClassID:        env.class.ID,
	})
	require.NoError(t, err)
	require.NotNil(t, adm.Ledger)
	return adm
}

func TestPostgres_admissionAndPayments(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	adm := env.admit(t, "Amani", "Kabila")
	assert.Equal(t, "ADM25001", adm.Student.AdmissionNo)
	assert.Len(t, adm.Ledger.Installments, 13)
	assert.True(t, adm.Ledger.DueAmount.Equal(testutil.Amount("41000")))

	receipt, err := env.fees.CollectPayment(ctx, fee.NewPayment{
		LedgerID:       adm.Ledger.ID,
		Amount:         testutil.Amount("6500.50"),
		Mode:           fee.PaymentModeUPI,
		IdempotencyKey: "pay-1",
	}, cashier)
	require.NoError(t, err)

	replay, err := env.fees.CollectPayment(ctx, fee.NewPayment{
		LedgerID:       adm.Ledger.ID,
		Amount:         testutil.Amount("6500.50"),
		Mode:           fee.PaymentModeUPI,
		IdempotencyKey: "pay-1",
	}, cashier)
	require.NoError(t, err)
	assert.Equal(t, receipt.ReceiptNo, replay.ReceiptNo)

	ledger, err := env.fees.GetLedgerByID(ctx, adm.Ledger.ID)
	require.NoError(t, err)
	assert.True(t, ledger.PaidAmount.Equal(testutil.Amount("6500.50")))
	assert.Equal(t, fee.StatusPaid, ledger.Installments[0].Status)
	assert.Equal(t, fee.StatusPartial, ledger.Installments[1].Status)
	assert.Equal(t, fee.StatusPartial, ledger.Status)

	ledger, err = env.fees.ApplyConcession(ctx, ledger.ID, fee.NewConcession{Amount: testutil.Amount("3000"), Reason: "sibling"}, cashier)
	require.NoError(t, err)
	assert.True(t, ledger.DueAmount.Equal(testutil.Amount("31499.50")))
	assert.Len(t, ledger.Concessions, 1)

	history, err := env.fees.PaymentHistory(ctx, adm.Student.ID, env.year.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, receipt.ReceiptNo, history[0].ReceiptNo)

	report, err := env.reports.Collection(ctx, time.Now().Add(-time.Hour), time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.True(t, report.Total.Equal(testutil.Amount("6500.50")))

	defaulters, err := env.reports.Defaulters(ctx, fee.DefaulterFilter{AcademicYearID: env.year.ID})
	require.NoError(t, err)
	require.Len(t, defaulters, 1)
	assert.Equal(t, "Amani Kabila", defaulters[0].StudentName)

	dash, err := env.reports.Dashboard(ctx, env.year.ID)
	require.NoError(t, err)
	assert.True(t, dash.TotalConcession.Equal(testutil.Amount("3000")))
	assert.Equal(t, 1, dash.DefaulterCount)
}

func TestPostgres_concurrentPayments(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	adm := env.admit(t, "Amani", "Kabila")

	const workers = 10
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.fees.CollectPayment(ctx, fee.NewPayment{
				LedgerID: adm.Ledger.ID,
				Amount:   testutil.Amount("1000"),
				Mode:     fee.PaymentModeCash,
			}, cashier)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}

	ledger, err := env.fees.GetLedgerByID(ctx, adm.Ledger.ID)
	require.NoError(t, err)
	assert.True(t, ledger.PaidAmount.Equal(testutil.Amount("10000")), "row locks serialize payments; got %s", ledger.PaidAmount)
	assert.True(t, ledger.DueAmount.Equal(testutil.Amount("31000")))
}

func TestPostgres_constraints(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	adm := env.admit(t, "Amani", "Kabila")

	_, err := env.fees.GenerateLedger(ctx, adm.Student.ID, env.year.ID, env.class.ID)
	assert.True(t, core.IsConflict(err), "got %v", err)

	_, err = env.feeRepo.CreateTemplate(ctx, fee.Template{
		ID:             uuid.NewString(),
		Name:           "Again",
		AcademicYearID: env.year.ID,
		ClassID:        env.class.ID,
		IsActive:       true,
	})
	assert.True(t, core.IsConflict(err), "got %v", err)

	_, err = env.fees.GetReceipt(ctx, "REC-NOPE")
	assert.True(t, core.IsNotFound(err))

	missing := uuid.NewString()
	_, err = env.fees.GenerateLedger(ctx, missing, env.year.ID, env.class.ID)
	var nfErr *core.NotFoundError
	require.True(t, errors.As(err, &nfErr), "got %v", err)
	assert.Equal(t, "student", nfErr.Entity)
	assert.Equal(t, missing, nfErr.Key)

	first, err := env.fees.CollectPayment(ctx, fee.NewPayment{
		LedgerID: adm.Ledger.ID, Amount: testutil.Amount("1"), Mode: fee.PaymentModeCash, IdempotencyKey: "dup-key",
	}, cashier)
	require.NoError(t, err)
	first.ID, first.ReceiptNo = uuid.NewString(), "REC-DUP"
	_, err = env.feeRepo.CreateReceipt(ctx, first)
	assert.True(t, core.IsTransaction(err), "a duplicate idempotency key is retryable; got %v", err)
	assert.False(t, core.IsConflict(err), "got %v", err)

	require.NoError(t, env.schools.SetAcademicYearLocked(ctx, env.year.ID, true))
	_, err = env.fees.CollectPayment(ctx, fee.NewPayment{LedgerID: adm.Ledger.ID, Amount: testutil.Amount("1"), Mode: fee.PaymentModeCash}, cashier)
	assert.ErrorIs(t, err, school.ErrYearLocked)
}

func TestPostgres_parents(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	admit := func(first string) student.Admission {
		adm, err := env.students.Admit(ctx, student.NewStudent{
			FirstName:      first,
			LastName:       "Kabila",
			AcademicYearID: env.year.ID,
			ClassID:        env.class.ID,
			Parent:         &student.NewParent{PrimaryPhone: "+243812345678", MotherName: "Sifa Kabila", Relation: "MOTHER"},
		})
		require.NoError(t, err)
		require.NotNil(t, adm.Parent)
		return adm
	}
	first, second := admit("Amani"), admit("Baraka")
	assert.Equal(t, first.Parent.ID, second.Parent.ID)

	detail, err := env.students.GetParent(ctx, first.Parent.ID)
	require.NoError(t, err)
	assert.Equal(t, "Sifa Kabila", detail.MotherName.String)
	if assert.Len(t, detail.Children, 2) {
		assert.Equal(t, "MOTHER", detail.Children[0].ParentRelation.String)
	}

	_, err = env.stuRepo.CreateParent(ctx, student.Parent{
		ID: uuid.NewString(), PrimaryPhone: "+243812345678", Status: student.ParentStatusActive,
		CreatedAt: time.Now(), UpdatedAt: time.Now(),
	})
	assert.True(t, core.IsTransaction(err), "the retry finds the parent; got %v", err)

	missing := uuid.NewString()
	orphan := first.Student
	orphan.ID, orphan.AdmissionNo = uuid.NewString(), "ADM-ORPHAN"
	orphan.ParentID.String = missing
	_, err = env.stuRepo.CreateStudent(ctx, orphan)
	var nfErr *core.NotFoundError
	require.True(t, errors.As(err, &nfErr), "got %v", err)
	assert.Equal(t, "parent", nfErr.Entity)
	assert.Equal(t, missing, nfErr.Key)
}
