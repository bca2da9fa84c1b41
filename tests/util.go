package testutil

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/trezcool/feeledger/core/fee"
	"github.com/trezcool/feeledger/core/school"
	"github.com/trezcool/feeledger/core/student"
	"github.com/trezcool/feeledger/storage/database"
)

// TestDatabaseURLEnv names the env var pointing at a disposable Postgres database.
const TestDatabaseURLEnv = "TEST_DATABASE_URL"

var tables = []string{
	"receipts",
	"ledger_concessions",
	"ledger_installments",
	"ledgers",
	"fee_template_components",
	"fee_templates",
	"students",
	"parents",
	"admission_counters",
	"class_levels",
	"academic_years",
}

// PrepareDB opens & migrates the test database, then empties it.
// The test is skipped when no test database is configured.
func PrepareDB(t *testing.T) *sqlx.DB {
	t.Helper()

	dbURL := os.Getenv(TestDatabaseURLEnv)
	if dbURL == "" {
		t.Skipf("%s not set", TestDatabaseURLEnv)
	}

	db, err := database.OpenURL(dbURL)
	if err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err = database.SetUpGoose(); err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	if err = database.Migrate(db.DB); err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	ResetDB(t, db)
	return db
}

func ResetDB(t *testing.T, db *sqlx.DB) {
	t.Helper()
	for _, table := range tables {
		if _, err := db.Exec("DELETE FROM " + table); err != nil {
			t.Fatalf("ResetDB() failed: %v", err)
		}
	}
}

func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// Amount parses a decimal literal; for tests only.
func Amount(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func CreateAcademicYear(t *testing.T, repo school.Repository, name string, start time.Time, current bool) school.AcademicYear {
	t.Helper()
	year, err := repo.CreateAcademicYear(context.Background(), school.AcademicYear{
		ID:        uuid.NewString(),
		Name:      name,
		StartDate: start,
		EndDate:   start.AddDate(1, 0, -1),
		IsCurrent: current,
	})
	if err != nil {
		t.Fatalf("CreateAcademicYear() failed: %v", err)
	}
	return year
}

func CreateClass(t *testing.T, repo school.Repository, name string, order int) school.ClassLevel {
	t.Helper()
	class, err := repo.CreateClass(context.Background(), school.ClassLevel{ID: uuid.NewString(), Name: name, Order: order})
	if err != nil {
		t.Fatalf("CreateClass() failed: %v", err)
	}
	return class
}

func CreateTemplate(t *testing.T, repo fee.Repository, yearID, classID string, comps ...fee.Component) fee.Template {
	t.Helper()
	now := time.Now().UTC()
	tmpl := fee.Template{
		ID:             uuid.NewString(),
		Name:           "Fees",
		AcademicYearID: yearID,
		ClassID:        classID,
		Components:     comps,
		IsActive:       true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	tmpl.TotalYearlyAmount = tmpl.ComputeTotal()

	tmpl, err := repo.CreateTemplate(context.Background(), tmpl)
	if err != nil {
		t.Fatalf("CreateTemplate() failed: %v", err)
	}
	return tmpl
}

func CreateStudent(t *testing.T, repo student.Repository, yearID, classID, firstName, lastName string) student.Student {
	t.Helper()
	now := time.Now().UTC()
	s, err := repo.CreateStudent(context.Background(), student.Student{
		ID:             uuid.NewString(),
		AdmissionNo:    "ADM-" + uuid.NewString()[:8],
		FirstName:      firstName,
		LastName:       lastName,
		AcademicYearID: yearID,
		ClassID:        classID,
		Status:         student.StatusActive,
		AdmissionDate:  now,
		CreatedAt:      now,
	})
	if err != nil {
		t.Fatalf("CreateStudent() failed: %v", err)
	}
	return s
}
