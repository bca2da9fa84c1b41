package fee

import (
	"context"
	"time"
)

type Repository interface {
	CreateTemplate(ctx context.Context, tmpl Template) (Template, error)
	// GetTemplate returns the active template of a class for an academic year.
	GetTemplate(ctx context.Context, academicYearID, classID string) (Template, error)
	QueryTemplates(ctx context.Context, filter TemplateFilter) ([]Template, error)

	CreateLedger(ctx context.Context, ledger Ledger) (Ledger, error)
	// GetLedger loads a ledger with its installments & concessions.
	// forUpdate locks the ledger until the enclosing transaction ends.
	GetLedger(ctx context.Context, id string, forUpdate bool) (Ledger, error)
	GetStudentLedger(ctx context.Context, studentID, academicYearID string) (Ledger, error)
	// UpdateLedger persists balances, installment states & remarks.
	UpdateLedger(ctx context.Context, ledger Ledger) (Ledger, error)
	AddConcession(ctx context.Context, entry ConcessionEntry) error
	QueryLedgersMissingFinalAmount(ctx context.Context) ([]Ledger, error)

	CreateReceipt(ctx context.Context, receipt Receipt) (Receipt, error)
	GetReceipt(ctx context.Context, receiptNo string) (Receipt, error)
	GetReceiptByIdempotencyKey(ctx context.Context, key string) (Receipt, error)
	// QueryReceipts returns receipts newest first.
	QueryReceipts(ctx context.Context, filter ReceiptFilter) ([]Receipt, error)
}

type CollectionFilter struct {
	From           time.Time // inclusive; zero means unbounded
	To             time.Time // exclusive; zero means unbounded
	AcademicYearID string
}

type ReportRepository interface {
	CollectionByMode(ctx context.Context, filter CollectionFilter) ([]ModeCollection, error)
	QueryDefaulters(ctx context.Context, filter DefaulterFilter) ([]Defaulter, error)
	LedgerTotals(ctx context.Context, academicYearID string) (LedgerTotals, error)
}
