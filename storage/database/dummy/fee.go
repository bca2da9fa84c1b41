package dummydb

import (
	"context"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/trezcool/feeledger/core"
	"github.com/trezcool/feeledger/core/fee"
)

type feeRepository struct {
	db *DB
}

var (
	_ fee.Repository       = (*feeRepository)(nil) // interface compliance check
	_ fee.ReportRepository = (*feeRepository)(nil)
)

// NewFeeRepository returns the fee repository; it also serves the reports.
func NewFeeRepository(db *DB) *feeRepository {
	return &feeRepository{db: db}
}

func (repo *feeRepository) CreateTemplate(ctx context.Context, tmpl fee.Template) (fee.Template, error) {
	err := repo.db.write(ctx, func() error {
		for _, t := range repo.db.templates {
			if t.ID == tmpl.ID || (t.AcademicYearID == tmpl.AcademicYearID && t.ClassID == tmpl.ClassID) {
				return core.NewConflictError(fee.ErrTemplateExists.Error())
			}
		}
		repo.db.templates[tmpl.ID] = copyTemplate(tmpl)
		return nil
	})
	return tmpl, err
}

func (repo *feeRepository) GetTemplate(ctx context.Context, academicYearID, classID string) (fee.Template, error) {
	var tmpl fee.Template
	var ok bool
	repo.db.read(ctx, func() {
		for _, t := range repo.db.templates {
			if t.AcademicYearID == academicYearID && t.ClassID == classID && t.IsActive {
				tmpl, ok = copyTemplate(t), true
				return
			}
		}
	})
	if !ok {
		return fee.Template{}, core.NewNotFoundError("fee template", "")
	}
	return tmpl, nil
}

func (repo *feeRepository) QueryTemplates(ctx context.Context, filter fee.TemplateFilter) ([]fee.Template, error) {
	templates := make([]fee.Template, 0)
	repo.db.read(ctx, func() {
		for _, t := range repo.db.templates {
			if filter.AcademicYearID != "" && t.AcademicYearID != filter.AcademicYearID {
				continue
			}
			if filter.ClassID != "" && t.ClassID != filter.ClassID {
				continue
			}
			templates = append(templates, copyTemplate(t))
		}
	})
	sort.Slice(templates, func(i, j int) bool { return templates[i].CreatedAt.After(templates[j].CreatedAt) })
	return templates, nil
}

func (repo *feeRepository) CreateLedger(ctx context.Context, ledger fee.Ledger) (fee.Ledger, error) {
	err := repo.db.write(ctx, func() error {
		if err := repo.db.checkLedgerRefs(ledger); err != nil {
			return err
		}
		for _, l := range repo.db.ledgers {
			if l.ID == ledger.ID || (l.StudentID == ledger.StudentID && l.AcademicYearID == ledger.AcademicYearID) {
				return core.NewConflictError(fee.ErrLedgerExists.Error())
			}
		}
		repo.db.ledgers[ledger.ID] = copyLedger(ledger)
		return nil
	})
	if err != nil {
		return fee.Ledger{}, err
	}
	return repo.GetLedger(ctx, ledger.ID, false)
}

// GetLedger ignores forUpdate: transactions hold the store-wide lock already.
func (repo *feeRepository) GetLedger(ctx context.Context, id string, _ bool) (fee.Ledger, error) {
	var ledger fee.Ledger
	var ok bool
	repo.db.read(ctx, func() {
		var l fee.Ledger
		if l, ok = repo.db.ledgers[id]; ok {
			ledger = repo.withConcessions(l)
		}
	})
	if !ok {
		return fee.Ledger{}, core.NewNotFoundError("ledger", id)
	}
	return ledger, nil
}

func (repo *feeRepository) GetStudentLedger(ctx context.Context, studentID, academicYearID string) (fee.Ledger, error) {
	var ledger fee.Ledger
	var ok bool
	repo.db.read(ctx, func() {
		for _, l := range repo.db.ledgers {
			if l.StudentID == studentID && l.AcademicYearID == academicYearID {
				ledger, ok = repo.withConcessions(l), true
				return
			}
		}
	})
	if !ok {
		return fee.Ledger{}, core.NewNotFoundError("ledger", "")
	}
	return ledger, nil
}

// withConcessions must be called with the lock held.
func (repo *feeRepository) withConcessions(l fee.Ledger) fee.Ledger {
	l = copyLedger(l)
	l.Concessions = append([]fee.ConcessionEntry{}, repo.db.concessions[l.ID]...)
	return l
}

func (repo *feeRepository) UpdateLedger(ctx context.Context, ledger fee.Ledger) (fee.Ledger, error) {
	err := repo.db.write(ctx, func() error {
		if _, ok := repo.db.ledgers[ledger.ID]; !ok {
			return core.NewNotFoundError("ledger", ledger.ID)
		}
		repo.db.ledgers[ledger.ID] = copyLedger(ledger)
		return nil
	})
	if err != nil {
		return fee.Ledger{}, err
	}
	return repo.GetLedger(ctx, ledger.ID, false)
}

func (repo *feeRepository) AddConcession(ctx context.Context, entry fee.ConcessionEntry) error {
	return repo.db.write(ctx, func() error {
		if _, ok := repo.db.ledgers[entry.LedgerID]; !ok {
			return core.NewNotFoundError("ledger", entry.LedgerID)
		}
		repo.db.concessions[entry.LedgerID] = append(repo.db.concessions[entry.LedgerID], entry)
		return nil
	})
}

func (repo *feeRepository) QueryLedgersMissingFinalAmount(ctx context.Context) ([]fee.Ledger, error) {
	ledgers := make([]fee.Ledger, 0)
	repo.db.read(ctx, func() {
		for _, l := range repo.db.ledgers {
			if !l.FinalAmount.Valid {
				ledgers = append(ledgers, copyLedger(l))
			}
		}
	})
	sort.Slice(ledgers, func(i, j int) bool { return ledgers[i].CreatedAt.Before(ledgers[j].CreatedAt) })
	return ledgers, nil
}

func (repo *feeRepository) CreateReceipt(ctx context.Context, receipt fee.Receipt) (fee.Receipt, error) {
	err := repo.db.write(ctx, func() error {
		if _, ok := repo.db.ledgers[receipt.LedgerID]; !ok {
			return core.NewNotFoundError("ledger", receipt.LedgerID)
		}
		for _, r := range repo.db.receipts {
			// same classification as a unique violation on postgres: the retry replays or renumbers
			dupKey := receipt.IdempotencyKey.Valid && r.IdempotencyKey == receipt.IdempotencyKey
			if r.ID == receipt.ID || r.ReceiptNo == receipt.ReceiptNo || dupKey {
				return core.NewTransactionError(core.NewConflictError("duplicate receipt"))
			}
		}
		repo.db.receipts[receipt.ID] = receipt
		return nil
	})
	return receipt, err
}

func (repo *feeRepository) GetReceipt(ctx context.Context, receiptNo string) (fee.Receipt, error) {
	return repo.findReceipt(ctx, "receipt", receiptNo, func(r fee.Receipt) bool { return r.ReceiptNo == receiptNo })
}

func (repo *feeRepository) GetReceiptByIdempotencyKey(ctx context.Context, key string) (fee.Receipt, error) {
	return repo.findReceipt(ctx, "receipt", "", func(r fee.Receipt) bool {
		return r.IdempotencyKey.Valid && r.IdempotencyKey.String == key
	})
}

func (repo *feeRepository) findReceipt(ctx context.Context, entity, key string, match func(fee.Receipt) bool) (fee.Receipt, error) {
	var receipt fee.Receipt
	var ok bool
	repo.db.read(ctx, func() {
		for _, r := range repo.db.receipts {
			if match(r) {
				receipt, ok = r, true
				return
			}
		}
	})
	if !ok {
		return fee.Receipt{}, core.NewNotFoundError(entity, key)
	}
	return receipt, nil
}

func (repo *feeRepository) QueryReceipts(ctx context.Context, filter fee.ReceiptFilter) ([]fee.Receipt, error) {
	receipts := make([]fee.Receipt, 0)
	repo.db.read(ctx, func() {
		for _, r := range repo.db.receipts {
			if filter.StudentID != "" && r.StudentID != filter.StudentID {
				continue
			}
			if filter.AcademicYearID != "" && r.AcademicYearID != filter.AcademicYearID {
				continue
			}
			if filter.LedgerID != "" && r.LedgerID != filter.LedgerID {
				continue
			}
			receipts = append(receipts, r)
		}
	})
	sort.Slice(receipts, func(i, j int) bool {
		if !receipts[i].PaymentDate.Equal(receipts[j].PaymentDate) {
			return receipts[i].PaymentDate.After(receipts[j].PaymentDate)
		}
		return receipts[i].ReceiptNo > receipts[j].ReceiptNo
	})
	return receipts, nil
}

// Reports

func (repo *feeRepository) CollectionByMode(ctx context.Context, filter fee.CollectionFilter) ([]fee.ModeCollection, error) {
	byMode := make(map[fee.PaymentMode]*fee.ModeCollection)
	repo.db.read(ctx, func() {
		for _, r := range repo.db.receipts {
			if !filter.From.IsZero() && r.PaymentDate.Before(filter.From) {
				continue
			}
			if !filter.To.IsZero() && !r.PaymentDate.Before(filter.To) {
				continue
			}
			if filter.AcademicYearID != "" && r.AcademicYearID != filter.AcademicYearID {
				continue
			}
			mc, ok := byMode[r.PaymentMode]
			if !ok {
				mc = &fee.ModeCollection{Mode: r.PaymentMode, Total: decimal.Zero}
				byMode[r.PaymentMode] = mc
			}
			mc.Total = mc.Total.Add(r.AmountPaid)
			mc.Count++
		}
	})

	cols := make([]fee.ModeCollection, 0, len(byMode))
	for _, mc := range byMode {
		cols = append(cols, *mc)
	}
	sort.Slice(cols, func(i, j int) bool { return cols[i].Mode < cols[j].Mode })
	return cols, nil
}

func (repo *feeRepository) QueryDefaulters(ctx context.Context, filter fee.DefaulterFilter) ([]fee.Defaulter, error) {
	defaulters := make([]fee.Defaulter, 0)
	repo.db.read(ctx, func() {
		for _, l := range repo.db.ledgers {
			if l.Status != fee.StatusPending && l.Status != fee.StatusPartial {
				continue
			}
			if filter.ClassID != "" && l.ClassID != filter.ClassID {
				continue
			}
			if filter.AcademicYearID != "" && l.AcademicYearID != filter.AcademicYearID {
				continue
			}
			s := repo.db.students[l.StudentID]
			defaulters = append(defaulters, fee.Defaulter{
				LedgerID:       l.ID,
				StudentID:      l.StudentID,
				AdmissionNo:    s.AdmissionNo,
				StudentName:    s.FullName(),
				ClassID:        l.ClassID,
				AcademicYearID: l.AcademicYearID,
				FinalAmount:    l.Final(),
				PaidAmount:     l.PaidAmount,
				DueAmount:      l.DueAmount,
				Status:         l.Status,
			})
		}
	})

	sort.SliceStable(defaulters, func(i, j int) bool {
		for _, ord := range filter.Orderings {
			if c := compareDefaulters(defaulters[i], defaulters[j], ord.Field); c != 0 {
				return (c < 0) == ord.Ascending
			}
		}
		return compareDefaulters(defaulters[i], defaulters[j], "due_amount") > 0
	})
	return defaulters, nil
}

func compareDefaulters(a, b fee.Defaulter, field string) int {
	switch field {
	case "due_amount":
		return a.DueAmount.Cmp(b.DueAmount)
	case "paid_amount":
		return a.PaidAmount.Cmp(b.PaidAmount)
	case "admission_no":
		return strings.Compare(a.AdmissionNo, b.AdmissionNo)
	case "student_name":
		return strings.Compare(a.StudentName, b.StudentName)
	}
	return 0
}

func (repo *feeRepository) LedgerTotals(ctx context.Context, academicYearID string) (fee.LedgerTotals, error) {
	totals := fee.LedgerTotals{TotalPending: decimal.Zero, TotalConcession: decimal.Zero}
	repo.db.read(ctx, func() {
		for _, l := range repo.db.ledgers {
			if academicYearID != "" && l.AcademicYearID != academicYearID {
				continue
			}
			totals.TotalPending = totals.TotalPending.Add(l.DueAmount)
			totals.TotalConcession = totals.TotalConcession.Add(l.ConcessionAmount)
			if l.Status == fee.StatusPending || l.Status == fee.StatusPartial {
				totals.DefaulterCount++
			}
		}
	})
	return totals, nil
}
