package fee

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/feeledger/core"
	"github.com/trezcool/feeledger/core/school"
	"github.com/trezcool/feeledger/core/user"
)

// reportsKeyPrefix namespaces every cached report; any ledger write evicts them all.
const reportsKeyPrefix = "reports:"

// Academics resolves the academic references of fee operations.
type Academics interface {
	GetOpenAcademicYear(ctx context.Context, id string) (school.AcademicYear, error)
	GetClass(ctx context.Context, id string) (school.ClassLevel, error)
}

// ReceiptNotifier is told about each new receipt once its payment has committed.
type ReceiptNotifier interface {
	ReceiptIssued(ctx context.Context, receipt Receipt)
}

// Option configures optional collaborators of the Service.
type Option func(*Service)

// WithReceiptNotifier has n told about every receipt issued.
func WithReceiptNotifier(n ReceiptNotifier) Option {
	return func(svc *Service) { svc.notifier = n }
}

type Service struct {
	tx         core.Transactor
	repo       Repository
	academics  Academics
	cache      core.Cache
	logger     core.Logger
	receiptNos *ReceiptNumberer
	notifier   ReceiptNotifier
	dueDay     int
	now        func() time.Time
}

func NewService(
	tx core.Transactor,
	repo Repository,
	academics Academics,
	cache core.Cache,
	logger core.Logger,
	conf *core.Config,
	opts ...Option,
) (*Service, error) {
	receiptNos, err := NewReceiptNumberer(conf.Fees.ReceiptPrefix, conf.Fees.SnowflakeNode)
	if err != nil {
		return nil, err
	}
	svc := &Service{
		tx:         tx,
		repo:       repo,
		academics:  academics,
		cache:      cache,
		logger:     logger,
		receiptNos: receiptNos,
		dueDay:     conf.Fees.DefaultDueDay,
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// CreateTemplate registers the fee template of a class for an academic year.
func (svc *Service) CreateTemplate(ctx context.Context, nt NewTemplate) (Template, error) {
	var tmpl Template
	err := svc.tx.WithTransaction(ctx, func(ctx context.Context) error {
		if _, err := svc.academics.GetOpenAcademicYear(ctx, nt.AcademicYearID); err != nil {
			return err
		}
		if _, err := svc.academics.GetClass(ctx, nt.ClassID); err != nil {
			return err
		}
		if _, err := svc.repo.GetTemplate(ctx, nt.AcademicYearID, nt.ClassID); err == nil {
			return core.NewConflictError(ErrTemplateExists.Error())
		} else if !core.IsNotFound(err) {
			return errors.Wrap(err, "checking existing template")
		}

		now := svc.now()
		tmpl = Template{
			ID:             uuid.NewString(),
			Name:           nt.Name,
			AcademicYearID: nt.AcademicYearID,
			ClassID:        nt.ClassID,
			Components:     nt.Components,
			IsActive:       true,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		tmpl.TotalYearlyAmount = tmpl.ComputeTotal()

		var err error
		tmpl, err = svc.repo.CreateTemplate(ctx, tmpl)
		return errors.Wrap(err, "creating template")
	})
	return tmpl, err
}

func (svc *Service) QueryTemplates(ctx context.Context, filter TemplateFilter) ([]Template, error) {
	return svc.repo.QueryTemplates(ctx, filter)
}

// GenerateLedger opens the fee account of a student from the template of their class.
// It returns a nil Ledger, and no error, when no template is configured: the student owes nothing.
// When ctx carries a transaction (e.g. student admission), generation joins it.
func (svc *Service) GenerateLedger(ctx context.Context, studentID, academicYearID, classID string) (*Ledger, error) {
	var ledger *Ledger
	err := svc.tx.WithTransaction(ctx, func(ctx context.Context) error {
		year, err := svc.academics.GetOpenAcademicYear(ctx, academicYearID)
		if err != nil {
			return err
		}
		if _, err = svc.academics.GetClass(ctx, classID); err != nil {
			return err
		}

		tmpl, err := svc.repo.GetTemplate(ctx, academicYearID, classID)
		if err != nil {
			if core.IsNotFound(err) {
				svc.logger.Info("no fee template configured; ledger skipped", map[string]interface{}{
					"student_id": studentID, "academic_year_id": academicYearID, "class_id": classID,
				})
				return nil
			}
			return errors.Wrap(err, "getting template")
		}

		if _, err = svc.repo.GetStudentLedger(ctx, studentID, academicYearID); err == nil {
			return core.NewConflictError(ErrLedgerExists.Error())
		} else if !core.IsNotFound(err) {
			return errors.Wrap(err, "checking existing ledger")
		}

		installments := BuildInstallments(tmpl, year.StartDate, svc.dueDay)
		created, err := svc.repo.CreateLedger(ctx, newLedger(uuid.NewString(), studentID, tmpl, installments, svc.now()))
		if err != nil {
			return errors.Wrap(err, "creating ledger")
		}
		ledger = &created
		return nil
	})
	if err != nil {
		return nil, err
	}
	if ledger != nil {
		svc.invalidateReports(ctx)
	}
	return ledger, nil
}

// CollectPayment records a receipt and applies the payment to the ledger, as one unit.
// A payment carrying an idempotency key that was already recorded returns the original receipt.
func (svc *Service) CollectPayment(ctx context.Context, np NewPayment, collectedBy user.User) (Receipt, error) {
	if err := np.check(); err != nil {
		return Receipt{}, err
	}

	var receipt Receipt
	var replayed bool
	err := svc.tx.WithTransaction(ctx, func(ctx context.Context) error {
		ledger, err := svc.repo.GetLedger(ctx, np.LedgerID, true /* forUpdate */)
		if err != nil {
			return err
		}

		if np.IdempotencyKey != "" {
			prev, err := svc.repo.GetReceiptByIdempotencyKey(ctx, np.IdempotencyKey)
			switch {
			case err == nil:
				if prev.LedgerID != np.LedgerID || !prev.AmountPaid.Equal(np.Amount) || prev.PaymentMode != np.Mode {
					return core.NewConflictError(ErrIdempotencyMismatch.Error())
				}
				receipt, replayed = prev, true
				return nil
			case !core.IsNotFound(err):
				return errors.Wrap(err, "looking up idempotency key")
			}
		}

		if _, err = svc.academics.GetOpenAcademicYear(ctx, ledger.AcademicYearID); err != nil {
			return err
		}

		if ledger.repairFinalAmount() {
			svc.logger.Warn("ledger had no final amount; derived from total and concession", map[string]interface{}{
				"ledger_id": ledger.ID, "final_amount": ledger.FinalAmount.Decimal.StringFixed(2),
			}, collectedBy)
		}
		ledger.recompute()

		if np.Amount.GreaterThan(ledger.DueAmount) {
			return core.NewValidationError(ErrAmountExceedsDue, core.FieldError{
				Field: "amount_paid",
				Error: fmt.Sprintf("must not exceed the due amount (%s)", ledger.DueAmount.StringFixed(2)),
			})
		}

		now := svc.now()
		paymentDate := now
		if np.PaymentDate != nil && !np.PaymentDate.IsZero() {
			paymentDate = np.PaymentDate.UTC()
		}
		receipt = Receipt{
			ID:             uuid.NewString(),
			ReceiptNo:      svc.receiptNos.Next(),
			StudentID:      ledger.StudentID,
			LedgerID:       ledger.ID,
			AcademicYearID: ledger.AcademicYearID,
			AmountPaid:     np.Amount,
			PaymentDate:    paymentDate,
			PaymentMode:    np.Mode,
			ReferenceNo:    nullString(np.ReferenceNo),
			CollectedBy:    collectedBy.DisplayName(),
			Remarks:        nullString(np.Remarks),
			IdempotencyKey: nullString(np.IdempotencyKey),
			CreatedAt:      now,
		}
		if receipt, err = svc.repo.CreateReceipt(ctx, receipt); err != nil {
			return errors.Wrap(err, "creating receipt")
		}

		if advance := ledger.applyPayment(np.Amount); advance.IsPositive() {
			svc.logger.Info("payment exceeds installment schedule; kept as advance", map[string]interface{}{
				"ledger_id": ledger.ID, "receipt_no": receipt.ReceiptNo, "advance": advance.StringFixed(2),
			})
		}
		ledger.UpdatedAt = now
		if _, err = svc.repo.UpdateLedger(ctx, ledger); err != nil {
			return errors.Wrap(err, "updating ledger")
		}

		if svc.notifier != nil {
			issued := receipt
			issued.AmountInWords = AmountInWords(issued.AmountPaid)
			core.AfterCommit(ctx, func(ctx context.Context) { svc.notifier.ReceiptIssued(ctx, issued) })
		}
		return nil
	})
	if err != nil {
		return Receipt{}, err
	}

	if !replayed {
		svc.invalidateReports(ctx)
	}
	receipt.AmountInWords = AmountInWords(receipt.AmountPaid)
	return receipt, nil
}

// ApplyConcession sets the total concession of a ledger and appends it to the concession history.
func (svc *Service) ApplyConcession(ctx context.Context, ledgerID string, nc NewConcession, appliedBy user.User) (Ledger, error) {
	if err := nc.check(); err != nil {
		return Ledger{}, err
	}

	var ledger Ledger
	err := svc.tx.WithTransaction(ctx, func(ctx context.Context) error {
		var err error
		if ledger, err = svc.repo.GetLedger(ctx, ledgerID, true /* forUpdate */); err != nil {
			return err
		}
		if _, err = svc.academics.GetOpenAcademicYear(ctx, ledger.AcademicYearID); err != nil {
			return err
		}
		if ledger.repairFinalAmount() {
			svc.logger.Warn("ledger had no final amount; derived from total and concession", map[string]interface{}{
				"ledger_id": ledger.ID,
			}, appliedBy)
		}

		now := svc.now()
		entry := ConcessionEntry{
			ID:        uuid.NewString(),
			LedgerID:  ledger.ID,
			Amount:    nc.Amount,
			Reason:    nc.Reason,
			AppliedBy: appliedBy.DisplayName(),
			AppliedAt: now,
		}
		if err = ledger.applyConcession(entry); err != nil {
			return core.NewValidationError(err, core.FieldError{
				Field: "concession_amount",
				Error: fmt.Sprintf("must be between 0 and the total amount (%s)", ledger.TotalAmount.StringFixed(2)),
			})
		}
		ledger.UpdatedAt = now

		if err = svc.repo.AddConcession(ctx, entry); err != nil {
			return errors.Wrap(err, "recording concession")
		}
		ledger, err = svc.repo.UpdateLedger(ctx, ledger)
		return errors.Wrap(err, "updating ledger")
	})
	if err != nil {
		return Ledger{}, err
	}

	svc.invalidateReports(ctx)
	return ledger, nil
}

// GetLedger returns the ledger of a student for an academic year, repairing legacy balances on the fly.
func (svc *Service) GetLedger(ctx context.Context, studentID, academicYearID string) (Ledger, error) {
	ledger, err := svc.repo.GetStudentLedger(ctx, studentID, academicYearID)
	if err != nil {
		return Ledger{}, err
	}
	ledger.repair()
	return ledger, nil
}

func (svc *Service) GetLedgerByID(ctx context.Context, id string) (Ledger, error) {
	ledger, err := svc.repo.GetLedger(ctx, id, false)
	if err != nil {
		return Ledger{}, err
	}
	ledger.repair()
	return ledger, nil
}

func (svc *Service) GetReceipt(ctx context.Context, receiptNo string) (Receipt, error) {
	receipt, err := svc.repo.GetReceipt(ctx, receiptNo)
	if err != nil {
		return Receipt{}, err
	}
	receipt.AmountInWords = AmountInWords(receipt.AmountPaid)
	return receipt, nil
}

// PaymentHistory lists the receipts of a student, newest first.
func (svc *Service) PaymentHistory(ctx context.Context, studentID, academicYearID string) ([]Receipt, error) {
	receipts, err := svc.repo.QueryReceipts(ctx, ReceiptFilter{StudentID: studentID, AcademicYearID: academicYearID})
	if err != nil {
		return nil, errors.Wrap(err, "querying receipts")
	}
	for i := range receipts {
		receipts[i].AmountInWords = AmountInWords(receipts[i].AmountPaid)
	}
	return receipts, nil
}

// RepairLedgers persists the final amount of every legacy ledger missing one.
// Each ledger is repaired in its own transaction; the count of repaired ledgers is returned.
func (svc *Service) RepairLedgers(ctx context.Context) (int, error) {
	legacy, err := svc.repo.QueryLedgersMissingFinalAmount(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "querying legacy ledgers")
	}

	var repaired int
	for _, l := range legacy {
		err := svc.tx.WithTransaction(ctx, func(ctx context.Context) error {
			ledger, err := svc.repo.GetLedger(ctx, l.ID, true /* forUpdate */)
			if err != nil {
				return err
			}
			if !ledger.repair() {
				return nil
			}
			ledger.UpdatedAt = svc.now()
			_, err = svc.repo.UpdateLedger(ctx, ledger)
			return err
		})
		if err != nil {
			return repaired, errors.Wrapf(err, "repairing ledger %s", l.ID)
		}
		repaired++
	}
	if repaired > 0 {
		svc.invalidateReports(ctx)
	}
	return repaired, nil
}

// invalidateReports evicts the cached reports once the transaction carried by ctx, if any, has committed.
func (svc *Service) invalidateReports(ctx context.Context) {
	core.AfterCommit(ctx, func(ctx context.Context) {
		if err := svc.cache.DeletePrefix(ctx, reportsKeyPrefix); err != nil {
			svc.logger.Warn("could not invalidate reports cache", err)
		}
	})
}

func nullString(s string) null.String {
	return null.NewString(s, s != "")
}
