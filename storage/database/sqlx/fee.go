package sqlxrepos

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/feeledger/core"
	"github.com/trezcool/feeledger/core/fee"
)

type feeRepository struct {
	db *sqlx.DB
}

var (
	_ fee.Repository       = (*feeRepository)(nil) // interface compliance check
	_ fee.ReportRepository = (*feeRepository)(nil)
)

// NewFeeRepository returns the fee repository; it also serves the reports.
func NewFeeRepository(db *sqlx.DB) *feeRepository {
	return &feeRepository{db: db}
}

const (
	templateColumns = `id, name, academic_year_id, class_id, total_yearly_amount, is_active, created_at, updated_at`
	ledgerColumns   = `id, student_id, academic_year_id, class_id, fee_template_id, total_amount, concession_amount,
		final_amount, paid_amount, due_amount, status, remarks, created_at, updated_at`
	receiptColumns = `id, receipt_no, student_id, ledger_id, academic_year_id, amount_paid, payment_date,
		payment_mode, reference_no, collected_by, remarks, idempotency_key, created_at`
)

type (
	componentRow struct {
		TemplateID string `db:"template_id"`
		Position   int    `db:"position"`
		fee.Component
	}

	installmentRow struct {
		LedgerID string `db:"ledger_id"`
		Position int    `db:"position"`
		fee.Installment
	}
)

// Templates

func (repo *feeRepository) CreateTemplate(ctx context.Context, tmpl fee.Template) (fee.Template, error) {
	exec := getExec(ctx, repo.db)
	_, err := sqlx.NamedExecContext(ctx, exec, `
		INSERT INTO fee_templates (`+templateColumns+`)
		VALUES (:id, :name, :academic_year_id, :class_id, :total_yearly_amount, :is_active, :created_at, :updated_at)`, tmpl)
	if err != nil {
		return fee.Template{}, trapPQErr(err, fee.ErrTemplateExists.Error())
	}

	for i, comp := range tmpl.Components {
		row := componentRow{TemplateID: tmpl.ID, Position: i, Component: comp}
		_, err = sqlx.NamedExecContext(ctx, exec, `
			INSERT INTO fee_template_components (template_id, position, name, amount, frequency, due_day, is_mandatory)
			VALUES (:template_id, :position, :name, :amount, :frequency, :due_day, :is_mandatory)`, row)
		if err != nil {
			return fee.Template{}, errors.Wrap(err, "inserting component")
		}
	}
	return tmpl, nil
}

func (repo *feeRepository) GetTemplate(ctx context.Context, academicYearID, classID string) (fee.Template, error) {
	exec := getExec(ctx, repo.db)
	var tmpl fee.Template
	err := sqlx.GetContext(ctx, exec, &tmpl, `
		SELECT `+templateColumns+` FROM fee_templates
		WHERE academic_year_id = $1 AND class_id = $2 AND is_active`, academicYearID, classID)
	if err != nil {
		return fee.Template{}, trapNoRowsErr(err, "fee template", "")
	}
	if tmpl.Components, err = repo.components(ctx, exec, tmpl.ID); err != nil {
		return fee.Template{}, err
	}
	return tmpl, nil
}

func (repo *feeRepository) QueryTemplates(ctx context.Context, filter fee.TemplateFilter) ([]fee.Template, error) {
	conds := []string{"TRUE"}
	args := make([]interface{}, 0, 2)
	if filter.AcademicYearID != "" {
		args = append(args, filter.AcademicYearID)
		conds = append(conds, fmt.Sprintf("academic_year_id = $%d", len(args)))
	}
	if filter.ClassID != "" {
		args = append(args, filter.ClassID)
		conds = append(conds, fmt.Sprintf("class_id = $%d", len(args)))
	}

	exec := getExec(ctx, repo.db)
	templates := make([]fee.Template, 0)
	q := `SELECT ` + templateColumns + ` FROM fee_templates WHERE ` + strings.Join(conds, " AND ") + ` ORDER BY created_at DESC`
	if err := sqlx.SelectContext(ctx, exec, &templates, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying templates")
	}
	for i := range templates {
		comps, err := repo.components(ctx, exec, templates[i].ID)
		if err != nil {
			return nil, err
		}
		templates[i].Components = comps
	}
	return templates, nil
}

func (repo *feeRepository) components(ctx context.Context, exec sqlx.ExtContext, templateID string) ([]fee.Component, error) {
	var rows []componentRow
	err := sqlx.SelectContext(ctx, exec, &rows, `
		SELECT template_id, position, name, amount, frequency, due_day, is_mandatory
		FROM fee_template_components WHERE template_id = $1 ORDER BY position`, templateID)
	if err != nil {
		return nil, errors.Wrap(err, "querying components")
	}
	comps := make([]fee.Component, len(rows))
	for i, row := range rows {
		comps[i] = row.Component
	}
	return comps, nil
}

// Ledgers

func (repo *feeRepository) CreateLedger(ctx context.Context, ledger fee.Ledger) (fee.Ledger, error) {
	exec := getExec(ctx, repo.db)
	_, err := sqlx.NamedExecContext(ctx, exec, `
		INSERT INTO ledgers (`+ledgerColumns+`)
		VALUES (:id, :student_id, :academic_year_id, :class_id, :fee_template_id, :total_amount, :concession_amount,
			:final_amount, :paid_amount, :due_amount, :status, :remarks, :created_at, :updated_at)`, ledger)
	if err != nil {
		return fee.Ledger{}, trapPQErr(err, fee.ErrLedgerExists.Error(),
			reference{"ledgers_student_id_fkey", "student", ledger.StudentID},
			reference{"ledgers_academic_year_id_fkey", "academic year", ledger.AcademicYearID},
			reference{"ledgers_class_id_fkey", "class", ledger.ClassID},
			reference{"ledgers_fee_template_id_fkey", "fee template", ledger.FeeTemplateID},
		)
	}
	if err = repo.insertInstallments(ctx, exec, ledger); err != nil {
		return fee.Ledger{}, err
	}
	return repo.GetLedger(ctx, ledger.ID, false)
}

func (repo *feeRepository) insertInstallments(ctx context.Context, exec sqlx.ExtContext, ledger fee.Ledger) error {
	for i, inst := range ledger.Installments {
		row := installmentRow{LedgerID: ledger.ID, Position: i, Installment: inst}
		_, err := sqlx.NamedExecContext(ctx, exec, `
			INSERT INTO ledger_installments (ledger_id, position, name, amount, due_date, paid_amount, waived_amount, status)
			VALUES (:ledger_id, :position, :name, :amount, :due_date, :paid_amount, :waived_amount, :status)`, row)
		if err != nil {
			return errors.Wrap(err, "inserting installment")
		}
	}
	return nil
}

func (repo *feeRepository) GetLedger(ctx context.Context, id string, forUpdate bool) (fee.Ledger, error) {
	q := `SELECT ` + ledgerColumns + ` FROM ledgers WHERE id = $1`
	if forUpdate {
		q += ` FOR UPDATE`
	}
	return repo.getLedger(ctx, q, "ledger", id, id)
}

func (repo *feeRepository) GetStudentLedger(ctx context.Context, studentID, academicYearID string) (fee.Ledger, error) {
	q := `SELECT ` + ledgerColumns + ` FROM ledgers WHERE student_id = $1 AND academic_year_id = $2`
	return repo.getLedger(ctx, q, "ledger", "", studentID, academicYearID)
}

func (repo *feeRepository) getLedger(ctx context.Context, q, entity, key string, args ...interface{}) (fee.Ledger, error) {
	exec := getExec(ctx, repo.db)
	var ledger fee.Ledger
	if err := sqlx.GetContext(ctx, exec, &ledger, q, args...); err != nil {
		return fee.Ledger{}, trapNoRowsErr(err, entity, key)
	}

	var rows []installmentRow
	err := sqlx.SelectContext(ctx, exec, &rows, `
		SELECT ledger_id, position, name, amount, due_date, paid_amount, waived_amount, status
		FROM ledger_installments WHERE ledger_id = $1 ORDER BY position`, ledger.ID)
	if err != nil {
		return fee.Ledger{}, errors.Wrap(err, "querying installments")
	}
	ledger.Installments = make([]fee.Installment, len(rows))
	for i, row := range rows {
		ledger.Installments[i] = row.Installment
	}

	ledger.Concessions = make([]fee.ConcessionEntry, 0)
	err = sqlx.SelectContext(ctx, exec, &ledger.Concessions, `
		SELECT id, ledger_id, amount, reason, applied_by, applied_at
		FROM ledger_concessions WHERE ledger_id = $1 ORDER BY applied_at, id`, ledger.ID)
	return ledger, errors.Wrap(err, "querying concessions")
}

func (repo *feeRepository) UpdateLedger(ctx context.Context, ledger fee.Ledger) (fee.Ledger, error) {
	exec := getExec(ctx, repo.db)
	res, err := sqlx.NamedExecContext(ctx, exec, `
		UPDATE ledgers SET
			concession_amount = :concession_amount, final_amount = :final_amount, paid_amount = :paid_amount,
			due_amount = :due_amount, status = :status, remarks = :remarks, updated_at = :updated_at
		WHERE id = :id`, ledger)
	if err != nil {
		return fee.Ledger{}, trapPQErr(err, "")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fee.Ledger{}, core.NewNotFoundError("ledger", ledger.ID)
	}

	for i, inst := range ledger.Installments {
		row := installmentRow{LedgerID: ledger.ID, Position: i, Installment: inst}
		_, err = sqlx.NamedExecContext(ctx, exec, `
			UPDATE ledger_installments SET paid_amount = :paid_amount, waived_amount = :waived_amount, status = :status
			WHERE ledger_id = :ledger_id AND position = :position`, row)
		if err != nil {
			return fee.Ledger{}, errors.Wrap(err, "updating installment")
		}
	}
	return repo.GetLedger(ctx, ledger.ID, false)
}

func (repo *feeRepository) AddConcession(ctx context.Context, entry fee.ConcessionEntry) error {
	_, err := sqlx.NamedExecContext(ctx, getExec(ctx, repo.db), `
		INSERT INTO ledger_concessions (id, ledger_id, amount, reason, applied_by, applied_at)
		VALUES (:id, :ledger_id, :amount, :reason, :applied_by, :applied_at)`, entry)
	return trapPQErr(err, "")
}

func (repo *feeRepository) QueryLedgersMissingFinalAmount(ctx context.Context) ([]fee.Ledger, error) {
	ledgers := make([]fee.Ledger, 0)
	err := sqlx.SelectContext(ctx, getExec(ctx, repo.db), &ledgers, `
		SELECT `+ledgerColumns+` FROM ledgers WHERE final_amount IS NULL ORDER BY created_at`)
	return ledgers, errors.Wrap(err, "querying legacy ledgers")
}

// Receipts

func (repo *feeRepository) CreateReceipt(ctx context.Context, receipt fee.Receipt) (fee.Receipt, error) {
	_, err := sqlx.NamedExecContext(ctx, getExec(ctx, repo.db), `
		INSERT INTO receipts (`+receiptColumns+`)
		VALUES (:id, :receipt_no, :student_id, :ledger_id, :academic_year_id, :amount_paid, :payment_date,
			:payment_mode, :reference_no, :collected_by, :remarks, :idempotency_key, :created_at)`, receipt)
	if err != nil {
		err = trapPQErr(err, "duplicate receipt")
		if core.IsConflict(err) { // receipt number or idempotency key taken by a concurrent transaction
			return fee.Receipt{}, core.NewTransactionError(err)
		}
		return fee.Receipt{}, err
	}
	return receipt, nil
}

func (repo *feeRepository) GetReceipt(ctx context.Context, receiptNo string) (fee.Receipt, error) {
	var receipt fee.Receipt
	err := sqlx.GetContext(ctx, getExec(ctx, repo.db), &receipt, `SELECT `+receiptColumns+` FROM receipts WHERE receipt_no = $1`, receiptNo)
	return receipt, trapNoRowsErr(err, "receipt", receiptNo)
}

func (repo *feeRepository) GetReceiptByIdempotencyKey(ctx context.Context, key string) (fee.Receipt, error) {
	var receipt fee.Receipt
	err := sqlx.GetContext(ctx, getExec(ctx, repo.db), &receipt, `SELECT `+receiptColumns+` FROM receipts WHERE idempotency_key = $1`, key)
	return receipt, trapNoRowsErr(err, "receipt", "")
}

func (repo *feeRepository) QueryReceipts(ctx context.Context, filter fee.ReceiptFilter) ([]fee.Receipt, error) {
	conds := []string{"TRUE"}
	args := make([]interface{}, 0, 3)
	for col, val := range map[string]string{
		"student_id":       filter.StudentID,
		"academic_year_id": filter.AcademicYearID,
		"ledger_id":        filter.LedgerID,
	} {
		if val != "" {
			args = append(args, val)
			conds = append(conds, fmt.Sprintf("%s = $%d", col, len(args)))
		}
	}

	receipts := make([]fee.Receipt, 0)
	q := `SELECT ` + receiptColumns + ` FROM receipts WHERE ` + strings.Join(conds, " AND ") + ` ORDER BY payment_date DESC, receipt_no DESC`
	err := sqlx.SelectContext(ctx, getExec(ctx, repo.db), &receipts, q, args...)
	return receipts, errors.Wrap(err, "querying receipts")
}

// Reports

func (repo *feeRepository) CollectionByMode(ctx context.Context, filter fee.CollectionFilter) ([]fee.ModeCollection, error) {
	conds := []string{"TRUE"}
	args := make([]interface{}, 0, 3)
	if !filter.From.IsZero() {
		args = append(args, filter.From)
		conds = append(conds, fmt.Sprintf("payment_date >= $%d", len(args)))
	}
	if !filter.To.IsZero() {
		args = append(args, filter.To)
		conds = append(conds, fmt.Sprintf("payment_date < $%d", len(args)))
	}
	if filter.AcademicYearID != "" {
		args = append(args, filter.AcademicYearID)
		conds = append(conds, fmt.Sprintf("academic_year_id = $%d", len(args)))
	}

	cols := make([]fee.ModeCollection, 0)
	err := sqlx.SelectContext(ctx, getExec(ctx, repo.db), &cols, `
		SELECT payment_mode, SUM(amount_paid) AS total, COUNT(*) AS count
		FROM receipts WHERE `+strings.Join(conds, " AND ")+`
		GROUP BY payment_mode ORDER BY payment_mode`, args...)
	return cols, errors.Wrap(err, "collecting by mode")
}

func (repo *feeRepository) QueryDefaulters(ctx context.Context, filter fee.DefaulterFilter) ([]fee.Defaulter, error) {
	conds := []string{"l.status IN ('PENDING', 'PARTIAL')"}
	args := make([]interface{}, 0, 2)
	if filter.ClassID != "" {
		args = append(args, filter.ClassID)
		conds = append(conds, fmt.Sprintf("l.class_id = $%d", len(args)))
	}
	if filter.AcademicYearID != "" {
		args = append(args, filter.AcademicYearID)
		conds = append(conds, fmt.Sprintf("l.academic_year_id = $%d", len(args)))
	}

	orderBy := make([]string, 0, len(filter.Orderings)+1)
	for _, ord := range filter.Orderings {
		if fee.DefaulterOrderingFields[ord.Field] { // whitelisted: safe to interpolate
			orderBy = append(orderBy, ord.String())
		}
	}
	orderBy = append(orderBy, "due_amount DESC")

	defaulters := make([]fee.Defaulter, 0)
	err := sqlx.SelectContext(ctx, getExec(ctx, repo.db), &defaulters, `
		SELECT l.id AS ledger_id, l.student_id, s.admission_no, s.first_name || ' ' || s.last_name AS student_name,
			l.class_id, l.academic_year_id, COALESCE(l.final_amount, l.total_amount - l.concession_amount) AS final_amount,
			l.paid_amount, l.due_amount, l.status
		FROM ledgers l JOIN students s ON s.id = l.student_id
		WHERE `+strings.Join(conds, " AND ")+`
		ORDER BY `+strings.Join(orderBy, ", "), args...)
	return defaulters, errors.Wrap(err, "querying defaulters")
}

func (repo *feeRepository) LedgerTotals(ctx context.Context, academicYearID string) (fee.LedgerTotals, error) {
	q := `
		SELECT COALESCE(SUM(due_amount), 0) AS total_pending,
			COALESCE(SUM(concession_amount), 0) AS total_concession,
			COUNT(*) FILTER (WHERE status IN ('PENDING', 'PARTIAL')) AS defaulter_count
		FROM ledgers`
	args := make([]interface{}, 0, 1)
	if academicYearID != "" {
		q += ` WHERE academic_year_id = $1`
		args = append(args, academicYearID)
	}

	var totals fee.LedgerTotals
	err := sqlx.GetContext(ctx, getExec(ctx, repo.db), &totals, q, args...)
	return totals, errors.Wrap(err, "totalling ledgers")
}
