package fee

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/feeledger/core"
)

type Frequency string

const (
	FrequencyMonthly   Frequency = "MONTHLY"
	FrequencyQuarterly Frequency = "QUARTERLY"
	FrequencyYearly    Frequency = "YEARLY"
	FrequencyOneTime   Frequency = "ONE_TIME"
)

var Frequencies = []Frequency{FrequencyMonthly, FrequencyQuarterly, FrequencyYearly, FrequencyOneTime}

func (f Frequency) IsValid() bool {
	for _, freq := range Frequencies {
		if f == freq {
			return true
		}
	}
	return false
}

// Status is shared by ledgers and their installments.
type Status string

const (
	StatusPending Status = "PENDING"
	StatusPartial Status = "PARTIAL"
	StatusPaid    Status = "PAID"
)

type PaymentMode string

const (
	PaymentModeCash         PaymentMode = "CASH"
	PaymentModeUPI          PaymentMode = "UPI"
	PaymentModeCheque       PaymentMode = "CHEQUE"
	PaymentModeBankTransfer PaymentMode = "BANK_TRANSFER"
)

var PaymentModes = []PaymentMode{PaymentModeCash, PaymentModeUPI, PaymentModeCheque, PaymentModeBankTransfer}

func (m PaymentMode) IsValid() bool {
	for _, mode := range PaymentModes {
		if m == mode {
			return true
		}
	}
	return false
}

type Component struct {
	Name        string          `json:"name" db:"name" validate:"required"`
	Amount      decimal.Decimal `json:"amount" db:"amount" validate:"gte=0"`
	Frequency   Frequency       `json:"frequency" db:"frequency" validate:"required,frequency"`
	DueDay      int             `json:"due_day" db:"due_day" validate:"omitempty,min=1,max=31"`
	IsMandatory bool            `json:"is_mandatory" db:"is_mandatory"`
}

// YearlyAmount is what the component costs over a whole academic year.
func (c Component) YearlyAmount() decimal.Decimal {
	if c.Frequency == FrequencyMonthly {
		return c.Amount.Mul(decimal.NewFromInt(12))
	}
	return c.Amount
}

// Template defines the fees charged to a class for an academic year.
type Template struct {
	ID                string          `json:"id" db:"id"`
	Name              string          `json:"name" db:"name"`
	AcademicYearID    string          `json:"academic_year_id" db:"academic_year_id"`
	ClassID           string          `json:"class_id" db:"class_id"`
	Components        []Component     `json:"components" db:"-"`
	TotalYearlyAmount decimal.Decimal `json:"total_yearly_amount" db:"total_yearly_amount"`
	IsActive          bool            `json:"is_active" db:"is_active"`
	CreatedAt         time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at" db:"updated_at"`
}

// ComputeTotal sums the yearly amount of every component.
func (t Template) ComputeTotal() decimal.Decimal {
	total := decimal.Zero
	for _, comp := range t.Components {
		total = total.Add(comp.YearlyAmount())
	}
	return total
}

type Installment struct {
	Name         string          `json:"name" db:"name"`
	Amount       decimal.Decimal `json:"amount" db:"amount"`
	DueDate      time.Time       `json:"due_date" db:"due_date"`
	PaidAmount   decimal.Decimal `json:"paid_amount" db:"paid_amount"`
	WaivedAmount decimal.Decimal `json:"waived_amount" db:"waived_amount"`
	Status       Status          `json:"status" db:"status"`
}

// Outstanding is the part of the installment neither paid nor waived.
func (i Installment) Outstanding() decimal.Decimal {
	out := i.Amount.Sub(i.PaidAmount).Sub(i.WaivedAmount)
	if out.IsNegative() {
		return decimal.Zero
	}
	return out
}

type ConcessionEntry struct {
	ID        string          `json:"id" db:"id"`
	LedgerID  string          `json:"ledger_id" db:"ledger_id"`
	Amount    decimal.Decimal `json:"amount" db:"amount"`
	Reason    string          `json:"reason" db:"reason"`
	AppliedBy string          `json:"applied_by" db:"applied_by"`
	AppliedAt time.Time       `json:"applied_at" db:"applied_at"`
}

// Ledger is a student's fee account for one academic year.
type Ledger struct {
	ID               string          `json:"id" db:"id"`
	StudentID        string          `json:"student_id" db:"student_id"`
	AcademicYearID   string          `json:"academic_year_id" db:"academic_year_id"`
	ClassID          string          `json:"class_id" db:"class_id"`
	FeeTemplateID    string          `json:"fee_template_id" db:"fee_template_id"`
	TotalAmount      decimal.Decimal `json:"total_amount" db:"total_amount"`
	ConcessionAmount decimal.Decimal `json:"concession_amount" db:"concession_amount"`
	// FinalAmount is null on ledgers written before it was introduced.
	FinalAmount  decimal.NullDecimal `json:"final_amount" db:"final_amount"`
	PaidAmount   decimal.Decimal     `json:"paid_amount" db:"paid_amount"`
	DueAmount    decimal.Decimal     `json:"due_amount" db:"due_amount"`
	Status       Status              `json:"status" db:"status"`
	Installments []Installment       `json:"installments" db:"-"`
	Concessions  []ConcessionEntry   `json:"concessions" db:"-"`
	Remarks      null.String         `json:"remarks" db:"remarks"`
	CreatedAt    time.Time           `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time           `json:"updated_at" db:"updated_at"`
}

type Receipt struct {
	ID             string          `json:"id" db:"id"`
	ReceiptNo      string          `json:"receipt_no" db:"receipt_no"`
	StudentID      string          `json:"student_id" db:"student_id"`
	LedgerID       string          `json:"ledger_id" db:"ledger_id"`
	AcademicYearID string          `json:"academic_year_id" db:"academic_year_id"`
	AmountPaid     decimal.Decimal `json:"amount_paid" db:"amount_paid"`
	AmountInWords  string          `json:"amount_in_words" db:"-"`
	PaymentDate    time.Time       `json:"payment_date" db:"payment_date"`
	PaymentMode    PaymentMode     `json:"payment_mode" db:"payment_mode"`
	ReferenceNo    null.String     `json:"reference_no" db:"reference_no"`
	CollectedBy    string          `json:"collected_by" db:"collected_by"`
	Remarks        null.String     `json:"remarks" db:"remarks"`
	IdempotencyKey null.String     `json:"-" db:"idempotency_key"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
}

// NewTemplate contains information needed to create a new Template.
type NewTemplate struct {
	Name           string      `json:"name" validate:"required"`
	AcademicYearID string      `json:"academic_year_id" validate:"required"`
	ClassID        string      `json:"class_id" validate:"required"`
	Components     []Component `json:"components" validate:"required,min=1,dive"`
}

func (nt *NewTemplate) Validate(validate *validator.Validate) error {
	nt.Name = core.CleanString(nt.Name)
	for i := range nt.Components {
		nt.Components[i].Name = core.CleanString(nt.Components[i].Name)
	}
	if err := validate.Struct(nt); err != nil {
		return err
	}
	for i, comp := range nt.Components {
		if !isCents(comp.Amount) {
			return core.NewValidationError(nil, core.FieldError{Field: componentField(i, "amount"), Error: errTooPrecise})
		}
	}
	return nil
}

// NewPayment is a request to collect money against a ledger.
type NewPayment struct {
	LedgerID       string          `json:"ledger_id" validate:"required"`
	Amount         decimal.Decimal `json:"amount_paid" validate:"gt=0"`
	Mode           PaymentMode     `json:"payment_mode" validate:"required,paymentmode"`
	ReferenceNo    string          `json:"reference_no"`
	Remarks        string          `json:"remarks"`
	PaymentDate    *time.Time      `json:"payment_date"`
	IdempotencyKey string          `json:"-" validate:"max=128"`
}

func (np *NewPayment) Validate(validate *validator.Validate) error {
	np.ReferenceNo = core.CleanString(np.ReferenceNo)
	np.Remarks = core.CleanString(np.Remarks)
	np.IdempotencyKey = core.CleanString(np.IdempotencyKey)
	if err := validate.Struct(np); err != nil {
		return err
	}
	return np.check()
}

// check holds the rules enforced whichever way the payment came in.
func (np NewPayment) check() error {
	if !np.Amount.IsPositive() {
		return core.NewValidationError(ErrInvalidAmount, core.FieldError{Field: "amount_paid", Error: "must be greater than 0"})
	}
	if !isCents(np.Amount) {
		return core.NewValidationError(ErrInvalidAmount, core.FieldError{Field: "amount_paid", Error: errTooPrecise})
	}
	if !np.Mode.IsValid() {
		return core.NewValidationError(nil, core.FieldError{Field: "payment_mode", Error: errInvalidMode})
	}
	return nil
}

// NewConcession sets the total concession granted on a ledger.
type NewConcession struct {
	Amount decimal.Decimal `json:"concession_amount" validate:"gte=0"`
	Reason string          `json:"reason" validate:"required"`
}

func (nc *NewConcession) Validate(validate *validator.Validate) error {
	nc.Reason = core.CleanString(nc.Reason)
	if err := validate.Struct(nc); err != nil {
		return err
	}
	return nc.check()
}

func (nc NewConcession) check() error {
	if nc.Amount.IsNegative() {
		return core.NewValidationError(ErrInvalidAmount, core.FieldError{Field: "concession_amount", Error: "must not be negative"})
	}
	if !isCents(nc.Amount) {
		return core.NewValidationError(ErrInvalidAmount, core.FieldError{Field: "concession_amount", Error: errTooPrecise})
	}
	if nc.Reason == "" {
		return core.NewValidationError(nil, core.FieldError{Field: "reason", Error: "this field is required"})
	}
	return nil
}

type TemplateFilter struct {
	AcademicYearID string `query:"year_id"`
	ClassID        string `query:"class_id"`
}

type ReceiptFilter struct {
	StudentID      string
	AcademicYearID string
	LedgerID       string
}
