package student

import (
	"context"
	"net/mail"

	"github.com/trezcool/feeledger/core"
	"github.com/trezcool/feeledger/core/fee"
)

// ReceiptMailer emails receipts to the parent of the paying student, when they have an email address.
type ReceiptMailer struct {
	repo       Repository
	email      core.EmailService
	logger     core.Logger
	schoolName string
}

var _ fee.ReceiptNotifier = (*ReceiptMailer)(nil)

func NewReceiptMailer(repo Repository, email core.EmailService, logger core.Logger, conf *core.Config) *ReceiptMailer {
	return &ReceiptMailer{repo: repo, email: email, logger: logger, schoolName: conf.AppName}
}

type receiptMail struct {
	ParentName    string
	StudentName   string
	AdmissionNo   string
	Amount        string
	AmountInWords string
	ReceiptNo     string
	PaymentDate   string
	PaymentMode   fee.PaymentMode
	CollectedBy   string
	SchoolName    string
}

func (m *ReceiptMailer) ReceiptIssued(ctx context.Context, receipt fee.Receipt) {
	s, err := m.repo.GetStudent(ctx, receipt.StudentID)
	if err != nil {
		m.logger.Warn("receipt not emailed: "+err.Error(), map[string]interface{}{"receipt_no": receipt.ReceiptNo})
		return
	}
	if !s.ParentID.Valid {
		return
	}
	parent, err := m.repo.GetParent(ctx, s.ParentID.String)
	if err != nil {
		m.logger.Warn("receipt not emailed: "+err.Error(), map[string]interface{}{"receipt_no": receipt.ReceiptNo})
		return
	}
	if !parent.Email.Valid || parent.Status != ParentStatusActive {
		return
	}

	name := parent.displayName(Relation(s.ParentRelation.String))
	m.email.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: name, Address: parent.Email.String}},
		Subject:      "Fee receipt " + receipt.ReceiptNo,
		TemplateName: "receipt",
		TemplateData: receiptMail{
			ParentName:    name,
			StudentName:   s.FullName(),
			AdmissionNo:   s.AdmissionNo,
			Amount:        receipt.AmountPaid.StringFixed(2),
			AmountInWords: receipt.AmountInWords,
			ReceiptNo:     receipt.ReceiptNo,
			PaymentDate:   receipt.PaymentDate.Format("02 Jan 2006"),
			PaymentMode:   receipt.PaymentMode,
			CollectedBy:   receipt.CollectedBy,
			SchoolName:    m.schoolName,
		},
	})
}

// displayName picks the name matching the relation of the student, falling back on the other one.
func (p Parent) displayName(rel Relation) string {
	if rel == RelationMother && p.MotherName.Valid {
		return p.MotherName.String
	}
	switch {
	case p.FatherName.Valid:
		return p.FatherName.String
	case p.MotherName.Valid:
		return p.MotherName.String
	}
	return "Parent"
}
