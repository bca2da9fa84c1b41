package fee

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"
)

// Final returns the net payable amount, deriving it for legacy ledgers that never stored one.
func (l Ledger) Final() decimal.Decimal {
	if l.FinalAmount.Valid {
		return l.FinalAmount.Decimal
	}
	return l.TotalAmount.Sub(l.ConcessionAmount)
}

// repairFinalAmount fills a missing FinalAmount in. It reports whether a repair happened.
func (l *Ledger) repairFinalAmount() bool {
	if l.FinalAmount.Valid {
		return false
	}
	l.FinalAmount = decimal.NewNullDecimal(l.TotalAmount.Sub(l.ConcessionAmount))
	return true
}

// repair brings a legacy ledger missing its final amount in line with what a write would store.
// It reports whether a repair happened.
func (l *Ledger) repair() bool {
	if !l.repairFinalAmount() {
		return false
	}
	l.recompute()
	if l.DueAmount.IsZero() {
		l.rederiveWaivers()
	}
	return true
}

// recompute re-derives final, due & status from total, concession & paid.
func (l *Ledger) recompute() {
	final := l.TotalAmount.Sub(l.ConcessionAmount)
	l.FinalAmount = decimal.NewNullDecimal(final)

	due := final.Sub(l.PaidAmount)
	if due.IsNegative() {
		due = decimal.Zero
	}
	l.DueAmount = due
	l.Status = ledgerStatus(final, l.PaidAmount, due)
}

func ledgerStatus(final, paid, due decimal.Decimal) Status {
	switch {
	case due.IsZero():
		return StatusPaid
	case paid.IsPositive() && paid.LessThan(final):
		return StatusPartial
	default:
		return StatusPending
	}
}

// settle re-derives an installment status from what covers it.
func (i *Installment) settle() {
	switch {
	case i.PaidAmount.Add(i.WaivedAmount).GreaterThanOrEqual(i.Amount):
		i.Status = StatusPaid
	case i.PaidAmount.IsPositive():
		i.Status = StatusPartial
	default:
		i.Status = StatusPending
	}
}

// allocate spreads amount over the installments, oldest first, and returns what is left once
// every installment is PAID.
func (l *Ledger) allocate(amount decimal.Decimal) decimal.Decimal {
	remaining := amount
	for i := range l.Installments {
		if !remaining.IsPositive() {
			break
		}
		inst := &l.Installments[i]
		if inst.Status == StatusPaid {
			continue
		}
		owed := inst.Outstanding()
		if remaining.GreaterThanOrEqual(owed) {
			inst.PaidAmount = inst.PaidAmount.Add(owed)
			inst.Status = StatusPaid
			remaining = remaining.Sub(owed)
			continue
		}
		inst.PaidAmount = inst.PaidAmount.Add(remaining)
		inst.Status = StatusPartial
		remaining = decimal.Zero
	}
	return remaining
}

// rederiveWaivers drops every waiver, then, when nothing is due anymore, waives whatever
// payments did not cover so that every installment ends up PAID.
func (l *Ledger) rederiveWaivers() {
	for i := range l.Installments {
		inst := &l.Installments[i]
		inst.WaivedAmount = decimal.Zero
		inst.settle()
	}
	if !l.DueAmount.IsZero() {
		return
	}
	for i := range l.Installments {
		inst := &l.Installments[i]
		if inst.Status == StatusPaid {
			continue
		}
		inst.WaivedAmount = inst.Outstanding()
		inst.settle()
	}
}

// applyPayment records amount on the balances and the installments.
// The caller has checked that amount is positive and not above DueAmount.
func (l *Ledger) applyPayment(amount decimal.Decimal) (advance decimal.Decimal) {
	l.PaidAmount = l.PaidAmount.Add(amount)
	l.recompute()
	advance = l.allocate(amount)
	if l.DueAmount.IsZero() {
		l.rederiveWaivers()
	}
	return advance
}

// applyConcession sets the total concession and records it in the ledger history.
func (l *Ledger) applyConcession(entry ConcessionEntry) error {
	if entry.Amount.IsNegative() {
		return ErrInvalidAmount
	}
	if entry.Amount.GreaterThan(l.TotalAmount) {
		return ErrConcessionTooLarge
	}
	l.ConcessionAmount = entry.Amount
	l.recompute()
	l.rederiveWaivers()
	l.Concessions = append(l.Concessions, entry)
	l.Remarks = null.StringFrom(fmt.Sprintf("Concession of %s applied. Reason: %s", entry.Amount.StringFixed(2), entry.Reason))
	return nil
}

// newLedger opens a student account from a template snapshot.
func newLedger(id, studentID string, tmpl Template, installments []Installment, now time.Time) Ledger {
	l := Ledger{
		ID:               id,
		StudentID:        studentID,
		AcademicYearID:   tmpl.AcademicYearID,
		ClassID:          tmpl.ClassID,
		FeeTemplateID:    tmpl.ID,
		TotalAmount:      tmpl.ComputeTotal(),
		ConcessionAmount: decimal.Zero,
		PaidAmount:       decimal.Zero,
		Installments:     installments,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	l.recompute()
	if l.DueAmount.IsZero() {
		l.rederiveWaivers()
	}
	return l
}

// InstallmentsPaid sums what was paid on the installments.
func (l Ledger) InstallmentsPaid() decimal.Decimal {
	total := decimal.Zero
	for _, inst := range l.Installments {
		total = total.Add(inst.PaidAmount)
	}
	return total
}
