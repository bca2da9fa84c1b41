package fee

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// dueDate returns the dueDay of the month that is `offset` months after start.
// dueDay is clamped to the length of that month (e.g. 31 -> 28 in February).
func dueDate(start time.Time, offset, dueDay int) time.Time {
	first := time.Date(start.Year(), start.Month()+time.Month(offset), 1, 0, 0, 0, 0, time.UTC)
	lastDay := first.AddDate(0, 1, -1).Day()
	if dueDay > lastDay {
		dueDay = lastDay
	}
	if dueDay < 1 {
		dueDay = 1
	}
	return first.AddDate(0, 0, dueDay-1)
}

// BuildInstallments expands the template components into a dated schedule.
// A MONTHLY component yields 12 installments, one per month from the academic year start month.
// Any other component yields a single installment due in the start month.
// Installments are ordered by due date; components keep their template order on the same date.
func BuildInstallments(tmpl Template, yearStart time.Time, defaultDueDay int) []Installment {
	installments := make([]Installment, 0, len(tmpl.Components))
	for _, comp := range tmpl.Components {
		day := comp.DueDay
		if day == 0 {
			day = defaultDueDay
		}

		if comp.Frequency == FrequencyMonthly {
			for m := 0; m < 12; m++ {
				due := dueDate(yearStart, m, day)
				installments = append(installments, newInstallment(comp.Name+" - "+due.Month().String(), comp.Amount, due))
			}
			continue
		}
		installments = append(installments, newInstallment(comp.Name, comp.Amount, dueDate(yearStart, 0, day)))
	}

	sort.SliceStable(installments, func(i, j int) bool {
		return installments[i].DueDate.Before(installments[j].DueDate)
	})
	return installments
}

func newInstallment(name string, amount decimal.Decimal, due time.Time) Installment {
	inst := Installment{
		Name:         name,
		Amount:       amount,
		DueDate:      due,
		PaidAmount:   decimal.Zero,
		WaivedAmount: decimal.Zero,
	}
	inst.settle() // a zero-amount installment is PAID from the start
	return inst
}
