package fee

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

var (
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrAmountExceedsDue    = errors.New("amount exceeds due amount")
	ErrConcessionTooLarge  = errors.New("concession exceeds total amount")
	ErrIdempotencyMismatch = errors.New("idempotency key already used for a different payment")
	ErrLedgerExists        = errors.New("ledger already exists for this student and academic year")
	ErrTemplateExists      = errors.New("fee template already exists for this class and academic year")

	errTooPrecise  = "at most 2 decimal places are allowed"
	errInvalidMode = "must be one of CASH, UPI, CHEQUE, BANK_TRANSFER"
)

// isCents reports whether d has no more than 2 significant decimal places.
func isCents(d decimal.Decimal) bool {
	return d.Equal(d.Round(2))
}

func componentField(i int, name string) string {
	return fmt.Sprintf("components[%d].%s", i, name)
}
