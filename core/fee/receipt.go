package fee

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/divan/num2words"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// ReceiptNumberer hands out human-readable, time-ordered receipt numbers: `<prefix>-<snowflake id>`.
// Uniqueness across nodes requires distinct node numbers; storage enforces it anyway.
type ReceiptNumberer struct {
	prefix string
	node   *snowflake.Node
}

func NewReceiptNumberer(prefix string, node int64) (*ReceiptNumberer, error) {
	n, err := snowflake.NewNode(node)
	if err != nil {
		return nil, errors.Wrap(err, "creating snowflake node")
	}
	return &ReceiptNumberer{prefix: prefix, node: n}, nil
}

func (rn *ReceiptNumberer) Next() string {
	return rn.prefix + "-" + rn.node.Generate().String()
}

// AmountInWords spells an amount out for printed receipts, e.g. "one thousand twenty-four and 50/100 only".
func AmountInWords(amount decimal.Decimal) string {
	amount = amount.Round(2)
	whole := amount.Truncate(0)
	cents := amount.Sub(whole).Shift(2).IntPart()

	words := num2words.Convert(int(whole.IntPart()))
	if cents != 0 {
		words = fmt.Sprintf("%s and %02d/100", words, cents)
	}
	return strings.TrimSpace(words) + " only"
}
