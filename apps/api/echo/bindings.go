package echoapi

import (
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/feeledger/core"
)

const (
	orderingParam = "ordering"
	dateLayout    = "2006-01-02"
)

type Ordering struct {
	Orderings []core.DBOrdering
}

func (ord *Ordering) Bind(ctx echo.Context) {
	data := ctx.QueryParams()
	if len(data) == 0 {
		return
	}
	val, ok := data[orderingParam]
	if !ok || len(val) == 0 || val[0] == "" {
		return
	}

	for _, field := range strings.Split(val[0], ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
}

// DateRange binds `from` & `to` (inclusive days), or a single `date`, to a [From, To) UTC range.
// Missing or malformed dates leave the range empty.
type DateRange struct {
	From time.Time
	To   time.Time
}

func (dr *DateRange) Bind(ctx echo.Context) {
	if date, ok := parseDate(ctx.QueryParam("date")); ok {
		dr.From, dr.To = date, date.AddDate(0, 0, 1)
		return
	}
	from, okFrom := parseDate(ctx.QueryParam("from"))
	to, okTo := parseDate(ctx.QueryParam("to"))
	if okFrom && okTo {
		dr.From, dr.To = from, to.AddDate(0, 0, 1)
	}
}

func parseDate(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation(dateLayout, strings.TrimSpace(s), time.UTC)
	return t, err == nil
}
