package fee

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/trezcool/feeledger/core"
)

type ModeCollection struct {
	Mode  PaymentMode     `json:"payment_mode" db:"payment_mode"`
	Total decimal.Decimal `json:"total" db:"total"`
	Count int             `json:"count" db:"count"`
}

type CollectionReport struct {
	From   time.Time        `json:"from"`
	To     time.Time        `json:"to"`
	Total  decimal.Decimal  `json:"total"`
	Count  int              `json:"count"`
	ByMode []ModeCollection `json:"by_mode"`
}

type DefaulterFilter struct {
	ClassID        string `query:"class_id"`
	AcademicYearID string `query:"year_id"`
	Orderings      []core.DBOrdering
}

// DefaulterOrderingFields whitelists the fields defaulters may be sorted by.
var DefaulterOrderingFields = map[string]bool{
	"due_amount":   true,
	"paid_amount":  true,
	"admission_no": true,
	"student_name": true,
}

type Defaulter struct {
	LedgerID       string          `json:"ledger_id" db:"ledger_id"`
	StudentID      string          `json:"student_id" db:"student_id"`
	AdmissionNo    string          `json:"admission_no" db:"admission_no"`
	StudentName    string          `json:"student_name" db:"student_name"`
	ClassID        string          `json:"class_id" db:"class_id"`
	AcademicYearID string          `json:"academic_year_id" db:"academic_year_id"`
	FinalAmount    decimal.Decimal `json:"final_amount" db:"final_amount"`
	PaidAmount     decimal.Decimal `json:"paid_amount" db:"paid_amount"`
	DueAmount      decimal.Decimal `json:"due_amount" db:"due_amount"`
	Status         Status          `json:"status" db:"status"`
}

type LedgerTotals struct {
	TotalPending    decimal.Decimal `json:"total_pending" db:"total_pending"`
	TotalConcession decimal.Decimal `json:"total_concession" db:"total_concession"`
	DefaulterCount  int             `json:"defaulter_count" db:"defaulter_count"`
}

type Dashboard struct {
	TodayCollection decimal.Decimal `json:"today_collection"`
	TotalCollection decimal.Decimal `json:"total_collection"`
	LedgerTotals
}

// Reports serves read-only projections over ledgers & receipts, cached until the next ledger write.
type Reports struct {
	repo   ReportRepository
	cache  core.Cache
	logger core.Logger
	ttl    time.Duration
	now    func() time.Time
}

func NewReports(repo ReportRepository, cache core.Cache, logger core.Logger, conf *core.Config) *Reports {
	return &Reports{
		repo:   repo,
		cache:  cache,
		logger: logger,
		ttl:    conf.Cache.TTL,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Collection totals the receipts paid in [from, to), grouped by payment mode.
// An empty or inverted range yields an empty report.
func (rp *Reports) Collection(ctx context.Context, from, to time.Time) (CollectionReport, error) {
	report := CollectionReport{From: from, To: to, Total: decimal.Zero, ByMode: []ModeCollection{}}
	if from.IsZero() || to.IsZero() || !to.After(from) {
		return report, nil
	}

	key := fmt.Sprintf("%scollection:%d:%d", reportsKeyPrefix, from.Unix(), to.Unix())
	err := rp.cached(ctx, key, &report, func() error {
		byMode, err := rp.repo.CollectionByMode(ctx, CollectionFilter{From: from, To: to})
		if err != nil {
			return errors.Wrap(err, "collecting by mode")
		}
		report.ByMode = byMode
		report.Total, report.Count = sumCollections(byMode)
		return nil
	})
	return report, err
}

// Defaulters lists the ledgers still owing money (PENDING or PARTIAL).
func (rp *Reports) Defaulters(ctx context.Context, filter DefaulterFilter) ([]Defaulter, error) {
	ords := make([]core.DBOrdering, 0, len(filter.Orderings))
	keyOrds := make([]string, 0, len(filter.Orderings))
	for _, ord := range filter.Orderings {
		if DefaulterOrderingFields[ord.Field] {
			ords = append(ords, ord)
			keyOrds = append(keyOrds, ord.String())
		}
	}
	filter.Orderings = ords

	defaulters := make([]Defaulter, 0)
	key := fmt.Sprintf("%sdefaulters:%s:%s:%s", reportsKeyPrefix, filter.AcademicYearID, filter.ClassID, strings.Join(keyOrds, ","))
	err := rp.cached(ctx, key, &defaulters, func() error {
		list, err := rp.repo.QueryDefaulters(ctx, filter)
		if err != nil {
			return errors.Wrap(err, "querying defaulters")
		}
		if list != nil {
			defaulters = list
		}
		return nil
	})
	return defaulters, err
}

// ExportDefaulters writes the defaulters list as an XLSX workbook.
func (rp *Reports) ExportDefaulters(ctx context.Context, filter DefaulterFilter, w io.Writer) error {
	defaulters, err := rp.Defaulters(ctx, filter)
	if err != nil {
		return err
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	sheet := "Defaulters"
	index, err := f.NewSheet(sheet)
	if err != nil {
		return errors.Wrap(err, "creating sheet")
	}
	f.SetActiveSheet(index)
	_ = f.DeleteSheet("Sheet1")

	headers := []string{"Admission No", "Student", "Final Amount", "Paid Amount", "Due Amount", "Status"}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, header)
	}
	for i, d := range defaulters {
		row := i + 2
		values := []interface{}{
			d.AdmissionNo,
			d.StudentName,
			d.FinalAmount.InexactFloat64(),
			d.PaidAmount.InexactFloat64(),
			d.DueAmount.InexactFloat64(),
			string(d.Status),
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			_ = f.SetCellValue(sheet, cell, v)
		}
	}

	return errors.Wrap(f.Write(w), "writing workbook")
}

// Dashboard gives the headline numbers: today's & all-time collections, pending dues, defaulters & concessions.
// academicYearID narrows the ledger totals; an empty one covers every year.
func (rp *Reports) Dashboard(ctx context.Context, academicYearID string) (Dashboard, error) {
	now := rp.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	dash := Dashboard{TodayCollection: decimal.Zero, TotalCollection: decimal.Zero}
	key := fmt.Sprintf("%sdashboard:%s:%s", reportsKeyPrefix, academicYearID, today.Format("2006-01-02"))
	err := rp.cached(ctx, key, &dash, func() error {
		todays, err := rp.repo.CollectionByMode(ctx, CollectionFilter{From: today, To: today.AddDate(0, 0, 1)})
		if err != nil {
			return errors.Wrap(err, "collecting today")
		}
		dash.TodayCollection, _ = sumCollections(todays)

		all, err := rp.repo.CollectionByMode(ctx, CollectionFilter{AcademicYearID: academicYearID})
		if err != nil {
			return errors.Wrap(err, "collecting all")
		}
		dash.TotalCollection, _ = sumCollections(all)

		if dash.LedgerTotals, err = rp.repo.LedgerTotals(ctx, academicYearID); err != nil {
			return errors.Wrap(err, "totalling ledgers")
		}
		return nil
	})
	return dash, err
}

// cached loads dest from the cache or fills it with load and caches it.
// Cache failures are logged, never returned: reports must keep working without a cache.
func (rp *Reports) cached(ctx context.Context, key string, dest interface{}, load func() error) error {
	if ok, err := rp.cache.Get(ctx, key, dest); err != nil {
		rp.logger.Warn("reading reports cache", err, map[string]interface{}{"key": key})
	} else if ok {
		return nil
	}

	if err := load(); err != nil {
		return err
	}
	if err := rp.cache.Set(ctx, key, dest, rp.ttl); err != nil {
		rp.logger.Warn("writing reports cache", err, map[string]interface{}{"key": key})
	}
	return nil
}

func sumCollections(cols []ModeCollection) (decimal.Decimal, int) {
	total := decimal.Zero
	var count int
	for _, c := range cols {
		total = total.Add(c.Total)
		count += c.Count
	}
	return total, count
}
