package dummydb

import (
	"context"
	"sync"

	"github.com/trezcool/feeledger/core"
	"github.com/trezcool/feeledger/core/fee"
	"github.com/trezcool/feeledger/core/school"
	"github.com/trezcool/feeledger/core/student"
)

type (
	// DB is an in-memory store. A transaction holds the store-wide write lock for its whole
	// duration and restores a snapshot of every table when it fails.
	DB struct {
		mu sync.RWMutex
		tables
	}

	tables struct {
		years        map[string]school.AcademicYear
		classes      map[string]school.ClassLevel
		parents      map[string]student.Parent
		students     map[string]student.Student
		admissionSeq map[string]int
		templates    map[string]fee.Template
		ledgers      map[string]fee.Ledger
		concessions  map[string][]fee.ConcessionEntry // by ledger ID
		receipts     map[string]fee.Receipt
	}

	txKey struct{}
)

var _ core.Transactor = (*DB)(nil)

func Open() *DB {
	return &DB{tables: newTables()}
}

func newTables() tables {
	return tables{
		years:        make(map[string]school.AcademicYear),
		classes:      make(map[string]school.ClassLevel),
		parents:      make(map[string]student.Parent),
		students:     make(map[string]student.Student),
		admissionSeq: make(map[string]int),
		templates:    make(map[string]fee.Template),
		ledgers:      make(map[string]fee.Ledger),
		concessions:  make(map[string][]fee.ConcessionEntry),
		receipts:     make(map[string]fee.Receipt),
	}
}

// Reset drops all the data; for tests.
func (db *DB) Reset() {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.tables = newTables()
}

func (db *DB) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if db.inTx(ctx) {
		return fn(ctx)
	}

	txCtx, afterCommit := core.WithCommitHooks(ctx)
	if err := db.run(txCtx, fn); err != nil {
		return err
	}
	afterCommit(ctx)
	return nil
}

func (db *DB) run(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	snapshot := db.tables.clone()
	defer func() {
		if p := recover(); p != nil {
			db.tables = snapshot
			panic(p)
		}
		if err != nil {
			db.tables = snapshot
		}
	}()

	return fn(context.WithValue(ctx, txKey{}, db))
}

func (db *DB) inTx(ctx context.Context) bool {
	txDB, ok := ctx.Value(txKey{}).(*DB)
	return ok && txDB == db
}

// read runs fn under the read lock, unless ctx already holds the transaction lock.
func (db *DB) read(ctx context.Context, fn func()) {
	if db.inTx(ctx) {
		fn()
		return
	}
	db.mu.RLock()
	defer db.mu.RUnlock()
	fn()
}

// write runs fn under the write lock, unless ctx already holds the transaction lock.
func (db *DB) write(ctx context.Context, fn func() error) error {
	if db.inTx(ctx) {
		return fn()
	}
	db.mu.Lock()
	defer db.mu.Unlock()
	return fn()
}

// checkLedgerRefs mirrors the foreign keys of the ledgers table.
func (db *DB) checkLedgerRefs(l fee.Ledger) error {
	if _, ok := db.students[l.StudentID]; !ok {
		return core.NewNotFoundError("student", l.StudentID)
	}
	if _, ok := db.years[l.AcademicYearID]; !ok {
		return core.NewNotFoundError("academic year", l.AcademicYearID)
	}
	if _, ok := db.classes[l.ClassID]; !ok {
		return core.NewNotFoundError("class", l.ClassID)
	}
	if _, ok := db.templates[l.FeeTemplateID]; !ok {
		return core.NewNotFoundError("fee template", l.FeeTemplateID)
	}
	return nil
}

func (t tables) clone() tables {
	c := newTables()
	for k, v := range t.years {
		c.years[k] = v
	}
	for k, v := range t.classes {
		c.classes[k] = v
	}
	for k, v := range t.parents {
		c.parents[k] = v
	}
	for k, v := range t.students {
		c.students[k] = v
	}
	for k, v := range t.admissionSeq {
		c.admissionSeq[k] = v
	}
	for k, v := range t.templates {
		c.templates[k] = copyTemplate(v)
	}
	for k, v := range t.ledgers {
		c.ledgers[k] = copyLedger(v)
	}
	for k, v := range t.concessions {
		c.concessions[k] = append([]fee.ConcessionEntry(nil), v...)
	}
	for k, v := range t.receipts {
		c.receipts[k] = v
	}
	return c
}

func copyTemplate(t fee.Template) fee.Template {
	t.Components = append([]fee.Component(nil), t.Components...)
	return t
}

func copyLedger(l fee.Ledger) fee.Ledger {
	l.Installments = append([]fee.Installment(nil), l.Installments...)
	l.Concessions = nil
	return l
}
