package sqlxrepos

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/feeledger/core"
	"github.com/trezcool/feeledger/core/school"
)

type schoolRepository struct {
	db *sqlx.DB
}

var _ school.Repository = (*schoolRepository)(nil) // interface compliance check

func NewSchoolRepository(db *sqlx.DB) *schoolRepository {
	return &schoolRepository{db: db}
}

const yearColumns = `id, name, start_date, end_date, is_current, is_locked`

func (repo *schoolRepository) CreateAcademicYear(ctx context.Context, year school.AcademicYear) (school.AcademicYear, error) {
	exec := getExec(ctx, repo.db)
	if year.IsCurrent {
		if _, err := exec.ExecContext(ctx, `UPDATE academic_years SET is_current = FALSE WHERE is_current`); err != nil {
			return school.AcademicYear{}, errors.Wrap(err, "clearing current academic year")
		}
	}
	_, err := sqlx.NamedExecContext(ctx, exec, `
		INSERT INTO academic_years (`+yearColumns+`)
		VALUES (:id, :name, :start_date, :end_date, :is_current, :is_locked)`, year)
	if err != nil {
		return school.AcademicYear{}, trapPQErr(err, "academic year already exists")
	}
	return year, nil
}

func (repo *schoolRepository) GetAcademicYear(ctx context.Context, id string) (school.AcademicYear, error) {
	var year school.AcademicYear
	err := sqlx.GetContext(ctx, getExec(ctx, repo.db), &year, `SELECT `+yearColumns+` FROM academic_years WHERE id = $1`, id)
	return year, trapNoRowsErr(err, "academic year", id)
}

func (repo *schoolRepository) GetCurrentAcademicYear(ctx context.Context) (school.AcademicYear, error) {
	var year school.AcademicYear
	err := sqlx.GetContext(ctx, getExec(ctx, repo.db), &year, `SELECT `+yearColumns+` FROM academic_years WHERE is_current`)
	return year, trapNoRowsErr(err, "current academic year", "")
}

func (repo *schoolRepository) SetAcademicYearLocked(ctx context.Context, id string, locked bool) error {
	res, err := getExec(ctx, repo.db).ExecContext(ctx, `UPDATE academic_years SET is_locked = $2 WHERE id = $1`, id, locked)
	if err != nil {
		return errors.Wrap(err, "locking academic year")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.NewNotFoundError("academic year", id)
	}
	return nil
}

func (repo *schoolRepository) CreateClass(ctx context.Context, class school.ClassLevel) (school.ClassLevel, error) {
	_, err := sqlx.NamedExecContext(ctx, getExec(ctx, repo.db), `
		INSERT INTO class_levels (id, name, sort_order) VALUES (:id, :name, :sort_order)`, class)
	if err != nil {
		return school.ClassLevel{}, trapPQErr(err, "class already exists")
	}
	return class, nil
}

func (repo *schoolRepository) GetClass(ctx context.Context, id string) (school.ClassLevel, error) {
	var class school.ClassLevel
	err := sqlx.GetContext(ctx, getExec(ctx, repo.db), &class, `SELECT id, name, sort_order FROM class_levels WHERE id = $1`, id)
	return class, trapNoRowsErr(err, "class", id)
}

func (repo *schoolRepository) QueryClasses(ctx context.Context) ([]school.ClassLevel, error) {
	classes := make([]school.ClassLevel, 0)
	err := sqlx.SelectContext(ctx, getExec(ctx, repo.db), &classes, `SELECT id, name, sort_order FROM class_levels ORDER BY sort_order, name`)
	return classes, errors.Wrap(err, "querying classes")
}
