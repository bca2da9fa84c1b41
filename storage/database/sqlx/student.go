package sqlxrepos

import (
	"context"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/feeledger/core"
	"github.com/trezcool/feeledger/core/student"
)

type studentRepository struct {
	db *sqlx.DB
}

var _ student.Repository = (*studentRepository)(nil) // interface compliance check

func NewStudentRepository(db *sqlx.DB) *studentRepository {
	return &studentRepository{db: db}
}

const (
	parentColumns = `id, primary_phone, father_name, mother_name, email, father_occupation, mother_occupation,
	address, status, created_at, updated_at`

	studentColumns = `id, admission_no, first_name, last_name, date_of_birth, gender, academic_year_id,
	class_id, section_id, parent_id, parent_relation, status, admission_date, created_at`
)

func (repo *studentRepository) CreateParent(ctx context.Context, p student.Parent) (student.Parent, error) {
	_, err := sqlx.NamedExecContext(ctx, getExec(ctx, repo.db), `
		INSERT INTO parents (`+parentColumns+`)
		VALUES (:id, :primary_phone, :father_name, :mother_name, :email, :father_occupation, :mother_occupation,
			:address, :status, :created_at, :updated_at)`, p)
	if err != nil {
		err = trapPQErr(err, "duplicate parent phone")
		if core.IsConflict(err) { // phone registered by a concurrent admission: retry to reuse it
			return student.Parent{}, core.NewTransactionError(err)
		}
		return student.Parent{}, err
	}
	return p, nil
}

func (repo *studentRepository) GetParent(ctx context.Context, id string) (student.Parent, error) {
	var p student.Parent
	err := sqlx.GetContext(ctx, getExec(ctx, repo.db), &p, `SELECT `+parentColumns+` FROM parents WHERE id = $1`, id)
	return p, trapNoRowsErr(err, "parent", id)
}

func (repo *studentRepository) GetParentByPhone(ctx context.Context, phone string) (student.Parent, error) {
	var p student.Parent
	err := sqlx.GetContext(ctx, getExec(ctx, repo.db), &p, `SELECT `+parentColumns+` FROM parents WHERE primary_phone = $1`, phone)
	return p, trapNoRowsErr(err, "parent", phone)
}

func (repo *studentRepository) CreateStudent(ctx context.Context, s student.Student) (student.Student, error) {
	_, err := sqlx.NamedExecContext(ctx, getExec(ctx, repo.db), `
		INSERT INTO students (`+studentColumns+`)
		VALUES (:id, :admission_no, :first_name, :last_name, :date_of_birth, :gender, :academic_year_id,
			:class_id, :section_id, :parent_id, :parent_relation, :status, :admission_date, :created_at)`, s)
	if err != nil {
		return student.Student{}, trapPQErr(err, "student already exists",
			reference{"students_parent_id_fkey", "parent", s.ParentID.String},
		)
	}
	return s, nil
}

func (repo *studentRepository) GetStudent(ctx context.Context, id string) (student.Student, error) {
	var s student.Student
	err := sqlx.GetContext(ctx, getExec(ctx, repo.db), &s, `SELECT `+studentColumns+` FROM students WHERE id = $1`, id)
	return s, trapNoRowsErr(err, "student", id)
}

func (repo *studentRepository) QueryStudents(ctx context.Context, filter student.QueryFilter) ([]student.Student, error) {
	conds := []string{"TRUE"}
	args := make([]interface{}, 0, 4)
	if filter.AcademicYearID != "" {
		args = append(args, filter.AcademicYearID)
		conds = append(conds, "academic_year_id = ?")
	}
	if filter.ClassID != "" {
		args = append(args, filter.ClassID)
		conds = append(conds, "class_id = ?")
	}
	if filter.ParentID != "" {
		args = append(args, filter.ParentID)
		conds = append(conds, "parent_id = ?")
	}
	q := `SELECT ` + studentColumns + ` FROM students WHERE ` + strings.Join(conds, " AND ")
	if len(filter.Statuses) > 0 {
		var err error
		q, args, err = sqlx.In(q+" AND status IN (?)", append(args, filter.Statuses)...)
		if err != nil {
			return nil, errors.Wrap(err, "building query")
		}
	}

	exec := getExec(ctx, repo.db)
	students := make([]student.Student, 0)
	err := sqlx.SelectContext(ctx, exec, &students, exec.Rebind(q+" ORDER BY admission_no"), args...)
	return students, errors.Wrap(err, "querying students")
}

func (repo *studentRepository) NextAdmissionSeq(ctx context.Context, academicYearID string) (int, error) {
	var seq int
	err := sqlx.GetContext(ctx, getExec(ctx, repo.db), &seq, `
		INSERT INTO admission_counters (academic_year_id, seq) VALUES ($1, 1)
		ON CONFLICT (academic_year_id) DO UPDATE SET seq = admission_counters.seq + 1
		RETURNING seq`, academicYearID)
	return seq, errors.Wrap(trapPQErr(err, ""), "incrementing admission counter")
}
