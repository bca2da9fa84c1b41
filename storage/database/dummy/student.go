package dummydb

import (
	"context"
	"sort"

	"github.com/trezcool/feeledger/core"
	"github.com/trezcool/feeledger/core/student"
)

type studentRepository struct {
	db *DB
}

var _ student.Repository = (*studentRepository)(nil) // interface compliance check

func NewStudentRepository(db *DB) student.Repository {
	return &studentRepository{db: db}
}

func (repo *studentRepository) CreateParent(ctx context.Context, p student.Parent) (student.Parent, error) {
	err := repo.db.write(ctx, func() error {
		for _, existing := range repo.db.parents {
			if existing.ID == p.ID {
				return core.NewConflictError("parent already exists")
			}
			if existing.PrimaryPhone == p.PrimaryPhone { // registered by a concurrent admission: retry to reuse it
				return core.NewTransactionError(core.NewConflictError("duplicate parent phone"))
			}
		}
		repo.db.parents[p.ID] = p
		return nil
	})
	return p, err
}

func (repo *studentRepository) GetParent(ctx context.Context, id string) (student.Parent, error) {
	var p student.Parent
	var ok bool
	repo.db.read(ctx, func() { p, ok = repo.db.parents[id] })
	if !ok {
		return student.Parent{}, core.NewNotFoundError("parent", id)
	}
	return p, nil
}

func (repo *studentRepository) GetParentByPhone(ctx context.Context, phone string) (student.Parent, error) {
	var p student.Parent
	var ok bool
	repo.db.read(ctx, func() {
		for _, existing := range repo.db.parents {
			if existing.PrimaryPhone == phone {
				p, ok = existing, true
				return
			}
		}
	})
	if !ok {
		return student.Parent{}, core.NewNotFoundError("parent", phone)
	}
	return p, nil
}

func (repo *studentRepository) CreateStudent(ctx context.Context, s student.Student) (student.Student, error) {
	err := repo.db.write(ctx, func() error {
		if s.ParentID.Valid {
			if _, ok := repo.db.parents[s.ParentID.String]; !ok {
				return core.NewNotFoundError("parent", s.ParentID.String)
			}
		}
		for _, existing := range repo.db.students {
			if existing.ID == s.ID || existing.AdmissionNo == s.AdmissionNo {
				return core.NewConflictError("student already exists")
			}
		}
		repo.db.students[s.ID] = s
		return nil
	})
	return s, err
}

func (repo *studentRepository) GetStudent(ctx context.Context, id string) (student.Student, error) {
	var s student.Student
	var ok bool
	repo.db.read(ctx, func() { s, ok = repo.db.students[id] })
	if !ok {
		return student.Student{}, core.NewNotFoundError("student", id)
	}
	return s, nil
}

func (repo *studentRepository) QueryStudents(ctx context.Context, filter student.QueryFilter) ([]student.Student, error) {
	students := make([]student.Student, 0)
	repo.db.read(ctx, func() {
		for _, s := range repo.db.students {
			if filter.AcademicYearID != "" && s.AcademicYearID != filter.AcademicYearID {
				continue
			}
			if filter.ClassID != "" && s.ClassID != filter.ClassID {
				continue
			}
			if filter.ParentID != "" && s.ParentID.String != filter.ParentID {
				continue
			}
			if len(filter.Statuses) > 0 && !hasStatus(filter.Statuses, s.Status) {
				continue
			}
			students = append(students, s)
		}
	})
	sort.Slice(students, func(i, j int) bool { return students[i].AdmissionNo < students[j].AdmissionNo })
	return students, nil
}

func (repo *studentRepository) NextAdmissionSeq(ctx context.Context, academicYearID string) (int, error) {
	var seq int
	err := repo.db.write(ctx, func() error {
		repo.db.admissionSeq[academicYearID]++
		seq = repo.db.admissionSeq[academicYearID]
		return nil
	})
	return seq, err
}

func hasStatus(statuses []student.Status, status student.Status) bool {
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}
