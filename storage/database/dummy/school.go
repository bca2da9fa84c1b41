package dummydb

import (
	"context"
	"sort"

	"github.com/trezcool/feeledger/core"
	"github.com/trezcool/feeledger/core/school"
)

type schoolRepository struct {
	db *DB
}

var _ school.Repository = (*schoolRepository)(nil) // interface compliance check

func NewSchoolRepository(db *DB) school.Repository {
	return &schoolRepository{db: db}
}

func (repo *schoolRepository) CreateAcademicYear(ctx context.Context, year school.AcademicYear) (school.AcademicYear, error) {
	err := repo.db.write(ctx, func() error {
		if _, ok := repo.db.years[year.ID]; ok {
			return core.NewConflictError("academic year already exists")
		}
		if year.IsCurrent {
			for id, y := range repo.db.years {
				y.IsCurrent = false
				repo.db.years[id] = y
			}
		}
		repo.db.years[year.ID] = year
		return nil
	})
	return year, err
}

func (repo *schoolRepository) GetAcademicYear(ctx context.Context, id string) (school.AcademicYear, error) {
	var year school.AcademicYear
	var ok bool
	repo.db.read(ctx, func() { year, ok = repo.db.years[id] })
	if !ok {
		return school.AcademicYear{}, core.NewNotFoundError("academic year", id)
	}
	return year, nil
}

func (repo *schoolRepository) GetCurrentAcademicYear(ctx context.Context) (school.AcademicYear, error) {
	var year school.AcademicYear
	var ok bool
	repo.db.read(ctx, func() {
		for _, y := range repo.db.years {
			if y.IsCurrent {
				year, ok = y, true
				return
			}
		}
	})
	if !ok {
		return school.AcademicYear{}, core.NewNotFoundError("current academic year", "")
	}
	return year, nil
}

func (repo *schoolRepository) SetAcademicYearLocked(ctx context.Context, id string, locked bool) error {
	return repo.db.write(ctx, func() error {
		year, ok := repo.db.years[id]
		if !ok {
			return core.NewNotFoundError("academic year", id)
		}
		year.IsLocked = locked
		repo.db.years[id] = year
		return nil
	})
}

func (repo *schoolRepository) CreateClass(ctx context.Context, class school.ClassLevel) (school.ClassLevel, error) {
	err := repo.db.write(ctx, func() error {
		for _, c := range repo.db.classes {
			if c.ID == class.ID || c.Name == class.Name {
				return core.NewConflictError("class already exists")
			}
		}
		repo.db.classes[class.ID] = class
		return nil
	})
	return class, err
}

func (repo *schoolRepository) GetClass(ctx context.Context, id string) (school.ClassLevel, error) {
	var class school.ClassLevel
	var ok bool
	repo.db.read(ctx, func() { class, ok = repo.db.classes[id] })
	if !ok {
		return school.ClassLevel{}, core.NewNotFoundError("class", id)
	}
	return class, nil
}

func (repo *schoolRepository) QueryClasses(ctx context.Context) ([]school.ClassLevel, error) {
	classes := make([]school.ClassLevel, 0)
	repo.db.read(ctx, func() {
		for _, c := range repo.db.classes {
			classes = append(classes, c)
		}
	})
	sort.Slice(classes, func(i, j int) bool {
		if classes[i].Order != classes[j].Order {
			return classes[i].Order < classes[j].Order
		}
		return classes[i].Name < classes[j].Name
	})
	return classes, nil
}
