package school

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/feeledger/core"
)

// Service resolves the academic references fee operations depend on.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) CreateAcademicYear(ctx context.Context, year AcademicYear) (AcademicYear, error) {
	year.Name = core.CleanString(year.Name)
	if year.Name == "" {
		return AcademicYear{}, core.NewValidationError(nil, core.FieldError{Field: "name", Error: "this field is required"})
	}
	if !year.EndDate.After(year.StartDate) {
		return AcademicYear{}, core.NewValidationError(nil, core.FieldError{Field: "end_date", Error: "must be after start_date"})
	}
	if year.ID == "" {
		year.ID = uuid.NewString()
	}
	created, err := svc.repo.CreateAcademicYear(ctx, year)
	return created, errors.Wrap(err, "creating academic year")
}

func (svc *Service) CreateClass(ctx context.Context, class ClassLevel) (ClassLevel, error) {
	class.Name = core.CleanString(class.Name)
	if class.Name == "" {
		return ClassLevel{}, core.NewValidationError(nil, core.FieldError{Field: "name", Error: "this field is required"})
	}
	if class.ID == "" {
		class.ID = uuid.NewString()
	}
	created, err := svc.repo.CreateClass(ctx, class)
	return created, errors.Wrap(err, "creating class")
}

// GetAcademicYear fails with a core.NotFoundError when id is unknown.
func (svc *Service) GetAcademicYear(ctx context.Context, id string) (AcademicYear, error) {
	return svc.repo.GetAcademicYear(ctx, id)
}

// GetOpenAcademicYear is GetAcademicYear for operations that change money: a locked year is rejected.
func (svc *Service) GetOpenAcademicYear(ctx context.Context, id string) (AcademicYear, error) {
	year, err := svc.repo.GetAcademicYear(ctx, id)
	if err != nil {
		return AcademicYear{}, err
	}
	if year.IsLocked {
		return AcademicYear{}, core.NewValidationError(ErrYearLocked)
	}
	return year, nil
}

func (svc *Service) GetCurrentAcademicYear(ctx context.Context) (AcademicYear, error) {
	return svc.repo.GetCurrentAcademicYear(ctx)
}

func (svc *Service) LockAcademicYear(ctx context.Context, id string, locked bool) error {
	if _, err := svc.repo.GetAcademicYear(ctx, id); err != nil {
		return err
	}
	return svc.repo.SetAcademicYearLocked(ctx, id, locked)
}

func (svc *Service) GetClass(ctx context.Context, id string) (ClassLevel, error) {
	return svc.repo.GetClass(ctx, id)
}

func (svc *Service) QueryClasses(ctx context.Context) ([]ClassLevel, error) {
	return svc.repo.QueryClasses(ctx)
}
