package school

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

var ErrYearLocked = errors.New("academic year is locked")

// AcademicYear bounds a fee cycle. A locked year accepts no further financial changes.
type AcademicYear struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"` // e.g. 2025-2026
	StartDate time.Time `json:"start_date" db:"start_date"`
	EndDate   time.Time `json:"end_date" db:"end_date"`
	IsCurrent bool      `json:"is_current" db:"is_current"`
	IsLocked  bool      `json:"is_locked" db:"is_locked"`
}

// Contains reports whether t falls within the year (inclusive, date granularity).
func (y AcademicYear) Contains(t time.Time) bool {
	d := t.UTC().Truncate(24 * time.Hour)
	return !d.Before(y.StartDate.UTC().Truncate(24*time.Hour)) && !d.After(y.EndDate.UTC().Truncate(24*time.Hour))
}

type ClassLevel struct {
	ID    string `json:"id" db:"id"`
	Name  string `json:"name" db:"name"`
	Order int    `json:"order" db:"sort_order"`
}

type Repository interface {
	CreateAcademicYear(ctx context.Context, year AcademicYear) (AcademicYear, error)
	GetAcademicYear(ctx context.Context, id string) (AcademicYear, error)
	GetCurrentAcademicYear(ctx context.Context) (AcademicYear, error)
	SetAcademicYearLocked(ctx context.Context, id string, locked bool) error
	CreateClass(ctx context.Context, class ClassLevel) (ClassLevel, error)
	GetClass(ctx context.Context, id string) (ClassLevel, error)
	QueryClasses(ctx context.Context) ([]ClassLevel, error)
}
