package student

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/feeledger/core"
	"github.com/trezcool/feeledger/core/fee"
)

type Status string

const (
	StatusActive      Status = "ACTIVE"
	StatusAlumni      Status = "ALUMNI"
	StatusTransferred Status = "TRANSFERRED"
	StatusSuspended   Status = "SUSPENDED"
	StatusWithdrawn   Status = "WITHDRAWN"
)

type ParentStatus string

const (
	ParentStatusActive   ParentStatus = "ACTIVE"
	ParentStatusInactive ParentStatus = "INACTIVE"
	ParentStatusBlocked  ParentStatus = "BLOCKED"
)

// Relation is how a student is related to their parent account.
type Relation string

const (
	RelationFather   Relation = "FATHER"
	RelationMother   Relation = "MOTHER"
	RelationGuardian Relation = "GUARDIAN"
)

// Parent is the family account students are linked to. Siblings share it: a parent is
// identified by their primary phone number.
type Parent struct {
	ID               string       `json:"id" db:"id"`
	PrimaryPhone     string       `json:"primary_phone" db:"primary_phone"`
	FatherName       null.String  `json:"father_name" db:"father_name"`
	MotherName       null.String  `json:"mother_name" db:"mother_name"`
	Email            null.String  `json:"email" db:"email"`
	FatherOccupation null.String  `json:"father_occupation" db:"father_occupation"`
	MotherOccupation null.String  `json:"mother_occupation" db:"mother_occupation"`
	Address          null.String  `json:"address" db:"address"`
	Status           ParentStatus `json:"status" db:"status"`
	CreatedAt        time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at" db:"updated_at"`
}

// ParentDetail is a parent with the students linked to them.
type ParentDetail struct {
	Parent
	Children []Student `json:"children"`
}

type Student struct {
	ID             string      `json:"id" db:"id"`
	AdmissionNo    string      `json:"admission_no" db:"admission_no"`
	FirstName      string      `json:"first_name" db:"first_name"`
	LastName       string      `json:"last_name" db:"last_name"`
	DateOfBirth    null.Time   `json:"date_of_birth" db:"date_of_birth"`
	Gender         null.String `json:"gender" db:"gender"`
	AcademicYearID string      `json:"academic_year_id" db:"academic_year_id"`
	ClassID        string      `json:"class_id" db:"class_id"`
	SectionID      null.String `json:"section_id" db:"section_id"`
	ParentID       null.String `json:"parent_id" db:"parent_id"`
	ParentRelation null.String `json:"parent_relation" db:"parent_relation"`
	Status         Status      `json:"status" db:"status"`
	AdmissionDate  time.Time   `json:"admission_date" db:"admission_date"`
	CreatedAt      time.Time   `json:"created_at" db:"created_at"`
}

func (s Student) FullName() string {
	return core.CleanString(s.FirstName + " " + s.LastName)
}

// NewStudent contains information needed to admit a Student.
type NewStudent struct {
	FirstName      string     `json:"first_name" validate:"required"`
	LastName       string     `json:"last_name" validate:"required"`
	DateOfBirth    *time.Time `json:"date_of_birth"`
	Gender         string     `json:"gender" validate:"omitempty,oneof=MALE FEMALE OTHER"`
	AcademicYearID string     `json:"academic_year_id" validate:"required"`
	ClassID        string     `json:"class_id" validate:"required"`
	SectionID      string     `json:"section_id"`
	// Parent, when given, is found by primary phone or created, then linked to the student.
	Parent *NewParent `json:"parent"`
}

// NewParent contains the parent details collected at admission.
type NewParent struct {
	PrimaryPhone     string `json:"primary_phone" validate:"required,phone"`
	FatherName       string `json:"father_name"`
	MotherName       string `json:"mother_name"`
	Email            string `json:"email" validate:"omitempty,email"`
	FatherOccupation string `json:"father_occupation"`
	MotherOccupation string `json:"mother_occupation"`
	Address          string `json:"address"`
	Relation         string `json:"relation" validate:"omitempty,oneof=FATHER MOTHER GUARDIAN"`
}

func (ns *NewStudent) Validate(validate *validator.Validate) error {
	ns.FirstName = core.CleanString(ns.FirstName)
	ns.LastName = core.CleanString(ns.LastName)
	ns.Gender = core.CleanString(ns.Gender)
	ns.SectionID = core.CleanString(ns.SectionID)
	if ns.Parent != nil {
		ns.Parent.clean()
	}
	return validate.Struct(ns)
}

func (np *NewParent) clean() {
	np.PrimaryPhone = core.CleanPhone(np.PrimaryPhone)
	np.FatherName = core.CleanString(np.FatherName)
	np.MotherName = core.CleanString(np.MotherName)
	np.Email = core.CleanString(np.Email, true)
	np.FatherOccupation = core.CleanString(np.FatherOccupation)
	np.MotherOccupation = core.CleanString(np.MotherOccupation)
	np.Address = core.CleanString(np.Address)
	np.Relation = core.CleanString(np.Relation)
}

func (np NewParent) relation() Relation {
	if np.Relation == "" {
		return RelationFather
	}
	return Relation(np.Relation)
}

// Admission is the outcome of admitting a student. Ledger is nil when the class has no fees configured.
type Admission struct {
	Student Student     `json:"student"`
	Parent  *Parent     `json:"parent"`
	Ledger  *fee.Ledger `json:"ledger"`
}

type QueryFilter struct {
	AcademicYearID string
	ClassID        string
	ParentID       string
	Statuses       []Status
}

type Repository interface {
	CreateParent(ctx context.Context, p Parent) (Parent, error)
	GetParent(ctx context.Context, id string) (Parent, error)
	GetParentByPhone(ctx context.Context, phone string) (Parent, error)

	CreateStudent(ctx context.Context, s Student) (Student, error)
	GetStudent(ctx context.Context, id string) (Student, error)
	QueryStudents(ctx context.Context, filter QueryFilter) ([]Student, error)
	// NextAdmissionSeq increments & returns the admission counter of an academic year.
	NextAdmissionSeq(ctx context.Context, academicYearID string) (int, error)
}
