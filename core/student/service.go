package student

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/feeledger/core"
	"github.com/trezcool/feeledger/core/fee"
	"github.com/trezcool/feeledger/core/school"
)

// Academics resolves the academic references of an admission.
type Academics interface {
	GetOpenAcademicYear(ctx context.Context, id string) (school.AcademicYear, error)
	GetClass(ctx context.Context, id string) (school.ClassLevel, error)
}

// LedgerGenerator opens the fee ledger of a newly admitted student.
type LedgerGenerator interface {
	GenerateLedger(ctx context.Context, studentID, academicYearID, classID string) (*fee.Ledger, error)
}

type Service struct {
	tx        core.Transactor
	repo      Repository
	academics Academics
	ledgers   LedgerGenerator
	logger    core.Logger
	prefix    string
}

func NewService(
	tx core.Transactor,
	repo Repository,
	academics Academics,
	ledgers LedgerGenerator,
	logger core.Logger,
	conf *core.Config,
) *Service {
	return &Service{
		tx:        tx,
		repo:      repo,
		academics: academics,
		ledgers:   ledgers,
		logger:    logger,
		prefix:    conf.Fees.AdmissionPrefix,
	}
}

// Admit creates the student, links them to their parent and opens their fee ledger in one
// transaction: if the ledger cannot be generated, neither the student nor a new parent is kept.
func (svc *Service) Admit(ctx context.Context, ns NewStudent) (Admission, error) {
	var adm Admission
	err := svc.tx.WithTransaction(ctx, func(ctx context.Context) error {
		year, err := svc.academics.GetOpenAcademicYear(ctx, ns.AcademicYearID)
		if err != nil {
			return err
		}
		if _, err = svc.academics.GetClass(ctx, ns.ClassID); err != nil {
			return err
		}

		if ns.Parent != nil {
			parent, err := svc.findOrCreateParent(ctx, *ns.Parent)
			if err != nil {
				return err
			}
			adm.Parent = &parent
		}

		seq, err := svc.repo.NextAdmissionSeq(ctx, year.ID)
		if err != nil {
			return errors.Wrap(err, "allocating admission number")
		}

		s := Student{
			ID:             uuid.NewString(),
			AdmissionNo:    fmt.Sprintf("%s%s%03d", svc.prefix, year.StartDate.Format("06"), seq),
			FirstName:      ns.FirstName,
			LastName:       ns.LastName,
			Gender:         null.NewString(ns.Gender, ns.Gender != ""),
			AcademicYearID: year.ID,
			ClassID:        ns.ClassID,
			SectionID:      null.NewString(ns.SectionID, ns.SectionID != ""),
			Status:         StatusActive,
			AdmissionDate:  time.Now().UTC(),
			CreatedAt:      time.Now().UTC(),
		}
		if ns.DateOfBirth != nil {
			s.DateOfBirth = null.TimeFrom(ns.DateOfBirth.UTC())
		}
		if adm.Parent != nil {
			s.ParentID = null.StringFrom(adm.Parent.ID)
			s.ParentRelation = null.StringFrom(string(ns.Parent.relation()))
		}
		if adm.Student, err = svc.repo.CreateStudent(ctx, s); err != nil {
			return errors.Wrap(err, "creating student")
		}

		adm.Ledger, err = svc.ledgers.GenerateLedger(ctx, adm.Student.ID, year.ID, ns.ClassID)
		return errors.Wrap(err, "generating ledger")
	})
	if err != nil {
		return Admission{}, err
	}
	return adm, nil
}

// findOrCreateParent returns the parent registered under np's primary phone, creating it when
// there is none. The details of an existing parent are left as they are.
func (svc *Service) findOrCreateParent(ctx context.Context, np NewParent) (Parent, error) {
	np.PrimaryPhone = core.CleanPhone(np.PrimaryPhone)
	parent, err := svc.repo.GetParentByPhone(ctx, np.PrimaryPhone)
	if err == nil {
		return parent, nil
	}
	if !core.IsNotFound(err) {
		return Parent{}, errors.Wrap(err, "looking up parent")
	}

	now := time.Now().UTC()
	parent, err = svc.repo.CreateParent(ctx, Parent{
		ID:               uuid.NewString(),
		PrimaryPhone:     np.PrimaryPhone,
		FatherName:       nullString(np.FatherName),
		MotherName:       nullString(np.MotherName),
		Email:            nullString(np.Email),
		FatherOccupation: nullString(np.FatherOccupation),
		MotherOccupation: nullString(np.MotherOccupation),
		Address:          nullString(np.Address),
		Status:           ParentStatusActive,
		CreatedAt:        now,
		UpdatedAt:        now,
	})
	return parent, errors.Wrap(err, "creating parent")
}

func (svc *Service) Get(ctx context.Context, id string) (Student, error) {
	return svc.repo.GetStudent(ctx, id)
}

// GetParent returns a parent with the students linked to them.
func (svc *Service) GetParent(ctx context.Context, id string) (ParentDetail, error) {
	parent, err := svc.repo.GetParent(ctx, id)
	if err != nil {
		return ParentDetail{}, err
	}
	children, err := svc.repo.QueryStudents(ctx, QueryFilter{ParentID: id})
	if err != nil {
		return ParentDetail{}, errors.Wrap(err, "querying children")
	}
	return ParentDetail{Parent: parent, Children: children}, nil
}

type GenerationSummary struct {
	Created int `json:"created"`
	Skipped int `json:"skipped"`
}

// GenerateMissingLedgers opens a ledger for every active student of a class who has none yet.
// Each student is handled in its own transaction.
func (svc *Service) GenerateMissingLedgers(ctx context.Context, academicYearID, classID string) (GenerationSummary, error) {
	var summary GenerationSummary
	students, err := svc.repo.QueryStudents(ctx, QueryFilter{
		AcademicYearID: academicYearID,
		ClassID:        classID,
		Statuses:       []Status{StatusActive},
	})
	if err != nil {
		return summary, errors.Wrap(err, "querying students")
	}

	for _, s := range students {
		ledger, err := svc.ledgers.GenerateLedger(ctx, s.ID, academicYearID, classID)
		switch {
		case core.IsConflict(err):
			summary.Skipped++
		case err != nil:
			return summary, errors.Wrapf(err, "generating ledger of student %s", s.AdmissionNo)
		case ledger == nil: // no template: nothing to generate for anyone
			svc.logger.Info("no fee template configured", map[string]interface{}{
				"academic_year_id": academicYearID, "class_id": classID,
			})
			summary.Skipped += len(students) - summary.Created - summary.Skipped
			return summary, nil
		default:
			summary.Created++
		}
	}
	return summary, nil
}

func nullString(s string) null.String {
	return null.NewString(s, s != "")
}
