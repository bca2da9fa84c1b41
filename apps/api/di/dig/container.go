package dig_container

import (
	"fmt"
	"log"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/trezcool/feeledger/apps/api/echo"
	"github.com/trezcool/feeledger/core"
	"github.com/trezcool/feeledger/core/fee"
	"github.com/trezcool/feeledger/core/school"
	"github.com/trezcool/feeledger/core/student"
	cachesvc "github.com/trezcool/feeledger/services/cache"
	emailsvc "github.com/trezcool/feeledger/services/email"
	logsvc "github.com/trezcool/feeledger/services/logger"
	"github.com/trezcool/feeledger/storage/database"
	dummydb "github.com/trezcool/feeledger/storage/database/dummy"
	sqlxrepos "github.com/trezcool/feeledger/storage/database/sqlx"
)

type (
	DBLoggerParam struct {
		dig.In
		Logger core.Logger `name:"dbLogger"`
	}

	// DBCloser releases the storage; a no-op for the in-memory engine.
	DBCloser func() error

	Storage struct {
		dig.Out
		Tx          core.Transactor
		SchoolRepo  school.Repository
		StudentRepo student.Repository
		FeeRepo     fee.Repository
		ReportRepo  fee.ReportRepository
		Close       DBCloser
	}
)

func newLogger(name string) func(conf *core.Config) (core.Logger, error) {
	return func(conf *core.Config) (core.Logger, error) {
		zl, err := logsvc.NewZapLogger(name, conf)
		if err != nil {
			return nil, err
		}
		logger := logsvc.NewRollbarLogger(zl, conf)
		logger.Enable(!conf.Debug)
		return logger, nil
	}
}

func newStorage(conf *core.Config, loggerParam DBLoggerParam) Storage {
	switch conf.Database.Engine {
	case database.EngineMemory:
		db := dummydb.Open()
		repo := dummydb.NewFeeRepository(db)
		return Storage{
			Tx:          db,
			SchoolRepo:  dummydb.NewSchoolRepository(db),
			StudentRepo: dummydb.NewStudentRepository(db),
			FeeRepo:     repo,
			ReportRepo:  repo,
			Close:       func() error { return nil },
		}

	case database.EnginePostgres:
		if err := database.CreateIfNotExist(conf); err != nil {
			loggerParam.Logger.Fatal(fmt.Sprintf("creating database: %v", err), err)
		}
		db, err := database.Open(conf)
		if err != nil {
			loggerParam.Logger.Fatal(fmt.Sprintf("opening database: %v", err), err)
		}
		if err = database.Migrate(db.DB); err != nil {
			loggerParam.Logger.Fatal(fmt.Sprintf("migrating database: %v", err), err)
		}
		repo := sqlxrepos.NewFeeRepository(db)
		return Storage{
			Tx:          sqlxrepos.NewTransactor(db),
			SchoolRepo:  sqlxrepos.NewSchoolRepository(db),
			StudentRepo: sqlxrepos.NewStudentRepository(db),
			FeeRepo:     repo,
			ReportRepo:  repo,
			Close:       db.Close,
		}
	}

	loggerParam.Logger.Fatal(fmt.Sprintf("unknown database engine %q", conf.Database.Engine))
	return Storage{}
}

func newValidator(translator ut.Translator) *validator.Validate {
	validate := validator.New()
	core.InitValidators(validate, translator)
	fee.InitValidators(validate, translator)
	return validate
}

func newStudentService(
	tx core.Transactor,
	repo student.Repository,
	schools *school.Service,
	fees *fee.Service,
	logger core.Logger,
	conf *core.Config,
) *student.Service {
	return student.NewService(tx, repo, schools, fees, logger, conf)
}

func newFeeService(
	tx core.Transactor,
	repo fee.Repository,
	schools *school.Service,
	cache core.Cache,
	mailer *student.ReceiptMailer,
	logger core.Logger,
	conf *core.Config,
) (*fee.Service, error) {
	return fee.NewService(tx, repo, schools, cache, logger, conf, fee.WithReceiptNotifier(mailer))
}

type serverParams struct {
	dig.In
	Conf       *core.Config
	Logger     core.Logger
	Fees       *fee.Service
	Reports    *fee.Reports
	Students   *student.Service
	Schools    *school.Service
	Validate   *validator.Validate
	Translator ut.Translator
}

func newServer(p serverParams) *echoapi.Server {
	return echoapi.NewServer(echoapi.ServerDeps{
		Conf:       p.Conf,
		Logger:     p.Logger,
		FeeSvc:     p.Fees,
		Reports:    p.Reports,
		StudentSvc: p.Students,
		SchoolSvc:  p.Schools,
		Validate:   p.Validate,
		Translator: p.Translator,
	})
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger("api")))
	must(c.Provide(newLogger("db"), dig.Name("dbLogger")))
	must(c.Provide(newStorage))
	must(c.Provide(cachesvc.New))
	must(c.Provide(emailsvc.New))
	must(c.Provide(student.NewReceiptMailer))
	must(c.Provide(core.NewTranslator))
	must(c.Provide(newValidator))
	must(c.Provide(school.NewService))
	must(c.Provide(newFeeService))
	must(c.Provide(fee.NewReports))
	must(c.Provide(newStudentService))
	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
