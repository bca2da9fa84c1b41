package main

import (
	"log"
	"os"

	"github.com/trezcool/feeledger/core"
	"github.com/trezcool/feeledger/core/fee"
	"github.com/trezcool/feeledger/core/school"
	"github.com/trezcool/feeledger/core/student"
	cachesvc "github.com/trezcool/feeledger/services/cache"
	logsvc "github.com/trezcool/feeledger/services/logger"
	"github.com/trezcool/feeledger/storage/database"
	sqlxrepos "github.com/trezcool/feeledger/storage/database/sqlx"
)

var logger core.Logger

func main() {
	conf := core.NewConfig()

	zl, err := logsvc.NewZapLogger("admin", conf)
	if err != nil {
		log.Fatal(err)
	}
	rl := logsvc.NewRollbarLogger(zl, conf)
	rl.Enable(!conf.Debug)
	defer rl.Sync()
	logger = rl

	// set up DB: not migrated here, `migrate` manages it
	db, err := database.Open(conf)
	errAndDie(err)
	defer db.Close()

	cache, err := cachesvc.New(conf)
	errAndDie(err)

	// set up services
	tx := sqlxrepos.NewTransactor(db)
	schools := school.NewService(sqlxrepos.NewSchoolRepository(db))
	fees, err := fee.NewService(tx, sqlxrepos.NewFeeRepository(db), schools, cache, logger, conf)
	errAndDie(err)
	students := student.NewService(tx, sqlxrepos.NewStudentRepository(db), schools, fees, logger, conf)

	// start CLI
	cli := commandLine{
		conf:     conf,
		db:       db.DB,
		schools:  schools,
		fees:     fees,
		students: students,
		out:      os.Stdout,
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Error("admin command failed", err)
		}
		rl.Sync()
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err.Error(), err)
	}
}
