package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"

	echoapi "github.com/trezcool/feeledger/apps/api/echo"
	"github.com/trezcool/feeledger/core"
	"github.com/trezcool/feeledger/core/fee"
	"github.com/trezcool/feeledger/core/school"
	"github.com/trezcool/feeledger/core/student"
	"github.com/trezcool/feeledger/core/user"
)

var errHelp = errors.New("help provided")

type commandLine struct {
	conf     *core.Config
	db       *sql.DB
	schools  *school.Service
	fees     *fee.Service
	students *student.Service
	out      io.Writer
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS] - run a goose command (up, down, status, ...)")
	fmt.Fprintln(cli.out, "  token -subject ID -username NAME -roles ROLE[,ROLE] - print an API token")
	fmt.Fprintln(cli.out, "  repairledgers - derive missing final amounts")
	fmt.Fprintln(cli.out, "  generateledgers -year ID -class ID - open the missing ledgers of a class")
	fmt.Fprintln(cli.out, "  lockyear -year ID [-unlock] - (un)lock an academic year")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}
	ctx := context.Background()

	tokenCmd := flag.NewFlagSet("token", flag.ContinueOnError)
	tokenSubject := tokenCmd.String("subject", "", "The user ID.")
	tokenUsername := tokenCmd.String("username", "", "The name printed on receipts.")
	tokenRoles := tokenCmd.String("roles", "", "Comma-separated roles, e.g. admin:accounts,operator:")

	genCmd := flag.NewFlagSet("generateledgers", flag.ContinueOnError)
	genYear := genCmd.String("year", "", "The academic year ID.")
	genClass := genCmd.String("class", "", "The class ID.")

	lockCmd := flag.NewFlagSet("lockyear", flag.ContinueOnError)
	lockYear := lockCmd.String("year", "", "The academic year ID.")
	lockUnlock := lockCmd.Bool("unlock", false, "Unlock instead.")

	for _, fs := range []*flag.FlagSet{tokenCmd, genCmd, lockCmd} {
		fs.SetOutput(cli.out)
	}

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])

	case "token":
		if err := tokenCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *tokenSubject == "" || *tokenRoles == "" {
			tokenCmd.Usage()
			return errHelp
		}
		return cli.token(*tokenSubject, *tokenUsername, strings.Split(*tokenRoles, ","))

	case "repairledgers":
		n, err := cli.fees.RepairLedgers(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cli.out, "repaired %d ledgers\n", n)
		return nil

	case "generateledgers":
		if err := genCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *genYear == "" || *genClass == "" {
			genCmd.Usage()
			return errHelp
		}
		summary, err := cli.students.GenerateMissingLedgers(ctx, *genYear, *genClass)
		if err != nil {
			return err
		}
		fmt.Fprintf(cli.out, "created %d ledgers, skipped %d\n", summary.Created, summary.Skipped)
		return nil

	case "lockyear":
		if err := lockCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *lockYear == "" {
			lockCmd.Usage()
			return errHelp
		}
		return cli.schools.LockAcademicYear(ctx, *lockYear, !*lockUnlock)

	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) token(subject, username string, roles []string) error {
	for i, role := range roles {
		roles[i] = strings.TrimSpace(role)
		if !user.IsValidRole(roles[i]) {
			return errors.Errorf("unknown role %q", role)
		}
	}
	usr := user.User{ID: subject, Username: username, Roles: roles}
	token, err := echoapi.GenerateToken(echoapi.GetUserClaims(usr, cli.conf), cli.conf)
	if err != nil {
		return err
	}
	fmt.Fprintln(cli.out, token)
	return nil
}
