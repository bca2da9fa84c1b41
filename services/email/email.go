package emailsvc

import (
	"github.com/pkg/errors"

	"github.com/trezcool/feeledger/core"
	appfs "github.com/trezcool/feeledger/fs"
)

const (
	DriverConsole  = "console"
	DriverSendgrid = "sendgrid"
)

// New picks the email service configured under email.driver.
func New(conf *core.Config, logger core.Logger) (core.EmailService, error) {
	templates, err := core.ParseEmailTemplates(appfs.FS, appfs.EmailTemplatesDir)
	if err != nil {
		return nil, err
	}
	switch conf.Email.Driver {
	case "", DriverConsole:
		return NewConsoleService(conf, templates, logger), nil
	case DriverSendgrid:
		if conf.Email.SendgridAPIKey == "" {
			return nil, errors.New("email.sendgridAPIKey is required by the sendgrid driver")
		}
		return NewSendgridService(conf, templates, logger), nil
	default:
		return nil, errors.Errorf("unknown email driver %q", conf.Email.Driver)
	}
}
