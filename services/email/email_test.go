package emailsvc

import (
	"net/mail"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/feeledger/core"
	appfs "github.com/trezcool/feeledger/fs"
	logsvc "github.com/trezcool/feeledger/services/logger"
)

func receiptData() map[string]interface{} {
	return map[string]interface{}{
		"ParentName":    "Joseph Mutombo",
		"StudentName":   "Grace Mutombo",
		"AdmissionNo":   "ADM25001",
		"Amount":        "1500.00",
		"AmountInWords": "one thousand five hundred only",
		"ReceiptNo":     "REC-1",
		"PaymentDate":   "02 Jan 2026",
		"PaymentMode":   "CASH",
		"CollectedBy":   "cashier",
		"SchoolName":    "Fee Ledger",
	}
}

func TestNew(t *testing.T) {
	conf := core.NewTestConfig()
	logger := logsvc.NewNopLogger()

	svc, err := New(conf, logger)
	require.NoError(t, err)
	assert.IsType(t, &ConsoleService{}, svc)

	conf.Email.Driver = DriverSendgrid
	_, err = New(conf, logger)
	assert.EqualError(t, err, "email.sendgridAPIKey is required by the sendgrid driver")

	conf.Email.SendgridAPIKey = "SG.key"
	svc, err = New(conf, logger)
	require.NoError(t, err)
	assert.IsType(t, &sendgridService{}, svc)

	conf.Email.Driver = "pigeon"
	_, err = New(conf, logger)
	assert.Error(t, err)
}

func TestConsoleService_SendMessages(t *testing.T) {
	conf := core.NewTestConfig()
	templates, err := core.ParseEmailTemplates(appfs.FS, appfs.EmailTemplatesDir)
	require.NoError(t, err)
	svc := NewConsoleServiceMock(conf, templates)

	to := []mail.Address{{Name: "Joseph Mutombo", Address: "joseph@example.com"}}
	svc.SendMessages(
		&core.EmailMessage{To: to, Subject: "Receipt", TemplateName: "receipt", TemplateData: receiptData()},
		&core.EmailMessage{Subject: "nobody to send to", BodyStr: "hi"},
		&core.EmailMessage{To: to, Subject: "broken", TemplateName: "receipt", TemplateData: map[string]interface{}{}},
	)

	sent := svc.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "Receipt", sent[0].Subject)
	assert.True(t, strings.HasPrefix(sent[0].TextContent, "Dear Joseph Mutombo,"), sent[0].TextContent)
	assert.Contains(t, sent[0].TextContent, "Receipt no.: REC-1")
	assert.Contains(t, sent[0].HTMLContent, "<strong>1500.00</strong>")
}

func TestSendgridService_prepare(t *testing.T) {
	conf := core.NewTestConfig()
	conf.Email.SendgridAPIKey = "SG.key"
	svc := NewSendgridService(conf, nil, logsvc.NewNopLogger())

	m := svc.prepare(core.EmailMessage{
		To:          []mail.Address{{Name: "Joseph", Address: "joseph@example.com"}},
		Subject:     "Receipt",
		TextContent: "paid",
	})
	assert.Equal(t, "accounts@feeledger.test", m.From.Address)
	require.Len(t, m.Personalizations, 1)
	assert.Equal(t, "[Fee Ledger] Receipt", m.Personalizations[0].Subject)
	assert.Equal(t, "joseph@example.com", m.Personalizations[0].To[0].Address)
	require.Len(t, m.Content, 1, "no html part without html content")
}
