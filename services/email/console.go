package emailsvc

import (
	"fmt"
	"io"
	"net/mail"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/trezcool/feeledger/core"
)

// ConsoleService writes emails out instead of sending them; for local development.
// It keeps what it sent, for tests.
type ConsoleService struct {
	from       mail.Address
	subjPrefix string
	templates  *core.EmailTemplates
	logger     core.Logger
	out        io.Writer
	sync       bool

	mu   sync.Mutex
	sent []core.EmailMessage
}

var _ core.EmailService = (*ConsoleService)(nil)

func NewConsoleService(conf *core.Config, templates *core.EmailTemplates, logger core.Logger) *ConsoleService {
	return &ConsoleService{
		from:       conf.Email.From(),
		subjPrefix: "[" + conf.AppName + "] ",
		templates:  templates,
		logger:     logger,
		out:        os.Stdout,
	}
}

// NewConsoleServiceMock sends synchronously & writes nothing out.
func NewConsoleServiceMock(conf *core.Config, templates *core.EmailTemplates) *ConsoleService {
	svc := NewConsoleService(conf, templates, nil)
	svc.out = io.Discard
	svc.sync = true
	return svc
}

func (svc *ConsoleService) SendMessages(messages ...*core.EmailMessage) {
	for _, msg := range messages {
		if svc.sync {
			svc.sendMessage(msg)
			continue
		}
		go svc.sendMessage(msg)
	}
}

// Sent returns the messages sent so far.
func (svc *ConsoleService) Sent() []core.EmailMessage {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	return append([]core.EmailMessage(nil), svc.sent...)
}

func (svc *ConsoleService) sendMessage(msg *core.EmailMessage) {
	if err := svc.templates.Render(msg); err != nil {
		if svc.logger != nil {
			svc.logger.Error(fmt.Sprintf("rendering email: %v", err), err)
		}
		return
	}
	if !msg.HasRecipients() || !msg.HasContent() {
		return
	}

	body := new(strings.Builder)
	_, _ = fmt.Fprintf(body, "From: %s\r\n", svc.from.String())
	_, _ = fmt.Fprintf(body, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	_, _ = fmt.Fprintf(body, "Subject: %s\r\n", svc.subjPrefix+msg.Subject)
	_, _ = fmt.Fprintf(body, "To: %s\r\n", joinAddresses(msg.To))
	_, _ = fmt.Fprint(body, "Content-Type: text/plain\r\n\r\n")
	_, _ = fmt.Fprintf(body, "%s\r\n", msg.TextContent)

	svc.mu.Lock()
	_, _ = io.WriteString(svc.out, body.String())
	svc.sent = append(svc.sent, *msg)
	svc.mu.Unlock()
}

func joinAddresses(addrs []mail.Address) string {
	toJoin := make([]string, 0, len(addrs))
	for _, a := range addrs {
		toJoin = append(toJoin, a.String())
	}
	return strings.Join(toJoin, ", ")
}
