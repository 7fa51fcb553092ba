package mail

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/ticketdesk/internal/common"
	gomail "github.com/wneessen/go-mail"
)

// implicitTLSPort is the SMTPS port; any other port negotiates STARTTLS
// when the server offers it.
const implicitTLSPort = 465

// SMTPConfig holds the outgoing mail transport settings.
type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
	FromName string
	Timeout  time.Duration
}

func (c SMTPConfig) complete() bool {
	return c.Host != "" && c.Port > 0 && c.User != "" && c.Password != "" && c.From != ""
}

// dialAndSend is a seam for tests.
var dialAndSend = func(ctx context.Context, c *gomail.Client, msgs ...*gomail.Msg) error {
	return c.DialAndSendWithContext(ctx, msgs...)
}

type SMTPSender struct {
	cfg SMTPConfig
}

var _ Sender = (*SMTPSender)(nil)

// NewSMTPSender returns a sender for cfg. An incomplete cfg is accepted;
// every Send then fails with common.ErrServerMisconfigured.
func NewSMTPSender(cfg SMTPConfig) *SMTPSender {
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &SMTPSender{cfg: cfg}
}

func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if !s.cfg.complete() {
		return fmt.Errorf("%w: email transport is not configured", common.ErrServerMisconfigured)
	}

	m, err := s.build(msg)
	if err != nil {
		return err
	}

	opts := []gomail.Option{
		gomail.WithPort(s.cfg.Port),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(s.cfg.User),
		gomail.WithPassword(s.cfg.Password),
		gomail.WithTimeout(s.cfg.Timeout),
	}
	if s.cfg.Port == implicitTLSPort {
		opts = append(opts, gomail.WithSSL())
	} else {
		opts = append(opts, gomail.WithTLSPolicy(gomail.TLSOpportunistic))
	}

	client, err := gomail.NewClient(s.cfg.Host, opts...)
	if err != nil {
		return fmt.Errorf("%w: smtp client: %w", common.ErrServerMisconfigured, err)
	}
	if err := dialAndSend(ctx, client, m); err != nil {
		return fmt.Errorf("%w: send email: %w", common.ErrorInternal, err)
	}
	return nil
}

func (s *SMTPSender) build(msg Message) (*gomail.Msg, error) {
	if msg.To == "" || msg.Subject == "" || msg.Text == "" {
		return nil, fmt.Errorf("%w: email needs recipient, subject and body", common.ErrInvalidInput)
	}

	m := gomail.NewMsg()
	name := s.cfg.FromName
	if name == "" {
		name = "Assistant"
	}
	if err := m.FromFormat(name, s.cfg.From); err != nil {
		return nil, fmt.Errorf("%w: sender address: %w", common.ErrServerMisconfigured, err)
	}
	if err := m.To(msg.To); err != nil {
		return nil, fmt.Errorf("%w: recipient address: %w", common.ErrInvalidInput, err)
	}
	m.Subject(msg.Subject)
	m.SetBodyString(gomail.TypeTextPlain, msg.Text)
	if msg.HTML != "" {
		m.AddAlternativeString(gomail.TypeTextHTML, msg.HTML)
	}
	return m, nil
}
