package infra

import (
	"bytes"
	"fmt"
	"net/smtp"

	"comandapos/internal/config"

	"github.com/jordan-wright/email"
)

// Mailer sends closing reports through the configured SMTP relay. Sends go
// through a circuit breaker so a dead relay does not stall the report queue.
type Mailer struct {
	host     string
	user     string
	password string
	from     string
	addr     string
	breaker  *CircuitBreaker
}

func NewMailer(cfg *config.Config) *Mailer {
	from := cfg.SMTPFrom
	if from == "" {
		from = cfg.SMTPUser
	}
	return &Mailer{
		host:     cfg.SMTPHost,
		user:     cfg.SMTPUser,
		password: cfg.SMTPPassword,
		from:     from,
		addr:     fmt.Sprintf("%s:%d", cfg.SMTPHost, cfg.SMTPPort),
		breaker:  NewCircuitBreaker(DefaultCBConfig("smtp")),
	}
}

// Enabled is false when no SMTP host is configured.
func (m *Mailer) Enabled() bool { return m.host != "" }

// Available is false while the breaker is open.
func (m *Mailer) Available() bool { return m.breaker.State() != CBOpen }

// SendReport mails a PDF attachment.
func (m *Mailer) SendReport(to, subject, body, fileName string, pdf []byte) error {
	e := email.NewEmail()
	e.From = m.from
	e.To = []string{to}
	e.Subject = subject
	e.Text = []byte(body)
	if _, err := e.Attach(bytes.NewReader(pdf), fileName, "application/pdf"); err != nil {
		return fmt.Errorf("mailer: attach report: %w", err)
	}

	var auth smtp.Auth
	if m.user != "" {
		auth = smtp.PlainAuth("", m.user, m.password, m.host)
	}
	return m.breaker.Execute(func() error {
		return e.Send(m.addr, auth)
	})
}
