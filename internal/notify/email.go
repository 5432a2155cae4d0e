package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
)

// Email sends alerts over SMTP with STARTTLS-capable plain auth.
type Email struct {
	host     string
	port     int
	user     string
	password string
	from     string
	to       string
}

func NewEmail(host string, port int, user, password, from, to string) *Email {
	return &Email{host: host, port: port, user: user, password: password, from: from, to: to}
}

func (e *Email) name() string     { return "email" }
func (e *Email) configured() bool { return e.host != "" && e.to != "" }

func (e *Email) send(_ context.Context, subject, message string) error {
	msg := strings.Join([]string{
		"From: " + e.from,
		"To: " + e.to,
		"Subject: " + subject,
		"",
		message,
	}, "\r\n")

	addr := fmt.Sprintf("%s:%d", e.host, e.port)
	var auth smtp.Auth
	if e.user != "" {
		auth = smtp.PlainAuth("", e.user, e.password, e.host)
	}
	if err := smtp.SendMail(addr, auth, e.from, []string{e.to}, []byte(msg)); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	return nil
}
