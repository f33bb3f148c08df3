package email

import (
	"fmt"
	"net/smtp"
)

type Mail struct {
	address  string
	password string
	host     string
	port     string
}

func New(address string, password string, host string, port string) *Mail {
	return &Mail{
		address:  address,
		password: password,
		host:     host,
		port:     port,
	}
}

func (m *Mail) Send(to string, subject string, body string) error {
	msg := []byte(fmt.Sprintf("To: %s\r\nSubject: %s\r\n\r\n%s\r\n", to, subject, body))

	auth := smtp.PlainAuth("", m.address, m.password, m.host)
	addr := m.host + ":" + m.port

	if err := smtp.SendMail(addr, auth, m.address, []string{to}, msg); err != nil {
		return fmt.Errorf("sending email to %s: %w", to, err)
	}

	return nil
}
