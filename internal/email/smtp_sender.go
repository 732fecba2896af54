package email

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/smtp"
	"strings"
)

// SMTPSender envia correos via SMTP.
type SMTPSender struct {
	host     string
	port     int
	username string
	password string
	from     string
	fromName string
	useTLS   bool
	baseURL  string
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
	UseTLS   bool
	BaseURL  string
}

func NewSMTPSender(cfg SMTPConfig) (*SMTPSender, error) {
	if strings.TrimSpace(cfg.Host) == "" {
		return nil, fmt.Errorf("smtp host is required")
	}
	if strings.TrimSpace(cfg.From) == "" {
		return nil, fmt.Errorf("smtp from is required")
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	return &SMTPSender{
		host:     cfg.Host,
		port:     cfg.Port,
		username: cfg.Username,
		password: cfg.Password,
		from:     cfg.From,
		fromName: cfg.FromName,
		useTLS:   cfg.UseTLS,
		baseURL:  cfg.BaseURL,
	}, nil
}

func (s *SMTPSender) SendVerificationEmail(_ context.Context, toEmail, token, nickname string) error {
	subject, body := verificationContent(s.brand(), nickname, VerificationLink(s.baseURL, token))
	return s.send(toEmail, subject, body)
}

func (s *SMTPSender) SendPasswordResetEmail(_ context.Context, toEmail, token, nickname string) error {
	subject, body := passwordResetContent(s.brand(), nickname, PasswordResetLink(s.baseURL, token))
	return s.send(toEmail, subject, body)
}

func (s *SMTPSender) brand() string {
	if strings.TrimSpace(s.fromName) == "" {
		return "VoiceToon"
	}
	return s.fromName
}

func (s *SMTPSender) send(toEmail, subject, body string) error {
	if strings.TrimSpace(toEmail) == "" {
		return fmt.Errorf("to email is required")
	}

	msg := buildMessage(s.from, s.fromName, toEmail, subject, body)
	addr := fmt.Sprintf("%s:%d", s.host, s.port)

	var auth smtp.Auth
	if s.username != "" {
		auth = smtp.PlainAuth("", s.username, s.password, s.host)
	}

	if s.useTLS {
		conn, err := tls.Dial("tcp", addr, &tls.Config{
			ServerName: s.host,
		})
		if err != nil {
			return err
		}
		defer conn.Close()

		client, err := smtp.NewClient(conn, s.host)
		if err != nil {
			return err
		}
		defer client.Quit()

		if auth != nil {
			if err := client.Auth(auth); err != nil {
				return err
			}
		}
		if err := client.Mail(s.from); err != nil {
			return err
		}
		if err := client.Rcpt(toEmail); err != nil {
			return err
		}
		writer, err := client.Data()
		if err != nil {
			return err
		}
		if _, err := writer.Write([]byte(msg)); err != nil {
			_ = writer.Close()
			return err
		}
		return writer.Close()
	}

	return smtp.SendMail(addr, auth, s.from, []string{toEmail}, []byte(msg))
}

func verificationContent(brand, nickname, link string) (string, string) {
	subject := fmt.Sprintf("Verify your %s account", brand)
	body := fmt.Sprintf(
		"Hi %s,\n\nConfirm your email address by opening the link below:\n%s\n\nThe link expires in 24 hours. Unverified accounts are removed after that.\n",
		nickname,
		link,
	)
	return subject, body
}

func passwordResetContent(brand, nickname, link string) (string, string) {
	subject := fmt.Sprintf("Reset your %s password", brand)
	body := fmt.Sprintf(
		"Hi %s,\n\nWe received a request to reset your password. Open the link below to choose a new one:\n%s\n\nThe link expires in 1 hour. If you did not ask for this, ignore this email.\n",
		nickname,
		link,
	)
	return subject, body
}

func buildMessage(from, fromName, to, subject, body string) string {
	fromHeader := from
	if strings.TrimSpace(fromName) != "" {
		fromHeader = fmt.Sprintf("%s <%s>", fromName, from)
	}

	headers := []string{
		fmt.Sprintf("From: %s", fromHeader),
		fmt.Sprintf("To: %s", to),
		fmt.Sprintf("Subject: %s", subject),
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=\"UTF-8\"",
	}

	return strings.Join(headers, "\r\n") + "\r\n\r\n" + body
}
