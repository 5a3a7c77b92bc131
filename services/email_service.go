package services

import (
	"context"
	"fmt"
	"html"
	"log"
	"os"

	"gopkg.in/gomail.v2"

	"github.com/HSouheill/evently_backend/config"
)

// EmailService delivers transactional email over SMTP
type EmailService struct {
	host string
	port int
	user string
	pass string
	from string
}

// NewEmailService reads SMTP settings from the environment
func NewEmailService() *EmailService {
	s := &EmailService{
		host: os.Getenv("SMTP_HOST"),
		port: config.GetIntEnv("SMTP_PORT", 587),
		user: os.Getenv("SMTP_USER"),
		pass: os.Getenv("SMTP_PASS"),
	}
	s.from = config.GetEnv("SMTP_FROM", s.user)

	if s.host == "" || s.user == "" {
		log.Printf("WARNING: SMTP not fully configured (SMTP_HOST/SMTP_USER missing), emails will fail")
	}
	return s
}

// Send delivers an HTML email and waits for the SMTP server to accept it
func (s *EmailService) Send(ctx context.Context, to, subject, htmlBody string) error {
	if s.host == "" {
		return fmt.Errorf("smtp host not configured")
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", htmlBody)

	d := gomail.NewDialer(s.host, s.port, s.user, s.pass)

	done := make(chan error, 1)
	go func() { done <- d.DialAndSend(m) }()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("failed to send email: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func withdrawalOTPEmail(name, code string, validMinutes int) string {
	if name == "" {
		name = "there"
	}
	name = html.EscapeString(name)
	return fmt.Sprintf(`<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
	<h2>Withdrawal verification</h2>
	<p>Hello %s,</p>
	<p>Use the code below to confirm your withdrawal request:</p>
	<p style="font-size: 28px; font-weight: bold; letter-spacing: 6px;">%s</p>
	<p>This code expires in %d minutes. If you did not request a withdrawal, ignore this email and secure your account.</p>
</div>`, name, code, validMinutes)
}
