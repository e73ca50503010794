package services

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"html"
	"log"
	"time"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"gopkg.in/gomail.v2"

	"github.com/example/partsmarket/internal/config"
	"github.com/example/partsmarket/internal/otp"
)

// Email providers.
const (
	EmailProviderSMTP     = "smtp"
	EmailProviderSendGrid = "sendgrid"
)

var errEmailNotConfigured = errors.New("email provider not configured")

// EmailService sends reset codes by email through SMTP (gomail) or SendGrid.
type EmailService struct {
	provider string
	appName  string
	codeTTL  time.Duration

	smtpHost string
	smtpPort int
	smtpUser string
	smtpPass string

	sendGridKey string
	senderEmail string
	senderName  string
}

// NewEmailService builds an EmailService from config.
func NewEmailService(cfg *config.Config) *EmailService {
	provider := cfg.EmailProvider
	if provider == "" {
		provider = EmailProviderSMTP
	}
	return &EmailService{
		provider:    provider,
		appName:     cfg.AppName,
		codeTTL:     cfg.OTPTTL,
		smtpHost:    cfg.SMTPHost,
		smtpPort:    cfg.SMTPPort,
		smtpUser:    cfg.SMTPUser,
		smtpPass:    cfg.SMTPPassword,
		sendGridKey: cfg.SendGridAPIKey,
		senderEmail: cfg.SenderEmail,
		senderName:  cfg.SenderName,
	}
}

// Configured reports whether the selected provider has its credentials.
func (s *EmailService) Configured() bool {
	switch s.provider {
	case EmailProviderSendGrid:
		return s.sendGridKey != "" && s.senderEmail != ""
	case EmailProviderSMTP:
		return s.smtpHost != "" && s.smtpUser != ""
	default:
		return false
	}
}

// SendCode emails a password-reset code.
func (s *EmailService) SendCode(_ context.Context, to, code, displayName string) error {
	subject := fmt.Sprintf("%s password reset code", s.appName)
	return s.Send(to, subject, resetCodeHTML(s.appName, displayName, code, s.codeTTL))
}

// Send delivers an HTML email with the configured provider.
func (s *EmailService) Send(to, subject, body string) error {
	if !s.Configured() {
		return errEmailNotConfigured
	}

	switch s.provider {
	case EmailProviderSendGrid:
		return s.sendSendGrid(to, subject, body)
	default:
		return s.sendSMTP(to, subject, body)
	}
}

func (s *EmailService) sendSMTP(to, subject, body string) error {
	from := s.senderEmail
	if from == "" {
		from = s.smtpUser
	}

	m := gomail.NewMessage()
	m.SetAddressHeader("From", from, s.senderName)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", body)

	d := gomail.NewDialer(s.smtpHost, s.smtpPort, s.smtpUser, s.smtpPass)
	d.TLSConfig = &tls.Config{ServerName: s.smtpHost}

	if err := d.DialAndSend(m); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	log.Printf("[Email] Sent %q to %s via SMTP", subject, to)
	return nil
}

func (s *EmailService) sendSendGrid(to, subject, body string) error {
	message := mail.NewSingleEmail(
		mail.NewEmail(s.senderName, s.senderEmail),
		subject,
		mail.NewEmail("", to),
		body,
		body,
	)

	response, err := sendgrid.NewSendClient(s.sendGridKey).Send(message)
	if err != nil {
		return fmt.Errorf("sendgrid send: %w", err)
	}
	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return fmt.Errorf("sendgrid returned status %d: %s", response.StatusCode, response.Body)
	}

	log.Printf("[Email] Sent %q to %s via SendGrid", subject, to)
	return nil
}

func resetCodeHTML(appName, displayName, code string, ttl time.Duration) string {
	if displayName == "" {
		displayName = "there"
	}
	if ttl <= 0 {
		ttl = otp.DefaultTTL
	}
	return fmt.Sprintf(`<p>Hello %s,</p>
<p>Your %s password reset code is:</p>
<h2 style="letter-spacing:4px">%s</h2>
<p>The code expires in %d minutes. If you did not ask for a reset, ignore this email.</p>`,
		html.EscapeString(displayName), html.EscapeString(appName), code, int(ttl.Minutes()))
}
