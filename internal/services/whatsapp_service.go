package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/example/partsmarket/internal/config"
)

const whatsAppPrefix = "whatsapp:"

var errWhatsAppDisabled = errors.New("whatsapp delivery disabled")

type messageCreator interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

// WhatsAppService sends messages through the Twilio WhatsApp API.
type WhatsAppService struct {
	client  messageCreator
	from    string
	appName string
	enabled bool
}

// NewWhatsAppService builds a WhatsAppService from config. It is disabled
// unless TWILIO_WHATSAPP_ENABLED is set and the credentials are present.
func NewWhatsAppService(cfg *config.Config) *WhatsAppService {
	enabled := cfg.TwilioWhatsAppEnabled &&
		cfg.TwilioAccountSID != "" &&
		cfg.TwilioAuthToken != "" &&
		cfg.TwilioWhatsAppFrom != ""

	svc := &WhatsAppService{
		from:    strings.TrimPrefix(cfg.TwilioWhatsAppFrom, whatsAppPrefix),
		appName: cfg.AppName,
		enabled: enabled,
	}
	if enabled {
		client := twilio.NewRestClientWithParams(twilio.ClientParams{
			Username: cfg.TwilioAccountSID,
			Password: cfg.TwilioAuthToken,
		})
		svc.client = client.Api
	}
	return svc
}

// Enabled reports whether messages will actually be sent.
func (s *WhatsAppService) Enabled() bool {
	return s != nil && s.enabled && s.client != nil
}

// SendCode sends a password-reset code to a canonical phone number.
func (s *WhatsAppService) SendCode(ctx context.Context, to, code, displayName string) error {
	greeting := "Hello"
	if displayName != "" {
		greeting = "Hello " + displayName
	}
	body := fmt.Sprintf("%s, your %s password reset code is %s. Do not share it with anyone.", greeting, s.appName, code)
	return s.Send(ctx, to, body)
}

// Send delivers a WhatsApp text message.
func (s *WhatsAppService) Send(_ context.Context, to, body string) error {
	if !s.Enabled() {
		return errWhatsAppDisabled
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetTo(whatsAppPrefix + to)
	params.SetFrom(whatsAppPrefix + s.from)
	params.SetBody(body)

	resp, err := s.client.CreateMessage(params)
	if err != nil {
		return fmt.Errorf("twilio create message: %w", err)
	}

	sid := ""
	if resp != nil && resp.Sid != nil {
		sid = *resp.Sid
	}
	log.Printf("[WhatsApp] Message sent to %s (sid=%s)", to, sid)
	return nil
}
