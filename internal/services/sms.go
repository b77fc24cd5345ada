package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"taxdesk/internal/config"
)

const twilioBaseURL = "https://api.twilio.com/2010-04-01"

// SMSService sends text messages through the configured provider
type SMSService struct {
	cfg     *config.SMSConfig
	log     *zap.Logger
	client  *http.Client
	baseURL string
}

// NewSMSService creates a new SMS service
func NewSMSService(cfg *config.SMSConfig, log *zap.Logger) *SMSService {
	return &SMSService{
		cfg:     cfg,
		log:     log.Named("sms"),
		client:  &http.Client{Timeout: 10 * time.Second},
		baseURL: twilioBaseURL,
	}
}

// SendSMS delivers message to phoneNumber
func (s *SMSService) SendSMS(ctx context.Context, phoneNumber, message string) error {
	if !s.cfg.Enabled {
		s.log.Info("sms disabled, not sending", zap.String("to", maskPhone(phoneNumber)))
		return nil
	}

	switch strings.ToLower(s.cfg.Provider) {
	case "twilio":
		return s.sendViaTwilio(ctx, phoneNumber, message)
	case "console", "dev", "development":
		s.log.Info("sms", zap.String("to", maskPhone(phoneNumber)), zap.String("body", message))
		return nil
	default:
		return fmt.Errorf("unsupported SMS provider: %s", s.cfg.Provider)
	}
}

func (s *SMSService) sendViaTwilio(ctx context.Context, phoneNumber, message string) error {
	if s.cfg.TwilioSID == "" || s.cfg.TwilioAuth == "" || s.cfg.TwilioFrom == "" {
		return fmt.Errorf("twilio not properly configured")
	}

	form := url.Values{}
	form.Set("From", s.cfg.TwilioFrom)
	form.Set("To", NormalizePhone(phoneNumber))
	form.Set("Body", message)

	endpoint := fmt.Sprintf("%s/Accounts/%s/Messages.json", s.baseURL, s.cfg.TwilioSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.SetBasicAuth(s.cfg.TwilioSID, s.cfg.TwilioAuth)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send SMS request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		var errorResp map[string]interface{}
		_ = json.NewDecoder(resp.Body).Decode(&errorResp)
		return fmt.Errorf("twilio API error (status %d): %v", resp.StatusCode, errorResp["message"])
	}
	return nil
}

// NormalizePhone strips formatting and prefixes a UK country code when the
// number has none. Numbers already starting with + keep their country code.
func NormalizePhone(phone string) string {
	var b strings.Builder
	for i, r := range strings.TrimSpace(phone) {
		if r >= '0' && r <= '9' || r == '+' && i == 0 {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	switch {
	case strings.HasPrefix(digits, "+"):
		return digits
	case strings.HasPrefix(digits, "00"):
		return "+" + digits[2:]
	case strings.HasPrefix(digits, "0"):
		return "+44" + digits[1:]
	default:
		return "+" + digits
	}
}

func maskPhone(phone string) string {
	if len(phone) <= 4 {
		return "****"
	}
	return strings.Repeat("*", len(phone)-4) + phone[len(phone)-4:]
}
