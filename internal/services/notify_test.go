package services

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/smtp"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"taxdesk/internal/config"
	"taxdesk/internal/domain"
)

type sentEmail struct {
	to, subject, html, text string
}

type fakeEmail struct {
	sent []sentEmail
	err  error
}

func (f *fakeEmail) SendHTMLEmail(to, subject, htmlBody, textBody string) error {
	f.sent = append(f.sent, sentEmail{to, subject, htmlBody, textBody})
	return f.err
}

type fakeSMS struct {
	to, body string
	calls    int
}

func (f *fakeSMS) SendSMS(ctx context.Context, phoneNumber, message string) error {
	f.calls++
	f.to, f.body = phoneNumber, message
	return nil
}

func strPtr(s string) *string { return &s }

func TestQueryNotifier_Email(t *testing.T) {
	email, sms := &fakeEmail{}, &fakeSMS{}
	n := NewQueryNotifier(email, sms, "queries@taxdesk.test", zap.NewNop())

	rec := &domain.QueryRecord{
		Reference:    "6f1c2a9e-0000-4000-8000-000000000001",
		FirstName:    "Jane",
		LastName:     "<b>Doe</b>",
		Method:       "email",
		EmailAddress: strPtr("jane@example.com"),
		Query:        strPtr("Is my pension lump sum taxable?"),
		CreatedAt:    time.Date(2026, 4, 5, 9, 30, 0, 0, time.UTC),
	}
	require.NoError(t, n.Notify(context.Background(), rec))

	require.Len(t, email.sent, 2)
	staff, ack := email.sent[0], email.sent[1]

	assert.Equal(t, "queries@taxdesk.test", staff.to)
	assert.Contains(t, staff.subject, "New email query")
	assert.Contains(t, staff.text, "Is my pension lump sum taxable?")
	assert.Contains(t, staff.html, "&lt;b&gt;Doe&lt;/b&gt;")
	assert.NotContains(t, staff.html, "<b>Doe</b>")

	assert.Equal(t, "jane@example.com", ack.to)
	assert.Contains(t, ack.text, rec.Reference)
	assert.Zero(t, sms.calls)
}

func TestQueryNotifier_Phone(t *testing.T) {
	email, sms := &fakeEmail{}, &fakeSMS{}
	n := NewQueryNotifier(email, sms, "queries@taxdesk.test", zap.NewNop())

	rec := &domain.QueryRecord{
		Reference: "6f1c2a9e-0000-4000-8000-000000000002",
		FirstName: "Sam",
		LastName:  "Lee",
		Method:    "phone",
		Phone:     strPtr("07700 900123"),
		Query:     strPtr("Capital gains on shares"),
	}
	require.NoError(t, n.Notify(context.Background(), rec))

	assert.Len(t, email.sent, 1, "only the staff copy is emailed")
	assert.Equal(t, 1, sms.calls)
	assert.Equal(t, "07700 900123", sms.to)
	assert.Contains(t, sms.body, "6f1c2a9e")
}

func TestQueryNotifier_MeetingAndErrors(t *testing.T) {
	email, sms := &fakeEmail{err: errors.New("smtp down")}, &fakeSMS{}
	n := NewQueryNotifier(email, sms, "queries@taxdesk.test", zap.NewNop())

	err := n.Notify(context.Background(), &domain.QueryRecord{FirstName: "Jo", LastName: "Bloggs", Method: "meeting"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "smtp down")
	require.Len(t, email.sent, 1)
	assert.Contains(t, email.sent[0].text, "asked for a meeting")
	assert.Zero(t, sms.calls)
}

func TestEmailService_SendHTMLEmail(t *testing.T) {
	cfg := &config.EmailConfig{
		Enabled:   true,
		SMTPHost:  "smtp.example.com",
		SMTPPort:  587,
		Username:  "user",
		Password:  "pass",
		FromEmail: "noreply@taxdesk.test",
		FromName:  "Tax Desk",
	}
	svc := NewEmailService(cfg, zap.NewNop())

	var gotAddr string
	var gotMsg []byte
	svc.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotMsg = addr, msg
		return nil
	}

	require.NoError(t, svc.SendHTMLEmail("jane@example.com", "Hello", "<p>hi</p>", "hi"))
	assert.Equal(t, "smtp.example.com:587", gotAddr)
	msg := string(gotMsg)
	assert.Contains(t, msg, "From: Tax Desk <noreply@taxdesk.test>\r\n")
	assert.Contains(t, msg, "Content-Type: text/html")
	assert.True(t, strings.HasSuffix(msg, "--\r\n"))

	assert.Contains(t, msg, "Subject: Hello\r\n")

	require.NoError(t, svc.SendHTMLEmail("queries@taxdesk.test", "New email query from Zoë Brontë", "", "hi"))
	msg = string(gotMsg)
	assert.Contains(t, msg, "Subject: =?utf-8?q?New_email_query_from_Zo=C3=AB_Bront=C3=AB?=\r\n")
	assert.NotContains(t, msg, "Zoë")

	assert.Error(t, svc.SendHTMLEmail("jane@example.com\r\nBcc: x@y.z", "Hello", "", "hi"))

	cfg.Enabled = false
	svc.send = func(string, smtp.Auth, string, []string, []byte) error { t.Fatal("disabled service sent mail"); return nil }
	assert.NoError(t, svc.SendHTMLEmail("jane@example.com", "Hello", "", "hi"))
}

func TestSMSService_Twilio(t *testing.T) {
	var form url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/Accounts/AC123/Messages.json", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "AC123", user)
		assert.Equal(t, "secret", pass)
		body, _ := io.ReadAll(r.Body)
		form, _ = url.ParseQuery(string(body))
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	svc := NewSMSService(&config.SMSConfig{
		Enabled:    true,
		Provider:   "twilio",
		TwilioSID:  "AC123",
		TwilioAuth: "secret",
		TwilioFrom: "+447700900000",
	}, zap.NewNop())
	svc.baseURL = srv.URL

	require.NoError(t, svc.SendSMS(context.Background(), "07700 900123", "hello"))
	assert.Equal(t, "+447700900123", form.Get("To"))
	assert.Equal(t, "+447700900000", form.Get("From"))
	assert.Equal(t, "hello", form.Get("Body"))
}

func TestSMSService_Providers(t *testing.T) {
	svc := NewSMSService(&config.SMSConfig{Enabled: true, Provider: "console"}, zap.NewNop())
	assert.NoError(t, svc.SendSMS(context.Background(), "07700 900123", "hello"))

	svc = NewSMSService(&config.SMSConfig{Enabled: true, Provider: "pigeon"}, zap.NewNop())
	assert.Error(t, svc.SendSMS(context.Background(), "07700 900123", "hello"))

	svc = NewSMSService(&config.SMSConfig{Enabled: true, Provider: "twilio"}, zap.NewNop())
	assert.Error(t, svc.SendSMS(context.Background(), "07700 900123", "hello"), "missing credentials")
}

func TestNormalizePhone(t *testing.T) {
	assert.Equal(t, "+447700900123", NormalizePhone("07700 900123"))
	assert.Equal(t, "+442079460958", NormalizePhone("+44 (20) 7946-0958"))
	assert.Equal(t, "+353851234567", NormalizePhone("00353 85 123 4567"))
	assert.Equal(t, "+15551234567", NormalizePhone("15551234567"))
}
