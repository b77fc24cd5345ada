package services

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"

	"go.uber.org/zap"

	"taxdesk/internal/domain"
	"taxdesk/internal/metrics"
)

// Notifier hands an accepted query to whoever answers it
type Notifier interface {
	Notify(ctx context.Context, rec *domain.QueryRecord) error
}

// EmailSender is the part of EmailService the notifier needs
type EmailSender interface {
	SendHTMLEmail(to, subject, htmlBody, textBody string) error
}

// SMSSender is the part of SMSService the notifier needs
type SMSSender interface {
	SendSMS(ctx context.Context, phoneNumber, message string) error
}

// QueryNotifier emails staff about every query and confirms receipt to the
// submitter over the channel they chose.
type QueryNotifier struct {
	email    EmailSender
	sms      SMSSender
	notifyTo string
	log      *zap.Logger
}

// NewQueryNotifier creates a notifier sending staff copies to notifyTo
func NewQueryNotifier(email EmailSender, sms SMSSender, notifyTo string, log *zap.Logger) *QueryNotifier {
	return &QueryNotifier{email: email, sms: sms, notifyTo: notifyTo, log: log.Named("notify")}
}

// Notify sends every applicable message and joins the failures
func (n *QueryNotifier) Notify(ctx context.Context, rec *domain.QueryRecord) error {
	var errs []error

	err := n.notifyStaff(rec)
	metrics.RecordNotification("staff_email", err)
	errs = append(errs, err)

	switch domain.QueryMethod(rec.Method) {
	case domain.QueryMethodEmail:
		if rec.EmailAddress != nil {
			err := n.acknowledgeByEmail(rec)
			metrics.RecordNotification("customer_email", err)
			errs = append(errs, err)
		}
	case domain.QueryMethodPhone:
		if rec.Phone != nil {
			msg := fmt.Sprintf("Hi %s, thanks for your tax query (ref %s). A consultant will call you back within one working day.",
				rec.FirstName, shortRef(rec.Reference))
			err := n.sms.SendSMS(ctx, *rec.Phone, msg)
			metrics.RecordNotification("customer_sms", err)
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func (n *QueryNotifier) notifyStaff(rec *domain.QueryRecord) error {
	subject := fmt.Sprintf("New %s query from %s", rec.Method, oneLine(rec.FullName()))
	submitted := rec.CreatedAt.Format("2 January 2006 at 15:04 MST")

	rows := []struct{ label, value string }{
		{"Name", rec.FullName()},
		{"Preferred contact", rec.Method},
		{"Email", deref(rec.EmailAddress)},
		{"Phone", deref(rec.Phone)},
		{"Submitted", submitted},
		{"Reference", rec.Reference},
	}

	var text, htmlRows strings.Builder
	text.WriteString("New query submission\n\n")
	for _, row := range rows {
		if row.value == "" {
			continue
		}
		fmt.Fprintf(&text, "%s: %s\n", row.label, row.value)
		fmt.Fprintf(&htmlRows, "<p><strong>%s:</strong> %s</p>\n", row.label, html.EscapeString(row.value))
	}

	query := deref(rec.Query)
	if query == "" {
		query = "No details given; the submitter asked for a meeting."
	}
	fmt.Fprintf(&text, "\nQuery:\n%s\n", query)

	htmlBody := fmt.Sprintf(`<!DOCTYPE html>
<html lang="en">
<head><meta charset="UTF-8"><title>New query submission</title></head>
<body style="font-family: -apple-system, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #334155;">
    <div style="max-width: 600px; margin: 0 auto; padding: 20px;">
        <h2 style="color: #009900;">New query submission</h2>
        <div style="background: #F8FAFC; padding: 20px; border-radius: 8px;">
%s        </div>
        <div style="padding: 20px; border-left: 4px solid #009900; margin: 20px 0;">
            <h3 style="margin-top: 0;">Query</h3>
            <p style="white-space: pre-wrap;">%s</p>
        </div>
    </div>
</body>
</html>`, htmlRows.String(), html.EscapeString(query))

	return n.email.SendHTMLEmail(n.notifyTo, subject, htmlBody, text.String())
}

func (n *QueryNotifier) acknowledgeByEmail(rec *domain.QueryRecord) error {
	subject := "We have received your tax query"
	text := fmt.Sprintf(`Hello %s,

Thank you for your query. One of our tax consultants will reply to this address within two working days.

Your reference: %s

Your query:
%s
`, rec.FirstName, rec.Reference, deref(rec.Query))

	htmlBody := fmt.Sprintf(`<!DOCTYPE html>
<html lang="en">
<head><meta charset="UTF-8"><title>%s</title></head>
<body style="font-family: -apple-system, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #334155;">
    <div style="max-width: 600px; margin: 0 auto; padding: 20px;">
        <p>Hello %s,</p>
        <p>Thank you for your query. One of our tax consultants will reply to this address within two working days.</p>
        <p style="color: #64748B;">Your reference: %s</p>
        <blockquote style="white-space: pre-wrap; border-left: 4px solid #009900; padding-left: 12px;">%s</blockquote>
    </div>
</body>
</html>`, subject, html.EscapeString(rec.FirstName), rec.Reference, html.EscapeString(deref(rec.Query)))

	return n.email.SendHTMLEmail(*rec.EmailAddress, subject, htmlBody, text)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func shortRef(ref string) string {
	if len(ref) > 8 {
		return ref[:8]
	}
	return ref
}
