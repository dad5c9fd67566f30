// Package notification delivers alert summaries from the collection pipeline
// to operators.
package notification

import (
	"fmt"
	"net/smtp"
	"strings"

	"TrafficLens/internal/config"
	"TrafficLens/internal/model"
)

// subjectPrefix tags every outgoing alert so inbox rules can route on it.
const subjectPrefix = "[TrafficLens] "

// EmailNotifier implements the Notifier interface over an SMTP relay.
type EmailNotifier struct {
	cfg  config.SMTPConfig
	auth smtp.Auth
}

// NewEmailNotifier creates a notifier for the configured relay.
func NewEmailNotifier(cfg config.SMTPConfig) model.Notifier {
	// PlainAuth will not send credentials until the server identifies itself as a trusted one.
	auth := smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	return &EmailNotifier{cfg: cfg, auth: auth}
}

// splitRecipients parses the comma-separated recipient list, trimming
// whitespace and dropping empty entries.
func splitRecipients(to string) []string {
	var recipients []string
	for _, r := range strings.Split(to, ",") {
		if r = strings.TrimSpace(r); r != "" {
			recipients = append(recipients, r)
		}
	}
	return recipients
}

// buildMessage assembles the raw message with an HTML body, as the alerter
// produces HTML summaries.
func buildMessage(from string, recipients []string, subject, body string) []byte {
	return []byte("To: " + strings.Join(recipients, ", ") + "\r\n" +
		"From: " + from + "\r\n" +
		"Subject: " + subjectPrefix + subject + "\r\n" +
		"Content-Type: text/html; charset=UTF-8\r\n" +
		"\r\n" +
		body)
}

// Send delivers one alert to the configured recipients.
func (n *EmailNotifier) Send(subject, body string) error {
	recipients := splitRecipients(n.cfg.To)
	if len(recipients) == 0 {
		return fmt.Errorf("no alert recipients configured")
	}

	addr := fmt.Sprintf("%s:%d", n.cfg.Host, n.cfg.Port)
	msg := buildMessage(n.cfg.From, recipients, subject, body)

	if err := smtp.SendMail(addr, n.auth, n.cfg.From, recipients, msg); err != nil {
		return fmt.Errorf("failed to send alert email: %w", err)
	}
	return nil
}
