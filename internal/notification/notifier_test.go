package notification

import (
	"reflect"
	"strings"
	"testing"

	"TrafficLens/internal/config"
)

func TestSplitRecipients(t *testing.T) {
	// Whitespace around addresses and stray commas are operator input
	cases := map[string][]string{
		"ops@example.com":                       {"ops@example.com"},
		" ops@example.com , oncall@example.com": {"ops@example.com", "oncall@example.com"},
		"ops@example.com,,":                     {"ops@example.com"},
		"":                                      nil,
		" , ":                                   nil,
	}
	for in, want := range cases {
		if got := splitRecipients(in); !reflect.DeepEqual(got, want) {
			t.Errorf("splitRecipients(%q): expected %v, got %v", in, want, got)
		}
	}
}

func TestBuildMessage(t *testing.T) {
	msg := string(buildMessage("alerts@example.com", []string{"a@example.com", "b@example.com"},
		"Alert Summary (2 Triggered)", "<h1>body</h1>"))

	// 1. Headers carry the joined recipient list and prefixed subject
	if !strings.Contains(msg, "To: a@example.com, b@example.com\r\n") {
		t.Errorf("Expected joined To header, got: %s", msg)
	}
	if !strings.Contains(msg, "Subject: [TrafficLens] Alert Summary (2 Triggered)\r\n") {
		t.Errorf("Expected prefixed Subject header, got: %s", msg)
	}

	// 2. HTML content type and the body after the blank line
	if !strings.Contains(msg, "Content-Type: text/html; charset=UTF-8\r\n") {
		t.Errorf("Expected HTML content type, got: %s", msg)
	}
	if !strings.HasSuffix(msg, "\r\n\r\n<h1>body</h1>") {
		t.Errorf("Expected body after blank line, got: %s", msg)
	}
}

func TestSend_NoRecipients(t *testing.T) {
	n := NewEmailNotifier(config.SMTPConfig{Host: "smtp.example.com", Port: 587})

	// Failing before dialing keeps a misconfigured alerter from hanging a cycle
	if err := n.Send("subject", "body"); err == nil {
		t.Error("Expected error when no recipients are configured, got nil")
	}
}
