package sms

import (
	"strings"
	"testing"
)

func TestConfirmationBody(t *testing.T) {
	body := ConfirmationBody("ord-9")
	if !strings.Contains(body, "ord-9") {
		t.Fatalf("body missing order id: %q", body)
	}
	if len(body) > 160 {
		t.Fatalf("body exceeds one SMS segment: %d chars", len(body))
	}
}
