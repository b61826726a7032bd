package email

import (
	"strings"
	"testing"
)

func TestConfirmation(t *testing.T) {
	c := Confirmation{OrderID: "ord-1", TotalAmount: 2550}

	if c.Subject() != "Order confirmation" {
		t.Fatalf("subject = %q", c.Subject())
	}
	body := c.Body()
	if !strings.Contains(body, "ord-1") {
		t.Fatalf("body missing order id: %q", body)
	}
	if !strings.Contains(body, "25.50") {
		t.Fatalf("body missing formatted total: %q", body)
	}
}

func TestFormatAmount(t *testing.T) {
	cases := []struct {
		minor int64
		want  string
	}{
		{0, "0.00"},
		{5, "0.05"},
		{2550, "25.50"},
		{100000, "1000.00"},
		{-150, "-1.50"},
	}
	for _, tc := range cases {
		if got := FormatAmount(tc.minor); got != tc.want {
			t.Fatalf("FormatAmount(%d) = %q, want %q", tc.minor, got, tc.want)
		}
	}
}

func TestBuildMessage(t *testing.T) {
	msg := buildMessage("from@x", "to@y", "Hi", "Body")
	if !strings.HasPrefix(msg, "From: from@x\r\n") {
		t.Fatalf("message = %q", msg)
	}
	if !strings.Contains(msg, "\r\n\r\nBody\r\n") {
		t.Fatalf("body not separated by blank line: %q", msg)
	}
}
