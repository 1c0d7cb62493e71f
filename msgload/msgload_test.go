package msgload_test

import (
	"strings"
	"testing"

	"github.com/sievebox/sievecore/msgload"
)

func TestFromReaderUsesMessageIDHeaderWhenPresent(t *testing.T) {
	raw := "Message-Id: <abc@host>\r\nFrom: alice@example.com\r\nTo: bob@example.com\r\nSubject: hi\r\n\r\nbody\r\n"
	msg, err := msgload.FromReader(strings.NewReader(raw), "fallback-id")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if msg.ID != "<abc@host>" {
		t.Fatalf("ID = %q, want the Message-Id header", msg.ID)
	}
	if msg.Envelope.From != "alice@example.com" {
		t.Fatalf("From = %q", msg.Envelope.From)
	}
	if msg.Envelope.To != "bob@example.com" {
		t.Fatalf("To = %q", msg.Envelope.To)
	}
	if msg.Size != len(raw) {
		t.Fatalf("Size = %d, want %d", msg.Size, len(raw))
	}
}

func TestFromReaderFallsBackToProvidedID(t *testing.T) {
	raw := "From: alice@example.com\r\nTo: bob@example.com\r\n\r\nbody\r\n"
	msg, err := msgload.FromReader(strings.NewReader(raw), "fallback-id")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if msg.ID != "fallback-id" {
		t.Fatalf("ID = %q, want the fallback id", msg.ID)
	}
}

func TestFromReaderAddressWithDisplayName(t *testing.T) {
	raw := "From: \"Alice A\" <alice@example.com>\r\nTo: bob@example.com\r\n\r\nbody\r\n"
	msg, err := msgload.FromReader(strings.NewReader(raw), "fallback-id")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if msg.Envelope.From != "alice@example.com" {
		t.Fatalf("From = %q, want the bare address with the display name stripped", msg.Envelope.From)
	}
}

func TestFromReaderPreservesHeaders(t *testing.T) {
	raw := "Subject: hi\r\nX-Custom: one\r\nX-Custom: two\r\n\r\nbody\r\n"
	msg, err := msgload.FromReader(strings.NewReader(raw), "fallback-id")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got := msg.Headers["X-Custom"]; len(got) != 2 || got[0] != "one" || got[1] != "two" {
		t.Fatalf("Headers[X-Custom] = %v, want [one two]", got)
	}
}

func TestFromReaderRejectsMalformedMessage(t *testing.T) {
	if _, err := msgload.FromReader(strings.NewReader("not a valid rfc822 message at all with no colon"), "id"); err == nil {
		t.Fatal("expected an error parsing a malformed message")
	}
}
