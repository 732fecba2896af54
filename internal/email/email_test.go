package email

import (
	"context"
	"strings"
	"testing"
)

func TestLinks(t *testing.T) {
	if got := VerificationLink("https://voicetoon.app/", "abc"); got != "https://voicetoon.app/verify-email?token=abc" {
		t.Fatalf("unexpected verification link %q", got)
	}
	if got := PasswordResetLink("http://localhost:3000", "a b"); got != "http://localhost:3000/reset-password?token=a+b" {
		t.Fatalf("unexpected reset link %q", got)
	}
}

func TestBuildMessage(t *testing.T) {
	msg := buildMessage("no-reply@voicetoon.app", "VoiceToon", "reader@example.com", "Hello", "body\n")
	if !strings.HasPrefix(msg, "From: VoiceToon <no-reply@voicetoon.app>\r\n") {
		t.Fatalf("unexpected from header: %q", msg)
	}
	if !strings.Contains(msg, "To: reader@example.com\r\n") || !strings.Contains(msg, "Subject: Hello\r\n") {
		t.Fatalf("missing headers: %q", msg)
	}
	if !strings.HasSuffix(msg, "\r\n\r\nbody\n") {
		t.Fatalf("body not separated from headers: %q", msg)
	}

	plain := buildMessage("no-reply@voicetoon.app", "", "reader@example.com", "Hello", "body")
	if !strings.HasPrefix(plain, "From: no-reply@voicetoon.app\r\n") {
		t.Fatalf("unexpected from header without name: %q", plain)
	}
}

func TestContentIncludesLink(t *testing.T) {
	link := VerificationLink("https://voicetoon.app", "tok")
	subject, body := verificationContent("VoiceToon", "reader", link)
	if !strings.Contains(subject, "VoiceToon") || !strings.Contains(body, link) {
		t.Fatalf("verification content missing data: %q %q", subject, body)
	}

	link = PasswordResetLink("https://voicetoon.app", "tok")
	_, body = passwordResetContent("VoiceToon", "reader", link)
	if !strings.Contains(body, link) {
		t.Fatalf("reset content missing link: %q", body)
	}
}

func TestNewSMTPSenderValidation(t *testing.T) {
	if _, err := NewSMTPSender(SMTPConfig{From: "a@b.c"}); err == nil {
		t.Fatalf("expected error without host")
	}
	if _, err := NewSMTPSender(SMTPConfig{Host: "smtp.local"}); err == nil {
		t.Fatalf("expected error without from")
	}
	sender, err := NewSMTPSender(SMTPConfig{Host: "smtp.local", From: "a@b.c"})
	if err != nil {
		t.Fatalf("new sender: %v", err)
	}
	if sender.port != 587 {
		t.Fatalf("expected default port 587, got %d", sender.port)
	}
}

func TestDisabledSender(t *testing.T) {
	s := NewDisabledSender("")
	if err := s.SendVerificationEmail(context.Background(), "a@b.c", "a", "t"); err == nil {
		t.Fatalf("expected disabled sender error")
	}
	s = NewDisabledSender("smtp missing")
	if err := s.SendPasswordResetEmail(context.Background(), "a@b.c", "a", "t"); err == nil || err.Error() != "smtp missing" {
		t.Fatalf("expected configured reason, got %v", err)
	}
}
