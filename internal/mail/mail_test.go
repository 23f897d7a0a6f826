// internal/mail/mail_test.go
package mail

import (
	"context"
	"strings"
	"testing"

	"github.com/davem/wrenchd/internal/shop"
)

func TestMessageValidate(t *testing.T) {
	cases := []struct {
		name string
		msg  Message
		ok   bool
	}{
		{"complete", Message{To: "a@b.mx", Subject: "s", BodyText: "b"}, true},
		{"html only", Message{To: "a@b.mx", Subject: "s", BodyHTML: "<p>b</p>"}, true},
		{"missing to", Message{Subject: "s", BodyText: "b"}, false},
		{"missing subject", Message{To: "a@b.mx", BodyText: "b"}, false},
		{"missing body", Message{To: "a@b.mx", Subject: "s"}, false},
	}
	for _, tc := range cases {
		err := tc.msg.Validate()
		if tc.ok && err != nil {
			t.Errorf("%s: unexpected error: %v", tc.name, err)
		}
		if !tc.ok && err == nil {
			t.Errorf("%s: expected error", tc.name)
		}
	}
}

func TestNewMailerModes(t *testing.T) {
	if _, err := NewMailer(&Config{Mode: ModeLog}); err != nil {
		t.Fatalf("log mode: %v", err)
	}
	if _, err := NewMailer(&Config{}); err != nil {
		t.Fatalf("empty mode defaults to log: %v", err)
	}
	if _, err := NewMailer(&Config{Mode: ModeMemory}); err != nil {
		t.Fatalf("memory mode: %v", err)
	}
	if _, err := NewMailer(&Config{Mode: ModeSMTP}); err == nil {
		t.Fatal("smtp mode without config should fail")
	}
	if _, err := NewMailer(&Config{Mode: "pigeon"}); err == nil {
		t.Fatal("unknown mode should fail")
	}
}

func TestRenderOrderReady(t *testing.T) {
	subject, html, text, err := Render(TypeOrderReady, TemplateData{
		ClientName: "Ana",
		Vehicle:    "Nissan Versa",
		Plate:      "ABC-123",
		Total:      1250.5,
		ShopName:   "Taller García",
	})
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	if !strings.Contains(subject, "ABC-123") {
		t.Errorf("subject missing plate: %q", subject)
	}
	if !strings.Contains(html, "Nissan Versa") || !strings.Contains(text, "Nissan Versa") {
		t.Error("bodies missing vehicle")
	}
	if !strings.Contains(text, "$1250.50") {
		t.Errorf("text missing formatted total: %q", text)
	}
}

func TestRenderUnknownType(t *testing.T) {
	if _, _, _, err := Render("bogus", TemplateData{}); err == nil {
		t.Fatal("expected error for unknown template type")
	}
}

func TestEmailServiceSendsThroughMailer(t *testing.T) {
	mailer := NewMemoryMailer()
	svc := NewEmailService(mailer, &Config{From: "taller@garcia.mx", ShopName: "Taller García"})

	client := &shop.Client{ID: "c1", Name: "Ana", Email: "ana@taller.mx"}
	vehicle := &shop.Vehicle{Make: "Nissan", Model: "Versa", Plate: "ABC-123"}
	order := &shop.ServiceOrder{ID: "o1", Total: 900}

	if err := svc.SendOrderReady(context.Background(), client, vehicle, order); err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if err := svc.SendOrderDelivered(context.Background(), client, vehicle, order); err != nil {
		t.Fatalf("send failed: %v", err)
	}

	caught := mailer.List()
	if len(caught) != 2 {
		t.Fatalf("expected 2 caught emails, got %d", len(caught))
	}
	if caught[0].Type != TypeOrderReady || caught[1].Type != TypeOrderDelivered {
		t.Errorf("unexpected types: %s, %s", caught[0].Type, caught[1].Type)
	}
	if caught[0].To != "ana@taller.mx" || caught[0].From != "taller@garcia.mx" {
		t.Errorf("unexpected addressing: to=%s from=%s", caught[0].To, caught[0].From)
	}
}

func TestEmailServiceRequiresAddress(t *testing.T) {
	svc := NewEmailService(NewMemoryMailer(), &Config{From: "taller@garcia.mx"})
	client := &shop.Client{ID: "c1", Name: "Ana"}
	err := svc.SendOrderReady(context.Background(), client, &shop.Vehicle{}, &shop.ServiceOrder{})
	if err == nil {
		t.Fatal("expected error for client without email")
	}
}

func TestSMTPBuildMessage(t *testing.T) {
	m := NewSMTPMailer(SMTPConfig{Host: "smtp.test", Port: 587, User: "u", Pass: "p"})
	body := string(m.buildMessage(&Message{
		To: "a@b.mx", From: "c@d.mx", Subject: "Orden lista",
		BodyHTML: "<p>hola</p>", BodyText: "hola",
	}))
	for _, want := range []string{
		"From: c@d.mx", "To: a@b.mx", "Subject: Orden lista",
		"multipart/alternative", "text/plain", "text/html",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("message missing %q", want)
		}
	}
}
