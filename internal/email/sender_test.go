package email

import (
	"context"
	"net"
	"strings"
	"testing"
	"time"
)

func TestBuildMessage(t *testing.T) {
	msg := buildMessage("clinic@whiskerwell.local", "owner@example.com", "Appointment reminder", "Bella is due at 09:35 <soon>")

	for _, want := range []string{
		"From: clinic@whiskerwell.local\r\n",
		"To: owner@example.com\r\n",
		"Subject: Appointment reminder\r\n",
		"Content-Type: multipart/alternative",
		"Content-Type: text/plain; charset=utf-8",
		"Content-Type: text/html; charset=utf-8",
		"Bella is due at 09:35 <soon>",
	} {
		if !strings.Contains(msg, want) {
			t.Fatalf("message missing %q:\n%s", want, msg)
		}
	}
	if !strings.Contains(msg, "&lt;soon&gt;") {
		t.Fatal("html part must escape the body")
	}
	if !strings.HasSuffix(msg, "--"+boundary+"--\r\n") {
		t.Fatal("message must close the multipart boundary")
	}
}

func TestSMTPSenderDefaultFrom(t *testing.T) {
	s := NewSMTPSender("localhost", "1025", "  ")
	if s.from != "no-reply@whiskerwell.local" {
		t.Fatalf("expected default from, got %q", s.from)
	}
	if s.addr != "localhost:1025" {
		t.Fatalf("expected localhost:1025, got %q", s.addr)
	}
}

func TestSendDeadlineOnSilentServer(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	// Accept the connection but never speak SMTP; the client must not
	// hang past its deadline.
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		time.Sleep(5 * time.Second)
	}()

	host, port, err := net.SplitHostPort(ln.Addr().String())
	if err != nil {
		t.Fatalf("split addr: %v", err)
	}
	s := NewSMTPSender(host, port, "clinic@whiskerwell.local")

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	if err := s.Send(ctx, "owner@example.com", "subject", "body"); err == nil {
		t.Fatal("send against a silent server must fail")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("send blocked %v past its deadline", elapsed)
	}
}
