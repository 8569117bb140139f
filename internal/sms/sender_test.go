package sms

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestWebhookSender_Send(t *testing.T) {
	var got map[string]string
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	s := NewWebhookSender(srv.URL, "tok-1")
	if err := s.Send(context.Background(), "+15550100", "Reminder: Bella at 09:35"); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if got["to"] != "+15550100" || got["body"] != "Reminder: Bella at 09:35" {
		t.Fatalf("unexpected payload %v", got)
	}
	if auth != "Bearer tok-1" {
		t.Fatalf("expected bearer token, got %q", auth)
	}
}

func TestWebhookSender_Non2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	s := NewWebhookSender(srv.URL, "")
	if err := s.Send(context.Background(), "+15550100", "x"); err == nil {
		t.Fatal("expected error on non-2xx response")
	}
}

func TestWebhookSender_MissingURL(t *testing.T) {
	s := NewWebhookSender("  ", "")
	if err := s.Send(context.Background(), "+15550100", "x"); err == nil {
		t.Fatal("expected error when url is not configured")
	}
}
