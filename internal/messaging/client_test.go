package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sunshinevendetta/frame/internal/config"
	"github.com/sunshinevendetta/frame/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewClientRequiresPrivateKey(t *testing.T) {
	if _, err := NewClient(&config.MessagingConfig{}, discardLogger()); !errors.Is(err, domain.ErrConfigMissing) {
		t.Fatalf("expected ErrConfigMissing, got %v", err)
	}
}

func TestNilClientShortCircuits(t *testing.T) {
	var c *Client

	if err := c.Send(context.Background(), "0xabc", "hi"); !errors.Is(err, domain.ErrConfigMissing) {
		t.Fatalf("nil send: expected ErrConfigMissing, got %v", err)
	}
	if err := c.SendFeedback(context.Background(), "great game"); !errors.Is(err, domain.ErrConfigMissing) {
		t.Fatalf("nil feedback: expected ErrConfigMissing, got %v", err)
	}
}

func TestSendDeliversMessage(t *testing.T) {
	var got sendRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.URL.Path != "/messages" {
			t.Errorf("unexpected path %s", req.URL.Path)
		}
		if req.Header.Get("X-Client-Key") != "pk" {
			t.Error("client key header missing")
		}
		json.NewDecoder(req.Body).Decode(&got)
		json.NewEncoder(w).Encode(map[string]string{})
	}))
	defer srv.Close()

	c, err := NewClient(&config.MessagingConfig{PrivateKey: "pk", BaseURL: srv.URL}, discardLogger())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	if err := c.Send(context.Background(), "0xwinner", "you won"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if got.Recipient != "0xwinner" || got.Text != "you won" {
		t.Fatalf("delivered %+v", got)
	}
}

func TestSendFeedbackUsesConfiguredRecipient(t *testing.T) {
	var got sendRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		json.NewDecoder(req.Body).Decode(&got)
		json.NewEncoder(w).Encode(map[string]string{})
	}))
	defer srv.Close()

	c, err := NewClient(&config.MessagingConfig{
		PrivateKey:       "pk",
		BaseURL:          srv.URL,
		RecipientAddress: "0xops",
	}, discardLogger())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	if err := c.SendFeedback(context.Background(), "the pipes are too close"); err != nil {
		t.Fatalf("feedback: %v", err)
	}
	if got.Recipient != "0xops" {
		t.Fatalf("feedback went to %s, want the configured recipient", got.Recipient)
	}
}

func TestSendFailureWrapsSentinel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c, err := NewClient(&config.MessagingConfig{PrivateKey: "pk", BaseURL: srv.URL}, discardLogger())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	if err := c.Send(context.Background(), "0xabc", "hi"); !errors.Is(err, domain.ErrMessagingFailed) {
		t.Fatalf("expected ErrMessagingFailed, got %v", err)
	}
}
