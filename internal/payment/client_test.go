package payment

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

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewClient(&config.PaymentConfig{BaseURL: srv.URL, CreditPrice: 0.001}, logger)
}

func TestPurchaseCreditsChargesFixedPrice(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, req *http.Request) {
		if req.URL.Path != "/buy-credits" {
			t.Errorf("unexpected path %s", req.URL.Path)
		}
		var body purchaseRequest
		json.NewDecoder(req.Body).Decode(&body)
		if body.Amount != 0.001 {
			t.Errorf("amount = %f, want the configured credit price", body.Amount)
		}
		if body.Address != "0xabc" {
			t.Errorf("address = %s", body.Address)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": map[string]int{"credits": 3},
		})
	})

	credits, err := c.PurchaseCredits(context.Background(), "0xabc")
	if err != nil {
		t.Fatalf("purchase: %v", err)
	}
	if credits != 3 {
		t.Fatalf("credits = %d, want 3", credits)
	}
}

func TestPurchaseCreditsFailureWrapsSentinel(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, req *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"error": "insufficient funds"})
	})

	if _, err := c.PurchaseCredits(context.Background(), "0xabc"); !errors.Is(err, domain.ErrPurchaseFailed) {
		t.Fatalf("expected ErrPurchaseFailed, got %v", err)
	}
}

func TestPurchaseCreditsZeroGrantFails(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, req *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": map[string]int{"credits": 0},
		})
	})

	if _, err := c.PurchaseCredits(context.Background(), "0xabc"); !errors.Is(err, domain.ErrPurchaseFailed) {
		t.Fatalf("expected ErrPurchaseFailed on a zero grant, got %v", err)
	}
}

func TestSendBounty(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, req *http.Request) {
		if req.URL.Path != "/payout" {
			t.Errorf("unexpected path %s", req.URL.Path)
		}
		var body payoutRequest
		json.NewDecoder(req.Body).Decode(&body)
		if body.Amount != 0.01 || body.Address != "0xwinner" {
			t.Errorf("unexpected payout %+v", body)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": map[string]string{"tx_id": "0xdeadbeef"},
		})
	})

	if err := c.SendBounty(context.Background(), "0xwinner", 0.01, "daily bounty"); err != nil {
		t.Fatalf("payout: %v", err)
	}
}

func TestSendBountyServerFailure(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	if err := c.SendBounty(context.Background(), "0xwinner", 0.01, "daily bounty"); err == nil {
		t.Fatal("expected an error on payout failure")
	}
}

func TestUnconfiguredClientFails(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	c := NewClient(&config.PaymentConfig{}, logger)

	if _, err := c.PurchaseCredits(context.Background(), "0xabc"); !errors.Is(err, domain.ErrConfigMissing) {
		t.Fatalf("expected ErrConfigMissing, got %v", err)
	}
}
