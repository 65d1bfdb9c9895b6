package identity

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

func newTestResolver(t *testing.T, handler http.HandlerFunc) *Resolver {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewResolver(&config.IdentityConfig{BaseURL: srv.URL, APIKey: "key"}, logger)
}

func lookupResponse(fid int64, addresses []string) map[string]interface{} {
	return map[string]interface{}{
		"data": map[string]interface{}{
			"fid":                     fid,
			"userAssociatedAddresses": addresses,
		},
	}
}

func TestAddressForFIDReturnsFirstAddress(t *testing.T) {
	r := newTestResolver(t, func(w http.ResponseWriter, req *http.Request) {
		if req.URL.Path != "/user-details" {
			t.Errorf("unexpected path %s", req.URL.Path)
		}
		var body map[string]interface{}
		json.NewDecoder(req.Body).Decode(&body)
		if body["fid"] != float64(42) {
			t.Errorf("unexpected request body: %v", body)
		}
		json.NewEncoder(w).Encode(lookupResponse(42, []string{"0xfirst", "0xsecond"}))
	})

	addr, err := r.AddressForFID(context.Background(), 42)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if addr != "0xfirst" {
		t.Fatalf("expected the first associated address, got %s", addr)
	}
}

func TestAddressForFIDEmptyListFails(t *testing.T) {
	r := newTestResolver(t, func(w http.ResponseWriter, req *http.Request) {
		json.NewEncoder(w).Encode(lookupResponse(42, nil))
	})

	if _, err := r.AddressForFID(context.Background(), 42); !errors.Is(err, domain.ErrLookupFailed) {
		t.Fatalf("expected ErrLookupFailed, got %v", err)
	}
}

func TestFIDForAddress(t *testing.T) {
	r := newTestResolver(t, func(w http.ResponseWriter, req *http.Request) {
		var body map[string]interface{}
		json.NewDecoder(req.Body).Decode(&body)
		if body["identity"] != "0xabc" {
			t.Errorf("unexpected request body: %v", body)
		}
		json.NewEncoder(w).Encode(lookupResponse(7, []string{"0xabc"}))
	})

	fid, err := r.FIDForAddress(context.Background(), "0xabc")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if fid != 7 {
		t.Fatalf("fid = %d, want 7", fid)
	}
}

func TestFIDForAddressZeroFIDFails(t *testing.T) {
	r := newTestResolver(t, func(w http.ResponseWriter, req *http.Request) {
		json.NewEncoder(w).Encode(lookupResponse(0, nil))
	})

	if _, err := r.FIDForAddress(context.Background(), "0xunknown"); !errors.Is(err, domain.ErrLookupFailed) {
		t.Fatalf("expected ErrLookupFailed, got %v", err)
	}
}

func TestLookupAPIErrorSurfaces(t *testing.T) {
	r := newTestResolver(t, func(w http.ResponseWriter, req *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"error": "rate limited"})
	})

	if _, err := r.AddressForFID(context.Background(), 42); !errors.Is(err, domain.ErrLookupFailed) {
		t.Fatalf("expected ErrLookupFailed, got %v", err)
	}
}

func TestLookupNon200Fails(t *testing.T) {
	r := newTestResolver(t, func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	if _, err := r.Details(context.Background(), 42); !errors.Is(err, domain.ErrLookupFailed) {
		t.Fatalf("expected ErrLookupFailed, got %v", err)
	}
}

func TestLookupMissingBaseURL(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	r := NewResolver(&config.IdentityConfig{}, logger)

	if _, err := r.AddressForFID(context.Background(), 42); !errors.Is(err, domain.ErrConfigMissing) {
		t.Fatalf("expected ErrConfigMissing, got %v", err)
	}
}
