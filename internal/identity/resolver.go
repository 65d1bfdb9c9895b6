package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/sunshinevendetta/frame/internal/config"
	"github.com/sunshinevendetta/frame/internal/domain"
)

// Resolver maps wallet addresses to social-graph identities (FIDs) and back
// through the lookup API. All methods are read-only; failures surface as
// domain.ErrLookupFailed so callers can branch without unwinding the game.
type Resolver struct {
	cfg    *config.IdentityConfig
	client *http.Client
	logger *slog.Logger
}

// NewResolver creates a new identity resolver
func NewResolver(cfg *config.IdentityConfig, logger *slog.Logger) *Resolver {
	return &Resolver{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

// userDetailsRequest is the lookup API request body. Exactly one of FID or
// Identity is set per call.
type userDetailsRequest struct {
	FID      int64  `json:"fid,omitempty"`
	Identity string `json:"identity,omitempty"`
}

type userDetailsResponse struct {
	Data struct {
		FID                 int64    `json:"fid"`
		AssociatedAddresses []string `json:"userAssociatedAddresses"`
	} `json:"data"`
	Error string `json:"error,omitempty"`
}

// Details fetches the full identity record for a FID.
func (r *Resolver) Details(ctx context.Context, fid int64) (*domain.IdentityRecord, error) {
	resp, err := r.lookup(ctx, userDetailsRequest{FID: fid})
	if err != nil {
		return nil, err
	}
	return &domain.IdentityRecord{
		FID:       resp.Data.FID,
		Addresses: resp.Data.AssociatedAddresses,
	}, nil
}

// AddressForFID returns the first associated address for a FID. An empty
// address list is a lookup failure, not a valid empty result.
func (r *Resolver) AddressForFID(ctx context.Context, fid int64) (string, error) {
	resp, err := r.lookup(ctx, userDetailsRequest{FID: fid})
	if err != nil {
		return "", err
	}
	if len(resp.Data.AssociatedAddresses) == 0 {
		return "", fmt.Errorf("fid %d has no associated addresses: %w", fid, domain.ErrLookupFailed)
	}
	return resp.Data.AssociatedAddresses[0], nil
}

// FIDForAddress returns the FID associated with a wallet address.
func (r *Resolver) FIDForAddress(ctx context.Context, address string) (int64, error) {
	resp, err := r.lookup(ctx, userDetailsRequest{Identity: address})
	if err != nil {
		return 0, err
	}
	if resp.Data.FID == 0 {
		return 0, fmt.Errorf("no fid for address %s: %w", address, domain.ErrLookupFailed)
	}
	return resp.Data.FID, nil
}

// FIDForName returns the FID for a player name (farcaster handle).
func (r *Resolver) FIDForName(ctx context.Context, name string) (int64, error) {
	return r.FIDForAddress(ctx, name)
}

func (r *Resolver) lookup(ctx context.Context, reqBody userDetailsRequest) (*userDetailsResponse, error) {
	if r.cfg.BaseURL == "" {
		return nil, fmt.Errorf("identity base_url: %w", domain.ErrConfigMissing)
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshaling lookup request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.cfg.BaseURL+"/user-details", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building lookup request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", r.cfg.APIKey)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling lookup api: %w: %w", domain.ErrLookupFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("lookup api returned status %d: %w", resp.StatusCode, domain.ErrLookupFailed)
	}

	var out userDetailsResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding lookup response: %w: %w", domain.ErrLookupFailed, err)
	}
	if out.Error != "" {
		return nil, fmt.Errorf("lookup api error %q: %w", out.Error, domain.ErrLookupFailed)
	}

	return &out, nil
}
