package entitlement

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

// Checker answers the two entitlement questions the game asks: does this
// identity hold the gating NFT, and has this address already recast the
// promo frame.
type Checker struct {
	cfg    *config.EntitlementConfig
	client *http.Client
	logger *slog.Logger
}

// NewChecker creates a new entitlement checker
func NewChecker(cfg *config.EntitlementConfig, logger *slog.Logger) *Checker {
	return &Checker{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

type ownershipRequest struct {
	FID   int64        `json:"fid"`
	Token []chainToken `json:"token"`
}

type chainToken struct {
	Chain        string `json:"chain"`
	TokenAddress string `json:"tokenAddress"`
}

type ownershipResponse struct {
	Data []struct {
		Chain  string `json:"chain"`
		IsHold bool   `json:"isHold"`
	} `json:"data"`
	Error string `json:"error,omitempty"`
}

// HasRequiredAsset reports whether the identity owns the gating asset on any
// chain in the configured set. Ownership denial must never block play, so
// every failure path fails closed: collaborator errors return false, not an
// error.
func (c *Checker) HasRequiredAsset(ctx context.Context, fid int64) bool {
	if c.cfg.BaseURL == "" || c.cfg.ContractAddress == "" {
		c.logger.Warn("entitlement not configured, denying stipend")
		return false
	}

	tokens := make([]chainToken, len(c.cfg.Chains))
	for i, chain := range c.cfg.Chains {
		tokens[i] = chainToken{Chain: chain, TokenAddress: c.cfg.ContractAddress}
	}

	var out ownershipResponse
	if err := c.post(ctx, "/check-ownership", ownershipRequest{FID: fid, Token: tokens}, &out); err != nil {
		c.logger.Warn("ownership check failed, denying stipend", "fid", fid, "error", err)
		return false
	}
	if out.Error != "" {
		c.logger.Warn("ownership check returned error, denying stipend", "fid", fid, "error", out.Error)
		return false
	}

	for _, result := range out.Data {
		if result.IsHold {
			return true
		}
	}
	return false
}

type recastRequest struct {
	Address   string `json:"address"`
	HasRecast bool   `json:"has_recast,omitempty"`
}

type recastResponse struct {
	Data struct {
		HasRecast bool `json:"hasRecast"`
	} `json:"data"`
	Error string `json:"error,omitempty"`
}

// HasRecasted reports whether the address already performed the promo recast.
// Unlike the ownership gate this returns errors: the caller must distinguish
// "not recast" from "could not tell", or a transient outage would grant a
// second life.
func (c *Checker) HasRecasted(ctx context.Context, address string) (bool, error) {
	var out recastResponse
	if err := c.post(ctx, "/recast-status", recastRequest{Address: address}, &out); err != nil {
		return false, err
	}
	if out.Error != "" {
		return false, fmt.Errorf("recast status error %q: %w", out.Error, domain.ErrLookupFailed)
	}
	return out.Data.HasRecast, nil
}

// SetRecasted marks the address as having recast, fulfilling the one-time
// bonus grant.
func (c *Checker) SetRecasted(ctx context.Context, address string) error {
	var out recastResponse
	if err := c.post(ctx, "/recast-update", recastRequest{Address: address, HasRecast: true}, &out); err != nil {
		return err
	}
	if out.Error != "" {
		return fmt.Errorf("recast update error %q: %w", out.Error, domain.ErrLookupFailed)
	}
	return nil
}

func (c *Checker) post(ctx context.Context, path string, reqBody, respBody interface{}) error {
	body, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", c.cfg.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("calling entitlement api: %w: %w", domain.ErrLookupFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("entitlement api returned status %d: %w", resp.StatusCode, domain.ErrLookupFailed)
	}

	if err := json.NewDecoder(resp.Body).Decode(respBody); err != nil {
		return fmt.Errorf("decoding entitlement response: %w: %w", domain.ErrLookupFailed, err)
	}
	return nil
}
