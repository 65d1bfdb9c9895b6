package payment

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

// Client talks to the wallet/payment collaborator: credit purchases during a
// session and the bounty payout at each window reset.
type Client struct {
	cfg    *config.PaymentConfig
	client *http.Client
	logger *slog.Logger
}

// NewClient creates a new payment client
func NewClient(cfg *config.PaymentConfig, logger *slog.Logger) *Client {
	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

type purchaseRequest struct {
	Address string  `json:"address"`
	Amount  float64 `json:"amount"`
}

type purchaseResponse struct {
	Data struct {
		Credits int `json:"credits"`
	} `json:"data"`
	Error string `json:"error,omitempty"`
}

// PurchaseCredits charges the fixed credit price against the address and
// returns the number of credits granted. Any failure is ErrPurchaseFailed;
// the caller leaves balances untouched.
func (c *Client) PurchaseCredits(ctx context.Context, address string) (int, error) {
	var out purchaseResponse
	err := c.post(ctx, "/buy-credits", purchaseRequest{Address: address, Amount: c.cfg.CreditPrice}, &out)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", domain.ErrPurchaseFailed, err)
	}
	if out.Error != "" {
		return 0, fmt.Errorf("%w: %s", domain.ErrPurchaseFailed, out.Error)
	}
	if out.Data.Credits <= 0 {
		return 0, fmt.Errorf("%w: collaborator granted no credits", domain.ErrPurchaseFailed)
	}
	return out.Data.Credits, nil
}

type payoutRequest struct {
	Address string  `json:"address"`
	Amount  float64 `json:"amount"`
	Memo    string  `json:"memo,omitempty"`
}

type payoutResponse struct {
	Data struct {
		TxID string `json:"tx_id"`
	} `json:"data"`
	Error string `json:"error,omitempty"`
}

// SendBounty pays the window bounty to the winner's address.
func (c *Client) SendBounty(ctx context.Context, address string, amount float64, memo string) error {
	var out payoutResponse
	err := c.post(ctx, "/payout", payoutRequest{Address: address, Amount: amount, Memo: memo}, &out)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrPurchaseFailed, err)
	}
	if out.Error != "" {
		return fmt.Errorf("%w: %s", domain.ErrPurchaseFailed, out.Error)
	}
	c.logger.Info("bounty sent", "address", address, "amount", amount, "tx_id", out.Data.TxID)
	return nil
}

func (c *Client) post(ctx context.Context, path string, reqBody, respBody interface{}) error {
	if c.cfg.BaseURL == "" {
		return fmt.Errorf("payment base_url: %w", domain.ErrConfigMissing)
	}

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
		return fmt.Errorf("calling payment api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("payment api returned status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(respBody); err != nil {
		return fmt.Errorf("decoding payment response: %w", err)
	}
	return nil
}
