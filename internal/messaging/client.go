package messaging

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

// Client sends direct messages over the decentralized messaging network. It
// is used for two things: forwarding player feedback to the configured
// recipient and notifying the daily winner.
type Client struct {
	cfg    *config.MessagingConfig
	client *http.Client
	logger *slog.Logger
}

// NewClient creates a messaging client. The private key is required: without
// it the client cannot authenticate to the network, so construction fails
// with ErrConfigMissing and the composition root wires a nil client, which
// short-circuits every send.
func NewClient(cfg *config.MessagingConfig, logger *slog.Logger) (*Client, error) {
	if cfg.PrivateKey == "" {
		return nil, fmt.Errorf("messaging private_key: %w", domain.ErrConfigMissing)
	}
	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}, nil
}

type sendRequest struct {
	Recipient string `json:"recipient"`
	Text      string `json:"text"`
}

type sendResponse struct {
	Error string `json:"error,omitempty"`
}

// Send delivers a message to the recipient address.
func (c *Client) Send(ctx context.Context, recipient, text string) error {
	if c == nil {
		return fmt.Errorf("messaging client not initialized: %w", domain.ErrConfigMissing)
	}
	if recipient == "" {
		return fmt.Errorf("messaging recipient: %w", domain.ErrConfigMissing)
	}

	body, err := json.Marshal(sendRequest{Recipient: recipient, Text: text})
	if err != nil {
		return fmt.Errorf("marshaling message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/messages", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building message request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Client-Key", c.cfg.PrivateKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrMessagingFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: messaging api returned status %d", domain.ErrMessagingFailed, resp.StatusCode)
	}

	var out sendResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return fmt.Errorf("%w: decoding response: %w", domain.ErrMessagingFailed, err)
	}
	if out.Error != "" {
		return fmt.Errorf("%w: %s", domain.ErrMessagingFailed, out.Error)
	}
	return nil
}

// SendFeedback forwards player feedback to the configured recipient address.
// No retry: a failed feedback send is reported and dropped.
func (c *Client) SendFeedback(ctx context.Context, feedback string) error {
	if c == nil {
		return fmt.Errorf("messaging client not initialized: %w", domain.ErrConfigMissing)
	}
	return c.Send(ctx, c.cfg.RecipientAddress, feedback)
}
