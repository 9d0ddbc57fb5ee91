package profile

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// Client reads seller profiles from the address/profile source. Only
// the registered pickup address is consumed here, as ETA input.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *logrus.Logger
}

func NewClient(baseURL string, logger *logrus.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
		logger: logger,
	}
}

func (c *Client) OriginAddress(ctx context.Context, sellerID string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/sellers/"+sellerID, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch seller profile: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("profile source returned status %d for seller %s", resp.StatusCode, sellerID)
	}

	var profile struct {
		SellerID      string `json:"seller_id"`
		PickupAddress string `json:"pickup_address"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return "", fmt.Errorf("failed to decode seller profile: %w", err)
	}

	c.logger.WithField("seller_id", sellerID).Debug("Retrieved seller profile")
	return profile.PickupAddress, nil
}
