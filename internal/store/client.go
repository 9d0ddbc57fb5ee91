package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ltnguyen/shipcoord/internal/circuitbreaker"
	"github.com/ltnguyen/shipcoord/pkg/models"
	"github.com/sirupsen/logrus"
)

// Client talks to the Order/Shipment Store API. All calls take a
// context and pass through a circuit breaker; an open breaker, a
// network failure, a timeout or a 5xx all surface as
// ErrRemoteUnavailable.
type Client struct {
	baseURL    string
	httpClient *http.Client
	breaker    *circuitbreaker.Breaker
	variants   []PayloadVariant
	logger     *logrus.Logger
}

func NewClient(baseURL string, logger *logrus.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		breaker: circuitbreaker.New(circuitbreaker.Config{
			Name:        "order-shipment-store",
			MaxFailures: 5,
			Cooldown:    15 * time.Second,
		}, logger),
		variants: DefaultVariants,
		logger:   logger,
	}
}

// SetVariants replaces the ordered payload variant list.
func (c *Client) SetVariants(variants []PayloadVariant) {
	if len(variants) > 0 {
		c.variants = variants
	}
}

// do executes one HTTP attempt under the breaker. A response is only
// returned for statuses below 500 and must be closed by the caller.
func (c *Client) do(req *http.Request) (*http.Response, error) {
	var resp *http.Response
	err := c.breaker.Execute(func() error {
		r, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		if r.StatusCode >= http.StatusInternalServerError {
			io.Copy(io.Discard, r.Body)
			r.Body.Close()
			return fmt.Errorf("store returned error status: %d", r.StatusCode)
		}
		resp = r
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRemoteUnavailable, err)
	}
	return resp, nil
}

func (c *Client) GetOrder(ctx context.Context, orderID string) (*models.Order, error) {
	c.logger.WithField("order_id", orderID).Debug("Fetching order from store")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/orders/"+orderID, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("order %s: %w", orderID, ErrNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: unexpected status %d fetching order", ErrRemoteRejected, resp.StatusCode)
	}

	var order models.Order
	if err := json.NewDecoder(resp.Body).Decode(&order); err != nil {
		return nil, fmt.Errorf("failed to decode order response: %w", err)
	}
	return &order, nil
}

func (c *Client) GetOrdersBySeller(ctx context.Context, sellerID string) ([]models.Order, error) {
	c.logger.WithField("seller_id", sellerID).Debug("Fetching seller orders from store")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/sellers/"+sellerID+"/orders", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: unexpected status %d fetching seller orders", ErrRemoteRejected, resp.StatusCode)
	}

	var response struct {
		Success bool           `json:"success"`
		Orders  []models.Order `json:"orders"`
		Count   int            `json:"count"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode seller orders response: %w", err)
	}

	c.logger.WithFields(logrus.Fields{
		"seller_id": sellerID,
		"count":     response.Count,
	}).Debug("Retrieved seller orders from store")
	return response.Orders, nil
}

// GetShipment returns (nil, nil) when the order has no shipment
// record yet; records are created lazily on the first status change.
func (c *Client) GetShipment(ctx context.Context, orderID string) (*models.ShipmentRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/orders/"+orderID+"/shipment", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: unexpected status %d fetching shipment", ErrRemoteRejected, resp.StatusCode)
	}

	var rec models.ShipmentRecord
	if err := json.NewDecoder(resp.Body).Decode(&rec); err != nil {
		return nil, fmt.Errorf("failed to decode shipment response: %w", err)
	}
	return &rec, nil
}

// SaveShipment persists the shipment mutation, trying each payload
// variant in order. The first 2xx wins. A 4xx moves on to the next
// variant; a 5xx, timeout or network failure aborts immediately
// without trying the rest. Exhausting the list is ErrRemoteRejected.
func (c *Client) SaveShipment(ctx context.Context, rec *models.ShipmentRecord) error {
	url := c.baseURL + "/orders/" + rec.OrderID + "/shipment"

	for _, variant := range c.variants {
		body, err := variant.Encode(rec)
		if err != nil {
			return fmt.Errorf("failed to encode shipment payload: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewBuffer(body))
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.do(req)
		if err != nil {
			return err
		}
		status := resp.StatusCode
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		if status >= 200 && status < 300 {
			c.logger.WithFields(logrus.Fields{
				"order_id":   rec.OrderID,
				"status_key": variant.StatusKey,
			}).Info("Shipment persisted to store")
			return nil
		}

		c.logger.WithFields(logrus.Fields{
			"order_id":    rec.OrderID,
			"status_key":  variant.StatusKey,
			"http_status": status,
		}).Warn("Store rejected shipment payload variant, trying next")
	}

	return fmt.Errorf("%w: all %d payload variants refused", ErrRemoteRejected, len(c.variants))
}

// PutItemStatus persists the per-item fulfillment status.
func (c *Client) PutItemStatus(ctx context.Context, item models.ItemStatus) error {
	body, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("failed to marshal item status: %w", err)
	}

	url := c.baseURL + "/orders/" + item.OrderID + "/items/" + item.ProductID + "/status"
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: item status refused with %d", ErrRemoteRejected, resp.StatusCode)
	}

	c.logger.WithFields(logrus.Fields{
		"order_id":   item.OrderID,
		"product_id": item.ProductID,
		"status":     item.Status,
	}).Info("Item status persisted to store")
	return nil
}
