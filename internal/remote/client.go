// Package remote talks to the upstream marketplace API.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"market-delivery/internal/domain"
)

type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// New builds a client for baseURL. token, when set, is sent as a bearer token.
func New(baseURL, token string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), token: token, http: httpClient}
}

type tariffPayload struct {
	BaseFee float64 `json:"baseFee"`
	PerKm   float64 `json:"perKm"`
	MinFee  float64 `json:"minFee"`
	MaxFee  float64 `json:"maxFee"`
}

type configResponse struct {
	Success bool           `json:"success"`
	Config  *tariffPayload `json:"config"`
}

type calculateDeliveryRequest struct {
	BusinessLat float64 `json:"businessLat"`
	BusinessLng float64 `json:"businessLng"`
	DeliveryLat float64 `json:"deliveryLat"`
	DeliveryLng float64 `json:"deliveryLng"`
}

type calculateDeliveryResponse struct {
	Success     bool     `json:"success"`
	DeliveryFee *float64 `json:"deliveryFee"`
}

type ackResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// FetchTariff reads GET /api/delivery/config. Fees are plain currency units.
func (c *Client) FetchTariff(ctx context.Context) (domain.Tariff, error) {
	var resp configResponse
	if err := c.do(ctx, http.MethodGet, "/api/delivery/config", nil, &resp); err != nil {
		return domain.Tariff{}, err
	}
	if !resp.Success || resp.Config == nil {
		return domain.Tariff{}, fmt.Errorf("delivery config: %w", domain.ErrUpstream)
	}
	return domain.Tariff{
		BaseFee: resp.Config.BaseFee,
		PerKm:   resp.Config.PerKm,
		MinFee:  resp.Config.MinFee,
		MaxFee:  resp.Config.MaxFee,
	}, nil
}

// QuoteDeliveryFee calls POST /api/orders/calculate-delivery. The upstream
// answers in cents; the result is in currency units.
func (c *Client) QuoteDeliveryFee(ctx context.Context, business, delivery domain.Location) (float64, error) {
	body := calculateDeliveryRequest{
		BusinessLat: business.Lat,
		BusinessLng: business.Lng,
		DeliveryLat: delivery.Lat,
		DeliveryLng: delivery.Lng,
	}
	var resp calculateDeliveryResponse
	if err := c.do(ctx, http.MethodPost, "/api/orders/calculate-delivery", body, &resp); err != nil {
		return 0, err
	}
	if !resp.Success || resp.DeliveryFee == nil {
		return 0, fmt.Errorf("calculate delivery: %w", domain.ErrUpstream)
	}
	return *resp.DeliveryFee / 100, nil
}

func (c *Client) ConfirmOrder(ctx context.Context, orderID string) error {
	return c.ack(ctx, "/api/orders/"+url.PathEscape(orderID)+"/confirm")
}

func (c *Client) CancelOrder(ctx context.Context, orderID string) error {
	return c.ack(ctx, "/api/orders/"+url.PathEscape(orderID)+"/cancel")
}

func (c *Client) ack(ctx context.Context, path string) error {
	var resp ackResponse
	if err := c.do(ctx, http.MethodPost, path, struct{}{}, &resp); err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("%s: %s: %w", path, resp.Message, domain.ErrUpstream)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %v: %w", method, path, err, domain.ErrUpstream)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("%s %s: status %d: %s: %w", method, path, resp.StatusCode, strings.TrimSpace(string(b)), domain.ErrUpstream)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s %s: decode: %v: %w", method, path, err, domain.ErrUpstream)
	}
	return nil
}
