package bot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/wbfreight/dispatch/internal/domain"
)

// APIClient talks to the orders service over HTTP.
type APIClient struct {
	baseURL string
	client  *http.Client
}

func NewAPIClient(baseURL string, httpClient *http.Client) *APIClient {
	return &APIClient{baseURL: baseURL, client: httpClient}
}

func (c *APIClient) ListDrivers(ctx context.Context) ([]domain.Driver, error) {
	var drivers []domain.Driver
	if err := c.get(ctx, "/drivers", &drivers); err != nil {
		return nil, err
	}
	return drivers, nil
}

func (c *APIClient) ListTrucks(ctx context.Context) ([]domain.Truck, error) {
	var trucks []domain.Truck
	if err := c.get(ctx, "/trucks", &trucks); err != nil {
		return nil, err
	}
	return trucks, nil
}

func (c *APIClient) AssignDriver(ctx context.Context, orderID string, driverID, truckID int64) error {
	payload := map[string]int64{
		"driver_id": driverID,
		"truck_id":  truckID,
	}
	return c.post(ctx, "/orders/"+orderID+"/assign", payload)
}

func (c *APIClient) RejectOrder(ctx context.Context, orderID, reason string) error {
	payload := map[string]string{}
	if reason != "" {
		payload["reason"] = reason
	}
	return c.post(ctx, "/orders/"+orderID+"/reject", payload)
}

func (c *APIClient) get(ctx context.Context, path string, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s returned status %d", path, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func (c *APIClient) post(ctx context.Context, path string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("POST %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("POST %s returned status %d: %s", path, resp.StatusCode, body)
	}
	return nil
}
