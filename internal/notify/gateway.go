package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/wbfreight/dispatch/internal/domain"
)

// Gateway is an HTTP client for the notification service's /notify
// endpoint. It is used when order events go straight to the notifier
// instead of through the broker.
type Gateway struct {
	baseURL string
	client  *http.Client
}

func NewGateway(baseURL string, client *http.Client) *Gateway {
	return &Gateway{
		baseURL: baseURL,
		client:  client,
	}
}

func (g *Gateway) Notify(ctx context.Context, event domain.OrderEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal order event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/notify", bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("create notify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("send notify request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("notification gateway returned status %d", resp.StatusCode)
	}

	return nil
}
