package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/paygrid/intent-service/internal/domain"
	"github.com/paygrid/intent-service/internal/logging"
)

// GatewayClient talks to the external payment gateway over HTTP. Its error
// classification feeds the retry policy: connectivity faults and 5xx
// responses are transient, a 422 is a business decline (accepted=false, no
// error) and anything else is a permanent fault.
type GatewayClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewGatewayClient(baseURL string, timeout time.Duration) *GatewayClient {
	return &GatewayClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type gatewayPayload struct {
	IntentID string `json:"intent_id"`
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}

func (c *GatewayClient) Process(ctx context.Context, intent *domain.PaymentIntent) (bool, error) {
	log := logging.FromContext(ctx)

	payload := gatewayPayload{
		IntentID: intent.ID.String(),
		Amount:   intent.Amount.String(),
		Currency: string(intent.Currency),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return false, fmt.Errorf("Process: marshal: %w", err)
	}

	url := c.baseURL + "/process"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return false, fmt.Errorf("Process: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	log.Info("gateway request sent", "intent_id", intent.ID)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return false, fmt.Errorf("Process: send: %w", err)
	}
	defer resp.Body.Close()

	log.Info("gateway response received",
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	switch {
	case resp.StatusCode == http.StatusAccepted:
		return true, nil
	case resp.StatusCode == http.StatusUnprocessableEntity:
		return false, nil
	case resp.StatusCode >= 500:
		return false, fmt.Errorf("Process: status %d: %w", resp.StatusCode, domain.ErrGatewayUnavailable)
	default:
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return false, fmt.Errorf("Process: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}
}
