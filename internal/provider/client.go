// Package provider submits data bundle deliveries to the upstream fulfillment API.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/zjoart/go-databundle-store/internal/catalog"
	"github.com/zjoart/go-databundle-store/pkg/logger"
)

const DefaultBaseURL = "https://console.ckgodsway.com/api"

type Outcome string

const (
	Delivered Outcome = "DELIVERED"
	Rejected  Outcome = "REJECTED"
	// Indeterminate means the provider may or may not have delivered.
	Indeterminate Outcome = "INDETERMINATE"
)

// Result carries the provider's order number when Delivered and a
// human-readable reason otherwise.
type Result struct {
	Outcome     Outcome
	ProviderRef string
	Reason      string
}

type Request struct {
	Network   catalog.Network
	PlanID    string
	Recipient string
}

// Gateway is the fulfillment contract the purchase flow depends on.
type Gateway interface {
	Deliver(ctx context.Context, req Request) Result
}

var networkKeys = map[catalog.Network]string{
	catalog.MTN:        "YELLO",
	catalog.AirtelTigo: "AT_PREMIUM",
	catalog.Telecel:    "TELECEL",
}

func NetworkKey(n catalog.Network) (string, bool) {
	key, ok := networkKeys[n]
	return key, ok
}

type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
	}
}

type purchasePayload struct {
	NetworkKey string `json:"networkKey"`
	Recipient  string `json:"recipient"`
	Capacity   string `json:"capacity"`
}

type purchaseResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Data    struct {
		OrderNumber string `json:"orderNumber"`
	} `json:"data"`
}

// Deliver never returns an error: anything short of an explicit provider
// answer is reported as Indeterminate.
func (c *Client) Deliver(ctx context.Context, req Request) Result {
	networkKey, ok := NetworkKey(req.Network)
	if !ok {
		return Result{Outcome: Rejected, Reason: "unsupported network"}
	}

	body, err := json.Marshal(purchasePayload{
		NetworkKey: networkKey,
		Recipient:  req.Recipient,
		Capacity:   catalog.Capacity(req.PlanID),
	})
	if err != nil {
		return Result{Outcome: Rejected, Reason: err.Error()}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/data-purchase", bytes.NewReader(body))
	if err != nil {
		return Result{Outcome: Indeterminate, Reason: err.Error()}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-API-Key", c.apiKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		logger.Error("Provider request failed", logger.WithError(err))
		return Result{Outcome: Indeterminate, Reason: "provider unreachable"}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return Result{Outcome: Indeterminate, Reason: "provider response interrupted"}
	}

	var parsed purchaseResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		logger.Error("Provider returned malformed response", logger.Fields{
			"status_code": resp.StatusCode,
			"body":        string(raw),
		})
		return Result{Outcome: Indeterminate, Reason: "malformed provider response"}
	}

	if parsed.Success {
		if parsed.Data.OrderNumber == "" {
			return Result{Outcome: Indeterminate, Reason: "provider omitted order number"}
		}
		return Result{Outcome: Delivered, ProviderRef: parsed.Data.OrderNumber}
	}

	if resp.StatusCode >= http.StatusInternalServerError {
		return Result{Outcome: Indeterminate, Reason: fmt.Sprintf("provider returned status %d", resp.StatusCode)}
	}

	reason := parsed.Error
	if reason == "" {
		reason = "provider declined the order"
	}
	return Result{Outcome: Rejected, Reason: reason}
}
