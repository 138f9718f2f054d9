// Package paystack verifies payment references against the Paystack API and
// authenticates its webhook deliveries.
package paystack

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/zjoart/go-databundle-store/pkg/logger"
)

const DefaultBaseURL = "https://api.paystack.co"

var ErrGateway = errors.New("payment gateway unavailable")

// Transaction is the subset of a verified Paystack charge the store relies on.
type Transaction struct {
	Reference     string `json:"reference"`
	Status        string `json:"status"`
	AmountMinor   int64  `json:"amount"`
	CustomerEmail string `json:"customer_email"`
}

func (t Transaction) Succeeded() bool {
	return t.Status == "success"
}

type Client struct {
	baseURL string
	secret  string
	http    *http.Client
}

func NewClient(baseURL, secret string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		secret:  secret,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// Lookup fetches a transaction by reference. Transport failures and non-2xx
// responses are wrapped in ErrGateway; the caller decides whether to retry.
func (c *Client) Lookup(ctx context.Context, reference string) (*Transaction, error) {
	endpoint := fmt.Sprintf("%s/transaction/verify/%s", c.baseURL, url.PathEscape(reference))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.secret)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGateway, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		logger.Warn("Paystack verify returned non-200", logger.Fields{
			"status_code":       resp.StatusCode,
			"body":              string(body),
			logger.ReferenceKey: reference,
		})
		return nil, fmt.Errorf("%w: paystack returned status %d", ErrGateway, resp.StatusCode)
	}

	var result struct {
		Status  bool   `json:"status"`
		Message string `json:"message"`
		Data    struct {
			Reference string `json:"reference"`
			Status    string `json:"status"`
			Amount    int64  `json:"amount"`
			Customer  struct {
				Email string `json:"email"`
			} `json:"customer"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrGateway, err)
	}
	if !result.Status {
		return nil, fmt.Errorf("%w: paystack verification failed: %s", ErrGateway, result.Message)
	}

	return &Transaction{
		Reference:     result.Data.Reference,
		Status:        result.Data.Status,
		AmountMinor:   result.Data.Amount,
		CustomerEmail: strings.ToLower(result.Data.Customer.Email),
	}, nil
}

// Sign returns the hex HMAC-SHA512 of body under secret, the value Paystack
// sends in the x-paystack-signature header.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func ValidSignature(secret string, body []byte, signature string) bool {
	if signature == "" {
		return false
	}
	return hmac.Equal([]byte(Sign(secret, body)), []byte(strings.ToLower(signature)))
}
