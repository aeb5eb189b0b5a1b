// Package mollie is a minimal typed client for the Mollie payments API.
package mollie

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"molliebridge/internal/domain/payment"
	"molliebridge/pkg/metrics"

	"github.com/google/go-querystring/query"
	"github.com/shopspring/decimal"
)

type Client struct {
	baseURL  string
	apiKey   string
	testmode bool
	http     *http.Client
}

func New(baseURL, apiKey string, testmode bool, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{
		baseURL:  baseURL,
		apiKey:   apiKey,
		testmode: testmode,
		http:     httpClient,
	}
}

type getOptions struct {
	Testmode bool `url:"testmode,omitempty"`
}

// paymentResp mirrors the provider payment resource. Amounts arrive as
// decimal strings and are parsed exactly, never as floats.
type paymentResp struct {
	ID       string          `json:"id"`
	Status   string          `json:"status"`
	Method   string          `json:"method"`
	Amount   decimal.Decimal `json:"amount"`
	Metadata struct {
		CartID    int64  `json:"cart_id"`
		SecureKey string `json:"secure_key"`
	} `json:"metadata"`
}

// GetPayment fetches the authoritative payment snapshot and decodes it once
// into a validated value type at this boundary.
func (c *Client) GetPayment(ctx context.Context, transactionID string) (payment.ProviderPayment, error) {
	u := fmt.Sprintf("%s/v1/payments/%s", c.baseURL, url.PathEscape(transactionID))
	qs, err := query.Values(getOptions{Testmode: c.testmode})
	if err != nil {
		return payment.ProviderPayment{}, fmt.Errorf("encode query: %w", err)
	}
	if encoded := qs.Encode(); encoded != "" {
		u += "?" + encoded
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return payment.ProviderPayment{}, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	metrics.ProviderFetchDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return payment.ProviderPayment{}, fmt.Errorf("http: %w", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return payment.ProviderPayment{}, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode/100 != 2 {
		return payment.ProviderPayment{}, fmt.Errorf("provider %s: %s", resp.Status, string(raw))
	}

	var out paymentResp
	if err := json.Unmarshal(raw, &out); err != nil {
		return payment.ProviderPayment{}, fmt.Errorf("decode payment: %w", err)
	}
	return toProviderPayment(out)
}

func toProviderPayment(resp paymentResp) (payment.ProviderPayment, error) {
	if resp.ID == "" {
		return payment.ProviderPayment{}, fmt.Errorf("payment resource without id")
	}
	status, err := payment.NewStatus(resp.Status)
	if err != nil {
		return payment.ProviderPayment{}, fmt.Errorf("payment %s: status %q: %w", resp.ID, resp.Status, err)
	}
	return payment.ProviderPayment{
		ID:        resp.ID,
		Status:    status,
		Method:    resp.Method,
		Amount:    resp.Amount,
		CartID:    resp.Metadata.CartID,
		SecureKey: resp.Metadata.SecureKey,
	}, nil
}
