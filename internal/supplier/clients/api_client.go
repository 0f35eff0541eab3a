package clients

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"catalogsync/internal/supplier/models"
	"catalogsync/pkg/logger"
)

// ErrRateLimited is returned when either the local gate or the supplier
// throttles a call. The caller must not retry before the gate's cooldown.
var ErrRateLimited = errors.New("supplier api rate limited")

const requestTimeout = 30 * time.Second

// ApiClient talks to the supplier's request/response channel. Every call is
// gated: if the endpoint is cooling down the call fails fast with
// ErrRateLimited and no network request is made.
type ApiClient struct {
	baseURL string
	apiKey  string
	gate    *RateGate
	client  *http.Client
	log     logger.Logger
}

func NewApiClient(baseURL, apiKey string, gate *RateGate, writer io.Writer) *ApiClient {
	_log := logger.NewLogger(writer, "[SupplierApiClient]")
	return &ApiClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		gate:    gate,
		client:  &http.Client{Timeout: requestTimeout},
		log:     _log,
	}
}

func (c *ApiClient) Gate() *RateGate {
	return c.gate
}

// Search looks parts up by free text.
func (c *ApiClient) Search(ctx context.Context, query string) (*models.SearchResponse, error) {
	var out models.SearchResponse
	params := url.Values{"q": {query}}
	if err := c.get(ctx, EndpointSearch, "/parts/search", params, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetDetails fetches the full record for one part number.
func (c *ApiClient) GetDetails(ctx context.Context, partNumber string) (*models.InventoryResponse, error) {
	var out models.InventoryResponse
	params := url.Values{"partNumber": {partNumber}}
	if err := c.get(ctx, EndpointDetails, "/parts/details", params, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CheckInventory fetches stock levels. An empty partNumber returns the whole
// dataset, paged internally by the supplier.
func (c *ApiClient) CheckInventory(ctx context.Context, partNumber string) (*models.InventoryResponse, error) {
	var out models.InventoryResponse
	params := url.Values{}
	if partNumber != "" {
		params.Set("partNumber", partNumber)
	}
	if err := c.get(ctx, EndpointInventory, "/inventory", params, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetPricing fetches price tiers. An empty partNumber returns the full price
// list.
func (c *ApiClient) GetPricing(ctx context.Context, partNumber string) (*models.PricingResponse, error) {
	var out models.PricingResponse
	params := url.Values{}
	if partNumber != "" {
		params.Set("partNumber", partNumber)
	}
	if err := c.get(ctx, EndpointPricing, "/pricing", params, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetKitComponents fetches kit structures through the details endpoint.
func (c *ApiClient) GetKitComponents(ctx context.Context, kitPartNumber string) (*models.KitResponse, error) {
	var out models.KitResponse
	params := url.Values{}
	if kitPartNumber != "" {
		params.Set("kitPartNumber", kitPartNumber)
	}
	if err := c.get(ctx, EndpointDetails, "/kits", params, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *ApiClient) get(ctx context.Context, endpoint, path string, params url.Values, out interface{}) error {
	if !c.gate.Allow(endpoint) {
		c.log.Log("endpoint %s gated, cooldown %s", endpoint, c.gate.RemainingCooldown(endpoint))
		return ErrRateLimited
	}

	reqURL := c.baseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request %s: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		reset := parseRetryAfter(resp.Header.Get("Retry-After"))
		c.gate.MarkLimited(endpoint, reset)
		c.log.Log("supplier throttled %s, reset in %s", endpoint, reset)
		return ErrRateLimited
	}

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("request %s failed with status %d: %s", path, resp.StatusCode, string(bodyBytes))
	}

	if err := json.Unmarshal(bodyBytes, out); err != nil {
		return fmt.Errorf("failed to unmarshal %s response: %w", path, err)
	}
	return nil
}

func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return time.Minute
	}
	if seconds, err := strconv.Atoi(header); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	if t, err := http.ParseTime(header); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return time.Minute
}
