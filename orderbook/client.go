package orderbook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultTimeout bounds each orderbook request.
const DefaultTimeout = 30 * time.Second

// Client talks to the orderbook service over HTTP.
type Client struct {
	BaseURL string
	Client  *http.Client
	Timeout time.Duration
}

// NewClient creates an orderbook client for the given base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Client:  http.DefaultClient,
		Timeout: DefaultTimeout,
	}
}

// fulfillRequest asks the orderbook to build fulfillment transactions for a
// listing.
type fulfillRequest struct {
	OrderID        string `json:"orderId"`
	AccountAddress string `json:"accountAddress"`
	FillAmount     string `json:"fillAmount,omitempty"`
}

// prepareRequest asks the orderbook to prepare a new listing for signing.
type prepareRequest struct {
	AccountAddress string      `json:"accountAddress"`
	Sell           ListingItem `json:"sell"`
	Buy            ListingItem `json:"buy"`
}

// createRequest submits a signed listing.
type createRequest struct {
	AccountAddress string       `json:"accountAddress"`
	Sell           ListingItem  `json:"sell"`
	Buy            ListingItem  `json:"buy"`
	Fees           []ListingFee `json:"fees,omitempty"`
	Signature      string       `json:"signature"`
}

// cancelRequest asks the orderbook to build a cancellation transaction.
type cancelRequest struct {
	OrderID        string `json:"orderId"`
	AccountAddress string `json:"accountAddress"`
}

// GetListing fetches a listing by ID.
func (c *Client) GetListing(ctx context.Context, orderID string) (*Listing, error) {
	var listing Listing
	if err := c.do(ctx, http.MethodGet, "/v1/orders/"+orderID, nil, &listing); err != nil {
		return nil, err
	}
	return &listing, nil
}

// FulfillOrder requests the approval and fulfillment transactions for taking
// a listing. fillAmount is empty for a full fill.
func (c *Client) FulfillOrder(ctx context.Context, orderID, accountAddress, fillAmount string) (*FulfillmentResponse, error) {
	req := fulfillRequest{
		OrderID:        orderID,
		AccountAddress: accountAddress,
		FillAmount:     fillAmount,
	}
	var resp FulfillmentResponse
	if err := c.do(ctx, http.MethodPost, "/v1/orders/fulfill", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// PrepareListing requests the approvals and the typed data a maker signs to
// create a listing.
func (c *Client) PrepareListing(ctx context.Context, accountAddress string, sell, buy ListingItem) (*PrepareListingResponse, error) {
	req := prepareRequest{
		AccountAddress: accountAddress,
		Sell:           sell,
		Buy:            buy,
	}
	var resp PrepareListingResponse
	if err := c.do(ctx, http.MethodPost, "/v1/orders/prepare", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CreateListing submits a signed listing to the orderbook.
func (c *Client) CreateListing(ctx context.Context, accountAddress string, sell, buy ListingItem, fees []ListingFee, signature string) (*CreateListingResponse, error) {
	req := createRequest{
		AccountAddress: accountAddress,
		Sell:           sell,
		Buy:            buy,
		Fees:           fees,
		Signature:      signature,
	}
	var resp CreateListingResponse
	if err := c.do(ctx, http.MethodPost, "/v1/orders", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CancelOrder requests the on-chain cancellation transaction for a listing.
func (c *Client) CancelOrder(ctx context.Context, orderID, accountAddress string) (*CancelResponse, error) {
	req := cancelRequest{
		OrderID:        orderID,
		AccountAddress: accountAddress,
	}
	var resp CancelResponse
	if err := c.do(ctx, http.MethodPost, "/v1/orders/cancel", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// do executes one JSON request against the service. Non-2xx responses are
// translated into the package's typed errors.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	timeout := c.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	client := c.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var svcErr serviceError
		if err := json.NewDecoder(resp.Body).Decode(&svcErr); err != nil || svcErr.Message == "" {
			return translateServiceError(resp.StatusCode, resp.Status)
		}
		return translateServiceError(resp.StatusCode, svcErr.Message)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
