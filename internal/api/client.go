// Package api implements the shop backend HTTP client.
//
// The client handles all REST communication with the shop server:
// chat snapshots (conversation list, message history, unread counts),
// booking and repair management, the product catalog, and login. The
// chat methods satisfy the desk engine's Backend interface.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/blackfroglabs/shopdesk/internal/chat"
)

// DefaultTimeout is the default HTTP request timeout.
const DefaultTimeout = 10 * time.Second

// maxResponseSize limits response body reads to prevent memory exhaustion.
const maxResponseSize = 10 * 1024 * 1024 // 10MB

// Client is the shop backend HTTP client.
type Client struct {
	baseURL    string
	httpClient *http.Client
	token      string // bearer token for authenticated routes
}

// New creates a new shop backend client.
func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
	}
}

// NewWithToken creates a new shop backend client with bearer auth.
func NewWithToken(baseURL, token string) *Client {
	c := New(baseURL)
	c.token = token
	return c
}

// SetToken replaces the bearer token, e.g. after login.
func (c *Client) SetToken(token string) {
	c.token = token
}

// Error represents an error response from the shop server.
type Error struct {
	StatusCode int
	Body       string
}

func (e *Error) Error() string {
	return fmt.Sprintf("shop api error (status %d): %s", e.StatusCode, e.Body)
}

// =============================================================================
// Auth
// =============================================================================

// LoginRequest is the request body for POST /api/auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse is the response from POST /api/auth/login.
type LoginResponse struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expiresAt,omitempty"`
}

// Login exchanges operator credentials for a bearer token. The token is
// not stored on the client; callers decide where it lives.
func (c *Client) Login(ctx context.Context, req *LoginRequest) (*LoginResponse, error) {
	var resp LoginResponse
	if err := c.post(ctx, "/api/auth/login", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// =============================================================================
// Chat API (implements the desk engine's Backend)
// =============================================================================

// conversationsResponse is the response from GET /api/chat/conversations.
type conversationsResponse struct {
	Conversations []chat.Conversation `json:"conversations"`
}

// Conversations returns the full conversation-list snapshot.
func (c *Client) Conversations(ctx context.Context) ([]chat.Conversation, error) {
	var resp conversationsResponse
	if err := c.get(ctx, "/api/chat/conversations", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Conversations, nil
}

// messagesResponse is the response from GET /api/chat/conversations/{id}/messages.
type messagesResponse struct {
	Messages []chat.Message `json:"messages"`
}

// Messages returns the ordered message history for one conversation.
func (c *Client) Messages(ctx context.Context, conversationID string) ([]chat.Message, error) {
	var resp messagesResponse
	path := fmt.Sprintf("/api/chat/conversations/%s/messages", url.PathEscape(conversationID))
	if err := c.get(ctx, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Messages, nil
}

// unreadResponse is the response from GET /api/chat/unread.
type unreadResponse struct {
	Counts map[string]int `json:"counts"`
}

// UnreadCounts returns the authoritative unread-count snapshot.
func (c *Client) UnreadCounts(ctx context.Context) (map[string]int, error) {
	var resp unreadResponse
	if err := c.get(ctx, "/api/chat/unread", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Counts, nil
}

// =============================================================================
// Bookings API
// =============================================================================

// Booking represents a customer booking for a repair slot.
type Booking struct {
	ID          string `json:"id"`
	Customer    string `json:"customer"`
	Email       string `json:"email,omitempty"`
	Phone       string `json:"phone,omitempty"`
	Device      string `json:"device"`
	Issue       string `json:"issue,omitempty"`
	SlotAt      string `json:"slotAt"`
	Status      string `json:"status"` // pending, confirmed, completed, cancelled
	CreatedAt   string `json:"createdAt"`
	ShopComment string `json:"shopComment,omitempty"`
}

// ListBookingsRequest is the request parameters for GET /api/bookings.
type ListBookingsRequest struct {
	Status string
	Limit  int
}

// ListBookingsResponse is the response from GET /api/bookings.
type ListBookingsResponse struct {
	Bookings []Booking `json:"bookings"`
	Count    int       `json:"count"`
}

// ListBookings lists bookings, optionally filtered by status.
func (c *Client) ListBookings(ctx context.Context, req *ListBookingsRequest) (*ListBookingsResponse, error) {
	var resp ListBookingsResponse
	if err := c.get(ctx, "/api/bookings", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// UpdateBookingRequest is the request body for PATCH /api/bookings/{id}.
type UpdateBookingRequest struct {
	Status      string `json:"status,omitempty"`
	ShopComment string `json:"shopComment,omitempty"`
}

// UpdateBooking updates a booking's status or shop comment.
func (c *Client) UpdateBooking(ctx context.Context, bookingID string, req *UpdateBookingRequest) (*Booking, error) {
	var resp Booking
	path := "/api/bookings/" + url.PathEscape(bookingID)
	if err := c.patch(ctx, path, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// =============================================================================
// Repairs API
// =============================================================================

// Repair represents a repair job on the workshop board.
type Repair struct {
	ID         string `json:"id"`
	BookingID  string `json:"bookingId,omitempty"`
	Customer   string `json:"customer"`
	Device     string `json:"device"`
	Issue      string `json:"issue,omitempty"`
	Status     string `json:"status"` // received, diagnosing, repairing, ready, collected
	Notes      string `json:"notes,omitempty"`
	QuoteCents int    `json:"quoteCents,omitempty"`
	CreatedAt  string `json:"createdAt"`
	UpdatedAt  string `json:"updatedAt,omitempty"`
}

// ListRepairsRequest is the request parameters for GET /api/repairs.
type ListRepairsRequest struct {
	Status string
	Limit  int
}

// ListRepairsResponse is the response from GET /api/repairs.
type ListRepairsResponse struct {
	Repairs []Repair `json:"repairs"`
	Count   int      `json:"count"`
}

// ListRepairs lists repair jobs, optionally filtered by status.
func (c *Client) ListRepairs(ctx context.Context, req *ListRepairsRequest) (*ListRepairsResponse, error) {
	var resp ListRepairsResponse
	if err := c.get(ctx, "/api/repairs", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// UpdateRepairRequest is the request body for PATCH /api/repairs/{id}.
type UpdateRepairRequest struct {
	Status     string `json:"status,omitempty"`
	Notes      string `json:"notes,omitempty"`
	QuoteCents int    `json:"quoteCents,omitempty"`
}

// UpdateRepair advances a repair job or updates its notes and quote.
func (c *Client) UpdateRepair(ctx context.Context, repairID string, req *UpdateRepairRequest) (*Repair, error) {
	var resp Repair
	path := "/api/repairs/" + url.PathEscape(repairID)
	if err := c.patch(ctx, path, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// =============================================================================
// Products API
// =============================================================================

// Product represents a catalog item (refurbished devices, parts).
type Product struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	PriceCents  int    `json:"priceCents"`
	Stock       int    `json:"stock"`
	Category    string `json:"category,omitempty"`
	Published   bool   `json:"published"`
}

// ListProductsResponse is the response from GET /api/products.
type ListProductsResponse struct {
	Products []Product `json:"products"`
	Count    int       `json:"count"`
}

// ListProducts lists the product catalog.
func (c *Client) ListProducts(ctx context.Context) (*ListProductsResponse, error) {
	var resp ListProductsResponse
	if err := c.get(ctx, "/api/products", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SaveProductRequest is the request body for POST /api/products and
// PUT /api/products/{id}.
type SaveProductRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	PriceCents  int    `json:"priceCents"`
	Stock       int    `json:"stock"`
	Category    string `json:"category,omitempty"`
	Published   bool   `json:"published"`
}

// CreateProduct adds a catalog item.
func (c *Client) CreateProduct(ctx context.Context, req *SaveProductRequest) (*Product, error) {
	var resp Product
	if err := c.post(ctx, "/api/products", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// UpdateProduct replaces a catalog item.
func (c *Client) UpdateProduct(ctx context.Context, productID string, req *SaveProductRequest) (*Product, error) {
	var resp Product
	path := "/api/products/" + url.PathEscape(productID)
	if err := c.put(ctx, path, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// DeleteProductResponse is the response from DELETE /api/products/{id}.
type DeleteProductResponse struct {
	ID      string `json:"id"`
	Deleted bool   `json:"deleted"`
}

// DeleteProduct removes a catalog item. Returns nil response for 404.
func (c *Client) DeleteProduct(ctx context.Context, productID string) (*DeleteProductResponse, error) {
	var resp DeleteProductResponse
	if err := c.delete(ctx, "/api/products/"+url.PathEscape(productID), &resp); err != nil {
		if apiErr, ok := err.(*Error); ok && apiErr.StatusCode == 404 {
			return nil, nil
		}
		return nil, err
	}
	return &resp, nil
}

// =============================================================================
// HTTP plumbing
// =============================================================================

// post sends a POST request and decodes the JSON response.
func (c *Client) post(ctx context.Context, path string, reqBody, respBody any) error {
	return c.send(ctx, http.MethodPost, path, reqBody, respBody)
}

// put sends a PUT request and decodes the JSON response.
func (c *Client) put(ctx context.Context, path string, reqBody, respBody any) error {
	return c.send(ctx, http.MethodPut, path, reqBody, respBody)
}

// patch sends a PATCH request and decodes the JSON response.
func (c *Client) patch(ctx context.Context, path string, reqBody, respBody any) error {
	return c.send(ctx, http.MethodPatch, path, reqBody, respBody)
}

// delete sends a DELETE request and decodes the JSON response.
func (c *Client) delete(ctx context.Context, path string, respBody any) error {
	return c.send(ctx, http.MethodDelete, path, nil, respBody)
}

// send issues a request with an optional JSON body and decodes the response.
func (c *Client) send(ctx context.Context, method, path string, reqBody, respBody any) error {
	var bodyReader io.Reader
	if reqBody != nil {
		body, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	return c.do(req, respBody)
}

// get sends a GET request with query parameters and decodes the JSON response.
func (c *Client) get(ctx context.Context, path string, params any, respBody any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	if params != nil {
		q := req.URL.Query()
		switch p := params.(type) {
		case *ListBookingsRequest:
			if p != nil {
				if p.Status != "" {
					q.Set("status", p.Status)
				}
				if p.Limit > 0 {
					q.Set("limit", fmt.Sprintf("%d", p.Limit))
				}
			}
		case *ListRepairsRequest:
			if p != nil {
				if p.Status != "" {
					q.Set("status", p.Status)
				}
				if p.Limit > 0 {
					q.Set("limit", fmt.Sprintf("%d", p.Limit))
				}
			}
		}
		req.URL.RawQuery = q.Encode()
	}

	return c.do(req, respBody)
}

// do executes the request and decodes the bounded response body.
func (c *Client) do(req *http.Request, respBody any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	// Read maxResponseSize+1 to detect oversized responses while still
	// accepting responses exactly at the limit.
	respBodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize+1))
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	if int64(len(respBodyBytes)) > maxResponseSize {
		return fmt.Errorf("response exceeds maximum size of %d bytes", maxResponseSize)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &Error{
			StatusCode: resp.StatusCode,
			Body:       string(respBodyBytes),
		}
	}

	if err := json.Unmarshal(respBodyBytes, respBody); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}

	return nil
}
