package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/joshdurbin/ns-shortener/internal/domain"
)

// UserHeader carries the caller identity on every request
const UserHeader = "X-User-ID"

// APIError is a failed API call. It unwraps to the matching domain error,
// so callers can test it with errors.Is.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned status %d", e.Status)
	}
	return fmt.Sprintf("server returned status %d: %s", e.Status, e.Message)
}

func (e *APIError) Unwrap() error {
	return domain.ErrorForCode(e.Code)
}

// ListParams selects a listing; CreatedBy and Filter pick the secondary listings
type ListParams struct {
	Limit     int
	Cursor    string
	CreatedBy string
	Filter    string
}

// Client represents an HTTP client for the URL shortener API
type Client struct {
	serverURL  string
	user       string
	httpClient *http.Client
}

// NewClient creates a new URL shortener client acting as user
func NewClient(serverURL, user string) *Client {
	return &Client{
		serverURL: strings.TrimSuffix(serverURL, "/"),
		user:      user,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

func nsPath(namespaceID string, parts ...string) string {
	p := "/api/namespaces/" + url.PathEscape(namespaceID)
	for _, part := range parts {
		p += "/" + url.PathEscape(part)
	}
	return p
}

// do sends a request and decodes the response into out when the status is one of ok
func (c *Client) do(ctx context.Context, method, path string, body, out any, ok ...int) (int, error) {
	var reader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.serverURL+path, reader)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.user != "" {
		req.Header.Set(UserHeader, c.user)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	for _, status := range ok {
		if resp.StatusCode != status {
			continue
		}
		if out != nil {
			if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
				return resp.StatusCode, fmt.Errorf("failed to decode response: %w", err)
			}
		}
		return resp.StatusCode, nil
	}

	return resp.StatusCode, decodeAPIError(resp)
}

func decodeAPIError(resp *http.Response) *APIError {
	apiErr := &APIError{Status: resp.StatusCode}
	var errResp domain.ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err == nil {
		apiErr.Code, apiErr.Message = errResp.Code, errResp.Error
	}
	return apiErr
}

// CreateURL creates a short URL in a namespace
func (c *Client) CreateURL(ctx context.Context, namespaceID string, req domain.CreateURLRequest) (*domain.CreateURLResponse, error) {
	var result domain.CreateURLResponse
	if _, err := c.do(ctx, http.MethodPost, nsPath(namespaceID, "urls"), req, &result, http.StatusCreated); err != nil {
		return nil, err
	}
	return &result, nil
}

// BulkCreate creates several short URLs; per-item failures are in the response
func (c *Client) BulkCreate(ctx context.Context, namespaceID string, items []domain.CreateURLRequest) (*domain.BulkCreateResponse, error) {
	var result domain.BulkCreateResponse
	_, err := c.do(ctx, http.MethodPost, nsPath(namespaceID, "urls", "bulk"), domain.BulkCreateRequest{Items: items},
		&result, http.StatusCreated, http.StatusMultiStatus)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// GetURL retrieves a short URL record
func (c *Client) GetURL(ctx context.Context, namespaceID, shortCode string) (*domain.ShortURL, error) {
	var rec domain.ShortURL
	if _, err := c.do(ctx, http.MethodGet, nsPath(namespaceID, "urls", shortCode), nil, &rec, http.StatusOK); err != nil {
		return nil, err
	}
	return &rec, nil
}

// UpdateURL applies a partial update
func (c *Client) UpdateURL(ctx context.Context, namespaceID, shortCode string, req domain.UpdateURLRequest) (*domain.ShortURL, error) {
	var rec domain.ShortURL
	if _, err := c.do(ctx, http.MethodPatch, nsPath(namespaceID, "urls", shortCode), req, &rec, http.StatusOK); err != nil {
		return nil, err
	}
	return &rec, nil
}

// DeleteURL deletes a short URL
func (c *Client) DeleteURL(ctx context.Context, namespaceID, shortCode string) error {
	_, err := c.do(ctx, http.MethodDelete, nsPath(namespaceID, "urls", shortCode), nil, nil, http.StatusNoContent)
	return err
}

// ListURLs retrieves one page of short URLs
func (c *Client) ListURLs(ctx context.Context, namespaceID string, params ListParams) (*domain.ListURLsResponse, error) {
	query := url.Values{}
	if params.Limit > 0 {
		query.Set("limit", strconv.Itoa(params.Limit))
	}
	if params.Cursor != "" {
		query.Set("cursor", params.Cursor)
	}
	if params.CreatedBy != "" {
		query.Set("created_by", params.CreatedBy)
	}
	if params.Filter != "" {
		query.Set("filter", params.Filter)
	}

	path := nsPath(namespaceID, "urls")
	if len(query) > 0 {
		path += "?" + query.Encode()
	}

	var page domain.ListURLsResponse
	if _, err := c.do(ctx, http.MethodGet, path, nil, &page, http.StatusOK); err != nil {
		return nil, err
	}
	return &page, nil
}

// URLAnalytics reports clicks on one short URL over a window such as "7days"
func (c *Client) URLAnalytics(ctx context.Context, namespaceID, shortCode, window string) (*domain.ClickReport, error) {
	return c.report(ctx, nsPath(namespaceID, "urls", shortCode, "analytics"), window)
}

// NamespaceAnalytics reports clicks across a namespace
func (c *Client) NamespaceAnalytics(ctx context.Context, namespaceID, window string) (*domain.ClickReport, error) {
	return c.report(ctx, nsPath(namespaceID, "analytics"), window)
}

func (c *Client) report(ctx context.Context, path, window string) (*domain.ClickReport, error) {
	if window != "" {
		path += "?window=" + url.QueryEscape(window)
	}
	var report domain.ClickReport
	if _, err := c.do(ctx, http.MethodGet, path, nil, &report, http.StatusOK); err != nil {
		return nil, err
	}
	return &report, nil
}

// NamespaceStats retrieves the aggregate counters of a namespace
func (c *Client) NamespaceStats(ctx context.Context, namespaceID string) (*domain.NamespaceStats, error) {
	var st domain.NamespaceStats
	if _, err := c.do(ctx, http.MethodGet, nsPath(namespaceID, "stats"), nil, &st, http.StatusOK); err != nil {
		return nil, err
	}
	return &st, nil
}

// DeleteNamespace schedules a namespace for deletion
func (c *Client) DeleteNamespace(ctx context.Context, namespaceID string) error {
	_, err := c.do(ctx, http.MethodDelete, nsPath(namespaceID), nil, nil, http.StatusAccepted)
	return err
}

// Resolve returns the redirect target of a short URL without following it
func (c *Client) Resolve(ctx context.Context, namespaceID, shortCode string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.serverURL+"/"+url.PathEscape(namespaceID)+"/"+url.PathEscape(shortCode), nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	if c.user != "" {
		req.Header.Set(UserHeader, c.user)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusFound {
		return "", decodeAPIError(resp)
	}
	return resp.Header.Get("Location"), nil
}
