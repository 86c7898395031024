// Package kobo is the client for the KoBo-compatible survey collection API:
// paginated submission listing, submission create/update, and form media
// management.
package kobo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultTimeout is the default request timeout
	DefaultTimeout = 60 * time.Second

	// MaxResponseSize is the maximum response body size (50MB). Submission
	// pages can be large.
	MaxResponseSize = 50 * 1024 * 1024
)

// Config holds survey API connection settings for one project.
type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// Client wraps the HTTP client with auth, logging and size limits.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
	logger  *zap.Logger
}

// NewClient creates a new survey API client.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL: cfg.BaseURL,
		token:   cfg.Token,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// Response represents an HTTP response from the survey API.
type Response struct {
	StatusCode int
	Body       []byte
	Duration   time.Duration
}

// IsSuccess reports a 2xx status.
func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// IsTransient reports a status worth retrying: 5xx or 429.
func (r *Response) IsTransient() bool {
	return r.StatusCode >= 500 || r.StatusCode == http.StatusTooManyRequests
}

// Do executes a request with the project token and reads the body with a
// size limit.
func (c *Client) Do(ctx context.Context, req *http.Request) (*Response, error) {
	start := time.Now()

	req.Header.Set("Authorization", "Token "+c.token)
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}

	resp, err := c.client.Do(req.WithContext(ctx))
	if err != nil {
		c.logger.Error("survey API request failed",
			zap.String("method", req.Method), zap.String("url", req.URL.String()), zap.Error(err))
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if len(body) > MaxResponseSize {
		return nil, fmt.Errorf("response body too large: %d bytes (max %d)", len(body), MaxResponseSize)
	}

	duration := time.Since(start)
	c.logger.Debug("survey API request",
		zap.String("method", req.Method), zap.String("url", req.URL.String()),
		zap.Int("status", resp.StatusCode), zap.Duration("duration", duration))

	return &Response{StatusCode: resp.StatusCode, Body: body, Duration: duration}, nil
}

// Get performs a GET request against an absolute or API-relative URL.
func (c *Client) Get(ctx context.Context, url string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.absolute(url), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	return c.Do(ctx, req)
}

// PostJSON performs a POST with a JSON body.
func (c *Client) PostJSON(ctx context.Context, url string, payload any) (*Response, error) {
	return c.sendJSON(ctx, http.MethodPost, url, payload)
}

// PatchJSON performs a PATCH with a JSON body.
func (c *Client) PatchJSON(ctx context.Context, url string, payload any) (*Response, error) {
	return c.sendJSON(ctx, http.MethodPatch, url, payload)
}

// Delete performs a DELETE request.
func (c *Client) Delete(ctx context.Context, url string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.absolute(url), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	return c.Do(ctx, req)
}

// PostMultipart uploads a file as multipart form data together with extra
// form fields.
func (c *Client) PostMultipart(ctx context.Context, url, fileField, fileName string, content []byte, formFields map[string]string) (*Response, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile(fileField, fileName)
	if err != nil {
		return nil, fmt.Errorf("failed to create multipart file: %w", err)
	}
	if _, err := part.Write(content); err != nil {
		return nil, fmt.Errorf("failed to write multipart file: %w", err)
	}
	for key, value := range formFields {
		if err := writer.WriteField(key, value); err != nil {
			return nil, fmt.Errorf("failed to write multipart field %s: %w", key, err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.absolute(url), &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return c.Do(ctx, req)
}

func (c *Client) sendJSON(ctx context.Context, method, url string, payload any) (*Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.absolute(url), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.Do(ctx, req)
}

func (c *Client) absolute(url string) string {
	if len(url) >= 4 && url[:4] == "http" {
		return url
	}
	return c.baseURL + url
}
