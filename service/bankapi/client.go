package bankapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const maxBodySize = 64 << 10

// Client talks to the bank card REST API. Every call is a single request;
// retrying is left to the caller.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	logger  *slog.Logger
}

func NewClient(baseURL, token string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

func (c *Client) CreateCard(ctx context.Context, req CreateCardRequest) (*Card, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal card request: %w", err)
	}

	body, err := c.do(ctx, http.MethodPost, "/api/cards", "application/json", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}

	var card Card
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &card); err != nil {
			c.logger.Warn("Failed to decode created card", "error", err)
		}
	}
	return &card, nil
}

func (c *Client) GetCard(ctx context.Context, cardID int64) (*Card, error) {
	body, err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/cards/%d", cardID), "", nil)
	if err != nil {
		return nil, err
	}

	var card Card
	if err := json.Unmarshal(body, &card); err != nil {
		return nil, fmt.Errorf("failed to decode card %d: %w", cardID, err)
	}
	return &card, nil
}

// DeleteCard removes a card through the REST API. RemoveCard does the same
// through the console endpoint, which answers with a message.
func (c *Client) DeleteCard(ctx context.Context, cardID int64) error {
	_, err := c.do(ctx, http.MethodDelete, fmt.Sprintf("/api/cards/%d", cardID), "", nil)
	return err
}

func (c *Client) RemoveCard(ctx context.Context, cardID int64) (string, error) {
	return c.postForm(ctx, fmt.Sprintf("/cards/%d/delete", cardID), url.Values{})
}

func (c *Client) ActivateCard(ctx context.Context, cardID int64, reason string) (string, error) {
	return c.postForm(ctx, fmt.Sprintf("/cards/%d/activate", cardID), url.Values{"reason": {reason}})
}

func (c *Client) BlockCard(ctx context.Context, cardID int64, reason string) (string, error) {
	return c.postForm(ctx, fmt.Sprintf("/cards/%d/block", cardID), url.Values{"reason": {reason}})
}

func (c *Client) TopUp(ctx context.Context, cardID int64, amount decimal.Decimal) (string, error) {
	return c.postForm(ctx, fmt.Sprintf("/cards/%d/topup", cardID), url.Values{"amount": {amount.String()}})
}

func (c *Client) RequestTopUp(ctx context.Context, cardID int64, amount decimal.Decimal) (string, error) {
	return c.postForm(ctx, fmt.Sprintf("/cards/%d/request-topup", cardID), url.Values{"amount": {amount.String()}})
}

func (c *Client) RequestBlock(ctx context.Context, cardID int64, reason string) (string, error) {
	return c.postForm(ctx, fmt.Sprintf("/cards/%d/request-block", cardID), url.Values{"reason": {reason}})
}

func (c *Client) RequestUnblock(ctx context.Context, cardID int64, reason string) (string, error) {
	return c.postForm(ctx, fmt.Sprintf("/cards/%d/request-unblock", cardID), url.Values{"reason": {reason}})
}

func (c *Client) RequestRecreate(ctx context.Context, cardID int64, newExpiryDate string) (string, error) {
	return c.postForm(ctx, fmt.Sprintf("/cards/%d/request-recreate", cardID), url.Values{"newExpiryDate": {newExpiryDate}})
}

func (c *Client) RequestCreate(ctx context.Context, expiryDate string) (string, error) {
	return c.postForm(ctx, "/cards/request-create", url.Values{"expiryDate": {expiryDate}})
}

func (c *Client) MarkProcessed(ctx context.Context, notificationID int64, route ProcessRoute) error {
	path := fmt.Sprintf("/notifications/%d/process", notificationID)
	if route == RouteMarkProcessed {
		path = fmt.Sprintf("/api/notifications/%d/mark-processed", notificationID)
	}
	_, err := c.do(ctx, http.MethodPost, path, "", nil)
	return err
}

func (c *Client) postForm(ctx context.Context, path string, form url.Values) (string, error) {
	body, err := c.do(ctx, http.MethodPost, path, "application/x-www-form-urlencoded", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(body)), nil
}

func (c *Client) do(ctx context.Context, method, path, contentType string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, &NetworkError{Method: method, Path: path, Err: err}
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json, text/plain")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug("Bank API request failed", "method", method, "path", path, "error", err)
		return nil, &NetworkError{Method: method, Path: path, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, &NetworkError{Method: method, Path: path, StatusCode: resp.StatusCode, Err: err}
	}

	c.logger.Debug("Bank API request",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"duration", time.Since(start),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &NetworkError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(data)),
		}
	}

	return data, nil
}
