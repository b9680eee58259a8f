package subscription

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/kingrain94/entitlement-api/internal/domain"
	"github.com/kingrain94/entitlement-api/pkg/logger"
)

var ErrNotConfigured = errors.New("subscription provider not configured")

// Provider returns the current subscription of a tenant, or nil when it has none.
type Provider interface {
	GetSubscription(ctx context.Context, tenantID string) (*domain.Subscription, error)
}

// Client reads subscription snapshots from the billing API.
type Client struct {
	httpClient *resty.Client
	logger     *logger.Logger
}

func NewClient(baseURL, token string, timeout time.Duration, logger *logger.Logger) *Client {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(100 * time.Millisecond).
		SetRetryMaxWaitTime(1 * time.Second).
		SetHeader("Accept", "application/json").
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= http.StatusInternalServerError
		})
	if token != "" {
		client.SetAuthToken(token)
	}

	return &Client{
		httpClient: client,
		logger:     logger,
	}
}

func (c *Client) GetSubscription(ctx context.Context, tenantID string) (*domain.Subscription, error) {
	if c == nil || c.httpClient.BaseURL == "" {
		return nil, ErrNotConfigured
	}

	var sub domain.Subscription
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetPathParam("tenantId", tenantID).
		SetResult(&sub).
		Get("/tenants/{tenantId}/subscription")
	if err != nil {
		return nil, fmt.Errorf("failed to call billing API: %w", err)
	}

	switch {
	case resp.StatusCode() == http.StatusNotFound:
		return nil, nil
	case resp.IsError():
		c.logger.Warn("Billing API returned error",
			zap.String("tenant_id", tenantID),
			zap.Int("status_code", resp.StatusCode()))
		return nil, fmt.Errorf("billing API error: status %d", resp.StatusCode())
	}

	if sub.TenantID == "" {
		sub.TenantID = tenantID
	}
	return &sub, nil
}
