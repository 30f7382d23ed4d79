// Package auction provides a client for the auctioneer API that hands the
// solver the intents it has won.
package auction

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/solverhq/solana-settler/pkg/logger"
	"github.com/solverhq/solana-settler/pkg/models"
)

// APIResponse represents the structure of the API response
type APIResponse struct {
	Intents    []models.Intent `json:"intents,omitempty"`
	Data       []models.Intent `json:"data,omitempty"` // Some deployments use "data" as the key
	Page       int             `json:"page"`
	PageSize   int             `json:"page_size"`
	TotalCount int             `json:"total_count"`
	TotalPages int             `json:"total_pages"`
}

// Client represents an auctioneer API client
type Client struct {
	endpoint   string
	solver     string
	httpClient *http.Client
	logger     logger.Logger
}

// New creates a new auctioneer API client
func New(endpoint, solver string, logger logger.Logger) *Client {
	return &Client{
		endpoint:   endpoint,
		solver:     solver,
		httpClient: createHTTPClient(),
		logger:     logger,
	}
}

// FetchWonIntents gets the intents this solver has won and not yet settled.
func (c *Client) FetchWonIntents(ctx context.Context) ([]models.Intent, error) {
	url := fmt.Sprintf("%s/api/v1/intents?status=won&solver=%s", c.endpoint, c.solver)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build intents request: %v", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch won intents: %v", err)
	}
	defer func(Body io.ReadCloser) {
		err := Body.Close()
		if err != nil {
			c.logger.Error("Failed to close response body: %v", err)
		}
	}(resp.Body)

	// Read the response body regardless of status code
	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %v", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d, body: %s", resp.StatusCode, string(bodyBytes))
	}

	// Try to unmarshal into our wrapper struct first
	var apiResp APIResponse
	if err := json.Unmarshal(bodyBytes, &apiResp); err != nil {
		// If that fails, try directly as an array
		var intents []models.Intent
		if err := json.Unmarshal(bodyBytes, &intents); err != nil {
			return nil, fmt.Errorf("failed to decode intents: %v, body: %s", err, string(bodyBytes))
		}
		return intents, nil
	}

	if len(apiResp.Intents) > 0 {
		return apiResp.Intents, nil
	}
	if len(apiResp.Data) > 0 {
		return apiResp.Data, nil
	}

	c.logger.Debug("No won intents found (page %d/%d, total count: %d)",
		apiResp.Page, apiResp.TotalPages, apiResp.TotalCount)
	return []models.Intent{}, nil
}

// Helper function to create an HTTP client with timeouts
func createHTTPClient() *http.Client {
	return &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 100,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}
