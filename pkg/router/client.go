// Package router executes inventory conversion legs through an external
// price router.
package router

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/solverhq/solana-settler/pkg/logger"
	"github.com/solverhq/solana-settler/pkg/models"
)

// Client talks to the router's quote and swap HTTP API.
type Client struct {
	endpoint   string
	httpClient *http.Client
	logger     logger.Logger
}

// NewClient creates a router API client.
func NewClient(endpoint string, log logger.Logger) *Client {
	return &Client{
		endpoint:   endpoint,
		httpClient: createHTTPClient(),
		logger:     log,
	}
}

// Quote asks the router for a route between two mints. A missing route or an
// unreachable router both surface as QuoteUnavailableError.
func (c *Client) Quote(ctx context.Context, tokenIn, tokenOut string, amount uint64, cfg QuoteConfig) (*Quote, error) {
	params := url.Values{}
	params.Set("inputMint", tokenIn)
	params.Set("outputMint", tokenOut)
	params.Set("amount", strconv.FormatUint(amount, 10))
	params.Set("slippageBps", strconv.FormatUint(cfg.SlippageBps, 10))
	if cfg.SwapMode != "" {
		params.Set("swapMode", string(cfg.SwapMode))
	}
	params.Set("onlyDirectRoutes", strconv.FormatBool(cfg.OnlyDirectRoutes))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"/quote?"+params.Encode(), nil)
	if err != nil {
		return nil, &models.QuoteUnavailableError{TokenIn: tokenIn, TokenOut: tokenOut, Err: err}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &models.QuoteUnavailableError{TokenIn: tokenIn, TokenOut: tokenOut, Err: err}
	}
	defer func(body io.ReadCloser) {
		if err := body.Close(); err != nil {
			c.logger.Error("Failed to close response body: %v", err)
		}
	}(resp.Body)

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &models.QuoteUnavailableError{TokenIn: tokenIn, TokenOut: tokenOut, Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &models.QuoteUnavailableError{
			TokenIn:  tokenIn,
			TokenOut: tokenOut,
			Err:      fmt.Errorf("unexpected status code: %d, body: %s", resp.StatusCode, string(bodyBytes)),
		}
	}

	var quote Quote
	if err := json.Unmarshal(bodyBytes, &quote); err != nil {
		return nil, &models.QuoteUnavailableError{TokenIn: tokenIn, TokenOut: tokenOut, Err: err}
	}
	quote.raw = bodyBytes

	return &quote, nil
}

// SwapTransaction asks the router to build the swap transaction for a quote
// and returns the serialized transaction bytes, ready to sign.
func (c *Client) SwapTransaction(ctx context.Context, quote *Quote, user solana.PublicKey) ([]byte, error) {
	reqBody, err := json.Marshal(swapRequest{
		QuoteResponse:    quote.raw,
		UserPublicKey:    user.String(),
		WrapAndUnwrapSol: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode swap request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/swap", bytes.NewReader(reqBody))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("swap request failed: %w", err)
	}
	defer func(body io.ReadCloser) {
		if err := body.Close(); err != nil {
			c.logger.Error("Failed to close response body: %v", err)
		}
	}(resp.Body)

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read swap response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d, body: %s", resp.StatusCode, string(bodyBytes))
	}

	var swapResp swapResponse
	if err := json.Unmarshal(bodyBytes, &swapResp); err != nil {
		return nil, fmt.Errorf("failed to decode swap response: %w", err)
	}

	rawTx, err := base64.StdEncoding.DecodeString(swapResp.SwapTransaction)
	if err != nil {
		return nil, fmt.Errorf("failed to decode swap transaction: %w", err)
	}
	return rawTx, nil
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
