package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// VerifyResult is the outcome reported by the bot verification service.
type VerifyResult struct {
	Success    bool     `json:"success"`
	ErrorCodes []string `json:"error-codes"`
}

// VerifyClient wraps the bot verification HTTP endpoint.
type VerifyClient struct {
	endpoint   string
	secret     string
	httpClient *http.Client
}

// NewVerifyClient creates a new verification client.
func NewVerifyClient(endpoint, secret string, timeout time.Duration) *VerifyClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &VerifyClient{
		endpoint: endpoint,
		secret:   secret,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Verify checks a client token. remoteIP may be empty. A non-nil error means
// the service could not be asked; a rejected token is a result with
// Success false.
func (c *VerifyClient) Verify(ctx context.Context, token, remoteIP string) (*VerifyResult, error) {
	form := url.Values{}
	form.Set("secret", c.secret)
	form.Set("response", token)
	if remoteIP != "" {
		form.Set("remoteip", remoteIP)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call verification service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("verification service returned status: %d", resp.StatusCode)
	}

	var result VerifyResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &result, nil
}
