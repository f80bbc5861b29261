package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"

	"parking-status-monitor/config"
	"parking-status-monitor/internal/model"
)

// ErrUnauthorized indicates the backend definitively rejected the bearer
// token on verification. Only this error justifies tearing a session down;
// transport failures do not.
var ErrUnauthorized = errors.New("upstream: token rejected")

// APIError is a well-formed failure: the backend answered the request but
// reported success=false. The message is server-supplied and suitable for
// display.
type APIError struct {
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return "upstream: request failed"
	}
	return e.Message
}

// TokenSource supplies the current bearer token, empty when logged out.
type TokenSource interface {
	Token() string
}

// envelope models the backend's uniform response shape.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Message string          `json:"message,omitempty"`
}

// loginResult is the data payload of a successful login.
type loginResult struct {
	User  *model.User `json:"user"`
	Token string      `json:"token"`
}

// Client talks to the parking backend's REST API. Every request carries
// Authorization: Bearer <token> when the token source holds one.
type Client struct {
	baseURL string
	client  *http.Client
	tokens  TokenSource
}

// NewClient creates a backend API client from the upstream configuration.
// tokens may be nil for a client that never authenticates.
func NewClient(cfg *config.UpstreamConfig, tokens TokenSource) *Client {
	var transport http.RoundTripper = &http.Transport{}
	if cfg.HTTPProxy != "" {
		proxyURL, err := url.Parse(cfg.HTTPProxy)
		if err != nil {
			log.Printf("Warning: Invalid proxy URL %q: %v. Client will not use a proxy.", cfg.HTTPProxy, err)
		} else {
			transport = &http.Transport{Proxy: http.ProxyURL(proxyURL)}
		}
	}

	return &Client{
		baseURL: cfg.BaseURL,
		client: &http.Client{
			Transport: transport,
			Timeout:   cfg.Timeout,
		},
		tokens: tokens,
	}
}

// Login exchanges credentials for an identity record and a bearer token.
func (c *Client) Login(ctx context.Context, username, password string) (*model.User, string, error) {
	body := map[string]string{"username": username, "password": password}

	env, err := c.do(ctx, http.MethodPost, "/api/auth/login", "", body)
	if err != nil {
		return nil, "", err
	}

	var result loginResult
	if err := json.Unmarshal(env.Data, &result); err != nil {
		return nil, "", fmt.Errorf("failed to decode login payload: %w", err)
	}
	if result.User == nil || result.Token == "" {
		return nil, "", fmt.Errorf("login response is missing user or token")
	}
	return result.User, result.Token, nil
}

// VerifyToken asks the backend whether the given token is still acceptable.
// A 2xx answer means valid; 401 and 403 mean definitively rejected
// (ErrUnauthorized); anything else is a transport-class failure and says
// nothing about the token.
func (c *Client) VerifyToken(ctx context.Context, token string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/auth/verify", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("verify request failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return ErrUnauthorized
	default:
		return fmt.Errorf("verify returned unexpected status %d", resp.StatusCode)
	}
}

// ParkingStatus fetches the current occupancy snapshot for a branch.
func (c *Client) ParkingStatus(ctx context.Context, branchID int64) (*model.ParkingStatusSnapshot, error) {
	path := fmt.Sprintf("/api/stats/parking/status/%d", branchID)

	env, err := c.do(ctx, http.MethodGet, path, c.token(), nil)
	if err != nil {
		return nil, err
	}

	var snapshot model.ParkingStatusSnapshot
	if err := json.Unmarshal(env.Data, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to decode status payload: %w", err)
	}
	return &snapshot, nil
}

func (c *Client) token() string {
	if c.tokens == nil {
		return ""
	}
	return c.tokens.Token()
}

// do performs one request against the backend and decodes the envelope.
// success=false becomes an *APIError; everything else that goes wrong is a
// transport-class error.
func (c *Client) do(ctx context.Context, method, path, token string, payload any) (*envelope, error) {
	var bodyReader io.Reader
	if payload != nil {
		jsonBody, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request payload: %w", err)
		}
		bodyReader = bytes.NewBuffer(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("failed to unmarshal api response (status %d): %w", resp.StatusCode, err)
	}

	if !env.Success {
		return nil, &APIError{Message: env.Message}
	}
	return &env, nil
}
