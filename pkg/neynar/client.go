// Package neynar provides the identity-source client: bulk Farcaster user
// lookup by fid, returning profile info and verified/custody wallet
// addresses. Callers degrade to display defaults when a lookup fails.
package neynar

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// DefaultBaseURL is the production Neynar API endpoint.
const DefaultBaseURL = "https://api.neynar.com"

// Config holds the client configuration.
type Config struct {
	// BaseURL of the Neynar API (default: DefaultBaseURL).
	BaseURL string

	// APIKey sent in the x-api-key header (required).
	APIKey string

	// Timeout per request.
	Timeout time.Duration
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(apiKey string) Config {
	return Config{
		BaseURL: DefaultBaseURL,
		APIKey:  apiKey,
		Timeout: 10 * time.Second,
	}
}

// User is one Farcaster identity record.
type User struct {
	FID               int64  `json:"fid"`
	Username          string `json:"username"`
	PfpURL            string `json:"pfp_url"`
	CustodyAddress    string `json:"custody_address"`
	VerifiedAddresses struct {
		EthAddresses []string `json:"eth_addresses"`
	} `json:"verified_addresses"`
}

// Wallets returns the user's custody and verified addresses, lower-cased.
func (u *User) Wallets() []string {
	wallets := make([]string, 0, 1+len(u.VerifiedAddresses.EthAddresses))
	if u.CustodyAddress != "" {
		wallets = append(wallets, strings.ToLower(u.CustodyAddress))
	}
	for _, addr := range u.VerifiedAddresses.EthAddresses {
		if addr != "" {
			wallets = append(wallets, strings.ToLower(addr))
		}
	}
	return wallets
}

// Client is the Neynar API client.
type Client struct {
	httpClient *http.Client
	config     Config
	logger     zerolog.Logger
}

// New creates a new Neynar client.
func New(cfg Config, logger zerolog.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("neynar api key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		config:     cfg,
		logger:     logger,
	}, nil
}

// UsersByFID looks up users in bulk by fid.
func (c *Client) UsersByFID(ctx context.Context, fids []string) ([]User, error) {
	params := url.Values{}
	params.Set("fids", strings.Join(fids, ","))

	endpoint := c.config.BaseURL + "/v2/farcaster/user/bulk?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("x-api-key", c.config.APIKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn().Err(err).Msg("Neynar request failed")
		return nil, fmt.Errorf("neynar request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn().Int("status", resp.StatusCode).Msg("Neynar request error")
		return nil, fmt.Errorf("neynar request: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read neynar response: %w", err)
	}

	var envelope struct {
		Users []User `json:"users"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("decode neynar response: %w", err)
	}

	return envelope.Users, nil
}

// UserByFID looks up a single user. Returns nil when the fid is unknown.
func (c *Client) UserByFID(ctx context.Context, fid string) (*User, error) {
	users, err := c.UsersByFID(ctx, []string{fid})
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, nil
	}
	return &users[0], nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}
