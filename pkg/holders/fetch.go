package holders

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// FetchConfig holds the ownership-source configuration for the batch job.
type FetchConfig struct {
	// BaseURL of the ownership API.
	BaseURL string

	// APIKey sent in the X-API-Key header.
	APIKey string

	// Contract is the NFT contract address to enumerate.
	Contract string

	// Chain is the hex chain id (e.g. "0x2105" for Base).
	Chain string

	// PageSize per request.
	PageSize int

	// Timeout per request.
	Timeout time.Duration
}

// DefaultFetchConfig returns defaults for the batch job.
func DefaultFetchConfig(apiKey, contract string) FetchConfig {
	return FetchConfig{
		BaseURL:  "https://deep-index.moralis.io/api/v2.2",
		APIKey:   apiKey,
		Contract: contract,
		Chain:    "0x2105",
		PageSize: 100,
		Timeout:  30 * time.Second,
	}
}

// Fetcher enumerates NFT owners by walking the ownership API's cursor.
type Fetcher struct {
	httpClient *http.Client
	config     FetchConfig
	logger     zerolog.Logger
}

// NewFetcher creates a holder fetcher.
func NewFetcher(cfg FetchConfig, logger zerolog.Logger) (*Fetcher, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("ownership api key is required")
	}
	if cfg.Contract == "" {
		return nil, fmt.Errorf("nft contract address is required")
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 100
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &Fetcher{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		config:     cfg,
		logger:     logger,
	}, nil
}

// ownersPage is one page of the owners endpoint.
type ownersPage struct {
	Cursor string `json:"cursor"`
	Result []struct {
		OwnerOf string `json:"owner_of"`
		TokenID string `json:"token_id"`
	} `json:"result"`
}

// FetchCounts walks the full owner list and aggregates NFT counts per
// wallet (lower-cased). Unlike the service's Dune fetches this is allowed
// to fail loudly; the batch job simply exits non-zero and the service keeps
// the previous snapshot file.
func (f *Fetcher) FetchCounts(ctx context.Context) (map[string]int64, error) {
	counts := make(map[string]int64)
	cursor := ""
	pages := 0

	for {
		page, err := f.fetchPage(ctx, cursor)
		if err != nil {
			return nil, fmt.Errorf("fetch owners page %d: %w", pages+1, err)
		}
		pages++

		for _, nft := range page.Result {
			wallet := strings.ToLower(strings.TrimSpace(nft.OwnerOf))
			if wallet == "" {
				f.logger.Warn().Str("token_id", nft.TokenID).Msg("Owner missing for token, skipping")
				continue
			}
			counts[wallet]++
		}

		f.logger.Debug().
			Int("page", pages).
			Int("tokens", len(page.Result)).
			Msg("Fetched owners page")

		if page.Cursor == "" {
			break
		}
		cursor = page.Cursor
	}

	f.logger.Info().
		Int("pages", pages).
		Int("holders", len(counts)).
		Msg("Owner enumeration complete")

	return counts, nil
}

func (f *Fetcher) fetchPage(ctx context.Context, cursor string) (*ownersPage, error) {
	endpoint := fmt.Sprintf("%s/nft/%s/owners", f.config.BaseURL, f.config.Contract)

	params := url.Values{}
	params.Set("chain", f.config.Chain)
	params.Set("limit", fmt.Sprintf("%d", f.config.PageSize))
	if cursor != "" {
		params.Set("cursor", cursor)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("X-API-Key", f.config.APIKey)
	req.Header.Set("Accept", "application/json")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	var page ownersPage
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("decode body: %w", err)
	}

	return &page, nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (f *Fetcher) SetHTTPClient(client *http.Client) {
	f.httpClient = client
}

// WriteFile writes a holder snapshot document, sorted by wallet for stable
// diffs, via temp file and rename.
func WriteFile(path string, counts map[string]int64, now time.Time) error {
	holdings := make([]Holding, 0, len(counts))
	for wallet, count := range counts {
		holdings = append(holdings, Holding{Wallet: wallet, Count: count})
	}
	sort.Slice(holdings, func(i, j int) bool { return holdings[i].Wallet < holdings[j].Wallet })

	data, err := json.MarshalIndent(File{
		Holders:     holdings,
		LastUpdated: now.UnixMilli(),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal holder snapshot: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write holder snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace holder snapshot: %w", err)
	}

	return nil
}
