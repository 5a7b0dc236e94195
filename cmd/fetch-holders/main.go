// Command fetch-holders is a one-shot batch job: it enumerates all owners
// of the community NFT contract and writes the wallet-to-count holder
// snapshot the frame server reads for allowance ceilings.
package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/basenuts/nut-state/pkg/holders"
	"github.com/basenuts/nut-state/pkg/logging"
)

type config struct {
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogPretty bool   `env:"LOG_PRETTY" envDefault:"false"`

	MoralisAPIKey string `env:"MORALIS_API_KEY,required"`
	NFTContract   string `env:"NFT_CONTRACT,required"`
	Chain         string `env:"NFT_CHAIN" envDefault:"0x2105"`
	PageSize      int    `env:"PAGE_SIZE" envDefault:"100"`

	OutputPath string        `env:"OUTPUT_PATH" envDefault:"nft_holders.json"`
	Timeout    time.Duration `env:"FETCH_TIMEOUT" envDefault:"10m"`
}

func main() {
	_ = godotenv.Load()

	var cfg config
	if err := env.Parse(&cfg); err != nil {
		fallback := logging.Setup(logging.DefaultConfig())
		fallback.Fatal().Err(err).Msg("Invalid configuration")
	}

	logger := logging.Setup(logging.Config{
		Level:  logging.LogLevel(cfg.LogLevel),
		Pretty: cfg.LogPretty,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	fetchCfg := holders.DefaultFetchConfig(cfg.MoralisAPIKey, cfg.NFTContract)
	fetchCfg.Chain = cfg.Chain
	fetchCfg.PageSize = cfg.PageSize

	fetcher, err := holders.NewFetcher(fetchCfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create holder fetcher")
	}

	start := time.Now()
	counts, err := fetcher.FetchCounts(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("Owner enumeration failed, keeping previous snapshot")
	}

	if err := holders.WriteFile(cfg.OutputPath, counts, time.Now()); err != nil {
		logger.Fatal().Err(err).Str("path", cfg.OutputPath).Msg("Failed to write holder snapshot")
	}

	logger.Info().
		Str("path", cfg.OutputPath).
		Int("holders", len(counts)).
		Dur("duration", time.Since(start)).
		Msg("Holder snapshot written")
}
