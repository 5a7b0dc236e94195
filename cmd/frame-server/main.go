// Command frame-server runs the stats frame service: the frame endpoint,
// the refresh scheduler keeping the Dune snapshot warm, Prometheus metrics
// and static assets.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/basenuts/nut-state/pkg/dune"
	"github.com/basenuts/nut-state/pkg/frame"
	"github.com/basenuts/nut-state/pkg/holders"
	"github.com/basenuts/nut-state/pkg/logging"
	"github.com/basenuts/nut-state/pkg/neynar"
	"github.com/basenuts/nut-state/pkg/ratelimit"
	"github.com/basenuts/nut-state/pkg/refresh"
	"github.com/basenuts/nut-state/pkg/snapshot"
	"github.com/basenuts/nut-state/pkg/stats"
)

type config struct {
	Port      string `env:"PORT" envDefault:"3000"`
	PublicURL string `env:"PUBLIC_URL" envDefault:"http://localhost:3000"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogPretty bool   `env:"LOG_PRETTY" envDefault:"false"`

	DuneAPIKey  string `env:"DUNE_API_KEY,required"`
	DuneBaseURL string `env:"DUNE_BASE_URL" envDefault:"https://api.dune.com"`

	// DuneAsync switches refresh passes to the execute-then-poll flow.
	DuneAsync bool `env:"DUNE_ASYNC" envDefault:"false"`

	NeynarAPIKey string `env:"NEYNAR_API_KEY"`

	CachePath string `env:"CACHE_PATH" envDefault:"cache.json"`

	// RedisURL switches the snapshot store from the local file to Redis.
	RedisURL string `env:"REDIS_URL"`

	HolderFiles     []string `env:"HOLDER_FILES" envSeparator:"," envDefault:"nft_holders.json,new_nft_holders.json"`
	AllowancePerNFT int64    `env:"ALLOWANCE_PER_NFT" envDefault:"0"`

	RefreshInterval time.Duration `env:"REFRESH_INTERVAL" envDefault:"1m"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`

	StaticDir string `env:"STATIC_DIR" envDefault:"public"`
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store := newStore(ctx, cfg, logger)
	scheduler := newScheduler(ctx, cfg, store, logger)
	go scheduler.Run(ctx, cfg.RefreshInterval)

	var identity frame.Identity
	if cfg.NeynarAPIKey != "" {
		client, err := neynar.New(neynar.DefaultConfig(cfg.NeynarAPIKey), logging.NewLogger("neynar"))
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to create identity client")
		}
		identity = client
	} else {
		logger.Warn().Msg("NEYNAR_API_KEY unset, identity lookups disabled")
	}

	holderIndex := holders.LoadIndex(cfg.HolderFiles, logging.NewLogger("holders"))

	limiter := ratelimit.New(ratelimit.DefaultConfig(), logging.NewLogger("ratelimit"))

	frameCfg := frame.DefaultConfig(cfg.PublicURL)
	frameCfg.AllowancePerNFT = cfg.AllowancePerNFT
	handler, err := frame.New(frameCfg, limiter, scheduler, identity, holderIndex, stats.DefaultQueries(), logging.NewLogger("frame"))
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create frame handler")
	}

	mux := http.NewServeMux()
	mux.Handle("/", handler)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.Dir(cfg.StaticDir))))

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", server.Addr).Str("public_url", cfg.PublicURL).Msg("Starting frame server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("Server failed")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Shutdown incomplete")
	}
}

// newStore picks the snapshot backend: Redis when REDIS_URL is set, the
// local cache file otherwise.
func newStore(ctx context.Context, cfg config, logger zerolog.Logger) snapshot.Store {
	if cfg.RedisURL == "" {
		return snapshot.NewFileStore(cfg.CachePath, logging.NewLogger("snapshot"))
	}

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisURL})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Str("redis_url", cfg.RedisURL).Msg("Failed to connect to Redis")
	}
	logger.Info().Str("redis_url", cfg.RedisURL).Msg("Using Redis snapshot store")
	return snapshot.NewRedisStore(redisClient, snapshot.DefaultRedisKey, logging.NewLogger("snapshot"))
}

func newScheduler(ctx context.Context, cfg config, store snapshot.Store, logger zerolog.Logger) *refresh.Scheduler {
	duneClient, err := dune.New(dune.Config{
		BaseURL: cfg.DuneBaseURL,
		APIKey:  cfg.DuneAPIKey,
	}, logging.NewLogger("dune"))
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create Dune client")
	}

	queries := stats.DefaultQueries()
	schedCfg := refresh.DefaultConfig(queries.QueryIDs())
	schedCfg.ExcessQueryID = queries.SentQueryID
	schedCfg.ExcessColumn = stats.SentColumn
	schedCfg.AllowanceCeiling = holders.DefaultBaseAllowance

	schedLogger := logging.NewLogger("refresh")
	if cfg.DuneAsync {
		return refresh.NewAsync(ctx, store, duneClient, schedCfg, schedLogger)
	}
	return refresh.New(ctx, store, duneClient, schedCfg, schedLogger)
}
