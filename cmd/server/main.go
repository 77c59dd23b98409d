package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/joeychilson/cisurl/client"
	"github.com/joeychilson/cisurl/config"
	"github.com/joeychilson/cisurl/logger"
	"github.com/joeychilson/cisurl/server"
)

const defaultConfigFile = "./config.yaml"

func main() {
	configFile := getEnv("CONFIG_FILE", defaultConfigFile)

	cfg, err := loadConfig(configFile)
	if err != nil {
		logger.Default().Error("failed to load config", "file", configFile, "error", err)
		os.Exit(1)
	}

	applyEnv(cfg, os.Getenv)
	log := newLogger(cfg)

	if err := run(cfg, log); err != nil {
		log.Error("server error", "error", err)
		os.Exit(1)
	}

	log.Info("server shutdown complete")
}

func run(cfg *config.Config, log logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := client.New(cfg)
	if err != nil {
		return err
	}
	c = c.WithLogger(log)
	defer c.Close()

	serverCfg := &server.ServerConfig{
		RateLimitRequests: cfg.Server.RateLimit.GetRequests(),
		RateLimitWindow:   cfg.Server.RateLimit.GetWindow(),
	}

	if cfg.Server.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.Server.RedisURL)
		if err != nil {
			return err
		}

		redisClient := redis.NewClient(opts)
		defer redisClient.Close()

		if err := redisClient.Ping(ctx).Err(); err != nil {
			return err
		}

		log.Info("redis connection established", "addr", opts.Addr)
		serverCfg.RedisClient = redisClient
	} else {
		log.Info("redis not configured, rate limiting in memory")
	}

	srv, err := server.New(c, log, serverCfg)
	if err != nil {
		return err
	}

	return srv.StartWithShutdown(ctx, cfg.Server.GetAddr())
}

// applyEnv overlays ADDR, REDIS_URL and LOG_LEVEL onto cfg.
func applyEnv(cfg *config.Config, getenv func(string) string) {
	if v := getenv("ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := getenv("REDIS_URL"); v != "" {
		cfg.Server.RedisURL = v
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
}

// newLogger builds the logger from cfg.Log and rewrites cfg.Log so that it passes
// validation. Unknown settings fall back to info level JSON.
func newLogger(cfg *config.Config) logger.Logger {
	level, err := logger.CanonicalLevel(cfg.Log.Level)
	if err != nil {
		logger.Default().Warn("unknown log level, using info", "level", cfg.Log.Level)
		level = "info"
	}
	cfg.Log.Level = level

	log, err := logger.NewWithOptions(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		logger.Default().Warn("invalid log format, using json", "format", cfg.Log.Format)
		cfg.Log.Format = ""
		return logger.Default()
	}
	cfg.Log.Format = strings.ToLower(cfg.Log.Format)
	return log
}

// loadConfig reads path when it exists and falls back to defaults otherwise.
func loadConfig(path string) (*config.Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return config.New(), nil
	}
	return config.LoadConfig(path)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
